package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/database"
	"github.com/wonny/earnsight/pkg/logger"
)

// Postgres persists pipeline state through the shared pgx pool
type Postgres struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgres wraps an existing connection pool
func NewPostgres(db *database.DB, log *logger.Logger) *Postgres {
	return &Postgres{db: db, logger: log}
}

// InitSchema creates the tables if they do not exist. Idempotent; runs
// at startup before the API binds.
func (p *Postgres) InitSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id      TEXT PRIMARY KEY,
			ticker      TEXT NOT NULL,
			period      TEXT,
			doc_type    TEXT NOT NULL,
			path        TEXT,
			uploader    TEXT,
			received_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_ticker ON documents (ticker, received_at DESC)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id    TEXT NOT NULL,
			ticker     TEXT NOT NULL,
			channels   JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS compliance_rules (
			rule_id            TEXT PRIMARY KEY,
			scope_class        TEXT,
			scope_tickers      JSONB,
			initial_margin     DOUBLE PRECISION NOT NULL,
			maintenance_margin DOUBLE PRECISION NOT NULL,
			effective_date     TIMESTAMPTZ NOT NULL,
			confidence         DOUBLE PRECISION NOT NULL,
			provenance         JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			ticker       TEXT NOT NULL,
			period       TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			payload      JSONB NOT NULL,
			PRIMARY KEY (ticker, generated_at)
		)`,
	}

	for _, stmt := range ddl {
		if _, err := p.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	p.logger.Info("Persistence schema ready")
	return nil
}

func (p *Postgres) SaveDocument(ctx context.Context, doc contracts.Document) error {
	_, err := p.db.Pool.Exec(ctx, `
		INSERT INTO documents (doc_id, ticker, period, doc_type, path, uploader, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (doc_id) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			period = EXCLUDED.period,
			doc_type = EXCLUDED.doc_type,
			path = EXCLUDED.path,
			uploader = EXCLUDED.uploader,
			received_at = EXCLUDED.received_at`,
		doc.DocID, doc.Ticker, doc.Period, doc.DocType, doc.Path, doc.Uploader, doc.ReceivedAt)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.DocID, err)
	}
	return nil
}

func (p *Postgres) ListDocuments(ctx context.Context, ticker string, limit int) ([]contracts.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT doc_id, ticker, COALESCE(period, ''), doc_type, COALESCE(path, ''), COALESCE(uploader, ''), received_at
		FROM documents`
	args := []interface{}{}
	if ticker != "" {
		query += ` WHERE ticker = $1 ORDER BY received_at DESC LIMIT $2`
		args = append(args, ticker, limit)
	} else {
		query += ` ORDER BY received_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []contracts.Document
	for rows.Next() {
		var d contracts.Document
		if err := rows.Scan(&d.DocID, &d.Ticker, &d.Period, &d.DocType, &d.Path, &d.Uploader, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (p *Postgres) SaveSubscription(ctx context.Context, sub contracts.Subscription) error {
	channels, err := json.Marshal(sub.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	_, err = p.db.Pool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, ticker, channels, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, ticker) DO UPDATE SET channels = EXCLUDED.channels`,
		sub.UserID, sub.Ticker, channels, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("save subscription %s/%s: %w", sub.UserID, sub.Ticker, err)
	}
	return nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, userID, ticker string) error {
	_, err := p.db.Pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE user_id = $1 AND ticker = $2`, userID, ticker)
	if err != nil {
		return fmt.Errorf("delete subscription %s/%s: %w", userID, ticker, err)
	}
	return nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]contracts.Subscription, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT user_id, ticker, channels, created_at FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []contracts.Subscription
	for rows.Next() {
		var sub contracts.Subscription
		var channels []byte
		if err := rows.Scan(&sub.UserID, &sub.Ticker, &channels, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if err := json.Unmarshal(channels, &sub.Channels); err != nil {
			return nil, fmt.Errorf("decode channels: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (p *Postgres) SaveComplianceRule(ctx context.Context, rule contracts.ComplianceRule) error {
	tickers, err := json.Marshal(rule.ScopeTickers)
	if err != nil {
		return fmt.Errorf("marshal scope tickers: %w", err)
	}
	provenance, err := json.Marshal(rule.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	_, err = p.db.Pool.Exec(ctx, `
		INSERT INTO compliance_rules
			(rule_id, scope_class, scope_tickers, initial_margin, maintenance_margin, effective_date, confidence, provenance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (rule_id) DO UPDATE SET
			scope_class = EXCLUDED.scope_class,
			scope_tickers = EXCLUDED.scope_tickers,
			initial_margin = EXCLUDED.initial_margin,
			maintenance_margin = EXCLUDED.maintenance_margin,
			effective_date = EXCLUDED.effective_date,
			confidence = EXCLUDED.confidence,
			provenance = EXCLUDED.provenance`,
		rule.RuleID, rule.ScopeClass, tickers, rule.InitialMargin,
		rule.MaintenanceMargin, rule.EffectiveDate, rule.Confidence, provenance)
	if err != nil {
		return fmt.Errorf("save compliance rule %s: %w", rule.RuleID, err)
	}
	return nil
}

func (p *Postgres) ListComplianceRules(ctx context.Context) ([]contracts.ComplianceRule, error) {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT rule_id, COALESCE(scope_class, ''), scope_tickers, initial_margin,
		       maintenance_margin, effective_date, confidence, provenance
		FROM compliance_rules ORDER BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("list compliance rules: %w", err)
	}
	defer rows.Close()

	var rules []contracts.ComplianceRule
	for rows.Next() {
		var rule contracts.ComplianceRule
		var tickers, provenance []byte
		if err := rows.Scan(&rule.RuleID, &rule.ScopeClass, &tickers, &rule.InitialMargin,
			&rule.MaintenanceMargin, &rule.EffectiveDate, &rule.Confidence, &provenance); err != nil {
			return nil, fmt.Errorf("scan compliance rule: %w", err)
		}
		if len(tickers) > 0 {
			if err := json.Unmarshal(tickers, &rule.ScopeTickers); err != nil {
				return nil, fmt.Errorf("decode scope tickers: %w", err)
			}
		}
		if len(provenance) > 0 {
			if err := json.Unmarshal(provenance, &rule.Provenance); err != nil {
				return nil, fmt.Errorf("decode provenance: %w", err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (p *Postgres) SaveSignal(ctx context.Context, sig *contracts.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	_, err = p.db.Pool.Exec(ctx, `
		INSERT INTO signals (ticker, period, generated_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker, generated_at) DO UPDATE SET payload = EXCLUDED.payload`,
		sig.Ticker, sig.Period, sig.GeneratedAt, payload)
	if err != nil {
		return fmt.Errorf("save signal %s: %w", sig.Ticker, err)
	}
	return nil
}

func (p *Postgres) LatestSignal(ctx context.Context, ticker string) (*contracts.Signal, error) {
	var payload []byte
	err := p.db.Pool.QueryRow(ctx, `
		SELECT payload FROM signals
		WHERE ticker = $1 ORDER BY generated_at DESC LIMIT 1`, ticker).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound("signal for " + ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("latest signal %s: %w", ticker, err)
	}

	var sig contracts.Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}
	return &sig, nil
}

// Close releases the underlying pool
func (p *Postgres) Close() {
	p.db.Close()
}
