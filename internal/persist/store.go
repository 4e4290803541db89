package persist

import (
	"context"

	"github.com/wonny/earnsight/internal/contracts"
)

// Store is the durable record behind the in-memory state. In-memory
// structures stay authoritative for reads; the store exists so a
// restart can rehydrate them.
type Store interface {
	SaveDocument(ctx context.Context, doc contracts.Document) error
	ListDocuments(ctx context.Context, ticker string, limit int) ([]contracts.Document, error)

	SaveSubscription(ctx context.Context, sub contracts.Subscription) error
	DeleteSubscription(ctx context.Context, userID, ticker string) error
	ListSubscriptions(ctx context.Context) ([]contracts.Subscription, error)

	SaveComplianceRule(ctx context.Context, rule contracts.ComplianceRule) error
	ListComplianceRules(ctx context.Context) ([]contracts.ComplianceRule, error)

	SaveSignal(ctx context.Context, sig *contracts.Signal) error
	LatestSignal(ctx context.Context, ticker string) (*contracts.Signal, error)

	Close()
}

// ErrNotFound is returned by lookups that matched nothing
type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return e.what + " not found" }

// ErrNotFound builds a typed not-found error
func ErrNotFound(what string) error { return &notFoundError{what: what} }

// IsNotFound reports whether err is a not-found error from this package
func IsNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

// Noop discards writes and returns empty reads, for memory-only mode
// and tests.
type Noop struct{}

// NewNoop returns a Store that persists nothing
func NewNoop() *Noop { return &Noop{} }

func (*Noop) SaveDocument(context.Context, contracts.Document) error { return nil }
func (*Noop) ListDocuments(context.Context, string, int) ([]contracts.Document, error) {
	return nil, nil
}
func (*Noop) SaveSubscription(context.Context, contracts.Subscription) error { return nil }
func (*Noop) DeleteSubscription(context.Context, string, string) error       { return nil }
func (*Noop) ListSubscriptions(context.Context) ([]contracts.Subscription, error) {
	return nil, nil
}
func (*Noop) SaveComplianceRule(context.Context, contracts.ComplianceRule) error { return nil }
func (*Noop) ListComplianceRules(context.Context) ([]contracts.ComplianceRule, error) {
	return nil, nil
}
func (*Noop) SaveSignal(context.Context, *contracts.Signal) error { return nil }
func (*Noop) LatestSignal(_ context.Context, ticker string) (*contracts.Signal, error) {
	return nil, ErrNotFound("signal for " + ticker)
}
func (*Noop) Close() {}
