package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/httputil"
	"github.com/wonny/earnsight/pkg/logger"
)

// Webhook posts chat-channel notifications to an external endpoint.
// Delivery is best effort: failures are logged and never propagate
// into the ingest path.
type Webhook struct {
	client  *httputil.Client
	url     string
	timeout time.Duration
	logger  *logger.Logger
}

// NewWebhook creates a webhook notifier. An empty URL disables it.
func NewWebhook(url string, timeout time.Duration, log *logger.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		client:  httputil.NewWithTimeout(log, timeout).WithRetry(2, 500*time.Millisecond),
		url:     url,
		timeout: timeout,
		logger:  log,
	}
}

// Enabled reports whether an endpoint is configured
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

type webhookPayload struct {
	Text  string              `json:"text"`
	Event contracts.EventType `json:"event"`
	Users []string            `json:"users,omitempty"`
	Data  interface{}         `json:"data,omitempty"`
}

// Notify posts one message for the given users. Runs the HTTP call on
// the calling goroutine; callers on a hot path should go-routine it.
func (w *Webhook) Notify(ctx context.Context, event contracts.EventType, text string, data interface{}, users []string) {
	if !w.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.client.PostJSON(ctx, w.url, webhookPayload{
		Text:  text,
		Event: event,
		Users: users,
		Data:  data,
	})
	if err != nil {
		w.logger.WithError(err).Warn("Chat webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.WithField("status", resp.StatusCode).Warn("Chat webhook rejected")
		return
	}
	w.logger.WithField("event", string(event)).Debug("Chat webhook delivered")
}

// SignalText renders the chat message for a published signal
func SignalText(sig *contracts.Signal) string {
	return fmt.Sprintf("%s %s %s (confidence %.2f)", sig.Action, sig.Ticker, sig.Period, sig.Confidence)
}

// ComplianceText renders the chat message for a compliance alert
func ComplianceText(alert contracts.ComplianceAlert) string {
	return fmt.Sprintf("[%s] %s: %s", alert.RuleID, alert.Ticker, alert.Message)
}
