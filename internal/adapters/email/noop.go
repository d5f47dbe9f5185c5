package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NoopSender accepts messages and only logs them. Used when no provider key is configured.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the message instead of delivering it.
func (NoopSender) Send(_ context.Context, msg Message) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, ErrNoRecipient
	}
	id := "noop-" + uuid.NewString()
	slog.Info("email_event", "event", "skipped", "id", id, "category", msg.Category, "recipients", len(msg.To))
	return Receipt{ID: id, Accepted: time.Now()}, nil
}
