package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers messages with the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender returns a sender posting as from (e.g. "Club CMC <noreply@club.example>").
// PRE: apiKey is a Resend API key
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// Send submits msg to Resend.
// POST: On success the receipt carries the Resend message id
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, ErrNoRecipient
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.Category != "" {
		req.Tags = []resend.Tag{{Name: "category", Value: msg.Category}}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		slog.Warn("email_event", "event", "rejected", "category", msg.Category, "error", err)
		return Receipt{}, fmt.Errorf("resend: %w", err)
	}
	slog.Info("email_event", "event", "sent", "id", sent.Id, "category", msg.Category)
	return Receipt{ID: sent.Id, Accepted: time.Now()}, nil
}
