package email

import (
	"context"
	"errors"
	"time"
)

// ErrNoRecipient is returned for a message without any address in To.
var ErrNoRecipient = errors.New("email has no recipient")

// Message is one outgoing email. The sender address is configured on the Sender.
type Message struct {
	To       []string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string // plain-text alternative, optional
	Category string // provider tag grouping messages of one kind, optional
}

// Receipt identifies a message the provider accepted.
type Receipt struct {
	ID       string
	Accepted time.Time
}

// Sender delivers messages through a provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
