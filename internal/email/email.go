// Package email delivers outbound mail for sign-in links.
package email

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by senders that have no credentials
var ErrNotConfigured = errors.New("email sender not configured")

// Message is a single outbound email
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
