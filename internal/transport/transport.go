package transport

import "context"

// Message is a fully-rendered outbound email.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
}

// EmailTransport delivers a single message. Adapters perform exactly one
// delivery per Send call; retry policy belongs to the caller, which accounts
// for every attempt.
type EmailTransport interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}
