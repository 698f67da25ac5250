package natsclient

import (
	"context"
	"time"
)

// Message is one inbound bus message. Reply is the ephemeral reply subject
// when the message came from a request/reply exchange, empty otherwise.
type Message struct {
	Subject string
	Reply   string
	Data    []byte
}

// Subscription is a handle to one active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the subject-addressed messaging contract shared by every component.
// Delivery is at-most-once, unordered, best-effort: no redelivery and no
// acknowledgment. One Bus instance is shared process-wide and must be safe
// for concurrent use from many handlers at once.
type Bus interface {
	// Publish sends a fire-and-forget message on a subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe delivers every message on a subject to the handler until
	// the subscription is ended or the connection drops.
	Subscribe(ctx context.Context, subject string, handler func(context.Context, Message)) (Subscription, error)

	// Request publishes with an ephemeral reply subject and awaits exactly
	// one reply within the timeout. The returned error distinguishes an
	// elapsed deadline (errors.KindTimeout) from a bus failure
	// (errors.KindTransport).
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error)
}
