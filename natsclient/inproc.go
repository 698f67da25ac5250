package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/makkenzo/codename-symbiont/errors"
)

// InProcBus is an in-memory Bus for tests and single-process wiring. It
// mirrors the delivery contract of the NATS-backed client: at-most-once,
// unordered, best-effort, with handlers invoked asynchronously. No network
// is involved, which keeps dispatch, correlator, and orchestrator tests
// hermetic.
type InProcBus struct {
	mu       sync.RWMutex
	subs     map[string][]*inprocSub
	inboxSeq atomic.Uint64
	closed   bool
}

type inprocSub struct {
	bus     *InProcBus
	subject string
	ctx     context.Context
	handler func(context.Context, Message)
}

var _ Bus = (*InProcBus)(nil)

// NewInProcBus creates an empty in-process bus.
func NewInProcBus() *InProcBus {
	return &InProcBus{subs: make(map[string][]*inprocSub)}
}

// Publish delivers data to every current subscriber of the subject, each on
// its own goroutine.
func (b *InProcBus) Publish(_ context.Context, subject string, data []byte) error {
	return b.deliver(Message{Subject: subject, Data: data})
}

func (b *InProcBus) deliver(msg Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.WrapKind(errors.KindTransport, errors.ErrNoConnection,
			"InProcBus", "Publish", "check bus state")
	}
	targets := make([]*inprocSub, len(b.subs[msg.Subject]))
	copy(targets, b.subs[msg.Subject])
	b.mu.RUnlock()

	for _, sub := range targets {
		go func(s *inprocSub) {
			msgCtx, cancel := context.WithTimeout(s.ctx, messageTimeout)
			defer cancel()
			s.handler(msgCtx, msg)
		}(sub)
	}

	return nil
}

// Subscribe registers a handler for a subject.
func (b *InProcBus) Subscribe(
	ctx context.Context,
	subject string,
	handler func(context.Context, Message),
) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.WrapKind(errors.KindTransport, errors.ErrNoConnection,
			"InProcBus", "Subscribe", "check bus state")
	}

	sub := &inprocSub{bus: b, subject: subject, ctx: ctx, handler: handler}
	b.subs[subject] = append(b.subs[subject], sub)
	return sub, nil
}

// Request publishes with a one-shot reply inbox and awaits exactly one reply
// within the timeout.
func (b *InProcBus) Request(
	ctx context.Context,
	subject string,
	data []byte,
	timeout time.Duration,
) ([]byte, error) {
	inbox := fmt.Sprintf("_INBOX.inproc.%d", b.inboxSeq.Add(1))
	replyCh := make(chan []byte, 1)

	sub, err := b.Subscribe(ctx, inbox, func(_ context.Context, msg Message) {
		select {
		case replyCh <- msg.Data:
		default:
			// Only the first reply is consumed.
		}
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe() //nolint:errcheck // best-effort cleanup

	if err := b.deliver(Message{Subject: subject, Reply: inbox, Data: data}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return nil, errors.WrapKind(errors.KindTimeout, errors.ErrRequestTimeout,
			"InProcBus", "Request", fmt.Sprintf("await reply on %s within %v", subject, timeout))
	case <-ctx.Done():
		// An elapsed deadline is a timeout; a cancelled context is not.
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.WrapKind(errors.KindTimeout, ctx.Err(),
				"InProcBus", "Request", fmt.Sprintf("await reply on %s", subject))
		}
		return nil, errors.WrapKind(errors.KindTransport, ctx.Err(),
			"InProcBus", "Request", "await reply")
	}
}

// Close drops all subscriptions and rejects further use.
func (b *InProcBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*inprocSub)
}

// Unsubscribe removes the subscription from its subject.
func (s *inprocSub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	current := s.bus.subs[s.subject]
	for i, sub := range current {
		if sub == s {
			s.bus.subs[s.subject] = append(current[:i], current[i+1:]...)
			break
		}
	}
	return nil
}
