package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/pkg/worker"
)

// Func handles one decoded envelope. The returned error is logged and
// counted; it never affects the loop or other in-flight handlers.
type Func[T any] func(ctx context.Context, env T) error

// ReplyFunc additionally receives the message's ephemeral reply subject,
// empty for fire-and-forget messages.
type ReplyFunc[T any] func(ctx context.Context, env T, reply string) error

// delivery is the unit of work handed to a handler goroutine or pool worker.
type delivery[T any] struct {
	env   T
	reply string
}

// Loop subscribes to one subject and runs an isolated concurrent handler
// per decoded message. Undecodable payloads are logged and dropped without
// stopping the subscription. By default handler concurrency is unbounded;
// WithConcurrencyCap bounds it with a worker pool without changing the
// external contract.
type Loop[T any] struct {
	name    string
	subject string
	bus     natsclient.Bus
	handler ReplyFunc[T]
	logger  *slog.Logger
	metrics *Metrics

	poolWorkers int
	poolQueue   int
	pool        *worker.Pool[delivery[T]]

	mu      sync.Mutex
	started bool
	sub     natsclient.Subscription
	wg      sync.WaitGroup
}

// Option configures a Loop.
type Option[T any] func(*Loop[T])

// WithLogger sets the loop's logger. Defaults to slog.Default().
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(l *Loop[T]) {
		l.logger = logger
	}
}

// WithMetrics attaches shared dispatch metrics.
func WithMetrics[T any](m *Metrics) Option[T] {
	return func(l *Loop[T]) {
		l.metrics = m
	}
}

// WithConcurrencyCap bounds handler concurrency with a worker pool of the
// given size. Messages decoded while the queue is full are dropped and
// counted rather than blocking the subscription.
func WithConcurrencyCap[T any](workers, queueSize int) Option[T] {
	return func(l *Loop[T]) {
		l.poolWorkers = workers
		l.poolQueue = queueSize
	}
}

// New builds a dispatch loop for fire-and-forget subjects.
func New[T any](name, subject string, bus natsclient.Bus, fn Func[T], opts ...Option[T]) *Loop[T] {
	return NewWithReply(name, subject, bus, func(ctx context.Context, env T, _ string) error {
		return fn(ctx, env)
	}, opts...)
}

// NewWithReply builds a dispatch loop whose handler needs the reply subject,
// for subjects served in the request/reply pattern.
func NewWithReply[T any](name, subject string, bus natsclient.Bus, fn ReplyFunc[T], opts ...Option[T]) *Loop[T] {
	l := &Loop[T]{
		name:    name,
		subject: subject,
		bus:     bus,
		handler: fn,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("loop", name, "subject", subject)
	return l
}

// Name returns the loop's name.
func (l *Loop[T]) Name() string { return l.name }

// Subject returns the subscribed subject.
func (l *Loop[T]) Subject() string { return l.subject }

// Start subscribes and begins dispatching. The context bounds every handler
// invocation; cancelling it signals in-flight handlers to stop.
func (l *Loop[T]) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return symerrors.WrapInvalid(symerrors.ErrAlreadyStarted, "dispatch", "Start", "start loop "+l.name)
	}

	if l.poolWorkers > 0 {
		l.pool = worker.NewPool(l.poolWorkers, l.poolQueue, func(ctx context.Context, d delivery[T]) error {
			return l.runHandler(ctx, d)
		})
		if err := l.pool.Start(ctx); err != nil {
			return symerrors.Wrap(err, "dispatch", "Start", "start worker pool")
		}
	}

	sub, err := l.bus.Subscribe(ctx, l.subject, l.onMessage)
	if err != nil {
		return symerrors.Wrap(err, "dispatch", "Start", "subscribe "+l.subject)
	}
	l.sub = sub
	l.started = true
	l.logger.Info("dispatch loop started")
	return nil
}

// Stop ends the subscription and waits up to timeout for in-flight handlers.
func (l *Loop[T]) Stop(timeout time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	l.started = false

	if err := l.sub.Unsubscribe(); err != nil {
		l.logger.Warn("unsubscribe failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		return symerrors.WrapTransient(symerrors.ErrStopTimeout, "dispatch", "Stop", "wait for handlers of "+l.name)
	}

	if l.pool != nil {
		if err := l.pool.Stop(timeout); err != nil {
			return symerrors.Wrap(err, "dispatch", "Stop", "stop worker pool")
		}
	}
	l.logger.Info("dispatch loop stopped")
	return nil
}

// onMessage decodes and fans out one inbound message. Decode failures drop
// the message; they never stop the loop.
func (l *Loop[T]) onMessage(ctx context.Context, msg natsclient.Message) {
	var env T
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		l.metrics.recordDecodeFailure(l.name)
		l.logger.Warn("dropping undecodable message", "error", err, "bytes", len(msg.Data))
		return
	}
	l.metrics.recordReceived(l.name)

	d := delivery[T]{env: env, reply: msg.Reply}

	if l.pool != nil {
		if err := l.pool.Submit(d); err != nil {
			l.metrics.recordDropped(l.name)
			l.logger.Warn("dropping message, handler queue full", "error", err)
		}
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.runHandler(ctx, d); err != nil {
			l.logger.Error("handler failed", "error", err)
		}
	}()
}

// runHandler invokes the handler with panic recovery and metrics.
func (l *Loop[T]) runHandler(ctx context.Context, d delivery[T]) (err error) {
	l.metrics.handlerStarted(l.name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		l.metrics.handlerFinished(l.name, time.Since(start), err)
	}()
	return l.handler(ctx, d.env, d.reply)
}
