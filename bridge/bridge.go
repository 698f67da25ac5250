// Package bridge republishes terminal bus events to long-lived client
// streams. One subscription taps the generated-text subject; events land in a
// bounded broadcast ring read by any number of independently paced
// subscribers. A subscriber whose read cursor falls out of the retained
// window is advanced to the oldest retained event and told how many it
// missed, then resumes; slow subscribers never block the bus loop or other
// subscribers.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

// DefaultCapacity is the number of events the ring retains.
const DefaultCapacity = 32

// Stream event types.
const (
	EventTypeGenerated = "text_generated"
	EventTypeLag       = "lag"
)

// StreamEvent is the presentation form sent to stream clients, one JSON
// object per event. A lag event tells the client how many events it missed
// before the next one it receives.
type StreamEvent struct {
	Type   string                  `json:"type"`
	Event  *envelope.GeneratedText `json:"event,omitempty"`
	Missed uint64                  `json:"missed,omitempty"`
}

// Bridge owns the bus subscription and the broadcast ring.
type Bridge struct {
	bus      natsclient.Bus
	subject  string
	capacity int
	logger   *slog.Logger
	metrics  *Metrics

	loop *dispatch.Loop[envelope.GeneratedText]

	mu      sync.Mutex
	ring    []envelope.GeneratedText
	next    uint64 // sequence of the next event to be written
	subs    map[uint64]*Subscriber
	nextSub uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithMetrics attaches bridge metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithCapacity sets the ring capacity. Defaults to DefaultCapacity.
func WithCapacity(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithSubject overrides the tapped subject. Defaults to
// envelope.SubjectTextGenerated.
func WithSubject(subject string) Option {
	return func(b *Bridge) {
		if subject != "" {
			b.subject = subject
		}
	}
}

// New builds a Bridge over the shared bus.
func New(bus natsclient.Bus, opts ...Option) *Bridge {
	b := &Bridge{
		bus:      bus,
		subject:  envelope.SubjectTextGenerated,
		capacity: DefaultCapacity,
		subs:     make(map[uint64]*Subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "bridge")
	b.ring = make([]envelope.GeneratedText, b.capacity)
	return b
}

// Name returns the component name.
func (b *Bridge) Name() string { return "bridge" }

// Start subscribes to the tapped subject. Decode failures are logged and
// skipped inside the dispatch loop; they never stop the subscription.
func (b *Bridge) Start(ctx context.Context) error {
	b.loop = dispatch.New("bridge", b.subject, b.bus,
		func(_ context.Context, ev envelope.GeneratedText) error {
			b.offer(ev)
			return nil
		},
		dispatch.WithLogger[envelope.GeneratedText](b.logger),
	)
	if err := b.loop.Start(ctx); err != nil {
		return symerrors.Wrap(err, "bridge", "Start", "tap "+b.subject)
	}
	return nil
}

// Stop ends the subscription and wakes every subscriber so blocked Next
// calls return.
func (b *Bridge) Stop(timeout time.Duration) error {
	if b.loop != nil {
		if err := b.loop.Stop(timeout); err != nil {
			return err
		}
	}

	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return nil
}

// offer appends one event to the ring and wakes every subscriber. Never
// blocks; when the ring is full the oldest retained event is overwritten and
// lagging cursors are reconciled on their next read.
func (b *Bridge) offer(ev envelope.GeneratedText) {
	b.mu.Lock()
	b.ring[b.next%uint64(b.capacity)] = ev
	b.next++
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	b.metrics.recordEvent()
	for _, s := range subs {
		s.wakeUp()
	}
}

// Subscribe registers a new stream subscriber. It receives every event
// offered after this call; no history is replayed.
func (b *Bridge) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	s := &Subscriber{
		bridge: b,
		id:     id,
		cursor: b.next,
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	b.subs[id] = s
	b.metrics.setSubscribers(len(b.subs))
	return s
}

// oldest returns the sequence of the oldest retained event. Callers hold mu.
func (b *Bridge) oldest() uint64 {
	if b.next < uint64(b.capacity) {
		return 0
	}
	return b.next - uint64(b.capacity)
}

// Subscriber is one independently paced reader of the broadcast ring.
type Subscriber struct {
	bridge *Bridge
	id     uint64
	cursor uint64 // sequence of the next event to read
	wake   chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// wakeUp signals that a new event is available without ever blocking the
// producer.
func (s *Subscriber) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, the context ends, or the
// subscriber is closed. When the subscriber has fallen out of the retained
// window it first receives one lag event carrying the skipped count, then
// resumes from the oldest retained event.
func (s *Subscriber) Next(ctx context.Context) (StreamEvent, error) {
	for {
		s.bridge.mu.Lock()
		oldest := s.bridge.oldest()
		if s.cursor < oldest {
			missed := oldest - s.cursor
			s.cursor = oldest
			s.bridge.mu.Unlock()
			s.bridge.metrics.recordLag(missed)
			s.bridge.logger.Debug("subscriber lagged", "subscriber", s.id, "missed", missed)
			return StreamEvent{Type: EventTypeLag, Missed: missed}, nil
		}
		if s.cursor < s.bridge.next {
			ev := s.bridge.ring[s.cursor%uint64(s.bridge.capacity)]
			s.cursor++
			s.bridge.mu.Unlock()
			return StreamEvent{Type: EventTypeGenerated, Event: &ev}, nil
		}
		s.bridge.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return StreamEvent{}, ctx.Err()
		case <-s.closed:
			return StreamEvent{}, symerrors.WrapInvalid(symerrors.ErrAlreadyStopped,
				"bridge", "Next", "read closed subscription")
		}
	}
}

// Close deregisters the subscriber and unblocks any pending Next call.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.bridge.mu.Lock()
		delete(s.bridge.subs, s.id)
		n := len(s.bridge.subs)
		s.bridge.mu.Unlock()
		s.bridge.metrics.setSubscribers(n)
	})
}
