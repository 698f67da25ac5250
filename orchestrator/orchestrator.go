// Package orchestrator chains the two dependent request/reply hops of a
// semantic search into one externally facing call: resolve the query text to
// a vector, then resolve the vector to ranked points. The workflow is a
// linear state machine that short-circuits to Failed on the first hop
// failure; the search subject receives zero publishes when the embedding hop
// fails. Orchestration failures are returned as a populated error_message
// with empty results, never as a panic past this boundary.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/reply"
)

// State is one step of the search workflow.
type State int

const (
	// StateStart is the initial state before any hop.
	StateStart State = iota
	// StateEmbeddingRequested means the query-to-vector hop is in flight.
	StateEmbeddingRequested
	// StateVectorSearchRequested means the vector-to-points hop is in flight.
	StateVectorSearchRequested
	// StateDone is the terminal success state.
	StateDone
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns a string representation of the workflow state.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateEmbeddingRequested:
		return "embedding_requested"
	case StateVectorSearchRequested:
		return "vector_search_requested"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config carries the subjects and per-hop deadlines. The two deadlines are
// independent budgets; hop 2 never inherits time left over from hop 1.
type Config struct {
	EmbedSubject  string
	SearchSubject string
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
}

// DefaultConfig returns the stable subjects with the default deadlines.
func DefaultConfig() Config {
	return Config{
		EmbedSubject:  envelope.SubjectQueryEmbedding,
		SearchSubject: envelope.SubjectSemanticSearch,
		EmbedTimeout:  envelope.DefaultEmbedTimeout,
		SearchTimeout: envelope.DefaultSearchTimeout,
	}
}

// Orchestrator runs the two-hop search workflow over a shared bus.
type Orchestrator struct {
	bus     natsclient.Bus
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics attaches orchestrator metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New builds an Orchestrator. Zero-valued Config fields fall back to the
// defaults.
func New(bus natsclient.Bus, cfg Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.EmbedSubject == "" {
		cfg.EmbedSubject = def.EmbedSubject
	}
	if cfg.SearchSubject == "" {
		cfg.SearchSubject = def.SearchSubject
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}

	o := &Orchestrator{bus: bus, cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o
}

// Search executes the workflow once. Input that fails validation is rejected
// before any bus interaction with a KindValidation error. Any downstream
// failure is mapped into the response's error_message with empty results and
// a nil error; the response always carries the search_request_id generated
// at Start.
func (o *Orchestrator) Search(ctx context.Context, req envelope.SearchRequest) (envelope.SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return envelope.SearchResponse{}, err
	}

	run := &searchRun{orch: o, id: uuid.NewString(), state: StateStart}
	return run.execute(ctx, req), nil
}

// searchRun carries the state of one workflow execution. All state is owned
// by the single goroutine executing the run.
type searchRun struct {
	orch  *Orchestrator
	id    string
	state State
}

func (r *searchRun) transition(next State) {
	r.orch.logger.Debug("search state transition",
		"search_request_id", r.id, "from", r.state.String(), "to", next.String())
	r.state = next
}

func (r *searchRun) execute(ctx context.Context, req envelope.SearchRequest) envelope.SearchResponse {
	start := time.Now()

	r.transition(StateEmbeddingRequested)
	embedRes, err := reply.Request[envelope.QueryForEmbeddingTask, envelope.QueryEmbeddingResult](
		ctx, r.orch.bus, r.orch.cfg.EmbedSubject,
		envelope.QueryForEmbeddingTask{RequestID: r.id, TextToEmbed: req.QueryText},
		r.orch.cfg.EmbedTimeout,
	)
	if err != nil {
		return r.fail(start, "embedding resolution", err)
	}
	if len(embedRes.Embedding) == 0 {
		// The embedding service reported success but sent no vector. A
		// service contract violation, not a user error.
		return r.fail(start, "embedding resolution",
			symerrors.NewRemote(r.orch.cfg.EmbedSubject, "reply carried neither an embedding nor an error"))
	}

	r.transition(StateVectorSearchRequested)
	searchRes, err := reply.Request[envelope.SearchTask, envelope.SearchResult](
		ctx, r.orch.bus, r.orch.cfg.SearchSubject,
		envelope.SearchTask{RequestID: r.id, QueryEmbedding: embedRes.Embedding, TopK: req.TopK},
		r.orch.cfg.SearchTimeout,
	)
	if err != nil {
		return r.fail(start, "vector search", err)
	}

	r.transition(StateDone)
	r.orch.metrics.recordSearch(r.state, "", time.Since(start))
	r.orch.logger.Info("search completed",
		"search_request_id", r.id, "results", len(searchRes.Results))

	results := searchRes.Results
	if results == nil {
		results = []envelope.ResultItem{}
	}
	return envelope.SearchResponse{SearchRequestID: r.id, Results: results}
}

// fail terminates the run. The message always names the hop that failed.
func (r *searchRun) fail(start time.Time, hop string, cause error) envelope.SearchResponse {
	failedAt := r.state
	r.transition(StateFailed)
	r.orch.metrics.recordSearch(failedAt, symerrors.KindOf(cause).String(), time.Since(start))
	r.orch.logger.Warn("search failed",
		"search_request_id", r.id, "hop", hop, "error", cause)

	return envelope.SearchResponse{
		SearchRequestID: r.id,
		Results:         []envelope.ResultItem{},
		ErrorMessage:    fmt.Sprintf("%s failed: %v", hop, cause),
	}
}
