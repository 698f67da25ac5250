// Package knowledgegraph persists tokenized documents into the relational
// graph of documents, sentences, and tokens.
package knowledgegraph

import (
	"context"
	"time"

	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/pkg/graphstore"
	"github.com/makkenzo/codename-symbiont/service"
)

// Worker consumes tokenized text events and writes them to the graph store.
type Worker struct {
	*service.Base
	store graphstore.GraphStore
	loop  *dispatch.Loop[envelope.TokenizedText]
}

// New builds the knowledge graph worker on top of the given store.
func New(deps component.Dependencies, store graphstore.GraphStore) *Worker {
	logger := deps.GetLoggerWithComponent("knowledgegraph")

	w := &Worker{
		Base: service.NewBase("knowledgegraph",
			service.WithLogger(logger),
			service.WithMetrics(deps.MetricsRegistry)),
		store: store,
	}
	w.loop = dispatch.New("knowledgegraph", envelope.SubjectTokenizedText, deps.Bus, w.handle,
		dispatch.WithLogger[envelope.TokenizedText](logger),
		dispatch.WithMetrics[envelope.TokenizedText](deps.DispatchMetrics))
	return w
}

// Start brings up the base service and the dispatch loop.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Base.Start(ctx); err != nil {
		return err
	}
	return w.loop.Start(ctx)
}

// Stop tears down the loop, then the base service and the store.
func (w *Worker) Stop(timeout time.Duration) error {
	var firstErr error
	if err := w.loop.Stop(timeout); err != nil {
		firstErr = err
	}
	if err := w.Base.Stop(timeout); err != nil && firstErr == nil {
		firstErr = err
	}
	w.store.Close()
	return firstErr
}

func (w *Worker) handle(ctx context.Context, msg envelope.TokenizedText) error {
	w.RecordActivity()

	doc := graphstore.Document{
		OriginalID:    msg.OriginalID,
		SourceURL:     msg.SourceURL,
		Sentences:     msg.Sentences,
		Tokens:        msg.Tokens,
		ProcessedAtMs: msg.TimestampMs,
	}
	if err := w.store.Persist(ctx, doc); err != nil {
		return symerrors.Wrap(err, "knowledgegraph", "handle", "persist document")
	}
	w.Logger().Info("persisted document graph",
		"original_id", msg.OriginalID, "sentences", len(msg.Sentences), "tokens", len(msg.Tokens))
	return nil
}
