// Package vectormemory persists sentence embeddings into the vector store
// and answers semantic search requests over the bus.
package vectormemory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/pkg/vectorstore"
	"github.com/makkenzo/codename-symbiont/service"
)

// Worker bridges embedding events and search requests to the vector store.
type Worker struct {
	*service.Base
	bus   natsclient.Bus
	store vectorstore.VectorStore

	storeLoop  *dispatch.Loop[envelope.TextWithEmbeddings]
	searchLoop *dispatch.Loop[envelope.SearchTask]
}

// New builds the vector memory worker on top of the given store.
func New(deps component.Dependencies, store vectorstore.VectorStore) *Worker {
	logger := deps.GetLoggerWithComponent("vectormemory")

	w := &Worker{
		Base: service.NewBase("vectormemory",
			service.WithLogger(logger),
			service.WithMetrics(deps.MetricsRegistry)),
		bus:   deps.Bus,
		store: store,
	}

	w.storeLoop = dispatch.New("vectormemory-store", envelope.SubjectTextWithEmbeddings, deps.Bus,
		w.handleEmbeddings, dispatch.WithLogger[envelope.TextWithEmbeddings](logger),
		dispatch.WithMetrics[envelope.TextWithEmbeddings](deps.DispatchMetrics))
	w.searchLoop = dispatch.NewWithReply("vectormemory-search", envelope.SubjectSemanticSearch, deps.Bus,
		w.handleSearch, dispatch.WithLogger[envelope.SearchTask](logger),
		dispatch.WithMetrics[envelope.SearchTask](deps.DispatchMetrics))
	return w
}

// Start brings up the base service and both loops.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Base.Start(ctx); err != nil {
		return err
	}
	if err := w.storeLoop.Start(ctx); err != nil {
		return err
	}
	return w.searchLoop.Start(ctx)
}

// Stop tears down both loops, then the base service and the store.
func (w *Worker) Stop(timeout time.Duration) error {
	var firstErr error
	for _, stop := range []func(time.Duration) error{w.storeLoop.Stop, w.searchLoop.Stop, w.Base.Stop} {
		if err := stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := w.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// handleEmbeddings upserts one point per sentence embedding. Point ids are
// fresh UUIDs, so redelivery of the same document stores duplicate points.
func (w *Worker) handleEmbeddings(ctx context.Context, msg envelope.TextWithEmbeddings) error {
	w.RecordActivity()
	if len(msg.EmbeddingsData) == 0 {
		w.Logger().Warn("embedding event with no data", "original_id", msg.OriginalID)
		return nil
	}

	points := make([]vectorstore.Point, 0, len(msg.EmbeddingsData))
	for i, se := range msg.EmbeddingsData {
		points = append(points, vectorstore.Point{
			ID:        uuid.NewString(),
			Embedding: se.Embedding,
			Payload: envelope.PointPayload{
				OriginalDocumentID: msg.OriginalID,
				SourceURL:          msg.SourceURL,
				SentenceText:       se.SentenceText,
				SentenceOrder:      uint32(i),
				ModelName:          msg.ModelName,
				ProcessedAtMs:      msg.TimestampMs,
			},
		})
	}

	if err := w.store.Upsert(ctx, points); err != nil {
		return symerrors.Wrap(err, "vectormemory", "handleEmbeddings", "upsert points")
	}
	w.Logger().Info("stored embeddings", "original_id", msg.OriginalID, "points", len(points))
	return nil
}

// handleSearch replies with ranked results or an error message, never both.
// Tasks without a reply subject are dropped.
func (w *Worker) handleSearch(ctx context.Context, task envelope.SearchTask, reply string) error {
	w.RecordActivity()
	if reply == "" {
		w.Logger().Warn("search task without reply subject", "request_id", task.RequestID)
		return nil
	}

	result := envelope.SearchResult{RequestID: task.RequestID, Results: []envelope.ResultItem{}}
	if err := task.Validate(); err != nil {
		result.ErrorMessage = err.Error()
	} else if items, err := w.store.Search(ctx, task.QueryEmbedding, int(task.TopK)); err != nil {
		result.ErrorMessage = err.Error()
	} else {
		result.Results = items
	}

	data, err := json.Marshal(result)
	if err != nil {
		return symerrors.WrapInvalid(err, "vectormemory", "handleSearch", "encode search result")
	}
	return w.bus.Publish(ctx, reply, data)
}
