// Package preprocess turns raw page text into tokenized corpus events and
// sentence embeddings, and answers query-embedding requests over the bus.
package preprocess

import (
	"context"
	"encoding/json"
	"time"

	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/pkg/embedding"
	"github.com/makkenzo/codename-symbiont/pkg/timestamp"
	"github.com/makkenzo/codename-symbiont/service"
)

// Worker subscribes to raw text and query-embedding tasks.
type Worker struct {
	*service.Base
	bus      natsclient.Bus
	embedder embedding.Embedder

	rawLoop   *dispatch.Loop[envelope.RawText]
	queryLoop *dispatch.Loop[envelope.QueryForEmbeddingTask]
}

// New builds the preprocess worker around the given embedder.
func New(deps component.Dependencies, embedder embedding.Embedder) *Worker {
	logger := deps.GetLoggerWithComponent("preprocess")

	w := &Worker{
		Base: service.NewBase("preprocess",
			service.WithLogger(logger),
			service.WithMetrics(deps.MetricsRegistry)),
		bus:      deps.Bus,
		embedder: embedder,
	}

	w.rawLoop = dispatch.New("preprocess-raw", envelope.SubjectRawText, deps.Bus, w.handleRawText,
		dispatch.WithLogger[envelope.RawText](logger),
		dispatch.WithMetrics[envelope.RawText](deps.DispatchMetrics))
	w.queryLoop = dispatch.NewWithReply("preprocess-query", envelope.SubjectQueryEmbedding, deps.Bus,
		w.handleQuery, dispatch.WithLogger[envelope.QueryForEmbeddingTask](logger),
		dispatch.WithMetrics[envelope.QueryForEmbeddingTask](deps.DispatchMetrics))
	return w
}

// Start brings up the base service and both loops.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Base.Start(ctx); err != nil {
		return err
	}
	if err := w.rawLoop.Start(ctx); err != nil {
		return err
	}
	return w.queryLoop.Start(ctx)
}

// Stop tears down both loops, then the base service.
func (w *Worker) Stop(timeout time.Duration) error {
	var firstErr error
	for _, stop := range []func(time.Duration) error{w.rawLoop.Stop, w.queryLoop.Stop, w.Base.Stop} {
		if err := stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handleRawText tokenizes the text, publishes the tokenized event, then
// embeds sentences and publishes the embedding event. Tokenization failures
// do not block embedding and vice versa.
func (w *Worker) handleRawText(ctx context.Context, msg envelope.RawText) error {
	w.RecordActivity()

	cleaned := normalize(msg.RawText)
	if cleaned == "" {
		w.Logger().Warn("raw text empty after cleanup, skipping", "id", msg.ID)
		return nil
	}

	sentences := splitSentences(cleaned)
	tokens := tokenize(cleaned)

	tokenized := envelope.TokenizedText{
		OriginalID:  msg.ID,
		SourceURL:   msg.SourceURL,
		Tokens:      tokens,
		Sentences:   sentences,
		TimestampMs: timestamp.Now(),
	}
	if err := w.publish(ctx, envelope.SubjectTokenizedText, tokenized); err != nil {
		w.Logger().Error("tokenized text publish failed", "id", msg.ID, "error", err)
	} else {
		w.Logger().Info("published tokenized text",
			"id", msg.ID, "sentences", len(sentences), "tokens", len(tokens))
	}

	return w.embedAndPublish(ctx, msg, sentences)
}

func (w *Worker) embedAndPublish(ctx context.Context, msg envelope.RawText, sentences []string) error {
	vectors, err := w.embedder.Generate(ctx, sentences)
	if err != nil {
		return symerrors.Wrap(err, "preprocess", "handleRawText", "embed sentences")
	}
	if len(vectors) != len(sentences) {
		return symerrors.WrapKind(symerrors.KindRemote, symerrors.ErrInvalidData,
			"preprocess", "handleRawText", "embedding count mismatch")
	}

	data := make([]envelope.SentenceEmbedding, 0, len(sentences))
	for i, sentence := range sentences {
		if len(vectors[i]) == 0 {
			continue
		}
		data = append(data, envelope.SentenceEmbedding{
			SentenceText: sentence,
			Embedding:    vectors[i],
		})
	}
	if len(data) == 0 {
		w.Logger().Warn("no embeddings produced, skipping publish", "id", msg.ID)
		return nil
	}

	out := envelope.TextWithEmbeddings{
		OriginalID:     msg.ID,
		SourceURL:      msg.SourceURL,
		EmbeddingsData: data,
		ModelName:      w.embedder.Model(),
		TimestampMs:    timestamp.Now(),
	}
	if err := w.publish(ctx, envelope.SubjectTextWithEmbeddings, out); err != nil {
		return err
	}
	w.Logger().Info("published text with embeddings", "id", msg.ID, "embeddings", len(data))
	return nil
}

// handleQuery embeds a single query text and replies with exactly one of
// embedding or error_message. Tasks without a reply subject are dropped.
func (w *Worker) handleQuery(ctx context.Context, task envelope.QueryForEmbeddingTask, reply string) error {
	w.RecordActivity()
	if reply == "" {
		w.Logger().Warn("query embedding task without reply subject", "request_id", task.RequestID)
		return nil
	}

	result := envelope.QueryEmbeddingResult{RequestID: task.RequestID}

	vectors, err := w.embedder.Generate(ctx, []string{task.TextToEmbed})
	switch {
	case err != nil:
		result.ErrorMessage = err.Error()
	case len(vectors) != 1 || len(vectors[0]) == 0:
		result.ErrorMessage = "embedding generation returned no vector"
	default:
		result.Embedding = vectors[0]
		result.ModelName = w.embedder.Model()
	}

	return w.publish(ctx, reply, result)
}

func (w *Worker) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return symerrors.WrapInvalid(err, "preprocess", "publish", "encode "+subject)
	}
	return w.bus.Publish(ctx, subject, data)
}
