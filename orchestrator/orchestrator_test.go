package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

func testConfig() Config {
	return Config{
		EmbedTimeout:  100 * time.Millisecond,
		SearchTimeout: 100 * time.Millisecond,
	}
}

func newTestOrchestrator(bus natsclient.Bus, cfg Config) *Orchestrator {
	return New(bus, cfg, WithLogger(slog.New(slog.DiscardHandler)))
}

// serveEmbedding answers query-embedding requests with a fixed vector and
// records the request ids it saw.
func serveEmbedding(t *testing.T, bus *natsclient.InProcBus, vec []float32, seen *atomic.Value) {
	t.Helper()
	_, err := bus.Subscribe(context.Background(), envelope.SubjectQueryEmbedding,
		func(ctx context.Context, msg natsclient.Message) {
			var task envelope.QueryForEmbeddingTask
			require.NoError(t, json.Unmarshal(msg.Data, &task))
			if seen != nil {
				seen.Store(task.RequestID)
			}
			data, err := json.Marshal(envelope.QueryEmbeddingResult{
				RequestID: task.RequestID,
				Embedding: vec,
				ModelName: "test-model",
			})
			require.NoError(t, err)
			require.NoError(t, bus.Publish(ctx, msg.Reply, data))
		})
	require.NoError(t, err)
}

// serveSearch answers vector-search requests with n ranked points.
func serveSearch(t *testing.T, bus *natsclient.InProcBus, seen *atomic.Value) {
	t.Helper()
	_, err := bus.Subscribe(context.Background(), envelope.SubjectSemanticSearch,
		func(ctx context.Context, msg natsclient.Message) {
			var task envelope.SearchTask
			require.NoError(t, json.Unmarshal(msg.Data, &task))
			if seen != nil {
				seen.Store(task.RequestID)
			}
			results := make([]envelope.ResultItem, task.TopK)
			for i := range results {
				results[i] = envelope.ResultItem{PointID: "p", Score: 0.9}
			}
			data, err := json.Marshal(envelope.SearchResult{
				RequestID: task.RequestID,
				Results:   results,
			})
			require.NoError(t, err)
			require.NoError(t, bus.Publish(ctx, msg.Reply, data))
		})
	require.NoError(t, err)
}

func TestSearch_SuccessPropagatesGeneratedID(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	var embedSaw, searchSaw atomic.Value
	serveEmbedding(t, bus, []float32{0.1, 0.2}, &embedSaw)
	serveSearch(t, bus, &searchSaw)

	orch := newTestOrchestrator(bus, testConfig())
	resp, err := orch.Search(context.Background(), envelope.SearchRequest{QueryText: "hello", TopK: 5})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SearchRequestID)
	assert.Empty(t, resp.ErrorMessage)
	assert.Len(t, resp.Results, 5)
	assert.Equal(t, resp.SearchRequestID, embedSaw.Load(), "embedding hop saw a different correlation id")
	assert.Equal(t, resp.SearchRequestID, searchSaw.Load(), "search hop saw a different correlation id")
}

func TestSearch_EmbeddingTimeoutShortCircuits(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	// No embedding responder; count publishes on the search subject.
	var searchPublishes atomic.Int64
	_, err := bus.Subscribe(context.Background(), envelope.SubjectSemanticSearch,
		func(context.Context, natsclient.Message) { searchPublishes.Add(1) })
	require.NoError(t, err)

	orch := newTestOrchestrator(bus, testConfig())
	resp, err := orch.Search(context.Background(), envelope.SearchRequest{QueryText: "hello", TopK: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SearchRequestID)
	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.ErrorMessage, "embedding")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, searchPublishes.Load(), "search subject must receive zero publishes on embedding failure")
}

func TestSearch_EmbeddingRemoteErrorNamesHop(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	_, err := bus.Subscribe(context.Background(), envelope.SubjectQueryEmbedding,
		func(ctx context.Context, msg natsclient.Message) {
			data, _ := json.Marshal(envelope.QueryEmbeddingResult{ErrorMessage: "model crashed"})
			_ = bus.Publish(ctx, msg.Reply, data)
		})
	require.NoError(t, err)

	orch := newTestOrchestrator(bus, testConfig())
	resp, err := orch.Search(context.Background(), envelope.SearchRequest{QueryText: "hello", TopK: 3})
	require.NoError(t, err)

	assert.Contains(t, resp.ErrorMessage, "embedding resolution failed")
	assert.Contains(t, resp.ErrorMessage, "model crashed")
}

func TestSearch_EmptyEmbeddingWithoutErrorIsContractViolation(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	serveEmbedding(t, bus, nil, nil)

	var searchPublishes atomic.Int64
	_, err := bus.Subscribe(context.Background(), envelope.SubjectSemanticSearch,
		func(context.Context, natsclient.Message) { searchPublishes.Add(1) })
	require.NoError(t, err)

	orch := newTestOrchestrator(bus, testConfig())
	resp, err := orch.Search(context.Background(), envelope.SearchRequest{QueryText: "hello", TopK: 3})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.ErrorMessage, "neither an embedding nor an error")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, searchPublishes.Load())
}

func TestSearch_VectorHopFailureNamesHop(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	serveEmbedding(t, bus, []float32{0.5}, nil)
	// No search responder; hop 2 times out.

	orch := newTestOrchestrator(bus, testConfig())
	resp, err := orch.Search(context.Background(), envelope.SearchRequest{QueryText: "hello", TopK: 3})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.ErrorMessage, "vector search failed")
	assert.NotEmpty(t, resp.SearchRequestID)
}

func TestSearch_ValidationRejectedBeforeBus(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	var embedPublishes atomic.Int64
	_, err := bus.Subscribe(context.Background(), envelope.SubjectQueryEmbedding,
		func(context.Context, natsclient.Message) { embedPublishes.Add(1) })
	require.NoError(t, err)

	orch := newTestOrchestrator(bus, testConfig())

	cases := []envelope.SearchRequest{
		{QueryText: "", TopK: 3},
		{QueryText: "   ", TopK: 3},
		{QueryText: "ok", TopK: 0},
	}
	for _, req := range cases {
		_, err := orch.Search(context.Background(), req)
		require.Error(t, err)
		assert.True(t, symerrors.IsValidation(err), "expected validation kind, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, embedPublishes.Load(), "invalid input must never reach the bus")
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateStart:                 "start",
		StateEmbeddingRequested:    "embedding_requested",
		StateVectorSearchRequested: "vector_search_requested",
		StateDone:                  "done",
		StateFailed:                "failed",
		State(42):                  "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, envelope.SubjectQueryEmbedding, cfg.EmbedSubject)
	assert.Equal(t, envelope.SubjectSemanticSearch, cfg.SearchSubject)
	assert.Equal(t, 15*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, 20*time.Second, cfg.SearchTimeout)
}
