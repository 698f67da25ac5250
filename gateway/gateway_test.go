package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/codename-symbiont/envelope"
	"github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/health"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

type fakeSearcher struct {
	resp envelope.SearchResponse
	err  error
	got  envelope.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req envelope.SearchRequest) (envelope.SearchResponse, error) {
	f.got = req
	return f.resp, f.err
}

func newTestServer(t *testing.T, bus *natsclient.InProcBus, searcher Searcher, monitor *health.Monitor) *httptest.Server {
	t.Helper()
	srv, err := New(Config{Bus: bus, Searcher: searcher, Monitor: monitor})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func subscribe[T any](t *testing.T, bus *natsclient.InProcBus, subject string) <-chan T {
	t.Helper()
	out := make(chan T, 16)
	_, err := bus.Subscribe(context.Background(), subject,
		func(_ context.Context, msg natsclient.Message) {
			var env T
			if json.Unmarshal(msg.Data, &env) == nil {
				out <- env
			}
		})
	require.NoError(t, err)
	return out
}

func TestSubmitURLPublishesTask(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	tasks := subscribe[envelope.UrlTask](t, bus, envelope.SubjectPerceiveURL)
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	resp, body := postJSON(t, ts.URL+"/api/submit_url", `{"url":"  http://example.test/a  "}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "URL received", body["status"])
	assert.Equal(t, "http://example.test/a", body["url"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	select {
	case task := <-tasks:
		assert.Equal(t, "http://example.test/a", task.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("no url task published")
	}
}

func TestSubmitURLRejectsBlank(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	tasks := subscribe[envelope.UrlTask](t, bus, envelope.SubjectPerceiveURL)
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	resp, body := postJSON(t, ts.URL+"/api/submit_url", `{"url":"   "}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "url")

	select {
	case task := <-tasks:
		t.Fatalf("unexpected publish for blank url: %+v", task)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubmitURLRejectsMalformedJSON(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	resp, _ := postJSON(t, ts.URL+"/api/submit_url", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateTextAssignsFreshTaskID(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	tasks := subscribe[envelope.GenerateTextTask](t, bus, envelope.SubjectGenerateText)
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	resp1, body1 := postJSON(t, ts.URL+"/api/generate_text", `{"prompt":"hello","max_length":50}`)
	resp2, body2 := postJSON(t, ts.URL+"/api/generate_text", `{"max_length":50}`)

	assert.Equal(t, http.StatusAccepted, resp1.StatusCode)
	assert.Equal(t, http.StatusAccepted, resp2.StatusCode)
	assert.NotEmpty(t, body1["task_id"])
	assert.NotEqual(t, body1["task_id"], body2["task_id"])

	seen := map[string]envelope.GenerateTextTask{}
	for len(seen) < 2 {
		select {
		case task := <-tasks:
			seen[task.TaskID] = task
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 published tasks, got %d", len(seen))
		}
	}
	first, ok := seen[body1["task_id"].(string)]
	require.True(t, ok)
	require.NotNil(t, first.Prompt)
	assert.Equal(t, "hello", *first.Prompt)
}

func TestGenerateTextRejectsMaxLengthBounds(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	for _, body := range []string{`{"max_length":0}`, `{"max_length":1001}`} {
		resp, decoded := postJSON(t, ts.URL+"/api/generate_text", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, decoded["error"], "max_length")
	}
}

func TestSearchReturnsOrchestratorResponse(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	searcher := &fakeSearcher{resp: envelope.SearchResponse{
		SearchRequestID: "sr-1",
		Results: []envelope.ResultItem{
			{PointID: "p1", Score: 0.9, Payload: envelope.PointPayload{SentenceText: "hit"}},
		},
	}}
	ts := newTestServer(t, bus, searcher, nil)

	resp, body := postJSON(t, ts.URL+"/api/search", `{"query_text":"find","top_k":3}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sr-1", body["search_request_id"])
	assert.Equal(t, "find", searcher.got.QueryText)
	assert.Equal(t, uint32(3), searcher.got.TopK)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 1)
}

func TestSearchOrchestrationFailureStaysHTTP200(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	searcher := &fakeSearcher{resp: envelope.SearchResponse{
		SearchRequestID: "sr-2",
		ErrorMessage:    "embedding request failed",
	}}
	ts := newTestServer(t, bus, searcher, nil)

	resp, body := postJSON(t, ts.URL+"/api/search", `{"query_text":"find","top_k":3}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "embedding request failed", body["error_message"])
	results, ok := body["results"].([]any)
	require.True(t, ok)
	assert.Empty(t, results)
}

func TestSearchValidationFailureIs400(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	searcher := &fakeSearcher{}
	ts := newTestServer(t, bus, searcher, nil)

	resp, body := postJSON(t, ts.URL+"/api/search", `{"query_text":"","top_k":3}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "query_text")
	assert.Empty(t, searcher.got.QueryText)
}

func TestSearchInternalErrorSanitized(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	searcher := &fakeSearcher{err: errors.WrapFatal(
		errors.ErrInvalidData, "orchestrator", "Search", "secret host 10.0.0.1 exploded")}
	ts := newTestServer(t, bus, searcher, nil)

	resp, body := postJSON(t, ts.URL+"/api/search", `{"query_text":"find","top_k":3}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["error"])
}

func TestHealthzReportsAggregate(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("perception", "running")
	ts := newTestServer(t, bus, &fakeSearcher{}, monitor)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	monitor.UpdateUnhealthy("perception", "bus lost")
	resp2, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestRequestIDPropagated(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/search",
		strings.NewReader(`{"query_text":"find","top_k":1}`))
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get("X-Request-ID"))
}

func TestOversizedBodyRejected(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	ts := newTestServer(t, bus, &fakeSearcher{}, nil)

	big := `{"url":"` + strings.Repeat("a", MaxRequestSize+2) + `"}`
	resp, _ := postJSON(t, ts.URL+"/api/submit_url", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
