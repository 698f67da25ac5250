package perception

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/envelope"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.pages[url])), nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func collectRawText(t *testing.T, bus *natsclient.InProcBus) (<-chan envelope.RawText, func()) {
	t.Helper()
	out := make(chan envelope.RawText, 16)
	sub, err := bus.Subscribe(context.Background(), envelope.SubjectRawText,
		func(_ context.Context, msg natsclient.Message) {
			var rt envelope.RawText
			if json.Unmarshal(msg.Data, &rt) == nil {
				out <- rt
			}
		})
	require.NoError(t, err)
	return out, func() { sub.Unsubscribe() }
}

func startWorker(t *testing.T, bus *natsclient.InProcBus, fetcher Fetcher) *Worker {
	t.Helper()
	w := New(component.Dependencies{Bus: bus}, Config{RatePerSecond: 1000}, WithFetcher(fetcher))
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Stop(time.Second) })
	return w
}

func publishTask(t *testing.T, bus *natsclient.InProcBus, url string) {
	t.Helper()
	data, err := json.Marshal(envelope.NewUrlTask(url))
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), envelope.SubjectPerceiveURL, data))
}

func TestWorkerPublishesExtractedText(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com": "<html><body><article><p>Hello world.</p></article></body></html>",
	}}
	startWorker(t, bus, fetcher)
	out, cancel := collectRawText(t, bus)
	defer cancel()

	publishTask(t, bus, "https://example.com")

	select {
	case rt := <-out:
		assert.Equal(t, "https://example.com", rt.SourceURL)
		assert.Equal(t, "Hello world.", rt.RawText)
		assert.NotEmpty(t, rt.ID)
		assert.NotZero(t, rt.TimestampMs)
	case <-time.After(2 * time.Second):
		t.Fatal("no raw text published")
	}
}

func TestWorkerSkipsEmptyPages(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://empty.example": "<html><body></body></html>",
	}}
	startWorker(t, bus, fetcher)
	out, cancel := collectRawText(t, bus)
	defer cancel()

	publishTask(t, bus, "https://empty.example")

	// Give the handler time to run; nothing may arrive.
	select {
	case rt := <-out:
		t.Fatalf("unexpected publish for empty page: %+v", rt)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, []string{"https://empty.example"}, fetcher.fetched())
}

func TestWorkerDropsBlankURLWithoutFetching(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	fetcher := &fakeFetcher{}
	startWorker(t, bus, fetcher)

	publishTask(t, bus, "   ")
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, fetcher.fetched())
}

func TestWorkerSurvivesFetchFailure(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	startWorker(t, bus, fetcher)
	out, cancel := collectRawText(t, bus)
	defer cancel()

	publishTask(t, bus, "https://down.example")
	time.Sleep(100 * time.Millisecond)

	// The loop keeps running; a later good task still goes through.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.pages = map[string]string{"https://up.example": "<p>back up</p>"}
	fetcher.mu.Unlock()

	publishTask(t, bus, "https://up.example")
	select {
	case rt := <-out:
		assert.Equal(t, "https://up.example", rt.SourceURL)
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped processing after a fetch failure")
	}
}
