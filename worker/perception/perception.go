// Package perception ingests URLs: it fetches pages, extracts their visible
// text, and publishes the raw text for downstream processing.
package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/pkg/extract"
	"github.com/makkenzo/codename-symbiont/service"
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher implements Fetcher with a plain http.Client.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher with the given timeout and User-Agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch issues a GET and returns the body. Non-2xx statuses are transient
// errors; the caller decides whether the task is retried upstream.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, symerrors.WrapInvalid(err, "perception", "Fetch", "build request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, symerrors.WrapTransient(err, "perception", "Fetch", "get "+url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, symerrors.WrapTransient(
			fmt.Errorf("unexpected status %d", resp.StatusCode),
			"perception", "Fetch", "get "+url)
	}
	return resp.Body, nil
}

// Config tunes the worker.
type Config struct {
	// RatePerSecond limits outbound fetches across the whole process.
	RatePerSecond float64
	FetchTimeout  time.Duration
	UserAgent     string
}

// Worker subscribes to URL tasks and publishes discovered raw text.
type Worker struct {
	*service.Base
	bus       natsclient.Bus
	fetcher   Fetcher
	extractor extract.Extractor
	limiter   *rate.Limiter
	loop      *dispatch.Loop[envelope.UrlTask]
}

// Option overrides a collaborator, mainly for tests.
type Option func(*Worker)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(w *Worker) { w.fetcher = f }
}

// WithExtractor replaces the HTML extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(w *Worker) { w.extractor = e }
}

// New builds the perception worker.
func New(deps component.Dependencies, cfg Config, opts ...Option) *Worker {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	logger := deps.GetLoggerWithComponent("perception")

	w := &Worker{
		Base: service.NewBase("perception",
			service.WithLogger(logger),
			service.WithMetrics(deps.MetricsRegistry)),
		bus:       deps.Bus,
		fetcher:   NewHTTPFetcher(cfg.FetchTimeout, cfg.UserAgent),
		extractor: extract.NewHTML(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.loop = dispatch.New("perception", envelope.SubjectPerceiveURL, deps.Bus, w.handle,
		dispatch.WithLogger[envelope.UrlTask](logger),
		dispatch.WithMetrics[envelope.UrlTask](deps.DispatchMetrics))
	return w
}

// Start brings up the base service and the dispatch loop.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Base.Start(ctx); err != nil {
		return err
	}
	return w.loop.Start(ctx)
}

// Stop tears the loop down, then the base service.
func (w *Worker) Stop(timeout time.Duration) error {
	loopErr := w.loop.Stop(timeout)
	baseErr := w.Base.Stop(timeout)
	if loopErr != nil {
		return loopErr
	}
	return baseErr
}

func (w *Worker) handle(ctx context.Context, task envelope.UrlTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	w.RecordActivity()

	if err := w.limiter.Wait(ctx); err != nil {
		return symerrors.WrapTransient(err, "perception", "handle", "wait for rate limit")
	}

	body, err := w.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	text, err := w.extractor.Extract(body)
	if err != nil {
		return err
	}
	if text == "" {
		w.Logger().Warn("page yielded no text, skipping", "url", task.URL)
		return nil
	}

	msg := envelope.NewRawText(task.URL, text)
	data, err := json.Marshal(msg)
	if err != nil {
		return symerrors.WrapInvalid(err, "perception", "handle", "encode raw text")
	}
	if err := w.bus.Publish(ctx, envelope.SubjectRawText, data); err != nil {
		return err
	}

	w.Logger().Info("published raw text", "id", msg.ID, "url", task.URL, "bytes", len(msg.RawText))
	return nil
}
