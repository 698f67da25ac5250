// Package gateway is the HTTP boundary of the pipeline. It accepts task
// submissions, runs searches through the orchestrator, streams generation
// events, and exposes health and metrics.
//
// Internal error details never cross the boundary. Responses carry sanitized
// messages; the full error stays in the server log.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makkenzo/codename-symbiont/bridge"
	"github.com/makkenzo/codename-symbiont/envelope"
	"github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/health"
	"github.com/makkenzo/codename-symbiont/metric"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

// MaxRequestSize bounds the body of every POST endpoint.
const MaxRequestSize = 1 << 20

// Searcher runs one search workflow. Satisfied by *orchestrator.Orchestrator.
type Searcher interface {
	Search(ctx context.Context, req envelope.SearchRequest) (envelope.SearchResponse, error)
}

// Server wires the HTTP endpoints onto a mux.
type Server struct {
	bus      natsclient.Bus
	searcher Searcher
	bridge   *bridge.Bridge
	monitor  *health.Monitor
	registry *metric.MetricsRegistry
	logger   *slog.Logger

	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// Config carries the listen address and the server dependencies.
type Config struct {
	Addr     string
	Bus      natsclient.Bus
	Searcher Searcher
	Bridge   *bridge.Bridge
	Monitor  *health.Monitor
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger

	// ReadTimeout bounds request header+body reads. Zero means no limit.
	ReadTimeout time.Duration
	// WriteTimeout bounds response writes. Zero means no limit; required
	// zero when the bridge endpoints are served, SSE and WebSocket
	// connections are long-lived.
	WriteTimeout time.Duration
	// ShutdownTimeout bounds graceful drain. Defaults to 5s.
	ShutdownTimeout time.Duration
}

// New builds the gateway server. Bus and Searcher are required; Bridge,
// Monitor, and Registry endpoints are registered only when provided.
func New(cfg Config) (*Server, error) {
	if cfg.Bus == nil {
		return nil, errors.NewValidation("gateway", "bus", "must not be nil")
	}
	if cfg.Searcher == nil {
		return nil, errors.NewValidation("gateway", "searcher", "must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	s := &Server{
		bus:             cfg.Bus,
		searcher:        cfg.Searcher,
		bridge:          cfg.Bridge,
		monitor:         cfg.Monitor,
		registry:        cfg.Registry,
		logger:          logger.With("component", "gateway"),
		shutdownTimeout: shutdownTimeout,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the routed mux. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/submit_url", s.withRequestID(s.handleSubmitURL))
	mux.HandleFunc("POST /api/generate_text", s.withRequestID(s.handleGenerateText))
	mux.HandleFunc("POST /api/search", s.withRequestID(s.handleSearch))
	if s.bridge != nil {
		mux.Handle("GET /api/events", s.bridge.SSEHandler())
		mux.Handle("GET /ws/events", s.bridge.WSHandler())
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			s.registry.PrometheusRegistry(), promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe blocks until the context is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http gateway listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.WrapFatal(err, "gateway", "ListenAndServe", "listener failed")
	}
}

// withRequestID propagates or mints the X-Request-ID header.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			b := make([]byte, 8)
			if _, err := rand.Read(b); err != nil {
				reqID = fmt.Sprintf("req-%d", time.Now().UnixNano())
			} else {
				reqID = hex.EncodeToString(b)
			}
		}
		w.Header().Set("X-Request-ID", reqID)
		next(w, r)
	}
}

type submitURLRequest struct {
	URL string `json:"url"`
}

type submitURLResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

func (s *Server) handleSubmitURL(w http.ResponseWriter, r *http.Request) {
	var req submitURLRequest
	if !s.decode(w, r, &req) {
		return
	}

	task := envelope.NewUrlTask(req.URL)
	if err := task.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.publish(r.Context(), envelope.SubjectPerceiveURL, task); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("url accepted", "url", task.URL)
	s.writeJSON(w, http.StatusAccepted, submitURLResponse{Status: "URL received", URL: task.URL})
}

type generateTextRequest struct {
	Prompt    *string `json:"prompt,omitempty"`
	MaxLength uint32  `json:"max_length"`
}

type generateTextResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

func (s *Server) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if !s.decode(w, r, &req) {
		return
	}

	task := envelope.GenerateTextTask{
		TaskID:    uuid.NewString(),
		Prompt:    req.Prompt,
		MaxLength: req.MaxLength,
	}
	if err := task.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.publish(r.Context(), envelope.SubjectGenerateText, task); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("generation task accepted", "task_id", task.TaskID)
	s.writeJSON(w, http.StatusAccepted, generateTextResponse{
		Status: "Generation task received",
		TaskID: task.TaskID,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req envelope.SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Orchestration failures arrive inside the response, not as an error,
	// and still map to HTTP 200.
	resp, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Results == nil {
		resp.Results = []envelope.ResultItem{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}

	agg := s.monitor.AggregateHealth("symbiont")
	code := http.StatusOK
	if agg.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, agg)
}

func (s *Server) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapInvalid(err, "gateway", "publish", "encode "+subject)
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "gateway", "publish", "publish "+subject)
	}
	return nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestSize+1))
	if err != nil {
		s.writeError(w, r, errors.WrapInvalid(err, "gateway", "decode", "read body"))
		return false
	}
	if len(body) > MaxRequestSize {
		s.writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, r, errors.WrapKind(errors.KindDecode, err, "gateway", "decode", "decode body"))
		return false
	}
	return true
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.IsValidation(err), errors.IsDecode(err), errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeFor returns a client-safe message. Validation messages pass through
// after redaction; everything else collapses to a generic phrase.
func sanitizeFor(err error) string {
	switch {
	case errors.IsValidation(err), errors.IsDecode(err), errors.IsInvalid(err):
		return health.SanitizeMessage(err.Error())
	case errors.IsTimeout(err):
		return "request timeout"
	case errors.IsTransient(err):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		"path", r.URL.Path, "request_id", w.Header().Get("X-Request-ID"), "error", err)
	s.writeJSONError(w, statusFor(err), sanitizeFor(err))
}

func (s *Server) writeJSONError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]any{"error": message, "status": code})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response write failed", "error", err)
	}
}
