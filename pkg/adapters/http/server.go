// Package http exposes the helper services over a chi router: token
// accounting, text extraction, history with a live event stream, limiter
// statistics and host information.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agent2000/agent2000"
	"github.com/agent2000/agent2000/internal/logging"
	"github.com/agent2000/agent2000/pkg/apperr"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/agent2000/agent2000/pkg/ratelimit"
	"github.com/agent2000/agent2000/pkg/tokens"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// APILimiterName is the registry name of the limiter guarding API routes.
const APILimiterName = "api"

const maxBodyBytes = 1 << 20

//go:embed static/index.html
var indexHTML []byte

// Deps are the services the handlers delegate to.
type Deps struct {
	History  *history.Manager
	Limiters *ratelimit.Registry
	// APILimit configures the "api" limiter in Limiters.
	APILimit ratelimit.Config
	// Model is used when a request does not name one.
	Model string
	// MaxInputSize bounds text fields; zero means the sanitize default.
	MaxInputSize int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request errors and stream events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server holds the handlers and their shared state.
type Server struct {
	deps    Deps
	limiter *ratelimit.Limiter
	spec    *openapi3.T
	Streams *StreamManager
	metrics *metrics
	logger  *slog.Logger

	unlisten func()
	handler  http.Handler
}

// NewServer validates the embedded API document and wires the router. History
// additions are broadcast to /history/events subscribers until Close.
func NewServer(ctx context.Context, deps Deps, opts ...Option) (*Server, error) {
	if deps.History == nil {
		return nil, errors.New("history manager is required")
	}
	if deps.Limiters == nil {
		deps.Limiters = ratelimit.NewRegistry()
	}
	if deps.APILimit.MaxRequests == 0 {
		deps.APILimit = ratelimit.DefaultConfig()
	}
	if deps.Model == "" {
		deps.Model = tokens.DefaultModel
	}

	spec, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:   deps,
		spec:   spec,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = deps.Limiters.Get(APILimiterName, deps.APILimit)
	s.Streams = NewStreamManager(s.logger)
	s.metrics = newMetrics(deps.History.Len)
	s.unlisten = deps.History.AddListener(s.broadcastEntry)
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops forwarding history events.
func (s *Server) Close() {
	s.unlisten()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Use(s.metrics.instrument)

	r.Get("/", s.ServeUI)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", s.ServeSpec)
	r.Get("/swagger", s.ServeSwagger)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		s.post(r, "/tokens/count", s.CountTokens)
		s.post(r, "/tokens/truncate", s.TruncateText)
		s.post(r, "/extract", s.Extract)

		r.Get("/history", s.ListHistory)
		s.post(r, "/history", s.AddHistory)
		r.Delete("/history", s.ClearHistory)
		r.Get("/history/events", s.HistoryEvents)
		r.Get("/history/{id}", s.GetHistoryEntry)

		r.Get("/ratelimit", s.GetRateLimits)
		r.Get("/system", s.GetSystem)
	})
	return r
}

// post registers a JSON endpoint validated against its OpenAPI body schema.
func (s *Server) post(r chi.Router, path string, h http.HandlerFunc) {
	r.With(s.validateBody(bodySchema(s.spec, path, http.MethodPost))).Post(path, h)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			wait := s.limiter.WaitTime()
			s.metrics.rejections.WithLabelValues(APILimiterName).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			s.writeError(w, apperr.RateLimit("", wait, s.limiter.Config().MaxRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeUI serves the embedded landing page.
func (s *Server) ServeUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "agent2000",
		"version":     strings.TrimSpace(agent2000.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError renders err with the application error envelope.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr := apperr.Handle(err, "", nil)
	status := apperr.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	} else {
		s.logger.Debug("request rejected", "code", appErr.Code, "error", err)
	}
	s.writeJSON(w, status, appErr.ToMap())
}

func (s *Server) broadcastEntry(e *history.Entry) {
	b, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("failed to encode history event", "id", e.ID, "error", err)
		return
	}
	s.Streams.Broadcast(e.Type, string(b))
}

// keepAlive is how often idle SSE streams get a comment line.
var keepAlive = 15 * time.Second
