// Package server exposes onboarding sessions over HTTP: a JSON API for
// programmatic clients and a form-post endpoint for the html renderer.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/openapi"
	"github.com/goliatone/go-onboard/pkg/orchestrator"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/store"
	"github.com/goliatone/go-onboard/pkg/submission"
)

// Metrics receives request and wizard events. internal/metrics implements it.
type Metrics interface {
	form.Observer
	SessionStarted()
	ObserveRequest(route string, code int, elapsed time.Duration)
	Handler() http.Handler
}

type loaded struct {
	schema   *schema.Schema
	contract *openapi.Contract
}

// Server serves one schema at a time. SetSchema swaps it atomically, which
// is how hot reload is wired.
type Server struct {
	current  atomic.Pointer[loaded]
	orch     *orchestrator.Orchestrator
	sessions *store.Manager
	sink     submission.Sink
	metrics  Metrics
	logger   *zap.Logger
	newID    func() string
	maxForm  int64
	maxBody  int64
}

// Option configures a Server.
type Option func(*Server)

// WithOrchestrator sets the orchestrator used for rendering, contracts and
// visibility rules.
func WithOrchestrator(orch *orchestrator.Orchestrator) Option {
	return func(s *Server) {
		if orch != nil {
			s.orch = orch
		}
	}
}

// WithSessions sets the session manager. Defaults to an in-memory store.
func WithSessions(m *store.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.sessions = m
		}
	}
}

// WithSink sets where submitted payloads are delivered.
func WithSink(sink submission.Sink) Option {
	return func(s *Server) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithMaxFormMemory bounds the memory used to parse multipart form posts.
func WithMaxFormMemory(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxForm = n
		}
	}
}

// WithMaxBodySize caps request bodies, uploads included. Larger requests are
// rejected with 413.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New builds a server for sch.
func New(sch *schema.Schema, opts ...Option) (*Server, error) {
	s := &Server{
		logger:  zap.NewNop(),
		newID:   uuid.NewString,
		maxForm: 32 << 20,
		maxBody: 32 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.orch == nil {
		s.orch = orchestrator.New(orchestrator.WithLogger(s.logger))
	}
	if s.sessions == nil {
		s.sessions = store.NewManager(store.NewMemory(), store.WithLogger(s.logger))
	}
	if s.sink == nil {
		s.sink = submission.LogSink(s.logger)
	}
	if err := s.SetSchema(sch); err != nil {
		return nil, err
	}
	return s, nil
}

// SetSchema validates sch and makes it the schema for new and existing
// sessions. Sessions started against a schema with another id fail to
// restore afterwards.
func (s *Server) SetSchema(sch *schema.Schema) error {
	if sch == nil {
		return errors.New("server: schema is required")
	}
	if sch.ID == "" {
		return errors.New("server: schema id is required")
	}
	contract, err := s.orch.Contract(sch)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.current.Store(&loaded{schema: sch, contract: contract})
	s.logger.Info("schema active", zap.String("schema", sch.ID), zap.Int("steps", len(sch.Steps)))
	return nil
}

// Schema returns the active schema.
func (s *Server) Schema() *schema.Schema {
	return s.current.Load().schema
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.maxBody))
	if s.metrics != nil {
		r.Use(s.observe)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.health)
	r.Get("/schema", s.getSchema)
	r.Get("/contract", s.getContract)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Get("/render", s.renderSession)
			r.Put("/answers", s.putAnswers)
			r.Post("/next", s.transition(opNext))
			r.Post("/back", s.transition(opBack))
			r.Post("/submit", s.submit)
			r.Post("/form", s.postForm)
		})
	})
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, status, time.Since(start))
	})
}
