// Package http serves the respondent and editor API over chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/runtime"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/editor"
	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/reasoning"
	"github.com/aretw0/inquiry/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodySize bounds request bodies; graph documents are the largest payload.
const maxBodySize = 4 << 20

// Server holds the collaborators behind the API.
type Server struct {
	repo      ports.Repository
	sessions  *session.Manager
	summaries kv.Backend
	reasoning *reasoning.Client
	logger    *slog.Logger
	version   string

	autosaveQuiet time.Duration
	metrics       http.Handler

	mu      sync.Mutex
	editors map[string]*editorEntry
}

type editorEntry struct {
	session *editor.Session
	fixer   *reasoning.Subscription
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReasoning enables editor auto-fix through client.
func WithReasoning(client *reasoning.Client) Option {
	return func(s *Server) {
		s.reasoning = client
	}
}

// WithAutosaveQuiet sets the autosave window of editor sessions.
func WithAutosaveQuiet(d time.Duration) Option {
	return func(s *Server) {
		s.autosaveQuiet = d
	}
}

// WithVersion is reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithMetricsHandler also mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a server. Summaries are kept in backend.
func NewServer(repo ports.Repository, sessions *session.Manager, backend kv.Backend, opts ...Option) *Server {
	s := &Server{
		repo:          repo,
		sessions:      sessions,
		summaries:     backend,
		logger:        logging.NewNop(),
		version:       "dev",
		autosaveQuiet: editor.DefaultQuiet,
		editors:       make(map[string]*editorEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(enableCORS)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/inquiries/{inquiryID}", func(r chi.Router) {
		r.Get("/graph", s.getGraph)
		r.Put("/graph", s.putGraph)
		r.Post("/validate", s.validate)
		r.Get("/responses", s.listResponses)
		r.Post("/sessions", s.createSession)

		r.Route("/editor", func(r chi.Router) {
			r.Get("/", s.editorState)
			r.Post("/commands", s.editorCommand)
			r.Post("/undo", s.editorUndo)
			r.Post("/redo", s.editorRedo)
			r.Post("/publish", s.editorPublish)
			r.Post("/autofix", s.editorAutoFix)
			r.Delete("/", s.editorClose)
		})

		r.Get("/summaries", s.listSummaries)
		r.Get("/summaries/{nodeID}", s.getSummary)
		r.Put("/summaries/{nodeID}", s.putSummary)
	})

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Post("/begin", s.beginSession)
		r.Post("/responses", s.submitResponse)
		r.Get("/events", s.sessionEvents)
		r.Delete("/", s.deleteSession)
	})
	return r
}

// Close flushes and closes open editor sessions.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	editors := s.editors
	s.editors = make(map[string]*editorEntry)
	s.mu.Unlock()

	var errs []error
	for id, e := range editors {
		if err := e.session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("editor %s: %w", id, err))
		}
		if e.fixer != nil {
			e.fixer.Close()
		}
	}
	return errors.Join(errs...)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// -- Helpers --

type errorBody struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var structural *domain.StructuralError
	switch {
	case errors.As(err, &structural):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInquiryNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTerminated),
		errors.Is(err, domain.ErrNotAwaitingResponse),
		errors.Is(err, runtime.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRespondentDetails), errors.Is(err, domain.ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateNode),
		errors.Is(err, domain.ErrDuplicateEdge),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrNoFixer):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var structural *domain.StructuralError
	if errors.As(err, &structural) {
		body.Errors = structural.Errors
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("%s: %v", msg, err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
