// Package server exposes the order book engine over HTTP.
package server

import (
	"net/http"

	"github.com/erain9/bookd/pkg/engine"
	"github.com/erain9/bookd/pkg/logging"
	"github.com/erain9/bookd/pkg/otel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxUploadBytes bounds the body of POST /upload
const DefaultMaxUploadBytes = 1 << 20

// Server routes HTTP requests to an engine
type Server struct {
	engine         *engine.Engine
	router         chi.Router
	metrics        *otel.HTTPServerMetrics
	staticDir      string
	maxUploadBytes int64
}

// Option configures a Server
type Option func(*Server)

// WithStaticDir serves the files under dir at /static/
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMetrics records request metrics on m
func WithMetrics(m *otel.HTTPServerMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a Server for e
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:         e,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware)
	if s.metrics != nil {
		r.Use(s.metricsMiddleware)
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/order_entry", s.handleOrderEntry)
	r.Get("/order_book/{format}", s.handleOrderBook)
	r.Get("/reset", s.handleReset)
	r.Post("/upload", s.handleUpload)

	if s.staticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}

	r.NotFound(s.handleNotFound)
	return r
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		finish := s.metrics.StartRequest(r.Context(), r.Method)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		finish(route, status)
	})
}
