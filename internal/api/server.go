package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dasos/peek/internal/metrics"
	"github.com/dasos/peek/pkg/schema"
	"github.com/dasos/peek/pkg/store"
)

// defaultHeartbeat is the interval between SSE keepalive comments.
const defaultHeartbeat = 15 * time.Second

// Server holds the handlers' shared dependencies.
type Server struct {
	store     *store.Store
	registry  *schema.Registry
	metrics   *metrics.Metrics
	log       *slog.Logger
	heartbeat time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and handler logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHeartbeat sets the SSE keepalive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New creates an API server over the store and the loaded source registry.
func New(st *store.Store, reg *schema.Registry, m *metrics.Metrics, opts ...Option) *Server {
	s := &Server{
		store:     st,
		registry:  reg,
		metrics:   m,
		log:       slog.Default(),
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", s.listAll)
		r.Get("/stream", s.streamAll)
		r.Post("/{slug}", s.ingest)
		r.Get("/{slug}", s.list)
		r.Get("/{slug}/stream", s.stream)
		r.Get("/{slug}/{id}", s.get)
		r.Delete("/{slug}/{id}", s.delete)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
