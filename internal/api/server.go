// Package api exposes the knowledge store over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/harvest"
	"github.com/sells-group/failure-kb/internal/store"
)

// Harvester runs a harvest of failed test cases.
type Harvester interface {
	Run(ctx context.Context, projectIDs []string) (*harvest.Summary, error)
}

// Server serves the store's tool surface as JSON.
type Server struct {
	store         *store.Store
	harvester     Harvester
	retentionDays int
	origins       []string

	// writeMu serializes mutating requests; the store assumes one writer.
	writeMu sync.Mutex
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithHarvester enables POST /harvest.
func WithHarvester(h Harvester) Option {
	return func(s *Server) {
		s.harvester = h
	}
}

// WithRetentionDays sets the default age for POST /maintenance/cleanup.
func WithRetentionDays(days int) Option {
	return func(s *Server) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithAllowedOrigins sets the CORS allowed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// NewServer builds the router over st.
func NewServer(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:         st,
		retentionDays: 30,
		origins:       []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/testcases/{name}", func(r chi.Router) {
		r.Get("/", s.handleTestCaseHistory)
		r.Get("/notes", s.handleTesterNotes)
		r.Post("/bug-status", s.handleUpdateBugStatus)
	})

	r.Get("/failures/{id}", s.handleFailureHistory)
	r.Post("/failures/{id}/analysis", s.handleSaveAnalysis)
	r.Post("/failures", s.handleSaveFailure)
	r.Get("/similar", s.handleSimilar)

	r.Get("/stats", s.handleFailureStats)
	r.Get("/stats/bugs", s.handleBugStats)

	r.Post("/harvest", s.handleHarvest)

	r.Route("/maintenance", func(r chi.Router) {
		r.Post("/cleanup", s.handleCleanup)
		r.Post("/wipe", s.handleWipe)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
