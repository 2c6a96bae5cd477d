package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docsync/internal/config"
	"github.com/dgallion1/docsync/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LayoutLister lists the layouts available to new documents.
type LayoutLister interface {
	List() ([]string, error)
}

// Server is the HTTP API server for docsync.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	layouts      LayoutLister
	metrics      http.Handler
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. metricsHandler may be nil.
func NewServer(orch *pipeline.Orchestrator, layouts LayoutLister, metricsHandler http.Handler, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		orchestrator: orch,
		layouts:      layouts,
		metrics:      metricsHandler,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DocsyncAPIKey, s.log))
		r.Use(LimitBody(maxRequestBytes))

		r.Get("/api/documents", s.handleListDocuments)
		r.Post("/api/documents", s.handleCreateDocument)
		r.Route("/api/documents/{docID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Post("/sync", s.handleSync)
			r.Get("/verify", s.handleVerify)
			r.Get("/export", s.handleExport)
			r.Post("/bookmarks/{name}/move", s.handleMoveBookmark)
		})

		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Delete("/api/jobs/{jobID}", s.handleCancelJob)

		r.Get("/api/layouts", s.handleListLayouts)
		r.Get("/api/stats/sync", s.handleSyncStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
