package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/clausegest/internal/config"
	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
	"github.com/dgallion1/clausegest/internal/pipeline"
	"github.com/dgallion1/clausegest/internal/store"
)

// Catalog is the read and delete side of the chunk index.
type Catalog interface {
	ListDocuments(ctx context.Context, userID string) ([]store.DocumentRecord, error)
	GetDocument(ctx context.Context, docID string) (store.DocumentRecord, error)
	ListChunks(ctx context.Context, docID, clause string) ([]doctree.Chunk, error)
	ListReferences(ctx context.Context, docID string) ([]legal.Edge, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// Server is the HTTP API server for clausegest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	catalog      Catalog // nil when the index backend cannot be queried
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, catalog Catalog, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		catalog:      catalog,
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
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/chunk", s.handleChunk)
		r.Post("/api/analyze", s.handleAnalyze)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/stats/chunking", s.handleChunkingStats)

		r.Route("/api/documents", func(r chi.Router) {
			r.Use(s.requireCatalog)
			r.Get("/", s.handleListDocuments)
			r.Get("/{docID}", s.handleGetDocument)
			r.Get("/{docID}/chunks", s.handleListChunks)
			r.Get("/{docID}/references", s.handleListReferences)
			r.Delete("/{docID}", s.handleDeleteDocument)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"index_backend": s.cfg.IndexBackend,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
