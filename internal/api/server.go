package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/draftroom/draftroom/internal/autosave"
	"github.com/draftroom/draftroom/internal/commit"
	"github.com/draftroom/draftroom/internal/draft"
	"github.com/draftroom/draftroom/internal/ingest"
	"github.com/draftroom/draftroom/internal/model"
	"github.com/draftroom/draftroom/internal/store"
)

// maxRequestBody is the maximum allowed request body size (32 MB, uploads included).
const maxRequestBody int64 = 32 << 20

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store     store.Repository
	drafts    *draft.Service
	ingestor  *ingest.Ingestor
	pipeline  *commit.Pipeline
	bulk      *commit.Bulk
	scheduler *autosave.Scheduler
	mux       *http.ServeMux
}

// New creates a new API server.
func New(st store.Repository, drafts *draft.Service, ing *ingest.Ingestor, pipeline *commit.Pipeline, bulk *commit.Bulk, scheduler *autosave.Scheduler) *Server {
	srv := &Server{
		store:     st,
		drafts:    drafts,
		ingestor:  ing,
		pipeline:  pipeline,
		bulk:      bulk,
		scheduler: scheduler,
		mux:       http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(limitBody(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/batches", s.handleCreateBatch)
	s.mux.HandleFunc("GET /api/batches", s.handleListBatches)
	s.mux.HandleFunc("DELETE /api/batches/{id}", s.handleDeleteBatch)
	s.mux.HandleFunc("POST /api/batches/{id}/commit", s.handleBulkCommit)
	s.mux.HandleFunc("POST /api/batches/{id}/files", s.handleUploadFile)

	s.mux.HandleFunc("GET /api/drafts", s.handleListDrafts)
	s.mux.HandleFunc("GET /api/drafts/{id}", s.handleGetDraft)
	s.mux.HandleFunc("POST /api/drafts/{id}/open", s.handleOpenDraft)
	s.mux.HandleFunc("PATCH /api/drafts/{id}", s.handleEditDraft)
	s.mux.HandleFunc("POST /api/drafts/{id}/save", s.handleSaveDraft)
	s.mux.HandleFunc("POST /api/drafts/{id}/review", s.handleMarkReviewed)
	s.mux.HandleFunc("POST /api/drafts/{id}/discard", s.handleDiscard)
	s.mux.HandleFunc("POST /api/drafts/{id}/sections/detect", s.handleDetectSections)
	s.mux.HandleFunc("POST /api/drafts/{id}/sections/{sid}/toggle", s.handleToggleSection)
	s.mux.HandleFunc("POST /api/drafts/{id}/rewrite", s.handleRewrite)
	s.mux.HandleFunc("POST /api/drafts/{id}/template", s.handleApplyTemplate)
	s.mux.HandleFunc("POST /api/drafts/{id}/commit", s.handleCommit)

	s.mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	s.mux.HandleFunc("GET /api/storage", s.handleStorage)
	s.mux.HandleFunc("POST /api/clear", s.handleClearAll)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers. The allowed origin is configurable via the
// CORS_ORIGIN environment variable; defaults to "*" for development.
func corsMiddleware(next http.Handler) http.Handler {
	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses; everything else is
// surfaced verbatim as a 500 so the operator sees the underlying cause.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrDraftFinalized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotConfirmed), errors.Is(err, model.ErrConsentRequired):
		writeError(w, http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, model.ErrRewriteBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNoChanges), errors.Is(err, model.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrStorageCapExceeded):
		writeError(w, http.StatusInsufficientStorage, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
