package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/draftroom/draftroom/internal/draft"
	"github.com/draftroom/draftroom/internal/ingest"
	"github.com/draftroom/draftroom/internal/model"
	"github.com/draftroom/draftroom/internal/rewrite"
	"github.com/draftroom/draftroom/internal/store"
)

// ---------------------------------------------------------------------------
// POST /api/batches
// ---------------------------------------------------------------------------

type createBatchRequest struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	batch, err := s.ingestor.NewBatch(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create batch")
		return
	}

	var draftIDs []string
	failed := 0
	for _, url := range req.URLs {
		d, err := s.ingestor.FromURL(r.Context(), batch.ID, url)
		if err != nil {
			failed++
			continue
		}
		draftIDs = append(draftIDs, d.ID)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"batch":     batch,
		"draft_ids": draftIDs,
		"failed":    failed,
	})
}

// ---------------------------------------------------------------------------
// GET /api/batches
// ---------------------------------------------------------------------------

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.store.ListBatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	if batches == nil {
		batches = []model.DraftBatch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// ---------------------------------------------------------------------------
// DELETE /api/batches/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteBatch(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete batch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ---------------------------------------------------------------------------
// POST /api/batches/{id}/files
// ---------------------------------------------------------------------------

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if _, err := s.store.GetBatch(r.Context(), batchID); err != nil {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	d, err := s.ingestor.FromFile(r.Context(), batchID, ingest.FileInput{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ---------------------------------------------------------------------------
// GET /api/drafts
// ---------------------------------------------------------------------------

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	filter := store.DraftFilter{
		BatchID: r.URL.Query().Get("batch"),
		Status:  splitComma(r.URL.Query().Get("status")),
	}
	drafts, err := s.store.ListDrafts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list drafts")
		return
	}
	if drafts == nil {
		drafts = []model.ContentDraft{}
	}
	writeJSON(w, http.StatusOK, drafts)
}

// ---------------------------------------------------------------------------
// GET /api/drafts/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDraft(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get draft")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/open
// ---------------------------------------------------------------------------

func (s *Server) handleOpenDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Open(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// PATCH /api/drafts/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	var patch draft.FieldPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := r.PathValue("id")

	// Edits inside the debounce window stack on the staged snapshot; the
	// stored row lags behind it until the scheduler persists.
	base, _ := s.scheduler.Pending(id)
	d, err := s.drafts.Stage(r.Context(), id, patch, base)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Edits persist on debounce fire or explicit flush, not here.
	s.scheduler.Touch(*d)
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/save
// ---------------------------------------------------------------------------

type saveRequest struct {
	Content *string `json:"content"`
	Label   string  `json:"label"`
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Manual save bypasses the timer: flush staged edits, then persist.
	if err := s.scheduler.Flush(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	content := ""
	if req.Content != nil {
		content = *req.Content
	} else {
		d, err := s.store.GetDraft(r.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "draft not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get draft")
			return
		}
		content = d.Content
	}

	d, err := s.drafts.Save(r.Context(), id, content, req.Label)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/review
// ---------------------------------------------------------------------------

func (s *Server) handleMarkReviewed(w http.ResponseWriter, r *http.Request) {
	// Staged edits land first so a later timer fire cannot carry a stale
	// pre-review snapshot.
	if err := s.scheduler.Flush(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	d, next, err := s.drafts.MarkReviewed(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": d, "next_id": next})
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/discard
// ---------------------------------------------------------------------------

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx := withConfirmed(r.Context(), req.Confirmed)

	id := r.PathValue("id")
	d, err := s.drafts.Discard(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Staged edits on a discarded draft are moot; cancel the timer so it
	// cannot write the pre-discard snapshot back.
	s.scheduler.Drop(id)
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/sections/detect
// ---------------------------------------------------------------------------

func (s *Server) handleDetectSections(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx := withConfirmed(r.Context(), req.Confirmed)

	d, err := s.drafts.DetectSections(ctx, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/sections/{sid}/toggle
// ---------------------------------------------------------------------------

type toggleRequest struct {
	Exclude bool `json:"exclude"`
}

func (s *Server) handleToggleSection(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	d, err := s.drafts.ToggleSection(r.Context(), r.PathValue("id"), r.PathValue("sid"), req.Exclude)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/rewrite
// ---------------------------------------------------------------------------

type rewriteRequest struct {
	Model   string `json:"model"`
	Consent bool   `json:"consent"`
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx := withConfirmed(r.Context(), req.Consent)

	d, err := s.drafts.Fix(ctx, r.PathValue("id"), req.Model)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/template
// ---------------------------------------------------------------------------

type templateRequest struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Consent bool   `json:"consent"`
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "template name is required")
		return
	}
	ctx := withConfirmed(r.Context(), req.Consent)

	d, err := s.drafts.ApplyTemplate(ctx, r.PathValue("id"), req.Name, req.Model)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{id}/commit
// ---------------------------------------------------------------------------

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	// Staged edits must land before the pipeline reads the draft.
	if err := s.scheduler.Flush(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	d, err := s.store.GetDraft(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get draft")
		return
	}

	if err := s.pipeline.Commit(r.Context(), d); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/batches/{id}/commit
// ---------------------------------------------------------------------------

func (s *Server) handleBulkCommit(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// One confirmation covers the whole batch.
	if !req.Confirmed {
		writeError(w, http.StatusPreconditionRequired, model.ErrNotConfirmed.Error())
		return
	}

	// Flush the open draft's staged edits before the batch starts.
	if err := s.scheduler.Flush(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	drafts, err := s.store.ListDrafts(r.Context(), store.DraftFilter{BatchID: r.PathValue("id")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list drafts")
		return
	}

	summary := s.bulk.Run(r.Context(), drafts)
	writeJSON(w, http.StatusOK, summary)
}

// ---------------------------------------------------------------------------
// GET /api/templates
// ---------------------------------------------------------------------------

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}
	var out []entry
	for _, t := range rewrite.Templates() {
		out = append(out, entry{Name: t.Name, Label: t.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// GET /api/storage
// ---------------------------------------------------------------------------

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	used, err := s.store.AssetBytesUsed(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read storage usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"used_bytes": used,
		"cap_bytes":  s.store.StorageCap(),
	})
}

// ---------------------------------------------------------------------------
// POST /api/clear
// ---------------------------------------------------------------------------

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx := withConfirmed(r.Context(), req.Confirmed)

	if err := s.drafts.ClearAll(ctx); err != nil {
		writeServiceError(w, err)
		return
	}
	s.scheduler.Close()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
