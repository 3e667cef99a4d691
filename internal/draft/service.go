// Package draft implements the review workflow around staged drafts: the
// status state machine, section toggling, revision-recording saves, and the
// AI rewrite operations with their consent gate.
package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/draftroom/draftroom/internal/model"
	"github.com/draftroom/draftroom/internal/rewrite"
	"github.com/draftroom/draftroom/internal/section"
	"github.com/draftroom/draftroom/internal/store"
)

// consentKey is the settings key for the one-time AI rewrite consent.
const consentKey = "rewrite_consent"

// Confirmer is the blocking yes/no prompt shown before destructive actions
// and before the first-ever rewrite call.
type Confirmer interface {
	Confirm(ctx context.Context, title, body string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, title, body string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, title, body string) (bool, error) {
	return f(ctx, title, body)
}

// Service coordinates draft operations over the store.
type Service struct {
	store    store.Repository
	rewriter rewrite.Client
	confirm  Confirmer
	log      *slog.Logger

	mu   sync.Mutex
	busy map[string]bool // draft ids with a rewrite in flight
}

// NewService creates a draft service.
func NewService(st store.Repository, rw rewrite.Client, confirm Confirmer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    st,
		rewriter: rw,
		confirm:  confirm,
		log:      log,
		busy:     make(map[string]bool),
	}
}

// Open loads a draft for review. Opening a pending draft advances it to
// in_progress.
func (s *Service) Open(ctx context.Context, id string) (*model.ContentDraft, error) {
	d, err := s.store.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == model.StatusPending {
		d.Status = model.StatusInProgress
		d.Touch()
		if err := s.store.SaveDraft(ctx, *d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FieldPatch carries optional field edits; nil means "leave unchanged".
type FieldPatch struct {
	Title       *string                  `json:"title,omitempty"`
	Content     *string                  `json:"content,omitempty"`
	Keywords    *[]string                `json:"keywords,omitempty"`
	Analysis    *string                  `json:"analysis,omitempty"`
	Prompt      *string                  `json:"prompt,omitempty"`
	ReviewNotes *string                  `json:"review_notes,omitempty"`
	Metadata    *map[string]any          `json:"metadata,omitempty"`
	Options     *model.ProcessingOptions `json:"processing_options,omitempty"`
}

// Stage applies a field patch to a non-terminal draft in memory and returns
// the mutated draft without persisting it. Callers hand the result to the
// autosave scheduler; persistence happens on debounce fire or explicit flush.
// base, when non-nil, is the dirty snapshot already staged for this draft in
// the current debounce window: the patch accumulates on it, since the stored
// row does not carry the earlier in-window edits yet.
func (s *Service) Stage(ctx context.Context, id string, patch FieldPatch, base *model.ContentDraft) (*model.ContentDraft, error) {
	var d *model.ContentDraft
	if base != nil && base.ID == id {
		if base.IsTerminal() {
			return nil, model.ErrDraftFinalized
		}
		snapshot := *base
		d = &snapshot
	} else {
		var err error
		d, err = s.editable(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Content != nil {
		d.Content = *patch.Content
	}
	if patch.Keywords != nil {
		d.Keywords = *patch.Keywords
	}
	if patch.Analysis != nil {
		d.Analysis = *patch.Analysis
	}
	if patch.Prompt != nil {
		d.Prompt = *patch.Prompt
	}
	if patch.ReviewNotes != nil {
		d.ReviewNotes = *patch.ReviewNotes
	}
	if patch.Metadata != nil {
		d.Metadata = *patch.Metadata
	}
	if patch.Options != nil {
		d.ProcessingOptions = *patch.Options
	}
	d.Touch()
	return d, nil
}

// Save persists new content immediately, recording a revision when label is
// non-empty and the content diverges from the original snapshot.
func (s *Service) Save(ctx context.Context, id, content, label string) (*model.ContentDraft, error) {
	d, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	model.RecordRevision(d, uuid.New().String(), content, label)
	if err := s.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return d, nil
}

// MarkReviewed sets the draft reviewed and returns the id of the next draft
// in the batch for the UI to advance to ("" when none remains).
func (s *Service) MarkReviewed(ctx context.Context, id string) (*model.ContentDraft, string, error) {
	d, err := s.editable(ctx, id)
	if err != nil {
		return nil, "", err
	}
	now := model.Now()
	d.Status = model.StatusReviewed
	d.ReviewedAt = &now
	d.UpdatedAt = now
	if err := s.store.SaveDraft(ctx, *d); err != nil {
		return nil, "", err
	}

	next, err := s.nextOpen(ctx, d.BatchID, d.ID)
	if err != nil {
		// Advancing the selection is best effort; the review itself stuck.
		s.log.Warn("could not determine next draft", "batch_id", d.BatchID, "error", err)
		return d, "", nil
	}
	return d, next, nil
}

// Discard irreversibly excludes a draft from further edit and commit actions.
// Content is preserved. The action must be confirmed.
func (s *Service) Discard(ctx context.Context, id string) (*model.ContentDraft, error) {
	d, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.confirm.Confirm(ctx, "Discard draft",
		"Discarding is irreversible. The draft will be excluded from review and commit.")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrNotConfirmed
	}
	d.Status = model.StatusDiscarded
	d.Touch()
	if err := s.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return d, nil
}

// DetectSections runs section detection on the draft's content. When sections
// already exist the operation is destructive (replaces sections, clears the
// exclusion set) and requires confirmation. Content with no segmentable
// structure is a no-op.
func (s *Service) DetectSections(ctx context.Context, id string) (*model.ContentDraft, error) {
	d, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(d.Sections) > 0 {
		ok, err := s.confirm.Confirm(ctx, "Re-detect sections",
			"Re-detecting replaces the current sections and clears all exclusions.")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrNotConfirmed
		}
	}

	sections, strategy := section.Detect(d.Content)
	if strategy == section.StrategyNone {
		return d, nil
	}
	d.Sections = sections
	d.SectionStrategy = strategy
	d.ExcludedSectionIDs = nil
	d.Touch()
	if err := s.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return d, nil
}

// ToggleSection includes or excludes one section and rebuilds the draft's
// content from the inclusion set. Rebuilding through the section engine is
// the only code path that reflects exclusion in content.
func (s *Service) ToggleSection(ctx context.Context, id, sectionID string, exclude bool) (*model.ContentDraft, error) {
	d, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(d.Sections) == 0 {
		return nil, fmt.Errorf("draft %s has no detected sections", id)
	}
	found := false
	for _, sec := range d.Sections {
		if sec.ID == sectionID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown section %s", sectionID)
	}

	excluded := make([]string, 0, len(d.ExcludedSectionIDs))
	for _, eid := range d.ExcludedSectionIDs {
		if eid != sectionID {
			excluded = append(excluded, eid)
		}
	}
	if exclude {
		excluded = append(excluded, sectionID)
	}
	d.ExcludedSectionIDs = excluded
	d.Content = section.Build(d.Sections, d.ExcludedSectionIDs)
	d.Touch()
	if err := s.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return d, nil
}

// Fix runs the ad-hoc AI cleanup rewrite on the draft.
func (s *Service) Fix(ctx context.Context, id, modelOverride string) (*model.ContentDraft, error) {
	return s.applyRewrite(ctx, id, rewrite.FixTemplate, modelOverride)
}

// ApplyTemplate runs a named catalog template on the draft. Templates may
// also overwrite the draft's content format.
func (s *Service) ApplyTemplate(ctx context.Context, id, templateName, modelOverride string) (*model.ContentDraft, error) {
	tpl, err := rewrite.Lookup(templateName)
	if err != nil {
		return nil, err
	}
	return s.applyRewrite(ctx, id, tpl, modelOverride)
}

func (s *Service) applyRewrite(ctx context.Context, id string, tpl rewrite.Template, modelOverride string) (*model.ContentDraft, error) {
	if err := s.ensureConsent(ctx); err != nil {
		return nil, err
	}
	if !s.acquire(id) {
		return nil, model.ErrRewriteBusy
	}
	defer s.release(id)

	d, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}

	text, err := s.rewriter.Rewrite(ctx, rewrite.Request{
		System:      tpl.System,
		Instruction: tpl.Instruction,
		Content:     d.Content,
		Model:       modelOverride,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == strings.TrimSpace(d.Content) {
		return nil, model.ErrNoChanges
	}

	if tpl.OutputFormat != "" {
		d.ContentFormat = tpl.OutputFormat
	}
	model.RecordRevision(d, uuid.New().String(), text, tpl.Label)
	if err := s.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return d, nil
}

// ClearAll deletes every local batch, draft, and asset after confirmation.
func (s *Service) ClearAll(ctx context.Context) error {
	ok, err := s.confirm.Confirm(ctx, "Clear local drafts",
		"This deletes all local batches, drafts, and stored files.")
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotConfirmed
	}
	return s.store.ClearAll(ctx)
}

// ensureConsent enforces the one-time consent gate for rewrite-class calls.
// Once granted the flag persists for the install and the prompt is skipped.
func (s *Service) ensureConsent(ctx context.Context) error {
	granted, err := s.store.GetSetting(ctx, consentKey)
	if err != nil {
		return err
	}
	if granted == "granted" {
		return nil
	}
	ok, err := s.confirm.Confirm(ctx, "Send content to the AI service?",
		"Rewrites send draft content to the configured AI endpoint. This is asked once.")
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrConsentRequired
	}
	return s.store.SetSetting(ctx, consentKey, "granted")
}

// editable loads a draft and rejects terminal statuses.
func (s *Service) editable(ctx context.Context, id string) (*model.ContentDraft, error) {
	d, err := s.store.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsTerminal() {
		return nil, model.ErrDraftFinalized
	}
	return d, nil
}

// nextOpen returns the next draft in the batch still awaiting review.
func (s *Service) nextOpen(ctx context.Context, batchID, afterID string) (string, error) {
	drafts, err := s.store.ListDrafts(ctx, store.DraftFilter{
		BatchID: batchID,
		Status:  []string{model.StatusPending, model.StatusInProgress},
	})
	if err != nil {
		return "", err
	}
	for _, d := range drafts {
		if d.ID != afterID {
			return d.ID, nil
		}
	}
	return "", nil
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[id] {
		return false
	}
	s.busy[id] = true
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
}
