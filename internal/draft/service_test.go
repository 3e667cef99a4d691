package draft

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/draftroom/draftroom/internal/model"
	"github.com/draftroom/draftroom/internal/rewrite"
	"github.com/draftroom/draftroom/internal/store"
)

type fakeRewriter struct {
	result string
	err    error
	calls  int
}

func (f *fakeRewriter) Rewrite(_ context.Context, r rewrite.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

// scriptedConfirm answers every prompt with a fixed response and counts prompts.
type scriptedConfirm struct {
	answer  bool
	prompts int
}

func (c *scriptedConfirm) Confirm(_ context.Context, _, _ string) (bool, error) {
	c.prompts++
	return c.answer, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := store.New(db, 0)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func seedDraft(t *testing.T, st *store.Store, id, content string) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.GetBatch(ctx, "b1"); err != nil {
		if err := st.CreateBatch(ctx, model.NewBatch("b1", "Batch")); err != nil {
			t.Fatalf("create batch: %v", err)
		}
	}
	d := model.NewDraft(id, "b1", "Title", content, model.FormatPlain, model.MediaDocument,
		model.Source{Kind: model.SourceURL, URL: "https://example.com/" + id})
	if err := st.CreateDraft(ctx, d); err != nil {
		t.Fatalf("create draft: %v", err)
	}
}

func TestOpenAdvancesPending(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "content")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	d, err := svc.Open(ctx, "d1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if d.Status != model.StatusInProgress {
		t.Errorf("Status = %q, want in_progress", d.Status)
	}

	stored, _ := st.GetDraft(ctx, "d1")
	if stored.Status != model.StatusInProgress {
		t.Errorf("persisted Status = %q, want in_progress", stored.Status)
	}

	// Re-opening an in_progress draft leaves it alone.
	d, err = svc.Open(ctx, "d1")
	if err != nil || d.Status != model.StatusInProgress {
		t.Errorf("reopen: %v, status %q", err, d.Status)
	}
}

func TestStageDoesNotPersist(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "original")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	title := "Edited Title"
	content := "edited content"
	d, err := svc.Stage(ctx, "d1", FieldPatch{Title: &title, Content: &content}, nil)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if d.Title != "Edited Title" || d.Content != "edited content" {
		t.Errorf("staged draft = %q / %q", d.Title, d.Content)
	}

	// The store still holds the unedited draft until the scheduler fires.
	stored, _ := st.GetDraft(ctx, "d1")
	if stored.Content != "original" {
		t.Errorf("persisted content = %q, want untouched original", stored.Content)
	}
}

func TestStageAccumulatesOnBaseSnapshot(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "original")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	title := "Edited Title"
	first, err := svc.Stage(ctx, "d1", FieldPatch{Title: &title}, nil)
	if err != nil {
		t.Fatalf("first stage: %v", err)
	}

	// The second edit arrives before the first one persisted; patching on
	// top of the staged snapshot must keep the title.
	content := "edited body"
	second, err := svc.Stage(ctx, "d1", FieldPatch{Content: &content}, first)
	if err != nil {
		t.Fatalf("second stage: %v", err)
	}
	if second.Title != "Edited Title" || second.Content != "edited body" {
		t.Errorf("accumulated draft = %q / %q, want both edits", second.Title, second.Content)
	}

	// A base for a different draft is ignored in favor of the stored row.
	other := *first
	other.ID = "d2"
	d, err := svc.Stage(ctx, "d1", FieldPatch{Content: &content}, &other)
	if err != nil {
		t.Fatalf("mismatched base stage: %v", err)
	}
	if d.Title == "Edited Title" {
		t.Error("base for another draft leaked into the patch")
	}

	// A terminal base is rejected outright.
	terminal := *first
	terminal.Status = model.StatusDiscarded
	if _, err := svc.Stage(ctx, "d1", FieldPatch{Content: &content}, &terminal); !errors.Is(err, model.ErrDraftFinalized) {
		t.Errorf("terminal base: err = %v, want ErrDraftFinalized", err)
	}
}

func TestSaveRecordsRevision(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "original")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	d, err := svc.Save(ctx, "d1", "new text", "Manual edit")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if d.Content != "new text" {
		t.Errorf("Content = %q", d.Content)
	}
	if len(d.Revisions) != 1 || d.Revisions[0].ChangeDescription != "Manual edit" {
		t.Errorf("Revisions = %+v", d.Revisions)
	}

	stored, _ := st.GetDraft(ctx, "d1")
	if stored.Content != "new text" || len(stored.Revisions) != 1 {
		t.Errorf("persisted: content %q, %d revisions", stored.Content, len(stored.Revisions))
	}
}

func TestTerminalDraftsAreImmutable(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, &fakeRewriter{result: "x"}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	seedDraft(t, st, "d1", "content")
	d, _ := st.GetDraft(ctx, "d1")
	d.Status = model.StatusCommitted
	if err := st.SaveDraft(ctx, *d); err != nil {
		t.Fatalf("seed committed: %v", err)
	}

	content := "edit"
	ops := map[string]func() error{
		"stage":   func() error { _, err := svc.Stage(ctx, "d1", FieldPatch{Content: &content}, nil); return err },
		"save":    func() error { _, err := svc.Save(ctx, "d1", "edit", "label"); return err },
		"review":  func() error { _, _, err := svc.MarkReviewed(ctx, "d1"); return err },
		"discard": func() error { _, err := svc.Discard(ctx, "d1"); return err },
		"detect":  func() error { _, err := svc.DetectSections(ctx, "d1"); return err },
		"toggle":  func() error { _, err := svc.ToggleSection(ctx, "d1", "s1", true); return err },
		"fix":     func() error { _, err := svc.Fix(ctx, "d1", ""); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, model.ErrDraftFinalized) {
			t.Errorf("%s on committed draft: err = %v, want ErrDraftFinalized", name, err)
		}
	}
}

func TestDiscardRequiresConfirmation(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "content")
	confirm := &scriptedConfirm{answer: false}
	svc := NewService(st, &fakeRewriter{}, confirm, nil)
	ctx := context.Background()

	if _, err := svc.Discard(ctx, "d1"); !errors.Is(err, model.ErrNotConfirmed) {
		t.Fatalf("err = %v, want ErrNotConfirmed", err)
	}
	stored, _ := st.GetDraft(ctx, "d1")
	if stored.Status != model.StatusPending {
		t.Errorf("Status = %q, want unchanged pending", stored.Status)
	}

	confirm.answer = true
	d, err := svc.Discard(ctx, "d1")
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if d.Status != model.StatusDiscarded {
		t.Errorf("Status = %q, want discarded", d.Status)
	}
}

func TestMarkReviewedAdvances(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "one")
	seedDraft(t, st, "d2", "two")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	d, next, err := svc.MarkReviewed(ctx, "d1")
	if err != nil {
		t.Fatalf("mark reviewed: %v", err)
	}
	if d.Status != model.StatusReviewed || d.ReviewedAt == nil {
		t.Errorf("draft = %+v", d)
	}
	if next != "d2" {
		t.Errorf("next = %q, want d2", next)
	}

	// Last open draft in the batch: nothing to advance to.
	_, next, err = svc.MarkReviewed(ctx, "d2")
	if err != nil {
		t.Fatalf("mark reviewed d2: %v", err)
	}
	if next != "" {
		t.Errorf("next = %q, want empty", next)
	}
}

func TestDetectSections(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "First paragraph.\n\nSecond paragraph.")
	confirm := &scriptedConfirm{answer: true}
	svc := NewService(st, &fakeRewriter{}, confirm, nil)
	ctx := context.Background()

	d, err := svc.DetectSections(ctx, "d1")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(d.Sections) != 2 || d.SectionStrategy != "paragraphs" {
		t.Errorf("sections = %d, strategy = %q", len(d.Sections), d.SectionStrategy)
	}
	if confirm.prompts != 0 {
		t.Errorf("first detection prompted %d times, want 0", confirm.prompts)
	}

	// Re-detection over existing sections is destructive and must be confirmed.
	confirm.answer = false
	if _, err := svc.DetectSections(ctx, "d1"); !errors.Is(err, model.ErrNotConfirmed) {
		t.Errorf("re-detect err = %v, want ErrNotConfirmed", err)
	}
	if confirm.prompts != 1 {
		t.Errorf("prompts = %d, want 1", confirm.prompts)
	}
}

func TestDetectSectionsNoStructure(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "just one paragraph")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)

	d, err := svc.DetectSections(context.Background(), "d1")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(d.Sections) != 0 || d.SectionStrategy != "" {
		t.Errorf("no-op detection changed the draft: %+v", d)
	}
}

func TestToggleSection(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "First paragraph.\n\nSecond paragraph.")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	d, err := svc.DetectSections(ctx, "d1")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	secID := d.Sections[1].ID

	d, err = svc.ToggleSection(ctx, "d1", secID, true)
	if err != nil {
		t.Fatalf("exclude: %v", err)
	}
	if d.Content != "First paragraph." {
		t.Errorf("Content = %q, want first paragraph only", d.Content)
	}
	if !d.IsExcluded(secID) {
		t.Error("section not marked excluded")
	}

	d, err = svc.ToggleSection(ctx, "d1", secID, false)
	if err != nil {
		t.Fatalf("include: %v", err)
	}
	if d.Content != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("Content = %q, want restored", d.Content)
	}

	if _, err := svc.ToggleSection(ctx, "d1", "bogus", true); err == nil {
		t.Error("expected error for unknown section id")
	}
}

func TestConsentGate(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "content")
	rw := &fakeRewriter{result: "rewritten"}
	confirm := &scriptedConfirm{answer: false}
	svc := NewService(st, rw, confirm, nil)
	ctx := context.Background()

	if _, err := svc.Fix(ctx, "d1", ""); !errors.Is(err, model.ErrConsentRequired) {
		t.Fatalf("err = %v, want ErrConsentRequired", err)
	}
	if rw.calls != 0 {
		t.Errorf("rewriter called %d times before consent", rw.calls)
	}

	confirm.answer = true
	if _, err := svc.Fix(ctx, "d1", ""); err != nil {
		t.Fatalf("fix after consent: %v", err)
	}
	if rw.calls != 1 {
		t.Errorf("rewriter calls = %d, want 1", rw.calls)
	}

	// Consent persists: the next rewrite must not prompt again.
	prompts := confirm.prompts
	rw.result = "rewritten again"
	if _, err := svc.Fix(ctx, "d1", ""); err != nil {
		t.Fatalf("second fix: %v", err)
	}
	if confirm.prompts != prompts {
		t.Errorf("prompts grew from %d to %d, want no new prompt", prompts, confirm.prompts)
	}
}

func TestRewriteNoChanges(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "stable content")
	rw := &fakeRewriter{result: "  stable content  "}
	svc := NewService(st, rw, &scriptedConfirm{answer: true}, nil)
	ctx := context.Background()

	before, _ := st.GetDraft(ctx, "d1")

	if _, err := svc.Fix(ctx, "d1", ""); !errors.Is(err, model.ErrNoChanges) {
		t.Fatalf("err = %v, want ErrNoChanges", err)
	}

	after, _ := st.GetDraft(ctx, "d1")
	if after.UpdatedAt != before.UpdatedAt || len(after.Revisions) != 0 {
		t.Errorf("no-op rewrite mutated the draft: %+v", after)
	}
}

func TestRewriteRecordsLabeledRevision(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "long rambling content")
	rw := &fakeRewriter{result: "- point one\n- point two"}
	svc := NewService(st, rw, &scriptedConfirm{answer: true}, nil)

	d, err := svc.ApplyTemplate(context.Background(), "d1", "summarize", "")
	if err != nil {
		t.Fatalf("apply template: %v", err)
	}
	if d.Content != "- point one\n- point two" {
		t.Errorf("Content = %q", d.Content)
	}
	if d.ContentFormat != model.FormatMarkdown {
		t.Errorf("ContentFormat = %q, want markdown", d.ContentFormat)
	}
	if len(d.Revisions) != 1 || d.Revisions[0].ChangeDescription != "Summarize" {
		t.Errorf("Revisions = %+v", d.Revisions)
	}
}

func TestApplyTemplateUnknown(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "content")
	svc := NewService(st, &fakeRewriter{}, &scriptedConfirm{answer: true}, nil)

	if _, err := svc.ApplyTemplate(context.Background(), "d1", "nope", ""); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestRewriteBusy(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "content")
	st.SetSetting(context.Background(), "rewrite_consent", "granted")
	svc := NewService(st, &fakeRewriter{result: "x"}, &scriptedConfirm{answer: true}, nil)

	if !svc.acquire("d1") {
		t.Fatal("could not acquire busy flag")
	}
	defer svc.release("d1")

	if _, err := svc.Fix(context.Background(), "d1", ""); !errors.Is(err, model.ErrRewriteBusy) {
		t.Errorf("err = %v, want ErrRewriteBusy", err)
	}
}

func TestClearAllConfirmGated(t *testing.T) {
	st := newTestStore(t)
	seedDraft(t, st, "d1", "content")
	confirm := &scriptedConfirm{answer: false}
	svc := NewService(st, &fakeRewriter{}, confirm, nil)
	ctx := context.Background()

	if err := svc.ClearAll(ctx); !errors.Is(err, model.ErrNotConfirmed) {
		t.Fatalf("err = %v, want ErrNotConfirmed", err)
	}
	if _, err := st.GetDraft(ctx, "d1"); err != nil {
		t.Errorf("draft deleted despite refusal: %v", err)
	}

	confirm.answer = true
	if err := svc.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	drafts, _ := st.ListDrafts(ctx, store.DraftFilter{})
	if len(drafts) != 0 {
		t.Errorf("drafts remained: %d", len(drafts))
	}
}
