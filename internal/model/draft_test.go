package model

import (
	"fmt"
	"testing"
)

func TestNewDraftDefaults(t *testing.T) {
	d := NewDraft("d1", "b1", "Title", "body", FormatPlain, MediaDocument, Source{Kind: SourceURL, URL: "https://example.com"})

	if d.Status != StatusPending {
		t.Errorf("Status = %q, want %q", d.Status, StatusPending)
	}
	if d.OriginalContent != "body" {
		t.Errorf("OriginalContent = %q, want %q", d.OriginalContent, "body")
	}
	if d.CreatedAt == "" || d.UpdatedAt == "" {
		t.Error("expected timestamps to be set")
	}
	if d.IsTerminal() {
		t.Error("new draft should not be terminal")
	}
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusReviewed, false},
		{StatusDiscarded, true},
		{StatusCommitted, true},
	}
	for _, tc := range cases {
		d := ContentDraft{Status: tc.status}
		if got := d.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestRecordRevisionPrepends(t *testing.T) {
	d := NewDraft("d1", "b1", "T", "original", FormatPlain, MediaDocument, Source{Kind: SourceURL})

	RecordRevision(&d, "r1", "rewritten once", "Summarize")

	if d.Content != "rewritten once" {
		t.Errorf("Content = %q, want %q", d.Content, "rewritten once")
	}
	if len(d.Revisions) != 1 {
		t.Fatalf("len(Revisions) = %d, want 1", len(d.Revisions))
	}
	if d.Revisions[0].ChangeDescription != "Summarize" {
		t.Errorf("ChangeDescription = %q, want %q", d.Revisions[0].ChangeDescription, "Summarize")
	}
	if d.Revisions[0].Content != "rewritten once" {
		t.Errorf("snapshot = %q, want %q", d.Revisions[0].Content, "rewritten once")
	}
	if d.Revisions[0].Meta.Title != "T" {
		t.Errorf("Meta.Title = %q, want %q", d.Revisions[0].Meta.Title, "T")
	}

	RecordRevision(&d, "r2", "rewritten twice", "Fix")
	if len(d.Revisions) != 2 {
		t.Fatalf("len(Revisions) = %d, want 2", len(d.Revisions))
	}
	if d.Revisions[0].ChangeDescription != "Fix" {
		t.Errorf("newest revision first: ChangeDescription = %q, want %q", d.Revisions[0].ChangeDescription, "Fix")
	}
	if d.Revisions[0].Content != "rewritten twice" {
		t.Errorf("newest snapshot = %q, want %q", d.Revisions[0].Content, "rewritten twice")
	}
}

func TestRecordRevisionSkipsUnlabeled(t *testing.T) {
	d := NewDraft("d1", "b1", "T", "original", FormatPlain, MediaDocument, Source{Kind: SourceURL})

	RecordRevision(&d, "r1", "manual edit", "")

	if d.Content != "manual edit" {
		t.Errorf("Content = %q, want %q", d.Content, "manual edit")
	}
	if len(d.Revisions) != 0 {
		t.Errorf("unlabeled change should not record a revision, got %d", len(d.Revisions))
	}
}

func TestRecordRevisionSkipsReturnToOriginal(t *testing.T) {
	d := NewDraft("d1", "b1", "T", "original", FormatPlain, MediaDocument, Source{Kind: SourceURL})
	d.Content = "edited"

	RecordRevision(&d, "r1", "original", "Undo")

	if d.Content != "original" {
		t.Errorf("Content = %q, want %q", d.Content, "original")
	}
	if len(d.Revisions) != 0 {
		t.Errorf("restoring original content should not record a revision, got %d", len(d.Revisions))
	}
}

func TestRecordRevisionCap(t *testing.T) {
	d := NewDraft("d1", "b1", "T", "v0", FormatPlain, MediaDocument, Source{Kind: SourceURL})

	for i := 1; i <= MaxRevisions+3; i++ {
		RecordRevision(&d, fmt.Sprintf("r%d", i), fmt.Sprintf("v%d", i), "Rewrite")
	}

	if len(d.Revisions) != MaxRevisions {
		t.Fatalf("len(Revisions) = %d, want %d", len(d.Revisions), MaxRevisions)
	}
	wantNewest := fmt.Sprintf("v%d", MaxRevisions+3)
	if d.Revisions[0].Content != wantNewest {
		t.Errorf("newest snapshot = %q, want %q", d.Revisions[0].Content, wantNewest)
	}
	// The oldest surviving snapshot is MaxRevisions entries back.
	wantOldest := fmt.Sprintf("v%d", 4)
	if d.Revisions[MaxRevisions-1].Content != wantOldest {
		t.Errorf("oldest snapshot = %q, want %q", d.Revisions[MaxRevisions-1].Content, wantOldest)
	}
}

func TestIsExcluded(t *testing.T) {
	d := ContentDraft{ExcludedSectionIDs: []string{"a", "b"}}
	if !d.IsExcluded("a") {
		t.Error("expected a to be excluded")
	}
	if d.IsExcluded("c") {
		t.Error("did not expect c to be excluded")
	}
}
