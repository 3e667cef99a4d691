package model

import "time"

// Draft status constants
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusReviewed   = "reviewed"
	StatusDiscarded  = "discarded"
	StatusCommitted  = "committed"
)

// Content format constants
const (
	FormatPlain    = "plain"
	FormatMarkdown = "markdown"
)

// Media type constants
const (
	MediaDocument = "document"
	MediaPDF      = "pdf"
	MediaAudio    = "audio"
	MediaVideo    = "video"
)

// Source kind constants
const (
	SourceURL  = "url"
	SourceFile = "file"
)

// Source describes where a draft's content came from: either a remote URL
// or an uploaded file.
type Source struct {
	Kind         string `json:"kind"`
	URL          string `json:"url,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Section is an addressable sub-span of a draft's content. Its ID is derived
// from the section content so re-detection over unchanged text is stable.
type Section struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

// ProcessingOptions control how the remote store processes the committed draft.
// AdvancedValues keys may contain "." to address nested destination fields.
type ProcessingOptions struct {
	PerformAnalysis   bool           `json:"perform_analysis"`
	PerformChunking   bool           `json:"perform_chunking"`
	OverwriteExisting bool           `json:"overwrite_existing"`
	AdvancedValues    map[string]any `json:"advanced_values,omitempty"`
}

// ContentDraft is a locally staged, editable unit of content awaiting review
// before being committed to the remote store.
type ContentDraft struct {
	ID      string `json:"id"`
	BatchID string `json:"batch_id"`

	Title           string `json:"title"`
	Content         string `json:"content"`
	OriginalContent string `json:"original_content"`
	ContentFormat   string `json:"content_format"`
	MediaType       string `json:"media_type"`
	Status          string `json:"status"`

	Source        Source  `json:"source"`
	SourceAssetID *string `json:"source_asset_id,omitempty"`

	Sections           []Section `json:"sections,omitempty"`
	ExcludedSectionIDs []string  `json:"excluded_section_ids,omitempty"`
	SectionStrategy    string    `json:"section_strategy,omitempty"`

	Revisions []Revision `json:"revisions,omitempty"`

	Keywords          []string          `json:"keywords,omitempty"`
	Analysis          string            `json:"analysis,omitempty"`
	Prompt            string            `json:"prompt,omitempty"`
	ReviewNotes       string            `json:"review_notes,omitempty"`
	ProcessingOptions ProcessingOptions `json:"processing_options"`
	Metadata          map[string]any    `json:"metadata,omitempty"`

	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	ReviewedAt  *string `json:"reviewed_at,omitempty"`
	CommittedAt *string `json:"committed_at,omitempty"`
}

// NewDraft creates a draft in pending status. The content passed in becomes
// both the current content and the immutable original snapshot.
func NewDraft(id, batchID, title, content, format, mediaType string, source Source) ContentDraft {
	now := Now()
	return ContentDraft{
		ID:              id,
		BatchID:         batchID,
		Title:           title,
		Content:         content,
		OriginalContent: content,
		ContentFormat:   format,
		MediaType:       mediaType,
		Status:          StatusPending,
		Source:          source,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsTerminal reports whether the draft has reached a terminal status and may
// no longer be edited or committed.
func (d *ContentDraft) IsTerminal() bool {
	return d.Status == StatusCommitted || d.Status == StatusDiscarded
}

// IsExcluded reports whether the given section id is currently excluded from
// the reconstructed content.
func (d *ContentDraft) IsExcluded(sectionID string) bool {
	for _, id := range d.ExcludedSectionIDs {
		if id == sectionID {
			return true
		}
	}
	return false
}

// Touch updates the draft's UpdatedAt timestamp.
func (d *ContentDraft) Touch() {
	d.UpdatedAt = Now()
}

// Now returns the current UTC time in the canonical timestamp format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
