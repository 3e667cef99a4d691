package model

// MaxRevisions caps the per-draft revision history. Older entries are dropped
// silently once the cap is reached.
const MaxRevisions = 10

// RevisionMeta is the metadata snapshot taken alongside a content revision.
type RevisionMeta struct {
	Title         string   `json:"title,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	ContentFormat string   `json:"content_format,omitempty"`
}

// Revision is a timestamped snapshot of a draft's content taken at a labeled
// save point. Revisions are ordered most-recent first.
type Revision struct {
	ID                string       `json:"id"`
	Content           string       `json:"content"`
	Meta              RevisionMeta `json:"meta"`
	ChangeDescription string       `json:"change_description"`
	CreatedAt         string       `json:"created_at"`
}

// RecordRevision sets the draft's content to next and, when label is non-empty
// and next differs from the original snapshot, prepends a revision entry with
// the given id. History is truncated to MaxRevisions; unlabeled saves and
// saves that merely restore the original update content without growing history.
func RecordRevision(d *ContentDraft, revisionID, next, label string) {
	if label != "" && next != d.OriginalContent {
		rev := Revision{
			ID:      revisionID,
			Content: next,
			Meta: RevisionMeta{
				Title:         d.Title,
				Keywords:      append([]string(nil), d.Keywords...),
				ContentFormat: d.ContentFormat,
			},
			ChangeDescription: label,
			CreatedAt:         Now(),
		}
		d.Revisions = append([]Revision{rev}, d.Revisions...)
		if len(d.Revisions) > MaxRevisions {
			d.Revisions = d.Revisions[:MaxRevisions]
		}
	}
	d.Content = next
	d.Touch()
}
