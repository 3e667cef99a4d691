package model

// DraftBatch groups drafts produced by one ingest run. Deleting a batch
// deletes its drafts and their assets together.
type DraftBatch struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// NewBatch creates a named batch.
func NewBatch(id, name string) DraftBatch {
	return DraftBatch{ID: id, Name: name, CreatedAt: Now()}
}

// DraftAsset holds the original binary payload for a file-sourced draft.
// An asset is owned by exactly one draft; the draft references it through
// SourceAssetID rather than carrying the bytes itself.
type DraftAsset struct {
	ID       string `json:"id"`
	DraftID  string `json:"draft_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Blob     []byte `json:"-"`
}

// NewAsset creates an asset owned by the given draft.
func NewAsset(id, draftID, fileName, mimeType string, blob []byte) DraftAsset {
	return DraftAsset{ID: id, DraftID: draftID, FileName: fileName, MimeType: mimeType, Blob: blob}
}
