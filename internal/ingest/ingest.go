// Package ingest turns URLs and uploaded files into staged draft batches.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/draftroom/draftroom/internal/model"
	"github.com/draftroom/draftroom/internal/store"
)

// Ingestor creates batches and drafts from source material.
type Ingestor struct {
	store     store.Repository
	extractor Extractor
	log       *slog.Logger
}

// New creates an ingestor.
func New(st store.Repository, ex Extractor, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: st, extractor: ex, log: log}
}

// NewBatch creates a named batch for one ingest run.
func (i *Ingestor) NewBatch(ctx context.Context, name string) (*model.DraftBatch, error) {
	if strings.TrimSpace(name) == "" {
		name = "Ingest " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	b := model.NewBatch(uuid.New().String(), name)
	if err := i.store.CreateBatch(ctx, b); err != nil {
		return nil, err
	}
	return &b, nil
}

// FromURL fetches a page, extracts its readable content, and stages it as a
// pending draft in the batch.
func (i *Ingestor) FromURL(ctx context.Context, batchID, url string) (*model.ContentDraft, error) {
	ex, err := i.extractor.Extract(ctx, url)
	if err != nil {
		return nil, err
	}

	title := ex.Title
	if title == "" {
		title = url
	}
	d := model.NewDraft(uuid.New().String(), batchID, title, ex.Content,
		model.FormatPlain, model.MediaDocument, model.Source{
			Kind: model.SourceURL,
			URL:  url,
		})
	if ex.Byline != "" {
		d.Metadata = map[string]any{"byline": ex.Byline}
	}
	if err := i.store.CreateDraft(ctx, d); err != nil {
		return nil, err
	}
	i.log.Info("ingested url", "draft_id", d.ID, "url", url)
	return &d, nil
}

// FileInput is an uploaded file handed to FromFile.
type FileInput struct {
	Name         string
	MimeType     string
	Data         []byte
	LastModified time.Time
}

// FromFile stores the file's bytes as a draft asset (subject to the storage
// cap) and stages a pending draft referencing it. Text-like files also get
// their content loaded for inline review; binary media stay content-empty
// until reviewed.
func (i *Ingestor) FromFile(ctx context.Context, batchID string, f FileInput) (*model.ContentDraft, error) {
	mediaType := mediaTypeFor(f.MimeType, f.Name)
	format := model.FormatPlain
	if strings.HasSuffix(strings.ToLower(f.Name), ".md") {
		format = model.FormatMarkdown
	}

	content := ""
	if mediaType == model.MediaDocument && utf8.Valid(f.Data) {
		content = string(f.Data)
	}

	var lastModified string
	if !f.LastModified.IsZero() {
		lastModified = f.LastModified.UTC().Format(time.RFC3339)
	}

	draftID := uuid.New().String()
	asset := model.NewAsset(uuid.New().String(), draftID, f.Name, f.MimeType, f.Data)
	if err := i.store.PutAsset(ctx, asset); err != nil {
		return nil, err
	}

	d := model.NewDraft(draftID, batchID, titleFromName(f.Name), content, format, mediaType, model.Source{
		Kind:         model.SourceFile,
		FileName:     f.Name,
		MimeType:     f.MimeType,
		Size:         int64(len(f.Data)),
		LastModified: lastModified,
	})
	d.SourceAssetID = &asset.ID

	if err := i.store.CreateDraft(ctx, d); err != nil {
		// The asset is orphaned if the draft insert fails; reclaim it.
		if derr := i.store.DeleteAsset(ctx, asset.ID); derr != nil {
			i.log.Warn("could not delete orphaned asset", "asset_id", asset.ID, "error", derr)
		}
		return nil, err
	}
	i.log.Info("ingested file", "draft_id", d.ID, "file", f.Name, "media_type", mediaType)
	return &d, nil
}

// mediaTypeFor classifies an upload by mime type, falling back to the file
// extension. HTML counts as document; commit normalizes it the same way.
func mediaTypeFor(mimeType, name string) string {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "audio/"):
		return model.MediaAudio
	case strings.HasPrefix(mt, "video/"):
		return model.MediaVideo
	case mt == "application/pdf":
		return model.MediaPDF
	case mt != "" && !strings.HasPrefix(mt, "text/") && mt != "application/octet-stream":
		return model.MediaDocument
	}

	switch {
	case strings.HasSuffix(strings.ToLower(name), ".pdf"):
		return model.MediaPDF
	case strings.HasSuffix(strings.ToLower(name), ".mp3"),
		strings.HasSuffix(strings.ToLower(name), ".wav"),
		strings.HasSuffix(strings.ToLower(name), ".m4a"):
		return model.MediaAudio
	case strings.HasSuffix(strings.ToLower(name), ".mp4"),
		strings.HasSuffix(strings.ToLower(name), ".mov"),
		strings.HasSuffix(strings.ToLower(name), ".webm"):
		return model.MediaVideo
	default:
		return model.MediaDocument
	}
}

func titleFromName(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}
