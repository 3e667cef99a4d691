// Package commit pushes reviewed drafts into the remote content store via a
// multi-step upload/update/patch sequence and advances draft status.
package commit

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/draftroom/draftroom/internal/model"
	"github.com/draftroom/draftroom/internal/remote"
)

// AssetGetter resolves stored binary assets.
type AssetGetter interface {
	GetAsset(ctx context.Context, id string) (*model.DraftAsset, error)
}

// DraftSaver persists the finalized draft.
type DraftSaver interface {
	SaveDraft(ctx context.Context, d model.ContentDraft) error
}

// Pipeline commits a single draft. Steps run strictly in order; any failure
// aborts the sequence without advancing the draft's status.
type Pipeline struct {
	assets AssetGetter
	drafts DraftSaver
	remote remote.Client
	log    *slog.Logger
}

// NewPipeline creates a commit pipeline with the given dependencies.
func NewPipeline(assets AssetGetter, drafts DraftSaver, rc remote.Client, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{assets: assets, drafts: drafts, remote: rc, log: log}
}

// Commit runs the full sequence for one draft. On success the draft is
// mutated to committed status and persisted. On failure it returns a
// *StepError naming the failing step and the draft is left unchanged
// locally; note that steps after the upload are not compensated, so the
// remote side may hold a partially-updated record (logged, not rolled back).
func (p *Pipeline) Commit(ctx context.Context, d *model.ContentDraft) error {
	if d.IsTerminal() {
		return model.ErrDraftFinalized
	}

	// Step 1: field assembly.
	fields := assembleFields(d)

	// Step 2: payload selection by provenance.
	file, urls, synthesized, err := p.buildPayload(ctx, d)
	if err != nil {
		return &StepError{Step: "payload", Err: err}
	}
	if len(urls) > 0 {
		fields["urls"] = urls
	}

	resp, err := p.remote.Upload(ctx, fields, file)
	if err != nil {
		return &StepError{Step: "upload", Err: err}
	}

	// Step 3: identifier extraction from the variably-shaped response.
	mediaID, ok := remote.ExtractMediaID(resp)
	if !ok {
		return &StepError{Step: "resolve", Err: model.ErrMediaIDNotReturned}
	}

	// Step 4: follow-up field update with the non-empty subset.
	if update := updateFields(d); len(update) > 0 {
		if err := p.remote.UpdateFields(ctx, mediaID, update); err != nil {
			p.warnPartial(d, mediaID, "update", err)
			return &StepError{Step: "update", Err: err}
		}
	}

	// Step 5: metadata merge-patch.
	if meta := metadataPatch(d, synthesized); len(meta) > 0 {
		patch := remote.MetadataPatch{SafeMetadata: meta, Merge: true}
		if err := p.remote.PatchMetadata(ctx, mediaID, patch); err != nil {
			p.warnPartial(d, mediaID, "metadata", err)
			return &StepError{Step: "metadata", Err: err}
		}
	}

	// Step 6: finalize local status.
	now := model.Now()
	d.Status = model.StatusCommitted
	d.CommittedAt = &now
	if d.ReviewedAt == nil {
		d.ReviewedAt = &now
	}
	d.UpdatedAt = now
	if err := p.drafts.SaveDraft(ctx, *d); err != nil {
		p.warnPartial(d, mediaID, "finalize", err)
		return &StepError{Step: "finalize", Err: err}
	}

	p.log.Info("draft committed", "draft_id", d.ID, "media_id", mediaID)
	return nil
}

// buildPayload selects the upload payload in priority order: source URL,
// stored asset bytes, then a file synthesized from the current edited
// content. Audio and video drafts without a resolvable asset fail fatally.
// The third return reports whether content was synthesized.
func (p *Pipeline) buildPayload(ctx context.Context, d *model.ContentDraft) (*remote.FileUpload, []string, bool, error) {
	if d.Source.Kind == model.SourceURL && d.Source.URL != "" {
		return nil, []string{d.Source.URL}, false, nil
	}

	if d.SourceAssetID != nil && *d.SourceAssetID != "" {
		asset, err := p.assets.GetAsset(ctx, *d.SourceAssetID)
		switch {
		case err == nil && asset.DraftID == d.ID:
			return &remote.FileUpload{
				Name:     asset.FileName,
				MimeType: asset.MimeType,
				Data:     asset.Blob,
			}, nil, false, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, nil, false, err
		}
		// Missing or foreign asset: fall through to the synthesized path.
	}

	if d.MediaType == model.MediaAudio || d.MediaType == model.MediaVideo {
		return nil, nil, false, model.ErrSourceAssetRequired
	}

	return &remote.FileUpload{
		Name:     synthesizedFileName(d),
		MimeType: synthesizedMimeType(d),
		Data:     []byte(d.Content),
	}, nil, true, nil
}

// updateFields collects the non-empty subset of the draft fields that are
// pushed in the follow-up update request.
func updateFields(d *model.ContentDraft) map[string]any {
	fields := make(map[string]any)
	if strings.TrimSpace(d.Title) != "" {
		fields["title"] = d.Title
	}
	if strings.TrimSpace(d.Content) != "" {
		fields["content"] = d.Content
	}
	if len(d.Keywords) > 0 {
		fields["keywords"] = d.Keywords
	}
	if strings.TrimSpace(d.Analysis) != "" {
		fields["analysis"] = d.Analysis
	}
	if strings.TrimSpace(d.Prompt) != "" {
		fields["prompt"] = d.Prompt
	}
	return fields
}

// metadataPatch builds the free-form metadata body; when the commit used
// synthesized content it records the draft's true original media type.
func metadataPatch(d *model.ContentDraft, synthesized bool) map[string]any {
	meta := make(map[string]any, len(d.Metadata)+1)
	for key, value := range d.Metadata {
		meta[key] = value
	}
	if synthesized {
		meta["original_media_type"] = d.MediaType
	}
	return meta
}

// warnPartial records the accepted partial-write gap: the upload already
// succeeded remotely, a follow-up step failed, and nothing is rolled back.
func (p *Pipeline) warnPartial(d *model.ContentDraft, mediaID, step string, err error) {
	p.log.Warn("upload succeeded but follow-up step failed; remote record may be partially updated",
		"draft_id", d.ID, "media_id", mediaID, "step", step, "error", err)
}

// StepError wraps an error with the pipeline step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failing step's name.
func (e *StepError) StepName() string {
	return e.Step
}
