package commit

import (
	"context"
	"log/slog"

	"github.com/draftroom/draftroom/internal/model"
)

// Committer runs the single-draft commit sequence.
type Committer interface {
	Commit(ctx context.Context, d *model.ContentDraft) error
}

// Summary is the aggregate result of a bulk commit. Per-draft error detail is
// deliberately not carried: batch semantics are best effort.
type Summary struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// Bulk sequences the commit pipeline across the drafts of a batch with
// independent success/failure accounting.
type Bulk struct {
	committer Committer
	log       *slog.Logger
}

// NewBulk creates a bulk commit orchestrator.
func NewBulk(c Committer, log *slog.Logger) *Bulk {
	if log == nil {
		log = slog.Default()
	}
	return &Bulk{committer: c, log: log}
}

// Run filters the given drafts to reviewed status and commits them one at a
// time, sequentially. A per-draft failure is counted and logged, and the loop
// continues; one failure never aborts the batch.
func (b *Bulk) Run(ctx context.Context, drafts []model.ContentDraft) Summary {
	var summary Summary
	for i := range drafts {
		d := &drafts[i]
		if d.Status != model.StatusReviewed {
			continue
		}
		if err := b.committer.Commit(ctx, d); err != nil {
			b.log.Error("bulk commit: draft failed", "draft_id", d.ID, "error", err)
			summary.FailedCount++
			continue
		}
		summary.SuccessCount++
	}
	return summary
}
