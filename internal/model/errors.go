package model

import "errors"

var (
	// ErrDraftFinalized is returned when a mutating operation targets a draft
	// in a terminal status (committed or discarded).
	ErrDraftFinalized = errors.New("draft is finalized and can no longer be modified")

	// ErrStorageCapExceeded is returned when storing an asset would push the
	// local store past its global byte cap. Nothing is persisted.
	ErrStorageCapExceeded = errors.New("draft storage cap exceeded")

	// ErrSourceAssetRequired is returned when committing an audio or video
	// draft whose stored source file cannot be resolved.
	ErrSourceAssetRequired = errors.New("source file required to commit")

	// ErrMediaIDNotReturned is returned when the upload succeeded but no
	// identifier could be resolved from the response. The remote side may
	// hold an orphaned record.
	ErrMediaIDNotReturned = errors.New("media ID not returned")

	// ErrConsentRequired is returned when a rewrite-class call is attempted
	// before the one-time AI consent has been granted.
	ErrConsentRequired = errors.New("AI rewrite consent required")

	// ErrNotConfirmed is returned when a destructive action was not confirmed.
	ErrNotConfirmed = errors.New("action not confirmed")

	// ErrNoContent is returned when the rewrite endpoint produced no text.
	ErrNoContent = errors.New("no content produced")

	// ErrNoChanges is returned when a rewrite produced text identical to the
	// current content; no revision is recorded.
	ErrNoChanges = errors.New("no changes")

	// ErrRewriteBusy is returned when a rewrite or template apply is already
	// in flight for the draft.
	ErrRewriteBusy = errors.New("a rewrite is already in progress for this draft")
)
