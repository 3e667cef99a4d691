package store

import (
	"context"

	"github.com/draftroom/draftroom/internal/model"
)

// DraftFilter holds query parameters for listing drafts.
type DraftFilter struct {
	BatchID string
	Status  []string
}

// DraftReader provides read access to drafts.
type DraftReader interface {
	GetDraft(ctx context.Context, id string) (*model.ContentDraft, error)
	ListDrafts(ctx context.Context, f DraftFilter) ([]model.ContentDraft, error)
}

// DraftWriter provides write access to drafts.
type DraftWriter interface {
	CreateDraft(ctx context.Context, d model.ContentDraft) error
	SaveDraft(ctx context.Context, d model.ContentDraft) error
	DeleteDraft(ctx context.Context, id string) error
}

// AssetStore provides access to binary asset persistence. PutAsset enforces
// the global byte cap and returns model.ErrStorageCapExceeded without
// persisting anything when the cap would be exceeded.
type AssetStore interface {
	PutAsset(ctx context.Context, a model.DraftAsset) error
	GetAsset(ctx context.Context, id string) (*model.DraftAsset, error)
	DeleteAsset(ctx context.Context, id string) error
	AssetBytesUsed(ctx context.Context) (int64, error)
	StorageCap() int64
}

// BatchStore provides access to batch persistence.
type BatchStore interface {
	CreateBatch(ctx context.Context, b model.DraftBatch) error
	GetBatch(ctx context.Context, id string) (*model.DraftBatch, error)
	ListBatches(ctx context.Context) ([]model.DraftBatch, error)
	DeleteBatch(ctx context.Context, id string) error
}

// SettingsStore persists install-wide flags such as the one-time AI consent.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Repository combines all draft-store operations for the service and API layers.
type Repository interface {
	DraftReader
	DraftWriter
	AssetStore
	BatchStore
	SettingsStore
	ClearAll(ctx context.Context) error
}
