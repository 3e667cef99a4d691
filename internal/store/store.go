package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/draftroom/draftroom/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ DraftReader   = (*Store)(nil)
	_ DraftWriter   = (*Store)(nil)
	_ AssetStore    = (*Store)(nil)
	_ BatchStore    = (*Store)(nil)
	_ SettingsStore = (*Store)(nil)
	_ Repository    = (*Store)(nil)
)

// DefaultStorageCapBytes is the default global cap on stored asset bytes.
const DefaultStorageCapBytes int64 = 100 << 20

// Store provides data access to the SQLite database.
type Store struct {
	db       *sql.DB
	capBytes int64
}

// New creates a new Store and initialises the schema. capBytes is the global
// byte cap for stored assets; zero or negative selects the default.
func New(db *sql.DB, capBytes int64) (*Store, error) {
	if capBytes <= 0 {
		capBytes = DefaultStorageCapBytes
	}
	s := &Store{db: db, capBytes: capBytes}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
		s.migrateV2, // v1 → v2: add settings table
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS drafts (
		id                   TEXT PRIMARY KEY,
		batch_id             TEXT NOT NULL REFERENCES batches(id),
		title                TEXT,
		content              TEXT,
		original_content     TEXT,
		content_format       TEXT NOT NULL,
		media_type           TEXT NOT NULL,
		status               TEXT NOT NULL,
		source               TEXT NOT NULL,
		source_asset_id      TEXT,
		sections             TEXT,
		excluded_section_ids TEXT,
		section_strategy     TEXT,
		revisions            TEXT,
		keywords             TEXT,
		analysis             TEXT,
		prompt               TEXT,
		review_notes         TEXT,
		processing_options   TEXT,
		metadata             TEXT,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL,
		reviewed_at          TEXT,
		committed_at         TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_batch ON drafts(batch_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status, updated_at);

	CREATE TABLE IF NOT EXISTS assets (
		id        TEXT PRIMARY KEY,
		draft_id  TEXT NOT NULL,
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		blob      BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assets_draft ON assets(draft_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the settings table for install-wide flags (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	return err
}

// ---------------------------------------------------------------------------
// Drafts
// ---------------------------------------------------------------------------

const draftColumns = `id, batch_id, title, content, original_content, content_format, media_type, status,
	source, source_asset_id, sections, excluded_section_ids, section_strategy, revisions,
	keywords, analysis, prompt, review_notes, processing_options, metadata,
	created_at, updated_at, reviewed_at, committed_at`

// CreateDraft inserts a new draft.
func (s *Store) CreateDraft(ctx context.Context, d model.ContentDraft) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (`+draftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draftArgs(d)...,
	)
	return err
}

// SaveDraft overwrites an existing draft in full.
func (s *Store) SaveDraft(ctx context.Context, d model.ContentDraft) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts SET
			batch_id = ?, title = ?, content = ?, original_content = ?, content_format = ?,
			media_type = ?, status = ?, source = ?, source_asset_id = ?, sections = ?,
			excluded_section_ids = ?, section_strategy = ?, revisions = ?, keywords = ?,
			analysis = ?, prompt = ?, review_notes = ?, processing_options = ?, metadata = ?,
			created_at = ?, updated_at = ?, reviewed_at = ?, committed_at = ?
		WHERE id = ?`,
		append(draftArgs(d)[1:], d.ID)...,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetDraft returns a single draft by id.
func (s *Store) GetDraft(ctx context.Context, id string) (*model.ContentDraft, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	return scanDraft(row)
}

// ListDrafts returns drafts matching the given filter, oldest first within a batch.
func (s *Store) ListDrafts(ctx context.Context, f DraftFilter) ([]model.ContentDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts`
	var conditions []string
	var args []any

	if f.BatchID != "" {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	if len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []model.ContentDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft and its assets.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE draft_id = ?`, id); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Assets
// ---------------------------------------------------------------------------

// PutAsset stores an asset, enforcing the global byte cap. When the cap would
// be exceeded nothing is persisted and model.ErrStorageCapExceeded is returned.
func (s *Store) PutAsset(ctx context.Context, a model.DraftAsset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var used int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(LENGTH(blob)), 0) FROM assets`).Scan(&used); err != nil {
		return fmt.Errorf("sum asset bytes: %w", err)
	}
	if used+int64(len(a.Blob)) > s.capBytes {
		return model.ErrStorageCapExceeded
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assets (id, draft_id, file_name, mime_type, blob)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.DraftID, a.FileName, a.MimeType, a.Blob,
	); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return tx.Commit()
}

// GetAsset returns an asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (*model.DraftAsset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, draft_id, file_name, mime_type, blob FROM assets WHERE id = ?`, id)
	var a model.DraftAsset
	if err := row.Scan(&a.ID, &a.DraftID, &a.FileName, &a.MimeType, &a.Blob); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAsset removes an asset.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	return err
}

// StorageCap returns the configured global asset byte cap.
func (s *Store) StorageCap() int64 {
	return s.capBytes
}

// AssetBytesUsed returns the total bytes currently held by stored assets.
func (s *Store) AssetBytesUsed(ctx context.Context) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(LENGTH(blob)), 0) FROM assets`).Scan(&used)
	return used, err
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

// CreateBatch inserts a new batch.
func (s *Store) CreateBatch(ctx context.Context, b model.DraftBatch) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO batches (id, name, created_at) VALUES (?, ?, ?)`,
		b.ID, b.Name, b.CreatedAt)
	return err
}

// GetBatch returns a batch by id.
func (s *Store) GetBatch(ctx context.Context, id string) (*model.DraftBatch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM batches WHERE id = ?`, id)
	var b model.DraftBatch
	if err := row.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBatches returns all batches, newest first.
func (s *Store) ListBatches(ctx context.Context) ([]model.DraftBatch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []model.DraftBatch
	for rows.Next() {
		var b model.DraftBatch
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// DeleteBatch removes a batch together with its drafts and their assets.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE draft_id IN (SELECT id FROM drafts WHERE batch_id = ?)`, id); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE batch_id = ?`, id); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return tx.Commit()
}

// ClearAll removes every batch, draft, and asset. Settings are kept.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"assets", "drafts", "batches"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns a setting value, or "" when the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting stores a setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func draftArgs(d model.ContentDraft) []any {
	return []any{
		d.ID, d.BatchID, d.Title, d.Content, d.OriginalContent, d.ContentFormat,
		d.MediaType, d.Status, mustJSON(d.Source), d.SourceAssetID,
		mustJSON(d.Sections), mustJSON(d.ExcludedSectionIDs), d.SectionStrategy,
		mustJSON(d.Revisions), mustJSON(d.Keywords), d.Analysis, d.Prompt,
		d.ReviewNotes, mustJSON(d.ProcessingOptions), mustJSON(d.Metadata),
		d.CreatedAt, d.UpdatedAt, d.ReviewedAt, d.CommittedAt,
	}
}

func scanDraft(row scanner) (*model.ContentDraft, error) {
	var d model.ContentDraft
	var source, sections, excluded, revisions, keywords, options, metadata sql.NullString
	err := row.Scan(
		&d.ID, &d.BatchID, &d.Title, &d.Content, &d.OriginalContent, &d.ContentFormat,
		&d.MediaType, &d.Status, &source, &d.SourceAssetID,
		&sections, &excluded, &d.SectionStrategy,
		&revisions, &keywords, &d.Analysis, &d.Prompt,
		&d.ReviewNotes, &options, &metadata,
		&d.CreatedAt, &d.UpdatedAt, &d.ReviewedAt, &d.CommittedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(source, &d.Source); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	if err := fromJSON(sections, &d.Sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	if err := fromJSON(excluded, &d.ExcludedSectionIDs); err != nil {
		return nil, fmt.Errorf("decode excluded sections: %w", err)
	}
	if err := fromJSON(revisions, &d.Revisions); err != nil {
		return nil, fmt.Errorf("decode revisions: %w", err)
	}
	if err := fromJSON(keywords, &d.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if err := fromJSON(options, &d.ProcessingOptions); err != nil {
		return nil, fmt.Errorf("decode processing options: %w", err)
	}
	if err := fromJSON(metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &d, nil
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func fromJSON(col sql.NullString, dest any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}
