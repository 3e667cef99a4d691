// Package autosave debounces local persistence of in-progress edits.
package autosave

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/draftroom/draftroom/internal/model"
)

// DefaultDelay is the idle debounce interval before a dirty draft persists.
const DefaultDelay = 2 * time.Second

// Store loads and persists draft snapshots. The load side lets the scheduler
// reconcile a stale snapshot against a row whose status advanced while edits
// were staged.
type Store interface {
	GetDraft(ctx context.Context, id string) (*model.ContentDraft, error)
	SaveDraft(ctx context.Context, d model.ContentDraft) error
}

// Scheduler holds at most one pending save for the currently open draft.
// Every mutation resets the idle timer (debounce, not throttle); switching
// the open draft cancels the previous timer without persisting leftover
// dirty state — callers that need that guarantee must Flush first.
type Scheduler struct {
	store Store
	delay time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *model.ContentDraft
}

// New creates a scheduler. delay <= 0 selects DefaultDelay.
func New(store Store, delay time.Duration, log *slog.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{store: store, delay: delay, log: log}
}

// Touch marks the draft dirty and (re)starts the idle timer. A draft id
// different from the pending one replaces it, dropping the previous dirty
// snapshot without persisting it.
func (s *Scheduler) Touch(d model.ContentDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil && s.pending.ID != d.ID {
		s.log.Debug("autosave: switching drafts, dropping unsaved edits", "draft_id", s.pending.ID)
	}
	snapshot := d
	s.pending = &snapshot

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// Pending returns a copy of the dirty snapshot staged for the given draft, so
// edits arriving inside the debounce window accumulate on it instead of on the
// stale stored row.
func (s *Scheduler) Pending(id string) (*model.ContentDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.ID != id {
		return nil, false
	}
	snapshot := *s.pending
	return &snapshot, true
}

// Drop discards the pending snapshot for the given draft, if any. Callers use
// it when a status transition makes staged edits moot.
func (s *Scheduler) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.ID != id {
		return
	}
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Flush persists the dirty draft immediately, bypassing the timer.
// It is a no-op when nothing is dirty.
func (s *Scheduler) Flush(ctx context.Context) error {
	d := s.take()
	if d == nil {
		return nil
	}
	return s.persist(ctx, d)
}

// Close cancels any pending timer without persisting. Dropping dirty state
// here is the documented behavior; call Flush first to keep it.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.log.Debug("autosave: closed with unsaved edits", "draft_id", s.pending.ID)
	}
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Dirty reports whether a save is pending.
func (s *Scheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// take claims the pending snapshot and stops the timer.
func (s *Scheduler) take() *model.ContentDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return d
}

// persist writes the snapshot after reconciling it against the stored row.
// The snapshot was taken before any status transition that happened in the
// meantime, so it must never drag the row backwards: a deleted or finalized
// draft drops the edits, and an advanced status is carried over onto the
// snapshot before saving.
func (s *Scheduler) persist(ctx context.Context, d *model.ContentDraft) error {
	stored, err := s.store.GetDraft(ctx, d.ID)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Debug("autosave: draft gone, dropping edits", "draft_id", d.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if stored.IsTerminal() {
		s.log.Debug("autosave: draft finalized, dropping edits", "draft_id", d.ID, "status", stored.Status)
		return nil
	}
	if stored.Status != d.Status {
		d.Status = stored.Status
		d.ReviewedAt = stored.ReviewedAt
		d.CommittedAt = stored.CommittedAt
	}
	return s.store.SaveDraft(ctx, *d)
}

func (s *Scheduler) fire() {
	d := s.take()
	if d == nil {
		return
	}
	if err := s.persist(context.Background(), d); err != nil {
		s.log.Error("autosave failed", "draft_id", d.ID, "error", err)
	}
}
