package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/tracker"
)

// SnapshotStore keeps a copy of the last server-confirmed records. Optional.
type SnapshotStore interface {
	ReplaceAll(records []models.BackupRecord) error
	Put(record models.BackupRecord) error
	Remove(id models.RecordID) error
}

// Board is one user's editing session over the backup records.
//
// It holds the synced records in server order, the pending [tracker.Tracker], the record under edit and the
// records with a submission in flight. Board is not safe for concurrent use: all calls must come from one goroutine.
// Network work that should not block that goroutine is split out, see [Board.PrepareSubmit].
type Board struct {
	backups   services.BackupAPI
	directory services.AuthAPI
	tracker   *tracker.Tracker
	snapshots SnapshotStore
	logger    *log.Logger

	records  []models.BackupRecord
	users    []models.User
	loaded   bool
	loadErr  error
	editing  models.RecordID
	inFlight map[models.RecordID]bool
}

// BoardOption configures a [Board].
type BoardOption func(*Board)

// WithTracker replaces the in-memory tracker, typically with one backed by a [tracker.Store].
func WithTracker(t *tracker.Tracker) BoardOption {
	return func(b *Board) {
		if t != nil {
			b.tracker = t
		}
	}
}

// WithSnapshots keeps store in step with every record the board accepts from the server.
func WithSnapshots(store SnapshotStore) BoardOption {
	return func(b *Board) { b.snapshots = store }
}

// WithDirectory enables [Board.LoadUsers].
func WithDirectory(directory services.AuthAPI) BoardOption {
	return func(b *Board) { b.directory = directory }
}

// WithBoardLogger sets the logger.
func WithBoardLogger(logger *log.Logger) BoardOption {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBoard creates an empty board backed by backups.
func NewBoard(backups services.BackupAPI, opts ...BoardOption) *Board {
	b := &Board{
		backups:  backups,
		tracker:  tracker.New(),
		logger:   log.New(io.Discard),
		inFlight: make(map[models.RecordID]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Seed installs records without contacting the server. Pending changes held by the tracker are kept.
// Used to resume a session from the local snapshot cache.
func (b *Board) Seed(records []models.BackupRecord) {
	b.records = cloneAll(records)
	b.loaded = true
	b.loadErr = nil
}

// Load replaces the records with a fresh list from the server and drops every pending change and the current edit.
//
// On failure the records already held are kept, the error is remembered for [Board.LoadErr] and returned.
func (b *Board) Load(ctx context.Context, progress chan<- ProgressUpdate) error {
	sendProgress(progress, fetchingRecordsUpdate())

	records, err := b.backups.ListBackups(ctx)
	if err := b.ApplyLoad(records, err); err != nil {
		return err
	}
	sendProgress(progress, fetchedRecordsUpdate(len(records)))

	if b.directory != nil {
		sendProgress(progress, fetchingUsersUpdate())
		err := b.LoadUsers(ctx)
		sendProgress(progress, fetchedUsersUpdate(len(b.users), err))
	}
	return nil
}

// ApplyLoad installs the outcome of a list call made elsewhere, such as a TUI command, with the semantics of
// [Board.Load].
func (b *Board) ApplyLoad(records []models.BackupRecord, fetchErr error) error {
	if fetchErr != nil {
		b.loadErr = fetchErr
		b.logger.Error("failed to load backup records", "error", fetchErr)
		return fmt.Errorf("failed to load backup records: %w", fetchErr)
	}

	if err := b.tracker.Reset(); err != nil {
		return err
	}
	if b.snapshots != nil {
		if err := b.snapshots.ReplaceAll(records); err != nil {
			return fmt.Errorf("failed to cache backup records: %w", err)
		}
	}

	b.records = cloneAll(records)
	b.loaded = true
	b.loadErr = nil
	b.editing = 0

	b.logger.Info("loaded backup records", "count", len(records))
	return nil
}

// LoadUsers refreshes the user directory. A failure keeps the previous directory; it only affects the producer picker.
func (b *Board) LoadUsers(ctx context.Context) error {
	if b.directory == nil {
		return fmt.Errorf("%w: no user directory configured", shared.ErrNotImplemented)
	}

	users, err := b.directory.ListUsers(ctx)
	if err != nil {
		b.logger.Warn("failed to load users", "error", err)
		return fmt.Errorf("failed to load users: %w", err)
	}
	b.users = users
	return nil
}

// Loaded reports whether the board holds a record list, even an empty one.
func (b *Board) Loaded() bool { return b.loaded }

// LoadErr is the error of the last failed [Board.Load], cleared by the next successful one.
func (b *Board) LoadErr() error { return b.loadErr }

// Users returns the user directory.
func (b *Board) Users() []models.User { return slices.Clone(b.users) }

// Records returns every record as it should be displayed: synced values with pending proposals applied.
func (b *Board) Records() []models.BackupRecord {
	out := make([]models.BackupRecord, len(b.records))
	for i, r := range b.records {
		out[i] = b.tracker.Overlay(r)
	}
	return out
}

// Record returns the display form of one record.
func (b *Board) Record(id models.RecordID) (models.BackupRecord, error) {
	synced, err := b.Synced(id)
	if err != nil {
		return synced, err
	}
	return b.tracker.Overlay(synced), nil
}

// Synced returns a copy of the last server-confirmed version of a record.
func (b *Board) Synced(id models.RecordID) (models.BackupRecord, error) {
	i := b.indexOf(id)
	if i < 0 {
		return models.BackupRecord{}, fmt.Errorf("%w: backup record %d", shared.ErrNotFound, id)
	}
	return b.records[i].Clone(), nil
}

// Toggle flips one stage of a record in the pending changes and returns the record's new change set.
func (b *Board) Toggle(id models.RecordID, stage models.Stage) (tracker.ChangeSet, error) {
	if b.editing == id && id != 0 {
		return b.tracker.PendingChangesFor(id), fmt.Errorf("%w: record %d", shared.ErrEditing, id)
	}

	synced, err := b.Synced(id)
	if err != nil {
		return nil, err
	}
	return b.tracker.RecordToggle(synced, stage)
}

// Pending returns the pending changes of a record.
func (b *Board) Pending(id models.RecordID) tracker.ChangeSet {
	return b.tracker.PendingChangesFor(id)
}

// PendingRecords lists the records with pending changes.
func (b *Board) PendingRecords() []models.RecordID {
	return b.tracker.PendingRecords()
}

// Discard drops the pending changes of a record.
func (b *Board) Discard(id models.RecordID) error {
	if b.inFlight[id] {
		return fmt.Errorf("%w: record %d", shared.ErrSubmissionInFlight, id)
	}
	return b.tracker.Clear(id)
}

// Submitting reports whether a submission for id is in flight.
func (b *Board) Submitting(id models.RecordID) bool {
	return b.inFlight[id]
}

// InFlight reports how many submissions are waiting for [Board.FinishSubmit].
func (b *Board) InFlight() int {
	return len(b.inFlight)
}

func (b *Board) indexOf(id models.RecordID) int {
	return slices.IndexFunc(b.records, func(r models.BackupRecord) bool { return r.ID == id })
}

// Accept replaces or appends a record confirmed by the server. Pending changes are left alone.
func (b *Board) Accept(rec models.BackupRecord) error {
	if b.snapshots != nil {
		if err := b.snapshots.Put(rec); err != nil {
			return fmt.Errorf("failed to cache record %d: %w", rec.ID, err)
		}
	}

	if i := b.indexOf(rec.ID); i >= 0 {
		b.records[i] = rec.Clone()
	} else {
		b.records = append(b.records, rec.Clone())
	}
	return nil
}

// Forget drops a deleted record together with its pending changes and any open edit.
func (b *Board) Forget(id models.RecordID) error {
	if b.snapshots != nil {
		if err := b.snapshots.Remove(id); err != nil {
			return fmt.Errorf("failed to uncache record %d: %w", id, err)
		}
	}
	if err := b.tracker.Clear(id); err != nil {
		return err
	}
	if i := b.indexOf(id); i >= 0 {
		b.records = slices.Delete(b.records, i, i+1)
	}
	if b.editing == id {
		b.editing = 0
	}
	return nil
}

func cloneAll(records []models.BackupRecord) []models.BackupRecord {
	out := make([]models.BackupRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
