package tasks

import (
	"context"
	"fmt"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// EditorState is the lifecycle position of one record on the board.
type EditorState int

const (
	// Viewing: no edit open and nothing pending.
	Viewing EditorState = iota
	// Editing: the record's fields are open in the editor.
	Editing
	// ViewingWithPending: stage changes await submission. Only a successful submit or a discard leaves this state.
	ViewingWithPending
)

func (s EditorState) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case ViewingWithPending:
		return "viewing_with_pending"
	default:
		return fmt.Sprintf("EditorState(%d)", int(s))
	}
}

// RecordState reports where a record is in the editor lifecycle.
func (b *Board) RecordState(id models.RecordID) EditorState {
	switch {
	case b.editing == id && id != 0:
		return Editing
	case b.tracker.HasPending(id):
		return ViewingWithPending
	default:
		return Viewing
	}
}

// Editing returns the record under edit, if any.
func (b *Board) Editing() (models.RecordID, bool) {
	return b.editing, b.editing != 0
}

// BeginEdit opens a record in the editor and returns a draft seeded from its synced fields.
//
// Refused with [shared.ErrPendingChanges] while the record has unsubmitted stage changes. Opening a record closes
// any other open edit.
func (b *Board) BeginEdit(id models.RecordID) (models.BackupDraft, error) {
	synced, err := b.Synced(id)
	if err != nil {
		return models.BackupDraft{}, err
	}
	if b.tracker.HasPending(id) {
		return models.BackupDraft{}, fmt.Errorf("%w: submit or discard the changes to record %d first", shared.ErrPendingChanges, id)
	}

	b.editing = id
	return models.DraftFrom(synced), nil
}

// CancelEdit closes the editor without saving.
func (b *Board) CancelEdit() {
	b.editing = 0
}

// CommitEdit saves draft as the full new content of the record under edit. The editor stays open on failure.
func (b *Board) CommitEdit(ctx context.Context, session *models.Session, draft models.BackupDraft) (models.BackupRecord, error) {
	id, ok := b.Editing()
	if !ok {
		return models.BackupRecord{}, fmt.Errorf("%w: no record is being edited", shared.ErrInvalidInput)
	}

	rec, err := b.Update(ctx, session, id, draft)
	if err != nil {
		return rec, err
	}
	b.editing = 0
	return rec, nil
}

// Update replaces the editable fields of a record with draft. Stage states are not part of an update.
//
// Repeats the pending-changes guard of [Board.BeginEdit] so a stale edit cannot overwrite around unsubmitted toggles.
func (b *Board) Update(ctx context.Context, session *models.Session, id models.RecordID, draft models.BackupDraft) (models.BackupRecord, error) {
	actor, err := session.Actor()
	if err != nil {
		return models.BackupRecord{}, err
	}
	if err := draft.Validate(); err != nil {
		return models.BackupRecord{}, err
	}
	if _, err := b.Synced(id); err != nil {
		return models.BackupRecord{}, err
	}
	if b.tracker.HasPending(id) {
		return models.BackupRecord{}, fmt.Errorf("%w: record %d", shared.ErrPendingChanges, id)
	}
	if b.inFlight[id] {
		return models.BackupRecord{}, fmt.Errorf("%w: record %d", shared.ErrSubmissionInFlight, id)
	}

	rec, err := b.backups.UpdateBackup(ctx, actor, id, draft)
	if err != nil {
		b.logger.Error("update failed", "record", id, "error", err)
		return models.BackupRecord{}, fmt.Errorf("failed to update record %d: %w", id, err)
	}
	if err := b.Accept(rec); err != nil {
		return rec, err
	}

	b.logger.Info("updated record", "record", id, "actor", actor)
	return rec, nil
}

// Create adds a new record. Tracked stages start incomplete and excluded ones not applicable, with no verifiers.
func (b *Board) Create(ctx context.Context, session *models.Session, draft models.BackupDraft) (models.BackupRecord, error) {
	actor, err := session.Actor()
	if err != nil {
		return models.BackupRecord{}, err
	}
	if err := draft.Validate(); err != nil {
		return models.BackupRecord{}, err
	}

	rec, err := b.backups.CreateBackup(ctx, actor, draft)
	if err != nil {
		b.logger.Error("create failed", "name", draft.Name, "error", err)
		return models.BackupRecord{}, fmt.Errorf("failed to create record: %w", err)
	}
	if err := b.Accept(rec); err != nil {
		return rec, err
	}

	b.logger.Info("created record", "record", rec.ID, "actor", actor)
	return rec, nil
}

// Delete removes a record on the server and drops its pending changes and any open edit.
func (b *Board) Delete(ctx context.Context, session *models.Session, id models.RecordID) error {
	actor, err := session.Actor()
	if err != nil {
		return err
	}
	if b.inFlight[id] {
		return fmt.Errorf("%w: record %d", shared.ErrSubmissionInFlight, id)
	}

	if err := b.backups.DeleteBackup(ctx, actor, id); err != nil {
		b.logger.Error("delete failed", "record", id, "error", err)
		return fmt.Errorf("failed to delete record %d: %w", id, err)
	}

	b.logger.Info("deleted record", "record", id, "actor", actor)
	return b.Forget(id)
}
