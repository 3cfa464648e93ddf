package tasks

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/tracker"
)

// SubmitNotice is the one message shown to the user when a submission fails.
const SubmitNotice = "백업 상태 변경에 실패했습니다."

// SubmitError reports a failed submission. The pending changes of the record are kept.
type SubmitError struct {
	ID  models.RecordID
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s (record %d: %v)", SubmitNotice, e.ID, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Notice returns the text to show the user for a failed submission.
//
// Lost version races get their own prompt since the remedy differs: reload, then redo the changes.
func (e *SubmitError) Notice() string {
	if errors.Is(e.Err, shared.ErrConflictLost) {
		return SubmitNotice + " " + shared.ErrConflictLost.Error()
	}
	return SubmitNotice
}

// BuildCompletion turns the pending changes of a record into a partial update credited to actor.
//
// An empty change set yields [shared.ErrEmptyChangeSet]. version is sent as the expected version when non-zero.
func BuildCompletion(id models.RecordID, pending tracker.ChangeSet, actor models.UserID, version int64) (services.CompletionRequest, error) {
	if len(pending) == 0 {
		return services.CompletionRequest{}, fmt.Errorf("%w: record %d", shared.ErrEmptyChangeSet, id)
	}
	if actor == 0 {
		return services.CompletionRequest{}, shared.ErrNotAuthenticated
	}
	for stage, state := range pending {
		if !state.Editable() {
			return services.CompletionRequest{}, fmt.Errorf("%w: %s cannot be set to %s", shared.ErrValidation, stage, state)
		}
	}

	return services.CompletionRequest{
		Changes:         maps.Clone(pending),
		Actor:           actor,
		ExpectedVersion: version,
	}, nil
}

// Submission is a prepared partial update, detached from the board so it can be sent from another goroutine.
type Submission struct {
	ID      models.RecordID
	Request services.CompletionRequest
	// Trace identifies the submission in logs.
	Trace string
}

// Changes returns the stage changes being submitted.
func (s Submission) Changes() tracker.ChangeSet {
	return tracker.ChangeSet(maps.Clone(s.Request.Changes))
}

// Send performs the network call. It does not touch the board.
func (s Submission) Send(ctx context.Context, api services.BackupAPI) SubmitResult {
	rec, err := api.MarkComplete(ctx, s.ID, s.Request)
	return SubmitResult{Submission: s, Record: rec, Err: err}
}

// SubmitResult is the outcome of [Submission.Send].
type SubmitResult struct {
	Submission Submission
	Record     models.BackupRecord
	Err        error
}

// PrepareSubmit checks that a record can be submitted and marks it in flight.
//
// Every successful PrepareSubmit must be followed by exactly one [Board.FinishSubmit].
func (b *Board) PrepareSubmit(session *models.Session, id models.RecordID) (Submission, error) {
	actor, err := session.Actor()
	if err != nil {
		return Submission{}, err
	}
	if b.inFlight[id] {
		return Submission{}, fmt.Errorf("%w: record %d", shared.ErrSubmissionInFlight, id)
	}

	synced, err := b.Synced(id)
	if err != nil {
		return Submission{}, err
	}

	req, err := BuildCompletion(id, b.tracker.PendingChangesFor(id), actor, synced.Version)
	if err != nil {
		return Submission{}, err
	}

	b.inFlight[id] = true
	b.tracker.BeginSubmit(id)
	sub := Submission{ID: id, Request: req, Trace: uuid.NewString()}
	b.logger.Debug("submitting stage changes", "record", id, "stages", len(req.Changes), "trace", sub.Trace)
	return sub, nil
}

// FinishSubmit applies the outcome of a sent submission.
//
// On success the server's record replaces the synced one and the submitted changes leave the pending set; changes
// made while the request was in flight stay pending. On failure nothing changes except the in-flight mark, and a
// [*SubmitError] is returned.
func (b *Board) FinishSubmit(res SubmitResult) (models.BackupRecord, error) {
	id := res.Submission.ID
	delete(b.inFlight, id)

	if res.Err != nil {
		b.tracker.AbortSubmit(id)
		b.logger.Error("submission failed", "record", id, "trace", res.Submission.Trace, "error", res.Err)
		return models.BackupRecord{}, &SubmitError{ID: id, Err: res.Err}
	}

	if err := b.Accept(res.Record); err != nil {
		return res.Record, err
	}
	if err := b.tracker.Reconcile(res.Record, res.Submission.Changes()); err != nil {
		return res.Record, err
	}

	b.logger.Info("submitted stage changes", "record", id, "trace", res.Submission.Trace, "version", res.Record.Version)
	return b.tracker.Overlay(res.Record), nil
}

// Submit sends the pending changes of one record and waits for the answer.
func (b *Board) Submit(ctx context.Context, session *models.Session, id models.RecordID) (models.BackupRecord, error) {
	sub, err := b.PrepareSubmit(session, id)
	if err != nil {
		return models.BackupRecord{}, err
	}
	return b.FinishSubmit(sub.Send(ctx, b.backups))
}
