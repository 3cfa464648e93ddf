package tracker

import (
	"fmt"
	"maps"
	"slices"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// ChangeSet maps a stage to its proposed state. A key is present only while it differs from the synced record.
type ChangeSet map[models.Stage]models.StageState

// Stages returns the changed stages in display order.
func (c ChangeSet) Stages() []models.Stage {
	out := make([]models.Stage, 0, len(c))
	for _, s := range models.Stages {
		if _, ok := c[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Store persists pending change sets between process runs. Optional.
type Store interface {
	LoadAll() (map[models.RecordID]ChangeSet, error)
	Save(id models.RecordID, changes ChangeSet) error
	Delete(id models.RecordID) error
	DeleteAll() error
}

// Tracker holds the pending ChangeSet of every record in the editing session.
//
// It never mutates the synced records it is given; it only compares against them.
// Not safe for concurrent use.
type Tracker struct {
	pending map[models.RecordID]ChangeSet
	store   Store
	// touched holds, per record with a submission in flight, the stages toggled since it was sent.
	touched map[models.RecordID]map[models.Stage]bool
}

// New creates an in-memory [Tracker].
func New() *Tracker {
	return &Tracker{
		pending: make(map[models.RecordID]ChangeSet),
		touched: make(map[models.RecordID]map[models.Stage]bool),
	}
}

// NewWithStore creates a [Tracker] that writes through to store, seeded with whatever store already holds.
func NewWithStore(store Store) (*Tracker, error) {
	t := New()
	if store == nil {
		return t, nil
	}

	loaded, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending changes: %w", err)
	}
	for id, cs := range loaded {
		if len(cs) > 0 {
			t.pending[id] = maps.Clone(cs)
		}
	}
	t.store = store
	return t, nil
}

// RecordToggle flips the displayed value of stage for synced and records the result.
//
// The displayed value is the pending proposal if there is one, otherwise the synced value. When the flipped value
// equals the synced value the key is dropped, so toggling twice leaves nothing pending. NotApplicable stages are
// left alone and reported with [shared.ErrValidation].
func (t *Tracker) RecordToggle(synced models.BackupRecord, stage models.Stage) (ChangeSet, error) {
	base := synced.Stage(stage).State
	if !base.Editable() {
		return t.PendingChangesFor(synced.ID), fmt.Errorf("%w: %s is not tracked for record %d", shared.ErrValidation, stage, synced.ID)
	}

	current := base
	cs := maps.Clone(t.pending[synced.ID])
	if proposed, ok := cs[stage]; ok {
		current = proposed
	}
	if cs == nil {
		cs = ChangeSet{}
	}

	proposed := current.Toggle()
	if proposed == base {
		delete(cs, stage)
	} else {
		cs[stage] = proposed
	}

	if err := t.put(synced.ID, cs); err != nil {
		return t.PendingChangesFor(synced.ID), err
	}
	if touched, ok := t.touched[synced.ID]; ok {
		touched[stage] = true
	}
	return maps.Clone(cs), nil
}

// PendingChangesFor returns a copy of the pending changes for id. Empty means nothing is pending.
func (t *Tracker) PendingChangesFor(id models.RecordID) ChangeSet {
	cs := maps.Clone(t.pending[id])
	if cs == nil {
		cs = ChangeSet{}
	}
	return cs
}

// HasPending reports whether id has at least one pending change.
func (t *Tracker) HasPending(id models.RecordID) bool {
	return len(t.pending[id]) > 0
}

// PendingRecords lists the ids with pending changes in ascending order.
func (t *Tracker) PendingRecords() []models.RecordID {
	return slices.Sorted(maps.Keys(t.pending))
}

// Overlay returns a display copy of synced with pending proposals applied. Verifiers of proposed stages are left
// empty because they are only known once the server confirms the submission.
func (t *Tracker) Overlay(synced models.BackupRecord) models.BackupRecord {
	out := synced.Clone()
	for stage, state := range t.pending[synced.ID] {
		out = out.WithStage(stage, models.StageStatus{State: state})
	}
	return out
}

// Clear drops every pending change for id. A submission in flight for id no longer restores anything it sent.
func (t *Tracker) Clear(id models.RecordID) error {
	if err := t.drop(id); err != nil {
		return err
	}
	if _, ok := t.touched[id]; ok {
		t.touched[id] = make(map[models.Stage]bool)
	}
	return nil
}

func (t *Tracker) drop(id models.RecordID) error {
	if t.store != nil {
		if err := t.store.Delete(id); err != nil {
			return fmt.Errorf("failed to clear pending changes: %w", err)
		}
	}
	delete(t.pending, id)
	return nil
}

// Reset drops all pending changes, used when the record list is reloaded.
func (t *Tracker) Reset() error {
	if t.store != nil {
		if err := t.store.DeleteAll(); err != nil {
			return fmt.Errorf("failed to reset pending changes: %w", err)
		}
	}
	t.pending = make(map[models.RecordID]ChangeSet)
	for id := range t.touched {
		t.touched[id] = make(map[models.Stage]bool)
	}
	return nil
}

// BeginSubmit starts recording the toggles made on id while its pending changes are being submitted.
// It must be followed by [Tracker.Reconcile] or [Tracker.AbortSubmit].
func (t *Tracker) BeginSubmit(id models.RecordID) {
	t.touched[id] = make(map[models.Stage]bool)
}

// AbortSubmit stops recording toggles for id after a failed submission. The pending changes are kept as they are.
func (t *Tracker) AbortSubmit(id models.RecordID) {
	delete(t.touched, id)
}

// Reconcile folds a confirmed submission into the pending changes for synced, the record returned by the server.
//
// Proposals the server now reflects are dropped. A submitted stage the user toggled back while the request was in
// flight is proposed again at its pre-submit value. Stages that left the pending set through [Tracker.Clear] or
// [Tracker.Reset] stay gone.
func (t *Tracker) Reconcile(synced models.BackupRecord, submitted ChangeSet) error {
	touched := t.touched[synced.ID]
	delete(t.touched, synced.ID)

	cs := maps.Clone(t.pending[synced.ID])
	if cs == nil {
		cs = ChangeSet{}
	}

	for stage, sent := range submitted {
		if _, stillPending := cs[stage]; !stillPending && touched[stage] {
			cs[stage] = sent.Toggle()
		}
	}

	for stage, state := range cs {
		if synced.Stage(stage).State == state || !synced.Stage(stage).State.Editable() {
			delete(cs, stage)
		}
	}
	return t.put(synced.ID, cs)
}

func (t *Tracker) put(id models.RecordID, cs ChangeSet) error {
	if len(cs) == 0 {
		return t.drop(id)
	}
	if t.store != nil {
		if err := t.store.Save(id, cs); err != nil {
			return fmt.Errorf("failed to save pending changes: %w", err)
		}
	}
	t.pending[id] = cs
	return nil
}
