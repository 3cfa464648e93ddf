package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/tracker"
)

// ChangeSetRepository stores pending stage changes so an editing session survives between CLI invocations.
// It implements [tracker.Store].
type ChangeSetRepository struct {
	db *sql.DB
}

var _ tracker.Store = (*ChangeSetRepository)(nil)

// NewChangeSetRepository creates a new [ChangeSetRepository] with the given database connection
func NewChangeSetRepository(db *sql.DB) *ChangeSetRepository {
	return &ChangeSetRepository{db: db}
}

// LoadAll returns every stored change set keyed by record id.
func (r *ChangeSetRepository) LoadAll() (map[models.RecordID]tracker.ChangeSet, error) {
	rows, err := r.db.Query("SELECT record_id, stage, state FROM pending_changes ORDER BY record_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending changes: %w", err)
	}
	defer rows.Close()

	out := make(map[models.RecordID]tracker.ChangeSet)
	for rows.Next() {
		var (
			id    int64
			stage string
			state int
		)
		if err := rows.Scan(&id, &stage, &state); err != nil {
			return nil, fmt.Errorf("failed to scan pending change: %w", err)
		}

		s, err := models.ParseStage(stage)
		if err != nil {
			return nil, fmt.Errorf("corrupt pending change for record %d: %w", id, err)
		}

		cs := out[models.RecordID(id)]
		if cs == nil {
			cs = tracker.ChangeSet{}
			out[models.RecordID(id)] = cs
		}
		cs[s] = models.StageState(state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Save replaces the stored change set for id.
func (r *ChangeSetRepository) Save(id models.RecordID, changes tracker.ChangeSet) error {
	now := time.Now().UTC()
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM pending_changes WHERE record_id = ?", int64(id)); err != nil {
			return fmt.Errorf("failed to replace pending changes: %w", err)
		}
		for _, stage := range changes.Stages() {
			_, err := tx.Exec(
				"INSERT INTO pending_changes (record_id, stage, state, updated_at) VALUES (?, ?, ?, ?)",
				int64(id), string(stage), int(changes[stage]), now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert pending change: %w", err)
			}
		}
		return nil
	})
}

// Delete drops the stored change set for id.
func (r *ChangeSetRepository) Delete(id models.RecordID) error {
	if _, err := r.db.Exec("DELETE FROM pending_changes WHERE record_id = ?", int64(id)); err != nil {
		return fmt.Errorf("failed to delete pending changes: %w", err)
	}
	return nil
}

// DeleteAll drops every stored change set.
func (r *ChangeSetRepository) DeleteAll() error {
	if _, err := r.db.Exec("DELETE FROM pending_changes"); err != nil {
		return fmt.Errorf("failed to delete pending changes: %w", err)
	}
	return nil
}
