package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// BackupRepository is the backup-status store of the development backend.
//
// Stage states are stored as integers matching [models.StageState]. Checker and producer names are resolved from
// the users table on read. Deleted records are soft-deleted and invisible to every query.
type BackupRepository struct {
	db *sql.DB
}

// NewBackupRepository creates a new [BackupRepository] with the given database connection
func NewBackupRepository(db *sql.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// backupSelect reads a record with its checker names resolved.
var backupSelect = func() string {
	cols := []string{"b.id", "b.event_name", "b.displayed_date", "b.name", "b.description"}
	joins := make([]string, 0, len(models.Stages))
	for i, s := range models.Stages {
		alias := fmt.Sprintf("u%d", i)
		cols = append(cols, "b."+string(s), "b."+s.CheckerField(), alias+".name")
		joins = append(joins, fmt.Sprintf("LEFT JOIN users %s ON %s.id = b.%s", alias, alias, s.CheckerField()))
	}
	cols = append(cols, "b.created_at", "b.version")
	return "SELECT " + strings.Join(cols, ", ") + " FROM backup_status b " + strings.Join(joins, " ")
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(row rowScanner) (models.BackupRecord, error) {
	var (
		r           models.BackupRecord
		id          int64
		eventName   sql.NullString
		date        sql.NullTime
		description sql.NullString
		states      [4]int
		checkers    [4]sql.NullInt64
		names       [4]sql.NullString
	)

	dest := []any{&id, &eventName, &date, &r.Name, &description}
	for i := range models.Stages {
		dest = append(dest, &states[i], &checkers[i], &names[i])
	}
	dest = append(dest, &r.CreatedAt, &r.Version)

	if err := row.Scan(dest...); err != nil {
		return r, err
	}

	r.ID = models.RecordID(id)
	r.EventName = eventName.String
	r.Description = description.String
	if date.Valid {
		d := date.Time.UTC()
		r.DisplayedDate = &d
	}
	for i, s := range models.Stages {
		status := models.StageStatus{State: models.StageState(states[i])}
		if status.State == models.Complete && checkers[i].Valid {
			by := models.UserID(checkers[i].Int64)
			status.VerifiedBy = &by
			status.VerifierName = names[i].String
		}
		r = r.WithStage(s, status)
	}
	return r, nil
}

// List returns up to limit live records, newest displayed date first. Records without a date come last.
func (r *BackupRepository) List(limit int) ([]models.BackupRecord, error) {
	query := backupSelect + `
		WHERE b.deleted_at IS NULL
		ORDER BY b.displayed_date DESC NULLS LAST, b.id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backup records: %w", err)
	}
	defer rows.Close()

	records := []models.BackupRecord{}
	for rows.Next() {
		rec, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	producers, err := r.producerNames("")
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Producers = producers[records[i].ID]
		if records[i].Producers == nil {
			records[i].Producers = []string{}
		}
	}
	return records, nil
}

// Get returns a live record or [shared.ErrNotFound].
func (r *BackupRepository) Get(id models.RecordID) (models.BackupRecord, error) {
	rec, err := scanBackup(r.db.QueryRow(backupSelect+" WHERE b.id = ? AND b.deleted_at IS NULL", int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: backup record %d", shared.ErrNotFound, id)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to query backup record: %w", err)
	}

	producers, err := r.producerNames("WHERE bp.backup_id = ?", int64(id))
	if err != nil {
		return rec, err
	}
	rec.Producers = producers[rec.ID]
	if rec.Producers == nil {
		rec.Producers = []string{}
	}
	return rec, nil
}

// Create inserts a record from draft. Tracked stages start Incomplete, excluded ones NotApplicable, with no checkers.
func (r *BackupRepository) Create(draft models.BackupDraft) (models.BackupRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.BackupRecord{}, err
	}

	now := time.Now().UTC()
	cols := []string{"event_name", "displayed_date", "name", "description"}
	args := []any{nullString(draft.EventName), nullDate(draft.DisplayedDate), draft.Name, nullString(draft.Description)}
	for _, s := range models.Stages {
		cols = append(cols, string(s))
		args = append(args, int(draft.InitialState(s)))
	}
	cols = append(cols, "version", "created_at", "updated_at")
	args = append(args, 1, now, now)

	query := fmt.Sprintf("INSERT INTO backup_status (%s) VALUES (?%s)",
		strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))

	var id int64
	err := withTx(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert backup record: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get inserted id: %w", err)
		}
		return replaceProducers(tx, id, draft.ProducerIDs)
	})
	if err != nil {
		return models.BackupRecord{}, err
	}

	return r.Get(models.RecordID(id))
}

// Update replaces the editable fields of a record. Stage states are untouched.
// Producers are replaced only when draft.ProducerIDs is non-nil.
func (r *BackupRepository) Update(id models.RecordID, draft models.BackupDraft) (models.BackupRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.BackupRecord{}, err
	}

	err := withTx(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE backup_status
			SET event_name = ?, displayed_date = ?, name = ?, description = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`, nullString(draft.EventName), nullDate(draft.DisplayedDate), draft.Name, nullString(draft.Description),
			time.Now().UTC(), int64(id))
		if err != nil {
			return fmt.Errorf("failed to update backup record: %w", err)
		}
		if err := affected(res, fmt.Errorf("%w: backup record %d", shared.ErrNotFound, id)); err != nil {
			return err
		}
		if draft.ProducerIDs == nil {
			return nil
		}
		return replaceProducers(tx, int64(id), draft.ProducerIDs)
	})
	if err != nil {
		return models.BackupRecord{}, err
	}

	return r.Get(id)
}

// ApplyCompletion applies a partial stage update on behalf of actor.
//
// Stages moving to Complete are stamped with actor; stages moving to Incomplete lose their checker; stages already
// in the target state keep theirs. A non-zero expectedVersion that no longer matches yields
// [shared.ErrConflictLost]. Any change touching a NotApplicable stage rejects the whole update with
// [shared.ErrValidation].
func (r *BackupRepository) ApplyCompletion(id models.RecordID, changes map[models.Stage]models.StageState, actor models.UserID, expectedVersion int64) (models.BackupRecord, error) {
	if len(changes) == 0 {
		return models.BackupRecord{}, fmt.Errorf("%w: no stage changes", shared.ErrValidation)
	}

	err := withTx(r.db, func(tx *sql.Tx) error {
		current, err := scanBackup(tx.QueryRow(backupSelect+" WHERE b.id = ? AND b.deleted_at IS NULL", int64(id)))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: backup record %d", shared.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to query backup record: %w", err)
		}

		if expectedVersion != 0 && expectedVersion != current.Version {
			return fmt.Errorf("%w: record %d is at version %d, not %d", shared.ErrConflictLost, id, current.Version, expectedVersion)
		}

		sets := []string{}
		args := []any{}
		for _, stage := range models.Stages {
			target, ok := changes[stage]
			if !ok {
				continue
			}
			next, err := current.Stage(stage).Transition(target, actor)
			if err != nil {
				return fmt.Errorf("stage %s: %w", stage, err)
			}

			var checker sql.NullInt64
			if next.VerifiedBy != nil {
				checker = sql.NullInt64{Int64: int64(*next.VerifiedBy), Valid: true}
			}
			sets = append(sets, string(stage)+" = ?", stage.CheckerField()+" = ?")
			args = append(args, int(next.State), checker)
		}

		sets = append(sets, "version = version + 1", "updated_at = ?")
		args = append(args, time.Now().UTC(), int64(id))

		_, err = tx.Exec("UPDATE backup_status SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("failed to apply stage changes: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.BackupRecord{}, err
	}

	return r.Get(id)
}

// Delete soft-deletes a record.
func (r *BackupRepository) Delete(id models.RecordID) error {
	res, err := r.db.Exec(`
		UPDATE backup_status SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete backup record: %w", err)
	}
	return affected(res, fmt.Errorf("%w: backup record %d", shared.ErrNotFound, id))
}

// producerNames maps each record matching filter to its producer names in the order they were given.
func (r *BackupRepository) producerNames(filter string, args ...any) (map[models.RecordID][]string, error) {
	rows, err := r.db.Query(`
		SELECT bp.backup_id, u.name
		FROM backup_producers bp
		JOIN users u ON u.id = bp.user_id
		`+filter+`
		ORDER BY bp.backup_id, bp.position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query producers: %w", err)
	}
	defer rows.Close()

	out := make(map[models.RecordID][]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan producer: %w", err)
		}
		out[models.RecordID(id)] = append(out[models.RecordID(id)], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// replaceProducers swaps the producer set of a record. Unknown user ids are a validation error.
func replaceProducers(tx *sql.Tx, backupID int64, ids []models.UserID) error {
	if _, err := tx.Exec("DELETE FROM backup_producers WHERE backup_id = ?", backupID); err != nil {
		return fmt.Errorf("failed to clear producers: %w", err)
	}

	seen := make(map[models.UserID]bool, len(ids))
	for pos, uid := range ids {
		if seen[uid] {
			continue
		}
		seen[uid] = true

		var exists bool
		if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", int64(uid)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check producer: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: unknown producer user %d", shared.ErrValidation, uid)
		}

		_, err := tx.Exec("INSERT INTO backup_producers (backup_id, user_id, position) VALUES (?, ?, ?)",
			backupID, int64(uid), pos)
		if err != nil {
			return fmt.Errorf("failed to insert producer: %w", err)
		}
	}
	return nil
}

func nullDate(d *time.Time) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.UTC(), Valid: true}
}
