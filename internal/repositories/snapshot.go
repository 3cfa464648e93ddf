package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// SnapshotRepository caches the last server-confirmed version of each record, in server order.
//
// Records are stored in their wire form so the cache reads back exactly what the server said.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new [SnapshotRepository] with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// ReplaceAll swaps the whole cache for records, keeping their order.
func (r *SnapshotRepository) ReplaceAll(records []models.BackupRecord) error {
	now := time.Now().UTC()
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM record_snapshots"); err != nil {
			return fmt.Errorf("failed to clear snapshots: %w", err)
		}
		for i, rec := range records {
			payload, err := json.Marshal(services.ItemFromRecord(rec))
			if err != nil {
				return fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
			}
			_, err = tx.Exec(
				"INSERT INTO record_snapshots (id, position, payload, synced_at) VALUES (?, ?, ?, ?)",
				int64(rec.ID), i, string(payload), now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert snapshot %d: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Put stores rec, keeping the position of an existing snapshot and appending new ones.
func (r *SnapshotRepository) Put(rec models.BackupRecord) error {
	payload, err := json.Marshal(services.ItemFromRecord(rec))
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
	}

	query := `
		INSERT INTO record_snapshots (id, position, payload, synced_at)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM record_snapshots), ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, synced_at = excluded.synced_at
	`
	if _, err := r.db.Exec(query, int64(rec.ID), string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store snapshot %d: %w", rec.ID, err)
	}
	return nil
}

// Remove drops the snapshot for id.
func (r *SnapshotRepository) Remove(id models.RecordID) error {
	if _, err := r.db.Exec("DELETE FROM record_snapshots WHERE id = ?", int64(id)); err != nil {
		return fmt.Errorf("failed to remove snapshot %d: %w", id, err)
	}
	return nil
}

// Get returns the cached record for id or [shared.ErrNotFound].
func (r *SnapshotRepository) Get(id models.RecordID) (models.BackupRecord, error) {
	var payload string
	err := r.db.QueryRow("SELECT payload FROM record_snapshots WHERE id = ?", int64(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BackupRecord{}, fmt.Errorf("%w: record %d is not cached", shared.ErrNotFound, id)
	}
	if err != nil {
		return models.BackupRecord{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

// All returns the cached records in server order, with the time of the oldest sync.
func (r *SnapshotRepository) All() ([]models.BackupRecord, time.Time, error) {
	rows, err := r.db.Query("SELECT payload, synced_at FROM record_snapshots ORDER BY position, id")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var (
		records []models.BackupRecord
		oldest  time.Time
	)
	for rows.Next() {
		var (
			payload  string
			syncedAt time.Time
		)
		if err := rows.Scan(&payload, &syncedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		rec, err := decodeSnapshot(payload)
		if err != nil {
			return nil, time.Time{}, err
		}
		if oldest.IsZero() || syncedAt.Before(oldest) {
			oldest = syncedAt
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("row iteration error: %w", err)
	}
	return records, oldest, nil
}

func decodeSnapshot(payload string) (models.BackupRecord, error) {
	var item services.BackupStatusItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return models.BackupRecord{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return item.Record()
}
