package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// CatalogRepository is the archive catalog of the development backend.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new [CatalogRepository] with the given database connection
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Create inserts an entry and returns it with its assigned id.
func (r *CatalogRepository) Create(item models.ActivityItem) (models.ActivityItem, error) {
	if strings.TrimSpace(item.ActivityName) == "" {
		return item, fmt.Errorf("%w: activity name is required", shared.ErrValidation)
	}
	if item.Month < 1 || item.Month > 12 {
		return item, fmt.Errorf("%w: month %d out of range", shared.ErrValidation, item.Month)
	}

	res, err := r.db.Exec(`
		INSERT INTO storage_catalogs (storage, category, year, month, activity_name, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.Storage, item.Category, item.Year, item.Month, item.ActivityName, nullString(item.Description))
	if err != nil {
		return item, fmt.Errorf("failed to insert catalog entry: %w", err)
	}

	if item.ID, err = res.LastInsertId(); err != nil {
		return item, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return item, nil
}

// List returns up to limit entries, newest first, with the total count.
func (r *CatalogRepository) List(limit int) ([]models.ActivityItem, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM storage_catalogs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count catalog entries: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, storage, category, year, month, activity_name, description
		FROM storage_catalogs
		ORDER BY year DESC, month DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	items := []models.ActivityItem{}
	for rows.Next() {
		var (
			item models.ActivityItem
			desc sql.NullString
		)
		err := rows.Scan(&item.ID, &item.Storage, &item.Category, &item.Year, &item.Month, &item.ActivityName, &desc)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		item.Description = desc.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	return items, total, nil
}
