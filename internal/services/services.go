package services

import (
	"context"

	"github.com/isaac-jh/ym-library/internal/models"
)

// BackupAPI is the backup-status surface of the tracking backend.
type BackupAPI interface {
	// ListBackups fetches every record, up to the configured list limit.
	ListBackups(ctx context.Context) ([]models.BackupRecord, error)

	// GetBackup fetches a single record.
	GetBackup(ctx context.Context, id models.RecordID) (models.BackupRecord, error)

	// CreateBackup creates a record on behalf of actor and returns it as stored.
	CreateBackup(ctx context.Context, actor models.UserID, draft models.BackupDraft) (models.BackupRecord, error)

	// UpdateBackup replaces the editable fields of a record. Stage fields are not sent.
	UpdateBackup(ctx context.Context, actor models.UserID, id models.RecordID, draft models.BackupDraft) (models.BackupRecord, error)

	// MarkComplete sends a partial stage update and returns the record as the server now holds it.
	MarkComplete(ctx context.Context, id models.RecordID, req CompletionRequest) (models.BackupRecord, error)

	// DeleteBackup removes a record.
	DeleteBackup(ctx context.Context, actor models.UserID, id models.RecordID) error
}

// AuthAPI covers login and the user directory.
type AuthAPI interface {
	Login(ctx context.Context, nickname, password string) (models.Session, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// CatalogAPI lists the archive catalog.
type CatalogAPI interface {
	ListCatalog(ctx context.Context) ([]models.ActivityItem, error)
}

var (
	_ BackupAPI  = (*Client)(nil)
	_ AuthAPI    = (*Client)(nil)
	_ CatalogAPI = (*Client)(nil)
)
