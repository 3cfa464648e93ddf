package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// SessionRepository persists the single logged-in session of the local client.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save stores session, replacing any previous one.
func (r *SessionRepository) Save(session models.Session) error {
	if _, err := session.Actor(); err != nil {
		return fmt.Errorf("refusing to save session: %w", err)
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sessions (id, user_id, name, nickname, access_token, token_type, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			nickname = excluded.nickname,
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			created_at = excluded.created_at
	`

	_, err := r.db.Exec(query, int64(session.User.ID), session.User.Name, session.User.Nickname,
		session.AccessToken, session.TokenType, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the stored session or [shared.ErrNotAuthenticated] when nobody is logged in.
func (r *SessionRepository) Load() (models.Session, error) {
	var (
		s      models.Session
		userID int64
	)

	err := r.db.QueryRow(`
		SELECT user_id, name, nickname, access_token, token_type, created_at
		FROM sessions WHERE id = 1
	`).Scan(&userID, &s.User.Name, &s.User.Nickname, &s.AccessToken, &s.TokenType, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, shared.ErrNotAuthenticated
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	s.User.ID = models.UserID(userID)
	return s, nil
}

// Clear logs out. Clearing an empty store is not an error.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
