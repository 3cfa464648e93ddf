package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the user directory of the development backend. Passwords are stored as bcrypt hashes.
type UserRepository struct {
	db   *sql.DB
	cost int
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, cost: bcrypt.DefaultCost}
}

// Create inserts a user with a hashed password. Nicknames are unique.
func (r *UserRepository) Create(name, nickname, password string) (models.User, error) {
	name, nickname = strings.TrimSpace(name), strings.TrimSpace(nickname)
	if name == "" || nickname == "" || password == "" {
		return models.User{}, fmt.Errorf("%w: name, nickname and password are required", shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE nickname = ?)", nickname).Scan(&exists); err != nil {
		return models.User{}, fmt.Errorf("failed to check nickname: %w", err)
	}
	if exists {
		return models.User{}, fmt.Errorf("%w: nickname %q is taken", shared.ErrValidation, nickname)
	}

	res, err := r.db.Exec(
		"INSERT INTO users (name, nickname, password_hash, created_at) VALUES (?, ?, ?, ?)",
		name, nickname, string(hash), time.Now().UTC(),
	)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return models.User{ID: models.UserID(id), Name: name, Nickname: nickname}, nil
}

// Get retrieves a user by id.
func (r *UserRepository) Get(id models.UserID) (models.User, error) {
	u := models.User{ID: id}
	err := r.db.QueryRow("SELECT name, nickname FROM users WHERE id = ?", int64(id)).Scan(&u.Name, &u.Nickname)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// Authenticate checks nickname and password, returning [shared.ErrAuthFailed] for any mismatch.
func (r *UserRepository) Authenticate(nickname, password string) (models.User, error) {
	var (
		id   int64
		u    models.User
		hash string
	)
	err := r.db.QueryRow(
		"SELECT id, name, nickname, password_hash FROM users WHERE nickname = ?", strings.TrimSpace(nickname),
	).Scan(&id, &u.Name, &u.Nickname, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, shared.ErrAuthFailed
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.User{}, shared.ErrAuthFailed
	}

	u.ID = models.UserID(id)
	return u, nil
}

// List returns every user ordered by id.
func (r *UserRepository) List() ([]models.User, error) {
	rows, err := r.db.Query("SELECT id, name, nickname FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var (
			id int64
			u  models.User
		)
		if err := rows.Scan(&id, &u.Name, &u.Nickname); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID = models.UserID(id)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}
