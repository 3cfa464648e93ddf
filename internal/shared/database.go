package shared

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// dsn turns on foreign keys for every connection the pool opens.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

// ConfigureDatabase sets connection pool settings for the database.
//
// In-memory databases must stay on a single connection, otherwise each new connection sees an empty schema.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// OpenMigrated opens the database at path, applies pool settings and runs all pending migrations.
func OpenMigrated(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}

	ConfigureDatabase(db, max(cfg.MaxOpenConns, 1), max(cfg.MaxIdleConns, 1))

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// StateLock guards the local state database against concurrent writers.
type StateLock struct {
	fl *flock.Flock
}

// LockState takes an exclusive, non-blocking lock next to the database file.
//
// Returns [ErrStateLocked] when another process holds it. In-memory databases need no lock.
func LockState(dbPath string) (*StateLock, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return &StateLock{}, nil
	}

	fl := flock.New(dbPath + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock local state: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStateLocked, fl.Path())
	}
	return &StateLock{fl: fl}, nil
}

// Release drops the lock. Safe to call on a nil or no-op lock.
func (l *StateLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release local state lock: %w", err)
	}
	return nil
}
