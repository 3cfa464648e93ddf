package shared

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		want    log.Level
		wantErr bool
	}{
		{name: "empty defaults to info", input: "", want: log.InfoLevel},
		{name: "debug", input: "debug", want: log.DebugLevel},
		{name: "mixed case", input: " WARN ", want: log.WarnLevel},
		{name: "unknown", input: "verbose", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLockState(t *testing.T) {
	t.Run("memory database needs no lock", func(t *testing.T) {
		lock, err := LockState(":memory:")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := lock.Release(); err != nil {
			t.Errorf("release failed: %v", err)
		}
	})

	t.Run("second lock is refused until release", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "state.db")

		first, err := LockState(dbPath)
		if err != nil {
			t.Fatalf("failed to take first lock: %v", err)
		}

		if _, err := LockState(dbPath); !errors.Is(err, ErrStateLocked) {
			t.Fatalf("expected ErrStateLocked, got %v", err)
		}

		if err := first.Release(); err != nil {
			t.Fatalf("release failed: %v", err)
		}

		again, err := LockState(dbPath)
		if err != nil {
			t.Fatalf("expected lock after release, got %v", err)
		}
		again.Release()
	})
}

func TestOpenMigrated(t *testing.T) {
	t.Run("every pooled connection enforces foreign keys", func(t *testing.T) {
		ctx := context.Background()
		db, err := OpenMigrated(DatabaseConfig{Path: filepath.Join(t.TempDir(), "state.db"), MaxOpenConns: 2, MaxIdleConns: 2})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		first, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to get first connection: %v", err)
		}
		defer first.Close()
		second, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to get second connection: %v", err)
		}
		defer second.Close()

		for i, conn := range []*sql.Conn{first, second} {
			var enabled int
			if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
				t.Fatalf("connection %d: %v", i, err)
			}
			if enabled != 1 {
				t.Errorf("connection %d: expected foreign_keys 1, got %d", i, enabled)
			}
		}
	})

	t.Run("foreign keys ride on the connection string", func(t *testing.T) {
		if got := dsn(":memory:"); got != ":memory:?_foreign_keys=on" {
			t.Errorf("unexpected dsn %q", got)
		}
		if got := dsn("file:state.db?cache=shared"); got != "file:state.db?cache=shared&_foreign_keys=on" {
			t.Errorf("unexpected dsn %q", got)
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"a": 1}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(compact) != `{"a":1}` {
		t.Errorf("unexpected compact output %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(pretty) != "{\n  \"a\": 1\n}" {
		t.Errorf("unexpected pretty output %s", pretty)
	}
}
