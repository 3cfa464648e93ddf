// package testing contains test doubles and fixtures shared by the package tests
package testing

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/isaac-jh/ym-library/internal/shared"
)

// MemoryDB opens a migrated in-memory database on a single connection, closed when the test ends.
func MemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenMigrated(shared.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter fails every write, standing in for a closed terminal.
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter passes writes through until maxWrites is reached
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// StubTransport answers every request with the same response or transport error.
type StubTransport struct {
	response *http.Response
	err      error
	Calls    int
}

func NewStubTransport(r *http.Response, e error) *StubTransport {
	return &StubTransport{response: r, err: e}
}

func (s *StubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	s.Calls++
	return s.response, s.err
}

// FailingBody is a response body whose reads fail.
type FailingBody struct{}

func (f *FailingBody) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FailingBody) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	return wd
}

// MustChdir switches into dir and restores the previous working directory when the test ends.
func MustChdir(t *testing.T, dir string) {
	t.Helper()
	prev := MustGetwd(t)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("file does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(content)
}
