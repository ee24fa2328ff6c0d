// Package testutil provides shared test helpers for storage and workspaces.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/kenaz-notebook/internal/storage"
	"github.com/starford/kenaz-notebook/internal/workspace"
)

// CommitDelay is the editor commit delay used by TestWorkspace.
const CommitDelay = 20 * time.Millisecond

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a file store in a temporary data directory.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestSQLite opens a SQLite provider in a temporary directory. It is closed
// on cleanup.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "kenaz-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace opens a demo-seeded workspace on p with short delays. It is
// closed on cleanup.
func TestWorkspace(t *testing.T, p storage.Provider) *workspace.Workspace {
	t.Helper()
	ws := workspace.Open(workspace.Options{
		Provider:           p,
		Logger:             Logger(),
		CommitDelay:        CommitDelay,
		SaveIndicatorDelay: 2 * CommitDelay,
		SeedDemo:           true,
	})
	t.Cleanup(ws.Close)
	return ws
}
