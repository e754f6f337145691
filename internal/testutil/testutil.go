// Package testutil provides shared test helpers for master files and
// index databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vigil/internal/index"
	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/models"
)

// Header is a master header using the default column names.
const Header = "Incident ID,Incident Date,State,City Or County,Address,Victims Killed,Victims Injured,latitude,longitude\n"

// Sample is a three-row master file, most recent first.
const Sample = Header +
	"3003,\"July 4, 2025\",Ohio,Akron,100 Main St,2,5,41.08,-81.51\n" +
	"3002,\"June 1, 2025\",Texas,Austin,5 Congress Ave,0,4,,\n" +
	"3001,\"December 30, 2024\",Utah,Provo,,1,3,40.23,-111.65\n"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vigil-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MasterFile writes content as a master file in a temporary directory and
// opens it with the default columns.
func MasterFile(t *testing.T, content string) *master.Store {
	t.Helper()
	p := filepath.Join(t.TempDir(), "gva_master.csv")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := master.Open(p, models.DefaultColumns())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// SyncedDB returns a database mirroring content.
func SyncedDB(t *testing.T, content string) (*index.DB, *master.Store) {
	t.Helper()
	db := TestDB(t)
	store := MasterFile(t, content)
	if _, err := index.Sync(db, store, Logger()); err != nil {
		t.Fatal(err)
	}
	return db, store
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
