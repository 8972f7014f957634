// Package testhelpers opens real stores for tests in other packages.
package testhelpers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"kpitracker/internal/platform/db"
)

// DiscardLogger keeps test output free of store and request logs.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLite returns a manager over a fresh database file with the schema applied.
func NewSQLite(t testing.TB) *db.Manager {
	t.Helper()
	m := db.NewManager(db.SQLite, db.SQLiteOpener(filepath.Join(t.TempDir(), "kpi.db")), DiscardLogger())
	t.Cleanup(func() { _ = m.Close() })
	if err := db.EnsureSchema(context.Background(), m); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return m
}
