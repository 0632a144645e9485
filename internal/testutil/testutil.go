// Package testutil provides shared test helpers for content trees and index databases.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/strand/internal/index"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
)

// TestDB creates a temporary SQLite index that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content root and backup root.
func TestContent(t *testing.T) *storage.FS {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(filepath.Join(dir, "content"), filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MusicNode returns a valid music node patch with the given id.
func MusicNode(id, title string) models.NodePatch {
	return models.NodePatch{
		ID:      models.Ptr(id),
		Title:   models.Ptr(title),
		Type:    models.Ptr(models.NodeMusic),
		Threads: []models.ThreadTag{models.ThreadMusic},
	}
}

// EssayNode returns a valid essay node patch backed by <id>.md.
func EssayNode(id, title string) models.NodePatch {
	return models.NodePatch{
		ID:        models.Ptr(id),
		Title:     models.Ptr(title),
		Type:      models.Ptr(models.NodeEssay),
		Threads:   []models.ThreadTag{models.ThreadQuestions},
		EssayFile: models.Ptr(id + ".md"),
	}
}
