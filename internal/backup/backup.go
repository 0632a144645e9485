// Package backup lists, restores and prunes the timestamped copies the
// storage layer takes before any destructive write.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
)

// ScopeCollection marks backups of phrases.json and connections.json.
const ScopeCollection = "collection"

// Entry is one file in the backup root.
type Entry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Scope     string    `json:"scope"`
	Original  string    `json:"original"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// List scans dir and returns the backups it recognizes, newest first.
// A missing directory has no backups.
func List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("backup: read dir: %w", err)
	}

	out := []Entry{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, scope, original, ok := storage.ParseBackupName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:      e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			Scope:     scope,
			Original:  original,
			Size:      info.Size(),
			CreatedAt: ts,
		})
	}

	// Names start with the timestamp, so a reverse name sort is newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Restored describes a completed restore.
type Restored struct {
	Scope string `json:"scope"`
	ID    string `json:"id"`
	// Previous is the copy taken of the file the restore replaced, if any.
	Previous *models.BackupInfo `json:"previous,omitempty"`
}

// Restore writes backup name from the store's backup root back to its
// original location. The current file, if present, is backed up first.
func Restore(store storage.Provider, name string) (*Restored, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return nil, fmt.Errorf("backup %q: %w", name, apperr.ErrInvalidPath)
	}
	_, scope, original, ok := storage.ParseBackupName(name)
	if !ok {
		return nil, fmt.Errorf("backup %q: unrecognized name: %w", name, apperr.ErrInvalidPath)
	}
	data, err := os.ReadFile(filepath.Join(store.BackupRoot(), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup %q: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("backup %q: %w: %w", name, apperr.ErrIOFailure, err)
	}

	if scope == ScopeCollection {
		c := storage.Collection(strings.TrimSuffix(original, ".json"))
		prev, err := store.BackupCollection(c)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if err := store.WriteCollection(c, data); err != nil {
			return nil, err
		}
		return &Restored{Scope: scope, ID: string(c), Previous: prev}, nil
	}

	kind := storage.Kind(scope)
	id := original
	if kind != storage.KindEssays {
		id = strings.TrimSuffix(original, ".json")
	}
	prev, err := store.Backup(kind, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if err := store.Write(kind, id, data); err != nil {
		return nil, err
	}
	return &Restored{Scope: scope, ID: id, Previous: prev}, nil
}
