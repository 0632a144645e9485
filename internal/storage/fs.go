package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/models"
)

const (
	tmpPrefix = ".strand-tmp-"
	// BackupTimeLayout is the timestamp prefix of every backup file.
	BackupTimeLayout = "2006-01-02T15-04-05"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root       string // absolute content root
	backupRoot string // absolute backup root, created on first backup
	now        func() time.Time
}

// NewFS creates a provider rooted at root, creating the per-kind directories.
// backupRoot receives timestamped copies of anything deleted or overwritten.
func NewFS(root, backupRoot string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	babs, err := filepath.Abs(backupRoot)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve backup root: %w", err)
	}
	for _, k := range Kinds {
		if err := os.MkdirAll(filepath.Join(abs, string(k)), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", k, err)
		}
	}
	return &FS{root: abs, backupRoot: babs, now: time.Now}, nil
}

// Root returns the absolute content root.
func (f *FS) Root() string { return f.root }

// BackupRoot returns the absolute backup root.
func (f *FS) BackupRoot() string { return f.backupRoot }

// Dir returns the absolute directory of kind.
func (f *FS) Dir(kind Kind) string { return filepath.Join(f.root, string(kind)) }

func fileName(kind Kind, id string) string {
	if kind == KindEssays {
		return id
	}
	return id + ".json"
}

// safePath resolves entity id of kind and rejects anything that would leave the
// kind directory (separators, dot segments, absolute paths, NUL bytes).
func (f *FS) safePath(kind Kind, id string) (string, error) {
	if !validKind(kind) {
		return "", fmt.Errorf("storage: unknown kind %q: %w", kind, apperr.ErrInvalidPath)
	}
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) || filepath.IsAbs(id) {
		return "", fmt.Errorf("storage: %s id %q: %w", kind, id, apperr.ErrInvalidPath)
	}
	name := fileName(kind, id)
	if kind == KindNodes && name == ManifestFile {
		return "", fmt.Errorf("storage: %q is reserved for the manifest: %w", id, apperr.ErrInvalidPath)
	}
	dir := f.Dir(kind)
	abs := filepath.Join(dir, name)
	if filepath.Dir(abs) != dir {
		return "", fmt.Errorf("storage: path escapes %s root: %w", kind, apperr.ErrInvalidPath)
	}
	return abs, nil
}

func validKind(kind Kind) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (f *FS) collectionPath(c Collection) (string, error) {
	switch c {
	case CollectionPhrases, CollectionConnections:
		return filepath.Join(f.root, string(c)+".json"), nil
	}
	return "", fmt.Errorf("storage: unknown collection %q: %w", c, apperr.ErrInvalidPath)
}

// Read returns the raw bytes of entity id of kind.
func (f *FS) Read(kind Kind, id string) ([]byte, error) {
	abs, err := f.safePath(kind, id)
	if err != nil {
		return nil, err
	}
	return readFile(abs, string(kind)+"/"+id)
}

// Write atomically replaces entity id of kind: tmp file → fsync → rename.
func (f *FS) Write(kind Kind, id string, data []byte) error {
	abs, err := f.safePath(kind, id)
	if err != nil {
		return err
	}
	return writeAtomic(abs, data)
}

// Delete copies entity id of kind into the backup root and then removes it.
// A failed backup leaves the entity in place.
func (f *FS) Delete(kind Kind, id string) (*models.BackupInfo, error) {
	abs, err := f.safePath(kind, id)
	if err != nil {
		return nil, err
	}
	info, err := f.backup(abs, string(kind))
	if err != nil {
		return nil, err
	}
	if err := os.Remove(abs); err != nil {
		return nil, fmt.Errorf("storage: delete %s/%s: %w: %w", kind, id, apperr.ErrIOFailure, err)
	}
	return info, nil
}

// Backup copies entity id of kind into the backup root without removing it.
func (f *FS) Backup(kind Kind, id string) (*models.BackupInfo, error) {
	abs, err := f.safePath(kind, id)
	if err != nil {
		return nil, err
	}
	return f.backup(abs, string(kind))
}

// List returns the ids of kind in lexical order. Temp files and the manifest
// are never listed.
func (f *FS) List(kind Kind) ([]string, error) {
	if !validKind(kind) {
		return nil, fmt.Errorf("storage: unknown kind %q: %w", kind, apperr.ErrInvalidPath)
	}
	entries, err := os.ReadDir(f.Dir(kind))
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w: %w", kind, apperr.ErrIOFailure, err)
	}
	ext := ".json"
	if kind == KindEssays {
		ext = ".md"
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		if kind == KindNodes && name == ManifestFile {
			continue
		}
		if kind == KindEssays {
			out = append(out, name)
		} else {
			out = append(out, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadCollection returns the raw bytes of collection c.
func (f *FS) ReadCollection(c Collection) ([]byte, error) {
	abs, err := f.collectionPath(c)
	if err != nil {
		return nil, err
	}
	return readFile(abs, string(c))
}

// WriteCollection atomically replaces collection c.
func (f *FS) WriteCollection(c Collection, data []byte) error {
	abs, err := f.collectionPath(c)
	if err != nil {
		return err
	}
	return writeAtomic(abs, data)
}

// BackupCollection copies collection c into the backup root.
func (f *FS) BackupCollection(c Collection) (*models.BackupInfo, error) {
	abs, err := f.collectionPath(c)
	if err != nil {
		return nil, err
	}
	return f.backup(abs, "collection")
}

// ReadManifest returns the generated manifest.
func (f *FS) ReadManifest() ([]byte, error) {
	return readFile(filepath.Join(f.Dir(KindNodes), ManifestFile), ManifestFile)
}

// WriteManifest atomically replaces the generated manifest.
func (f *FS) WriteManifest(data []byte) error {
	return writeAtomic(filepath.Join(f.Dir(KindNodes), ManifestFile), data)
}

// backupNameRe matches <timestamp>[.<n>]-<scope>-<file>.
var backupNameRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})(?:\.\d+)?-(nodes|essays|curiosities|durational|collection)-(.+)$`)

// ParseBackupName splits a backup file name into its timestamp, scope and
// original file name.
func ParseBackupName(name string) (ts time.Time, scope, original string, ok bool) {
	m := backupNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, "", "", false
	}
	ts, err := time.ParseInLocation(BackupTimeLayout, m[1], time.UTC)
	if err != nil {
		return time.Time{}, "", "", false
	}
	return ts, m[2], m[3], true
}

// backup copies abs to <backupRoot>/<timestamp>-<scope>-<basename>. Copies taken
// within the same second get a numeric suffix on the timestamp.
func (f *FS) backup(abs, scope string) (*models.BackupInfo, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: backup %s: %w", filepath.Base(abs), apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: backup read: %w: %w", apperr.ErrIOFailure, err)
	}
	if err := os.MkdirAll(f.backupRoot, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir backup root: %w: %w", apperr.ErrIOFailure, err)
	}

	ts := f.now().UTC().Format(BackupTimeLayout)
	stamp := ts
	var dst string
	for n := 1; ; n++ {
		dst = filepath.Join(f.backupRoot, stamp+"-"+scope+"-"+filepath.Base(abs))
		if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
			break
		}
		stamp = ts + "." + strconv.Itoa(n)
	}
	if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("storage: write backup: %w: %w", apperr.ErrIOFailure, err)
	}
	return &models.BackupInfo{
		OriginalPath: abs,
		BackupPath:   dst,
		Timestamp:    stamp,
	}, nil
}

func readFile(abs, label string) ([]byte, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", label, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w: %w", label, apperr.ErrIOFailure, err)
	}
	return data, nil
}

// writeTemp writes data to a new temp file next to dest and returns its name.
// The temp file is removed on any failure.
func writeTemp(dest string, data []byte) (string, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w: %w", apperr.ErrIOFailure, err)
	}
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w: %w", apperr.ErrIOFailure, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("storage: write temp: %w: %w", apperr.ErrIOFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w: %w", apperr.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w: %w", apperr.ErrIOFailure, err)
	}
	success = true
	return tmpName, nil
}

// writeAtomic replaces dest so readers never observe a partial file.
func writeAtomic(dest string, data []byte) error {
	tmpName, err := writeTemp(dest, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: rename: %w: %w", apperr.ErrIOFailure, err)
	}
	return nil
}
