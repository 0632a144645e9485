package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		change Change
		want   string
	}{
		{Change{Op: OpCreate, ContentType: "essay", Title: "On Listening"}, "Add essay: On Listening"},
		{Change{Op: OpUpdate, ContentType: "durational", Subtype: "dj-mix", Title: "Night Set"}, "Update mix: Night Set"},
		{Change{Op: OpDelete, ContentType: "durational", Subtype: "talk", Title: "Q&A"}, "Delete talk: Q&A"},
		{Change{Op: OpCreate, ContentType: "durational", Title: "Untyped"}, "Add durational: Untyped"},
		{Change{Op: OpUpdate, ContentType: "music", Subtype: "dj-mix", Title: "Only durational maps"}, "Update music: Only durational maps"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message(tt.change))
	}
}

func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_AUTHOR_NAME", "strand")
	t.Setenv("GIT_AUTHOR_EMAIL", "strand@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "strand")
	t.Setenv("GIT_COMMITTER_EMAIL", "strand@example.com")

	dir := t.TempDir()
	run(t, dir, "init", "-q")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "content", "nodes"), 0o755))
	return dir
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func TestRecord_Commits(t *testing.T) {
	dir := gitRepo(t)
	rec := NewRecorder(Config{Enabled: true, RepoDir: dir, Paths: "content", Timeout: 5 * time.Second}, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "nodes", "alpha.json"), []byte(`{"id":"alpha"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "outside.txt"), []byte("x"), 0o644))

	rec.Record(context.Background(), Change{Op: OpCreate, ContentType: "music", Title: "Alpha"})
	assert.Equal(t, "Add music: Alpha", run(t, dir, "log", "-1", "--format=%s"))
	assert.Equal(t, "?? outside.txt", run(t, dir, "status", "--porcelain"))

	// Nothing new under content: no second commit.
	rec.Record(context.Background(), Change{Op: OpUpdate, ContentType: "music", Title: "Alpha"})
	assert.Equal(t, "1", run(t, dir, "rev-list", "--count", "HEAD"))

	require.NoError(t, os.Remove(filepath.Join(dir, "content", "nodes", "alpha.json")))
	rec.Record(context.Background(), Change{Op: OpDelete, ContentType: "music", Title: "Alpha"})
	assert.Equal(t, "Delete music: Alpha", run(t, dir, "log", "-1", "--format=%s"))
}

func TestRecord_Disabled(t *testing.T) {
	dir := gitRepo(t)
	rec := NewRecorder(Config{Enabled: false, RepoDir: dir, Paths: "content"}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "nodes", "a.json"), []byte(`{}`), 0o644))

	rec.Record(context.Background(), Change{Op: OpCreate, ContentType: "bio", Title: "A"})
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	assert.Error(t, cmd.Run(), "no commit expected")
}

func TestRecord_GitMissingIsSwallowed(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	rec := NewRecorder(Config{Enabled: true, RepoDir: t.TempDir()}, nil)
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Change{Op: OpCreate, ContentType: "bio", Title: "A"})
	})
	_, err := rec.record(context.Background(), Change{})
	assert.ErrorContains(t, err, "upstream tool unavailable")
}

func TestRecord_NotARepoIsSwallowed(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	rec := NewRecorder(Config{Enabled: true, RepoDir: t.TempDir()}, nil)
	status, err := rec.record(context.Background(), Change{Op: OpCreate, ContentType: "bio", Title: "A"})
	assert.Error(t, err)
	assert.Equal(t, "error", status)
}

func TestRecord_NilRecorder(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() { rec.Record(context.Background(), Change{}) })
}
