// Package vcs records content changes as git commits.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/metrics"
	"github.com/starford/strand/internal/models"
)

// Op is the kind of change being recorded.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

func (o Op) verb() string {
	switch o {
	case OpCreate:
		return "Add"
	case OpUpdate:
		return "Update"
	default:
		return "Delete"
	}
}

// Change describes one mutation of the content tree.
type Change struct {
	Op          Op
	ContentType string
	Title       string
	Subtype     string
}

// Message renders the commit message for c, e.g. "Add mix: Night Set".
func Message(c Change) string {
	return fmt.Sprintf("%s %s: %s", c.Op.verb(), label(c.ContentType, c.Subtype), c.Title)
}

func label(contentType, subtype string) string {
	if contentType == string(models.NodeDurational) && subtype != "" {
		if subtype == string(models.SubtypeDJMix) {
			return "mix"
		}
		return subtype
	}
	return contentType
}

// Config controls a Recorder.
type Config struct {
	Enabled bool
	RepoDir string
	// Paths is the pathspec staged and committed, usually the content root.
	Paths   string
	Timeout time.Duration
}

// Recorder commits content changes. Failures are logged, never returned.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
}

// NewRecorder returns a recorder for cfg.
func NewRecorder(cfg Config, logger *slog.Logger) *Recorder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Paths == "" {
		cfg.Paths = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// Record stages and commits any pending change under the content path.
func (r *Recorder) Record(ctx context.Context, c Change) {
	if r == nil || !r.cfg.Enabled {
		return
	}
	status, err := r.record(ctx, c)
	metrics.Commits.WithLabelValues(status).Inc()
	if err != nil {
		r.logger.Warn("vcs: commit skipped",
			slog.String("status", status),
			slog.String("message", Message(c)),
			slog.String("error", err.Error()))
	}
}

func (r *Recorder) record(ctx context.Context, c Change) (string, error) {
	if _, err := r.git(ctx, "--version"); err != nil {
		return "unavailable", fmt.Errorf("%w: %v", apperr.ErrToolUnavailable, err)
	}

	out, err := r.git(ctx, "status", "--porcelain", "--", r.cfg.Paths)
	if err != nil {
		return metrics.StatusError, fmt.Errorf("git status: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		r.logger.Debug("vcs: nothing to commit")
		return "clean", nil
	}

	if _, err := r.git(ctx, "add", "--all", "--", r.cfg.Paths); err != nil {
		return metrics.StatusError, fmt.Errorf("git add: %w", err)
	}
	msg := Message(c)
	if _, err := r.git(ctx, "commit", "-m", msg); err != nil {
		return metrics.StatusError, fmt.Errorf("git commit: %w", err)
	}
	r.logger.Info("vcs: committed", slog.String("message", msg))
	return metrics.StatusOK, nil
}

// git runs one git command in the repository under the recorder's timeout.
func (r *Recorder) git(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.cfg.RepoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s: timed out after %s", args[0], r.cfg.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
