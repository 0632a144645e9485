package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron"

	"github.com/starford/strand/internal/metrics"
)

// DefaultSchedule runs retention once a day.
const DefaultSchedule = "@daily"

// Janitor applies a retention policy to the backup root on a cron schedule.
type Janitor struct {
	dir      string
	policy   RetentionPolicy
	schedule string
	logger   *slog.Logger
}

// NewJanitor returns a janitor for dir. schedule uses robfig/cron syntax
// (six fields or a descriptor such as "@daily").
func NewJanitor(dir string, policy RetentionPolicy, schedule string, logger *slog.Logger) *Janitor {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Janitor{dir: dir, policy: policy, schedule: schedule, logger: logger}
}

// Prune runs one retention pass and returns the removed paths.
func (j *Janitor) Prune() ([]string, error) {
	if j.policy == nil {
		return nil, nil
	}
	deleted, err := ApplyRetention(j.dir, j.policy)
	metrics.BackupsPruned.Add(float64(len(deleted)))
	if err != nil {
		j.logger.Error("backup: retention failed", slog.String("error", err.Error()))
		return deleted, err
	}
	j.logger.Info("backup: retention applied", slog.Int("removed", len(deleted)))
	return deleted, nil
}

// Run schedules Prune and blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	if j.policy == nil {
		j.logger.Info("backup: no retention policy configured")
		<-ctx.Done()
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(j.schedule, func() { _, _ = j.Prune() }); err != nil {
		return fmt.Errorf("backup: schedule %q: %w", j.schedule, err)
	}
	c.Start()
	j.logger.Info("backup: janitor started", slog.String("schedule", j.schedule))

	<-ctx.Done()
	c.Stop()
	j.logger.Info("backup: janitor stopped")
	return nil
}
