// Package janitor sweeps expired temp repo clones on a schedule so failed or
// crashed jobs do not leak disk.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

// sweepInterval is how often the janitor looks for expired clones.
const sweepInterval = time.Hour

// Janitor owns the gocron scheduler running the periodic sweep.
type Janitor struct {
	scheduler gocron.Scheduler
	dir       string
	maxAge    time.Duration
}

// New creates a janitor for the configured temp repo directory.
func New(cfg config.StorageConfig) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Janitor{
		scheduler: s,
		dir:       cfg.TempReposPath,
		maxAge:    time.Duration(cfg.TempRepoMaxAgeHours) * time.Hour,
	}, nil
}

// Start registers the sweep job and begins the scheduler. The first sweep
// runs immediately so a restart cleans up leftovers right away.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(j.sweep, ctx),
		gocron.WithName("temp-repo-sweep"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule temp repo sweep: %w", err)
	}
	j.scheduler.Start()
	return nil
}

// Stop shuts down the scheduler, waiting for a running sweep to finish.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

// sweep removes clone directories older than the configured max age.
func (j *Janitor) sweep(ctx context.Context) {
	ctx = observability.WithComponent(ctx, "janitor")
	removed, err := j.SweepOnce(ctx, time.Now())
	if err != nil {
		observability.WarnContext(ctx, "temp repo sweep failed", logfields.Error(err))
		return
	}
	if removed > 0 {
		observability.InfoContext(ctx, "temp repo sweep removed expired clones",
			logfields.Path(j.dir), slog.Int("removed", removed))
	}
}

// SweepOnce removes expired entries and reports how many were deleted. A
// missing directory is not an error; nothing has been cloned yet.
func (j *Janitor) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	entries, err := os.ReadDir(j.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read temp repo dir: %w", err)
	}

	cutoff := now.Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			observability.WarnContext(ctx, "failed to remove expired clone",
				logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
