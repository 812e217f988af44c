// Package repro is the reproduction pipeline: clone, detect, build, execute,
// report. One worker owns a job from pickup to its terminal status.
package repro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arandu-labs/arandu/internal/cloner"
	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/envdetect"
	"github.com/arandu-labs/arandu/internal/errs"
	"github.com/arandu-labs/arandu/internal/imagebuild"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/metrics"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/sandbox"
	"github.com/arandu-labs/arandu/internal/store"
)

// Worker processes reproduction jobs from the default queue.
type Worker struct {
	store   *store.Store
	cloner  *cloner.Cloner
	builder *imagebuild.Builder
	runner  *sandbox.Runner
	cfg     *config.Config
	rec     metrics.Recorder
}

// NewWorker wires a reproduction worker. rec may be nil.
func NewWorker(st *store.Store, cfg *config.Config, rec metrics.Recorder) *Worker {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Worker{
		store:   st,
		cloner:  cloner.New(cfg.Storage.TempReposPath),
		builder: imagebuild.New(cfg.Sandbox.DockerBinary, cfg.Sandbox.User, cfg.Sandbox.UID),
		runner:  sandbox.New(cfg.Sandbox),
		cfg:     cfg,
		rec:     rec,
	}
}

// Process runs the full pipeline for one job. Failures are terminal: the job
// is marked failed with a classified message and the queue item is done either
// way, so Process never returns an error for pipeline failures.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	ctx = observability.WithComponent(ctx, "repro")
	ctx = observability.WithJobID(ctx, jobID)
	start := time.Now()

	job, err := w.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		observability.ErrorContext(ctx, "Job not found", logfields.JobID(jobID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	// Guarded pickup: exactly one worker wins the pending job.
	if err := w.store.TransitionJob(ctx, jobID, store.JobStatusPending, store.JobStatusRunning); err != nil {
		if errors.Is(err, store.ErrConflict) {
			observability.WarnContext(ctx, "Job already picked up", logfields.JobID(jobID))
			return nil
		}
		return fmt.Errorf("transition job %s: %w", jobID, err)
	}
	observability.InfoContext(ctx, "Job status: pending -> running", logfields.Step("status_transition"))

	var imageTag string
	defer func() {
		if err := w.cloner.Cleanup(jobID); err != nil {
			observability.WarnContext(ctx, "Repo cleanup failed", logfields.Error(err))
		}
		if imageTag != "" {
			if err := w.builder.RemoveImage(context.WithoutCancel(ctx), imageTag); err != nil {
				observability.WarnContext(ctx, "Image cleanup failed", logfields.Error(err))
			}
		}
	}()

	err = w.run(ctx, job, &imageTag)
	if err != nil {
		msg := errs.FailureMessage(err)
		observability.ErrorContext(ctx, msg,
			logfields.Step(string(errs.Classify(err))), logfields.Error(err))
		if dbErr := w.store.MarkJobFailed(ctx, jobID, msg); dbErr != nil {
			observability.ErrorContext(ctx, "Failed to mark job failed", logfields.Error(dbErr))
		}
		w.rec.IncJobOutcome(metrics.JobKindReproduction, string(store.JobStatusFailed))
		w.rec.ObserveJobDuration(metrics.JobKindReproduction, string(store.JobStatusFailed), time.Since(start))
		return nil
	}

	w.rec.IncJobOutcome(metrics.JobKindReproduction, string(store.JobStatusCompleted))
	w.rec.ObserveJobDuration(metrics.JobKindReproduction, string(store.JobStatusCompleted), time.Since(start))
	observability.InfoContext(ctx, "Job processing completed",
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

func (w *Worker) run(ctx context.Context, job *store.Job, imageTag *string) error {
	var repoPath string
	err := w.step(ctx, "clone_repo", func(ctx context.Context) error {
		var err error
		repoPath, err = w.cloner.Clone(ctx, job.ID, job.RepoURL)
		return err
	})
	if err != nil {
		return err
	}

	var env *envdetect.EnvironmentInfo
	err = w.step(ctx, "detect_environment", func(ctx context.Context) error {
		var err error
		env, err = envdetect.Detect(repoPath, w.cfg.Sandbox.BaseImage)
		if err != nil {
			return err
		}
		envJSON, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return w.store.SetDetectedEnvironment(ctx, job.ID, string(envJSON))
	})
	if err != nil {
		return err
	}

	err = w.step(ctx, "build_docker_image", func(ctx context.Context) error {
		tag, err := w.builder.Build(ctx, job.ID, repoPath, env)
		*imageTag = tag
		return err
	})
	if err != nil {
		return err
	}

	command := job.RunCommand
	if command == "" {
		command = DefaultRunCommand
	}
	artifactsDir := filepath.Join(w.cfg.Storage.ArtifactsBasePath, job.ID)

	var result *sandbox.Result
	err = w.step(ctx, "execute_command", func(ctx context.Context) error {
		var err error
		result, err = w.runner.Execute(ctx, sandbox.Request{
			JobID:          job.ID,
			ImageTag:       *imageTag,
			Command:        command,
			RepoPath:       repoPath,
			ArtifactsDir:   artifactsDir,
			TimeoutSeconds: w.cfg.Sandbox.ExecTimeoutSeconds,
		})
		return err
	})
	if err != nil {
		return err
	}

	run := &store.Run{
		JobID:           job.ID,
		ExitCode:        result.ExitCode,
		StdoutPreview:   result.Stdout,
		StderrPreview:   result.Stderr,
		LogsPath:        result.LogsPath,
		StartedAt:       result.StartedAt,
		CompletedAt:     time.Now().UTC(),
		DurationSeconds: result.DurationSeconds,
	}

	return w.step(ctx, "generate_artifacts", func(ctx context.Context) error {
		artifacts, err := GenerateArtifacts(job, run, env, artifactsDir, w.cfg.Server.APIBaseURL)
		if err != nil {
			return err
		}
		// Run, artifacts and the completed status land in one transaction so
		// clients never see completed without its artifacts.
		return w.store.CompleteJob(ctx, job.ID, run, artifacts)
	})
}

// step wraps one pipeline stage with start/end logging and step metrics.
func (w *Worker) step(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := observability.LogStep(ctx, name, fn)
	w.rec.ObserveStepDuration(name, time.Since(start))
	w.rec.IncStepResult(name, err == nil)
	return err
}
