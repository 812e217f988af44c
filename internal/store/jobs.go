package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateJob inserts a new pending job and returns it.
func (s *Store) CreateJob(ctx context.Context, repoURL, arxivID, runCommand string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job := &Job{
		ID:         uuid.NewString(),
		RepoURL:    repoURL,
		ArxivID:    arxivID,
		RunCommand: runCommand,
		Status:     JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, repo_url, arxiv_id, run_command, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.RepoURL, job.ArxivID, job.RunCommand, job.Status,
		formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", mapConstraintErr(err))
	}
	return job, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, repo_url, arxiv_id, run_command, status, error_message,
		        detected_environment, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var created, updated string
	err := row.Scan(&j.ID, &j.RepoURL, &j.ArxivID, &j.RunCommand, &j.Status,
		&j.ErrorMessage, &j.DetectedEnvironment, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.CreatedAt = parseTime(created)
	j.UpdatedAt = parseTime(updated)
	return &j, nil
}

// TransitionJob moves a job from one status to another. The WHERE guard makes
// the pending→running pickup race-safe between competing workers: exactly one
// transition succeeds, the rest get ErrConflict.
func (s *Store) TransitionJob(ctx context.Context, id string, from, to JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(time.Now()), id, from)
	if err != nil {
		return fmt.Errorf("transition job: %w", mapConstraintErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s not in status %s", ErrConflict, id, from)
	}
	return nil
}

// MarkJobFailed sets the terminal failed status with its user-visible message.
func (s *Store) MarkJobFailed(ctx context.Context, id, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		JobStatusFailed, errorMessage, formatTime(time.Now()), id)
	return mapConstraintErr(err)
}

// SetDetectedEnvironment records the environment-detection result JSON.
func (s *Store) SetDetectedEnvironment(ctx context.Context, id, envJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET detected_environment = ?, updated_at = ? WHERE id = ?`,
		envJSON, formatTime(time.Now()), id)
	return err
}

// CompleteJob atomically commits the run record, the artifact rows, and the
// running→completed transition in one transaction, so a client observing
// status=completed can enumerate artifacts without racing the worker.
func (s *Store) CompleteJob(ctx context.Context, jobID string, run *Run, artifacts []Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete-job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.JobID = jobID
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, job_id, exit_code, stdout_preview, stderr_preview,
		                   logs_path, started_at, completed_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.JobID, run.ExitCode, run.StdoutPreview, run.StderrPreview,
		run.LogsPath, formatTime(run.StartedAt), formatTime(run.CompletedAt),
		run.DurationSeconds); err != nil {
		return fmt.Errorf("insert run: %w", mapConstraintErr(err))
	}

	for i := range artifacts {
		a := &artifacts[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.JobID = jobID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (id, job_id, type, format, content_path, content_size)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.JobID, a.Type, a.Format, a.ContentPath, a.ContentSize); err != nil {
			return fmt.Errorf("insert artifact: %w", mapConstraintErr(err))
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobStatusCompleted, formatTime(time.Now()), jobID, JobStatusRunning)
	if err != nil {
		return fmt.Errorf("complete job: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: job %s not in status running", ErrConflict, jobID)
	}

	return tx.Commit()
}

// CreateRun inserts a run record outside the completion transaction. Used for
// failed executions where the job itself is marked failed separately.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, job_id, exit_code, stdout_preview, stderr_preview,
		                   logs_path, started_at, completed_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.JobID, run.ExitCode, run.StdoutPreview, run.StderrPreview,
		run.LogsPath, formatTime(run.StartedAt), formatTime(run.CompletedAt),
		run.DurationSeconds)
	return mapConstraintErr(err)
}

// GetRunByJobID fetches the run record for a job.
func (s *Store) GetRunByJobID(ctx context.Context, jobID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r Run
	var started, completed string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, exit_code, stdout_preview, stderr_preview, logs_path,
		        started_at, completed_at, duration_seconds
		 FROM runs WHERE job_id = ?`, jobID).
		Scan(&r.ID, &r.JobID, &r.ExitCode, &r.StdoutPreview, &r.StderrPreview,
			&r.LogsPath, &started, &completed, &r.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = parseTime(started)
	r.CompletedAt = parseTime(completed)
	return &r, nil
}

// ListArtifacts returns all artifact rows for a job.
func (s *Store) ListArtifacts(ctx context.Context, jobID string) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, type, format, content_path, content_size
		 FROM artifacts WHERE job_id = ? ORDER BY type`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.JobID, &a.Type, &a.Format, &a.ContentPath, &a.ContentSize); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
