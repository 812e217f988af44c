package repro

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/store"
)

func testWorker(t *testing.T) (*Worker, *store.Store) {
	t.Helper()
	cfg := config.Defaults()
	base := t.TempDir()
	cfg.Database.Path = filepath.Join(base, "arandu.db")
	cfg.Storage.ArtifactsBasePath = filepath.Join(base, "artifacts")
	cfg.Storage.TempReposPath = filepath.Join(base, "repos")
	st, err := store.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewWorker(st, cfg, nil), st
}

func TestProcessUnknownJobIsNoop(t *testing.T) {
	w, _ := testWorker(t)
	require.NoError(t, w.Process(context.Background(), "missing"))
}

func TestProcessSkipsAlreadyRunningJob(t *testing.T) {
	w, st := testWorker(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "https://github.com/example/repo", "", "")
	require.NoError(t, err)
	require.NoError(t, st.TransitionJob(ctx, job.ID, store.JobStatusPending, store.JobStatusRunning))

	require.NoError(t, w.Process(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusRunning, got.Status)
}

func TestProcessCloneFailureMarksJobFailed(t *testing.T) {
	w, st := testWorker(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "https://gitlab.com/example/repo", "", "")
	require.NoError(t, err)

	require.NoError(t, w.Process(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "Repository clone failed: ")
}

func TestProcessNoEnvironmentMarksJobFailed(t *testing.T) {
	w, st := testWorker(t)
	ctx := context.Background()

	// Clone succeeds via file://, detection then finds no manifest.
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("# x\n"), 0o644))

	job, err := st.CreateJob(ctx, "file://"+src, "", "python main.py")
	require.NoError(t, err)

	require.NoError(t, w.Process(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "Environment detection failed: ")
	assert.Contains(t, got.ErrorMessage, "no supported environment files found")

	// Scratch tree is cleaned up even on failure.
	assert.NoDirExists(t, filepath.Join(w.cfg.Storage.TempReposPath, job.ID))
}
