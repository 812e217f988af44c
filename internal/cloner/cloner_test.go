package cloner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arandu-labs/arandu/internal/errs"
)

func fixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "util.py"), []byte("x = 1\n"), 0o644))
	return dir
}

func TestCloneFileURL(t *testing.T) {
	src := fixtureRepo(t)
	c := New(t.TempDir())

	path, err := c.Clone(context.Background(), "job-1", "file://"+src)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, "main.py"))
	assert.FileExists(t, filepath.Join(path, "src", "util.py"))
}

func TestCloneRemovesExistingTarget(t *testing.T) {
	src := fixtureRepo(t)
	c := New(t.TempDir())

	stale := filepath.Join(c.TargetDir("job-1"), "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	path, err := c.Clone(context.Background(), "job-1", "file://"+src)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(path, "stale.txt"))
}

func TestCloneRejectsNonGitHub(t *testing.T) {
	c := New(t.TempDir())
	cases := []string{
		"https://gitlab.com/a/b",
		"ssh://github.com/a/b",
		"ftp://github.com/a/b",
		"https://evilgithub.com/a/b",
	}
	for _, u := range cases {
		_, err := c.Clone(context.Background(), "job-x", u)
		var cloneErr *errs.RepoCloneError
		assert.ErrorAsf(t, err, &cloneErr, "url %s", u)
	}
}

func TestCloneRejectsMissingLocalPath(t *testing.T) {
	c := New(t.TempDir())
	_, err := c.Clone(context.Background(), "job-x", "file:///does/not/exist")
	var cloneErr *errs.RepoCloneError
	require.ErrorAs(t, err, &cloneErr)
}

func TestCleanupIsIdempotent(t *testing.T) {
	src := fixtureRepo(t)
	c := New(t.TempDir())

	_, err := c.Clone(context.Background(), "job-1", "file://"+src)
	require.NoError(t, err)

	require.NoError(t, c.Cleanup("job-1"))
	require.NoError(t, c.Cleanup("job-1"))
	assert.NoDirExists(t, c.TargetDir("job-1"))

	// Re-clone after cleanup works.
	_, err = c.Clone(context.Background(), "job-1", "file://"+src)
	require.NoError(t, err)
}
