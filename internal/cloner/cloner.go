// Package cloner retrieves job source trees. GitHub URLs are shallow-cloned;
// file:// URLs are copied, which keeps tests hermetic.
package cloner

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/arandu-labs/arandu/internal/errs"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

// Cloner fetches repositories into a per-job scratch directory.
type Cloner struct {
	baseDir string
}

// New creates a Cloner rooted at baseDir.
func New(baseDir string) *Cloner {
	return &Cloner{baseDir: baseDir}
}

// TargetDir is the scratch directory a job's tree is cloned into.
func (c *Cloner) TargetDir(jobID string) string {
	return filepath.Join(c.baseDir, jobID)
}

// Clone fetches repoURL into the job's scratch directory and returns the
// absolute path to the tree. Accepts file:// (copy-tree) and GitHub
// https/http/git URLs; anything else is a RepoCloneError. A pre-existing
// target is removed first, so re-clone after cleanup is a no-op.
func (c *Cloner) Clone(ctx context.Context, jobID, repoURL string) (string, error) {
	target := c.TargetDir(jobID)

	if err := validateURL(repoURL); err != nil {
		return "", err
	}
	if err := os.RemoveAll(target); err != nil {
		return "", &errs.RepoCloneError{URL: repoURL, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &errs.RepoCloneError{URL: repoURL, Err: err}
	}

	if strings.HasPrefix(repoURL, "file://") {
		src := strings.TrimPrefix(repoURL, "file://")
		if err := copyTree(src, target); err != nil {
			return "", &errs.RepoCloneError{URL: repoURL, Err: err}
		}
		observability.InfoContext(ctx, "Repository copied", logfields.RepoURL(repoURL), logfields.Path(target))
		return target, nil
	}

	// Depth 1: the pipeline only needs the working tree, never history.
	_, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	if err != nil {
		_ = os.RemoveAll(target)
		return "", &errs.RepoCloneError{URL: repoURL, Err: err}
	}

	observability.InfoContext(ctx, "Repository cloned", logfields.RepoURL(repoURL), logfields.Path(target))
	return target, nil
}

// Cleanup removes the job's scratch tree. Safe to call repeatedly.
func (c *Cloner) Cleanup(jobID string) error {
	return os.RemoveAll(c.TargetDir(jobID))
}

func validateURL(repoURL string) error {
	if strings.HasPrefix(repoURL, "file://") {
		src := strings.TrimPrefix(repoURL, "file://")
		info, err := os.Stat(src)
		if err != nil {
			return &errs.RepoCloneError{URL: repoURL, Err: fmt.Errorf("local path does not exist: %s", src)}
		}
		if !info.IsDir() {
			return &errs.RepoCloneError{URL: repoURL, Err: fmt.Errorf("local path is not a directory: %s", src)}
		}
		return nil
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return &errs.RepoCloneError{URL: repoURL, Err: err}
	}
	switch u.Scheme {
	case "https", "http", "git":
	default:
		return &errs.RepoCloneError{URL: repoURL, Err: fmt.Errorf("unsupported URL scheme %q", u.Scheme)}
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && !strings.HasSuffix(host, ".github.com") {
		return &errs.RepoCloneError{URL: repoURL, Err: fmt.Errorf("only GitHub repositories are supported, got host %q", host)}
	}
	return nil
}

// copyTree copies src into dst, skipping nothing. Symlinks are copied as the
// files they point at; a repo used via file:// is test fixture data.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
