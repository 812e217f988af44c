// Package imagebuild turns a detected environment into a per-job Docker
// image. The Docker CLI is invoked directly; the builder never needs more
// of the daemon API than build and rmi.
package imagebuild

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/arandu-labs/arandu/internal/envdetect"
	"github.com/arandu-labs/arandu/internal/errs"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

// Builder produces sandbox images from cloned repositories.
type Builder struct {
	dockerBinary string
	user         string
	uid          int
}

// New creates a Builder. dockerBinary is typically "docker"; user/uid name
// the unprivileged account baked into every image.
func New(dockerBinary, user string, uid int) *Builder {
	return &Builder{dockerBinary: dockerBinary, user: user, uid: uid}
}

// ImageTag is the deterministic tag for a job's image.
func ImageTag(jobID string) string {
	return fmt.Sprintf("arandu-job-%s:latest", jobID)
}

// Dockerfile renders the build recipe for the detected environment. The
// install step dispatches on the environment type: pip installs the
// normalised specs directly, conda deps are flattened to pip pins, and
// poetry/pipenv install their own tool and run it against the copied
// manifest. The source tree is copied after dependency installation so
// dependency layers cache across rebuilds of the same environment.
func (b *Builder) Dockerfile(env *envdetect.EnvironmentInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n\n", env.BaseImage)
	fmt.Fprintf(&sb, "RUN useradd -m -u %d %s\n\n", b.uid, b.user)
	sb.WriteString("WORKDIR /workspace\n\n")

	b.writeInstall(&sb, env)

	sb.WriteString("COPY . .\n\n")
	fmt.Fprintf(&sb, "RUN chown -R %s:%s /workspace\n\n", b.user, b.user)
	fmt.Fprintf(&sb, "USER %s\n\n", b.user)
	sb.WriteString(`CMD ["python", "--version"]` + "\n")
	return sb.String()
}

func (b *Builder) writeInstall(sb *strings.Builder, env *envdetect.EnvironmentInfo) {
	switch env.Type {
	case envdetect.EnvTypePoetry:
		if detected(env, "pyproject.toml") {
			sb.WriteString("RUN pip install poetry\n")
			sb.WriteString("COPY pyproject.toml .\n")
			sb.WriteString("RUN poetry install --no-dev\n\n")
			return
		}
	case envdetect.EnvTypePipenv:
		if detected(env, "Pipfile") {
			sb.WriteString("RUN pip install pipenv\n")
			sb.WriteString("COPY Pipfile Pipfile.lock* ./\n")
			sb.WriteString("RUN pipenv install --deploy\n\n")
			return
		}
	case envdetect.EnvTypeConda:
		// No conda in the base image; flatten the pins to pip for now.
		specs := make([]string, 0, len(env.Dependencies))
		for _, dep := range env.Dependencies {
			if spec := condaToPip(dep); spec != "" {
				specs = append(specs, spec)
			}
		}
		if len(specs) > 0 {
			fmt.Fprintf(sb, "RUN pip install --no-cache-dir %s\n\n", strings.Join(specs, " "))
		}
		return
	}

	if len(env.Dependencies) > 0 {
		specs := make([]string, 0, len(env.Dependencies))
		for _, dep := range env.Dependencies {
			specs = append(specs, envdetect.FormatForPip(dep))
		}
		fmt.Fprintf(sb, "RUN pip install --no-cache-dir %s\n\n", strings.Join(specs, " "))
	}
}

// condaToPip converts a conda-style pin (numpy=1.24.0, possibly normalised to
// ==1.24.0) into a pip pin; versions without an "=" install unpinned.
func condaToPip(dep envdetect.Dependency) string {
	if dep.Version != "" && strings.Contains(dep.Version, "=") {
		parts := strings.Split(dep.Version, "=")
		if version := parts[len(parts)-1]; version != "" {
			return dep.Name + "==" + version
		}
	}
	return dep.Name
}

func detected(env *envdetect.EnvironmentInfo, file string) bool {
	for _, f := range env.DetectedFiles {
		if f == file {
			return true
		}
	}
	return false
}

// Build writes the Dockerfile into repoPath and builds the image, returning
// its tag. Build failures carry the combined CLI output for the report.
func (b *Builder) Build(ctx context.Context, jobID, repoPath string, env *envdetect.EnvironmentInfo) (string, error) {
	tag := ImageTag(jobID)

	dockerfile := filepath.Join(repoPath, "Dockerfile.arandu")
	if err := os.WriteFile(dockerfile, []byte(b.Dockerfile(env)), 0o644); err != nil {
		return "", &errs.DockerBuildError{ImageTag: tag, Err: err}
	}

	cmd := exec.CommandContext(ctx, b.dockerBinary, "build", "-t", tag, "-f", dockerfile, repoPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &errs.DockerBuildError{ImageTag: tag, Output: string(out), Err: err}
	}

	observability.InfoContext(ctx, "Image built", logfields.Image(tag))
	return tag, nil
}

// RemoveImage deletes a job's image. Missing images are not an error; the
// janitor calls this long after a job may have been cleaned up manually.
func (b *Builder) RemoveImage(ctx context.Context, tag string) error {
	cmd := exec.CommandContext(ctx, b.dockerBinary, "rmi", "-f", tag)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "No such image") {
			return nil
		}
		return fmt.Errorf("remove image %s: %w: %s", tag, err, strings.TrimSpace(string(out)))
	}
	return nil
}
