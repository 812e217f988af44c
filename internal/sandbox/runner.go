// Package sandbox runs a job's command inside its built image under hard
// resource and isolation constraints.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/errs"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

// stopGrace is how long a timed-out container gets to exit before SIGKILL.
const stopGrace = 5 * time.Second

// Runner executes commands in throwaway containers.
type Runner struct {
	cfg config.SandboxConfig
}

// New creates a Runner from the sandbox configuration.
func New(cfg config.SandboxConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Request describes one sandboxed execution.
type Request struct {
	JobID          string
	ImageTag       string
	Command        string
	RepoPath       string
	ArtifactsDir   string
	TimeoutSeconds int
}

// Result reports a finished execution. Stdout and Stderr hold truncated
// previews sized for the database; LogsPath points at the full combined log.
type Result struct {
	ExitCode        int
	Stdout          string
	Stderr          string
	DurationSeconds float64
	StartedAt       time.Time
	LogsPath        string
}

// Preflight rejects configurations that would weaken container isolation.
// Every violation is an ExecutionError so callers classify it uniformly.
func (r *Runner) Preflight() error {
	user := strings.ToLower(strings.TrimSpace(r.cfg.User))
	if user == "" || user == "root" || user == "0" || r.cfg.UID == 0 {
		return &errs.ExecutionError{Reason: "security violation: containers must run as non-root user"}
	}
	if r.cfg.CPULimit <= 0 {
		return &errs.ExecutionError{Reason: "security violation: CPU limit must be greater than 0"}
	}
	if strings.TrimSpace(r.cfg.MemoryLimit) == "" {
		return &errs.ExecutionError{Reason: "security violation: memory limit must be set"}
	}
	if r.cfg.NetworkMode != "none" && r.cfg.NetworkMode != "bridge" {
		return &errs.ExecutionError{Reason: fmt.Sprintf("security violation: invalid network mode %q", r.cfg.NetworkMode)}
	}
	return nil
}

// Execute runs req.Command in a container of req.ImageTag. The repository is
// mounted read-only at /workspace and the artifacts directory read-write at
// /artifacts. Exceeding the timeout stops the container and returns an
// ExecutionTimeoutError; every other failure is an ExecutionError.
func (r *Runner) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := r.Preflight(); err != nil {
		return nil, err
	}

	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = r.cfg.ExecTimeoutSeconds
	}

	logsFile := filepath.Join(req.ArtifactsDir, "logs", "combined.log")
	if err := os.MkdirAll(filepath.Dir(logsFile), 0o755); err != nil {
		return nil, &errs.ExecutionError{Reason: "create logs directory", Err: err}
	}

	memoryBytes, err := config.ParseMemoryLimit(r.cfg.MemoryLimit)
	if err != nil {
		return nil, &errs.ExecutionError{Reason: "parse memory limit", Err: err}
	}

	args := []string{
		"run", "-d",
		"--user", r.cfg.User,
		"--network", r.cfg.NetworkMode,
		"--cpu-quota", strconv.FormatInt(int64(r.cfg.CPULimit*1e9), 10),
		"--cpu-period", "1000000",
		"--memory", strconv.FormatInt(memoryBytes, 10),
		"-v", req.RepoPath + ":/workspace:ro",
		"-v", req.ArtifactsDir + ":/artifacts:rw",
		"-w", "/workspace",
	}
	if r.cfg.ReadOnlyRootfs {
		args = append(args, "--read-only")
	}
	args = append(args, req.ImageTag, "sh", "-c", req.Command)

	observability.InfoContext(ctx, "Starting sandboxed execution",
		logfields.Image(req.ImageTag), logfields.JobID(req.JobID))

	start := time.Now()
	out, err := exec.CommandContext(ctx, r.cfg.DockerBinary, args...).CombinedOutput()
	if err != nil {
		return nil, &errs.ExecutionError{
			Reason: fmt.Sprintf("container start failed: %s", strings.TrimSpace(string(out))),
			Err:    err,
		}
	}
	containerID := strings.TrimSpace(string(out))
	defer r.removeContainer(containerID)

	exitCode, err := r.wait(ctx, containerID, time.Duration(timeout)*time.Second)
	if err != nil {
		r.stopContainer(containerID)
		if elapsed := time.Since(start); elapsed >= time.Duration(timeout)*time.Second {
			return nil, &errs.ExecutionTimeoutError{TimeoutSeconds: timeout}
		}
		return nil, &errs.ExecutionError{Reason: "container wait failed", Err: err}
	}

	stdout, stderr, err := r.collectLogs(ctx, containerID)
	if err != nil {
		return nil, &errs.ExecutionError{Reason: "collect container logs", Err: err}
	}

	combined := fmt.Sprintf("=== STDOUT ===\n%s\n=== STDERR ===\n%s", stdout, stderr)
	if err := os.WriteFile(logsFile, []byte(combined), 0o644); err != nil {
		return nil, &errs.ExecutionError{Reason: "write combined log", Err: err}
	}

	half := r.cfg.MaxLogSizeBytes / 2
	result := &Result{
		ExitCode:        exitCode,
		Stdout:          TruncateLog(stdout, half),
		Stderr:          TruncateLog(stderr, half),
		DurationSeconds: time.Since(start).Seconds(),
		StartedAt:       start.UTC(),
		LogsPath:        logsFile,
	}

	observability.InfoContext(ctx, "Execution completed",
		logfields.JobID(req.JobID),
		logfields.Status(strconv.Itoa(exitCode)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return result, nil
}

// wait blocks until the container exits or the timeout elapses.
func (r *Runner) wait(ctx context.Context, containerID string, timeout time.Duration) (int, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(waitCtx, r.cfg.DockerBinary, "wait", containerID).Output()
	if err != nil {
		return 0, err
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected wait output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return code, nil
}

// collectLogs reads the container's stdout and stderr streams separately.
func (r *Runner) collectLogs(ctx context.Context, containerID string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.DockerBinary, "logs", containerID)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}

func (r *Runner) stopContainer(containerID string) {
	_ = exec.Command(r.cfg.DockerBinary, "stop", "-t", strconv.Itoa(int(stopGrace.Seconds())), containerID).Run()
}

func (r *Runner) removeContainer(containerID string) {
	_ = exec.Command(r.cfg.DockerBinary, "rm", "-f", containerID).Run()
}

// TruncateLog caps content at maxBytes without splitting a UTF-8 sequence,
// appending a marker when anything was dropped.
func TruncateLog(content string, maxBytes int) string {
	if len(content) <= maxBytes {
		return content
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "\n... [truncated]"
}
