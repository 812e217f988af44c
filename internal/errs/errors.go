// Package errs defines the failure taxonomy for reproduction and review
// pipelines. Each kind maps 1:1 to a terminal job status transition; there
// are no retries.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindRepoClone        Kind = "repo_clone"
	KindNoEnvironment    Kind = "no_environment"
	KindDockerBuild      Kind = "docker_build"
	KindExecution        Kind = "execution"
	KindExecutionTimeout Kind = "execution_timeout"
	KindUnexpected       Kind = "unexpected"
)

// RepoCloneError means source retrieval failed: bad URL scheme, unreachable
// host, non-GitHub host, or missing local path.
type RepoCloneError struct {
	URL string
	Err error
}

func (e *RepoCloneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to clone repository %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to clone repository %s", e.URL)
}

func (e *RepoCloneError) Unwrap() error { return e.Err }

// NoEnvironmentDetectedError means no recognised dependency manifest was found.
type NoEnvironmentDetectedError struct {
	RepoPath string
}

func (e *NoEnvironmentDetectedError) Error() string {
	return fmt.Sprintf("no supported environment files found in %s", e.RepoPath)
}

// DockerBuildError means image construction failed, including build-time
// dependency resolution.
type DockerBuildError struct {
	ImageTag string
	Output   string
	Err      error
}

func (e *DockerBuildError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("docker build failed for %s: %s", e.ImageTag, e.Output)
	}
	return fmt.Sprintf("docker build failed for %s: %v", e.ImageTag, e.Err)
}

func (e *DockerBuildError) Unwrap() error { return e.Err }

// ExecutionError means container execution failed for a non-timeout reason,
// or a mandatory security precondition was violated before launch.
type ExecutionError struct {
	Reason string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("execution failed: %s", e.Reason)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ExecutionTimeoutError means the sandboxed process exceeded its wall-clock budget.
type ExecutionTimeoutError struct {
	TimeoutSeconds int
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("execution exceeded timeout of %d seconds", e.TimeoutSeconds)
}

// Classify maps an error to its failure kind. Unknown errors classify as
// KindUnexpected and are surfaced as generic failures.
func Classify(err error) Kind {
	var (
		clone   *RepoCloneError
		noEnv   *NoEnvironmentDetectedError
		build   *DockerBuildError
		exec    *ExecutionError
		timeout *ExecutionTimeoutError
	)
	switch {
	case errors.As(err, &timeout):
		return KindExecutionTimeout
	case errors.As(err, &clone):
		return KindRepoClone
	case errors.As(err, &noEnv):
		return KindNoEnvironment
	case errors.As(err, &build):
		return KindDockerBuild
	case errors.As(err, &exec):
		return KindExecution
	default:
		return KindUnexpected
	}
}

// FailureMessage renders the user-visible single-line error_message for a
// classified failure. The prefixes are part of the API contract.
func FailureMessage(err error) string {
	switch Classify(err) {
	case KindRepoClone:
		return "Repository clone failed: " + err.Error()
	case KindNoEnvironment:
		return "Environment detection failed: " + err.Error()
	case KindDockerBuild:
		return "Docker build failed: " + err.Error()
	case KindExecutionTimeout:
		return "Execution timeout: " + err.Error()
	case KindExecution:
		return "Execution failed: " + err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}
