package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"clone", &RepoCloneError{URL: "https://example.com/x"}, KindRepoClone},
		{"no_env", &NoEnvironmentDetectedError{RepoPath: "/tmp/r"}, KindNoEnvironment},
		{"build", &DockerBuildError{ImageTag: "arandu-job-1:latest"}, KindDockerBuild},
		{"exec", &ExecutionError{Reason: "container user must not be root"}, KindExecution},
		{"timeout", &ExecutionTimeoutError{TimeoutSeconds: 1800}, KindExecutionTimeout},
		{"unexpected", errors.New("disk full"), KindUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyWrapped(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", &ExecutionTimeoutError{TimeoutSeconds: 90})
	assert.Equal(t, KindExecutionTimeout, Classify(err))
}

func TestFailureMessagePrefixes(t *testing.T) {
	cases := []struct {
		err    error
		prefix string
	}{
		{&RepoCloneError{URL: "u"}, "Repository clone failed: "},
		{&NoEnvironmentDetectedError{RepoPath: "/r"}, "Environment detection failed: "},
		{&DockerBuildError{ImageTag: "t", Err: errors.New("x")}, "Docker build failed: "},
		{&ExecutionError{Reason: "bad"}, "Execution failed: "},
		{&ExecutionTimeoutError{TimeoutSeconds: 10}, "Execution timeout: "},
		{errors.New("?"), "Unexpected error: "},
	}
	for _, tc := range cases {
		msg := FailureMessage(tc.err)
		assert.Truef(t, len(msg) > len(tc.prefix) && msg[:len(tc.prefix)] == tc.prefix,
			"message %q should start with %q", msg, tc.prefix)
	}
}

func TestTimeoutMessageMentionsBudget(t *testing.T) {
	err := &ExecutionTimeoutError{TimeoutSeconds: 1800}
	assert.Contains(t, err.Error(), "exceeded timeout of 1800 seconds")
}
