package metrics

import "time"

// JobKind labels which pipeline a recorded job belongs to.
type JobKind string

const (
	JobKindReproduction JobKind = "reproduction"
	JobKindReview       JobKind = "review"
)

// Recorder defines observability hooks for job and step metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveJobDuration(kind JobKind, status string, d time.Duration)
	ObserveStepDuration(step string, d time.Duration)
	IncJobOutcome(kind JobKind, status string)
	IncStepResult(step string, success bool)
	ObserveHTTPRequest(method, path string, status int, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveJobDuration(JobKind, string, time.Duration)       {}
func (NoopRecorder) ObserveStepDuration(string, time.Duration)               {}
func (NoopRecorder) IncJobOutcome(JobKind, string)                           {}
func (NoopRecorder) IncStepResult(string, bool)                              {}
func (NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration)   {}
