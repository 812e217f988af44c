package metrics

import (
	"sync"
	"time"
)

// Summary is an in-process aggregation backing the JSON /metrics endpoint.
// It implements Recorder so it can sit next to the Prometheus recorder.
type Summary struct {
	mu            sync.Mutex
	jobsByStatus  map[string]int
	jobsByKind    map[JobKind]int
	totalDuration time.Duration
	completedJobs int
	stepTotals    map[string]time.Duration
	stepCounts    map[string]int
	stepErrors    map[string]int
}

// NewSummary creates an empty aggregation.
func NewSummary() *Summary {
	return &Summary{
		jobsByStatus: make(map[string]int),
		jobsByKind:   make(map[JobKind]int),
		stepTotals:   make(map[string]time.Duration),
		stepCounts:   make(map[string]int),
		stepErrors:   make(map[string]int),
	}
}

func (s *Summary) ObserveJobDuration(kind JobKind, status string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalDuration += d
	s.completedJobs++
}

func (s *Summary) ObserveStepDuration(step string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepTotals[step] += d
	s.stepCounts[step]++
}

func (s *Summary) IncJobOutcome(kind JobKind, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobsByStatus[status]++
	s.jobsByKind[kind]++
}

func (s *Summary) IncStepResult(step string, success bool) {
	if success {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepErrors[step]++
}

func (s *Summary) ObserveHTTPRequest(string, string, int, time.Duration) {}

// SummarySnapshot is the JSON shape of the aggregated metrics endpoint.
type SummarySnapshot struct {
	TotalJobs          int                `json:"total_jobs"`
	JobsByStatus       map[string]int     `json:"jobs_by_status"`
	JobsByKind         map[string]int     `json:"jobs_by_kind"`
	AvgDurationSeconds float64            `json:"avg_duration_seconds"`
	StepLatenciesMS    map[string]float64 `json:"step_latencies_ms"`
	StepErrors         map[string]int     `json:"step_errors"`
}

// Snapshot returns a copy of the current aggregation.
func (s *Summary) Snapshot() SummarySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SummarySnapshot{
		JobsByStatus:    make(map[string]int, len(s.jobsByStatus)),
		JobsByKind:      make(map[string]int, len(s.jobsByKind)),
		StepLatenciesMS: make(map[string]float64, len(s.stepCounts)),
		StepErrors:      make(map[string]int, len(s.stepErrors)),
	}
	for status, n := range s.jobsByStatus {
		snap.JobsByStatus[status] = n
		snap.TotalJobs += n
	}
	for kind, n := range s.jobsByKind {
		snap.JobsByKind[string(kind)] = n
	}
	if s.completedJobs > 0 {
		snap.AvgDurationSeconds = s.totalDuration.Seconds() / float64(s.completedJobs)
	}
	for step, total := range s.stepTotals {
		if n := s.stepCounts[step]; n > 0 {
			snap.StepLatenciesMS[step] = float64(total.Milliseconds()) / float64(n)
		}
	}
	for step, n := range s.stepErrors {
		snap.StepErrors[step] = n
	}
	return snap
}

// Multi fans a Recorder call out to several recorders.
type Multi []Recorder

func (m Multi) ObserveJobDuration(kind JobKind, status string, d time.Duration) {
	for _, r := range m {
		r.ObserveJobDuration(kind, status, d)
	}
}

func (m Multi) ObserveStepDuration(step string, d time.Duration) {
	for _, r := range m {
		r.ObserveStepDuration(step, d)
	}
}

func (m Multi) IncJobOutcome(kind JobKind, status string) {
	for _, r := range m {
		r.IncJobOutcome(kind, status)
	}
}

func (m Multi) IncStepResult(step string, success bool) {
	for _, r := range m {
		r.IncStepResult(step, success)
	}
}

func (m Multi) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	for _, r := range m {
		r.ObserveHTTPRequest(method, path, status, d)
	}
}
