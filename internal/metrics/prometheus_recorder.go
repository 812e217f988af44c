package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	registry     *prom.Registry
	jobDuration  *prom.HistogramVec
	stepDuration *prom.HistogramVec
	jobOutcomes  *prom.CounterVec
	stepResults  *prom.CounterVec
	httpDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.jobDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "arandu",
			Name:      "job_duration_seconds",
			Help:      "End-to-end duration of reproduction and review jobs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"kind", "status"})
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "arandu",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.jobOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "arandu",
			Name:      "job_outcomes_total",
			Help:      "Job outcomes by final status",
		}, []string{"kind", "status"})
		pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "arandu",
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"step", "result"})
		pr.httpDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "arandu",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, path and status",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "path", "status"})
		reg.MustRegister(pr.jobDuration, pr.stepDuration, pr.jobOutcomes, pr.stepResults, pr.httpDuration)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveJobDuration(kind JobKind, status string, d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(string(kind), status).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobOutcome(kind JobKind, status string) {
	if p == nil || p.jobOutcomes == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(string(kind), status).Inc()
}

func (p *PrometheusRecorder) IncStepResult(step string, success bool) {
	if p == nil || p.stepResults == nil {
		return
	}
	result := "failed"
	if success {
		result = "success"
	}
	p.stepResults.WithLabelValues(step, result).Inc()
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if p == nil || p.httpDuration == nil {
		return
	}
	p.httpDuration.WithLabelValues(method, path, httpStatusLabel(status)).Observe(d.Seconds())
}

// Handler returns an http.Handler serving the recorder's registry.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func httpStatusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
