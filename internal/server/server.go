// Package server is the HTTP surface: job and review submission, artifact
// and report retrieval, badge rendering, paper hosting with range streaming,
// and the metrics endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/metrics"
	"github.com/arandu-labs/arandu/internal/papers"
	"github.com/arandu-labs/arandu/internal/queue"
	"github.com/arandu-labs/arandu/internal/store"
	"github.com/arandu-labs/arandu/internal/version"
)

// Server wires the HTTP handlers to their backing services.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	queue   queue.Queue
	papers  *papers.Service
	rec     metrics.Recorder
	summary *metrics.Summary
	http    *http.Server
}

// New builds the server. summary backs the JSON metrics endpoint and may be
// nil; rec may be nil.
func New(cfg *config.Config, st *store.Store, q queue.Queue, paperSvc *papers.Service, rec metrics.Recorder, summary *metrics.Summary) *Server {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		queue:   q,
		papers:  paperSvc,
		rec:     rec,
		summary: summary,
	}
	s.http = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           chain(rec, cfg.Server.WebOrigin, s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/metrics", s.handleMetricsJSON)
	mux.Handle("GET /metrics", s.promHandler())

	mux.HandleFunc("POST /api/v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}/status", s.handleJobStatus)
	mux.HandleFunc("GET /api/v1/jobs/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /api/v1/jobs/{id}/artifacts/{type}", s.handleDownloadArtifact)

	mux.HandleFunc("POST /api/v1/reviews", s.handleCreateReview)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.handleGetReview)
	mux.HandleFunc("GET /api/v1/reviews/{id}/status", s.handleReviewStatus)
	mux.HandleFunc("GET /api/v1/reviews/{id}/score", s.handleReviewScore)
	mux.HandleFunc("GET /api/v1/reviews/{id}/artifacts/{name}", s.handleReviewArtifact)

	mux.HandleFunc("GET /api/v1/badges/{review_id}/{badge}", s.handleBadge)

	mux.HandleFunc("POST /api/v1/papers", s.handleCreatePaper)
	mux.HandleFunc("GET /api/v1/papers/{aid}", s.handleGetPaper)
	mux.HandleFunc("POST /api/v1/papers/{aid}/versions", s.handleAddPaperVersion)
	mux.HandleFunc("GET /api/v1/papers/{aid}/versions/{version}/file", s.handlePaperFile)
	mux.HandleFunc("HEAD /api/v1/papers/{aid}/versions/{version}/file", s.handlePaperFile)
	mux.HandleFunc("GET /api/v1/papers/{aid}/viewer", s.handlePaperViewer)
	mux.HandleFunc("HEAD /api/v1/papers/{aid}/viewer", s.handlePaperViewer)
	mux.HandleFunc("GET /api/v1/papers/{aid}/claims", s.handlePaperClaims)

	return mux
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// promHandler serves the recorder's registry when the recorder carries one,
// falling back to the default registry.
func (s *Server) promHandler() http.Handler {
	type handlerer interface{ Handler() http.Handler }

	recs := []metrics.Recorder{s.rec}
	if multi, ok := s.rec.(metrics.Multi); ok {
		recs = multi
	}
	for _, r := range recs {
		if h, ok := r.(handlerer); ok {
			return h.Handler()
		}
	}
	return promhttp.Handler()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	if s.summary == nil {
		writeJSON(w, http.StatusOK, metrics.SummarySnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.summary.Snapshot())
}
