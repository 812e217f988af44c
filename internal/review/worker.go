package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arandu-labs/arandu/internal/cloner"
	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/llm"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/metrics"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/review/quality"
	"github.com/arandu-labs/arandu/internal/review/rag"
	"github.com/arandu-labs/arandu/internal/store"
)

// Worker processes reviews from the reviews queue.
type Worker struct {
	store    *store.Store
	pipeline *Pipeline
	cfg      *config.Config
	rec      metrics.Recorder
}

// NewWorker wires a review worker from configuration. The LLM-backed
// components (dense retrieval, narrative) are enabled only when configured;
// pdf may be nil when no extractor is available. rec may be nil.
func NewWorker(st *store.Store, cfg *config.Config, pdf PDFExtractor, rec metrics.Recorder) (*Worker, error) {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	var generator quality.TextGenerator
	var embedder rag.Embedder
	if cfg.LLM.Enabled {
		client, err := llm.New(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model, cfg.RAG.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("init llm client: %w", err)
		}
		generator = client
		embedder = client
	}

	var suggester *rag.Suggester
	if cfg.RAG.Enabled {
		suggester = rag.NewSuggester(rag.NewBM25Index(), embedder, nil,
			cfg.RAG.HybridAlpha, cfg.RAG.TopK, cfg.RAG.MinScore)
	}

	crossrefMailto := ""
	if cfg.Crossref.Enabled {
		crossrefMailto = cfg.Crossref.Mailto
	}

	pipeline := NewPipeline(
		NewIngestor(pdf, crossrefMailto),
		suggester,
		generator,
		NewReportBuilder(cfg.Server.APIBaseURL),
		cloner.New(cfg.Storage.TempReposPath),
	)
	return &Worker{store: st, pipeline: pipeline, cfg: cfg, rec: rec}, nil
}

// NewWorkerWithPipeline injects a prebuilt pipeline, used by tests and by
// callers that preload the citation corpus.
func NewWorkerWithPipeline(st *store.Store, cfg *config.Config, pipeline *Pipeline, rec metrics.Recorder) *Worker {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Worker{store: st, pipeline: pipeline, cfg: cfg, rec: rec}
}

// Suggester exposes the citation corpus index for document loading; nil when
// retrieval is disabled.
func (w *Worker) Suggester() *rag.Suggester { return w.pipeline.suggester }

// Process runs the full review pipeline for one review. Pipeline failures
// mark the review failed and consume the queue item, so Process returns an
// error only for infrastructure problems.
func (w *Worker) Process(ctx context.Context, reviewID string) error {
	ctx = observability.WithComponent(ctx, "review")
	ctx = observability.WithReviewID(ctx, reviewID)
	start := time.Now()

	rev, err := w.store.GetReview(ctx, reviewID)
	if errors.Is(err, store.ErrNotFound) {
		observability.ErrorContext(ctx, "Review not found", logfields.ReviewID(reviewID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load review %s: %w", reviewID, err)
	}

	// Guarded pickup: exactly one worker wins the pending review.
	if err := w.store.TransitionReview(ctx, reviewID, store.ReviewStatusPending, store.ReviewStatusProcessing); err != nil {
		if errors.Is(err, store.ErrConflict) {
			observability.WarnContext(ctx, "Review already picked up", logfields.ReviewID(reviewID))
			return nil
		}
		return fmt.Errorf("transition review %s: %w", reviewID, err)
	}
	observability.InfoContext(ctx, "Review status: pending -> processing", logfields.Step("status_transition"))

	state := &State{
		ReviewID:  rev.ID,
		URL:       rev.URL,
		DOI:       rev.DOI,
		PDFPath:   rev.PDFFilePath,
		RepoURL:   rev.RepoURL,
		PaperText: rev.PaperText,
		CreatedAt: rev.CreatedAt,
	}
	reportDir := filepath.Join(w.cfg.Storage.ReviewsBasePath, rev.ID)

	data, err := w.pipeline.Run(ctx, state, reportDir)
	if err != nil {
		observability.ErrorContext(ctx, "Review pipeline failed", logfields.Error(err))
		if dbErr := w.store.MarkReviewFailed(ctx, reviewID, err.Error()); dbErr != nil {
			observability.ErrorContext(ctx, "Failed to mark review failed", logfields.Error(dbErr))
		}
		w.rec.IncJobOutcome(metrics.JobKindReview, string(store.ReviewStatusFailed))
		w.rec.ObserveJobDuration(metrics.JobKindReview, string(store.ReviewStatusFailed), time.Since(start))
		return nil
	}

	results, err := serializeResults(state, data, reportDir)
	if err != nil {
		observability.ErrorContext(ctx, "Review serialization failed", logfields.Error(err))
		if dbErr := w.store.MarkReviewFailed(ctx, reviewID, "Report generation failed: "+err.Error()); dbErr != nil {
			observability.ErrorContext(ctx, "Failed to mark review failed", logfields.Error(dbErr))
		}
		w.rec.IncJobOutcome(metrics.JobKindReview, string(store.ReviewStatusFailed))
		return nil
	}

	if err := w.store.CompleteReview(ctx, reviewID, results); err != nil {
		return fmt.Errorf("complete review %s: %w", reviewID, err)
	}
	w.rec.IncJobOutcome(metrics.JobKindReview, string(store.ReviewStatusCompleted))
	w.rec.ObserveJobDuration(metrics.JobKindReview, string(store.ReviewStatusCompleted), time.Since(start))
	observability.InfoContext(ctx, "Review processing completed",
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// serializeResults flattens pipeline output into the review result slots.
func serializeResults(state *State, data *ReviewData, reportDir string) (store.ReviewResults, error) {
	results := store.ReviewResults{
		PaperText:       state.PaperText,
		HTMLReportPath:  filepath.Join(reportDir, HTMLReportName),
		JSONSummaryPath: filepath.Join(reportDir, JSONSummaryName),
	}

	slots := []struct {
		name string
		dst  *string
		v    any
	}{
		{"paper_meta", &results.PaperMeta, data.PaperMeta},
		{"claims", &results.Claims, data.Claims},
		{"citations", &results.Citations, data.Citations},
		{"checklist", &results.Checklist, data.Checklist},
		{"badges", &results.Badges, data.Badges},
	}
	for _, slot := range slots {
		raw, err := json.Marshal(slot.v)
		if err != nil {
			return store.ReviewResults{}, fmt.Errorf("marshal %s: %w", slot.name, err)
		}
		*slot.dst = string(raw)
	}
	if data.QualityScore != nil {
		raw, err := json.Marshal(data.QualityScore)
		if err != nil {
			return store.ReviewResults{}, fmt.Errorf("marshal quality_score: %w", err)
		}
		results.QualityScore = string(raw)
	}
	return results, nil
}
