package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/queue"
	"github.com/arandu-labs/arandu/internal/review"
	"github.com/arandu-labs/arandu/internal/store"
)

// maxReviewPDFBytes caps the multipart upload size.
const maxReviewPDFBytes = 25 << 20

// ReviewResponse is the serialised review record. Result slots are raw JSON
// so clients get them exactly as the pipeline stored them.
type ReviewResponse struct {
	ID           string          `json:"id"`
	URL          string          `json:"url,omitempty"`
	DOI          string          `json:"doi,omitempty"`
	RepoURL      string          `json:"repo_url,omitempty"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	PaperMeta    json.RawMessage `json:"paper_meta,omitempty"`
	Claims       json.RawMessage `json:"claims,omitempty"`
	Citations    json.RawMessage `json:"citations,omitempty"`
	Checklist    json.RawMessage `json:"checklist,omitempty"`
	QualityScore json.RawMessage `json:"quality_score,omitempty"`
	Badges       json.RawMessage `json:"badges,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func reviewResponse(rev *store.Review) ReviewResponse {
	raw := func(s string) json.RawMessage {
		if s == "" {
			return nil
		}
		return json.RawMessage(s)
	}
	return ReviewResponse{
		ID:           rev.ID,
		URL:          rev.URL,
		DOI:          rev.DOI,
		RepoURL:      rev.RepoURL,
		Status:       string(rev.Status),
		ErrorMessage: rev.ErrorMessage,
		PaperMeta:    raw(rev.PaperMeta),
		Claims:       raw(rev.Claims),
		Citations:    raw(rev.Citations),
		Checklist:    raw(rev.Checklist),
		QualityScore: raw(rev.QualityScore),
		Badges:       raw(rev.Badges),
		CreatedAt:    rev.CreatedAt,
		UpdatedAt:    rev.UpdatedAt,
	}
}

// handleCreateReview accepts a multipart form with at least one of url, doi
// and pdf, plus an optional repo_url, and responds 202 with the pending
// review.
func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReviewPDFBytes+1<<20)
	if err := r.ParseMultipartForm(maxReviewPDFBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	url := r.FormValue("url")
	doi := r.FormValue("doi")
	repoURL := r.FormValue("repo_url")

	pdfPath, err := s.saveReviewPDF(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pdf upload", err.Error())
		return
	}

	if url == "" && doi == "" && pdfPath == "" {
		writeError(w, http.StatusBadRequest, "at least one of url, doi and pdf is required", "")
		return
	}

	rev, err := s.store.CreateReview(r.Context(), url, doi, pdfPath, repoURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create review", err.Error())
		return
	}

	if err := s.queue.Enqueue(r.Context(), queue.QueueReviews, rev.ID); err != nil {
		observability.ErrorContext(r.Context(), "enqueue review failed",
			logfields.ReviewID(rev.ID), logfields.Error(err))
		if dbErr := s.store.MarkReviewFailed(r.Context(), rev.ID, "Unexpected error: failed to enqueue review"); dbErr != nil {
			observability.ErrorContext(r.Context(), "mark review failed after enqueue error", logfields.Error(dbErr))
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue review", "")
		return
	}

	writeJSON(w, http.StatusAccepted, reviewResponse(rev))
}

// saveReviewPDF stores the optional "pdf" form file under the reviews pdf
// pool and returns its path, or "" when the field is absent.
func (s *Server) saveReviewPDF(r *http.Request) (string, error) {
	file, _, err := r.FormFile("pdf")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxReviewPDFBytes+1))
	if err != nil {
		return "", err
	}
	if len(content) > maxReviewPDFBytes {
		return "", errors.New("pdf exceeds 25MB limit")
	}

	dir := filepath.Join(s.cfg.Storage.ReviewsBasePath, "pdfs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+".pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) loadReview(w http.ResponseWriter, r *http.Request) *store.Review {
	rev, err := s.store.GetReview(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "review not found", "")
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load review", err.Error())
		return nil
	}
	return rev
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	if rev := s.loadReview(w, r); rev != nil {
		writeJSON(w, http.StatusOK, reviewResponse(rev))
	}
}

func (s *Server) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	rev := s.loadReview(w, r)
	if rev == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            rev.ID,
		"status":        rev.Status,
		"error_message": rev.ErrorMessage,
		"updated_at":    rev.UpdatedAt,
	})
}

func (s *Server) handleReviewScore(w http.ResponseWriter, r *http.Request) {
	rev := s.loadReview(w, r)
	if rev == nil {
		return
	}
	if rev.QualityScore == "" {
		writeError(w, http.StatusNotFound, "quality score not available", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rev.QualityScore))
}

func (s *Server) handleReviewArtifact(w http.ResponseWriter, r *http.Request) {
	rev := s.loadReview(w, r)
	if rev == nil {
		return
	}

	var path, contentType string
	switch r.PathValue("name") {
	case review.HTMLReportName:
		path, contentType = rev.HTMLReportPath, "text/html; charset=utf-8"
	case review.JSONSummaryName:
		path, contentType = rev.JSONSummaryPath, "application/json"
	default:
		writeError(w, http.StatusNotFound, "unknown artifact", "")
		return
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "artifact not available", "")
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read artifact", err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
