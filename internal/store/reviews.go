package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateReview inserts a new pending review. At least one of url, doi and
// pdfFilePath must be non-empty; the schema rejects an empty triple.
func (s *Store) CreateReview(ctx context.Context, url, doi, pdfFilePath, repoURL string) (*Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	review := &Review{
		ID:          uuid.NewString(),
		URL:         url,
		DOI:         doi,
		PDFFilePath: pdfFilePath,
		RepoURL:     repoURL,
		Status:      ReviewStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, url, doi, pdf_file_path, repo_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.URL, review.DOI, review.PDFFilePath, review.RepoURL,
		review.Status, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", mapConstraintErr(err))
	}
	return review, nil
}

// GetReview fetches a review by id.
func (s *Store) GetReview(ctx context.Context, id string) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r Review
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, doi, pdf_file_path, repo_url, status, error_message,
		        paper_meta, paper_text, claims, citations, checklist, quality_score,
		        badges, html_report_path, json_summary_path, created_at, updated_at
		 FROM reviews WHERE id = ?`, id).
		Scan(&r.ID, &r.URL, &r.DOI, &r.PDFFilePath, &r.RepoURL, &r.Status,
			&r.ErrorMessage, &r.PaperMeta, &r.PaperText, &r.Claims, &r.Citations,
			&r.Checklist, &r.QualityScore, &r.Badges, &r.HTMLReportPath,
			&r.JSONSummaryPath, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan review: %w", err)
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

// TransitionReview moves a review between statuses with a guard on the
// current status, mirroring TransitionJob.
func (s *Store) TransitionReview(ctx context.Context, id string, from, to ReviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(time.Now()), id, from)
	if err != nil {
		return fmt.Errorf("transition review: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: review %s not in status %s", ErrConflict, id, from)
	}
	return nil
}

// MarkReviewFailed sets the terminal failed status with its message.
func (s *Store) MarkReviewFailed(ctx context.Context, id, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		ReviewStatusFailed, errorMessage, formatTime(time.Now()), id)
	return err
}

// ReviewResults carries the populated result slots committed at pipeline end.
type ReviewResults struct {
	PaperMeta       string
	PaperText       string
	Claims          string
	Citations       string
	Checklist       string
	QualityScore    string
	Badges          string
	HTMLReportPath  string
	JSONSummaryPath string
	ErrorMessage    string
}

// CompleteReview commits all result slots and the processing→completed
// transition in one statement so partial pipelines never surface as done.
func (s *Store) CompleteReview(ctx context.Context, id string, results ReviewResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET
		    status = ?, error_message = ?, paper_meta = ?, paper_text = ?,
		    claims = ?, citations = ?, checklist = ?, quality_score = ?,
		    badges = ?, html_report_path = ?, json_summary_path = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		ReviewStatusCompleted, results.ErrorMessage, results.PaperMeta,
		results.PaperText, results.Claims, results.Citations, results.Checklist,
		results.QualityScore, results.Badges, results.HTMLReportPath,
		results.JSONSummaryPath, formatTime(time.Now()), id, ReviewStatusProcessing)
	if err != nil {
		return fmt.Errorf("complete review: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: review %s not in status processing", ErrConflict, id)
	}
	return nil
}
