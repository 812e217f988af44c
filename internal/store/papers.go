package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreatePaper inserts a new paper. The AID must already be generated and is
// unique across all papers.
func (s *Store) CreatePaper(ctx context.Context, p *Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPrivate
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (id, aid, title, repo_url, visibility, license, created_by,
		                     created_at, updated_at, approved_public_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AID, p.Title, p.RepoURL, p.Visibility, p.License, p.CreatedBy,
		formatTime(now), formatTime(now),
		formatNullableTime(p.ApprovedPublicAt), formatNullableTime(p.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert paper: %w", mapConstraintErr(err))
	}
	return nil
}

// GetPaperByAID fetches a paper by its public identifier. Soft-deleted papers
// are not visible.
func (s *Store) GetPaperByAID(ctx context.Context, aid string) (*Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Paper
	var created, updated string
	var approved, deleted sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, aid, title, repo_url, visibility, license, created_by,
		        created_at, updated_at, approved_public_at, deleted_at
		 FROM papers WHERE aid = ? AND deleted_at IS NULL`, aid).
		Scan(&p.ID, &p.AID, &p.Title, &p.RepoURL, &p.Visibility, &p.License,
			&p.CreatedBy, &created, &updated, &approved, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan paper: %w", err)
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	p.ApprovedPublicAt = parseNullableTime(approved)
	p.DeletedAt = parseNullableTime(deleted)
	return &p, nil
}

// SoftDeletePaper sets the deletion tombstone. Rows are never removed.
func (s *Store) SoftDeletePaper(ctx context.Context, aid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET deleted_at = ?, updated_at = ? WHERE aid = ? AND deleted_at IS NULL`,
		formatTime(time.Now()), formatTime(time.Now()), aid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePaperVersion inserts a version row. The caller supplies the version
// number; the UNIQUE (aid, version) constraint arbitrates concurrent creates.
func (s *Store) CreatePaperVersion(ctx context.Context, v *PaperVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO paper_versions (id, paper_id, aid, version, pdf_path, meta_json, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PaperID, v.AID, v.Version, v.PDFPath, v.MetaJSON,
		formatTime(v.CreatedAt), formatNullableTime(v.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert paper version: %w", mapConstraintErr(err))
	}
	return nil
}

// NextVersionNumber allocates max(version)+1 for a paper, starting at 1.
func (s *Store) NextVersionNumber(ctx context.Context, aid string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxVersion sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM paper_versions WHERE aid = ? AND deleted_at IS NULL`, aid).
		Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("query max version: %w", err)
	}
	return int(maxVersion.Int64) + 1, nil
}

// GetPaperVersion fetches one version, or the latest when version is 0.
func (s *Store) GetPaperVersion(ctx context.Context, aid string, version int) (*PaperVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, paper_id, aid, version, pdf_path, meta_json, created_at, deleted_at
	          FROM paper_versions WHERE aid = ? AND deleted_at IS NULL`
	args := []any{aid}
	if version > 0 {
		query += ` AND version = ?`
		args = append(args, version)
	} else {
		query += ` ORDER BY version DESC LIMIT 1`
	}

	var v PaperVersion
	var created string
	var deleted sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&v.ID, &v.PaperID, &v.AID, &v.Version, &v.PDFPath, &v.MetaJSON, &created, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan paper version: %w", err)
	}
	v.CreatedAt = parseTime(created)
	v.DeletedAt = parseNullableTime(deleted)
	return &v, nil
}

// AddExternalID attaches one external identifier to a paper. At most one
// identifier of each kind is allowed per paper.
func (s *Store) AddExternalID(ctx context.Context, e *PaperExternalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO paper_external_ids (id, paper_id, kind, value) VALUES (?, ?, ?, ?)`,
		e.ID, e.PaperID, e.Kind, e.Value)
	if err != nil {
		return fmt.Errorf("insert external id: %w", mapConstraintErr(err))
	}
	return nil
}

// InsertClaim stores an extracted claim. The UNIQUE hash dedupes re-extraction
// of the same (text, span, version); a duplicate returns ErrConflict.
func (s *Store) InsertClaim(ctx context.Context, c *Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Hash == "" {
		c.Hash = c.ComputeHash()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (id, paper_version_id, paper_id, text, span_start, span_end,
		                     page, bbox, section, confidence, hash, text_hash, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PaperVersionID, c.PaperID, c.Text, c.SpanStart, c.SpanEnd,
		c.Page, c.BBox, c.Section, c.Confidence, c.Hash, c.TextHash,
		formatTime(c.CreatedAt), formatNullableTime(c.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert claim: %w", mapConstraintErr(err))
	}
	return nil
}

// ListClaims returns claims for a paper version, optionally filtered by
// section, with limit/offset paging.
func (s *Store) ListClaims(ctx context.Context, paperVersionID, section string, limit, offset int) ([]Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, paper_version_id, paper_id, text, span_start, span_end,
	                 page, bbox, section, confidence, hash, text_hash, created_at, deleted_at
	          FROM claims WHERE paper_version_id = ? AND deleted_at IS NULL`
	args := []any{paperVersionID}
	if section != "" {
		query += ` AND section = ?`
		args = append(args, section)
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		var c Claim
		var created string
		var deleted sql.NullString
		if err := rows.Scan(&c.ID, &c.PaperVersionID, &c.PaperID, &c.Text,
			&c.SpanStart, &c.SpanEnd, &c.Page, &c.BBox, &c.Section, &c.Confidence,
			&c.Hash, &c.TextHash, &created, &deleted); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.CreatedAt = parseTime(created)
		c.DeletedAt = parseNullableTime(deleted)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// AddClaimLink relates a claim to a source paper or external document.
func (s *Store) AddClaimLink(ctx context.Context, l *ClaimLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claim_links (id, claim_id, source_paper_id, source_doc_id,
		                          relation, confidence, context_excerpt, reasoning_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ClaimID, l.SourcePaperID, l.SourceDocID, l.Relation,
		l.Confidence, l.ContextExcerpt, l.ReasoningRef)
	if err != nil {
		return fmt.Errorf("insert claim link: %w", mapConstraintErr(err))
	}
	return nil
}

// AddQualityScore stores a scored assessment. The schema enforces the scope
// XOR between paper_id and paper_version_id and the 0..100 score bounds.
func (s *Store) AddQualityScore(ctx context.Context, q *QualityScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quality_scores (id, scope, paper_id, paper_version_id, score,
		                             signals, rationale, scoring_model_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Scope, q.PaperID, q.PaperVersionID, q.Score,
		q.Signals, q.Rationale, q.ScoringModelVersion, formatTime(q.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert quality score: %w", mapConstraintErr(err))
	}
	return nil
}
