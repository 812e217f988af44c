package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arandu-labs/arandu/internal/papers"
	"github.com/arandu-labs/arandu/internal/store"
)

// PaperResponse is the serialised paper record.
type PaperResponse struct {
	AID        string    `json:"aid"`
	Title      string    `json:"title"`
	RepoURL    string    `json:"repo_url,omitempty"`
	Visibility string    `json:"visibility"`
	License    string    `json:"license,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func paperResponse(p *store.Paper) PaperResponse {
	return PaperResponse{
		AID:        p.AID,
		Title:      p.Title,
		RepoURL:    p.RepoURL,
		Visibility: string(p.Visibility),
		License:    p.License,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// handleCreatePaper accepts a multipart form with paper fields and an
// optional initial "pdf" upload; with a PDF the response includes version 1.
func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReviewPDFBytes+1<<20)
	if err := r.ParseMultipartForm(maxReviewPDFBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	title := r.FormValue("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required", "")
		return
	}
	visibility := store.Visibility(r.FormValue("visibility"))
	if visibility == "" {
		visibility = store.VisibilityPrivate
	}

	paper, err := s.papers.CreatePaper(r.Context(), title, r.FormValue("repo_url"),
		r.FormValue("license"), r.FormValue("created_by"), visibility)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create paper", err.Error())
		return
	}

	resp := map[string]any{"paper": paperResponse(paper)}
	if file, header, err := r.FormFile("pdf"); err == nil {
		defer file.Close()
		content, readErr := io.ReadAll(file)
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "failed to read pdf", readErr.Error())
			return
		}
		v, vErr := s.papers.AddVersion(r.Context(), paper.AID, header.Filename, content, r.FormValue("meta"))
		if vErr != nil {
			writePaperUploadError(w, vErr)
			return
		}
		resp["version"] = versionResponse(v)
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := s.store.GetPaperByAID(r.Context(), r.PathValue("aid"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "paper not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load paper", err.Error())
		return
	}

	resp := map[string]any{"paper": paperResponse(paper)}
	if latest, err := s.papers.GetVersion(r.Context(), paper.AID, 0); err == nil {
		resp["latest_version"] = versionResponse(latest)
	}
	writeJSON(w, http.StatusOK, resp)
}

// VersionResponse is the serialised paper version record.
type VersionResponse struct {
	AID       string          `json:"aid"`
	Version   int             `json:"version"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func versionResponse(v *store.PaperVersion) VersionResponse {
	resp := VersionResponse{AID: v.AID, Version: v.Version, CreatedAt: v.CreatedAt}
	if v.MetaJSON != "" {
		resp.Meta = json.RawMessage(v.MetaJSON)
	}
	return resp
}

func (s *Server) handleAddPaperVersion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReviewPDFBytes+1<<20)
	if err := r.ParseMultipartForm(maxReviewPDFBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf file is required", "")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read pdf", err.Error())
		return
	}

	v, err := s.papers.AddVersion(r.Context(), r.PathValue("aid"), header.Filename, content, r.FormValue("meta"))
	if err != nil {
		writePaperUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, versionResponse(v))
}

func writePaperUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "paper not found", "")
	case errors.Is(err, papers.ErrInvalidPDF),
		errors.Is(err, papers.ErrInvalidFilename):
		writeError(w, http.StatusBadRequest, "invalid pdf upload", err.Error())
	case errors.Is(err, papers.ErrPDFTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "pdf too large", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to store version", err.Error())
	}
}

// handlePaperFile streams a version PDF with HTTP Range support for the
// in-browser viewer. Served for both GET and HEAD.
func (s *Server) handlePaperFile(w http.ResponseWriter, r *http.Request) {
	aid := r.PathValue("aid")
	versionNum, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || versionNum < 1 {
		writeError(w, http.StatusBadRequest, "invalid version", "")
		return
	}

	s.servePaperVersion(w, r, aid, versionNum)
}

// handlePaperViewer streams a paper PDF for inline viewing. The "v" query
// parameter selects a version; absent or zero means the latest.
func (s *Server) handlePaperViewer(w http.ResponseWriter, r *http.Request) {
	versionNum := 0
	if raw := r.URL.Query().Get("v"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid version", "")
			return
		}
		versionNum = n
	}
	s.servePaperVersion(w, r, r.PathValue("aid"), versionNum)
}

func (s *Server) servePaperVersion(w http.ResponseWriter, r *http.Request, aid string, versionNum int) {
	v, err := s.papers.GetVersion(r.Context(), aid, versionNum)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "paper version not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load version", err.Error())
		return
	}

	f, err := os.Open(v.PDFPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open pdf", err.Error())
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stat pdf", err.Error())
		return
	}

	serveRange(w, r, f, info.Size())
}

// serveRange implements single-range byte serving: empty start means offset
// zero, empty end means EOF, and out-of-range or inverted ranges get 416.
func serveRange(w http.ResponseWriter, r *http.Request, f io.ReadSeeker, size int64) {
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "application/pdf")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = io.Copy(w, f)
		}
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed range", err.Error())
		return
	}
	if start >= size || start > end || end >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable", "")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	_, _ = io.CopyN(w, f, length)
}

// parseRange parses a single "bytes=start-end" specifier. Empty start reads
// from offset zero; empty end reads to EOF.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit in %q", header)
	}
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges are not supported")
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("missing '-' in range %q", header)
	}

	start = 0
	if startStr != "" {
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return 0, 0, fmt.Errorf("invalid range start %q", startStr)
		}
	}
	end = size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return 0, 0, fmt.Errorf("invalid range end %q", endStr)
		}
	}
	return start, end, nil
}

// handlePaperClaims lists a version's stored claims with optional section
// filtering and limit/offset paging. The "version" query parameter selects a
// version; absent means the latest.
func (s *Server) handlePaperClaims(w http.ResponseWriter, r *http.Request) {
	aid := r.PathValue("aid")
	versionNum := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid version", "")
			return
		}
		versionNum = n
	}
	v, err := s.papers.GetVersion(r.Context(), aid, versionNum)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "paper not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load paper", err.Error())
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	claims, err := s.store.ListClaims(r.Context(), v.ID, r.URL.Query().Get("section"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims", err.Error())
		return
	}

	type claimResponse struct {
		ID         string   `json:"id"`
		Text       string   `json:"text"`
		Section    string   `json:"section,omitempty"`
		SpanStart  *int     `json:"span_start,omitempty"`
		SpanEnd    *int     `json:"span_end,omitempty"`
		Confidence *float64 `json:"confidence,omitempty"`
	}
	out := make([]claimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, claimResponse{
			ID:         c.ID,
			Text:       c.Text,
			Section:    c.Section,
			SpanStart:  c.SpanStart,
			SpanEnd:    c.SpanEnd,
			Confidence: c.Confidence,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"aid":     aid,
		"version": v.Version,
		"claims":  out,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
