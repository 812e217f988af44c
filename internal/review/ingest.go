// Package review runs the paper review pipeline: ingestion, claim
// extraction, citation suggestion, checklist generation, quality scoring,
// badges and report rendering, executed as a fixed node sequence per review.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

// PaperMeta is the ingested paper's bibliographic record.
type PaperMeta struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Venue       string   `json:"venue,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	URL         string   `json:"url,omitempty"`
	PDFPath     string   `json:"pdf_path,omitempty"`
}

// PDFExtractor turns a PDF file into plain text. Implementations are opaque
// to the pipeline; extraction failures degrade ingestion rather than fail it
// when text is already available from another source.
type PDFExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// IngestRequest names the possible paper sources, checked in order
// pdf > url > doi.
type IngestRequest struct {
	URL     string
	DOI     string
	PDFPath string
}

// Ingestor resolves a paper source into text plus metadata.
type Ingestor struct {
	pdf            PDFExtractor
	httpClient     *http.Client
	crossrefMailto string
	crossrefURL    string
}

// NewIngestor builds an ingestor. pdf may be nil when no extractor is
// configured; crossrefMailto "" disables Crossref enrichment.
func NewIngestor(pdf PDFExtractor, crossrefMailto string) *Ingestor {
	return &Ingestor{
		pdf:            pdf,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		crossrefMailto: crossrefMailto,
		crossrefURL:    "https://api.crossref.org",
	}
}

// Ingest fetches and cleans the paper text, then derives metadata. DOI-only
// requests need Crossref plus a resolvable full text and otherwise fail.
func (ing *Ingestor) Ingest(ctx context.Context, req IngestRequest) (string, PaperMeta, error) {
	var text string
	var err error

	switch {
	case req.PDFPath != "":
		text, err = ing.extractPDF(ctx, req.PDFPath)
	case req.URL != "":
		text, err = ing.fetchURLText(ctx, req.URL)
	case req.DOI != "":
		err = fmt.Errorf("DOI-only ingestion requires a resolvable full text for %s", req.DOI)
	default:
		err = fmt.Errorf("no paper source provided")
	}
	if err != nil {
		return "", PaperMeta{}, err
	}

	text = CleanText(text)
	meta := ExtractMetadata(text)
	meta.DOI = req.DOI
	meta.URL = req.URL
	meta.PDFPath = req.PDFPath

	if req.DOI != "" && ing.crossrefMailto != "" {
		if enriched, err := ing.crossrefLookup(ctx, req.DOI); err != nil {
			observability.WarnContext(ctx, "crossref lookup failed", logfields.Error(err))
		} else {
			mergeMeta(&meta, enriched)
		}
	}
	return text, meta, nil
}

func (ing *Ingestor) extractPDF(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("pdf not found: %w", err)
	}
	if ing.pdf == nil {
		return "", fmt.Errorf("no pdf extractor configured")
	}
	text, err := ing.pdf.ExtractText(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return text, nil
}

// skippedTags are non-content HTML elements whose text is discarded.
var skippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true, "header": true,
}

func (ing *Ingestor) fetchURLText(ctx context.Context, rawURL string) (string, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := ing.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return ExtractHTMLText(resp.Body)
}

// ExtractHTMLText collects visible text from an HTML document, skipping
// script, style and chrome elements.
func ExtractHTMLText(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)
	var parts []string
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return "", fmt.Errorf("parse html: %w", err)
			}
			return strings.Join(parts, " "), nil
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedTags[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedTags[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

// CleanText normalises the text to NFKC (folding PDF ligatures like ﬁ back
// to ASCII), strips repeated header/footer lines (lines appearing in both the
// first and last three lines) and collapses whitespace runs, preserving
// newlines so downstream segmentation still sees line structure.
func CleanText(text string) string {
	text = norm.NFKC.String(text)
	lines := strings.Split(text, "\n")
	if len(lines) > 6 {
		head := map[string]bool{}
		for _, line := range lines[:3] {
			if t := strings.TrimSpace(line); t != "" {
				head[t] = true
			}
		}
		repeated := map[string]bool{}
		for _, line := range lines[len(lines)-3:] {
			if t := strings.TrimSpace(line); t != "" && head[t] {
				repeated[t] = true
			}
		}
		if len(repeated) > 0 {
			kept := lines[:0]
			for _, line := range lines {
				if !repeated[strings.TrimSpace(line)] {
					kept = append(kept, line)
				}
			}
			lines = kept
		}
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var (
	authorsPattern = regexp.MustCompile(`(?i)(?:Authors?|By):\s*(.+)`)
	authorSplit    = regexp.MustCompile(`,\s*|\s+and\s+`)
	venuePattern   = regexp.MustCompile(`(?:Proceedings of |Conference on |Journal of )([A-Z][A-Za-z\s]+)`)
	venueAcronym   = regexp.MustCompile(`arXiv|ICML|NeurIPS|ICLR|AAAI|IJCAI`)
	yearPattern    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

// ExtractMetadata derives title, authors, venue and year from cleaned text
// with line-position heuristics.
func ExtractMetadata(text string) PaperMeta {
	meta := PaperMeta{Title: "Unknown"}
	lines := strings.Split(text, "\n")

	limit := min(len(lines), 20)
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if len(line) <= 20 || len(line) >= 200 {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "abstract") || strings.HasPrefix(lower, "introduction") {
			continue
		}
		meta.Title = line
		break
	}

	if m := authorsPattern.FindStringSubmatch(text); m != nil {
		for _, name := range authorSplit.Split(strings.TrimSpace(m[1]), -1) {
			if name = strings.TrimSpace(name); name != "" {
				meta.Authors = append(meta.Authors, name)
			}
		}
	}

	window := text
	if len(window) > 5000 {
		window = window[:5000]
	}
	if m := venuePattern.FindStringSubmatch(window); m != nil {
		meta.Venue = strings.TrimSpace(m[1])
	} else if m := venueAcronym.FindString(window); m != "" {
		meta.Venue = m
	}

	yearWindow := text
	if len(yearWindow) > 1000 {
		yearWindow = yearWindow[:1000]
	}
	if y := yearPattern.FindString(yearWindow); y != "" {
		meta.PublishedAt = y
	}
	return meta
}

// crossrefWork mirrors the subset of the Crossref works response we read.
type crossrefWork struct {
	Message struct {
		Title  []string `json:"title"`
		Author []struct {
			Given  string `json:"given"`
			Family string `json:"family"`
		} `json:"author"`
		ContainerTitle []string `json:"container-title"`
		PublishedPrint struct {
			DateParts [][]int `json:"date-parts"`
		} `json:"published-print"`
	} `json:"message"`
}

func (ing *Ingestor) crossrefLookup(ctx context.Context, doi string) (PaperMeta, error) {
	endpoint := fmt.Sprintf("%s/works/%s?mailto=%s",
		ing.crossrefURL, url.PathEscape(doi), url.QueryEscape(ing.crossrefMailto))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PaperMeta{}, err
	}
	resp, err := ing.httpClient.Do(req)
	if err != nil {
		return PaperMeta{}, fmt.Errorf("crossref request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PaperMeta{}, fmt.Errorf("crossref status %d for %s", resp.StatusCode, doi)
	}

	var work crossrefWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return PaperMeta{}, fmt.Errorf("decode crossref response: %w", err)
	}

	var meta PaperMeta
	if len(work.Message.Title) > 0 {
		meta.Title = work.Message.Title[0]
	}
	for _, a := range work.Message.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}
	if len(work.Message.ContainerTitle) > 0 {
		meta.Venue = work.Message.ContainerTitle[0]
	}
	if parts := work.Message.PublishedPrint.DateParts; len(parts) > 0 && len(parts[0]) > 0 {
		meta.PublishedAt = fmt.Sprintf("%d", parts[0][0])
	}
	return meta, nil
}

// mergeMeta overlays non-empty Crossref fields onto the heuristic metadata.
func mergeMeta(dst *PaperMeta, src PaperMeta) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if src.Venue != "" {
		dst.Venue = src.Venue
	}
	if src.PublishedAt != "" {
		dst.PublishedAt = src.PublishedAt
	}
}
