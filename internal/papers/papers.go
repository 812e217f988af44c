// Package papers hosts uploaded paper PDFs: identifier allocation, upload
// validation, immutable version storage and retrieval paths for streaming.
package papers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/store"
)

// aidBytes yields 12 URL-safe characters, the public identifier length.
const aidBytes = 9

// pdfMagic is the required file prefix for uploads.
var pdfMagic = []byte("%PDF")

var (
	// ErrInvalidPDF rejects uploads without the PDF magic prefix.
	ErrInvalidPDF = errors.New("file is not a valid PDF")
	// ErrPDFTooLarge rejects uploads over the configured size cap.
	ErrPDFTooLarge = errors.New("pdf exceeds maximum size")
	// ErrInvalidFilename rejects path traversal in upload names.
	ErrInvalidFilename = errors.New("invalid filename")
)

// Service owns the paper storage tree and its database rows.
type Service struct {
	store      *store.Store
	cfg        config.PapersConfig
	httpClient *http.Client
}

// New builds the paper hosting service.
func New(st *store.Store, cfg config.PapersConfig) *Service {
	timeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		store:      st,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateAID allocates a 12-character URL-safe identifier.
func GenerateAID() (string, error) {
	buf := make([]byte, aidBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate aid: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateFilename rejects names that could escape the storage tree.
func ValidateFilename(name string) error {
	if name == "" ||
		strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// ValidatePDF enforces the magic prefix and the size cap.
func (s *Service) ValidatePDF(content []byte) error {
	if !bytes.HasPrefix(content, pdfMagic) {
		return ErrInvalidPDF
	}
	maxBytes := int64(s.cfg.MaxPDFSizeMB) * 1024 * 1024
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPDFTooLarge, len(content), maxBytes)
	}
	return nil
}

// VersionDir is the storage directory for one paper version.
func (s *Service) VersionDir(aid string, version int) string {
	return filepath.Join(s.cfg.BasePath, aid, fmt.Sprintf("v%d", version))
}

// CreatePaper allocates an AID and inserts the paper row. AID collisions are
// retried a few times; the unique index arbitrates.
func (s *Service) CreatePaper(ctx context.Context, title, repoURL, license, createdBy string, visibility store.Visibility) (*store.Paper, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		aid, err := GenerateAID()
		if err != nil {
			return nil, err
		}
		p := &store.Paper{
			AID:        aid,
			Title:      title,
			RepoURL:    repoURL,
			License:    license,
			CreatedBy:  createdBy,
			Visibility: visibility,
		}
		if err := s.store.CreatePaper(ctx, p); err != nil {
			if errors.Is(err, store.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("allocate aid: %w", lastErr)
}

// pdfFileName is the fixed on-disk name for every stored version. Uploaded
// filenames are validated but never used as storage paths.
const pdfFileName = "file.pdf"

// AddVersion validates and stores a PDF as the paper's next version. The
// file lands under <base>/<aid>/v<version>/file.pdf before the row is
// inserted; on insert failure the file is removed again.
func (s *Service) AddVersion(ctx context.Context, aid, filename string, content []byte, metaJSON string) (*store.PaperVersion, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if err := s.ValidatePDF(content); err != nil {
		return nil, err
	}

	paper, err := s.store.GetPaperByAID(ctx, aid)
	if err != nil {
		return nil, err
	}
	version, err := s.store.NextVersionNumber(ctx, aid)
	if err != nil {
		return nil, err
	}

	dir := s.VersionDir(aid, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create version dir: %w", err)
	}
	pdfPath := filepath.Join(dir, pdfFileName)
	if err := os.WriteFile(pdfPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	v := &store.PaperVersion{
		PaperID:  paper.ID,
		AID:      aid,
		Version:  version,
		PDFPath:  pdfPath,
		MetaJSON: metaJSON,
	}
	if err := s.store.CreatePaperVersion(ctx, v); err != nil {
		_ = os.Remove(pdfPath)
		return nil, err
	}
	return v, nil
}

// GetVersion resolves a version row, latest when version is 0.
func (s *Service) GetVersion(ctx context.Context, aid string, version int) (*store.PaperVersion, error) {
	return s.store.GetPaperVersion(ctx, aid, version)
}

// FetchPDF downloads a PDF from a URL, bounded by the configured timeout and
// size cap.
func (s *Service) FetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pdf: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch pdf: status %d", resp.StatusCode)
	}

	maxBytes := int64(s.cfg.MaxPDFSizeMB) * 1024 * 1024
	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrPDFTooLarge, maxBytes)
	}
	return content, nil
}
