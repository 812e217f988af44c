// Package pdftext extracts plain text from PDF files by shelling out to
// external tools, the same way the sandbox shells out to docker. Extraction
// tries poppler's pdftotext first and falls back to mupdf's mutool, so one
// broken or missing tool does not fail ingestion outright.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

const (
	// DefaultBinary is the primary extraction CLI.
	DefaultBinary = "pdftotext"
	// DefaultFallbackBinary is tried when the primary fails or is absent.
	DefaultFallbackBinary = "mutool"
)

// Extractor converts PDFs to text via external binaries.
type Extractor struct {
	binary   string
	fallback string
}

// New creates an extractor using the given primary binary, defaulting to
// pdftotext with a mutool fallback.
func New(binary string) *Extractor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Extractor{binary: binary, fallback: DefaultFallbackBinary}
}

// ExtractText runs the primary binary and, when it fails, the fallback. Both
// errors are joined when neither tool produces text.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("pdf not readable: %w", err)
	}

	text, primaryErr := e.runPrimary(ctx, path)
	if primaryErr == nil {
		return text, nil
	}
	observability.WarnContext(ctx, "Primary PDF extraction failed, trying fallback",
		logfields.Path(path), logfields.Error(primaryErr))

	text, fallbackErr := e.runFallback(ctx, path)
	if fallbackErr == nil {
		return text, nil
	}
	return "", errors.Join(primaryErr, fallbackErr)
}

// runPrimary invokes pdftotext in layout mode. The "-" output argument
// streams text instead of writing a sibling file.
func (e *Extractor) runPrimary(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, e.binary, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return out, nil
}

// runFallback invokes mutool's text converter on all pages.
func (e *Extractor) runFallback(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, e.fallback, "draw", "-F", "text", "-o", "-", path)
	if err != nil {
		return "", fmt.Errorf("mutool failed: %w", err)
	}
	return out, nil
}

func run(ctx context.Context, binary string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}
