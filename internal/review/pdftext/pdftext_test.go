package pdftext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 stub"), 0o644))
	return path
}

func TestExtractTextUsesPrimary(t *testing.T) {
	e := &Extractor{
		binary:   writeScript(t, `echo "primary text"`),
		fallback: writeScript(t, `echo "fallback text"`),
	}
	got, err := e.ExtractText(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Equal(t, "primary text\n", got)
}

func TestExtractTextFallsBack(t *testing.T) {
	e := &Extractor{
		binary:   writeScript(t, `echo "corrupt xref" >&2; exit 1`),
		fallback: writeScript(t, `echo "fallback text"`),
	}
	got, err := e.ExtractText(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Equal(t, "fallback text\n", got)
}

func TestExtractTextBothFail(t *testing.T) {
	e := &Extractor{
		binary:   writeScript(t, `exit 1`),
		fallback: writeScript(t, `exit 2`),
	}
	_, err := e.ExtractText(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Contains(t, err.Error(), "mutool failed")
}

func TestExtractTextMissingFile(t *testing.T) {
	e := New("")
	_, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf not readable")
}
