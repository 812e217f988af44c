package papers

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return New(st, config.PapersConfig{
		BasePath:     t.TempDir(),
		MaxPDFSizeMB: 1,
	})
}

func TestGenerateAIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z0-9_-]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		aid, err := GenerateAID()
		require.NoError(t, err)
		assert.Regexp(t, pattern, aid)
		assert.False(t, seen[aid], "duplicate aid %s", aid)
		seen[aid] = true
	}
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("paper.pdf"))
	assert.NoError(t, ValidateFilename("my-paper_v2.pdf"))

	for _, name := range []string{"", "../paper.pdf", "a/../b.pdf", "dir/paper.pdf", `dir\paper.pdf`} {
		assert.ErrorIs(t, ValidateFilename(name), ErrInvalidFilename, name)
	}
}

func TestValidatePDF(t *testing.T) {
	s := testService(t)

	assert.NoError(t, s.ValidatePDF([]byte("%PDF-1.7 content")))
	assert.ErrorIs(t, s.ValidatePDF([]byte("<html>not a pdf</html>")), ErrInvalidPDF)
	assert.ErrorIs(t, s.ValidatePDF([]byte("")), ErrInvalidPDF)

	big := make([]byte, 1024*1024+1)
	copy(big, "%PDF")
	assert.ErrorIs(t, s.ValidatePDF(big), ErrPDFTooLarge)
}

func TestCreatePaperAndVersions(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	paper, err := s.CreatePaper(ctx, "A Paper", "https://github.com/org/repo", "MIT", "tester", store.VisibilityUnlisted)
	require.NoError(t, err)
	assert.Len(t, paper.AID, 12)
	assert.Equal(t, store.VisibilityUnlisted, paper.Visibility)

	content := []byte("%PDF-1.7 first version")
	v1, err := s.AddVersion(ctx, paper.AID, "paper.pdf", content, `{"title":"A Paper"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	// Stored under a fixed name regardless of what the upload was called.
	assert.Equal(t, filepath.Join(s.cfg.BasePath, paper.AID, "v1", "file.pdf"), v1.PDFPath)

	stored, err := os.ReadFile(v1.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	v2, err := s.AddVersion(ctx, paper.AID, "revised final (2).pdf", []byte("%PDF-1.7 second"), "")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, filepath.Join(s.cfg.BasePath, paper.AID, "v2", "file.pdf"), v2.PDFPath)

	// Latest resolution.
	latest, err := s.GetVersion(ctx, paper.AID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	first, err := s.GetVersion(ctx, paper.AID, 1)
	require.NoError(t, err)
	assert.Equal(t, v1.PDFPath, first.PDFPath)
}

func TestAddVersionRejectsBadUploads(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	paper, err := s.CreatePaper(ctx, "A Paper", "", "", "", store.VisibilityPrivate)
	require.NoError(t, err)

	_, err = s.AddVersion(ctx, paper.AID, "../escape.pdf", []byte("%PDF"), "")
	assert.ErrorIs(t, err, ErrInvalidFilename)

	_, err = s.AddVersion(ctx, paper.AID, "paper.pdf", []byte("plain text"), "")
	assert.ErrorIs(t, err, ErrInvalidPDF)

	_, err = s.AddVersion(ctx, "missing-aid-00", "paper.pdf", []byte("%PDF-1.7"), "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
