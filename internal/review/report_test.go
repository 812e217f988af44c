package review

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arandu-labs/arandu/internal/review/analysis"
	"github.com/arandu-labs/arandu/internal/review/quality"
	"github.com/arandu-labs/arandu/internal/review/rag"
)

func sampleReviewData() ReviewData {
	return ReviewData{
		ID:      "rev-123",
		URL:     "https://example.org/paper",
		DOI:     "10.1000/xyz",
		RepoURL: "https://github.com/org/repo",
		Status:  "completed",
		PaperMeta: PaperMeta{
			Title:       "A Sample Paper",
			Authors:     []string{"Ada Lovelace", "Alan Turing"},
			Venue:       "NeurIPS",
			PublishedAt: "2024",
		},
		Claims: []analysis.Claim{
			{ID: "c0", Text: "We propose a sample method.", Section: "introduction", Confidence: 0.7},
		},
		Citations: map[string][]rag.CitationCandidate{
			"c0": {
				{Title: "Prior Art One", URL: "https://example.org/1", ScoreFinal: 1.2},
				{Title: "Prior Art Two", URL: "https://example.org/2", ScoreFinal: 0.8},
				{Title: "Prior Art Three", URL: "https://example.org/3", ScoreFinal: 0.5},
				{Title: "Prior Art Four", URL: "https://example.org/4", ScoreFinal: 0.1},
			},
		},
		Checklist: analysis.Checklist{
			Items: []analysis.ChecklistItem{
				{Key: "data_available", Status: analysis.StatusMissing, Source: "repo"},
				{Key: "metrics", Status: analysis.StatusOK, Evidence: "accuracy", Source: "paper"},
			},
			Summary: "Checklist: 1 OK, 0 partial, 1 missing",
		},
		QualityScore: &QualityReport{
			Value0100: 62.5,
			Tier:      "C",
			Version:   quality.PredictorVersion,
			ModelType: quality.PredictorModel,
			SHAP: []quality.Attribution{
				{Feature: "has_baselines", Value: 1, Phi: 10},
			},
			Narrative: quality.Narrative{
				ExecutiveJustification: []string{"Solid baseline comparisons."},
				TechnicalDeepdive:      "The score reflects **strong** baselines.",
			},
		},
		Badges:    Badges{ClaimMapped: false, MethodCheck: "partial", CitationsAugmented: true},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestBuildHTMLReport(t *testing.T) {
	b := NewReportBuilder("http://localhost:8080/api/v1/")
	html, err := b.BuildHTML(sampleReviewData())
	require.NoError(t, err)
	body := string(html)

	assert.Contains(t, body, "A Sample Paper")
	assert.Contains(t, body, "Ada Lovelace, Alan Turing")
	assert.Contains(t, body, "http://localhost:8080/api/v1/badges/rev-123/claim-mapped.svg")
	assert.Contains(t, body, "method-check.svg")
	assert.Contains(t, body, "citations-augmented.svg")
	assert.Contains(t, body, "62.5")
	assert.Contains(t, body, "tier C")
	assert.Contains(t, body, "We propose a sample method.")
	assert.Contains(t, body, "data_available")
	assert.Contains(t, body, "Checklist: 1 OK, 0 partial, 1 missing")
	// Narrative markdown renders to HTML.
	assert.Contains(t, body, "<strong>strong</strong>")
	// Only the top three citations are shown.
	assert.Contains(t, body, "Prior Art Three")
	assert.NotContains(t, body, "Prior Art Four")
}

func TestBuildHTMLRecommendations(t *testing.T) {
	b := NewReportBuilder("http://localhost:8080/api/v1")

	data := sampleReviewData()
	html, err := b.BuildHTML(data)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Strengthen evidence quality")
	assert.Contains(t, string(html), "data available")

	good := sampleReviewData()
	good.QualityScore.Value0100 = 90
	good.Checklist.Items[0].Status = analysis.StatusOK
	html, err = b.BuildHTML(good)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Review looks good!")
}

func TestWriteReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rev-123")
	b := NewReportBuilder("http://localhost:8080/api/v1")

	htmlPath, jsonPath, err := b.WriteReports(dir, sampleReviewData())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.html"), htmlPath)
	assert.Equal(t, filepath.Join(dir, "review.json"), jsonPath)

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "rev-123", decoded["id"])
	assert.Equal(t, "completed", decoded["status"])

	qs, ok := decoded["quality_score"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 62.5, qs["value_0_100"])
	assert.Equal(t, "C", qs["tier"])

	badges, ok := decoded["badges"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "partial", badges["method_check"])
	assert.Equal(t, true, badges["citations_augmented"])
}

func TestBuildHTMLNoQualityScore(t *testing.T) {
	data := sampleReviewData()
	data.QualityScore = nil
	b := NewReportBuilder("http://localhost:8080/api/v1")
	html, err := b.BuildHTML(data)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "Quality Score")
	assert.Contains(t, string(html), "A Sample Paper")
}
