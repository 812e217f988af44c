package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/metrics"
	"github.com/arandu-labs/arandu/internal/papers"
	"github.com/arandu-labs/arandu/internal/queue"
	"github.com/arandu-labs/arandu/internal/review"
	"github.com/arandu-labs/arandu/internal/store"
)

type testEnv struct {
	server *Server
	store  *store.Store
	queue  *queue.MemoryQueue
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Storage.ArtifactsBasePath = t.TempDir()
	cfg.Storage.ReviewsBasePath = t.TempDir()
	cfg.Papers.BasePath = t.TempDir()
	cfg.Server.WebOrigin = "http://localhost:3000"

	st, err := store.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	q := queue.NewMemoryQueue(16)
	summary := metrics.NewSummary()
	srv := New(cfg, st, q, papers.New(st, cfg.Papers), summary, summary)
	return &testEnv{server: srv, store: st, queue: q, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t)
	body := strings.NewReader(`{"repo_url":"https://github.com/org/repo","run_command":"python train.py"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)

	rec := env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "pending", got["status"])
	assert.NotEmpty(t, got["id"])

	// The job landed on the default queue.
	consumed := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = env.queue.Consume(ctx, queue.QueueDefault, func(_ context.Context, id string) error {
			consumed <- id
			cancel()
			return nil
		})
	}()
	assert.Equal(t, got["id"], <-consumed)
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobStatusAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job, err := env.store.CreateJob(ctx, "https://github.com/org/repo", "", "")
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decodeBody(t, rec)["status"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArtifactListingAndDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job, err := env.store.CreateJob(ctx, "https://github.com/org/repo", "", "")
	require.NoError(t, err)
	require.NoError(t, env.store.TransitionJob(ctx, job.ID, store.JobStatusPending, store.JobStatusRunning))

	reportPath := filepath.Join(env.cfg.Storage.ArtifactsBasePath, "report.md")
	require.NoError(t, os.WriteFile(reportPath, []byte("# Reproduction Report\n"), 0o644))

	run := &store.Run{JobID: job.ID, ExitCode: 0}
	artifacts := []store.Artifact{
		{JobID: job.ID, Type: store.ArtifactTypeReport, Format: "markdown", ContentPath: reportPath, ContentSize: 22},
	}
	require.NoError(t, env.store.CompleteJob(ctx, job.ID, run, artifacts))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/artifacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"report"`)
	assert.Contains(t, rec.Body.String(), "/jobs/"+job.ID+"/artifacts/report")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/artifacts/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Reproduction Report\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/artifacts/notebook", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateReviewMultipart(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, map[string]string{"url": "https://example.org/paper"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "pending", got["status"])
}

func TestCreateReviewWithPDF(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, nil, "pdf", "paper.pdf", []byte("%PDF-1.7 body"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	id, _ := decodeBody(t, rec)["id"].(string)
	rev, err := env.store.GetReview(context.Background(), id)
	require.NoError(t, err)
	assert.FileExists(t, rev.PDFFilePath)
	assert.Contains(t, rev.PDFFilePath, filepath.Join(env.cfg.Storage.ReviewsBasePath, "pdfs"))
}

func TestCreateReviewRequiresSource(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, map[string]string{"repo_url": "https://github.com/org/repo"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func completedReview(t *testing.T, env *testEnv) *store.Review {
	t.Helper()
	ctx := context.Background()
	rev, err := env.store.CreateReview(ctx, "https://example.org/paper", "", "", "")
	require.NoError(t, err)
	require.NoError(t, env.store.TransitionReview(ctx, rev.ID, store.ReviewStatusPending, store.ReviewStatusProcessing))

	dir := filepath.Join(env.cfg.Storage.ReviewsBasePath, rev.ID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	htmlPath := filepath.Join(dir, review.HTMLReportName)
	jsonPath := filepath.Join(dir, review.JSONSummaryName)
	require.NoError(t, os.WriteFile(htmlPath, []byte("<html><body>report</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"id":"x"}`), 0o644))

	results := store.ReviewResults{
		PaperMeta:       `{"title":"T"}`,
		Claims:          `[]`,
		Citations:       `{}`,
		Checklist:       `{"items":[],"summary":"Checklist: 0 OK, 0 partial, 0 missing"}`,
		QualityScore:    `{"value_0_100":72.5,"tier":"B"}`,
		Badges:          `{"claim_mapped":true,"method_check":"partial","citations_augmented":false}`,
		HTMLReportPath:  htmlPath,
		JSONSummaryPath: jsonPath,
	}
	require.NoError(t, env.store.CompleteReview(ctx, rev.ID, results))
	got, err := env.store.GetReview(ctx, rev.ID)
	require.NoError(t, err)
	return got
}

func TestReviewScoreAndArtifacts(t *testing.T) {
	env := newTestEnv(t)
	rev := completedReview(t, env)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/"+rev.ID+"/score", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 72.5, decodeBody(t, rec)["value_0_100"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/"+rev.ID+"/artifacts/report.html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/"+rev.ID+"/artifacts/review.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/"+rev.ID+"/artifacts/other.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadgeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rev := completedReview(t, env)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/badges/"+rev.ID+"/claim-mapped.svg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "Claim-mapped")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/badges/"+rev.ID+"/method-check.svg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Method-check: Partial")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/badges/"+rev.ID+"/bogus.svg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/badges/no-such-review/claim-mapped.svg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func createPaperWithPDF(t *testing.T, env *testEnv, content []byte) string {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{"title": "A Paper"}, "pdf", "paper.pdf", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paper, _ := decodeBody(t, rec)["paper"].(map[string]any)
	aid, _ := paper["aid"].(string)
	require.NotEmpty(t, aid)
	return aid
}

func TestPaperLifecycle(t *testing.T) {
	env := newTestEnv(t)
	aid := createPaperWithPDF(t, env, []byte("%PDF-1.7 version one"))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	latest, _ := got["latest_version"].(map[string]any)
	assert.Equal(t, float64(1), latest["version"])

	// Second version.
	body, contentType := multipartBody(t, nil, "pdf", "paper.pdf", []byte("%PDF-1.7 version two"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers/"+aid+"/versions", body)
	req.Header.Set("Content-Type", contentType)
	rec = env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["version"])
}

func TestPaperUploadRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, map[string]string{"title": "A Paper"}, "pdf", "paper.pdf", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaperFileRangeStreaming(t *testing.T) {
	env := newTestEnv(t)
	content := []byte("%PDF-1.7 " + strings.Repeat("x", 91)) // 100 bytes
	aid := createPaperWithPDF(t, env, content)
	path := "/api/v1/papers/" + aid + "/versions/1/file"

	// Full fetch.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Body.Bytes(), 100)

	cases := []struct {
		name        string
		rangeHeader string
		wantStatus  int
		wantRange   string
		wantBodyLen int
		wantFirst   byte
	}{
		{"interior", "bytes=10-19", http.StatusPartialContent, "bytes 10-19/100", 10, content[10]},
		{"openEnd", "bytes=90-", http.StatusPartialContent, "bytes 90-99/100", 10, content[90]},
		{"openStart", "bytes=-49", http.StatusPartialContent, "bytes 0-49/100", 50, content[0]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("Range", tc.rangeHeader)
			rec := env.do(t, req)
			require.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantRange, rec.Header().Get("Content-Range"))
			require.Len(t, rec.Body.Bytes(), tc.wantBodyLen)
			assert.Equal(t, tc.wantFirst, rec.Body.Bytes()[0])
		})
	}
}

func TestPaperFileRangeErrors(t *testing.T) {
	env := newTestEnv(t)
	aid := createPaperWithPDF(t, env, []byte("%PDF-1.7 short"))
	path := "/api/v1/papers/" + aid + "/versions/1/file"

	for _, header := range []string{"items=0-5", "bytes=abc-def", "bytes=5"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Range", header)
		rec := env.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, header)
	}

	// "bytes=5-200" has a valid start but an end past EOF; no clamping.
	for _, header := range []string{"bytes=500-600", "bytes=10-5", "bytes=5-200"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Range", header)
		rec := env.do(t, req)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code, header)
		assert.Equal(t, fmt.Sprintf("bytes */%d", len("%PDF-1.7 short")), rec.Header().Get("Content-Range"), header)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/versions/9/file", nil)
	assert.Equal(t, http.StatusNotFound, env.do(t, req).Code)
}

func TestPaperFileHead(t *testing.T) {
	env := newTestEnv(t)
	aid := createPaperWithPDF(t, env, []byte("%PDF-1.7 head test body"))

	req := httptest.NewRequest(http.MethodHead, "/api/v1/papers/"+aid+"/versions/1/file", nil)
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprint(len("%PDF-1.7 head test body")), rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())
}

func addPaperVersion(t *testing.T, env *testEnv, aid string, content []byte) {
	t.Helper()
	body, contentType := multipartBody(t, nil, "pdf", "paper.pdf", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers/"+aid+"/versions", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusCreated, env.do(t, req).Code)
}

func TestPaperViewer(t *testing.T) {
	env := newTestEnv(t)
	v1 := []byte("%PDF-1.7 version one body")
	v2 := []byte("%PDF-1.7 version two, the longer revised body")
	aid := createPaperWithPDF(t, env, v1)
	addPaperVersion(t, env, aid, v2)

	// Latest by default.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/viewer", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, v2, rec.Body.Bytes())

	// Explicit version selection.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/viewer?v=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, v1, rec.Body.Bytes())

	// Range requests work the same as the version file endpoint.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/viewer", nil)
	req.Header.Set("Range", "bytes=0-8")
	rec = env.do(t, req)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, fmt.Sprintf("bytes 0-8/%d", len(v2)), rec.Header().Get("Content-Range"))
	assert.Equal(t, []byte("%PDF-1.7 "), rec.Body.Bytes())

	// HEAD returns headers only.
	rec = env.do(t, httptest.NewRequest(http.MethodHead, "/api/v1/papers/"+aid+"/viewer", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprint(len(v2)), rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/viewer?v=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/missing-aid-0/viewer", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaperClaimsVersionSelection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	aid := createPaperWithPDF(t, env, []byte("%PDF-1.7 one"))
	addPaperVersion(t, env, aid, []byte("%PDF-1.7 two"))

	v1, err := env.store.GetPaperVersion(ctx, aid, 1)
	require.NoError(t, err)
	v2, err := env.store.GetPaperVersion(ctx, aid, 2)
	require.NoError(t, err)
	require.NoError(t, env.store.InsertClaim(ctx, &store.Claim{PaperVersionID: v1.ID, Text: "Original claim."}))
	require.NoError(t, env.store.InsertClaim(ctx, &store.Claim{PaperVersionID: v2.ID, Text: "Revised claim."}))

	// Latest by default.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/claims", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, float64(2), got["version"])
	claims, _ := got["claims"].([]any)
	require.Len(t, claims, 1)
	assert.Equal(t, "Revised claim.", claims[0].(map[string]any)["text"])

	// An explicit version pins the claim set.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/claims?version=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeBody(t, rec)
	assert.Equal(t, float64(1), got["version"])
	claims, _ = got["claims"].([]any)
	require.Len(t, claims, 1)
	assert.Equal(t, "Original claim.", claims[0].(map[string]any)["text"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+aid+"/claims?version=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Contains(t, got, "total_jobs")
	assert.Contains(t, got, "jobs_by_status")
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
