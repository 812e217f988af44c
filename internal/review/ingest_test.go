package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHTMLTextSkipsChrome(t *testing.T) {
	page := `<html><head><style>.x{color:red}</style><script>var a=1;</script></head>
<body><nav>Site Nav</nav><header>Banner</header>
<h1>A Fine Paper</h1><p>We propose a method.</p>
<footer>Copyright</footer></body></html>`

	got, err := ExtractHTMLText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Contains(t, got, "A Fine Paper")
	assert.Contains(t, got, "We propose a method.")
	assert.NotContains(t, got, "Site Nav")
	assert.NotContains(t, got, "Banner")
	assert.NotContains(t, got, "Copyright")
	assert.NotContains(t, got, "var a=1")
	assert.NotContains(t, got, "color:red")
}

func TestCleanTextRemovesRepeatedHeaderFooter(t *testing.T) {
	lines := []string{
		"Journal of Examples",
		"A Great Paper Title Of Sufficient Length",
		"First paragraph   with   extra spaces.",
		"Middle content line one.",
		"Middle content line two.",
		"Middle content line three.",
		"Closing remarks.",
		"Journal of Examples",
	}
	got := CleanText(strings.Join(lines, "\n"))
	assert.NotContains(t, got, "Journal of Examples")
	assert.Contains(t, got, "First paragraph with extra spaces.")
}

func TestCleanTextCollapsesWhitespaceKeepsLines(t *testing.T) {
	got := CleanText("a\t\tb\nc   d")
	assert.Equal(t, "a b\nc d", got)
}

func TestCleanTextFoldsLigatures(t *testing.T) {
	got := CleanText("The classiﬁer is eﬃcient.")
	assert.Equal(t, "The classifier is efficient.", got)
}

func TestExtractMetadata(t *testing.T) {
	text := `A Comprehensive Study of Example Systems
Authors: Ada Lovelace, Alan Turing and Grace Hopper
Proceedings of Machine Learning Research 2023

Abstract
We study examples.`

	meta := ExtractMetadata(text)
	assert.Equal(t, "A Comprehensive Study of Example Systems", meta.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"}, meta.Authors)
	assert.Equal(t, "Machine Learning Research", meta.Venue)
	assert.Equal(t, "2023", meta.PublishedAt)
}

func TestExtractMetadataDefaults(t *testing.T) {
	meta := ExtractMetadata("short\nlines\nonly")
	assert.Equal(t, "Unknown", meta.Title)
	assert.Empty(t, meta.Authors)
}

func TestExtractMetadataVenueAcronym(t *testing.T) {
	meta := ExtractMetadata("This Paper Title Is Long Enough To Qualify\npublished at NeurIPS in 2021")
	assert.Equal(t, "NeurIPS", meta.Venue)
}

func TestIngestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>A Networked Paper Title With Enough Length</h1>
<p>We propose reading papers over HTTP.</p></body></html>`))
	}))
	defer srv.Close()

	ing := NewIngestor(nil, "")
	text, meta, err := ing.Ingest(context.Background(), IngestRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, text, "We propose reading papers over HTTP.")
	assert.Equal(t, srv.URL, meta.URL)
}

func TestIngestURLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ing := NewIngestor(nil, "")
	_, _, err := ing.Ingest(context.Background(), IngestRequest{URL: srv.URL})
	assert.ErrorContains(t, err, "status 404")

	_, _, err = ing.Ingest(context.Background(), IngestRequest{URL: "not a url"})
	assert.ErrorContains(t, err, "invalid url")
}

func TestIngestDOIOnlyFails(t *testing.T) {
	ing := NewIngestor(nil, "")
	_, _, err := ing.Ingest(context.Background(), IngestRequest{DOI: "10.1000/xyz"})
	assert.ErrorContains(t, err, "DOI-only")
}

// Large PDFs on slow hosts need more than a few seconds to download.
func TestIngestorFetchTimeout(t *testing.T) {
	ing := NewIngestor(nil, "")
	assert.Equal(t, 30*time.Second, ing.httpClient.Timeout)
}

func TestIngestNoSourceFails(t *testing.T) {
	ing := NewIngestor(nil, "")
	_, _, err := ing.Ingest(context.Background(), IngestRequest{})
	assert.ErrorContains(t, err, "no paper source")
}

func TestCrossrefEnrichment(t *testing.T) {
	paperSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Some Fetched Paper Body With Plenty Of Words In It.</p></body></html>`))
	}))
	defer paperSrv.Close()

	crossrefSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "10.1000")
		assert.Equal(t, "reviews@example.org", r.URL.Query().Get("mailto"))
		_, _ = w.Write([]byte(`{"message":{"title":["Canonical Title"],
			"author":[{"given":"Ada","family":"Lovelace"}],
			"container-title":["Journal of Canon"],
			"published-print":{"date-parts":[[1843]]}}}`))
	}))
	defer crossrefSrv.Close()

	ing := NewIngestor(nil, "reviews@example.org")
	ing.crossrefURL = crossrefSrv.URL

	_, meta, err := ing.Ingest(context.Background(), IngestRequest{URL: paperSrv.URL, DOI: "10.1000/xyz"})
	require.NoError(t, err)
	assert.Equal(t, "Canonical Title", meta.Title)
	assert.Equal(t, []string{"Ada Lovelace"}, meta.Authors)
	assert.Equal(t, "Journal of Canon", meta.Venue)
	assert.Equal(t, "1843", meta.PublishedAt)
	assert.Equal(t, "10.1000/xyz", meta.DOI)
}

func TestCrossrefFailureIsNotFatal(t *testing.T) {
	paperSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Body text long enough to matter here.</p></body></html>`))
	}))
	defer paperSrv.Close()

	crossrefSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer crossrefSrv.Close()

	ing := NewIngestor(nil, "reviews@example.org")
	ing.crossrefURL = crossrefSrv.URL

	text, _, err := ing.Ingest(context.Background(), IngestRequest{URL: paperSrv.URL, DOI: "10.1000/broken"})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
