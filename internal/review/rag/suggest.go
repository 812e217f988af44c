package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fuseTopK is how many candidates each source contributes before fusion.
const fuseTopK = 50

// CitationCandidate is one suggested citation with its score breakdown.
type CitationCandidate struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Venue         string   `json:"venue,omitempty"`
	Year          int      `json:"year,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	URL           string   `json:"url"`
	ScoreSparse   float64  `json:"score_sparse"`
	ScoreDense    float64  `json:"score_dense"`
	ScoreFinal    float64  `json:"score_final"`
	ScoreRerank   float64  `json:"score_rerank"`
	Justification string   `json:"justification"`
}

// Suggester runs the per-claim retrieval pipeline over a shared corpus.
// A nil embedder disables dense retrieval; a nil reranker preserves fusion
// order. With an empty corpus every claim gets an empty candidate list.
type Suggester struct {
	index    *BM25Index
	embedder Embedder
	reranker Reranker
	alpha    float64
	topK     int
	minScore float64

	mu        sync.Mutex
	docVecs   [][]float32
	docVecIDs []string
}

// NewSuggester wires the retrieval pipeline.
func NewSuggester(index *BM25Index, embedder Embedder, reranker Reranker, alpha float64, topK int, minScore float64) *Suggester {
	if index == nil {
		index = NewBM25Index()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Suggester{
		index:    index,
		embedder: embedder,
		reranker: reranker,
		alpha:    alpha,
		topK:     topK,
		minScore: minScore,
	}
}

// Index exposes the underlying corpus index for document loading.
func (s *Suggester) Index() *BM25Index { return s.index }

// Suggest returns ranked citation candidates for one claim. The query is the
// section label concatenated with the claim text.
func (s *Suggester) Suggest(ctx context.Context, claimText, section string) ([]CitationCandidate, error) {
	if s.index.Size() == 0 {
		return []CitationCandidate{}, nil
	}

	query := claimText
	if section != "" {
		query = section + " " + claimText
	}

	bm25Hits := s.index.Search(query, fuseTopK)

	var denseHits []IndexHit
	denseToDocID := map[int]string{}
	if s.embedder != nil {
		queryVec, docVecs, docIDs, err := s.embeddings(ctx, query)
		if err != nil {
			// Dense retrieval is best-effort; sparse results still stand.
			denseHits = nil
		} else {
			denseHits = SearchDense(queryVec, docVecs, fuseTopK)
			for i, id := range docIDs {
				denseToDocID[i] = id
			}
		}
	}

	fused := HybridSearch(bm25Hits, denseHits, denseToDocID, s.alpha, fuseTopK)
	if len(fused) == 0 {
		return []CitationCandidate{}, nil
	}

	sparseByID := map[string]float64{}
	for _, h := range bm25Hits {
		sparseByID[h.DocID] = h.Score
	}
	denseByID := map[string]float64{}
	for _, h := range denseHits {
		if id, ok := denseToDocID[h.Index]; ok {
			denseByID[id] = h.Score
		}
	}

	candidates := make([]Document, 0, len(fused))
	finalScores := make([]float64, 0, len(fused))
	for _, h := range fused {
		if doc := s.index.Get(h.DocID); doc != nil {
			candidates = append(candidates, *doc)
			finalScores = append(finalScores, h.Score)
		}
	}

	reranked := RerankOrFallback(ctx, s.reranker, claimText, candidates, len(candidates))

	seen := map[string]bool{}
	var out []CitationCandidate
	for _, rh := range reranked {
		if rh.Index < 0 || rh.Index >= len(candidates) {
			continue
		}
		doc := candidates[rh.Index]
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true

		final := finalScores[rh.Index]
		if final < s.minScore {
			continue
		}
		out = append(out, CitationCandidate{
			Title:         doc.Title,
			Authors:       doc.Authors,
			Venue:         doc.Venue,
			Year:          doc.Year,
			DOI:           doc.DOI,
			URL:           doc.URL,
			ScoreSparse:   sparseByID[doc.ID],
			ScoreDense:    denseByID[doc.ID],
			ScoreFinal:    final,
			ScoreRerank:   rh.Score,
			Justification: justification(section, doc),
		})
		if len(out) >= s.topK {
			break
		}
	}
	if out == nil {
		out = []CitationCandidate{}
	}
	return out, nil
}

// embeddings returns the query vector plus cached corpus vectors. The corpus
// cache is rebuilt when the index has grown since the last call.
func (s *Suggester) embeddings(ctx context.Context, query string) ([]float32, [][]float32, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.index.Documents()
	if len(s.docVecs) != len(docs) {
		texts := make([]string, len(docs))
		ids := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
			ids[i] = d.ID
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, nil, nil, err
		}
		s.docVecs = vecs
		s.docVecIDs = ids
	}

	queryVecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(queryVecs) == 0 {
		return nil, nil, nil, fmt.Errorf("embed query: %w", err)
	}
	return queryVecs[0], s.docVecs, s.docVecIDs, nil
}

func justification(section string, doc Document) string {
	subject := doc.Title
	if subject == "" {
		subject = doc.ID
	}
	if section != "" {
		return fmt.Sprintf("Retrieved for the %s section based on lexical and semantic overlap with %q", section, truncate(subject, 80))
	}
	return fmt.Sprintf("Retrieved based on lexical and semantic overlap with %q", truncate(subject, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
