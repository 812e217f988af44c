package rag

import (
	"context"
	"math"
	"sort"
)

// Embedder produces vectors for dense retrieval. The Gemini client satisfies
// this; tests inject deterministic implementations.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexHit is a dense search result addressing a candidate by position.
type IndexHit struct {
	Index int
	Score float64
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Zero-length or mismatched vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SearchDense ranks candidate vectors by cosine similarity to the query and
// returns the topK as (index, score) pairs in descending order.
func SearchDense(query []float32, candidates [][]float32, topK int) []IndexHit {
	hits := make([]IndexHit, 0, len(candidates))
	for i, c := range candidates {
		hits = append(hits, IndexHit{Index: i, Score: CosineSimilarity(query, c)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
