package rag

import "context"

// Reranker re-scores (query, candidate) pairs with a cross-encoder style
// model. Candidates are addressed by position.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Document, topK int) ([]IndexHit, error)
}

// RerankOrFallback applies the reranker when present; a nil or failing
// reranker preserves the input order with dummy scores of 1.0.
func RerankOrFallback(ctx context.Context, reranker Reranker, query string, candidates []Document, topK int) []IndexHit {
	if reranker != nil {
		hits, err := reranker.Rerank(ctx, query, candidates, topK)
		if err == nil {
			return hits
		}
	}
	n := len(candidates)
	if topK > 0 && n > topK {
		n = topK
	}
	hits := make([]IndexHit, n)
	for i := range hits {
		hits[i] = IndexHit{Index: i, Score: 1.0}
	}
	return hits
}
