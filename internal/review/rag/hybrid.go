package rag

import (
	"math"
	"sort"
)

// NormalizeScores applies z-score normalisation. When all scores are equal
// (std = 0) every score becomes 1.0 so the source still contributes.
func NormalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	std := math.Sqrt(variance / float64(len(scores)))

	out := make([]float64, len(scores))
	if std == 0 {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - mean) / std
	}
	return out
}

// HybridSearch fuses BM25 and dense results with late fusion:
// score = alpha*norm_bm25 + (1-alpha)*norm_dense, a source that did not
// return a candidate contributing 0. denseToDocID maps dense candidate
// positions onto corpus document ids.
func HybridSearch(bm25Results []Hit, denseResults []IndexHit, denseToDocID map[int]string, alpha float64, topK int) []Hit {
	bm25Scores := make([]float64, len(bm25Results))
	for i, h := range bm25Results {
		bm25Scores[i] = h.Score
	}
	denseScores := make([]float64, len(denseResults))
	for i, h := range denseResults {
		denseScores[i] = h.Score
	}
	bm25Norm := NormalizeScores(bm25Scores)
	denseNorm := NormalizeScores(denseScores)

	bm25Map := make(map[string]float64, len(bm25Results))
	for i, h := range bm25Results {
		bm25Map[h.DocID] = bm25Norm[i]
	}
	denseMap := make(map[string]float64, len(denseResults))
	for i, h := range denseResults {
		if docID, ok := denseToDocID[h.Index]; ok {
			denseMap[docID] = denseNorm[i]
		}
	}

	seen := map[string]bool{}
	var fused []Hit
	for docID := range bm25Map {
		seen[docID] = true
		fused = append(fused, Hit{DocID: docID, Score: alpha*bm25Map[docID] + (1-alpha)*denseMap[docID]})
	}
	for docID, score := range denseMap {
		if !seen[docID] {
			fused = append(fused, Hit{DocID: docID, Score: (1 - alpha) * score})
		}
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].DocID < fused[j].DocID
	})
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
