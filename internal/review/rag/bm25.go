// Package rag is the hybrid retrieval layer behind citation suggestion: a
// sparse BM25 index, a dense embedding index, late z-score fusion, and an
// optional cross-encoder reranker.
package rag

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// BM25 parameters; standard Okapi defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Document is one corpus entry. Content is the searchable text (title plus
// abstract when not set explicitly).
type Document struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Abstract string   `json:"abstract"`
	Venue    string   `json:"venue"`
	Year     int      `json:"year"`
	DOI      string   `json:"doi"`
	URL      string   `json:"url"`
	Content  string   `json:"content"`
}

// Hit is one scored search result.
type Hit struct {
	DocID string
	Score float64
}

// BM25Index is an in-memory Okapi BM25 index.
type BM25Index struct {
	mu        sync.RWMutex
	docs      map[string]*Document
	order     []string
	termFreqs map[string]map[string]int // docID -> term -> count
	docFreqs  map[string]int            // term -> number of docs containing it
	docLens   map[string]int
	totalLen  int
}

// NewBM25Index creates an empty index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs:      map[string]*Document{},
		termFreqs: map[string]map[string]int{},
		docFreqs:  map[string]int{},
		docLens:   map[string]int{},
	}
}

// AddDocument indexes doc. Re-adding an existing id replaces it.
func (idx *BM25Index) AddDocument(doc Document) {
	if doc.Content == "" {
		doc.Content = strings.TrimSpace(doc.Title + " " + doc.Abstract)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[doc.ID]; exists {
		idx.removeLocked(doc.ID)
	} else {
		idx.order = append(idx.order, doc.ID)
	}

	terms := tokenize(doc.Content)
	freqs := map[string]int{}
	for _, t := range terms {
		freqs[t]++
	}
	for t := range freqs {
		idx.docFreqs[t]++
	}
	d := doc
	idx.docs[doc.ID] = &d
	idx.termFreqs[doc.ID] = freqs
	idx.docLens[doc.ID] = len(terms)
	idx.totalLen += len(terms)
}

func (idx *BM25Index) removeLocked(docID string) {
	for t := range idx.termFreqs[docID] {
		if idx.docFreqs[t] > 1 {
			idx.docFreqs[t]--
		} else {
			delete(idx.docFreqs, t)
		}
	}
	idx.totalLen -= idx.docLens[docID]
	delete(idx.termFreqs, docID)
	delete(idx.docLens, docID)
	delete(idx.docs, docID)
}

// Get returns the stored document, or nil.
func (idx *BM25Index) Get(docID string) *Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docs[docID]
}

// Size is the number of indexed documents.
func (idx *BM25Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Documents returns all indexed documents in insertion order.
func (idx *BM25Index) Documents() []Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Document, 0, len(idx.order))
	for _, id := range idx.order {
		if d, ok := idx.docs[id]; ok {
			out = append(out, *d)
		}
	}
	return out
}

// Search scores all documents against query and returns the topK hits in
// descending score order. Documents matching no query term are omitted.
func (idx *BM25Index) Search(query string, topK int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(idx.totalLen) / float64(n)
	queryTerms := tokenize(query)

	scores := map[string]float64{}
	for _, term := range queryTerms {
		df, ok := idx.docFreqs[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for docID, freqs := range idx.termFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			dl := float64(idx.docLens[docID])
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*dl/avgLen))
			scores[docID] += idf * norm
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
