// Package vector provides the default in-memory implementation of
// core.VectorIndex: documents are embedded on insert and ranked by cosine
// similarity on query. Suitable for single-process deployments and tests;
// swap for a vector database behind the same interface for anything larger.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/threatmesh/threatmesh/core"
)

// InMemoryIndex holds embedded documents for one analysis. Safe for
// concurrent use.
type InMemoryIndex struct {
	mu       sync.RWMutex
	embedder core.Embedder
	docs     []core.ContextDocument
}

// NewInMemoryIndex creates an empty index backed by the given embedder.
func NewInMemoryIndex(embedder core.Embedder) *InMemoryIndex {
	return &InMemoryIndex{embedder: embedder}
}

// Insert embeds the document text and stores it. Embedding failures
// propagate to the caller.
func (x *InMemoryIndex) Insert(ctx context.Context, doc core.ContextDocument) error {
	vecs, err := x.embedder.Embed(ctx, []string{doc.Text})
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}
	doc.Embedding = vecs[0]
	x.mu.Lock()
	x.docs = append(x.docs, doc)
	x.mu.Unlock()
	return nil
}

// Query embeds the query text and returns the topK most similar documents in
// descending score order.
func (x *InMemoryIndex) Query(ctx context.Context, text string, topK int) ([]core.ContextDocument, error) {
	vecs, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	query := vecs[0]

	x.mu.RLock()
	results := make([]core.ContextDocument, len(x.docs))
	copy(results, x.docs)
	x.mu.RUnlock()

	for i := range results {
		results[i].Score = cosine(query, results[i].Embedding)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Len returns the number of stored documents.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
