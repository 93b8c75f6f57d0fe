// Package embedding provides core.Embedder implementations: a deterministic
// local hash embedder for tests and demos, and an OpenAI adapter in the
// openai subpackage for production retrieval quality.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, dependency-free embedder that hashes
// tokens into a fixed-dimension bag-of-words vector. Documents sharing
// vocabulary score higher under cosine similarity, which is enough for local
// development and tests; swap for a real embedding provider in production.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder with the given dimensionality
// (64 if non-positive).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEmbedder{dim: dim}
}

// Embed implements core.Embedder.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, e.dim)
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			vec[int(h.Sum32())%e.dim]++
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
