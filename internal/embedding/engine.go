// Package embedding provides vector embedding generation for semantic
// search. The default backend is any OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"fmt"
	"math"

	"sooqsearch/internal/logging"
)

// Engine generates vector embeddings for text. Dimension is fixed per
// engine; a dimension mismatch anywhere downstream is a configuration
// error, not a runtime condition.
type Engine interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value in [-1, 1]; zero-magnitude vectors yield 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		logging.Get(logging.CategoryEmbedding).Warn("cosine similarity over zero-magnitude vector")
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
