// Package embeddings defines the text-to-vector contract (C3) consumed by
// the vector store and semantic retriever, plus a deterministic reference
// implementation. The interface shape follows
// AltairaLabs/PromptKit's runtime/providers.EmbeddingProvider (Embed,
// EmbeddingDimensions, batch support); the reference implementation follows
// spec.md §4.3's seeded-PRNG construction rather than calling out to a real
// provider, since this module hosts no LLM or embedding API of its own.
package embeddings

import (
	"context"
	"math"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// Service generates embedding vectors for text. Implementations may call out
// to an external API; the engine treats any such call as fallible and
// degrades semantic retrieval to empty on failure rather than propagating the
// error up the append path.
type Service interface {
	// Embed returns a vector of length Dimensions(). Empty/whitespace input
	// yields the zero vector. Returned values are always finite.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch returns one vector per input text, same order, same length
	// as texts. A per-item failure fails the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the fixed vector length this service produces.
	Dimensions() int

	// MaxBatchSize returns the largest sub-batch EmbedBatch processes at once.
	MaxBatchSize() int
}

// IsFinite reports whether every component of v is a finite float (no NaN,
// no +/-Inf). Callers must treat a non-finite vector as an EmbeddingFailure.
func IsFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Normalize returns a unit-length copy of v, or the zero vector unchanged if
// v has zero norm.
func Normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return append([]float64(nil), v...)
	}
	norm := math.Sqrt(sumSq)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// validateVector is a shared guard used by Service implementations before
// returning a vector to a caller.
func validateVector(v []float64, dimensions int) error {
	if len(v) != dimensions {
		return memerrors.NewEmbeddingError("wrong vector length", nil)
	}
	if !IsFinite(v) {
		return memerrors.NewEmbeddingError("non-finite vector component", nil)
	}
	return nil
}
