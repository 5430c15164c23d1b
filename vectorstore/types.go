// Package vectorstore implements C4 from spec.md: persisting embedding
// vectors with metadata and serving cosine top-K search. The interface is
// agnostic to backing store, per spec.md §4.4's persistence boundary; this
// package ships an in-memory implementation (the normative one) plus two
// durable backends (Redis, Qdrant) that preserve its ordering and equality
// semantics.
package vectorstore

import (
	"context"
	"math"
	"time"
)

// Entry is a stored vector plus its associated content and metadata.
// Mirrors spec.md §3's VectorEntry.
type Entry struct {
	// ID equals the source message ID, unless this entry is a
	// retrieval-annotated copy, in which case ID = "<origID>_semantic".
	ID string

	// Embedding holds finite float64 components. All entries in a given
	// store share the same dimension (length).
	Embedding []float64

	Content   string
	Metadata  map[string]string
	Timestamp time.Time
}

// SearchResult pairs a stored Entry with its similarity to the query vector.
type SearchResult struct {
	Entry      Entry
	Similarity float64
}

// SearchOptions configures Store.Search beyond the mandatory query/top-K.
type SearchOptions struct {
	// TopK bounds the number of results.
	TopK int

	// MinSimilarity filters out results below this cosine score. Zero value
	// means no floor.
	MinSimilarity float64

	// MetadataFilter requires equality across every key present here. A key
	// missing from an entry's metadata counts as a non-match.
	MetadataFilter map[string]string

	// FilterExpr is an additive JMESPath boolean expression evaluated
	// against an entry's metadata (as a generic map). When non-empty, it is
	// applied on top of MetadataFilter, never instead of it — spec.md §4.4
	// mandates the equality filter unconditionally. An entry whose
	// expression errors or doesn't evaluate to a boolean true is excluded.
	FilterExpr string
}

// Store is C4's public operation set. All operations may fail with a
// storage error (wrapped in memerrors.ErrStorage).
type Store interface {
	Store(ctx context.Context, entry Entry) error
	StoreBatch(ctx context.Context, entries []Entry) error

	Get(ctx context.Context, id string) (*Entry, error)
	GetAll(ctx context.Context) ([]Entry, error)

	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)

	Search(ctx context.Context, query []float64, opts SearchOptions) ([]SearchResult, error)
}

// CosineSimilarity computes cosine similarity between a and b. Mismatched
// lengths, zero-norm vectors, and non-finite components all yield 0 rather
// than erroring, per spec.md §4.4.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		if !finite(a[i]) || !finite(b[i]) {
			return 0
		}
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func matchesMetadataFilter(entry map[string]string, filter map[string]string) bool {
	for k, v := range filter {
		ev, ok := entry[k]
		if !ok || ev != v {
			return false
		}
	}
	return true
}
