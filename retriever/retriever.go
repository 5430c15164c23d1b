// Package retriever implements C7 from spec.md: a query-driven top-K
// semantic search over the vector store, guarded by a circuit breaker and
// isolated from the recent verbatim messages already included by the
// strategy. Grounded on AltairaLabs/PromptKit's runtime/statestore index
// lookup path, generalized to the exclusion-set and breaker rules spec.md
// §4.7 specifies.
package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/Liv-Coder/chat-memory-sub001/breaker"
	"github.com/Liv-Coder/chat-memory-sub001/embeddings"
	"github.com/Liv-Coder/chat-memory-sub001/logger"
	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/metrics"
	"github.com/Liv-Coder/chat-memory-sub001/vectorstore"
)

// DefaultMaxFailures and DefaultCooldown are the breaker defaults spec.md
// §4.7 names for the semantic retriever.
const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 5 * time.Minute
)

// maxExclusionWindow bounds how many recent messages contribute to the
// exclusion set, per spec.md §4.7 ("the last <= 10 of recent_messages").
const maxExclusionWindow = 10

// Config configures a Semantic retriever.
type Config struct {
	Enabled       bool
	TopK          int
	MinSimilarity float64
	MaxFailures   int
	Cooldown      time.Duration
}

// Semantic is the normative C7 implementation.
type Semantic struct {
	cfg      Config
	embedder embeddings.Service
	store    vectorstore.Store
	breaker  *breaker.Breaker
}

// New builds a Semantic retriever. embedder or store may be nil, in which
// case Retrieve always returns an empty result (spec.md §4.7's disabled
// cases).
func New(cfg Config, embedder embeddings.Service, store vectorstore.Store) *Semantic {
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	b := breaker.New(maxFailures, cooldown)
	b.OnTrip(func() { metrics.RecordBreakerTrip("semantic_retriever") })

	return &Semantic{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		breaker:  b,
	}
}

// Retrieve implements spec.md §4.7. The returned error is non-nil only for
// the degraded-but-recoverable cases (embedding/search failure) so callers
// can surface metadata.semanticError; the disabled/breaker-open/empty-query
// cases return a nil error alongside nil messages, since those are expected
// steady states rather than failures.
func (s *Semantic) Retrieve(ctx context.Context, query string, recentMessages []*message.Message) ([]*message.Message, error) {
	if !s.cfg.Enabled || query == "" || s.store == nil || s.embedder == nil {
		return nil, nil
	}
	if !s.breaker.Allow() {
		return nil, nil
	}

	q, err := s.embedder.Embed(ctx, query)
	if err == nil && (len(q) == 0 || !embeddings.IsFinite(q)) {
		err = fmt.Errorf("embedder returned an empty or non-finite vector")
	}
	if err != nil {
		s.breaker.RecordFailure()
		logger.Get("retriever.semantic").Warn("query embedding failed", "error", err)
		return nil, fmt.Errorf("retriever: query embedding failed: %w", err)
	}

	excluded := exclusionSet(recentMessages)

	results, err := s.store.Search(ctx, q, vectorstore.SearchOptions{
		TopK:          s.cfg.TopK,
		MinSimilarity: s.cfg.MinSimilarity,
	})
	if err != nil {
		s.breaker.RecordFailure()
		logger.Get("retriever.semantic").Warn("vector search failed", "error", err)
		return nil, fmt.Errorf("retriever: vector search failed: %w", err)
	}
	s.breaker.RecordSuccess()

	out := make([]*message.Message, 0, len(results))
	for _, r := range results {
		if _, skip := excluded[r.Entry.ID]; skip {
			continue
		}
		msg := toSemanticMessage(r)
		if msg == nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func exclusionSet(recentMessages []*message.Message) map[string]struct{} {
	n := len(recentMessages)
	start := 0
	if n > maxExclusionWindow {
		start = n - maxExclusionWindow
	}
	set := make(map[string]struct{}, (n-start)*2)
	for _, m := range recentMessages[start:] {
		set[m.ID()] = struct{}{}
		set[m.ID()+"_semantic"] = struct{}{}
	}
	return set
}

func toSemanticMessage(r vectorstore.SearchResult) *message.Message {
	role, _ := message.ParseRole(r.Entry.Metadata["role"])
	meta := make(map[string]any, len(r.Entry.Metadata)+3)
	for k, v := range r.Entry.Metadata {
		meta[k] = v
	}
	meta["similarity"] = r.Similarity
	meta["retrievalType"] = "semantic"
	meta["originalId"] = r.Entry.ID

	m, err := message.Restore(r.Entry.ID+"_semantic", role, r.Entry.Content, r.Entry.Timestamp, meta)
	if err != nil {
		return nil
	}
	return m
}
