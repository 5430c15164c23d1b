package vectorstore

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/Liv-Coder/chat-memory-sub001/logger"
	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// MemoryStore is the normative, in-memory Store implementation (spec.md
// §4.4). It is safe for concurrent use: a single RWMutex serializes all
// mutations, matching statestore.MemoryStore's approach in the teacher.
type MemoryStore struct {
	mu             sync.RWMutex
	entries        map[string]Entry
	order          *list.List // LRU order, front = most recently touched
	lruElem        map[string]*list.Element
	dimension      int
	dimensionFixed bool
	maxEntries     int // 0 = unbounded
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithExpectedDimension pins the store's dimension up front; writes with a
// different length fail rather than silently fixing the dimension.
func WithExpectedDimension(d int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.dimension = d
			s.dimensionFixed = true
		}
	}
}

// WithMaxEntries enables LRU eviction once the store holds more than n
// entries. Eviction is triggered on writes; evicted entries are logged as
// warnings, per spec.md §4.4.
func WithMaxEntries(n int) MemoryStoreOption {
	return func(s *MemoryStore) { s.maxEntries = n }
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]Entry),
		order:   list.New(),
		lruElem: make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store implements Store.
func (s *MemoryStore) Store(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(entry)
}

// StoreBatch implements Store. Equivalent to calling Store for each entry,
// up to internal ordering.
func (s *MemoryStore) StoreBatch(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if err := s.storeLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) storeLocked(entry Entry) error {
	if !s.dimensionFixed {
		s.dimension = len(entry.Embedding)
		s.dimensionFixed = true
	} else if len(entry.Embedding) != s.dimension {
		return memerrors.NewStorageError("store", memerrors.NewValidationError(
			"embedding", "dimension mismatch with store"))
	}

	s.entries[entry.ID] = entry
	s.touch(entry.ID)

	if s.maxEntries > 0 {
		s.evictLocked()
	}
	return nil
}

func (s *MemoryStore) touch(id string) {
	if elem, ok := s.lruElem[id]; ok {
		s.order.MoveToFront(elem)
		return
	}
	s.lruElem[id] = s.order.PushFront(id)
}

func (s *MemoryStore) evictLocked() {
	for len(s.entries) > s.maxEntries {
		back := s.order.Back()
		if back == nil {
			return
		}
		id := back.Value.(string)
		s.order.Remove(back)
		delete(s.lruElem, id)
		delete(s.entries, id)
		logger.Get("vectorstore").Warn("evicted entry", "id", id, "reason", "max_entries exceeded")
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	s.touch(id)
	cp := e
	return &cp, nil
}

// GetAll implements Store, ordered by timestamp ascending.
func (s *MemoryStore) GetAll(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	if elem, ok := s.lruElem[id]; ok {
		s.order.Remove(elem)
		delete(s.lruElem, id)
	}
	return nil
}

// DeleteBatch implements Store.
func (s *MemoryStore) DeleteBatch(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	s.order = list.New()
	s.lruElem = make(map[string]*list.Element)
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Search implements Store: cosine top-K ordered by similarity descending.
func (s *MemoryStore) Search(_ context.Context, query []float64, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	results := make([]SearchResult, 0, len(entries))
	for _, e := range entries {
		if len(opts.MetadataFilter) > 0 && !matchesMetadataFilter(e.Metadata, opts.MetadataFilter) {
			continue
		}
		if opts.FilterExpr != "" {
			ok, err := evaluateFilterExpr(opts.FilterExpr, e.Metadata)
			if err != nil || !ok {
				continue
			}
		}
		sim := CosineSimilarity(query, e.Embedding)
		if sim < opts.MinSimilarity {
			continue
		}
		results = append(results, SearchResult{Entry: e, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	topK := opts.TopK
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// evaluateFilterExpr evaluates a JMESPath boolean expression against a
// string-valued metadata map. Any non-boolean-true result (including
// evaluation errors) is treated as "does not match" rather than propagated,
// since FilterExpr is an additive convenience, never a required contract.
func evaluateFilterExpr(expr string, metadata map[string]string) (bool, error) {
	data := make(map[string]any, len(metadata))
	for k, v := range metadata {
		data[k] = v
	}
	result, err := jmespath.Search(expr, data)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	return ok && b, nil
}

var _ Store = (*MemoryStore)(nil)
