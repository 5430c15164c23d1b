// Package transcript owns the canonical, append-only sequence of messages
// for a single conversation (spec.md §3's "Ownership and lifecycle").
// Structurally grounded on AltairaLabs/PromptKit's
// runtime/statestore.MemoryStore: an in-memory map guarded by one mutex,
// deep-copy on read/write, plus a Fork operation and a paginated List. Here
// there is exactly one transcript per Store instance (the conversation
// manager owns one Store per conversation), so Fork clones the whole
// transcript under a new id rather than indexing many conversations by id.
package transcript

import (
	"context"
	"sync"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
	"github.com/Liv-Coder/chat-memory-sub001/message"
)

// Store holds the ordered message sequence for one conversation.
type Store struct {
	mu       sync.RWMutex
	messages []*message.Message
	byID     map[string]int // id -> index into messages
}

// New creates an empty transcript store.
func New() *Store {
	return &Store{byID: make(map[string]int)}
}

// Append adds a message to the end of the transcript. Message identity is
// immutable once appended; Append rejects a duplicate id.
func (s *Store) Append(_ context.Context, m *message.Message) error {
	if m == nil {
		return memerrors.NewValidationError("message", "must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[m.ID()]; exists {
		return memerrors.NewValidationError("id", "duplicate message id in transcript")
	}
	s.byID[m.ID()] = len(s.messages)
	s.messages = append(s.messages, m)
	return nil
}

// All returns every message in append order, oldest first.
func (s *Store) All(_ context.Context) []*message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*message.Message(nil), s.messages...)
}

// Get returns the message with the given id, or nil if absent.
func (s *Store) Get(_ context.Context, id string) *message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil
	}
	return s.messages[idx]
}

// Delete removes a message by id. It is not an error to delete an id that
// isn't present. Only the transcript changes: nothing in the module
// propagates a per-id deletion to the vector store, whose entry for the id
// stays in place.
func (s *Store) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	delete(s.byID, id)
	for i := idx; i < len(s.messages); i++ {
		s.byID[s.messages[i].ID()] = i
	}
}

// Count returns the number of messages currently in the transcript.
func (s *Store) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear empties the transcript.
func (s *Store) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.byID = make(map[string]int)
}

// Fork returns a new, independent Store seeded with a copy of this
// transcript's current messages. Messages are immutable, so the copy shares
// the underlying *message.Message pointers safely; only the slice/index
// structures are duplicated.
func (s *Store) Fork(_ context.Context) *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forked := &Store{
		messages: append([]*message.Message(nil), s.messages...),
		byID:     make(map[string]int, len(s.byID)),
	}
	for k, v := range s.byID {
		forked.byID[k] = v
	}
	return forked
}

// ListOptions paginate List.
type ListOptions struct {
	Offset int
	Limit  int // 0 means the default page size
}

const defaultListLimit = 100

// List returns a page of messages, oldest first, generalizing
// statestore.MemoryStore.List's offset/limit pagination to a single
// transcript's message sequence rather than a set of conversation ids.
func (s *Store) List(_ context.Context, opts ListOptions) []*message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	start := opts.Offset
	if start >= len(s.messages) {
		return []*message.Message{}
	}
	end := start + limit
	if end > len(s.messages) {
		end = len(s.messages)
	}
	out := make([]*message.Message, end-start)
	copy(out, s.messages[start:end])
	return out
}

// LastUserMessage returns the most recent user-role message, or nil.
func (s *Store) LastUserMessage(_ context.Context) *message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role() == message.RoleUser {
			return s.messages[i]
		}
	}
	return nil
}
