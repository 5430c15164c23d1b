// Package message defines the immutable role-tagged record that flows through
// the memory engine: the unit the transcript store, vector store, strategies,
// and retriever all operate on.
package message

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// Role identifies who or what produced a message.
type Role string

// Roles recognized by the engine. An unrecognized string on the wire decodes
// to RoleUser with the original string preserved in metadata under
// "originalRole", per the
// "dynamic role parsing" design note: unknown input never fails closed.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleSummary   Role = "summary"
)

// ParseRole maps a wire string to a Role. An unrecognized value maps to
// RoleUser; callers that care should check the returned bool.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem, RoleSummary:
		return Role(s), true
	default:
		return RoleUser, false
	}
}

// futureTolerance is how far into the future a message timestamp may sit
// before it is rejected as implausible (spec.md §3).
const futureTolerance = 5 * time.Minute

// idCounter is a per-process monotonic counter bumped under atomic ops, used
// together with a microsecond timestamp to build unique message IDs even
// when many messages are created within the same microsecond.
var idCounter uint64

// Message is an immutable, role-tagged record in a conversation transcript.
type Message struct {
	id        string
	role      Role
	content   string
	timestamp time.Time
	metadata  map[string]any
}

// New creates a message with a fresh ID and the current UTC timestamp.
func New(role Role, content string, metadata map[string]any) (*Message, error) {
	if content == "" {
		return nil, memerrors.NewValidationError("content", "must not be empty")
	}
	return &Message{
		id:        generateID(),
		role:      role,
		content:   content,
		timestamp: time.Now().UTC(),
		metadata:  cloneMeta(metadata),
	}, nil
}

// Restore reconstructs a Message from already-validated fields, e.g. when
// loading from a transcript store. It still enforces the timestamp invariant.
func Restore(id string, role Role, content string, timestamp time.Time, metadata map[string]any) (*Message, error) {
	if id == "" {
		return nil, memerrors.NewValidationError("id", "must not be empty")
	}
	if content == "" {
		return nil, memerrors.NewValidationError("content", "must not be empty")
	}
	if timestamp.After(time.Now().UTC().Add(futureTolerance)) {
		return nil, memerrors.NewValidationError("timestamp", "more than 5 minutes in the future")
	}
	return &Message{
		id:        id,
		role:      role,
		content:   content,
		timestamp: timestamp.UTC(),
		metadata:  cloneMeta(metadata),
	}, nil
}

// ID returns the message's unique identifier.
func (m *Message) ID() string { return m.id }

// Role returns the message's role.
func (m *Message) Role() Role { return m.role }

// Content returns the message's text content.
func (m *Message) Content() string { return m.content }

// Timestamp returns the message's UTC creation time.
func (m *Message) Timestamp() time.Time { return m.timestamp }

// Metadata returns a copy of the message's metadata map.
func (m *Message) Metadata() map[string]any { return cloneMeta(m.metadata) }

// CopyWith derives a new message preserving ID, role, and timestamp, but
// substituting content and/or metadata whenever a non-nil value is supplied.
// A role change is the one exception: derived copies that change role get a
// new ID (spec.md §3, "Ownership and lifecycle").
func (m *Message) CopyWith(content *string, metadata map[string]any) *Message {
	out := &Message{
		id:        m.id,
		role:      m.role,
		content:   m.content,
		timestamp: m.timestamp,
		metadata:  cloneMeta(m.metadata),
	}
	if content != nil {
		out.content = *content
	}
	if metadata != nil {
		out.metadata = cloneMeta(metadata)
	}
	return out
}

// WithRole derives a copy with a new role, assigning a new ID since the
// identity of a message is tied to its role in the transcript's ownership
// model.
func (m *Message) WithRole(role Role) *Message {
	return &Message{
		id:        generateID(),
		role:      role,
		content:   m.content,
		timestamp: m.timestamp,
		metadata:  cloneMeta(m.metadata),
	}
}

// wireMessage is the stable JSON shape for a Message.
type wireMessage struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON serializes the message with role spelled out as a lowercase word.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		ID:        m.id,
		Role:      string(m.role),
		Content:   m.content,
		Timestamp: m.timestamp,
		Metadata:  m.metadata,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON; identity on all fields.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("message: unmarshal: %w", err)
	}
	role, ok := ParseRole(w.Role)
	m.id = w.ID
	m.role = role
	m.content = w.Content
	m.timestamp = w.Timestamp.UTC()
	m.metadata = cloneMeta(w.Metadata)
	if !ok {
		if m.metadata == nil {
			m.metadata = make(map[string]any, 1)
		}
		m.metadata["originalRole"] = w.Role
	}
	return nil
}

func cloneMeta(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// generateID builds "msg_<microseconds>_<monotonic-counter>".
func generateID() string {
	us := time.Now().UnixMicro()
	n := atomic.AddUint64(&idCounter, 1)
	return fmt.Sprintf("msg_%d_%d", us, n)
}
