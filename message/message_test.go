package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyContent(t *testing.T) {
	_, err := New(RoleUser, "", nil)
	require.Error(t, err)
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	m1, err := New(RoleUser, "hi", nil)
	require.NoError(t, err)
	m2, err := New(RoleUser, "hi", nil)
	require.NoError(t, err)
	assert.NotEqual(t, m1.ID(), m2.ID())
}

func TestParseRoleUnknownFallsBackToUser(t *testing.T) {
	role, ok := ParseRole("bogus")
	assert.Equal(t, RoleUser, role)
	assert.False(t, ok)
}

func TestParseRoleKnown(t *testing.T) {
	role, ok := ParseRole("assistant")
	assert.Equal(t, RoleAssistant, role)
	assert.True(t, ok)
}

func TestRestoreRejectsFutureTimestamp(t *testing.T) {
	_, err := Restore("id1", RoleUser, "hi", time.Now().Add(time.Hour), nil)
	require.Error(t, err)
}

func TestRestoreAcceptsNearFutureWithinTolerance(t *testing.T) {
	m, err := Restore("id1", RoleUser, "hi", time.Now().Add(time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, "id1", m.ID())
}

func TestCopyWithPreservesIDAndRole(t *testing.T) {
	m, err := New(RoleUser, "hello", map[string]any{"a": "b"})
	require.NoError(t, err)
	newContent := "goodbye"
	cp := m.CopyWith(&newContent, nil)
	assert.Equal(t, m.ID(), cp.ID())
	assert.Equal(t, m.Role(), cp.Role())
	assert.Equal(t, "goodbye", cp.Content())
	assert.Equal(t, map[string]any{"a": "b"}, cp.Metadata())
}

func TestWithRoleAssignsNewID(t *testing.T) {
	m, err := New(RoleUser, "hello", nil)
	require.NoError(t, err)
	renamed := m.WithRole(RoleSummary)
	assert.NotEqual(t, m.ID(), renamed.ID())
	assert.Equal(t, RoleSummary, renamed.Role())
	assert.Equal(t, m.Content(), renamed.Content())
}

func TestMetadataIsDefensivelyCopied(t *testing.T) {
	meta := map[string]any{"k": "v"}
	m, err := New(RoleUser, "hi", meta)
	require.NoError(t, err)
	meta["k"] = "mutated"
	assert.Equal(t, "v", m.Metadata()["k"])

	got := m.Metadata()
	got["k"] = "also mutated"
	assert.Equal(t, "v", m.Metadata()["k"])
}

func TestJSONRoundTrip(t *testing.T) {
	m, err := New(RoleAssistant, "round trip", map[string]any{"x": float64(1)})
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out Message
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, m.ID(), out.ID())
	assert.Equal(t, m.Role(), out.Role())
	assert.Equal(t, m.Content(), out.Content())
	assert.Equal(t, m.Metadata(), out.Metadata())
}
