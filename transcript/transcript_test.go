package transcript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liv-Coder/chat-memory-sub001/message"
)

func mustMessage(t *testing.T, role message.Role, content string) *message.Message {
	t.Helper()
	m, err := message.New(role, content, nil)
	require.NoError(t, err)
	return m
}

func TestAppendAndAll(t *testing.T) {
	s := New()
	ctx := context.Background()
	m1 := mustMessage(t, message.RoleUser, "hi")
	m2 := mustMessage(t, message.RoleAssistant, "hello")
	require.NoError(t, s.Append(ctx, m1))
	require.NoError(t, s.Append(ctx, m2))

	all := s.All(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, m1.ID(), all[0].ID())
	assert.Equal(t, m2.ID(), all[1].ID())
}

func TestAppendRejectsNilAndDuplicateID(t *testing.T) {
	s := New()
	ctx := context.Background()
	assert.Error(t, s.Append(ctx, nil))

	m := mustMessage(t, message.RoleUser, "hi")
	require.NoError(t, s.Append(ctx, m))
	assert.Error(t, s.Append(ctx, m))
}

func TestGetReturnsNilForMissing(t *testing.T) {
	s := New()
	assert.Nil(t, s.Get(context.Background(), "missing"))
}

func TestDeleteReindexesSubsequentMessages(t *testing.T) {
	s := New()
	ctx := context.Background()
	m1 := mustMessage(t, message.RoleUser, "one")
	m2 := mustMessage(t, message.RoleUser, "two")
	m3 := mustMessage(t, message.RoleUser, "three")
	require.NoError(t, s.Append(ctx, m1))
	require.NoError(t, s.Append(ctx, m2))
	require.NoError(t, s.Append(ctx, m3))

	s.Delete(ctx, m1.ID())
	assert.Equal(t, 2, s.Count(ctx))
	assert.Nil(t, s.Get(ctx, m1.ID()))
	assert.Equal(t, m2, s.Get(ctx, m2.ID()))
	assert.Equal(t, m3, s.Get(ctx, m3.ID()))

	all := s.All(ctx)
	assert.Equal(t, m2.ID(), all[0].ID())
	assert.Equal(t, m3.ID(), all[1].ID())
}

func TestDeleteMissingIDIsNoOp(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, mustMessage(t, message.RoleUser, "hi")))
	s.Delete(ctx, "nonexistent")
	assert.Equal(t, 1, s.Count(ctx))
}

func TestClear(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, mustMessage(t, message.RoleUser, "hi")))
	s.Clear(ctx)
	assert.Zero(t, s.Count(ctx))
	assert.Empty(t, s.All(ctx))
}

func TestForkIsIndependentOfOriginal(t *testing.T) {
	s := New()
	ctx := context.Background()
	m1 := mustMessage(t, message.RoleUser, "hi")
	require.NoError(t, s.Append(ctx, m1))

	forked := s.Fork(ctx)
	m2 := mustMessage(t, message.RoleUser, "more")
	require.NoError(t, s.Append(ctx, m2))

	assert.Len(t, forked.All(ctx), 1)
	assert.Len(t, s.All(ctx), 2)
}

func TestListPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, mustMessage(t, message.RoleUser, "m")))
	}

	page := s.List(ctx, ListOptions{Offset: 2, Limit: 2})
	assert.Len(t, page, 2)

	page = s.List(ctx, ListOptions{Offset: 100, Limit: 2})
	assert.Empty(t, page)

	page = s.List(ctx, ListOptions{})
	assert.Len(t, page, 5)
}

func TestLastUserMessage(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, mustMessage(t, message.RoleUser, "first user")))
	require.NoError(t, s.Append(ctx, mustMessage(t, message.RoleAssistant, "assistant reply")))

	last := s.LastUserMessage(ctx)
	require.NotNil(t, last)
	assert.Equal(t, "first user", last.Content())
}

func TestLastUserMessageNilWhenNoneExist(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, mustMessage(t, message.RoleAssistant, "only assistant")))
	assert.Nil(t, s.LastUserMessage(ctx))
}
