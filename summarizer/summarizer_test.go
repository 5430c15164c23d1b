package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

func mustMessage(t *testing.T, role message.Role, content string) *message.Message {
	t.Helper()
	m, err := message.New(role, content, nil)
	require.NoError(t, err)
	return m
}

func TestTruncatingSummarizerConcatenatesAndTruncates(t *testing.T) {
	s := NewTruncatingSummarizer(20)
	msgs := []*message.Message{
		mustMessage(t, message.RoleUser, "this is a long message that exceeds the limit"),
		mustMessage(t, message.RoleAssistant, "and another one"),
	}
	info, err := s.Summarize(context.Background(), msgs, tokenizer.Default)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(info.Summary, "..."))
	assert.LessOrEqual(t, len(info.Summary), 23)
	assert.Positive(t, info.TokenEstimateBefore)
	assert.NotEmpty(t, info.ChunkID)
}

func TestTruncatingSummarizerDefaultsMaxChars(t *testing.T) {
	s := NewTruncatingSummarizer(0)
	assert.Equal(t, DefaultMaxChars, s.maxChars)
}

func TestTruncatingSummarizerShortContentNoEllipsis(t *testing.T) {
	s := NewTruncatingSummarizer(400)
	msgs := []*message.Message{mustMessage(t, message.RoleUser, "short")}
	info, err := s.Summarize(context.Background(), msgs, tokenizer.Default)
	require.NoError(t, err)
	assert.False(t, strings.HasSuffix(info.Summary, "..."))
}

type stubCompleter struct {
	response string
	err      error
}

func (c *stubCompleter) Complete(_ context.Context, _ string, _ string) (string, error) {
	return c.response, c.err
}

func TestLLMSummarizerDelegatesToCompleter(t *testing.T) {
	s := NewLLMSummarizer(&stubCompleter{response: "concise summary"})
	msgs := []*message.Message{mustMessage(t, message.RoleUser, "hello there")}
	info, err := s.Summarize(context.Background(), msgs, tokenizer.Default)
	require.NoError(t, err)
	assert.Equal(t, "concise summary", info.Summary)
}

func TestLLMSummarizerPropagatesCompleterError(t *testing.T) {
	s := NewLLMSummarizer(&stubCompleter{err: errors.New("provider unavailable")})
	msgs := []*message.Message{mustMessage(t, message.RoleUser, "hello")}
	_, err := s.Summarize(context.Background(), msgs, tokenizer.Default)
	assert.Error(t, err)
}

func TestLLMSummarizerEmptyMessagesShortCircuits(t *testing.T) {
	s := NewLLMSummarizer(&stubCompleter{response: "unused"})
	info, err := s.Summarize(context.Background(), nil, tokenizer.Default)
	require.NoError(t, err)
	assert.Empty(t, info.Summary)
	assert.NotEmpty(t, info.ChunkID)
}
