package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/strategy"
	"github.com/Liv-Coder/chat-memory-sub001/summarizer"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
	"github.com/Liv-Coder/chat-memory-sub001/vectorstore"
)

type stubEmbedder struct {
	vec []float64
	err error
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) { return e.vec, e.err }
func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, e.err
}
func (e *stubEmbedder) Dimensions() int   { return len(e.vec) }
func (e *stubEmbedder) MaxBatchSize() int { return 64 }

type failingStrategy struct{ err error }

func (f *failingStrategy) Apply(_ context.Context, messages []*message.Message, _ int, _ tokenizer.Estimator) (strategy.Result, error) {
	return strategy.Result{}, f.err
}

func mustMessage(t *testing.T, role message.Role, content string) *message.Message {
	t.Helper()
	m, err := message.New(role, content, nil)
	require.NoError(t, err)
	return m
}

func buildMessages(t *testing.T, n int) []*message.Message {
	t.Helper()
	out := make([]*message.Message, n)
	for i := 0; i < n; i++ {
		out[i] = mustMessage(t, message.RoleUser, fmt.Sprintf("message number %d with some padding", i))
	}
	return out
}

func TestGetContextWithinBudgetReturnsEverything(t *testing.T) {
	m := New(Config{MaxTokens: 1_000_000}, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	msgs := buildMessages(t, 3)
	result := m.GetContext(context.Background(), msgs, 0, "")
	assert.Len(t, result.Messages, 3)
	assert.Equal(t, "withinBudget", result.Metadata["preCheck"])
}

func TestGetContextPerCallBudgetOverridesConfiguredMaxTokens(t *testing.T) {
	m := New(Config{MaxTokens: 1_000_000}, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	msgs := buildMessages(t, 10)

	// The manager is configured with a huge budget, but a one-off call
	// asking for a tiny budget must still trigger the exceeded path.
	result := m.GetContext(context.Background(), msgs, 1, "")
	assert.Equal(t, "exceeded", result.Metadata["preCheck"])
	assert.Equal(t, 1, result.Metadata["budget"])
	assert.Less(t, len(result.Messages), len(msgs))
}

func TestGetContextExceededUsesStrategyAndPopulatesMetadata(t *testing.T) {
	strat := strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{})
	m := New(Config{MaxTokens: 1}, tokenizer.Default, strat)
	msgs := buildMessages(t, 10)
	result := m.GetContext(context.Background(), msgs, 0, "")
	assert.Equal(t, "exceeded", result.Metadata["preCheck"])
	assert.Equal(t, "sliding_window", result.Metadata["strategyUsed"])
	assert.NotEmpty(t, result.Messages)
	reasons, ok := result.Metadata["excludedReasons"].(map[string]string)
	require.True(t, ok)
	assert.NotEmpty(t, reasons)
}

func TestGetContextDegradesToSlidingWindowWhenStrategyFails(t *testing.T) {
	m := New(Config{MaxTokens: 1}, tokenizer.Default, &failingStrategy{err: errors.New("summarizer down")})
	msgs := buildMessages(t, 5)
	result := m.GetContext(context.Background(), msgs, 0, "")
	assert.Equal(t, "sliding_window_degraded", result.Metadata["strategyUsed"])
	assert.NotEmpty(t, result.Messages)
}

func TestGetContextIncludesSemanticMessagesWhenQueryProvided(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	require.NoError(t, store.Store(context.Background(), vectorstore.Entry{
		ID: "old_msg", Embedding: []float64{1, 0}, Content: "relevant history",
		Metadata: map[string]string{"role": "user"}, Timestamp: time.Now(),
	}))
	cfg := Config{
		MaxTokens: 1, EnableSemanticMemory: true, SemanticTopK: 5,
		VectorStore: store, EmbeddingService: &stubEmbedder{vec: []float64{1, 0}},
	}
	m := New(cfg, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	msgs := buildMessages(t, 5)
	result := m.GetContext(context.Background(), msgs, 0, "relevant")
	assert.NotEmpty(t, result.SemanticMessages)
	assert.Equal(t, len(result.SemanticMessages), result.Metadata["semanticCount"])
}

func TestGetContextSummarizesAndSynthesizesSummaryMessage(t *testing.T) {
	stub := &passthroughSummarizer{}
	strat := strategy.NewSummarizationStrategy(strategy.SummarizationConfig{
		MaxTokens: 1, MinRecentMessages: 1, MaxSummaryChunkSize: 3,
		PreserveSystemMessages: true, PreserveSummaryMessages: true,
	}, stub)
	m := New(Config{MaxTokens: 1}, tokenizer.Default, strat)
	msgs := buildMessages(t, 10)

	result := m.GetContext(context.Background(), msgs, 0, "")
	assert.NotEmpty(t, result.Summary)
	found := false
	for _, msg := range result.Messages {
		if msg.Role() == message.RoleSummary {
			found = true
		}
	}
	assert.True(t, found, "expected a synthesized summary message in the result")
}

type passthroughSummarizer struct{}

func (p *passthroughSummarizer) Summarize(_ context.Context, chunk []*message.Message, _ tokenizer.Estimator) (summarizer.Info, error) {
	return summarizer.Info{ChunkID: "chunk", Summary: "a synthesized summary", TokenEstimateAfter: 5}, nil
}

func TestStoreMessageSkipsSystemAndSummaryRoles(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	m := New(Config{VectorStore: store, EmbeddingService: &stubEmbedder{vec: []float64{1, 0}}}, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	sys := mustMessage(t, message.RoleSystem, "system prompt")
	m.StoreMessage(context.Background(), sys)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreMessageIndexesUserMessages(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	m := New(Config{VectorStore: store, EmbeddingService: &stubEmbedder{vec: []float64{1, 0}}}, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	user := mustMessage(t, message.RoleUser, "hello")
	m.StoreMessage(context.Background(), user)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreMessageSwallowsEmbeddingFailure(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	m := New(Config{VectorStore: store, EmbeddingService: &stubEmbedder{err: errors.New("down")}}, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	user := mustMessage(t, message.RoleUser, "hello")
	assert.NotPanics(t, func() { m.StoreMessage(context.Background(), user) })
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreMessageBatchFiltersToUserAndAssistant(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	m := New(Config{VectorStore: store, EmbeddingService: &stubEmbedder{vec: []float64{1, 0}}}, tokenizer.Default, strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{}))
	msgs := []*message.Message{
		mustMessage(t, message.RoleSystem, "sys"),
		mustMessage(t, message.RoleUser, "hi"),
		mustMessage(t, message.RoleAssistant, "hello"),
	}
	m.StoreMessageBatch(context.Background(), msgs)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLinearizeRendersRoleAndContent(t *testing.T) {
	msgs := []*message.Message{
		mustMessage(t, message.RoleUser, "hi there"),
		mustMessage(t, message.RoleAssistant, "hello back"),
	}
	out := Linearize(msgs)
	assert.Equal(t, "user: hi there\nassistant: hello back", out)
}
