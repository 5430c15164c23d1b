package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/summarizer"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

type stubSummarizer struct {
	calls     int
	failUntil int
	err       error
}

func (s *stubSummarizer) Summarize(_ context.Context, chunk []*message.Message, estimator tokenizer.Estimator) (summarizer.Info, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return summarizer.Info{}, s.err
	}
	return summarizer.Info{ChunkID: "real", Summary: "a real summary", TokenEstimateAfter: 5}, nil
}

func defaultCfg() SummarizationConfig {
	return SummarizationConfig{
		MaxTokens: 1000, MinRecentMessages: 1, MaxSummaryChunkSize: 2,
		PreserveSystemMessages: true, PreserveSummaryMessages: true,
	}
}

func TestSummarizationAppliesWithinBudgetKeepsEverything(t *testing.T) {
	strat := NewSummarizationStrategy(defaultCfg(), &stubSummarizer{})
	msgs := buildMessages(t, 2)
	result, err := strat.Apply(context.Background(), msgs, 1000, tokenizer.Default)
	require.NoError(t, err)
	assert.Len(t, result.Included, 2)
	assert.Empty(t, result.Summaries)
}

func TestSummarizationPreservesSystemAndSummaryMessages(t *testing.T) {
	strat := NewSummarizationStrategy(defaultCfg(), &stubSummarizer{})
	sys := mustMessage(t, message.RoleSystem, "system prompt")
	existing := mustMessage(t, message.RoleSummary, "earlier summary")
	conv := buildMessages(t, 1)
	msgs := append([]*message.Message{sys, existing}, conv...)

	result, err := strat.Apply(context.Background(), msgs, 1000, tokenizer.Default)
	require.NoError(t, err)
	ids := make([]string, len(result.Included))
	for i, m := range result.Included {
		ids[i] = m.ID()
	}
	assert.Contains(t, ids, sys.ID())
	assert.Contains(t, ids, existing.ID())
}

func TestSummarizationForcesSummarizationWhenOverBudget(t *testing.T) {
	stub := &stubSummarizer{}
	cfg := defaultCfg()
	cfg.MinRecentMessages = 1
	strat := NewSummarizationStrategy(cfg, stub)
	msgs := buildMessages(t, 20)

	budget := tokenizer.Default.Estimate(msgs[19].Content())
	result, err := strat.Apply(context.Background(), msgs, budget, tokenizer.Default)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Summaries)
	assert.Equal(t, "summarized", result.ExcludedReasons[msgs[0].ID()])
	assert.Positive(t, stub.calls)
}

func TestSummarizationMinRecentMessagesGuaranteedEvenOverBudget(t *testing.T) {
	strat := NewSummarizationStrategy(defaultCfg(), &stubSummarizer{})
	msgs := buildMessages(t, 5)

	result, err := strat.Apply(context.Background(), msgs, 1, tokenizer.Default)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(result.Included), 1)
}

func TestSummarizationFallsBackAfterRetriesExhausted(t *testing.T) {
	stub := &stubSummarizer{failUntil: 100, err: errors.New("llm down")}
	cfg := defaultCfg()
	cfg.FailureThreshold = 10 // keep breaker closed through this single test
	strat := NewSummarizationStrategy(cfg, stub)
	msgs := buildMessages(t, 10)

	budget := tokenizer.Default.Estimate(msgs[9].Content())
	result, err := strat.Apply(context.Background(), msgs, budget, tokenizer.Default)
	require.NoError(t, err)
	require.NotEmpty(t, result.Summaries)
	assert.Contains(t, result.Summaries[0].Summary, "summary unavailable")
	assert.Equal(t, FallbackTokenEstimate, result.Summaries[0].TokenEstimateAfter)
}

func TestSummarizationBreakerOpensAfterRepeatedFailures(t *testing.T) {
	tripped := 0
	stub := &stubSummarizer{failUntil: 1000, err: errors.New("down")}
	cfg := defaultCfg()
	cfg.MaxSummaryChunkSize = 1
	cfg.FailureThreshold = 2
	cfg.Cooldown = time.Hour
	strat := NewSummarizationStrategy(cfg, stub)
	strat.breaker.OnTrip(func() { tripped++ })

	msgs := buildMessages(t, 6)
	budget := tokenizer.Default.Estimate(msgs[5].Content())
	_, err := strat.Apply(context.Background(), msgs, budget, tokenizer.Default)
	require.NoError(t, err)

	assert.Equal(t, 1, tripped)
	assert.False(t, strat.breaker.Allow(), "breaker should remain open within the cooldown window")
}

func TestFallbackInfoNamesChunkBoundaries(t *testing.T) {
	msgs := buildMessages(t, 3)
	info := fallbackInfo(msgs, tokenizer.Default)
	assert.Contains(t, info.Summary, fmt.Sprintf("%d messages", len(msgs)))
	assert.Contains(t, info.Summary, msgs[0].ID())
	assert.Contains(t, info.Summary, msgs[2].ID())
}
