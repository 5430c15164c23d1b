package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Liv-Coder/chat-memory-sub001/breaker"
	"github.com/Liv-Coder/chat-memory-sub001/logger"
	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/metrics"
	"github.com/Liv-Coder/chat-memory-sub001/summarizer"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

// FallbackTokenEstimate is the conservative tokenEstimateAfter reported for
// fallback summaries, per spec.md §4.6.
const FallbackTokenEstimate = 50

// DefaultFailureThreshold and DefaultCooldown are the breaker defaults
// spec.md §4.6 names for the summarization strategy.
const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = time.Minute
)

// SummarizationConfig configures SummarizationStrategy, spec.md §4.6.
type SummarizationConfig struct {
	MaxTokens               int
	MinRecentMessages       int
	MaxSummaryChunkSize     int
	PreserveSystemMessages  bool
	PreserveSummaryMessages bool
	FailureThreshold        int
	Cooldown                time.Duration
}

// SummarizationStrategy is the normative strategy from spec.md §4.6.
type SummarizationStrategy struct {
	cfg        SummarizationConfig
	summarizer summarizer.Summarizer
	breaker    *breaker.Breaker
}

// NewSummarizationStrategy builds a SummarizationStrategy.
func NewSummarizationStrategy(cfg SummarizationConfig, s summarizer.Summarizer) *SummarizationStrategy {
	if cfg.MaxSummaryChunkSize <= 0 {
		cfg.MaxSummaryChunkSize = 1
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	b := breaker.New(threshold, cooldown)
	b.OnTrip(func() { metrics.RecordBreakerTrip("summarization") })

	return &SummarizationStrategy{
		cfg:        cfg,
		summarizer: s,
		breaker:    b,
	}
}

// Apply implements Strategy per spec.md §4.6's normative procedure.
func (s *SummarizationStrategy) Apply(
	ctx context.Context, messagesOldestFirst []*message.Message, tokenBudget int, estimator tokenizer.Estimator,
) (Result, error) {
	system, existingSummary, conversation := partition(messagesOldestFirst, s.cfg.PreserveSystemMessages, s.cfg.PreserveSummaryMessages)

	preserved := append(append([]*message.Message{}, system...), existingSummary...)
	reserved := sumEstimate(preserved, estimator)

	effectiveBudget := tokenBudget
	if effectiveBudget <= 0 {
		effectiveBudget = s.cfg.MaxTokens
	}
	available := effectiveBudget - reserved

	if available <= 0 {
		return Result{
			Included: preserved, Excluded: conversation, Name: "summarization",
			ExcludedReasons: buildExcludedReasons(conversation),
		}, nil
	}

	// Walk newest -> oldest, keeping as many as fit, but never fewer than
	// MinRecentMessages when the conversation has that many messages.
	recent := make([]*message.Message, 0, len(conversation))
	used := 0
	cut := len(conversation)
	for i := len(conversation) - 1; i >= 0; i-- {
		m := conversation[i]
		cost := estimator.Estimate(m.Content())
		kept := len(recent)
		if used+cost > available && kept >= s.cfg.MinRecentMessages {
			break
		}
		recent = append(recent, m)
		used += cost
		cut = i
	}
	// recent was built newest-first; reverse to oldest-first.
	for l, r := 0, len(recent)-1; l < r; l, r = l+1, r-1 {
		recent[l], recent[r] = recent[r], recent[l]
	}
	toSummarize := append([]*message.Message{}, conversation[:cut]...)

	var summaries []summarizer.Info
	if len(toSummarize) > 0 {
		summaries = s.summarizeChunks(ctx, toSummarize, estimator)
	}

	included := append(append([]*message.Message{}, preserved...), recent...)
	return Result{
		Included: included, Excluded: toSummarize, Summaries: summaries, Name: "summarization",
		ExcludedReasons: buildSummarizedReasons(toSummarize),
	}, nil
}

func (s *SummarizationStrategy) summarizeChunks(ctx context.Context, toSummarize []*message.Message, estimator tokenizer.Estimator) []summarizer.Info {
	chunkSize := s.cfg.MaxSummaryChunkSize
	var infos []summarizer.Info
	for start := 0; start < len(toSummarize); start += chunkSize {
		end := start + chunkSize
		if end > len(toSummarize) {
			end = len(toSummarize)
		}
		chunk := toSummarize[start:end]
		infos = append(infos, s.summarizeOneChunk(ctx, chunk, estimator))
	}
	return infos
}

func (s *SummarizationStrategy) summarizeOneChunk(ctx context.Context, chunk []*message.Message, estimator tokenizer.Estimator) summarizer.Info {
	if !s.breaker.Allow() {
		return fallbackInfo(chunk, estimator)
	}

	const maxRetries = 2
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := 100 * time.Millisecond * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				s.breaker.RecordFailure()
				logger.Get("strategy.summarization").Warn("summarizer canceled, using fallback",
					"chunk_size", len(chunk), "error", lastErr)
				return fallbackInfo(chunk, estimator)
			}
		}
		info, err := s.summarizer.Summarize(ctx, chunk, estimator)
		if err == nil {
			s.breaker.RecordSuccess()
			return info
		}
		lastErr = err
	}

	s.breaker.RecordFailure()
	logger.Get("strategy.summarization").Warn("summarizer failed, using fallback",
		"chunk_size", len(chunk), "error", lastErr)
	return fallbackInfo(chunk, estimator)
}

func fallbackInfo(chunk []*message.Message, estimator tokenizer.Estimator) summarizer.Info {
	before := sumEstimate(chunk, estimator)
	var first, last string
	if len(chunk) > 0 {
		first = chunk[0].ID()
		last = chunk[len(chunk)-1].ID()
	}
	return summarizer.Info{
		ChunkID:             uuid.NewString(),
		Summary:             fmt.Sprintf("[summary unavailable for %d messages from %s to %s]", len(chunk), first, last),
		TokenEstimateBefore: before,
		TokenEstimateAfter:  FallbackTokenEstimate,
	}
}

var _ Strategy = (*SummarizationStrategy)(nil)
