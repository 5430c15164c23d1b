package strategy

import (
	"context"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

// SlidingWindowConfig configures SlidingWindowStrategy, spec.md §4.6.
type SlidingWindowConfig struct {
	LookbackMessages int // 0 means unbounded (budget is the only limit)
}

// SlidingWindowStrategy includes messages newest-first until the budget is
// exhausted or LookbackMessages is reached. It never summarizes; degraded
// callers (e.g. a failed strategy) can fall back to this unconditionally.
type SlidingWindowStrategy struct {
	cfg SlidingWindowConfig
}

// NewSlidingWindowStrategy builds a SlidingWindowStrategy.
func NewSlidingWindowStrategy(cfg SlidingWindowConfig) *SlidingWindowStrategy {
	return &SlidingWindowStrategy{cfg: cfg}
}

// Apply implements Strategy.
func (s *SlidingWindowStrategy) Apply(
	_ context.Context, messagesOldestFirst []*message.Message, tokenBudget int, estimator tokenizer.Estimator,
) (Result, error) {
	if tokenBudget <= 0 {
		excluded := append([]*message.Message{}, messagesOldestFirst...)
		return Result{Excluded: excluded, Name: "sliding_window", ExcludedReasons: buildExcludedReasons(excluded)}, nil
	}

	included := make([]*message.Message, 0, len(messagesOldestFirst))
	used := 0
	cut := len(messagesOldestFirst)
	for i := len(messagesOldestFirst) - 1; i >= 0; i-- {
		if s.cfg.LookbackMessages > 0 && len(included) >= s.cfg.LookbackMessages {
			break
		}
		cost := estimator.Estimate(messagesOldestFirst[i].Content())
		if used+cost > tokenBudget && len(included) > 0 {
			break
		}
		included = append(included, messagesOldestFirst[i])
		used += cost
		cut = i
	}
	for l, r := 0, len(included)-1; l < r; l, r = l+1, r-1 {
		included[l], included[r] = included[r], included[l]
	}
	excluded := append([]*message.Message{}, messagesOldestFirst[:cut]...)

	return Result{
		Included: included, Excluded: excluded, Name: "sliding_window",
		ExcludedReasons: buildExcludedReasons(excluded),
	}, nil
}

var _ Strategy = (*SlidingWindowStrategy)(nil)
