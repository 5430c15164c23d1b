// Package strategy implements C6 from spec.md: deciding which messages to
// keep verbatim, which to drop, and which to summarize under a token
// budget. SummarizationStrategy follows spec.md §4.6's normative procedure;
// SlidingWindowStrategy is the simpler newest-first fallback. The shape —
// an interface with one normative implementation plus a degraded fallback,
// wrapped around a breaker.Breaker — follows the same pattern
// AltairaLabs/PromptKit's runtime/statestore uses for its summarizer
// pipeline (retry-with-backoff, then a conservative fallback).
package strategy

import (
	"context"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/summarizer"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

// Result is spec.md §3's StrategyResult.
type Result struct {
	Included  []*message.Message
	Excluded  []*message.Message
	Summaries []summarizer.Info
	Name      string

	// ExcludedReasons maps an excluded message's ID to why it was dropped,
	// for InclusionTrace (spec.md §3). Messages dropped outright carry
	// excludedReason ("token_budget_exceeded"); messages folded into a chunk
	// summary carry summarizedReason ("summarized").
	ExcludedReasons map[string]string
}

// buildExcludedReasons maps excludedReason over a Result's Excluded slice.
func buildExcludedReasons(excluded []*message.Message) map[string]string {
	reasons := make(map[string]string, len(excluded))
	for _, m := range excluded {
		reasons[m.ID()] = excludedReason(m)
	}
	return reasons
}

// Strategy decides included/excluded/summarized splits under a budget.
type Strategy interface {
	Apply(ctx context.Context, messagesOldestFirst []*message.Message, tokenBudget int, estimator tokenizer.Estimator) (Result, error)
}

func partition(messages []*message.Message, preserveSystem, preserveSummary bool) (system, existingSummary, conversation []*message.Message) {
	for _, m := range messages {
		switch m.Role() {
		case message.RoleSystem:
			system = append(system, m)
		case message.RoleSummary:
			existingSummary = append(existingSummary, m)
		default:
			conversation = append(conversation, m)
		}
	}
	if !preserveSystem {
		conversation = append(append([]*message.Message{}, system...), conversation...)
		system = nil
	}
	if !preserveSummary {
		conversation = append(append([]*message.Message{}, existingSummary...), conversation...)
		existingSummary = nil
	}
	return
}

func sumEstimate(messages []*message.Message, estimator tokenizer.Estimator) int {
	total := 0
	for _, m := range messages {
		total += estimator.Estimate(m.Content())
	}
	return total
}

func excludedReason(_ *message.Message) string { return "token_budget_exceeded" }

func summarizedReason(_ *message.Message) string { return "summarized" }

// buildSummarizedReasons is buildExcludedReasons with the "summarized"
// reason, for messages folded into a chunk summary rather than dropped
// outright.
func buildSummarizedReasons(summarized []*message.Message) map[string]string {
	reasons := make(map[string]string, len(summarized))
	for _, m := range summarized {
		reasons[m.ID()] = summarizedReason(m)
	}
	return reasons
}
