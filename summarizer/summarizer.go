// Package summarizer implements C5 from spec.md: compressing a batch of
// messages into a short digest. The interface and the pluggable-backend
// shape follow AltairaLabs/PromptKit's runtime/statestore.Summarizer and
// LLMSummarizer; TruncatingSummarizer is the engine's deterministic
// reference implementation from spec.md §4.5.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

// Info is spec.md §3's SummaryInfo.
type Info struct {
	ChunkID             string
	Summary             string
	TokenEstimateBefore int
	TokenEstimateAfter  int
}

// Summarizer compresses a batch of messages into a digest. Implementations
// may call out to an external service; the caller (strategy.SummarizationStrategy)
// treats Summarize as fallible and applies retry/fallback/circuit-breaking
// around it, so implementations should not retry internally.
type Summarizer interface {
	Summarize(ctx context.Context, messages []*message.Message, estimator tokenizer.Estimator) (Info, error)
}

// DefaultMaxChars is TruncatingSummarizer's default truncation length.
const DefaultMaxChars = 400

// TruncatingSummarizer is the deterministic reference implementation from
// spec.md §4.5: concatenate the messages as "role: content" with a " | "
// separator, truncate to maxChars with an ellipsis suffix.
type TruncatingSummarizer struct {
	maxChars  int
	separator string
}

// NewTruncatingSummarizer builds a TruncatingSummarizer. maxChars <= 0 falls
// back to DefaultMaxChars.
func NewTruncatingSummarizer(maxChars int) *TruncatingSummarizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &TruncatingSummarizer{maxChars: maxChars, separator: " | "}
}

// Summarize implements Summarizer.
func (t *TruncatingSummarizer) Summarize(
	_ context.Context, messages []*message.Message, estimator tokenizer.Estimator,
) (Info, error) {
	contents := make([]string, len(messages))
	before := 0
	for i, m := range messages {
		contents[i] = fmt.Sprintf("%s: %s", m.Role(), m.Content())
		before += estimator.Estimate(m.Content())
	}
	joined := strings.Join(contents, t.separator)

	summary := joined
	if len(summary) > t.maxChars {
		summary = summary[:t.maxChars] + "..."
	}

	return Info{
		ChunkID:             uuid.NewString(),
		Summary:             summary,
		TokenEstimateBefore: before,
		TokenEstimateAfter:  estimator.Estimate(summary),
	}, nil
}

var _ Summarizer = (*TruncatingSummarizer)(nil)
