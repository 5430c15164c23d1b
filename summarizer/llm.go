package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

// Completer is the narrow text-completion contract an LLMSummarizer needs.
// It is intentionally decoupled from any specific provider SDK, the same way
// runtime/statestore.LLMSummarizer depends on runtime/providers.Provider
// rather than an OpenAI/Anthropic client directly — callers wire in whatever
// provider they already use elsewhere in their host application.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const llmSystemPrompt = "You are a conversation summarizer. Summarize the following conversation " +
	"segment concisely, preserving key facts, decisions, and context that would be important for " +
	"continuing the conversation. Be factual and brief."

// LLMSummarizer delegates compression to a Completer, e.g. a cheap/fast
// model. Use TruncatingSummarizer instead when no such model is available;
// the engine works with either.
type LLMSummarizer struct {
	completer Completer
}

// NewLLMSummarizer builds an LLMSummarizer around the given Completer.
func NewLLMSummarizer(completer Completer) *LLMSummarizer {
	return &LLMSummarizer{completer: completer}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(
	ctx context.Context, messages []*message.Message, estimator tokenizer.Estimator,
) (Info, error) {
	if len(messages) == 0 {
		return Info{ChunkID: uuid.NewString()}, nil
	}

	var sb strings.Builder
	before := 0
	for _, m := range messages {
		fmt.Fprintf(&sb, "[%s]: %s\n", m.Role(), m.Content())
		before += estimator.Estimate(m.Content())
	}

	summary, err := s.completer.Complete(ctx, llmSystemPrompt,
		fmt.Sprintf("Summarize this conversation segment:\n\n%s", sb.String()))
	if err != nil {
		return Info{}, fmt.Errorf("llm summarizer: %w", err)
	}

	return Info{
		ChunkID:             uuid.NewString(),
		Summary:             summary,
		TokenEstimateBefore: before,
		TokenEstimateAfter:  estimator.Estimate(summary),
	}, nil
}

var _ Summarizer = (*LLMSummarizer)(nil)
