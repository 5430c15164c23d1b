// Package chatmemory is the library's top-level entry point: spec.md §6's
// language-neutral surface, `ChatMemory.create(preset, max_tokens, options?)
// -> handle`. It wires C1-C10 together per the chosen preset; callers that
// need finer control can construct memory.Manager/conversation.Manager
// directly instead.
package chatmemory

import (
	"context"

	"github.com/Liv-Coder/chat-memory-sub001/analytics"
	"github.com/Liv-Coder/chat-memory-sub001/config"
	"github.com/Liv-Coder/chat-memory-sub001/conversation"
	"github.com/Liv-Coder/chat-memory-sub001/embeddings"
	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
	"github.com/Liv-Coder/chat-memory-sub001/memory"
	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/strategy"
	"github.com/Liv-Coder/chat-memory-sub001/summarizer"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
	"github.com/Liv-Coder/chat-memory-sub001/vectorstore"
)

// Options lets a caller override a preset's defaults and plug in a durable
// vector store (e.g. vectorstore.NewRedisStore) for the "production" preset.
// Zero value uses the preset's normative defaults and, when the preset
// enables semantic memory, an in-memory store and the deterministic embedder.
// No preset opens a durable store on its own: without VectorStore,
// "production" also runs on the in-memory store.
type Options struct {
	MaxTokens        int // 0 keeps the preset default
	VectorStore      vectorstore.Store
	EmbeddingService embeddings.Service
	Summarizer       summarizer.Summarizer
}

// Handle is the conversation handle spec.md §6 describes.
type Handle struct {
	conv     *conversation.Manager
	store    vectorstore.Store
	settings config.Settings
}

// Create builds a Handle for the named preset ("development", "production",
// "minimal"), optionally overridden by opts.
func Create(preset string, opts Options) (*Handle, error) {
	settings, err := config.Resolve(preset)
	if err != nil {
		return nil, err
	}
	if opts.MaxTokens > 0 {
		settings.MaxTokens = opts.MaxTokens
	}

	estimator := tokenizer.Default

	embedder := opts.EmbeddingService
	if embedder == nil && settings.EnableSemanticMemory {
		embedder = embeddings.NewDeterministicEmbedder(256)
	}

	store := opts.VectorStore
	if store == nil && settings.EnableSemanticMemory {
		store = vectorstore.NewMemoryStore()
	}

	var strat strategy.Strategy
	if settings.EnableSummarization {
		sum := opts.Summarizer
		if sum == nil {
			sum = summarizer.NewTruncatingSummarizer(summarizer.DefaultMaxChars)
		}
		strat = strategy.NewSummarizationStrategy(strategy.SummarizationConfig{
			MaxTokens:               settings.MaxTokens,
			MinRecentMessages:       settings.MinRecentMessages,
			MaxSummaryChunkSize:     settings.MaxSummaryChunkSize,
			PreserveSystemMessages:  true,
			PreserveSummaryMessages: true,
			FailureThreshold:        settings.BreakerFailureThreshold,
			Cooldown:                settings.BreakerCooldown,
		}, sum)
	} else {
		strat = strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{})
	}

	mem := memory.New(memory.Config{
		MaxTokens:            settings.MaxTokens,
		EnableSemanticMemory: settings.EnableSemanticMemory,
		EnableSummarization:  settings.EnableSummarization,
		SemanticTopK:         settings.SemanticTopK,
		MinSimilarity:        settings.MinSimilarity,
		VectorStore:          store,
		EmbeddingService:     embedder,
	}, estimator, strat)

	return &Handle{
		conv:     conversation.New(mem, estimator),
		store:    store,
		settings: settings,
	}, nil
}

// AddMessage creates and stores a message of the given role.
func (h *Handle) AddMessage(ctx context.Context, content string, role message.Role) (*message.Message, error) {
	switch role {
	case message.RoleUser:
		return h.conv.AppendUserMessage(ctx, content, nil)
	case message.RoleAssistant:
		return h.conv.AppendAssistantMessage(ctx, content, nil)
	case message.RoleSystem:
		return h.conv.AppendSystemMessage(ctx, content, nil)
	default:
		return nil, memerrors.NewValidationError("role", "must be user, assistant, or system")
	}
}

// AddUserMessage is AddMessage(content, RoleUser).
func (h *Handle) AddUserMessage(ctx context.Context, content string) (*message.Message, error) {
	return h.conv.AppendUserMessage(ctx, content, nil)
}

// AddAssistantMessage is AddMessage(content, RoleAssistant).
func (h *Handle) AddAssistantMessage(ctx context.Context, content string) (*message.Message, error) {
	return h.conv.AppendAssistantMessage(ctx, content, nil)
}

// AddSystemMessage is AddMessage(content, RoleSystem).
func (h *Handle) AddSystemMessage(ctx context.Context, content string) (*message.Message, error) {
	return h.conv.AppendSystemMessage(ctx, content, nil)
}

// ContextPayload is spec.md §6's wire shape.
type ContextPayload struct {
	PromptText       string
	EstimatedTokens  int
	MessageCount     int
	Summary          string
	SemanticMessages []*message.Message
}

// GetContext builds a budgeted prompt, defaulting to the preset's
// max_tokens when maxTokens <= 0.
func (h *Handle) GetContext(ctx context.Context, maxTokens int) ContextPayload {
	budget := maxTokens
	if budget <= 0 {
		budget = h.settings.MaxTokens
	}
	payload := h.conv.BuildPrompt(ctx, budget, "")
	return ContextPayload{
		PromptText:       payload.PromptText,
		EstimatedTokens:  payload.EstimatedTokens,
		MessageCount:     len(payload.IncludedMessages),
		Summary:          payload.Summary,
		SemanticMessages: payload.SemanticMessages,
	}
}

// Search builds an enhanced prompt for query at the preset's max_tokens and
// returns its semantic messages, which carry similarity/retrievalType/
// originalId in their metadata. Retrieval runs only when the transcript
// exceeds that budget: when it fits, the pre-check returns the transcript
// verbatim and Search returns no messages.
func (h *Handle) Search(ctx context.Context, query string) []*message.Message {
	return h.conv.BuildEnhancedPrompt(ctx, h.settings.MaxTokens, query).SemanticMessages
}

// Stats delegates to the conversation manager's analytics.
func (h *Handle) Stats(ctx context.Context) analytics.Stats {
	return h.conv.GetStats(ctx)
}

// Clear empties the transcript and vector store.
func (h *Handle) Clear(ctx context.Context) error {
	return h.conv.Clear(ctx, h.store)
}
