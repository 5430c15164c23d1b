// Package memory implements C8 from spec.md: the orchestrator that combines
// the context strategy (C6), the semantic retriever (C7), and the vector
// store (C4) into a single ContextResult. Grounded on
// AltairaLabs/PromptKit's runtime/statestore package, which plays the
// analogous orchestration role between its Store, Summarizer, and
// embedding index types.
package memory

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Liv-Coder/chat-memory-sub001/embeddings"
	"github.com/Liv-Coder/chat-memory-sub001/logger"
	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/metrics"
	"github.com/Liv-Coder/chat-memory-sub001/retriever"
	"github.com/Liv-Coder/chat-memory-sub001/strategy"
	"github.com/Liv-Coder/chat-memory-sub001/summarizer"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
	"github.com/Liv-Coder/chat-memory-sub001/vectorstore"
)

// Config is spec.md §4.8's MemoryConfig.
type Config struct {
	MaxTokens            int
	EnableSemanticMemory bool
	EnableSummarization  bool
	SemanticTopK         int
	MinSimilarity        float64

	VectorStore      vectorstore.Store
	EmbeddingService embeddings.Service
}

// semanticBudgetReservation is the conservative fraction of max_tokens
// reserved so the semantic block has room once the strategy has already
// filled the budget with preserved+recent messages, per spec.md §4.8 step 2
// ("reserving a conservative fraction for the semantic block").
const semanticBudgetReservation = 0.15

// Manager orchestrates C6 + C7 + C4 to produce a ContextResult.
type Manager struct {
	cfg       Config
	estimator tokenizer.Estimator
	strategy  strategy.Strategy
	retriever *retriever.Semantic
}

// New builds a Manager. strat implements the chosen context strategy
// (normally strategy.SummarizationStrategy); pass a
// strategy.SlidingWindowStrategy directly for the simpler preset.
func New(cfg Config, estimator tokenizer.Estimator, strat strategy.Strategy) *Manager {
	if estimator == nil {
		estimator = tokenizer.Default
	}
	r := retriever.New(retriever.Config{
		Enabled:       cfg.EnableSemanticMemory,
		TopK:          cfg.SemanticTopK,
		MinSimilarity: cfg.MinSimilarity,
	}, cfg.EmbeddingService, cfg.VectorStore)

	return &Manager{cfg: cfg, estimator: estimator, strategy: strat, retriever: r}
}

// StoreMessage indexes one message's embedding, best-effort. Failures are
// logged and swallowed (spec.md §4.8): indexing must never break the append
// path.
func (m *Manager) StoreMessage(ctx context.Context, msg *message.Message) {
	if msg.Role() == message.RoleSystem || msg.Role() == message.RoleSummary {
		return
	}
	if m.cfg.VectorStore == nil || m.cfg.EmbeddingService == nil {
		return
	}
	vec, err := m.cfg.EmbeddingService.Embed(ctx, msg.Content())
	if err != nil {
		logger.Get("memory.manager").Warn("embedding failed, skipping index", "id", msg.ID(), "error", err)
		return
	}
	entry := vectorstore.Entry{
		ID:        msg.ID(),
		Embedding: vec,
		Content:   msg.Content(),
		Metadata:  metadataToStrings(msg),
		Timestamp: msg.Timestamp(),
	}
	if err := m.cfg.VectorStore.Store(ctx, entry); err != nil {
		logger.Get("memory.manager").Warn("vector store write failed, skipping index", "id", msg.ID(), "error", err)
	}
}

// StoreMessageBatch indexes a batch of messages in one embedding call,
// best-effort.
func (m *Manager) StoreMessageBatch(ctx context.Context, msgs []*message.Message) {
	if m.cfg.VectorStore == nil || m.cfg.EmbeddingService == nil {
		return
	}
	filtered := make([]*message.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role() == message.RoleUser || msg.Role() == message.RoleAssistant {
			filtered = append(filtered, msg)
		}
	}
	if len(filtered) == 0 {
		return
	}
	texts := make([]string, len(filtered))
	for i, msg := range filtered {
		texts[i] = msg.Content()
	}
	vectors, err := m.cfg.EmbeddingService.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Get("memory.manager").Warn("batch embedding failed, skipping index", "count", len(filtered), "error", err)
		return
	}
	entries := make([]vectorstore.Entry, len(filtered))
	for i, msg := range filtered {
		entries[i] = vectorstore.Entry{
			ID:        msg.ID(),
			Embedding: vectors[i],
			Content:   msg.Content(),
			Metadata:  metadataToStrings(msg),
			Timestamp: msg.Timestamp(),
		}
	}
	if err := m.cfg.VectorStore.StoreBatch(ctx, entries); err != nil {
		logger.Get("memory.manager").Warn("batch vector store write failed, skipping index", "error", err)
	}
}

func metadataToStrings(msg *message.Message) map[string]string {
	out := map[string]string{"role": string(msg.Role())}
	for k, v := range msg.Metadata() {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Result is spec.md §3's ContextResult.
type Result struct {
	Messages         []*message.Message
	Summary          string
	SemanticMessages []*message.Message
	EstimatedTokens  int
	Metadata         map[string]any
}

// GetContext implements spec.md §4.8's get_context. budget overrides the
// manager's configured MaxTokens for this call only, per spec.md §6's
// handle.get_context(max_tokens?) and §4.9's build_prompt(budget, query?);
// budget <= 0 falls back to the manager's configured MaxTokens.
func (m *Manager) GetContext(ctx context.Context, allMessages []*message.Message, budget int, query string) Result {
	if budget <= 0 {
		budget = m.cfg.MaxTokens
	}

	start := time.Now()
	total := 0
	for _, msg := range allMessages {
		total += m.estimator.Estimate(msg.Content())
	}
	if total <= budget {
		metrics.RecordContextAssembly("withinBudget", time.Since(start))
		return Result{
			Messages:        append([]*message.Message(nil), allMessages...),
			EstimatedTokens: total,
			Metadata: map[string]any{
				"preCheck": "withinBudget",
				"budget":   budget,
			},
		}
	}

	reservedForSemantic := 0
	if m.cfg.EnableSemanticMemory {
		reservedForSemantic = int(float64(budget) * semanticBudgetReservation)
	}
	strategyBudget := budget - reservedForSemantic

	var stratResult strategy.Result
	var stratErr error
	var semanticMessages []*message.Message

	var semanticErr error
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		r, err := m.strategy.Apply(gctx, allMessages, strategyBudget, m.estimator)
		stratResult, stratErr = r, err
		return nil // strategy failure degrades below; never aborts the group
	})
	group.Go(func() error {
		if query == "" {
			return nil
		}
		// The retriever's exclusion set is computed from allMessages since the
		// strategy's result isn't available yet inside this concurrent branch;
		// spec.md §4.8 allows this to run concurrently with the strategy, at
		// the cost of using the pre-strategy recent window for exclusion.
		recent := lastN(allMessages, 10)
		semanticMessages, semanticErr = m.retriever.Retrieve(gctx, query, recent)
		return nil
	})
	_ = group.Wait()

	var semanticError string
	if semanticErr != nil {
		semanticError = semanticErr.Error()
	}
	if stratErr != nil {
		logger.Get("memory.manager").Warn("strategy failed, degrading to sliding window", "error", stratErr)
		stratResult = degradeToSlidingWindow(allMessages, strategyBudget, m.estimator)
	}

	included := append([]*message.Message(nil), stratResult.Included...)
	if len(stratResult.Summaries) > 0 {
		summaryMsg := synthesizeSummaryMessage(stratResult.Summaries)
		included = insertAfterSystemMessages(included, summaryMsg)
	}

	linear := Linearize(included)
	meta := map[string]any{
		"strategyUsed":    stratResult.Name,
		"summaryCount":    len(stratResult.Summaries),
		"semanticCount":   len(semanticMessages),
		"budget":          budget,
		"preCheck":        "exceeded",
		"excludedReasons": stratResult.ExcludedReasons,
	}
	if semanticError != "" {
		meta["semanticError"] = semanticError
	}

	metrics.RecordContextAssembly("exceeded", time.Since(start))
	return Result{
		Messages:         included,
		Summary:          concatSummaries(stratResult.Summaries),
		SemanticMessages: semanticMessages,
		EstimatedTokens:  m.estimator.Estimate(linear),
		Metadata:         meta,
	}
}

func lastN(messages []*message.Message, n int) []*message.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

func degradeToSlidingWindow(allMessages []*message.Message, budget int, estimator tokenizer.Estimator) strategy.Result {
	fallback := strategy.NewSlidingWindowStrategy(strategy.SlidingWindowConfig{})
	r, _ := fallback.Apply(context.Background(), allMessages, budget, estimator)
	r.Name = "sliding_window_degraded"
	return r
}

// synthesizeSummaryMessage builds a single role=summary message from the
// strategy's SummaryInfo list, per spec.md §4.8 step 4. It is prompt-only —
// not persisted back to the transcript — per spec.md §9's Open Questions
// resolution ("the safer default is prompt-only").
func synthesizeSummaryMessage(summaries []summarizer.Info) *message.Message {
	text := concatSummaries(summaries)
	if text == "" {
		return nil
	}
	msg, err := message.New(message.RoleSummary, text, nil)
	if err != nil {
		return nil
	}
	return msg
}

func concatSummaries(summaries []summarizer.Info) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = s.Summary
	}
	return strings.Join(parts, "\n")
}

func insertAfterSystemMessages(messages []*message.Message, summaryMsg *message.Message) []*message.Message {
	if summaryMsg == nil {
		return messages
	}
	idx := 0
	for idx < len(messages) && messages[idx].Role() == message.RoleSystem {
		idx++
	}
	out := make([]*message.Message, 0, len(messages)+1)
	out = append(out, messages[:idx]...)
	out = append(out, summaryMsg)
	out = append(out, messages[idx:]...)
	return out
}

// Linearize renders messages into prompt text: "<role>: <content>" lines
// joined by newline, role lowercase. Shared by the memory manager's own
// token re-estimate and by conversation.BuildPrompt's PromptText field.
func Linearize(messages []*message.Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = strings.ToLower(string(msg.Role())) + ": " + msg.Content()
	}
	return strings.Join(lines, "\n")
}
