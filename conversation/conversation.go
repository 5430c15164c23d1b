// Package conversation implements C9 from spec.md: the public surface a
// host application drives — append messages, build a budgeted prompt,
// fetch stats, clear. It wires together transcript (ownership of the
// canonical message sequence), memory.Manager (C8), analytics, and
// callback in the shape AltairaLabs/PromptKit's runtime package wires
// statestore + summarizer + providers behind its top-level session type.
package conversation

import (
	"context"
	"time"

	"github.com/Liv-Coder/chat-memory-sub001/analytics"
	"github.com/Liv-Coder/chat-memory-sub001/callback"
	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
	"github.com/Liv-Coder/chat-memory-sub001/memory"
	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
	"github.com/Liv-Coder/chat-memory-sub001/transcript"
	"github.com/Liv-Coder/chat-memory-sub001/vectorstore"
)

// Event names fired through the callback manager.
const (
	EventMessageStored  = "on_message_stored"
	EventSummaryCreated = "on_summary_created"
)

// Manager is the conversation-facing public surface (spec.md §4.9).
type Manager struct {
	id         string
	transcript *transcript.Store
	memory     *memory.Manager
	analytics  *analytics.Analyzer
	callbacks  *callback.Manager
	estimator  tokenizer.Estimator

	followUpGenerator FollowUpGenerator
}

// New builds a Manager around an already-configured memory.Manager.
func New(mem *memory.Manager, estimator tokenizer.Estimator) *Manager {
	if estimator == nil {
		estimator = tokenizer.Default
	}
	return &Manager{
		transcript: transcript.New(),
		memory:     mem,
		analytics:  analytics.New(estimator),
		callbacks:  callback.New(callback.DefaultFailureThreshold),
		estimator:  estimator,
	}
}

// ID returns the conversation id. A Manager built by New has an empty id;
// Fork assigns newID to the Manager it returns.
func (m *Manager) ID() string { return m.id }

// Fork returns a new, independent Manager seeded with a copy of this
// conversation's transcript under newID, per the teacher's
// statestore.Store.Fork(ctx, sourceID, newID). The forked Manager shares
// this Manager's memory.Manager (and therefore its vector store and
// embedding service) — only the transcript is copied, never the semantic
// index: the copied messages keep their existing entries in the shared
// store, and messages appended to either Manager afterwards are indexed into
// that same store. The fork starts with its own callback
// registry and analytics cache: failure counters and token-estimate caches
// are per-Manager bookkeeping, not conversation state.
func (m *Manager) Fork(newID string) (*Manager, error) {
	if newID == "" {
		return nil, memerrors.NewValidationError("newID", "must not be empty")
	}
	return &Manager{
		id:         newID,
		transcript: m.transcript.Fork(context.Background()),
		memory:     m.memory,
		analytics:  analytics.New(m.estimator),
		callbacks:  callback.New(callback.DefaultFailureThreshold),
		estimator:  m.estimator,
	}, nil
}

// OnMessageStored registers a listener fired after every successful append.
func (m *Manager) OnMessageStored(fn callback.Func) {
	m.callbacks.Register(EventMessageStored, fn)
}

// OnSummaryCreated registers a listener fired whenever get_context
// synthesizes a new summary. The host can use this to persist the summary
// back into its own transcript, per spec.md §9's Open Questions resolution.
func (m *Manager) OnSummaryCreated(fn callback.Func) {
	m.callbacks.Register(EventSummaryCreated, fn)
}

func (m *Manager) append(ctx context.Context, role message.Role, content string, metadata map[string]any) (*message.Message, error) {
	msg, err := message.New(role, content, metadata)
	if err != nil {
		return nil, err
	}
	if err := m.transcript.Append(ctx, msg); err != nil {
		return nil, err
	}
	m.memory.StoreMessage(ctx, msg)
	m.callbacks.Fire(EventMessageStored, msg)
	return msg, nil
}

// AppendUserMessage creates and stores a user message.
func (m *Manager) AppendUserMessage(ctx context.Context, content string, metadata map[string]any) (*message.Message, error) {
	return m.append(ctx, message.RoleUser, content, metadata)
}

// AppendAssistantMessage creates and stores an assistant message.
func (m *Manager) AppendAssistantMessage(ctx context.Context, content string, metadata map[string]any) (*message.Message, error) {
	return m.append(ctx, message.RoleAssistant, content, metadata)
}

// AppendSystemMessage creates and stores a system message.
func (m *Manager) AppendSystemMessage(ctx context.Context, content string, metadata map[string]any) (*message.Message, error) {
	return m.append(ctx, message.RoleSystem, content, metadata)
}

// PromptPayload is the rendered prompt plus its trace, spec.md §4.9/§6's
// ContextPayload.
type PromptPayload struct {
	PromptText       string
	EstimatedTokens  int
	IncludedMessages []*message.Message
	Summary          string
	SemanticMessages []*message.Message
	Metadata         map[string]any
	Trace            InclusionTrace
}

// InclusionTrace is spec.md §3's InclusionTrace.
type InclusionTrace struct {
	SelectedMessageIDs []string
	ExcludedReasons    map[string]string
	StrategyUsed       string
	Timestamp          time.Time
}

// BuildPrompt implements spec.md §4.9's build_prompt: query defaults to the
// transcript's last user message when empty.
func (m *Manager) BuildPrompt(ctx context.Context, budget int, query string) PromptPayload {
	return m.buildPrompt(ctx, budget, query, false)
}

// BuildEnhancedPrompt is BuildPrompt plus semantic messages/metadata always
// populated on the payload (spec.md §4.9's build_enhanced_prompt); the two
// differ only in which fields a caller is expected to rely on, since
// PromptPayload always carries both.
func (m *Manager) BuildEnhancedPrompt(ctx context.Context, budget int, query string) PromptPayload {
	return m.buildPrompt(ctx, budget, query, true)
}

func (m *Manager) buildPrompt(ctx context.Context, budget int, query string, _ bool) PromptPayload {
	all := m.transcript.All(ctx)
	if query == "" {
		if last := m.transcript.LastUserMessage(ctx); last != nil {
			query = last.Content()
		}
	}

	result := m.memory.GetContext(ctx, all, budget, query)

	if summaryCount, _ := result.Metadata["summaryCount"].(int); summaryCount > 0 {
		m.callbacks.Fire(EventSummaryCreated, result.Summary)
	}

	ids := make([]string, len(result.Messages))
	for i, msg := range result.Messages {
		ids[i] = msg.ID()
	}
	excludedReasons, _ := result.Metadata["excludedReasons"].(map[string]string)
	if excludedReasons == nil {
		excludedReasons = make(map[string]string)
	}
	included := make(map[string]struct{}, len(result.Messages))
	for _, msg := range result.Messages {
		included[msg.ID()] = struct{}{}
	}
	for _, msg := range all {
		if _, ok := included[msg.ID()]; !ok {
			if _, has := excludedReasons[msg.ID()]; !has {
				excludedReasons[msg.ID()] = "token_budget_exceeded"
			}
		}
	}

	strategyUsed, _ := result.Metadata["strategyUsed"].(string)

	return PromptPayload{
		PromptText:       memory.Linearize(result.Messages),
		EstimatedTokens:  result.EstimatedTokens,
		IncludedMessages: result.Messages,
		Summary:          result.Summary,
		SemanticMessages: result.SemanticMessages,
		Metadata:         result.Metadata,
		Trace: InclusionTrace{
			SelectedMessageIDs: ids,
			ExcludedReasons:    excludedReasons,
			StrategyUsed:       strategyUsed,
			Timestamp:          time.Now().UTC(),
		},
	}
}

// FollowUpGenerator is an optional plug-in point for a host-supplied
// follow-up-question generator. Per spec.md §9's Open Questions, the
// follow-up generator family (heuristic/domain-specific/adaptive/AI) is
// intentionally excluded from the memory core; this registry only gives a
// host somewhere to hang one without the core depending on it.
type FollowUpGenerator func(ctx context.Context, payload PromptPayload) []string

// RegisterFollowUpGenerator installs an optional follow-up generator,
// invoked by the host after BuildPrompt/BuildEnhancedPrompt; the core never
// calls it itself.
func (m *Manager) RegisterFollowUpGenerator(g FollowUpGenerator) {
	m.followUpGenerator = g
}

// GetStats delegates to analytics (spec.md §4.9's get_stats).
func (m *Manager) GetStats(ctx context.Context) analytics.Stats {
	return m.analytics.ComputeStats(m.transcript.All(ctx))
}

// Clear empties both the transcript and the vector store.
func (m *Manager) Clear(ctx context.Context, store vectorstore.Store) error {
	m.transcript.Clear(ctx)
	if store == nil {
		return nil
	}
	if err := store.Clear(ctx); err != nil {
		return memerrors.NewStorageError("clear", err)
	}
	return nil
}
