// Package logger provides the module-scoped structured logger shared by every
// package in the memory engine. It wraps log/slog the way
// AltairaLabs/PromptKit's runtime/logger package does, trimmed to what a
// single-process library needs: per-module level overrides and a lowercase
// dotted module name on every record.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ModuleConfig manages per-module logging levels. More specific module names
// (e.g. "memory.retriever") override less specific ones ("memory").
type ModuleConfig struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	modules      map[string]slog.Level
}

// NewModuleConfig creates a ModuleConfig with the given default level.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{defaultLevel: defaultLevel, modules: make(map[string]slog.Level)}
}

// SetModuleLevel sets the level for a dotted module name.
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[module] = level
}

// SetDefaultLevel sets the fallback level used when no module override matches.
func (m *ModuleConfig) SetDefaultLevel(level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLevel = level
}

// LevelFor resolves the level for a module, walking up the dotted hierarchy
// ("memory.retriever" -> "memory" -> default) when no exact match exists.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for {
		if level, ok := m.modules[module]; ok {
			return level
		}
		idx := strings.LastIndex(module, ".")
		if idx == -1 {
			break
		}
		module = module[:idx]
	}
	return m.defaultLevel
}

var (
	mu           sync.RWMutex
	globalConfig = NewModuleConfig(slog.LevelInfo)
	baseHandler  slog.Handler = slog.NewJSONHandler(os.Stderr, nil)
)

// Configure replaces the base slog handler (e.g. to switch to text output
// or redirect to a different writer) and resets module level overrides.
func Configure(handler slog.Handler, defaultLevel slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	baseHandler = handler
	globalConfig = NewModuleConfig(defaultLevel)
}

// SetModuleLevel overrides the level for one dotted module name, e.g.
// "memory.retriever" or "vectorstore".
func SetModuleLevel(module string, level slog.Level) {
	globalConfig.SetModuleLevel(module, level)
}

// Get returns a logger scoped to the given dotted module name. Every record
// it emits carries a "module" attribute and is filtered by that module's
// configured level.
func Get(module string) *slog.Logger {
	mu.RLock()
	h := baseHandler
	mu.RUnlock()

	handler := &levelFilterHandler{inner: h, level: globalConfig.LevelFor(module)}
	return slog.New(handler).With(slog.String("module", module))
}

// levelFilterHandler filters records below a resolved module level before
// delegating to the inner handler.
type levelFilterHandler struct {
	inner slog.Handler
	level slog.Level
}

func (h *levelFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.inner.Enabled(ctx, level)
}

func (h *levelFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilterHandler{inner: h.inner.WithAttrs(attrs), level: h.level}
}

func (h *levelFilterHandler) WithGroup(name string) slog.Handler {
	return &levelFilterHandler{inner: h.inner.WithGroup(name), level: h.level}
}

var _ slog.Handler = (*levelFilterHandler)(nil)
