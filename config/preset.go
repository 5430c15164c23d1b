// Package config builds MemoryConfig/strategy wiring for the three named
// presets spec.md §6 defines, plus an optional YAML override loader for
// host-supplied tuning. Grounded on AltairaLabs/PromptKit's config
// conventions (plain structs unmarshaled with gopkg.in/yaml.v3, no env var
// surface — spec.md §6 explicitly rules those out for this engine).
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// Preset names spec.md §6 recognizes.
const (
	PresetDevelopment = "development"
	PresetProduction  = "production"
	PresetMinimal     = "minimal"
)

// Settings is the resolved configuration for one conversation handle,
// independent of how it was assembled (a preset, overrides, or both).
type Settings struct {
	Preset                  string
	MaxTokens               int
	EnableSemanticMemory    bool
	EnableSummarization     bool
	Persistence             string // "none", "redis", "qdrant"
	SemanticTopK            int
	MinSimilarity           float64
	MinRecentMessages       int
	MaxSummaryChunkSize     int
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

// Resolve returns the normative Settings for a named preset, per spec.md
// §6's preset-effects table.
func Resolve(preset string) (Settings, error) {
	switch preset {
	case PresetDevelopment:
		return Settings{
			Preset: preset, MaxTokens: 2000,
			EnableSemanticMemory: true, EnableSummarization: true,
			Persistence: "none", SemanticTopK: 5, MinSimilarity: 0.2,
			MinRecentMessages: 3, MaxSummaryChunkSize: 10,
			BreakerFailureThreshold: 3, BreakerCooldown: time.Minute,
		}, nil
	case PresetProduction:
		return Settings{
			Preset: preset, MaxTokens: 8000,
			EnableSemanticMemory: true, EnableSummarization: true,
			Persistence: "redis", SemanticTopK: 8, MinSimilarity: 0.25,
			MinRecentMessages: 5, MaxSummaryChunkSize: 20,
			BreakerFailureThreshold: 3, BreakerCooldown: time.Minute,
		}, nil
	case PresetMinimal:
		return Settings{
			Preset: preset, MaxTokens: 1000,
			EnableSemanticMemory: false, EnableSummarization: false,
			Persistence: "none", MinRecentMessages: 0, MaxSummaryChunkSize: 1,
			BreakerFailureThreshold: 3, BreakerCooldown: time.Minute,
		}, nil
	default:
		return Settings{}, memerrors.NewConfigurationError("unknown preset: " + preset)
	}
}

// Overrides is the subset of Settings a host may tune via YAML, per
// spec.md §6's "All knobs are passed at construction" — this loader is an
// optional convenience for hosts that prefer file-based tuning over
// constructing Settings by hand; it never reads environment variables.
type Overrides struct {
	MaxTokens            *int     `yaml:"max_tokens"`
	EnableSemanticMemory *bool    `yaml:"enable_semantic_memory"`
	EnableSummarization  *bool    `yaml:"enable_summarization"`
	SemanticTopK         *int     `yaml:"semantic_top_k"`
	MinSimilarity        *float64 `yaml:"min_similarity"`
	MinRecentMessages    *int     `yaml:"min_recent_messages"`
	MaxSummaryChunkSize  *int     `yaml:"max_summary_chunk_size"`
}

// LoadPresetOverrides reads a YAML file of Overrides and applies it on top
// of the named preset's Settings.
func LoadPresetOverrides(preset string, path string) (Settings, error) {
	settings, err := Resolve(preset)
	if err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, memerrors.NewConfigurationError("reading overrides file: " + err.Error())
	}
	var overrides Overrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Settings{}, memerrors.NewConfigurationError("parsing overrides file: " + err.Error())
	}
	applyOverrides(&settings, overrides)
	if settings.MinRecentMessages < 0 {
		return Settings{}, memerrors.NewConfigurationError("min_recent_messages must not be negative")
	}
	return settings, nil
}

func applyOverrides(s *Settings, o Overrides) {
	if o.MaxTokens != nil {
		s.MaxTokens = *o.MaxTokens
	}
	if o.EnableSemanticMemory != nil {
		s.EnableSemanticMemory = *o.EnableSemanticMemory
	}
	if o.EnableSummarization != nil {
		s.EnableSummarization = *o.EnableSummarization
	}
	if o.SemanticTopK != nil {
		s.SemanticTopK = *o.SemanticTopK
	}
	if o.MinSimilarity != nil {
		s.MinSimilarity = *o.MinSimilarity
	}
	if o.MinRecentMessages != nil {
		s.MinRecentMessages = *o.MinRecentMessages
	}
	if o.MaxSummaryChunkSize != nil {
		s.MaxSummaryChunkSize = *o.MaxSummaryChunkSize
	}
}
