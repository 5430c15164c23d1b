// Package analytics implements the stats half of C10: aggregate counts,
// token sums, and distribution analyses over a transcript. Grounded on
// spec.md §4.10; there is no equivalent in AltairaLabs/PromptKit's
// runtime/statestore, so this is original code in the teacher's idiom
// (plain functions over slices, no framework).
package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/Liv-Coder/chat-memory-sub001/message"
	"github.com/Liv-Coder/chat-memory-sub001/tokenizer"
)

// Stats is the aggregate conversation summary spec.md §4.10 calls for.
type Stats struct {
	TotalMessages  int
	MessagesByRole map[message.Role]int
	TotalTokens    int
	TokensByRole   map[message.Role]int
	FirstMessageAt time.Time
	LastMessageAt  time.Time
	Duration       time.Duration
}

// Distribution summarizes a numeric distribution (e.g. per-message token
// counts): min/max/median/average plus per-role percentages of the total.
type Distribution struct {
	Min             float64
	Max             float64
	Median          float64
	Average         float64
	RolePercentages map[message.Role]float64
}

// tokenCacheKey caches a token estimate by (message id, content length), the
// same two-part key spec.md §4.10 specifies — cheap to compute, and stable
// as long as a message's content doesn't change (which it never does; C2
// messages are immutable).
type tokenCacheKey struct {
	id     string
	length int
}

// Analyzer computes Stats and Distribution over a transcript, caching token
// estimates across calls.
type Analyzer struct {
	estimator tokenizer.Estimator

	mu    sync.Mutex
	cache map[tokenCacheKey]int
}

// New builds an Analyzer backed by the given estimator.
func New(estimator tokenizer.Estimator) *Analyzer {
	if estimator == nil {
		estimator = tokenizer.Default
	}
	return &Analyzer{estimator: estimator, cache: make(map[tokenCacheKey]int)}
}

func (a *Analyzer) estimate(m *message.Message) int {
	key := tokenCacheKey{id: m.ID(), length: len(m.Content())}
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.cache[key]; ok {
		return v
	}
	v := a.estimator.Estimate(m.Content())
	a.cache[key] = v
	return v
}

// ComputeStats implements spec.md §4.10's totals/sums/range/duration.
func (a *Analyzer) ComputeStats(messages []*message.Message) Stats {
	stats := Stats{
		MessagesByRole: make(map[message.Role]int),
		TokensByRole:   make(map[message.Role]int),
	}
	if len(messages) == 0 {
		return stats
	}
	stats.TotalMessages = len(messages)
	for _, m := range messages {
		stats.MessagesByRole[m.Role()]++
		tokens := a.estimate(m)
		stats.TotalTokens += tokens
		stats.TokensByRole[m.Role()] += tokens
		if stats.FirstMessageAt.IsZero() || m.Timestamp().Before(stats.FirstMessageAt) {
			stats.FirstMessageAt = m.Timestamp()
		}
		if stats.LastMessageAt.IsZero() || m.Timestamp().After(stats.LastMessageAt) {
			stats.LastMessageAt = m.Timestamp()
		}
	}
	stats.Duration = stats.LastMessageAt.Sub(stats.FirstMessageAt)
	return stats
}

// TokenDistribution computes a Distribution over per-message token counts.
func (a *Analyzer) TokenDistribution(messages []*message.Message) Distribution {
	if len(messages) == 0 {
		return Distribution{RolePercentages: map[message.Role]float64{}}
	}

	values := make([]float64, len(messages))
	roleCounts := make(map[message.Role]int)
	sum := 0.0
	for i, m := range messages {
		v := float64(a.estimate(m))
		values[i] = v
		sum += v
		roleCounts[m.Role()]++
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rolePct := make(map[message.Role]float64, len(roleCounts))
	for role, count := range roleCounts {
		rolePct[role] = 100 * float64(count) / float64(len(messages))
	}

	return Distribution{
		Min:             sorted[0],
		Max:             sorted[len(sorted)-1],
		Median:          median(sorted),
		Average:         sum / float64(len(values)),
		RolePercentages: rolePct,
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
