package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// DefaultMaxBatchSize bounds how many texts DeterministicEmbedder.EmbedBatch
// processes per internal sub-batch, per spec.md §4.3.
const DefaultMaxBatchSize = 64

// DeterministicEmbedder is the reference embedding service from spec.md
// §4.3: a reproducible, dependency-free embedder whose cosine similarity
// correlates weakly with lexical overlap, sufficient for exercising the
// retrieval surface in tests and in the "development" preset.
//
// It seeds a PRNG from hash(normalized text), fills the vector with
// standard-normal samples via Box-Muller, perturbs by per-codepoint and
// per-word frequency, then optionally L2-normalizes.
type DeterministicEmbedder struct {
	dimensions   int
	normalize    bool
	maxBatchSize int
	limiter      *rate.Limiter
}

// Option configures a DeterministicEmbedder.
type Option func(*DeterministicEmbedder)

// WithNormalization enables unit-length output vectors.
func WithNormalization(enabled bool) Option {
	return func(e *DeterministicEmbedder) { e.normalize = enabled }
}

// WithMaxBatchSize overrides the sub-batch size used by EmbedBatch.
func WithMaxBatchSize(n int) Option {
	return func(e *DeterministicEmbedder) {
		if n > 0 {
			e.maxBatchSize = n
		}
	}
}

// WithRateLimit caps the rate of Embed/EmbedBatch calls, guarding downstream
// indexing from overwhelming a shared vector store during bulk backfills.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *DeterministicEmbedder) {
		if perSecond > 0 && burst > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewDeterministicEmbedder builds a reference embedder producing vectors of
// the given dimensionality.
func NewDeterministicEmbedder(dimensions int, opts ...Option) *DeterministicEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	e := &DeterministicEmbedder{
		dimensions:   dimensions,
		maxBatchSize: DefaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions implements Service.
func (e *DeterministicEmbedder) Dimensions() int { return e.dimensions }

// MaxBatchSize implements Service.
func (e *DeterministicEmbedder) MaxBatchSize() int { return e.maxBatchSize }

// Embed implements Service.
func (e *DeterministicEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, memerrors.NewEmbeddingError("rate limit wait", err)
		}
	}
	return e.embedOne(text)
}

// EmbedBatch implements Service, processing texts in sub-batches bounded by
// MaxBatchSize.
func (e *DeterministicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += e.maxBatchSize {
		end := start + e.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, memerrors.NewEmbeddingError("rate limit wait", err)
			}
		}
		for i := start; i < end; i++ {
			v, err := e.embedOne(texts[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
	}
	return out, nil
}

func (e *DeterministicEmbedder) embedOne(text string) ([]float64, error) {
	normalized := normalizeText(text)
	if normalized == "" {
		return make([]float64, e.dimensions), nil
	}

	seed := hashString(normalized)
	rng := newSplitMix64(seed)

	v := make([]float64, e.dimensions)
	for i := 0; i < e.dimensions; i += 2 {
		z0, z1 := boxMuller(rng)
		v[i] = z0
		if i+1 < e.dimensions {
			v[i+1] = z1
		}
	}

	for _, r := range normalized {
		idx := int(r) % e.dimensions
		v[idx] += 0.01
	}
	for _, word := range strings.Fields(normalized) {
		idx := int(hashString(word)%uint64(e.dimensions)) % e.dimensions
		if idx < 0 {
			idx += e.dimensions
		}
		v[idx] += 0.05
	}

	if e.normalize {
		v = Normalize(v)
	}

	if err := validateVector(v, e.dimensions); err != nil {
		return nil, err
	}
	return v, nil
}

func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// splitMix64 is a small, fast, deterministic PRNG used to turn a 64-bit seed
// into a stream of pseudo-random 64-bit values for Box-Muller sampling.
type splitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed} }

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// nextFloat returns a uniform value in (0, 1), guarding against exactly 0 so
// log(0) never occurs in boxMuller.
func (s *splitMix64) nextFloat() float64 {
	const mantissaBits = 53
	v := s.next() >> (64 - mantissaBits)
	f := float64(v) / float64(uint64(1)<<mantissaBits)
	if f <= 0 {
		f = 1e-12
	}
	return f
}

// boxMuller produces two independent standard-normal samples from two
// uniform draws, guarding log(0) per spec.md §4.3.
func boxMuller(rng *splitMix64) (float64, float64) {
	u1 := rng.nextFloat()
	u2 := rng.nextFloat()
	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	return r * math.Cos(theta), r * math.Sin(theta)
}

var _ Service = (*DeterministicEmbedder)(nil)
