package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyTextIsZeroTokens(t *testing.T) {
	assert.Equal(t, 0, Default.Estimate(""))
	assert.Equal(t, 0, Default.Estimate("   "))
}

func TestShortTextIsAtLeastOneToken(t *testing.T) {
	assert.Equal(t, 1, Default.Estimate("a"))
}

func TestEstimateCeilsToCharsPerToken(t *testing.T) {
	e := NewCharEstimator(4)
	assert.Equal(t, 1, e.Estimate("abcd"))
	assert.Equal(t, 2, e.Estimate("abcde"))
	assert.Equal(t, 3, e.Estimate("abcdefghi"))
}

func TestNormalizesWhitespaceBeforeEstimating(t *testing.T) {
	e := NewCharEstimator(4)
	assert.Equal(t, e.Estimate("a  b   c"), e.Estimate("a b c"))
}

func TestNewCharEstimatorDefaultsInvalidRatio(t *testing.T) {
	e := NewCharEstimator(0)
	assert.Equal(t, defaultCharsPerToken, e.charsPerToken)
	e2 := NewCharEstimator(-5)
	assert.Equal(t, defaultCharsPerToken, e2.charsPerToken)
}

func TestEstimateAllSums(t *testing.T) {
	total := EstimateAll(Default, []string{"abcd", "efgh", ""})
	assert.Equal(t, 2, total)
}
