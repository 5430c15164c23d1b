package memerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorUnwrapsToSentinel(t *testing.T) {
	err := NewValidationError("content", "must not be empty")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "content")
}

func TestStorageErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("store", cause)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmbeddingErrorWithoutCause(t *testing.T) {
	err := NewEmbeddingError("wrong vector length", nil)
	assert.True(t, errors.Is(err, ErrEmbedding))
	assert.Equal(t, "embedding: wrong vector length", err.Error())
}

func TestSummarizerErrorReportsAttempts(t *testing.T) {
	err := NewSummarizerError(3, errors.New("timeout"))
	assert.True(t, errors.Is(err, ErrSummarizer))
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("unknown preset: bogus")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "bogus")
}
