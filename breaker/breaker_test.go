package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsThreshold(t *testing.T) {
	b := New(0, time.Minute)
	assert.Equal(t, 3, b.failureThreshold)
}

func TestClosedAllowsAndToleratesFailuresBelowThreshold(t *testing.T) {
	b := New(3, time.Minute)
	require.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestTripsOpenAtThreshold(t *testing.T) {
	tripped := false
	b := New(3, time.Minute)
	b.OnTrip(func() { tripped = true })

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.True(t, tripped)
	assert.False(t, b.Allow())
}

func TestHalfOpenAfterCooldownAllowsOneProbe(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	require.Equal(t, Open, b.State())
	assert.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow(), "first call after cooldown should probe")
	assert.Equal(t, HalfOpen, b.State())
	assert.False(t, b.Allow(), "a second concurrent probe must not be allowed")
}

func TestHalfOpenProbeSuccessCloses(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	trips := 0
	b := New(1, 10*time.Millisecond)
	b.OnTrip(func() { trips++ })
	b.RecordFailure()
	assert.Equal(t, 1, trips)

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.Equal(t, 2, trips)
}
