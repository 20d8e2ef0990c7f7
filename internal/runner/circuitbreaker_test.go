package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker("ffmpeg", 3, time.Hour)

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
	cb.RecordFailure()

	assert.False(t, cb.Allow())
}

func TestCircuitBreakerHalfOpensAfterRecoveryWindow(t *testing.T) {
	cb := newCircuitBreaker("yt-dlp", 1, time.Millisecond)
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	time.Sleep(5 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, breakerHalfOpen, cb.state)
}

func TestCircuitBreakerClosesAfterSuccessesInHalfOpen(t *testing.T) {
	cb := newCircuitBreaker("ffmpeg", 1, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require := assert.New(t)
	require.True(cb.Allow())

	cb.RecordSuccess()
	require.Equal(breakerHalfOpen, cb.state)
	cb.RecordSuccess()
	require.Equal(breakerClosed, cb.state)
}

func TestCircuitBreakerReopensOnFailureDuringHalfOpen(t *testing.T) {
	cb := newCircuitBreaker("ffmpeg", 1, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow()

	cb.RecordFailure()
	assert.Equal(t, breakerOpen, cb.state)
}
