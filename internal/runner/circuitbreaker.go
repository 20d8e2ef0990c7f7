package runner

import (
	"sync"
	"sync/atomic"
	"time"
)

// breakerState mirrors the teacher's CircuitBreakerState.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker trips after a run of consecutive FFmpegError/Processing/
// Timeout failures from the same tool (ffmpeg or yt-dlp), failing fast instead of
// spawning more doomed child processes until a recovery window elapses.
//
// Grounded on the teacher's pkg/resilience/circuit_breaker.go, trimmed to
// the fields the runner actually needs (no onStateChange callback, no
// half-open request cap — the runner's own concurrency semaphore already
// bounds in-flight probes).
type circuitBreaker struct {
	name             string
	failureThreshold int64
	recoveryTimeout  time.Duration
	successThreshold int64

	mu               sync.Mutex
	state            breakerState
	failures         int64
	successes        int64
	stateChangedTime time.Time
}

func newCircuitBreaker(name string, failureThreshold int64, recoveryTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		successThreshold: 2,
		state:            breakerClosed,
		stateChangedTime: time.Now(),
	}
}

// Allow reports whether a new run may be attempted.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(cb.stateChangedTime) >= cb.recoveryTimeout {
			cb.setStateLocked(breakerHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	atomic.AddInt64(&cb.successes, 1)
	if cb.state == breakerClosed {
		cb.failures = 0
	}
	if cb.state == breakerHalfOpen && cb.successes >= cb.successThreshold {
		cb.setStateLocked(breakerClosed)
	}
}

func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	atomic.AddInt64(&cb.failures, 1)
	switch cb.state {
	case breakerClosed:
		if cb.failures >= cb.failureThreshold {
			cb.setStateLocked(breakerOpen)
		}
	case breakerHalfOpen:
		cb.setStateLocked(breakerOpen)
	}
}

func (cb *circuitBreaker) setStateLocked(s breakerState) {
	cb.state = s
	cb.stateChangedTime = time.Now()
	cb.failures = 0
	cb.successes = 0
}
