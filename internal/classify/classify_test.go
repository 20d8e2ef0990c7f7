package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyContextErrors(t *testing.T) {
	te := Classify(context.Canceled)
	require.NotNil(t, te)
	assert.Equal(t, Cancelled, te.Kind)

	te = Classify(context.DeadlineExceeded)
	require.NotNil(t, te)
	assert.Equal(t, Timeout, te.Kind)
}

func TestClassifyIsIdempotent(t *testing.T) {
	original := New(FFmpegError, "encode failed", errors.New("boom"))
	te := Classify(original)
	assert.Same(t, original, te)
}

func TestClassifyNetworkError(t *testing.T) {
	te := Classify(fmt.Errorf("dial tcp 10.0.0.1:443: connection refused"))
	assert.Equal(t, Network, te.Kind)
	assert.True(t, te.Recoverable)
}

func TestClassifyFilesystemErrorRecoverability(t *testing.T) {
	te := Classify(fmt.Errorf("write failed: no space left on device"))
	assert.Equal(t, FileSystem, te.Kind)
	assert.False(t, te.Recoverable)

	te = Classify(fmt.Errorf("could not open scratch file"))
	assert.Equal(t, Unknown, te.Kind)
}

func TestRingRecentOrderingAndStats(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Add(New(Processing, fmt.Sprintf("err-%d", i), nil), "task-1", nil)
	}

	recent := r.Recent(10)
	require.Len(t, recent, 3)
	assert.Contains(t, recent[0].Message, "err-4")
	assert.Contains(t, recent[2].Message, "err-2")

	stats := r.Stats()
	assert.EqualValues(t, 5, stats["total"])
	assert.EqualValues(t, 5, stats[Processing.String()])
}

func TestNewRingDefaultsCapacity(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, 100, r.cap)
}
