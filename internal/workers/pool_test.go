package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasksConcurrently(t *testing.T) {
	p := New(Config{})
	var ran int64

	for i := 0; i < 20; i++ {
		err := p.Submit(context.Background(), TaskFunc{
			TaskID: "t",
			Fn: func(ctx context.Context) error {
				atomic.AddInt64(&ran, 1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	p.Shutdown()
	assert.EqualValues(t, 20, ran)

	stats := p.Stats()
	assert.EqualValues(t, 20, stats.Submitted)
	assert.EqualValues(t, 20, stats.Completed)
	assert.EqualValues(t, 0, stats.Failed)
}

func TestPoolTracksFailedTasks(t *testing.T) {
	p := New(Config{})
	err := p.Submit(context.Background(), TaskFunc{
		TaskID: "fail",
		Fn: func(ctx context.Context) error {
			return assert.AnError
		},
	})
	require.NoError(t, err)
	p.Shutdown()

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 1, stats.Completed)
}

func TestPoolRejectsSubmissionsAfterShutdown(t *testing.T) {
	p := New(Config{})
	p.Shutdown()
	err := p.Submit(context.Background(), TaskFunc{TaskID: "late", Fn: func(ctx context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestBoundedPoolRespectsWorkerCount(t *testing.T) {
	p := New(Config{WorkerCount: 2})
	var peak, current int64

	for i := 0; i < 6; i++ {
		err := p.Submit(context.Background(), TaskFunc{
			TaskID: "bounded",
			Fn: func(ctx context.Context) error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			},
		})
		require.NoError(t, err)
	}
	p.Shutdown()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}
