package fsmonitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/logging"
)

func newTestMonitor(t *testing.T, window time.Duration, burstThreshold int) *Monitor {
	t.Helper()
	root := t.TempDir()
	m, err := New([]string{root}, window, burstThreshold, logging.New(logging.DefaultConfig()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.watcher.Close() })
	return m
}

func TestNewCreatesMissingRootAndWatchesIt(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist-yet")
	m, err := New([]string{root}, time.Minute, 10, logging.New(logging.DefaultConfig()))
	require.NoError(t, err)
	defer m.watcher.Close()

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRecordDropsEventsOutsideWindow(t *testing.T) {
	m := newTestMonitor(t, 10*time.Millisecond, 100)

	m.record(fsnotify.Event{Name: "a"})
	time.Sleep(20 * time.Millisecond)
	m.record(fsnotify.Event{Name: "b"})

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.events, 1)
}

func TestRecordAccumulatesWithinWindow(t *testing.T) {
	m := newTestMonitor(t, time.Minute, 100)

	for i := 0; i < 5; i++ {
		m.record(fsnotify.Event{Name: "f"})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.events, 5)
}

func TestStartStopObservesRealFilesystemEvents(t *testing.T) {
	root := t.TempDir()
	m, err := New([]string{root}, time.Minute, 1000, logging.New(logging.DefaultConfig()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)

	cancel()
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotEmpty(t, m.events)
}
