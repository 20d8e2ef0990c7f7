// Package fsmonitor watches the scratch tree for abnormal write bursts — a
// runaway ffmpeg invocation or a stuck retry loop producing far more files
// than a single task should. It only logs; eviction stays the janitor's job.
//
// Grounded on the teacher's pkg/sync/file_watcher.go (fsnotify.Watcher
// wrapped in a context-cancellable event loop with per-path debouncing),
// trimmed down from sync-event classification to a plain event counter.
package fsmonitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgemedia/mediajobs/internal/logging"
)

// Monitor watches a fixed set of root directories and logs a warning when
// the number of filesystem events within window reaches burstThreshold.
type Monitor struct {
	watcher *fsnotify.Watcher
	log     *logging.Logger

	window         time.Duration
	burstThreshold int

	mu     sync.Mutex
	events []time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor watching roots (non-recursively — the scratch tree's
// task subdirectories are created and torn down too often for a recursive
// watch to stay consistent; each root's direct children are what matters).
func New(roots []string, window time.Duration, burstThreshold int, log *logging.Logger) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = time.Minute
	}
	if burstThreshold <= 0 {
		burstThreshold = 500
	}
	for _, root := range roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Add(root); err != nil {
			w.Close()
			return nil, err
		}
	}
	return &Monitor{
		watcher:        w,
		log:            log.WithComponent("fsmonitor"),
		window:         window,
		burstThreshold: burstThreshold,
	}, nil
}

// Start launches the watch loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the watch loop and closes the underlying fsnotify watcher.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	_ = m.watcher.Close()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.record(ev)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn("watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// record appends ev's timestamp, drops entries older than window, and warns
// once per breach (spec.md §4.7's scratch sweep assumes orderly task-driven
// writes; this is the signal something outside that assumption is running).
func (m *Monitor) record(ev fsnotify.Event) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, now)
	cutoff := now.Add(-m.window)
	i := 0
	for ; i < len(m.events); i++ {
		if m.events[i].After(cutoff) {
			break
		}
	}
	m.events = m.events[i:]

	if len(m.events) == m.burstThreshold {
		m.log.Warn("filesystem write burst detected in scratch tree", map[string]interface{}{
			"events_in_window": len(m.events),
			"window_seconds":   m.window.Seconds(),
			"path":             filepath.Dir(ev.Name),
		})
	}
}
