package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/config"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

func newTestJanitor(t *testing.T, cfg config.JanitorConfig) (*Janitor, *task.Registry, string) {
	t.Helper()
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Hour)
	scratchRoot := t.TempDir()
	return New(registry, nil, cfg, scratchRoot, log), registry, scratchRoot
}

func TestSweepExpiresTasksRunningPastTimeout(t *testing.T) {
	j, registry, _ := newTestJanitor(t, config.JanitorConfig{TaskTimeout: time.Millisecond})
	id := registry.Create(task.FamilyDownload, nil)
	time.Sleep(5 * time.Millisecond)

	j.Sweep()

	snap, ok := registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, task.StatusFailed, snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "Timeout", snap.Error.Kind)
}

func TestSweepLeavesFreshTasksRunning(t *testing.T) {
	j, registry, _ := newTestJanitor(t, config.JanitorConfig{TaskTimeout: time.Hour})
	id := registry.Create(task.FamilyKeyframe, nil)

	j.Sweep()

	snap, _ := registry.Get(id)
	assert.Equal(t, task.StatusRunning, snap.Status)
}

func TestSweepPurgesOldTerminalRecords(t *testing.T) {
	j, registry, _ := newTestJanitor(t, config.JanitorConfig{TaskTimeout: time.Millisecond})
	id := registry.Create(task.FamilyDownload, nil)
	registry.Cancel(id)
	time.Sleep(5 * time.Millisecond)

	j.Sweep()

	assert.False(t, registry.Exists(id))
}

func TestSweepRemovesExpiredScratchEntriesOnly(t *testing.T) {
	j, _, scratchRoot := newTestJanitor(t, config.JanitorConfig{
		TaskTimeout:  time.Hour,
		DownloadTTL:  time.Millisecond,
	})

	downloads := filepath.Join(scratchRoot, "downloads")
	require.NoError(t, os.MkdirAll(downloads, 0o755))

	oldEntry := filepath.Join(downloads, "old-task")
	require.NoError(t, os.Mkdir(oldEntry, 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(oldEntry, old, old))

	freshEntry := filepath.Join(downloads, "fresh-task")
	require.NoError(t, os.Mkdir(freshEntry, 0o755))

	j.Sweep()

	_, err := os.Stat(oldEntry)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshEntry)
	assert.NoError(t, err)
}

func TestSweepToleratesNilCache(t *testing.T) {
	j, _, _ := newTestJanitor(t, config.JanitorConfig{TaskTimeout: time.Hour})
	assert.NotPanics(t, func() { j.Sweep() })
}
