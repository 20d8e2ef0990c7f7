package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

func newTestSampler(t *testing.T, limits Limits) *Sampler {
	t.Helper()
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Minute)
	mitigator := NewDefaultMitigator(nil, log)
	return New(Config{Limits: limits, Interval: time.Hour, Volume: "/"}, registry, mitigator, log)
}

func defaultLimits() Limits {
	return Limits{
		MaxConcurrentTasks: 4,
		MaxCPUPercent:      90,
		MaxMemPercent:      90,
		MaxDiskPercent:     90,
		MinFreeDiskBytes:   1 << 20,
	}
}

func TestStatsForcesFreshSampleWhenHistoryEmpty(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	sample := s.Stats()
	assert.False(t, sample.Timestamp.IsZero())
}

func TestLimitsReturnsConfiguredValues(t *testing.T) {
	limits := defaultLimits()
	s := newTestSampler(t, limits)
	assert.Equal(t, limits, s.Limits())
}

func TestUpdateLimitsAppliesValidPatch(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	require.NoError(t, s.UpdateLimits(map[string]float64{"max_cpu_pct": 80}))
	assert.Equal(t, 80.0, s.Limits().MaxCPUPercent)
}

func TestUpdateLimitsRejectsOutOfRangeField(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	err := s.UpdateLimits(map[string]float64{"max_cpu_pct": 10})
	require.Error(t, err)
	assert.Equal(t, defaultLimits().MaxCPUPercent, s.Limits().MaxCPUPercent)
}

func TestUpdateLimitsRejectsOutOfRangeConcurrentTasks(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	err := s.UpdateLimits(map[string]float64{"max_concurrent_tasks": 50})
	require.Error(t, err)
}

func TestUpdateLimitsRejectsOutOfRangeMinFreeDisk(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	err := s.UpdateLimits(map[string]float64{"min_free_disk_bytes": 1})
	require.Error(t, err)
}

func TestHistoryFiltersSamplesOutsideWindow(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	s.mu.Lock()
	s.history = []Sample{
		{Timestamp: time.Now().Add(-time.Hour)},
		{Timestamp: time.Now()},
	}
	s.mu.Unlock()

	recent := s.History(time.Minute)
	assert.Len(t, recent, 1)
}

func TestForceCleanupReclaimsMemoryWithoutError(t *testing.T) {
	s := newTestSampler(t, defaultLimits())
	_, _, err := s.ForceCleanup()
	assert.NoError(t, err)
}

func TestSweepScratchOlderThanOnEmptyDirRemovesNothing(t *testing.T) {
	log := logging.New(logging.DefaultConfig())
	dir := t.TempDir()
	m := NewDefaultMitigator([]string{dir}, log)

	removed, err := m.SweepScratchOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
