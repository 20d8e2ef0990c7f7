package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/sampler"
	"github.com/forgemedia/mediajobs/internal/task"
)

func newTestSampler(t *testing.T, limits sampler.Limits) *sampler.Sampler {
	t.Helper()
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Minute)
	mitigator := sampler.NewDefaultMitigator(nil, log)
	return sampler.New(sampler.Config{Limits: limits, Volume: "/"}, registry, mitigator, log)
}

func TestAdmitAllowsWhenWithinLimits(t *testing.T) {
	s := newTestSampler(t, sampler.Limits{
		MaxConcurrentTasks: 10,
		MaxCPUPercent:      99,
		MaxMemPercent:      99,
		MaxDiskPercent:     99,
		MinFreeDiskBytes:   0,
	})
	c := New(s)
	assert.Nil(t, c.Admit())
}

func TestAdmitRejectsOnConcurrentTaskCeiling(t *testing.T) {
	s := newTestSampler(t, sampler.Limits{
		MaxConcurrentTasks: 0,
		MaxCPUPercent:      99,
		MaxMemPercent:      99,
		MaxDiskPercent:     99,
	})
	c := New(s)
	te := c.Admit()
	require.NotNil(t, te)
	assert.Equal(t, classify.ResourceLimit, te.Kind)
	assert.Contains(t, te.Message, "concurrent task limit")
}

func TestAdmitRejectsOnMinFreeDiskCeiling(t *testing.T) {
	s := newTestSampler(t, sampler.Limits{
		MaxConcurrentTasks: 10,
		MaxCPUPercent:      99,
		MaxMemPercent:      99,
		MaxDiskPercent:     99,
		MinFreeDiskBytes:   1 << 62,
	})
	c := New(s)
	te := c.Admit()
	require.NotNil(t, te)
	assert.Equal(t, classify.ResourceLimit, te.Kind)
	assert.Contains(t, te.Message, "free disk space")
}
