package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

func TestCollectorGathersTaskAndErrorMetrics(t *testing.T) {
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Hour)
	registry.Create(task.FamilyDownload, nil)

	errs := classify.NewRing(10)
	errs.Add(classify.New(classify.Network, "dial failed", nil), "t1", nil)

	c := &Collector{Registry: registry, Errors: errs}

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawActive, sawErrors bool
	for _, mf := range families {
		switch mf.GetName() {
		case "mediajobs_active_tasks":
			sawActive = true
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(1), mf.Metric[0].GetGauge().GetValue())
		case "mediajobs_errors_total":
			sawErrors = true
			assert.Equal(t, float64(1), mf.Metric[0].GetGauge().GetValue())
		}
	}
	assert.True(t, sawActive)
	assert.True(t, sawErrors)
}

func TestCollectorToleratesNilOptionalCollaborators(t *testing.T) {
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Hour)
	c := &Collector{Registry: registry}

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	_, err := reg.Gather()
	assert.NoError(t, err)
}
