// Package metrics exposes the job server's live state as Prometheus gauges
// and counters, scraped on demand rather than pushed — a single Collector
// pulls fresh values from the registry, sampler, cache, and error ring each
// time GET /metrics is hit, so there's no separate update loop to keep in
// sync with the collaborators it reports on.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgemedia/mediajobs/internal/cache"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/sampler"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/workers"
)

var (
	taskTotalDesc = prometheus.NewDesc(
		"mediajobs_tasks_total", "Tasks by family and terminal/non-terminal bucket.",
		[]string{"family", "state"}, nil)
	activeTasksDesc = prometheus.NewDesc(
		"mediajobs_active_tasks", "Currently non-terminal tasks across all families.", nil, nil)
	resourceSampleDesc = prometheus.NewDesc(
		"mediajobs_resource_sample_percent", "Latest host resource sample.",
		[]string{"resource"}, nil)
	cacheEntriesDesc = prometheus.NewDesc(
		"mediajobs_cache_entries", "Artifact/metadata cache entry count.", nil, nil)
	cacheBytesDesc = prometheus.NewDesc(
		"mediajobs_cache_bytes", "Artifact/metadata cache total size in bytes.", nil, nil)
	cacheHitRatioDesc = prometheus.NewDesc(
		"mediajobs_cache_hit_ratio", "Cache hit ratio since startup.", nil, nil)
	poolCountersDesc = prometheus.NewDesc(
		"mediajobs_worker_pool_total", "Worker pool submitted/completed/failed counters.",
		[]string{"outcome"}, nil)
	errorsByKindDesc = prometheus.NewDesc(
		"mediajobs_errors_total", "Classified task errors by kind, since startup.",
		[]string{"kind"}, nil)
)

// Collector implements prometheus.Collector by reading live state from the
// server's collaborators at scrape time.
type Collector struct {
	Registry *task.Registry
	Sampler  *sampler.Sampler
	Cache    *cache.Cache
	Pool     *workers.Pool
	Errors   *classify.Ring
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- taskTotalDesc
	ch <- activeTasksDesc
	ch <- resourceSampleDesc
	ch <- cacheEntriesDesc
	ch <- cacheBytesDesc
	ch <- cacheHitRatioDesc
	ch <- poolCountersDesc
	ch <- errorsByKindDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, fs := range c.Registry.List() {
		ch <- prometheus.MustNewConstMetric(taskTotalDesc, prometheus.GaugeValue, float64(fs.Running), string(fs.Family), "running")
		ch <- prometheus.MustNewConstMetric(taskTotalDesc, prometheus.GaugeValue, float64(fs.Completed), string(fs.Family), "completed")
		ch <- prometheus.MustNewConstMetric(taskTotalDesc, prometheus.GaugeValue, float64(fs.Failed), string(fs.Family), "failed")
		ch <- prometheus.MustNewConstMetric(taskTotalDesc, prometheus.GaugeValue, float64(fs.Cancelled), string(fs.Family), "cancelled")
	}
	ch <- prometheus.MustNewConstMetric(activeTasksDesc, prometheus.GaugeValue, float64(c.Registry.ActiveCount()))

	if c.Sampler != nil {
		sample := c.Sampler.Stats()
		ch <- prometheus.MustNewConstMetric(resourceSampleDesc, prometheus.GaugeValue, sample.CPUPercent, "cpu")
		ch <- prometheus.MustNewConstMetric(resourceSampleDesc, prometheus.GaugeValue, sample.MemPercent, "memory")
		ch <- prometheus.MustNewConstMetric(resourceSampleDesc, prometheus.GaugeValue, sample.DiskPercent, "disk")
	}

	if c.Cache != nil {
		stats := c.Cache.Stats()
		ch <- prometheus.MustNewConstMetric(cacheEntriesDesc, prometheus.GaugeValue, float64(stats.Entries))
		ch <- prometheus.MustNewConstMetric(cacheBytesDesc, prometheus.GaugeValue, float64(stats.TotalBytes))
		if total := stats.Hits + stats.Misses; total > 0 {
			ch <- prometheus.MustNewConstMetric(cacheHitRatioDesc, prometheus.GaugeValue, float64(stats.Hits)/float64(total))
		}
	}

	if c.Pool != nil {
		ps := c.Pool.Stats()
		ch <- prometheus.MustNewConstMetric(poolCountersDesc, prometheus.GaugeValue, float64(ps.Submitted), "submitted")
		ch <- prometheus.MustNewConstMetric(poolCountersDesc, prometheus.GaugeValue, float64(ps.Completed), "completed")
		ch <- prometheus.MustNewConstMetric(poolCountersDesc, prometheus.GaugeValue, float64(ps.Failed), "failed")
	}

	if c.Errors != nil {
		for kind, n := range c.Errors.Stats() {
			if kind == "total" {
				continue
			}
			ch <- prometheus.MustNewConstMetric(errorsByKindDesc, prometheus.GaugeValue, float64(n), kind)
		}
	}
}
