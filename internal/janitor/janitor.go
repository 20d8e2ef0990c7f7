// Package janitor implements the periodic sweep loop of spec.md §4.7: expire
// tasks that have been running longer than the configured timeout, purge old
// terminal records, evict stale cancellation locks, sweep the artifact cache
// for idle entries, and reap scratch directories each task family writes to.
//
// Grounded on the teacher's pkg/resilience/health_monitor.go ticker+context
// loop shape (the same one internal/sampler follows), applied here to
// filesystem and registry bookkeeping instead of connection health.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/forgemedia/mediajobs/internal/cache"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/config"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

// Janitor periodically sweeps the registry, cache, and scratch tree.
type Janitor struct {
	registry *task.Registry
	cache    *cache.Cache
	cfg      config.JanitorConfig
	log      *logging.Logger

	scratchDirs map[string]time.Duration // subdir name -> TTL

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Janitor. scratchRoot is the same root executors write their
// per-task subdirectories under (spec.md §6's layout).
func New(registry *task.Registry, c *cache.Cache, cfg config.JanitorConfig, scratchRoot string, log *logging.Logger) *Janitor {
	return &Janitor{
		registry: registry,
		cache:    c,
		cfg:      cfg,
		log:      log.WithComponent("janitor"),
		scratchDirs: map[string]time.Duration{
			filepath.Join(scratchRoot, "temp_composition"): cfg.TempCompositionTTL,
			filepath.Join(scratchRoot, "compositions"):     cfg.OutputTTL,
			filepath.Join(scratchRoot, "output"):           cfg.TranscriptionTTL,
			filepath.Join(scratchRoot, "downloads"):        cfg.DownloadTTL,
			filepath.Join(scratchRoot, "keyframes"):        cfg.KeyframeTTL,
		},
	}
}

// Start launches the sweep loop on cfg.TickInterval (default 5 minutes).
func (j *Janitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	go j.loop(ctx)
}

// Stop halts the sweep loop and waits for the in-flight tick to finish.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()
	interval := j.cfg.TickInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one full pass of every cleanup step (spec.md §4.7 steps 1-5),
// also exposed directly for POST /system/cleanup.
func (j *Janitor) Sweep() {
	expired := j.expireStaleTasks()
	purged := j.purgeOldTerminal()
	locksEvicted := j.registry.EvictStaleCancelLocks()
	cacheSwept := 0
	if j.cache != nil {
		cacheSwept = j.cache.SweepExpired()
	}
	dirsSwept := j.sweepScratchDirs()

	j.log.Info("sweep complete", map[string]interface{}{
		"expired_tasks":   expired,
		"purged_records":  purged,
		"locks_evicted":   locksEvicted,
		"cache_evicted":   cacheSwept,
		"scratch_removed": dirsSwept,
	})
}

// expireStaleTasks fails any non-terminal task whose StartedAt is older than
// the configured timeout (spec.md §4.7 step 1: "a task stuck running past
// task_timeout is presumed dead and is failed with kind Timeout").
func (j *Janitor) expireStaleTasks() int {
	timeout := j.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	cutoff := time.Now().Add(-timeout)

	count := 0
	for _, s := range j.registry.AllSummaries() {
		if s.Status.IsTerminal() {
			continue
		}
		if s.StartedAt.IsZero() || s.StartedAt.After(cutoff) {
			continue
		}
		if child, ok := j.registry.ChildHandle(s.ID); ok {
			j.log.Warn("reaping child process of a stale task", map[string]interface{}{
				"task_id": string(s.ID), "pid": child.PID,
			})
		}
		if j.registry.Fail(s.ID, classify.New(classify.Timeout, "task exceeded the janitor's stale-task timeout", nil)) {
			count++
		}
	}
	return count
}

// purgeOldTerminal removes terminal records older than twice the task
// timeout, bounding the registry's memory footprint (spec.md §4.7 step 2).
func (j *Janitor) purgeOldTerminal() int {
	timeout := j.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	cutoff := time.Now().Add(-2 * timeout)

	count := 0
	for _, s := range j.registry.AllSummaries() {
		if !s.Status.IsTerminal() || s.FinishedAt.IsZero() || s.FinishedAt.After(cutoff) {
			continue
		}
		if j.registry.Purge(s.ID) {
			count++
		}
	}
	return count
}

// sweepScratchDirs removes each scratch subdirectory's per-task entries
// older than that family's configured TTL (spec.md §4.7 step 5).
func (j *Janitor) sweepScratchDirs() int {
	removed := 0
	for dir, ttl := range j.scratchDirs {
		if ttl <= 0 {
			continue
		}
		cutoff := time.Now().Add(-ttl)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.RemoveAll(filepath.Join(dir, e.Name())); err == nil {
					removed++
				}
			}
		}
	}
	return removed
}
