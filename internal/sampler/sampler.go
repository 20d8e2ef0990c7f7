// Package sampler implements the resource sampler of spec.md §4.3: a
// background loop sampling CPU/memory/disk, maintaining bounded history,
// counting active tasks per family, and raising mitigation actions on
// repeated threshold breaches.
//
// Grounded on the teacher's pkg/resilience/health_monitor.go loop shape
// (ticker + context + waitgroup, bounded recent-results slice), generalized
// from per-component health checks to a single host-resource sample.
package sampler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

// Sample is one ResourceSample (spec.md §3).
type Sample struct {
	Timestamp    time.Time      `json:"timestamp"`
	CPUPercent   float64        `json:"cpu_pct"`
	MemPercent   float64        `json:"mem_pct"`
	DiskPercent  float64        `json:"disk_pct"`
	FreeDiskByte int64          `json:"free_disk_bytes"`
	ActiveTasks  int            `json:"active_tasks"`
	ByFamily     map[string]int `json:"active_by_family,omitempty"`
}

// Limits mirrors spec.md §3 ResourceLimits; mutable at runtime via
// UpdateLimits.
type Limits struct {
	MaxConcurrentTasks int
	MaxCPUPercent      float64
	MaxMemPercent      float64
	MaxDiskPercent     float64
	MinFreeDiskBytes   int64
}

// registryReader is the narrow read-only interface the sampler needs from
// the task registry (spec.md §9: break the sampler<->registry cycle).
type registryReader interface {
	CountActiveByFamily() map[task.Family]int
}

// Mitigator performs the cleanup actions triggered by repeated threshold
// breaches (spec.md §4.3 step 4): memory -> reclamation hook, disk -> sweep
// scratch dirs.
type Mitigator interface {
	ReclaimMemory()
	SweepScratchOlderThan(d time.Duration) (int, error)
}

// Sampler is the background resource-sampling loop.
type Sampler struct {
	mu       sync.RWMutex
	limits   Limits
	history  []Sample
	histCap  int
	interval time.Duration
	volume   string // filesystem path whose disk usage we sample

	registry  registryReader
	mitigator Mitigator
	log       *logging.Logger

	memBreaches  int
	diskBreaches int
	cpuBreaches  int
	alertAt      int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config configures a new Sampler.
type Config struct {
	Limits         Limits
	Interval       time.Duration
	HistorySize    int
	AlertThreshold int
	Volume         string
}

// New creates a Sampler bound to registry (for active-task counts) and
// mitigator (for the memory/disk cleanup hooks).
func New(cfg Config, registry registryReader, mitigator Mitigator, log *logging.Logger) *Sampler {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 60
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 3
	}
	if cfg.Volume == "" {
		cfg.Volume = "/"
	}
	return &Sampler{
		limits:    cfg.Limits,
		histCap:   cfg.HistorySize,
		interval:  cfg.Interval,
		volume:    cfg.Volume,
		registry:  registry,
		mitigator: mitigator,
		alertAt:   cfg.AlertThreshold,
		log:       log.WithComponent("sampler"),
	}
}

// Start launches the background sampling loop (spec.md §4.3: "a background
// thread (or cooperative task) loops").
func (s *Sampler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sampler) loop(ctx context.Context) {
	defer s.wg.Done()

	sleep := s.interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		if _, err := s.sampleOnce(); err != nil {
			s.log.Warn("sample failed, backing off", map[string]interface{}{"error": err.Error()})
			sleep = s.interval * 2
			continue
		}
		sleep = s.interval
	}
}

// sampleOnce takes a single sample, appends it to history, and evaluates
// mitigation thresholds (spec.md §4.3 steps 1-4).
func (s *Sampler) sampleOnce() (Sample, error) {
	cpuPct, err := cpuPercent()
	if err != nil {
		return Sample{}, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, err
	}
	du, err := disk.Usage(s.volume)
	if err != nil {
		return Sample{}, err
	}

	byFamily := map[string]int{}
	active := 0
	if s.registry != nil {
		for fam, n := range s.registry.CountActiveByFamily() {
			byFamily[string(fam)] = n
			active += n
		}
	}

	sample := Sample{
		Timestamp:    time.Now(),
		CPUPercent:   cpuPct,
		MemPercent:   vm.UsedPercent,
		DiskPercent:  du.UsedPercent,
		FreeDiskByte: int64(du.Free),
		ActiveTasks:  active,
		ByFamily:     byFamily,
	}

	s.mu.Lock()
	s.history = append(s.history, sample)
	if len(s.history) > s.histCap {
		s.history = s.history[len(s.history)-s.histCap:]
	}
	limits := s.limits
	s.mu.Unlock()

	s.evaluateBreach(sample, limits)

	return sample, nil
}

func cpuPercent() (float64, error) {
	pcts, err := cpu.Percent(time.Second, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, nil
	}
	return pcts[0], nil
}

// evaluateBreach implements the consecutive-breach counters and mitigations
// of spec.md §4.3 step 4.
func (s *Sampler) evaluateBreach(sample Sample, limits Limits) {
	s.mu.Lock()
	if sample.MemPercent > limits.MaxMemPercent {
		s.memBreaches++
	} else {
		s.memBreaches = 0
	}
	if sample.DiskPercent > limits.MaxDiskPercent {
		s.diskBreaches++
	} else {
		s.diskBreaches = 0
	}
	if sample.CPUPercent > limits.MaxCPUPercent {
		s.cpuBreaches++
	} else {
		s.cpuBreaches = 0
	}
	memBreach := s.memBreaches >= s.alertAt
	diskBreach := s.diskBreaches >= s.alertAt
	cpuBreach := s.cpuBreaches >= s.alertAt
	if memBreach {
		s.memBreaches = 0
	}
	if diskBreach {
		s.diskBreaches = 0
	}
	s.mu.Unlock()

	if cpuBreach {
		s.log.Warn("cpu usage breached ceiling repeatedly", map[string]interface{}{"cpu_pct": sample.CPUPercent})
	}
	if memBreach && s.mitigator != nil {
		s.log.Warn("memory usage breached ceiling repeatedly, reclaiming", map[string]interface{}{"mem_pct": sample.MemPercent})
		s.mitigator.ReclaimMemory()
	}
	if diskBreach && s.mitigator != nil {
		s.log.Warn("disk usage breached ceiling repeatedly, sweeping scratch", map[string]interface{}{"disk_pct": sample.DiskPercent})
		if n, err := s.mitigator.SweepScratchOlderThan(time.Hour); err != nil {
			s.log.Error("scratch sweep failed", map[string]interface{}{"error": err.Error()})
		} else {
			s.log.Info("scratch sweep completed", map[string]interface{}{"removed": n})
		}
	}
}

// Stats returns the most recent sample, forcing a fresh one if the latest
// in history is older than one sampling interval (spec.md §4.2 step 1).
func (s *Sampler) Stats() Sample {
	s.mu.RLock()
	var latest Sample
	if len(s.history) > 0 {
		latest = s.history[len(s.history)-1]
	}
	interval := s.interval
	s.mu.RUnlock()

	if latest.Timestamp.IsZero() || time.Since(latest.Timestamp) > interval {
		if fresh, err := s.sampleOnce(); err == nil {
			return fresh
		}
	}
	return latest
}

// History returns samples within the last d.
func (s *Sampler) History(d time.Duration) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-d)
	out := make([]Sample, 0, len(s.history))
	for _, sample := range s.history {
		if sample.Timestamp.After(cutoff) {
			out = append(out, sample)
		}
	}
	return out
}

// Limits returns the current resource limits.
func (s *Sampler) Limits() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// UpdateLimits mutates the resource limits at runtime, validating each
// field's range per spec.md §4.3 (concurrent tasks 1-10; mem/disk/cpu
// ceilings 50-95%; min free disk 1-100 GiB).
func (s *Sampler) UpdateLimits(patch map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.limits
	for field, v := range patch {
		switch field {
		case "max_concurrent_tasks":
			if v < 1 || v > 10 {
				return fieldRangeError(field, 1, 10)
			}
			next.MaxConcurrentTasks = int(v)
		case "max_cpu_pct":
			if v < 50 || v > 95 {
				return fieldRangeError(field, 50, 95)
			}
			next.MaxCPUPercent = v
		case "max_mem_pct":
			if v < 50 || v > 95 {
				return fieldRangeError(field, 50, 95)
			}
			next.MaxMemPercent = v
		case "max_disk_pct":
			if v < 50 || v > 95 {
				return fieldRangeError(field, 50, 95)
			}
			next.MaxDiskPercent = v
		case "min_free_disk_bytes":
			minB, maxB := float64(1<<30), float64(100<<30)
			if v < minB || v > maxB {
				return fieldRangeError(field, minB, maxB)
			}
			next.MinFreeDiskBytes = int64(v)
		}
	}
	s.limits = next
	return nil
}

func fieldRangeError(field string, lo, hi float64) error {
	return &rangeError{field: field, lo: lo, hi: hi}
}

type rangeError struct {
	field  string
	lo, hi float64
}

func (e *rangeError) Error() string {
	return e.field + " out of range"
}

// ForceCleanup runs the mitigations unconditionally (spec.md §4.3
// force_cleanup, POST /system/resources/cleanup).
func (s *Sampler) ForceCleanup() (reclaimedMem bool, scratchRemoved int, err error) {
	if s.mitigator == nil {
		return false, 0, nil
	}
	s.mitigator.ReclaimMemory()
	n, err := s.mitigator.SweepScratchOlderThan(time.Hour)
	return true, n, err
}

// DefaultMitigator implements Mitigator against the real filesystem and
// Go runtime, sweeping the given scratch directories.
type DefaultMitigator struct {
	ScratchDirs []string
	log         *logging.Logger
}

// NewDefaultMitigator builds a Mitigator over the given scratch roots.
func NewDefaultMitigator(scratchDirs []string, log *logging.Logger) *DefaultMitigator {
	return &DefaultMitigator{ScratchDirs: scratchDirs, log: log.WithComponent("mitigator")}
}

func (m *DefaultMitigator) ReclaimMemory() {
	// Best-effort: ask the Go runtime to return memory to the OS. This call
	// cannot fail, so there is nothing to retry.
	freeOSMemory()
}

func (m *DefaultMitigator) SweepScratchOlderThan(age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, dir := range m.ScratchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				full := filepath.Join(dir, e.Name())
				if err := os.RemoveAll(full); err == nil {
					removed++
				}
			}
		}
	}
	return removed, nil
}

