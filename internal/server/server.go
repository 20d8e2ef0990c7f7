// Package server is the composition root of spec.md §9: a single Server
// value owning every collaborator by composition (registry, admission,
// sampler, runner, cache, hardware prober, janitor, filesystem burst
// monitor, worker pool, error ring, HTTP router) rather than leaning on the
// package-level singletons the original source used.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/forgemedia/mediajobs/internal/admission"
	"github.com/forgemedia/mediajobs/internal/cache"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/config"
	"github.com/forgemedia/mediajobs/internal/executor"
	"github.com/forgemedia/mediajobs/internal/fsmonitor"
	"github.com/forgemedia/mediajobs/internal/hardware"
	"github.com/forgemedia/mediajobs/internal/httpapi"
	"github.com/forgemedia/mediajobs/internal/janitor"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/runner"
	"github.com/forgemedia/mediajobs/internal/sampler"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/workers"
)

const errorRingCapacity = 100

// Server owns every long-lived collaborator and the HTTP listener built
// from them. Construct with New, then call Run.
type Server struct {
	cfg *config.Config
	log *logging.Logger

	registry  *task.Registry
	samplerS  *sampler.Sampler
	admission *admission.Controller
	runnerR   *runner.Runner
	cacheC    *cache.Cache
	hw        *hardware.Prober
	janitorJ  *janitor.Janitor
	fsWatch   *fsmonitor.Monitor
	pool      *workers.Pool
	errors    *classify.Ring

	httpServer *http.Server
}

// New wires every collaborator together from cfg, in the dependency order
// spec.md §9 implies: the sampler needs the registry (for active-task
// counts) and a mitigator (built from the cache/scratch roots); the
// admission controller needs the sampler; the runner needs the hardware
// prober; the executors need all of the above; the janitor needs the
// registry and cache; the HTTP handler needs everything.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	for _, sub := range []string{"output", "downloads", "keyframes", "compositions", "temp_composition"} {
		if err := os.MkdirAll(filepath.Join(cfg.Server.ScratchRoot, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create scratch directory %s: %w", sub, err)
		}
	}

	registry := task.New(log, cfg.Janitor.CancelLockTTL)

	hw := hardware.New(cfg.Tools.Codec)

	scratchDirs := []string{
		filepath.Join(cfg.Server.ScratchRoot, "temp_composition"),
		filepath.Join(cfg.Server.ScratchRoot, "downloads"),
		filepath.Join(cfg.Server.ScratchRoot, "keyframes"),
	}
	mitigator := sampler.NewDefaultMitigator(scratchDirs, log)

	samplerS := sampler.New(sampler.Config{
		Limits: sampler.Limits{
			MaxConcurrentTasks: cfg.Resources.MaxConcurrentTasks,
			MaxCPUPercent:      cfg.Resources.MaxCPUPercent,
			MaxMemPercent:      cfg.Resources.MaxMemPercent,
			MaxDiskPercent:     cfg.Resources.MaxDiskPercent,
			MinFreeDiskBytes:   cfg.Resources.MinFreeDiskBytesValue(),
		},
		Interval:       cfg.Resources.SampleInterval,
		HistorySize:    cfg.Resources.HistorySize,
		AlertThreshold: cfg.Resources.AlertThreshold,
		Volume:         cfg.Server.ScratchRoot,
	}, registry, mitigator, log)

	admissionC := admission.New(samplerS)

	runnerR := runner.New(int64(cfg.Runner.MaxConcurrentRuns), hw, log)

	cacheC, err := cache.Open(cfg.Cache.Root, cfg.Cache.MaxSizeBytes(), cfg.Cache.IdleTTL, cfg.Cache.BloomCapacity, log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	janitorJ := janitor.New(registry, cacheC, cfg.Janitor, cfg.Server.ScratchRoot, log)

	fsWatch, err := fsmonitor.New([]string{cfg.Server.ScratchRoot}, time.Minute, 500, log)
	if err != nil {
		return nil, fmt.Errorf("start filesystem monitor: %w", err)
	}

	pool := workers.New(workers.Config{})

	errors := classify.NewRing(errorRingCapacity)

	exec := executor.Deps{
		Config:    cfg,
		Registry:  registry,
		Runner:    runnerR,
		Cache:     cacheC,
		Hardware:  hw,
		ErrorRing: errors,
		Log:       log,
	}

	h := &httpapi.Handler{
		Registry:  registry,
		Admission: admissionC,
		Sampler:   samplerS,
		Cache:     cacheC,
		Hardware:  hw,
		Janitor:   janitorJ,
		Pool:      pool,
		Exec:      exec,
		Errors:    errors,
		Log:       log,
		StartedAt: time.Now(),
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: httpapi.NewRouter(h),
	}

	return &Server{
		cfg:        cfg,
		log:        log,
		registry:   registry,
		samplerS:   samplerS,
		admission:  admissionC,
		runnerR:    runnerR,
		cacheC:     cacheC,
		hw:         hw,
		janitorJ:   janitorJ,
		fsWatch:    fsWatch,
		pool:       pool,
		errors:     errors,
		httpServer: httpServer,
	}, nil
}

// Run starts the background loops (sampler, janitor, filesystem monitor)
// and blocks serving HTTP until ctx is cancelled, then shuts everything
// down in reverse dependency order.
func (s *Server) Run(ctx context.Context) error {
	s.samplerS.Start(ctx)
	s.janitorJ.Start(ctx)
	s.fsWatch.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", map[string]interface{}{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)

	s.janitorJ.Stop()
	s.samplerS.Stop()
	s.fsWatch.Stop()
	s.pool.Shutdown()

	return nil
}
