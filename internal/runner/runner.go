// Package runner implements the child-process runner of spec.md §4.4: run
// an argv to completion (or timeout/cancellation), draining stdout/stderr
// concurrently, parsing ffmpeg-style progress out of stderr, and reporting
// it into a task record.
//
// Grounded on the teacher's os/exec-based subprocess patterns (the IPFS
// shell-out tests under the original pkg/ipfs tree used CommandContext +
// explicit kill-on-timeout the same way) and golang.org/x/sync's
// semaphore/errgroup, which the teacher's go.mod already carries for its
// own concurrent fan-out.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/hardware"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

// ProgressFunc receives (progress 0-100, message) updates as they're parsed.
type ProgressFunc func(progress int, message string)

// Options configures a single Run.
type Options struct {
	Timeout       time.Duration
	GracefulGrace time.Duration
	OnProgress    ProgressFunc

	// TaskID, if non-zero, is used to register/unregister a ChildHandle
	// with Registry so cancellation can find and kill this process
	// (spec.md §4.4 "registers its live children with the janitor").
	TaskID   task.ID
	Registry *task.Registry
}

// Runner executes argv vectors with a bounded concurrency ceiling, hardware
// encoder substitution, and a circuit breaker per logical tool name.
type Runner struct {
	sem    *semaphore.Weighted
	prober *hardware.Prober
	log    *logging.Logger

	mu       sync.Mutex
	breakers map[string]*circuitBreaker
}

// New creates a Runner capping concurrent runs at maxConcurrent (spec.md
// §4.4's runner-level ceiling, default 2, independent of task-level
// admission).
func New(maxConcurrent int64, prober *hardware.Prober, log *logging.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Runner{
		sem:      semaphore.NewWeighted(maxConcurrent),
		prober:   prober,
		log:      log.WithComponent("runner"),
		breakers: make(map[string]*circuitBreaker),
	}
}

func (r *Runner) breakerFor(tool string) *circuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[tool]
	if !ok {
		cb = newCircuitBreaker(tool, 5, 30*time.Second)
		r.breakers[tool] = cb
	}
	return cb
}

// durationRe matches ffmpeg's "Duration: HH:MM:SS.cc" banner line.
var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)

// timeRe matches ffmpeg's continuous "time=HH:MM:SS.cc" progress line.
var timeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

func parseHMS(h, m, s string) float64 {
	hh, _ := strconv.ParseFloat(h, 64)
	mm, _ := strconv.ParseFloat(m, 64)
	ss, _ := strconv.ParseFloat(s, 64)
	return hh*3600 + mm*60 + ss
}

// Run executes tool+argv, capturing stdout fully and draining stderr
// line-by-line through the progress parser. argv is rewritten through the
// hardware-capability layer first (spec.md §4.9).
func (r *Runner) Run(ctx context.Context, tool string, argv []string, opts Options) (stdout string, err error) {
	cb := r.breakerFor(tool)
	if !cb.Allow() {
		return "", classify.New(classify.ResourceLimit, fmt.Sprintf("%s circuit breaker open, failing fast", tool), nil)
	}

	if !r.sem.TryAcquire(1) {
		return "", classify.New(classify.ResourceLimit, "runner concurrency ceiling reached, failing fast rather than queueing", nil)
	}
	defer r.sem.Release(1)

	if r.prober != nil && tool == "ffmpeg" {
		argv = r.prober.RewriteArgv(argv)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, tool, argv...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", classify.New(classify.Processing, "failed to open stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", classify.New(classify.Processing, "failed to open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		cb.RecordFailure()
		return "", classify.New(classify.Processing, "failed to start child process", err)
	}

	if opts.Registry != nil && opts.TaskID != "" {
		proc := cmd.Process
		grace := opts.GracefulGrace
		handle := &task.ChildHandle{
			PID:          proc.Pid,
			RegisteredAt: time.Now(),
			// Kill only signals; cmd.Wait() below (the sole Wait call for
			// this process) reaps it. Calling Wait from two goroutines on
			// the same *exec.Cmd is invalid, so this never waits itself —
			// it sends SIGTERM, then unconditionally SIGKILLs after grace
			// (a no-op Signal error if the process already exited).
			Kill: func() error {
				return signalGraceful(proc, grace)
			},
		}
		opts.Registry.Update(opts.TaskID, task.Patch{ChildHandle: handle})
		defer opts.Registry.Update(opts.TaskID, task.Patch{ClearChild: true})
	}

	var stdoutBuf, stderrBuf sizeLimitedBuffer
	var totalSeconds float64
	var haveDuration bool

	g, _ := errgroup.WithContext(runCtx)
	g.Go(func() error {
		_, copyErr := io.Copy(&stdoutBuf, stdoutPipe)
		return copyErr
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stderrBuf.WriteString(line)
			stderrBuf.WriteString("\n")

			if !haveDuration {
				if m := durationRe.FindStringSubmatch(line); m != nil {
					totalSeconds = parseHMS(m[1], m[2], m[3])
					haveDuration = true
				}
			}
			if haveDuration && totalSeconds > 0 {
				if m := timeRe.FindStringSubmatch(line); m != nil {
					cur := parseHMS(m[1], m[2], m[3])
					pct := int(cur / totalSeconds * 100)
					if pct > 95 {
						pct = 95
					}
					if pct < 0 {
						pct = 0
					}
					if opts.OnProgress != nil {
						opts.OnProgress(pct, fmt.Sprintf("processing: %d%%", pct))
					}
					if opts.Registry != nil && opts.TaskID != "" {
						opts.Registry.Update(opts.TaskID, task.Patch{Progress: &pct})
					}
				}
			}
		}
		return scanner.Err()
	})

	waitErr := g.Wait()
	exitErr := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		cb.RecordFailure()
		return "", classify.New(classify.Timeout, fmt.Sprintf("%s timed out after %s", tool, timeout), runCtx.Err())
	}
	if exitErr != nil {
		cb.RecordFailure()
		return "", classify.New(classify.FFmpegError, stderrBuf.String(), exitErr)
	}
	if waitErr != nil {
		cb.RecordFailure()
		return "", classify.New(classify.Processing, "error draining child output", waitErr)
	}

	cb.RecordSuccess()
	return stdoutBuf.String(), nil
}

// Probe runs tool+argv to completion with no progress streaming, for short
// introspection commands (spec.md §4.4 probe()).
func (r *Runner) Probe(ctx context.Context, tool string, argv []string, timeout time.Duration) (string, error) {
	return r.Run(ctx, tool, argv, Options{Timeout: timeout})
}

// signalGraceful sends SIGTERM, then unconditionally SIGKILLs after grace
// (spec.md §4.4 step 4). It never calls Process.Wait: the run's own
// goroutine owns that call, and os/exec forbids waiting on a process from
// two goroutines at once.
func signalGraceful(proc *os.Process, grace time.Duration) error {
	if proc == nil {
		return nil
	}
	if grace <= 0 {
		grace = 5 * time.Second
	}
	_ = proc.Signal(syscall.SIGTERM)
	go func() {
		time.Sleep(grace)
		_ = proc.Kill()
	}()
	return nil
}

// sizeLimitedBuffer is a plain growable byte buffer; extracted as a named
// type so Run's stdout/stderr capture reads clearly at the call site.
type sizeLimitedBuffer struct {
	data []byte
}

func (b *sizeLimitedBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *sizeLimitedBuffer) WriteString(s string) {
	b.data = append(b.data, s...)
}

func (b *sizeLimitedBuffer) String() string {
	return string(b.data)
}
