package task

import (
	"os"
	"sync"
	"time"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/logging"
)

type entry struct {
	mu     sync.Mutex
	record *Record
}

// cancelLock is the per-task advisory cancellation lock of spec.md §4.1,
// auto-expired after 1h so a crashed canceller never wedges a task.
type cancelLock struct {
	acquiredAt time.Time
	expiresAt  time.Time
}

// Registry maps TaskId -> TaskRecord, partitioned by family for counting
// but unified for id lookup (spec.md §4.1). All mutation goes through
// Update/Cancel so concurrent writers from a worker goroutine and from an
// HTTP-triggered cancellation are serialized per record.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID]*entry
	locks   map[ID]*cancelLock
	lockTTL time.Duration
	log     *logging.Logger
}

// New creates an empty Registry. lockTTL defaults to 1 hour if <= 0.
func New(log *logging.Logger, lockTTL time.Duration) *Registry {
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	return &Registry{
		entries: make(map[ID]*entry),
		locks:   make(map[ID]*cancelLock),
		lockTTL: lockTTL,
		log:     log.WithComponent("registry"),
	}
}

// Create mints a fresh id and inserts a record in the running state with
// progress 0 (spec.md §4.1 create). The "pending" distinction collapses
// into "running" immediately since admission has already happened by the
// time Create is called.
func (r *Registry) Create(family Family, params interface{}) ID {
	id := NewID()
	rec := &Record{
		ID:        id,
		Family:    family,
		Status:    StatusRunning,
		Progress:  0,
		CreatedAt: time.Now(),
		StartedAt: time.Now(),
		Params:    params,
		TempPaths: make(map[string]bool),
	}

	r.mu.Lock()
	r.entries[id] = &entry{record: rec}
	r.mu.Unlock()

	return id
}

// Get returns a read-only snapshot of the record, or false if it doesn't
// exist (spec.md §3 invariant 1: unknown ids never alias another task).
func (r *Registry) Get(id ID) (Snapshot, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.snapshot(), true
}

// Exists reports whether id is present in the registry.
func (r *Registry) Exists(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Update atomically applies patch to id's record. Progress updates are
// clamped to be monotonically non-decreasing while running (spec.md §3
// invariant 2); a patch is silently dropped (no-op, not an error) if the
// record has already reached a terminal status, matching the edge case
// in spec.md §4.1 ("update on a cancelled task must not re-enter a
// non-terminal status").
func (r *Registry) Update(id ID, patch Patch) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.record

	if rec.Status.IsTerminal() {
		return false
	}

	if patch.Progress != nil {
		p := *patch.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		if p > rec.Progress {
			rec.Progress = p
		}
	}
	if patch.Message != nil {
		rec.Message = *patch.Message
	}
	if patch.CurrentStage != nil {
		rec.CurrentStage = *patch.CurrentStage
	}
	if patch.SetStarted && rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	if patch.ChildHandle != nil {
		rec.ChildHandle = patch.ChildHandle
	}
	if patch.ClearChild {
		rec.ChildHandle = nil
	}
	if patch.AddTempPath != "" {
		rec.TempPaths[patch.AddTempPath] = true
	}
	if patch.RemoveTempPath != "" {
		delete(rec.TempPaths, patch.RemoveTempPath)
	}

	if patch.Status != nil {
		switch *patch.Status {
		case StatusCompleted:
			rec.Progress = 100
			rec.Result = patch.Result
			rec.Error = nil
			rec.Status = StatusCompleted
			rec.FinishedAt = time.Now()
			r.releaseRecordLocked(id, rec)
		case StatusFailed, StatusCancelled:
			rec.Error = patch.Error
			rec.Result = nil
			rec.Status = *patch.Status
			rec.FinishedAt = time.Now()
			r.releaseRecordLocked(id, rec)
		default:
			rec.Status = *patch.Status
		}
	}

	return true
}

// releaseRecordLocked performs the terminal-transition cleanup: kill any
// still-live child process and remove every scratch path the task
// registered, then clear the bookkeeping for both. Callers hold e.mu for
// rec's entry.
//
// A family whose output lives on inside a registered path past completion
// (the keyframe pipeline serves images straight out of its output
// directory) must not register that path as a temp path in the first
// place - it is the janitor's scratch-TTL sweep that reclaims it instead,
// the same way download/composition's own finalDir is never registered.
func (r *Registry) releaseRecordLocked(id ID, rec *Record) {
	if rec.ChildHandle != nil && rec.ChildHandle.Kill != nil {
		if err := rec.ChildHandle.Kill(); err != nil {
			r.log.Warn("failed to kill child process on terminal transition", map[string]interface{}{
				"task_id": string(id), "pid": rec.ChildHandle.PID, "error": err.Error(),
			})
		}
	}
	rec.ChildHandle = nil

	for path := range rec.TempPaths {
		if err := os.RemoveAll(path); err != nil {
			r.log.Warn("failed to remove scratch path on terminal transition", map[string]interface{}{
				"task_id": string(id), "path": path, "error": err.Error(),
			})
		}
	}
	rec.TempPaths = map[string]bool{}
}

// Fail is a convenience wrapper around Update that sets status=failed with
// a classified error, used by executors and the error classifier.
func (r *Registry) Fail(id ID, te *classify.TaskError) bool {
	failed := StatusFailed
	return r.Update(id, Patch{
		Status: &failed,
		Error: &Error{
			Kind:        te.Kind.String(),
			Message:     te.Error(),
			Recoverable: te.Recoverable,
		},
	})
}

// TempPaths returns a snapshot of the record's currently-owned scratch
// paths, used by the janitor and the error classifier to sweep on failure.
func (r *Registry) TempPaths(id ID) []string {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.record.TempPaths))
	for p := range e.record.TempPaths {
		out = append(out, p)
	}
	return out
}

// ChildHandle returns the live child handle for id, if any.
func (r *Registry) ChildHandle(id ID) (*ChildHandle, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record.ChildHandle == nil {
		return nil, false
	}
	return e.record.ChildHandle, true
}

// Cancel acquires the per-task advisory lock and, if the task is
// non-terminal, signals its child process to terminate and marks the task
// cancelled (status cancelled, error kind Cancelled) (spec.md §4.1 cancel). Returns whether a
// cancellation actually took effect; cancelling an already-terminal or
// already-locked task is a no-op returning false.
func (r *Registry) Cancel(id ID) bool {
	if !r.acquireCancelLock(id) {
		return false
	}
	defer r.releaseCancelLock(id)

	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	rec := e.record
	if rec.Status.IsTerminal() {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	cancelled := StatusCancelled
	return r.Update(id, Patch{
		Status: &cancelled,
		Error: &Error{
			Kind:        "Cancelled",
			Message:     "task cancelled by request",
			Recoverable: false,
		},
	})
}

func (r *Registry) acquireCancelLock(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if lk, ok := r.locks[id]; ok && now.Before(lk.expiresAt) {
		return false
	}
	r.locks[id] = &cancelLock{acquiredAt: now, expiresAt: now.Add(r.lockTTL)}
	return true
}

func (r *Registry) releaseCancelLock(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, id)
}

// EvictStaleCancelLocks removes cancellation locks older than the registry's
// lockTTL, called by the janitor (spec.md §4.7 step 4).
func (r *Registry) EvictStaleCancelLocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, lk := range r.locks {
		if now.After(lk.expiresAt) {
			delete(r.locks, id)
			evicted++
		}
	}
	return evicted
}

// FamilySummary is one family's counts for GET /system/tasks.
type FamilySummary struct {
	Family    Family `json:"family"`
	Total     int    `json:"total"`
	Running   int    `json:"running"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
}

// List returns a per-family summary plus grand totals (spec.md §4.1 list).
func (r *Registry) List() []FamilySummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Family]*FamilySummary)
	for _, e := range r.entries {
		e.mu.Lock()
		rec := e.record
		fs, ok := counts[rec.Family]
		if !ok {
			fs = &FamilySummary{Family: rec.Family}
			counts[rec.Family] = fs
		}
		fs.Total++
		switch rec.Status {
		case StatusRunning, StatusPending:
			fs.Running++
		case StatusCompleted:
			fs.Completed++
		case StatusFailed:
			fs.Failed++
		case StatusCancelled:
			fs.Cancelled++
		}
		e.mu.Unlock()
	}

	out := make([]FamilySummary, 0, len(counts))
	for _, fs := range counts {
		out = append(out, *fs)
	}
	return out
}

// CountActiveByFamily returns the number of non-terminal tasks per family,
// the narrow read-only interface the resource sampler needs (spec.md §9:
// break the sampler<->registry cycle by having the sampler query through
// this rather than the registry knowing about the sampler).
func (r *Registry) CountActiveByFamily() map[Family]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[Family]int)
	for _, e := range r.entries {
		e.mu.Lock()
		if !e.record.Status.IsTerminal() {
			out[e.record.Family]++
		}
		e.mu.Unlock()
	}
	return out
}

// ActiveCount returns the total number of non-terminal tasks across all
// families, used by the admission controller (spec.md §3 invariant 8).
func (r *Registry) ActiveCount() int {
	total := 0
	for _, n := range r.CountActiveByFamily() {
		total += n
	}
	return total
}

// Purge removes a terminal record from the registry entirely (janitor step
// 1, records older than 2x the task timeout). Returns false if the record
// doesn't exist or isn't terminal.
func (r *Registry) Purge(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.mu.Lock()
	terminal := e.record.Status.IsTerminal()
	e.mu.Unlock()
	if !terminal {
		return false
	}
	delete(r.entries, id)
	return true
}

// TaskSummary and AllSummaries support the janitor's expiry sweep without
// leaking the internal entry type.

// TaskSummary is a lightweight view used by sweep loops.
type TaskSummary struct {
	ID         ID
	Family     Family
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
}

// AllSummaries lists all tasks' lightweight summaries for the janitor to scan.
func (r *Registry) AllSummaries() []TaskSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TaskSummary, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		out = append(out, TaskSummary{
			ID:         e.record.ID,
			Family:     e.record.Family,
			Status:     e.record.Status,
			StartedAt:  e.record.StartedAt,
			FinishedAt: e.record.FinishedAt,
		})
		e.mu.Unlock()
	}
	return out
}
