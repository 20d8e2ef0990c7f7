// Package admission implements the admission controller of spec.md §4.2: a
// pre-accept gate evaluated on every task-creating endpoint, advisory only
// (it holds no lock across the task's lifetime).
package admission

import (
	"fmt"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/sampler"
)

// Controller gates task creation against the latest resource sample and
// the registry's active-task count (spec.md §3 invariant 8).
type Controller struct {
	sampler *sampler.Sampler
}

// New creates a Controller backed by s.
func New(s *sampler.Sampler) *Controller {
	return &Controller{sampler: s}
}

// Admit evaluates the rejection conditions of spec.md §3 invariant 8
// against the latest (possibly freshly-forced) sample. On rejection it
// returns a *classify.TaskError of kind ResourceLimit naming the breached
// limit, matching the HTTP surface's requirement (§6) that a 503 body
// contain a human-readable message naming the breach.
func (c *Controller) Admit() *classify.TaskError {
	sample := c.sampler.Stats()
	limits := c.sampler.Limits()

	switch {
	case sample.ActiveTasks >= limits.MaxConcurrentTasks:
		return classify.New(classify.ResourceLimit,
			fmt.Sprintf("concurrent task limit reached (%d/%d active)", sample.ActiveTasks, limits.MaxConcurrentTasks), nil)
	case sample.MemPercent > limits.MaxMemPercent:
		return classify.New(classify.ResourceLimit,
			fmt.Sprintf("memory usage too high (%.1f%% > %.1f%%)", sample.MemPercent, limits.MaxMemPercent), nil)
	case sample.DiskPercent > limits.MaxDiskPercent:
		return classify.New(classify.ResourceLimit,
			fmt.Sprintf("disk usage too high (%.1f%% > %.1f%%)", sample.DiskPercent, limits.MaxDiskPercent), nil)
	case sample.FreeDiskByte < limits.MinFreeDiskBytes:
		return classify.New(classify.ResourceLimit,
			fmt.Sprintf("free disk space too low (%d bytes < %d bytes)", sample.FreeDiskByte, limits.MinFreeDiskBytes), nil)
	case sample.CPUPercent > limits.MaxCPUPercent:
		return classify.New(classify.ResourceLimit,
			fmt.Sprintf("cpu usage too high (%.1f%% > %.1f%%)", sample.CPUPercent, limits.MaxCPUPercent), nil)
	default:
		return nil
	}
}
