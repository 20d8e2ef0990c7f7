// Package task implements the task registry and lifecycle manager of
// spec.md §4.1: a uniform TaskRecord across the four task families, with
// status/progress/error reporting and cooperative cancellation.
package task

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque, unique task identifier (spec.md §3 TaskId).
type ID string

// NewID mints a fresh task id.
func NewID() ID {
	return ID(uuid.NewString())
}

// Family is one of the four task families (spec.md §3 TaskFamily).
type Family string

const (
	FamilyTranscription Family = "transcription"
	FamilyDownload      Family = "download"
	FamilyKeyframe      Family = "keyframe"
	FamilyComposition   Family = "composition"
)

// Status is a TaskRecord's lifecycle state (spec.md §3).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is one of {completed, failed, cancelled}.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Error mirrors spec.md §3's error shape ({kind, message, recoverable}).
type Error struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ChildHandle is a reference to a live external process owned by a task
// (spec.md §3 child_handle). The runner registers/unregisters it with the
// task record directly — there is no second, global process map (see the
// Open Question in spec.md §9: "prefer the registry" as the single source
// of truth).
type ChildHandle struct {
	PID         int
	Kill        func() error
	RegisteredAt time.Time
}

// Record is the polymorphic per-task state spec.md §3 describes. Params and
// Result are family-specific and carried as interface{}; handlers project
// them into the family's concrete request/result types.
type Record struct {
	ID           ID
	Family       Family
	Status       Status
	Progress     int
	Message      string
	CreatedAt    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	CurrentStage string // composition only

	Params interface{}
	Result interface{}
	Error  *Error

	TempPaths   map[string]bool
	ChildHandle *ChildHandle
}

// Snapshot is a read-only copy of a Record safe to hand to callers outside
// the registry's lock (e.g. HTTP handlers projecting JSON responses).
type Snapshot struct {
	ID           ID          `json:"task_id"`
	Family       Family      `json:"family"`
	Status       Status      `json:"status"`
	Progress     int         `json:"progress"`
	Message      string      `json:"message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    time.Time   `json:"started_at,omitempty"`
	FinishedAt   time.Time   `json:"finished_at,omitempty"`
	CurrentStage string      `json:"current_stage,omitempty"`
	Result       interface{} `json:"result,omitempty"`
	Error        *Error      `json:"error,omitempty"`
}

func (r *Record) snapshot() Snapshot {
	return Snapshot{
		ID:           r.ID,
		Family:       r.Family,
		Status:       r.Status,
		Progress:     r.Progress,
		Message:      r.Message,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		CurrentStage: r.CurrentStage,
		Result:       r.Result,
		Error:        r.Error,
	}
}

// Patch describes a partial, atomic mutation applied via Registry.Update.
type Patch struct {
	Status       *Status
	Progress     *int
	Message      *string
	CurrentStage *string
	Result       interface{}
	Error        *Error
	SetStarted   bool
	SetFinished  bool
	ChildHandle  *ChildHandle
	ClearChild   bool
	AddTempPath  string
	RemoveTempPath string
}
