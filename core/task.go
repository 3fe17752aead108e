package core

import (
	"fmt"
	"time"
)

// TaskType identifies the generation workload class, for example
// "keyframe" or "video". The per-type resource requirement table is
// keyed by it.
type TaskType string

// =============================================================================
// TaskPriority: admission tiers
// =============================================================================

type TaskPriority int

const (
	// PriorityLow is for background work that may wait indefinitely.
	PriorityLow TaskPriority = iota

	// PriorityNormal is the default tier.
	PriorityNormal

	// PriorityHigh is for interactive requests. A high task admitted
	// later still waits for the running task; there is no preemption.
	PriorityHigh
)

func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func (p TaskPriority) valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// ParsePriority converts the wire form ("low", "normal", "high") back to
// a TaskPriority.
func ParsePriority(s string) (TaskPriority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText makes priorities render as their names in JSON, both as
// values and as map keys.
func (p TaskPriority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *TaskPriority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// =============================================================================
// TaskStatus: lifecycle states
// =============================================================================

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusTimedOut  TaskStatus = "timed-out"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is final. A task reaches exactly
// one terminal status and never leaves it.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusTimedOut, TaskStatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// Task
// =============================================================================

// Task is one unit of accelerator work. The queue owns the bookkeeping
// fields; callers fill in Type, Priority and the optional knobs before
// Enqueue and treat the rest as read-only.
type Task struct {
	// ID is stamped with a UUID on enqueue when left empty.
	ID string `json:"id"`

	Type     TaskType     `json:"type"`
	Priority TaskPriority `json:"priority"`

	// Payload carries opaque generation parameters through to the
	// executor.
	Payload map[string]string `json:"payload,omitempty"`

	// Timeout is the execution budget once the task starts running.
	// Zero means the queue default applies.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RequiredMemoryMB overrides the per-type requirement table when
	// non-zero.
	RequiredMemoryMB uint64 `json:"requiredMemoryMB,omitempty"`

	Status     TaskStatus `json:"status"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	StartedAt  time.Time  `json:"startedAt,omitzero"`
	FinishedAt time.Time  `json:"finishedAt,omitzero"`

	// Failure holds the reported reason for a failed task.
	Failure string `json:"failure,omitempty"`

	// CancelRequested is set when a cancellation arrives while the task
	// is running. The executor owns the interruption; the status stays
	// running until it reports back.
	CancelRequested bool `json:"cancelRequested,omitempty"`
}

// Clone returns a deep copy: mutations of the copy's payload do not leak
// into the queue's record.
func (t Task) Clone() Task {
	c := t
	if t.Payload != nil {
		c.Payload = make(map[string]string, len(t.Payload))
		for k, v := range t.Payload {
			c.Payload[k] = v
		}
	}
	return c
}
