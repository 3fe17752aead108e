package core

import "time"

// =============================================================================
// Introspection types
// =============================================================================

// QueueState is a point-in-time view of the admission layer, assembled
// under the queue mutex so the fields are mutually consistent. The
// resource reading is sampled just after and may lag by a moment.
type QueueState struct {
	// Depth is the number of pending tasks.
	Depth int `json:"depth"`

	// DepthByPriority breaks the pending count down per tier.
	DepthByPriority map[TaskPriority]int `json:"depthByPriority"`

	// Running is a copy of the task occupying the execution slot, nil
	// when the slot is free.
	Running *Task `json:"running,omitempty"`

	// CircuitOpen mirrors the breaker; while true nothing is released.
	CircuitOpen bool `json:"circuitOpen"`

	// ConsecutiveFailures is the breaker streak length.
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// Resource is nil when no probe is configured or the reading
	// failed.
	Resource *ResourceStatus `json:"resource,omitempty"`

	// At is when the state was assembled.
	At time.Time `json:"at"`
}

// ResourceStatus is a sampled memory reading plus the admission bar the
// current head task has to clear (its requirement plus headroom).
type ResourceStatus struct {
	FreeMB      uint64 `json:"freeMB"`
	TotalMB     uint64 `json:"totalMB"`
	ThresholdMB uint64 `json:"thresholdMB"`
}

// =============================================================================
// Collaborator contracts
// =============================================================================

// Listener receives every queue event, in emission order relative to the
// operation that produced it. Callbacks run outside the queue mutex;
// panics are recovered and logged, never propagated.
type Listener interface {
	OnQueueEvent(e Event)
}

// ListenerFunc adapts a plain function into a Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnQueueEvent(e Event) { f(e) }

// DispatchFunc hands a released task to the executor. It is invoked
// outside the queue mutex with a copy of the task; the executor reports
// the outcome back through Complete, Fail or Cancel.
type DispatchFunc func(t Task)
