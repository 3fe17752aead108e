package core

import "time"

// EventKind names each queue occurrence. The strings are wire-stable:
// they appear in logs, the HTTP API and metric dumps.
type EventKind string

const (
	EventEnqueue      EventKind = "enqueue"
	EventDequeue      EventKind = "dequeue"
	EventComplete     EventKind = "complete"
	EventFail         EventKind = "fail"
	EventCancel       EventKind = "cancel"
	EventTimeout      EventKind = "timeout"
	EventCircuitOpen  EventKind = "circuit-open"
	EventCircuitClose EventKind = "circuit-close"
	EventResourceGate EventKind = "resource-gate"
)

// Event is the closed set of occurrences the queue publishes to
// listeners. Each concrete type carries only the payload that applies to
// it; consumers dispatch with a type switch.
type Event interface {
	Kind() EventKind
	At() time.Time

	// queueEvent keeps the set closed to this package.
	queueEvent()
}

// TaskEnqueued is published after a task is accepted into the pending
// set. Depth is the pending count including the new task.
type TaskEnqueued struct {
	Timestamp time.Time    `json:"timestamp"`
	TaskID    string       `json:"taskId"`
	TaskType  TaskType     `json:"taskType"`
	Priority  TaskPriority `json:"priority"`
	Depth     int          `json:"depth"`
}

func (TaskEnqueued) Kind() EventKind { return EventEnqueue }
func (e TaskEnqueued) At() time.Time { return e.Timestamp }
func (TaskEnqueued) queueEvent()     {}

// TaskDequeued is published when a task takes the execution slot. Wait
// is the time spent pending; Depth is the pending count left behind.
type TaskDequeued struct {
	Timestamp time.Time     `json:"timestamp"`
	TaskID    string        `json:"taskId"`
	TaskType  TaskType      `json:"taskType"`
	Priority  TaskPriority  `json:"priority"`
	Wait      time.Duration `json:"wait"`
	Depth     int           `json:"depth"`
}

func (TaskDequeued) Kind() EventKind { return EventDequeue }
func (e TaskDequeued) At() time.Time { return e.Timestamp }
func (TaskDequeued) queueEvent()     {}

// TaskCompleted is published when the executor reports success.
type TaskCompleted struct {
	Timestamp time.Time     `json:"timestamp"`
	TaskID    string        `json:"taskId"`
	TaskType  TaskType      `json:"taskType"`
	Priority  TaskPriority  `json:"priority"`
	ExecTime  time.Duration `json:"execTime"`
}

func (TaskCompleted) Kind() EventKind { return EventComplete }
func (e TaskCompleted) At() time.Time { return e.Timestamp }
func (TaskCompleted) queueEvent()     {}

// TaskFailed is published when the executor reports an execution
// failure. The failure counts toward the circuit breaker streak.
type TaskFailed struct {
	Timestamp time.Time     `json:"timestamp"`
	TaskID    string        `json:"taskId"`
	TaskType  TaskType      `json:"taskType"`
	Priority  TaskPriority  `json:"priority"`
	ExecTime  time.Duration `json:"execTime"`
	Reason    string        `json:"reason"`
}

func (TaskFailed) Kind() EventKind { return EventFail }
func (e TaskFailed) At() time.Time { return e.Timestamp }
func (TaskFailed) queueEvent()     {}

// TaskCancelled is published once per cancellation: immediately for a
// pending task, at intent time for a running one.
type TaskCancelled struct {
	Timestamp    time.Time    `json:"timestamp"`
	TaskID       string       `json:"taskId"`
	TaskType     TaskType     `json:"taskType"`
	Priority     TaskPriority `json:"priority"`
	WhileRunning bool         `json:"whileRunning"`
}

func (TaskCancelled) Kind() EventKind { return EventCancel }
func (e TaskCancelled) At() time.Time { return e.Timestamp }
func (TaskCancelled) queueEvent()     {}

// TaskTimedOut is published when the running task exhausts its budget.
// Distinct from TaskFailed, but it counts toward the breaker streak the
// same way.
type TaskTimedOut struct {
	Timestamp time.Time     `json:"timestamp"`
	TaskID    string        `json:"taskId"`
	TaskType  TaskType      `json:"taskType"`
	Priority  TaskPriority  `json:"priority"`
	ExecTime  time.Duration `json:"execTime"`
	Budget    time.Duration `json:"budget"`
}

func (TaskTimedOut) Kind() EventKind { return EventTimeout }
func (e TaskTimedOut) At() time.Time { return e.Timestamp }
func (TaskTimedOut) queueEvent()     {}

// CircuitOpened is published when the failure streak reaches the
// threshold. Failures is the streak length at the moment of opening.
type CircuitOpened struct {
	Timestamp time.Time     `json:"timestamp"`
	Failures  int           `json:"failures"`
	Cooldown  time.Duration `json:"cooldown"`
}

func (CircuitOpened) Kind() EventKind { return EventCircuitOpen }
func (e CircuitOpened) At() time.Time { return e.Timestamp }
func (CircuitOpened) queueEvent()     {}

// CircuitClosed is published when the breaker closes again, either
// because the cool-down elapsed or because of an explicit reset.
type CircuitClosed struct {
	Timestamp time.Time `json:"timestamp"`
	Manual    bool      `json:"manual"`
}

func (CircuitClosed) Kind() EventKind { return EventCircuitClose }
func (e CircuitClosed) At() time.Time { return e.Timestamp }
func (CircuitClosed) queueEvent()     {}

// ResourceBlocked is published each time the gate defers the head task.
// The head stays pending; this is a deferral, not an error.
type ResourceBlocked struct {
	Timestamp  time.Time `json:"timestamp"`
	TaskID     string    `json:"taskId"`
	TaskType   TaskType  `json:"taskType"`
	FreeMB     uint64    `json:"freeMB"`
	RequiredMB uint64    `json:"requiredMB"`
}

func (ResourceBlocked) Kind() EventKind { return EventResourceGate }
func (e ResourceBlocked) At() time.Time { return e.Timestamp }
func (ResourceBlocked) queueEvent()     {}
