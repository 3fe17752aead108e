package genqueue

import (
	"github.com/scenesmith/genqueue/core"
	"github.com/scenesmith/genqueue/metrics"
)

// Re-export commonly used types from the core and metrics packages so
// most callers can import only the genqueue package.

// Task is one unit of accelerator work.
type Task = core.Task

// TaskType identifies the generation workload class.
type TaskType = core.TaskType

// TaskPriority orders pending tasks into admission tiers.
type TaskPriority = core.TaskPriority

// TaskStatus is the task lifecycle state.
type TaskStatus = core.TaskStatus

// AdmissionQueue guards the accelerator's single execution slot.
type AdmissionQueue = core.AdmissionQueue

// QueueConfig configures an AdmissionQueue.
type QueueConfig = core.QueueConfig

// QueueState is a point-in-time view of the admission layer.
type QueueState = core.QueueState

// Event is the closed set of queue occurrences.
type Event = core.Event

// Listener receives queue events.
type Listener = core.Listener

// DispatchFunc hands released tasks to the executor.
type DispatchFunc = core.DispatchFunc

// Collector folds queue events into rolling metric windows.
type Collector = metrics.Collector

// CollectorConfig configures a Collector.
type CollectorConfig = metrics.Config

// Priority constants
const (
	PriorityLow    TaskPriority = core.PriorityLow
	PriorityNormal TaskPriority = core.PriorityNormal
	PriorityHigh   TaskPriority = core.PriorityHigh
)

// Status constants
const (
	TaskStatusPending   TaskStatus = core.TaskStatusPending
	TaskStatusRunning   TaskStatus = core.TaskStatusRunning
	TaskStatusSucceeded TaskStatus = core.TaskStatusSucceeded
	TaskStatusFailed    TaskStatus = core.TaskStatusFailed
	TaskStatusTimedOut  TaskStatus = core.TaskStatusTimedOut
	TaskStatusCancelled TaskStatus = core.TaskStatusCancelled
)

// Sentinel errors
var (
	ErrUnknownTask  = core.ErrUnknownTask
	ErrQueueStopped = core.ErrQueueStopped
)

// Constructors and helpers
var (
	NewAdmissionQueue  = core.NewAdmissionQueue
	DefaultQueueConfig = core.DefaultQueueConfig
	NewCircuitBreaker  = core.NewCircuitBreaker

	NewCollector           = metrics.NewCollector
	DefaultCollectorConfig = metrics.DefaultConfig

	// AttachMetrics wires a collector to a queue and returns the
	// teardown.
	AttachMetrics = metrics.Attach
)
