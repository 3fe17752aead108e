package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scenesmith/genqueue/logging"
	"github.com/scenesmith/genqueue/probe"
)

// Defaults applied by NewAdmissionQueue when config fields are zero.
const (
	DefaultFailureThreshold    = 3
	DefaultCooldown            = 60 * time.Second
	DefaultTaskTimeout         = 2 * time.Minute
	DefaultGateRecheckInterval = 2 * time.Second
)

// QueueConfig configures an AdmissionQueue. The zero value is usable;
// every field has a default.
type QueueConfig struct {
	// FailureThreshold is the consecutive-failure streak that opens the
	// circuit breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before closing on
	// its own.
	Cooldown time.Duration

	// DefaultTaskTimeout is the execution budget for tasks that do not
	// declare their own.
	DefaultTaskTimeout time.Duration

	// Probe supplies free-memory readings for the resource gate. Nil
	// disables gating.
	Probe probe.Probe

	// Requirements maps task types to the free megabytes they need.
	Requirements map[TaskType]uint64

	// DefaultRequirementMB applies to types missing from Requirements.
	DefaultRequirementMB uint64

	// HeadroomMB must stay free on top of a task's requirement.
	HeadroomMB uint64

	// GateRecheckInterval is how often a gate-blocked head is
	// re-evaluated when nothing else triggers a check. Only used once
	// Start is called and a probe is configured.
	GateRecheckInterval time.Duration

	// RecentTaskLimit bounds the finished-task history.
	RecentTaskLimit int

	Logger logging.Logger
}

// DefaultQueueConfig returns the configuration the original deployment
// runs with.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		FailureThreshold:    DefaultFailureThreshold,
		Cooldown:            DefaultCooldown,
		DefaultTaskTimeout:  DefaultTaskTimeout,
		GateRecheckInterval: DefaultGateRecheckInterval,
		RecentTaskLimit:     defaultRecentHistoryCapacity,
		Logger:              logging.NewNoop(),
	}
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.DefaultTaskTimeout <= 0 {
		c.DefaultTaskTimeout = DefaultTaskTimeout
	}
	if c.GateRecheckInterval <= 0 {
		c.GateRecheckInterval = DefaultGateRecheckInterval
	}
	if c.RecentTaskLimit <= 0 {
		c.RecentTaskLimit = defaultRecentHistoryCapacity
	}
	if c.Logger == nil {
		c.Logger = logging.NewNoop()
	}
	return c
}

// AdmissionQueue guards the accelerator's single execution slot. Tasks
// are admitted by priority tier (high > normal > low, FIFO within a
// tier), released one at a time through the dispatch callback, and
// reported back by the executor via Complete, Fail or Cancel.
//
// Release is level-triggered: every state change re-evaluates whether
// the head task can start. The head is strict. While it is blocked by
// the resource gate, nothing behind it runs, so later small tasks can
// never starve an earlier large one.
type AdmissionQueue struct {
	mu      sync.Mutex
	cfg     QueueConfig
	logger  logging.Logger
	pending *pendingQueue
	running *Task
	breaker *CircuitBreaker
	gate    *ResourceGate
	recent  recentHistory

	// circuitOpen mirrors the breaker under mu so open/close events are
	// emitted exactly once per transition.
	circuitOpen   bool
	cooldownTimer *time.Timer
	timeoutTimer  *time.Timer

	dispatch     DispatchFunc
	listeners    map[int]Listener
	nextListener int

	stopped bool

	// Recheck loop lifecycle.
	stateMu sync.Mutex
	looping bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAdmissionQueue creates a queue from cfg.
func NewAdmissionQueue(cfg QueueConfig) *AdmissionQueue {
	cfg = cfg.withDefaults()
	return &AdmissionQueue{
		cfg:     cfg,
		logger:  cfg.Logger,
		pending: newPendingQueue(),
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.Cooldown),
		gate: NewResourceGate(cfg.Probe, GateConfig{
			Requirements:         cfg.Requirements,
			DefaultRequirementMB: cfg.DefaultRequirementMB,
			HeadroomMB:           cfg.HeadroomMB,
			Logger:               cfg.Logger,
		}),
		recent:    newRecentHistory(cfg.RecentTaskLimit),
		listeners: make(map[int]Listener),
	}
}

// =============================================================================
// Admission
// =============================================================================

// Enqueue validates t, stamps the bookkeeping fields and admits it into
// the pending set. The returned ID identifies the task in reports. A
// *ValidationError rejection leaves the queue untouched.
func (q *AdmissionQueue) Enqueue(t Task) (string, error) {
	q.mu.Lock()

	if q.stopped {
		q.mu.Unlock()
		return "", ErrQueueStopped
	}
	if err := q.validateLocked(t); err != nil {
		q.mu.Unlock()
		return "", err
	}

	now := time.Now()
	task := t.Clone()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Timeout == 0 {
		task.Timeout = q.cfg.DefaultTaskTimeout
	}
	task.Status = TaskStatusPending
	task.EnqueuedAt = now
	task.StartedAt = time.Time{}
	task.FinishedAt = time.Time{}
	task.Failure = ""
	task.CancelRequested = false

	q.pending.push(&task)

	events := []Event{TaskEnqueued{
		Timestamp: now,
		TaskID:    task.ID,
		TaskType:  task.Type,
		Priority:  task.Priority,
		Depth:     q.pending.len(),
	}}
	released, more := q.tryDispatchLocked(now)
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	q.logger.Debug("task enqueued",
		logging.F("taskId", task.ID),
		logging.F("taskType", string(task.Type)),
		logging.F("priority", task.Priority.String()))

	q.publish(events)
	q.deliver(dispatch, released)
	return task.ID, nil
}

func (q *AdmissionQueue) validateLocked(t Task) error {
	if t.Type == "" {
		return validationErr("type", "must not be empty")
	}
	if !t.Priority.valid() {
		return validationErr("priority", fmt.Sprintf("out of range: %d", int(t.Priority)))
	}
	if t.Timeout < 0 {
		return validationErr("timeout", "must not be negative")
	}
	if t.ID != "" {
		if q.pending.contains(t.ID) || (q.running != nil && q.running.ID == t.ID) {
			return validationErr("id", fmt.Sprintf("already tracked: %s", t.ID))
		}
	}
	return nil
}

// =============================================================================
// Executor reports
// =============================================================================

// Complete records a successful run of the current running task. The
// success resets the breaker streak. Reporting an ID that is not the
// running task is a contract violation: ErrUnknownTask, no state change.
//
// A task with a pending cancellation intent finalizes as cancelled
// instead. The interruption was requested, so the run counts as
// neither success nor failure.
func (q *AdmissionQueue) Complete(id string) error {
	q.mu.Lock()

	if q.running == nil || q.running.ID != id {
		q.mu.Unlock()
		return fmt.Errorf("complete %s: %w", id, ErrUnknownTask)
	}

	now := time.Now()
	task := q.running
	exec := now.Sub(task.StartedAt)

	var events []Event
	if task.CancelRequested {
		q.finalizeRunningLocked(now, TaskStatusCancelled, "")
	} else {
		q.finalizeRunningLocked(now, TaskStatusSucceeded, "")
		q.breaker.RecordSuccess()
		events = append(events, TaskCompleted{
			Timestamp: now,
			TaskID:    task.ID,
			TaskType:  task.Type,
			Priority:  task.Priority,
			ExecTime:  exec,
		})
	}

	released, more := q.tryDispatchLocked(now)
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	q.logger.Debug("task completed",
		logging.F("taskId", id), logging.F("execTime", exec))

	q.publish(events)
	q.deliver(dispatch, released)
	return nil
}

// Fail records a failed run of the current running task. The failure
// extends the breaker streak and may open the circuit. Contract
// violations behave as in Complete.
func (q *AdmissionQueue) Fail(id string, cause error) error {
	q.mu.Lock()

	if q.running == nil || q.running.ID != id {
		q.mu.Unlock()
		return fmt.Errorf("fail %s: %w", id, ErrUnknownTask)
	}

	now := time.Now()
	task := q.running
	exec := now.Sub(task.StartedAt)
	reason := "unspecified"
	if cause != nil {
		reason = cause.Error()
	}

	var events []Event
	if task.CancelRequested {
		// Requested interruption: terminal cancelled, streak untouched.
		q.finalizeRunningLocked(now, TaskStatusCancelled, "")
	} else {
		q.finalizeRunningLocked(now, TaskStatusFailed, reason)
		events = append(events, TaskFailed{
			Timestamp: now,
			TaskID:    task.ID,
			TaskType:  task.Type,
			Priority:  task.Priority,
			ExecTime:  exec,
			Reason:    reason,
		})
		events = append(events, q.recordBreakerFailureLocked(now)...)
	}

	released, more := q.tryDispatchLocked(now)
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	q.logger.Warn("task failed",
		logging.F("taskId", id), logging.F("reason", reason),
		logging.F("execTime", exec))

	q.publish(events)
	q.deliver(dispatch, released)
	return nil
}

// Cancel removes a pending task immediately. For the running task it
// only records the intent: the executor owns the interruption, and the
// bookkeeping settles when it reports back. Unknown IDs are contract
// violations.
func (q *AdmissionQueue) Cancel(id string) error {
	q.mu.Lock()

	now := time.Now()

	if q.running != nil && q.running.ID == id {
		if q.running.CancelRequested {
			// Intent already lodged; nothing more to do.
			q.mu.Unlock()
			return nil
		}
		q.running.CancelRequested = true
		event := TaskCancelled{
			Timestamp:    now,
			TaskID:       id,
			TaskType:     q.running.Type,
			Priority:     q.running.Priority,
			WhileRunning: true,
		}
		q.mu.Unlock()

		q.logger.Info("cancellation requested for running task", logging.F("taskId", id))
		q.publish([]Event{event})
		return nil
	}

	task := q.pending.remove(id)
	if task == nil {
		q.mu.Unlock()
		return fmt.Errorf("cancel %s: %w", id, ErrUnknownTask)
	}

	task.Status = TaskStatusCancelled
	task.FinishedAt = now
	q.recent.add(task.Clone())

	events := []Event{TaskCancelled{
		Timestamp:    now,
		TaskID:       id,
		TaskType:     task.Type,
		Priority:     task.Priority,
		WhileRunning: false,
	}}
	// Removing a gate-blocked head can unblock the task behind it.
	released, more := q.tryDispatchLocked(now)
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	q.logger.Info("pending task cancelled", logging.F("taskId", id))
	q.publish(events)
	q.deliver(dispatch, released)
	return nil
}

// onTimeout fires from the per-task timer. The timer is bound to the run
// itself, not to the ID: a stale timer from an earlier run of a reused
// caller-supplied ID must not reap the current run. If the run already
// reached a terminal state this is a no-op.
func (q *AdmissionQueue) onTimeout(t *Task) {
	q.mu.Lock()

	if q.stopped || q.running != t {
		q.mu.Unlock()
		return
	}

	now := time.Now()
	task := q.running
	exec := now.Sub(task.StartedAt)
	budget := task.Timeout

	q.finalizeRunningLocked(now, TaskStatusTimedOut, fmt.Sprintf("exceeded budget %s", budget))

	events := []Event{TaskTimedOut{
		Timestamp: now,
		TaskID:    task.ID,
		TaskType:  task.Type,
		Priority:  task.Priority,
		ExecTime:  exec,
		Budget:    budget,
	}}
	// A timeout counts toward the breaker streak exactly like a failure.
	events = append(events, q.recordBreakerFailureLocked(now)...)

	released, more := q.tryDispatchLocked(now)
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	q.logger.Warn("task timed out",
		logging.F("taskId", task.ID), logging.F("budget", budget))

	q.publish(events)
	q.deliver(dispatch, released)
}

// finalizeRunningLocked stamps the terminal state of the running task,
// archives it and frees the slot.
func (q *AdmissionQueue) finalizeRunningLocked(now time.Time, status TaskStatus, failure string) {
	task := q.running
	task.Status = status
	task.FinishedAt = now
	task.Failure = failure

	if q.timeoutTimer != nil {
		q.timeoutTimer.Stop()
		q.timeoutTimer = nil
	}

	q.recent.add(task.Clone())
	q.running = nil
}

// recordBreakerFailureLocked feeds one failure into the breaker and, on
// the open transition, arms the cool-down timer and builds the event.
func (q *AdmissionQueue) recordBreakerFailureLocked(now time.Time) []Event {
	if !q.breaker.RecordFailure() {
		return nil
	}

	q.circuitOpen = true
	cooldown := q.breaker.Cooldown()
	if q.cooldownTimer != nil {
		q.cooldownTimer.Stop()
	}
	q.cooldownTimer = time.AfterFunc(cooldown, q.onCooldownElapsed)

	q.logger.Warn("circuit opened",
		logging.F("failures", q.breaker.Failures()),
		logging.F("cooldown", cooldown))

	return []Event{CircuitOpened{
		Timestamp: now,
		Failures:  q.breaker.Failures(),
		Cooldown:  cooldown,
	}}
}

// onCooldownElapsed fires when the breaker's open period is over.
func (q *AdmissionQueue) onCooldownElapsed() {
	q.mu.Lock()

	if q.stopped || !q.circuitOpen || q.breaker.IsOpen() {
		q.mu.Unlock()
		return
	}

	now := time.Now()
	q.circuitOpen = false
	q.cooldownTimer = nil

	events := []Event{CircuitClosed{Timestamp: now, Manual: false}}
	released, more := q.tryDispatchLocked(now)
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	q.logger.Info("circuit closed after cooldown")
	q.publish(events)
	q.deliver(dispatch, released)
}

// ResetBreaker closes the circuit immediately and clears the streak, the
// operator's escape hatch when the accelerator is known healthy again.
func (q *AdmissionQueue) ResetBreaker() {
	q.mu.Lock()

	q.breaker.Reset()
	var events []Event
	if q.circuitOpen {
		q.circuitOpen = false
		if q.cooldownTimer != nil {
			q.cooldownTimer.Stop()
			q.cooldownTimer = nil
		}
		events = append(events, CircuitClosed{Timestamp: time.Now(), Manual: true})
	}

	released, more := q.tryDispatchLocked(time.Now())
	events = append(events, more...)
	dispatch := q.dispatch
	q.mu.Unlock()

	if len(events) > 0 {
		q.logger.Info("circuit reset")
	}
	q.publish(events)
	q.deliver(dispatch, released)
}

// =============================================================================
// Release
// =============================================================================

// tryDispatchLocked is the single release decision point. It runs after
// every state change: the slot must be free, an executor attached, the
// breaker closed and the head task admitted by the gate. At most one
// task is released per call.
func (q *AdmissionQueue) tryDispatchLocked(now time.Time) (*Task, []Event) {
	if q.stopped || q.running != nil || q.dispatch == nil || q.pending.len() == 0 {
		return nil, nil
	}

	var events []Event
	if q.circuitOpen {
		if q.breaker.IsOpen() {
			return nil, nil
		}
		// Cool-down elapsed between timer ticks; close here so the
		// event is not lost.
		q.circuitOpen = false
		if q.cooldownTimer != nil {
			q.cooldownTimer.Stop()
			q.cooldownTimer = nil
		}
		events = append(events, CircuitClosed{Timestamp: now, Manual: false})
	}

	head := q.pending.peek()
	decision := q.gate.Admit(*head)
	if !decision.Admitted {
		events = append(events, ResourceBlocked{
			Timestamp:  now,
			TaskID:     head.ID,
			TaskType:   head.Type,
			FreeMB:     decision.FreeMB,
			RequiredMB: decision.RequiredMB,
		})
		return nil, events
	}

	task := q.pending.pop()
	task.Status = TaskStatusRunning
	task.StartedAt = now
	q.running = task

	q.timeoutTimer = time.AfterFunc(task.Timeout, func() { q.onTimeout(task) })

	events = append(events, TaskDequeued{
		Timestamp: now,
		TaskID:    task.ID,
		TaskType:  task.Type,
		Priority:  task.Priority,
		Wait:      now.Sub(task.EnqueuedAt),
		Depth:     q.pending.len(),
	})

	released := task.Clone()
	return &released, events
}

// SetDispatch attaches the executor hand-off. Until one is attached the
// queue only accumulates tasks; attaching is itself a release trigger.
func (q *AdmissionQueue) SetDispatch(fn DispatchFunc) {
	q.mu.Lock()
	q.dispatch = fn
	released, events := q.tryDispatchLocked(time.Now())
	q.mu.Unlock()

	q.publish(events)
	q.deliver(fn, released)
}

// Kick re-evaluates admission immediately. The recheck loop calls this
// on its interval; hosts can call it when they know conditions changed
// (for example after freeing accelerator memory out-of-band).
func (q *AdmissionQueue) Kick() {
	q.mu.Lock()
	released, events := q.tryDispatchLocked(time.Now())
	dispatch := q.dispatch
	q.mu.Unlock()

	q.publish(events)
	q.deliver(dispatch, released)
}

// =============================================================================
// Introspection
// =============================================================================

// State assembles a consistent snapshot of the queue. The resource
// reading is taken just after the snapshot and may lag by a moment.
func (q *AdmissionQueue) State() QueueState {
	q.mu.Lock()
	st := QueueState{
		Depth:           q.pending.len(),
		DepthByPriority: q.pending.depthByPriority(),
		At:              time.Now(),
	}
	st.CircuitOpen, st.ConsecutiveFailures = q.breaker.Snapshot()
	if q.running != nil {
		running := q.running.Clone()
		st.Running = &running
	}
	var head *Task
	if h := q.pending.peek(); h != nil {
		copied := h.Clone()
		head = &copied
	}
	q.mu.Unlock()

	if rs, ok := q.gate.Status(head); ok {
		st.Resource = &rs
	}
	return st
}

// Depth returns the pending count.
func (q *AdmissionQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.len()
}

// RecentTasks returns up to limit finished tasks, newest first.
func (q *AdmissionQueue) RecentTasks(limit int) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.recent.recent(limit)
}

// Subscribe registers l for every subsequent event. The returned
// function unsubscribes; calling it more than once is safe.
func (q *AdmissionQueue) Subscribe(l Listener) func() {
	q.mu.Lock()
	id := q.nextListener
	q.nextListener++
	q.listeners[id] = l
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start launches the gate recheck loop so a blocked head is re-evaluated
// on an interval even when no queue activity triggers it. A queue
// without a probe has nothing to recheck and Start is a no-op. Repeated
// calls are no-ops.
func (q *AdmissionQueue) Start(ctx context.Context) {
	if !q.gate.enabled() {
		return
	}

	q.stateMu.Lock()
	if q.looping {
		q.stateMu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	q.looping = true
	q.stateMu.Unlock()

	go q.recheckLoop(loopCtx)
}

// Stop shuts the queue down: the recheck loop is joined, timers are
// released and further enqueues fail with ErrQueueStopped. Pending and
// running tasks are left as they are; the executor may still report
// outcomes for the running task. Repeated calls are safe.
func (q *AdmissionQueue) Stop() {
	q.stateMu.Lock()
	cancel := q.cancel
	done := q.done
	q.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	// The loop's deferred close reads q.done, so the field may only be
	// cleared after the join above.
	q.stateMu.Lock()
	q.looping = false
	q.cancel = nil
	q.done = nil
	q.stateMu.Unlock()

	q.mu.Lock()
	q.stopped = true
	if q.timeoutTimer != nil {
		q.timeoutTimer.Stop()
		q.timeoutTimer = nil
	}
	if q.cooldownTimer != nil {
		q.cooldownTimer.Stop()
		q.cooldownTimer = nil
	}
	q.mu.Unlock()

	q.logger.Info("admission queue stopped")
}

func (q *AdmissionQueue) recheckLoop(ctx context.Context) {
	defer close(q.done)

	ticker := time.NewTicker(q.cfg.GateRecheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Kick()
		}
	}
}

// =============================================================================
// Fan-out
// =============================================================================

// publish notifies listeners outside the queue mutex. A panicking
// listener is logged and skipped; it cannot take the queue down.
func (q *AdmissionQueue) publish(events []Event) {
	if len(events) == 0 {
		return
	}

	q.mu.Lock()
	listeners := make([]Listener, 0, len(q.listeners))
	for _, l := range q.listeners {
		listeners = append(listeners, l)
	}
	q.mu.Unlock()

	for _, e := range events {
		for _, l := range listeners {
			q.notifyOne(l, e)
		}
	}
}

func (q *AdmissionQueue) notifyOne(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("event listener panicked",
				logging.F("kind", string(e.Kind())), logging.F("panic", r))
		}
	}()
	l.OnQueueEvent(e)
}

// deliver hands a released task to the executor. A panicking dispatch is
// logged; the task stays running and the timeout will reap it.
func (q *AdmissionQueue) deliver(dispatch DispatchFunc, task *Task) {
	if task == nil || dispatch == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("dispatch panicked",
				logging.F("taskId", task.ID), logging.F("panic", r))
		}
	}()
	dispatch(*task)
}
