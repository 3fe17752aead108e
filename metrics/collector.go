package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scenesmith/genqueue/core"
	"github.com/scenesmith/genqueue/logging"
)

// Defaults mirror the original deployment's collector settings.
const (
	DefaultWindowDuration    = 5 * time.Minute
	DefaultSnapshotInterval  = 5 * time.Second
	DefaultEventBufferCap    = 500
	DefaultSnapshotBufferCap = 60
	DefaultHistoryLimit      = 12
)

// Config controls window rotation, sampling cadence and retention.
type Config struct {
	// WindowDuration is how long one rolling window accumulates before
	// it is finalized into history.
	WindowDuration time.Duration `json:"windowDuration"`

	// SnapshotInterval is the sampler tick.
	SnapshotInterval time.Duration `json:"snapshotInterval"`

	// EventBufferCap bounds the per-window event ring.
	EventBufferCap int `json:"eventBufferCap"`

	// SnapshotBufferCap bounds the per-window snapshot ring.
	SnapshotBufferCap int `json:"snapshotBufferCap"`

	// HistoryLimit is how many finalized windows are retained.
	HistoryLimit int `json:"historyLimit"`

	Logger logging.Logger `json:"-"`
}

// DefaultConfig returns the production defaults: 5-minute windows,
// 5-second snapshots, rings of 500/60, 12 windows of history.
func DefaultConfig() Config {
	return Config{
		WindowDuration:    DefaultWindowDuration,
		SnapshotInterval:  DefaultSnapshotInterval,
		EventBufferCap:    DefaultEventBufferCap,
		SnapshotBufferCap: DefaultSnapshotBufferCap,
		HistoryLimit:      DefaultHistoryLimit,
	}
}

func (c Config) withDefaults() Config {
	if c.WindowDuration <= 0 {
		c.WindowDuration = DefaultWindowDuration
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = DefaultSnapshotInterval
	}
	if c.EventBufferCap <= 0 {
		c.EventBufferCap = DefaultEventBufferCap
	}
	if c.SnapshotBufferCap <= 0 {
		c.SnapshotBufferCap = DefaultSnapshotBufferCap
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.Logger == nil {
		c.Logger = logging.NewNoop()
	}
	return c
}

// LifetimeStats are unbounded totals since construction or the last
// Reset. Window rotation never touches them.
type LifetimeStats struct {
	Counters    Counters  `json:"counters"`
	WaitSamples uint64    `json:"waitSamples"`
	ExecSamples uint64    `json:"execSamples"`
	Since       time.Time `json:"since"`
}

// Summary is the collector's reporting surface: the active window
// finalized for reading (but still accumulating), recent history and
// lifetime totals.
type Summary struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Current     Report        `json:"current"`
	History     []Report      `json:"history"` // newest first
	Lifetime    LifetimeStats `json:"lifetime"`
}

// Dump is the full export: everything the collector knows, ready for
// JSON marshalling.
type Dump struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Config      Config    `json:"config"`
	Summary     Summary   `json:"summary"`
	Windows     []Report  `json:"windows"` // oldest first, current last
}

// Collector folds queue events into rolling windows. Each instance is
// explicitly owned by whoever composes the system; there is no shared
// module-level collector. One collector per queue.
type Collector struct {
	mu       sync.Mutex
	cfg      Config
	logger   logging.Logger
	current  *window
	history  []Report
	lifetime LifetimeStats

	// Sampler lifecycle.
	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ core.Listener = (*Collector)(nil)

// NewCollector creates a collector with an open first window.
func NewCollector(cfg Config) *Collector {
	cfg = cfg.withDefaults()
	now := time.Now()
	return &Collector{
		cfg:      cfg,
		logger:   cfg.Logger,
		current:  newWindow(now, cfg.EventBufferCap, cfg.SnapshotBufferCap),
		lifetime: LifetimeStats{Since: now},
	}
}

// =============================================================================
// Recording
// =============================================================================

// OnQueueEvent implements core.Listener: the event lands in the current
// window's ring and its counters and samples are updated.
func (c *Collector) OnQueueEvent(e core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotateLocked(time.Now())
	c.current.events.add(e)

	switch ev := e.(type) {
	case core.TaskEnqueued:
		c.recordEnqueueLocked()
	case core.TaskDequeued:
		c.recordDequeueLocked(ev.Wait)
	case core.TaskCompleted:
		c.recordCompleteLocked(ev.ExecTime)
	case core.TaskFailed:
		c.recordFailLocked(ev.ExecTime)
	case core.TaskCancelled:
		c.recordCancelLocked()
	case core.TaskTimedOut:
		c.recordTimeoutLocked(ev.ExecTime)
	case core.CircuitOpened:
		c.recordCircuitOpenLocked()
	case core.CircuitClosed:
		// Ring entry only; closures carry no counter.
	case core.ResourceBlocked:
		c.recordResourceBlockLocked()
	}
}

// RecordEnqueue counts an admission.
func (c *Collector) RecordEnqueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordEnqueueLocked()
}

// RecordDequeue counts a release and records the pending wait.
func (c *Collector) RecordDequeue(wait time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordDequeueLocked(wait)
}

// RecordComplete counts a success and records the execution time.
func (c *Collector) RecordComplete(exec time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordCompleteLocked(exec)
}

// RecordFail counts a failure and records the execution time.
func (c *Collector) RecordFail(exec time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordFailLocked(exec)
}

// RecordCancel counts a cancellation.
func (c *Collector) RecordCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordCancelLocked()
}

// RecordTimeout counts a budget exhaustion and records how long the task
// actually ran.
func (c *Collector) RecordTimeout(exec time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordTimeoutLocked(exec)
}

// RecordCircuitOpen counts a breaker opening.
func (c *Collector) RecordCircuitOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordCircuitOpenLocked()
}

// RecordResourceBlock counts a gate deferral.
func (c *Collector) RecordResourceBlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(time.Now())
	c.recordResourceBlockLocked()
}

func (c *Collector) recordEnqueueLocked() {
	c.current.counters.Enqueued++
	c.lifetime.Counters.Enqueued++
}

func (c *Collector) recordDequeueLocked(wait time.Duration) {
	c.current.counters.Dequeued++
	c.current.waitSamples = append(c.current.waitSamples, wait)
	c.lifetime.Counters.Dequeued++
	c.lifetime.WaitSamples++
}

func (c *Collector) recordCompleteLocked(exec time.Duration) {
	c.current.counters.Completed++
	c.current.execSamples = append(c.current.execSamples, exec)
	c.lifetime.Counters.Completed++
	c.lifetime.ExecSamples++
}

func (c *Collector) recordFailLocked(exec time.Duration) {
	c.current.counters.Failed++
	c.current.execSamples = append(c.current.execSamples, exec)
	c.lifetime.Counters.Failed++
	c.lifetime.ExecSamples++
}

func (c *Collector) recordCancelLocked() {
	c.current.counters.Cancelled++
	c.lifetime.Counters.Cancelled++
}

func (c *Collector) recordTimeoutLocked(exec time.Duration) {
	c.current.counters.TimedOut++
	c.current.execSamples = append(c.current.execSamples, exec)
	c.lifetime.Counters.TimedOut++
	c.lifetime.ExecSamples++
}

func (c *Collector) recordCircuitOpenLocked() {
	c.current.counters.CircuitOpens++
	c.lifetime.Counters.CircuitOpens++
}

func (c *Collector) recordResourceBlockLocked() {
	c.current.counters.ResourceBlocks++
	c.lifetime.Counters.ResourceBlocks++
}

// =============================================================================
// Rotation
// =============================================================================

// rotateLocked finalizes the current window once its duration has
// elapsed. The new window starts where the old one ended so windows stay
// contiguous; after a long idle gap it starts at now instead of
// back-filling empty windows.
func (c *Collector) rotateLocked(now time.Time) {
	age := now.Sub(c.current.start)
	if age < c.cfg.WindowDuration {
		return
	}

	end := c.current.start.Add(c.cfg.WindowDuration)
	report := c.current.report(end, true)
	c.history = append(c.history, report)
	if len(c.history) > c.cfg.HistoryLimit {
		c.history = c.history[len(c.history)-c.cfg.HistoryLimit:]
	}

	nextStart := end
	if age >= 2*c.cfg.WindowDuration {
		nextStart = now
	}
	c.current = newWindow(nextStart, c.cfg.EventBufferCap, c.cfg.SnapshotBufferCap)

	c.logger.Debug("metrics window rotated",
		logging.F("windowStart", report.WindowStart),
		logging.F("completed", report.Counters.Completed))
}

// =============================================================================
// Sampling
// =============================================================================

// Start launches the snapshot sampler against state, typically a queue's
// State method. Repeated calls are no-ops. The sampler runs until Stop
// or ctx cancellation.
func (c *Collector) Start(ctx context.Context, state func() core.QueueState) error {
	if state == nil {
		return fmt.Errorf("metrics: state source required")
	}

	c.stateMu.Lock()
	if c.running {
		c.stateMu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	c.stateMu.Unlock()

	go c.sampleLoop(loopCtx, state)
	return nil
}

// Stop halts the sampler and joins its goroutine. Repeated calls are
// safe. Recorded data stays intact.
func (c *Collector) Stop() {
	c.stateMu.Lock()
	if !c.running {
		c.stateMu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	c.stateMu.Lock()
	c.running = false
	c.cancel = nil
	c.done = nil
	c.stateMu.Unlock()
}

func (c *Collector) sampleLoop(ctx context.Context, state func() core.QueueState) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.SnapshotInterval)
	defer ticker.Stop()

	c.sampleOnce(state)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleOnce(state)
		}
	}
}

// sampleOnce reads queue state outside the collector mutex, then records
// the snapshot. Rotation is checked before the sample lands.
func (c *Collector) sampleOnce(state func() core.QueueState) {
	st := state()
	now := time.Now()
	snap := snapshotFromState(now, st)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(now)
	c.current.snapshots.add(snap)
	c.current.depthSamples = append(c.current.depthSamples, snap.Depth)
}

// =============================================================================
// Reporting
// =============================================================================

// Summary finalizes the active window for reporting without closing it:
// the computation is pure, the window keeps accumulating and a second
// call with no traffic in between reports identical counts.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.rotateLocked(now)

	history := make([]Report, 0, len(c.history))
	for i := len(c.history) - 1; i >= 0; i-- {
		history = append(history, c.history[i])
	}

	return Summary{
		GeneratedAt: now,
		Current:     c.current.report(now, false),
		History:     history,
		Lifetime:    c.lifetime,
	}
}

// RecentEvents returns up to limit events from the current window,
// newest first. limit <= 0 means all buffered.
func (c *Collector) RecentEvents(limit int) []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.events.newestFirst(limit)
}

// Export assembles the full dump for persistence or debugging.
func (c *Collector) Export() Dump {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.rotateLocked(now)

	history := make([]Report, 0, len(c.history))
	for i := len(c.history) - 1; i >= 0; i-- {
		history = append(history, c.history[i])
	}

	windows := make([]Report, 0, len(c.history)+1)
	windows = append(windows, c.history...)
	windows = append(windows, c.current.report(now, false))

	return Dump{
		GeneratedAt: now,
		Config:      c.cfg,
		Summary: Summary{
			GeneratedAt: now,
			Current:     c.current.report(now, false),
			History:     history,
			Lifetime:    c.lifetime,
		},
		Windows: windows,
	}
}

// Reset discards every window, the history and the lifetime totals. A
// fresh window opens immediately; a running sampler keeps running.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.current = newWindow(now, c.cfg.EventBufferCap, c.cfg.SnapshotBufferCap)
	c.history = nil
	c.lifetime = LifetimeStats{Since: now}

	c.logger.Info("metrics collector reset")
}

// =============================================================================
// Hooking
// =============================================================================

// EventSource is the slice of the queue the collector needs: event
// subscription and state sampling. *core.AdmissionQueue satisfies it.
type EventSource interface {
	Subscribe(core.Listener) func()
	State() core.QueueState
}

// Attach wires c to src: subscribes for events and starts the snapshot
// sampler. The returned teardown undoes both and is safe to call more
// than once.
func Attach(ctx context.Context, src EventSource, c *Collector) (func(), error) {
	if err := c.Start(ctx, src.State); err != nil {
		return nil, err
	}
	unsubscribe := src.Subscribe(c)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			c.Stop()
		})
	}, nil
}
