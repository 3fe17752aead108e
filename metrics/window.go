package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/scenesmith/genqueue/core"
)

// Counters are the exact per-window totals. Unlike the rings these are
// never truncated; the derived statistics are computed from full data.
type Counters struct {
	Enqueued       uint64 `json:"enqueued"`
	Dequeued       uint64 `json:"dequeued"`
	Completed      uint64 `json:"completed"`
	Failed         uint64 `json:"failed"`
	Cancelled      uint64 `json:"cancelled"`
	TimedOut       uint64 `json:"timedOut"`
	CircuitOpens   uint64 `json:"circuitOpens"`
	ResourceBlocks uint64 `json:"resourceBlocks"`
}

// terminal is the count of outcomes that settle a task.
func (c Counters) terminal() uint64 {
	return c.Completed + c.Failed + c.Cancelled + c.TimedOut
}

// LatencyStats summarize one latency series.
type LatencyStats struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

// DepthStats summarize the sampled queue depth.
type DepthStats struct {
	Samples int     `json:"samples"`
	Avg     float64 `json:"avg"`
	Max     int     `json:"max"`
}

// Snapshot is one sampled observation of queue state.
type Snapshot struct {
	At                  time.Time                  `json:"at"`
	Depth               int                        `json:"depth"`
	DepthByPriority     map[core.TaskPriority]int  `json:"depthByPriority"`
	RunningTaskID       string                     `json:"runningTaskId,omitempty"`
	CircuitOpen         bool                       `json:"circuitOpen"`
	ConsecutiveFailures int                        `json:"consecutiveFailures"`
	FreeMemoryMB        uint64                     `json:"freeMemoryMB,omitempty"`
}

func snapshotFromState(now time.Time, st core.QueueState) Snapshot {
	snap := Snapshot{
		At:                  now,
		Depth:               st.Depth,
		DepthByPriority:     st.DepthByPriority,
		CircuitOpen:         st.CircuitOpen,
		ConsecutiveFailures: st.ConsecutiveFailures,
	}
	if st.Running != nil {
		snap.RunningTaskID = st.Running.ID
	}
	if st.Resource != nil {
		snap.FreeMemoryMB = st.Resource.FreeMB
	}
	return snap
}

// EventRecord pairs an event with its kind so dumps stay self-describing
// after the concrete type is erased by JSON.
type EventRecord struct {
	Kind  core.EventKind `json:"kind"`
	Event core.Event     `json:"event"`
}

// WrapEvents pairs each event with its kind tag.
func WrapEvents(events []core.Event) []EventRecord {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventRecord, 0, len(events))
	for _, e := range events {
		out = append(out, EventRecord{Kind: e.Kind(), Event: e})
	}
	return out
}

// Report is the derived view of one window. WindowEnd is nil while the
// window is still accumulating.
type Report struct {
	WindowStart         time.Time     `json:"windowStart"`
	WindowEnd           *time.Time    `json:"windowEnd,omitempty"`
	Counters            Counters      `json:"counters"`
	Wait                LatencyStats  `json:"wait"`
	Exec                LatencyStats  `json:"exec"`
	Depth               DepthStats    `json:"depth"`
	ThroughputPerMinute float64       `json:"throughputPerMinute"`
	SuccessRate         float64       `json:"successRate"`
	Events              []EventRecord `json:"events"`
	Snapshots           []Snapshot    `json:"snapshots"`
}

// window accumulates one rolling interval. Exact data (counters, latency
// samples, depth samples) backs the math; the two rings only bound what
// is kept for inspection.
type window struct {
	start        time.Time
	counters     Counters
	waitSamples  []time.Duration
	execSamples  []time.Duration
	depthSamples []int
	events       *ring[core.Event]
	snapshots    *ring[Snapshot]
}

func newWindow(start time.Time, eventCap, snapshotCap int) *window {
	return &window{
		start:     start,
		events:    newRing[core.Event](eventCap),
		snapshots: newRing[Snapshot](snapshotCap),
	}
}

// report computes the derived statistics. Computation is pure: the
// window keeps accumulating afterwards, which is what lets a summary
// finalize the active window without closing it.
func (w *window) report(end time.Time, closed bool) Report {
	r := Report{
		WindowStart: w.start,
		Counters:    w.counters,
		Wait:        latencyStats(w.waitSamples),
		Exec:        latencyStats(w.execSamples),
		Depth:       depthStats(w.depthSamples),
		SuccessRate: successRate(w.counters),
		Events:      WrapEvents(w.events.oldestFirst()),
		Snapshots:   w.snapshots.oldestFirst(),
	}
	if closed {
		e := end
		r.WindowEnd = &e
	}

	if minutes := end.Sub(w.start).Minutes(); minutes > 0 {
		r.ThroughputPerMinute = float64(w.counters.Completed) / minutes
	}
	return r
}

// latencyStats degrades gracefully: no samples means zero values, never
// NaN and never a panic.
func latencyStats(samples []time.Duration) LatencyStats {
	n := len(samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, s := range sorted {
		sum += s
	}

	return LatencyStats{
		Count: n,
		Mean:  sum / time.Duration(n),
		P95:   percentile(sorted, 95),
		Max:   sorted[n-1],
	}
}

// percentile uses the nearest-rank method on an already sorted series:
// index = ceil(p/100*n) - 1, clamped to the valid range.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

func depthStats(samples []int) DepthStats {
	n := len(samples)
	if n == 0 {
		return DepthStats{}
	}

	sum, maxDepth := 0, 0
	for _, d := range samples {
		sum += d
		if d > maxDepth {
			maxDepth = d
		}
	}

	return DepthStats{
		Samples: n,
		Avg:     float64(sum) / float64(n),
		Max:     maxDepth,
	}
}

// successRate is completed over all terminal outcomes, 0 when nothing
// terminal happened yet.
func successRate(c Counters) float64 {
	terminal := c.terminal()
	if terminal == 0 {
		return 0
	}
	return float64(c.Completed) / float64(terminal)
}
