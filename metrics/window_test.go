package metrics

import (
	"testing"
	"time"

	"github.com/scenesmith/genqueue/core"
)

// TestLatencyStats_NearestRankP95 verifies the percentile method
// Given: The execution samples 10, 20, 30, 40 and 100 ms
// When: Latency statistics are computed
// Then: P95 is 100ms (nearest rank), the mean is 40ms and the max is 100ms
func TestLatencyStats_NearestRankP95(t *testing.T) {
	// Arrange
	samples := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
		100 * time.Millisecond,
	}

	// Act
	stats := latencyStats(samples)

	// Assert
	if stats.Count != 5 {
		t.Errorf("Count = %d, want 5", stats.Count)
	}
	if stats.P95 != 100*time.Millisecond {
		t.Errorf("P95 = %s, want 100ms", stats.P95)
	}
	if stats.Mean != 40*time.Millisecond {
		t.Errorf("Mean = %s, want 40ms", stats.Mean)
	}
	if stats.Max != 100*time.Millisecond {
		t.Errorf("Max = %s, want 100ms", stats.Max)
	}
}

// TestLatencyStats_UnsortedInput verifies sorting independence
// Given: The same samples in shuffled order
// When: Latency statistics are computed
// Then: The results match the sorted case and the input is not reordered
func TestLatencyStats_UnsortedInput(t *testing.T) {
	// Arrange
	samples := []time.Duration{
		100 * time.Millisecond,
		30 * time.Millisecond,
		10 * time.Millisecond,
		40 * time.Millisecond,
		20 * time.Millisecond,
	}

	// Act
	stats := latencyStats(samples)

	// Assert
	if stats.P95 != 100*time.Millisecond || stats.Mean != 40*time.Millisecond {
		t.Errorf("stats = %+v, want P95 100ms mean 40ms", stats)
	}
	if samples[0] != 100*time.Millisecond {
		t.Error("latencyStats reordered the caller's slice")
	}
}

// TestPercentile_SmallSeries verifies the clamped index
// Given: Series of zero, one and two samples
// When: P95 is requested
// Then: Empty yields 0, singletons yield the sample, pairs yield the larger
func TestPercentile_SmallSeries(t *testing.T) {
	if got := percentile(nil, 95); got != 0 {
		t.Errorf("percentile(nil) = %s, want 0", got)
	}

	one := []time.Duration{7 * time.Millisecond}
	if got := percentile(one, 95); got != 7*time.Millisecond {
		t.Errorf("percentile(one) = %s, want 7ms", got)
	}

	two := []time.Duration{3 * time.Millisecond, 9 * time.Millisecond}
	if got := percentile(two, 95); got != 9*time.Millisecond {
		t.Errorf("percentile(two) = %s, want 9ms", got)
	}
	// P50 over two samples picks the first by nearest rank.
	if got := percentile(two, 50); got != 3*time.Millisecond {
		t.Errorf("percentile(two, 50) = %s, want 3ms", got)
	}
}

// TestLatencyStats_EmptyDegradesToZero verifies the no-data case
// Given: No samples
// When: Latency statistics are computed
// Then: All fields are zero values, with no NaN and no panic
func TestLatencyStats_EmptyDegradesToZero(t *testing.T) {
	stats := latencyStats(nil)
	if stats != (LatencyStats{}) {
		t.Errorf("latencyStats(nil) = %+v, want zero value", stats)
	}
}

// TestSuccessRate_Boundaries verifies ratio edge cases
// Given: Counters with and without terminal outcomes
// When: The success rate is computed
// Then: No terminal outcomes yields 0, otherwise completed over terminal
func TestSuccessRate_Boundaries(t *testing.T) {
	// Assert - Nothing terminal yet (enqueues alone do not count)
	if got := successRate(Counters{Enqueued: 10}); got != 0 {
		t.Errorf("successRate with no terminal outcomes = %v, want 0", got)
	}

	// Assert - 3 completed of 4 terminal
	c := Counters{Completed: 3, Failed: 1}
	if got := successRate(c); got != 0.75 {
		t.Errorf("successRate = %v, want 0.75", got)
	}

	// Assert - Cancellations and timeouts drag the rate down too
	c = Counters{Completed: 1, Cancelled: 2, TimedOut: 1}
	if got := successRate(c); got != 0.25 {
		t.Errorf("successRate = %v, want 0.25", got)
	}
}

// TestDepthStats_AvgAndMax verifies depth aggregation
// Given: Sampled depths 0, 2 and 4
// When: Depth statistics are computed
// Then: Average is 2.0 and max is 4; no samples yields zeroes
func TestDepthStats_AvgAndMax(t *testing.T) {
	stats := depthStats([]int{0, 2, 4})
	if stats.Samples != 3 || stats.Avg != 2.0 || stats.Max != 4 {
		t.Errorf("depthStats = %+v, want 3 samples avg 2 max 4", stats)
	}

	if got := depthStats(nil); got != (DepthStats{}) {
		t.Errorf("depthStats(nil) = %+v, want zero value", got)
	}
}

// TestWindowReport_ThroughputAndEnd verifies report assembly
// Given: A window with two completions over two minutes
// When: Reports are produced open and closed
// Then: Throughput is 1 per minute, and only the closed report has an end
func TestWindowReport_ThroughputAndEnd(t *testing.T) {
	// Arrange
	start := time.Now().Add(-2 * time.Minute)
	w := newWindow(start, 8, 8)
	w.counters.Completed = 2
	w.execSamples = append(w.execSamples, 30*time.Millisecond, 50*time.Millisecond)

	// Act - Open report
	open := w.report(start.Add(2*time.Minute), false)

	// Assert
	if open.WindowEnd != nil {
		t.Error("open report has WindowEnd, want nil")
	}
	if open.ThroughputPerMinute != 1.0 {
		t.Errorf("ThroughputPerMinute = %v, want 1.0", open.ThroughputPerMinute)
	}

	// Act - Closed report
	closed := w.report(start.Add(2*time.Minute), true)

	// Assert
	if closed.WindowEnd == nil {
		t.Fatal("closed report missing WindowEnd")
	}
	if !closed.WindowEnd.Equal(start.Add(2 * time.Minute)) {
		t.Errorf("WindowEnd = %s, want start+2m", closed.WindowEnd)
	}

	// Assert - Reporting did not disturb accumulation
	if w.counters.Completed != 2 || len(w.execSamples) != 2 {
		t.Error("report mutated the window")
	}
}

// TestWrapEvents_TagsKinds verifies self-describing event dumps
// Given: A mixed list of events
// When: WrapEvents is applied
// Then: Each record carries the matching kind tag; empty input yields nil
func TestWrapEvents_TagsKinds(t *testing.T) {
	events := []core.Event{
		core.TaskEnqueued{TaskID: "a"},
		core.CircuitOpened{Failures: 3},
	}

	records := WrapEvents(events)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Kind != core.EventEnqueue {
		t.Errorf("records[0].Kind = %s, want %s", records[0].Kind, core.EventEnqueue)
	}
	if records[1].Kind != core.EventCircuitOpen {
		t.Errorf("records[1].Kind = %s, want %s", records[1].Kind, core.EventCircuitOpen)
	}

	if WrapEvents(nil) != nil {
		t.Error("WrapEvents(nil) != nil")
	}
}
