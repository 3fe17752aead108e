package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/scenesmith/genqueue/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// Exporter translates queue events into Prometheus series. It implements
// core.Listener; subscribe it to a queue and scrape the registry.
type Exporter struct {
	enqueuedTotal   *prom.CounterVec
	outcomeTotal    *prom.CounterVec
	circuitOpens    prom.Counter
	resourceBlocks  prom.Counter
	taskWaitSeconds *prom.HistogramVec
	taskExecSeconds *prom.HistogramVec
}

var _ core.Listener = (*Exporter)(nil)

// NewExporter creates and registers the queue collectors.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	if namespace == "" {
		namespace = "genqueue"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	enqueuedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_enqueued_total",
		Help:      "Total number of admitted tasks.",
	}, []string{"type", "priority"})
	outcomeVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_finished_total",
		Help:      "Total number of finished tasks by outcome.",
	}, []string{"type", "priority", "outcome"})
	circuitOpens := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_opens_total",
		Help:      "Total number of circuit breaker openings.",
	})
	resourceBlocks := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "resource_blocks_total",
		Help:      "Total number of admissions deferred by the resource gate.",
	})
	waitVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_wait_seconds",
		Help:      "Time tasks spent pending before release.",
		Buckets:   buckets,
	}, []string{"type", "priority"})
	execVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_exec_seconds",
		Help:      "Execution time of finished tasks by outcome.",
		Buckets:   buckets,
	}, []string{"type", "priority", "outcome"})

	var err error
	if enqueuedVec, err = registerCollector(reg, enqueuedVec); err != nil {
		return nil, err
	}
	if outcomeVec, err = registerCollector(reg, outcomeVec); err != nil {
		return nil, err
	}
	if circuitOpens, err = registerCollector(reg, circuitOpens); err != nil {
		return nil, err
	}
	if resourceBlocks, err = registerCollector(reg, resourceBlocks); err != nil {
		return nil, err
	}
	if waitVec, err = registerCollector(reg, waitVec); err != nil {
		return nil, err
	}
	if execVec, err = registerCollector(reg, execVec); err != nil {
		return nil, err
	}

	return &Exporter{
		enqueuedTotal:   enqueuedVec,
		outcomeTotal:    outcomeVec,
		circuitOpens:    circuitOpens,
		resourceBlocks:  resourceBlocks,
		taskWaitSeconds: waitVec,
		taskExecSeconds: execVec,
	}, nil
}

// OnQueueEvent folds one event into the exported series.
func (m *Exporter) OnQueueEvent(e core.Event) {
	if m == nil {
		return
	}

	switch ev := e.(type) {
	case core.TaskEnqueued:
		m.enqueuedTotal.WithLabelValues(typeLabel(ev.TaskType), ev.Priority.String()).Inc()
	case core.TaskDequeued:
		m.taskWaitSeconds.WithLabelValues(typeLabel(ev.TaskType), ev.Priority.String()).Observe(ev.Wait.Seconds())
	case core.TaskCompleted:
		labels := []string{typeLabel(ev.TaskType), ev.Priority.String(), "complete"}
		m.outcomeTotal.WithLabelValues(labels...).Inc()
		m.taskExecSeconds.WithLabelValues(labels...).Observe(ev.ExecTime.Seconds())
	case core.TaskFailed:
		labels := []string{typeLabel(ev.TaskType), ev.Priority.String(), "fail"}
		m.outcomeTotal.WithLabelValues(labels...).Inc()
		m.taskExecSeconds.WithLabelValues(labels...).Observe(ev.ExecTime.Seconds())
	case core.TaskTimedOut:
		labels := []string{typeLabel(ev.TaskType), ev.Priority.String(), "timeout"}
		m.outcomeTotal.WithLabelValues(labels...).Inc()
		m.taskExecSeconds.WithLabelValues(labels...).Observe(ev.ExecTime.Seconds())
	case core.TaskCancelled:
		m.outcomeTotal.WithLabelValues(typeLabel(ev.TaskType), ev.Priority.String(), "cancel").Inc()
	case core.CircuitOpened:
		m.circuitOpens.Inc()
	case core.ResourceBlocked:
		m.resourceBlocks.Inc()
	}
}

func typeLabel(t core.TaskType) string {
	return normalizeLabel(string(t), "unknown")
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
