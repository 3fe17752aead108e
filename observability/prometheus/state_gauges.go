package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/scenesmith/genqueue/core"
)

// StateProvider supplies current queue state snapshots.
type StateProvider interface {
	State() core.QueueState
}

// StatePoller periodically exports queue State() snapshots into
// Prometheus gauges: depth per tier, slot occupancy, breaker state and
// the sampled free-memory reading.
type StatePoller struct {
	interval time.Duration
	provider StateProvider

	depth        *prom.GaugeVec
	slotBusy     prom.Gauge
	circuitOpen  prom.Gauge
	failureStrk  prom.Gauge
	freeMemoryMB prom.Gauge

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewStatePoller creates a state poller and registers its collectors.
func NewStatePoller(namespace string, reg prom.Registerer, provider StateProvider, interval time.Duration) (*StatePoller, error) {
	if namespace == "" {
		namespace = "genqueue"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	depth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of pending tasks per priority tier.",
	}, []string{"priority"})
	slotBusy := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "slot_busy",
		Help:      "Execution slot occupancy (1=running, 0=idle).",
	})
	circuitOpen := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_open",
		Help:      "Circuit breaker state (1=open, 0=closed).",
	})
	failureStreak := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "consecutive_failures",
		Help:      "Current consecutive failure streak.",
	})
	freeMemory := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "free_memory_mb",
		Help:      "Sampled accelerator free memory in megabytes.",
	})

	var err error
	if depth, err = registerCollector(reg, depth); err != nil {
		return nil, err
	}
	if slotBusy, err = registerCollector(reg, slotBusy); err != nil {
		return nil, err
	}
	if circuitOpen, err = registerCollector(reg, circuitOpen); err != nil {
		return nil, err
	}
	if failureStreak, err = registerCollector(reg, failureStreak); err != nil {
		return nil, err
	}
	if freeMemory, err = registerCollector(reg, freeMemory); err != nil {
		return nil, err
	}

	return &StatePoller{
		interval:     interval,
		provider:     provider,
		depth:        depth,
		slotBusy:     slotBusy,
		circuitOpen:  circuitOpen,
		failureStrk:  failureStreak,
		freeMemoryMB: freeMemory,
	}, nil
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *StatePoller) Start(ctx context.Context) {
	if p == nil || p.provider == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *StatePoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *StatePoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *StatePoller) collectOnce() {
	st := p.provider.State()

	for priority, depth := range st.DepthByPriority {
		p.depth.WithLabelValues(priority.String()).Set(float64(depth))
	}
	if st.Running != nil {
		p.slotBusy.Set(1)
	} else {
		p.slotBusy.Set(0)
	}
	if st.CircuitOpen {
		p.circuitOpen.Set(1)
	} else {
		p.circuitOpen.Set(0)
	}
	p.failureStrk.Set(float64(st.ConsecutiveFailures))
	if st.Resource != nil {
		p.freeMemoryMB.Set(float64(st.Resource.FreeMB))
	}
}
