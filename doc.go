// Package genqueue provides admission control and execution scheduling
// for a single memory-constrained AI-generation accelerator.
//
// The accelerator runs one job at a time. This library sits in front of
// it and decides which job goes next: tasks queue in three priority
// tiers (high > normal > low, FIFO within a tier), a resource gate
// defers the head task while free memory is insufficient, and a circuit
// breaker halts admissions after a run of consecutive failures.
//
// # Quick Start
//
// Build a queue, attach the executor hand-off and report outcomes back:
//
//	q := genqueue.NewAdmissionQueue(genqueue.DefaultQueueConfig())
//	q.SetDispatch(func(t genqueue.Task) {
//		go func() {
//			if err := runOnAccelerator(t); err != nil {
//				q.Fail(t.ID, err)
//				return
//			}
//			q.Complete(t.ID)
//		}()
//	})
//
//	id, err := q.Enqueue(genqueue.Task{Type: "keyframe", Priority: genqueue.PriorityHigh})
//
// # Key Concepts
//
// AdmissionQueue: the single execution slot guard. Release is
// level-triggered: every state change re-evaluates whether the head task
// can start. The head is strict: while the resource gate blocks it,
// nothing behind it runs, so a large job can never be starved by smaller
// ones slipping past.
//
// CircuitBreaker: counts consecutive failures and timeouts; any success
// resets the streak. At the threshold it opens and admissions pause
// until the cool-down elapses or an operator resets it.
//
// ResourceGate: compares a sampled free-memory reading against the per
// task type requirement table. A blocked task is deferred, never failed.
//
// Collector: folds queue events into rolling windows with exact
// counters and latency percentiles, samples queue state on an interval,
// and keeps bounded rings of recent events and snapshots for
// inspection:
//
//	c := metrics.NewCollector(metrics.DefaultConfig())
//	detach, _ := metrics.Attach(ctx, q, c)
//	defer detach()
//
// # Executor Contract
//
// The queue never runs task bodies. A released task is handed to the
// dispatch callback; the host executes it out-of-band and reports
// exactly one terminal outcome via Complete, Fail or Cancel. Reports for
// IDs the queue is not tracking fail fast with ErrUnknownTask.
package genqueue
