package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/scenesmith/genqueue/core"
	"github.com/scenesmith/genqueue/logging"
)

// webhookExecutor forwards released tasks to an external executor over
// HTTP. The executor reports back through the task endpoints.
type webhookExecutor struct {
	url    string
	client *http.Client
	queue  *core.AdmissionQueue
	logger logging.Logger
}

func newWebhookExecutor(url string, queue *core.AdmissionQueue, logger logging.Logger) *webhookExecutor {
	return &webhookExecutor{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		queue:  queue,
		logger: logger,
	}
}

// Dispatch posts the task to the webhook. Delivery failures fail the
// task so the slot frees up instead of waiting out the budget.
func (w *webhookExecutor) Dispatch(t core.Task) {
	go func() {
		if err := w.post(t); err != nil {
			w.logger.Error("webhook delivery failed",
				logging.F("taskId", t.ID),
				logging.F("error", err))
			if failErr := w.queue.Fail(t.ID, fmt.Errorf("webhook delivery: %w", err)); failErr != nil {
				w.logger.Warn("could not fail undelivered task",
					logging.F("taskId", t.ID),
					logging.F("error", failErr))
			}
			return
		}
		w.logger.Debug("task delivered", logging.F("taskId", t.ID))
	}()
}

func (w *webhookExecutor) post(t core.Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("executor returned status %d", resp.StatusCode)
	}
	return nil
}

// Payload keys understood by the simulated executor.
const (
	simLatencyKey = "sim_latency_ms"
	simOutcomeKey = "sim_outcome"
	simReasonKey  = "sim_reason"
)

// simExecutor stands in for a real accelerator during demos and load
// tests. Latency and outcome are steered through task payload keys.
type simExecutor struct {
	queue  *core.AdmissionQueue
	logger logging.Logger
}

func newSimExecutor(queue *core.AdmissionQueue, logger logging.Logger) *simExecutor {
	return &simExecutor{queue: queue, logger: logger}
}

func (s *simExecutor) Dispatch(t core.Task) {
	go s.run(t)
}

func (s *simExecutor) run(t core.Task) {
	latency := 300 * time.Millisecond
	if raw, ok := t.Payload[simLatencyKey]; ok {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			latency = time.Duration(ms) * time.Millisecond
		}
	}
	time.Sleep(latency)

	switch t.Payload[simOutcomeKey] {
	case "fail":
		reason := t.Payload[simReasonKey]
		if reason == "" {
			reason = "simulated failure"
		}
		s.report(t.ID, s.queue.Fail(t.ID, errors.New(reason)))
	case "hang":
		// Never report; the task budget expires and the queue records a
		// timeout.
		s.logger.Info("simulated hang", logging.F("taskId", t.ID))
	default:
		s.report(t.ID, s.queue.Complete(t.ID))
	}
}

// report logs reports the queue refused. The task may have been
// cancelled or timed out while the simulator was sleeping.
func (s *simExecutor) report(id string, err error) {
	if err != nil {
		s.logger.Debug("simulated report refused",
			logging.F("taskId", id),
			logging.F("error", err))
	}
}
