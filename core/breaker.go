package core

import (
	"sync"
	"time"
)

// CircuitBreaker halts admissions after a run of consecutive failures,
// giving the accelerator room to recover instead of feeding it more work
// while it is unhealthy.
//
// The streak counts failures and timeouts alike; any single success
// resets it to zero. An open breaker closes on its own once the
// cool-down has elapsed; closing does not touch the streak, so the very
// next outcome decides whether it reopens immediately. Only an explicit
// Reset clears both.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures int
	open     bool
	openedAt time.Time
}

// NewCircuitBreaker creates a breaker that opens once threshold
// consecutive failures accumulate and stays open for cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// RecordFailure extends the streak and reports whether this failure
// transitioned the breaker to open.
func (b *CircuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.closeIfCooledLocked(now)

	b.failures++
	if !b.open && b.failures >= b.threshold {
		b.open = true
		b.openedAt = now
		return true
	}
	return false
}

// RecordSuccess zeroes the streak. The open flag is governed by the
// cool-down alone, so a stray success while open does not close early.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Reset closes the breaker and clears the streak. Returns whether it was
// open.
func (b *CircuitBreaker) Reset() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasOpen := b.open
	b.open = false
	b.failures = 0
	return wasOpen
}

// IsOpen answers whether admissions are currently halted, performing the
// lazy cool-down check.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeIfCooledLocked(time.Now())
	return b.open
}

// Failures returns the current streak length.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Snapshot returns the open flag and streak in one consistent read.
func (b *CircuitBreaker) Snapshot() (open bool, failures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeIfCooledLocked(time.Now())
	return b.open, b.failures
}

// Threshold returns the configured streak length that opens the breaker.
func (b *CircuitBreaker) Threshold() int { return b.threshold }

// Cooldown returns the configured open duration.
func (b *CircuitBreaker) Cooldown() time.Duration { return b.cooldown }

func (b *CircuitBreaker) closeIfCooledLocked(now time.Time) {
	if b.open && now.Sub(b.openedAt) >= b.cooldown {
		b.open = false
	}
}
