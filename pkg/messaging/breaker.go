package messaging

import (
	"sync"
	"time"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "closed"
}

// Breaker pauses consumption after threshold consecutive handler failures,
// so a downstream outage does not spin through the queue. After timeout one
// trial delivery is let through; halfOpenSuccesses successes close it again.
type Breaker struct {
	mu                sync.Mutex
	state             BreakerState
	failures          int
	successes         int
	threshold         int
	halfOpenSuccesses int
	timeout           time.Duration
	openedAt          time.Time
	now               func() time.Time
}

func NewBreaker(threshold int, timeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &Breaker{threshold: threshold, halfOpenSuccesses: 3, timeout: timeout, now: time.Now}
}

// Allow reports whether a delivery may be handled now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = StateHalfOpen
		b.successes = 0
	}
	return true
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.halfOpenSuccesses {
			b.state = StateClosed
		}
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Wait returns how long until the breaker lets a trial through.
func (b *Breaker) Wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return 0
	}
	if d := b.timeout - b.now().Sub(b.openedAt); d > 0 {
		return d
	}
	return 0
}
