package syncer

import "time"

// Backoff is the retry delay state machine for the sync loop: each failure
// doubles the delay up to the cap, each success resets it to the floor. It
// replaces timer reconfiguration with a single value the scheduler reads
// before every sleep.
type Backoff struct {
	floor   time.Duration
	cap     time.Duration
	current time.Duration
}

// NewBackoff builds a backoff starting at floor.
func NewBackoff(floor, cap time.Duration) *Backoff {
	if floor <= 0 {
		floor = 30 * time.Second
	}
	if cap < floor {
		cap = floor
	}
	return &Backoff{floor: floor, cap: cap, current: floor}
}

// Current returns the delay to wait before the next attempt.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Fail advances the state machine after a failed cycle and returns the new
// delay.
func (b *Backoff) Fail() time.Duration {
	next := b.current * 2
	if next > b.cap {
		next = b.cap
	}
	b.current = next
	return b.current
}

// Reset returns the delay to the floor after a successful cycle.
func (b *Backoff) Reset() {
	b.current = b.floor
}
