package application

import (
	"sync"
	"time"
)

// Breaker throttles repeated backfill attempts per meter. One attempt per
// cooldown window, independent of poll frequency. State is process-local and
// resets on restart.
type Breaker struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
	clock    Clock
}

// NewBreaker constructs a breaker.
func NewBreaker(cooldown time.Duration, clock Clock) *Breaker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Breaker{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		clock:    clock,
	}
}

// Attempt reports whether a backfill may start for the meter and, when
// allowed, records the attempt time.
func (b *Breaker) Attempt(meterID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if last, ok := b.last[meterID]; ok && now.Sub(last) <= b.cooldown {
		return false
	}
	b.last[meterID] = now
	return true
}

// CoolingDown reports whether the meter is inside its cooldown window
// without consuming an attempt.
func (b *Breaker) CoolingDown(meterID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	last, ok := b.last[meterID]
	if !ok {
		return false
	}
	return b.clock.Now().Sub(last) <= b.cooldown
}
