package resource

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/speedy-lex/neonucleus/computer"
)

// BufferedIndirect throttles a high-frequency, low-individual-cost
// operation (EEPROM/filesystem byte reads, for instance) the way
// nn_simulateBufferedIndirect does: rather than charging call-budget per
// call, it accumulates into a per-component token bucket holding at most
// amountPerTick tokens and refilled continuously at amountPerTick tokens
// per wall-clock second (it is not reset at tick boundaries), and only
// trips StateOverworked once the bucket is spent.
//
// The token arithmetic is borrowed from golang.org/x/time/rate (a
// Limiter's Tokens() bookkeeping is exactly a leaky/token bucket), but
// only its synchronous AllowN-style accounting is used — never its
// blocking Wait, which would violate the synchronous, no-mid-method-
// cancellation contract every component method has.
type BufferedIndirect struct {
	mu       sync.Mutex
	limiters map[*computer.Component]*rate.Limiter
}

// NewBufferedIndirect returns an empty per-component throttle registry.
func NewBufferedIndirect() *BufferedIndirect {
	return &BufferedIndirect{limiters: make(map[*computer.Component]*rate.Limiter)}
}

// Simulate charges amount against comp's bucket sized by
// amountPerTick. If the bucket is exhausted, the owning computer is
// pushed into StateOverworked via TriggerIndirect, the same terminal
// effect nn_triggerIndirect has.
func (b *BufferedIndirect) Simulate(comp *computer.Component, amount, amountPerTick float64) {
	if amountPerTick <= 0 {
		return
	}
	b.mu.Lock()
	lim, ok := b.limiters[comp]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(amountPerTick), int(amountPerTick))
		b.limiters[comp] = lim
	}
	b.mu.Unlock()

	if !lim.AllowN(time.Now(), int(amount)) {
		comp.Computer().TriggerIndirect()
	}
}

// Forget releases a removed component's throttle state so the registry
// doesn't grow unbounded across a long-running universe.
func (b *BufferedIndirect) Forget(comp *computer.Component) {
	b.mu.Lock()
	delete(b.limiters, comp)
	b.mu.Unlock()
}
