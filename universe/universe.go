// Package universe implements the top-level allocator-and-clock context
// that owns a registry of named userdata pointers shared across every
// computer mounted within it, mirroring nn_universe from the reference
// implementation.
package universe

import (
	"sync"
	"time"

	"github.com/speedy-lex/neonucleus/alloc"
)

// maxRegistryEntries bounds the named userdata registry so a runaway
// embedder can't leak unbounded entries into a single universe.
const maxRegistryEntries = 1024

// Clock supplies the universe's notion of elapsed time. Production code
// uses RealClock; tests substitute a fixed or manually-advanced clock so
// latency-dependent assertions stay deterministic.
type Clock interface {
	Now() float64
}

// RealClock reports wall-clock seconds via time.Now, matching
// nn_realTimeClock.
type RealClock struct{ start time.Time }

// NewRealClock returns a Clock anchored to the moment it's created.
func NewRealClock() *RealClock { return &RealClock{start: time.Now()} }

// Now returns seconds elapsed since the clock was created.
func (c *RealClock) Now() float64 { return time.Since(c.start).Seconds() }

// FixedClock is a Clock that never advances on its own; tests call Set or
// Advance to control it explicitly.
type FixedClock struct {
	mu  sync.Mutex
	sec float64
}

// NewFixedClock returns a FixedClock starting at t seconds.
func NewFixedClock(t float64) *FixedClock { return &FixedClock{sec: t} }

// Now returns the clock's current value.
func (c *FixedClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sec
}

// Advance moves the clock forward by d seconds.
func (c *FixedClock) Advance(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sec += d
}

// Set pins the clock to an absolute value.
func (c *FixedClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sec = t
}

// Universe is the allocator-and-clock context a host creates once and
// mounts any number of computers into. It also holds a small capped
// registry of named userdata pointers that core component tables (and
// embedders) use to find shared state, e.g. a component table's own
// bookkeeping.
type Universe struct {
	alloc alloc.Allocator
	clock Clock

	mu       sync.RWMutex
	registry map[string]any
}

// New creates a Universe over the given allocator and clock.
func New(a alloc.Allocator, clock Clock) *Universe {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Universe{
		alloc:    a,
		clock:    clock,
		registry: make(map[string]any),
	}
}

// Allocator returns the universe's memory accountant.
func (u *Universe) Allocator() alloc.Allocator { return u.alloc }

// GetTime returns the universe clock's current reading in seconds.
func (u *Universe) GetTime() float64 { return u.clock.Now() }

// SetClock replaces the universe's clock, matching nn_setClock.
func (u *Universe) SetClock(clock Clock) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.clock = clock
}

// Query looks up a named userdata pointer, returning nil if absent.
func (u *Universe) Query(name string) any {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.registry[name]
}

// Store records a named userdata pointer. Past maxRegistryEntries
// distinct names, new names are silently dropped (an existing name may
// still be overwritten) — matching the reference implementation's
// caller-cannot-depend-on-failure-reports contract for this call.
func (u *Universe) Store(name string, data any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.registry[name]; !exists && len(u.registry) >= maxRegistryEntries {
		return
	}
	u.registry[name] = data
}
