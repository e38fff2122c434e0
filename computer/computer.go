// Package computer implements the Computer kernel: the state machine,
// signal queue, call frame, user list, energy/heat bookkeeping, error
// slot, and component registry a host drives once per Tick, mirroring
// nn_computer from the reference implementation.
package computer

import (
	"fmt"
	"sync"

	"github.com/go-stack/stack"
	"github.com/speedy-lex/neonucleus/nlog"
	"github.com/speedy-lex/neonucleus/universe"
)

// Computer is a single emulated machine: one architecture instance plus
// its mounted components, signal queue, and resource state.
type Computer struct {
	mu sync.Mutex // matches nn_lockComputer/nn_unlockComputer (guest-code-level lock)

	universe *universe.Universe
	address  string
	tmpAddr  string

	arch         Architecture
	archState    any
	nextArch     Architecture
	supportedArch []Architecture

	memoryLimit int64

	timeOffset float64

	state State

	// Call frame.
	args []Value
	rets []Value

	// Error slot.
	err string

	// Signal queue.
	signals []signal

	// Users.
	users []string

	// Energy / heat.
	energy                 float64
	maxEnergy               float64
	temperature             float64
	roomTemperature         float64
	temperatureCoefficient  float64

	// Call budget.
	callCost   float64
	callBudget float64

	// Components.
	components   []*Component
	componentCap int
}

// signal is one queued event: up to MaxSignalVals values, packet-size
// bounded at construction time (not re-checked on pop).
type signal struct {
	values []Value
}

// Value is a re-export of value.Value to keep computer's public API from
// forcing every caller to also import the value package under a different
// name; see valuealias.go.
// (kept as a type alias, see valuealias.go)

// New constructs a computer mounted in u, with the given address, starting
// architecture, and resource caps. It calls arch.Setup immediately; if
// Setup fails the computer is not created and a non-nil error explains
// why, mirroring the reference implementation's cascading cleanup on
// partial construction failure.
func New(u *universe.Universe, address string, arch Architecture, memoryLimit int64, componentCap int) (*Computer, error) {
	if arch == nil {
		nlog.Error(nlog.Default(), "msg", "computer: architecture must not be nil", "caller", stack.Caller(1))
		return nil, fmt.Errorf("computer: architecture must not be nil")
	}
	if componentCap <= 0 {
		nlog.Error(nlog.Default(), "msg", "computer: componentCap must be positive", "componentCap", componentCap, "caller", stack.Caller(1))
		return nil, fmt.Errorf("computer: componentCap must be positive, got %d", componentCap)
	}
	c := &Computer{
		universe:               u,
		address:                address,
		arch:                   arch,
		nextArch:               arch,
		memoryLimit:            memoryLimit,
		timeOffset:             u.GetTime(),
		state:                  StateSetup,
		maxEnergy:              5000,
		temperature:            30,
		roomTemperature:        30,
		temperatureCoefficient: 1,
		callBudget:             256,
		componentCap:           componentCap,
	}
	state, err := arch.Setup(c)
	if err != nil {
		nlog.Error(nlog.Default(), "msg", "computer: architecture setup failed", "address", address, "err", err, "caller", stack.Caller(1))
		return nil, fmt.Errorf("computer: architecture setup: %w", err)
	}
	c.archState = state
	return c, nil
}

// Universe returns the universe this computer was mounted in.
func (c *Computer) Universe() *universe.Universe { return c.universe }

// Address returns the computer's own component address.
func (c *Computer) Address() string { return c.address }

// SetTmpAddress stores the transient address assigned for this boot,
// matching nn_setTmpAddress.
func (c *Computer) SetTmpAddress(tmp string) { c.tmpAddr = tmp }

// TmpAddress returns the transient address, if any.
func (c *Computer) TmpAddress() string { return c.tmpAddr }

// Tick resets the per-tick call cost and error slot, runs one quantum of
// the architecture, and returns the resulting state.
func (c *Computer) Tick() State {
	c.callCost = 0
	c.state = StateRunning
	c.ClearError()
	c.arch.Tick(c, c.archState)
	return c.state
}

// Uptime returns seconds elapsed since this computer was constructed,
// measured against the universe clock.
func (c *Computer) Uptime() float64 {
	return c.universe.GetTime() - c.timeOffset
}

// MemoryUsed delegates to the architecture's own accounting.
func (c *Computer) MemoryUsed() int64 {
	return c.arch.MemoryUsage(c, c.archState)
}

// MemoryTotal returns the configured memory ceiling.
func (c *Computer) MemoryTotal() int64 { return c.memoryLimit }

// Architecture returns the currently active architecture.
func (c *Computer) Architecture() Architecture { return c.arch }

// NextArchitecture returns the architecture to switch to on StateSwitch.
func (c *Computer) NextArchitecture() Architecture { return c.nextArch }

// SetNextArchitecture records which architecture a StateSwitch should
// bring the computer back up with.
func (c *Computer) SetNextArchitecture(a Architecture) { c.nextArch = a }

// AddSupportedArchitecture registers an additional architecture this
// computer may switch to, up to MaxArchitectures; extra registrations are
// silently dropped.
func (c *Computer) AddSupportedArchitecture(a Architecture) {
	if len(c.supportedArch) >= MaxArchitectures {
		return
	}
	c.supportedArch = append(c.supportedArch, a)
}

// SupportedArchitecture returns the idx'th registered architecture, or
// nil if idx is out of range.
func (c *Computer) SupportedArchitecture(idx int) Architecture {
	if idx < 0 || idx >= len(c.supportedArch) {
		return nil
	}
	return c.supportedArch[idx]
}

// State returns the computer's current lifecycle state.
func (c *Computer) State() State { return c.state }

// SetState forces the computer's lifecycle state.
func (c *Computer) SetState(s State) { c.state = s }

// Serialize asks the architecture for an opaque snapshot of its guest
// program and state.
func (c *Computer) Serialize() ([]byte, error) {
	return c.arch.Serialize(c, c.archState)
}

// Deserialize restores a snapshot produced by Serialize.
func (c *Computer) Deserialize(data []byte) error {
	return c.arch.Deserialize(c, data, c.archState)
}

// Lock acquires the computer's guest-level lock, matching
// nn_lockComputer. Component backends and architectures use this to
// serialize access to shared per-computer state that isn't already
// protected by a more specific guard.
func (c *Computer) Lock() { c.mu.Lock() }

// Unlock releases the lock acquired by Lock.
func (c *Computer) Unlock() { c.mu.Unlock() }

// Delete tears the computer down: clears the error slot and call frame,
// drains the signal queue (dropping every retained value), and calls
// Architecture.Teardown. Callers must not use the Computer afterward.
func (c *Computer) Delete() {
	c.ClearError()
	c.ResetCall()
	for len(c.signals) > 0 {
		c.PopSignal()
	}
	c.arch.Teardown(c, c.archState)
}
