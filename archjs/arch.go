// Package archjs implements a reference Architecture embedding goja, a
// pure-Go ECMAScript runtime: guest programs are plain JavaScript, with
// an "nn" global bridging to component invocation and the signal
// queue, mirroring how archguestvm exposes the same operations as
// opcodes instead of function calls.
package archjs

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/fjl/memsize"
	"github.com/golang/snappy"

	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/value"
)

// state is the per-computer architecture state: the runtime plus the most
// recently loaded source, kept around so Serialize can snapshot it and
// Tick knows whether a global tick() function exists yet.
type state struct {
	rt     *goja.Runtime
	source string
	tickFn goja.Callable
}

// Arch is the goja-backed Architecture. One Arch value can be shared
// across every computer that uses it; all state lives in the
// per-computer state value Setup returns.
type Arch struct{}

func (Arch) Name() string { return "js" }

// Setup creates a fresh goja.Runtime and binds its "nn" global. No
// guest source is loaded yet; LoadSource (or Deserialize) does that.
func (Arch) Setup(c *computer.Computer) (any, error) {
	st := &state{rt: goja.New()}
	if err := bindGlobals(c, st); err != nil {
		return nil, fmt.Errorf("archjs: binding globals: %w", err)
	}
	return st, nil
}

func (Arch) Teardown(c *computer.Computer, s any) {}

// MemoryUsage uses memsize to walk the runtime's retained Go-side
// object graph; this is the one part of a goja.Runtime's footprint
// that escapes a simple byte count, since most of its state is on the
// Go heap rather than in a flat buffer the way archguestvm's Memory is.
func (Arch) MemoryUsage(c *computer.Computer, s any) int64 {
	st := s.(*state)
	sizes := memsize.Scan(st.rt)
	return int64(sizes.Total)
}

// Tick calls the guest's global tick() function, if one is defined. A
// thrown JS exception is surfaced through the computer's error slot
// instead of propagating as a Go panic, matching how a failed direct
// component call reports an error string rather than aborting the
// caller.
func (a Arch) Tick(c *computer.Computer, s any) {
	st := s.(*state)
	if st.tickFn == nil {
		fn, ok := goja.AssertFunction(st.rt.Get("tick"))
		if !ok {
			return
		}
		st.tickFn = fn
	}
	_, err := st.tickFn(goja.Undefined())
	if err != nil {
		if exc, ok := err.(*goja.Exception); ok {
			c.SetError(exc.Value().String())
		} else {
			c.SetError(err.Error())
		}
	}
}

// LoadSource compiles and runs src as the guest program, replacing
// whatever global tick() was previously bound.
func (a Arch) LoadSource(c *computer.Computer, s any, src string) error {
	st := s.(*state)
	if _, err := st.rt.RunString(src); err != nil {
		return err
	}
	st.source = src
	st.tickFn = nil
	return nil
}

// Serialize snapshots the loaded source, snappy-compressed: a guest's
// source text compresses well, and this stands in for the kind of
// "shrink the blob before it hits durable storage" step a long-running
// host naturally wants for any Serialize implementation of real size.
func (Arch) Serialize(c *computer.Computer, s any) ([]byte, error) {
	st := s.(*state)
	return snappy.Encode(nil, []byte(st.source)), nil
}

// Deserialize decompresses a Serialize snapshot and re-runs it as the
// guest source.
func (a Arch) Deserialize(c *computer.Computer, data []byte, s any) error {
	src, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("archjs: decompressing snapshot: %w", err)
	}
	return a.LoadSource(c, s, string(src))
}

// bindGlobals installs the "nn" object a guest script calls into the
// runtime, forwarding to the same Computer operations archguestvm's
// OpInvoke/OpPushSignal/OpPopSignal/OpSignalSize/OpUptime reach through
// opcodes instead.
func bindGlobals(c *computer.Computer, st *state) error {
	nn := map[string]interface{}{
		"invoke": func(address, method string) bool {
			comp := c.FindComponent(address)
			if comp == nil {
				return false
			}
			return comp.Invoke(c, method)
		},
		"pushSignal": func(payload int64) bool {
			reason := c.PushSignal([]computer.Value{value.Int(payload)})
			return reason == ""
		},
		"popSignal": func() { c.PopSignal() },
		"signalSize": func() int {
			return c.SignalSize()
		},
		"uptime": func() float64 {
			return c.Uptime()
		},
		"resetCall":    func() { c.ResetCall() },
		"addArgument":  func(i int64) { c.AddArgument(value.Int(i)) },
		"returnInt":    func(i int64) { c.ReturnInt(i) },
		"returnCount":  func() int { return c.ReturnCount() },
		"getReturnInt": func(idx int) int64 { return c.GetReturn(idx).ToInt() },
		"getError":     func() string { return c.GetError() },
	}
	return st.rt.Set("nn", nn)
}
