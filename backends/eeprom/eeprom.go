// Package eeprom implements the EEPROM component: a small read-mostly
// code+data store with a toggleable readonly flag, an intended-
// architecture tag, and a CRC-32 checksum, grounded in
// components/eeprom.c from the reference implementation.
package eeprom

import (
	"fmt"
	"hash/crc32"

	"github.com/speedy-lex/neonucleus/component"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/resource"
)

// Backend is the storage interface an EEPROM component mounts. Volatile
// below is the in-memory reference implementation; embedders may supply
// their own (e.g. backed by a real file on the host disk).
type Backend interface {
	Get() ([]byte, error)
	Set(code []byte) error
	GetData() ([]byte, error)
	SetData(data []byte) error
	GetLabel() (string, error)
	// SetLabel returns the label actually stored, which may have been
	// truncated to computer.LabelSize.
	SetLabel(label string) (string, error)
	GetArchitecture() (string, error)
	SetArchitecture(arch string) error
	IsReadOnly() (bool, error)
	// MakeReadOnly returns whether the flag actually flipped (false if it
	// was already read-only), matching the newer bool-returning form the
	// reference header documents as current.
	MakeReadOnly() (bool, error)
	Size() int
	DataSize() int
}

// Control configures the simulated resource costs for this EEPROM
// instance.
type Control struct {
	ReadEnergyCostPerByte  float64
	WriteEnergyCostPerByte float64
	ReadHeatPerByte        float64
	WriteHeatPerByte       float64
	BytesReadPerTick       float64
	BytesWrittenPerTick    float64
}

// eeprom is the state backing one mounted EEPROM component. The backend
// lives behind a component.Shared so the same EEPROM image can be
// retained across more than one mount point (see MountShared) and so
// every vtable method runs its backend call under the shared lock.
type eeprom struct {
	shared  *component.Shared[Backend]
	control Control
}

// Table returns a computer.Table mounting EEPROM components. Call once
// per universe and store it for reuse across every mounted EEPROM.
func Table() *computer.Table {
	throttle := resource.NewBufferedIndirect()
	dtor := func(tableUserdata any, comp *computer.Component, state any) {
		state.(*eeprom).shared.Release()
		throttle.Forget(comp)
	}
	t := computer.NewTable("eeprom", nil, nil, dtor)

	readCost := func(comp *computer.Component, e *eeprom, n int) {
		resource.Apply(comp.Computer(), resource.Charge{
			Energy: e.control.ReadEnergyCostPerByte * float64(n),
			Heat:   e.control.ReadHeatPerByte * float64(n),
		})
		throttle.Simulate(comp, float64(n), e.control.BytesReadPerTick)
	}
	writeCost := func(comp *computer.Component, e *eeprom, n int) {
		resource.Apply(comp.Computer(), resource.Charge{
			Energy: e.control.WriteEnergyCostPerByte * float64(n),
			Heat:   e.control.WriteHeatPerByte * float64(n),
		})
		throttle.Simulate(comp, float64(n), e.control.BytesWrittenPerTick)
	}

	t.Define("getSize", true, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			c.ReturnInt(int64(b.Size()))
			return true, ""
		}, nil)
		return ""
	}, "getSize(): integer - Returns the maximum code capacity of the EEPROM.")

	t.Define("getDataSize", true, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			c.ReturnInt(int64(b.DataSize()))
			return true, ""
		}, nil)
		return ""
	}, "getDataSize(): integer - Returns the maximum data capacity of the EEPROM.")

	t.Define("getLabel", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		var n int
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			label, err := b.GetLabel()
			if err != nil {
				return false, err.Error()
			}
			n = len(label)
			if label == "" {
				c.ReturnNil()
			} else {
				c.ReturnString([]byte(label))
			}
			return true, ""
		}, func() { readCost(comp, e, n) })
		return ""
	}, "getLabel(): string - Returns the current label.")

	t.Define("setLabel", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		arg := c.GetArgument(0)
		buf := arg.ToString()
		if buf == nil {
			c.SetCError("bad label (string expected)")
			return ""
		}
		var n int
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			actual, err := b.SetLabel(string(buf))
			if err != nil {
				return false, err.Error()
			}
			n = len(actual)
			c.ReturnString([]byte(actual))
			return true, ""
		}, func() { writeCost(comp, e, n) })
		return ""
	}, "setLabel(label: string): string - Sets the new label. Returns the actual label set to, which may be truncated.")

	t.Define("get", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		var n int
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			data, err := b.Get()
			if err != nil {
				return false, err.Error()
			}
			n = len(data)
			c.ReturnString(data)
			return true, ""
		}, func() { readCost(comp, e, n) })
		return ""
	}, "get(): string - Reads the current code contents.")

	t.Define("set", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		arg := c.GetArgument(0)
		buf := arg.ToString()
		if buf == nil && !arg.IsNil() {
			c.SetCError("bad data (string expected)")
			return ""
		}
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			if len(buf) > b.Size() {
				return false, "out of space"
			}
			ro, err := b.IsReadOnly()
			if err != nil {
				return false, err.Error()
			}
			if ro {
				return false, "readonly"
			}
			if err := b.Set(buf); err != nil {
				return false, err.Error()
			}
			return true, ""
		}, func() { writeCost(comp, e, len(buf)) })
		return ""
	}, "set(data: string) - Sets the current code contents.")

	t.Define("getData", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		var n int
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			data, err := b.GetData()
			if err != nil {
				return false, err.Error()
			}
			n = len(data)
			c.ReturnString(data)
			return true, ""
		}, func() { readCost(comp, e, n) })
		return ""
	}, "getData(): string - Reads the current data contents.")

	t.Define("setData", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		arg := c.GetArgument(0)
		buf := arg.ToString()
		if buf == nil && !arg.IsNil() {
			c.SetCError("bad data (string expected)")
			return ""
		}
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			if len(buf) > b.DataSize() {
				return false, "out of space"
			}
			ro, err := b.IsReadOnly()
			if err != nil {
				return false, err.Error()
			}
			if ro {
				return false, "readonly"
			}
			if err := b.SetData(buf); err != nil {
				return false, err.Error()
			}
			return true, ""
		}, func() { writeCost(comp, e, len(buf)) })
		return ""
	}, "setData(data: string) - Sets the current data contents.")

	t.Define("getArchitecture", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		var n int
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			arch, err := b.GetArchitecture()
			if err != nil {
				return false, err.Error()
			}
			n = len(arch)
			if arch == "" {
				c.ReturnNil()
			} else {
				c.ReturnString([]byte(arch))
			}
			return true, ""
		}, func() { readCost(comp, e, n) })
		return ""
	}, "getArchitecture(): string - Gets the intended architecture.")

	t.Define("setArchitecture", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		arg := c.GetArgument(0)
		buf := arg.ToCString()
		if buf == nil {
			buf = arg.ToString()
		}
		if buf == nil {
			c.SetCError("bad data (string expected)")
			return ""
		}
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			ro, err := b.IsReadOnly()
			if err != nil {
				return false, err.Error()
			}
			if ro {
				return false, "readonly"
			}
			if err := b.SetArchitecture(string(buf)); err != nil {
				return false, err.Error()
			}
			return true, ""
		}, func() { writeCost(comp, e, len(buf)) })
		return ""
	}, "setArchitecture(data: string) - Sets the intended architecture.")

	t.Define("isReadOnly", true, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			ro, err := b.IsReadOnly()
			if err != nil {
				return false, err.Error()
			}
			c.ReturnBool(ro)
			return true, ""
		}, nil)
		return ""
	}, "isReadOnly(): boolean - Returns whether this EEPROM is read-only.")

	t.Define("makeReadOnly", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			done, err := b.MakeReadOnly()
			if err != nil {
				return false, err.Error()
			}
			c.ReturnBool(done)
			return true, ""
		}, nil)
		return ""
	}, "makeReadOnly(): boolean - Makes the current EEPROM read-only. Normally, this cannot be undone.")

	// Legacy alias. Registered separately because Table.Define stores
	// methods by name, not by function identity.
	t.Define("makeReadonly", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			done, err := b.MakeReadOnly()
			if err != nil {
				return false, err.Error()
			}
			c.ReturnBool(done)
			return true, ""
		}, nil)
		return ""
	}, "makeReadonly(): boolean - Legacy alias to makeReadOnly().")

	t.Define("getChecksum", false, func(comp *computer.Component, c *computer.Computer) string {
		e := comp.State().(*eeprom)
		var n int
		component.Dispatch(c, e.shared, func(b Backend) (bool, string) {
			data, err := b.GetData()
			if err != nil {
				return false, err.Error()
			}
			code, err := b.Get()
			if err != nil {
				return false, err.Error()
			}
			n = len(data) + len(code)
			sum := crc32.ChecksumIEEE(append(append([]byte{}, data...), code...))
			c.ReturnString([]byte(fmt.Sprintf("%08x", sum)))
			return true, ""
		}, func() { readCost(comp, e, n) })
		return ""
	}, "getChecksum(): string - Returns a checksum of the code and data on the EEPROM.")

	return t
}

// NewShared wraps backend in a component.Shared with an initial
// refcount of 1. Used internally by Mount; exported so a host that
// wants to retain a backend before any component exists (e.g. to hand
// it to MountShared ahead of the first mount) can construct one
// directly.
func NewShared(backend Backend) *component.Shared[Backend] {
	return component.NewShared[Backend](backend, nil)
}

// SharedOf returns the component.Shared backing an already-mounted
// EEPROM component, for passing to MountShared so a second address can
// expose the same image.
func SharedOf(comp *computer.Component) *component.Shared[Backend] {
	return comp.State().(*eeprom).shared
}

// Mount creates a new EEPROM component wrapping backend in a fresh
// component.Shared, and mounts it on c at address/slot using table (as
// returned by Table()).
func Mount(c *computer.Computer, table *computer.Table, address string, slot int, backend Backend, control Control) *computer.Component {
	e := &eeprom{shared: NewShared(backend), control: control}
	return c.NewComponent(address, slot, table, e)
}

// MountShared mounts another component at address/slot pointing at the
// same already-shared backend as an existing EEPROM (retaining it
// first), so a single EEPROM image can be exposed at more than one
// address without racing concurrent tick goroutines. shared is the
// handle of an existing mount, as returned by SharedOf.
func MountShared(c *computer.Computer, table *computer.Table, address string, slot int, shared *component.Shared[Backend], control Control) *computer.Component {
	shared.Retain()
	e := &eeprom{shared: shared, control: control}
	return c.NewComponent(address, slot, table, e)
}
