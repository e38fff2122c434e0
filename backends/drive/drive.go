// Package drive implements the drive component: sector-addressed
// storage with per-sector seek/read/write resource costs, grounded in
// the nn_drive struct in neonucleus.h (no drive.c shipped with the
// retrieved original source, so the method table below is reconstructed
// from the header's function pointers and nn_loadDriveTable's name).
package drive

import (
	"github.com/speedy-lex/neonucleus/component"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/resource"
)

// Backend is the storage interface a drive component mounts.
type Backend interface {
	Label() string
	SetLabel(label string) string
	PlatterCount() int
	Capacity() int64
	SectorSize() int
	// ReadSector reads one full sector (1-indexed, as in OpenComputers)
	// into buf, which is exactly SectorSize() long.
	ReadSector(sector int, buf []byte)
	WriteSector(sector int, buf []byte)
}

// Control configures the simulated resource costs for this drive
// instance, mirroring nn_driveControl.
type Control struct {
	RPM                   int
	ReadLatencyPerSector  float64
	WriteLatencyPerSector float64
	RandomLatencyMin      float64
	RandomLatencyMax      float64
	MotorHeat             float64
	MotorHeatRange        float64
	WriteHeatPerSector    float64
	MotorEnergyCost       float64
	ReadEnergyCost        float64
	WriteEnergyCost       float64
	ReadCostPerSector     float64
	WriteCostPerSector    float64
	SeekCostPerSector     float64
}

// drive is the state backing one mounted drive component. The backend
// lives behind a component.Shared so the same platter image can be
// retained across more than one mount point (see MountShared) and so
// every vtable method runs its backend call under the shared lock.
type drive struct {
	shared     *component.Shared[Backend]
	control    Control
	lastSector int
}

// seekLatency approximates the reference implementation's spin-up
// comment: seeking in either direction from the last accessed sector
// costs latency proportional to distance when RPM is nonzero.
func (d *drive) seekLatency(sector int) float64 {
	if d.control.RPM == 0 {
		return 0
	}
	delta := sector - d.lastSector
	if delta < 0 {
		delta = -delta
	}
	d.lastSector = sector
	return float64(delta) * d.control.ReadLatencyPerSector / float64(d.control.RPM)
}

// Table returns a computer.Table mounting drive components.
func Table() *computer.Table {
	dtor := func(tableUserdata any, comp *computer.Component, state any) {
		state.(*drive).shared.Release()
	}
	t := computer.NewTable("drive", nil, nil, dtor)

	t.Define("getLabel", true, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			label := b.Label()
			if label == "" {
				c.ReturnNil()
			} else {
				c.ReturnString([]byte(label))
			}
			return true, ""
		}, nil)
		return ""
	}, "getLabel(): string - Returns the label of the drive.")

	t.Define("setLabel", true, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		buf := c.GetArgument(0).ToString()
		if buf == nil {
			c.SetCError("bad label (string expected)")
			return ""
		}
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			c.ReturnString([]byte(b.SetLabel(string(buf))))
			return true, ""
		}, nil)
		return ""
	}, "setLabel(label: string): string - Sets the drive's label.")

	t.Define("getPlatterCount", true, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			c.ReturnInt(int64(b.PlatterCount()))
			return true, ""
		}, nil)
		return ""
	}, "getPlatterCount(): integer - Returns the number of platters in this drive.")

	t.Define("getCapacity", true, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			c.ReturnInt(b.Capacity())
			return true, ""
		}, nil)
		return ""
	}, "getCapacity(): integer - Returns the total capacity of the drive, in bytes.")

	t.Define("getSectorSize", true, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			c.ReturnInt(int64(b.SectorSize()))
			return true, ""
		}, nil)
		return ""
	}, "getSectorSize(): integer - Returns the size of a single sector, in bytes.")

	t.Define("readSector", false, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		sector := int(c.GetArgument(0).ToInt())
		if sector < 1 {
			c.SetCError("invalid sector")
			return ""
		}
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			buf := make([]byte, b.SectorSize())
			b.ReadSector(sector, buf)
			c.ReturnString(buf)
			return true, ""
		}, func() {
			resource.Apply(comp.Computer(), resource.Charge{
				Energy:     d.control.ReadEnergyCost,
				Heat:       d.control.MotorHeat,
				LatencyMin: d.control.RandomLatencyMin,
				LatencyMax: d.control.RandomLatencyMax + d.seekLatency(sector),
				CallCost:   d.control.ReadCostPerSector,
			})
		})
		return ""
	}, "readSector(sector: integer): string - Reads a whole sector. Sectors are 1-indexed.")

	t.Define("writeSector", false, func(comp *computer.Component, c *computer.Computer) string {
		d := comp.State().(*drive)
		sector := int(c.GetArgument(0).ToInt())
		buf := c.GetArgument(1).ToString()
		if sector < 1 {
			c.SetCError("invalid sector")
			return ""
		}
		if buf == nil {
			c.SetCError("bad data (string expected)")
			return ""
		}
		component.Dispatch(c, d.shared, func(b Backend) (bool, string) {
			padded := make([]byte, b.SectorSize())
			copy(padded, buf)
			b.WriteSector(sector, padded)
			return true, ""
		}, func() {
			resource.Apply(comp.Computer(), resource.Charge{
				Energy:     d.control.WriteEnergyCost,
				Heat:       d.control.MotorHeat + d.control.WriteHeatPerSector,
				LatencyMin: d.control.RandomLatencyMin,
				LatencyMax: d.control.RandomLatencyMax + d.seekLatency(sector),
				CallCost:   d.control.WriteCostPerSector,
			})
		})
		return ""
	}, "writeSector(sector: integer, data: string) - Writes a whole sector. Sectors are 1-indexed.")

	return t
}

// NewShared wraps backend in a component.Shared with an initial
// refcount of 1. Used internally by Mount; exported for hosts that want
// to build a handle before any component exists.
func NewShared(backend Backend) *component.Shared[Backend] {
	return component.NewShared[Backend](backend, nil)
}

// SharedOf returns the component.Shared backing an already-mounted
// drive component, for passing to MountShared so a second address can
// expose the same platter image.
func SharedOf(comp *computer.Component) *component.Shared[Backend] {
	return comp.State().(*drive).shared
}

// Mount creates a new drive component wrapping backend in a fresh
// component.Shared, mounted on c at address/slot using table (as
// returned by Table()).
func Mount(c *computer.Computer, table *computer.Table, address string, slot int, backend Backend, control Control) *computer.Component {
	d := &drive{shared: NewShared(backend), control: control, lastSector: 1}
	return c.NewComponent(address, slot, table, d)
}

// MountShared mounts another component at address/slot pointing at the
// same already-shared backend as an existing drive (retaining it
// first), so a single platter image can be exposed at more than one
// address without racing concurrent tick goroutines. shared is the
// handle of an existing mount, as returned by SharedOf.
func MountShared(c *computer.Computer, table *computer.Table, address string, slot int, shared *component.Shared[Backend], control Control) *computer.Component {
	shared.Retain()
	d := &drive{shared: shared, control: control, lastSector: 1}
	return c.NewComponent(address, slot, table, d)
}
