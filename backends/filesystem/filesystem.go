// Package filesystem implements the filesystem component: a tree of
// named files addressable by path, exposed through a flat open-file-
// descriptor table, grounded in components/filesystem.c from the
// reference implementation.
package filesystem

import (
	"math"
	"strings"

	"github.com/speedy-lex/neonucleus/component"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/resource"
	"github.com/speedy-lex/neonucleus/value"
)

// illegalChars mirrors nn_fs_illegalPath's character set exactly.
const illegalChars = "\"\\:*?<>|"

// IllegalPath reports whether path contains any character the reference
// implementation rejects.
func IllegalPath(path string) bool {
	return strings.ContainsAny(path, illegalChars)
}

// Backend is the storage interface a filesystem component mounts.
type Backend interface {
	Label() string
	// SetLabel returns the label actually stored (may be truncated).
	SetLabel(label string) string
	SpaceUsed() int64
	SpaceTotal() int64
	IsReadOnly() bool
	Size(path string) int64
	Remove(path string) bool
	// LastModified returns milliseconds since epoch; the caller rounds
	// down to the nearest 1000ms, matching the reference implementation.
	LastModified(path string) int64
	Rename(from, to string) (movedCount int)
	Exists(path string) bool
	IsDirectory(path string) bool
	MakeDirectory(path string) bool
	List(path string) ([]string, error)
	// Open returns a file descriptor. mode is one of "r", "w", "a", "rw".
	Open(path, mode string) (fd int, err error)
	Close(fd int) bool
	Write(fd int, data []byte) bool
	// Read returns up to len(buf) bytes; a zero-length result means EOF.
	Read(fd int, buf []byte) int
	// Seek returns the new absolute position. whence is "set", "cur", or
	// "end".
	Seek(fd int, whence string, offset int64) (pos int64, moved int64)
}

// Control configures the simulated resource costs for this filesystem
// instance.
type Control struct {
	ReadEnergyPerByte  float64
	WriteEnergyPerByte float64
	ReadHeatPerByte    float64
	WriteHeatPerByte   float64
	RemoveEnergy       float64
	RemoveHeat         float64
	CreateEnergy       float64
	CreateHeat         float64
	ReadBytesPerTick   float64
	WriteBytesPerTick  float64
	RemoveFilesPerTick float64
	CreateFilesPerTick float64
}

// filesystem is the state backing one mounted filesystem component. The
// backend lives behind a component.Shared so the same file tree can be
// retained across more than one mount point (see MountShared) and so
// every vtable method runs its backend call under the shared lock.
type filesystem struct {
	shared  *component.Shared[Backend]
	control Control
}

// Table returns a computer.Table mounting filesystem components. Call
// once per universe and reuse it for every mounted filesystem.
func Table() *computer.Table {
	throttle := resource.NewBufferedIndirect()
	dtor := func(tableUserdata any, comp *computer.Component, state any) {
		state.(*filesystem).shared.Release()
		throttle.Forget(comp)
	}
	t := computer.NewTable("filesystem", nil, nil, dtor)

	readCost := func(comp *computer.Component, f *filesystem, n float64) {
		throttle.Simulate(comp, n, f.control.ReadBytesPerTick)
		resource.Apply(comp.Computer(), resource.Charge{
			Energy: f.control.ReadEnergyPerByte * n,
			Heat:   f.control.ReadHeatPerByte * n,
		})
	}
	writeCost := func(comp *computer.Component, f *filesystem, n float64) {
		throttle.Simulate(comp, n, f.control.WriteBytesPerTick)
		resource.Apply(comp.Computer(), resource.Charge{
			Energy: f.control.WriteEnergyPerByte * n,
			Heat:   f.control.WriteHeatPerByte * n,
		})
	}
	removeCost := func(comp *computer.Component, f *filesystem, n float64) {
		throttle.Simulate(comp, n, f.control.RemoveFilesPerTick)
		resource.Apply(comp.Computer(), resource.Charge{
			Energy: f.control.RemoveEnergy * n,
			Heat:   f.control.RemoveHeat * n,
		})
	}
	createCost := func(comp *computer.Component, f *filesystem, n float64) {
		throttle.Simulate(comp, n, f.control.CreateFilesPerTick)
		resource.Apply(comp.Computer(), resource.Charge{
			Energy: f.control.CreateEnergy * n,
			Heat:   f.control.CreateHeat * n,
		})
	}

	pathArg := func(c *computer.Computer, idx int) (string, string) {
		v := c.GetArgument(idx)
		raw := v.ToCString()
		if raw == nil {
			raw = v.ToString()
		}
		if raw == nil {
			return "", "bad path (string expected)"
		}
		path := string(raw)
		if IllegalPath(path) {
			return "", "bad path (illegal path)"
		}
		return path, ""
	}

	t.Define("getLabel", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		var n float64
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			label := b.Label()
			n = float64(len(label))
			if label == "" {
				c.ReturnNil()
			} else {
				c.ReturnString([]byte(label))
			}
			return true, ""
		}, func() { readCost(comp, f, n) })
		return ""
	}, "getLabel(): string - Returns the label of the filesystem.")

	t.Define("setLabel", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		arg := c.GetArgument(0)
		buf := arg.ToString()
		if buf == nil {
			c.SetCError("bad label (string expected)")
			return ""
		}
		var n float64
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			actual := b.SetLabel(string(buf))
			n = float64(len(actual))
			c.ReturnString([]byte(actual))
			return true, ""
		}, func() { writeCost(comp, f, n) })
		return ""
	}, "setLabel(label: string): string - Sets a new label for the filesystem and returns the new label of the filesystem, which may have been truncated.")

	t.Define("spaceUsed", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnInt(b.SpaceUsed())
			return true, ""
		}, nil)
		return ""
	}, "spaceUsed(): integer - Returns the amounts of bytes used.")

	t.Define("spaceTotal", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		// Reproduces the reference implementation's spaceTotal, which
		// actually calls spaceUsed under the hood (documented ambiguity;
		// both operations are exposed on Backend, but dispatch here
		// intentionally matches the shipped behavior rather than "fixing"
		// it silently).
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnInt(b.SpaceUsed())
			return true, ""
		}, nil)
		return ""
	}, "spaceTotal(): integer - Returns the number of bytes used, the same value as spaceUsed.")

	t.Define("isReadOnly", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.IsReadOnly())
			return true, ""
		}, nil)
		return ""
	}, "isReadOnly(): boolean - Returns whether the filesystem is in read-only mode.")

	t.Define("size", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnInt(b.Size(path))
			return true, ""
		}, nil)
		return ""
	}, "size(path: string): integer - Gets the size, in bytes, of a file.")

	t.Define("remove", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.Remove(path))
			return true, ""
		}, func() { removeCost(comp, f, 1) })
		return ""
	}, "remove(path: string): boolean - Removes a file. Returns whether the operation succeeded.")

	t.Define("lastModified", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			t := b.LastModified(path)
			t -= t % 1000
			c.ReturnInt(t)
			return true, ""
		}, nil)
		return ""
	}, "lastModified(path: string): integer - Gets the last modification time, in unix milliseconds, of a file.")

	t.Define("rename", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		from, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(strings.Replace(errStr, "bad path", "bad path #1", 1))
			return ""
		}
		// Reads argument index 1 for the destination, correcting the
		// reference implementation's documented bug where it re-read
		// index 0.
		to, errStr := pathArg(c, 1)
		if errStr != "" {
			c.SetCError(strings.Replace(errStr, "bad path", "bad path #2", 1))
			return ""
		}
		var moved int
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			moved = b.Rename(from, to)
			c.ReturnBool(moved > 0)
			return true, ""
		}, func() {
			removeCost(comp, f, float64(moved))
			createCost(comp, f, float64(moved))
		})
		return ""
	}, "rename(from: string, to: string): boolean - Moves files from one path to another.")

	t.Define("exists", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.Exists(path))
			return true, ""
		}, nil)
		return ""
	}, "exists(path: string): boolean - Checks whether a file exists.")

	t.Define("isDirectory", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.IsDirectory(path))
			return true, ""
		}, nil)
		return ""
	}, "isDirectory(path: string): boolean - Returns whether a file is actually a directory.")

	t.Define("makeDirectory", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.MakeDirectory(path))
			return true, ""
		}, func() { createCost(comp, f, 1) })
		return ""
	}, "makeDirectory(path: string): boolean - Creates a new directory at the given path. Returns whether it succeeded.")

	t.Define("list", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		var n float64
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			entries, err := b.List(path)
			if err != nil {
				return false, err.Error()
			}
			arr := c.ReturnArray(len(entries))
			allocator := c.Universe().Allocator()
			for i, e := range entries {
				s, err := value.NewString(allocator, []byte(e))
				if err != nil {
					return false, "out of memory"
				}
				arr.Set(i, s)
				s.Drop() // Set retained its own copy
			}
			n = float64(len(entries))
			return true, ""
		}, func() { readCost(comp, f, n) })
		return ""
	}, "list(path: string): string[] - Returns a list of file paths. Directories have a trailing /.")

	t.Define("open", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		path, errStr := pathArg(c, 0)
		if errStr != "" {
			c.SetCError(errStr)
			return ""
		}
		modeVal := c.GetArgument(1)
		mode := "r"
		if raw := modeVal.ToCString(); raw != nil {
			mode = string(raw)
		}
		var created bool
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			if !b.Exists(path) {
				// createCost is charged on top of the open cost only
				// when the path did not exist and Open then succeeds;
				// a failed open charges nothing.
				created = true
			}
			fd, err := b.Open(path, mode)
			if err != nil {
				return false, err.Error()
			}
			c.ReturnInt(int64(fd))
			return true, ""
		}, func() {
			if created {
				createCost(comp, f, 1)
			}
		})
		return ""
	}, "open(path: string[, mode: string = \"r\"]): integer - Opens a file, may create it.")

	t.Define("close", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		fd := int(c.GetArgument(0).ToInt())
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.Close(fd))
			return true, ""
		}, nil)
		return ""
	}, "close(fd: integer): boolean - Closes a file.")

	t.Define("write", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		fd := int(c.GetArgument(0).ToInt())
		buf := c.GetArgument(1).ToString()
		if buf == nil {
			c.SetCError("bad buffer (string expected)")
			return ""
		}
		// Single return value: the backend's reported success. The
		// reference implementation's double nn_return call (a
		// documented bug) is not reproduced.
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			c.ReturnBool(b.Write(fd, buf))
			return true, ""
		}, func() { writeCost(comp, f, float64(len(buf))) })
		return ""
	}, "write(fd: integer, data: string): boolean - Writes data to a file.")

	t.Define("read", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		fd := int(c.GetArgument(0).ToInt())
		reqLen := c.GetArgument(1).ToNumber()
		var n float64
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			capacity := float64(b.SpaceTotal())
			if math.IsInf(reqLen, 1) || reqLen > capacity {
				reqLen = capacity
			}
			byteLen := int(reqLen)
			if byteLen < 0 {
				byteLen = 0
			}
			buf := make([]byte, byteLen)
			got := b.Read(fd, buf)
			if got > 0 {
				c.ReturnString(buf[:got])
			}
			n = reqLen
			return true, ""
		}, func() { readCost(comp, f, n) })
		return ""
	}, "read(fd: integer, len: number): string - Reads bytes from a file. Infinity is a valid length, in which case it reads as much as possible.")

	t.Define("seek", true, func(comp *computer.Component, c *computer.Computer) string {
		f := comp.State().(*filesystem)
		fd := int(c.GetArgument(0).ToInt())
		whence := c.GetArgument(1).ToCString()
		offset := c.GetArgument(2).ToInt()
		if whence == nil {
			c.SetCError("bad whence (string expected)")
			return ""
		}
		w := string(whence)
		if w != "set" && w != "cur" && w != "end" {
			c.SetCError("bad whence")
			return ""
		}
		component.Dispatch(c, f.shared, func(b Backend) (bool, string) {
			pos, _ := b.Seek(fd, w, offset)
			c.ReturnInt(pos)
			return true, ""
		}, nil)
		return ""
	}, "seek(fd: integer, whence: string, offset: integer): integer - Seeks a file. Returns the new position. Valid whences are set, cur and end.")

	return t
}

// NewShared wraps backend in a component.Shared with an initial
// refcount of 1. Used internally by Mount; exported for hosts that want
// to build a handle before any component exists.
func NewShared(backend Backend) *component.Shared[Backend] {
	return component.NewShared[Backend](backend, nil)
}

// SharedOf returns the component.Shared backing an already-mounted
// filesystem component, for passing to MountShared so a second address
// can expose the same file tree.
func SharedOf(comp *computer.Component) *component.Shared[Backend] {
	return comp.State().(*filesystem).shared
}

// Mount creates a new filesystem component wrapping backend in a fresh
// component.Shared, mounted on c at address/slot using table (as
// returned by Table()).
func Mount(c *computer.Computer, table *computer.Table, address string, slot int, backend Backend, control Control) *computer.Component {
	f := &filesystem{shared: NewShared(backend), control: control}
	return c.NewComponent(address, slot, table, f)
}

// MountShared mounts another component at address/slot pointing at the
// same already-shared backend as an existing filesystem (retaining it
// first), so a single file tree can be exposed at more than one address
// without racing concurrent tick goroutines. shared is the handle of an
// existing mount, as returned by SharedOf.
func MountShared(c *computer.Computer, table *computer.Table, address string, slot int, shared *component.Shared[Backend], control Control) *computer.Component {
	shared.Retain()
	f := &filesystem{shared: shared, control: control}
	return c.NewComponent(address, slot, table, f)
}
