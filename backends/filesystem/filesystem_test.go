package filesystem_test

import (
	"testing"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/arch"
	"github.com/speedy-lex/neonucleus/backends/filesystem"
	"github.com/speedy-lex/neonucleus/component"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/universe"
	"github.com/speedy-lex/neonucleus/value"
)

func newMounted(t *testing.T) (*computer.Computer, *computer.Component) {
	t.Helper()
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", arch.Nop{}, 4096, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	table := filesystem.Table()
	backend := filesystem.NewVolatile(65536, nil)
	comp := filesystem.Mount(c, table, "fs-0", 0, backend, filesystem.Control{})
	return c, comp
}

func invoke(t *testing.T, c *computer.Computer, comp *computer.Component, method string, args ...value.Value) []value.Value {
	t.Helper()
	c.ResetCall()
	for _, a := range args {
		c.AddArgument(a)
	}
	if ok := comp.Invoke(c, method); !ok {
		t.Fatalf("method %q does not exist", method)
	}
	rets := make([]value.Value, c.ReturnCount())
	for i := range rets {
		rets[i] = c.GetReturn(i)
	}
	return rets
}

func TestIllegalPathRejected(t *testing.T) {
	c, comp := newMounted(t)
	invoke(t, c, comp, "exists", value.BorrowedCStr([]byte("bad*name")))
	if errStr := c.GetError(); errStr == "" {
		t.Error("expected an error for a path containing an illegal character")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	c, comp := newMounted(t)
	rets := invoke(t, c, comp, "open", value.BorrowedCStr([]byte("/greeting.txt")), value.BorrowedCStr([]byte("w")))
	fd := rets[0]

	rets = invoke(t, c, comp, "write", fd, value.BorrowedCStr([]byte("hello")))
	// write returns a single boolean, not the reference implementation's
	// documented double-return bug.
	if len(rets) != 1 {
		t.Fatalf("write returned %d values, want exactly 1", len(rets))
	}
	if !rets[0].ToBoolean() {
		t.Fatal("write should have succeeded")
	}

	invoke(t, c, comp, "close", fd)

	rets = invoke(t, c, comp, "open", value.BorrowedCStr([]byte("/greeting.txt")), value.BorrowedCStr([]byte("r")))
	fd = rets[0]
	rets = invoke(t, c, comp, "read", fd, value.Number(1024))
	if string(rets[0].ToString()) != "hello" {
		t.Errorf("read back %q, want %q", rets[0].ToString(), "hello")
	}
}

func TestRenameReadsBothPaths(t *testing.T) {
	c, comp := newMounted(t)
	rets := invoke(t, c, comp, "open", value.BorrowedCStr([]byte("/a.txt")), value.BorrowedCStr([]byte("w")))
	invoke(t, c, comp, "close", rets[0])

	rets = invoke(t, c, comp, "rename", value.BorrowedCStr([]byte("/a.txt")), value.BorrowedCStr([]byte("/b.txt")))
	if !rets[0].ToBoolean() {
		t.Fatal("rename should have succeeded")
	}
	if invoke(t, c, comp, "exists", value.BorrowedCStr([]byte("/a.txt")))[0].ToBoolean() {
		t.Error("source path should no longer exist after rename")
	}
	if !invoke(t, c, comp, "exists", value.BorrowedCStr([]byte("/b.txt")))[0].ToBoolean() {
		t.Error("destination path should exist after rename")
	}
}

func TestSpaceTotalAliasesSpaceUsed(t *testing.T) {
	c, comp := newMounted(t)
	rets := invoke(t, c, comp, "open", value.BorrowedCStr([]byte("/x.bin")), value.BorrowedCStr([]byte("w")))
	fd := rets[0]
	invoke(t, c, comp, "write", fd, value.BorrowedCStr([]byte("0123456789")))
	invoke(t, c, comp, "close", fd)

	used := invoke(t, c, comp, "spaceUsed")[0].ToInt()
	total := invoke(t, c, comp, "spaceTotal")[0].ToInt()
	// spaceTotal intentionally reports spaceUsed, matching the documented
	// ambiguity resolution rather than the configured capacity.
	if total != used {
		t.Errorf("spaceTotal = %d, want it to equal spaceUsed (%d)", total, used)
	}
}

func TestLastModifiedRoundsDownToSeconds(t *testing.T) {
	c, comp := newMounted(t)
	rets := invoke(t, c, comp, "open", value.BorrowedCStr([]byte("/m.txt")), value.BorrowedCStr([]byte("w")))
	invoke(t, c, comp, "close", rets[0])

	ts := invoke(t, c, comp, "lastModified", value.BorrowedCStr([]byte("/m.txt")))[0].ToInt()
	if ts%1000 != 0 {
		t.Errorf("lastModified = %d, want a multiple of 1000", ts)
	}
}

func TestMakeDirectoryAndList(t *testing.T) {
	c, comp := newMounted(t)
	invoke(t, c, comp, "makeDirectory", value.BorrowedCStr([]byte("/dir")))
	rets := invoke(t, c, comp, "open", value.BorrowedCStr([]byte("/dir/f.txt")), value.BorrowedCStr([]byte("w")))
	invoke(t, c, comp, "close", rets[0])

	listing := invoke(t, c, comp, "list", value.BorrowedCStr([]byte("/dir")))[0]
	if listing.Len() != 1 {
		t.Fatalf("list length = %d, want 1", listing.Len())
	}
	if string(listing.Get(0).ToString()) != "f.txt" {
		t.Errorf("listed entry = %q, want %q", listing.Get(0).ToString(), "f.txt")
	}
}

// TestMountSharedExposesOneTreeAtTwoAddresses mounts the same backend at
// two addresses and checks a file written through one is visible
// through the other, proving the shared backend (not a copy) is wired.
func TestMountSharedExposesOneTreeAtTwoAddresses(t *testing.T) {
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", arch.Nop{}, 4096, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	table := filesystem.Table()
	backend := filesystem.NewVolatile(65536, nil)
	compA := filesystem.Mount(c, table, "fs-a", 0, backend, filesystem.Control{})
	shared := filesystem.SharedOf(compA)
	compB := filesystem.MountShared(c, table, "fs-b", 1, shared, filesystem.Control{})

	rets := invoke(t, c, compA, "open", value.BorrowedCStr([]byte("/shared.txt")), value.BorrowedCStr([]byte("w")))
	invoke(t, c, compA, "write", rets[0], value.BorrowedCStr([]byte("hello")))
	invoke(t, c, compA, "close", rets[0])

	if !invoke(t, c, compB, "exists", value.BorrowedCStr([]byte("/shared.txt")))[0].ToBoolean() {
		t.Error("file written through the first address should exist through the second")
	}
}

// TestComponentDestroyReleasesSharedBackendOnce mounts two components
// over one shared backend and checks the backend's deinit callback runs
// exactly once, only after both are removed.
func TestComponentDestroyReleasesSharedBackendOnce(t *testing.T) {
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", arch.Nop{}, 4096, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	table := filesystem.Table()
	backend := filesystem.NewVolatile(65536, nil)
	deinitCount := 0
	shared := component.NewShared[filesystem.Backend](backend, func(filesystem.Backend) { deinitCount++ })
	filesystem.MountShared(c, table, "fs-a", 0, shared, filesystem.Control{})
	filesystem.MountShared(c, table, "fs-b", 1, shared, filesystem.Control{})
	// Each MountShared call retained its own reference; drop the
	// constructor's reference now that it has been handed to both mounts.
	shared.Release()

	c.RemoveComponent("fs-a")
	if deinitCount != 0 {
		t.Fatalf("deinit ran %d times after removing only one of two mounts, want 0", deinitCount)
	}
	c.RemoveComponent("fs-b")
	if deinitCount != 1 {
		t.Fatalf("deinit ran %d times after removing the last mount, want exactly 1", deinitCount)
	}
}
