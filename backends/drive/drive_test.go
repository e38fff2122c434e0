package drive_test

import (
	"testing"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/arch"
	"github.com/speedy-lex/neonucleus/backends/drive"
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
	table := drive.Table()
	backend := drive.NewVolatile(1<<20, 1)
	comp := drive.Mount(c, table, "drive-0", 0, backend, drive.Control{})
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
	if errStr := c.GetError(); errStr != "" {
		t.Fatalf("invoke %q returned error: %s", method, errStr)
	}
	rets := make([]value.Value, c.ReturnCount())
	for i := range rets {
		rets[i] = c.GetReturn(i)
	}
	return rets
}

func TestSectorReadWriteRoundTrip(t *testing.T) {
	c, comp := newMounted(t)
	sectorSize := invoke(t, c, comp, "getSectorSize")[0].ToInt()

	payload := make([]byte, sectorSize)
	copy(payload, []byte("sector-one-payload"))
	invoke(t, c, comp, "writeSector", value.Int(1), value.BorrowedCStr(payload))

	got := invoke(t, c, comp, "readSector", value.Int(1))[0].ToString()
	if string(got[:len("sector-one-payload")]) != "sector-one-payload" {
		t.Errorf("readSector returned %q, want prefix %q", got, "sector-one-payload")
	}
}

func TestUnwrittenSectorReadsZero(t *testing.T) {
	c, comp := newMounted(t)
	got := invoke(t, c, comp, "readSector", value.Int(2))[0].ToString()
	for i, b := range got {
		if b != 0 {
			t.Fatalf("unwritten sector byte %d = %d, want 0", i, b)
		}
	}
}

func TestCapacityAndPlatterCount(t *testing.T) {
	c, comp := newMounted(t)
	if got := invoke(t, c, comp, "getCapacity")[0].ToInt(); got != 1<<20 {
		t.Errorf("getCapacity = %d, want %d", got, 1<<20)
	}
	if got := invoke(t, c, comp, "getPlatterCount")[0].ToInt(); got != 1 {
		t.Errorf("getPlatterCount = %d, want 1", got)
	}
}

// TestMountSharedExposesOnePlatterAtTwoAddresses mounts the same backend
// at two addresses and checks a write through one is visible through
// the other, proving the shared backend (not a copy) is wired.
func TestMountSharedExposesOnePlatterAtTwoAddresses(t *testing.T) {
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", arch.Nop{}, 4096, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	table := drive.Table()
	backend := drive.NewVolatile(1<<20, 1)
	compA := drive.Mount(c, table, "drive-a", 0, backend, drive.Control{})
	shared := drive.SharedOf(compA)
	compB := drive.MountShared(c, table, "drive-b", 1, shared, drive.Control{})

	sectorSize := invoke(t, c, compA, "getSectorSize")[0].ToInt()
	payload := make([]byte, sectorSize)
	copy(payload, []byte("shared-sector"))
	invoke(t, c, compA, "writeSector", value.Int(1), value.BorrowedCStr(payload))

	got := invoke(t, c, compB, "readSector", value.Int(1))[0].ToString()
	if string(got[:len("shared-sector")]) != "shared-sector" {
		t.Errorf("readSector through the second address = %q, want prefix %q", got, "shared-sector")
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
	table := drive.Table()
	backend := drive.NewVolatile(1<<20, 1)
	deinitCount := 0
	shared := component.NewShared[drive.Backend](backend, func(drive.Backend) { deinitCount++ })
	drive.MountShared(c, table, "drive-a", 0, shared, drive.Control{})
	drive.MountShared(c, table, "drive-b", 1, shared, drive.Control{})
	// Each MountShared call retained its own reference; drop the
	// constructor's reference now that it has been handed to both mounts.
	shared.Release()

	c.RemoveComponent("drive-a")
	if deinitCount != 0 {
		t.Fatalf("deinit ran %d times after removing only one of two mounts, want 0", deinitCount)
	}
	c.RemoveComponent("drive-b")
	if deinitCount != 1 {
		t.Fatalf("deinit ran %d times after removing the last mount, want exactly 1", deinitCount)
	}
}
