package eeprom_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/cp"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/arch"
	"github.com/speedy-lex/neonucleus/backends/eeprom"
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
	table := eeprom.Table()
	backend := eeprom.NewVolatile(4096, 256)
	comp := eeprom.Mount(c, table, "eeprom-0", 0, backend, eeprom.Control{})
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

func TestLabelTruncation(t *testing.T) {
	c, comp := newMounted(t)
	long := strings.Repeat("x", computer.LabelSize+50)
	rets := invoke(t, c, comp, "setLabel", value.BorrowedCStr([]byte(long)))
	got := string(rets[0].ToString())
	if len(got) != computer.LabelSize {
		t.Errorf("label length = %d, want %d", len(got), computer.LabelSize)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	c, comp := newMounted(t)
	invoke(t, c, comp, "set", value.BorrowedCStr([]byte("code")))
	invoke(t, c, comp, "setData", value.BorrowedCStr([]byte("data")))

	first := invoke(t, c, comp, "getChecksum")[0].ToString()
	second := invoke(t, c, comp, "getChecksum")[0].ToString()
	if string(first) != string(second) {
		t.Errorf("checksum not deterministic: %s vs %s", first, second)
	}
	if len(first) != 8 {
		t.Errorf("checksum length = %d, want 8 hex bytes", len(first))
	}
}

func TestReadOnlyEnforced(t *testing.T) {
	c, comp := newMounted(t)
	rets := invoke(t, c, comp, "makeReadOnly")
	if !rets[0].ToBoolean() {
		t.Fatal("first makeReadOnly call should report the flag flipped")
	}
	rets = invoke(t, c, comp, "makeReadOnly")
	if rets[0].ToBoolean() {
		t.Error("second makeReadOnly call should report no change")
	}

	c.ResetCall()
	c.AddArgument(value.BorrowedCStr([]byte("new code")))
	comp.Invoke(c, "set")
	if errStr := c.GetError(); errStr != "readonly" {
		t.Errorf("set on readonly EEPROM returned error %q, want \"readonly\"", errStr)
	}
}

func TestLegacyMakeReadonlyAlias(t *testing.T) {
	c, comp := newMounted(t)
	rets := invoke(t, c, comp, "makeReadonly")
	if !rets[0].ToBoolean() {
		t.Error("legacy makeReadonly alias should behave like makeReadOnly")
	}
}

// TestChecksumDeterministicFromGoldenImage copies the golden code
// fixture into a fresh temp dir (so the test never touches the
// checked-in testdata file) before loading it into an EEPROM, exercising
// the same S3 scenario as TestChecksumDeterministic against fixture
// bytes read from disk rather than an inline literal.
func TestChecksumDeterministicFromGoldenImage(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "golden_code.bin")
	if err := cp.CopyFile(dst, filepath.Join("testdata", "golden_code.bin")); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	code, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	c, comp := newMounted(t)
	invoke(t, c, comp, "set", value.BorrowedCStr(code))

	first := invoke(t, c, comp, "getChecksum")[0].ToString()
	second := invoke(t, c, comp, "getChecksum")[0].ToString()
	if string(first) != string(second) {
		t.Errorf("checksum not deterministic over a fixture image: %s vs %s", first, second)
	}
}

// TestMountSharedExposesOneImageAtTwoAddresses mounts the same backend
// at two addresses and checks that a write through one is visible
// through the other, proving the shared backend (not a copy) is wired.
func TestMountSharedExposesOneImageAtTwoAddresses(t *testing.T) {
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", arch.Nop{}, 4096, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	table := eeprom.Table()
	backend := eeprom.NewVolatile(4096, 256)
	compA := eeprom.Mount(c, table, "eeprom-a", 0, backend, eeprom.Control{})
	shared := eeprom.SharedOf(compA)
	compB := eeprom.MountShared(c, table, "eeprom-b", 1, shared, eeprom.Control{})

	invoke(t, c, compA, "set", value.BorrowedCStr([]byte("shared code")))
	got := invoke(t, c, compB, "get")[0].ToString()
	if string(got) != "shared code" {
		t.Errorf("get through the second address = %q, want %q (same shared image)", got, "shared code")
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
	table := eeprom.Table()
	backend := eeprom.NewVolatile(4096, 256)
	deinitCount := 0
	shared := component.NewShared[eeprom.Backend](backend, func(eeprom.Backend) { deinitCount++ })
	eeprom.MountShared(c, table, "eeprom-a", 0, shared, eeprom.Control{})
	eeprom.MountShared(c, table, "eeprom-b", 1, shared, eeprom.Control{})
	// Each MountShared call retained its own reference; drop the
	// constructor's reference now that it has been handed to both mounts.
	shared.Release()

	c.RemoveComponent("eeprom-a")
	if deinitCount != 0 {
		t.Fatalf("deinit ran %d times after removing only one of two mounts, want 0", deinitCount)
	}
	c.RemoveComponent("eeprom-b")
	if deinitCount != 1 {
		t.Fatalf("deinit ran %d times after removing the last mount, want exactly 1", deinitCount)
	}
}
