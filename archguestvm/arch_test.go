package archguestvm_test

import (
	"bytes"
	"testing"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/archguestvm"
	"github.com/speedy-lex/neonucleus/backends/eeprom"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/universe"
	"github.com/speedy-lex/neonucleus/value"
)

func TestSetupLoadsCodeFromEEPROM(t *testing.T) {
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", archguestvm.Arch{}, 1<<20, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backend := eeprom.NewVolatile(4096, 256)
	comp := eeprom.Mount(c, eeprom.Table(), "eeprom-0", 0, backend, eeprom.Control{})

	bootCode := assemble(word(archguestvm.OpHalt, 0, 0, 0))
	c.ResetCall()
	c.AddArgument(value.BorrowedCStr(bootCode))
	if !comp.Invoke(c, "set") {
		t.Fatal("set method missing")
	}
	if errStr := c.GetError(); errStr != "" {
		t.Fatalf("set: %s", errStr)
	}

	state, err := archguestvm.Arch{}.Setup(c)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	vm := state.(*archguestvm.VM)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if !vm.Halted() {
		t.Fatal("expected the loaded boot code to halt")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", archguestvm.Arch{}, 1<<20, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := archguestvm.Arch{}
	code := assemble(
		wordImm(archguestvm.OpLoadConst, 1, 0),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, []uint64{7}, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	snapshot, err := a.Serialize(c, vm)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored := archguestvm.New(c, nil, nil, 0)
	if err := a.Deserialize(c, snapshot, restored); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if restored.PC() != vm.PC() {
		t.Errorf("restored PC = %d, want %d", restored.PC(), vm.PC())
	}
	if !bytes.Equal(restored.Code(), code) {
		t.Error("restored code does not match original")
	}
}
