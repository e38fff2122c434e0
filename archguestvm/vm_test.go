package archguestvm_test

import (
	"encoding/binary"
	"testing"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/archguestvm"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/universe"
)

func newComputer(t *testing.T) *computer.Computer {
	t.Helper()
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", archguestvm.Arch{}, 1<<20, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SetEnergyInfo(1e9, 1e9)
	c.SetCallBudget(1e9)
	return c
}

// word encodes a standard [op:8][a:8][b:8][c:8] instruction.
func word(op archguestvm.Opcode, a, b, c uint8) uint32 {
	return uint32(op) | uint32(a)<<8 | uint32(b)<<16 | uint32(c)<<24
}

// wordImm encodes a wide-immediate [op:8][a:8][imm:16] instruction.
func wordImm(op archguestvm.Opcode, a uint8, imm uint16) uint32 {
	return uint32(op) | uint32(a)<<8 | uint32(imm)<<16
}

func assemble(words ...uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func TestArithmeticAndHalt(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		wordImm(archguestvm.OpLoadConst, 1, 0), // R1 = const[0] = 7
		wordImm(archguestvm.OpLoadConst, 2, 1), // R2 = const[1] = 35
		word(archguestvm.OpAdd, 3, 1, 2),       // R3 = R1 + R2
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, []uint64{7, 35}, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if !vm.Halted() {
		t.Fatal("expected VM to halt on OpHalt")
	}
	if got := vm.Register(3); got != 42 {
		t.Errorf("R3 = %d, want 42", got)
	}
}

func TestDivisionByZero(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		word(archguestvm.OpDiv, 1, 2, 3), // R1 = R2 / R3, both zero
	)
	vm := archguestvm.New(c, code, nil, 0)
	if err := vm.RunTick(); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestMemoryAllocWriteRead(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		wordImm(archguestvm.OpLoadConst, 1, 0), // R1 = 16 (alloc size)
		word(archguestvm.OpAlloc, 2, 1, 0),     // R2 = base address
		wordImm(archguestvm.OpLoadConst, 3, 1), // R3 = 99
		word(archguestvm.OpStoreMem, 2, 3, 0),  // mem[R2+0] = R3
		word(archguestvm.OpLoadMem, 4, 2, 0),   // R4 = mem[R2+0]
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, []uint64{16, 99}, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if got := vm.Register(4); got != 99 {
		t.Errorf("R4 = %d, want 99", got)
	}
}

func TestFreeThenAccessFails(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		wordImm(archguestvm.OpLoadConst, 1, 0), // R1 = 16
		word(archguestvm.OpAlloc, 2, 1, 0),     // R2 = base
		word(archguestvm.OpFree, 2, 0, 0),      // free(R2)
		word(archguestvm.OpLoadMem, 4, 2, 0),   // should fail: freed
	)
	vm := archguestvm.New(c, code, []uint64{16}, 0)
	if err := vm.RunTick(); err == nil {
		t.Fatal("expected an access-after-free error")
	}
}

func TestYieldSuspendsWithoutHalting(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		word(archguestvm.OpYield, 0, 0, 0),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, nil, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("first RunTick: %v", err)
	}
	if vm.Halted() {
		t.Fatal("OpYield must not halt the VM")
	}
	if err := vm.RunTick(); err != nil {
		t.Fatalf("second RunTick: %v", err)
	}
	if !vm.Halted() {
		t.Fatal("expected the VM to reach OpHalt on the following tick")
	}
}

func TestUptimeReadsComputerClock(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		word(archguestvm.OpUptime, 1, 0, 0),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, nil, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	// A freshly constructed computer on a fixed clock has zero uptime.
	if got := vm.Register(1); got != 0 {
		t.Errorf("R1 (uptime) = %d, want 0", got)
	}
}

func TestSignalPushPopSize(t *testing.T) {
	c := newComputer(t)
	code := assemble(
		wordImm(archguestvm.OpLoadConst, 3, 0), // R3 = 123, the payload
		word(archguestvm.OpPushSignal, 1, 0, 3),
		word(archguestvm.OpSignalSize, 2, 0, 0),
		word(archguestvm.OpPopSignal, 0, 0, 0),
		word(archguestvm.OpSignalSize, 4, 0, 0),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, []uint64{123}, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if vm.Register(1) != 1 {
		t.Error("expected OpPushSignal to report success")
	}
	if vm.Register(2) != 1 {
		t.Errorf("signal size before pop = %d, want 1", vm.Register(2))
	}
	if vm.Register(4) != 0 {
		t.Errorf("signal size after pop = %d, want 0", vm.Register(4))
	}
}

// lengthPrefixed encodes s the way OpInvoke expects to find its
// component address and method name strings in guest memory: an 8-byte
// little-endian length followed by the raw bytes.
func lengthPrefixed(s []byte) []byte {
	out := make([]byte, 8+len(s))
	binary.LittleEndian.PutUint64(out, uint64(len(s)))
	copy(out[8:], s)
	return out
}

func TestInvokeCallsMountedComponent(t *testing.T) {
	c := newComputer(t)

	table := computer.NewTable("tester", nil, nil, nil)
	table.Define("ping", true, func(comp *computer.Component, c *computer.Computer) string {
		c.ReturnInt(42)
		return ""
	}, "ping(): integer")
	c.NewComponent("addr-0", 0, table, nil)

	addrBuf := lengthPrefixed([]byte("addr-0"))
	methodBuf := lengthPrefixed([]byte("ping"))

	code := assemble(
		word(archguestvm.OpInvoke, 8, 6, 7),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, nil, 0)

	addrBase, err := vm.Memory().Alloc(uint64(len(addrBuf)))
	if err != nil {
		t.Fatalf("alloc address buffer: %v", err)
	}
	if err := vm.Memory().WriteSlice(addrBase, addrBuf); err != nil {
		t.Fatalf("write address buffer: %v", err)
	}
	methodBase, err := vm.Memory().Alloc(uint64(len(methodBuf)))
	if err != nil {
		t.Fatalf("alloc method buffer: %v", err)
	}
	if err := vm.Memory().WriteSlice(methodBase, methodBuf); err != nil {
		t.Fatalf("write method buffer: %v", err)
	}
	vm.SetRegister(6, addrBase)
	vm.SetRegister(7, methodBase)

	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if vm.Register(8) != 1 {
		t.Fatalf("OpInvoke reported failure; computer error = %q", c.GetError())
	}
	if !vm.Halted() {
		t.Fatal("expected the VM to halt")
	}
}

func TestInvokeUnknownAddressReportsFailure(t *testing.T) {
	c := newComputer(t)
	addrBuf := lengthPrefixed([]byte("no-such-address"))
	methodBuf := lengthPrefixed([]byte("ping"))

	code := assemble(
		word(archguestvm.OpInvoke, 8, 6, 7),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, nil, 0)
	addrBase, _ := vm.Memory().Alloc(uint64(len(addrBuf)))
	vm.Memory().WriteSlice(addrBase, addrBuf)
	methodBase, _ := vm.Memory().Alloc(uint64(len(methodBuf)))
	vm.Memory().WriteSlice(methodBase, methodBuf)
	vm.SetRegister(6, addrBase)
	vm.SetRegister(7, methodBase)

	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if vm.Register(8) != 0 {
		t.Error("expected OpInvoke against an unknown address to report failure")
	}
}

func TestCallBudgetExhaustionStopsTickWithoutError(t *testing.T) {
	c := newComputer(t)
	c.SetCallBudget(5) // covers one OpAdd (cost 3) but not two

	code := assemble(
		word(archguestvm.OpAdd, 1, 0, 0),
		word(archguestvm.OpAdd, 1, 0, 0),
		word(archguestvm.OpAdd, 1, 0, 0),
		word(archguestvm.OpHalt, 0, 0, 0),
	)
	vm := archguestvm.New(c, code, nil, 0)
	if err := vm.RunTick(); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if vm.Halted() {
		t.Error("an exhausted call budget should stop the tick, not halt the VM")
	}
	if !c.IsOverworked() {
		t.Error("expected the computer to report overworked after exceeding its call budget")
	}
}
