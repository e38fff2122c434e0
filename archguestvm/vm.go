package archguestvm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/resource"
	"github.com/speedy-lex/neonucleus/value"
)

// ---- Error sentinels -------------------------------------------------------

var ErrHalted = errors.New("archguestvm: already halted")
var ErrDivisionByZero = errors.New("archguestvm: division by zero")
var ErrInvalidOpcode = errors.New("archguestvm: invalid opcode")
var ErrStackUnderflow = errors.New("archguestvm: stack underflow")

// errYield unwinds the current Tick's instruction loop without halting
// the VM; it never escapes Tick.
var errYield = errors.New("archguestvm: yield")

// ---- Call-budget costs ------------------------------------------------------
//
// Where the blockchain VM this is adapted from spent "gas", this guest
// spends call budget, charged through resource.Apply on the host
// Computer so blackout/overwork accounting stays centralized in one
// place instead of being reimplemented per architecture.

const (
	costTrivial    = 1.0
	costArithmetic = 3.0
	costMul        = 5.0
	costDivMod     = 10.0
	costBitwise    = 2.0
	costMemOp      = 5.0
	costJump       = 3.0
	costCall       = 20.0
	costInvoke     = 30.0
	costSignal     = 10.0
)

// frame captures the state needed to resume a caller after a CALL
// returns.
type frame struct {
	returnPC  uint32
	returnReg uint8
}

// VM is the guest register machine: 256 general-purpose 64-bit
// registers (R0 is a wired-zero register), a flat call-budget-metered
// linear memory, and the same fixed-width instruction encoding as its
// teacher. One VM is created per computer by Setup and lives in that
// computer's opaque architecture state.
type VM struct {
	registers [256]uint64
	pc        uint32
	memory    *Memory
	stack     []uint64
	callStack []frame
	constants []uint64
	code      []byte
	halted    bool

	computer *computer.Computer
}

// New creates a VM ready to execute code against c. constants may be
// nil.
func New(c *computer.Computer, code []byte, constants []uint64, memoryLimit uint64) *VM {
	return &VM{
		code:      code,
		constants: constants,
		memory:    NewMemory(memoryLimit),
		stack:     make([]uint64, 0, 32),
		callStack: make([]frame, 0, 16),
		computer:  c,
	}
}

// PC returns the current program counter.
func (vm *VM) PC() uint32 { return vm.pc }

// Halted reports whether the VM has permanently halted (OpHalt).
func (vm *VM) Halted() bool { return vm.halted }

// Register returns the value of register idx.
func (vm *VM) Register(idx uint8) uint64 { return vm.registers[idx] }

// SetRegister sets register idx directly. Mainly useful for seeding a
// VM's registers from host code (an architecture's Setup, or a test)
// without spending instructions to do it.
func (vm *VM) SetRegister(idx uint8, v uint64) { vm.setReg(idx, v) }

// Memory exposes the VM's linear memory for host-side setup (loading a
// guest's argv, seeding buffers) and introspection.
func (vm *VM) Memory() *Memory { return vm.memory }

// Code returns the currently loaded instruction stream.
func (vm *VM) Code() []byte { return vm.code }

// RunTick executes instructions until OpYield, OpHalt, an error, or the
// computer's call budget is exhausted, whichever comes first.
func (vm *VM) RunTick() error {
	for !vm.halted && !vm.computer.IsOverworked() {
		if err := vm.Step(); err != nil {
			if errors.Is(err, errYield) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Step fetches, decodes, and executes exactly one instruction.
func (vm *VM) Step() error {
	if vm.halted {
		return ErrHalted
	}
	if int(vm.pc)+4 > len(vm.code) {
		return fmt.Errorf("archguestvm: PC %d is past end of code (%d bytes)", vm.pc, len(vm.code))
	}
	word := binary.LittleEndian.Uint32(vm.code[vm.pc:])
	vm.pc += 4

	op := Opcode(word & 0xFF)
	a := uint8((word >> 8) & 0xFF)
	b := uint8((word >> 16) & 0xFF)
	c := uint8((word >> 24) & 0xFF)
	imm16 := uint16(word >> 16)

	return vm.execute(op, a, b, c, imm16)
}

func (vm *VM) setReg(idx uint8, v uint64) {
	if idx != 0 {
		vm.registers[idx] = v
	}
}

func (vm *VM) getReg(idx uint8) uint64 {
	return vm.registers[idx]
}

// charge deducts cost from the computer's call budget. Reaching the
// budget flips the computer to StateOverworked; it does not halt the
// VM, matching the reference interpreter's yield-then-resume semantics
// for an exhausted budget.
func (vm *VM) charge(cost float64) {
	resource.Apply(vm.computer, resource.Charge{CallCost: cost})
}

// readLengthPrefixed reads a uint64 length followed by that many bytes
// from memory starting at addr, the encoding OpInvoke uses for the
// component address and method name strings a guest passes in.
func (vm *VM) readLengthPrefixed(addr uint64) (string, error) {
	n, err := vm.memory.ReadUint64(addr)
	if err != nil {
		return "", err
	}
	data, err := vm.memory.ReadSlice(addr+8, n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

//nolint:gocyclo
func (vm *VM) execute(op Opcode, a, b, c uint8, imm16 uint16) error {
	switch op {

	case OpAdd:
		vm.charge(costArithmetic)
		vm.setReg(a, vm.getReg(b)+vm.getReg(c))
	case OpSub:
		vm.charge(costArithmetic)
		vm.setReg(a, vm.getReg(b)-vm.getReg(c))
	case OpMul:
		vm.charge(costMul)
		vm.setReg(a, vm.getReg(b)*vm.getReg(c))
	case OpDiv:
		vm.charge(costDivMod)
		divisor := vm.getReg(c)
		if divisor == 0 {
			return ErrDivisionByZero
		}
		vm.setReg(a, vm.getReg(b)/divisor)
	case OpMod:
		vm.charge(costDivMod)
		divisor := vm.getReg(c)
		if divisor == 0 {
			return ErrDivisionByZero
		}
		vm.setReg(a, vm.getReg(b)%divisor)
	case OpNeg:
		vm.charge(costArithmetic)
		vm.setReg(a, -vm.getReg(b))

	case OpAnd:
		vm.charge(costBitwise)
		vm.setReg(a, vm.getReg(b)&vm.getReg(c))
	case OpOr:
		vm.charge(costBitwise)
		vm.setReg(a, vm.getReg(b)|vm.getReg(c))
	case OpXor:
		vm.charge(costBitwise)
		vm.setReg(a, vm.getReg(b)^vm.getReg(c))
	case OpNot:
		vm.charge(costBitwise)
		vm.setReg(a, ^vm.getReg(b))
	case OpShl:
		vm.charge(costBitwise)
		vm.setReg(a, vm.getReg(b)<<vm.getReg(c))
	case OpShr:
		vm.charge(costBitwise)
		vm.setReg(a, vm.getReg(b)>>vm.getReg(c))

	case OpEq:
		vm.charge(costArithmetic)
		vm.setReg(a, boolReg(vm.getReg(b) == vm.getReg(c)))
	case OpNeq:
		vm.charge(costArithmetic)
		vm.setReg(a, boolReg(vm.getReg(b) != vm.getReg(c)))
	case OpLt:
		vm.charge(costArithmetic)
		vm.setReg(a, boolReg(vm.getReg(b) < vm.getReg(c)))
	case OpLte:
		vm.charge(costArithmetic)
		vm.setReg(a, boolReg(vm.getReg(b) <= vm.getReg(c)))
	case OpGt:
		vm.charge(costArithmetic)
		vm.setReg(a, boolReg(vm.getReg(b) > vm.getReg(c)))
	case OpGte:
		vm.charge(costArithmetic)
		vm.setReg(a, boolReg(vm.getReg(b) >= vm.getReg(c)))

	case OpLoadConst:
		vm.charge(costTrivial)
		if int(imm16) < len(vm.constants) {
			vm.setReg(a, vm.constants[imm16])
		}
	case OpLoadTrue:
		vm.charge(costTrivial)
		vm.setReg(a, 1)
	case OpLoadFalse, OpLoadNil:
		vm.charge(costTrivial)
		vm.setReg(a, 0)
	case OpMove:
		vm.charge(costTrivial)
		vm.setReg(a, vm.getReg(b))
		vm.setReg(b, 0)
	case OpCopy:
		vm.charge(costTrivial)
		vm.setReg(a, vm.getReg(b))

	case OpLoadMem:
		vm.charge(costMemOp)
		v, err := vm.memory.ReadUint64(vm.getReg(b) + uint64(c))
		if err != nil {
			return err
		}
		vm.setReg(a, v)
	case OpStoreMem:
		vm.charge(costMemOp)
		if err := vm.memory.WriteUint64(vm.getReg(a)+uint64(c), vm.getReg(b)); err != nil {
			return err
		}
	case OpAlloc:
		vm.charge(costMemOp)
		base, err := vm.memory.Alloc(vm.getReg(b))
		if err != nil {
			return err
		}
		vm.setReg(a, base)
	case OpFree:
		vm.charge(costMemOp)
		if err := vm.memory.Free(vm.getReg(a)); err != nil {
			return err
		}

	case OpJump:
		vm.charge(costJump)
		vm.pc = uint32(imm16) * 4
	case OpJumpIf:
		vm.charge(costJump)
		if vm.getReg(a) != 0 {
			vm.pc = uint32(imm16) * 4
		}
	case OpJumpIfNot:
		vm.charge(costJump)
		if vm.getReg(a) == 0 {
			vm.pc = uint32(imm16) * 4
		}
	case OpCall:
		vm.charge(costCall)
		vm.callStack = append(vm.callStack, frame{returnPC: vm.pc, returnReg: a})
		vm.pc = uint32(imm16) * 4
	case OpReturn:
		if len(vm.callStack) == 0 {
			vm.halted = true
			return nil
		}
		top := vm.callStack[len(vm.callStack)-1]
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
		vm.setReg(top.returnReg, vm.getReg(a))
		vm.pc = top.returnPC
	case OpHalt:
		vm.halted = true
		vm.computer.SetState(computer.StateClosing)

	case OpPush:
		vm.stack = append(vm.stack, vm.getReg(a))
	case OpPop:
		if len(vm.stack) == 0 {
			return ErrStackUnderflow
		}
		v := vm.stack[len(vm.stack)-1]
		vm.stack = vm.stack[:len(vm.stack)-1]
		vm.setReg(a, v)

	case OpInvoke:
		vm.charge(costInvoke)
		address, err := vm.readLengthPrefixed(vm.getReg(b))
		if err != nil {
			return err
		}
		method, err := vm.readLengthPrefixed(vm.getReg(c))
		if err != nil {
			return err
		}
		comp := vm.computer.FindComponent(address)
		if comp == nil {
			vm.setReg(a, 0)
			return nil
		}
		ok := comp.Invoke(vm.computer, method)
		vm.setReg(a, boolReg(ok))

	case OpPushSignal:
		vm.charge(costSignal)
		reason := vm.computer.PushSignal([]value.Value{value.Int(int64(vm.getReg(c)))})
		vm.setReg(a, boolReg(reason == ""))
	case OpPopSignal:
		vm.computer.PopSignal()
	case OpSignalSize:
		vm.setReg(a, uint64(vm.computer.SignalSize()))
	case OpUptime:
		vm.setReg(a, uint64(vm.computer.Uptime()*1000))
	case OpYield:
		return errYield

	default:
		return fmt.Errorf("%w: 0x%02x", ErrInvalidOpcode, byte(op))
	}
	return nil
}

func boolReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
