package archguestvm

import (
	"encoding/binary"

	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/value"
)

// Arch adapts VM into a computer.Architecture: one guest program is
// loaded from the first mounted "eeprom"-typed component at Setup and
// run a tick at a time until it halts or yields.
type Arch struct {
	// MemoryLimit bounds each computer's guest heap; 0 uses
	// DefaultMemoryLimit.
	MemoryLimit uint64
}

func (Arch) Name() string { return "guestvm" }

// Setup loads guest code from the computer's boot EEPROM (the first
// component whose table type name is "eeprom") and constructs a fresh
// VM around it. A computer with no EEPROM mounted gets a VM with empty
// code, whose first Step fails with a past-end-of-code error, so the
// first Tick crashes the computer.
func (a Arch) Setup(c *computer.Computer) (any, error) {
	code := loadBootCode(c)
	vm := New(c, code, nil, a.MemoryLimit)
	return vm, nil
}

func (Arch) Teardown(c *computer.Computer, state any) {}

func (Arch) MemoryUsage(c *computer.Computer, state any) int64 {
	vm := state.(*VM)
	return int64(vm.memory.Used())
}

// Tick runs guest instructions until the VM yields, halts, hits the
// call budget, or errors; an instruction error is reported through the
// computer's signal queue rather than panicking the host, mirroring how
// a crashed guest program surfaces to the rest of the system as an
// error signal instead of taking the process down with it.
func (a Arch) Tick(c *computer.Computer, state any) {
	vm := state.(*VM)
	if vm.halted {
		return
	}
	// Setup runs before any component is mounted on a fresh computer, so
	// the boot EEPROM is usually invisible at that point; load lazily on
	// the first tick where code is still empty instead.
	if len(vm.code) == 0 {
		if code := loadBootCode(c); len(code) > 0 {
			vm.code = code
		}
	}
	if err := vm.RunTick(); err != nil {
		vm.halted = true
		allocator := c.Universe().Allocator()
		kind, kErr := value.NewString(allocator, []byte("crash"))
		if kErr != nil {
			c.SetState(computer.StateClosing)
			return
		}
		msg, mErr := value.NewString(allocator, []byte(err.Error()))
		if mErr != nil {
			kind.Drop()
			c.SetState(computer.StateClosing)
			return
		}
		c.PushSignal([]computer.Value{kind, msg})
		kind.Drop()
		msg.Drop()
		c.SetState(computer.StateClosing)
	}
}

func (a Arch) Serialize(c *computer.Computer, state any) ([]byte, error) {
	vm := state.(*VM)
	out := make([]byte, 0, 8+len(vm.code)+8+len(vm.memory.data))
	out = binary.LittleEndian.AppendUint32(out, vm.pc)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(vm.code)))
	out = append(out, vm.code...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(vm.memory.data)))
	out = append(out, vm.memory.data...)
	return out, nil
}

func (a Arch) Deserialize(c *computer.Computer, data []byte, state any) error {
	vm := state.(*VM)
	if len(data) < 8 {
		return ErrInvalidAddress
	}
	vm.pc = binary.LittleEndian.Uint32(data)
	codeLen := binary.LittleEndian.Uint32(data[4:])
	data = data[8:]
	if uint32(len(data)) < codeLen {
		return ErrInvalidAddress
	}
	vm.code = append([]byte(nil), data[:codeLen]...)
	data = data[codeLen:]
	if len(data) < 8 {
		return ErrInvalidAddress
	}
	memLen := binary.LittleEndian.Uint64(data)
	data = data[8:]
	if uint64(len(data)) < memLen {
		return ErrInvalidAddress
	}
	vm.memory.data = append([]byte(nil), data[:memLen]...)
	return nil
}

// loadBootCode invokes "get" on the first eeprom-typed component found,
// returning its stored code, or nil if no EEPROM is mounted.
func loadBootCode(c *computer.Computer) []byte {
	var code []byte
	c.IterComponents(func(comp *computer.Component) {
		if code != nil || comp.Table().TypeName() != "eeprom" {
			return
		}
		c.ResetCall()
		if !comp.Invoke(c, "get") {
			return
		}
		if c.GetError() != "" {
			return
		}
		if c.ReturnCount() == 0 {
			return
		}
		code = append([]byte(nil), c.GetReturn(0).ToString()...)
	})
	return code
}
