package eeprom

import (
	"errors"

	"github.com/speedy-lex/neonucleus/computer"
)

// Volatile is the reference, in-memory EEPROM backend, equivalent to the
// sample backend shipped alongside the reference implementation's
// component sources (no persistence: contents vanish with the process).
type Volatile struct {
	code     []byte
	data     []byte
	label    string
	arch     string
	readOnly bool
	codeCap  int
	dataCap  int
}

// NewVolatile creates a Volatile EEPROM with the given code and data
// capacities, initially empty.
func NewVolatile(codeCap, dataCap int) *Volatile {
	return &Volatile{codeCap: codeCap, dataCap: dataCap}
}

var errOutOfSpace = errors.New("out of space")

func (v *Volatile) Get() ([]byte, error) { return append([]byte{}, v.code...), nil }

func (v *Volatile) Set(code []byte) error {
	if len(code) > v.codeCap {
		return errOutOfSpace
	}
	v.code = append([]byte{}, code...)
	return nil
}

func (v *Volatile) GetData() ([]byte, error) { return append([]byte{}, v.data...), nil }

func (v *Volatile) SetData(data []byte) error {
	if len(data) > v.dataCap {
		return errOutOfSpace
	}
	v.data = append([]byte{}, data...)
	return nil
}

func (v *Volatile) GetLabel() (string, error) { return v.label, nil }

// SetLabel truncates label to computer.LabelSize bytes, matching the
// reference header's NN_LABEL_SIZE cap.
func (v *Volatile) SetLabel(label string) (string, error) {
	if len(label) > computer.LabelSize {
		label = label[:computer.LabelSize]
	}
	v.label = label
	return v.label, nil
}

func (v *Volatile) GetArchitecture() (string, error) { return v.arch, nil }

func (v *Volatile) SetArchitecture(arch string) error {
	v.arch = arch
	return nil
}

func (v *Volatile) IsReadOnly() (bool, error) { return v.readOnly, nil }

func (v *Volatile) MakeReadOnly() (bool, error) {
	if v.readOnly {
		return false, nil
	}
	v.readOnly = true
	return true, nil
}

func (v *Volatile) Size() int     { return v.codeCap }
func (v *Volatile) DataSize() int { return v.dataCap }
