// Package snapshot persists complete Simpletron machine states.
//
// A snapshot file is the 4-byte magic "SMLS", a version byte, and the
// machine state encoded as canonical CBOR. Snapshots are written after a run
// so the final registers and memory can be inspected or resumed later.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/vm"
)

const (
	Magic   = "SMLS"
	Version = 1
)

var (
	ErrBadMagic   = errors.New("not a snapshot file")
	ErrBadVersion = errors.New("unsupported snapshot version")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// registers mirrors vm.Registers with stable integer keys.
type registers struct {
	Accumulator         int32  `cbor:"1,keyasint"`
	InstructionCounter  int    `cbor:"2,keyasint"`
	InstructionRegister int32  `cbor:"3,keyasint"`
	OperationCode       uint16 `cbor:"4,keyasint"`
	Operand             int    `cbor:"5,keyasint"`
}

type machine struct {
	Registers registers `cbor:"1,keyasint"`
	Memory    []int32   `cbor:"2,keyasint"`
	State     uint8     `cbor:"3,keyasint"`
	Debug     bool      `cbor:"4,keyasint,omitempty"`
}

// Marshal encodes a machine state as snapshot bytes.
func Marshal(s vm.MachineState) ([]byte, error) {
	m := machine{
		Registers: registers{
			Accumulator:         int32(s.Registers.Accumulator),
			InstructionCounter:  s.Registers.InstructionCounter,
			InstructionRegister: int32(s.Registers.InstructionRegister),
			OperationCode:       uint16(s.Registers.OperationCode),
			Operand:             s.Registers.Operand,
		},
		Memory: make([]int32, len(s.Memory)),
		State:  uint8(s.State),
		Debug:  s.Debug,
	}
	for i, w := range s.Memory {
		m.Memory[i] = int32(w)
	}

	payload, err := cborEncMode.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Unmarshal decodes snapshot bytes.
func Unmarshal(data []byte) (vm.MachineState, error) {
	if len(data) < len(Magic)+1 || string(data[:len(Magic)]) != Magic {
		return vm.MachineState{}, ErrBadMagic
	}
	if v := data[len(Magic)]; v != Version {
		return vm.MachineState{}, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	var m machine
	if err := cbor.Unmarshal(data[len(Magic)+1:], &m); err != nil {
		return vm.MachineState{}, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	if len(m.Memory) > vm.MemorySize {
		return vm.MachineState{}, fmt.Errorf("%w: %d", vm.ErrTooManyWords, len(m.Memory))
	}

	s := vm.MachineState{
		Registers: vm.Registers{
			Accumulator:         vm.Word(m.Registers.Accumulator),
			InstructionCounter:  m.Registers.InstructionCounter,
			InstructionRegister: vm.Word(m.Registers.InstructionRegister),
			OperationCode:       vm.Opcode(m.Registers.OperationCode),
			Operand:             m.Registers.Operand,
		},
		Memory: make([]vm.Word, len(m.Memory)),
		State:  vm.State(m.State),
		Debug:  m.Debug,
	}
	for i, w := range m.Memory {
		s.Memory[i] = vm.Word(w)
	}
	return s, nil
}

// Save writes the machine's state to path.
func Save(path string, machine *vm.VM) error {
	data, err := Marshal(machine.SaveState())
	if err != nil {
		return simerr.IO("saving snapshot", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return simerr.IO("saving snapshot", err)
	}
	return nil
}

// Load reads a snapshot file.
func Load(path string) (vm.MachineState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vm.MachineState{}, simerr.IO("loading snapshot", err)
	}
	s, err := Unmarshal(data)
	if err != nil {
		return vm.MachineState{}, simerr.IO("loading snapshot "+path, err)
	}
	return s, nil
}

// Restore loads the snapshot at path into machine.
func Restore(path string, machine *vm.VM) error {
	s, err := Load(path)
	if err != nil {
		return err
	}
	if err := machine.RestoreState(s); err != nil {
		return simerr.IO("restoring snapshot "+path, err)
	}
	return nil
}
