package vm

import (
	"fmt"
	"strings"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

// operation executes one decoded instruction against the machine.
type operation func(vm *VM) error

// operations maps each opcode to its behavior. It is built once and never
// mutated.
var operations = map[Opcode]operation{
	OpRead:         opRead,
	OpWrite:        opWrite,
	OpReadStr:      opReadStr,
	OpWriteStr:     opWriteStr,
	OpLoad:         opLoad,
	OpStore:        opStore,
	OpAdd:          opAdd,
	OpSubtract:     opSubtract,
	OpDivide:       opDivide,
	OpMultiply:     opMultiply,
	OpModulus:      opModulus,
	OpExponentiate: opExponentiate,
	OpBranch:       opBranch,
	OpBranchNeg:    opBranchNeg,
	OpBranchZero:   opBranchZero,
	OpHalt:         opHalt,
	OpDebug:        opDebug,
}

// ===== Input/Output =====

func opRead(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	v, err := vm.in.ReadWord()
	if err != nil {
		return simerr.IO("reading input", err)
	}
	*cell = v
	return nil
}

func opWrite(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(vm.out, int32(*cell)); err != nil {
		return simerr.IO("writing output", err)
	}
	return nil
}

func opReadStr(vm *VM) error {
	line, err := vm.in.ReadLine()
	if err != nil {
		return simerr.IO("reading input", err)
	}
	chars := []byte(line)

	// first cell holds the byte length, one byte per following cell
	ptr := vm.regs.Operand
	if ptr < 0 || ptr+len(chars) >= MemorySize {
		return fmt.Errorf("%w: string of %d bytes at %d", ErrAddressOutOfRange, len(chars), ptr)
	}
	vm.memory[ptr] = Word(len(chars))
	for i, c := range chars {
		vm.memory[ptr+i+1] = Word(c)
	}
	return nil
}

func opWriteStr(vm *VM) error {
	ptr := vm.regs.Operand
	if ptr < 0 || ptr >= MemorySize {
		return fmt.Errorf("%w: %d", ErrAddressOutOfRange, ptr)
	}
	length := int(vm.memory[ptr])
	if length < 0 || ptr+length >= MemorySize {
		return fmt.Errorf("%w: string of %d bytes at %d", ErrAddressOutOfRange, length, ptr)
	}

	var b strings.Builder
	for i := 1; i <= length; i++ {
		b.WriteByte(byte(vm.memory[ptr+i]))
	}
	if _, err := fmt.Fprint(vm.out, b.String()); err != nil {
		return simerr.IO("writing output", err)
	}
	return nil
}

// ===== Load/Store =====

func opLoad(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	vm.regs.Accumulator = *cell
	return nil
}

func opStore(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	*cell = vm.regs.Accumulator
	return nil
}

// ===== Arithmetic =====

func opAdd(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	vm.regs.Accumulator += *cell
	return nil
}

func opSubtract(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	vm.regs.Accumulator -= *cell
	return nil
}

func opDivide(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	if *cell == 0 {
		return ErrDivideByZero
	}
	vm.regs.Accumulator /= *cell
	return nil
}

func opMultiply(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	vm.regs.Accumulator *= *cell
	return nil
}

func opModulus(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	if *cell == 0 {
		return ErrModuloByZero
	}
	vm.regs.Accumulator %= *cell
	return nil
}

func opExponentiate(vm *VM) error {
	cell, err := vm.operandCell()
	if err != nil {
		return err
	}
	vm.regs.Accumulator = power(vm.regs.Accumulator, *cell)
	return nil
}

// power multiplies base by itself exp times with 32-bit wraparound.
// A zero or negative exponent yields 1.
func power(base, exp Word) Word {
	result := Word(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// ===== Control Flow =====

// branchTo points the instruction counter one before target; the main loop
// increments it after every dispatch.
func (vm *VM) branchTo(target int) {
	vm.regs.InstructionCounter = target - 1
}

func opBranch(vm *VM) error {
	vm.branchTo(vm.regs.Operand)
	return nil
}

func opBranchNeg(vm *VM) error {
	if vm.regs.Accumulator < 0 {
		vm.branchTo(vm.regs.Operand)
	}
	return nil
}

func opBranchZero(vm *VM) error {
	if vm.regs.Accumulator == 0 {
		vm.branchTo(vm.regs.Operand)
	}
	return nil
}

func opHalt(vm *VM) error {
	vm.state = StateHalted
	return nil
}

func opDebug(vm *VM) error {
	vm.debug = vm.regs.Operand != 0
	return nil
}
