package vm

import "fmt"

const (
	// MemorySize is the number of words in the Simpletron address space.
	// Code grows up from 0 and data grows down from MemorySize-1.
	MemorySize = 1000

	// Separator is the radix bound packing opcode and operand into one word.
	//
	// Layout:
	// ┌──────────────────┬──────────────────┐
	// │      opcode      │     operand      │
	// │ word / Separator │ word % Separator │
	// └──────────────────┴──────────────────┘
	Separator = 0x1000

	// Radix is the base of artifact and interactive word text.
	Radix = 16
)

// Word is one signed memory cell. Instructions and data share the same type.
type Word int32

// EncodeInstruction packs an opcode and operand into a word.
// Both fields must lie in [0, Separator).
func EncodeInstruction(opcode Opcode, operand int) (Word, error) {
	if int(opcode) >= Separator {
		return 0, fmt.Errorf("opcode %#x out of range", uint16(opcode))
	}
	if operand < 0 || operand >= Separator {
		return 0, fmt.Errorf("operand %d out of range", operand)
	}
	return Word(int(opcode)*Separator + operand), nil
}

// MustEncode is EncodeInstruction for statically known fields; it panics on
// out-of-range input.
func MustEncode(opcode Opcode, operand int) Word {
	w, err := EncodeInstruction(opcode, operand)
	if err != nil {
		panic(err)
	}
	return w
}

// Opcode returns the opcode field (word div Separator). A field that is
// negative or wider than an Opcode decodes as OpInvalid.
func (w Word) Opcode() Opcode {
	op := int32(w) / Separator
	if op < 0 || op >= int32(OpInvalid) {
		return OpInvalid
	}
	return Opcode(op)
}

// Operand returns the operand field (word mod Separator).
func (w Word) Operand() int {
	return int(int32(w) % Separator)
}

// Decode splits the word into its opcode and operand.
func (w Word) Decode() (Opcode, int) {
	return w.Opcode(), w.Operand()
}

// String returns the fixed-width artifact representation of the word.
func (w Word) String() string {
	return fmt.Sprintf("%+09x", int32(w))
}
