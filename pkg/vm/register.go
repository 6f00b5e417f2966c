package vm

// Registers holds the Simpletron register file.
type Registers struct {
	Accumulator         Word   // Arithmetic register
	InstructionCounter  int    // Address of the next instruction to fetch
	InstructionRegister Word   // Last fetched word
	OperationCode       Opcode // Decoded opcode of InstructionRegister
	Operand             int    // Decoded operand of InstructionRegister
}

// Reset clears all registers.
func (r *Registers) Reset() {
	*r = Registers{}
}
