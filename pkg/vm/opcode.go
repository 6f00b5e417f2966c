package vm

import "fmt"

// Opcode represents an SML operation code.
type Opcode uint16

const (
	// ===== Input/Output (0x10-0x1F) =====
	OpRead     Opcode = 0x10 // memory[operand] = console integer
	OpWrite    Opcode = 0x11 // print memory[operand]
	OpReadStr  Opcode = 0x12 // memory[operand] = len, memory[operand+1..] = bytes
	OpWriteStr Opcode = 0x13 // print memory[operand+1..operand+len]

	// ===== Load/Store (0x20-0x2F) =====
	OpLoad  Opcode = 0x20 // acc = memory[operand]
	OpStore Opcode = 0x21 // memory[operand] = acc

	// ===== Arithmetic (0x30-0x3F) =====
	OpAdd          Opcode = 0x30 // acc += memory[operand]
	OpSubtract     Opcode = 0x31 // acc -= memory[operand]
	OpDivide       Opcode = 0x32 // acc /= memory[operand], faults on zero
	OpMultiply     Opcode = 0x33 // acc *= memory[operand]
	OpModulus      Opcode = 0x34 // acc %= memory[operand], faults on zero
	OpExponentiate Opcode = 0x35 // acc = acc ** memory[operand]

	// ===== Control Flow (0x40-0x4F) =====
	OpBranch     Opcode = 0x40 // ic = operand
	OpBranchNeg  Opcode = 0x41 // ic = operand if acc < 0
	OpBranchZero Opcode = 0x42 // ic = operand if acc == 0
	OpHalt       Opcode = 0x43 // stop
	OpDebug      Opcode = 0x44 // debug = operand != 0

	// OpInvalid is decoded from words whose opcode field does not fit an
	// Opcode. It has no operation and halts the machine.
	OpInvalid Opcode = 0xFFFF
)

// String returns the mnemonic of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpReadStr:
		return "READ_STR"
	case OpWriteStr:
		return "WRITE_STR"
	case OpLoad:
		return "LOAD"
	case OpStore:
		return "STORE"
	case OpAdd:
		return "ADD"
	case OpSubtract:
		return "SUBTRACT"
	case OpDivide:
		return "DIVIDE"
	case OpMultiply:
		return "MULTIPLY"
	case OpModulus:
		return "MODULUS"
	case OpExponentiate:
		return "EXPONENTIATE"
	case OpBranch:
		return "BRANCH"
	case OpBranchNeg:
		return "BRANCH_NEG"
	case OpBranchZero:
		return "BRANCH_ZERO"
	case OpHalt:
		return "HALT"
	case OpDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("UNKNOWN_%02X", uint16(o))
	}
}

// OpcodeFromString returns the opcode for the given mnemonic.
func OpcodeFromString(s string) (Opcode, bool) {
	switch s {
	case "READ":
		return OpRead, true
	case "WRITE":
		return OpWrite, true
	case "READ_STR":
		return OpReadStr, true
	case "WRITE_STR":
		return OpWriteStr, true
	case "LOAD":
		return OpLoad, true
	case "STORE":
		return OpStore, true
	case "ADD":
		return OpAdd, true
	case "SUBTRACT":
		return OpSubtract, true
	case "DIVIDE":
		return OpDivide, true
	case "MULTIPLY":
		return OpMultiply, true
	case "MODULUS":
		return OpModulus, true
	case "EXPONENTIATE":
		return OpExponentiate, true
	case "BRANCH":
		return OpBranch, true
	case "BRANCH_NEG":
		return OpBranchNeg, true
	case "BRANCH_ZERO":
		return OpBranchZero, true
	case "HALT":
		return OpHalt, true
	case "DEBUG":
		return OpDebug, true
	default:
		return 0, false
	}
}

// Valid reports whether the opcode has an entry in the operation table.
func (o Opcode) Valid() bool {
	_, ok := operations[o]
	return ok
}
