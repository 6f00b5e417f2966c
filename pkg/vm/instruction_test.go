package vm

import (
	"testing"
)

func TestInstruction_Encode(t *testing.T) {
	w, err := EncodeInstruction(OpAdd, 0x63)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	if w != 0x30063 {
		t.Errorf("expected word 0x30063, got %#x", int32(w))
	}
	if w.Opcode() != OpAdd {
		t.Errorf("expected opcode %v, got %v", OpAdd, w.Opcode())
	}
	if w.Operand() != 0x63 {
		t.Errorf("expected operand 0x63, got %#x", w.Operand())
	}
}

func TestInstruction_EncodeDecodeInverse(t *testing.T) {
	ops := []Opcode{OpRead, OpWrite, OpReadStr, OpWriteStr, OpLoad, OpStore,
		OpAdd, OpSubtract, OpDivide, OpMultiply, OpModulus, OpExponentiate,
		OpBranch, OpBranchNeg, OpBranchZero, OpHalt, OpDebug}

	for _, op := range ops {
		for _, operand := range []int{0, 1, 500, MemorySize - 1, Separator - 1} {
			w := MustEncode(op, operand)
			gotOp, gotOperand := w.Decode()
			if gotOp != op || gotOperand != operand {
				t.Errorf("Decode(Encode(%v, %d)) = (%v, %d)", op, operand, gotOp, gotOperand)
			}
		}
	}
}

func TestInstruction_EncodeOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		op      Opcode
		operand int
	}{
		{"negative operand", OpLoad, -1},
		{"operand too large", OpLoad, Separator},
		{"opcode too large", Opcode(Separator), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeInstruction(tt.op, tt.operand); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestMustEncode_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustEncode(OpLoad, -1)
}

func TestWord_String(t *testing.T) {
	tests := []struct {
		word     Word
		expected string
	}{
		{0, "+00000000"},
		{0x11063, "+00011063"},
		{-7, "-00000007"},
		{MustEncode(OpHalt, 0), "+00043000"},
	}

	for _, tt := range tests {
		if got := tt.word.String(); got != tt.expected {
			t.Errorf("Word(%d).String() = %q, expected %q", int32(tt.word), got, tt.expected)
		}
	}
}

func TestOpcode_String(t *testing.T) {
	if OpExponentiate.String() != "EXPONENTIATE" {
		t.Errorf("expected EXPONENTIATE, got %s", OpExponentiate.String())
	}
	if Opcode(0x99).String() != "UNKNOWN_99" {
		t.Errorf("expected UNKNOWN_99, got %s", Opcode(0x99).String())
	}
}

func TestOpcodeFromString(t *testing.T) {
	for _, op := range []Opcode{OpRead, OpBranchZero, OpDebug} {
		got, ok := OpcodeFromString(op.String())
		if !ok || got != op {
			t.Errorf("OpcodeFromString(%q) = %v, %v", op.String(), got, ok)
		}
	}
	if _, ok := OpcodeFromString("NOP"); ok {
		t.Error("expected NOP to be unknown")
	}
}

func TestOpcode_Valid(t *testing.T) {
	if !OpHalt.Valid() {
		t.Error("expected HALT to be valid")
	}
	if Opcode(0).Valid() {
		t.Error("expected opcode 0 to be invalid")
	}
}
