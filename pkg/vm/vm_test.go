package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

// newProgram lays out code from address 0 and data at the given addresses.
func newProgram(code []Word, data map[int]Word) *Program {
	p := NewProgram()
	copy(p.Words, code)
	for addr, w := range data {
		p.Words[addr] = w
	}
	return p
}

func runProgram(t *testing.T, p *Program, input string) (*VM, string, error) {
	t.Helper()
	var out bytes.Buffer
	v := NewVM()
	v.SetInput(NewReaderInput(strings.NewReader(input)))
	v.SetOutput(&out)
	if err := v.Load(p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	err := v.Execute()
	return v, out.String(), err
}

// ===== Input/Output =====

func TestVM_ReadWrite(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpRead, 99),
		MustEncode(OpWrite, 99),
		MustEncode(OpHalt, 0),
	}, nil)

	v, out, err := runProgram(t, p, "42\n")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "42\n" {
		t.Errorf("expected output %q, got %q", "42\n", out)
	}
	if v.State() != StateHalted {
		t.Errorf("expected halted, got %v", v.State())
	}
}

func TestVM_ReadInvalidInput(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpRead, 99),
		MustEncode(OpHalt, 0),
	}, nil)

	v, _, err := runProgram(t, p, "abc\n")
	if !errors.Is(err, simerr.ErrIO) {
		t.Fatalf("expected i/o error, got %v", err)
	}
	if v.State() != StateCrashed {
		t.Errorf("expected crashed, got %v", v.State())
	}
}

func TestVM_ReadExhausted(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpRead, 99),
		MustEncode(OpHalt, 0),
	}, nil)

	_, _, err := runProgram(t, p, "")
	if !errors.Is(err, ErrInputExhausted) {
		t.Errorf("expected ErrInputExhausted, got %v", err)
	}
}

func TestVM_ReadWriteString(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpReadStr, 50),
		MustEncode(OpWriteStr, 50),
		MustEncode(OpHalt, 0),
	}, nil)

	v, out, err := runProgram(t, p, "hi\r\n")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "hi" {
		t.Errorf("expected output %q, got %q", "hi", out)
	}

	mem := v.Memory()
	if diff := cmp.Diff([]Word{2, 'h', 'i'}, mem[50:53]); diff != "" {
		t.Errorf("string layout mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_ReadWriteStringUTF8(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpReadStr, 50),
		MustEncode(OpWriteStr, 50),
		MustEncode(OpHalt, 0),
	}, nil)

	v, out, err := runProgram(t, p, "né\n")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "né" {
		t.Errorf("expected output %q, got %q", "né", out)
	}

	// length counts bytes: n, 0xc3, 0xa9
	mem := v.Memory()
	if diff := cmp.Diff([]Word{3, 'n', 0xc3, 0xa9}, mem[50:54]); diff != "" {
		t.Errorf("string layout mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_ReadStringOverflow(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpReadStr, MemorySize-2),
		MustEncode(OpHalt, 0),
	}, nil)

	v, _, err := runProgram(t, p, "abc\n")
	if !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("expected ErrAddressOutOfRange, got %v", err)
	}
	if v.State() != StateCrashed {
		t.Errorf("expected crashed, got %v", v.State())
	}
}

// ===== Arithmetic =====

func TestVM_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       Opcode
		a, b     Word
		expected Word
	}{
		{"add", OpAdd, 5, 7, 12},
		{"subtract", OpSubtract, 5, 7, -2},
		{"multiply", OpMultiply, -6, 7, -42},
		{"divide", OpDivide, 7, 2, 3},
		{"divide truncates toward zero", OpDivide, -7, 2, -3},
		{"modulus", OpModulus, 7, 3, 1},
		{"modulus sign follows dividend", OpModulus, -7, 3, -1},
		{"exponentiate", OpExponentiate, 2, 10, 1024},
		{"exponentiate zero", OpExponentiate, 9, 0, 1},
		{"add wraps", OpAdd, 2147483647, 1, -2147483648},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram([]Word{
				MustEncode(OpLoad, 90),
				MustEncode(tt.op, 91),
				MustEncode(OpStore, 92),
				MustEncode(OpHalt, 0),
			}, map[int]Word{90: tt.a, 91: tt.b})

			v, _, err := runProgram(t, p, "")
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if v.Accumulator() != tt.expected {
				t.Errorf("expected accumulator %d, got %d", tt.expected, v.Accumulator())
			}
			if got, _ := v.Peek(92); got != tt.expected {
				t.Errorf("expected memory[92] %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestVM_DivideByZero(t *testing.T) {
	tests := []struct {
		name     string
		op       Opcode
		expected error
	}{
		{"divide", OpDivide, ErrDivideByZero},
		{"modulus", OpModulus, ErrModuloByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram([]Word{
				MustEncode(OpLoad, 90),
				MustEncode(tt.op, 91),
				MustEncode(OpHalt, 0),
			}, map[int]Word{90: 10})

			v, _, err := runProgram(t, p, "")
			if !errors.Is(err, simerr.ErrRuntime) {
				t.Fatalf("expected runtime fault, got %v", err)
			}
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v in chain, got %v", tt.expected, err)
			}
			if v.State() != StateCrashed {
				t.Errorf("expected crashed, got %v", v.State())
			}
			// the counter stays on the faulting instruction
			if v.InstructionCounter() != 1 {
				t.Errorf("expected instruction counter 1, got %d", v.InstructionCounter())
			}

			var se *simerr.Error
			if errors.As(err, &se) && se.Address != 1 {
				t.Errorf("expected fault address 1, got %d", se.Address)
			}
		})
	}
}

func TestPower(t *testing.T) {
	tests := []struct {
		base, exp, expected Word
	}{
		{3, 4, 81},
		{-2, 3, -8},
		{5, 1, 5},
		{5, -1, 1},
		{0, 0, 1},
	}

	for _, tt := range tests {
		if got := power(tt.base, tt.exp); got != tt.expected {
			t.Errorf("power(%d, %d) = %d, expected %d", tt.base, tt.exp, got, tt.expected)
		}
	}
}

// ===== Control Flow =====

func TestVM_Branch(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpBranch, 3),
		MustEncode(OpWrite, 90),
		MustEncode(OpHalt, 0),
		MustEncode(OpWrite, 91),
		MustEncode(OpHalt, 0),
	}, map[int]Word{90: 1, 91: 2})

	_, out, err := runProgram(t, p, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "2\n" {
		t.Errorf("expected output %q, got %q", "2\n", out)
	}
}

func TestVM_ConditionalBranch(t *testing.T) {
	tests := []struct {
		name     string
		op       Opcode
		acc      Word
		expected string
	}{
		{"neg taken", OpBranchNeg, -1, "2\n"},
		{"neg not taken on zero", OpBranchNeg, 0, "1\n"},
		{"zero taken", OpBranchZero, 0, "2\n"},
		{"zero not taken", OpBranchZero, 5, "1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram([]Word{
				MustEncode(OpLoad, 92),
				MustEncode(tt.op, 5),
				MustEncode(OpWrite, 90),
				MustEncode(OpHalt, 0),
				MustEncode(OpHalt, 0),
				MustEncode(OpWrite, 91),
				MustEncode(OpHalt, 0),
			}, map[int]Word{90: 1, 91: 2, 92: tt.acc})

			_, out, err := runProgram(t, p, "")
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if out != tt.expected {
				t.Errorf("expected output %q, got %q", tt.expected, out)
			}
		})
	}
}

func TestVM_HaltOnly(t *testing.T) {
	p := newProgram([]Word{MustEncode(OpHalt, 0)}, nil)

	v, out, err := runProgram(t, p, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
	if v.State() != StateHalted {
		t.Errorf("expected halted, got %v", v.State())
	}
}

func TestVM_UnknownOpcodeHalts(t *testing.T) {
	p := newProgram([]Word{
		Word(0x99 * Separator),
		MustEncode(OpWrite, 90),
	}, map[int]Word{90: 1})

	v, out, err := runProgram(t, p, "")
	if err != nil {
		t.Fatalf("expected clean halt, got %v", err)
	}
	if v.State() != StateHalted {
		t.Errorf("expected halted, got %v", v.State())
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestVM_WideOpcodeHalts(t *testing.T) {
	tests := []struct {
		name string
		word Word
	}{
		// low 16 bits of the opcode field spell WRITE
		{"wide", Word(0x10011*Separator + 5)},
		{"negative", Word(-(0x10011*Separator + 5))},
		{"negative wrapping to READ", Word(-0xfff0*Separator - 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.word.Opcode() != OpInvalid {
				t.Errorf("expected OpInvalid, got %v", tt.word.Opcode())
			}

			p := newProgram([]Word{tt.word}, map[int]Word{5: 42})
			v, out, err := runProgram(t, p, "7\n")
			if err != nil {
				t.Fatalf("expected clean halt, got %v", err)
			}
			if v.State() != StateHalted {
				t.Errorf("expected halted, got %v", v.State())
			}
			if out != "" {
				t.Errorf("expected no output, got %q", out)
			}
			if got, _ := v.Peek(5); got != 42 {
				t.Errorf("expected memory[5] untouched, got %d", got)
			}
		})
	}
}

func TestVM_OperandOutOfRange(t *testing.T) {
	p := newProgram([]Word{MustEncode(OpLoad, MemorySize)}, nil)

	v, _, err := runProgram(t, p, "")
	if !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("expected ErrAddressOutOfRange, got %v", err)
	}
	if v.State() != StateCrashed {
		t.Errorf("expected crashed, got %v", v.State())
	}
}

func TestVM_FetchOutOfRange(t *testing.T) {
	v := NewVM()
	s := v.SaveState()
	s.Registers.InstructionCounter = MemorySize
	if err := v.RestoreState(s); err != nil {
		t.Fatalf("RestoreState failed: %v", err)
	}

	err := v.Execute()
	if !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("expected ErrAddressOutOfRange, got %v", err)
	}
	if v.State() != StateCrashed {
		t.Errorf("expected crashed, got %v", v.State())
	}
}

// ===== Limits =====

func TestVM_StepLimit(t *testing.T) {
	p := newProgram([]Word{MustEncode(OpBranch, 0)}, nil)

	v := NewVM()
	v.SetMaxSteps(100)
	if err := v.Load(p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := v.Execute()
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
	if !errors.Is(err, simerr.ErrRuntime) {
		t.Errorf("expected runtime fault, got %v", err)
	}
	if v.State() != StateCrashed {
		t.Errorf("expected crashed, got %v", v.State())
	}
}

func TestVM_ContextCancelled(t *testing.T) {
	p := newProgram([]Word{MustEncode(OpBranch, 0)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewVM()
	v.SetContext(ctx)
	if err := v.Load(p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := v.Execute(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// ===== Observability =====

type recordingTracer struct {
	events []TraceEvent
}

func (r *recordingTracer) Record(ev TraceEvent) {
	r.events = append(r.events, ev)
}

func TestVM_Tracer(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpLoad, 90),
		MustEncode(OpAdd, 90),
		MustEncode(OpHalt, 0),
	}, map[int]Word{90: 21})

	tr := &recordingTracer{}
	v := NewVM()
	v.SetTracer(tr)
	if err := v.Load(p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := v.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(tr.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(tr.events))
	}
	second := tr.events[1]
	if second.Address != 1 || second.Opcode != OpAdd || second.Accumulator != 42 {
		t.Errorf("unexpected event: %+v", second)
	}
	if tr.events[2].State != StateHalted {
		t.Errorf("expected last event halted, got %v", tr.events[2].State)
	}
}

func TestVM_Stats(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpLoad, 90),
		MustEncode(OpAdd, 90),
		MustEncode(OpAdd, 90),
		MustEncode(OpHalt, 0),
	}, nil)

	v := NewVM()
	if v.Stats() != nil {
		t.Error("expected nil stats before EnableStats")
	}
	v.EnableStats()
	if err := v.Load(p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := v.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	stats := v.Stats()
	testInt64 := func(name string, expected, actual int64) {
		if expected != actual {
			t.Errorf("%s: expected %d, got %d", name, expected, actual)
		}
	}
	testInt64("steps", 4, stats.StepsExecuted)
	testInt64("ADD count", 2, int64(stats.OpCounts["ADD"]))
	testInt64("HALT count", 1, int64(stats.OpCounts["HALT"]))
}

func TestVM_DebugDump(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpDebug, 1),
		MustEncode(OpDebug, 0),
		MustEncode(OpHalt, 0),
	}, nil)

	var dump bytes.Buffer
	v := NewVM()
	v.SetDumpOutput(&dump)
	if err := v.Load(p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := v.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// exactly one dump, after DEBUG 1
	if n := strings.Count(dump.String(), "REGISTERS:"); n != 1 {
		t.Errorf("expected 1 dump, got %d", n)
	}
	if v.Debug() {
		t.Error("expected debug off after DEBUG 0")
	}
}

func TestVM_Dump(t *testing.T) {
	p := newProgram([]Word{MustEncode(OpHalt, 0)}, map[int]Word{999: -1})

	v, _, err := runProgram(t, p, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var buf bytes.Buffer
	if err := v.Dump(&buf); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"REGISTERS:", "MEMORY:", "accumulator", "halted", "0990", "+00043000", "-00000001"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected dump to contain %q", want)
		}
	}
}

// ===== State =====

func TestVM_SaveRestoreState(t *testing.T) {
	p := newProgram([]Word{
		MustEncode(OpLoad, 90),
		MustEncode(OpHalt, 0),
	}, map[int]Word{90: 7})

	v, _, err := runProgram(t, p, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	saved := v.SaveState()

	other := NewVM()
	if err := other.RestoreState(saved); err != nil {
		t.Fatalf("RestoreState failed: %v", err)
	}
	if diff := cmp.Diff(saved, other.SaveState()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_RestoreStateRejectsRunning(t *testing.T) {
	v := NewVM()
	s := v.SaveState()
	s.State = StateRunning
	if err := v.RestoreState(s); !errors.Is(err, ErrNotHalted) {
		t.Errorf("expected ErrNotHalted, got %v", err)
	}
}

func TestVM_LoadTooLarge(t *testing.T) {
	v := NewVM()
	err := v.Load(&Program{Words: make([]Word, MemorySize+1)})
	if !errors.Is(err, simerr.ErrIO) {
		t.Errorf("expected i/o error, got %v", err)
	}
}

func TestValuesInput(t *testing.T) {
	in := NewValuesInput([]Word{3, -4})
	if in.Remaining() != 2 {
		t.Errorf("expected 2 remaining, got %d", in.Remaining())
	}
	w, err := in.ReadWord()
	if err != nil || w != 3 {
		t.Errorf("expected 3, got %d (%v)", w, err)
	}
	line, err := in.ReadLine()
	if err != nil || line != "-4" {
		t.Errorf("expected -4, got %q (%v)", line, err)
	}
	if _, err := in.ReadWord(); !errors.Is(err, ErrInputExhausted) {
		t.Errorf("expected ErrInputExhausted, got %v", err)
	}
}
