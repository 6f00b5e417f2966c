package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/akhildatla/simpletron/internal/testutil"
	"github.com/akhildatla/simpletron/pkg/vm"
)

func session(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	New().Start(strings.NewReader(input), &out)
	return out.String()
}

func TestREPL_New(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("New returned nil")
	}
	if r.mode != ModeSimple {
		t.Errorf("expected Simple mode, got %v", r.mode)
	}
}

func TestREPL_SetMode(t *testing.T) {
	r := New()
	r.SetMode(ModeSML)
	if r.mode != ModeSML {
		t.Errorf("expected SML mode, got %v", r.mode)
	}
}

func TestREPL_HandleCommand_Help(t *testing.T) {
	r := New()
	var out bytes.Buffer

	for _, cmd := range []string{"help", "h", "?"} {
		out.Reset()
		if !r.handleCommand(cmd, &out) {
			t.Errorf("expected %q to be handled", cmd)
		}
		if !strings.Contains(out.String(), "Simpletron REPL Commands") {
			t.Errorf("expected help text for %q", cmd)
		}
	}
}

func TestREPL_HandleCommand_Mode(t *testing.T) {
	r := New()
	var out bytes.Buffer

	r.handleCommand("mode sml", &out)
	if r.mode != ModeSML {
		t.Errorf("expected SML mode, got %v", r.mode)
	}
	out.Reset()
	r.handleCommand("mode", &out)
	if !strings.Contains(out.String(), "Current mode: SML") {
		t.Errorf("unexpected output %q", out.String())
	}
	out.Reset()
	r.handleCommand("mode basic", &out)
	if !strings.Contains(out.String(), "Unknown mode") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestREPL_Start_RunProgram(t *testing.T) {
	out := session(t, `10 input a
20 input b
30 let c = a * b
40 print c
50 end
run 6 7
`)
	if !strings.Contains(out, "42\n=> halted") {
		t.Errorf("expected program output, got:\n%s", out)
	}
}

func TestREPL_Start_ReplaceAndDeleteLines(t *testing.T) {
	out := session(t, `10 print 1
20 print 2
30 end
20 print 3
10
list
run
`)
	if strings.Contains(out, "10 print 1") {
		t.Errorf("expected line 10 deleted, got:\n%s", out)
	}
	if !strings.Contains(out, "20 print 3\n30 end\n") {
		t.Errorf("expected replaced line 20 in listing, got:\n%s", out)
	}
	if !strings.Contains(out, "3\n=> halted") {
		t.Errorf("expected output 3, got:\n%s", out)
	}
}

func TestREPL_Start_LinesOutOfOrder(t *testing.T) {
	out := session(t, "30 end\n10 goto 30\n20 print 9\nrun\n")
	if strings.Contains(out, "9\n") {
		t.Errorf("expected PRINT skipped, got:\n%s", out)
	}
	if !strings.Contains(out, "=> halted") {
		t.Errorf("expected halt, got:\n%s", out)
	}
}

func TestREPL_Start_Errors(t *testing.T) {
	out := session(t, "hello\n10\n10 goto 99\nrun\nrun x\n")
	if !strings.Contains(out, `unknown command "hello"`) {
		t.Errorf("expected unknown command error, got:\n%s", out)
	}
	if !strings.Contains(out, "link error") {
		t.Errorf("expected link error, got:\n%s", out)
	}
	if !strings.Contains(out, `invalid input "x"`) {
		t.Errorf("expected invalid input error, got:\n%s", out)
	}
}

func TestREPL_Start_Quit(t *testing.T) {
	out := session(t, "quit\n10 end\nlist\n")
	if !strings.Contains(out, "Goodbye!") {
		t.Error("expected goodbye")
	}
	if strings.Contains(out, "10 end") {
		t.Errorf("expected loop to stop at quit, got:\n%s", out)
	}
}

func TestREPL_Start_SMLMode(t *testing.T) {
	out := session(t, `mode sml
10007
11007
43000
+00000000
+00000000
+00000000
+00000000
list
run 5
dump
`)
	if !strings.Contains(out, "sml 03> ") {
		t.Errorf("expected address prompt, got:\n%s", out)
	}
	if !strings.Contains(out, "02 +00043000") {
		t.Errorf("expected listing, got:\n%s", out)
	}
	if !strings.Contains(out, "5\n=> halted") {
		t.Errorf("expected output 5, got:\n%s", out)
	}
	if !strings.Contains(out, "REGISTERS:") {
		t.Errorf("expected dump, got:\n%s", out)
	}
}

func TestREPL_Symbols(t *testing.T) {
	out := session(t, "10 input a\n20 print 5\n30 end\nsymbols\n")
	for _, want := range []string{"SYMBOL", "0999", "0998"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in symbol table, got:\n%s", want, out)
		}
	}
}

func TestREPL_Disasm(t *testing.T) {
	out := session(t, "10 end\ndisasm\n")
	if !strings.Contains(out, "0000: +00043000  HALT") {
		t.Errorf("expected disassembly, got:\n%s", out)
	}
}

func TestREPL_DumpBeforeRun(t *testing.T) {
	out := session(t, "dump\n")
	if !strings.Contains(out, "Nothing has run yet") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestREPL_LoadSource(t *testing.T) {
	path := testutil.TempFile(t, testutil.AddSource(), ".simple")
	out := session(t, "load "+path+"\nrun 2 3\n")
	if !strings.Contains(out, "Loaded 6 lines") {
		t.Errorf("expected load message, got:\n%s", out)
	}
	if !strings.Contains(out, "5\n=> halted") {
		t.Errorf("expected output 5, got:\n%s", out)
	}
}

func TestREPL_LoadInputs(t *testing.T) {
	path := testutil.TempFile(t, testutil.InputsCSV(), ".csv")
	out := session(t, "inputs "+path+"\n10 input a\n20 print a\n30 end\nrun\n")
	if !strings.Contains(out, "Loaded 3 inputs") {
		t.Errorf("expected inputs message, got:\n%s", out)
	}
	if !strings.Contains(out, "3\n=> halted") {
		t.Errorf("expected first input printed, got:\n%s", out)
	}
}

func TestREPL_StepLimit(t *testing.T) {
	r := New()
	r.SetMaxSteps(50)
	var out bytes.Buffer
	r.Start(strings.NewReader("10 goto 10\nrun\n"), &out)
	if !strings.Contains(out.String(), vm.ErrStepLimit.Error()) {
		t.Errorf("expected step limit error, got:\n%s", out.String())
	}
}

func TestREPL_ClearAndHistory(t *testing.T) {
	out := session(t, "10 end\nclear\nlist\nhistory\n")
	if !strings.Contains(out, "No program entered") {
		t.Errorf("expected empty program, got:\n%s", out)
	}
	if !strings.Contains(out, "  1: 10 end") {
		t.Errorf("expected history entry, got:\n%s", out)
	}
}
