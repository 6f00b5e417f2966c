// Package repl provides an interactive session for editing and running
// Simple programs or raw SML memory images.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/akhildatla/simpletron/pkg/compiler"
	"github.com/akhildatla/simpletron/pkg/loader"
	"github.com/akhildatla/simpletron/pkg/vm"
)

const (
	promptSimple = "simple> "
	promptSML    = "sml %02d> "
)

// DefaultMaxSteps bounds every run started from the REPL.
const DefaultMaxSteps = 100000

// Mode represents the REPL input mode.
type Mode int

const (
	ModeSimple Mode = iota // numbered Simple statements
	ModeSML                // hexadecimal memory words
)

// REPL provides an interactive Read-Eval-Print Loop.
type REPL struct {
	mode     Mode
	lines    map[int]string // Simple line number -> statement text
	words    []vm.Word      // SML image entered so far
	inputs   []vm.Word      // default inputs for run
	last     *vm.VM         // machine of the last run, for dump
	maxSteps int64
	history  []string
	done     bool
}

// New creates a new REPL instance.
func New() *REPL {
	return &REPL{
		mode:     ModeSimple,
		lines:    make(map[int]string),
		maxSteps: DefaultMaxSteps,
		history:  []string{},
	}
}

// SetMode sets the REPL input mode.
func (r *REPL) SetMode(mode Mode) {
	r.mode = mode
}

// SetMaxSteps sets the instruction limit for runs. Zero means unlimited.
func (r *REPL) SetMaxSteps(n int64) {
	r.maxSteps = n
}

// Start runs the REPL loop until quit or end of input.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Simpletron REPL - Simple language and SML")
	fmt.Fprintln(out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(out)

	for !r.done {
		if r.mode == ModeSimple {
			fmt.Fprint(out, promptSimple)
		} else {
			fmt.Fprintf(out, promptSML, len(r.words))
		}

		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		if handled := r.handleCommand(line, out); handled {
			continue
		}
		r.eval(line, out)
	}
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	trimmed := strings.TrimSpace(line)
	parts := strings.Fields(trimmed)

	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		r.done = true
		return true

	case "help", "h", "?":
		r.printHelp(out)
		return true

	case "mode":
		if len(parts) > 1 {
			switch parts[1] {
			case "simple":
				r.mode = ModeSimple
				fmt.Fprintln(out, "Switched to Simple mode")
			case "sml":
				r.mode = ModeSML
				fmt.Fprintln(out, "Switched to SML mode")
			default:
				fmt.Fprintln(out, "Unknown mode. Use 'simple' or 'sml'")
			}
		} else {
			if r.mode == ModeSimple {
				fmt.Fprintln(out, "Current mode: Simple")
			} else {
				fmt.Fprintln(out, "Current mode: SML")
			}
		}
		return true

	case "run":
		r.history = append(r.history, trimmed)
		inputs, err := parseInputs(parts[1:])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return true
		}
		if inputs == nil {
			inputs = r.inputs
		}
		r.run(inputs, out)
		return true

	case "list":
		r.list(out)
		return true

	case "symbols":
		r.symbols(out)
		return true

	case "disasm":
		p, err := r.program()
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return true
		}
		fmt.Fprint(out, vm.Disassemble(p))
		return true

	case "dump":
		if r.last == nil {
			fmt.Fprintln(out, "Nothing has run yet")
			return true
		}
		if err := r.last.Dump(out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		return true

	case "load":
		if len(parts) > 1 {
			r.load(parts[1], out)
		} else {
			fmt.Fprintln(out, "Usage: load <path>")
		}
		return true

	case "inputs":
		if len(parts) > 1 {
			r.loadInputs(parts[1], out)
		} else {
			fmt.Fprintf(out, "Inputs: %v\n", r.inputs)
		}
		return true

	case "clear":
		r.lines = make(map[int]string)
		r.words = nil
		r.last = nil
		fmt.Fprintln(out, "Program cleared")
		return true

	case "history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}
		return true
	}

	return false
}

func (r *REPL) eval(input string, out io.Writer) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return
	}

	r.history = append(r.history, trimmed)

	var err error
	if r.mode == ModeSimple {
		err = r.evalSimple(trimmed)
	} else {
		err = r.evalSML(trimmed)
	}
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

// evalSimple stores a numbered statement. A bare line number deletes it.
func (r *REPL) evalSimple(input string) error {
	tokens := compiler.Tokenize(input)
	n, err := strconv.Atoi(tokens[0])
	if err != nil || n < 0 {
		return fmt.Errorf("unknown command %q", tokens[0])
	}
	if len(tokens) == 1 {
		delete(r.lines, n)
		return nil
	}
	if _, err := compiler.ParseLine(1, input); err != nil {
		return err
	}
	r.lines[n] = input
	return nil
}

// evalSML appends one word to the image.
func (r *REPL) evalSML(input string) error {
	if len(r.words) >= vm.MemorySize {
		return vm.ErrTooManyWords
	}
	w, err := vm.ParseWord(input)
	if err != nil {
		return err
	}
	r.words = append(r.words, w)
	return nil
}

// source returns the buffered Simple program in line-number order.
func (r *REPL) source() string {
	numbers := make([]int, 0, len(r.lines))
	for n := range r.lines {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var b strings.Builder
	for _, n := range numbers {
		b.WriteString(r.lines[n])
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *REPL) program() (*vm.Program, error) {
	if r.mode == ModeSML {
		p := vm.NewProgram()
		copy(p.Words, r.words)
		return p, nil
	}
	return compiler.Compile(r.source())
}

func (r *REPL) run(inputs []vm.Word, out io.Writer) {
	p, err := r.program()
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	machine := vm.NewVM()
	machine.SetInput(vm.NewValuesInput(inputs))
	machine.SetOutput(out)
	machine.SetDumpOutput(out)
	machine.SetMaxSteps(r.maxSteps)
	if err := machine.Load(p); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	r.last = machine

	if err := machine.Execute(); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "=> %s\n", machine.State())
}

func (r *REPL) list(out io.Writer) {
	if r.mode == ModeSML {
		for i, w := range r.words {
			fmt.Fprintf(out, "%02d %s\n", i, w)
		}
		return
	}
	if len(r.lines) == 0 {
		fmt.Fprintln(out, "No program entered")
		return
	}
	fmt.Fprint(out, r.source())
}

func (r *REPL) symbols(out io.Writer) {
	c := compiler.New()
	if _, err := c.Compile(strings.NewReader(r.source())); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	WriteSymbols(out, c.Symbols())
}

// WriteSymbols prints a symbol table as a table of symbol, kind, and
// location.
func WriteSymbols(out io.Writer, st *compiler.SymbolTable) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Symbol", "Kind", "Location"})
	for _, e := range st.Entries() {
		symbol := strconv.Itoa(int(e.Symbol))
		if e.Kind == compiler.SymbolVariable {
			symbol = string(rune(e.Symbol))
		}
		table.Append([]string{symbol, e.Kind.String(), fmt.Sprintf("%04d", e.Location)})
	}
	table.Render()
}

// load reads a Simple source file into the line buffer, or an artifact into
// the SML image.
func (r *REPL) load(path string, out io.Writer) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
		return
	}
	defer f.Close()

	if r.mode == ModeSML {
		p, err := vm.ReadProgram(f)
		if err != nil {
			fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
			return
		}
		r.words = trimZeros(p.Words)
		fmt.Fprintf(out, "Loaded %d words from %s\n", len(r.words), path)
		return
	}

	lines := make(map[int]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		stmt, err := compiler.ParseLine(1, text)
		if err != nil {
			fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
			return
		}
		lines[int(stmt.Number)] = text
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
		return
	}
	r.lines = lines
	fmt.Fprintf(out, "Loaded %d lines from %s\n", len(lines), path)
}

func (r *REPL) loadInputs(path string, out io.Writer) {
	words, err := loader.LoadInputs(context.Background(), path, "")
	if err != nil {
		fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
		return
	}
	r.inputs = words
	fmt.Fprintf(out, "Loaded %d inputs from %s\n", len(words), path)
}

func parseInputs(args []string) ([]vm.Word, error) {
	if len(args) == 0 {
		return nil, nil
	}
	inputs := make([]vm.Word, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q", a)
		}
		inputs = append(inputs, vm.Word(n))
	}
	return inputs, nil
}

// trimZeros drops the trailing zero words of a dense image.
func trimZeros(words []vm.Word) []vm.Word {
	end := len(words)
	for end > 0 && words[end-1] == 0 {
		end--
	}
	return words[:end]
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
Simpletron REPL Commands:
  help, h, ?          Show this help message
  quit, exit, q       Exit the REPL
  mode [simple|sml]   Show or set input mode
  run [values...]     Compile and run; values are served to INPUT
  list                Show the program entered so far
  symbols             Show the symbol table of the program
  disasm              Show the compiled memory image
  dump                Show registers and memory of the last run
  load <path>         Load a Simple source file (or artifact in SML mode)
  inputs [path]       Show or load default inputs from csv/json/parquet
  clear               Clear the program
  history             Show command history

Simple Examples:
  10 input a
  20 print a
  30 end
  20                  (a bare line number deletes the line)

SML Examples:
  10007
  11007
  43000
`
	fmt.Fprint(out, help)
}
