// Package compiler translates Simple source into a Simpletron memory image.
//
// Compilation runs two passes. Pass 1 walks the source line by line,
// registers each line number in the symbol table, dispatches the statement
// to its command handler, and flags branch instructions whose target line
// has not been seen yet. Pass 2 adds the resolved addresses of those targets
// into the flagged instruction words.
//
// Instructions are laid out upward from address 0; constants, variables, and
// expression temporaries are laid out downward from vm.MemorySize-1.
package compiler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/juju/loggo"

	"github.com/akhildatla/simpletron/pkg/optimizer"
	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/vm"
)

var logger = loggo.GetLogger("simpletron.compiler")

// Compile compiles Simple source code to a memory image.
func Compile(source string, opts ...Option) (*vm.Program, error) {
	return New(opts...).Compile(strings.NewReader(source))
}

// CompileFile reads and compiles a Simple source file.
func CompileFile(path string, opts ...Option) (*vm.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.IO("opening source", err)
	}
	defer f.Close()
	return New(opts...).Compile(f)
}

// Option is a functional option for the Compiler.
type Option func(*Compiler)

// WithConstantFolding folds constant-only subexpressions in LET statements.
func WithConstantFolding() Option {
	return WithOptimizer(optimizer.New(optimizer.WithConstantFolding()))
}

// WithOptimizations folds constant subexpressions and drops x+0, x-0, x*1
// and x/1 in LET statements.
func WithOptimizations() Option {
	return WithOptimizer(optimizer.New(optimizer.WithAllOptimizations()))
}

// WithOptimizer rewrites every LET expression with o before code generation.
func WithOptimizer(o *optimizer.Optimizer) Option {
	return func(c *Compiler) {
		c.optimizer = o
	}
}

// Compiler holds the state of one compilation.
type Compiler struct {
	instructionCounter int
	dataCounter        int
	memory             []vm.Word
	symbols            *SymbolTable

	// flags maps an instruction address to the line number still to be
	// added to its operand.
	flags map[int]flag

	// statement being compiled, for error context
	stmt Statement

	optimizer *optimizer.Optimizer
}

// flag is a pending forward reference.
type flag struct {
	target int32 // referenced line number
	line   int   // source line of the branch
}

// New creates a compiler with the given options.
func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, o := range opts {
		o(c)
	}
	c.reset()
	return c
}

func (c *Compiler) reset() {
	c.instructionCounter = 0
	c.dataCounter = vm.MemorySize - 1
	c.memory = make([]vm.Word, vm.MemorySize)
	c.symbols = NewSymbolTable()
	c.flags = make(map[int]flag)
	c.stmt = Statement{}
}

// Symbols returns the symbol table of the last compilation.
func (c *Compiler) Symbols() *SymbolTable {
	return c.symbols
}

// InstructionCount returns the number of emitted instruction words.
func (c *Compiler) InstructionCount() int {
	return c.instructionCounter
}

// DataCount returns the number of allocated data words.
func (c *Compiler) DataCount() int {
	return vm.MemorySize - 1 - c.dataCounter
}

// Compile reads source lines from r and returns the linked memory image.
// The first error aborts compilation and no image is returned.
func (c *Compiler) Compile(r io.Reader) (*vm.Program, error) {
	c.reset()

	// first pass
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if err := c.compileLine(line, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, simerr.IO("reading source", err)
	}

	// second pass
	if err := c.link(); err != nil {
		return nil, err
	}

	logger.Infof("compiled %d lines: %d instructions, %d data words, %d symbols",
		line, c.instructionCounter, c.DataCount(), c.symbols.Len())

	words := make([]vm.Word, vm.MemorySize)
	copy(words, c.memory)
	return &vm.Program{Words: words}, nil
}

func (c *Compiler) compileLine(line int, text string) error {
	stmt, err := ParseLine(line, text)
	if err != nil {
		return err
	}
	c.stmt = stmt
	logger.Tracef("line %d: %s", line, text)

	if _, ok := c.symbols.Find(stmt.Number, SymbolLineNumber); ok {
		return simerr.SyntaxToken("line number already used", fmt.Sprint(stmt.Number)).AtLine(line, text)
	}

	c.symbols.Insert(TableEntry{
		Symbol:   stmt.Number,
		Kind:     SymbolLineNumber,
		Location: c.instructionCounter,
	})

	cmd, ok := commands[stmt.Keyword]
	if !ok {
		return simerr.SyntaxToken("invalid symbol", stmt.Keyword).AtLine(line, text)
	}

	if err := cmd(c, stmt.Args); err != nil {
		return c.tag(err)
	}

	// program ran out of memory
	if c.dataCounter <= c.instructionCounter {
		return simerr.Resource("memory limit exceeded").AtLine(line, text)
	}
	return nil
}

// tag attaches the current statement to a handler error. Untyped errors
// become syntax errors.
func (c *Compiler) tag(err error) error {
	var se *simerr.Error
	if !errors.As(err, &se) {
		se = simerr.Syntax(err.Error())
	}
	return se.AtLine(c.stmt.Line, c.stmt.Text)
}

// link resolves every flagged forward reference.
func (c *Compiler) link() error {
	addrs := make([]int, 0, len(c.flags))
	for addr := range c.flags {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)

	for _, addr := range addrs {
		f := c.flags[addr]
		entry, ok := c.symbols.Find(f.target, SymbolLineNumber)
		if !ok {
			return simerr.Link("GOTO failed: line number does not exist", f.target).AtLine(f.line, "")
		}

		// the opcode part is already scaled; only the operand changes
		c.memory[addr] += vm.Word(entry.Location)
		delete(c.flags, addr)
		logger.Debugf("patched %04d -> line %d at %04d", addr, f.target, entry.Location)
	}
	return nil
}

// addInstruction emits one instruction at the instruction counter.
func (c *Compiler) addInstruction(op vm.Opcode, operand int) error {
	if c.instructionCounter >= len(c.memory) || c.instructionCounter > c.dataCounter {
		return simerr.Resource("memory limit exceeded")
	}
	word, err := vm.EncodeInstruction(op, operand)
	if err != nil {
		return err
	}
	c.memory[c.instructionCounter] = word
	c.instructionCounter++
	return nil
}

// addFlag records symbol against the most recently emitted instruction.
func (c *Compiler) addFlag(symbol int32) {
	c.flags[c.instructionCounter-1] = flag{target: symbol, line: c.stmt.Line}
}

// allocate takes the next free data cell.
func (c *Compiler) allocate() (int, error) {
	if c.dataCounter < 0 || c.dataCounter < c.instructionCounter {
		return 0, simerr.Resource("memory limit exceeded")
	}
	loc := c.dataCounter
	c.dataCounter--
	return loc, nil
}

// findLineNumber looks up the first instruction address of a line.
func (c *Compiler) findLineNumber(symbol int32) (TableEntry, bool) {
	return c.symbols.Find(symbol, SymbolLineNumber)
}

// findOrCreateSymbol returns the entry for (symbol, kind), allocating a data
// cell on first use. Constants are written into their cell.
func (c *Compiler) findOrCreateSymbol(symbol int32, kind SymbolKind) (TableEntry, error) {
	if entry, ok := c.symbols.Find(symbol, kind); ok {
		return entry, nil
	}

	loc, err := c.allocate()
	if err != nil {
		return TableEntry{}, err
	}
	entry := TableEntry{Symbol: symbol, Kind: kind, Location: loc}
	c.symbols.Insert(entry)

	// constants are self-initializing data
	if kind == SymbolConstant {
		c.memory[loc] = vm.Word(symbol)
	}
	return entry, nil
}

// resolveOperand classifies token and returns its data entry.
func (c *Compiler) resolveOperand(token string) (TableEntry, error) {
	symbol, kind, err := ClassifyOperand(token)
	if err != nil {
		return TableEntry{}, err
	}
	return c.findOrCreateSymbol(symbol, kind)
}

// branchTarget classifies a GOTO target token. Variables are rejected.
func (c *Compiler) branchTarget(token string) (int32, error) {
	symbol, kind, err := ClassifyOperand(token)
	if err != nil {
		return 0, err
	}
	if kind == SymbolVariable {
		return 0, simerr.SyntaxToken("cannot GOTO a variable", token)
	}
	return symbol, nil
}

// addBranch emits a branch to line target, flagging it when the line has not
// been seen yet.
func (c *Compiler) addBranch(op vm.Opcode, target int32) error {
	entry, ok := c.findLineNumber(target)
	if ok {
		return c.addInstruction(op, entry.Location)
	}
	if err := c.addInstruction(op, 0); err != nil {
		return err
	}
	c.addFlag(target)
	return nil
}
