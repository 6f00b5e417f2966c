// Package vm implements the Simpletron virtual machine.
//
// The machine is an accumulator architecture with a single word-addressed
// memory of MemorySize cells shared by code and data. Each word packs an
// opcode and an operand (see EncodeInstruction). Execution is a plain
// fetch/decode/dispatch loop over the operation table.
//
// Basic usage:
//
//	v := vm.NewVM()
//	v.SetInput(vm.NewReaderInput(os.Stdin))
//	v.SetOutput(os.Stdout)
//	v.Load(program)
//	err := v.Execute()
//
// With resource limits:
//
//	v := vm.NewVM()
//	v.SetMaxSteps(10000)
//	v.SetContext(ctx)
//	v.Load(program)
//	err := v.Execute()
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/juju/loggo"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

var logger = loggo.GetLogger("simpletron.vm")

// Error definitions
var (
	ErrDivideByZero      = errors.New("attempt to divide by zero")
	ErrModuloByZero      = errors.New("attempt to modulo by zero")
	ErrAddressOutOfRange = errors.New("address out of range")
	ErrStepLimit         = errors.New("step limit exceeded")
	ErrNotHalted         = errors.New("machine is running")
)

// State is the execution state of the machine.
type State uint8

const (
	StateHalted  State = iota // terminal, normal; also the state before Execute
	StateRunning              // fetch/decode/dispatch in progress
	StateCrashed              // terminal, fault
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateHalted:
		return "halted"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// TraceEvent describes one executed instruction.
type TraceEvent struct {
	Step        int64
	Address     int
	Word        Word
	Opcode      Opcode
	Operand     int
	Accumulator Word
	State       State
}

// Tracer observes every dispatched instruction.
type Tracer interface {
	Record(ev TraceEvent)
}

// ExecutionStats contains metrics about VM execution for observability.
type ExecutionStats struct {
	StepsExecuted   int64          // Total instructions executed
	ExecutionTimeNs int64          // Execution time in nanoseconds
	OpCounts        map[string]int // Count of each opcode executed
}

// VM represents the Simpletron machine.
type VM struct {
	regs   Registers
	memory [MemorySize]Word
	state  State
	debug  bool

	in      InputSource
	out     io.Writer
	dumpOut io.Writer

	// Resource limits
	maxSteps  int64
	stepCount int64

	// Context for cancellation between instructions
	ctx context.Context

	tracer Tracer

	// Observability - execution statistics
	stats        ExecutionStats
	statsEnabled bool
}

// NewVM creates a halted machine with zeroed memory reading from stdin and
// writing to stdout.
func NewVM() *VM {
	return &VM{
		state:   StateHalted,
		in:      NewReaderInput(os.Stdin),
		out:     os.Stdout,
		dumpOut: os.Stdout,
	}
}

// SetInput sets the source for READ and READ_STR.
func (vm *VM) SetInput(in InputSource) {
	vm.in = in
}

// SetOutput sets the destination for WRITE and WRITE_STR.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetDumpOutput sets where debug dumps are printed.
func (vm *VM) SetDumpOutput(w io.Writer) {
	vm.dumpOut = w
}

// SetDebug sets the debug flag; when set, a dump follows every instruction.
func (vm *VM) SetDebug(debug bool) {
	vm.debug = debug
}

// SetMaxSteps sets the maximum number of executed instructions. Zero means
// unlimited.
func (vm *VM) SetMaxSteps(n int64) {
	vm.maxSteps = n
}

// SetContext sets the context checked between instructions.
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// SetTracer installs a tracer notified after every dispatched instruction.
func (vm *VM) SetTracer(t Tracer) {
	vm.tracer = t
}

// EnableStats enables execution statistics collection.
func (vm *VM) EnableStats() {
	vm.statsEnabled = true
	vm.stats = ExecutionStats{
		OpCounts: make(map[string]int),
	}
}

// Stats returns the execution statistics from the last Execute() call.
// Returns nil if stats were not enabled via EnableStats().
func (vm *VM) Stats() *ExecutionStats {
	if !vm.statsEnabled {
		return nil
	}
	return &vm.stats
}

// Load copies a program image into memory and resets the registers.
func (vm *VM) Load(p *Program) error {
	if len(p.Words) > MemorySize {
		return simerr.IO("loading program", fmt.Errorf("%w: %d", ErrTooManyWords, len(p.Words)))
	}
	vm.memory = [MemorySize]Word{}
	copy(vm.memory[:], p.Words)
	vm.regs.Reset()
	vm.state = StateHalted
	vm.stepCount = 0
	logger.Debugf("loaded %d words", len(p.Words))
	return nil
}

// State returns the execution state.
func (vm *VM) State() State {
	return vm.state
}

// Debug reports whether the debug flag is set.
func (vm *VM) Debug() bool {
	return vm.debug
}

// Registers returns a copy of the register file.
func (vm *VM) Registers() Registers {
	return vm.regs
}

// Accumulator returns the accumulator register.
func (vm *VM) Accumulator() Word {
	return vm.regs.Accumulator
}

// InstructionCounter returns the address of the next instruction.
func (vm *VM) InstructionCounter() int {
	return vm.regs.InstructionCounter
}

// Peek returns the word at addr.
func (vm *VM) Peek(addr int) (Word, error) {
	if addr < 0 || addr >= MemorySize {
		return 0, fmt.Errorf("%w: %d", ErrAddressOutOfRange, addr)
	}
	return vm.memory[addr], nil
}

// Memory returns a copy of the whole address space.
func (vm *VM) Memory() []Word {
	out := make([]Word, MemorySize)
	copy(out, vm.memory[:])
	return out
}

// Execute runs from the current instruction counter until the machine halts
// or crashes. It returns nil on Halted and the fault on Crashed.
func (vm *VM) Execute() error {
	var startTime time.Time
	if vm.statsEnabled {
		startTime = time.Now()
		vm.stats.StepsExecuted = 0
		vm.stats.OpCounts = make(map[string]int)
	}

	vm.state = StateRunning
	var err error
	for vm.state == StateRunning {
		if err = vm.Step(); err != nil {
			break
		}
	}

	if vm.statsEnabled {
		vm.stats.ExecutionTimeNs = time.Since(startTime).Nanoseconds()
	}
	return err
}

// Step executes the instruction at the instruction counter. On a fault the
// machine becomes Crashed and the instruction counter is left on the faulting
// instruction.
func (vm *VM) Step() error {
	if vm.ctx != nil {
		select {
		case <-vm.ctx.Done():
			return vm.crash(simerr.Runtime(vm.regs.InstructionCounter, vm.ctx.Err()))
		default:
		}
	}

	vm.stepCount++
	if vm.maxSteps > 0 && vm.stepCount > vm.maxSteps {
		return vm.crash(simerr.Runtime(vm.regs.InstructionCounter, ErrStepLimit))
	}

	// fetch
	addr := vm.regs.InstructionCounter
	if addr < 0 || addr >= MemorySize {
		return vm.crash(simerr.Runtime(addr, fmt.Errorf("%w: instruction counter %d", ErrAddressOutOfRange, addr)))
	}
	vm.regs.InstructionRegister = vm.memory[addr]

	// decode
	vm.regs.OperationCode, vm.regs.Operand = vm.regs.InstructionRegister.Decode()

	if vm.statsEnabled {
		vm.stats.StepsExecuted++
		vm.stats.OpCounts[vm.regs.OperationCode.String()]++
	}

	// dispatch
	op, ok := operations[vm.regs.OperationCode]
	if ok {
		if err := op(vm); err != nil {
			var se *simerr.Error
			if !errors.As(err, &se) {
				se = simerr.Runtime(addr, err)
			} else {
				se.Address = addr
			}
			return vm.crash(se)
		}
	} else {
		logger.Warningf("invalid operation %x at %04d, halting", uint16(vm.regs.OperationCode), addr)
		vm.state = StateHalted
	}

	// move to next instruction
	vm.regs.InstructionCounter++

	if vm.tracer != nil {
		vm.tracer.Record(vm.traceEvent(addr))
	}

	if vm.debug {
		if err := vm.Dump(vm.dumpOut); err != nil {
			logger.Errorf("dump failed: %v", err)
		}
	}
	return nil
}

func (vm *VM) crash(err *simerr.Error) error {
	vm.state = StateCrashed
	logger.Errorf("execution abnormally terminated: %v", err)
	if vm.tracer != nil {
		vm.tracer.Record(vm.traceEvent(vm.regs.InstructionCounter))
	}
	return err
}

func (vm *VM) traceEvent(addr int) TraceEvent {
	return TraceEvent{
		Step:        vm.stepCount,
		Address:     addr,
		Word:        vm.regs.InstructionRegister,
		Opcode:      vm.regs.OperationCode,
		Operand:     vm.regs.Operand,
		Accumulator: vm.regs.Accumulator,
		State:       vm.state,
	}
}

func (vm *VM) operandCell() (*Word, error) {
	addr := vm.regs.Operand
	if addr < 0 || addr >= MemorySize {
		return nil, fmt.Errorf("%w: operand %d", ErrAddressOutOfRange, addr)
	}
	return &vm.memory[addr], nil
}

// MachineState is a complete copy of the machine, used for snapshots.
type MachineState struct {
	Registers Registers
	Memory    []Word
	State     State
	Debug     bool
}

// SaveState captures the machine.
func (vm *VM) SaveState() MachineState {
	return MachineState{
		Registers: vm.regs,
		Memory:    vm.Memory(),
		State:     vm.state,
		Debug:     vm.debug,
	}
}

// RestoreState replaces the machine with a previously captured state.
func (vm *VM) RestoreState(s MachineState) error {
	if len(s.Memory) > MemorySize {
		return fmt.Errorf("%w: %d", ErrTooManyWords, len(s.Memory))
	}
	if s.State == StateRunning {
		return ErrNotHalted
	}
	vm.memory = [MemorySize]Word{}
	copy(vm.memory[:], s.Memory)
	vm.regs = s.Registers
	vm.state = s.State
	vm.debug = s.Debug
	return nil
}
