// Package embed provides the Go embedding API for the Simple language.
//
// Pass Simple source, get the program's output.
//
// Basic usage:
//
//	result, err := embed.Execute(`
//	    10 input a
//	    20 input b
//	    30 let c = a + b
//	    40 print c
//	    50 end
//	`, embed.WithInputs(3, 4))
//	fmt.Print(result.Output) // 7
//
// With an input feed loaded into a DataFrame:
//
//	frame := dataframe.NewDataFrame(
//	    dataframe.NewSeriesInt64("value", nil, 3, 4),
//	)
//	result, err := embed.Execute(source, embed.WithInputFrame(frame))
package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/simpletron/pkg/compiler"
	"github.com/akhildatla/simpletron/pkg/loader"
	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/vm"
)

// Common errors
var (
	ErrTimeout   = errors.New("execution timeout exceeded")
	ErrStepLimit = errors.New("instruction limit exceeded")
)

// Result is the outcome of one run.
type Result struct {
	// Output is everything written by WRITE and WRITE_STR.
	Output string
	// State is Halted on success and Crashed on a fault.
	State       vm.State
	Accumulator vm.Word
	Memory      []vm.Word
	Stats       *vm.ExecutionStats
}

// Options configures execution behavior.
type Options struct {
	// Inputs are served to READ in order. Ignored when InputReader is set.
	Inputs []vm.Word

	// InputFrame supplies inputs from the default column of a DataFrame.
	InputFrame *dataframe.DataFrame

	// InputReader supplies console-style input lines.
	InputReader io.Reader

	// Timeout sets maximum execution time. Zero means no timeout.
	Timeout time.Duration

	// MaxSteps limits the number of instructions executed.
	// Zero means unlimited.
	MaxSteps int64

	// Optimize enables constant folding and identity elimination in the
	// compiler.
	Optimize bool

	// Tracer observes every executed instruction.
	Tracer vm.Tracer

	// DumpOutput receives the dumps printed while the debug flag is set.
	// Dumps are discarded when nil.
	DumpOutput io.Writer

	// Context for cancellation. If nil, context.Background() is used.
	Context context.Context
}

// Option is a functional option for configuring execution.
type Option func(*Options)

// WithInputs sets the values served to READ.
func WithInputs(values ...vm.Word) Option {
	return func(o *Options) {
		o.Inputs = values
	}
}

// WithInputFrame reads inputs from a DataFrame column.
func WithInputFrame(df *dataframe.DataFrame) Option {
	return func(o *Options) {
		o.InputFrame = df
	}
}

// WithInputReader reads inputs line by line from r.
func WithInputReader(r io.Reader) Option {
	return func(o *Options) {
		o.InputReader = r
	}
}

// WithTimeout sets execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxSteps sets the instruction limit.
func WithMaxSteps(n int64) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithOptimization enables every compiler optimization.
func WithOptimization() Option {
	return func(o *Options) {
		o.Optimize = true
	}
}

// WithTracer installs an execution tracer.
func WithTracer(t vm.Tracer) Option {
	return func(o *Options) {
		o.Tracer = t
	}
}

// WithDumpOutput sets where debug dumps are printed.
func WithDumpOutput(w io.Writer) Option {
	return func(o *Options) {
		o.DumpOutput = w
	}
}

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// Execute compiles and runs Simple source code.
//
// Example:
//
//	result, err := embed.Execute(source,
//	    embed.WithTimeout(5*time.Second),
//	    embed.WithMaxSteps(10000),
//	    embed.WithInputs(7),
//	)
func Execute(source string, opts ...Option) (*Result, error) {
	options := applyOptions(opts)

	var copts []compiler.Option
	if options.Optimize {
		copts = append(copts, compiler.WithOptimizations())
	}
	program, err := compiler.Compile(source, copts...)
	if err != nil {
		return nil, err
	}
	return run(program, options)
}

// ExecuteFile reads a Simple source file and executes it.
func ExecuteFile(path string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.IO("reading source", err)
	}
	return Execute(string(data), opts...)
}

// ExecuteProgram runs an already compiled memory image.
func ExecuteProgram(program *vm.Program, opts ...Option) (*Result, error) {
	return run(program, applyOptions(opts))
}

func applyOptions(opts []Option) *Options {
	options := &Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// run executes program. On a fault the partial result is returned together
// with the error.
func run(program *vm.Program, options *Options) (*Result, error) {
	machine := vm.NewVM()
	var out bytes.Buffer
	machine.SetOutput(&out)
	if options.DumpOutput != nil {
		machine.SetDumpOutput(options.DumpOutput)
	} else {
		machine.SetDumpOutput(io.Discard)
	}
	machine.SetMaxSteps(options.MaxSteps)
	machine.EnableStats()
	if options.Tracer != nil {
		machine.SetTracer(options.Tracer)
	}

	switch {
	case options.InputReader != nil:
		machine.SetInput(vm.NewReaderInput(options.InputReader))
	case options.InputFrame != nil:
		words, err := loader.Words(options.InputFrame, "")
		if err != nil {
			return nil, simerr.IO("reading input frame", err)
		}
		machine.SetInput(vm.NewValuesInput(words))
	default:
		machine.SetInput(vm.NewValuesInput(options.Inputs))
	}

	if err := machine.Load(program); err != nil {
		return nil, err
	}

	ctx := options.Context
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}
	machine.SetContext(ctx)

	err := machine.Execute()
	result := &Result{
		Output:      out.String(),
		State:       machine.State(),
		Accumulator: machine.Accumulator(),
		Memory:      machine.Memory(),
		Stats:       machine.Stats(),
	}
	if err != nil {
		// Map VM errors to embed package errors
		switch {
		case errors.Is(err, vm.ErrStepLimit):
			return result, fmt.Errorf("%w: %w", ErrStepLimit, err)
		case errors.Is(err, context.DeadlineExceeded):
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, err
	}
	return result, nil
}

// Lines splits the output into lines without the trailing newline.
func (r *Result) Lines() []string {
	s := strings.TrimSuffix(r.Output, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
