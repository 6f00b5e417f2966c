// Package main provides the CLI entry point for the Simple compiler and the
// Simpletron virtual machine.
//
// Usage:
//
//	simpletron compile program.simple          # Compile to ./out.sml
//	simpletron compile program.simple -o p.sml # Compile to p.sml
//	simpletron sim p.sml                       # Execute an artifact
//	simpletron sim -i                          # Enter words interactively
//	simpletron run program.simple              # Compile and execute
//	simpletron disasm p.sml                    # Disassemble an artifact
//	simpletron inspect state.smls              # Dump a saved snapshot
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/juju/loggo"
	"github.com/olekukonko/tablewriter"

	"github.com/akhildatla/simpletron/pkg/compiler"
	"github.com/akhildatla/simpletron/pkg/config"
	"github.com/akhildatla/simpletron/pkg/loader"
	"github.com/akhildatla/simpletron/pkg/repl"
	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/snapshot"
	"github.com/akhildatla/simpletron/pkg/trace"
	"github.com/akhildatla/simpletron/pkg/vm"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var logger = loggo.GetLogger("simpletron.cmd")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 1 {
		return printUsage(stdout)
	}

	cmd := args[0]

	switch cmd {
	case "compile":
		return compileCommand(args[1:], stdout)
	case "sim":
		return simCommand(args[1:], stdin, stdout)
	case "run":
		return runCommand(args[1:], stdin, stdout)
	case "disasm":
		return disasmCommand(args[1:], stdout)
	case "inspect":
		return inspectCommand(args[1:], stdout)
	case "repl":
		return replCommand(args[1:], stdin, stdout)
	case "version":
		fmt.Fprintf(stdout, "simpletron version %s\n", version)
		if commit != "none" {
			fmt.Fprintf(stdout, "  commit: %s\n", commit)
		}
		if date != "unknown" {
			fmt.Fprintf(stdout, "  built:  %s\n", date)
		}
		return nil
	case "help", "-h", "--help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// loadConfig reads the named configuration file, or searches upward from the
// working directory when path is empty, and applies its logging level.
func loadConfig(path string, verbose bool) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "<root>=DEBUG"
	}
	if err := loggo.ConfigureLoggers(level); err != nil {
		return nil, fmt.Errorf("logging level %q: %w", level, err)
	}
	if cfg.Path != "" {
		logger.Debugf("using configuration %s", cfg.Path)
	}
	return cfg, nil
}

func compileCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	output := fs.String("o", "", "output file (default: ./out.sml)")
	verbose := fs.Bool("v", false, "verbose output")
	optimize := fs.Bool("O", false, "enable constant folding and identity elimination")
	symbols := fs.Bool("symbols", false, "print the symbol table")
	configPath := fs.String("config", "", "configuration file (default: search for simpletron.toml)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: simpletron compile <file.simple> [-o out.sml]")
	}

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	inputPath := fs.Arg(0)
	outputPath := *output
	if outputPath == "" {
		outputPath = cfg.Compile.Output
	}

	if *verbose {
		fmt.Fprintf(stdout, "Compiling: %s -> %s\n", inputPath, outputPath)
	}

	var opts []compiler.Option
	if *optimize || cfg.Compile.Optimize {
		opts = append(opts, compiler.WithOptimizations())
	}

	c := compiler.New(opts...)
	f, err := os.Open(inputPath)
	if err != nil {
		return simerr.IO("opening source", err)
	}
	program, err := c.Compile(f)
	f.Close()
	if err != nil {
		// nothing is written on failure
		return err
	}

	// Serialize before touching the output file
	artifact, err := vm.SerializeProgram(program)
	if err != nil {
		return fmt.Errorf("serializing: %w", err)
	}
	if err := os.WriteFile(outputPath, artifact, 0644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}

	if *symbols {
		repl.WriteSymbols(stdout, c.Symbols())
	}

	if *verbose {
		fmt.Fprintf(stdout, "Compiled %d instructions, %d data words, %d symbols\n",
			c.InstructionCount(), c.DataCount(), c.Symbols().Len())
		fmt.Fprintf(stdout, "Output: %s (%d bytes)\n", outputPath, len(artifact))
	}

	return nil
}

// simFlags are the execution options shared by sim and run.
type simFlags struct {
	debug      *bool
	input      *string
	column     *string
	tracePath  *string
	traceLimit *int
	snapshot   *string
	maxSteps   *int64
	stats      *bool
	verbose    *bool
	configPath *string
}

func addSimFlags(fs *flag.FlagSet) *simFlags {
	return &simFlags{
		debug:      fs.Bool("debug", false, "dump registers and memory after every instruction"),
		input:      fs.String("input", "", "read INPUT values from a csv/json/parquet feed"),
		column:     fs.String("column", "", "input feed column (default: value, else first)"),
		tracePath:  fs.String("trace", "", "export an execution trace (.csv, .json, .parquet)"),
		traceLimit: fs.Int("trace-limit", 0, "maximum trace rows (0: unlimited)"),
		snapshot:   fs.String("snapshot", "", "save the final machine state to a file"),
		maxSteps:   fs.Int64("max-steps", 0, "instruction limit (0: unlimited)"),
		stats:      fs.Bool("stats", false, "print execution statistics"),
		verbose:    fs.Bool("v", false, "verbose output"),
		configPath: fs.String("config", "", "configuration file (default: search for simpletron.toml)"),
	}
}

// merge fills unset flags from the configuration file.
func (f *simFlags) merge(cfg *config.Config) {
	s := cfg.Simulate
	if !*f.debug {
		*f.debug = s.Debug
	}
	if *f.input == "" {
		*f.input = s.Input
	}
	if *f.column == "" {
		*f.column = s.InputColumn
	}
	if *f.tracePath == "" {
		*f.tracePath = s.Trace
	}
	if *f.traceLimit == 0 {
		*f.traceLimit = s.TraceLimit
	}
	if *f.snapshot == "" {
		*f.snapshot = s.Snapshot
	}
	if *f.maxSteps == 0 {
		*f.maxSteps = s.MaxSteps
	}
}

func simCommand(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	interactive := fs.Bool("i", false, "enter the program word by word")
	flags := addSimFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 && !*interactive {
		return fmt.Errorf("usage: simpletron sim <file.sml>")
	}

	cfg, err := loadConfig(*flags.configPath, *flags.verbose)
	if err != nil {
		return err
	}
	flags.merge(cfg)

	// program words and program input share one buffered stream
	in := bufio.NewReader(stdin)

	machine := vm.NewVM()
	if *interactive {
		if err := machine.LoadInteractive(in, stdout); err != nil {
			return err
		}
	} else {
		path := fs.Arg(0)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("reading artifact: %w", err)
		}
		program, err := vm.ReadProgram(f)
		f.Close()
		if err != nil {
			return err
		}
		if err := machine.Load(program); err != nil {
			return err
		}
		logger.Debugf("loaded %s", path)
	}

	return execute(machine, flags, in, stdout)
}

func runCommand(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	optimize := fs.Bool("O", false, "enable constant folding and identity elimination")
	flags := addSimFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: simpletron run <file.simple>")
	}

	cfg, err := loadConfig(*flags.configPath, *flags.verbose)
	if err != nil {
		return err
	}
	flags.merge(cfg)

	var opts []compiler.Option
	if *optimize || cfg.Compile.Optimize {
		opts = append(opts, compiler.WithOptimizations())
	}
	program, err := compiler.CompileFile(fs.Arg(0), opts...)
	if err != nil {
		return err
	}

	machine := vm.NewVM()
	if err := machine.Load(program); err != nil {
		return err
	}
	return execute(machine, flags, stdin, stdout)
}

// execute runs a loaded machine and writes the requested trace, snapshot,
// and statistics. They are written for crashed runs too.
func execute(machine *vm.VM, flags *simFlags, stdin io.Reader, stdout io.Writer) error {
	ctx := context.Background()

	machine.SetOutput(stdout)
	machine.SetDumpOutput(stdout)
	machine.SetDebug(*flags.debug)
	machine.SetMaxSteps(*flags.maxSteps)
	machine.SetContext(ctx)

	if *flags.input != "" {
		words, err := loader.LoadInputs(ctx, *flags.input, *flags.column)
		if err != nil {
			return err
		}
		machine.SetInput(vm.NewValuesInput(words))
	} else {
		machine.SetInput(vm.NewReaderInput(stdin))
	}

	var recorder *trace.Recorder
	if *flags.tracePath != "" {
		recorder = trace.NewRecorder(*flags.traceLimit)
		machine.SetTracer(recorder)
	}
	if *flags.stats {
		machine.EnableStats()
	}

	runErr := machine.Execute()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if recorder != nil {
		if err := recorder.Export(ctx, *flags.tracePath); err != nil {
			errs = append(errs, err)
		}
	}
	if *flags.snapshot != "" {
		if err := snapshot.Save(*flags.snapshot, machine); err != nil {
			errs = append(errs, err)
		}
	}
	if *flags.stats {
		printStats(stdout, machine.Stats())
	}

	return errors.Join(errs...)
}

func printStats(out io.Writer, stats *vm.ExecutionStats) {
	fmt.Fprintf(out, "Steps: %d\n", stats.StepsExecuted)
	fmt.Fprintf(out, "Time:  %dns\n", stats.ExecutionTimeNs)

	names := make([]string, 0, len(stats.OpCounts))
	for name := range stats.OpCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Opcode", "Count"})
	for _, name := range names {
		table.Append([]string{name, strconv.Itoa(stats.OpCounts[name])})
	}
	table.Render()
}

func disasmCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	output := fs.String("o", "", "output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: simpletron disasm <file.sml> [-o listing.txt]")
	}

	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}

	program, err := vm.DeserializeProgram(data)
	if err != nil {
		return err
	}

	listing := vm.Disassemble(program)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(listing), 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(stdout, "Disassembled to: %s\n", *output)
	} else {
		fmt.Fprint(stdout, listing)
	}

	return nil
}

func inspectCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: simpletron inspect <snapshot>")
	}

	s, err := snapshot.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := vm.DumpState(&buf, s); err != nil {
		return err
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

func replCommand(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	smlMode := fs.Bool("sml", false, "start in SML mode (default: Simple mode)")
	maxSteps := fs.Int64("max-steps", repl.DefaultMaxSteps, "instruction limit per run (0: unlimited)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	r := repl.New()
	r.SetMaxSteps(*maxSteps)

	if *smlMode {
		r.SetMode(repl.ModeSML)
	}

	r.Start(stdin, stdout)
	return nil
}

func printUsage(out io.Writer) error {
	fmt.Fprintln(out, `Simpletron - Simple language compiler and SML virtual machine

Usage:
  simpletron <command> [arguments]

Commands:
  compile <file.simple>  Compile Simple source to an SML artifact
  sim <file.sml>         Execute an SML artifact
  run <file.simple>      Compile and execute in one step
  disasm <file.sml>      Disassemble an artifact
  inspect <snapshot>     Dump a saved machine state
  repl                   Start interactive REPL
  version                Print version information
  help                   Show this help message

Compile Options:
  -o <file>              Output file (default: ./out.sml)
  -O                     Enable constant folding and identity elimination
  -symbols               Print the symbol table
  -v                     Verbose output

Sim/Run Options:
  -i                     Enter the program word by word (sim only)
  -debug                 Dump registers and memory after every instruction
  -input <file>          Read INPUT values from a csv/json/parquet feed
  -column <name>         Input feed column
  -trace <file>          Export an execution trace (.csv, .json, .parquet)
  -trace-limit <n>       Maximum trace rows
  -snapshot <file>       Save the final machine state
  -max-steps <n>         Instruction limit
  -stats                 Print execution statistics
  -v                     Verbose output

All commands except repl accept -config <file>; otherwise simpletron.toml is
searched for from the working directory upward.

Examples:
  simpletron compile examples/add.simple
  simpletron sim out.sml
  simpletron run -input values.csv -trace trace.parquet examples/add.simple
  simpletron disasm out.sml
  simpletron repl -sml`)
	return nil
}
