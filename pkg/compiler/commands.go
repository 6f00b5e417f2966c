package compiler

import (
	"fmt"
	"strings"

	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/vm"
)

// command compiles the arguments of one statement keyword.
type command func(c *Compiler, args []string) error

// commands maps each statement keyword to its handler. It is built once and
// never mutated.
var commands = map[string]command{
	"REM":   compileRem,
	"INPUT": compileInput,
	"PRINT": compilePrint,
	"GOTO":  compileGoto,
	"IF":    compileIf,
	"LET":   compileLet,
	"END":   compileEnd,
}

// arithmetic maps expression operators to their instructions.
var arithmetic = map[string]vm.Opcode{
	"+": vm.OpAdd,
	"-": vm.OpSubtract,
	"*": vm.OpMultiply,
	"/": vm.OpDivide,
}

func compileRem(_ *Compiler, _ []string) error {
	return nil
}

func compileInput(c *Compiler, args []string) error {
	if len(args) != 1 {
		return simerr.Syntax("INPUT command takes one argument")
	}

	symbol, kind, err := ClassifyOperand(args[0])
	if err != nil {
		return err
	}
	if kind == SymbolConstant {
		return simerr.SyntaxToken("cannot read into constant", args[0])
	}

	entry, err := c.findOrCreateSymbol(symbol, SymbolVariable)
	if err != nil {
		return err
	}
	return c.addInstruction(vm.OpRead, entry.Location)
}

func compilePrint(c *Compiler, args []string) error {
	if len(args) != 1 {
		return simerr.Syntax("PRINT command takes one argument")
	}

	entry, err := c.resolveOperand(args[0])
	if err != nil {
		return err
	}
	return c.addInstruction(vm.OpWrite, entry.Location)
}

func compileGoto(c *Compiler, args []string) error {
	if len(args) != 1 {
		return simerr.Syntax("GOTO command takes one argument")
	}

	target, err := c.branchTarget(args[0])
	if err != nil {
		return err
	}
	return c.addBranch(vm.OpBranch, target)
}

// compileIf lowers "lhs op rhs GOTO target". The accumulator holds the
// difference of the operands; <= and >= test it twice, so the second branch
// relies on the accumulator being unchanged by the first.
func compileIf(c *Compiler, args []string) error {
	if len(args) != 5 {
		return simerr.Syntax("IF...GOTO command takes 5 arguments")
	}
	if !strings.EqualFold(args[3], "GOTO") {
		return simerr.SyntaxToken("expected GOTO", args[3])
	}

	lhs, err := c.resolveOperand(args[0])
	if err != nil {
		return err
	}
	rhs, err := c.resolveOperand(args[2])
	if err != nil {
		return err
	}
	target, err := c.branchTarget(args[4])
	if err != nil {
		return err
	}

	var first, second TableEntry
	var branches []vm.Opcode
	switch args[1] {
	case "==":
		first, second = lhs, rhs
		branches = []vm.Opcode{vm.OpBranchZero}
	case "<":
		first, second = lhs, rhs
		branches = []vm.Opcode{vm.OpBranchNeg}
	case ">":
		first, second = rhs, lhs
		branches = []vm.Opcode{vm.OpBranchNeg}
	case "<=":
		first, second = lhs, rhs
		branches = []vm.Opcode{vm.OpBranchNeg, vm.OpBranchZero}
	case ">=":
		first, second = rhs, lhs
		branches = []vm.Opcode{vm.OpBranchNeg, vm.OpBranchZero}
	default:
		return simerr.SyntaxToken("invalid comparison operator", args[1])
	}

	if err := c.addInstruction(vm.OpLoad, first.Location); err != nil {
		return err
	}
	if err := c.addInstruction(vm.OpSubtract, second.Location); err != nil {
		return err
	}
	for _, op := range branches {
		if err := c.addBranch(op, target); err != nil {
			return err
		}
	}
	return nil
}

// compileLet compiles "var = expr". The expression is converted to postfix
// and evaluated on a stack of addresses: each operator loads its first
// operand, applies the second, and stores into a fresh temporary.
func compileLet(c *Compiler, args []string) error {
	if len(args) < 3 {
		return simerr.Syntax("LET command takes a variable, '=' and an expression")
	}

	symbol, kind, err := ClassifyOperand(args[0])
	if err != nil {
		return err
	}
	if kind != SymbolVariable {
		return simerr.SyntaxToken("cannot assign to constant", args[0])
	}
	if args[1] != "=" {
		return simerr.SyntaxToken("expected '='", args[1])
	}

	postfix, err := InfixToPostfix(args[2:])
	if err != nil {
		return err
	}
	if c.optimizer != nil {
		postfix = c.optimizer.Optimize(postfix)
	}
	logger.Tracef("postfix: %v", postfix)

	var stack []int
	for _, token := range postfix {
		if !isOperator(token) {
			entry, err := c.resolveOperand(token)
			if err != nil {
				return err
			}
			stack = append(stack, entry.Location)
			continue
		}

		if len(stack) < 2 {
			return simerr.SyntaxToken("missing operand for", token)
		}
		b := stack[len(stack)-1]
		a := stack[len(stack)-2]
		stack = stack[:len(stack)-2]

		temp, err := c.allocate()
		if err != nil {
			return err
		}
		if err := c.addInstruction(vm.OpLoad, a); err != nil {
			return err
		}
		if err := c.addInstruction(arithmetic[token], b); err != nil {
			return err
		}
		if err := c.addInstruction(vm.OpStore, temp); err != nil {
			return err
		}
		stack = append(stack, temp)
	}

	if len(stack) != 1 {
		return simerr.Syntax(fmt.Sprintf("malformed expression: %d values left", len(stack)))
	}

	dest, err := c.findOrCreateSymbol(symbol, SymbolVariable)
	if err != nil {
		return err
	}
	if err := c.addInstruction(vm.OpLoad, stack[0]); err != nil {
		return err
	}
	return c.addInstruction(vm.OpStore, dest.Location)
}

func compileEnd(c *Compiler, args []string) error {
	if len(args) != 0 {
		return simerr.Syntax("END command takes no arguments")
	}
	return c.addInstruction(vm.OpHalt, 0)
}
