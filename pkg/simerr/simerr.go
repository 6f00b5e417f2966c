// Package simerr defines the error taxonomy shared by the Simple compiler and
// the Simpletron virtual machine.
//
// Every failure surfaced by the compiler or the VM is an *Error carrying a
// Kind plus structured context (source line, offending token). Callers branch
// on the kind with errors.Is:
//
//	if errors.Is(err, simerr.ErrLink) {
//	    // unresolved GOTO target
//	}
package simerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind uint8

const (
	KindSyntax   Kind = iota + 1 // tokenization, arity, operand kind, keyword, operator
	KindLink                     // pass-2 unresolved line number
	KindResource                 // instruction and data counters collided
	KindRuntime                  // fault raised while executing
	KindIO                       // file, console, or artifact I/O
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrSyntax   = errors.New("syntax error")
	ErrLink     = errors.New("link error")
	ErrResource = errors.New("resource error")
	ErrRuntime  = errors.New("runtime fault")
	ErrIO       = errors.New("i/o error")
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindLink:
		return "link error"
	case KindResource:
		return "resource error"
	case KindRuntime:
		return "runtime fault"
	case KindIO:
		return "i/o error"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindSyntax:
		return ErrSyntax
	case KindLink:
		return ErrLink
	case KindResource:
		return ErrResource
	case KindRuntime:
		return ErrRuntime
	case KindIO:
		return ErrIO
	}
	return nil
}

// Error is a classified compiler or VM failure.
type Error struct {
	Kind Kind

	// Line is the 1-based physical source line (compiler) or 0 when unknown.
	Line int
	// Source is the offending source statement, if any.
	Source string
	// Token is the offending token, if any.
	Token string
	// Address is the memory address involved in a runtime fault, or -1.
	Address int

	Msg string
	Err error
}

// Error formats the error as "<kind> on line N: msg \"token\": cause".
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Line > 0 {
		fmt.Fprintf(&b, " on line %d", e.Line)
	}
	if e.Kind == KindRuntime && e.Address >= 0 {
		fmt.Fprintf(&b, " at %04d", e.Address)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Token != "" {
		fmt.Fprintf(&b, " %q", e.Token)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Syntax returns a syntax error with the given message.
func Syntax(msg string) *Error {
	return &Error{Kind: KindSyntax, Msg: msg, Address: -1}
}

// SyntaxToken returns a syntax error naming the offending token.
func SyntaxToken(msg, token string) *Error {
	return &Error{Kind: KindSyntax, Msg: msg, Token: token, Address: -1}
}

// Link returns a link error for an unresolved line number.
func Link(msg string, line int32) *Error {
	return &Error{Kind: KindLink, Msg: msg, Token: fmt.Sprint(line), Address: -1}
}

// Resource returns a resource error.
func Resource(msg string) *Error {
	return &Error{Kind: KindResource, Msg: msg, Address: -1}
}

// Runtime returns a runtime fault at the given instruction address.
func Runtime(addr int, err error) *Error {
	return &Error{Kind: KindRuntime, Address: addr, Err: err}
}

// IO wraps an I/O failure.
func IO(msg string, err error) *Error {
	return &Error{Kind: KindIO, Msg: msg, Err: err, Address: -1}
}

// AtLine tags e with the source line it was raised on and returns it.
func (e *Error) AtLine(line int, source string) *Error {
	e.Line = line
	e.Source = source
	return e
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
