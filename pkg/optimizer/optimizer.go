// Package optimizer rewrites postfix arithmetic expressions before code
// generation. Every pass preserves the 32-bit wraparound semantics of the
// Simpletron and never removes an operation that could fault at run time.
package optimizer

// Optimizer applies optimizations to a postfix token stream.
type Optimizer struct {
	enableConstantFolding bool
	enableIdentities      bool
}

// Option is a functional option for the Optimizer.
type Option func(*Optimizer)

// WithConstantFolding enables constant folding optimization.
func WithConstantFolding() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
	}
}

// WithIdentityElimination enables removal of x+0, x-0, x*1 and x/1.
func WithIdentityElimination() Option {
	return func(o *Optimizer) {
		o.enableIdentities = true
	}
}

// WithAllOptimizations enables all optimizations.
func WithAllOptimizations() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
		o.enableIdentities = true
	}
}

// New creates a new Optimizer with the given options.
func New(opts ...Option) *Optimizer {
	opt := &Optimizer{}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// Optimize applies enabled optimizations to a postfix expression.
func (o *Optimizer) Optimize(postfix []string) []string {
	result := postfix

	if o.enableConstantFolding {
		result = FoldPostfix(result)
	}

	if o.enableIdentities {
		result = eliminateIdentities(result)
	}

	return result
}

// segment is a contiguous postfix subexpression.
type segment struct {
	tokens   []string
	constant bool
	value    int32
}

func isOperator(token string) bool {
	switch token {
	case "+", "-", "*", "/":
		return true
	}
	return false
}

// flatten concatenates segments in order. Used for the final result and
// for malformed input, which is passed through for the compiler to reject.
func flatten(stack []segment) []string {
	var out []string
	for _, s := range stack {
		out = append(out, s.tokens...)
	}
	return out
}
