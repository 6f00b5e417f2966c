package optimizer

import (
	"strconv"
)

// FoldPostfix evaluates constant-only subexpressions at compile time.
// For example:
//
//	2 3 4 * +   =>   14
//	A 2 3 * +   =>   A 6 +
//
// Division by a constant zero is left in place so it faults at run time.
func FoldPostfix(postfix []string) []string {
	var stack []segment

	for _, token := range postfix {
		if !isOperator(token) {
			seg := segment{tokens: []string{token}}
			if n, err := strconv.ParseInt(token, 10, 32); err == nil {
				seg.constant = true
				seg.value = int32(n)
			}
			stack = append(stack, seg)
			continue
		}

		if len(stack) < 2 {
			return postfix
		}
		b := stack[len(stack)-1]
		a := stack[len(stack)-2]
		stack = stack[:len(stack)-2]

		if a.constant && b.constant {
			if v, ok := evaluate(token, a.value, b.value); ok {
				stack = append(stack, segment{
					tokens:   []string{strconv.Itoa(int(v))},
					constant: true,
					value:    v,
				})
				continue
			}
		}

		tokens := make([]string, 0, len(a.tokens)+len(b.tokens)+1)
		tokens = append(tokens, a.tokens...)
		tokens = append(tokens, b.tokens...)
		tokens = append(tokens, token)
		stack = append(stack, segment{tokens: tokens})
	}

	return flatten(stack)
}

// evaluate applies op with 32-bit wraparound. It refuses division by zero.
func evaluate(op string, a, b int32) (int32, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "/":
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}
