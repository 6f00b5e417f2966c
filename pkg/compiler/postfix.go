package compiler

import (
	"github.com/akhildatla/simpletron/pkg/simerr"
)

// precedence ranks operators on the conversion stack. "(" ranks lowest so it
// is never popped by an incoming operator.
var precedence = map[string]int{
	"(": 0,
	"+": 1,
	"-": 1,
	"*": 2,
	"/": 2,
}

// InfixToPostfix converts a parenthesized infix token sequence to postfix
// order using an operator stack. Operands are Variables or Constants as
// classified by ClassifyOperand.
//
//	2 + 3 * 4   =>   2 3 4 * +
func InfixToPostfix(infix []string) ([]string, error) {
	postfix := make([]string, 0, len(infix))
	var stack []string

	for _, token := range infix {
		if isOperand(token) {
			postfix = append(postfix, token)
			continue
		}

		switch token {
		case "(":
			stack = append(stack, token)

		case ")":
			for {
				if len(stack) == 0 {
					return nil, simerr.SyntaxToken("mismatched brackets", token)
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top == "(" {
					break
				}
				// pop all operators between brackets
				postfix = append(postfix, top)
			}

		case "+", "-", "*", "/":
			// pop all operators with higher or equal precedence
			for len(stack) > 0 && precedence[stack[len(stack)-1]] >= precedence[token] {
				postfix = append(postfix, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, token)

		default:
			return nil, simerr.SyntaxToken("unexpected token", token)
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top == "(" {
			return nil, simerr.SyntaxToken("mismatched brackets", top)
		}
		postfix = append(postfix, top)
	}

	return postfix, nil
}

// isOperator reports whether token is one of the four arithmetic operators.
func isOperator(token string) bool {
	switch token {
	case "+", "-", "*", "/":
		return true
	}
	return false
}
