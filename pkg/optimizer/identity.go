package optimizer

// eliminateIdentities drops operations whose right operand is the identity
// element: x+0, x-0, x*1 and x/1 all reduce to x.
//
//	A 0 +   =>   A
//	A 1 * B +   =>   A B +
func eliminateIdentities(postfix []string) []string {
	var stack []segment

	for _, token := range postfix {
		if !isOperator(token) {
			stack = append(stack, segment{tokens: []string{token}})
			continue
		}

		if len(stack) < 2 {
			return postfix
		}
		b := stack[len(stack)-1]
		a := stack[len(stack)-2]
		stack = stack[:len(stack)-2]

		if isIdentity(token, b.tokens) {
			stack = append(stack, a)
			continue
		}

		tokens := make([]string, 0, len(a.tokens)+len(b.tokens)+1)
		tokens = append(tokens, a.tokens...)
		tokens = append(tokens, b.tokens...)
		tokens = append(tokens, token)
		stack = append(stack, segment{tokens: tokens})
	}

	return flatten(stack)
}

func isIdentity(op string, operand []string) bool {
	if len(operand) != 1 {
		return false
	}
	switch op {
	case "+", "-":
		return operand[0] == "0"
	case "*", "/":
		return operand[0] == "1"
	}
	return false
}
