package compiler

import (
	"strconv"
	"strings"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

// Statement is one tokenized source line.
type Statement struct {
	Line    int      // 1-based physical line in the source
	Number  int32    // Simple line number (first token)
	Keyword string   // Uppercased command keyword
	Args    []string // Remaining raw tokens
	Text    string   // Original line text
}

// ParseLine tokenizes a source line into a statement. It checks the token
// count and the line number but not the keyword.
func ParseLine(line int, text string) (Statement, error) {
	tokens := Tokenize(text)
	if len(tokens) < 2 {
		return Statement{}, simerr.Syntax("incomplete statement").AtLine(line, text)
	}

	n, err := strconv.ParseUint(tokens[0], 10, 31)
	if err != nil {
		return Statement{}, simerr.SyntaxToken("invalid line number", tokens[0]).AtLine(line, text)
	}

	return Statement{
		Line:    line,
		Number:  int32(n),
		Keyword: strings.ToUpper(tokens[1]),
		Args:    tokens[2:],
		Text:    text,
	}, nil
}
