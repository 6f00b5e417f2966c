package compiler

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

// Tokenize splits a source line on whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// ClassifyOperand resolves a statement argument to a symbol value and kind.
// A single letter is a Variable whose symbol is its character code; anything
// else must be a signed 32-bit integer and is a Constant.
func ClassifyOperand(token string) (int32, SymbolKind, error) {
	if utf8.RuneCountInString(token) == 1 {
		r, _ := utf8.DecodeRuneInString(token)
		if unicode.IsLetter(r) {
			return int32(r), SymbolVariable, nil
		}
	}

	n, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0, 0, simerr.SyntaxToken("invalid symbol", token)
	}
	return int32(n), SymbolConstant, nil
}

// isOperand reports whether token classifies as a Variable or Constant.
func isOperand(token string) bool {
	_, _, err := ClassifyOperand(token)
	return err == nil
}
