package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInputExhausted is returned by an input source with nothing left to read.
var ErrInputExhausted = errors.New("input exhausted")

// InputSource supplies values to READ and READ_STR. Reads block until a value
// is available; there is no cancellation.
type InputSource interface {
	// ReadWord returns the next decimal integer.
	ReadWord() (Word, error)
	// ReadLine returns the next line without its terminator.
	ReadLine() (string, error)
}

// ReaderInput reads line-oriented console input.
type ReaderInput struct {
	r *bufio.Reader
}

// NewReaderInput wraps r as an InputSource. A *bufio.Reader is used as is, so
// several consumers of one stream share its buffer.
func NewReaderInput(r io.Reader) *ReaderInput {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ReaderInput{r: br}
}

// ReadLine implements InputSource.
func (in *ReaderInput) ReadLine() (string, error) {
	line, err := in.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputExhausted
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadWord implements InputSource.
func (in *ReaderInput) ReadWord() (Word, error) {
	line, err := in.ReadLine()
	if err != nil {
		return 0, err
	}
	return parseDecimal(line)
}

// ValuesInput serves a fixed sequence of values, e.g. a loaded input feed.
type ValuesInput struct {
	values []Word
	pos    int
}

// NewValuesInput returns an InputSource yielding values in order.
func NewValuesInput(values []Word) *ValuesInput {
	return &ValuesInput{values: values}
}

// ReadWord implements InputSource.
func (in *ValuesInput) ReadWord() (Word, error) {
	if in.pos >= len(in.values) {
		return 0, ErrInputExhausted
	}
	v := in.values[in.pos]
	in.pos++
	return v, nil
}

// ReadLine implements InputSource by formatting the next value in decimal.
func (in *ValuesInput) ReadLine() (string, error) {
	v, err := in.ReadWord()
	if err != nil {
		return "", err
	}
	return strconv.Itoa(int(v)), nil
}

// Remaining returns the number of unread values.
func (in *ValuesInput) Remaining() int {
	return len(in.values) - in.pos
}

func parseDecimal(s string) (Word, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric input %q", s)
	}
	return Word(n), nil
}
