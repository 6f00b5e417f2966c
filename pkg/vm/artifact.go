package vm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

// Artifact file format:
// - Exactly MemorySize lines, one per memory cell in address order
// - Each line is a fixed-width signed hexadecimal word: "%+09x"
//   (e.g. "+00011063", "-00000007")
// - Untouched cells are written as zero; the dump is dense and positional
//
// The loader accepts any line that parses as a signed 32-bit integer in
// Radix, so unpadded words ("11063") load as well.

var (
	ErrTooManyWords = errors.New("program exceeds memory size")
	ErrInvalidWord  = errors.New("invalid word")
)

// interactiveSentinel ends interactive word entry.
const interactiveSentinel = -10000

// Program is a memory image produced by the compiler.
type Program struct {
	Words []Word
}

// NewProgram returns a zeroed image of MemorySize words.
func NewProgram() *Program {
	return &Program{Words: make([]Word, MemorySize)}
}

// WriteProgram writes p as a dense artifact of MemorySize lines.
func WriteProgram(w io.Writer, p *Program) error {
	if len(p.Words) > MemorySize {
		return fmt.Errorf("%w: %d", ErrTooManyWords, len(p.Words))
	}
	bw := bufio.NewWriter(w)
	for i := 0; i < MemorySize; i++ {
		var word Word
		if i < len(p.Words) {
			word = p.Words[i]
		}
		if _, err := bw.WriteString(word.String()); err != nil {
			return fmt.Errorf("writing word %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing word %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// SerializeProgram returns the artifact bytes for p.
func SerializeProgram(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteProgram(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadProgram parses an artifact. More than MemorySize lines, or any line that
// fails to parse, is an I/O error; nothing is returned in that case.
func ReadProgram(r io.Reader) (*Program, error) {
	p := NewProgram()
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		if n >= MemorySize {
			return nil, simerr.IO("loading program", fmt.Errorf("%w: more than %d lines", ErrTooManyWords, MemorySize))
		}
		word, err := ParseWord(scanner.Text())
		if err != nil {
			return nil, simerr.IO(fmt.Sprintf("loading program line %d", n+1), err)
		}
		p.Words[n] = word
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, simerr.IO("loading program", err)
	}
	return p, nil
}

// DeserializeProgram parses artifact bytes.
func DeserializeProgram(data []byte) (*Program, error) {
	return ReadProgram(bytes.NewReader(data))
}

// ParseWord parses one artifact line in Radix.
func ParseWord(s string) (Word, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), Radix, 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidWord, s)
	}
	return Word(n), nil
}

// LoadInteractive prompts for one word per address on out ("NN ? ") and
// reads hexadecimal words from in until the sentinel -10000, end of input, or
// a full memory. The program is loaded into the machine.
func (vm *VM) LoadInteractive(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "*** Please enter your program one instruction ***")
	fmt.Fprintln(out, "*** (or data word) at a time. I will type the ***")
	fmt.Fprintln(out, "*** location number and a question mark (?). ***")
	fmt.Fprintln(out, "*** You then type the word for that location. ***")
	fmt.Fprintf(out, "*** Type the sentinel %d to stop entering ***\n", interactiveSentinel)
	fmt.Fprintln(out, "*** your program. ***")
	fmt.Fprintln(out)

	p := NewProgram()
	src := NewReaderInput(in)
	for i := 0; i < MemorySize; i++ {
		fmt.Fprintf(out, "%02d ? ", i)
		line, err := src.ReadLine()
		if errors.Is(err, ErrInputExhausted) {
			break
		}
		if err != nil {
			return simerr.IO("reading program", err)
		}
		text := strings.TrimSpace(line)
		if text == strconv.Itoa(interactiveSentinel) {
			break
		}
		word, err := ParseWord(text)
		if err != nil {
			return simerr.IO(fmt.Sprintf("reading word %02d", i), err)
		}
		p.Words[i] = word
	}
	fmt.Fprintln(out)
	return vm.Load(p)
}

// Disassemble converts a program image to a mnemonic listing. Zero cells are
// skipped; words that do not decode to a known instruction are listed as data.
func Disassemble(p *Program) string {
	var buf bytes.Buffer

	nonZero := 0
	for _, w := range p.Words {
		if w != 0 {
			nonZero++
		}
	}
	buf.WriteString("; Disassembled from Simpletron artifact\n")
	buf.WriteString(fmt.Sprintf("; %d words, %d non-zero\n\n", len(p.Words), nonZero))

	for i, w := range p.Words {
		if w == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("%04d: %s  %s\n", i, w, disassembleWord(w)))
	}

	return buf.String()
}

func disassembleWord(w Word) string {
	op, operand := w.Decode()
	if w < 0 || !op.Valid() || operand >= MemorySize {
		return fmt.Sprintf("%-12s %d", "DATA", int32(w))
	}

	switch op {
	case OpHalt:
		return op.String()
	case OpDebug:
		return fmt.Sprintf("%-12s %d", op.String(), operand)
	default:
		return fmt.Sprintf("%-12s %04d", op.String(), operand)
	}
}
