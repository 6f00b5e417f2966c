package compiler

import "fmt"

// SymbolKind disambiguates symbol values that would otherwise collide: the
// constant 10 and line number 10 are different entries.
type SymbolKind uint8

const (
	SymbolConstant SymbolKind = iota
	SymbolLineNumber
	SymbolVariable
)

// String returns the kind name.
func (k SymbolKind) String() string {
	switch k {
	case SymbolConstant:
		return "C"
	case SymbolLineNumber:
		return "L"
	case SymbolVariable:
		return "V"
	default:
		return fmt.Sprintf("SymbolKind(%d)", uint8(k))
	}
}

// TableEntry binds a (symbol, kind) pair to a memory location. For constants
// and variables the location is a data address; for line numbers it is the
// address of the line's first instruction.
type TableEntry struct {
	Symbol   int32
	Kind     SymbolKind
	Location int
}

// SymbolTable is an append-only list of entries in first-reference order.
type SymbolTable struct {
	entries []TableEntry
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// Find returns a copy of the entry matching both symbol and kind.
func (st *SymbolTable) Find(symbol int32, kind SymbolKind) (TableEntry, bool) {
	for _, e := range st.entries {
		if e.Symbol == symbol && e.Kind == kind {
			return e, true
		}
	}
	return TableEntry{}, false
}

// Insert appends an entry. The caller guarantees the (symbol, kind) pair is
// not already present.
func (st *SymbolTable) Insert(e TableEntry) {
	st.entries = append(st.entries, e)
}

// Len returns the number of entries.
func (st *SymbolTable) Len() int {
	return len(st.entries)
}

// Entries returns a copy of all entries in insertion order.
func (st *SymbolTable) Entries() []TableEntry {
	out := make([]TableEntry, len(st.entries))
	copy(out, st.entries)
	return out
}
