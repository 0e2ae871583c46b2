package symbols

import (
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// A Symbol is the canonical identity of a name. Two symbols interned from the
// same byte string are the same pointer, so strict comparison is pointer
// equality. Symbols interned from strings that only differ in case belong to
// the same family and compare equal under non-strict comparison.
type Symbol struct {
	name   string
	folded *Symbol // canonical symbol of the case-folded family, self for folded names
}

func (s *Symbol) Name() string {
	return s.name
}

// Folded returns the canonical symbol of s's case-folded family.
func (s *Symbol) Folded() *Symbol {
	return s.folded
}

// IsSameFamily reports whether s and other fold to the same canonical symbol.
func (s *Symbol) IsSameFamily(other *Symbol) bool {
	return s.folded == other.folded
}

func (s *Symbol) String() string {
	return s.name
}

// A Table interns byte strings into symbols.
type Table struct {
	symbols cmap.ConcurrentMap[string, *Symbol]
}

func NewTable() *Table {
	return &Table{
		symbols: cmap.New[*Symbol](),
	}
}

// Intern returns the unique symbol for name, creating it if necessary.
func (t *Table) Intern(name string) *Symbol {
	if sym, ok := t.symbols.Get(name); ok {
		return sym
	}

	foldedName := strings.ToLower(name)

	var folded *Symbol
	if foldedName != name {
		folded = t.Intern(foldedName)
	}

	var created *Symbol
	t.symbols.Upsert(name, nil, func(exists bool, current, _ *Symbol) *Symbol {
		if exists {
			created = current
			return current
		}
		created = &Symbol{name: name, folded: folded}
		if folded == nil {
			created.folded = created
		}
		return created
	})
	return created
}

var defaultTable = NewTable()

// Intern interns name in the default table.
func Intern(name string) *Symbol {
	return defaultTable.Intern(name)
}
