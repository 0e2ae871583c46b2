package core

import (
	"github.com/norn-lang/norn/internal/symbols"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A Binder is the temporary symbol -> index map used while collecting words.
// Entries added after a Begin are removed by the matching End, so a pass
// always leaves the binder empty regardless of how it exits. Passes may nest
// through Begin/End pairs but must never interleave.
//
// Callers pair Begin with a deferred End so the unwind also runs when nested
// evaluation panics or returns an error.
type Binder struct {
	indexes map[*symbols.Symbol]int
	added   []*symbols.Symbol
	marks   []int
}

func NewBinder() *Binder {
	return &Binder{
		indexes: map[*symbols.Symbol]int{},
	}
}

// Begin opens a collection pass.
func (b *Binder) Begin() {
	b.marks = append(b.marks, len(b.added))
}

// TryAdd inserts sym with the given index. It reports false and leaves the
// binder unchanged if sym is already present.
func (b *Binder) TryAdd(sym *symbols.Symbol, index int) bool {
	if _, ok := b.indexes[sym]; ok {
		return false
	}
	b.indexes[sym] = index
	b.added = append(b.added, sym)
	return true
}

// Get returns the index recorded for sym.
func (b *Binder) Get(sym *symbols.Symbol) (int, bool) {
	index, ok := b.indexes[sym]
	return index, ok
}

// Remove deletes sym's entry if present.
func (b *Binder) Remove(sym *symbols.Symbol) {
	if _, ok := b.indexes[sym]; !ok {
		return
	}
	delete(b.indexes, sym)
	if i := slices.Index(b.added, sym); i >= 0 {
		b.added = slices.Delete(b.added, i, i+1)
	}
}

// End removes every entry added since the matching Begin.
func (b *Binder) End() {
	if len(b.marks) == 0 {
		return
	}
	mark := b.marks[len(b.marks)-1]
	b.marks = b.marks[:len(b.marks)-1]

	for i := len(b.added) - 1; i >= mark; i-- {
		delete(b.indexes, b.added[i])
	}
	b.added = b.added[:mark]
}

// InUse reports whether the binder still holds entries or open passes.
func (b *Binder) InUse() bool {
	return len(b.added) > 0 || len(b.marks) > 0
}

// Symbols returns the symbols currently annotated, in no particular order.
func (b *Binder) Symbols() []*symbols.Symbol {
	return maps.Keys(b.indexes)
}
