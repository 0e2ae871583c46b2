package core

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/norn-lang/norn/internal/symbols"
)

// A Key names one slot of a context.
type Key struct {
	Sym *symbols.Symbol
}

// A KeyList is the ordered key sequence of one or more contexts. A list
// starts out unique; once a second context adopts it, it is flagged shared
// and must never be mutated in place: growth goes through a private copy
// (copy-on-write). The ancestor link records which list this one was derived
// from and is used only for O(1) derivation checks, never for storage.
//
// Hidden and sealed flags are kept in two bitsets indexed like keys.
type KeyList struct {
	keys     []Key
	hidden   *bitset.BitSet
	sealed   *bitset.BitSet
	shared   bool
	ancestor *KeyList
}

func NewKeyList(capacity int) *KeyList {
	kl := &KeyList{
		keys:   make([]Key, 0, capacity),
		hidden: bitset.New(uint(capacity)),
		sealed: bitset.New(uint(capacity)),
	}
	kl.ancestor = kl
	return kl
}

func (kl *KeyList) Len() int {
	return len(kl.keys)
}

// SymbolAt returns the symbol of the key at 0-based position i.
func (kl *KeyList) SymbolAt(i int) *symbols.Symbol {
	return kl.keys[i].Sym
}

func (kl *KeyList) Append(sym *symbols.Symbol) {
	kl.keys = append(kl.keys, Key{Sym: sym})
}

func (kl *KeyList) IsShared() bool { return kl.shared }

// MarkShared flags the list as adopted by more than one context.
func (kl *KeyList) MarkShared() { kl.shared = true }

func (kl *KeyList) Ancestor() *KeyList { return kl.ancestor }

// DerivesFrom reports in O(1) whether kl descends from other.
func (kl *KeyList) DerivesFrom(other *KeyList) bool {
	return kl == other || kl.ancestor == other || kl.ancestor == other.ancestor
}

func (kl *KeyList) Hide(i int)          { kl.hidden.Set(uint(i)) }
func (kl *KeyList) IsHidden(i int) bool { return kl.hidden.Test(uint(i)) }
func (kl *KeyList) Seal(i int)          { kl.sealed.Set(uint(i)) }
func (kl *KeyList) IsSealed(i int) bool { return kl.sealed.Test(uint(i)) }

// copyGrown returns a unique copy with capacity for delta more keys. The
// copy keeps kl's ancestor so derivation checks keep working across the
// copy-on-write switch.
func (kl *KeyList) copyGrown(delta int) *KeyList {
	copied := &KeyList{
		keys:     make([]Key, len(kl.keys), len(kl.keys)+delta),
		hidden:   kl.hidden.Clone(),
		sealed:   kl.sealed.Clone(),
		ancestor: kl.ancestor,
	}
	copy(copied.keys, kl.keys)
	return copied
}

// Symbols returns the key symbols in order, as a fresh slice.
func (kl *KeyList) Symbols() []*symbols.Symbol {
	syms := make([]*symbols.Symbol, len(kl.keys))
	for i, key := range kl.keys {
		syms[i] = key.Sym
	}
	return syms
}
