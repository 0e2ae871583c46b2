package core

import (
	"fmt"

	"github.com/norn-lang/norn/internal/symbols"
	"github.com/oklog/ulid/v2"
)

// A RootSlot occupies slot 0 of every variable list and self-identifies the
// owning context's kind and identity.
type RootSlot struct {
	ContextKind Kind
	ID          ulid.ULID
}

func (RootSlot) Kind() Kind { return rootSlotKind }

// A VisibilityPredicate decides whether the key at 0-based position i of kl
// is visible to user-facing lookups. The exact frame-phase semantics live
// outside this subsystem, so contexts take the predicate as an injected
// dependency.
type VisibilityPredicate func(kl *KeyList, i int) bool

func defaultVisibility(kl *KeyList, i int) bool {
	return !kl.IsHidden(i) && !kl.IsSealed(i)
}

// A Context is a named-variable collection: a key list plus a variable list
// of one slot per key, with slot 0 reserved for the root slot. The key list
// may be shared with other contexts (copy-on-write), the variable list is
// always uniquely owned.
//
// Invariant: len(vars) == keylist.Len() + 1.
type Context struct {
	kind    Kind
	id      ulid.ULID
	keylist *KeyList
	vars    []Value

	readOnly   bool
	rawAccess  bool // internal mode: hidden and sealed keys are visible
	spent      bool // invocation record whose call has returned
	visibility VisibilityPredicate
}

// AllocateContext creates an empty context of the given kind with room for
// capacity bindings.
func AllocateContext(kind Kind, capacity int) *Context {
	if !kind.IsContextKind() {
		panic(fmt.Errorf("cannot allocate a context of kind %s", kind))
	}
	ctx := &Context{
		kind:    kind,
		id:      ulid.Make(),
		keylist: NewKeyList(capacity),
		vars:    make([]Value, 1, capacity+1),
	}
	ctx.vars[0] = RootSlot{ContextKind: kind, ID: ctx.id}
	return ctx
}

func (ctx *Context) Kind() Kind { return ctx.kind }

func (ctx *Context) ID() ulid.ULID { return ctx.id }

func (ctx *Context) Keylist() *KeyList { return ctx.keylist }

// NumBindings returns the number of keys (the root slot does not count).
func (ctx *Context) NumBindings() int {
	return ctx.keylist.Len()
}

func (ctx *Context) IsReadOnly() bool { return ctx.readOnly }
func (ctx *Context) SetReadOnly()     { ctx.readOnly = true }
func (ctx *Context) SetRawAccess()    { ctx.rawAccess = true }
func (ctx *Context) MarkSpent()       { ctx.spent = true }
func (ctx *Context) IsSpent() bool    { return ctx.spent }

// SetVisibility injects the predicate used to filter hidden/sealed keys.
func (ctx *Context) SetVisibility(pred VisibilityPredicate) {
	ctx.visibility = pred
}

func (ctx *Context) isVisible(i int) bool {
	if ctx.rawAccess {
		return true
	}
	if ctx.visibility != nil {
		return ctx.visibility(ctx.keylist, i)
	}
	return defaultVisibility(ctx.keylist, i)
}

// Var returns the value of the 1-based slot index.
func (ctx *Context) Var(index int) Value {
	return ctx.vars[index]
}

// VarRef returns the writable storage of the 1-based slot index.
func (ctx *Context) VarRef(index int) *Value {
	return &ctx.vars[index]
}

// SetVar stores v in the 1-based slot index.
func (ctx *Context) SetVar(index int, v Value) error {
	if ctx.readOnly {
		return FormatErrReadOnly(ctx)
	}
	ctx.vars[index] = v
	return nil
}

// AppendBinding grows the context by one binding for sym, initialized to
// Unset, and returns the new 1-based slot index. A shared key list is
// privately copied first, so other contexts sharing it are unaffected.
func (ctx *Context) AppendBinding(sym *symbols.Symbol) (int, error) {
	if ctx.readOnly {
		return 0, FormatErrReadOnly(ctx)
	}
	if _, err := ctx.ExpandKeylist(1); err != nil {
		return 0, err
	}
	ctx.keylist.Append(sym)
	ctx.vars = append(ctx.vars, Unset)
	return ctx.keylist.Len(), nil
}

// AppendWordBinding appends a binding for the word's symbol and rebinds the
// word in place to the new slot.
func (ctx *Context) AppendWordBinding(w *Word) (int, error) {
	index, err := ctx.AppendBinding(w.Sym)
	if err != nil {
		return 0, err
	}
	w.BindTo(ctx, index)
	return index, nil
}

// ExpandKeylist makes room for delta more keys. A shared key list is always
// replaced by a private copy (the other sharers keep the original); a unique
// one grows in place and keeps its identity when delta is 0. The return value
// reports whether the key list identity changed: callers holding a cached
// *KeyList must treat it as stale when true.
func (ctx *Context) ExpandKeylist(delta int) (changed bool, err error) {
	if delta < 0 {
		return false, fmt.Errorf("%w: negative delta %d", ErrInvalidExpansion, delta)
	}
	if ctx.keylist.IsShared() {
		ctx.keylist = ctx.keylist.copyGrown(delta)
		return true, nil
	}
	if delta > 0 && cap(ctx.keylist.keys)-len(ctx.keylist.keys) < delta {
		grown := make([]Key, len(ctx.keylist.keys), len(ctx.keylist.keys)+delta)
		copy(grown, ctx.keylist.keys)
		ctx.keylist.keys = grown
	}
	return false, nil
}

// FindSymbol scans the visible keys for sym and returns its 1-based slot
// index, 0 if absent. Strict comparison is symbol identity, non-strict
// compares case-folded families. Querying a spent frame in user-facing mode
// is an error.
func (ctx *Context) FindSymbol(sym *symbols.Symbol, strict bool) (int, error) {
	if ctx.spent && !ctx.rawAccess {
		return 0, fmt.Errorf("%w: %s", ErrStaleFrame, Inspect(ctx))
	}
	for i := 0; i < ctx.keylist.Len(); i++ {
		if !ctx.isVisible(i) {
			continue
		}
		keySym := ctx.keylist.SymbolAt(i)
		if keySym == sym || (!strict && keySym.IsSameFamily(sym)) {
			return i + 1, nil
		}
	}
	return 0, nil
}

// ListMode selects what ContextToList emits per visible key.
type ListMode uint8

const (
	WordsOnly ListMode = iota
	ValuesOnly
	WordsAndValues
)

// ContextToList returns a block with the requested items for every visible
// key, in key order. Requesting values fails if a slot is still unset.
func (ctx *Context) ContextToList(mode ListMode) (*Block, error) {
	out := NewBlock()
	for i := 0; i < ctx.keylist.Len(); i++ {
		if !ctx.isVisible(i) {
			continue
		}
		sym := ctx.keylist.SymbolAt(i)

		if mode == WordsOnly || mode == WordsAndValues {
			word := NewWord(sym)
			word.BindTo(ctx, i+1)
			out.Elems = append(out.Elems, word)
		}
		if mode == ValuesOnly || mode == WordsAndValues {
			val := ctx.vars[i+1]
			if val.Kind() == UnsetKind {
				return nil, fmt.Errorf("%w: %s", ErrBadWrite, FormatErrUnsetVariable(sym))
			}
			out.Elems = append(out.Elems, val)
		}
	}
	return out, nil
}
