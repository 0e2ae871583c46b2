package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/norn-lang/norn/internal/symbols"
)

// Kind discriminates the runtime type of a Value. The hook table of the path
// dispatch engine is indexed by Kind.
type Kind uint8

const (
	NilKind Kind = iota
	UnsetKind
	BlankKind
	LogicKind
	IntKind
	StrKind

	WordKind
	SetWordKind
	GetWordKind
	LitWordKind

	BlockKind
	GroupKind
	PathKind

	ObjectKind
	ModuleKind
	FrameKind
	LoopKind

	ActionKind
	rootSlotKind

	builtinKindCount
)

// MaxKind is the size of the hook table, kinds in [builtinKindCount, MaxKind)
// are available for extension types registered at runtime.
const MaxKind = 64

var kindNames = [MaxKind]string{
	NilKind:      "nil",
	UnsetKind:    "unset",
	BlankKind:    "blank",
	LogicKind:    "logic",
	IntKind:      "int",
	StrKind:      "string",
	WordKind:     "word",
	SetWordKind:  "set-word",
	GetWordKind:  "get-word",
	LitWordKind:  "lit-word",
	BlockKind:    "block",
	GroupKind:    "group",
	PathKind:     "path",
	ObjectKind:   "object",
	ModuleKind:   "module",
	FrameKind:    "frame",
	LoopKind:     "loop",
	ActionKind:   "action",
	rootSlotKind: "root-slot",
}

var (
	extensionKindLock sync.Mutex
	nextExtensionKind = builtinKindCount
)

// NewExtensionKind allocates a fresh Kind for a custom type. It panics once
// the kind space is exhausted.
func NewExtensionKind(name string) Kind {
	extensionKindLock.Lock()
	defer extensionKindLock.Unlock()

	if nextExtensionKind >= MaxKind {
		panic(fmt.Errorf("extension kind space exhausted (max %d kinds)", MaxKind))
	}
	kind := nextExtensionKind
	kindNames[kind] = name
	nextExtensionKind++
	return kind
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) IsContextKind() bool {
	switch k {
	case ObjectKind, ModuleKind, FrameKind, LoopKind:
		return true
	}
	return false
}

func (k Kind) IsWordKind() bool {
	switch k {
	case WordKind, SetWordKind, GetWordKind, LitWordKind:
		return true
	}
	return false
}

// Value is implemented by every runtime value of the object model.
type Value interface {
	Kind() Kind
}

type NilT struct{}

func (NilT) Kind() Kind { return NilKind }

// UnsetT marks a variable slot that has no value yet.
type UnsetT struct{}

func (UnsetT) Kind() Kind { return UnsetKind }

// BlankT is the structural placeholder, a no-op as a path selector.
type BlankT struct{}

func (BlankT) Kind() Kind { return BlankKind }

var (
	Nil   = NilT{}
	Unset = UnsetT{}
	Blank = BlankT{}
)

type Logic bool

func (Logic) Kind() Kind { return LogicKind }

type Int int64

func (Int) Kind() Kind { return IntKind }

type Str string

func (Str) Kind() Kind { return StrKind }

// A Word is a name reference. The four word kinds share the representation,
// only the kind differs. A word optionally carries a binding: the context and
// 1-based slot index its symbol resolves to. Binding mutates the word in
// place, which is why words are always handled through pointers.
type Word struct {
	kind  Kind
	Sym   *symbols.Symbol
	ctx   *Context
	index int // 0 if unbound
}

func NewWord(sym *symbols.Symbol) *Word    { return &Word{kind: WordKind, Sym: sym} }
func NewSetWord(sym *symbols.Symbol) *Word { return &Word{kind: SetWordKind, Sym: sym} }
func NewGetWord(sym *symbols.Symbol) *Word { return &Word{kind: GetWordKind, Sym: sym} }
func NewLitWord(sym *symbols.Symbol) *Word { return &Word{kind: LitWordKind, Sym: sym} }

func (w *Word) Kind() Kind { return w.kind }

func (w *Word) IsBound() bool { return w.ctx != nil && w.index > 0 }

// Binding returns the context and slot index the word is bound to,
// (nil, 0) if the word is unbound.
func (w *Word) Binding() (*Context, int) {
	return w.ctx, w.index
}

// BindTo rebinds the word in place.
func (w *Word) BindTo(ctx *Context, index int) {
	w.ctx = ctx
	w.index = index
}

func (w *Word) Unbind() {
	w.ctx = nil
	w.index = 0
}

// Copy returns a new word with the same symbol, kind and binding.
func (w *Word) Copy() *Word {
	copied := *w
	return &copied
}

// A Block is a mutable ordered sequence of values.
type Block struct {
	Elems []Value
}

func (*Block) Kind() Kind { return BlockKind }

func NewBlock(elems ...Value) *Block { return &Block{Elems: elems} }

// A Group is a sequence evaluated inline when encountered by the evaluator or
// as a path selector.
type Group struct {
	Elems []Value
}

func (*Group) Kind() Kind { return GroupKind }

func NewGroup(elems ...Value) *Group { return &Group{Elems: elems} }

// A Path is a selector chain in value form, its elements are the selectors.
type Path struct {
	Elems []Value
}

func (*Path) Kind() Kind { return PathKind }

// An Action is a callable. Spec lists the names of the refinements the action
// accepts; Refinements holds the refinements a specialization has applied, in
// first-applied order.
type Action struct {
	Label       *symbols.Symbol
	Spec        []*symbols.Symbol
	Refinements []*symbols.Symbol

	// Impl is opaque to the dispatch engine, only the evaluator invokes it.
	Impl func(args ...Value) (Value, error)
}

func (*Action) Kind() Kind { return ActionKind }

// HasRefinement reports whether name appears in the action's spec,
// compared by case-folded family.
func (a *Action) HasRefinement(name *symbols.Symbol) bool {
	for _, sym := range a.Spec {
		if sym.IsSameFamily(name) {
			return true
		}
	}
	return false
}

// Inspect renders a value for error messages and debug output.
func Inspect(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case NilT:
		return "~nil~"
	case UnsetT:
		return "~unset~"
	case BlankT:
		return "_"
	case Logic:
		if val {
			return "true"
		}
		return "false"
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Str:
		return fmt.Sprintf("%q", string(val))
	case *Word:
		switch val.kind {
		case SetWordKind:
			return val.Sym.Name() + ":"
		case GetWordKind:
			return ":" + val.Sym.Name()
		case LitWordKind:
			return "'" + val.Sym.Name()
		}
		return val.Sym.Name()
	case *Block:
		return "[" + inspectElems(val.Elems) + "]"
	case *Group:
		return "(" + inspectElems(val.Elems) + ")"
	case *Path:
		parts := make([]string, len(val.Elems))
		for i, e := range val.Elems {
			parts[i] = Inspect(e)
		}
		return strings.Join(parts, "/")
	case *Action:
		if val.Label != nil {
			return "action!(" + val.Label.Name() + ")"
		}
		return "action!"
	case *Context:
		return fmt.Sprintf("%s!(%d keys)", val.kind, val.NumBindings())
	case RootSlot:
		return fmt.Sprintf("root-slot(%s %s)", val.ContextKind, val.ID)
	default:
		return fmt.Sprintf("%s!", v.Kind())
	}
}

func inspectElems(elems []Value) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Inspect(e)
	}
	return strings.Join(parts, " ")
}
