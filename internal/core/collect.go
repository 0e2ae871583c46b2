package core

import (
	"fmt"

	"github.com/norn-lang/norn/internal/symbols"
	"github.com/oklog/ulid/v2"
)

type CollectOptions struct {
	// SetWordsOnly restricts collection to assignment-target names.
	SetWordsOnly bool
	// Deep recurses into nested blocks and groups.
	Deep bool
	// ForbidDuplicates makes a second occurrence of a name an error.
	ForbidDuplicates bool
}

// CollectKeys scans body for names and returns a key list holding them in
// first-appearance order. If prior is given its keys seed the scan, and when
// body introduces no new name the prior key list itself is returned, same
// identity, so callers can detect "nothing changed" without comparing keys.
//
// The binder pass is unwound on every exit path, errors included.
func CollectKeys(body *Block, prior *Context, opts CollectOptions) (*KeyList, error) {
	binder := NewBinder()
	binder.Begin()
	defer binder.End()

	// dedupe on folded canonicals so the keys a body introduces stay
	// reachable through non-strict lookup
	next := 1
	if prior != nil {
		// a context's own keys are already unique, no dup-checking needed
		kl := prior.keylist
		for i := 0; i < kl.Len(); i++ {
			binder.TryAdd(kl.SymbolAt(i).Folded(), next)
			next++
		}
	}

	var newSyms []*symbols.Symbol
	var dup *symbols.Symbol

	var walk func(elems []Value)
	walk = func(elems []Value) {
		for _, v := range elems {
			switch val := v.(type) {
			case *Word:
				if opts.SetWordsOnly && val.Kind() != SetWordKind {
					continue
				}
				if binder.TryAdd(val.Sym.Folded(), next) {
					newSyms = append(newSyms, val.Sym)
					next++
				} else if opts.ForbidDuplicates && dup == nil {
					dup = val.Sym
				}
			case *Block:
				if opts.Deep {
					walk(val.Elems)
				}
			case *Group:
				if opts.Deep {
					walk(val.Elems)
				}
			}
		}
	}
	walk(body.Elems)

	if dup != nil {
		// the deferred End runs before the caller sees this error
		return nil, FormatErrDuplicateKey(dup)
	}

	if prior != nil && len(newSyms) == 0 {
		return prior.keylist, nil
	}

	var kl *KeyList
	if prior != nil {
		kl = prior.keylist.copyGrown(len(newSyms))
	} else {
		kl = NewKeyList(len(newSyms))
	}
	for _, sym := range newSyms {
		kl.Append(sym)
	}
	return kl, nil
}

// MakeFromDetected builds a context of the given kind from the
// assignment-target names detected in body, optionally inheriting from
// parent. When parent is given and body adds no new name, the parent's key
// list is adopted as-is and flagged shared; growth on either context later
// forces a private copy. Parent values are deep-cloned into the new slots and
// the copied material is rebound to the new context, so child mutation of
// nested containers never reaches the parent.
func MakeFromDetected(kind Kind, body *Block, parent *Context) (*Context, error) {
	kl, err := CollectKeys(body, parent, CollectOptions{SetWordsOnly: true})
	if err != nil {
		return nil, err
	}

	ctx := &Context{kind: kind, id: ulid.Make()}
	if parent != nil && kl == parent.keylist {
		kl.MarkShared()
	}
	ctx.keylist = kl

	ctx.vars = make([]Value, kl.Len()+1)
	ctx.vars[0] = RootSlot{ContextKind: kind, ID: ctx.id}
	for i := 1; i < len(ctx.vars); i++ {
		ctx.vars[i] = Unset
	}

	if parent != nil {
		for i := 1; i <= parent.NumBindings(); i++ {
			ctx.vars[i] = CloneValue(parent.vars[i])
		}
		for i := 1; i <= parent.NumBindings(); i++ {
			RebindValue(ctx.vars[i], parent, ctx)
		}
	}
	return ctx, nil
}

// Merge builds a context combining exactly two parents. parent2 wins on key
// collision. The merged key list is always unique, with parent1's ancestry
// (or its own if parent1 is absent). Passing more than two sources fails.
func Merge(kind Kind, parent1, parent2 *Context, extra ...*Context) (*Context, error) {
	if len(extra) > 0 {
		return nil, fmt.Errorf("%w: got %d", ErrTooManySources, 2+len(extra))
	}
	if parent2 == nil {
		return nil, fmt.Errorf("%w: second source is required", ErrTooManySources)
	}

	binder := NewBinder()
	binder.Begin()
	defer binder.End()

	var kl *KeyList
	next := 1
	if parent1 != nil {
		kl = parent1.keylist.copyGrown(parent2.NumBindings())
		for i := 0; i < kl.Len(); i++ {
			binder.TryAdd(kl.SymbolAt(i).Folded(), next)
			next++
		}
	} else {
		kl = NewKeyList(parent2.NumBindings())
	}

	// parent2's keys are dup-checked against parent1's by folded family; a
	// collision reuses the existing slot (parent2 wins on value)
	p2slots := make([]int, parent2.NumBindings()+1)
	for i := 0; i < parent2.keylist.Len(); i++ {
		sym := parent2.keylist.SymbolAt(i)
		if binder.TryAdd(sym.Folded(), next) {
			kl.Append(sym)
			p2slots[i+1] = next
			next++
		} else {
			existing, _ := binder.Get(sym.Folded())
			p2slots[i+1] = existing
		}
	}

	ctx := &Context{kind: kind, id: ulid.Make(), keylist: kl}
	ctx.vars = make([]Value, kl.Len()+1)
	ctx.vars[0] = RootSlot{ContextKind: kind, ID: ctx.id}
	for i := 1; i < len(ctx.vars); i++ {
		ctx.vars[i] = Unset
	}

	if parent1 != nil {
		for i := 1; i <= parent1.NumBindings(); i++ {
			ctx.vars[i] = CloneValue(parent1.vars[i])
		}
	}
	for i := 1; i <= parent2.NumBindings(); i++ {
		ctx.vars[p2slots[i]] = CloneValue(parent2.vars[i])
	}

	for i := 1; i < len(ctx.vars); i++ {
		if parent1 != nil {
			RebindValue(ctx.vars[i], parent1, ctx)
		}
		RebindValue(ctx.vars[i], parent2, ctx)
	}
	return ctx, nil
}

// A ResolveFilter selects which target keys Resolve copies into.
type ResolveFilter interface {
	isResolveFilter()
}

// ResolveAll selects every target key.
type ResolveAll struct{}

// ResolveBeyond selects target keys whose 1-based index is greater than Cut.
type ResolveBeyond struct {
	Cut int
}

// ResolveOnly selects the named keys.
type ResolveOnly struct {
	Words []*symbols.Symbol
}

func (ResolveAll) isResolveFilter()    {}
func (ResolveBeyond) isResolveFilter() {}
func (ResolveOnly) isResolveFilter()   {}

// Resolve copies values from source into target for the keys selected by
// filter. With all false, target values that are already set are never
// overwritten. With expand true, source keys missing from target are appended
// instead of ignored. A read-only target fails before any side effect.
//
// Two binder passes: mark the target keys of interest, then walk source keys
// overwriting marked slots and optionally appending leftovers.
func Resolve(target, source *Context, filter ResolveFilter, all, expand bool) error {
	if target.readOnly {
		return FormatErrReadOnly(target)
	}

	binder := NewBinder()
	binder.Begin()
	defer binder.End()

	// pass 1: mark target keys of interest with their slot index; a mark of
	// -1 means "named but absent from target"
	onlyFilter := false
	switch f := filter.(type) {
	case ResolveAll:
		for i := 0; i < target.keylist.Len(); i++ {
			binder.TryAdd(target.keylist.SymbolAt(i), i+1)
		}
	case ResolveBeyond:
		for i := f.Cut; i < target.keylist.Len(); i++ {
			binder.TryAdd(target.keylist.SymbolAt(i), i+1)
		}
	case ResolveOnly:
		onlyFilter = true
		for _, sym := range f.Words {
			idx := target.findSymbolRaw(sym)
			if idx != 0 {
				binder.TryAdd(sym, idx)
			} else {
				binder.TryAdd(sym, -1)
			}
		}
	}

	// pass 2: copy from source
	for i := 0; i < source.keylist.Len(); i++ {
		sym := source.keylist.SymbolAt(i)
		srcVal := source.vars[i+1]

		idx, marked := binder.Get(sym)
		if !marked {
			if expand && !onlyFilter && target.findSymbolRaw(sym) == 0 {
				newIdx, err := target.AppendBinding(sym)
				if err != nil {
					return err
				}
				target.vars[newIdx] = srcVal
			}
			continue
		}
		if idx == -1 {
			if expand {
				newIdx, err := target.AppendBinding(sym)
				if err != nil {
					return err
				}
				target.vars[newIdx] = srcVal
			}
			continue
		}
		if all || target.vars[idx].Kind() == UnsetKind {
			target.vars[idx] = srcVal
		}
		binder.Remove(sym)
	}
	return nil
}

// findSymbolRaw scans all keys by identity, ignoring visibility and frame
// liveness. Internal use only.
func (ctx *Context) findSymbolRaw(sym *symbols.Symbol) int {
	for i := 0; i < ctx.keylist.Len(); i++ {
		if ctx.keylist.SymbolAt(i) == sym {
			return i + 1
		}
	}
	return 0
}
