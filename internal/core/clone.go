package core

import "github.com/oklog/ulid/v2"

// CloneValue deep-clones v. Containers (blocks, groups, paths, contexts) get
// fresh storage, words get fresh cells carrying the same binding, scalars and
// actions are returned as-is. Cycles are preserved.
func CloneValue(v Value) Value {
	return cloneValue(v, map[Value]Value{})
}

func cloneValue(v Value, clones map[Value]Value) Value {
	switch val := v.(type) {
	case *Word:
		return val.Copy()
	case *Block:
		if c, ok := clones[v]; ok {
			return c
		}
		clone := &Block{Elems: make([]Value, len(val.Elems))}
		clones[v] = clone
		for i, e := range val.Elems {
			clone.Elems[i] = cloneValue(e, clones)
		}
		return clone
	case *Group:
		if c, ok := clones[v]; ok {
			return c
		}
		clone := &Group{Elems: make([]Value, len(val.Elems))}
		clones[v] = clone
		for i, e := range val.Elems {
			clone.Elems[i] = cloneValue(e, clones)
		}
		return clone
	case *Path:
		if c, ok := clones[v]; ok {
			return c
		}
		clone := &Path{Elems: make([]Value, len(val.Elems))}
		clones[v] = clone
		for i, e := range val.Elems {
			clone.Elems[i] = cloneValue(e, clones)
		}
		return clone
	case *Context:
		if c, ok := clones[v]; ok {
			return c
		}
		return cloneContext(val, clones)
	default:
		return v
	}
}

// cloneContext gives the clone its own identity and variable list but adopts
// the original's key list, flagged shared; a later append on either side
// triggers the copy-on-write split.
func cloneContext(ctx *Context, clones map[Value]Value) *Context {
	ctx.keylist.MarkShared()

	clone := &Context{
		kind:       ctx.kind,
		id:         ulid.Make(),
		keylist:    ctx.keylist,
		readOnly:   ctx.readOnly,
		rawAccess:  ctx.rawAccess,
		visibility: ctx.visibility,
	}
	clones[ctx] = clone

	clone.vars = make([]Value, len(ctx.vars))
	clone.vars[0] = RootSlot{ContextKind: clone.kind, ID: clone.id}
	for i := 1; i < len(ctx.vars); i++ {
		clone.vars[i] = cloneValue(ctx.vars[i], clones)
	}
	for i := 1; i < len(clone.vars); i++ {
		RebindValue(clone.vars[i], ctx, clone)
	}
	return clone
}
