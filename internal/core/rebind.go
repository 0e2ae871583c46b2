package core

// RebindValue rebinds v and, for containers, its nested material from one
// context to another: every word bound to `from` whose symbol exists in `to`
// is bound in place to the matching slot of `to`. Words bound elsewhere and
// words whose symbol `to` lacks are left untouched. The walk descends into
// blocks, groups and paths but not into nested contexts, which manage their
// own bindings.
func RebindValue(v Value, from, to *Context) {
	rebindValue(v, from, to, map[Value]bool{})
}

func rebindValue(v Value, from, to *Context, seen map[Value]bool) {
	switch val := v.(type) {
	case *Word:
		ctx, _ := val.Binding()
		if ctx != from {
			return
		}
		if idx := to.findSymbolRaw(val.Sym); idx != 0 {
			val.BindTo(to, idx)
		}
	case *Block:
		if seen[v] {
			return
		}
		seen[v] = true
		for _, e := range val.Elems {
			rebindValue(e, from, to, seen)
		}
	case *Group:
		if seen[v] {
			return
		}
		seen[v] = true
		for _, e := range val.Elems {
			rebindValue(e, from, to, seen)
		}
	case *Path:
		if seen[v] {
			return
		}
		seen[v] = true
		for _, e := range val.Elems {
			rebindValue(e, from, to, seen)
		}
	}
}

// BindBlockDeep binds every word in body whose symbol exists in ctx to the
// matching slot, descending into nested blocks and groups. Used when a code
// body is attached to a freshly built context.
func BindBlockDeep(body *Block, ctx *Context) {
	bindElems(body.Elems, ctx, map[Value]bool{})
}

func bindElems(elems []Value, ctx *Context, seen map[Value]bool) {
	for _, e := range elems {
		switch val := e.(type) {
		case *Word:
			if idx := ctx.findSymbolRaw(val.Sym); idx != 0 {
				val.BindTo(ctx, idx)
			}
		case *Block:
			if !seen[e] {
				seen[e] = true
				bindElems(val.Elems, ctx, seen)
			}
		case *Group:
			if !seen[e] {
				seen[e] = true
				bindElems(val.Elems, ctx, seen)
			}
		}
	}
}
