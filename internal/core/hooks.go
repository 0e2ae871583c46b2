package core

import (
	"fmt"
)

func unhookedHook(kind Kind) DispatchHook {
	return func(*DispatchState, Value, Value) (StepResult, error) {
		return StepResult{}, FormatErrUnhandledType(kind)
	}
}

func registerBuiltinHooks(e *Engine) {
	for _, kind := range []Kind{ObjectKind, ModuleKind, FrameKind, LoopKind} {
		e.RegisterHook(kind, contextHook)
	}
	for _, kind := range []Kind{BlockKind, GroupKind, PathKind} {
		e.RegisterHook(kind, seriesHook)
	}
	e.RegisterHook(StrKind, strHook)
	e.RegisterHook(ActionKind, actionHook)
}

// contextHook selects a context slot by word. The slot's storage is handed to
// the engine, so reads go through it and final writes store into it.
func contextHook(st *DispatchState, selector Value, setVal Value) (StepResult, error) {
	ctx := st.Out.(*Context)

	w, ok := selector.(*Word)
	if !ok || !w.Kind().IsWordKind() {
		return ResultUnhandled(), nil
	}

	index, err := ctx.FindSymbol(w.Sym, false)
	if err != nil {
		return StepResult{}, err
	}
	if index == 0 {
		return StepResult{}, FormatErrNotFound(w.Sym)
	}
	if setVal != nil && ctx.IsReadOnly() {
		return StepResult{}, FormatErrReadOnly(ctx)
	}
	return ResultRefIn(ctx.VarRef(index), ctx), nil
}

// seriesHook handles blocks, groups and paths. Integer selectors are 1-based
// positions; a word selector finds the matching word element and yields the
// element after it. Reads past the end are a soft miss (Nil), writes past the
// end are errors.
func seriesHook(st *DispatchState, selector Value, setVal Value) (StepResult, error) {
	var elems []Value
	switch s := st.Out.(type) {
	case *Block:
		elems = s.Elems
	case *Group:
		elems = s.Elems
	case *Path:
		elems = s.Elems
	}

	switch sel := selector.(type) {
	case Int:
		i := int(sel)
		if i < 1 || i > len(elems) {
			if setVal != nil {
				return StepResult{}, fmt.Errorf("%w: index %d out of range (length %d)",
					ErrBadSelector, i, len(elems))
			}
			return ResultValue(Nil), nil
		}
		return ResultRef(&elems[i-1]), nil
	case *Word:
		for i, e := range elems {
			w, ok := e.(*Word)
			if !ok || !w.Sym.IsSameFamily(sel.Sym) {
				continue
			}
			if i+1 >= len(elems) {
				break
			}
			return ResultRef(&elems[i+1]), nil
		}
		if setVal != nil {
			return StepResult{}, FormatErrNotFound(sel.Sym)
		}
		return ResultValue(Nil), nil
	}
	return ResultUnhandled(), nil
}

// strHook indexes into a string. Strings are immutable values, so a write has
// no standalone address: the hook rebuilds the string and asks the engine to
// store it back through the remembered reference (deferred write).
func strHook(st *DispatchState, selector Value, setVal Value) (StepResult, error) {
	s := st.Out.(Str)

	index, ok := selector.(Int)
	if !ok {
		return ResultUnhandled(), nil
	}
	runes := []rune(string(s))
	i := int(index)

	if setVal == nil {
		if i < 1 || i > len(runes) {
			return ResultValue(Nil), nil
		}
		return ResultValue(Str(runes[i-1 : i])), nil
	}

	if i < 1 || i > len(runes) {
		return StepResult{}, fmt.Errorf("%w: index %d out of range (length %d)",
			ErrBadSelector, i, len(runes))
	}
	switch v := setVal.(type) {
	case Str:
		repl := []rune(string(v))
		if len(repl) != 1 {
			return StepResult{}, fmt.Errorf("%w: replacement must be a single character", ErrBadSelector)
		}
		runes[i-1] = repl[0]
	case Int:
		runes[i-1] = rune(v)
	default:
		return StepResult{}, FormatErrBadSelector(setVal)
	}
	st.Out = Str(runes)
	return ResultDeferred(), nil
}

// actionHook rejects every selector that reaches it: bare-word options are
// intercepted by the engine's refinement accumulation before dispatch.
func actionHook(st *DispatchState, selector Value, setVal Value) (StepResult, error) {
	return ResultUnhandled(), nil
}
