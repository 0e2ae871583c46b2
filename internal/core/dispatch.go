package core

import (
	"fmt"

	"github.com/norn-lang/norn/internal/symbols"
	"github.com/norn-lang/norn/internal/utils"
	"github.com/rs/zerolog"
)

// PathStyle selects the activation policy checked at the end of a GET walk.
type PathStyle uint8

const (
	// AnyStyle accepts any final value.
	AnyStyle PathStyle = iota
	// SelectStyle (dotted paths) forbids ending on a callable.
	SelectStyle
	// ActivateStyle (slashed paths) requires ending on a callable.
	ActivateStyle
)

type WalkOptions struct {
	Style PathStyle
	// NoEval passes group selectors to hooks literally instead of
	// evaluating them.
	NoEval bool
	// RawMarks skips folding accumulated refinements into a specialized
	// callable; the caller reads them from the state instead.
	RawMarks bool
}

// StepResultKind enumerates the outcomes a dispatch hook may produce.
type StepResultKind uint8

const (
	// StepValue continues the walk with a replacement value.
	StepValue StepResultKind = iota
	// StepReference hands the engine writable storage to read through or
	// store into.
	StepReference
	// StepDeferred asks the engine to write the accumulated value back
	// through the previously remembered reference: the matched location is
	// a scalar embedded in an aggregate with no standalone address.
	StepDeferred
	// StepRedo retries the same selector, typically after the hook peeled
	// off a transparent wrapper.
	StepRedo
	// StepAlreadySet means the hook performed the store itself.
	StepAlreadySet
	// StepUnhandled means the selector is invalid for the value's type.
	StepUnhandled
	// StepThrown propagates a control signal, aborting the walk.
	StepThrown
)

type StepResult struct {
	Kind   StepResultKind
	Value  Value
	Ref    *Value
	Owner  *Context // context whose variable list backs Ref, nil otherwise
	Signal *ThrowSignal
}

func ResultValue(v Value) StepResult  { return StepResult{Kind: StepValue, Value: v} }
func ResultRef(ref *Value) StepResult { return StepResult{Kind: StepReference, Ref: ref} }

// ResultRefIn is ResultRef for storage owned by a context; the engine checks
// the owner's read-only state before any store it performs through the
// reference, including later deferred and walk-end writes.
func ResultRefIn(ref *Value, owner *Context) StepResult {
	return StepResult{Kind: StepReference, Ref: ref, Owner: owner}
}

func ResultDeferred() StepResult   { return StepResult{Kind: StepDeferred} }
func ResultRedo() StepResult       { return StepResult{Kind: StepRedo} }
func ResultAlreadySet() StepResult { return StepResult{Kind: StepAlreadySet} }
func ResultUnhandled() StepResult  { return StepResult{Kind: StepUnhandled} }
func ResultThrown(s *ThrowSignal) StepResult {
	return StepResult{Kind: StepThrown, Signal: s}
}

// A DispatchHook implements one selector step for one value kind. setVal is
// non-nil only on the final step of a SET walk. Hooks may mutate the state's
// Out field before returning StepDeferred.
type DispatchHook func(st *DispatchState, selector Value, setVal Value) (StepResult, error)

// DispatchState is the accumulated state of one selector-chain walk.
type DispatchState struct {
	// Out is the accumulated value.
	Out Value
	// Ref is the writable storage behind Out, when one exists.
	Ref *Value
	// SetVal is the value being written, nil in GET mode.
	SetVal Value
	// Refinements holds accumulated option names, most recent first.
	Refinements []*symbols.Symbol
	// Label is the name under which the walk reached a callable.
	Label *symbols.Symbol

	// refOwner is the context whose variable list backs Ref, nil when the
	// reference points into a free-standing container.
	refOwner *Context

	engine *Engine
	opts   WalkOptions
}

// checkRefWritable rejects stores through a reference whose owning context is
// read-only. References without a recorded owner are always writable.
func (st *DispatchState) checkRefWritable() error {
	if st.refOwner != nil && st.refOwner.IsReadOnly() {
		return FormatErrReadOnly(st.refOwner)
	}
	return nil
}

// redoLimit bounds hook-requested retries of a single selector.
const redoLimit = 16

// The Engine walks selector chains, dispatching each step to the hook
// registered for the accumulated value's kind. Hook slots left unregistered
// fail with ErrUnhandledType until an extension fills them.
type Engine struct {
	hooks  [MaxKind]DispatchHook
	eval   Evaluator
	logger zerolog.Logger
}

func NewEngine(eval Evaluator, logger zerolog.Logger) *Engine {
	e := &Engine{
		eval:   eval,
		logger: ChildLoggerForSource(logger, "dispatch"),
	}
	for k := range e.hooks {
		e.hooks[k] = unhookedHook(Kind(k))
	}
	registerBuiltinHooks(e)
	return e
}

// RegisterHook fills the hook slot for kind, replacing the unhooked stub.
// Extensions call this when they load.
func (e *Engine) RegisterHook(kind Kind, hook DispatchHook) {
	if kind >= MaxKind {
		panic(fmt.Errorf("kind %d out of hook table range", kind))
	}
	e.hooks[kind] = hook
}

// GetPath walks selectors left to right from root and returns the final
// value, Nil on a soft miss.
func (e *Engine) GetPath(root Value, selectors []Value, opts WalkOptions) (Value, error) {
	st := &DispatchState{engine: e, opts: opts}
	if err := e.walk(st, root, selectors); err != nil {
		return nil, err
	}
	return e.finishGet(st)
}

// SetPath walks selectors from root and writes v at the final location.
func (e *Engine) SetPath(root Value, selectors []Value, v Value, opts WalkOptions) error {
	st := &DispatchState{engine: e, opts: opts, SetVal: v}
	if err := e.walk(st, root, selectors); err != nil {
		return err
	}
	return nil
}

// GetPathState is GetPath for callers that need the final dispatch state,
// e.g. to read raw refinement marks.
func (e *Engine) GetPathState(root Value, selectors []Value, opts WalkOptions) (*DispatchState, error) {
	st := &DispatchState{engine: e, opts: opts}
	if err := e.walk(st, root, selectors); err != nil {
		return nil, err
	}
	if _, err := e.finishGet(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) walk(st *DispatchState, root Value, selectors []Value) error {
	if err := e.seed(st, root); err != nil {
		return err
	}

	e.logger.Debug().
		Str("root", Inspect(root)).
		Int("selectors", len(selectors)).
		Bool("set", st.SetVal != nil).
		Msg("path walk")

	wrote := false
	for i := 0; i < len(selectors); i++ {
		selector, skip, err := e.concretize(st, selectors[i])
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		final := i == len(selectors)-1
		var stepSet Value
		if final && st.SetVal != nil {
			stepSet = st.SetVal
		}

		// named options targeting a callable accumulate instead of
		// dispatching
		if act, ok := st.Out.(*Action); ok {
			if w, ok := selector.(*Word); ok && w.Kind() == WordKind {
				if st.Label == nil && act.Label == nil && len(st.Refinements) == 0 {
					st.Label = w.Sym
				} else {
					st.Refinements = append([]*symbols.Symbol{w.Sym}, st.Refinements...)
				}
				continue
			}
		}

		done, err := e.step(st, selector, stepSet)
		if err != nil {
			return err
		}
		if done && stepSet != nil {
			wrote = true
		}

		// the selector that produced a callable names it
		if act, ok := st.Out.(*Action); ok && st.Label == nil && act.Label == nil {
			if w, ok := selector.(*Word); ok && w.Kind() == WordKind {
				st.Label = w.Sym
			}
		}
	}

	if st.SetVal != nil && !wrote {
		// no hook stored the value: fall back to the remembered storage
		if st.Ref == nil || len(st.Refinements) > 0 {
			return fmt.Errorf("%w: %s", ErrBadWrite, Inspect(st.Out))
		}
		if err := st.checkRefWritable(); err != nil {
			return err
		}
		*st.Ref = st.SetVal
		st.Out = st.SetVal
	}
	return nil
}

// step dispatches one concrete selector. It reports whether a SET was
// completed by this step.
func (e *Engine) step(st *DispatchState, selector Value, stepSet Value) (bool, error) {
	for redo := 0; ; redo++ {
		if redo > redoLimit {
			return false, fmt.Errorf("%w: hook kept requesting redo for %s",
				ErrBadSelector, Inspect(selector))
		}

		hook := e.hooks[st.Out.Kind()]
		res, err := hook(st, selector, stepSet)
		if err != nil {
			// ordinary errors and control signals both abort the
			// walk; signals are never wrapped
			return false, err
		}

		switch res.Kind {
		case StepValue:
			st.Out = res.Value
			st.Ref = nil
			st.refOwner = nil
			return false, nil
		case StepReference:
			st.Ref = res.Ref
			st.refOwner = res.Owner
			if stepSet != nil {
				if err := st.checkRefWritable(); err != nil {
					return false, err
				}
				st.Out = stepSet
				*res.Ref = stepSet
				return true, nil
			}
			st.Out = *res.Ref
			return false, nil
		case StepDeferred:
			if stepSet == nil {
				return false, fmt.Errorf("%w: deferred write outside SET walk", ErrBadWrite)
			}
			if st.Ref == nil {
				return false, fmt.Errorf("%w: %s", ErrBadWrite, Inspect(st.Out))
			}
			if err := st.checkRefWritable(); err != nil {
				return false, err
			}
			*st.Ref = st.Out
			return true, nil
		case StepRedo:
			continue
		case StepAlreadySet:
			return true, nil
		case StepUnhandled:
			return false, FormatErrBadSelector(selector)
		case StepThrown:
			return false, res.Signal
		default:
			return false, fmt.Errorf("hook returned unknown result kind %d", res.Kind)
		}
	}
}

// seed establishes the walk's starting value from the path head.
func (e *Engine) seed(st *DispatchState, root Value) error {
	switch r := root.(type) {
	case *Word:
		ref, err := lookupWord(r)
		if err != nil {
			return err
		}
		st.Ref = ref
		st.refOwner, _ = r.Binding()
		st.Out = *ref

		// a leading indirection marker dereferences once more
		if r.Kind() == GetWordKind {
			if inner, ok := st.Out.(*Word); ok {
				innerRef, err := lookupWord(inner)
				if err != nil {
					return err
				}
				st.Ref = innerRef
				st.refOwner, _ = inner.Binding()
				st.Out = *innerRef
			}
		}
		if act, ok := st.Out.(*Action); ok && act.Label == nil && r.Kind() == WordKind {
			st.Label = r.Sym
		}
		return nil
	case *Group:
		// aborts and throws from the nested evaluation propagate
		// immediately
		out, err := e.eval.EvalGroup(r)
		if err != nil {
			return err
		}
		st.Out = out
		st.Ref = nil
		return nil
	default:
		st.Out = root
		st.Ref = nil
		return nil
	}
}

// concretize decodes one selector before dispatch: groups are evaluated
// (unless the no-eval policy is active), get-words are resolved to their
// values, blanks are structural no-ops.
func (e *Engine) concretize(st *DispatchState, selector Value) (Value, bool, error) {
	switch s := selector.(type) {
	case BlankT:
		return nil, true, nil
	case *Group:
		if st.opts.NoEval {
			return selector, false, nil
		}
		out, err := e.eval.EvalGroup(s)
		if err != nil {
			return nil, false, err
		}
		return out, false, nil
	case *Word:
		if s.Kind() == GetWordKind {
			ref, err := lookupWord(s)
			if err != nil {
				return nil, false, err
			}
			return *ref, false, nil
		}
	}
	return selector, false, nil
}

// finishGet applies the end-of-walk policy: refinement folding and the
// dotted/slashed activation checks.
func (e *Engine) finishGet(st *DispatchState) (Value, error) {
	act, isAction := st.Out.(*Action)

	switch st.opts.Style {
	case SelectStyle:
		if isAction {
			return nil, fmt.Errorf("%w: %s", ErrActionInGetPath, Inspect(st.Out))
		}
	case ActivateStyle:
		if !isAction {
			return nil, fmt.Errorf("%w: %s", ErrNonActionInCall, Inspect(st.Out))
		}
	}

	if isAction && len(st.Refinements) > 0 && !st.opts.RawMarks {
		// marks were pushed most-recent-first, fold in applied order
		ordered := utils.ReversedSlice(st.Refinements)
		specialized, err := e.eval.ApplyRefinements(act, ordered, st.Label)
		if err != nil {
			return nil, err
		}
		st.Out = specialized
		return specialized, nil
	}
	return st.Out, nil
}

// Pick reads one selector from an already-evaluated root. It uses the
// simplified subset of the hook contract: no refinement accumulation, no
// deferred writes.
func (e *Engine) Pick(root Value, selector Value) (Value, error) {
	st := &DispatchState{engine: e, Out: root}

	for redo := 0; ; redo++ {
		if redo > redoLimit {
			return nil, FormatErrBadSelector(selector)
		}
		hook := e.hooks[st.Out.Kind()]
		res, err := hook(st, selector, nil)
		if err != nil {
			return nil, err
		}
		switch res.Kind {
		case StepValue:
			return res.Value, nil
		case StepReference:
			return *res.Ref, nil
		case StepRedo:
			continue
		case StepUnhandled:
			return nil, FormatErrBadSelector(selector)
		case StepThrown:
			return nil, res.Signal
		default:
			return nil, fmt.Errorf("%w: %s", ErrBadWrite, Inspect(root))
		}
	}
}

// Poke writes v at one selector of an already-evaluated root.
func (e *Engine) Poke(root Value, selector Value, v Value) error {
	st := &DispatchState{engine: e, Out: root, SetVal: v}

	for redo := 0; ; redo++ {
		if redo > redoLimit {
			return FormatErrBadSelector(selector)
		}
		hook := e.hooks[st.Out.Kind()]
		res, err := hook(st, selector, v)
		if err != nil {
			return err
		}
		switch res.Kind {
		case StepReference:
			if res.Owner != nil && res.Owner.IsReadOnly() {
				return FormatErrReadOnly(res.Owner)
			}
			*res.Ref = v
			return nil
		case StepAlreadySet:
			return nil
		case StepRedo:
			continue
		case StepDeferred:
			// the root was handed in by value, there is no
			// remembered storage to write back through
			return fmt.Errorf("%w: %s", ErrBadWrite, Inspect(root))
		case StepUnhandled:
			return FormatErrBadSelector(selector)
		case StepThrown:
			return res.Signal
		default:
			return fmt.Errorf("%w: %s", ErrBadWrite, Inspect(root))
		}
	}
}

// lookupWord resolves a bound word to its variable storage.
func lookupWord(w *Word) (*Value, error) {
	if !w.IsBound() {
		return nil, fmt.Errorf("%w: %s", ErrUnboundWord, w.Sym.Name())
	}
	ctx, index := w.Binding()
	if ctx.IsSpent() && !ctx.rawAccess {
		return nil, fmt.Errorf("%w: %s", ErrStaleFrame, Inspect(ctx))
	}
	return ctx.VarRef(index), nil
}
