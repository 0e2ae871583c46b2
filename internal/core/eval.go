package core

import (
	"fmt"

	"github.com/norn-lang/norn/internal/symbols"
	"golang.org/x/exp/slices"
)

// An Evaluator is the expression-evaluation entry point the dispatch engine
// re-enters for embedded-expression selectors and for folding accumulated
// refinements into a specialized callable. The full evaluator lives outside
// this subsystem; it is consumed as an opaque collaborator.
type Evaluator interface {
	// EvalGroup evaluates an embedded-expression selector. An error or
	// control signal aborts the surrounding walk.
	EvalGroup(group *Group) (Value, error)

	// ApplyRefinements folds refinements (in first-applied order) into a
	// partially-applied callable labeled with label.
	ApplyRefinements(action *Action, refinements []*symbols.Symbol, label *symbols.Symbol) (Value, error)
}

// SpecializeAction is the default refinement-folding step: it validates the
// refinements against the action's spec and returns a copy carrying them.
// Evaluators that have no custom partial-application machinery use it
// directly.
func SpecializeAction(action *Action, refinements []*symbols.Symbol, label *symbols.Symbol) (*Action, error) {
	for _, sym := range refinements {
		if !action.HasRefinement(sym) {
			return nil, fmt.Errorf("%w: unknown refinement %s", ErrBadSelector, sym.Name())
		}
	}

	specialized := &Action{
		Label:       action.Label,
		Spec:        action.Spec,
		Refinements: append(slices.Clone(action.Refinements), refinements...),
		Impl:        action.Impl,
	}
	if specialized.Label == nil {
		specialized.Label = label
	}
	return specialized, nil
}
