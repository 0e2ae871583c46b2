package core

import (
	"errors"
	"fmt"

	"github.com/norn-lang/norn/internal/symbols"
)

var (
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrNotFound         = errors.New("word not found")
	ErrStaleFrame       = errors.New("frame is no longer live")
	ErrReadOnlyContext  = errors.New("context is read-only")
	ErrBadSelector      = errors.New("invalid path selector")
	ErrBadWrite         = errors.New("value has no addressable backing to write to")
	ErrUnhandledType    = errors.New("no dispatch hooks for type (extension not loaded)")
	ErrUnboundWord      = errors.New("word is not bound to a context")
	ErrUnsetVariable    = errors.New("variable is unset")
	ErrTooManySources   = errors.New("merge supports exactly two source contexts")
	ErrActionInGetPath  = errors.New("action encountered in a non-activating path")
	ErrNonActionInCall  = errors.New("activating path requires an action")
	ErrBinderLeak       = errors.New("binder still holds entries from a previous pass")
	ErrInvalidExpansion = errors.New("invalid key list expansion")
)

func FormatErrDuplicateKey(sym *symbols.Symbol) error {
	return fmt.Errorf("%w: %s", ErrDuplicateKey, sym.Name())
}

func FormatErrNotFound(sym *symbols.Symbol) error {
	return fmt.Errorf("%w: %s", ErrNotFound, sym.Name())
}

func FormatErrReadOnly(ctx *Context) error {
	return fmt.Errorf("%w: %s", ErrReadOnlyContext, Inspect(ctx))
}

func FormatErrBadSelector(selector Value) error {
	if selector == nil || selector.Kind() == BlankKind {
		return fmt.Errorf("%w: placeholder selector not accepted here", ErrBadSelector)
	}
	return fmt.Errorf("%w: %s", ErrBadSelector, Inspect(selector))
}

func FormatErrUnhandledType(kind Kind) error {
	return fmt.Errorf("%w: %s", ErrUnhandledType, kind)
}

func FormatErrUnsetVariable(sym *symbols.Symbol) error {
	return fmt.Errorf("%w: %s", ErrUnsetVariable, sym.Name())
}

// A ThrowSignal is a non-error early exit (break, return, throw...) raised by
// nested evaluation. It travels through the dispatch engine and the context
// operations unmodified: it is never wrapped and never triggers a write-back.
type ThrowSignal struct {
	Name string
	Val  Value
}

func (s *ThrowSignal) Error() string {
	return fmt.Sprintf("uncaught throw: %s", s.Name)
}

// IsThrow reports whether err is a control signal rather than an ordinary
// error.
func IsThrow(err error) bool {
	var sig *ThrowSignal
	return errors.As(err, &sig)
}
