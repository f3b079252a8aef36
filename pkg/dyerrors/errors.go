// Package dyerrors defines the error taxonomy shared across the dynd core.
package dyerrors

import (
	"golang.org/x/xerrors"
)

// Kind discriminates the error taxonomy of the engine.
type Kind int

const (
	_ Kind = iota
	// OutOfMemory signals an allocation failure.
	OutOfMemory
	// TypeErr signals an unassignable pair or a non-fixed type used where a
	// fixed-size slot was required.
	TypeErr
	// IndexErr signals an out-of-range subscript.
	IndexErr
	// ValueErr signals an invalid date/ymd, invalid codepoint, or empty
	// strftime format.
	ValueErr
	// OverflowErr signals a numeric conversion exceeding the target range
	// under overflow/fractional/inexact error modes.
	OverflowErr
	// InexactErr signals a lossy float conversion under the inexact mode.
	InexactErr
	// NotComparable signals a comparison across incompatible kinds.
	NotComparable
	// Misuse signals an illegal call sequence.
	Misuse
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case TypeErr:
		return "TypeError"
	case IndexErr:
		return "IndexError"
	case ValueErr:
		return "ValueError"
	case OverflowErr:
		return "OverflowError"
	case InexactErr:
		return "InexactError"
	case NotComparable:
		return "NotComparable"
	case Misuse:
		return "MisuseError"
	default:
		return "UnknownError"
	}
}

// Error is the engine-wide error shape: a Kind, the operation that raised
// it, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return xerrors.Errorf("%s: %s: %w", e.Kind, e.Op, e.Err).Error()
	}
	return xerrors.Errorf("%s: %s", e.Kind, e.Op).Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Violation is panicked by Raise. kernel.SingleFn/StridedFn (and the
// extended-type vtable methods that build them) have no error return,
// so a mode-gated conversion failure discovered mid-invocation has no
// channel back to the caller except a non-local exit; Recover turns it
// back into a normal error at the invocation boundary.
type Violation struct{ Err error }

// Raise panics with err wrapped as a Violation.
func Raise(err error) { panic(Violation{err}) }

// Recover inspects a value obtained from recover(): a Violation's
// wrapped error is returned, anything else is re-panicked. r == nil
// (nothing recovered) returns nil.
func Recover(r any) error {
	if r == nil {
		return nil
	}
	if v, ok := r.(Violation); ok {
		return v.Err
	}
	panic(r)
}
