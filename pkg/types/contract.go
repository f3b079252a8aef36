// Package types implements DyND's type/metadata triad: immutable,
// deduplicable type descriptors (spec §4.2) and the shared contract
// types (error modes, comparison operators, evaluation context) that
// the assignment resolver and kernel builders dispatch on.
package types

import (
	"dynd/pkg/kernel"
	"dynd/pkg/memblock"
)

// ErrorMode controls how numeric/string conversions react to lossy or
// out-of-range values (spec §4.4).
type ErrorMode int

const (
	// ErrNone performs silent truncation.
	ErrNone ErrorMode = iota
	// ErrOverflow rejects conversions that overflow the destination range.
	ErrOverflow
	// ErrFractional rejects non-integer values converted to an integer.
	ErrFractional
	// ErrInexact rejects any lossy conversion, integer or floating point.
	ErrInexact
	// ErrDefault defers to the EvalContext's configured default mode.
	ErrDefault
)

func (m ErrorMode) String() string {
	switch m {
	case ErrNone:
		return "none"
	case ErrOverflow:
		return "overflow"
	case ErrFractional:
		return "fractional"
	case ErrInexact:
		return "inexact"
	case ErrDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Resolve returns the concrete error mode this one designates, expanding
// ErrDefault via ectx.
func (m ErrorMode) Resolve(ectx *EvalContext) ErrorMode {
	if m == ErrDefault {
		if ectx != nil {
			return ectx.DefaultErrorMode
		}
		return ErrNone
	}
	return m
}

// CompareOp enumerates the comparison operators make_comparison_kernel
// may be asked to build (spec §4.6).
type CompareOp int

const (
	CmpLT CompareOp = iota
	CmpLE
	CmpEQ
	CmpNE
	CmpGE
	CmpGT
)

func (op CompareOp) String() string {
	switch op {
	case CmpLT:
		return "<"
	case CmpLE:
		return "<="
	case CmpEQ:
		return "=="
	case CmpNE:
		return "!="
	case CmpGE:
		return ">="
	case CmpGT:
		return ">"
	default:
		return "?"
	}
}

// Apply evaluates op over an already-computed three-way comparison
// result (-1, 0, 1), the shape every concrete comparison kernel reduces
// to before consulting the requested operator.
func (op CompareOp) Apply(cmp int) bool {
	switch op {
	case CmpLT:
		return cmp < 0
	case CmpLE:
		return cmp <= 0
	case CmpEQ:
		return cmp == 0
	case CmpNE:
		return cmp != 0
	case CmpGE:
		return cmp >= 0
	case CmpGT:
		return cmp > 0
	default:
		return false
	}
}

// EvalContext carries evaluation-wide configuration through kernel
// construction, currently just the default error mode resolved by
// ErrDefault.
type EvalContext struct {
	DefaultErrorMode ErrorMode
}

// DefaultEvalContext is the default evaluation context: a context
// whose default error mode is ErrFractional, matching the behavior of
// unannotated assignments.
var DefaultEvalContext = &EvalContext{DefaultErrorMode: ErrFractional}

// BlockRef is the metadata-embedded strong reference to a memblock.Block
// that blockref-flagged types must carry, increment on copy, and release
// on destruct (spec §3's "blockref" invariant).
type BlockRef struct {
	Block *memblock.Block
}

// Retain increments the referenced block's refcount, used when
// duplicating metadata that embeds this reference.
func (r *BlockRef) Retain() {
	if r.Block != nil {
		r.Block.Incref()
	}
}

// Release decrements the referenced block's refcount, used when
// destructing metadata that embeds this reference.
func (r *BlockRef) Release() {
	if r.Block != nil {
		r.Block.Decref()
		r.Block = nil
	}
}

// BuildFieldAssignmentKernel and BuildFieldComparisonKernel let composite
// descriptors (CStruct, StandardStruct) delegate each field's own
// dst/src dispatch — which may need the full 7-step resolver of spec
// §4.5 when field types differ or are themselves expressions — back to
// pkg/assign, without pkg/types importing it. pkg/assign's init
// installs the real implementation; the package-var indirection is the
// same registration idiom database/sql uses to let drivers close a
// dependency loop with their registry.
var BuildFieldAssignmentKernel func(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error)

var BuildFieldComparisonKernel func(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error)
