package types

import (
	"dynd/pkg/kernel"
	"dynd/pkg/memblock"
)

// Flags is the storage-trait bitset carried by every TypeDescriptor
// (spec §3).
type Flags uint32

const (
	// FlagScalar marks a type with no sub-dimensions.
	FlagScalar Flags = 1 << iota
	// FlagZeroInit marks a type whose metadata/data must be zeroed before
	// construction.
	FlagZeroInit
	// FlagBlockRef marks a type whose metadata embeds at least one
	// memblock.Block reference that must be retained/released on
	// copy/destruct.
	FlagBlockRef
	// FlagOperandInherited marks a type (typically an expression or
	// struct field) that propagates its operand's flags.
	FlagOperandInherited
)

// Has reports whether flag is set.
func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Slice describes one Python-style slicing dimension of a subscript
// operation. A nil Slice paired with Index.Single selects a single
// element and drops that dimension; a non-nil Slice keeps the dimension.
type Slice struct {
	HasStart, HasStop, HasStep bool
	Start, Stop, Step          int
}

// Index is one element of an ApplyLinearIndex subscript: either a single
// integer index (dimension-reducing) or a Slice (dimension-preserving).
type Index struct {
	IsSlice bool
	Single  int
	Slice   Slice
}

// ApplyLinearIndexArgs bundles apply_linear_index's inputs (spec §4.2).
type ApplyLinearIndexArgs struct {
	Indices     []Index
	SrcMetadata []byte
	ResultType  TypeRef
	DstMetadata []byte
	EmbeddedRef *BlockRef
	Leading     bool
	Data        []byte
	DataRef     *memblock.Block
}

// ApplyLinearIndexResult bundles apply_linear_index's outputs: the
// additional byte offset into Data the subscript implies, and the
// (possibly rebound) data reference.
type ApplyLinearIndexResult struct {
	DataOffset int
	DataRef    *memblock.Block
}

// Descriptor is the TypeDescriptor vtable contract of spec §4.2:
// immutable, polymorphic, identified structurally by its Kind and
// compared with Equal. Built-in scalar types never implement this
// interface directly — see TypeRef — only extended types do.
type Descriptor interface {
	Kind() Kind
	// DataSize returns the fixed data size in bytes, or 0 if variable.
	DataSize() int
	DataAlignment() int
	MetadataSize() int
	Flags() Flags

	PrintType() string
	PrintData(metadata, data []byte) string

	// Equal must be a congruence: equal descriptors produce identical
	// metadata layouts and identical kernel factories.
	Equal(other Descriptor) bool

	// IsLosslessAssignmentFrom is reflexive on identity and otherwise
	// true only when every representable src value maps to a distinct,
	// recoverable value of this type.
	IsLosslessAssignmentFrom(src TypeRef) bool

	MetadataDefaultConstruct(buf []byte, shape []int) error
	MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error
	MetadataReset(buf []byte, shape []int) error
	MetadataFinalize(buf []byte)
	MetadataDestruct(buf []byte)

	ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error)

	MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error)
	MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error)

	GetShape() []int
}
