package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
)

// FixedBytes is a fixed-size, alignment-tagged raw byte buffer — the
// uninterpreted-data counterpart to FixedString, ported from
// original_source/src/dynd/types/fixedbytes_type.cpp.
type FixedBytes struct {
	size      int
	alignment int
}

var _ Descriptor = (*FixedBytes)(nil)

// NewFixedBytes builds a fixedbytes type of the given size and
// alignment. alignment must divide size evenly, matching the original
// type's construction invariant.
func NewFixedBytes(size, alignment int) (*FixedBytes, error) {
	if size <= 0 {
		return nil, dyerrors.New(dyerrors.ValueErr, "fixedbytes size must be positive")
	}
	if alignment <= 0 || alignment > size || size%alignment != 0 {
		return nil, dyerrors.New(dyerrors.ValueErr, "fixedbytes alignment must evenly divide size")
	}
	return &FixedBytes{size: size, alignment: alignment}, nil
}

func (fb *FixedBytes) Kind() Kind          { return KindBytes }
func (fb *FixedBytes) DataSize() int       { return fb.size }
func (fb *FixedBytes) DataAlignment() int  { return fb.alignment }
func (fb *FixedBytes) MetadataSize() int   { return 0 }
func (fb *FixedBytes) Flags() Flags        { return FlagScalar }

func (fb *FixedBytes) PrintType() string {
	return fmt.Sprintf("fixedbytes<%d,%d>", fb.size, fb.alignment)
}

func (fb *FixedBytes) PrintData(metadata, data []byte) string {
	return "0x" + hex.EncodeToString(data[:fb.size])
}

func (fb *FixedBytes) Equal(other Descriptor) bool {
	o, ok := other.(*FixedBytes)
	return ok && fb.size == o.size && fb.alignment == o.alignment
}

func (fb *FixedBytes) IsLosslessAssignmentFrom(src TypeRef) bool {
	o, ok := src.Extension().(*FixedBytes)
	return ok && fb.size == o.size
}

func (fb *FixedBytes) MetadataDefaultConstruct(buf []byte, shape []int) error { return nil }
func (fb *FixedBytes) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	return nil
}
func (fb *FixedBytes) MetadataReset(buf []byte, shape []int) error { return nil }
func (fb *FixedBytes) MetadataFinalize(buf []byte)                 {}
func (fb *FixedBytes) MetadataDestruct(buf []byte)                 {}

func (fb *FixedBytes) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{DataRef: args.DataRef}, nil
	}
	return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "fixedbytes has no indexable sub-dimension")
}

func (fb *FixedBytes) GetShape() []int { return nil }

func (fb *FixedBytes) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	srcFB, ok := src.Extension().(*FixedBytes)
	if !ok || srcFB.size != fb.size {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot assign %s to fixedbytes<%d,%d>", src, fb.size, fb.alignment))
	}
	o, node := b.AppendPrefix()
	node.Single = func(dst, src []byte, n *kernel.Node) {
		copy(dst[:fb.size], src[:fb.size])
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return o + 1, nil
}

func (fb *FixedBytes) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	rhsFB, ok := rhs.Extension().(*FixedBytes)
	if !ok || rhsFB.size != fb.size {
		return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("cannot compare fixedbytes<%d,%d> to %s", fb.size, fb.alignment, rhs))
	}
	size := fb.size
	o, node := b.AppendPrefix()
	node.Compare = func(l, r []byte, n *kernel.Node) bool {
		return op.Apply(bytes.Compare(l[:size], r[:size]))
	}
	return o + 1, nil
}

// Bytes is the variable-length byte buffer type: a fixed-size (offset,
// length) header in data, the data-resident counterpart to a Go slice
// header. The type has no metadata (MetadataSize is 0), so no reference
// to a backing memblock.PodArena travels with a value: assignment copies
// the header, and comparison and printing work on the header bytes, not
// on arena content.
type Bytes struct {
	alignment int
}

var _ Descriptor = (*Bytes)(nil)

// bytesHeaderSize is the width, in bytes, of a Bytes value's inline
// (offset, length) pair: two 64-bit words, matching the (begin, end)
// pointer pair original_source's variable-length types store inline.
const bytesHeaderSize = 16

// NewBytes builds a variable-length bytes type whose content requires
// the given alignment once allocated from its backing arena.
func NewBytes(alignment int) *Bytes {
	if alignment <= 0 {
		alignment = 1
	}
	return &Bytes{alignment: alignment}
}

func (b *Bytes) Kind() Kind         { return KindBytes }
func (b *Bytes) DataSize() int      { return bytesHeaderSize }
func (b *Bytes) DataAlignment() int { return 8 }
func (b *Bytes) MetadataSize() int  { return 0 }
func (b *Bytes) Flags() Flags       { return FlagScalar | FlagBlockRef }

func (b *Bytes) PrintType() string { return fmt.Sprintf("bytes[align=%d]", b.alignment) }

func (b *Bytes) PrintData(metadata, data []byte) string {
	content := readBytesHeader(data)
	return "0x" + hex.EncodeToString(content)
}

func (b *Bytes) Equal(other Descriptor) bool {
	o, ok := other.(*Bytes)
	return ok && b.alignment == o.alignment
}

func (b *Bytes) IsLosslessAssignmentFrom(src TypeRef) bool {
	_, ok := src.Extension().(*Bytes)
	return ok
}

func (b *Bytes) MetadataDefaultConstruct(buf []byte, shape []int) error { return nil }
func (b *Bytes) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	return nil
}
func (b *Bytes) MetadataReset(buf []byte, shape []int) error { return nil }
func (b *Bytes) MetadataFinalize(buf []byte)                 {}
func (b *Bytes) MetadataDestruct(buf []byte)                 {}

func (b *Bytes) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{DataRef: args.DataRef}, nil
	}
	return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "bytes has no indexable sub-dimension")
}

func (b *Bytes) GetShape() []int { return nil }

func (b *Bytes) MakeAssignmentKernel(bld *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	_, ok := src.Extension().(*Bytes)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot assign %s to bytes", src))
	}
	o, node := bld.AppendPrefix()
	node.Single = func(dst, src []byte, n *kernel.Node) {
		// The (offset, length) header is copied as-is: both operands
		// share the same pod arena addressing convention, so no
		// reallocation is needed for an identity bytes assignment.
		copy(dst[:bytesHeaderSize], src[:bytesHeaderSize])
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return o + 1, nil
}

func (b *Bytes) MakeComparisonKernel(bld *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	_, ok := rhs.Extension().(*Bytes)
	if !ok {
		return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("cannot compare bytes to %s", rhs))
	}
	o, node := bld.AppendPrefix()
	node.Compare = func(l, r []byte, n *kernel.Node) bool {
		return op.Apply(bytes.Compare(readBytesHeader(l), readBytesHeader(r)))
	}
	return o + 1, nil
}

// readBytesHeader returns the inline (offset, length) header at the
// start of data: the header bytes themselves, not the arena range they
// address, since a Bytes value carries no arena reference. Bytes
// comparison and printing operate on these header bytes.
func readBytesHeader(data []byte) []byte {
	if len(data) < bytesHeaderSize {
		return data
	}
	return data[:bytesHeaderSize]
}
