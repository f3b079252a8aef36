package types

import (
	"fmt"
	"strings"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
)

// FixedDim is a fixed-count uniform dimension: N contiguous elements of
// a single element type, printed in datashape's "N * T" form (spec
// §4.2's uniform_dim category). Shape broadcasting across ragged or
// variable-length dimensions is out of this core's scope; FixedDim only
// covers the concrete, statically-sized case the datashape grammar
// names directly.
type FixedDim struct {
	Count       int
	ElementType TypeRef
}

var _ Descriptor = (*FixedDim)(nil)

// NewFixedDim builds a fixed-count dimension of count elements of elem.
func NewFixedDim(count int, elem TypeRef) (*FixedDim, error) {
	if count < 0 {
		return nil, dyerrors.New(dyerrors.ValueErr, "fixed dimension count must be non-negative")
	}
	return &FixedDim{Count: count, ElementType: elem}, nil
}

func (fd *FixedDim) Kind() Kind { return KindUniformDim }

func (fd *FixedDim) DataSize() int {
	elemSize := fd.ElementType.DataSize()
	if elemSize == 0 {
		return 0
	}
	stride := incToAlignment(elemSize, fd.ElementType.DataAlignment())
	return stride * fd.Count
}

func (fd *FixedDim) DataAlignment() int { return fd.ElementType.DataAlignment() }
func (fd *FixedDim) MetadataSize() int  { return fd.ElementType.MetadataSize() }

func (fd *FixedDim) Flags() Flags {
	return fd.ElementType.Flags() &^ FlagScalar
}

func (fd *FixedDim) stride() int {
	return incToAlignment(fd.ElementType.DataSize(), fd.ElementType.DataAlignment())
}

func (fd *FixedDim) PrintType() string {
	return fmt.Sprintf("%d * %s", fd.Count, fd.ElementType)
}

// String lets FixedDim appear directly in fmt verbs (error messages),
// matching TypeRef's own String delegation to PrintType.
func (fd *FixedDim) String() string { return fd.PrintType() }

func (fd *FixedDim) PrintData(metadata, data []byte) string {
	stride := fd.stride()
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < fd.Count; i++ {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(printFieldValue(fd.ElementType, metadata, data[i*stride:]))
	}
	b.WriteByte(']')
	return b.String()
}

func (fd *FixedDim) Equal(other Descriptor) bool {
	o, ok := other.(*FixedDim)
	return ok && fd.Count == o.Count && fd.ElementType.Equal(o.ElementType)
}

func (fd *FixedDim) IsLosslessAssignmentFrom(src TypeRef) bool {
	o, ok := src.Extension().(*FixedDim)
	if !ok || fd.Count != o.Count {
		return false
	}
	return fd.ElementType.IsLosslessAssignmentFrom(o.ElementType)
}

func (fd *FixedDim) MetadataDefaultConstruct(buf []byte, shape []int) error {
	if fd.MetadataSize() == 0 {
		return nil
	}
	ext := fd.ElementType.Extension()
	return ext.MetadataDefaultConstruct(buf, shape)
}

func (fd *FixedDim) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	if fd.MetadataSize() == 0 {
		return nil
	}
	return fd.ElementType.Extension().MetadataCopyConstruct(dst, src, embedded)
}

func (fd *FixedDim) MetadataReset(buf []byte, shape []int) error {
	if fd.MetadataSize() == 0 {
		return nil
	}
	return fd.ElementType.Extension().MetadataReset(buf, shape)
}

func (fd *FixedDim) MetadataFinalize(buf []byte) {
	if fd.MetadataSize() != 0 {
		fd.ElementType.Extension().MetadataFinalize(buf)
	}
}

func (fd *FixedDim) MetadataDestruct(buf []byte) {
	if fd.MetadataSize() != 0 {
		fd.ElementType.Extension().MetadataDestruct(buf)
	}
}

func (fd *FixedDim) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{DataRef: args.DataRef}, nil
	}
	idx := args.Indices[0]
	if idx.IsSlice {
		return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "fixed dimension slicing is not supported by this core")
	}
	i := idx.Single
	if i < 0 {
		i += fd.Count
	}
	if i < 0 || i >= fd.Count {
		return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, fmt.Sprintf("dimension index %d out of range for size %d", idx.Single, fd.Count))
	}
	return ApplyLinearIndexResult{DataOffset: i * fd.stride(), DataRef: args.DataRef}, nil
}

func (fd *FixedDim) GetShape() []int {
	shape := []int{fd.Count}
	if sub := fd.ElementType.Extension(); sub != nil {
		shape = append(shape, sub.GetShape()...)
	}
	return shape
}

func (fd *FixedDim) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	srcDim, ok := src.Extension().(*FixedDim)
	if !ok || srcDim.Count != fd.Count {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot assign %s to %s", src, fd))
	}
	if BuildFieldAssignmentKernel == nil {
		return offset, dyerrors.New(dyerrors.Misuse, "assignment resolver not initialized")
	}
	_, node := b.AppendPrefix()
	elementOffset := b.Len()
	if _, err := BuildFieldAssignmentKernel(b, elementOffset, fd.ElementType, dstMeta, srcDim.ElementType, srcMeta, kernel.SingleRequest, mode, ectx); err != nil {
		return offset, dyerrors.Wrap(dyerrors.TypeErr, "fixed dimension element", err)
	}

	dstStride, srcStride := fd.stride(), srcDim.stride()
	count := fd.Count
	node.Single = func(dst, src []byte, n *kernel.Node) {
		child := b.GetAt(elementOffset)
		for i := 0; i < count; i++ {
			child.Single(dst[i*dstStride:], src[i*srcStride:], child)
		}
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return b.Len(), nil
}

func (fd *FixedDim) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	rhsDim, ok := rhs.Extension().(*FixedDim)
	if !ok || rhsDim.Count != fd.Count {
		return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("cannot compare %s to %s", fd, rhs))
	}
	if BuildFieldComparisonKernel == nil {
		return offset, dyerrors.New(dyerrors.Misuse, "comparison resolver not initialized")
	}
	_, node := b.AppendPrefix()
	eqOffset := b.Len()
	if _, err := BuildFieldComparisonKernel(b, eqOffset, fd.ElementType, lhsMeta, rhsDim.ElementType, rhsMeta, CmpEQ, ectx); err != nil {
		return offset, dyerrors.Wrap(dyerrors.NotComparable, "fixed dimension element", err)
	}

	lhsStride, rhsStride := fd.stride(), rhsDim.stride()
	count := fd.Count
	node.Compare = func(l, r []byte, n *kernel.Node) bool {
		eq := true
		child := b.GetAt(eqOffset)
		for i := 0; i < count && eq; i++ {
			eq = child.Compare(l[i*lhsStride:], r[i*rhsStride:], child)
		}
		switch op {
		case CmpEQ:
			return eq
		case CmpNE:
			return !eq
		default:
			return false // ordering comparisons over arrays are not supported
		}
	}
	return b.Len(), nil
}
