package types

import (
	"bytes"
	"encoding/binary"
	"testing"

	"dynd/pkg/kernel"
)

func int32le(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// installBuiltinCopyHooks sets BuildFieldAssignmentKernel and
// BuildFieldComparisonKernel for the duration of t. pkg/assign's init
// installs the real resolver, but this package's own tests cannot import
// pkg/assign; these stand-ins copy or byte-compare a builtin element and
// are enough to exercise FixedDim's per-element loop.
func installBuiltinCopyHooks(t *testing.T) {
	prevAssign, prevCompare := BuildFieldAssignmentKernel, BuildFieldComparisonKernel
	t.Cleanup(func() { BuildFieldAssignmentKernel, BuildFieldComparisonKernel = prevAssign, prevCompare })
	BuildFieldAssignmentKernel = func(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
		size := dst.DataSize()
		_, node := b.AppendPrefix()
		node.Single = func(d, s []byte, n *kernel.Node) { copy(d[:size], s[:size]) }
		return b.Len(), nil
	}
	BuildFieldComparisonKernel = func(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
		size := lhs.DataSize()
		_, node := b.AppendPrefix()
		node.Compare = func(l, r []byte, n *kernel.Node) bool { return op.Apply(bytes.Compare(l[:size], r[:size])) }
		return b.Len(), nil
	}
}

func TestFixedDimAssignmentElementwise(t *testing.T) {
	installBuiltinCopyHooks(t)
	row, err := NewFixedDim(3, Builtin(Int32))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}
	rowType := Extended(row)

	b := kernel.NewBuilder()
	if _, err := row.MakeAssignmentKernel(b, 0, rowType, nil, rowType, nil, kernel.SingleRequest, ErrNone, DefaultEvalContext); err != nil {
		t.Fatalf("MakeAssignmentKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	src := make([]byte, rowType.DataSize())
	for i, v := range []int32{1, 2, 3} {
		copy(src[i*4:], int32le(v))
	}
	dst := make([]byte, rowType.DataSize())
	k.InvokeSingle(dst, src)

	for i, want := range []int32{1, 2, 3} {
		got := int32(binary.LittleEndian.Uint32(dst[i*4:]))
		if got != want {
			t.Errorf("element %d = %d, want %d", i, got, want)
		}
	}
}

func TestFixedDimAssignmentRejectsCountMismatch(t *testing.T) {
	row3, err := NewFixedDim(3, Builtin(Int32))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}
	row4, err := NewFixedDim(4, Builtin(Int32))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}

	b := kernel.NewBuilder()
	_, err = row3.MakeAssignmentKernel(b, 0, Extended(row3), nil, Extended(row4), nil, kernel.SingleRequest, ErrNone, DefaultEvalContext)
	if err == nil {
		t.Fatal("expected an error assigning a 4-element dim into a 3-element dim")
	}
}

func TestFixedDimComparisonEquality(t *testing.T) {
	installBuiltinCopyHooks(t)
	row, err := NewFixedDim(2, Builtin(Int32))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}
	rowType := Extended(row)

	b := kernel.NewBuilder()
	if _, err := row.MakeComparisonKernel(b, 0, rowType, nil, rowType, nil, CmpEQ, DefaultEvalContext); err != nil {
		t.Fatalf("MakeComparisonKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	lhs := make([]byte, rowType.DataSize())
	rhs := make([]byte, rowType.DataSize())
	copy(lhs[0:], int32le(9))
	copy(lhs[4:], int32le(10))
	copy(rhs[0:], int32le(9))
	copy(rhs[4:], int32le(10))
	if !k.InvokeCompare(lhs, rhs) {
		t.Error("identical rows should compare equal")
	}

	copy(rhs[4:], int32le(11))
	if k.InvokeCompare(lhs, rhs) {
		t.Error("differing rows should not compare equal")
	}
}

func TestFixedDimApplyLinearIndex(t *testing.T) {
	row, err := NewFixedDim(4, Builtin(Int32))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}

	res, err := row.ApplyLinearIndex(ApplyLinearIndexArgs{Indices: []Index{{Single: 2}}})
	if err != nil {
		t.Fatalf("ApplyLinearIndex: %v", err)
	}
	if want := 2 * row.stride(); res.DataOffset != want {
		t.Errorf("DataOffset = %d, want %d", res.DataOffset, want)
	}

	if _, err := row.ApplyLinearIndex(ApplyLinearIndexArgs{Indices: []Index{{Single: -1}}}); err != nil {
		t.Fatalf("negative index should wrap, not error: %v", err)
	}

	if _, err := row.ApplyLinearIndex(ApplyLinearIndexArgs{Indices: []Index{{Single: 4}}}); err == nil {
		t.Fatal("expected an out-of-range error for index 4 in a 4-element dim")
	}
}

func TestFixedDimPrintType(t *testing.T) {
	row, err := NewFixedDim(3, Builtin(Float64))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}
	if got, want := row.PrintType(), "3 * float64"; got != want {
		t.Errorf("PrintType = %q, want %q", got, want)
	}
}
