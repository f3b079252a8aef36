package assign

import (
	"encoding/binary"
	"testing"

	"dynd/pkg/kernel"
	"dynd/pkg/types"
)

// TestBuildAssignmentKernelThroughExpressionLayer exercises §4.5 steps
// 2/3 end to end: src is a lazy-conversion expression type (storage
// int32, value float64) assigned into an int16 dst, so the composed
// kernel genuinely needs both the decode leg (int32 -> float64) and the
// core conversion (float64 -> int16) to run, in sequence, through the
// kernel this package's exported BuildAssignmentKernel builds and hands
// back as a standalone top-level kernel (as opposed to a child wired up
// by another producer's own AppendPrefix). If the composing node were
// appended after its children instead of before them, Root() would
// return the decode leg instead of the sequencer, and invoking it would
// write a float64-sized result into the 2-byte int16 destination.
func TestBuildAssignmentKernelThroughExpressionLayer(t *testing.T) {
	srcType := types.Extended(types.NewConvertExpression(types.Builtin(types.Float64), types.Builtin(types.Int32)))

	b := kernel.NewBuilder()
	if _, err := BuildAssignmentKernel(b, 0, types.Builtin(types.Int16), nil, srcType, nil, kernel.SingleRequest, types.ErrNone, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildAssignmentKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	src := make([]byte, 4)
	binary.LittleEndian.PutUint32(src, uint32(int32(300)))
	dst := make([]byte, 2)
	if err := SafeInvokeSingle(k, dst, src); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := int16(binary.LittleEndian.Uint16(dst)); got != 300 {
		t.Errorf("dst = %d, want 300", got)
	}
}

// TestBuildComparisonKernelThroughExpressionLayer is compare.go's
// counterpart: lhs reads through the same int32-storage/float64-value
// expression type, rhs is a plain float64. If the composing node landed
// anywhere but offset 0, InvokeCompare's Root() would resolve to the
// decode leg, whose Node has no Compare function at all.
func TestBuildComparisonKernelThroughExpressionLayer(t *testing.T) {
	lhsType := types.Extended(types.NewConvertExpression(types.Builtin(types.Float64), types.Builtin(types.Int32)))
	rhsType := types.Builtin(types.Float64)

	b := kernel.NewBuilder()
	if _, err := BuildComparisonKernel(b, 0, lhsType, nil, rhsType, nil, types.CmpEQ, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildComparisonKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	lhs := make([]byte, 4)
	binary.LittleEndian.PutUint32(lhs, uint32(int32(7)))
	rhs := encodeFloat64(7.0)
	if !k.InvokeCompare(lhs, rhs) {
		t.Error("int32(7) read through a float64 conversion view should equal float64(7.0)")
	}

	rhs = encodeFloat64(7.5)
	if k.InvokeCompare(lhs, rhs) {
		t.Error("int32(7) read through a float64 conversion view should not equal float64(7.5)")
	}
}
