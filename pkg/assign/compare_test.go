package assign

import (
	"encoding/binary"
	"testing"

	"dynd/pkg/kernel"
	"dynd/pkg/types"
)

func buildCompare(t *testing.T, lhs, rhs types.TypeRef, op types.CompareOp) *kernel.Kernel {
	t.Helper()
	b := kernel.NewBuilder()
	if _, err := BuildComparisonKernel(b, 0, lhs, nil, rhs, nil, op, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildComparisonKernel(%s %s %s): %v", lhs, op, rhs, err)
	}
	return b.Build()
}

func int32Bytes(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

func TestBuiltinCompareSameKind(t *testing.T) {
	k := buildCompare(t, types.Builtin(types.Int32), types.Builtin(types.Int32), types.CmpLT)
	defer k.Drop()

	if !k.InvokeCompare(int32Bytes(3), int32Bytes(5)) {
		t.Error("3 < 5 should be true")
	}
	if k.InvokeCompare(int32Bytes(5), int32Bytes(3)) {
		t.Error("5 < 3 should be false")
	}
}

func TestBuiltinCompareMixedDomain(t *testing.T) {
	k := buildCompare(t, types.Builtin(types.Int32), types.Builtin(types.Float64), types.CmpEQ)
	defer k.Drop()

	lhs := int32Bytes(4)
	rhs := make([]byte, 8)
	binary.LittleEndian.PutUint64(rhs, encodeFloat64AsUint(4.0))
	if !k.InvokeCompare(lhs, rhs) {
		t.Error("int32(4) == float64(4.0) should be true")
	}

	binary.LittleEndian.PutUint64(rhs, encodeFloat64AsUint(4.5))
	if k.InvokeCompare(lhs, rhs) {
		t.Error("int32(4) == float64(4.5) should be false")
	}
}

func encodeFloat64AsUint(v float64) uint64 {
	buf := encodeFloat64(v)
	return binary.LittleEndian.Uint64(buf)
}

func TestComplexCompareRejectsOrdering(t *testing.T) {
	b := kernel.NewBuilder()
	_, err := BuildComparisonKernel(b, 0, types.Builtin(types.Complex128), nil, types.Builtin(types.Complex128), nil, types.CmpLT, types.DefaultEvalContext)
	if err == nil {
		t.Fatal("expected an error ordering two complex values")
	}
}

func TestStringCompare(t *testing.T) {
	lhsType := types.Extended(types.NewVarString(types.EncodingUTF8))
	rhsType := types.Extended(types.NewVarString(types.EncodingUTF8))

	lhsMeta := make([]byte, lhsType.MetadataSize())
	rhsMeta := make([]byte, rhsType.MetadataSize())
	if err := lhsType.Extension().MetadataDefaultConstruct(lhsMeta, nil); err != nil {
		t.Fatalf("construct lhs metadata: %v", err)
	}
	defer lhsType.Extension().MetadataDestruct(lhsMeta)
	if err := rhsType.Extension().MetadataDefaultConstruct(rhsMeta, nil); err != nil {
		t.Fatalf("construct rhs metadata: %v", err)
	}
	defer rhsType.Extension().MetadataDestruct(rhsMeta)

	lhsData := make([]byte, lhsType.DataSize())
	rhsData := make([]byte, rhsType.DataSize())
	if err := lhsType.Extension().(*types.VarString).Write(lhsMeta, lhsData, "apple"); err != nil {
		t.Fatalf("write lhs: %v", err)
	}
	if err := rhsType.Extension().(*types.VarString).Write(rhsMeta, rhsData, "banana"); err != nil {
		t.Fatalf("write rhs: %v", err)
	}

	b := kernel.NewBuilder()
	if _, err := BuildComparisonKernel(b, 0, lhsType, lhsMeta, rhsType, rhsMeta, types.CmpLT, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildComparisonKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	if !k.InvokeCompare(lhsData, rhsData) {
		t.Error(`"apple" < "banana" should be true`)
	}
}

func TestComparisonRejectsIncompatibleTypes(t *testing.T) {
	structType, err := types.NewCStruct([]types.StructField{{Name: "x", Type: types.Builtin(types.Int32)}})
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}
	b := kernel.NewBuilder()
	_, err = BuildComparisonKernel(b, 0, types.Builtin(types.Int32), nil, types.Extended(structType), nil, types.CmpEQ, types.DefaultEvalContext)
	if err == nil {
		t.Fatal("expected a NotComparable error for int32 vs cstruct")
	}
}
