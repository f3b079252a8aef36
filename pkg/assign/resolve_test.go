package assign

import (
	"encoding/binary"
	"testing"

	"dynd/pkg/kernel"
	"dynd/pkg/types"
)

func buildAssign(t *testing.T, dst, src types.TypeRef, mode types.ErrorMode) *kernel.Kernel {
	t.Helper()
	b := kernel.NewBuilder()
	if _, err := BuildAssignmentKernel(b, 0, dst, nil, src, nil, kernel.SingleRequest, mode, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildAssignmentKernel(%s <- %s): %v", dst, src, err)
	}
	return b.Build()
}

func TestBuildAssignmentKernelIdenticalBuiltinMemcpy(t *testing.T) {
	k := buildAssign(t, types.Builtin(types.Int32), types.Builtin(types.Int32), types.ErrNone)
	defer k.Drop()

	src := make([]byte, 4)
	binary.LittleEndian.PutUint32(src, 7)
	dst := make([]byte, 4)
	if err := SafeInvokeSingle(k, dst, src); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if binary.LittleEndian.Uint32(dst) != 7 {
		t.Errorf("dst = %v, want 7", dst)
	}
}

func TestBuildAssignmentKernelDifferingBuiltinConversion(t *testing.T) {
	k := buildAssign(t, types.Builtin(types.Float64), types.Builtin(types.Int32), types.ErrNone)
	defer k.Drop()

	src := make([]byte, 4)
	binary.LittleEndian.PutUint32(src, 42)
	dst := make([]byte, 8)
	if err := SafeInvokeSingle(k, dst, src); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := decodeFloat(types.Float64, dst); got != 42 {
		t.Errorf("dst = %v, want 42", got)
	}
}

// TestStringToInt32ParsesExactLiteral covers parseStringAsNumeric's
// success path: "42" has no fractional part, so it survives
// ErrFractional mode unchanged.
func TestStringToInt32ParsesExactLiteral(t *testing.T) {
	strType := types.Extended(types.NewVarString(types.EncodingUTF8))
	strMeta := make([]byte, strType.MetadataSize())
	if err := strType.Extension().MetadataDefaultConstruct(strMeta, nil); err != nil {
		t.Fatalf("construct string metadata: %v", err)
	}
	defer strType.Extension().MetadataDestruct(strMeta)

	strData := make([]byte, strType.DataSize())
	if err := strType.Extension().(*types.VarString).Write(strMeta, strData, "42"); err != nil {
		t.Fatalf("write string operand: %v", err)
	}

	b := kernel.NewBuilder()
	if _, err := BuildAssignmentKernel(b, 0, types.Builtin(types.Int32), nil, strType, strMeta, kernel.SingleRequest, types.ErrFractional, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildAssignmentKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	dst := make([]byte, 4)
	if err := SafeInvokeSingle(k, dst, strData); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := int32(binary.LittleEndian.Uint32(dst)); got != 42 {
		t.Errorf("dst = %d, want 42", got)
	}
}

// TestStringToInt32RejectsFractionalUnderFractionalMode covers
// parseStringAsNumeric's failure path: "4.2" drops a fractional part,
// which ErrFractional mode rejects.
func TestStringToInt32RejectsFractionalUnderFractionalMode(t *testing.T) {
	strType := types.Extended(types.NewVarString(types.EncodingUTF8))
	strMeta := make([]byte, strType.MetadataSize())
	if err := strType.Extension().MetadataDefaultConstruct(strMeta, nil); err != nil {
		t.Fatalf("construct string metadata: %v", err)
	}
	defer strType.Extension().MetadataDestruct(strMeta)

	strData := make([]byte, strType.DataSize())
	if err := strType.Extension().(*types.VarString).Write(strMeta, strData, "4.2"); err != nil {
		t.Fatalf("write string operand: %v", err)
	}

	b := kernel.NewBuilder()
	if _, err := BuildAssignmentKernel(b, 0, types.Builtin(types.Int32), nil, strType, strMeta, kernel.SingleRequest, types.ErrFractional, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildAssignmentKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	dst := make([]byte, 4)
	if err := SafeInvokeSingle(k, dst, strData); err == nil {
		t.Fatal("expected an error converting \"4.2\" to int32 under ErrFractional mode")
	}
}

// TestStringToInt32AllowsFractionalUnderErrNone covers the same
// "4.2" -> int32 conversion under ErrNone mode, where silent truncation
// is allowed.
func TestStringToInt32AllowsFractionalUnderErrNone(t *testing.T) {
	strType := types.Extended(types.NewVarString(types.EncodingUTF8))
	strMeta := make([]byte, strType.MetadataSize())
	if err := strType.Extension().MetadataDefaultConstruct(strMeta, nil); err != nil {
		t.Fatalf("construct string metadata: %v", err)
	}
	defer strType.Extension().MetadataDestruct(strMeta)

	strData := make([]byte, strType.DataSize())
	if err := strType.Extension().(*types.VarString).Write(strMeta, strData, "4.2"); err != nil {
		t.Fatalf("write string operand: %v", err)
	}

	b := kernel.NewBuilder()
	if _, err := BuildAssignmentKernel(b, 0, types.Builtin(types.Int32), nil, strType, strMeta, kernel.SingleRequest, types.ErrNone, types.DefaultEvalContext); err != nil {
		t.Fatalf("BuildAssignmentKernel: %v", err)
	}
	k := b.Build()
	defer k.Drop()

	dst := make([]byte, 4)
	if err := SafeInvokeSingle(k, dst, strData); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := int32(binary.LittleEndian.Uint32(dst)); got != 4 {
		t.Errorf("dst = %d, want 4", got)
	}
}

func TestBuildAssignmentKernelRejectsUnbridgeablePair(t *testing.T) {
	b := kernel.NewBuilder()
	structType, err := types.NewCStruct([]types.StructField{{Name: "x", Type: types.Builtin(types.Int32)}})
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}
	_, err = BuildAssignmentKernel(b, 0, types.Builtin(types.Int32), nil, types.Extended(structType), nil, kernel.SingleRequest, types.ErrNone, types.DefaultEvalContext)
	if err == nil {
		t.Fatal("expected an UnassignableError for int32 <- cstruct")
	}
}
