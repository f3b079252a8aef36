package types

import (
	"fmt"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
)

// KernelFactory builds one leg of an expression's value<->operand
// conversion, appending to b at offset and returning the offset past
// what it appended (spec §4.2's "Expression types").
type KernelFactory func(b *kernel.Builder, offset int, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error)

// ExpressionType models a type with a distinguished value_type (what it
// looks like to consumers) and operand_type (what its storage looks
// like) — the mechanism behind lazy casts, property access, byteswaps,
// and views (spec §4.2). Storage (data size/alignment/metadata) mirrors
// OperandType; reading through an expression type must produce
// ValueType, which is exactly what ValueFromOperand/OperandFromValue
// implement.
type ExpressionType struct {
	Name               string
	ValueType          TypeRef
	OperandType        TypeRef
	ValueFromOperandFn KernelFactory
	OperandFromValueFn KernelFactory
}

var _ Descriptor = (*ExpressionType)(nil)

// NewConvertExpression builds a lazy-conversion expression type: storage
// is operandType, but every read/write converts through valueType — the
// "convert_type" case of DyND's expr_type family (spec §4.2's
// expression category covers lazy casts, property access, byteswaps,
// and views generally; convert is the cast case). Both legs are built
// by handing the pair straight to the assignment resolver
// (BuildFieldAssignmentKernel), so whatever conversion path the
// resolver would pick for valueType<->operandType directly is exactly
// the path a read/write through this expression type takes. Only
// builtin value/operand types are supported here (metadata is passed as
// nil to the resolver); an extended pair needing per-instance metadata
// would need a variant that threads metadata through.
func NewConvertExpression(valueType, operandType TypeRef) *ExpressionType {
	return &ExpressionType{
		Name:        "convert",
		ValueType:   valueType,
		OperandType: operandType,
		ValueFromOperandFn: func(b *kernel.Builder, offset int, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
			if BuildFieldAssignmentKernel == nil {
				return offset, dyerrors.New(dyerrors.Misuse, "assignment resolver not initialized")
			}
			return BuildFieldAssignmentKernel(b, offset, valueType, nil, operandType, nil, req, mode, ectx)
		},
		OperandFromValueFn: func(b *kernel.Builder, offset int, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
			if BuildFieldAssignmentKernel == nil {
				return offset, dyerrors.New(dyerrors.Misuse, "assignment resolver not initialized")
			}
			return BuildFieldAssignmentKernel(b, offset, operandType, nil, valueType, nil, req, mode, ectx)
		},
	}
}

func (e *ExpressionType) Kind() Kind { return KindExpression }

func (e *ExpressionType) DataSize() int      { return e.OperandType.DataSize() }
func (e *ExpressionType) DataAlignment() int { return e.OperandType.DataAlignment() }
func (e *ExpressionType) MetadataSize() int  { return e.OperandType.MetadataSize() }

func (e *ExpressionType) Flags() Flags {
	return e.OperandType.Flags() | FlagOperandInherited
}

func (e *ExpressionType) PrintType() string {
	return fmt.Sprintf("expr<%s, op=%s, from=%s>", e.ValueType, e.Name, e.OperandType)
}

func (e *ExpressionType) PrintData(metadata, data []byte) string {
	if ext := e.OperandType.Extension(); ext != nil {
		return ext.PrintData(metadata, data)
	}
	return fmt.Sprintf("<%d raw bytes>", len(data))
}

func (e *ExpressionType) Equal(other Descriptor) bool {
	o, ok := other.(*ExpressionType)
	if !ok {
		return false
	}
	return e.Name == o.Name && e.ValueType.Equal(o.ValueType) && e.OperandType.Equal(o.OperandType)
}

func (e *ExpressionType) IsLosslessAssignmentFrom(src TypeRef) bool {
	return e.ValueType.IsLosslessAssignmentFrom(src)
}

func (e *ExpressionType) MetadataDefaultConstruct(buf []byte, shape []int) error {
	if ext := e.OperandType.Extension(); ext != nil {
		return ext.MetadataDefaultConstruct(buf, shape)
	}
	return nil
}

func (e *ExpressionType) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	if ext := e.OperandType.Extension(); ext != nil {
		return ext.MetadataCopyConstruct(dst, src, embedded)
	}
	return nil
}

func (e *ExpressionType) MetadataReset(buf []byte, shape []int) error {
	if ext := e.OperandType.Extension(); ext != nil {
		return ext.MetadataReset(buf, shape)
	}
	return nil
}

func (e *ExpressionType) MetadataFinalize(buf []byte) {
	if ext := e.OperandType.Extension(); ext != nil {
		ext.MetadataFinalize(buf)
	}
}

func (e *ExpressionType) MetadataDestruct(buf []byte) {
	if ext := e.OperandType.Extension(); ext != nil {
		ext.MetadataDestruct(buf)
	}
}

func (e *ExpressionType) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if ext := e.OperandType.Extension(); ext != nil {
		return ext.ApplyLinearIndex(args)
	}
	return ApplyLinearIndexResult{}, nil
}

// MakeAssignmentKernel is not called directly by the resolver: per spec
// §4.5 steps 2/3, the resolver splits an expression dst/src into its
// value/operand pair before ever consulting a vtable method, so this
// implementation only guards against accidental direct use.
func (e *ExpressionType) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	return offset, dyerrors.New(dyerrors.Misuse, "expression types are unwrapped by the assignment resolver before MakeAssignmentKernel is called")
}

func (e *ExpressionType) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	return offset, dyerrors.New(dyerrors.Misuse, "expression types are unwrapped before comparison kernel construction")
}

func (e *ExpressionType) GetShape() []int {
	if ext := e.OperandType.Extension(); ext != nil {
		return ext.GetShape()
	}
	return nil
}

// MaxExpressionDepth bounds the resolver's iterative expression-peeling
// walk (spec §9's open design note).
const MaxExpressionDepth = 64
