package assign

import (
	"cmp"
	"fmt"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
	"dynd/pkg/types"
)

func init() {
	types.BuildFieldComparisonKernel = BuildComparisonKernel
}

// BuildComparisonKernel implements spec §4.6: builds <, <=, ==, !=, >=,
// > kernels, peeling expression layers on both operands first (reading
// through a lazy cast or view must compare its value, not its raw
// storage — the comparison analogue of §4.5's dst/src expression
// peeling), then dispatching to the extended vtable, a same-kind string
// bridge, or a built-in numeric compare. Cross-kind comparison is
// allowed only when lossless bi-directional promotion exists; otherwise
// NotComparableError.
func BuildComparisonKernel(b *kernel.Builder, offset int, lhs types.TypeRef, lhsMeta []byte, rhs types.TypeRef, rhsMeta []byte, op types.CompareOp, ectx *types.EvalContext) (int, error) {
	lhsLayers, coreLhs, err := peelExpressionLayers(lhs)
	if err != nil {
		return offset, err
	}
	rhsLayers, coreRhs, err := peelExpressionLayers(rhs)
	if err != nil {
		return offset, err
	}

	if len(lhsLayers) == 0 && len(rhsLayers) == 0 {
		return coreComparisonDispatch(b, b.Len(), coreLhs, lhsMeta, coreRhs, rhsMeta, op, ectx)
	}

	// Reserve the composing node's slot before any decode leg or the core
	// comparison is appended, for the same reason BuildAssignmentKernel
	// does in resolve.go: a caller (e.g. dim.go's MakeComparisonKernel)
	// captures b.Len() before calling BuildFieldComparisonKernel and
	// later looks the child kernel up at that same offset, and a
	// standalone top-level build needs the composing node at offset 0 for
	// Builder.Root to find it.
	o, node := b.AppendPrefix()
	st := &exprCompareState{builder: b}

	lhsDecode, err := buildDecodeLeg(b, lhsLayers, ectx)
	if err != nil {
		return offset, err
	}
	rhsDecode, err := buildDecodeLeg(b, rhsLayers, ectx)
	if err != nil {
		return offset, err
	}

	coreOffset := b.Len()
	if _, err := coreComparisonDispatch(b, coreOffset, coreLhs, lhsMeta, coreRhs, rhsMeta, op, ectx); err != nil {
		return offset, err
	}

	st.core = coreOffset
	st.lhs = lhsDecode
	st.rhs = rhsDecode
	if lhsDecode != nil {
		st.lhsScratch = make([]byte, coreLhs.DataSize())
	}
	if rhsDecode != nil {
		st.rhsScratch = make([]byte, coreRhs.DataSize())
	}
	node.State = st
	node.Compare = st.invoke
	return o + 1, nil
}

// decodeLeg is nil when an operand needed no expression peeling (it is
// compared directly from its caller-supplied bytes); otherwise it names
// the root offset of that operand's ValueFromOperandFn chain.
type decodeLeg struct {
	root int
}

// buildDecodeLeg appends layers' ValueFromOperandFn chain (read-only,
// spec §4.6 has no error mode of its own to thread through, so ErrNone
// is used — a decode step here only ever narrows storage into a value
// representation, never performs a numeric range check) and wraps
// multi-layer chains into one callable root via appendSequenceKernel.
func buildDecodeLeg(b *kernel.Builder, layers []*types.ExpressionType, ectx *types.EvalContext) (*decodeLeg, error) {
	if len(layers) == 0 {
		return nil, nil
	}
	offsets, boundaries, err := appendValueChain(b, layers, kernel.SingleRequest, types.ErrNone, ectx)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 1 {
		return &decodeLeg{root: offsets[0]}, nil
	}
	o, _ := appendSequenceKernel(b, offsets, boundaries[:len(boundaries)-1])
	return &decodeLeg{root: o}, nil
}

// exprCompareState decodes each operand that needed expression peeling
// into its own scratch buffer, then delegates to the core comparison
// kernel built against the peeled (value) types.
type exprCompareState struct {
	builder    *kernel.Builder
	core       int
	lhs, rhs   *decodeLeg
	lhsScratch []byte
	rhsScratch []byte
}

func (st *exprCompareState) invoke(lhs, rhs []byte, _ *kernel.Node) bool {
	lv, rv := lhs, rhs
	if st.lhs != nil {
		node := st.builder.GetAt(st.lhs.root)
		node.Single(st.lhsScratch, lhs, node)
		lv = st.lhsScratch
	}
	if st.rhs != nil {
		node := st.builder.GetAt(st.rhs.root)
		node.Single(st.rhsScratch, rhs, node)
		rv = st.rhsScratch
	}
	core := st.builder.GetAt(st.core)
	return core.Compare(lv, rv, core)
}

// coreComparisonDispatch handles §4.6 once lhs/rhs are known not to be
// expression types: extended vtable dispatch (lhs preferred, rhs as
// fallback, mirroring §4.5 step 5's dst-then-src precedence), built-in
// numeric comparison, the string-kind bridge for fixedstring<->varstring
// pairs the vtable itself declines, and finally the lossless-promotion
// gate spec §4.6 states as the general cross-type rule.
func coreComparisonDispatch(b *kernel.Builder, offset int, lhs types.TypeRef, lhsMeta []byte, rhs types.TypeRef, rhsMeta []byte, op types.CompareOp, ectx *types.EvalContext) (int, error) {
	if lhs.IsExtended() && lhs.Kind() == rhs.Kind() {
		if o, err := lhs.Extension().MakeComparisonKernel(b, offset, lhs, lhsMeta, rhs, rhsMeta, op, ectx); err == nil {
			return o, nil
		}
	}
	if rhs.IsExtended() && lhs.Kind() == rhs.Kind() {
		if o, err := rhs.Extension().MakeComparisonKernel(b, offset, lhs, lhsMeta, rhs, rhsMeta, op, ectx); err == nil {
			return o, nil
		}
	}

	if lhs.IsBuiltin() && rhs.IsBuiltin() {
		return appendBuiltinCompareKernel(b, lhs.TypeID(), rhs.TypeID(), op)
	}

	if isStringType(lhs) && isStringType(rhs) {
		return appendStringCompareKernel(b, lhs, lhsMeta, rhs, rhsMeta, op)
	}

	if lhs.IsLosslessAssignmentFrom(rhs) || rhs.IsLosslessAssignmentFrom(lhs) {
		return offset, dyerrors.New(dyerrors.Misuse, fmt.Sprintf("%s / %s: lossless promotion exists but has no registered comparison path", lhs, rhs))
	}

	return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("cannot compare %s to %s", lhs, rhs))
}

func appendStringCompareKernel(b *kernel.Builder, lhs types.TypeRef, lhsMeta []byte, rhs types.TypeRef, rhsMeta []byte, op types.CompareOp) (int, error) {
	o, node := b.AppendPrefix()
	node.Compare = func(l, r []byte, _ *kernel.Node) bool {
		ls, lerr := readString(lhs, lhsMeta, l)
		rs, rerr := readString(rhs, rhsMeta, r)
		if lerr != nil || rerr != nil {
			return op == types.CmpNE
		}
		return op.Apply(cmp.Compare(ls, rs))
	}
	return o + 1, nil
}

// appendBuiltinCompareKernel builds a comparison between two built-in
// scalar TypeIDs, same or differing numeric domain (spec §4.6 places no
// promotion gate on built-in<->built-in comparison — only on comparison
// across extended types — so this always succeeds for any non-complex
// pair, and for complex pairs restricted to ==/!=, since complex values
// have no total order).
func appendBuiltinCompareKernel(b *kernel.Builder, lhsID, rhsID types.TypeID, op types.CompareOp) (int, error) {
	lhsKind, rhsKind := numKindOf(lhsID), numKindOf(rhsID)
	if (lhsKind == numComplex || rhsKind == numComplex) && op != types.CmpEQ && op != types.CmpNE {
		return 0, dyerrors.New(dyerrors.NotComparable, "complex values have no ordering")
	}
	o, node := b.AppendPrefix()
	node.Compare = func(l, r []byte, _ *kernel.Node) bool {
		c, eq := compareBuiltin(lhsID, lhsKind, l, rhsID, rhsKind, r)
		switch op {
		case types.CmpEQ:
			return eq
		case types.CmpNE:
			return !eq
		default:
			return op.Apply(c)
		}
	}
	return o + 1, nil
}

func compareBuiltin(lhsID types.TypeID, lhsKind numKind, l []byte, rhsID types.TypeID, rhsKind numKind, r []byte) (c int, eq bool) {
	if lhsKind == numComplex || rhsKind == numComplex {
		lre, lim := complexParts(lhsID, lhsKind, l)
		rre, rim := complexParts(rhsID, rhsKind, r)
		return 0, lre == rre && lim == rim
	}
	if lhsKind == rhsKind {
		switch lhsKind {
		case numSigned:
			lv, rv := decodeSigned(lhsID, l), decodeSigned(rhsID, r)
			return cmp.Compare(lv, rv), lv == rv
		case numUnsigned:
			lv, rv := decodeUnsigned(lhsID, l), decodeUnsigned(rhsID, r)
			return cmp.Compare(lv, rv), lv == rv
		case numFloat:
			lv, rv := decodeFloat(lhsID, l), decodeFloat(rhsID, r)
			return cmp.Compare(lv, rv), lv == rv
		case numBool:
			lv, rv := decodeBool(l), decodeBool(r)
			return cmp.Compare(boolToInt(lv), boolToInt(rv)), lv == rv
		}
	}
	// Mixed numeric domains (signed vs unsigned, either vs float, bool vs
	// either): widen both to float64 for ordering purposes. This loses
	// precision for int64/uint64 magnitudes beyond 2^53, the same
	// deliberate float64-intermediate simplification convertBuiltin
	// already makes for cross-kind numeric conversion.
	lv, rv := asFloat64(lhsID, lhsKind, l), asFloat64(rhsID, rhsKind, r)
	return cmp.Compare(lv, rv), lv == rv
}

func asFloat64(id types.TypeID, kind numKind, data []byte) float64 {
	switch kind {
	case numBool:
		return float64(boolToInt(decodeBool(data)))
	case numSigned:
		return float64(decodeSigned(id, data))
	case numUnsigned:
		return float64(decodeUnsigned(id, data))
	case numFloat:
		return decodeFloat(id, data)
	default:
		return 0
	}
}

func complexParts(id types.TypeID, kind numKind, data []byte) (re, im float64) {
	if kind == numComplex {
		return decodeComplex(id, data)
	}
	return asFloat64(id, kind, data), 0
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
