package assign

import (
	"fmt"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
	"dynd/pkg/types"
)

func init() {
	types.BuildFieldAssignmentKernel = BuildAssignmentKernel
}

// BuildAssignmentKernel implements spec §4.5's seven-step dispatch:
// memcpy fast path, expression-layer peeling on dst then src, extended
// vtable dispatch, and cross-kind bridges, in that fixed precedence
// order. offset is accepted for API parity with the vtable's
// MakeAssignmentKernel shape but, like every other producer in this
// module, the builder's own b.Len() is what actually drives append
// positions; the contract guarantees they coincide.
func BuildAssignmentKernel(b *kernel.Builder, offset int, dst types.TypeRef, dstMeta []byte, src types.TypeRef, srcMeta []byte, req kernel.Request, mode types.ErrorMode, ectx *types.EvalContext) (int, error) {
	dstLayers, coreDst, err := peelExpressionLayers(dst)
	if err != nil {
		return offset, err
	}
	srcLayers, coreSrc, err := peelExpressionLayers(src)
	if err != nil {
		return offset, err
	}

	if len(dstLayers) == 0 && len(srcLayers) == 0 {
		return coreAssignmentDispatch(b, b.Len(), coreDst, dstMeta, coreSrc, srcMeta, req, mode, ectx)
	}

	// Reserve the composing sequence node's slot before any child leg is
	// appended, so it lands at the offset the caller already recorded for
	// this build (struct.go's buildStructAssignmentKernel and dim.go's
	// MakeAssignmentKernel both capture b.Len() before calling
	// BuildFieldAssignmentKernel and later b.GetAt that same offset), and
	// at offset 0 for a standalone top-level build, where Builder.Root's
	// fixed nodes[0] convention requires the composing node to be first.
	o, node := b.AppendPrefix()

	srcOffsets, srcBoundaries, err := appendValueChain(b, srcLayers, req, mode, ectx)
	if err != nil {
		return offset, err
	}
	offsets := append([]int{}, srcOffsets...)
	boundaries := append([]int{}, srcBoundaries...)

	coreOffset := b.Len()
	if _, err := coreAssignmentDispatch(b, coreOffset, coreDst, dstMeta, coreSrc, srcMeta, req, mode, ectx); err != nil {
		return offset, err
	}
	offsets = append(offsets, coreOffset)
	if len(dstLayers) > 0 {
		boundaries = append(boundaries, coreDst.DataSize())
	}

	for i := len(dstLayers) - 1; i >= 0; i-- {
		layer := dstLayers[i]
		childOffset := b.Len()
		if _, err := layer.OperandFromValueFn(b, childOffset, req, mode, ectx); err != nil {
			return offset, dyerrors.Wrap(dyerrors.TypeErr, "build dst operand_from_value leg", err)
		}
		offsets = append(offsets, childOffset)
		if i > 0 {
			boundaries = append(boundaries, dstLayers[i-1].OperandType.DataSize())
		}
	}

	populateSequenceNode(node, b, offsets, boundaries)
	return o + 1, nil
}

// appendValueChain builds one ValueFromOperandFn stage per layer
// (outermost first), returning each stage's root offset alongside the
// byte width of the value it produces. Shared between
// BuildAssignmentKernel's src-side peel (where every entry, including
// the last, is a real inter-stage boundary feeding the core conversion
// that follows) and BuildComparisonKernel's read-through decode (which
// drops the final entry — see compare.go — since nothing follows the
// chain but the external comparison itself).
func appendValueChain(b *kernel.Builder, layers []*types.ExpressionType, req kernel.Request, mode types.ErrorMode, ectx *types.EvalContext) ([]int, []int, error) {
	var offsets, boundaries []int
	for _, layer := range layers {
		childOffset := b.Len()
		if _, err := layer.ValueFromOperandFn(b, childOffset, req, mode, ectx); err != nil {
			return nil, nil, dyerrors.Wrap(dyerrors.TypeErr, "build value_from_operand leg", err)
		}
		offsets = append(offsets, childOffset)
		boundaries = append(boundaries, layer.ValueType.DataSize())
	}
	return offsets, boundaries, nil
}

// peelExpressionLayers walks t's expression-type chain outermost first,
// recording each layer, stopping at the first non-expression ValueType.
// The walk is an explicit iteration over t rather than a recursive
// descent, the same preference for an explicit stack over recursive
// calls a trampolined evaluator or an iterative Tarjan walk show,
// capped at types.MaxExpressionDepth so a malformed or cyclic
// expression chain cannot recurse the builder into a stack overflow.
func peelExpressionLayers(t types.TypeRef) ([]*types.ExpressionType, types.TypeRef, error) {
	var layers []*types.ExpressionType
	cur := t
	for cur.IsExpression() {
		if len(layers) >= types.MaxExpressionDepth {
			return nil, t, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("expression nesting in %s exceeds maximum depth", t))
		}
		expr := cur.Extension().(*types.ExpressionType)
		layers = append(layers, expr)
		cur = expr.ValueType
	}
	return layers, cur, nil
}

// coreAssignmentDispatch handles the core dispatch steps once dst and
// src are known not to be expression types.
func coreAssignmentDispatch(b *kernel.Builder, offset int, dst types.TypeRef, dstMeta []byte, src types.TypeRef, srcMeta []byte, req kernel.Request, mode types.ErrorMode, ectx *types.EvalContext) (int, error) {
	resolved := mode.Resolve(ectx)

	// Step 1 (generalized to any builtin pair, not only identical ones:
	// a differing-type builtin<->builtin assignment is the base numeric
	// conversion case every other step eventually bottoms out to, and
	// no other clause below claims it).
	if dst.IsBuiltin() && src.IsBuiltin() {
		if dst.TypeID() == src.TypeID() {
			return appendMemcpyKernel(b, dst.DataSize())
		}
		return appendBuiltinConversionKernel(b, dst.TypeID(), src.TypeID(), resolved)
	}

	// Step 4: dst extended, src built-in.
	if dst.IsExtended() && src.IsBuiltin() {
		if o, err := dst.Extension().MakeAssignmentKernel(b, offset, dst, dstMeta, src, srcMeta, req, mode, ectx); err == nil {
			return o, nil
		}
	}

	// Step 5: both extended, same kind — dst first, src as fallback.
	if dst.IsExtended() && src.IsExtended() && dst.Kind() == src.Kind() {
		if o, err := dst.Extension().MakeAssignmentKernel(b, offset, dst, dstMeta, src, srcMeta, req, mode, ectx); err == nil {
			return o, nil
		}
		if o, err := src.Extension().MakeAssignmentKernel(b, offset, dst, dstMeta, src, srcMeta, req, mode, ectx); err == nil {
			return o, nil
		}
	}

	// Step 6: a defined cross-kind (or same-kind-but-vtable-refused)
	// bridge. Tried whenever steps 1/4/5 didn't already resolve it,
	// which covers src-extended/dst-builtin pairs (string -> numeric)
	// and same-kind pairs whose vtable dispatch declined (fixedstring
	// <-> varstring, bytes <-> fixedbytes).
	if o, err, handled := tryBridge(b, dst, dstMeta, src, srcMeta, resolved, ectx); handled {
		return o, err
	}

	// Step 7.
	return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot assign %s from %s", dst, src))
}

func appendMemcpyKernel(b *kernel.Builder, n int) (int, error) {
	o, node := b.AppendPrefix()
	node.Single = func(dst, src []byte, _ *kernel.Node) {
		copy(dst[:n], src[:n])
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return o + 1, nil
}

func appendBuiltinConversionKernel(b *kernel.Builder, dstID, srcID types.TypeID, mode types.ErrorMode) (int, error) {
	o, node := b.AppendPrefix()
	node.Single = func(dst, src []byte, _ *kernel.Node) {
		copy(dst, convertBuiltin(dstID, srcID, src, mode))
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return o + 1, nil
}

// tryBridge dispatches step 6's named bridges by concrete descriptor
// pair: bytes<->fixedbytes, fixedstring<->varstring, string<->numeric,
// datetime<->struct, datetime<->string. handled reports whether a
// bridge matched the pair at all, distinct from err, which reports
// whether the matched bridge itself could build a kernel (an
// unsupported width or missing field is a real error, not "no bridge").
func tryBridge(b *kernel.Builder, dst types.TypeRef, dstMeta []byte, src types.TypeRef, srcMeta []byte, mode types.ErrorMode, ectx *types.EvalContext) (int, error, bool) {
	dstExt, srcExt := dst.Extension(), src.Extension()

	_, dstBytes := dstExt.(*types.Bytes)
	_, srcBytes := srcExt.(*types.Bytes)
	_, dstFixedBytes := dstExt.(*types.FixedBytes)
	_, srcFixedBytes := srcExt.(*types.FixedBytes)
	if (dstBytes && srcFixedBytes) || (dstFixedBytes && srcBytes) {
		o, err := buildBytesFixedBytesBridgeKernel(b, dst, src)
		return o, err, true
	}

	_, dstDate := dstExt.(*types.DateTime)
	_, srcDate := srcExt.(*types.DateTime)
	if dstDate || srcDate {
		if isStringType(dst) || isStringType(src) {
			o, err := buildDateTimeStringBridgeKernel(b, dst, dstMeta, src, srcMeta)
			return o, err, true
		}
		_, dstIsCStruct := dstExt.(*types.CStruct)
		_, srcIsCStruct := srcExt.(*types.CStruct)
		if dstIsCStruct || srcIsCStruct {
			o, err := buildDateTimeStructBridgeKernel(b, dst, src)
			return o, err, true
		}
	}

	dstIsStr, srcIsStr := isStringType(dst), isStringType(src)
	if dstIsStr && srcIsStr {
		o, err := buildFixedWidthStringBridgeKernel(b, dst, dstMeta, src, srcMeta)
		return o, err, true
	}
	if dstIsStr != srcIsStr {
		numSide := dst
		if dstIsStr {
			numSide = src
		}
		if numSide.IsBuiltin() {
			o, err := buildStringNumericAssignmentKernel(b, dst, dstMeta, src, srcMeta, mode, ectx)
			return o, err, true
		}
	}

	return 0, nil, false
}

// sequenceState threads each stage's output into the next stage's input
// through a freshly allocated scratch buffer, the plumbing
// BuildAssignmentKernel needs when one or both sides peel through
// expression layers before the core dst<-src conversion can run. The
// loop over offsets is the same flat, non-recursive composition shape
// struct.go's structAssignState and dim.go's element-wise iteration use
// for their own child kernels.
type sequenceState struct {
	builder *kernel.Builder
	offsets []int
	scratch [][]byte
}

func (st *sequenceState) invokeSingle(dst, src []byte, _ *kernel.Node) {
	in := src
	for i, off := range st.offsets {
		child := st.builder.GetAt(off)
		out := dst
		if i < len(st.offsets)-1 {
			out = st.scratch[i]
		}
		child.Single(out, in, child)
		in = out
	}
}

// populateSequenceNode fills in an already-reserved node (see
// BuildAssignmentKernel) to invoke offsets in order, threading each
// stage's output into the next through a scratch buffer. boundaries
// holds the byte width of the scratch buffer between consecutive stages
// (len(offsets)-1 entries).
func populateSequenceNode(node *kernel.Node, b *kernel.Builder, offsets []int, boundaries []int) {
	st := &sequenceState{builder: b, offsets: offsets}
	st.scratch = make([][]byte, len(boundaries))
	for i, size := range boundaries {
		st.scratch[i] = make([]byte, size)
	}
	node.Single = st.invokeSingle
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	node.State = st
}

// appendSequenceKernel composes offsets (each already built against
// this builder) into one freshly appended kernel node equivalent to
// invoking them in order. Safe to use when nothing needs the composing
// node to land at a pre-recorded offset (see compare.go's
// buildDecodeLeg, which captures whatever offset comes back rather than
// committing to one up front).
func appendSequenceKernel(b *kernel.Builder, offsets []int, boundaries []int) (int, *kernel.Node) {
	o, node := b.AppendPrefix()
	populateSequenceNode(node, b, offsets, boundaries)
	return o, node
}
