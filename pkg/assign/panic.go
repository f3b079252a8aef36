// Package assign implements the assignment and comparison kernel
// resolvers of spec §4.5/§4.6: the dispatch policy that decides, for
// any (dst, src) type pair, which concrete kernel construction applies,
// plus the numeric, string, and datetime conversion kernels themselves.
package assign

import (
	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
)

// raise panics with err as a dyerrors.Violation: a conversion kernel
// calls this when the error mode it was built under rejects the value
// being converted (overflow, fractional truncation, or inexact
// narrowing — spec §4.4/§7). kernel.SingleFn/StridedFn have no error
// return, so a violation discovered mid-invocation has no channel back
// to the caller except a non-local exit — the same role pkg/eval's
// contEscape/shiftEscape panics play for its continuation control
// flow, applied here to carry a typed error instead of a captured
// continuation. dyerrors.Violation is shared with pkg/types, whose own
// extended-type kernels (fixedstring, varstring) raise the same way;
// SafeInvoke* recovers either source at the boundary.
func raise(err error) { dyerrors.Raise(err) }

// SafeInvokeSingle invokes k in single-element mode, recovering any
// conversion-time mode violation into a returned error.
func SafeInvokeSingle(k *kernel.Kernel, dst, src []byte) (err error) {
	defer func() { err = dyerrors.Recover(recover()) }()
	k.InvokeSingle(dst, src)
	return nil
}

// SafeInvokeStrided invokes k in strided mode, recovering any
// conversion-time mode violation into a returned error. On violation,
// elements already converted before the offending one remain written;
// callers that need all-or-nothing semantics should invoke elements
// individually via SafeInvokeSingle instead.
func SafeInvokeStrided(k *kernel.Kernel, dst []byte, dstStride int, src []byte, srcStride int, count int) (err error) {
	defer func() { err = dyerrors.Recover(recover()) }()
	k.InvokeStrided(dst, dstStride, src, srcStride, count)
	return nil
}
