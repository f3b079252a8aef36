package assign

import (
	"encoding/binary"
	"fmt"
	"math"

	"dynd/pkg/dyerrors"
	"dynd/pkg/fpstatus"
	"dynd/pkg/types"
)

// numKind is the coarse numeric domain a built-in TypeID falls into,
// the axis convertBuiltin dispatches on before narrowing to a concrete
// width (spec §4.4's "numeric ⇒ numeric" contract).
type numKind int

const (
	numBool numKind = iota
	numSigned
	numUnsigned
	numFloat
	numComplex
	numVoid
)

func numKindOf(id types.TypeID) numKind {
	switch {
	case id == types.Bool:
		return numBool
	case id.IsSigned():
		return numSigned
	case id.IsUnsigned():
		return numUnsigned
	case id.IsFloat():
		return numFloat
	case id.IsComplex():
		return numComplex
	default:
		return numVoid
	}
}

func decodeBool(data []byte) bool { return data[0] != 0 }

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// decodeSigned/decodeUnsigned/decodeFloat/decodeComplex and their
// encode counterparts read and write a built-in scalar's raw
// little-endian bytes, the same wire convention
// pkg/types/struct.go's printBuiltinValue already decodes for display.

func decodeSigned(id types.TypeID, data []byte) int64 {
	switch id {
	case types.Int8:
		return int64(int8(data[0]))
	case types.Int16:
		return int64(int16(binary.LittleEndian.Uint16(data)))
	case types.Int32:
		return int64(int32(binary.LittleEndian.Uint32(data)))
	case types.Int64:
		return int64(binary.LittleEndian.Uint64(data))
	default:
		return 0
	}
}

func encodeSigned(id types.TypeID, v int64) []byte {
	buf := make([]byte, id.DataSize())
	switch id {
	case types.Int8:
		buf[0] = byte(int8(v))
	case types.Int16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case types.Int32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case types.Int64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}
	return buf
}

func decodeUnsigned(id types.TypeID, data []byte) uint64 {
	switch id {
	case types.Uint8:
		return uint64(data[0])
	case types.Uint16:
		return uint64(binary.LittleEndian.Uint16(data))
	case types.Uint32:
		return uint64(binary.LittleEndian.Uint32(data))
	case types.Uint64:
		return binary.LittleEndian.Uint64(data)
	default:
		return 0
	}
}

func encodeUnsigned(id types.TypeID, v uint64) []byte {
	buf := make([]byte, id.DataSize())
	switch id {
	case types.Uint8:
		buf[0] = byte(v)
	case types.Uint16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case types.Uint32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case types.Uint64:
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}

func decodeFloat(id types.TypeID, data []byte) float64 {
	switch id {
	case types.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case types.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data))
	default:
		return 0
	}
}

func encodeFloat32(v float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

func encodeFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeComplex(id types.TypeID, data []byte) (re, im float64) {
	switch id {
	case types.Complex64:
		re = float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
		im = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4:])))
	case types.Complex128:
		re = math.Float64frombits(binary.LittleEndian.Uint64(data))
		im = math.Float64frombits(binary.LittleEndian.Uint64(data[8:]))
	}
	return re, im
}

func encodeComplex(id types.TypeID, re, im float64) []byte {
	buf := make([]byte, id.DataSize())
	switch id {
	case types.Complex64:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(re)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(im)))
	case types.Complex128:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(re))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(im))
	}
	return buf
}

func signedRange(id types.TypeID) (min, max int64) {
	switch id {
	case types.Int8:
		return math.MinInt8, math.MaxInt8
	case types.Int16:
		return math.MinInt16, math.MaxInt16
	case types.Int32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func unsignedMax(id types.TypeID) uint64 {
	switch id {
	case types.Uint8:
		return math.MaxUint8
	case types.Uint16:
		return math.MaxUint16
	case types.Uint32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// signedExactInFloat/unsignedExactInFloat report whether an integer
// magnitude is within the mantissa precision of float64 (53 bits) or
// float32 (24 bits) — the exactness boundary IEEE 754 actually
// guarantees, rather than the coarser byte-width cutoff
// builtin.go's losslessIntoFloat uses for the static, value-independent
// IsLosslessAssignmentFrom check.
func signedExactInFloat(v int64, f32 bool) bool {
	mag := v
	if mag < 0 {
		mag = -mag
	}
	limit := int64(1) << 53
	if f32 {
		limit = int64(1) << 24
	}
	return mag <= limit
}

func unsignedExactInFloat(v uint64, f32 bool) bool {
	limit := uint64(1) << 53
	if f32 {
		limit = uint64(1) << 24
	}
	return v <= limit
}

// enforceMode raises a dyerrors.Violation matching mode's strictness if
// st records a violation mode cares about. mode must already be
// resolved (ErrDefault expanded) before this is called.
func enforceMode(mode types.ErrorMode, st *fpstatus.Status) {
	switch mode {
	case types.ErrNone:
		return
	case types.ErrOverflow:
		if st.IsOverflow() {
			raise(dyerrors.New(dyerrors.OverflowErr, "conversion overflowed destination range"))
		}
	case types.ErrFractional:
		if st.IsOverflow() {
			raise(dyerrors.New(dyerrors.OverflowErr, "conversion overflowed destination range"))
		}
		if st.IsInexact() {
			raise(dyerrors.New(dyerrors.OverflowErr, "conversion dropped a fractional part"))
		}
	case types.ErrInexact:
		if st.IsOverflow() {
			raise(dyerrors.New(dyerrors.OverflowErr, "conversion overflowed destination range"))
		}
		if st.IsInexact() {
			raise(dyerrors.New(dyerrors.InexactErr, "conversion is not exactly representable"))
		}
	}
}

// convertBuiltin converts one built-in scalar value, already decoded
// from src, into dstID's representation, raising a dyerrors.Violation
// if mode rejects the result. mode must already be resolved.
func convertBuiltin(dstID, srcID types.TypeID, src []byte, mode types.ErrorMode) []byte {
	srcKind, dstKind := numKindOf(srcID), numKindOf(dstID)
	if srcKind == numVoid || dstKind == numVoid {
		raise(dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot convert %s to %s", srcID.Name(), dstID.Name())))
	}

	if srcKind == numBool {
		v := int64(0)
		if decodeBool(src) {
			v = 1
		}
		if dstKind == numBool {
			return encodeBool(v != 0)
		}
		return encodeFromSigned(dstID, dstKind, v, mode)
	}
	if dstKind == numBool {
		return encodeBool(isNonzero(srcKind, srcID, src))
	}

	switch srcKind {
	case numSigned:
		return encodeFromSigned(dstID, dstKind, decodeSigned(srcID, src), mode)
	case numUnsigned:
		return encodeFromUnsigned(dstID, dstKind, decodeUnsigned(srcID, src), mode)
	case numFloat:
		return encodeFromFloat(dstID, dstKind, decodeFloat(srcID, src), mode)
	case numComplex:
		re, im := decodeComplex(srcID, src)
		return encodeFromComplex(dstID, dstKind, re, im, mode)
	default:
		raise(dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot convert %s to %s", srcID.Name(), dstID.Name())))
		return nil
	}
}

func isNonzero(kind numKind, id types.TypeID, data []byte) bool {
	switch kind {
	case numSigned:
		return decodeSigned(id, data) != 0
	case numUnsigned:
		return decodeUnsigned(id, data) != 0
	case numFloat:
		return decodeFloat(id, data) != 0
	case numComplex:
		re, im := decodeComplex(id, data)
		return re != 0 || im != 0
	default:
		return false
	}
}

func encodeFromSigned(dstID types.TypeID, dstKind numKind, v int64, mode types.ErrorMode) []byte {
	switch dstKind {
	case numSigned:
		lo, hi := signedRange(dstID)
		if v < lo || v > hi {
			enforceOverflow(mode)
		}
		return encodeSigned(dstID, v)
	case numUnsigned:
		max := unsignedMax(dstID)
		if v < 0 || uint64(v) > max {
			enforceOverflow(mode)
		}
		return encodeUnsigned(dstID, uint64(v))
	case numFloat:
		f32 := dstID == types.Float32
		if mode == types.ErrInexact && !signedExactInFloat(v, f32) {
			raise(dyerrors.New(dyerrors.InexactErr, "integer is not exactly representable in the destination float type"))
		}
		if f32 {
			return encodeFloat32(float32(v))
		}
		return encodeFloat64(float64(v))
	case numComplex:
		return encodeComplex(dstID, float64(v), 0)
	default:
		raise(dyerrors.New(dyerrors.TypeErr, "unsupported numeric destination"))
		return nil
	}
}

func encodeFromUnsigned(dstID types.TypeID, dstKind numKind, v uint64, mode types.ErrorMode) []byte {
	switch dstKind {
	case numSigned:
		_, hi := signedRange(dstID)
		if v > uint64(hi) {
			enforceOverflow(mode)
		}
		return encodeSigned(dstID, int64(v))
	case numUnsigned:
		if v > unsignedMax(dstID) {
			enforceOverflow(mode)
		}
		return encodeUnsigned(dstID, v)
	case numFloat:
		f32 := dstID == types.Float32
		if mode == types.ErrInexact && !unsignedExactInFloat(v, f32) {
			raise(dyerrors.New(dyerrors.InexactErr, "integer is not exactly representable in the destination float type"))
		}
		if f32 {
			return encodeFloat32(float32(v))
		}
		return encodeFloat64(float64(v))
	case numComplex:
		return encodeComplex(dstID, float64(v), 0)
	default:
		raise(dyerrors.New(dyerrors.TypeErr, "unsupported numeric destination"))
		return nil
	}
}

func encodeFromFloat(dstID types.TypeID, dstKind numKind, v float64, mode types.ErrorMode) []byte {
	switch dstKind {
	case numSigned:
		lo, hi := signedRange(dstID)
		truncated := math.Trunc(v)
		st := fpstatus.Clear()
		st.NoteIntegerTruncation(v, truncated, truncated >= float64(lo) && truncated <= float64(hi))
		enforceMode(mode, st)
		return encodeSigned(dstID, int64(truncated))
	case numUnsigned:
		max := unsignedMax(dstID)
		truncated := math.Trunc(v)
		st := fpstatus.Clear()
		st.NoteIntegerTruncation(v, truncated, truncated >= 0 && truncated <= float64(max))
		enforceMode(mode, st)
		if truncated < 0 {
			return encodeUnsigned(dstID, 0)
		}
		return encodeUnsigned(dstID, uint64(truncated))
	case numFloat:
		if dstID == types.Float32 {
			narrowed := float32(v)
			st := fpstatus.Clear()
			st.NoteFloat32(v, narrowed)
			enforceMode(mode, st)
			return encodeFloat32(narrowed)
		}
		return encodeFloat64(v)
	case numComplex:
		return encodeComplex(dstID, v, 0)
	default:
		raise(dyerrors.New(dyerrors.TypeErr, "unsupported numeric destination"))
		return nil
	}
}

func encodeFromComplex(dstID types.TypeID, dstKind numKind, re, im float64, mode types.ErrorMode) []byte {
	if dstKind == numComplex {
		if dstID == types.Complex64 {
			st := fpstatus.Clear()
			st.NoteFloat32(re, float32(re))
			st.NoteFloat32(im, float32(im))
			enforceMode(mode, st)
		}
		return encodeComplex(dstID, re, im)
	}
	// Narrowing a complex value into a real domain drops the imaginary
	// part — allowed under every mode except inexact, where a non-zero
	// imaginary part is itself a lossy narrowing.
	if im != 0 && mode == types.ErrInexact {
		raise(dyerrors.New(dyerrors.InexactErr, "conversion drops a non-zero imaginary part"))
	}
	return encodeFromFloat(dstID, dstKind, re, mode)
}

func enforceOverflow(mode types.ErrorMode) {
	if mode != types.ErrNone {
		raise(dyerrors.New(dyerrors.OverflowErr, "conversion overflowed destination range"))
	}
}
