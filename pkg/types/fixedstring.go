package types

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
)

// StringEncoding names a fixedstring's code unit width and charset, the
// same four encodings original_source/src/dynd/types/fixedstring_type.cpp
// supports.
type StringEncoding int

const (
	EncodingASCII StringEncoding = iota
	EncodingUTF8
	EncodingUTF16
	EncodingUTF32
)

func (e StringEncoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingUTF8:
		return "utf8"
	case EncodingUTF16:
		return "utf16"
	case EncodingUTF32:
		return "utf32"
	default:
		return "unknown"
	}
}

func (e StringEncoding) codeUnitSize() int {
	switch e {
	case EncodingUTF16:
		return 2
	case EncodingUTF32:
		return 4
	default:
		return 1
	}
}

// FixedString is a fixed-width, NUL-padded string buffer: a fixed number
// of code units in a fixed encoding, baked into the type like any other
// POD scalar (spec §4.2's "Fixed string" family).
type FixedString struct {
	numUnits int
	encoding StringEncoding
}

var _ Descriptor = (*FixedString)(nil)

// NewFixedString builds a fixedstring type holding up to numUnits code
// units of the given encoding.
func NewFixedString(numUnits int, encoding StringEncoding) (*FixedString, error) {
	if numUnits <= 0 {
		return nil, dyerrors.New(dyerrors.ValueErr, "fixedstring size must be positive")
	}
	return &FixedString{numUnits: numUnits, encoding: encoding}, nil
}

func (fs *FixedString) Kind() Kind { return KindString }
func (fs *FixedString) DataSize() int {
	return fs.numUnits * fs.encoding.codeUnitSize()
}
func (fs *FixedString) DataAlignment() int { return fs.encoding.codeUnitSize() }
func (fs *FixedString) MetadataSize() int  { return 0 }
func (fs *FixedString) Flags() Flags       { return FlagScalar | FlagZeroInit }

func (fs *FixedString) PrintType() string {
	return fmt.Sprintf("fixedstring[%d,%s]", fs.numUnits, quoteShape(fs.encoding.String()))
}

func (fs *FixedString) PrintData(metadata, data []byte) string {
	s, err := fs.DecodeUTF8(data)
	if err != nil {
		return fmt.Sprintf("<invalid %s data>", fs.encoding)
	}
	return fmt.Sprintf("%q", s)
}

func (fs *FixedString) Equal(other Descriptor) bool {
	o, ok := other.(*FixedString)
	return ok && fs.numUnits == o.numUnits && fs.encoding == o.encoding
}

func (fs *FixedString) IsLosslessAssignmentFrom(src TypeRef) bool {
	o, ok := src.Extension().(*FixedString)
	if !ok {
		return false
	}
	if fs.encoding == o.encoding {
		return fs.numUnits >= o.numUnits
	}
	// Every ASCII code unit occupies exactly one code unit in any wider
	// encoding, so widening an ASCII source is lossless at equal or
	// greater unit capacity.
	if o.encoding == EncodingASCII {
		return fs.numUnits >= o.numUnits
	}
	return false
}

func (fs *FixedString) MetadataDefaultConstruct(buf []byte, shape []int) error { return nil }
func (fs *FixedString) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	return nil
}
func (fs *FixedString) MetadataReset(buf []byte, shape []int) error { return nil }
func (fs *FixedString) MetadataFinalize(buf []byte)                 {}
func (fs *FixedString) MetadataDestruct(buf []byte)                 {}

func (fs *FixedString) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{DataRef: args.DataRef}, nil
	}
	return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "fixedstring has no indexable sub-dimension")
}

func (fs *FixedString) GetShape() []int { return nil }

// DecodeUTF8 renders a fixedstring's fixed-width buffer as a Go string,
// trimming the trailing NUL padding (the fixedstring_type.cpp
// convention: only bytes before the first NUL, or the full buffer if
// unpadded, are part of the value).
func (fs *FixedString) DecodeUTF8(data []byte) (string, error) {
	raw := data[:fs.numUnits*fs.encoding.codeUnitSize()]
	s, err := decodeEncoded(fs.encoding, raw)
	if err != nil {
		return "", err
	}
	return trimNUL(s), nil
}

// decodeEncoded converts raw bytes in the given encoding to a Go (UTF-8)
// string, with no assumption about NUL padding — shared by FixedString
// (which trims padding after calling this) and VarString (whose buffer
// holds no padding at all).
func decodeEncoded(encoding StringEncoding, raw []byte) (string, error) {
	switch encoding {
	case EncodingASCII:
		return string(raw), nil
	case EncodingUTF8:
		if !utf8.Valid(raw) {
			return "", dyerrors.New(dyerrors.ValueErr, "invalid utf8 in string buffer")
		}
		return string(raw), nil
	case EncodingUTF16:
		out, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder(), raw)
		if err != nil {
			return "", dyerrors.Wrap(dyerrors.ValueErr, "decode utf16 string", err)
		}
		return string(out), nil
	case EncodingUTF32:
		out, err := transform.Bytes(utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewDecoder(), raw)
		if err != nil {
			return "", dyerrors.Wrap(dyerrors.ValueErr, "decode utf32 string", err)
		}
		return string(out), nil
	default:
		return "", dyerrors.New(dyerrors.ValueErr, "unknown string encoding")
	}
}

// encodeEncoded converts a Go (UTF-8) string to raw bytes in the given
// encoding, with no length limit — shared by FixedString (which checks
// capacity itself) and VarString (which allocates exactly enough room).
func encodeEncoded(encoding StringEncoding, s string) ([]byte, error) {
	switch encoding {
	case EncodingASCII:
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return nil, dyerrors.New(dyerrors.ValueErr, "non-ascii byte in ascii string assignment")
			}
		}
		return []byte(s), nil
	case EncodingUTF8:
		return []byte(s), nil
	case EncodingUTF16:
		out, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder(), []byte(s))
		if err != nil {
			return nil, dyerrors.Wrap(dyerrors.ValueErr, "encode utf16 string", err)
		}
		return out, nil
	case EncodingUTF32:
		out, err := transform.Bytes(utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewEncoder(), []byte(s))
		if err != nil {
			return nil, dyerrors.Wrap(dyerrors.ValueErr, "encode utf32 string", err)
		}
		return out, nil
	default:
		return nil, dyerrors.New(dyerrors.ValueErr, "unknown string encoding")
	}
}

func trimNUL(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}

// EncodeUTF8 packs a Go string into a fixedstring's fixed-width buffer,
// zero-padding any unused trailing code units. It reports an
// OverflowErr if s does not fit in numUnits code units of fs's encoding.
func (fs *FixedString) EncodeUTF8(s string) ([]byte, error) {
	out, err := encodeEncoded(fs.encoding, s)
	if err != nil {
		return nil, err
	}
	if len(out) > fs.DataSize() {
		return nil, dyerrors.New(dyerrors.OverflowErr, fmt.Sprintf("string too long for fixedstring[%d,%q] buffer", fs.numUnits, fs.encoding))
	}
	buf := make([]byte, fs.DataSize())
	copy(buf, out)
	return buf, nil
}

func (fs *FixedString) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	srcFS, ok := src.Extension().(*FixedString)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("fixedstring assignment from %s requires the resolver's string bridge", src))
	}
	o, node := b.AppendPrefix()
	node.Single = func(dst, src []byte, n *kernel.Node) {
		s, err := srcFS.DecodeUTF8(src)
		if err != nil {
			dyerrors.Raise(err)
		}
		packed, err := fs.EncodeUTF8(s)
		if err != nil {
			dyerrors.Raise(err)
		}
		copy(dst, packed)
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return o + 1, nil
}

func (fs *FixedString) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	rhsFS, ok := rhs.Extension().(*FixedString)
	if !ok {
		return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("cannot compare fixedstring to %s", rhs))
	}
	o, node := b.AppendPrefix()
	node.Compare = func(l, r []byte, n *kernel.Node) bool {
		ls, lerr := fs.DecodeUTF8(l)
		rs, rerr := rhsFS.DecodeUTF8(r)
		if lerr != nil || rerr != nil {
			return op == CmpNE
		}
		return op.Apply(strings.Compare(ls, rs))
	}
	return o + 1, nil
}
