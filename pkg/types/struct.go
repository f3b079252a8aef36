package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
)

// StructField names one member of a struct type.
type StructField struct {
	Name string
	Type TypeRef
}

func incToAlignment(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

func isSimpleIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		alpha := ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
		digit := '0' <= c && c <= '9'
		if i == 0 && !alpha {
			return false
		}
		if i > 0 && !alpha && !digit {
			return false
		}
	}
	return true
}

func printFieldName(name string) string {
	if isSimpleIdentifier(name) {
		return name
	}
	return fmt.Sprintf("%q", name)
}

// printFieldValue formats one struct field's value, dispatching to the
// field type's own PrintData for extended types or to printBuiltinValue
// for built-in scalars.
func printFieldValue(t TypeRef, metadata, data []byte) string {
	if t.IsExtended() {
		return t.Extension().PrintData(metadata, data)
	}
	return printBuiltinValue(t.TypeID(), data)
}

// printBuiltinValue renders a built-in scalar's raw little-endian bytes
// in its datashape literal form.
func printBuiltinValue(id TypeID, data []byte) string {
	switch id {
	case Bool:
		if data[0] != 0 {
			return "true"
		}
		return "false"
	case Int8:
		return strconv.FormatInt(int64(int8(data[0])), 10)
	case Int16:
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(data))), 10)
	case Int32:
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(data))), 10)
	case Int64:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(data)), 10)
	case Uint8:
		return strconv.FormatUint(uint64(data[0]), 10)
	case Uint16:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint16(data)), 10)
	case Uint32:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(data)), 10)
	case Uint64:
		return strconv.FormatUint(binary.LittleEndian.Uint64(data), 10)
	case Float32:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), 'g', -1, 32)
	case Float64:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(data)), 'g', -1, 64)
	case Complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(data))
		im := math.Float32frombits(binary.LittleEndian.Uint32(data[4:]))
		return fmt.Sprintf("(%g+%gj)", re, im)
	case Complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(data))
		im := math.Float64frombits(binary.LittleEndian.Uint64(data[8:]))
		return fmt.Sprintf("(%g+%gj)", re, im)
	case Void:
		return "void"
	default:
		return fmt.Sprintf("<%d bytes>", len(data))
	}
}

// CStruct is the compact struct layout of spec §4.2: data offsets are
// baked into the type, identical for every array of that type, enabling
// zero-metadata field access. Ported from
// original_source/src/dynd/types/cstruct_type.cpp.
type CStruct struct {
	fields          []StructField
	dataOffsets     []int
	metadataOffsets []int
	dataSize        int
	dataAlignment   int
	metadataSize    int
	flags           Flags
}

var _ Descriptor = (*CStruct)(nil)

// NewCStruct builds a compact struct, computing field data/metadata
// offsets with the cstruct algorithm: alignment is the max of field
// alignments, offsets are monotonically increasing, and the final size
// is padded to the struct's alignment (spec §4.2's "Struct layouts").
// Every field must have a fixed DataSize; fields without one (e.g. an
// unshaped dimension type) belong in a StandardStruct instead.
func NewCStruct(fields []StructField) (*CStruct, error) {
	cs := &CStruct{
		fields:          append([]StructField(nil), fields...),
		dataOffsets:     make([]int, len(fields)),
		metadataOffsets: make([]int, len(fields)),
		dataAlignment:   1,
	}

	dataOffset := 0
	metadataOffset := 0
	for i, f := range fields {
		align := f.Type.DataAlignment()
		if align > cs.dataAlignment {
			cs.dataAlignment = align
		}
		cs.flags |= f.Type.Flags() & FlagOperandInherited

		dataOffset = incToAlignment(dataOffset, align)
		cs.dataOffsets[i] = dataOffset
		size := f.Type.DataSize()
		if size == 0 {
			return nil, dyerrors.New(dyerrors.TypeErr,
				fmt.Sprintf("cannot create cstruct field %q of type %s: type has no fixed size", f.Name, f.Type))
		}
		dataOffset += size

		cs.metadataOffsets[i] = metadataOffset
		metadataOffset += f.Type.MetadataSize()
		if f.Type.Flags().Has(FlagBlockRef) {
			cs.flags |= FlagBlockRef
		}
	}
	cs.metadataSize = metadataOffset
	cs.dataSize = incToAlignment(dataOffset, cs.dataAlignment)
	return cs, nil
}

func (c *CStruct) Kind() Kind          { return KindStruct }
func (c *CStruct) DataSize() int       { return c.dataSize }
func (c *CStruct) DataAlignment() int  { return c.dataAlignment }
func (c *CStruct) MetadataSize() int   { return c.metadataSize }
func (c *CStruct) Flags() Flags        { return c.flags }
func (c *CStruct) Fields() []StructField { return c.fields }

// FieldIndex returns the index of the named field, or -1 if absent.
func (c *CStruct) FieldIndex(name string) int {
	for i, f := range c.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FieldDataOffset returns the (fixed, type-resident) data offset of field i.
func (c *CStruct) FieldDataOffset(i int) int { return c.dataOffsets[i] }

// FieldMetadataOffset returns the metadata sub-blob offset of field i.
func (c *CStruct) FieldMetadataOffset(i int) int { return c.metadataOffsets[i] }

func (c *CStruct) PrintType() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range c.fields {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(printFieldName(f.Name))
		b.WriteString(" : ")
		b.WriteString(f.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (c *CStruct) PrintData(metadata, data []byte) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range c.fields {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(printFieldValue(f.Type, c.fieldMetadata(metadata, i), c.fieldData(data, i)))
	}
	b.WriteByte(']')
	return b.String()
}

func (c *CStruct) fieldData(data []byte, i int) []byte {
	off := c.dataOffsets[i]
	size := c.fields[i].Type.DataSize()
	return data[off : off+size]
}

func (c *CStruct) fieldMetadata(metadata []byte, i int) []byte {
	size := c.fields[i].Type.MetadataSize()
	if size == 0 {
		return nil
	}
	off := c.metadataOffsets[i]
	return metadata[off : off+size]
}

// Equal reports equality per spec §8's "struct equality" property: two
// struct types are equal iff they have identical field sequences and
// identical alignments.
func (c *CStruct) Equal(other Descriptor) bool {
	o, ok := other.(*CStruct)
	if !ok {
		return false
	}
	if c.dataAlignment != o.dataAlignment || len(c.fields) != len(o.fields) {
		return false
	}
	for i := range c.fields {
		if c.fields[i].Name != o.fields[i].Name || !c.fields[i].Type.Equal(o.fields[i].Type) {
			return false
		}
	}
	return true
}

func (c *CStruct) IsLosslessAssignmentFrom(src TypeRef) bool {
	o, ok := src.Extension().(*CStruct)
	if !ok {
		return false
	}
	if len(c.fields) != len(o.fields) {
		return false
	}
	for i := range c.fields {
		if c.fields[i].Name != o.fields[i].Name {
			return false
		}
		if !c.fields[i].Type.IsLosslessAssignmentFrom(o.fields[i].Type) {
			return false
		}
	}
	return true
}

// constructGuard tracks how many of a struct's fields have had their
// sub-metadata successfully constructed so far, so a partial failure can
// be rolled back by destructing exactly that many in reverse — the
// "exception-flavored control flow" idiom of spec §9, adapted from the
// teacher's OwnershipContext/RCOptContext per-variable bookkeeping
// style (pkg/analysis/ownership.go, pkg/analysis/rcopt.go).
type constructGuard struct {
	constructed int
}

func (c *CStruct) MetadataDefaultConstruct(buf []byte, shape []int) error {
	guard := &constructGuard{}
	for i, f := range c.fields {
		size := f.Type.MetadataSize()
		if size == 0 {
			guard.constructed++
			continue
		}
		ext := f.Type.Extension()
		off := c.metadataOffsets[i]
		if err := ext.MetadataDefaultConstruct(buf[off:off+size], shape); err != nil {
			c.rollback(buf, guard.constructed)
			return dyerrors.Wrap(dyerrors.TypeErr, fmt.Sprintf("cstruct field %q", f.Name), err)
		}
		guard.constructed++
	}
	return nil
}

func (c *CStruct) rollback(buf []byte, constructedCount int) {
	for i := constructedCount - 1; i >= 0; i-- {
		size := c.fields[i].Type.MetadataSize()
		if size == 0 {
			continue
		}
		off := c.metadataOffsets[i]
		c.fields[i].Type.Extension().MetadataDestruct(buf[off : off+size])
	}
}

func (c *CStruct) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	constructed := 0
	for i, f := range c.fields {
		size := f.Type.MetadataSize()
		if size == 0 {
			constructed++
			continue
		}
		off := c.metadataOffsets[i]
		if err := f.Type.Extension().MetadataCopyConstruct(dst[off:off+size], src[off:off+size], embedded); err != nil {
			c.rollback(dst, constructed)
			return dyerrors.Wrap(dyerrors.TypeErr, fmt.Sprintf("cstruct field %q", f.Name), err)
		}
		constructed++
	}
	return nil
}

func (c *CStruct) MetadataReset(buf []byte, shape []int) error {
	for i, f := range c.fields {
		size := f.Type.MetadataSize()
		if size == 0 {
			continue
		}
		off := c.metadataOffsets[i]
		if err := f.Type.Extension().MetadataReset(buf[off:off+size], shape); err != nil {
			return err
		}
	}
	return nil
}

func (c *CStruct) MetadataFinalize(buf []byte) {
	for i, f := range c.fields {
		size := f.Type.MetadataSize()
		if size == 0 {
			continue
		}
		off := c.metadataOffsets[i]
		f.Type.Extension().MetadataFinalize(buf[off : off+size])
	}
}

func (c *CStruct) MetadataDestruct(buf []byte) {
	c.rollback(buf, len(c.fields))
}

func (c *CStruct) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{}, nil
	}
	idx := args.Indices[0]
	if idx.IsSlice {
		return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "cannot slice across struct fields")
	}
	i := idx.Single
	if i < 0 {
		i += len(c.fields)
	}
	if i < 0 || i >= len(c.fields) {
		return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, fmt.Sprintf("struct field index %d out of range", idx.Single))
	}
	return ApplyLinearIndexResult{DataOffset: c.dataOffsets[i], DataRef: args.DataRef}, nil
}

// FieldDataOffsetAt returns field i's data offset given this array's
// metadata; for CStruct the offset is baked into the type and metadata
// is ignored.
func (c *CStruct) FieldDataOffsetAt(i int, metadata []byte) int { return c.dataOffsets[i] }

func (c *CStruct) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	srcLayout, ok := structLayoutOf(src)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot assign %s to struct destination", src))
	}
	return buildStructAssignmentKernel(b, c, dstMeta, srcLayout, srcMeta, mode, ectx)
}

func (c *CStruct) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	rhsLayout, ok := structLayoutOf(rhs)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot compare struct to %s", rhs))
	}
	return buildStructComparisonKernel(b, c, lhsMeta, rhsLayout, rhsMeta, op, ectx)
}

func (c *CStruct) GetShape() []int { return nil }

// standardStructOffsetWidth is the width of each per-field entry at the
// front of StandardStruct's metadata layout: one little-endian uint32
// data offset per field, followed by each field's own sub-metadata blob
// back to back.
const standardStructOffsetWidth = 4

// StandardStruct is the non-compact struct layout of spec §4.2: field
// data offsets live in per-array metadata rather than the type, so it
// can host fields whose size is not known until an array is actually
// shaped (the struct flavor a CStruct is rewritten to when a transform
// makes any field's storage size variable).
type StandardStruct struct {
	fields        []StructField
	dataAlignment int
	subMetaOffset []int // offset, within this struct's own metadata blob, of the field's sub-metadata
	subMetaSize   []int
	metadataSize  int
	flags         Flags
}

var _ Descriptor = (*StandardStruct)(nil)

// NewStandardStruct builds a standard struct. Unlike NewCStruct, fields
// with no fixed DataSize are accepted; their per-array data offset is
// computed and stored in metadata at construction time instead of being
// baked into the type.
func NewStandardStruct(fields []StructField) *StandardStruct {
	ss := &StandardStruct{
		fields:        append([]StructField(nil), fields...),
		dataAlignment: 1,
		subMetaOffset: make([]int, len(fields)),
		subMetaSize:   make([]int, len(fields)),
	}
	metaOff := len(fields) * standardStructOffsetWidth
	for i, f := range fields {
		if a := f.Type.DataAlignment(); a > ss.dataAlignment {
			ss.dataAlignment = a
		}
		ss.flags |= f.Type.Flags() & (FlagOperandInherited | FlagBlockRef)
		ss.subMetaSize[i] = f.Type.MetadataSize()
		ss.subMetaOffset[i] = metaOff
		metaOff += ss.subMetaSize[i]
	}
	ss.metadataSize = metaOff
	return ss
}

func (s *StandardStruct) Kind() Kind { return KindStruct }

// DataSize is 0: a standard struct's total data size depends on the
// per-array offsets recorded in metadata, not on the type alone.
func (s *StandardStruct) DataSize() int      { return 0 }
func (s *StandardStruct) DataAlignment() int { return s.dataAlignment }
func (s *StandardStruct) MetadataSize() int  { return s.metadataSize }
func (s *StandardStruct) Flags() Flags       { return s.flags }
func (s *StandardStruct) Fields() []StructField { return s.fields }

// FieldOffsets returns each field's per-array data offset, decoded from
// metadata that has already been constructed.
func (s *StandardStruct) FieldOffsets(metadata []byte) []int {
	offsets := make([]int, len(s.fields))
	for i := range s.fields {
		offsets[i] = int(binary.LittleEndian.Uint32(metadata[i*standardStructOffsetWidth:]))
	}
	return offsets
}

func (s *StandardStruct) fieldMetadata(metadata []byte, i int) []byte {
	if s.subMetaSize[i] == 0 {
		return nil
	}
	off := s.subMetaOffset[i]
	return metadata[off : off+s.subMetaSize[i]]
}

func (s *StandardStruct) PrintType() string {
	var b strings.Builder
	b.WriteString("struct{")
	for i, f := range s.fields {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(printFieldName(f.Name))
		b.WriteString(" : ")
		b.WriteString(f.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (s *StandardStruct) PrintData(metadata, data []byte) string {
	offsets := s.FieldOffsets(metadata)
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range s.fields {
		if i != 0 {
			b.WriteString(", ")
		}
		size := f.Type.DataSize()
		fieldData := data[offsets[i] : offsets[i]+size]
		b.WriteString(printFieldValue(f.Type, s.fieldMetadata(metadata, i), fieldData))
	}
	b.WriteByte(']')
	return b.String()
}

func (s *StandardStruct) Equal(other Descriptor) bool {
	o, ok := other.(*StandardStruct)
	if !ok {
		return false
	}
	if s.dataAlignment != o.dataAlignment || len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i].Name != o.fields[i].Name || !s.fields[i].Type.Equal(o.fields[i].Type) {
			return false
		}
	}
	return true
}

func (s *StandardStruct) IsLosslessAssignmentFrom(src TypeRef) bool {
	o, ok := src.Extension().(*StandardStruct)
	if !ok {
		return false
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i].Name != o.fields[i].Name || !s.fields[i].Type.IsLosslessAssignmentFrom(o.fields[i].Type) {
			return false
		}
	}
	return true
}

func (s *StandardStruct) MetadataDefaultConstruct(buf []byte, shape []int) error {
	dataOffset := 0
	constructed := 0
	for i, f := range s.fields {
		align := f.Type.DataAlignment()
		dataOffset = incToAlignment(dataOffset, align)
		binary.LittleEndian.PutUint32(buf[i*standardStructOffsetWidth:], uint32(dataOffset))

		size := f.Type.DataSize()
		if size == 0 {
			// A genuinely unshaped field would need the caller's shape
			// hint to size; broadcasting/shape inference is out of this
			// core's scope (spec §1), so such fields are treated as
			// zero-width placeholders rather than computed from shape.
			size = 0
		}
		dataOffset += size

		if s.subMetaSize[i] > 0 {
			sub := s.fieldMetadata(buf, i)
			if err := f.Type.Extension().MetadataDefaultConstruct(sub, shape); err != nil {
				s.rollback(buf, constructed)
				return dyerrors.Wrap(dyerrors.TypeErr, fmt.Sprintf("struct field %q", f.Name), err)
			}
		}
		constructed++
	}
	return nil
}

func (s *StandardStruct) rollback(buf []byte, constructedCount int) {
	for i := constructedCount - 1; i >= 0; i-- {
		if s.subMetaSize[i] == 0 {
			continue
		}
		s.fields[i].Type.Extension().MetadataDestruct(s.fieldMetadata(buf, i))
	}
}

func (s *StandardStruct) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	copy(dst[:len(s.fields)*standardStructOffsetWidth], src[:len(s.fields)*standardStructOffsetWidth])
	constructed := 0
	for i, f := range s.fields {
		if s.subMetaSize[i] == 0 {
			constructed++
			continue
		}
		if err := f.Type.Extension().MetadataCopyConstruct(s.fieldMetadata(dst, i), s.fieldMetadata(src, i), embedded); err != nil {
			s.rollback(dst, constructed)
			return dyerrors.Wrap(dyerrors.TypeErr, fmt.Sprintf("struct field %q", f.Name), err)
		}
		constructed++
	}
	return nil
}

func (s *StandardStruct) MetadataReset(buf []byte, shape []int) error {
	for i, f := range s.fields {
		if s.subMetaSize[i] == 0 {
			continue
		}
		if err := f.Type.Extension().MetadataReset(s.fieldMetadata(buf, i), shape); err != nil {
			return err
		}
	}
	return nil
}

func (s *StandardStruct) MetadataFinalize(buf []byte) {
	for i, f := range s.fields {
		if s.subMetaSize[i] == 0 {
			continue
		}
		f.Type.Extension().MetadataFinalize(s.fieldMetadata(buf, i))
	}
}

func (s *StandardStruct) MetadataDestruct(buf []byte) {
	s.rollback(buf, len(s.fields))
}

func (s *StandardStruct) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{}, nil
	}
	idx := args.Indices[0]
	if idx.IsSlice {
		return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "cannot slice across struct fields")
	}
	i := idx.Single
	if i < 0 {
		i += len(s.fields)
	}
	if i < 0 || i >= len(s.fields) {
		return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, fmt.Sprintf("struct field index %d out of range", idx.Single))
	}
	offsets := s.FieldOffsets(args.SrcMetadata)
	return ApplyLinearIndexResult{DataOffset: offsets[i], DataRef: args.DataRef}, nil
}

// FieldDataOffsetAt returns field i's data offset, decoded from this
// array's own metadata (a standard struct's offsets are per-array).
func (s *StandardStruct) FieldDataOffsetAt(i int, metadata []byte) int {
	return int(binary.LittleEndian.Uint32(metadata[i*standardStructOffsetWidth:]))
}

func (s *StandardStruct) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	srcLayout, ok := structLayoutOf(src)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot assign %s to struct destination", src))
	}
	return buildStructAssignmentKernel(b, s, dstMeta, srcLayout, srcMeta, mode, ectx)
}

func (s *StandardStruct) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	rhsLayout, ok := structLayoutOf(rhs)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("cannot compare struct to %s", rhs))
	}
	return buildStructComparisonKernel(b, s, lhsMeta, rhsLayout, rhsMeta, op, ectx)
}

func (s *StandardStruct) GetShape() []int { return nil }

// structLayout is the common field-introspection surface CStruct and
// StandardStruct both provide, letting assignment/comparison kernel
// construction work uniformly over either struct flavor (and over mixed
// assignment from one flavor to the other).
type structLayout interface {
	Fields() []StructField
	FieldDataOffsetAt(i int, metadata []byte) int
	fieldMetadata(metadata []byte, i int) []byte
}

func structLayoutOf(t TypeRef) (structLayout, bool) {
	switch ext := t.Extension().(type) {
	case *CStruct:
		return ext, true
	case *StandardStruct:
		return ext, true
	default:
		return nil, false
	}
}

// structAssignState is the composite assignment kernel's per-node state:
// each field's resolved data offsets in dst/src, plus the builder offset
// of the child kernel that handles that field (spec §4.5's "both
// extended, same kind" struct case, applied field by field).
type structAssignState struct {
	fieldCount int
	dstOffset  []int
	srcOffset  []int
	children   []int
	builder    *kernel.Builder
}

func structAssignSingle(dst, src []byte, node *kernel.Node) {
	st := node.State.(*structAssignState)
	for i := 0; i < st.fieldCount; i++ {
		child := st.builder.GetAt(st.children[i])
		child.Single(dst[st.dstOffset[i]:], src[st.srcOffset[i]:], child)
	}
}

func buildStructAssignmentKernel(b *kernel.Builder, dstLayout structLayout, dstMeta []byte, srcLayout structLayout, srcMeta []byte, mode ErrorMode, ectx *EvalContext) (int, error) {
	dstFields := dstLayout.Fields()
	srcFields := srcLayout.Fields()
	if len(dstFields) != len(srcFields) {
		return 0, dyerrors.New(dyerrors.TypeErr, "struct assignment requires matching field counts")
	}
	if BuildFieldAssignmentKernel == nil {
		return 0, dyerrors.New(dyerrors.Misuse, "assignment resolver not initialized")
	}

	offset, node := b.AppendPrefix()
	st := &structAssignState{fieldCount: len(dstFields), builder: b}
	for i := range dstFields {
		if dstFields[i].Name != srcFields[i].Name {
			return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("struct field name mismatch: %q vs %q", dstFields[i].Name, srcFields[i].Name))
		}
		st.dstOffset = append(st.dstOffset, dstLayout.FieldDataOffsetAt(i, dstMeta))
		st.srcOffset = append(st.srcOffset, srcLayout.FieldDataOffsetAt(i, srcMeta))

		childOffset := b.Len()
		if _, err := BuildFieldAssignmentKernel(b, childOffset, dstFields[i].Type, dstLayout.fieldMetadata(dstMeta, i), srcFields[i].Type, srcLayout.fieldMetadata(srcMeta, i), kernel.SingleRequest, mode, ectx); err != nil {
			return offset, dyerrors.Wrap(dyerrors.TypeErr, fmt.Sprintf("struct field %q", dstFields[i].Name), err)
		}
		st.children = append(st.children, childOffset)
	}

	node.State = st
	node.Single = structAssignSingle
	node.Strided = kernel.AdaptSingleToStrided(structAssignSingle)
	return b.Len(), nil
}

// structCompareState drives the lexicographic struct comparison of spec
// §4.6: fields are compared left to right, the first unequal field
// decides the result, and falling off the end means every field was
// equal.
type structCompareState struct {
	fieldCount int
	lhsOffset  []int
	rhsOffset  []int
	eqChildren []int
	ltChildren []int
	builder    *kernel.Builder
	op         CompareOp
}

func structCompareSingle(lhs, rhs []byte, node *kernel.Node) bool {
	st := node.State.(*structCompareState)
	for i := 0; i < st.fieldCount; i++ {
		l := lhs[st.lhsOffset[i]:]
		r := rhs[st.rhsOffset[i]:]
		eqNode := st.builder.GetAt(st.eqChildren[i])
		if eqNode.Compare(l, r, eqNode) {
			continue
		}
		ltNode := st.builder.GetAt(st.ltChildren[i])
		less := ltNode.Compare(l, r, ltNode)
		switch st.op {
		case CmpLT, CmpLE:
			return less
		case CmpGT, CmpGE:
			return !less
		case CmpEQ:
			return false
		default: // CmpNE
			return true
		}
	}
	switch st.op {
	case CmpLE, CmpGE, CmpEQ:
		return true
	default:
		return false
	}
}

func buildStructComparisonKernel(b *kernel.Builder, lhsLayout structLayout, lhsMeta []byte, rhsLayout structLayout, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	lhsFields := lhsLayout.Fields()
	rhsFields := rhsLayout.Fields()
	if len(lhsFields) != len(rhsFields) {
		return 0, dyerrors.New(dyerrors.NotComparable, "struct comparison requires matching field counts")
	}
	if BuildFieldComparisonKernel == nil {
		return 0, dyerrors.New(dyerrors.Misuse, "comparison resolver not initialized")
	}

	offset, node := b.AppendPrefix()
	st := &structCompareState{fieldCount: len(lhsFields), builder: b, op: op}
	for i := range lhsFields {
		if lhsFields[i].Name != rhsFields[i].Name {
			return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("struct field name mismatch: %q vs %q", lhsFields[i].Name, rhsFields[i].Name))
		}
		st.lhsOffset = append(st.lhsOffset, lhsLayout.FieldDataOffsetAt(i, lhsMeta))
		st.rhsOffset = append(st.rhsOffset, rhsLayout.FieldDataOffsetAt(i, rhsMeta))

		eqOffset := b.Len()
		if _, err := BuildFieldComparisonKernel(b, eqOffset, lhsFields[i].Type, lhsLayout.fieldMetadata(lhsMeta, i), rhsFields[i].Type, rhsLayout.fieldMetadata(rhsMeta, i), CmpEQ, ectx); err != nil {
			return offset, dyerrors.Wrap(dyerrors.NotComparable, fmt.Sprintf("struct field %q", lhsFields[i].Name), err)
		}
		st.eqChildren = append(st.eqChildren, eqOffset)

		ltOffset := b.Len()
		if _, err := BuildFieldComparisonKernel(b, ltOffset, lhsFields[i].Type, lhsLayout.fieldMetadata(lhsMeta, i), rhsFields[i].Type, rhsLayout.fieldMetadata(rhsMeta, i), CmpLT, ectx); err != nil {
			return offset, dyerrors.Wrap(dyerrors.NotComparable, fmt.Sprintf("struct field %q", lhsFields[i].Name), err)
		}
		st.ltChildren = append(st.ltChildren, ltOffset)
	}

	node.State = st
	node.Compare = structCompareSingle
	return b.Len(), nil
}
