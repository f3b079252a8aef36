package types

import (
	"encoding/binary"
	"fmt"
	"runtime/cgo"

	"dynd/pkg/dyerrors"
	"dynd/pkg/kernel"
	"dynd/pkg/memblock"
)

// VarString is the variable-length string type: data holds a
// (chunk, begin, end) memblock.Range into a pod arena, and metadata
// holds a strong reference to the arena block that owns that range
// (spec §4.2's "Var string", backed by the pod arena allocator of §4.3).
//
// A Go []byte cannot hold a live *memblock.Block the way the original's
// placement-constructed metadata holds a memory_block_ptr, since nothing
// safely embeds a Go pointer inside an arbitrary byte slice without
// unsafe. Metadata instead stores a runtime/cgo.Handle — the same
// opaque-integer-to-live-object indirection cgo uses to pass Go values
// across the boundary to C, repurposed here to let a byte-addressed
// metadata blob reference a heap-allocated *BlockRef.
type VarString struct {
	encoding StringEncoding
}

var _ Descriptor = (*VarString)(nil)

// NewVarString builds a variable-length string type of the given
// encoding.
func NewVarString(encoding StringEncoding) *VarString {
	return &VarString{encoding: encoding}
}

// varStringRangeSize is the width of the inline (chunk, begin, end)
// triple: three 64-bit words.
const varStringRangeSize = 24

// varStringMetadataSize is the width of the inline cgo.Handle referring
// to this array's backing arena BlockRef.
const varStringMetadataSize = 8

func (vs *VarString) Kind() Kind         { return KindString }
func (vs *VarString) DataSize() int      { return varStringRangeSize }
func (vs *VarString) DataAlignment() int { return 8 }
func (vs *VarString) MetadataSize() int  { return varStringMetadataSize }
func (vs *VarString) Flags() Flags       { return FlagScalar | FlagBlockRef }

func (vs *VarString) PrintType() string {
	if vs.encoding == EncodingUTF8 {
		return "string"
	}
	return fmt.Sprintf("string[%q]", vs.encoding.String())
}

func (vs *VarString) PrintData(metadata, data []byte) string {
	s, err := vs.read(metadata, data)
	if err != nil {
		return `""`
	}
	return fmt.Sprintf("%q", s)
}

func (vs *VarString) Equal(other Descriptor) bool {
	o, ok := other.(*VarString)
	return ok && vs.encoding == o.encoding
}

func (vs *VarString) IsLosslessAssignmentFrom(src TypeRef) bool {
	o, ok := src.Extension().(*VarString)
	if !ok {
		return false
	}
	return vs.encoding == o.encoding || o.encoding == EncodingASCII
}

func (vs *VarString) MetadataDefaultConstruct(buf []byte, shape []int) error {
	binary.LittleEndian.PutUint64(buf, 0)
	return nil
}

func (vs *VarString) MetadataCopyConstruct(dst, src []byte, embedded *BlockRef) error {
	br := getMetadataBlockRef(src)
	if br == nil || br.Block == nil {
		binary.LittleEndian.PutUint64(dst, 0)
		return nil
	}
	br.Block.Incref()
	setMetadataBlockRef(dst, &BlockRef{Block: br.Block})
	return nil
}

func (vs *VarString) MetadataReset(buf []byte, shape []int) error {
	vs.MetadataDestruct(buf)
	return vs.MetadataDefaultConstruct(buf, shape)
}

func (vs *VarString) MetadataFinalize(buf []byte) {}

func (vs *VarString) MetadataDestruct(buf []byte) {
	if br := getMetadataBlockRef(buf); br != nil {
		releaseMetadataBlockRef(buf)
		br.Release()
	}
}

func (vs *VarString) ApplyLinearIndex(args ApplyLinearIndexArgs) (ApplyLinearIndexResult, error) {
	if len(args.Indices) == 0 {
		return ApplyLinearIndexResult{DataRef: args.DataRef}, nil
	}
	return ApplyLinearIndexResult{}, dyerrors.New(dyerrors.IndexErr, "string has no indexable sub-dimension")
}

func (vs *VarString) GetShape() []int { return nil }

// Read decodes the string content a (metadata, data) pair refers to —
// the exported counterpart of read, used by pkg/assign's string⇄string
// and string⇄numeric bridge kernels, which live outside this package
// and so cannot reach the unexported arena plumbing directly.
func (vs *VarString) Read(metadata, data []byte) (string, error) {
	return vs.read(metadata, data)
}

// Write allocates room for s in the arena metadata references
// (constructing the reference if needed) and records the result in
// data — the exported counterpart of write, used by pkg/assign's
// bridge kernels.
func (vs *VarString) Write(metadata, data []byte, s string) error {
	return vs.write(metadata, data, s)
}

// read decodes the string content a (metadata, data) pair refers to.
func (vs *VarString) read(metadata, data []byte) (string, error) {
	br := getMetadataBlockRef(metadata)
	if br == nil || br.Block == nil {
		return "", dyerrors.New(dyerrors.ValueErr, "var string has no backing arena")
	}
	arena := br.Block.MustPodArena()
	raw := arena.Bytes(readRange(data))
	return decodeEncoded(vs.encoding, raw)
}

// write allocates room for s in the arena referenced by metadata
// (constructing the reference if metadata does not yet have one),
// copies s's encoded bytes in, and records the resulting range in data.
func (vs *VarString) write(metadata, data []byte, s string) error {
	encoded, err := encodeEncoded(vs.encoding, s)
	if err != nil {
		return err
	}
	br := getMetadataBlockRef(metadata)
	if br == nil || br.Block == nil {
		block := memblock.NewPodArena(len(encoded), nil)
		setMetadataBlockRef(metadata, &BlockRef{Block: block})
		br = getMetadataBlockRef(metadata)
	}
	arena := br.Block.MustPodArena()
	r, err := arena.Allocate(len(encoded), 1)
	if err != nil {
		return dyerrors.Wrap(dyerrors.OutOfMemory, "allocate var string content", err)
	}
	copy(arena.Bytes(r), encoded)
	writeRange(data, r)
	return nil
}

func readRange(data []byte) memblock.Range {
	return memblock.Range{
		Chunk: int(binary.LittleEndian.Uint64(data[0:8])),
		Begin: int(binary.LittleEndian.Uint64(data[8:16])),
		End:   int(binary.LittleEndian.Uint64(data[16:24])),
	}
}

func writeRange(data []byte, r memblock.Range) {
	binary.LittleEndian.PutUint64(data[0:8], uint64(r.Chunk))
	binary.LittleEndian.PutUint64(data[8:16], uint64(r.Begin))
	binary.LittleEndian.PutUint64(data[16:24], uint64(r.End))
}

func getMetadataBlockRef(metadata []byte) *BlockRef {
	h := binary.LittleEndian.Uint64(metadata)
	if h == 0 {
		return nil
	}
	return cgo.Handle(h).Value().(*BlockRef)
}

func setMetadataBlockRef(metadata []byte, br *BlockRef) {
	h := cgo.NewHandle(br)
	binary.LittleEndian.PutUint64(metadata, uint64(h))
}

func releaseMetadataBlockRef(metadata []byte) {
	h := binary.LittleEndian.Uint64(metadata)
	if h == 0 {
		return
	}
	cgo.Handle(h).Delete()
	binary.LittleEndian.PutUint64(metadata, 0)
}

func (vs *VarString) MakeAssignmentKernel(b *kernel.Builder, offset int, dst TypeRef, dstMeta []byte, src TypeRef, srcMeta []byte, req kernel.Request, mode ErrorMode, ectx *EvalContext) (int, error) {
	srcVS, ok := src.Extension().(*VarString)
	if !ok {
		return offset, dyerrors.New(dyerrors.TypeErr, fmt.Sprintf("var string assignment from %s requires the resolver's string bridge", src))
	}
	o, node := b.AppendPrefix()
	node.Single = func(dst, src []byte, n *kernel.Node) {
		s, err := srcVS.read(srcMeta, src)
		if err != nil {
			dyerrors.Raise(err)
		}
		if err := vs.write(dstMeta, dst, s); err != nil {
			dyerrors.Raise(err)
		}
	}
	node.Strided = kernel.AdaptSingleToStrided(node.Single)
	return o + 1, nil
}

func (vs *VarString) MakeComparisonKernel(b *kernel.Builder, offset int, lhs TypeRef, lhsMeta []byte, rhs TypeRef, rhsMeta []byte, op CompareOp, ectx *EvalContext) (int, error) {
	rhsVS, ok := rhs.Extension().(*VarString)
	if !ok {
		return offset, dyerrors.New(dyerrors.NotComparable, fmt.Sprintf("cannot compare string to %s", rhs))
	}
	o, node := b.AppendPrefix()
	node.Compare = func(l, r []byte, n *kernel.Node) bool {
		ls, lerr := vs.read(lhsMeta, l)
		rs, rerr := rhsVS.read(rhsMeta, r)
		if lerr != nil || rerr != nil {
			return op == CmpNE
		}
		cmp := 0
		switch {
		case ls < rs:
			cmp = -1
		case ls > rs:
			cmp = 1
		}
		return op.Apply(cmp)
	}
	return o + 1, nil
}
