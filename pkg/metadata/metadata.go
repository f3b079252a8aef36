// Package metadata provides generic per-array metadata lifecycle
// helpers built on the types.Descriptor vtable: construct, copy, reset,
// finalize, and destruct, plus a batch constructor that rolls back
// whatever it already built if a later element fails (spec §4.2's
// metadata lifecycle, generalized across any TypeRef rather than one
// composite type's own fields).
package metadata

import (
	"dynd/pkg/dyerrors"
	"dynd/pkg/types"
)

// DefaultConstruct default-constructs t's metadata into buf. Built-in
// scalar types carry no metadata, so this is a no-op for them.
func DefaultConstruct(t types.TypeRef, buf []byte, shape []int) error {
	if !t.IsExtended() {
		return nil
	}
	return t.Extension().MetadataDefaultConstruct(buf, shape)
}

// CopyConstruct duplicates src's already-constructed metadata into dst,
// retaining any embedded block references src holds.
func CopyConstruct(t types.TypeRef, dst, src []byte, embedded *types.BlockRef) error {
	if !t.IsExtended() {
		return nil
	}
	return t.Extension().MetadataCopyConstruct(dst, src, embedded)
}

// Reset restores already-constructed metadata to its default state
// in place, without a destruct/construct round trip.
func Reset(t types.TypeRef, buf []byte, shape []int) error {
	if !t.IsExtended() {
		return nil
	}
	return t.Extension().MetadataReset(buf, shape)
}

// Finalize notifies t's metadata that no further resizing will happen
// (the metadata-level analogue of memblock.PodArena.Finalize).
func Finalize(t types.TypeRef, buf []byte) {
	if t.IsExtended() {
		t.Extension().MetadataFinalize(buf)
	}
}

// Destruct releases any resources t's metadata in buf holds (embedded
// block references, nested sub-metadata).
func Destruct(t types.TypeRef, buf []byte) {
	if t.IsExtended() {
		t.Extension().MetadataDestruct(buf)
	}
}

// ConstructAll default-constructs t's metadata into every slice of
// buffers, in order. If any element fails, every previously constructed
// element is destructed, in reverse order, before the error is
// returned — the same scope-guard rollback idiom CStruct's own
// multi-field construct uses internally (struct.go's constructGuard),
// generalized to a batch of independent array instances instead of one
// composite type's fields.
func ConstructAll(t types.TypeRef, buffers [][]byte, shape []int) error {
	constructed := 0
	for _, buf := range buffers {
		if err := DefaultConstruct(t, buf, shape); err != nil {
			rollback(t, buffers, constructed)
			return dyerrors.Wrap(dyerrors.TypeErr, "metadata.ConstructAll", err)
		}
		constructed++
	}
	return nil
}

func rollback(t types.TypeRef, buffers [][]byte, constructedCount int) {
	for i := constructedCount - 1; i >= 0; i-- {
		Destruct(t, buffers[i])
	}
}
