// Package memblock implements DyND's reference-counted memory blocks:
// tagged containers that own raw bytes on behalf of typed arrays.
//
// Every block shares one header (an atomic refcount plus a kind tag);
// downcasting to variant-specific state is by kind, following
// original_source/include/dnd/memblock/memory_block.hpp.
package memblock

import (
	"sync/atomic"

	"dynd/pkg/dyerrors"
)

// Kind discriminates memory block variants.
type Kind uint8

const (
	// External wraps borrowed bytes plus a caller-supplied deleter.
	External Kind = iota
	// FixedPOD owns an inline, fixed-size byte buffer.
	FixedPOD
	// GrowablePOD is a PodArena: variable-sized POD data doled out of a
	// growing set of chunks.
	GrowablePOD
	// Object holds typed constructed Go values (destructed individually
	// on free).
	Object
	// ArrayNode owns data on behalf of an array, delegating free to a
	// caller-supplied destructor.
	ArrayNode
)

func (k Kind) String() string {
	switch k {
	case External:
		return "external"
	case FixedPOD:
		return "fixed_pod"
	case GrowablePOD:
		return "pod_arena"
	case Object:
		return "object"
	case ArrayNode:
		return "array_node"
	default:
		return "unknown"
	}
}

// Block is the common header every memory block variant begins with:
// an atomic refcount and a kind tag. Variant-specific state lives in
// payload, type-asserted by the accessors below.
type Block struct {
	refcount int64
	kind     Kind
	payload  any
}

// externalPayload backs Kind == External.
type externalPayload struct {
	data    []byte
	deleter func()
}

// fixedPodPayload backs Kind == FixedPOD.
type fixedPodPayload struct {
	data []byte
}

// objectPayload backs Kind == Object.
type objectPayload struct {
	values  []any
	destroy func(any)
}

// arrayNodePayload backs Kind == ArrayNode.
type arrayNodePayload struct {
	data    []byte
	destroy func()
}

func newBlock(kind Kind, payload any) *Block {
	return &Block{refcount: 1, kind: kind, payload: payload}
}

// NewExternal wraps borrowed bytes plus a deleter invoked when the last
// reference is released.
func NewExternal(data []byte, deleter func()) *Block {
	return newBlock(External, &externalPayload{data: data, deleter: deleter})
}

// NewFixedPOD allocates an inline buffer of the given size.
func NewFixedPOD(size int) *Block {
	return newBlock(FixedPOD, &fixedPodPayload{data: make([]byte, size)})
}

// NewObject constructs a block holding typed constructed values; destroy
// is invoked once per element when the block is freed.
func NewObject(values []any, destroy func(any)) *Block {
	return newBlock(Object, &objectPayload{values: values, destroy: destroy})
}

// NewArrayNode constructs a block owning data on behalf of an array; the
// destroy callback performs any array-node-specific teardown.
func NewArrayNode(data []byte, destroy func()) *Block {
	return newBlock(ArrayNode, &arrayNodePayload{data: data, destroy: destroy})
}

// Kind returns the block's variant tag.
func (b *Block) Kind() Kind { return b.kind }

// Data returns the raw bytes owned by External, FixedPOD, and ArrayNode
// blocks. It panics for variants with no single byte-buffer view
// (Object, GrowablePOD) — callers must downcast by kind first.
func (b *Block) Data() []byte {
	switch b.kind {
	case External:
		return b.payload.(*externalPayload).data
	case FixedPOD:
		return b.payload.(*fixedPodPayload).data
	case ArrayNode:
		return b.payload.(*arrayNodePayload).data
	default:
		panic("memblock: Data() called on a block kind with no single byte view: " + b.kind.String())
	}
}

// Incref increments the reference count. Pre: refcount >= 1.
func (b *Block) Incref() {
	atomic.AddInt64(&b.refcount, 1)
}

// Decref decrements the reference count, invoking the variant-specific
// free exactly once when it reaches zero. Pre: caller transfers its
// strong reference.
func (b *Block) Decref() {
	if atomic.AddInt64(&b.refcount, -1) == 0 {
		b.free()
	}
}

// Refcount returns the current count. It is intended for diagnostics
// only; see Unique for the documented best-effort uniqueness check.
func (b *Block) Refcount() int64 {
	return atomic.LoadInt64(&b.refcount)
}

// Unique reports whether this is, as far as can be told without
// synchronization with other threads, the sole reference to the block.
// Best-effort only: per spec §9's open question, no ordering is implied
// and the result may be stale the instant it is returned.
func (b *Block) Unique() bool {
	return atomic.LoadInt64(&b.refcount) <= 1
}

func (b *Block) free() {
	switch b.kind {
	case External:
		p := b.payload.(*externalPayload)
		if p.deleter != nil {
			p.deleter()
		}
	case FixedPOD:
		// Inline buffer: nothing beyond letting the GC reclaim it.
	case GrowablePOD:
		arena := b.payload.(*PodArena)
		for _, ref := range arena.blockrefs {
			ref.Decref()
		}
		arena.chunks = nil
	case Object:
		p := b.payload.(*objectPayload)
		if p.destroy != nil {
			for _, v := range p.values {
				p.destroy(v)
			}
		}
	case ArrayNode:
		p := b.payload.(*arrayNodePayload)
		if p.destroy != nil {
			p.destroy()
		}
	default:
		panic("memblock: free() on unknown kind")
	}
}

// MustPodArena downcasts a GrowablePOD block to its *PodArena payload,
// panicking if the kind tag does not match (a library bug, not a
// recoverable user error).
func (b *Block) MustPodArena() *PodArena {
	if b.kind != GrowablePOD {
		panic("memblock: MustPodArena called on non-arena block")
	}
	return b.payload.(*PodArena)
}

// errMisuse builds a dyerrors.Misuse error for an operation on block.
func errMisuse(op string) error {
	return dyerrors.New(dyerrors.Misuse, op)
}
