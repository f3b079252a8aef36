package memblock

import (
	"dynd/pkg/dyerrors"
)

// Range identifies a byte range handed out by a PodArena: which chunk it
// lives in, and the [begin, end) offsets within that chunk. Because each
// chunk is a fixed-capacity slice allocated once and never regrown in
// place, a Range stays valid for the life of the arena even as later
// allocations move on to new chunks — see DESIGN.md's resolution of the
// spec's §9 "realloc on grow" open question.
type Range struct {
	Chunk      int
	Begin, End int
}

// Len reports the size in bytes of the range.
func (r Range) Len() int { return r.End - r.Begin }

// PodArena is a growable memory block doling out aligned byte ranges to
// variable-sized leaf data (bytes, var-strings), grounded on
// original_source/src/dnd/memblock/pod_memory_block.cpp.
type PodArena struct {
	blockrefs     []*Block
	chunks        [][]byte
	used          []int // bytes handed out so far in each chunk
	totalCapacity int
	finalized     bool
}

// NewPodArena constructs a growable POD arena with one initial chunk.
// blockrefs are adopted: the arena becomes responsible for releasing
// each one exactly once when it is freed, taking over the strong
// reference the caller already held (it does not incref them again).
func NewPodArena(initialCapacity int, blockrefs []*Block) *Block {
	if initialCapacity <= 0 {
		initialCapacity = 64
	}
	arena := &PodArena{
		blockrefs: blockrefs,
	}
	arena.appendChunk(initialCapacity)
	return newBlock(GrowablePOD, arena)
}

func (a *PodArena) appendChunk(capacity int) {
	a.chunks = append(a.chunks, make([]byte, capacity))
	a.used = append(a.used, 0)
	a.totalCapacity += capacity
}

func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

// Allocate hands out an aligned sub-range from the active chunk, growing
// by max(total_capacity_so_far, requested) when the active chunk does
// not have room. The returned range is the "most recent allocation" for
// purposes of Resize.
func (a *PodArena) Allocate(sizeBytes, alignment int) (Range, error) {
	if a.finalized {
		return Range{}, dyerrors.New(dyerrors.Misuse, "PodArena.Allocate: arena already finalized")
	}
	idx := len(a.chunks) - 1
	begin := alignUp(a.used[idx], alignment)
	end := begin + sizeBytes
	if end <= len(a.chunks[idx]) {
		a.used[idx] = end
		return Range{Chunk: idx, Begin: begin, End: end}, nil
	}

	newCap := a.totalCapacity
	if sizeBytes > newCap {
		newCap = sizeBytes
	}
	a.appendChunk(newCap)
	idx = len(a.chunks) - 1
	begin = alignUp(0, alignment)
	end = begin + sizeBytes
	a.used[idx] = end
	return Range{Chunk: idx, Begin: begin, End: end}, nil
}

// Resize grows or relocates the most recently allocated range to
// newSize bytes. It fails with MisuseError if r is not the arena's most
// recent allocation.
func (a *PodArena) Resize(r Range, newSize int) (Range, error) {
	if a.finalized {
		return Range{}, dyerrors.New(dyerrors.Misuse, "PodArena.Resize: arena already finalized")
	}
	idx := len(a.chunks) - 1
	if r.Chunk != idx || r.End != a.used[idx] {
		return Range{}, dyerrors.New(dyerrors.Misuse,
			"PodArena.Resize: must be called only on the most recently allocated range")
	}
	newEnd := r.Begin + newSize
	if newEnd <= len(a.chunks[idx]) {
		a.used[idx] = newEnd
		return Range{Chunk: idx, Begin: r.Begin, End: newEnd}, nil
	}

	oldBytes := a.chunks[idx][r.Begin:r.End]
	newCap := a.totalCapacity
	if newSize > newCap {
		newCap = newSize
	}
	a.appendChunk(newCap)
	newIdx := len(a.chunks) - 1
	copy(a.chunks[newIdx], oldBytes)
	a.used[newIdx] = newSize
	// The vacated tail of the old chunk is not physically reclaimed; it
	// is simply never allocated from again (the active chunk pointer has
	// moved on). This keeps every previously returned Range valid.
	return Range{Chunk: newIdx, Begin: 0, End: newSize}, nil
}

// Finalize trims the active chunk to its current cursor; further
// allocations are disallowed.
func (a *PodArena) Finalize() {
	if a.finalized {
		return
	}
	idx := len(a.chunks) - 1
	a.chunks[idx] = a.chunks[idx][:a.used[idx]]
	a.finalized = true
}

// Bytes returns the byte slice backing a previously returned range.
func (a *PodArena) Bytes(r Range) []byte {
	return a.chunks[r.Chunk][r.Begin:r.End]
}

// TotalCapacity reports the sum of all chunk capacities allocated so
// far (used by Allocate/Resize's growth heuristic and exposed for
// diagnostics/tests).
func (a *PodArena) TotalCapacity() int { return a.totalCapacity }

// Blockrefs returns the block references embedded in this arena.
func (a *PodArena) Blockrefs() []*Block { return a.blockrefs }
