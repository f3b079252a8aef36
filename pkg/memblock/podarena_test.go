package memblock

import "testing"

// TestAllocateGrowsOnOverflow reproduces the concrete scenario of spec §8
// item 4: an arena with initial capacity 64, allocate(40,1) then
// allocate(30,1), triggers one chunk append of capacity >= 64, with the
// first range preserved and valid.
func TestAllocateGrowsOnOverflow(t *testing.T) {
	blk := NewPodArena(64, nil)
	arena := blk.MustPodArena()

	r1, err := arena.Allocate(40, 1)
	if err != nil {
		t.Fatalf("first allocate failed: %v", err)
	}
	copy(arena.Bytes(r1), []byte{1, 2, 3, 4})

	r2, err := arena.Allocate(30, 1)
	if err != nil {
		t.Fatalf("second allocate failed: %v", err)
	}

	if len(arena.chunks) != 2 {
		t.Fatalf("expected exactly one chunk append, got %d chunks", len(arena.chunks))
	}
	if cap(arena.chunks[1]) < 64 && len(arena.chunks[1]) < 64 {
		t.Fatalf("expected new chunk capacity >= 64, got %d", len(arena.chunks[1]))
	}
	if r1.Chunk == r2.Chunk {
		t.Fatalf("expected second allocation to land in the new chunk")
	}
	if got := arena.Bytes(r1)[:4]; string(got) != "\x01\x02\x03\x04" {
		t.Fatalf("first range's data not preserved: %v", got)
	}
}

func TestAllocateRangesNonOverlappingAndAligned(t *testing.T) {
	blk := NewPodArena(16, nil)
	arena := blk.MustPodArena()

	r1, _ := arena.Allocate(3, 8)
	r2, _ := arena.Allocate(5, 8)

	if r1.Begin%8 != 0 || r2.Begin%8 != 0 {
		t.Fatalf("ranges not 8-byte aligned: %v %v", r1, r2)
	}
	if r1.Chunk == r2.Chunk && r1.End > r2.Begin {
		t.Fatalf("overlapping ranges: %v %v", r1, r2)
	}
}

func TestResizeGrowsInPlaceWhenPossible(t *testing.T) {
	blk := NewPodArena(64, nil)
	arena := blk.MustPodArena()

	r, _ := arena.Allocate(8, 1)
	copy(arena.Bytes(r), []byte("abcdefgh"))

	r2, err := arena.Resize(r, 16)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if r2.Chunk != r.Chunk {
		t.Fatalf("expected in-place growth to stay in the same chunk")
	}
	if string(arena.Bytes(r2)[:8]) != "abcdefgh" {
		t.Fatalf("resize lost original bytes: %q", arena.Bytes(r2)[:8])
	}
}

func TestResizeOnNonMostRecentAllocationFails(t *testing.T) {
	blk := NewPodArena(64, nil)
	arena := blk.MustPodArena()

	r1, _ := arena.Allocate(8, 1)
	_, _ = arena.Allocate(8, 1)

	if _, err := arena.Resize(r1, 32); err == nil {
		t.Fatal("expected MisuseError resizing a non-most-recent allocation")
	}
}

func TestFinalizeTrimsActiveChunkAndPreservesEarlierRanges(t *testing.T) {
	blk := NewPodArena(64, nil)
	arena := blk.MustPodArena()

	r, _ := arena.Allocate(8, 1)
	copy(arena.Bytes(r), []byte("finalize"))
	arena.Finalize()

	if len(arena.chunks[len(arena.chunks)-1]) != 8 {
		t.Fatalf("expected chunk trimmed to 8 bytes, got %d", len(arena.chunks[len(arena.chunks)-1]))
	}
	if string(arena.Bytes(r)) != "finalize" {
		t.Fatalf("finalize corrupted earlier range: %q", arena.Bytes(r))
	}
	if _, err := arena.Allocate(1, 1); err == nil {
		t.Fatal("expected allocation after finalize to fail")
	}
}

func TestPodArenaFreeReleasesBlockrefs(t *testing.T) {
	releases := 0
	dep := NewExternal(nil, func() { releases++ })
	blk := NewPodArena(8, []*Block{dep})
	blk.Decref()
	if releases != 1 {
		t.Fatalf("expected embedded blockref released exactly once, got %d", releases)
	}
}
