package memblock

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestExternalBlockDeleterRunsOnce(t *testing.T) {
	calls := 0
	b := NewExternal([]byte("borrowed"), func() { calls++ })
	b.Incref()
	b.Decref()
	if calls != 0 {
		t.Fatalf("deleter ran before last reference released: calls=%d", calls)
	}
	b.Decref()
	if calls != 1 {
		t.Fatalf("expected deleter to run exactly once, got %d", calls)
	}
}

func TestFixedPODDataRoundtrip(t *testing.T) {
	b := NewFixedPOD(16)
	copy(b.Data(), []byte("hello world12345"))
	if string(b.Data()[:5]) != "hello" {
		t.Fatalf("unexpected data: %q", b.Data())
	}
}

func TestObjectBlockDestructsEachElement(t *testing.T) {
	destroyed := []any{}
	b := NewObject([]any{"a", "b", "c"}, func(v any) { destroyed = append(destroyed, v) })
	b.Decref()
	if len(destroyed) != 3 {
		t.Fatalf("expected 3 destructions, got %d: %v", len(destroyed), destroyed)
	}
}

func TestArrayNodeDestructorRuns(t *testing.T) {
	ran := false
	b := NewArrayNode(make([]byte, 4), func() { ran = true })
	b.Decref()
	if !ran {
		t.Fatal("array node destructor did not run")
	}
}

// TestConcurrentDecrefInvokesDestructorExactlyOnce exercises the ordering
// guarantee of spec §5/§8: across concurrent decrefs of a block shared by
// multiple goroutines, exactly one runs the destructor.
func TestConcurrentDecrefInvokesDestructorExactlyOnce(t *testing.T) {
	const holders = 64
	frees := 0
	b := NewExternal(nil, func() { frees++ })
	for i := 1; i < holders; i++ {
		b.Incref()
	}

	var g errgroup.Group
	for i := 0; i < holders; i++ {
		g.Go(func() error {
			b.Decref()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frees != 1 {
		t.Fatalf("expected exactly one free, got %d", frees)
	}
	if b.Refcount() != 0 {
		t.Fatalf("expected refcount 0, got %d", b.Refcount())
	}
}

func TestUniqueIsBestEffort(t *testing.T) {
	b := NewFixedPOD(1)
	if !b.Unique() {
		t.Fatal("freshly created block should report unique")
	}
	b.Incref()
	if b.Unique() {
		t.Fatal("block with two references should not report unique")
	}
	b.Decref()
}
