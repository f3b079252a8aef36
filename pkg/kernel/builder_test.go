package kernel

import (
	"encoding/binary"
	"testing"
)

// memcpyKernel builds the trivial composite kernel of assignment §4.5
// step 1: dst <- src, sized to n bytes.
func memcpyKernel(n int) *Kernel {
	b := NewBuilder()
	_, root := b.AppendPrefix()
	root.Single = func(dst, src []byte, node *Node) {
		copy(dst[:n], src[:n])
	}
	return b.Build()
}

func TestMemcpyKernelSingle(t *testing.T) {
	k := memcpyKernel(4)
	defer k.Drop()

	dst := make([]byte, 4)
	src := []byte{1, 2, 3, 4}
	k.InvokeSingle(dst, src)
	if string(dst) != string(src) {
		t.Fatalf("dst = %v, want %v", dst, src)
	}
}

func TestSingleAdaptedToStridedLoop(t *testing.T) {
	k := memcpyKernel(4)
	defer k.Drop()

	dst := make([]byte, 16)
	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i)
	}
	k.InvokeStrided(dst, 4, src, 4, 4)
	if string(dst) != string(src) {
		t.Fatalf("strided-adapted-from-single mismatch: dst=%v src=%v", dst, src)
	}
}

func TestStridedAdaptedToSingle(t *testing.T) {
	b := NewBuilder()
	_, root := b.AppendPrefix()
	root.Strided = func(dst []byte, dstStride int, src []byte, srcStride int, count int, node *Node) {
		for i := 0; i < count; i++ {
			binary.LittleEndian.PutUint32(dst[i*dstStride:], binary.LittleEndian.Uint32(src[i*srcStride:])*2)
		}
	}
	k := b.Build()
	defer k.Drop()

	dst := make([]byte, 4)
	src := make([]byte, 4)
	binary.LittleEndian.PutUint32(src, 21)
	k.InvokeSingle(dst, src)
	if got := binary.LittleEndian.Uint32(dst); got != 42 {
		t.Fatalf("single-adapted-from-strided mismatch: got %d want 42", got)
	}
}

func TestDropInvokesEachDestructorExactlyOnce(t *testing.T) {
	calls := map[int]int{}
	b := NewBuilder()
	for i := 0; i < 3; i++ {
		i := i
		_, n := b.AppendPrefix()
		n.Drop = func() { calls[i]++ }
	}
	k := b.Build()
	k.Drop()

	for i := 0; i < 3; i++ {
		if calls[i] != 1 {
			t.Fatalf("node %d destructor ran %d times, want 1", i, calls[i])
		}
	}
}

func TestChildNodesInvokedInOffsetOrder(t *testing.T) {
	var order []int
	b := NewBuilder()

	rootOffset, root := b.AppendPrefix()
	if rootOffset != 0 {
		t.Fatalf("expected root at offset 0, got %d", rootOffset)
	}
	childOffset, child := b.AppendPrefix()
	child.Single = func(dst, src []byte, node *Node) { order = append(order, childOffset) }
	root.State = childOffset
	root.Single = func(dst, src []byte, node *Node) {
		order = append(order, rootOffset)
		b.GetAt(node.State.(int)).Single(dst, src, b.GetAt(node.State.(int)))
	}

	k := b.Build()
	defer k.Drop()
	k.InvokeSingle(nil, nil)

	if len(order) != 2 || order[0] != rootOffset || order[1] != childOffset {
		t.Fatalf("unexpected invocation order: %v", order)
	}
}
