// Package kernel implements DyND's composite kernel builder: a tree of
// child kernels built at runtime and invoked through a uniform
// single/strided function-pointer contract (spec §4.3).
//
// A raw byte arena holding literal C-style function-pointer headers (as
// the original design does) is not expressible safely in Go: offsets
// into a slice that can still grow would alias live pointers across a
// reallocation. Builder instead keeps one []*Node slice, appended to
// exactly once per prefix; each Node is heap-allocated independently, so
// growing the index slice never invalidates a *Node a producer is still
// holding. See DESIGN.md's kernel builder entry for the full rationale.
package kernel

// SingleFn processes one element: dst <- f(src), via the node it was
// built on (for access to captured state / child nodes).
type SingleFn func(dst, src []byte, node *Node)

// StridedFn processes count elements, striding dst and src by the given
// byte strides between elements.
type StridedFn func(dst []byte, dstStride int, src []byte, srcStride int, count int, node *Node)

// CompareFn evaluates one already-resolved comparison operator (spec
// §4.6) over a single lhs/rhs pair, returning its boolean result. Unlike
// assignment kernels, a comparison kernel has two independent inputs and
// no destination buffer, so it gets its own function shape rather than
// reusing SingleFn.
type CompareFn func(lhs, rhs []byte, node *Node) bool

// Node is the Go analogue of a kernel prefix: the {fn, drop} header plus
// whatever trailing state the producer attached. Children of a composite
// kernel are themselves Nodes, reachable from their parent's State (the
// producer is responsible for recording child offsets/pointers there).
type Node struct {
	Single  SingleFn
	Strided StridedFn
	Compare CompareFn
	Drop    func()
	State   any
}

// Builder accumulates a composite kernel as a sequence of Nodes sharing
// one build. Offset 0 is always the root.
type Builder struct {
	nodes []*Node
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Reserve ensures the builder has room for n more prefixes without
// reallocating its index slice. Purely an optimization hint —
// AppendPrefix is always safe to call without it.
func (b *Builder) Reserve(n int) {
	if cap(b.nodes)-len(b.nodes) >= n {
		return
	}
	grown := make([]*Node, len(b.nodes), len(b.nodes)+n)
	copy(grown, b.nodes)
	b.nodes = grown
}

// AppendPrefix appends a new zero-initialized Node, returning its offset
// (index in the prefix chain) and a pointer to it for the caller to
// populate. The returned pointer remains valid for the life of the
// Builder.
func (b *Builder) AppendPrefix() (offset int, node *Node) {
	node = &Node{}
	b.nodes = append(b.nodes, node)
	return len(b.nodes) - 1, node
}

// GetAt returns the Node previously appended at offset. Callers must
// have appended at offset with AppendPrefix; out-of-range offsets panic,
// signaling a producer bug rather than a recoverable error.
func (b *Builder) GetAt(offset int) *Node {
	return b.nodes[offset]
}

// Len returns the number of prefixes appended so far; producers that
// need to record a "child offset" for a node appended next should record
// Len() before calling AppendPrefix.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Root returns the root prefix (offset 0), or nil if nothing has been
// appended yet.
func (b *Builder) Root() *Node {
	if len(b.nodes) == 0 {
		return nil
	}
	return b.nodes[0]
}

// Drop walks the prefix chain in append order, invoking each node's
// destructor exactly once, then releases the builder's storage. Per
// spec §3, a composite kernel's destructor is invoked exactly once when
// it is dropped.
func (b *Builder) Drop() {
	for _, n := range b.nodes {
		if n.Drop != nil {
			n.Drop()
		}
	}
	b.nodes = nil
}

// Kernel is the built, invocable product of a Builder: the root prefix
// plus everything it was composed with.
type Kernel struct {
	b *Builder
}

// Build finalizes the builder into an invocable Kernel. The builder must
// not be appended to again afterward.
func (b *Builder) Build() *Kernel {
	return &Kernel{b: b}
}

// InvokeSingle calls the kernel's single-element entry point, adapting
// from a strided root if that's the only form the producer built.
func (k *Kernel) InvokeSingle(dst, src []byte) {
	root := k.b.Root()
	if root.Single != nil {
		root.Single(dst, src, root)
		return
	}
	root.Strided(dst, 0, src, 0, 1, root)
}

// InvokeStrided calls the kernel's strided entry point, adapting from a
// single-element root (looping) if that's the only form the producer
// built.
func (k *Kernel) InvokeStrided(dst []byte, dstStride int, src []byte, srcStride int, count int) {
	root := k.b.Root()
	if root.Strided != nil {
		root.Strided(dst, dstStride, src, srcStride, count, root)
		return
	}
	for i := 0; i < count; i++ {
		root.Single(dst[i*dstStride:], src[i*srcStride:], root)
	}
}

// InvokeCompare calls the kernel's comparison entry point.
func (k *Kernel) InvokeCompare(lhs, rhs []byte) bool {
	root := k.b.Root()
	return root.Compare(lhs, rhs, root)
}

// Drop releases the kernel's underlying builder, running every node's
// destructor exactly once.
func (k *Kernel) Drop() {
	k.b.Drop()
}
