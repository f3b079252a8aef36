package metadata

import (
	"testing"

	"dynd/pkg/types"
)

func TestConstructAllBuiltinIsNoop(t *testing.T) {
	buffers := [][]byte{{}, {}, {}}
	if err := ConstructAll(types.Builtin(types.Int32), buffers, nil); err != nil {
		t.Fatalf("ConstructAll on a builtin type should be a no-op: %v", err)
	}
}

func TestConstructAllConstructsEveryBuffer(t *testing.T) {
	vs := types.NewVarString(types.EncodingUTF8)
	tr := types.Extended(vs)

	buffers := make([][]byte, 3)
	for i := range buffers {
		buffers[i] = make([]byte, tr.MetadataSize())
	}
	if err := ConstructAll(tr, buffers, nil); err != nil {
		t.Fatalf("ConstructAll: %v", err)
	}
	defer func() {
		for _, buf := range buffers {
			Destruct(tr, buf)
		}
	}()

	for i, buf := range buffers {
		data := make([]byte, tr.DataSize())
		if err := vs.Write(buf, data, "ok"); err != nil {
			t.Errorf("buffer %d: Write after ConstructAll: %v", i, err)
		}
	}
}

func TestVarStringConstructDestructLifecycle(t *testing.T) {
	vs := types.NewVarString(types.EncodingUTF8)
	tr := types.Extended(vs)

	buf := make([]byte, tr.MetadataSize())
	if err := DefaultConstruct(tr, buf, nil); err != nil {
		t.Fatalf("DefaultConstruct: %v", err)
	}

	data := make([]byte, tr.DataSize())
	if err := vs.Write(buf, data, "x"); err != nil {
		t.Fatalf("Write against freshly constructed metadata: %v", err)
	}

	Destruct(tr, buf)

	// Destruct clears the backing arena reference; writing into the
	// destructed metadata lazily builds a fresh one rather than failing,
	// the same "no arena yet" path a never-constructed VarString takes.
	if err := vs.Write(buf, data, "y"); err != nil {
		t.Fatalf("Write against destructed metadata should lazily reconstruct an arena: %v", err)
	}
	got, err := vs.Read(buf, data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "y" {
		t.Errorf("Read after post-destruct Write = %q, want %q", got, "y")
	}
	Destruct(tr, buf)
}
