package types

import "testing"

func TestCStructFieldLayout(t *testing.T) {
	cs, err := NewCStruct([]StructField{
		{Name: "a", Type: Builtin(Int32)},
		{Name: "b", Type: Builtin(Int16)},
		{Name: "c", Type: Builtin(Int16)},
	})
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}

	wantOffsets := []int{0, 4, 6}
	for i, want := range wantOffsets {
		if got := cs.FieldDataOffsetAt(i, nil); got != want {
			t.Errorf("field %d offset = %d, want %d", i, got, want)
		}
	}
	if cs.DataSize() != 8 {
		t.Errorf("DataSize() = %d, want 8", cs.DataSize())
	}
	if cs.DataAlignment() != 4 {
		t.Errorf("DataAlignment() = %d, want 4", cs.DataAlignment())
	}
}

func TestCStructEqual(t *testing.T) {
	fields := []StructField{{Name: "x", Type: Builtin(Int32)}}
	a, err := NewCStruct(fields)
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}
	b, err := NewCStruct(fields)
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}
	if !a.Equal(b) {
		t.Error("two cstructs built from equal field lists should be Equal")
	}

	c, err := NewCStruct([]StructField{{Name: "y", Type: Builtin(Int32)}})
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}
	if a.Equal(c) {
		t.Error("cstructs with differing field names should not be Equal")
	}
}
