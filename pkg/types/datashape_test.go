package types

import "testing"

func TestDatashapeRoundTrip(t *testing.T) {
	fs, err := NewFixedString(16, EncodingUTF8)
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	fb, err := NewFixedBytes(8, 4)
	if err != nil {
		t.Fatalf("NewFixedBytes: %v", err)
	}
	point, err := NewCStruct([]StructField{
		{Name: "x", Type: Builtin(Int32)},
		{Name: "y", Type: Builtin(Int32)},
	})
	if err != nil {
		t.Fatalf("NewCStruct: %v", err)
	}
	row, err := NewFixedDim(3, Builtin(Float64))
	if err != nil {
		t.Fatalf("NewFixedDim: %v", err)
	}

	cases := []TypeRef{
		Builtin(Int32),
		Builtin(Float64),
		Builtin(Bool),
		Extended(NewVarString(EncodingUTF8)),
		Extended(fs),
		Extended(fb),
		Extended(NewDateTime()),
		Extended(NewDateTimeWithUnit("min", "UTC")),
		Extended(point),
		Extended(row),
	}

	for _, want := range cases {
		shape := Print(want)
		got, err := Parse(shape)
		if err != nil {
			t.Errorf("Parse(%q): %v", shape, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("round trip of %q produced %s, not equal to original", shape, Print(got))
		}
	}
}

func TestDatashapeParseRejectsTrailingGarbage(t *testing.T) {
	if _, err := Parse("int32 extra"); err == nil {
		t.Fatal("expected an error for trailing input after a complete type")
	}
}

func TestDatashapeParseUnknownType(t *testing.T) {
	if _, err := Parse("notatype"); err == nil {
		t.Fatal("expected an error for an unknown type name")
	}
}
