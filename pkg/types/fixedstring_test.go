package types

import "testing"

func TestFixedStringEncodeDecodeRoundTrip(t *testing.T) {
	fs, err := NewFixedString(16, EncodingUTF8)
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	buf, err := fs.EncodeUTF8("hello")
	if err != nil {
		t.Fatalf("EncodeUTF8: %v", err)
	}
	if len(buf) != fs.DataSize() {
		t.Fatalf("encoded buffer length = %d, want %d", len(buf), fs.DataSize())
	}
	got, err := fs.DecodeUTF8(buf)
	if err != nil {
		t.Fatalf("DecodeUTF8: %v", err)
	}
	if got != "hello" {
		t.Errorf("round trip = %q, want %q", got, "hello")
	}
}

func TestFixedStringEncodeOverflow(t *testing.T) {
	fs, err := NewFixedString(4, EncodingUTF8)
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	if _, err := fs.EncodeUTF8("too long"); err == nil {
		t.Fatal("expected an overflow error for a string longer than the buffer")
	}
}

func TestFixedStringUTF16RoundTrip(t *testing.T) {
	fs, err := NewFixedString(8, EncodingUTF16)
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	buf, err := fs.EncodeUTF8("héllo")
	if err != nil {
		t.Fatalf("EncodeUTF8: %v", err)
	}
	got, err := fs.DecodeUTF8(buf)
	if err != nil {
		t.Fatalf("DecodeUTF8: %v", err)
	}
	if got != "héllo" {
		t.Errorf("round trip = %q, want %q", got, "héllo")
	}
}

func TestVarStringReadWriteRoundTrip(t *testing.T) {
	vs := NewVarString(EncodingUTF8)
	metadata := make([]byte, vs.MetadataSize())
	if err := vs.MetadataDefaultConstruct(metadata, nil); err != nil {
		t.Fatalf("MetadataDefaultConstruct: %v", err)
	}
	defer vs.MetadataDestruct(metadata)

	data := make([]byte, vs.DataSize())
	if err := vs.Write(metadata, data, "a variable length string"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := vs.Read(metadata, data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "a variable length string" {
		t.Errorf("round trip = %q, want %q", got, "a variable length string")
	}
}
