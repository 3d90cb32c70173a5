package compression

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("resource-spans-payload "), 200)

	for _, typ := range []Type{TypeNone, TypeGzip, TypeZstd, TypeSnappy, TypeLZ4} {
		codec, err := New(Config{Type: typ})
		if err != nil {
			t.Fatalf("%s: New: %v", typ, err)
		}

		encoded, err := codec.Encode(payload)
		if err != nil {
			t.Fatalf("%s: Encode: %v", typ, err)
		}
		if typ != TypeNone && len(encoded) >= len(payload) {
			t.Errorf("%s: repetitive payload did not compress (%d >= %d)", typ, len(encoded), len(payload))
		}

		decoded, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("%s: Decode: %v", typ, err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Errorf("%s: round trip mismatch", typ)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	codec, err := New(Config{Type: TypeZstd})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	encoded, err := codec.Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(decoded))
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"":       TypeNone,
		"none":   TypeNone,
		"gzip":   TypeGzip,
		"ZSTD":   TypeZstd,
		"snappy": TypeSnappy,
		"lz4":    TypeLZ4,
	}
	for input, want := range cases {
		got, err := ParseType(input)
		if err != nil {
			t.Errorf("ParseType(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseType(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseType("brotli"); err == nil {
		t.Errorf("expected error for unsupported type")
	}
}

func TestContentEncoding(t *testing.T) {
	if TypeZstd.ContentEncoding() != "zstd" {
		t.Errorf("unexpected encoding for zstd")
	}
	if TypeNone.ContentEncoding() != "" {
		t.Errorf("none must map to empty encoding")
	}
}
