package encoding

import (
	"encoding/base64"
	"errors"
	"testing"

	"biomemap.ai/internal/sim/world/terrain/layer"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]layer.BiomeID, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10, 65535)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_UniformGridIsCompact(t *testing.T) {
	in := make([]layer.BiomeID, 1<<16)
	raw := AppendRLE(nil, in)
	if len(raw) > 4 {
		t.Fatalf("uniform grid encoded to %d bytes", len(raw))
	}
	out, err := DecodeRLEBytes(raw, 0)
	if err != nil || len(out) != len(in) {
		t.Fatalf("decode: len=%d err=%v", len(out), err)
	}
}

func TestRLE_Limit(t *testing.T) {
	enc := EncodeRLE(make([]layer.BiomeID, 100))
	if _, err := DecodeRLE(enc, 99); !errors.Is(err, ErrTooLong) {
		t.Fatalf("err=%v want ErrTooLong", err)
	}
	if _, err := DecodeRLE(enc, 100); err != nil {
		t.Fatalf("exact limit: %v", err)
	}
}

func TestRLE_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"truncated": {0x01},
		"zero run":  {0x01, 0x00},
		"big id":    {0x80, 0x80, 0x04, 0x01},
	}
	for name, raw := range cases {
		if _, err := DecodeRLE(base64.StdEncoding.EncodeToString(raw), 0); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := DecodeRLE("!!!", 0); err == nil {
		t.Fatalf("bad base64 accepted")
	}
}
