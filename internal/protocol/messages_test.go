package protocol

import "testing"

func TestQueryValidate(t *testing.T) {
	ok := QueryMsg{SizeX: 16, SizeZ: 16}
	ok.Normalize()
	if ok.Encoding != EncodingRLE {
		t.Fatalf("default encoding=%q want RLE", ok.Encoding)
	}
	if code, err := ok.Validate(256); err != nil {
		t.Fatalf("valid query rejected: %s %v", code, err)
	}

	cases := []QueryMsg{
		{SizeX: 0, SizeZ: 4, Encoding: EncodingRLE},
		{SizeX: 4, SizeZ: -1, Encoding: EncodingRLE},
		{SizeX: 17, SizeZ: 16, Encoding: EncodingRLE},
		{SizeX: 1 << 40, SizeZ: 1 << 40, Encoding: EncodingRLE},
		{SizeX: 1, SizeZ: 1, Encoding: "PNG"},
	}
	for i, q := range cases {
		code, err := q.Validate(256)
		if err == nil || code != ErrBadRequest {
			t.Fatalf("case %d: code=%q err=%v", i, code, err)
		}
	}
}

func TestQueryNormalizeEncodingCase(t *testing.T) {
	q := QueryMsg{Encoding: " raw "}
	q.Normalize()
	if q.Encoding != EncodingRaw {
		t.Fatalf("encoding=%q", q.Encoding)
	}
}
