package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"biomemap.ai/internal/sim/world/terrain/layer"
)

var ErrTooLong = errors.New("rle: decoded length exceeds limit")

// AppendRLE appends (biome_id, run_len) uvarint pairs for ids to dst.
func AppendRLE(dst []byte, ids []layer.BiomeID) []byte {
	var tmp [binary.MaxVarintLen64]byte
	for i := 0; i < len(ids); {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b; j++ {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		dst = append(dst, tmp[:n]...)
		n = binary.PutUvarint(tmp[:], uint64(run))
		dst = append(dst, tmp[:n]...)
		i += run
	}
	return dst
}

// EncodeRLE is the wire form: base64(AppendRLE).
func EncodeRLE(ids []layer.BiomeID) string {
	return base64.StdEncoding.EncodeToString(AppendRLE(nil, ids))
}

func DecodeRLE(b64 string, limit int) ([]layer.BiomeID, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return DecodeRLEBytes(raw, limit)
}

// DecodeRLEBytes expands raw pairs. A non-positive limit means no limit.
func DecodeRLEBytes(raw []byte, limit int) ([]layer.BiomeID, error) {
	var out []layer.BiomeID
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("biome id too large: %d", b)
		}
		if run == 0 {
			return nil, fmt.Errorf("zero run at %d", i)
		}
		if limit > 0 && run > uint64(limit-len(out)) {
			return nil, ErrTooLong
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, layer.BiomeID(b))
		}
	}
	return out, nil
}
