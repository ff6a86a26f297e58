package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"biomemap.ai/internal/sim/world/terrain/layer"
)

const ChunkSize = 16

// ValidChunkCoord reports whether the chunk's origin cell
// (cx*ChunkSize, cz*ChunkSize) is representable as an int.
func ValidChunkCoord(cx, cz int) bool {
	return chunkCoordInRange(cx) && chunkCoordInRange(cz)
}

func chunkCoordInRange(c int) bool {
	return c >= math.MinInt/ChunkSize && c <= math.MaxInt/ChunkSize
}

type ChunkKey struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

// Chunk is an immutable 16x16 biome tile, row-major (x + z*16).
type Chunk struct {
	CX, CZ int
	Biomes []layer.BiomeID

	hash [32]byte
}

func newChunk(cx, cz int, biomes []layer.BiomeID) *Chunk {
	c := &Chunk{CX: cx, CZ: cz, Biomes: biomes}
	h := sha256.New()
	var tmp [2]byte
	for _, v := range biomes {
		binary.LittleEndian.PutUint16(tmp[:], uint16(v))
		h.Write(tmp[:])
	}
	copy(c.hash[:], h.Sum(nil))
	return c
}

func (c *Chunk) Get(x, z int) layer.BiomeID {
	return c.Biomes[x+z*ChunkSize]
}

func (c *Chunk) Digest() [32]byte { return c.hash }

func (c *Chunk) DigestHex() string { return hex.EncodeToString(c.hash[:]) }
