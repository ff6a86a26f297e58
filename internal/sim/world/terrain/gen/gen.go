package gen

import (
	"biomemap.ai/internal/sim/world/logic/mathx"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

func FloorDiv(a, b int) int {
	return mathx.FloorDiv(a, b)
}

func Hash2(seed int64, x, z int) uint64 {
	return mathx.Hash2(seed, x, z)
}

// BiomeFrom picks one of biomes by hash noise.
func BiomeFrom(noise uint64, biomes []layer.BiomeID) layer.BiomeID {
	return biomes[noise%uint64(len(biomes))]
}

func BiomeAt(seed int64, x, z, regionSize int, biomes []layer.BiomeID) layer.BiomeID {
	if regionSize <= 0 {
		regionSize = 1
	}
	rx := FloorDiv(x, regionSize)
	rz := FloorDiv(z, regionSize)
	return BiomeFrom(Hash2(seed, rx, rz), biomes)
}

// RegionLayer assigns one biome per regionSize x regionSize square, chosen by
// a seeded hash of the region coordinates. It is the usual downstream for an
// image layer running in ContinueNormal mode.
type RegionLayer struct {
	Seed       int64
	RegionSize int
	Biomes     []layer.BiomeID
}

func NewRegionLayer(seed int64, regionSize int, biomes []layer.BiomeID) *RegionLayer {
	if regionSize <= 0 {
		regionSize = 1
	}
	bs := make([]layer.BiomeID, len(biomes))
	copy(bs, biomes)
	if len(bs) == 0 {
		bs = []layer.BiomeID{0}
	}
	return &RegionLayer{Seed: seed, RegionSize: regionSize, Biomes: bs}
}

func (l *RegionLayer) Query(dst []layer.BiomeID, x, z, sizeX, sizeZ int) []layer.BiomeID {
	out := layer.Grow(dst, layer.Cells(sizeX, sizeZ))
	if len(out) == 0 {
		return out
	}
	for zi := 0; zi < sizeZ; zi++ {
		row := out[zi*sizeX : (zi+1)*sizeX]
		rz := FloorDiv(z+zi, l.RegionSize)
		// Adjacent cells usually share a region; only rehash on region change.
		lastRX := FloorDiv(x, l.RegionSize)
		cur := BiomeFrom(Hash2(l.Seed, lastRX, rz), l.Biomes)
		for xi := range row {
			rx := FloorDiv(x+xi, l.RegionSize)
			if rx != lastRX {
				lastRX = rx
				cur = BiomeFrom(Hash2(l.Seed, rx, rz), l.Biomes)
			}
			row[xi] = cur
		}
	}
	return out
}
