// Package layer defines the tiled biome source contract shared by every
// stage of the biome pipeline.
package layer

// BiomeID is a registry-assigned biome identifier.
type BiomeID uint16

// Source answers rectangular biome lookups on the infinite (x, z) plane.
//
// Query writes sizeX*sizeZ ids in row-major order (x fastest) and returns the
// filled slice. dst is reused when its capacity is large enough; the caller
// owns it for the duration of the call. Implementations must be safe for
// concurrent use.
type Source interface {
	Query(dst []BiomeID, x, z, sizeX, sizeZ int) []BiomeID
}

// Grow returns dst resized to n, allocating only when cap(dst) < n.
func Grow(dst []BiomeID, n int) []BiomeID {
	if n <= 0 {
		return dst[:0]
	}
	if cap(dst) < n {
		return make([]BiomeID, n)
	}
	return dst[:n]
}

// Cells returns sizeX*sizeZ, or 0 when either side is non-positive.
func Cells(sizeX, sizeZ int) int {
	if sizeX <= 0 || sizeZ <= 0 {
		return 0
	}
	return sizeX * sizeZ
}

// Constant is a Source that returns the same id everywhere.
type Constant BiomeID

func (c Constant) Query(dst []BiomeID, x, z, sizeX, sizeZ int) []BiomeID {
	out := Grow(dst, Cells(sizeX, sizeZ))
	for i := range out {
		out[i] = BiomeID(c)
	}
	return out
}
