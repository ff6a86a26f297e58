package mathx

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Fold reflects a into [0, b): values in [b, 2b) of each 2b period run backwards.
func Fold(a, b int) int {
	// b > 0
	m := Mod(a, 2*b)
	if m >= b {
		return b - 1 - (m - b)
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(x)
	uz := uint64(z)
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// SubSat returns a-b, saturating at the int range instead of wrapping.
func SubSat(a, b int) int {
	r := a - b
	if a >= 0 && b < 0 && r < 0 {
		return math.MaxInt
	}
	if a < 0 && b > 0 && r >= 0 {
		return math.MinInt
	}
	return r
}
