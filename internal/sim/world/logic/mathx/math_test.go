package mathx

import (
	"math"
	"testing"
)

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct {
		a, b     int
		div, mod int
	}{
		{7, 3, 2, 1},
		{-7, 3, -3, 2},
		{-3, 3, -1, 0},
		{0, 5, 0, 0},
		{-1, 16, -1, 15},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.div {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.div)
		}
		if got := Mod(c.a, c.b); got != c.mod {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.mod)
		}
	}
}

func TestFold(t *testing.T) {
	// width 3: ... 1 0 | 0 1 2 | 2 1 0 | 0 1 ...
	want := map[int]int{-2: 1, -1: 0, 0: 0, 1: 1, 2: 2, 3: 2, 4: 1, 5: 0, 6: 0}
	for a, w := range want {
		if got := Fold(a, 3); got != w {
			t.Fatalf("Fold(%d,3)=%d want %d", a, got, w)
		}
	}
}

func TestModLargeCoordinates(t *testing.T) {
	if got := Mod(math.MinInt64, 7); got < 0 || got >= 7 {
		t.Fatalf("Mod(MinInt64,7)=%d out of range", got)
	}
	if got := Fold(math.MaxInt64, 5); got < 0 || got >= 5 {
		t.Fatalf("Fold(MaxInt64,5)=%d out of range", got)
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(1, 2, 3) != Hash2(1, 2, 3) {
		t.Fatalf("Hash2 not deterministic")
	}
	if Hash2(1, 2, 3) == Hash2(2, 2, 3) {
		t.Fatalf("Hash2 ignores seed")
	}
}

func TestSubSat(t *testing.T) {
	if got := SubSat(5, 7); got != -2 {
		t.Fatalf("SubSat(5,7)=%d want -2", got)
	}
	if got := SubSat(math.MaxInt, -1); got != math.MaxInt {
		t.Fatalf("SubSat overflow=%d want MaxInt", got)
	}
	if got := SubSat(math.MinInt, 1); got != math.MinInt {
		t.Fatalf("SubSat underflow=%d want MinInt", got)
	}
}
