package imagemap

import (
	"fmt"
	"strings"
)

// Mode is the edge policy for coordinates outside the image.
type Mode int

const (
	Repeat Mode = iota
	Mirror
	ContinueNormal
	FillEmpty
)

func (m Mode) String() string {
	switch m {
	case Repeat:
		return "Repeat"
	case Mirror:
		return "Mirror"
	case ContinueNormal:
		return "ContinueNormal"
	case FillEmpty:
		return "FillEmpty"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "repeat":
		return Repeat, nil
	case "mirror":
		return Mirror, nil
	case "continuenormal", "continue_normal":
		return ContinueNormal, nil
	case "fillempty", "fill_empty":
		return FillEmpty, nil
	}
	return Repeat, fmt.Errorf("unknown image mode %q", s)
}
