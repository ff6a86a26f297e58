package imagemap

import (
	"fmt"
	"strings"
)

// Orientation says which compass direction the top of the image faces.
type Orientation int

const (
	North Orientation = iota // identity
	South                    // 180 degrees
	West                     // clockwise quarter turn
	East                     // counter-clockwise quarter turn
)

func (o Orientation) String() string {
	switch o {
	case North:
		return "North"
	case South:
		return "South"
	case West:
		return "West"
	case East:
		return "East"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "north":
		return North, nil
	case "south":
		return South, nil
	case "west":
		return West, nil
	case "east":
		return East, nil
	}
	return North, fmt.Errorf("unknown image orientation %q", s)
}

// Orient returns g rotated for o. North returns g unchanged; every other
// orientation returns a new grid. West and East swap width and height.
func Orient(g PixelGrid, o Orientation) PixelGrid {
	w, h := g.Width, g.Height
	switch o {
	case South:
		out := NewPixelGrid(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[(h-1-y)*w+w-1-x] = g.Pix[y*w+x]
			}
		}
		return out
	case West:
		out := NewPixelGrid(h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[x*h+h-1-y] = g.Pix[y*w+x]
			}
		}
		return out
	case East:
		out := NewPixelGrid(h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[(w-1-x)*h+y] = g.Pix[y*w+x]
			}
		}
		return out
	default:
		return g
	}
}
