// Package palette defines the fixed drawable color set and the
// nearest-color classifier used by the quantizer and the replay engine.
package palette

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Entry is one selectable color on the target canvas site.
type Entry struct {
	Name  string
	Color colorful.Color
}

// Palette is an ordered color set. Index 0 is always the background/erase
// sentinel and is never painted; the order of the remaining entries is the
// traversal order of the site's color selectors.
type Palette []Entry

// Background is the reserved index meaning "do not paint this cell".
const Background = 0

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0}
}

// Default is the 12-entry palette matching the target site's selector row.
func Default() Palette {
	return Palette{
		{Name: "blank", Color: rgb(255, 255, 255)},
		{Name: "black", Color: rgb(20, 20, 20)},
		{Name: "gray", Color: rgb(128, 128, 128)},
		{Name: "brown", Color: rgb(139, 87, 42)},
		{Name: "red", Color: rgb(220, 40, 40)},
		{Name: "orange", Color: rgb(245, 140, 30)},
		{Name: "yellow", Color: rgb(250, 220, 60)},
		{Name: "green", Color: rgb(60, 170, 70)},
		{Name: "cyan", Color: rgb(70, 200, 210)},
		{Name: "blue", Color: rgb(50, 90, 220)},
		{Name: "purple", Color: rgb(140, 70, 200)},
		{Name: "pink", Color: rgb(240, 130, 180)},
	}
}

// RGB255 returns the entry color as 8-bit channels.
func (e Entry) RGB255() (uint8, uint8, uint8) {
	return e.Color.RGB255()
}

// Nearest returns the index of the entry closest to the given channels
// under squared Euclidean RGB distance. Ties resolve to the lowest index.
func (p Palette) Nearest(r, g, b uint8) int {
	return p.nearestFrom(0, r, g, b)
}

// NearestPaint is Nearest with the background sentinel excluded from
// candidacy. Callers use it after classifying a pixel as foreground by a
// separate threshold.
func (p Palette) NearestPaint(r, g, b uint8) int {
	if len(p) < 2 {
		return Background
	}
	return p.nearestFrom(1, r, g, b)
}

func (p Palette) nearestFrom(start int, r, g, b uint8) int {
	best := start
	bestD := 1 << 30
	for i := start; i < len(p); i++ {
		er, eg, eb := p[i].RGB255()
		dr := int(er) - int(r)
		dg := int(eg) - int(g)
		db := int(eb) - int(b)
		d := dr*dr + dg*dg + db*db
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}
