// Package preview renders a quantized grid as standalone SVG markup so a
// human can confirm the art before it is published.
package preview

import (
	"fmt"
	"strings"

	"github.com/setanarut/pixelpress/grid"
	"github.com/setanarut/pixelpress/palette"
)

// CellSize is the side length of one cell rectangle in SVG units. Cell
// (row, col) renders at (col*CellSize, row*CellSize), matching the replay
// engine's cell addressing exactly.
const CellSize = 10

type Options struct {
	// PaintBackground renders an explicit rect for background cells
	// instead of leaving them transparent over the backdrop.
	PaintBackground bool
}

// SVG renders one uniformly colored rectangle per painted cell. The
// output is viewable standalone.
func SVG(g *grid.Grid, pal palette.Palette, opts Options) string {
	w := grid.Cols * CellSize
	h := grid.Rows * CellSize

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	b.WriteByte('\n')
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="%s"/>`, w, h, pal[palette.Background].Color.Hex())
	b.WriteByte('\n')

	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			idx := g.At(row, col)
			if idx == palette.Background && !opts.PaintBackground {
				continue
			}
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
				col*CellSize, row*CellSize, CellSize, CellSize, pal[idx].Color.Hex())
			b.WriteByte('\n')
		}
	}
	b.WriteString("</svg>\n")
	return b.String()
}
