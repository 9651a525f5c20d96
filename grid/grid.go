// Package grid holds the quantized low-resolution representation of
// generated art: one palette index per cell.
package grid

// Fixed canvas dimensions of the target site.
const (
	Rows = 32
	Cols = 48
)

// Grid is a Rows×Cols array of palette indices. Index 0 means the cell is
// left unpainted. A Grid is created fresh per generation request and is
// not mutated after Quantize returns it.
type Grid struct {
	Cells [Rows][Cols]int
}

// At returns the palette index at (row, col).
func (g *Grid) At(row, col int) int {
	return g.Cells[row][col]
}

// CellsWith returns the (row, col) pairs assigned the given palette index,
// in row-major scan order. This is the paint order the replay engine uses.
func (g *Grid) CellsWith(idx int) [][2]int {
	var out [][2]int
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			if g.Cells[row][col] == idx {
				out = append(out, [2]int{row, col})
			}
		}
	}
	return out
}

// Counts returns how many cells hold each palette index.
func (g *Grid) Counts(paletteSize int) []int {
	counts := make([]int, paletteSize)
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			idx := g.Cells[row][col]
			if idx >= 0 && idx < paletteSize {
				counts[idx]++
			}
		}
	}
	return counts
}
