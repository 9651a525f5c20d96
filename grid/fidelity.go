package grid

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/setanarut/pixelpress/palette"
)

// Report summarizes per-cell RGB reconstruction error between the
// resampled source and the quantized grid. Used for comparing background
// policies against real generator output.
type Report struct {
	MeanError   float64
	StddevError float64
	MaxError    float64
	Painted     int // cells holding a non-background index
}

// Fidelity measures how far each painted cell's palette color sits from
// the resampled source pixel, in Euclidean RGB distance (0..441).
func Fidelity(img image.Image, g *Grid, pal palette.Palette) Report {
	small := resample(img)
	errs := make([]float64, 0, Rows*Cols)
	painted := 0
	maxErr := 0.0
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			idx := g.Cells[row][col]
			if idx == palette.Background {
				continue
			}
			painted++
			c := small.RGBAAt(col, row)
			pr, pg, pb := pal[idx].RGB255()
			dr := float64(int(pr) - int(c.R))
			dg := float64(int(pg) - int(c.G))
			db := float64(int(pb) - int(c.B))
			e := math.Sqrt(dr*dr + dg*dg + db*db)
			errs = append(errs, e)
			if e > maxErr {
				maxErr = e
			}
		}
	}
	if len(errs) == 0 {
		return Report{}
	}
	mean, std := stat.MeanStdDev(errs, nil)
	return Report{
		MeanError:   mean,
		StddevError: std,
		MaxError:    maxErr,
		Painted:     painted,
	}
}
