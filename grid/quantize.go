package grid

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/setanarut/pixelpress/palette"
)

// Policy names a background-detection strategy. Two incompatible policies
// are in production use; both are kept selectable rather than merged.
type Policy int

const (
	// PolicyDarkBackground treats pixels with mean channel value below 30
	// as background and classifies the rest against paint colors only.
	PolicyDarkBackground Policy = iota
	// PolicyLightBackground treats near-white pixels (all channels above
	// 240) as background and lets the rest match any palette entry,
	// background included.
	PolicyLightBackground
)

func (p Policy) String() string {
	switch p {
	case PolicyLightBackground:
		return "light-background"
	default:
		return "dark-background"
	}
}

const (
	darkMeanThreshold  = 30
	lightChanThreshold = 240
)

// Quantize stretch-fits img to Cols×Rows with a Catmull-Rom filter and
// classifies every resulting cell independently. Same image and policy
// always produce the same Grid.
func Quantize(img image.Image, pal palette.Palette, policy Policy) *Grid {
	small := resample(img)
	g := &Grid{}
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			c := small.RGBAAt(col, row)
			g.Cells[row][col] = classify(c.R, c.G, c.B, pal, policy)
		}
	}
	return g
}

// resample stretch-fits (never crops) the source to the grid resolution.
func resample(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, Cols, Rows))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func classify(r, g, b uint8, pal palette.Palette, policy Policy) int {
	switch policy {
	case PolicyLightBackground:
		if r > lightChanThreshold && g > lightChanThreshold && b > lightChanThreshold {
			return palette.Background
		}
		return pal.Nearest(r, g, b)
	default:
		if (int(r)+int(g)+int(b))/3 < darkMeanThreshold {
			return palette.Background
		}
		return pal.NearestPaint(r, g, b)
	}
}
