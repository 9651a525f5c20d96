package palette

import (
	"image"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Method selects the extraction backend for FromImage.
type Method int

const (
	MethodDominantColor Method = iota
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

type weightedColor struct {
	col    colorful.Color
	weight float64
}

// FromImage derives a k-entry candidate palette from an image. Entry 0 is
// the brightest color so it can stand in for the background sentinel.
// Intended for tuning the fixed palette against real generator output,
// not for per-request use.
func FromImage(img image.Image, k int, method Method) Palette {
	var cols []colorful.Color
	switch method {
	case MethodKMeans:
		cols = extractKMeans(img, k)
		if len(cols) == 0 {
			cols = extractDominant(img, k)
		}
	default:
		cols = extractDominant(img, k)
	}
	sortByBrightnessDesc(cols)

	out := make(Palette, 0, len(cols))
	for _, c := range cols {
		out = append(out, Entry{Name: c.Hex(), Color: c})
	}
	return out
}

// sortByBrightnessDesc orders colors bright to dark so the first entry is
// the best background candidate.
func sortByBrightnessDesc(cols []colorful.Color) {
	slices.SortFunc(cols, func(a, b colorful.Color) int {
		ri, gi, bi := a.LinearRgb()
		rj, gj, bj := b.LinearRgb()
		yi := 0.2126*ri + 0.7152*gi + 0.0722*bi
		yj := 0.2126*rj + 0.7152*gj + 0.0722*bj
		if yi > yj {
			return -1
		}
		if yi < yj {
			return 1
		}
		return 0
	})
}

func extractDominant(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}
	nCandidates := max(24, k*8)
	candidates := dominantcolor.FindWeight(img, nCandidates)
	if len(candidates) == 0 {
		return nil
	}
	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		w := c.Weight
		if w <= 0 {
			w = 1e-6
		}
		weighted = append(weighted, weightedColor{col: col.Clamped(), weight: w})
	}
	return selectDiverse(weighted, k)
}

func extractKMeans(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Subsample to keep kmeans tractable on generator-sized images.
	maxSamples := 12000
	step := 1
	if width*height > maxSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	workK := min(max(k*4, k+2), len(dataset))
	km := kmeans.New()
	cc, err := km.Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		center := c.Center
		if len(center) < 3 {
			continue
		}
		col := colorful.Color{R: center[0], G: center[1], B: center[2]}.Clamped()
		w := float64(len(c.Observations))
		if w <= 0 {
			w = 1e-6
		}
		weighted = append(weighted, weightedColor{col: col, weight: w})
	}
	return selectDiverse(weighted, k)
}

// selectDiverse greedily picks k colors, scoring candidates by Lab
// distance to the already-selected set weighted by candidate strength.
func selectDiverse(cands []weightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	type item struct {
		col colorful.Color
		lab [3]float64
		w   float64
	}
	items := make([]item, 0, len(cands))
	maxW := 0.0
	for _, c := range cands {
		col := c.col.Clamped()
		l, a, b := col.Lab()
		if c.weight > maxW {
			maxW = c.weight
		}
		items = append(items, item{col: col, lab: [3]float64{l, a, b}, w: c.weight})
	}
	if k > len(items) {
		k = len(items)
	}
	if maxW <= 0 {
		maxW = 1.0
	}

	selectedIdx := make([]int, 0, k)
	selected := make([]bool, len(items))

	// Seed with the strongest color to stay close to dominant tones.
	bestSeed := 0
	for i := 1; i < len(items); i++ {
		if items[i].w > items[bestSeed].w {
			bestSeed = i
		}
	}
	selectedIdx = append(selectedIdx, bestSeed)
	selected[bestSeed] = true

	for len(selectedIdx) < k {
		bestIdx := -1
		bestScore := -1.0
		for i := range items {
			if selected[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range selectedIdx {
				d0 := items[i].lab[0] - items[s].lab[0]
				d1 := items[i].lab[1] - items[s].lab[1]
				d2 := items[i].lab[2] - items[s].lab[2]
				d2v := d0*d0 + d1*d1 + d2*d2
				if d2v < minD2 {
					minD2 = d2v
				}
			}
			normW := items[i].w / maxW
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(normW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected[bestIdx] = true
		selectedIdx = append(selectedIdx, bestIdx)
	}

	out := make([]colorful.Color, 0, len(selectedIdx))
	for _, idx := range selectedIdx {
		out = append(out, items[idx].col)
	}
	return out
}
