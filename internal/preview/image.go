package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
)

// GrayImage renders a DEM as an 8-bit grayscale image, stretching the valid
// elevation range to 0..255. Nodata cells come out fully transparent.
func GrayImage(g *raster.Grid) *image.NRGBA {
	min, max := validRange(g)
	span := max - min
	if span <= 0 {
		span = 1
	}

	nodata := float32(g.NoData)
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.Data[row*g.Width+col]
			if v == nodata || math.IsNaN(float64(v)) {
				img.SetNRGBA(col, row, color.NRGBA{})
				continue
			}
			gray := uint8(math.Round(float64(v-min) / float64(span) * 255))
			img.SetNRGBA(col, row, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return img
}

func validRange(g *raster.Grid) (min, max float32) {
	nodata := float32(g.NoData)
	found := false
	for _, v := range g.Data {
		if v == nodata || math.IsNaN(float64(v)) {
			continue
		}
		if !found || v < min {
			min = v
		}
		if !found || v > max {
			max = v
		}
		found = true
	}
	return min, max
}
