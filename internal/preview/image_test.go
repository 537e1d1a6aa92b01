package preview

import (
	"math"
	"testing"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/grid"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
)

func demGrid(w, h int, data []float32) *raster.Grid {
	return &raster.Grid{
		Meta: raster.Meta{
			Width: w, Height: h,
			Ref:    grid.Ref{OriginX: 2600000, OriginY: 1200000, CellSize: 2},
			NoData: -9999, HasNoData: true,
		},
		Data: data,
	}
}

func TestGrayImageStretch(t *testing.T) {
	g := demGrid(2, 2, []float32{100, 200, 300, -9999})
	img := GrayImage(g)

	if got := img.Bounds(); got.Dx() != 2 || got.Dy() != 2 {
		t.Fatalf("image bounds = %v, want 2x2", got)
	}
	// min maps to black, max to white
	if c := img.NRGBAAt(0, 0); c.R != 0 || c.A != 255 {
		t.Errorf("min cell = %+v, want black opaque", c)
	}
	if c := img.NRGBAAt(0, 1); c.R != 255 || c.A != 255 {
		t.Errorf("max cell = %+v, want white opaque", c)
	}
	// mid-range cell lands mid-gray
	if c := img.NRGBAAt(1, 0); c.R != 128 || c.G != c.R || c.B != c.R {
		t.Errorf("mid cell = %+v, want gray 128", c)
	}
	// nodata is fully transparent
	if c := img.NRGBAAt(1, 1); c.A != 0 {
		t.Errorf("nodata cell = %+v, want transparent", c)
	}
}

func TestGrayImageFlatDEM(t *testing.T) {
	g := demGrid(2, 1, []float32{42, 42})
	img := GrayImage(g)
	// a flat DEM must not divide by zero; both cells come out the same
	a, b := img.NRGBAAt(0, 0), img.NRGBAAt(1, 0)
	if a != b {
		t.Errorf("flat DEM rendered unevenly: %+v vs %+v", a, b)
	}
	if a.A != 255 {
		t.Errorf("valid cell = %+v, want opaque", a)
	}
}

func TestGrayImageNaNCells(t *testing.T) {
	g := demGrid(2, 1, []float32{float32(math.NaN()), 7})
	img := GrayImage(g)
	if c := img.NRGBAAt(0, 0); c.A != 0 {
		t.Errorf("NaN cell = %+v, want transparent", c)
	}
	if c := img.NRGBAAt(1, 0); c.A != 255 {
		t.Errorf("valid cell = %+v, want opaque", c)
	}
}
