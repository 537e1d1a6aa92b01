package grid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// AlignTolerance is the maximum fraction of a cell by which a tile origin may
// deviate from the common pixel grid and still be considered aligned.
const AlignTolerance = 1e-6

// Ref is a north-up pixel grid reference: the world coordinate of the
// top-left corner of pixel (0,0) and the square cell size. Columns grow
// towards +X, rows grow towards -Y.
type Ref struct {
	OriginX  float64
	OriginY  float64
	CellSize float64
}

// Window is an integer pixel region within a grid.
type Window struct {
	Col    int
	Row    int
	Width  int
	Height int
}

// RefFromGeoTransform builds a Ref from a GDAL-style geotransform.
// Rotated or skewed transforms and non-square or south-up cells are rejected.
func RefFromGeoTransform(gt [6]float64) (Ref, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return Ref{}, fmt.Errorf("rotated or skewed geotransform is not supported (gt[2]=%g, gt[4]=%g)", gt[2], gt[4])
	}
	if gt[1] <= 0 || gt[5] >= 0 {
		return Ref{}, fmt.Errorf("expected north-up geotransform with positive cell size, got gt[1]=%g, gt[5]=%g", gt[1], gt[5])
	}
	if math.Abs(gt[1]+gt[5]) > AlignTolerance*gt[1] {
		return Ref{}, fmt.Errorf("non-square cells are not supported (%g x %g)", gt[1], -gt[5])
	}
	return Ref{OriginX: gt[0], OriginY: gt[3], CellSize: gt[1]}, nil
}

// GeoTransform returns the GDAL-style geotransform of the grid.
func (r Ref) GeoTransform() [6]float64 {
	return [6]float64{r.OriginX, r.CellSize, 0, r.OriginY, 0, -r.CellSize}
}

// Extent returns the bounding rectangle covered by a grid of cols x rows
// pixels anchored at the reference origin.
func (r Ref) Extent(cols, rows int) orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.OriginX, r.OriginY - float64(rows)*r.CellSize},
		Max: orb.Point{r.OriginX + float64(cols)*r.CellSize, r.OriginY},
	}
}

// Union returns the exact union rectangle of the given extents.
func Union(extents []orb.Bound) orb.Bound {
	u := extents[0]
	for _, e := range extents[1:] {
		u = u.Union(e)
	}
	return u
}

// Shape returns the number of whole pixels needed to cover extent, rounding
// to the nearest pixel in each axis.
func (r Ref) Shape(extent orb.Bound) (cols, rows int) {
	cols = int(math.Round((extent.Max.X() - extent.Min.X()) / r.CellSize))
	rows = int(math.Round((extent.Max.Y() - extent.Min.Y()) / r.CellSize))
	return cols, rows
}

// Window computes the pixel window of extent within the grid. The extent's
// corners are snapped to the nearest pixel boundary; use Aligned to verify
// the snap is exact.
func (r Ref) Window(extent orb.Bound) Window {
	col := int(math.Round((extent.Min.X() - r.OriginX) / r.CellSize))
	row := int(math.Round((r.OriginY - extent.Max.Y()) / r.CellSize))
	w, h := r.Shape(extent)
	return Window{Col: col, Row: row, Width: w, Height: h}
}

// Misalignment reports the offsets of extent's top-left corner from the
// nearest pixel boundary of the grid, as fractions of a cell.
func (r Ref) Misalignment(extent orb.Bound) (dx, dy float64) {
	cx := (extent.Min.X() - r.OriginX) / r.CellSize
	cy := (r.OriginY - extent.Max.Y()) / r.CellSize
	dx = cx - math.Round(cx)
	dy = cy - math.Round(cy)
	return dx, dy
}

// Aligned reports whether extent's corner sits on the grid's pixel lattice,
// i.e. the tile can be placed into the grid without resampling.
func (r Ref) Aligned(extent orb.Bound) bool {
	dx, dy := r.Misalignment(extent)
	return math.Abs(dx) <= AlignTolerance && math.Abs(dy) <= AlignTolerance
}

// SameCellSize reports whether two cell sizes agree within AlignTolerance.
func SameCellSize(a, b float64) bool {
	return math.Abs(a-b) <= AlignTolerance*a
}
