// Package vdatum converts DEM rasters between vertical height datums by
// applying interpolated geoid offset grids, with optional horizontal
// reprojection. Heights in the Swiss LN02 datum become ellipsoidal heights by
// adding the CHGeo2004 geoid undulation; a second geoid grid (e.g. EGM2008)
// converts ellipsoidal heights onwards to another datum.
package vdatum

import (
	"math"

	"github.com/airbusgeo/godal"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
)

// Options configures the geoid resampling and the optional reprojection.
type Options struct {
	// Resampling is used both for warping geoid grids onto the DEM grid and
	// for the optional reprojection. Defaults to bilinear.
	Resampling raster.Resampling
	// TargetResolution resamples the final raster to the given cell size.
	// Zero keeps the DEM's resolution.
	TargetResolution float64
}

func (o Options) withDefaults() (Options, error) {
	r, err := raster.ParseResampling(string(o.Resampling), raster.ResamplingBilinear)
	if err != nil {
		return o, err
	}
	o.Resampling = r
	return o, nil
}

// TransformLN02ToEllipsoid converts the DEM at demPath from LN02 heights to
// ellipsoidal heights using the CHGeo2004 geoid at geoidPath, optionally
// reprojecting the result to targetEPSG (0 keeps the DEM's CRS). The input
// files are not modified.
func TransformLN02ToEllipsoid(demPath, geoidPath string, targetEPSG int, opts Options) (*raster.Grid, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	dem, err := raster.ReadGrid(demPath)
	if err != nil {
		return nil, err
	}

	out, err := applyGeoid(dem, geoidPath, +1, opts)
	if err != nil {
		return nil, err
	}

	if targetEPSG != 0 || opts.TargetResolution > 0 {
		out, err = reproject(out, targetEPSG, opts)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ConvertVerticalDatum converts a DEM with ellipsoidal heights to the
// vertical datum described by the geoid grid at geoidPath, by subtracting
// the resampled geoid undulation. The input grid is not mutated.
func ConvertVerticalDatum(dem *raster.Grid, geoidPath string, opts Options) (*raster.Grid, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return applyGeoid(dem, geoidPath, -1, opts)
}

// ComputeDifference warps the reference DEM onto the grid of the DEM at
// demPath and returns their cellwise difference (dem minus reference),
// written to outputPath. Nodata in either input propagates.
func ComputeDifference(demPath, referencePath, outputPath string, opts Options) (*raster.Grid, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	dem, err := raster.ReadGrid(demPath)
	if err != nil {
		return nil, err
	}
	ref, refNoData, err := raster.WarpOntoGrid(referencePath, dem.Meta, opts.Resampling)
	if err != nil {
		return nil, err
	}

	diff := subtractGrids(dem, ref, refNoData)
	diff.Path = outputPath
	if err := raster.Write(outputPath, diff); err != nil {
		return nil, err
	}
	return diff, nil
}

// applyGeoid resamples the geoid grid onto the DEM's pixel grid and adds
// sign*offset to every valid DEM cell. Every valid DEM cell must be covered
// by the geoid grid.
func applyGeoid(dem *raster.Grid, geoidPath string, sign float32, opts Options) (*raster.Grid, error) {
	offsets, offNoData, err := raster.WarpOntoGrid(geoidPath, dem.Meta, opts.Resampling)
	if err != nil {
		return nil, err
	}

	if n := uncoveredCells(dem, offsets, offNoData); n > 0 {
		return nil, &GeoidCoverageError{GeoidPath: geoidPath, Cells: n}
	}

	out := cloneGrid(dem)
	nodata := float32(dem.NoData)
	for i, v := range dem.Data {
		if isNoData(v, nodata) {
			continue
		}
		out.Data[i] = v + sign*offsets[i]
	}
	return out, nil
}

// subtractGrids computes a minus b over a's grid, propagating both nodata
// sentinels into a's.
func subtractGrids(a *raster.Grid, b []float32, bNoData float64) *raster.Grid {
	out := cloneGrid(a)
	aNoData := float32(a.NoData)
	bnd := float32(bNoData)
	for i, v := range a.Data {
		if isNoData(v, aNoData) || isNoData(b[i], bnd) {
			out.Data[i] = aNoData
			continue
		}
		out.Data[i] = v - b[i]
	}
	return out
}

// uncoveredCells counts valid DEM cells the geoid grid does not cover.
func uncoveredCells(dem *raster.Grid, offsets []float32, offNoData float64) int {
	nodata := float32(dem.NoData)
	ond := float32(offNoData)
	n := 0
	for i, v := range dem.Data {
		if isNoData(v, nodata) {
			continue
		}
		if isNoData(offsets[i], ond) {
			n++
		}
	}
	return n
}

// reproject warps g to targetEPSG, surfacing invalid codes as
// ReprojectionError before any warp work happens.
func reproject(g *raster.Grid, targetEPSG int, opts Options) (*raster.Grid, error) {
	if targetEPSG != 0 {
		sr, err := godal.NewSpatialRefFromEPSG(targetEPSG)
		if err != nil {
			return nil, &ReprojectionError{EPSG: targetEPSG, Err: err}
		}
		sr.Close()
	}
	out, err := raster.Reproject(g, targetEPSG, opts.Resampling, opts.TargetResolution)
	if err != nil {
		return nil, &ReprojectionError{EPSG: targetEPSG, Err: err}
	}
	return out, nil
}

func cloneGrid(g *raster.Grid) *raster.Grid {
	out := &raster.Grid{Meta: g.Meta}
	out.Data = make([]float32, len(g.Data))
	copy(out.Data, g.Data)
	return out
}

func isNoData(v, nodata float32) bool {
	return v == nodata || (math.IsNaN(float64(v)) && math.IsNaN(float64(nodata)))
}
