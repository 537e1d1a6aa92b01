package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"
)

// FromDataset reads an open single-band dataset into a Grid.
func FromDataset(ds *godal.Dataset) (*Grid, error) {
	meta, err := metaFromDataset("", ds)
	if err != nil {
		return nil, err
	}
	data := make([]float32, meta.Width*meta.Height)
	if err := ds.Bands()[0].Read(0, 0, data, meta.Width, meta.Height); err != nil {
		return nil, fmt.Errorf("reading band: %w", err)
	}
	return &Grid{Meta: meta, Data: data}, nil
}

// NewMemDataset materializes g as an in-memory GDAL dataset. The caller owns
// the returned dataset and must Close it.
func NewMemDataset(g *Grid) (*godal.Dataset, error) {
	ds, err := godal.Create(godal.Memory, "", 1, godal.Float32, g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	if err := ds.SetGeoTransform(g.Ref.GeoTransform()); err != nil {
		ds.Close()
		return nil, err
	}
	if g.Proj != "" {
		sr, err := godal.NewSpatialRefFromWKT(g.Proj)
		if err != nil {
			ds.Close()
			return nil, err
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			ds.Close()
			return nil, err
		}
	}
	if err := ds.SetNoData(g.NoData); err != nil {
		ds.Close()
		return nil, err
	}
	if err := ds.Bands()[0].Write(0, 0, g.Data, g.Width, g.Height); err != nil {
		ds.Close()
		return nil, err
	}
	return ds, nil
}

// WarpOntoGrid resamples the raster at srcPath onto the exact pixel grid
// described by dst and returns the resampled values plus the nodata sentinel
// marking cells the source does not cover.
func WarpOntoGrid(srcPath string, dst Meta, resampling Resampling) ([]float32, float64, error) {
	src, err := godal.Open(srcPath)
	if err != nil {
		return nil, 0, err
	}
	defer src.Close()

	nodata := DefaultNoData
	if bands := src.Bands(); len(bands) > 0 {
		if nd, ok := bands[0].NoData(); ok {
			nodata = nd
		}
	}

	mem, err := godal.Create(godal.Memory, "", 1, godal.Float32, dst.Width, dst.Height)
	if err != nil {
		return nil, 0, err
	}
	defer mem.Close()

	if err := mem.SetGeoTransform(dst.Ref.GeoTransform()); err != nil {
		return nil, 0, err
	}
	proj := dst.Proj
	if proj == "" {
		if sr := src.SpatialRef(); sr != nil {
			defer sr.Close()
			if wkt, err := sr.WKT(); err == nil {
				proj = wkt
			}
		}
	}
	if proj != "" {
		sr, err := godal.NewSpatialRefFromWKT(proj)
		if err != nil {
			return nil, 0, err
		}
		defer sr.Close()
		if err := mem.SetSpatialRef(sr); err != nil {
			return nil, 0, err
		}
	}
	if err := mem.SetNoData(nodata); err != nil {
		return nil, 0, err
	}
	// cells the source does not reach must come out as nodata, not zero
	if err := mem.Bands()[0].Fill(nodata, 0); err != nil {
		return nil, 0, err
	}

	switches := []string{"-r", resampling.gdalName()}
	if err := mem.WarpInto([]*godal.Dataset{src}, switches); err != nil {
		return nil, 0, fmt.Errorf("warping %s: %w", srcPath, err)
	}

	data := make([]float32, dst.Width*dst.Height)
	if err := mem.Bands()[0].Read(0, 0, data, dst.Width, dst.Height); err != nil {
		return nil, 0, err
	}
	return data, nodata, nil
}

// Reproject warps g to the CRS given by an EPSG code. A resolution of 0
// keeps the source resolution. An EPSG code of 0 keeps the source CRS, which
// is only useful together with a resolution change.
func Reproject(g *Grid, epsg int, resampling Resampling, resolution float64) (*Grid, error) {
	src, err := NewMemDataset(g)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	switches := []string{
		"-of", "MEM",
		"-r", resampling.gdalName(),
		"-dstnodata", formatFloat(g.NoData),
	}
	if epsg != 0 {
		switches = append(switches, "-t_srs", fmt.Sprintf("EPSG:%d", epsg))
	}
	if resolution > 0 {
		res := formatFloat(resolution)
		switches = append(switches, "-tr", res, res)
	}

	warped, err := src.Warp("", switches)
	if err != nil {
		return nil, fmt.Errorf("reprojecting to EPSG:%d: %w", epsg, err)
	}
	defer warped.Close()

	out, err := FromDataset(warped)
	if err != nil {
		return nil, err
	}
	out.NoData = g.NoData
	out.HasNoData = true
	return out, nil
}
