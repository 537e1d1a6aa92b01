// Package raster reads and writes single-band elevation rasters. Georeferenced
// formats are handled through GDAL (godal); Esri ASCII grids additionally have
// a native codec so that grid math can be exercised without GDAL.
package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/grid"
)

// DefaultNoData is the sentinel adopted for rasters that do not declare one.
const DefaultNoData = -9999.0

// Meta describes a single-band raster without its pixel data.
type Meta struct {
	Path      string
	Width     int
	Height    int
	Ref       grid.Ref
	Proj      string // CRS as WKT, empty when the file carries none
	NoData    float64
	HasNoData bool
}

// Grid is a fully loaded single-band raster. Data is stored row-major,
// top row first.
type Grid struct {
	Meta
	Data []float32
}

// Extent returns the bounding rectangle covered by the raster.
func (m Meta) Extent() orb.Bound {
	return m.Ref.Extent(m.Width, m.Height)
}

// ReadMeta opens the raster at path just long enough to extract its metadata.
func ReadMeta(path string) (Meta, error) {
	if isASCIIGrid(path) {
		return readASCIIMeta(path)
	}
	ds, err := godal.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer ds.Close()
	return metaFromDataset(path, ds)
}

// ReadGrid loads the raster at path including its full pixel grid. The file
// handle is released before returning.
func ReadGrid(path string) (*Grid, error) {
	if isASCIIGrid(path) {
		return readASCIIGrid(path)
	}
	ds, err := godal.Open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	meta, err := metaFromDataset(path, ds)
	if err != nil {
		return nil, err
	}

	data := make([]float32, meta.Width*meta.Height)
	band := ds.Bands()[0]
	if err := band.Read(0, 0, data, meta.Width, meta.Height); err != nil {
		return nil, fmt.Errorf("reading band of %s: %w", path, err)
	}

	return &Grid{Meta: meta, Data: data}, nil
}

// Write stores grid at path, creating parent directories as needed. The
// format is chosen from the file extension: .asc produces an Esri ASCII grid,
// everything else a GeoTIFF with the given creation options. The ASCII format
// carries no CRS tag, so Proj is dropped when writing .asc; readers of such
// files see an empty Proj.
func Write(path string, g *Grid, creationOptions ...string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", path, err)
	}
	if isASCIIGrid(path) {
		return writeASCIIGrid(path, g)
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, g.Width, g.Height,
		godal.CreationOption(creationOptions...))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := ds.SetGeoTransform(g.Ref.GeoTransform()); err != nil {
		ds.Close()
		return fmt.Errorf("setting geotransform of %s: %w", path, err)
	}
	if g.Proj != "" {
		sr, err := godal.NewSpatialRefFromWKT(g.Proj)
		if err != nil {
			ds.Close()
			return fmt.Errorf("parsing CRS for %s: %w", path, err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			ds.Close()
			return fmt.Errorf("setting CRS of %s: %w", path, err)
		}
	}
	if g.HasNoData {
		if err := ds.SetNoData(g.NoData); err != nil {
			ds.Close()
			return fmt.Errorf("setting nodata of %s: %w", path, err)
		}
	}

	band := ds.Bands()[0]
	if err := band.Write(0, 0, g.Data, g.Width, g.Height); err != nil {
		ds.Close()
		return fmt.Errorf("writing band of %s: %w", path, err)
	}

	return ds.Close()
}

// SameCRS reports whether two CRS descriptions refer to the same spatial
// reference. Two empty descriptions are considered equal.
func SameCRS(a, b string) (bool, error) {
	if a == b {
		return true, nil
	}
	if a == "" || b == "" {
		return false, nil
	}
	srA, err := godal.NewSpatialRefFromWKT(a)
	if err != nil {
		return false, err
	}
	defer srA.Close()
	srB, err := godal.NewSpatialRefFromWKT(b)
	if err != nil {
		return false, err
	}
	defer srB.Close()
	return srA.IsSame(srB), nil
}

func metaFromDataset(path string, ds *godal.Dataset) (Meta, error) {
	structure := ds.Structure()

	gt, err := ds.GeoTransform()
	if err != nil {
		return Meta{}, fmt.Errorf("reading geotransform of %s: %w", path, err)
	}
	ref, err := grid.RefFromGeoTransform(gt)
	if err != nil {
		return Meta{}, fmt.Errorf("%s: %w", path, err)
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return Meta{}, fmt.Errorf("%s has no raster bands", path)
	}

	meta := Meta{
		Path:   path,
		Width:  structure.SizeX,
		Height: structure.SizeY,
		Ref:    ref,
		NoData: DefaultNoData,
	}
	if nd, ok := bands[0].NoData(); ok {
		meta.NoData = nd
		meta.HasNoData = true
	}
	if sr := ds.SpatialRef(); sr != nil {
		defer sr.Close()
		wkt, err := sr.WKT()
		if err == nil {
			meta.Proj = wkt
		}
	}
	return meta, nil
}

func isASCIIGrid(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".asc")
}
