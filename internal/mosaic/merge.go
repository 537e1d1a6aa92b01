// Package mosaic merges spatially adjacent DEM raster tiles into a single
// mosaic raster. All tiles of one merge must share CRS, cell size and nodata
// sentinel, and must sit on a common pixel lattice; the mosaic covers the
// exact union of the tile extents.
package mosaic

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/grid"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
)

// Options configures a merge. The zero value merges sequentially with
// nearest resampling.
type Options struct {
	// Parallel reads tiles concurrently. Tile placement stays deterministic:
	// windows are applied in input order regardless of completion order, so
	// at overlapping valid pixels the highest input index wins.
	Parallel bool
	// Jobs bounds the number of concurrent tile reads; defaults to NumCPU.
	Jobs int
	// Resampling is recorded for the merge. Tiles must align exactly with
	// the mosaic grid and are copied verbatim, so the choice has no effect
	// on the mosaic itself; it exists for parity with the warp operations.
	Resampling raster.Resampling
	// CreationOptions are passed to the GeoTIFF driver when writing.
	CreationOptions []string
}

func (o Options) withDefaults() (Options, error) {
	if o.Jobs <= 0 {
		o.Jobs = runtime.NumCPU()
	}
	r, err := raster.ParseResampling(string(o.Resampling), raster.ResamplingNearest)
	if err != nil {
		return o, err
	}
	o.Resampling = r
	return o, nil
}

// placement is the immutable product of the per-tile read phase: the tile's
// pixels plus the window they occupy in the mosaic grid.
type placement struct {
	meta   raster.Meta
	window grid.Window
	data   []float32
}

// Merge merges the tiles at tilePaths into one mosaic raster, writes it to
// outputPath and returns it. The merge is fail-fast: any invalid or
// unreadable tile aborts before the output file is created.
func Merge(tilePaths []string, outputPath string, opts Options) (*raster.Grid, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(tilePaths) == 0 {
		return nil, ErrNoTiles
	}

	metas, err := readMetas(tilePaths, opts)
	if err != nil {
		return nil, err
	}

	mosaicRef, cols, rows, err := validate(metas)
	if err != nil {
		return nil, err
	}

	base := metas[0]
	nodata := float32(base.NoData)
	canvas := make([]float32, cols*rows)
	for i := range canvas {
		canvas[i] = nodata
	}

	if opts.Parallel {
		placements, err := readTiles(metas, mosaicRef, opts)
		if err != nil {
			return nil, err
		}
		for _, p := range placements {
			apply(canvas, cols, p, nodata)
		}
	} else {
		for _, meta := range metas {
			p, err := readTile(meta, mosaicRef)
			if err != nil {
				return nil, err
			}
			apply(canvas, cols, p, nodata)
		}
	}

	out := &raster.Grid{
		Meta: raster.Meta{
			Path:      outputPath,
			Width:     cols,
			Height:    rows,
			Ref:       mosaicRef,
			Proj:      base.Proj,
			NoData:    base.NoData,
			HasNoData: true,
		},
		Data: canvas,
	}
	if err := raster.Write(outputPath, out, opts.CreationOptions...); err != nil {
		return nil, err
	}
	return out, nil
}

// readMetas reads every tile's metadata without loading pixel data.
func readMetas(tilePaths []string, opts Options) ([]raster.Meta, error) {
	metas := make([]raster.Meta, len(tilePaths))
	if !opts.Parallel {
		for i, path := range tilePaths {
			meta, err := raster.ReadMeta(path)
			if err != nil {
				return nil, &TileReadError{Path: path, Err: err}
			}
			metas[i] = meta
		}
		return metas, nil
	}

	p := pool.New().WithMaxGoroutines(opts.Jobs).WithErrors().WithFirstError()
	for i, path := range tilePaths {
		i, path := i, path
		p.Go(func() error {
			meta, err := raster.ReadMeta(path)
			if err != nil {
				return &TileReadError{Path: path, Err: err}
			}
			metas[i] = meta
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return metas, nil
}

// validate checks the merge preconditions and derives the mosaic grid:
// uniform CRS, cell size and nodata sentinel across tiles, and every tile
// aligned to the union grid.
func validate(metas []raster.Meta) (grid.Ref, int, int, error) {
	base := metas[0]
	for _, meta := range metas[1:] {
		same, err := raster.SameCRS(base.Proj, meta.Proj)
		if err != nil {
			return grid.Ref{}, 0, 0, &TileReadError{Path: meta.Path, Err: err}
		}
		if !same {
			return grid.Ref{}, 0, 0, &IncompatibleTileError{
				Path: meta.Path, Field: "CRS",
				Want: crsLabel(base.Proj), Got: crsLabel(meta.Proj),
			}
		}
		if !grid.SameCellSize(base.Ref.CellSize, meta.Ref.CellSize) {
			return grid.Ref{}, 0, 0, &IncompatibleTileError{
				Path: meta.Path, Field: "cell size",
				Want: fmt.Sprintf("%g", base.Ref.CellSize),
				Got:  fmt.Sprintf("%g", meta.Ref.CellSize),
			}
		}
		if !sameNoData(meta.NoData, base.NoData) {
			return grid.Ref{}, 0, 0, &NodataMismatchError{Path: meta.Path, Want: base.NoData, Got: meta.NoData}
		}
	}

	union := metas[0].Extent()
	for _, meta := range metas[1:] {
		union = union.Union(meta.Extent())
	}

	ref := grid.Ref{OriginX: union.Min.X(), OriginY: union.Max.Y(), CellSize: base.Ref.CellSize}
	for _, meta := range metas {
		if !ref.Aligned(meta.Extent()) {
			dx, dy := ref.Misalignment(meta.Extent())
			return grid.Ref{}, 0, 0, &GridAlignmentError{Path: meta.Path, DX: dx, DY: dy}
		}
	}

	cols, rows := ref.Shape(union)
	return ref, cols, rows, nil
}

// sameNoData compares nodata sentinels, treating two NaN sentinels as equal.
func sameNoData(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func crsLabel(wkt string) string {
	if wkt == "" {
		return "<none>"
	}
	if len(wkt) > 60 {
		return wkt[:60] + "..."
	}
	return wkt
}

// readTiles runs the side-effect-free read phase over all tiles in parallel.
func readTiles(metas []raster.Meta, mosaicRef grid.Ref, opts Options) ([]placement, error) {
	placements := make([]placement, len(metas))
	p := pool.New().WithMaxGoroutines(opts.Jobs).WithErrors().WithFirstError()
	for i, meta := range metas {
		i, meta := i, meta
		p.Go(func() error {
			pl, err := readTile(meta, mosaicRef)
			if err != nil {
				return err
			}
			placements[i] = pl
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return placements, nil
}

func readTile(meta raster.Meta, mosaicRef grid.Ref) (placement, error) {
	g, err := raster.ReadGrid(meta.Path)
	if err != nil {
		return placement{}, &TileReadError{Path: meta.Path, Err: err}
	}
	return placement{meta: meta, window: mosaicRef.Window(meta.Extent()), data: g.Data}, nil
}

// apply copies a tile's valid pixels into the canvas. Tile nodata pixels
// never overwrite previously placed values.
func apply(canvas []float32, cols int, p placement, nodata float32) {
	nodataIsNaN := math.IsNaN(float64(nodata))
	w := p.window
	for row := 0; row < w.Height; row++ {
		src := p.data[row*w.Width : (row+1)*w.Width]
		dstOff := (w.Row+row)*cols + w.Col
		for col, v := range src {
			if v == nodata || (nodataIsNaN && math.IsNaN(float64(v))) {
				continue
			}
			canvas[dstOff+col] = v
		}
	}
}
