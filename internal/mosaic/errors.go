package mosaic

import (
	"errors"
	"fmt"
)

// ErrNoTiles is returned when a merge is requested with an empty tile list.
var ErrNoTiles = errors.New("no tiles found for merging")

// TileReadError reports a tile that could not be opened or read. Any such
// tile aborts the whole merge before an output file is created.
type TileReadError struct {
	Path string
	Err  error
}

func (e *TileReadError) Error() string {
	return fmt.Sprintf("reading tile %s: %v", e.Path, e.Err)
}

func (e *TileReadError) Unwrap() error { return e.Err }

// IncompatibleTileError reports a tile whose CRS or cell size differs from
// the first tile of the merge.
type IncompatibleTileError struct {
	Path  string
	Field string
	Want  string
	Got   string
}

func (e *IncompatibleTileError) Error() string {
	return fmt.Sprintf("tile %s: %s mismatch: want %s, got %s", e.Path, e.Field, e.Want, e.Got)
}

// GridAlignmentError reports a tile whose origin is not an integer number of
// cells away from the mosaic origin, i.e. the tiles are not co-registered.
type GridAlignmentError struct {
	Path   string
	DX, DY float64
}

func (e *GridAlignmentError) Error() string {
	return fmt.Sprintf("tile %s is not aligned to the common pixel grid (offset %g, %g cells)", e.Path, e.DX, e.DY)
}

// NodataMismatchError reports a tile whose nodata sentinel differs from the
// one adopted from the first tile.
type NodataMismatchError struct {
	Path string
	Want float64
	Got  float64
}

func (e *NodataMismatchError) Error() string {
	return fmt.Sprintf("tile %s: nodata mismatch: want %g, got %g", e.Path, e.Want, e.Got)
}
