package vdatum

import "fmt"

// GeoidCoverageError reports a DEM whose valid extent is not fully covered
// by the geoid offset grid.
type GeoidCoverageError struct {
	GeoidPath string
	Cells     int
}

func (e *GeoidCoverageError) Error() string {
	return fmt.Sprintf("geoid grid %s does not cover the DEM (%d uncovered cells)", e.GeoidPath, e.Cells)
}

// ReprojectionError reports an invalid or unsupported target CRS.
type ReprojectionError struct {
	EPSG int
	Err  error
}

func (e *ReprojectionError) Error() string {
	return fmt.Sprintf("reprojection to EPSG:%d failed: %v", e.EPSG, e.Err)
}

func (e *ReprojectionError) Unwrap() error { return e.Err }
