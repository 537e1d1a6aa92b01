package raster

import "fmt"

// Resampling names a GDAL resampling algorithm used when a raster is warped
// onto another grid.
type Resampling string

const (
	ResamplingNearest  Resampling = "nearest"
	ResamplingBilinear Resampling = "bilinear"
)

// ParseResampling validates a resampling name from the command line. The
// empty string maps to the given default.
func ParseResampling(s string, def Resampling) (Resampling, error) {
	switch Resampling(s) {
	case ResamplingNearest, ResamplingBilinear:
		return Resampling(s), nil
	case "":
		return def, nil
	}
	return "", fmt.Errorf("unknown resampling %q (want nearest or bilinear)", s)
}

// gdalName translates to the identifier gdalwarp expects.
func (r Resampling) gdalName() string {
	if r == ResamplingNearest {
		return "near"
	}
	return string(r)
}
