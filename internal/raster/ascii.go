package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/grid"
)

// Esri ASCII grid support. SwissALTI3D tiles are shipped as GeoTIFF, but
// swisstopo also publishes ASCII grids and they are handy as plain-text
// fixtures. The format carries no CRS tag, so Proj stays empty.

type asciiHeader struct {
	ncols     int
	nrows     int
	xll       float64
	yll       float64
	center    bool
	cell      float64
	nodata    float64
	hasNodata bool
}

func readASCIIMeta(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	h, _, err := parseASCIIHeader(scanner)
	if err != nil {
		return Meta{}, fmt.Errorf("%s: %w", path, err)
	}
	return h.meta(path), nil
}

func readASCIIGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	h, firstDataLine, err := parseASCIIHeader(scanner)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	data := make([]float32, 0, h.ncols*h.nrows)
	appendRow := func(fields []string) error {
		if len(fields) < h.ncols {
			return fmt.Errorf("data row has %d values, want %d", len(fields), h.ncols)
		}
		for _, field := range fields[:h.ncols] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return err
			}
			data = append(data, float32(v))
		}
		return nil
	}

	if firstDataLine != nil {
		if err := appendRow(firstDataLine); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	for len(data) < h.ncols*h.nrows && scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := appendRow(fields); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data) != h.ncols*h.nrows {
		return nil, fmt.Errorf("%s: grid is truncated, got %d of %d values", path, len(data), h.ncols*h.nrows)
	}

	return &Grid{Meta: h.meta(path), Data: data}, nil
}

func parseASCIIHeader(scanner *bufio.Scanner) (asciiHeader, []string, error) {
	h := asciiHeader{nodata: DefaultNoData}
	seen := map[string]bool{}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		keyword := strings.ToUpper(fields[0])
		if _, err := strconv.ParseFloat(fields[0], 64); err == nil {
			// first data row reached
			if err := h.complete(seen); err != nil {
				return h, nil, err
			}
			return h, fields, nil
		}
		if len(fields) != 2 {
			return h, nil, fmt.Errorf("header line %q must have exactly two fields", scanner.Text())
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return h, nil, fmt.Errorf("header %s: %w", keyword, err)
		}
		seen[keyword] = true

		switch keyword {
		case "NCOLS":
			h.ncols = int(value)
		case "NROWS":
			h.nrows = int(value)
		case "XLLCORNER":
			h.xll = value
		case "YLLCORNER":
			h.yll = value
		case "XLLCENTER":
			h.xll = value
			h.center = true
		case "YLLCENTER":
			h.yll = value
			h.center = true
		case "CELLSIZE":
			if value <= 0 {
				return h, nil, fmt.Errorf("CELLSIZE must be greater than 0")
			}
			h.cell = value
		case "NODATA_VALUE":
			h.nodata = value
			h.hasNodata = true
		default:
			return h, nil, fmt.Errorf("unknown header keyword %s", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return h, nil, err
	}
	return h, nil, io.ErrUnexpectedEOF
}

func (h *asciiHeader) complete(seen map[string]bool) error {
	for _, kw := range []string{"NCOLS", "NROWS", "CELLSIZE"} {
		if !seen[kw] {
			return fmt.Errorf("mandatory header %s is missing", kw)
		}
	}
	if !(seen["XLLCORNER"] && seen["YLLCORNER"]) && !(seen["XLLCENTER"] && seen["YLLCENTER"]) {
		return fmt.Errorf("grid origin headers are missing")
	}
	if h.center {
		// lower-left cell center to lower-left corner
		h.xll -= h.cell / 2
		h.yll -= h.cell / 2
	}
	return nil
}

func (h asciiHeader) meta(path string) Meta {
	return Meta{
		Path:   path,
		Width:  h.ncols,
		Height: h.nrows,
		Ref: grid.Ref{
			OriginX:  h.xll,
			OriginY:  h.yll + float64(h.nrows)*h.cell,
			CellSize: h.cell,
		},
		NoData:    h.nodata,
		HasNoData: h.hasNodata,
	}
}

func writeASCIIGrid(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\n", g.Width)
	fmt.Fprintf(w, "nrows %d\n", g.Height)
	fmt.Fprintf(w, "xllcorner %s\n", formatFloat(g.Ref.OriginX))
	fmt.Fprintf(w, "yllcorner %s\n", formatFloat(g.Ref.OriginY-float64(g.Height)*g.Ref.CellSize))
	fmt.Fprintf(w, "cellsize %s\n", formatFloat(g.Ref.CellSize))
	fmt.Fprintf(w, "nodata_value %s\n", formatFloat(g.NoData))

	for row := 0; row < g.Height; row++ {
		line := g.Data[row*g.Width : (row+1)*g.Width]
		for col, v := range line {
			if col > 0 {
				if err := w.WriteByte(' '); err != nil {
					f.Close()
					return err
				}
			}
			if _, err := w.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32)); err != nil {
				f.Close()
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
