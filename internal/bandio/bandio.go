// Package bandio is the raster boundary of the pipeline. Bands are read from
// anything GDAL opens (Sentinel-2 JPEG 2000, GeoTIFF) and results are written
// as LZW-compressed GeoTIFF, both through godal. ESRI ASCII grids (.asc) with
// a JSON profile sidecar are handled natively on top of fsutil, so small
// scenes and tests can live in memory.
//
// GDAL opens paths itself: for GDAL formats the fsutil.FileSystem argument
// is only used to list scene directories.
package bandio

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/banshee-data/spectral.report/internal/fsutil"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/raster"
)

// ErrFormat is returned for malformed or unsupported raster files.
var ErrFormat = errors.New("malformed raster file")

// DefaultNoData is written when a float grid with Undefined pixels has no
// usable no-data value in its profile.
const DefaultNoData = -9999.0

// File extensions.
const (
	ExtASCII = ".asc"
	ExtGTiff = ".tif"
	ExtJP2   = ".jp2"
)

// Driver names recorded in profiles.
const (
	DriverASCII = "AAIGrid"
	DriverGTiff = "GTiff"
)

// Format selects the driver used for output grids.
type Format string

const (
	FormatGTiff Format = "gtiff"
	FormatASCII Format = "asc"
)

// ParseFormat resolves an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatGTiff, FormatASCII:
		return f, nil
	case "tif", "tiff", "geotiff":
		return FormatGTiff, nil
	case "aaigrid", "ascii":
		return FormatASCII, nil
	}
	return "", fmt.Errorf("unknown raster format %q (want gtiff or asc): %w", s, raster.ErrConfiguration)
}

// Extension returns the file extension written for f.
func (f Format) Extension() string {
	if f == FormatASCII {
		return ExtASCII
	}
	return ExtGTiff
}

// formatOf resolves the driver for a path from its extension.
func formatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtASCII:
		return FormatASCII, true
	case ExtGTiff, ".tiff":
		return FormatGTiff, true
	}
	return "", false
}

// IsRasterFile reports whether name has an extension LoadScene reads.
func IsRasterFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtASCII, ExtGTiff, ".tiff", ExtJP2:
		return true
	}
	return false
}

// IsWritable reports whether WriteGrid and WriteCategories accept path.
func IsWritable(path string) bool {
	_, ok := formatOf(path)
	return ok
}

// ReadBand reads the first band of a raster. Cells equal to the band's
// no-data value, and any non-finite cell, become raster.Undefined.
func ReadBand(fsys fsutil.FileSystem, path string) (*raster.Grid, raster.Profile, error) {
	if f, _ := formatOf(path); f == FormatASCII {
		return readASCII(fsys, path)
	}
	return readGDAL(path)
}

// WriteGrid writes g using p for georeferencing, choosing the driver from
// the path extension. Undefined pixels are written as the no-data value
// picked by outputNoData.
func WriteGrid(fsys fsutil.FileSystem, path string, g *raster.Grid, p raster.Profile) error {
	if g == nil {
		return fmt.Errorf("write %s: nil grid: %w", path, raster.ErrConfiguration)
	}
	if !p.Matches(g.Shape()) {
		return fmt.Errorf("write %s: profile %dx%d: %w", path, p.Height, p.Width, raster.ErrShapeMismatch)
	}
	format, ok := formatOf(path)
	if !ok {
		return fmt.Errorf("write %s: unsupported extension: %w", path, raster.ErrConfiguration)
	}
	p = normalise(p, g.Shape())
	p.NoData = outputNoData(g, p)
	if format == FormatASCII {
		p.Driver = DriverASCII
		return writeASCIIGrid(fsys, path, g, p)
	}
	p.Driver = DriverGTiff
	return writeGDALGrid(path, g, p)
}

// WriteCategories writes a category grid as uint8. Category grids have no
// no-data cells, so the no-data entry of p is dropped.
func WriteCategories(fsys fsutil.FileSystem, path string, c *raster.CategoryGrid, p raster.Profile) error {
	if c == nil {
		return fmt.Errorf("write %s: nil category grid: %w", path, raster.ErrConfiguration)
	}
	if !p.Matches(c.Shape()) {
		return fmt.Errorf("write %s: profile %dx%d: %w", path, p.Height, p.Width, raster.ErrShapeMismatch)
	}
	format, ok := formatOf(path)
	if !ok {
		return fmt.Errorf("write %s: unsupported extension: %w", path, raster.ErrConfiguration)
	}
	p = normalise(p.ForOutput(raster.Uint8, 1), c.Shape())
	p.NoData = nil
	if format == FormatASCII {
		p.Driver = DriverASCII
		return writeASCIICategories(fsys, path, c, p)
	}
	p.Driver = DriverGTiff
	return writeGDALCategories(path, c, p)
}

// outputNoData returns the no-data value to write g with. The profile's value
// is kept unless a defined pixel would be stored as it, which would turn that
// pixel Undefined on the next read; then the first candidate no pixel
// matches is used instead.
func outputNoData(g *raster.Grid, p raster.Profile) *float64 {
	candidates := []float64{DefaultNoData, -math.MaxFloat32, math.MaxFloat32}
	if p.NoData != nil {
		candidates = append([]float64{*p.NoData}, candidates...)
	} else if g.UndefinedCount() == 0 {
		return nil
	}
	for _, nd := range candidates {
		if !collides(g, nd, p.DataType) {
			if p.NoData != nil && nd != *p.NoData {
				monitoring.Logf("[bandio] no-data %g is a valid pixel value, writing %g instead", *p.NoData, nd)
			}
			return &nd
		}
	}
	// Every candidate is a pixel value; Undefined pixels are written as NaN.
	nd := math.NaN()
	return &nd
}

func collides(g *raster.Grid, nd float64, dtype string) bool {
	for _, v := range g.Data() {
		if !raster.IsUndefined(v) && matchesNoData(v, nd, dtype) {
			return true
		}
	}
	return false
}

// matchesNoData compares a pixel with a no-data value at the precision of
// the stored data type.
func matchesNoData(v, nd float64, dtype string) bool {
	switch dtype {
	case raster.Float64:
		return v == nd
	case raster.Uint8, raster.Int16, raster.Uint16:
		return math.Round(v) == nd
	}
	return float32(v) == float32(nd)
}

// normalise fills the georeferencing a profile needs to be written.
func normalise(p raster.Profile, s raster.Shape) raster.Profile {
	p.Width, p.Height = s.Cols, s.Rows
	if p.CellSize == 0 {
		p.CellSize = math.Abs(p.Transform[1])
	}
	if p.CellSize == 0 {
		p.CellSize = 1
	}
	if p.Transform == ([6]float64{}) {
		p.Transform = [6]float64{0, p.CellSize, 0, float64(s.Rows) * p.CellSize, 0, -p.CellSize}
	}
	if p.DataType == "" {
		p.DataType = raster.Float32
	}
	if p.Count == 0 {
		p.Count = 1
	}
	return p
}

func isIntegral(dtype string) bool {
	switch dtype {
	case raster.Uint8, raster.Int16, raster.Uint16:
		return true
	}
	return false
}
