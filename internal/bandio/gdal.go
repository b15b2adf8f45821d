package bandio

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/raster"
)

// gtiffOptions match the compression the original products are written with.
var gtiffOptions = []string{"COMPRESS=LZW"}

var registerOnce sync.Once

func registerDrivers() {
	registerOnce.Do(godal.RegisterAll)
}

// readGDAL reads band 1 of any raster GDAL can open. The profile carries the
// dataset's projection (WKT), geotransform, band count, data type, driver and
// default-domain metadata as tags.
func readGDAL(path string) (*raster.Grid, raster.Profile, error) {
	registerDrivers()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, raster.Profile{}, fmt.Errorf("open band %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 || st.SizeX <= 0 || st.SizeY <= 0 {
		return nil, raster.Profile{}, fmt.Errorf("%s: no raster band: %w", path, ErrFormat)
	}
	band := bands[0]
	cols, rows := st.SizeX, st.SizeY
	dtype := dataTypeName(band.Structure().DataType)

	data := make([]float64, cols*rows)
	if err := band.Read(0, 0, data, cols, rows); err != nil {
		return nil, raster.Profile{}, fmt.Errorf("read %s: %w", path, err)
	}
	nd, hasNoData := band.NoData()
	for i, v := range data {
		if (hasNoData && matchesNoData(v, nd, dtype)) || !raster.IsValid(v) {
			data[i] = raster.Undefined
		}
	}
	g, err := raster.GridFromSlice(rows, cols, data)
	if err != nil {
		return nil, raster.Profile{}, err
	}

	prof := raster.Profile{
		Width:    cols,
		Height:   rows,
		CRS:      ds.Projection(),
		DataType: dtype,
		Count:    st.NBands,
		Driver:   ds.Driver().ShortName(),
	}
	if gt, err := ds.GeoTransform(); err == nil {
		prof.Transform = gt
		prof.CellSize = math.Abs(gt[1])
	}
	if hasNoData {
		prof.NoData = &nd
	}
	if tags := ds.Metadatas(); len(tags) > 0 {
		prof.Tags = tags
	}

	monitoring.Logf("[bandio] read %s (%s, %s, %d undefined)", path, g.Shape(), prof.Driver, g.UndefinedCount())
	return g, prof, nil
}

func writeGDALGrid(path string, g *raster.Grid, p raster.Profile) error {
	integral := isIntegral(p.DataType)
	buf := make([]float64, len(g.Data()))
	for i, v := range g.Data() {
		switch {
		case raster.IsUndefined(v):
			buf[i] = *p.NoData
		case integral:
			buf[i] = math.Round(v)
		default:
			buf[i] = v
		}
	}
	return writeGDAL(path, p, g.Shape(), buf)
}

func writeGDALCategories(path string, c *raster.CategoryGrid, p raster.Profile) error {
	return writeGDAL(path, p, c.Shape(), c.Data())
}

// writeGDAL creates a single-band GeoTIFF at path and writes buf into it.
// buf is converted by GDAL to the band data type named in p.
func writeGDAL(path string, p raster.Profile, s raster.Shape, buf interface{}) error {
	registerDrivers()
	ds, err := godal.Create(godal.GTiff, path, 1, gdalDataType(p.DataType), s.Cols, s.Rows,
		godal.CreationOption(gtiffOptions...))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := describe(ds, p); err != nil {
		ds.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	band := ds.Bands()[0]
	if p.NoData != nil {
		if err := band.SetNoData(*p.NoData); err != nil {
			ds.Close()
			return fmt.Errorf("write %s: set no-data: %w", path, err)
		}
	}
	if err := band.Write(0, 0, buf, s.Cols, s.Rows); err != nil {
		ds.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	monitoring.Logf("[bandio] wrote %s (%s, %s)", path, s, p.DataType)
	return nil
}

// describe copies the georeferencing and tags of p onto ds. CRS accepts
// anything OSR understands: WKT, "EPSG:32636", PROJ strings.
func describe(ds *godal.Dataset, p raster.Profile) error {
	if err := ds.SetGeoTransform(p.Transform); err != nil {
		return fmt.Errorf("set geotransform: %w", err)
	}
	if p.CRS != "" {
		sr, err := godal.NewSpatialRef(p.CRS)
		if err != nil {
			return fmt.Errorf("crs %q: %v: %w", p.CRS, err, raster.ErrConfiguration)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("set crs: %w", err)
		}
	}
	keys := make([]string, 0, len(p.Tags))
	for k := range p.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ds.SetMetadata(k, p.Tags[k]); err != nil {
			return fmt.Errorf("set tag %s: %w", k, err)
		}
	}
	return nil
}

func dataTypeName(dt godal.DataType) string {
	switch dt {
	case godal.Byte:
		return raster.Uint8
	case godal.Int16:
		return raster.Int16
	case godal.UInt16:
		return raster.Uint16
	case godal.Float64:
		return raster.Float64
	}
	return raster.Float32
}

func gdalDataType(name string) godal.DataType {
	switch name {
	case raster.Uint8:
		return godal.Byte
	case raster.Int16:
		return godal.Int16
	case raster.Uint16:
		return godal.UInt16
	case raster.Float64:
		return godal.Float64
	}
	return godal.Float32
}
