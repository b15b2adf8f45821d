package bandio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/spectral.report/internal/fsutil"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/raster"
)

// SidecarSuffix is appended to a raster path to name its profile sidecar.
const SidecarSuffix = ".profile.json"

// SidecarPath returns the sidecar path for a raster path.
func SidecarPath(path string) string { return path + SidecarSuffix }

type header struct {
	ncols, nrows int
	xll, yll     float64
	center       bool
	cellsize     float64
	nodata       *float64
}

// readASCII reads an ESRI ASCII grid. When a sidecar exists its CRS, data
// type, driver and tags are merged into the returned profile.
func readASCII(fsys fsutil.FileSystem, path string) (*raster.Grid, raster.Profile, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, raster.Profile{}, fmt.Errorf("open band: %w", err)
	}
	defer f.Close()

	g, prof, err := decode(f)
	if err != nil {
		return nil, raster.Profile{}, fmt.Errorf("%s: %w", path, err)
	}

	if side := SidecarPath(path); fsys.Exists(side) {
		meta, err := readSidecar(fsys, side)
		if err != nil {
			return nil, raster.Profile{}, err
		}
		prof = mergeSidecar(prof, meta)
	}

	monitoring.Logf("[bandio] read %s (%s, %d undefined)", path, g.Shape(), g.UndefinedCount())
	return g, prof, nil
}

func decode(r io.Reader) (*raster.Grid, raster.Profile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	var h header
	var seen = map[string]bool{}
	var pending string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, raster.Profile{}, fmt.Errorf("header key %q has no value: %w", key, ErrFormat)
		}
		val := sc.Text()
		if err := h.set(key, val); err != nil {
			return nil, raster.Profile{}, err
		}
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return nil, raster.Profile{}, err
	}
	if !seen["ncols"] || !seen["nrows"] || !seen["cellsize"] {
		return nil, raster.Profile{}, fmt.Errorf("header needs ncols, nrows and cellsize: %w", ErrFormat)
	}
	if h.ncols <= 0 || h.nrows <= 0 {
		return nil, raster.Profile{}, fmt.Errorf("header shape %dx%d: %w", h.nrows, h.ncols, ErrFormat)
	}
	if h.cellsize <= 0 {
		return nil, raster.Profile{}, fmt.Errorf("cellsize %g: %w", h.cellsize, ErrFormat)
	}

	n := h.nrows * h.ncols
	data := make([]float64, 0, n)
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("cell %d: %q: %w", len(data), tok, ErrFormat)
		}
		if (h.nodata != nil && v == *h.nodata) || !raster.IsValid(v) {
			v = raster.Undefined
		}
		data = append(data, v)
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, raster.Profile{}, err
		}
	}
	for sc.Scan() {
		if len(data) == n {
			return nil, raster.Profile{}, fmt.Errorf("more than %d cells: %w", n, ErrFormat)
		}
		if err := parse(sc.Text()); err != nil {
			return nil, raster.Profile{}, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, raster.Profile{}, err
	}
	if len(data) != n {
		return nil, raster.Profile{}, fmt.Errorf("got %d cells, want %d: %w", len(data), n, ErrFormat)
	}

	g, err := raster.GridFromSlice(h.nrows, h.ncols, data)
	if err != nil {
		return nil, raster.Profile{}, err
	}
	return g, h.profile(), nil
}

func (h *header) set(key, val string) error {
	var err error
	switch key {
	case "ncols":
		h.ncols, err = strconv.Atoi(val)
	case "nrows":
		h.nrows, err = strconv.Atoi(val)
	case "xllcorner":
		h.xll, err = strconv.ParseFloat(val, 64)
	case "yllcorner":
		h.yll, err = strconv.ParseFloat(val, 64)
	case "xllcenter":
		h.xll, err = strconv.ParseFloat(val, 64)
		h.center = true
	case "yllcenter":
		h.yll, err = strconv.ParseFloat(val, 64)
		h.center = true
	case "cellsize":
		h.cellsize, err = strconv.ParseFloat(val, 64)
	case "nodata_value":
		var v float64
		v, err = strconv.ParseFloat(val, 64)
		h.nodata = &v
	default:
		return fmt.Errorf("unknown header key %q: %w", key, ErrFormat)
	}
	if err != nil {
		return fmt.Errorf("header %s=%q: %w", key, val, ErrFormat)
	}
	return nil
}

// profile converts the header into a north-up affine transform
// (x0, dx, 0, y0, 0, -dy) anchored at the top-left corner.
func (h *header) profile() raster.Profile {
	xll, yll := h.xll, h.yll
	if h.center {
		xll -= h.cellsize / 2
		yll -= h.cellsize / 2
	}
	top := yll + float64(h.nrows)*h.cellsize
	return raster.Profile{
		Width:     h.ncols,
		Height:    h.nrows,
		Transform: [6]float64{xll, h.cellsize, 0, top, 0, -h.cellsize},
		CellSize:  h.cellsize,
		NoData:    h.nodata,
		DataType:  raster.Float32,
		Count:     1,
		Driver:    DriverASCII,
	}
}

// writeASCIIGrid writes a normalised float grid and its sidecar.
func writeASCIIGrid(fsys fsutil.FileSystem, path string, g *raster.Grid, p raster.Profile) error {
	bits := 32
	if p.DataType == raster.Float64 {
		bits = 64
	}
	integral := isIntegral(p.DataType)
	format := func(v float64) string {
		if raster.IsUndefined(v) {
			return ftoa(*p.NoData)
		}
		if integral {
			return strconv.FormatInt(int64(math.Round(v)), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, bits)
	}
	return writeASCII(fsys, path, p, g.Shape(), func(i int) string { return format(g.Data()[i]) })
}

// writeASCIICategories writes category codes as integers.
func writeASCIICategories(fsys fsutil.FileSystem, path string, c *raster.CategoryGrid, p raster.Profile) error {
	codes := c.Data()
	return writeASCII(fsys, path, p, c.Shape(), func(i int) string { return strconv.Itoa(int(codes[i])) })
}

func writeASCII(fsys fsutil.FileSystem, path string, p raster.Profile, s raster.Shape, cell func(i int) string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)

	yll := p.Transform[3] - float64(s.Rows)*p.CellSize
	fmt.Fprintf(w, "ncols %d\nnrows %d\n", s.Cols, s.Rows)
	fmt.Fprintf(w, "xllcorner %s\nyllcorner %s\n", ftoa(p.Transform[0]), ftoa(yll))
	fmt.Fprintf(w, "cellsize %s\n", ftoa(p.CellSize))
	if p.NoData != nil {
		fmt.Fprintf(w, "NODATA_value %s\n", ftoa(*p.NoData))
	}
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			if c > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(cell(r*s.Cols + c))
		}
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := writeSidecar(fsys, SidecarPath(path), p); err != nil {
		return err
	}
	monitoring.Logf("[bandio] wrote %s (%s, %s)", path, s, p.DataType)
	return nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func writeSidecar(fsys fsutil.FileSystem, path string, p raster.Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := fsys.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	return nil
}

func readSidecar(fsys fsutil.FileSystem, path string) (raster.Profile, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return raster.Profile{}, fmt.Errorf("read sidecar %s: %w", path, err)
	}
	var p raster.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return raster.Profile{}, fmt.Errorf("sidecar %s: %v: %w", path, err, ErrFormat)
	}
	return p, nil
}

// mergeSidecar takes the descriptive fields from meta. Shape, transform and
// no-data always come from the grid header.
func mergeSidecar(p, meta raster.Profile) raster.Profile {
	if meta.CRS != "" {
		p.CRS = meta.CRS
	}
	if meta.DataType != "" {
		p.DataType = meta.DataType
	}
	if meta.Driver != "" {
		p.Driver = meta.Driver
	}
	if len(meta.Tags) > 0 {
		p.Tags = meta.Tags
	}
	return p
}
