package spectral

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// Name identifies an index in the library.
type Name string

const (
	IndexNDVI  Name = "ndvi"
	IndexNDWI  Name = "ndwi"
	IndexGNDVI Name = "gndvi"
	IndexNDSI  Name = "ndsi"
	IndexSWI   Name = "swi"
	IndexNBR   Name = "nbr"
	IndexEVI   Name = "evi"
	IndexLST   Name = "lst"
)

// Bound is a closed value range applied after the no-data policy.
type Bound struct {
	Lo, Hi float64
}

// Definition describes one index: the bands it reads (in kernel order), the
// per-pixel kernel and the range policy. A nil Bound means the index is never
// clipped.
type Definition struct {
	Name        Name
	Description string
	Bands       []Band
	// Optional bands are appended to the kernel input when present.
	Optional []Band
	Bound    *Bound
	// Epsilon is the near-zero denominator tolerance, 0 when the index only
	// rejects an exact zero.
	Epsilon float64
	// Unit of the output values, empty for dimensionless ratios.
	Unit string

	kernel func(px []float64) float64
}

// Options parameterise the library constants that are not fixed by the
// formulas themselves.
type Options struct {
	EVIEpsilon            float64
	BrightnessTemperature float64 // kelvin
}

// DefaultOptions returns the constants used by the package-level functions.
func DefaultOptions() Options {
	return Options{
		EVIEpsilon:            DefaultEVIEps,
		BrightnessTemperature: DefaultBrightnessTemperature,
	}
}

// Library is an immutable lookup table of index definitions. It is safe for
// concurrent use.
type Library struct {
	defs map[Name]Definition
	opts Options
}

// Default is the library built from DefaultOptions.
var Default = MustNewLibrary(DefaultOptions())

// NewLibrary builds the index table for the given options.
func NewLibrary(opts Options) (*Library, error) {
	if math.IsNaN(opts.EVIEpsilon) || opts.EVIEpsilon < 0 || math.IsInf(opts.EVIEpsilon, 0) {
		return nil, fmt.Errorf("evi epsilon %v: %w", opts.EVIEpsilon, raster.ErrConfiguration)
	}
	if !raster.IsValid(opts.BrightnessTemperature) || opts.BrightnessTemperature <= 0 {
		return nil, fmt.Errorf("brightness temperature %v: %w", opts.BrightnessTemperature, raster.ErrConfiguration)
	}

	ratio := func(name Name, desc string, a, b Band) Definition {
		return Definition{
			Name:        name,
			Description: desc,
			Bands:       []Band{a, b},
			kernel:      func(px []float64) float64 { return normalizedDifference(px[0], px[1]) },
		}
	}
	eps := opts.EVIEpsilon
	bt := opts.BrightnessTemperature

	defs := []Definition{
		ratio(IndexNDVI, "normalized difference vegetation index", NIR, Red),
		ratio(IndexNDWI, "normalized difference water index", Green, NIR),
		ratio(IndexGNDVI, "green normalized difference vegetation index", NIR, Green),
		ratio(IndexNDSI, "normalized difference snow index (nir/swir form)", NIR, SWIR),
		ratio(IndexSWI, "shortwave water index", NIR, SWIR),
		ratio(IndexNBR, "normalized burn ratio", NIR, SWIR),
		{
			Name:        IndexEVI,
			Description: "enhanced vegetation index",
			Bands:       []Band{Red, NIR, Blue},
			Bound:       &Bound{Lo: -1, Hi: 1},
			Epsilon:     eps,
			kernel:      func(px []float64) float64 { return eviKernel(px[0], px[1], px[2], eps) },
		},
		{
			Name:        IndexLST,
			Description: "land surface temperature proxy from NDVI emissivity",
			Bands:       []Band{Green, NIR, Red},
			Optional:    []Band{Brightness},
			Unit:        "celsius",
			kernel: func(px []float64) float64 {
				t := bt
				if len(px) > 3 {
					t = px[3]
				}
				return lstKernel(normalizedDifference(px[1], px[2]), t)
			},
		},
	}

	lib := &Library{defs: make(map[Name]Definition, len(defs)), opts: opts}
	for _, d := range defs {
		lib.defs[d.Name] = d
	}
	return lib, nil
}

// MustNewLibrary is NewLibrary that panics on invalid options. Intended for
// package-level defaults.
func MustNewLibrary(opts Options) *Library {
	lib, err := NewLibrary(opts)
	if err != nil {
		panic(err)
	}
	return lib
}

// Options returns the constants the library was built with.
func (l *Library) Options() Options {
	return l.opts
}

// Names returns the registered index names in sorted order.
func (l *Library) Names() []Name {
	names := make([]Name, 0, len(l.defs))
	for n := range l.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup resolves a case-insensitive index name.
func (l *Library) Lookup(name string) (Definition, error) {
	d, ok := l.defs[Name(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Definition{}, fmt.Errorf("unknown index %q: %w", name, raster.ErrConfiguration)
	}
	return d, nil
}

// Compute evaluates the named index over the supplied bands. Every band the
// definition reads must be present and all of them must share one shape.
func (l *Library) Compute(name string, bands Bands) (*raster.Grid, error) {
	def, err := l.Lookup(name)
	if err != nil {
		return nil, err
	}
	grids, err := bands.require(def.Name, def.Bands)
	if err != nil {
		return nil, err
	}
	for _, opt := range def.Optional {
		if g, ok := bands[opt]; ok && g != nil {
			grids = append(grids, g)
		}
	}

	out, err := raster.MapN(string(def.Name), grids, def.kernel)
	if err != nil {
		return nil, err
	}
	if def.Bound != nil {
		out = raster.Clip(out, def.Bound.Lo, def.Bound.Hi)
	}
	return out, nil
}
