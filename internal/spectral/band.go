package spectral

import (
	"fmt"
	"strings"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// Band identifies a spectral band by role rather than by sensor band number.
type Band string

const (
	Blue  Band = "blue"
	Green Band = "green"
	Red   Band = "red"
	NIR   Band = "nir"
	SWIR  Band = "swir"
	// Brightness is an optional thermal brightness-temperature grid in
	// kelvin. Only the LST proxy reads it.
	Brightness Band = "bt"
)

// Sentinel2 maps the Sentinel-2 MSI band names used in L2A product file names
// to band roles. SWIR defaults to B11; NBR is conventionally computed with
// B12, which callers can bind explicitly.
var Sentinel2 = map[string]Band{
	"B02": Blue,
	"B03": Green,
	"B04": Red,
	"B08": NIR,
	"B8A": NIR,
	"B11": SWIR,
	"B12": SWIR,
}

// ParseBand resolves a role name ("red", "nir", ...) or a Sentinel-2 band
// name ("B04", "B8A", ...) to a Band.
func ParseBand(s string) (Band, error) {
	key := strings.TrimSpace(s)
	if b, ok := Sentinel2[strings.ToUpper(key)]; ok {
		return b, nil
	}
	switch b := Band(strings.ToLower(key)); b {
	case Blue, Green, Red, NIR, SWIR, Brightness:
		return b, nil
	}
	return "", fmt.Errorf("unknown band %q: %w", s, raster.ErrConfiguration)
}

// Bands is a set of co-registered grids keyed by role.
type Bands map[Band]*raster.Grid

// require returns the grids for the given roles in order.
func (b Bands) require(index Name, roles []Band) ([]*raster.Grid, error) {
	out := make([]*raster.Grid, len(roles))
	for i, r := range roles {
		g, ok := b[r]
		if !ok || g == nil {
			return nil, fmt.Errorf("%s: missing %s band: %w", index, r, raster.ErrConfiguration)
		}
		out[i] = g
	}
	return out, nil
}
