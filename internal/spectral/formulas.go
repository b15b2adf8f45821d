package spectral

import (
	"math"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// Coefficients of the enhanced vegetation index.
const (
	EVIGain       = 2.5
	EVIC1         = 6.0
	EVIC2         = 7.5
	EVICanopy     = 1.0
	DefaultEVIEps = 1e-6
)

// LST proxy constants. DefaultBrightnessTemperature stands in for a thermal
// band when none is supplied.
const (
	DefaultBrightnessTemperature = 300.0 // kelvin
	EmissivitySlope              = 0.004
	EmissivityBase               = 0.986
	EmittedWavelength            = 0.00115 // wavelength and rho are rescaled together; only the ratio matters
	PlanckRho                    = 1.438
	KelvinOffset                 = 273.15
)

// normalizedDifference is (a-b)/(a+b), Undefined when a+b is zero.
func normalizedDifference(a, b float64) float64 {
	den := a + b
	if den == 0 {
		return raster.Undefined
	}
	return (a - b) / den
}

// eviKernel returns the unclipped EVI value. Denominators within eps of zero
// are Undefined.
func eviKernel(red, nir, blue, eps float64) float64 {
	den := nir + EVIC1*red - EVIC2*blue + EVICanopy
	if math.Abs(den) < eps || den == 0 {
		return raster.Undefined
	}
	return EVIGain * (nir - red) / den
}

// lstKernel converts an NDVI value and a brightness temperature (kelvin) to a
// land-surface temperature estimate in degrees Celsius.
func lstKernel(ndvi, bt float64) float64 {
	if raster.IsUndefined(ndvi) {
		return raster.Undefined
	}
	emissivity := EmissivitySlope*ndvi*ndvi + EmissivityBase
	den := 1 + (EmittedWavelength*bt/PlanckRho)*math.Log(emissivity)
	if den == 0 {
		return raster.Undefined
	}
	v := bt/den - KelvinOffset
	if math.IsInf(v, 0) {
		return raster.Undefined
	}
	return v
}

// NormalizedDifference computes (a-b)/(a+b) for two co-registered grids.
func NormalizedDifference(a, b *raster.Grid) (*raster.Grid, error) {
	return raster.Map2("normalized difference", a, b, normalizedDifference)
}

// NDVI computes (nir-red)/(nir+red).
func NDVI(red, nir *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexNDVI), Bands{Red: red, NIR: nir})
}

// NDWI computes (green-nir)/(green+nir).
func NDWI(nir, green *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexNDWI), Bands{NIR: nir, Green: green})
}

// GNDVI computes (nir-green)/(nir+green).
func GNDVI(green, nir *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexGNDVI), Bands{Green: green, NIR: nir})
}

// NDSI computes (nir-swir)/(nir+swir).
func NDSI(nir, swir *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexNDSI), Bands{NIR: nir, SWIR: swir})
}

// SWI computes (nir-swir)/(nir+swir).
func SWI(nir, swir *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexSWI), Bands{NIR: nir, SWIR: swir})
}

// NBR computes (nir-swir)/(nir+swir).
func NBR(nir, swir *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexNBR), Bands{NIR: nir, SWIR: swir})
}

// EVI computes the enhanced vegetation index clipped to [-1, 1].
func EVI(red, nir, blue *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexEVI), Bands{Red: red, NIR: nir, Blue: blue})
}

// LST estimates land-surface temperature in degrees Celsius from NDVI-derived
// emissivity and the constant brightness temperature. green is not part of
// the formula but must share the shape of red and nir.
func LST(green, nir, red *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexLST), Bands{Green: green, NIR: nir, Red: red})
}

// LSTWithBrightness is LST with a per-pixel brightness temperature grid in
// kelvin in place of the constant.
func LSTWithBrightness(green, nir, red, bt *raster.Grid) (*raster.Grid, error) {
	return Default.Compute(string(IndexLST), Bands{Green: green, NIR: nir, Red: red, Brightness: bt})
}
