// Package units provides shared constants and validation for temperature units
package units

import (
	"fmt"
	"strings"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// Unit constants
const (
	Celsius    = "celsius"
	Kelvin     = "kelvin"
	Fahrenheit = "fahrenheit"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Celsius, Kelvin, Fahrenheit}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertTemperature converts a temperature from degrees Celsius to the target units.
// The LST proxy always produces Celsius.
func ConvertTemperature(celsius float64, targetUnits string) float64 {
	switch targetUnits {
	case Kelvin:
		return celsius + 273.15
	case Fahrenheit:
		return celsius*9/5 + 32
	default:
		return celsius
	}
}

// ConvertGrid converts every defined pixel of a Celsius grid to targetUnits.
// Undefined pixels stay Undefined.
func ConvertGrid(g *raster.Grid, targetUnits string) (*raster.Grid, error) {
	if !IsValid(targetUnits) {
		return nil, fmt.Errorf("unknown temperature unit %q (want one of %s): %w",
			targetUnits, GetValidUnitsString(), raster.ErrConfiguration)
	}
	if targetUnits == Celsius {
		return g.Clone(), nil
	}
	return raster.Map1("convert "+targetUnits, g, func(c float64) float64 {
		return ConvertTemperature(c, targetUnits)
	})
}
