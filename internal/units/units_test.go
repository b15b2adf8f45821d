package units

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/spectral.report/internal/raster"
)

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name     string
		celsius  float64
		units    string
		expected float64
	}{
		{"0 C to kelvin", 0, Kelvin, 273.15},
		{"100 C to fahrenheit", 100, Fahrenheit, 212},
		{"-40 C to fahrenheit", -40, Fahrenheit, -40},
		{"27.87 C stays celsius", 27.87, Celsius, 27.87},
		{"unknown units default to celsius", 12.5, "rankine", 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertTemperature(tt.celsius, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertTemperature(%f, %s) = %f, want %f", tt.celsius, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid celsius", Celsius, true},
		{"valid kelvin", Kelvin, true},
		{"valid fahrenheit", Fahrenheit, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "Kelvin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsValid(tt.unit); result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "celsius, kelvin, fahrenheit" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}

func TestConvertGrid(t *testing.T) {
	g, err := raster.GridFromRows([][]float64{{0, math.NaN()}})
	if err != nil {
		t.Fatal(err)
	}

	k, err := ConvertGrid(g, Kelvin)
	if err != nil {
		t.Fatalf("ConvertGrid: %v", err)
	}
	if k.At(0, 0) != 273.15 {
		t.Errorf("kelvin = %v, want 273.15", k.At(0, 0))
	}
	if !raster.IsUndefined(k.At(0, 1)) {
		t.Errorf("undefined pixel became %v", k.At(0, 1))
	}

	c, err := ConvertGrid(g, Celsius)
	if err != nil {
		t.Fatalf("ConvertGrid: %v", err)
	}
	c.Set(0, 0, 5)
	if g.At(0, 0) != 0 {
		t.Error("celsius conversion must return a copy")
	}

	if _, err := ConvertGrid(g, "rankine"); !errors.Is(err, raster.ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}
}
