// Package classify turns continuous index grids into boolean class masks.
//
// Two change flavours are exposed and they are not interchangeable:
// DifferenceMagnitude thresholds |after - before|, while IndependentThreshold
// classifies each epoch on its own and leaves the comparison to
// internal/change. Undefined pixels never classify as true.
package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// Direction selects the comparison applied against the threshold.
type Direction int

const (
	// Above is strictly greater than; it is the default for every index.
	Above Direction = iota
	AtLeast
	Below
	AtMost
)

var directionNames = map[Direction]string{
	Above:   ">",
	AtLeast: ">=",
	Below:   "<",
	AtMost:  "<=",
}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts the operator form (">", ">=", "<", "<=") or the
// names "above", "at-least", "below", "at-most". An empty string is Above.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ">", "gt", "above":
		return Above, nil
	case ">=", "ge", "at-least":
		return AtLeast, nil
	case "<", "lt", "below":
		return Below, nil
	case "<=", "le", "at-most":
		return AtMost, nil
	}
	return 0, fmt.Errorf("unknown direction %q: %w", s, raster.ErrConfiguration)
}

func (d Direction) compare(v, t float64) bool {
	switch d {
	case AtLeast:
		return v >= t
	case Below:
		return v < t
	case AtMost:
		return v <= t
	default:
		return v > t
	}
}

// ValidateThreshold rejects NaN and infinite thresholds.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("threshold %v: %w", t, raster.ErrConfiguration)
	}
	return nil
}

func validate(t float64, dir Direction) error {
	if err := ValidateThreshold(t); err != nil {
		return err
	}
	if _, ok := directionNames[dir]; !ok {
		return fmt.Errorf("direction %d: %w", int(dir), raster.ErrConfiguration)
	}
	return nil
}

// Threshold marks pixels where grid compares true against t. Undefined pixels
// are always false.
func Threshold(grid *raster.Grid, t float64, dir Direction) (*raster.Mask, error) {
	if err := validate(t, dir); err != nil {
		return nil, err
	}
	if err := raster.CheckShapes("threshold", grid); err != nil {
		return nil, err
	}
	s := grid.Shape()
	out, err := raster.NewMask(s.Rows, s.Cols)
	if err != nil {
		return nil, err
	}
	bits := out.Data()
	for i, v := range grid.Data() {
		if !raster.IsValid(v) {
			continue
		}
		bits[i] = dir.compare(v, t)
	}
	return out, nil
}

// Count returns the number of true cells in m.
func Count(m *raster.Mask) int {
	if m == nil {
		return 0
	}
	return m.Count()
}
