package classify

import (
	"math"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// DifferenceResult is the outcome of magnitude-of-difference classification.
type DifferenceResult struct {
	// Changed is true where |after - before| exceeds the threshold.
	Changed *raster.Mask
	// Diff is after - before; Undefined where either epoch is Undefined.
	Diff *raster.Grid
}

// DifferenceMagnitude computes the index difference between two epochs and
// marks pixels whose absolute difference is strictly greater than t.
func DifferenceMagnitude(before, after *raster.Grid, t float64) (*DifferenceResult, error) {
	if err := ValidateThreshold(t); err != nil {
		return nil, err
	}
	diff, err := raster.Map2("difference magnitude", before, after, func(b, a float64) float64 {
		return a - b
	})
	if err != nil {
		return nil, err
	}
	abs, _ := raster.Map1("abs", diff, math.Abs)
	changed, err := Threshold(abs, t, Above)
	if err != nil {
		return nil, err
	}
	return &DifferenceResult{Changed: changed, Diff: diff}, nil
}

// EpochMasks holds one index family classified independently at two epochs.
type EpochMasks struct {
	Before *raster.Mask
	After  *raster.Mask
}

// Shape returns the shared shape of both masks. It assumes the masks were
// produced by IndependentThreshold.
func (e EpochMasks) Shape() raster.Shape {
	return e.Before.Shape()
}

// IndependentThreshold classifies each epoch against the same threshold and
// direction. The masks are meant for internal/change, which decides how a
// flip between epochs is interpreted.
func IndependentThreshold(before, after *raster.Grid, t float64, dir Direction) (EpochMasks, error) {
	return IndependentThresholds(before, after, t, t, dir)
}

// IndependentThresholds is IndependentThreshold with a separate threshold per
// epoch, e.g. when the acquisitions come from sensors with different
// radiometric calibration.
func IndependentThresholds(before, after *raster.Grid, tBefore, tAfter float64, dir Direction) (EpochMasks, error) {
	if err := validate(tBefore, dir); err != nil {
		return EpochMasks{}, err
	}
	if err := validate(tAfter, dir); err != nil {
		return EpochMasks{}, err
	}
	if err := raster.CheckShapes("independent threshold", before, after); err != nil {
		return EpochMasks{}, err
	}
	b, err := Threshold(before, tBefore, dir)
	if err != nil {
		return EpochMasks{}, err
	}
	a, err := Threshold(after, tAfter, dir)
	if err != nil {
		return EpochMasks{}, err
	}
	return EpochMasks{Before: b, After: a}, nil
}
