// Package testutil provides shared test utilities and fixtures.
//
// This package centralises grid builders and NaN-aware comparisons so that
// formula, classifier and composer tests read the same way.
package testutil

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// Grid builds a raster.Grid from rows or fails the test.
func Grid(t testing.TB, rows [][]float64) *raster.Grid {
	t.Helper()
	g, err := raster.GridFromRows(rows)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	return g
}

// Mask builds a raster.Mask from rows or fails the test.
func Mask(t testing.TB, rows [][]bool) *raster.Mask {
	t.Helper()
	m, err := raster.MaskFromRows(rows)
	if err != nil {
		t.Fatalf("build mask: %v", err)
	}
	return m
}

// Filled returns a rows x cols grid with every pixel set to v.
func Filled(t testing.TB, rows, cols int, v float64) *raster.Grid {
	t.Helper()
	g, err := raster.NewGrid(rows, cols)
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	for i := range g.Data() {
		g.Data()[i] = v
	}
	return g
}

// AssertGridNear compares got against want pixel by pixel. A NaN in want
// requires Undefined in got; otherwise values must agree within tol.
func AssertGridNear(t testing.TB, got *raster.Grid, want [][]float64, tol float64) {
	t.Helper()
	if got == nil {
		t.Fatal("grid is nil")
	}
	s := got.Shape()
	if s.Rows != len(want) || (len(want) > 0 && s.Cols != len(want[0])) {
		t.Fatalf("shape = %s, want %dx%d", s, len(want), len(want[0]))
	}
	for r := range want {
		for c, w := range want[r] {
			v := got.At(r, c)
			if math.IsNaN(w) {
				if !raster.IsUndefined(v) {
					t.Errorf("(%d,%d) = %v, want Undefined", r, c, v)
				}
				continue
			}
			if raster.IsUndefined(v) || math.Abs(v-w) > tol {
				t.Errorf("(%d,%d) = %v, want %v (tol %g)", r, c, v, w, tol)
			}
		}
	}
}
