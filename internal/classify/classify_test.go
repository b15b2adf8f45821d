package classify

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

var nan = math.NaN()

func TestThreshold_StrictlyGreaterByDefault(t *testing.T) {
	g := testutil.Grid(t, [][]float64{{0.1, 0.3, 0.31, nan}})

	m, err := Threshold(g, 0.3, Above)
	testutil.AssertNoError(t, err)
	want := [][]bool{{false, false, true, false}}
	if diff := cmp.Diff(want, m.Rows()); diff != "" {
		t.Errorf("mask mismatch (-want +got):\n%s", diff)
	}
}

func TestThreshold_Directions(t *testing.T) {
	g := testutil.Grid(t, [][]float64{{0.1, 0.3, 0.5, nan}})

	tests := []struct {
		dir  Direction
		want []bool
	}{
		{Above, []bool{false, false, true, false}},
		{AtLeast, []bool{false, true, true, false}},
		{Below, []bool{true, false, false, false}},
		{AtMost, []bool{true, true, false, false}},
	}
	for _, tc := range tests {
		t.Run(tc.dir.String(), func(t *testing.T) {
			m, err := Threshold(g, 0.3, tc.dir)
			testutil.AssertNoError(t, err)
			if diff := cmp.Diff(tc.want, m.Data()); diff != "" {
				t.Errorf("mask mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestThreshold_UndefinedNeverTrue(t *testing.T) {
	g := testutil.Grid(t, [][]float64{{nan, math.Inf(1), math.Inf(-1)}})
	for _, dir := range []Direction{Above, AtLeast, Below, AtMost} {
		m, err := Threshold(g, 0, dir)
		testutil.AssertNoError(t, err)
		if m.Count() != 0 {
			t.Errorf("%s: %d undefined pixels classified true", dir, m.Count())
		}
	}
}

func TestThreshold_CountMatchesComparison(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g, _ := raster.NewGrid(40, 40)
	for i := range g.Data() {
		if rng.Intn(10) == 0 {
			g.Data()[i] = nan
			continue
		}
		g.Data()[i] = rng.Float64()*2 - 1
	}

	for _, th := range []float64{-0.5, 0, 0.25, 0.9} {
		m, err := Threshold(g, th, Above)
		testutil.AssertNoError(t, err)
		want := 0
		for _, v := range g.Data() {
			if !raster.IsUndefined(v) && v > th {
				want++
			}
		}
		if got := Count(m); got != want {
			t.Errorf("threshold %v: count = %d, want %d", th, got, want)
		}
	}
}

func TestThreshold_ConfigurationErrors(t *testing.T) {
	g := testutil.Grid(t, [][]float64{{0.5}})

	for _, th := range []float64{nan, math.Inf(1), math.Inf(-1)} {
		_, err := Threshold(g, th, Above)
		testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
	}
	_, err := Threshold(g, 0.1, Direction(42))
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)

	// Configuration is checked before the grid is touched.
	_, err = Threshold(nil, nan, Above)
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{
		"":         Above,
		">":        Above,
		"above":    Above,
		">=":       AtLeast,
		"AT-LEAST": AtLeast,
		"<":        Below,
		"le":       AtMost,
	}
	for in, want := range tests {
		got, err := ParseDirection(in)
		testutil.AssertNoError(t, err)
		if got != want {
			t.Errorf("ParseDirection(%q) = %s, want %s", in, got, want)
		}
	}
	_, err := ParseDirection("!=")
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}

func TestCount_Nil(t *testing.T) {
	if Count(nil) != 0 {
		t.Error("Count(nil) should be 0")
	}
}
