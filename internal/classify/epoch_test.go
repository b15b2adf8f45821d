package classify

import (
	"math"
	"testing"

	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifferenceMagnitude(t *testing.T) {
	before := testutil.Grid(t, [][]float64{{0.1, 0.5, 0.2, nan}})
	after := testutil.Grid(t, [][]float64{{0.5, 0.1, 0.3, 0.4}})

	res, err := DifferenceMagnitude(before, after, 0.3)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, false, false}, res.Changed.Data())
	testutil.AssertGridNear(t, res.Diff, [][]float64{{0.4, -0.4, 0.1, nan}}, 1e-12)
}

func TestDifferenceMagnitude_ExactThresholdIsNotChange(t *testing.T) {
	before := testutil.Grid(t, [][]float64{{0.0}})
	after := testutil.Grid(t, [][]float64{{0.5}})
	res, err := DifferenceMagnitude(before, after, 0.5)
	require.NoError(t, err)
	assert.False(t, res.Changed.At(0, 0))
}

func TestDifferenceMagnitude_Errors(t *testing.T) {
	a := testutil.Filled(t, 2, 2, 0)
	b := testutil.Filled(t, 2, 1, 0)

	_, err := DifferenceMagnitude(a, b, 0.2)
	testutil.AssertErrorIs(t, err, raster.ErrShapeMismatch)

	_, err = DifferenceMagnitude(a, a, math.NaN())
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}

func TestIndependentThreshold(t *testing.T) {
	before := testutil.Grid(t, [][]float64{{0.5, 0.1, nan}})
	after := testutil.Grid(t, [][]float64{{0.1, 0.5, 0.5}})

	em, err := IndependentThreshold(before, after, 0.3, Above)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, em.Before.Data())
	assert.Equal(t, []bool{false, true, true}, em.After.Data())
	assert.Equal(t, raster.Shape{Rows: 1, Cols: 3}, em.Shape())
}

func TestIndependentThresholds_PerEpoch(t *testing.T) {
	g := testutil.Grid(t, [][]float64{{0.25}})
	em, err := IndependentThresholds(g, g, 0.2, 0.3, Above)
	require.NoError(t, err)
	assert.True(t, em.Before.At(0, 0))
	assert.False(t, em.After.At(0, 0))
}

func TestIndependentThreshold_Errors(t *testing.T) {
	a := testutil.Filled(t, 2, 2, 0)
	b := testutil.Filled(t, 3, 2, 0)

	_, err := IndependentThreshold(a, b, 0.2, Above)
	testutil.AssertErrorIs(t, err, raster.ErrShapeMismatch)

	_, err = IndependentThresholds(a, a, 0.2, math.Inf(1), Above)
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}
