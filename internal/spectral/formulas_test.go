package spectral

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestNDVI_KnownValues(t *testing.T) {
	red := testutil.Grid(t, [][]float64{{0.2, 0.1}})
	nir := testutil.Grid(t, [][]float64{{0.5, 0.3}})

	got, err := NDVI(red, nir)
	testutil.AssertNoError(t, err)
	testutil.AssertGridNear(t, got, [][]float64{{0.4286, 0.5}}, 1e-3)
}

func TestNDVI_ZeroDenominatorIsUndefined(t *testing.T) {
	zero := testutil.Grid(t, [][]float64{{0.0}})

	got, err := NDVI(zero, zero)
	testutil.AssertNoError(t, err)
	v := got.At(0, 0)
	assert.True(t, raster.IsUndefined(v), "0/0 must be Undefined, got %v", v)
	assert.NotEqual(t, 0.0, v)
}

func TestRatioFamily_OppositeBandsCancel(t *testing.T) {
	// a == -b gives a zero denominator with a non-zero numerator; the result
	// must be Undefined rather than +/-Inf.
	a := testutil.Grid(t, [][]float64{{0.3, 0.4}})
	b := testutil.Grid(t, [][]float64{{-0.3, 0.1}})

	for name, fn := range map[string]func(x, y *raster.Grid) (*raster.Grid, error){
		"ndsi": NDSI, "swi": SWI, "nbr": NBR,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := fn(a, b)
			require.NoError(t, err)
			testutil.AssertGridNear(t, got, [][]float64{{nan, 0.6}}, 1e-12)
		})
	}
}

func TestNDWI_And_GNDVI_Orientation(t *testing.T) {
	nir := testutil.Grid(t, [][]float64{{0.1}})
	green := testutil.Grid(t, [][]float64{{0.3}})

	ndwi, err := NDWI(nir, green)
	require.NoError(t, err)
	testutil.AssertGridNear(t, ndwi, [][]float64{{0.5}}, 1e-12)

	gndvi, err := GNDVI(green, nir)
	require.NoError(t, err)
	testutil.AssertGridNear(t, gndvi, [][]float64{{-0.5}}, 1e-12)
}

func TestFormulas_NoDataPropagates(t *testing.T) {
	red := testutil.Grid(t, [][]float64{{nan, 0.1}})
	nir := testutil.Grid(t, [][]float64{{0.5, math.Inf(1)}})

	got, err := NDVI(red, nir)
	require.NoError(t, err)
	testutil.AssertGridNear(t, got, [][]float64{{nan, nan}}, 0)
}

func TestFormulas_ShapeMismatch(t *testing.T) {
	a := testutil.Filled(t, 2, 2, 0.1)
	b := testutil.Filled(t, 2, 3, 0.1)
	c := testutil.Filled(t, 2, 2, 0.1)

	tests := []struct {
		name string
		run  func() (*raster.Grid, error)
	}{
		{"ndvi", func() (*raster.Grid, error) { return NDVI(a, b) }},
		{"ndwi", func() (*raster.Grid, error) { return NDWI(a, b) }},
		{"gndvi", func() (*raster.Grid, error) { return GNDVI(a, b) }},
		{"ndsi", func() (*raster.Grid, error) { return NDSI(a, b) }},
		{"swi", func() (*raster.Grid, error) { return SWI(a, b) }},
		{"nbr", func() (*raster.Grid, error) { return NBR(a, b) }},
		{"evi", func() (*raster.Grid, error) { return EVI(a, c, b) }},
		{"lst", func() (*raster.Grid, error) { return LST(b, a, c) }},
		{"normalized difference", func() (*raster.Grid, error) { return NormalizedDifference(a, b) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.run()
			testutil.AssertErrorIs(t, err, raster.ErrShapeMismatch)
		})
	}
}

func TestFormulas_OutputShapeMatchesInput(t *testing.T) {
	a := testutil.Filled(t, 3, 5, 0.2)
	b := testutil.Filled(t, 3, 5, 0.4)
	c := testutil.Filled(t, 3, 5, 0.05)

	for _, name := range Default.Names() {
		t.Run(string(name), func(t *testing.T) {
			got, err := Default.Compute(string(name), Bands{Red: a, NIR: b, Green: c, Blue: c, SWIR: a})
			require.NoError(t, err)
			assert.Equal(t, a.Shape(), got.Shape())
		})
	}
}

func TestEVI_ClipsToUnitRange(t *testing.T) {
	// red=0, blue=0: EVI = 2.5*nir/(nir+1); nir=18/7 gives exactly 1.8 raw.
	red := testutil.Grid(t, [][]float64{{0}})
	blue := testutil.Grid(t, [][]float64{{0}})
	nir := testutil.Grid(t, [][]float64{{18.0 / 7.0}})

	raw := eviKernel(0, 18.0/7.0, 0, DefaultEVIEps)
	require.InDelta(t, 1.8, raw, 1e-12)

	got, err := EVI(red, nir, blue)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.At(0, 0))
}

func TestEVI_NearZeroDenominatorIsUndefined(t *testing.T) {
	// nir + 6*red - 7.5*blue + 1 == 0 for red=0, nir=0.5, blue=0.2
	red := testutil.Grid(t, [][]float64{{0, 0}})
	nir := testutil.Grid(t, [][]float64{{0.5, 0.5}})
	blue := testutil.Grid(t, [][]float64{{0.2, 0.2 + 1e-8}})

	got, err := EVI(red, nir, blue)
	require.NoError(t, err)
	assert.True(t, raster.IsUndefined(got.At(0, 0)))
	assert.True(t, raster.IsUndefined(got.At(0, 1)), "denominator inside epsilon must be Undefined")
}

func TestEVI_RandomInputsStayBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 64
	red, _ := raster.NewGrid(n, n)
	nir, _ := raster.NewGrid(n, n)
	blue, _ := raster.NewGrid(n, n)
	for i := range red.Data() {
		red.Data()[i] = rng.Float64()*2 - 0.5
		nir.Data()[i] = rng.Float64()*2 - 0.5
		blue.Data()[i] = rng.Float64()*2 - 0.5
	}

	got, err := EVI(red, nir, blue)
	require.NoError(t, err)
	for i, v := range got.Data() {
		if raster.IsUndefined(v) {
			continue
		}
		if v < -1 || v > 1 {
			t.Fatalf("pixel %d = %v outside [-1, 1]", i, v)
		}
	}
}

func TestUnboundedFormulasAreNotClipped(t *testing.T) {
	// Negative reflectance pushes the ratio outside [-1, 1]; it must survive.
	nir := testutil.Grid(t, [][]float64{{0.5}})
	red := testutil.Grid(t, [][]float64{{-0.4}})

	got, err := NDVI(red, nir)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, got.At(0, 0), 1e-9)
}

func TestLST_ConstantBrightness(t *testing.T) {
	green := testutil.Grid(t, [][]float64{{0.1, 0.1, 0.2}})
	red := testutil.Grid(t, [][]float64{{0.2, 0.0, 0.0}})
	nir := testutil.Grid(t, [][]float64{{0.2, 0.0, 0.4}})

	got, err := LST(green, nir, red)
	require.NoError(t, err)

	// NDVI = 0 -> emissivity 0.986
	k := EmittedWavelength * DefaultBrightnessTemperature / PlanckRho
	want0 := DefaultBrightnessTemperature/(1+k*math.Log(0.986)) - KelvinOffset
	// NDVI = 1 -> emissivity 0.990
	want2 := DefaultBrightnessTemperature/(1+k*math.Log(0.990)) - KelvinOffset

	testutil.AssertGridNear(t, got, [][]float64{{want0, nan, want2}}, 1e-9)
	assert.InDelta(t, 27.87, got.At(0, 0), 0.05)
}

func TestLSTWithBrightness_UsesThermalGrid(t *testing.T) {
	green := testutil.Grid(t, [][]float64{{0.1, 0.1}})
	red := testutil.Grid(t, [][]float64{{0.2, 0.2}})
	nir := testutil.Grid(t, [][]float64{{0.2, 0.2}})
	bt := testutil.Grid(t, [][]float64{{300, 310}})

	got, err := LSTWithBrightness(green, nir, red, bt)
	require.NoError(t, err)
	constant, err := LST(green, nir, red)
	require.NoError(t, err)

	assert.InDelta(t, constant.At(0, 0), got.At(0, 0), 1e-9)
	assert.Greater(t, got.At(0, 1), got.At(0, 0))

	_, err = LSTWithBrightness(green, nir, red, testutil.Filled(t, 2, 2, 300))
	testutil.AssertErrorIs(t, err, raster.ErrShapeMismatch)
}

func TestFormulas_DoNotMutateInputs(t *testing.T) {
	red := testutil.Grid(t, [][]float64{{0.2, 0}})
	nir := testutil.Grid(t, [][]float64{{0.5, 0}})
	blue := testutil.Grid(t, [][]float64{{0.05, 0}})

	_, err := EVI(red, nir, blue)
	require.NoError(t, err)
	testutil.AssertGridNear(t, red, [][]float64{{0.2, 0}}, 0)
	testutil.AssertGridNear(t, nir, [][]float64{{0.5, 0}}, 0)
	testutil.AssertGridNear(t, blue, [][]float64{{0.05, 0}}, 0)
}
