package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/classify"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
	"github.com/banshee-data/spectral.report/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func testProfile() raster.Profile {
	nodata := -9999.0
	return raster.Profile{
		Width:    2,
		Height:   1,
		CRS:      "EPSG:32633",
		CellSize: 10,
		NoData:   &nodata,
		DataType: raster.Float32,
		Count:    3,
		Driver:   "AAIGrid",
	}
}

// NDVI flips from positive to negative in pixel 0 and the reverse in pixel 1.
// NDWI stays negative everywhere.
func testScenes(t *testing.T) (Scene, Scene) {
	t.Helper()
	before := Scene{
		Name: "before",
		Bands: spectral.Bands{
			spectral.Red:   testutil.Grid(t, [][]float64{{0.2, 0.4}}),
			spectral.NIR:   testutil.Grid(t, [][]float64{{0.6, 0.5}}),
			spectral.Green: testutil.Grid(t, [][]float64{{0.1, 0.1}}),
		},
		Profile: testProfile(),
	}
	after := Scene{
		Name: "after",
		Bands: spectral.Bands{
			spectral.Red:   testutil.Grid(t, [][]float64{{0.4, 0.2}}),
			spectral.NIR:   testutil.Grid(t, [][]float64{{0.5, 0.6}}),
			spectral.Green: testutil.Grid(t, [][]float64{{0.1, 0.1}}),
		},
		Profile: testProfile(),
	}
	return before, after
}

func testRequest(t *testing.T) ChangeRequest {
	before, after := testScenes(t)
	return ChangeRequest{
		Before:    before,
		After:     after,
		FamilyA:   Family{Index: "ndvi", Threshold: 0.3},
		FamilyB:   Family{Index: "ndwi", Threshold: 0.2},
		Direction: classify.Above,
		Rule:      change.RuleDisjoint,
		Mode:      ModeIndependent,
	}
}

func TestRunChange_Independent(t *testing.T) {
	res, err := NewRunner(nil, 2).RunChange(context.Background(), testRequest(t))
	require.NoError(t, err)

	if diff := cmp.Diff([][]uint8{{0, 1}}, res.Categories.Rows()); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, change.Tally{NoChange: 1, AOnly: 1}, res.Tally)
	assert.Equal(t, []bool{true, false}, res.FamilyA.Masks.Before.Data())
	assert.Equal(t, []bool{false, true}, res.FamilyA.Masks.After.Data())
	assert.Equal(t, 0, res.FamilyB.Changed.Count())
	assert.Nil(t, res.FamilyA.Diff)

	assert.Equal(t, raster.Uint8, res.Profile.DataType)
	assert.Equal(t, 1, res.Profile.Count)
	assert.Equal(t, "EPSG:32633", res.Profile.CRS)
}

func TestRunChange_DifferenceMode(t *testing.T) {
	req := testRequest(t)
	req.Mode = ModeDifference
	req.Rule = change.RuleOrdered

	res, err := NewRunner(nil, 1).RunChange(context.Background(), req)
	require.NoError(t, err)

	// |dNDVI| ~ 0.39 in both pixels; |dNDWI| ~ 0.05.
	assert.Equal(t, []uint8{1, 1}, res.Categories.Data())
	require.NotNil(t, res.FamilyA.Diff)
	assert.InDelta(t, -0.3889, res.FamilyA.Diff.At(0, 0), 1e-4)
	assert.InDelta(t, 0.3889, res.FamilyA.Diff.At(0, 1), 1e-4)
	assert.Nil(t, res.FamilyA.Masks.Before)
}

func TestRunChange_SameIndexBothFamilies(t *testing.T) {
	req := testRequest(t)
	req.FamilyB = Family{Index: "NDVI", Threshold: 0.3}

	res, err := NewRunner(nil, 0).RunChange(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 3}, res.Categories.Data())
	assert.Same(t, res.FamilyA.After, res.FamilyB.After)
}

func TestRunChange_UndefinedPixelsNeverChange(t *testing.T) {
	req := testRequest(t)
	req.After.Bands[spectral.Red] = testutil.Grid(t, [][]float64{{0.4, math.NaN()}})

	res, err := NewRunner(nil, 0).RunChange(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0}, res.Categories.Data())
}

func TestRunChange_ValidationFailsBeforeCompute(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ChangeRequest)
		want   error
	}{
		{"unknown index", func(r *ChangeRequest) { r.FamilyA.Index = "savi" }, raster.ErrConfiguration},
		{"nan threshold", func(r *ChangeRequest) { r.FamilyB.Threshold = math.NaN() }, raster.ErrConfiguration},
		{"unknown mode", func(r *ChangeRequest) { r.Mode = "symmetric" }, raster.ErrConfiguration},
		{"unknown rule", func(r *ChangeRequest) { r.Rule = "majority" }, raster.ErrConfiguration},
		{"unknown direction", func(r *ChangeRequest) { r.Direction = classify.Direction(42) }, raster.ErrConfiguration},
		{"empty scene", func(r *ChangeRequest) { r.After.Bands = nil }, raster.ErrConfiguration},
		{"epoch shapes differ", func(r *ChangeRequest) {
			r.After.Bands = spectral.Bands{
				spectral.Red:   testutil.Filled(t, 2, 2, 0.1),
				spectral.NIR:   testutil.Filled(t, 2, 2, 0.5),
				spectral.Green: testutil.Filled(t, 2, 2, 0.1),
			}
		}, raster.ErrShapeMismatch},
		{"bands within scene differ", func(r *ChangeRequest) {
			r.Before.Bands[spectral.Green] = testutil.Filled(t, 3, 1, 0.1)
		}, raster.ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			tt.mutate(&req)
			res, err := NewRunner(nil, 0).RunChange(context.Background(), req)
			assert.Nil(t, res)
			testutil.AssertErrorIs(t, err, tt.want)
		})
	}
}

func TestRunChange_MissingBand(t *testing.T) {
	req := testRequest(t)
	req.FamilyB = Family{Index: "nbr", Threshold: 0.1}

	res, err := NewRunner(nil, 0).RunChange(context.Background(), req)
	assert.Nil(t, res)
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}

func TestChangeRequest_ValidateRequiresFamilyBands(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ChangeRequest)
		want   string
	}{
		{"swir absent from both epochs", func(r *ChangeRequest) {
			r.FamilyB = Family{Index: "nbr", Threshold: 0.1}
		}, "needs band swir"},
		{"green dropped from the later epoch", func(r *ChangeRequest) {
			delete(r.After.Bands, spectral.Green)
		}, `missing from scene "after"`},
		{"nil grid counts as missing", func(r *ChangeRequest) {
			r.Before.Bands[spectral.Red] = nil
		}, `needs band red, missing from scene "before"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			tt.mutate(&req)
			err := req.Validate(spectral.Default)
			testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRunChange_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(nil, 0).RunChange(ctx, testRequest(t))
	assert.Nil(t, res)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRunIndex(t *testing.T) {
	before, _ := testScenes(t)

	res, err := NewRunner(nil, 0).RunIndex(context.Background(), before, "ndwi", "ndvi")
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, spectral.IndexNDWI, res[0].Name)
	assert.Equal(t, spectral.IndexNDVI, res[1].Name)
	testutil.AssertGridNear(t, res[1].Grid, [][]float64{{0.5, 0.1111}}, 1e-4)
	assert.Equal(t, raster.Float32, res[1].Profile.DataType)
	assert.Equal(t, 1, res[1].Profile.Count)
	assert.Equal(t, 2, res[1].Summary.Valid)
	assert.InDelta(t, 0.5, res[1].Summary.Max, 1e-9)
}

func TestRunIndex_Errors(t *testing.T) {
	before, _ := testScenes(t)
	r := NewRunner(nil, 0)

	_, err := r.RunIndex(context.Background(), before)
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)

	_, err = r.RunIndex(context.Background(), before, "ndvi", "savi")
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)

	// EVI needs a blue band the scene does not carry.
	_, err = r.RunIndex(context.Background(), before, "evi")
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Difference")
	require.NoError(t, err)
	assert.Equal(t, ModeDifference, m)

	_, err = ParseMode("")
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)
}
