package bandio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectral.report/internal/fsutil"
	"github.com/banshee-data/spectral.report/internal/pipeline"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
	"github.com/banshee-data/spectral.report/internal/testutil"
)

func writeBand(t *testing.T, fsys fsutil.FileSystem, path string, rows [][]float64) {
	t.Helper()
	require.NoError(t, WriteGrid(fsys, path, testutil.Grid(t, rows), raster.Profile{CellSize: 10}))
}

func TestBandFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want spectral.Band
		ok   bool
	}{
		{"red.asc", spectral.Red, true},
		{"B8A.asc", spectral.NIR, true},
		{"T33UUP_20260101T100031_B04_10m.asc", spectral.Red, true},
		{"T33UUP_20260101T100031_B11_20m.asc", spectral.SWIR, true},
		{"bt.asc", spectral.Brightness, true},
		{"ndvi.asc", "", false},
		{"T33UUP_SCL_20m.asc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bandFromFileName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadScene(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeBand(t, mfs, "scenes/t0/B04.asc", [][]float64{{0.2, 0.1}})
	writeBand(t, mfs, "scenes/t0/B08.asc", [][]float64{{0.5, 0.3}})
	writeBand(t, mfs, "scenes/t0/notes.asc", [][]float64{{9, 9}})
	require.NoError(t, mfs.WriteFile("scenes/t0/README.txt", []byte("ignored"), 0644))

	scene, err := LoadScene(mfs, "scenes/t0")
	require.NoError(t, err)
	assert.Equal(t, "t0", scene.Name)
	assert.Len(t, scene.Bands, 2)
	assert.Equal(t, 2, scene.Profile.Count)
	assert.Equal(t, 2, scene.Profile.Width)

	res, err := pipeline.NewRunner(nil, 1).RunIndex(context.Background(), scene, "ndvi")
	require.NoError(t, err)
	testutil.AssertGridNear(t, res[0].Grid, [][]float64{{0.4286, 0.5}}, 1e-3)
}

func TestLoadScene_Errors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	_, err := LoadScene(mfs, "missing")
	testutil.AssertError(t, err)

	writeBand(t, mfs, "empty/ndvi.asc", [][]float64{{1}})
	_, err = LoadScene(mfs, "empty")
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)

	writeBand(t, mfs, "dup/B08.asc", [][]float64{{1}})
	writeBand(t, mfs, "dup/B8A.asc", [][]float64{{1}})
	_, err = LoadScene(mfs, "dup")
	testutil.AssertErrorIs(t, err, raster.ErrConfiguration)

	writeBand(t, mfs, "ragged/red.asc", [][]float64{{1, 2}})
	writeBand(t, mfs, "ragged/nir.asc", [][]float64{{1}, {2}})
	_, err = LoadScene(mfs, "ragged")
	testutil.AssertErrorIs(t, err, raster.ErrShapeMismatch)
}

func TestReadScene_ExplicitBinding(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeBand(t, mfs, "a/first.asc", [][]float64{{0.1}})
	writeBand(t, mfs, "b/second.asc", [][]float64{{0.6}})

	scene, err := ReadScene(mfs, "custom", map[spectral.Band]string{
		spectral.NIR:  "a/first.asc",
		spectral.SWIR: "b/second.asc",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", scene.Name)
	assert.Equal(t, 0.1, scene.Bands[spectral.NIR].At(0, 0))
	assert.Equal(t, 0.6, scene.Bands[spectral.SWIR].At(0, 0))
}
