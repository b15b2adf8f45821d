package raster

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskOps(t *testing.T) {
	a, err := MaskFromRows([][]bool{{true, true, false, false}})
	require.NoError(t, err)
	b, err := MaskFromRows([][]bool{{true, false, true, false}})
	require.NoError(t, err)

	tests := []struct {
		name string
		fn   func(a, b *Mask) (*Mask, error)
		want []bool
	}{
		{"and", And, []bool{true, false, false, false}},
		{"and-not", AndNot, []bool{false, true, false, false}},
		{"or", Or, []bool{true, true, true, false}},
		{"xor", Xor, []bool{false, true, true, false}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fn(a, b)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got.Data()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMaskOps_ShapeMismatch(t *testing.T) {
	a, _ := NewMask(1, 2)
	b, _ := NewMask(2, 1)
	_, err := Xor(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCategoryGrid_FillAndHistogram(t *testing.T) {
	g, err := NewCategoryGrid(2, 2)
	require.NoError(t, err)
	m, _ := MaskFromRows([][]bool{{true, false}, {true, true}})
	require.NoError(t, g.Fill(m, 2))

	assert.Equal(t, [][]uint8{{2, 0}, {2, 2}}, g.Rows())
	assert.Equal(t, map[uint8]int{0: 1, 2: 3}, g.Histogram())
	assert.Equal(t, 2.0, g.ToGrid().At(1, 1))

	wrong, _ := NewMask(1, 1)
	assert.ErrorIs(t, g.Fill(wrong, 1), ErrShapeMismatch)
}

func TestSummarize(t *testing.T) {
	g, _ := GridFromRows([][]float64{{1, 2, math.NaN()}, {3, 4, math.NaN()}})
	s := Summarize(g)
	assert.Equal(t, 6, s.Pixels)
	assert.Equal(t, 4, s.Valid)
	assert.Equal(t, 2, s.Undefined)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.2910, s.StdDev, 1e-4)
	assert.Equal(t, 2.0, s.Median)
}

func TestSummarize_AllUndefined(t *testing.T) {
	g, _ := NewUndefinedGrid(2, 2)
	s := Summarize(g)
	assert.Equal(t, 0, s.Valid)
	assert.True(t, math.IsNaN(s.Mean))
	assert.True(t, math.IsNaN(s.Min))
}

func TestHistogram(t *testing.T) {
	g, _ := GridFromRows([][]float64{{-1, -0.5, 0, 0.5, 1, math.NaN(), 2}})
	edges, counts := Histogram(g, 4, -1, 1)
	require.Len(t, edges, 5)
	assert.Equal(t, 1.0, edges[4])
	assert.Equal(t, []float64{1, 1, 1, 2}, counts)

	e, c := Histogram(g, 0, -1, 1)
	assert.Nil(t, e)
	assert.Nil(t, c)
}
