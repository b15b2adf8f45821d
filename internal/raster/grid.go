package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Undefined marks a pixel that could not be computed: no-data input or a
// failed denominator. It is distinct from a valid zero.
var Undefined = math.NaN()

// IsUndefined reports whether v carries the Undefined marker.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// IsValid reports whether v is a finite, defined pixel value.
func IsValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Grid is a 2-D float64 raster backed by a gonum dense matrix. Band grids and
// index grids share this type.
type Grid struct {
	m *mat.Dense
}

// NewGrid allocates a rows x cols grid filled with zero.
func NewGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("new grid %dx%d: %w", rows, cols, ErrEmptyGrid)
	}
	return &Grid{m: mat.NewDense(rows, cols, nil)}, nil
}

// NewUndefinedGrid allocates a grid with every pixel set to Undefined.
func NewUndefinedGrid(rows, cols int) (*Grid, error) {
	g, err := NewGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	raw := g.m.RawMatrix().Data
	for i := range raw {
		raw[i] = Undefined
	}
	return g, nil
}

// GridFromSlice wraps a row-major copy of data.
func GridFromSlice(rows, cols int, data []float64) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid from slice %dx%d: %w", rows, cols, ErrEmptyGrid)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("grid from slice: %d values for %dx%d: %w", len(data), rows, cols, ErrShapeMismatch)
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return &Grid{m: mat.NewDense(rows, cols, cp)}, nil
}

// GridFromRows builds a grid from a rectangular [][]float64.
func GridFromRows(rows [][]float64) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("grid from rows: %w", ErrEmptyGrid)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("grid from rows: row %d has %d columns, want %d: %w", i, len(r), cols, ErrShapeMismatch)
		}
		data = append(data, r...)
	}
	return &Grid{m: mat.NewDense(len(rows), cols, data)}, nil
}

// GridFromDense wraps an existing dense matrix. Views whose stride differs
// from their column count are copied so Data stays contiguous.
func GridFromDense(m *mat.Dense) (*Grid, error) {
	if m == nil || m.IsEmpty() {
		return nil, fmt.Errorf("grid from dense: %w", ErrEmptyGrid)
	}
	if _, c := m.Dims(); m.RawMatrix().Stride != c {
		return &Grid{m: mat.DenseCopyOf(m)}, nil
	}
	return &Grid{m: m}, nil
}

// Shape returns the grid dimensions.
func (g *Grid) Shape() Shape {
	r, c := g.m.Dims()
	return Shape{Rows: r, Cols: c}
}

// At returns the value at (r, c).
func (g *Grid) At(r, c int) float64 {
	return g.m.At(r, c)
}

// Set writes v at (r, c). Only the operation that allocated the grid should
// call Set; formulas never mutate their inputs.
func (g *Grid) Set(r, c int, v float64) {
	g.m.Set(r, c, v)
}

// Data returns the row-major backing slice. Callers must treat it as
// read-only unless they own the grid.
func (g *Grid) Data() []float64 {
	return g.m.RawMatrix().Data
}

// Dense exposes the underlying matrix for gonum interop.
func (g *Grid) Dense() *mat.Dense {
	return g.m
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	return &Grid{m: mat.DenseCopyOf(g.m)}
}

// Rows returns a copy of the grid as [][]float64.
func (g *Grid) Rows() [][]float64 {
	s := g.Shape()
	data := g.Data()
	out := make([][]float64, s.Rows)
	for r := range out {
		out[r] = make([]float64, s.Cols)
		copy(out[r], data[r*s.Cols:(r+1)*s.Cols])
	}
	return out
}

// UndefinedCount returns the number of Undefined pixels.
func (g *Grid) UndefinedCount() int {
	n := 0
	for _, v := range g.Data() {
		if IsUndefined(v) {
			n++
		}
	}
	return n
}

// Map1 applies fn to every pixel of a and returns a new grid. Non-finite input
// pixels are treated as no-data and produce Undefined without calling fn.
func Map1(op string, a *Grid, fn func(a float64) float64) (*Grid, error) {
	if err := CheckShapes(op, a); err != nil {
		return nil, err
	}
	s := a.Shape()
	out, _ := NewGrid(s.Rows, s.Cols)
	src, dst := a.Data(), out.Data()
	for i, v := range src {
		if !IsValid(v) {
			dst[i] = Undefined
			continue
		}
		dst[i] = fn(v)
	}
	return out, nil
}

// Map2 applies fn pixel-wise to two co-registered grids.
func Map2(op string, a, b *Grid, fn func(a, b float64) float64) (*Grid, error) {
	if err := CheckShapes(op, a, b); err != nil {
		return nil, err
	}
	s := a.Shape()
	out, _ := NewGrid(s.Rows, s.Cols)
	da, db, dst := a.Data(), b.Data(), out.Data()
	for i := range dst {
		x, y := da[i], db[i]
		if !IsValid(x) || !IsValid(y) {
			dst[i] = Undefined
			continue
		}
		dst[i] = fn(x, y)
	}
	return out, nil
}

// Map3 applies fn pixel-wise to three co-registered grids.
func Map3(op string, a, b, c *Grid, fn func(a, b, c float64) float64) (*Grid, error) {
	if err := CheckShapes(op, a, b, c); err != nil {
		return nil, err
	}
	s := a.Shape()
	out, _ := NewGrid(s.Rows, s.Cols)
	da, db, dc, dst := a.Data(), b.Data(), c.Data(), out.Data()
	for i := range dst {
		x, y, z := da[i], db[i], dc[i]
		if !IsValid(x) || !IsValid(y) || !IsValid(z) {
			dst[i] = Undefined
			continue
		}
		dst[i] = fn(x, y, z)
	}
	return out, nil
}

// MapN applies fn pixel-wise to any number of co-registered grids. The px
// slice passed to fn is reused between calls.
func MapN(op string, grids []*Grid, fn func(px []float64) float64) (*Grid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("%s: no operands: %w", op, ErrConfiguration)
	}
	shaped := make([]Shaped, len(grids))
	for i, g := range grids {
		shaped[i] = g
	}
	if err := CheckShapes(op, shaped...); err != nil {
		return nil, err
	}
	s := grids[0].Shape()
	out, _ := NewGrid(s.Rows, s.Cols)
	dst := out.Data()
	src := make([][]float64, len(grids))
	for i, g := range grids {
		src[i] = g.Data()
	}
	px := make([]float64, len(grids))
pixels:
	for i := range dst {
		for k := range src {
			v := src[k][i]
			if !IsValid(v) {
				dst[i] = Undefined
				continue pixels
			}
			px[k] = v
		}
		dst[i] = fn(px)
	}
	return out, nil
}

// Clip returns a copy of g with defined values limited to [lo, hi].
// Undefined pixels stay Undefined.
func Clip(g *Grid, lo, hi float64) *Grid {
	out := g.Clone()
	data := out.Data()
	for i, v := range data {
		if IsUndefined(v) {
			continue
		}
		data[i] = math.Max(lo, math.Min(hi, v))
	}
	return out
}
