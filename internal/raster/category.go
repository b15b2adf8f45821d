package raster

import "fmt"

// CategoryGrid is a small-integer coded grid. The meaning of each code is
// owned by the package that produces it (see internal/change).
type CategoryGrid struct {
	rows, cols int
	codes      []uint8
}

// NewCategoryGrid allocates a grid with every cell set to 0.
func NewCategoryGrid(rows, cols int) (*CategoryGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("new category grid %dx%d: %w", rows, cols, ErrEmptyGrid)
	}
	return &CategoryGrid{rows: rows, cols: cols, codes: make([]uint8, rows*cols)}, nil
}

// CategoryGridFromSlice wraps a row-major copy of codes.
func CategoryGridFromSlice(rows, cols int, codes []uint8) (*CategoryGrid, error) {
	g, err := NewCategoryGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	if len(codes) != rows*cols {
		return nil, fmt.Errorf("category grid from slice: %d codes for %dx%d: %w", len(codes), rows, cols, ErrShapeMismatch)
	}
	copy(g.codes, codes)
	return g, nil
}

// Shape returns the grid dimensions.
func (g *CategoryGrid) Shape() Shape {
	return Shape{Rows: g.rows, Cols: g.cols}
}

// At returns the code at (r, c).
func (g *CategoryGrid) At(r, c int) uint8 {
	return g.codes[r*g.cols+c]
}

// Set writes code at (r, c).
func (g *CategoryGrid) Set(r, c int, code uint8) {
	g.codes[r*g.cols+c] = code
}

// Data returns the row-major backing slice.
func (g *CategoryGrid) Data() []uint8 {
	return g.codes
}

// Fill writes code into every cell where m is true.
func (g *CategoryGrid) Fill(m *Mask, code uint8) error {
	if err := CheckShapes("fill", g, m); err != nil {
		return err
	}
	for i, b := range m.bits {
		if b {
			g.codes[i] = code
		}
	}
	return nil
}

// Rows returns a copy of the grid as [][]uint8.
func (g *CategoryGrid) Rows() [][]uint8 {
	out := make([][]uint8, g.rows)
	for r := range out {
		out[r] = make([]uint8, g.cols)
		copy(out[r], g.codes[r*g.cols:(r+1)*g.cols])
	}
	return out
}

// Histogram counts cells per code.
func (g *CategoryGrid) Histogram() map[uint8]int {
	h := make(map[uint8]int)
	for _, c := range g.codes {
		h[c]++
	}
	return h
}

// ToGrid converts codes to float64 values, e.g. for rendering or for writing
// through a float-only sink.
func (g *CategoryGrid) ToGrid() *Grid {
	out, _ := NewGrid(g.rows, g.cols)
	data := out.Data()
	for i, c := range g.codes {
		data[i] = float64(c)
	}
	return out
}
