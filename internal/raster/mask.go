package raster

import "fmt"

// Mask is a boolean class grid: true where a pixel belongs to the class.
type Mask struct {
	rows, cols int
	bits       []bool
}

// NewMask allocates an all-false mask.
func NewMask(rows, cols int) (*Mask, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("new mask %dx%d: %w", rows, cols, ErrEmptyGrid)
	}
	return &Mask{rows: rows, cols: cols, bits: make([]bool, rows*cols)}, nil
}

// MaskFromRows builds a mask from a rectangular [][]bool.
func MaskFromRows(rows [][]bool) (*Mask, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("mask from rows: %w", ErrEmptyGrid)
	}
	m, _ := NewMask(len(rows), len(rows[0]))
	for r, row := range rows {
		if len(row) != m.cols {
			return nil, fmt.Errorf("mask from rows: row %d has %d columns, want %d: %w", r, len(row), m.cols, ErrShapeMismatch)
		}
		copy(m.bits[r*m.cols:], row)
	}
	return m, nil
}

// Shape returns the mask dimensions.
func (m *Mask) Shape() Shape {
	return Shape{Rows: m.rows, Cols: m.cols}
}

// At reports the value at (r, c).
func (m *Mask) At(r, c int) bool {
	return m.bits[r*m.cols+c]
}

// Set writes v at (r, c).
func (m *Mask) Set(r, c int, v bool) {
	m.bits[r*m.cols+c] = v
}

// Data returns the row-major backing slice.
func (m *Mask) Data() []bool {
	return m.bits
}

// Count returns the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Rows returns a copy of the mask as [][]bool.
func (m *Mask) Rows() [][]bool {
	out := make([][]bool, m.rows)
	for r := range out {
		out[r] = make([]bool, m.cols)
		copy(out[r], m.bits[r*m.cols:(r+1)*m.cols])
	}
	return out
}

// And returns a AND b.
func And(a, b *Mask) (*Mask, error) {
	return combine("and", a, b, func(x, y bool) bool { return x && y })
}

// AndNot returns a AND NOT b.
func AndNot(a, b *Mask) (*Mask, error) {
	return combine("and-not", a, b, func(x, y bool) bool { return x && !y })
}

// Or returns a OR b.
func Or(a, b *Mask) (*Mask, error) {
	return combine("or", a, b, func(x, y bool) bool { return x || y })
}

// Xor returns a XOR b.
func Xor(a, b *Mask) (*Mask, error) {
	return combine("xor", a, b, func(x, y bool) bool { return x != y })
}

func combine(op string, a, b *Mask, fn func(x, y bool) bool) (*Mask, error) {
	if err := CheckShapes(op, a, b); err != nil {
		return nil, err
	}
	out, _ := NewMask(a.rows, a.cols)
	for i := range out.bits {
		out.bits[i] = fn(a.bits[i], b.bits[i])
	}
	return out, nil
}
