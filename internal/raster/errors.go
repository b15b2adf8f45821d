package raster

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; wrap with
// fmt.Errorf("ctx: %w", ErrX) when extra context is needed.
var (
	// ErrShapeMismatch is returned when grids passed to the same operation
	// do not share identical dimensions.
	ErrShapeMismatch = errors.New("raster: shape mismatch")

	// ErrConfiguration is returned for invalid call-time parameters such as
	// a non-finite threshold or an unknown rule, index or direction name.
	// It is always raised before any pixel is computed.
	ErrConfiguration = errors.New("raster: invalid configuration")

	// ErrEmptyGrid is returned when a grid with zero rows or columns is
	// requested.
	ErrEmptyGrid = errors.New("raster: empty grid")
)

// Shape is a rows x cols pair.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Pixels returns rows*cols.
func (s Shape) Pixels() int {
	return s.Rows * s.Cols
}

// ShapeError reports the first operand whose shape differs from the
// reference operand. It unwraps to ErrShapeMismatch.
type ShapeError struct {
	Op    string
	Want  Shape
	Got   Shape
	Index int // position of the offending operand
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: operand %d is %s, want %s: %v", e.Op, e.Index, e.Got, e.Want, ErrShapeMismatch)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Shaped is implemented by Grid, Mask and CategoryGrid.
type Shaped interface {
	Shape() Shape
}

// CheckShapes verifies that every operand has the shape of the first one.
// A nil operand is reported as a configuration error.
func CheckShapes(op string, operands ...Shaped) error {
	if len(operands) == 0 {
		return nil
	}
	for i, o := range operands {
		if isNil(o) {
			return fmt.Errorf("%s: operand %d is nil: %w", op, i, ErrConfiguration)
		}
	}
	want := operands[0].Shape()
	for i := 1; i < len(operands); i++ {
		if got := operands[i].Shape(); got != want {
			return &ShapeError{Op: op, Want: want, Got: got, Index: i}
		}
	}
	return nil
}

func isNil(s Shaped) bool {
	switch v := s.(type) {
	case nil:
		return true
	case *Grid:
		return v == nil
	case *Mask:
		return v == nil
	case *CategoryGrid:
		return v == nil
	}
	return false
}
