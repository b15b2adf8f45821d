// Package change composes per-epoch class masks from two index families into
// a single categorical change map.
//
// Two composition rules are provided and deliberately kept apart:
//   - Disjoint partitions pixels into A-only, B-only and both from the
//     per-family change masks.
//   - Ordered writes 1 for A, then 2 for B, then 3 for A and B, each write
//     overwriting the previous one.
//
// Which rule fits an analysis is the caller's decision.
package change

import (
	"fmt"

	"github.com/banshee-data/spectral.report/internal/classify"
	"github.com/banshee-data/spectral.report/internal/raster"
)

// Category is a change-map code. The values are stable and part of the output
// contract.
type Category uint8

const (
	NoChange Category = 0
	AOnly    Category = 1
	BOnly    Category = 2
	Both     Category = 3
)

// Categories lists every code in ascending order.
var Categories = []Category{NoChange, AOnly, BOnly, Both}

func (c Category) String() string {
	switch c {
	case NoChange:
		return "no change"
	case AOnly:
		return "A only"
	case BOnly:
		return "B only"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// FamilyChange marks pixels whose classification flipped between epochs and
// that are positive in the later epoch: XOR(before, after) AND after.
// A condition that disappears is not a change under this rule.
func FamilyChange(e classify.EpochMasks) (*raster.Mask, error) {
	if e.Before == nil || e.After == nil {
		return nil, fmt.Errorf("family change: missing epoch mask: %w", raster.ErrConfiguration)
	}
	flipped, err := raster.Xor(e.Before, e.After)
	if err != nil {
		return nil, err
	}
	return raster.And(flipped, e.After)
}

// ComposeDisjoint partitions pixels into NoChange, AOnly (A and not B),
// BOnly (B and not A) and Both (A and B). The three positive sets are
// disjoint by construction.
func ComposeDisjoint(a, b *raster.Mask) (*raster.CategoryGrid, error) {
	if err := raster.CheckShapes("compose disjoint", a, b); err != nil {
		return nil, err
	}
	aOnly, _ := raster.AndNot(a, b)
	bOnly, _ := raster.AndNot(b, a)
	both, _ := raster.And(a, b)

	s := a.Shape()
	out, err := raster.NewCategoryGrid(s.Rows, s.Cols)
	if err != nil {
		return nil, err
	}
	for _, step := range []struct {
		m    *raster.Mask
		code Category
	}{
		{aOnly, AOnly},
		{bOnly, BOnly},
		{both, Both},
	} {
		if err := out.Fill(step.m, uint8(step.code)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ComposeOrdered assigns codes by overwriting in a fixed order: 1 wherever A,
// then 2 wherever B, then 3 wherever both. Later writes win.
func ComposeOrdered(a, b *raster.Mask) (*raster.CategoryGrid, error) {
	if err := raster.CheckShapes("compose ordered", a, b); err != nil {
		return nil, err
	}
	both, _ := raster.And(a, b)

	s := a.Shape()
	out, err := raster.NewCategoryGrid(s.Rows, s.Cols)
	if err != nil {
		return nil, err
	}
	if err := out.Fill(a, uint8(AOnly)); err != nil {
		return nil, err
	}
	if err := out.Fill(b, uint8(BOnly)); err != nil {
		return nil, err
	}
	if err := out.Fill(both, uint8(Both)); err != nil {
		return nil, err
	}
	return out, nil
}

// DetectEpochChange applies FamilyChange to both families and composes the
// results with the disjoint rule.
func DetectEpochChange(famA, famB classify.EpochMasks) (*raster.CategoryGrid, error) {
	a, err := FamilyChange(famA)
	if err != nil {
		return nil, fmt.Errorf("family A: %w", err)
	}
	b, err := FamilyChange(famB)
	if err != nil {
		return nil, fmt.Errorf("family B: %w", err)
	}
	return ComposeDisjoint(a, b)
}
