package change

import (
	"fmt"
	"strings"

	"github.com/banshee-data/spectral.report/internal/raster"
)

// Rule names a composition rule.
type Rule string

const (
	RuleDisjoint Rule = "disjoint"
	RuleOrdered  Rule = "ordered"
)

// ParseRule resolves a rule name. Unknown names are configuration errors.
func ParseRule(s string) (Rule, error) {
	switch r := Rule(strings.ToLower(strings.TrimSpace(s))); r {
	case RuleDisjoint, RuleOrdered:
		return r, nil
	}
	return "", fmt.Errorf("unknown composition rule %q: %w", s, raster.ErrConfiguration)
}

// Compose dispatches to ComposeDisjoint or ComposeOrdered. The rule is
// validated before the masks are inspected.
func Compose(rule Rule, a, b *raster.Mask) (*raster.CategoryGrid, error) {
	switch rule {
	case RuleDisjoint:
		return ComposeDisjoint(a, b)
	case RuleOrdered:
		return ComposeOrdered(a, b)
	}
	return nil, fmt.Errorf("unknown composition rule %q: %w", rule, raster.ErrConfiguration)
}

// Tally counts pixels per category.
type Tally struct {
	NoChange int `json:"no_change"`
	AOnly    int `json:"a_only"`
	BOnly    int `json:"b_only"`
	Both     int `json:"both"`
	// Other counts codes outside the closed set. It is always zero for grids
	// produced by this package.
	Other int `json:"other,omitempty"`
}

// Count returns the tally for c.
func (t Tally) Count(c Category) int {
	switch c {
	case NoChange:
		return t.NoChange
	case AOnly:
		return t.AOnly
	case BOnly:
		return t.BOnly
	case Both:
		return t.Both
	}
	return 0
}

// Total returns the number of pixels tallied.
func (t Tally) Total() int {
	return t.NoChange + t.AOnly + t.BOnly + t.Both + t.Other
}

// Changed returns the number of pixels in any positive category.
func (t Tally) Changed() int {
	return t.AOnly + t.BOnly + t.Both
}

// TallyOf counts the categories in g.
func TallyOf(g *raster.CategoryGrid) Tally {
	var t Tally
	if g == nil {
		return t
	}
	for _, c := range g.Data() {
		switch Category(c) {
		case NoChange:
			t.NoChange++
		case AOnly:
			t.AOnly++
		case BOnly:
			t.BOnly++
		case Both:
			t.Both++
		default:
			t.Other++
		}
	}
	return t
}
