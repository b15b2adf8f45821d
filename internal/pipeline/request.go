package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/classify"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

// Mode selects how each index family is turned into a change mask.
type Mode string

const (
	// ModeIndependent thresholds each epoch separately; a pixel changes when
	// it flips to positive in the later epoch.
	ModeIndependent Mode = "independent"
	// ModeDifference thresholds |after - before| of the index.
	ModeDifference Mode = "difference"
)

// ParseMode resolves a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeIndependent, ModeDifference:
		return m, nil
	}
	return "", fmt.Errorf("unknown change mode %q: %w", s, raster.ErrConfiguration)
}

// Scene is one acquisition: co-registered bands plus the profile of the
// raster they were read from.
type Scene struct {
	Name    string
	Bands   spectral.Bands
	Profile raster.Profile
}

// shape returns the shape shared by every band, or an error when bands
// disagree or none are present.
func (s Scene) shape() (raster.Shape, error) {
	if len(s.Bands) == 0 {
		return raster.Shape{}, fmt.Errorf("scene %q has no bands: %w", s.Name, raster.ErrConfiguration)
	}
	operands := s.operands()
	if err := raster.CheckShapes("scene "+s.Name, operands...); err != nil {
		return raster.Shape{}, err
	}
	return operands[0].Shape(), nil
}

// requireBands reports the first band def reads that the scene lacks.
func (s Scene) requireBands(def spectral.Definition) error {
	for _, b := range def.Bands {
		if s.Bands[b] == nil {
			return fmt.Errorf("index %s needs band %s, missing from scene %q: %w", def.Name, b, s.Name, raster.ErrConfiguration)
		}
	}
	return nil
}

// operands returns the band grids in a stable order.
func (s Scene) operands() []raster.Shaped {
	roles := make([]string, 0, len(s.Bands))
	for b := range s.Bands {
		roles = append(roles, string(b))
	}
	sort.Strings(roles)
	out := make([]raster.Shaped, 0, len(roles))
	for _, r := range roles {
		out = append(out, s.Bands[spectral.Band(r)])
	}
	return out
}

// Family is one index family and its classification threshold.
type Family struct {
	Index     string
	Threshold float64
}

// ChangeRequest describes a two-epoch change analysis.
type ChangeRequest struct {
	Before  Scene
	After   Scene
	FamilyA Family
	FamilyB Family
	// Direction applies to ModeIndependent only; ModeDifference always
	// tests |diff| > threshold.
	Direction classify.Direction
	Rule      change.Rule
	Mode      Mode
}

// Validate checks every configuration value of the request. It never touches
// pixel data beyond comparing shapes.
func (r ChangeRequest) Validate(lib *spectral.Library) error {
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if _, err := change.ParseRule(string(r.Rule)); err != nil {
		return err
	}
	if _, err := classify.ParseDirection(r.Direction.String()); err != nil {
		return err
	}
	for label, f := range map[string]Family{"family A": r.FamilyA, "family B": r.FamilyB} {
		def, err := lib.Lookup(f.Index)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		for _, scene := range []Scene{r.Before, r.After} {
			if err := scene.requireBands(def); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
		}
		if err := classify.ValidateThreshold(f.Threshold); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}

	before, err := r.Before.shape()
	if err != nil {
		return err
	}
	after, err := r.After.shape()
	if err != nil {
		return err
	}
	if before != after {
		return &raster.ShapeError{Op: "change request", Want: before, Got: after, Index: 1}
	}
	return nil
}
