// Package pipeline wires the index library, the classifiers and the change
// composer into the two analyses the CLI exposes: per-scene index maps and
// two-epoch change maps.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/classify"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

// Runner evaluates index formulas with bounded parallelism. Every stage is a
// pure function of its inputs, so a Runner may be shared between goroutines.
type Runner struct {
	library *spectral.Library
	workers int
}

// NewRunner returns a Runner using lib (spectral.Default when nil) and at most
// workers concurrent index evaluations (GOMAXPROCS when workers <= 0).
func NewRunner(lib *spectral.Library, workers int) *Runner {
	if lib == nil {
		lib = spectral.Default
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{library: lib, workers: workers}
}

// Library returns the index library used by the runner.
func (r *Runner) Library() *spectral.Library { return r.library }

// IndexResult is one computed index map for a single scene.
type IndexResult struct {
	Name    spectral.Name
	Grid    *raster.Grid
	Profile raster.Profile
	Summary raster.Summary
}

// RunIndex computes the named indices for scene. Names are validated before
// any pixel is computed; results are returned in request order.
func (r *Runner) RunIndex(ctx context.Context, scene Scene, names ...string) ([]IndexResult, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no index requested: %w", raster.ErrConfiguration)
	}
	defs := make([]spectral.Definition, len(names))
	for i, n := range names {
		def, err := r.library.Lookup(n)
		if err != nil {
			return nil, err
		}
		defs[i] = def
	}
	if _, err := scene.shape(); err != nil {
		return nil, err
	}
	defer monitoring.Stage("index " + scene.Name)()

	results := make([]IndexResult, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			grid, err := r.library.Compute(string(def.Name), scene.Bands)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Name, err)
			}
			results[i] = IndexResult{
				Name:    def.Name,
				Grid:    grid,
				Profile: scene.Profile.ForOutput(raster.Float32, 1),
				Summary: raster.Summarize(grid),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FamilyResult holds the intermediate products of one index family.
type FamilyResult struct {
	Index     spectral.Name
	Threshold float64
	Before    *raster.Grid
	After     *raster.Grid
	// Masks is set in ModeIndependent.
	Masks classify.EpochMasks
	// Diff is after - before, set in ModeDifference.
	Diff *raster.Grid
	// Changed is the family's change mask fed to the composer.
	Changed *raster.Mask
}

// ChangeResult is the outcome of a two-epoch change analysis.
type ChangeResult struct {
	Mode       Mode
	Rule       change.Rule
	Direction  classify.Direction
	FamilyA    FamilyResult
	FamilyB    FamilyResult
	Categories *raster.CategoryGrid
	Tally      change.Tally
	// Profile describes Categories: the before-scene profile with a single
	// uint8 band.
	Profile raster.Profile
}

type epochKey struct {
	index spectral.Name
	after bool
}

// RunChange runs the full change analysis described by req. The request is
// validated before any index is computed and nothing is returned on failure.
func (r *Runner) RunChange(ctx context.Context, req ChangeRequest) (*ChangeResult, error) {
	if err := req.Validate(r.library); err != nil {
		return nil, err
	}
	defA, _ := r.library.Lookup(req.FamilyA.Index)
	defB, _ := r.library.Lookup(req.FamilyB.Index)
	defer monitoring.Stage(fmt.Sprintf("change %s/%s %s", defA.Name, defB.Name, req.Mode))()

	grids, err := r.computeEpochs(ctx, req, defA.Name, defB.Name)
	if err != nil {
		return nil, err
	}

	famA, err := classifyFamily(req, defA.Name, req.FamilyA.Threshold, grids)
	if err != nil {
		return nil, fmt.Errorf("family A: %w", err)
	}
	famB, err := classifyFamily(req, defB.Name, req.FamilyB.Threshold, grids)
	if err != nil {
		return nil, fmt.Errorf("family B: %w", err)
	}

	cats, err := change.Compose(req.Rule, famA.Changed, famB.Changed)
	if err != nil {
		return nil, err
	}
	tally := change.TallyOf(cats)
	monitoring.Logf("[change] %d/%d pixels changed (a=%d b=%d both=%d)",
		tally.Changed(), tally.Total(), tally.AOnly, tally.BOnly, tally.Both)

	return &ChangeResult{
		Mode:       req.Mode,
		Rule:       req.Rule,
		Direction:  req.Direction,
		FamilyA:    famA,
		FamilyB:    famB,
		Categories: cats,
		Tally:      tally,
		Profile:    req.Before.Profile.ForOutput(raster.Uint8, 1),
	}, nil
}

// computeEpochs evaluates each distinct (index, epoch) pair once.
func (r *Runner) computeEpochs(ctx context.Context, req ChangeRequest, a, b spectral.Name) (map[epochKey]*raster.Grid, error) {
	keys := []epochKey{{a, false}, {a, true}}
	if b != a {
		keys = append(keys, epochKey{b, false}, epochKey{b, true})
	}

	var mu sync.Mutex
	grids := make(map[epochKey]*raster.Grid, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, k := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scene := req.Before
			if k.after {
				scene = req.After
			}
			grid, err := r.library.Compute(string(k.index), scene.Bands)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", k.index, scene.Name, err)
			}
			mu.Lock()
			grids[k] = grid
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grids, nil
}

func classifyFamily(req ChangeRequest, name spectral.Name, t float64, grids map[epochKey]*raster.Grid) (FamilyResult, error) {
	fr := FamilyResult{
		Index:     name,
		Threshold: t,
		Before:    grids[epochKey{name, false}],
		After:     grids[epochKey{name, true}],
	}
	switch req.Mode {
	case ModeDifference:
		res, err := classify.DifferenceMagnitude(fr.Before, fr.After, t)
		if err != nil {
			return FamilyResult{}, err
		}
		fr.Diff = res.Diff
		fr.Changed = res.Changed
	default:
		masks, err := classify.IndependentThreshold(fr.Before, fr.After, t, req.Direction)
		if err != nil {
			return FamilyResult{}, err
		}
		changed, err := change.FamilyChange(masks)
		if err != nil {
			return FamilyResult{}, err
		}
		fr.Masks = masks
		fr.Changed = changed
	}
	return fr, nil
}
