package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/spectral.report/internal/bandio"
	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/raster"
)

// Output kinds recorded in the run history.
const (
	outputGrid       = "grid"
	outputCategories = "categories"
	outputPNG        = "png"
	outputReport     = "report"
)

type artefact struct {
	kind, path string
}

// outputs writes run artefacts into one directory and remembers them so they
// can be attached to the run record. Raster artefacts are named without an
// extension; the output format supplies it.
type outputs struct {
	dir     string
	format  bandio.Format
	written []artefact
}

func newOutputs(dir string, format bandio.Format) (*outputs, error) {
	if err := files.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &outputs{dir: dir, format: format}, nil
}

func (o *outputs) path(name string) string {
	return filepath.Join(o.dir, name)
}

func (o *outputs) grid(base string, g *raster.Grid, p raster.Profile) error {
	path := o.path(base + o.format.Extension())
	if err := bandio.WriteGrid(files, path, g, p); err != nil {
		return err
	}
	o.written = append(o.written, artefact{outputGrid, path})
	return nil
}

func (o *outputs) categories(base string, c *raster.CategoryGrid, p raster.Profile) error {
	path := o.path(base + o.format.Extension())
	if err := bandio.WriteCategories(files, path, c, p); err != nil {
		return err
	}
	o.written = append(o.written, artefact{outputCategories, path})
	return nil
}

// stream writes one artefact produced by fn.
func (o *outputs) stream(kind, name string, fn func(w io.Writer) error) error {
	path := o.path(name)
	f, err := files.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	o.written = append(o.written, artefact{kind, path})
	return nil
}

func (o *outputs) record(store *db.RunStore, runID string) error {
	for _, a := range o.written {
		if err := store.AddOutput(runID, a.kind, a.path); err != nil {
			return fmt.Errorf("record output %s: %w", a.path, err)
		}
	}
	return nil
}
