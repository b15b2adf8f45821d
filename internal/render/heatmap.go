// Package render draws change maps and index grids as PNG heat maps and
// assembles the HTML run report.
package render

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

// CategoryColors is the fixed change-map palette indexed by category code.
var CategoryColors = []color.Color{
	change.NoChange: color.RGBA{A: 255},
	change.AOnly:    color.RGBA{G: 255, A: 255},
	change.BOnly:    color.RGBA{B: 255, A: 255},
	change.Both:     color.RGBA{R: 255, G: 255, A: 255},
}

// CategoryHex is CategoryColors in CSS notation for the HTML report.
var CategoryHex = []string{"#000000", "#00ff00", "#0000ff", "#ffff00"}

// NaNColor marks Undefined pixels in index maps.
var NaNColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

var familyNames = map[spectral.Name]string{
	spectral.IndexNDVI:  "Vegetation",
	spectral.IndexGNDVI: "Vegetation",
	spectral.IndexEVI:   "Vegetation",
	spectral.IndexNDWI:  "Water",
	spectral.IndexSWI:   "Water",
	spectral.IndexNDSI:  "Snow",
	spectral.IndexNBR:   "Burn",
	spectral.IndexLST:   "Temperature",
}

// CategoryLabels returns legend labels for the four categories given the
// index of family A and family B.
func CategoryLabels(a, b spectral.Name) []string {
	name := func(n spectral.Name) string {
		if s, ok := familyNames[n]; ok {
			return s
		}
		return strings.ToUpper(string(n))
	}
	la, lb := name(a), name(b)
	if la == lb {
		la, lb = strings.ToUpper(string(a)), strings.ToUpper(string(b))
	}
	return []string{"No Change", la + " Change", lb + " Change", "Both Changes"}
}

// Size is the output image size.
type Size struct {
	Width, Height vg.Length
}

// DefaultSize matches the square figure used for change maps.
var DefaultSize = Size{Width: 8 * vg.Inch, Height: 8 * vg.Inch}

type categoryPalette []color.Color

func (p categoryPalette) Colors() []color.Color { return p }

// gridXYZ adapts a raster to plotter.GridXYZ. Raster row 0 is the northern
// edge, so rows are flipped to draw north up.
type gridXYZ struct {
	rows, cols int
	at         func(r, c int) float64
}

func (g gridXYZ) Dims() (c, r int)   { return g.cols, g.rows }
func (g gridXYZ) Z(c, r int) float64 { return g.at(g.rows-1-r, c) }
func (g gridXYZ) X(c int) float64    { return float64(c) }
func (g gridXYZ) Y(r int) float64    { return float64(r) }

// ChangeMapPNG renders a category grid with the fixed black/green/blue/yellow
// palette and a legend using labels (see CategoryLabels).
func ChangeMapPNG(w io.Writer, cats *raster.CategoryGrid, title string, labels []string, size Size) error {
	if cats == nil {
		return fmt.Errorf("change map: nil grid: %w", raster.ErrConfiguration)
	}
	if len(labels) != len(CategoryColors) {
		return fmt.Errorf("change map: need %d labels, got %d: %w", len(CategoryColors), len(labels), raster.ErrConfiguration)
	}
	s := cats.Shape()
	grid := gridXYZ{rows: s.Rows, cols: s.Cols, at: func(r, c int) float64 { return float64(cats.At(r, c)) }}

	pal := categoryPalette(CategoryColors)
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min = float64(change.NoChange)
	hm.Max = float64(change.Both)
	hm.Underflow = CategoryColors[change.NoChange]
	hm.Overflow = color.White

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.Add(hm)

	for i, th := range plotter.PaletteThumbnailers(pal) {
		p.Legend.Add(labels[i], th)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return writePNG(w, p, size)
}

// IndexPNG renders an index grid with a continuous heat palette stretched to
// the valid value range. Undefined pixels are drawn in NaNColor.
func IndexPNG(w io.Writer, g *raster.Grid, title string, size Size) error {
	if g == nil {
		return fmt.Errorf("index map: nil grid: %w", raster.ErrConfiguration)
	}
	s := g.Shape()
	grid := gridXYZ{rows: s.Rows, cols: s.Cols, at: g.At}

	sum := raster.Summarize(g)
	lo, hi := sum.Min, sum.Max
	if sum.Valid == 0 {
		lo, hi = 0, 1
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	hm := plotter.NewHeatMap(grid, palette.Heat(64, 1))
	hm.Min, hm.Max = lo, hi
	hm.NaN = NaNColor

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Column"
	p.Y.Label.Text = fmt.Sprintf("Row (min %.3g, max %.3g, %d undefined)", sum.Min, sum.Max, sum.Undefined)
	p.Add(hm)

	return writePNG(w, p, size)
}

func writePNG(w io.Writer, p *plot.Plot, size Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	wt, err := p.WriterTo(size.Width, size.Height, "png")
	if err != nil {
		return fmt.Errorf("png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
