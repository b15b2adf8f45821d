package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/raster"
)

// AssetsHost is where the report loads the echarts scripts from. Offline
// deployments can point it at a local mirror.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// HistogramBins is the number of bins used for index histograms.
const HistogramBins = 20

// IndexSeries is one index grid to summarise in the report.
type IndexSeries struct {
	Label string
	Grid  *raster.Grid
}

// Report is the content of the HTML run report.
type Report struct {
	Title    string
	Subtitle string
	// Labels are the category legend labels (see CategoryLabels). Nil means
	// no category chart.
	Labels  []string
	Tally   change.Tally
	Indices []IndexSeries
}

// WriteReport renders r as a standalone HTML page: a category bar chart
// followed by one histogram per index.
func WriteReport(w io.Writer, r Report) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)

	if r.Labels != nil {
		if len(r.Labels) != len(change.Categories) {
			return fmt.Errorf("report: need %d labels, got %d: %w", len(change.Categories), len(r.Labels), raster.ErrConfiguration)
		}
		page.AddCharts(categoryBar(r))
	}
	for _, s := range r.Indices {
		if s.Grid == nil {
			return fmt.Errorf("report: %s has no grid: %w", s.Label, raster.ErrConfiguration)
		}
		page.AddCharts(indexHistogram(s))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func categoryBar(r Report) *charts.Bar {
	y := make([]opts.BarData, len(change.Categories))
	for i, c := range change.Categories {
		y[i] = opts.BarData{
			Name:      r.Labels[i],
			Value:     r.Tally.Count(c),
			ItemStyle: &opts.ItemStyle{Color: CategoryHex[c], BorderColor: "#444444", BorderWidth: 1},
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: r.Title, Subtitle: fmt.Sprintf("%s changed=%d of %d", r.Subtitle, r.Tally.Changed(), r.Tally.Total())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Pixels"}),
	)
	bar.SetXAxis(r.Labels).
		AddSeries("pixels", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func indexHistogram(s IndexSeries) *charts.Bar {
	sum := raster.Summarize(s.Grid)
	lo, hi := sum.Min, sum.Max
	if sum.Valid == 0 {
		lo, hi = 0, 1
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges, counts := raster.Histogram(s.Grid, HistogramBins, lo, hi)

	x := make([]string, len(counts))
	y := make([]opts.BarData, len(counts))
	for i := range counts {
		x[i] = fmt.Sprintf("%.3g", (edges[i]+edges[i+1])/2)
		y[i] = opts.BarData{Value: counts[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    s.Label,
			Subtitle: fmt.Sprintf("valid=%d undefined=%d mean=%.4f median=%.4f", sum.Valid, sum.Undefined, sum.Mean, sum.Median),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Pixels"}),
	)
	bar.SetXAxis(x).AddSeries(s.Label, y, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d94701"}))
	return bar
}
