package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the defined pixels of a grid.
type Summary struct {
	Pixels    int     `json:"pixels"`
	Valid     int     `json:"valid"`
	Undefined int     `json:"undefined"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stddev"`
	Median    float64 `json:"median"`
}

// Summarize computes statistics over the defined pixels of g. When no pixel is
// defined, Min/Max/Mean/StdDev/Median are NaN.
func Summarize(g *Grid) Summary {
	valid := ValidValues(g)
	s := Summary{
		Pixels:    g.Shape().Pixels(),
		Valid:     len(valid),
		Undefined: g.Shape().Pixels() - len(valid),
	}
	if len(valid) == 0 {
		s.Min, s.Max, s.Mean, s.StdDev, s.Median = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	// stat.Quantile needs sorted input; ValidValues returns a fresh slice.
	floats.Argsort(valid, make([]int, len(valid)))
	s.Median = stat.Quantile(0.5, stat.Empirical, valid, nil)
	return s
}

// ValidValues returns a copy of the defined pixel values in row-major order.
func ValidValues(g *Grid) []float64 {
	data := g.Data()
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if IsValid(v) {
			out = append(out, v)
		}
	}
	return out
}

// Histogram bins the defined pixels of g into n equal-width bins spanning
// [lo, hi]. Values outside the range are dropped. It returns the bin edges
// (n+1 values) and the counts.
func Histogram(g *Grid, n int, lo, hi float64) ([]float64, []float64) {
	if n <= 0 || !(hi > lo) {
		return nil, nil
	}
	edges := floats.Span(make([]float64, n+1), lo, hi)
	var in []float64
	for _, v := range ValidValues(g) {
		if v >= lo && v <= hi {
			in = append(in, v)
		}
	}
	counts := make([]float64, n)
	if len(in) == 0 {
		return edges, counts
	}
	floats.Argsort(in, make([]int, len(in)))
	// stat.Histogram excludes the upper edge; nudge it so hi lands in the last bin.
	edges[n] = math.Nextafter(hi, math.Inf(1))
	stat.Histogram(counts, edges, in, nil)
	edges[n] = hi
	return edges, counts
}
