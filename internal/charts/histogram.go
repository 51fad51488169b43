package charts

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
)

// Histogram plots the finite values of vals in the given number of bins.
func Histogram(title, xlabel string, vals []float64, bins int) (*plot.Plot, error) {
	vs := finite(vals)
	if len(vs) == 0 {
		return nil, ErrNoData
	}
	h, err := plotter.NewHist(plotter.Values(vs), bins)
	if err != nil {
		return nil, err
	}
	h.FillColor = colorPositive
	h.LineStyle.Width = 0

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Frequency"
	p.Add(h)
	return p, nil
}

// Log1p10 returns log10(v+1) for every value.
func Log1p10(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Log10(v + 1)
	}
	return out
}
