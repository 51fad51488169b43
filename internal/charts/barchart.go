package charts

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/genusdiff/internal/diffabund"
)

// FoldChangeBars draws horizontal bars of each row's log2 fold change,
// colored by sign and annotated with the value. Rows are drawn top to bottom
// in the order given; rows without a finite fold change are skipped.
func FoldChangeBars(title string, rows []diffabund.Result) (*plot.Plot, error) {
	var kept []diffabund.Result
	for _, r := range rows {
		if !math.IsNaN(r.Log2FoldChange) && !math.IsInf(r.Log2FoldChange, 0) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, ErrNoData
	}
	n := len(kept)
	// bar i sits at y=i, which is drawn bottom up
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	names := make([]string, n)
	var lbl plotter.XYLabels
	for i, r := range kept {
		y := n - 1 - i
		names[y] = r.Genus
		if r.Log2FoldChange >= 0 {
			pos[y] = r.Log2FoldChange
		} else {
			neg[y] = r.Log2FoldChange
		}
		lbl.XYs = append(lbl.XYs, plotter.XY{X: r.Log2FoldChange, Y: float64(y)})
		lbl.Labels = append(lbl.Labels, valueLabel(r.Log2FoldChange))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "log2 fold change"
	for _, s := range []struct {
		vals plotter.Values
		clr  color.Color
	}{{pos, colorPositive}, {neg, colorNegative}} {
		b, err := plotter.NewBarChart(s.vals, vg.Points(12))
		if err != nil {
			return nil, err
		}
		b.Horizontal = true
		b.LineStyle.Width = 0
		b.Color = s.clr
		p.Add(b)
	}

	labels, err := plotter.NewLabels(lbl)
	if err != nil {
		return nil, err
	}
	for i, xy := range lbl.XYs {
		labels.TextStyle[i].Font.Size = vg.Points(7)
		labels.TextStyle[i].YAlign = draw.YCenter
		if xy.X < 0 {
			labels.TextStyle[i].XAlign = draw.XRight
		}
	}
	p.Add(labels)
	p.NominalY(names...)
	return p, nil
}

func valueLabel(v float64) string {
	if v < 0 {
		return fmt.Sprintf("%.2f ", v)
	}
	return fmt.Sprintf(" %.2f", v)
}
