package charts

import (
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/genusdiff/internal/diffabund"
)

// minAdjustedP floors adjusted p-values of zero so -log10 stays finite.
const minAdjustedP = 1e-300

// VolcanoOptions configures a volcano plot.
type VolcanoOptions struct {
	Title        string
	Alpha        float64
	LFCThreshold float64
	// Labels annotates points that carry a Label.
	Labels bool
}

// VolcanoPoint is one genus on a volcano plot.
type VolcanoPoint struct {
	Genus       string
	X, Y        float64
	Significant bool
	Label       string
}

// VolcanoPoints maps results to (log2 FC, -log10 adjusted p). Rows with an
// undefined fold change or adjusted p-value cannot be placed and are skipped.
func VolcanoPoints(rows []diffabund.Result) []VolcanoPoint {
	out := make([]VolcanoPoint, 0, len(rows))
	for _, r := range rows {
		if math.IsNaN(r.Log2FoldChange) || math.IsInf(r.Log2FoldChange, 0) || math.IsNaN(r.AdjustedP) {
			continue
		}
		out = append(out, VolcanoPoint{
			Genus:       r.Genus,
			X:           r.Log2FoldChange,
			Y:           -math.Log10(math.Max(r.AdjustedP, minAdjustedP)),
			Significant: r.Significance == diffabund.Significant,
			Label:       r.Label,
		})
	}
	return out
}

// Volcano plots fold change against significance with dashed threshold lines.
func Volcano(rows []diffabund.Result, opt VolcanoOptions) (*plot.Plot, error) {
	pts := VolcanoPoints(rows)
	if len(pts) == 0 {
		return nil, ErrNoData
	}
	var sig, ns plotter.XYs
	xmin, xmax := -opt.LFCThreshold, opt.LFCThreshold
	ymax := -math.Log10(opt.Alpha)
	for _, pt := range pts {
		if pt.Significant {
			sig = append(sig, plotter.XY{X: pt.X, Y: pt.Y})
		} else {
			ns = append(ns, plotter.XY{X: pt.X, Y: pt.Y})
		}
		xmin, xmax = math.Min(xmin, pt.X), math.Max(xmax, pt.X)
		ymax = math.Max(ymax, pt.Y)
	}

	p := plot.New()
	p.Title.Text = opt.Title
	p.X.Label.Text = "log2 fold change"
	p.Y.Label.Text = "-log10 adjusted p-value"
	p.Legend.Top = true

	for _, layer := range []struct {
		xys   plotter.XYs
		name  string
		style draw.GlyphStyle
	}{
		{ns, string(diffabund.NotSignificant), draw.GlyphStyle{Color: colorNotSignificant, Radius: vg.Points(2), Shape: draw.CircleGlyph{}}},
		{sig, string(diffabund.Significant), draw.GlyphStyle{Color: colorSignificant, Radius: vg.Points(2.5), Shape: draw.CircleGlyph{}}},
	} {
		if len(layer.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(layer.xys)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle = layer.style
		p.Add(s)
		p.Legend.Add(layer.name, s)
	}

	pad := 0.05 * (xmax - xmin)
	for _, seg := range []plotter.XYs{
		{{X: -opt.LFCThreshold, Y: 0}, {X: -opt.LFCThreshold, Y: ymax}},
		{{X: opt.LFCThreshold, Y: 0}, {X: opt.LFCThreshold, Y: ymax}},
		{{X: xmin - pad, Y: -math.Log10(opt.Alpha)}, {X: xmax + pad, Y: -math.Log10(opt.Alpha)}},
	} {
		l, err := plotter.NewLine(seg)
		if err != nil {
			return nil, err
		}
		l.LineStyle = dashed(colorThreshold)
		p.Add(l)
	}

	if opt.Labels {
		var xys plotter.XYs
		var labels []string
		// most significant points claim label space first
		sorted := append([]VolcanoPoint(nil), pts...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })
		for _, pt := range sorted {
			if pt.Label == "" {
				continue
			}
			xys = append(xys, plotter.XY{X: pt.X, Y: pt.Y})
			labels = append(labels, pt.Label)
		}
		if len(xys) > 0 {
			p.Add(newLabelLayer(xys, labels))
		}
	}
	return p, nil
}
