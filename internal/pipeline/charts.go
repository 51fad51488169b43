package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/charts"
	"github.com/KaramelBytes/genusdiff/internal/diffabund"
	"github.com/KaramelBytes/genusdiff/internal/run"
)

// Chart base names; the extension follows plot_format.
const (
	ChartHistogram      = "histogram_counts"
	ChartHistogramLog   = "histogram_log10_counts"
	ChartVolcanoTTest   = "volcano_t_test"
	ChartVolcanoKruskal = "volcano_kruskal"
	ChartBoxplot        = "boxplot_top10_kruskal"
	ChartBars           = "barchart_top10_lfc"
)

// renderCharts draws every chart. A chart with nothing to draw is skipped
// with a warning; any other failure aborts the run.
func (p *Pipeline) renderCharts(ctx context.Context, m *run.Manifest, clean []abundance.CountRecord, merged []abundance.MergedRecord, res *Result) error {
	cfg := p.cfg
	opt, err := Options(cfg)
	if err != nil {
		return err
	}
	raw := counts(clean)

	type job struct {
		name  string
		build func() (*plot.Plot, error)
	}
	jobs := []job{
		{ChartHistogram, func() (*plot.Plot, error) {
			return charts.Histogram("Distribution of counts", "Count", raw, cfg.HistogramBins)
		}},
		{ChartHistogramLog, func() (*plot.Plot, error) {
			return charts.Histogram("Distribution of log10(Count+1)", "log10(Count+1)", charts.Log1p10(raw), cfg.HistogramBins)
		}},
		{ChartVolcanoTTest, func() (*plot.Plot, error) {
			return charts.Volcano(res.Analysis.TTest, charts.VolcanoOptions{
				Title:        fmt.Sprintf("Volcano plot (%s t-test)", opt.TTest),
				Alpha:        opt.Alpha,
				LFCThreshold: opt.LFCThreshold,
				Labels:       true,
			})
		}},
		{ChartVolcanoKruskal, func() (*plot.Plot, error) {
			return charts.Volcano(res.Analysis.Kruskal, charts.VolcanoOptions{
				Title:        "Volcano plot (Kruskal-Wallis)",
				Alpha:        opt.Alpha,
				LFCThreshold: opt.LFCThreshold,
			})
		}},
		{ChartBars, func() (*plot.Plot, error) {
			return charts.FoldChangeBars(fmt.Sprintf("Top %d genera by log2 fold change", cfg.TopN), res.Bars)
		}},
	}
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := p.chartPath(j.name)
		pl, err := j.build()
		if err == nil {
			err = charts.Save(pl, charts.DefaultWidth, charts.DefaultHeight, path)
		}
		if err := p.chartDone(m, path, err); err != nil {
			return err
		}
	}

	genera := TopGenera(res.TopKruskal)
	path := p.chartPath(ChartBoxplot)
	cols := int(math.Ceil(math.Sqrt(float64(len(genera)))))
	grid, err := charts.FacetGrid(charts.Facets(merged, genera, opt.Groups()), cols)
	if err == nil {
		rows := len(grid)
		err = charts.SaveGrid(grid, vg.Length(cols)*3*vg.Inch, vg.Length(rows)*2.5*vg.Inch, path)
	}
	return p.chartDone(m, path, err)
}

func (p *Pipeline) chartPath(name string) string {
	return filepath.Join(p.cfg.OutputDir, name+"."+p.cfg.PlotFormat)
}

func (p *Pipeline) chartDone(m *run.Manifest, path string, err error) error {
	switch {
	case errors.Is(err, charts.ErrNoData):
		p.logger.Warn("chart skipped, nothing to plot", zap.String("path", path))
		p.printf("⚠ Warning: skipped %s (nothing to plot)\n", path)
		return nil
	case err != nil:
		return fmt.Errorf("chart %s: %w", filepath.Base(path), err)
	}
	m.AddOutput(path, 0)
	p.logger.Debug("wrote chart", zap.String("path", path))
	p.printf("✓ Wrote %s\n", path)
	return nil
}

// TopGenera lists the genera of rows in order.
func TopGenera(rows []diffabund.Result) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Genus
	}
	return out
}
