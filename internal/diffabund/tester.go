// Package diffabund computes per-genus differential abundance between study
// groups with a t-test and a Kruskal-Wallis test.
package diffabund

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/stats"
)

// TTestKind selects the two-sample t-test flavour.
type TTestKind string

const (
	Welch   TTestKind = "welch"
	Student TTestKind = "student"
)

// ParseTTestKind accepts "welch" or "student".
func ParseTTestKind(s string) (TTestKind, error) {
	switch TTestKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Welch:
		return Welch, nil
	case Student:
		return Student, nil
	default:
		return "", fmt.Errorf("invalid ttest %q (use welch|student)", s)
	}
}

// Options controls grouping, thresholds and parallelism.
type Options struct {
	// CaseGroups are pooled into group A of the fold change and t-test.
	CaseGroups []string
	// ControlGroups are pooled into group B.
	ControlGroups []string
	// Pseudocount is added to both means before the log2 ratio.
	Pseudocount float64
	// Alpha is the adjusted p-value threshold for significance.
	Alpha float64
	// LFCThreshold is the minimum |log2 fold change| for significance.
	LFCThreshold float64
	TTest        TTestKind
	// Workers bounds concurrent per-genus tests; values below 1 mean 1.
	Workers int
}

// DefaultOptions returns the UC+CD versus nonIBD contrast.
func DefaultOptions() Options {
	return Options{
		CaseGroups:    []string{"UC", "CD"},
		ControlGroups: []string{"nonIBD"},
		Pseudocount:   1e-6,
		Alpha:         0.05,
		LFCThreshold:  1,
		TTest:         Welch,
		Workers:       1,
	}
}

// Groups lists every study group the tests look at, cases first.
func (o Options) Groups() []string {
	out := make([]string, 0, len(o.CaseGroups)+len(o.ControlGroups))
	out = append(out, o.CaseGroups...)
	return append(out, o.ControlGroups...)
}

// Analysis holds both variants' results, one row per genus in sorted order.
type Analysis struct {
	TTest   []Result
	Kruskal []Result
}

// Tester runs the per-genus tests.
type Tester struct {
	opt    Options
	logger *zap.Logger
}

// New returns a Tester. A nil logger disables logging.
func New(opt Options, logger *zap.Logger) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{opt: opt, logger: logger}
}

// genusData holds one genus's abundances split by study group.
type genusData struct {
	genus   string
	byGroup map[string][]float64
}

func (g genusData) pooled(groups []string) []float64 {
	var out []float64
	for _, name := range groups {
		out = append(out, g.byGroup[name]...)
	}
	return out
}

// Run evaluates every genus in merged. A failing test only affects the
// p-value of its own genus.
func (t *Tester) Run(ctx context.Context, merged []abundance.MergedRecord) (*Analysis, error) {
	data := t.collect(merged)
	n := len(data)
	res := &Analysis{TTest: make([]Result, n), Kruskal: make([]Result, n)}

	workers := t.opt.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range data {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.TTest[i], res.Kruskal[i] = t.evaluate(data[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("differential tests: %w", err)
	}

	t.finish(res.TTest, true)
	t.finish(res.Kruskal, false)
	t.logger.Info("differential tests complete",
		zap.Int("genera", n),
		zap.Int("t_test_significant", CountSignificant(res.TTest)),
		zap.Int("kruskal_significant", CountSignificant(res.Kruskal)))
	return res, nil
}

func (t *Tester) collect(merged []abundance.MergedRecord) []genusData {
	idx := map[string]int{}
	var data []genusData
	for _, m := range merged {
		i, ok := idx[m.Genus]
		if !ok {
			i = len(data)
			idx[m.Genus] = i
			data = append(data, genusData{genus: m.Genus, byGroup: map[string][]float64{}})
		}
		data[i].byGroup[m.Group] = append(data[i].byGroup[m.Group], m.RelativeAbundance)
	}
	sort.SliceStable(data, func(a, b int) bool { return data[a].genus < data[b].genus })
	return data
}

func (t *Tester) evaluate(g genusData) (tt, kw Result) {
	a := g.pooled(t.opt.CaseGroups)
	b := g.pooled(t.opt.ControlGroups)
	base := Result{
		Genus:          g.genus,
		Log2FoldChange: Log2FoldChange(a, b, t.opt.Pseudocount),
		MeanA:          mean(a),
		MeanB:          mean(b),
		NA:             len(a),
		NB:             len(b),
	}

	tt = base
	var r stats.Result
	var err error
	if t.opt.TTest == Student {
		r, err = stats.StudentTTest(a, b)
	} else {
		r, err = stats.WelchTTest(a, b)
	}
	tt.P, tt.Err = pValue(r, err)
	if err != nil {
		t.logger.Debug("t-test undefined", zap.String("genus", g.genus), zap.Error(err))
	}

	kw = base
	samples := make([][]float64, 0, len(t.opt.Groups()))
	for _, name := range t.opt.Groups() {
		samples = append(samples, g.byGroup[name])
	}
	r, err = stats.KruskalWallis(samples...)
	kw.P, kw.Err = pValue(r, err)
	if err != nil {
		t.logger.Debug("kruskal-wallis undefined", zap.String("genus", g.genus), zap.Error(err))
	}
	return tt, kw
}

func pValue(r stats.Result, err error) (float64, error) {
	if err != nil {
		return math.NaN(), err
	}
	return r.P, nil
}

// finish applies the BH correction across one variant and classifies rows.
func (t *Tester) finish(rows []Result, label bool) {
	p := make([]float64, len(rows))
	for i, r := range rows {
		p[i] = r.P
	}
	adj := stats.BenjaminiHochberg(p)
	for i := range rows {
		rows[i].AdjustedP = adj[i]
		rows[i].Significance = Classify(adj[i], rows[i].Log2FoldChange, t.opt.Alpha, t.opt.LFCThreshold)
		if label && rows[i].Significance == Significant {
			rows[i].Label = rows[i].Genus
		}
	}
}

// Log2FoldChange returns log2((mean(a)+eps)/(mean(b)+eps)). An empty side
// has a NaN mean, which makes the result NaN.
func Log2FoldChange(a, b []float64, eps float64) float64 {
	return math.Log2((mean(a) + eps) / (mean(b) + eps))
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}
