// Package pipeline runs the genus differential-abundance analysis end to end:
// load, reshape, clean, normalize, join, test, report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/config"
	"github.com/KaramelBytes/genusdiff/internal/dataset"
	"github.com/KaramelBytes/genusdiff/internal/diffabund"
	"github.com/KaramelBytes/genusdiff/internal/report"
	"github.com/KaramelBytes/genusdiff/internal/run"
	"github.com/KaramelBytes/genusdiff/internal/taxa"
	"github.com/KaramelBytes/genusdiff/internal/utils"
)

// ErrNoData means no rows survived the join and group filter.
var ErrNoData = errors.New("no samples left after joining counts and metadata")

// Output file names, written to the output directory.
const (
	FileLongFormat        = "genera_counts_long_format.tsv"
	FileGeneraOnly        = "genera_only_counts.tsv"
	FileMetadataOptimized = "metadata_optimized.tsv"
	FileLongClean         = "long_format_data_clean.tsv"
	FileMetadataClean     = "optimized_metadata_clean.tsv"
	FileNormalized        = "long_format_data_clean_normalized.tsv"
	FileTopTTest          = "top_10_t_test_results.tsv"
	FileTopKruskal        = "top_10_kruskal_results.tsv"
	FileSummary           = "summary.md"
)

// Pipeline holds the configuration and collaborators for one run.
type Pipeline struct {
	cfg      *config.Global
	logger   *zap.Logger
	progress io.Writer
}

// New returns a Pipeline. A nil logger disables logging.
func New(cfg *config.Global, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger, progress: io.Discard}
}

// SetProgress sets where the user-facing "✓ Wrote" lines go.
func (p *Pipeline) SetProgress(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	p.progress = w
}

// Result is everything a run produced.
type Result struct {
	Manifest   *run.Manifest
	Analysis   *diffabund.Analysis
	Summary    *report.Summary
	TopTTest   []diffabund.Result
	TopKruskal []diffabund.Result
	// Bars is the top table ordered by fold change, as drawn in the bar chart.
	Bars []diffabund.Result
}

// Options converts the configuration into tester options.
func Options(cfg *config.Global) (diffabund.Options, error) {
	kind, err := diffabund.ParseTTestKind(cfg.TTest)
	if err != nil {
		return diffabund.Options{}, err
	}
	return diffabund.Options{
		CaseGroups:    cfg.CaseGroups,
		ControlGroups: cfg.ControlGroups,
		Pseudocount:   cfg.Pseudocount,
		Alpha:         cfg.Alpha,
		LFCThreshold:  cfg.LFCThreshold,
		TTest:         kind,
		Workers:       cfg.Workers,
	}, nil
}

// Run executes every stage in order and writes all outputs. run.json is
// written even when a stage fails.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	cfg := p.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	opt, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := abundance.ParseZeroTotalPolicy(cfg.ZeroTotal)
	if err != nil {
		return nil, err
	}

	m := run.New(cfg.OutputDir)
	settings := map[string]string{}
	for _, k := range config.Keys() {
		settings[k], _ = cfg.Get(k)
	}
	m.SetAll(settings)
	res = &Result{Manifest: m}
	defer func() {
		m.Finish(err)
		if serr := m.Save(); serr != nil && err == nil {
			err = fmt.Errorf("write manifest: %w", serr)
		}
	}()
	p.logger.Info("run started", zap.String("run_id", m.ID), zap.String("output_dir", cfg.OutputDir))

	// Load
	countsTbl, err := dataset.Load(cfg.CountsPath())
	if err != nil {
		return res, fmt.Errorf("read counts: %w", err)
	}
	m.AddInput(cfg.CountsPath(), len(countsTbl.Rows))
	metaTbl, err := dataset.Load(cfg.MetadataPath())
	if err != nil {
		return res, fmt.Errorf("read metadata: %w", err)
	}
	m.AddInput(cfg.MetadataPath(), len(metaTbl.Rows))
	p.logger.Info("inputs loaded",
		zap.Int("count_rows", len(countsTbl.Rows)),
		zap.Int("count_columns", len(countsTbl.Header)),
		zap.Int("metadata_rows", len(metaTbl.Rows)))

	// Column names
	renamed, collisions := abundance.RenameGenera(countsTbl)
	p.logCollisions(countsTbl.Name, collisions)
	if err := p.writeGeneraOnly(m, renamed); err != nil {
		return res, err
	}

	// Reshape
	long, err := abundance.Reshape(renamed, cfg.SampleColumn)
	if err != nil {
		return res, fmt.Errorf("reshape counts: %w", err)
	}
	if cfg.MergeDuplicateGenera && len(collisions) > 0 {
		before := len(long)
		long = abundance.MergeDuplicates(long)
		p.logger.Debug("merged duplicate genera", zap.Int("before", before), zap.Int("after", len(long)))
	}
	if err := p.writeTable(m, abundance.CountsTable(FileLongFormat, long), FileLongFormat); err != nil {
		return res, err
	}

	meta, err := abundance.Metadata(metaTbl, cfg.SampleColumn, cfg.GroupColumn)
	if err != nil {
		return res, fmt.Errorf("read metadata: %w", err)
	}
	if err := p.writeTable(m, abundance.MetadataTable(FileMetadataOptimized, cfg.SampleColumn, cfg.GroupColumn, meta), FileMetadataOptimized); err != nil {
		return res, err
	}

	// Clean
	clean := abundance.CleanCounts(long)
	cleanMeta := abundance.CleanMetadata(meta)
	p.logger.Debug("dropped rows with missing values",
		zap.Int("count_rows", len(long)-len(clean)),
		zap.Int("metadata_rows", len(meta)-len(cleanMeta)))
	if err := p.writeTable(m, abundance.CountsTable(FileLongClean, clean), FileLongClean); err != nil {
		return res, err
	}
	if err := p.writeTable(m, abundance.MetadataTable(FileMetadataClean, cfg.SampleColumn, cfg.GroupColumn, cleanMeta), FileMetadataClean); err != nil {
		return res, err
	}

	// Normalize
	zeroTotal := abundance.ZeroTotalSamples(clean)
	if len(zeroTotal) > 0 {
		p.logger.Warn("samples with zero total count", zap.Strings("samples", zeroTotal), zap.Stringer("policy", policy))
		if policy == abundance.ZeroTotalNaN {
			p.logger.Warn("NaN abundances make every fold change NaN, so no genus can be significant; set zero_total to skip or zero",
				zap.Strings("samples", zeroTotal))
		}
	}
	ra := abundance.Normalize(clean, policy)
	if err := p.writeTable(m, abundance.RelativeTable(FileNormalized, ra), FileNormalized); err != nil {
		return res, err
	}

	// Join
	merged, js := abundance.Join(ra, cleanMeta, opt.Groups())
	p.logger.Info("joined abundances to metadata",
		zap.Int("rows", len(merged)),
		zap.Int("samples_without_metadata", len(js.OrphanCountSamples)),
		zap.Int("metadata_without_counts", len(js.OrphanMetadataSamples)),
		zap.Int("excluded_group_rows", js.ExcludedGroupRows))
	if len(merged) == 0 {
		return res, ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Test
	an, err := diffabund.New(opt, p.logger).Run(ctx, merged)
	if err != nil {
		return res, err
	}
	res.Analysis = an
	res.TopTTest = diffabund.Top(an.TTest, cfg.TopN)
	res.TopKruskal = diffabund.Top(an.Kruskal, cfg.TopN)
	if cfg.BarSource == "ttest" {
		res.Bars = diffabund.OrderByFoldChange(res.TopTTest)
	} else {
		res.Bars = diffabund.OrderByFoldChange(res.TopKruskal)
	}

	// Report
	if err := p.writeTable(m, report.TopTable(FileTopTTest, res.TopTTest), FileTopTTest); err != nil {
		return res, err
	}
	if err := p.writeTable(m, report.TopTable(FileTopKruskal, res.TopKruskal), FileTopKruskal); err != nil {
		return res, err
	}

	desc := report.Describe(countsTbl.Name, long, cfg.TopN)
	if cfg.Plots {
		if err := p.renderCharts(ctx, m, clean, merged, res); err != nil {
			return res, err
		}
	}

	res.Summary = &report.Summary{
		RunID:        m.ID,
		CountsFile:   cfg.CountsPath(),
		MetadataFile: cfg.MetadataPath(),
		Stages: []report.StageCount{
			{Stage: "long format", Rows: len(long)},
			{Stage: "long format clean", Rows: len(clean)},
			{Stage: "metadata", Rows: len(meta)},
			{Stage: "metadata clean", Rows: len(cleanMeta)},
			{Stage: "normalized", Rows: len(ra)},
			{Stage: "merged", Rows: len(merged)},
		},
		Join:       js,
		Collisions: collisions,
		ZeroTotal:  zeroTotal,
		Options:    opt,
		TopN:       cfg.TopN,
		Analysis:   an,
		Counts:     desc,
	}
	summaryPath := filepath.Join(cfg.OutputDir, FileSummary)
	if err := utils.SafeWriteFile(summaryPath, []byte(res.Summary.Markdown())); err != nil {
		return res, fmt.Errorf("write %s: %w", FileSummary, err)
	}
	m.AddOutput(summaryPath, 0)
	p.printf("✓ Wrote %s\n", summaryPath)

	p.logger.Info("run finished",
		zap.String("run_id", m.ID),
		zap.Int("genera", len(an.TTest)),
		zap.Int("outputs", len(m.Outputs)))
	return res, nil
}

// writeGeneraOnly writes the genus-named wide table. A separately supplied
// count table takes the place of the main one when configured.
func (p *Pipeline) writeGeneraOnly(m *run.Manifest, renamed *dataset.Table) error {
	if p.cfg.SecondCountsPath != "" {
		second, err := dataset.Load(p.cfg.SecondCountsPath)
		if err != nil {
			return fmt.Errorf("read second counts: %w", err)
		}
		m.AddInput(p.cfg.SecondCountsPath, len(second.Rows))
		var coll []taxa.Collision
		renamed, coll = abundance.RenameGenera(second)
		p.logCollisions(second.Name, coll)
	}
	return p.writeTable(m, renamed, FileGeneraOnly)
}

func (p *Pipeline) writeTable(m *run.Manifest, t *dataset.Table, name string) error {
	path := filepath.Join(p.cfg.OutputDir, name)
	if err := dataset.Save(t, path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	m.AddOutput(path, len(t.Rows))
	p.logger.Debug("wrote table", zap.String("path", path), zap.Int("rows", len(t.Rows)))
	p.printf("✓ Wrote %s (%d rows)\n", path, len(t.Rows))
	return nil
}

func (p *Pipeline) logCollisions(table string, coll []taxa.Collision) {
	for _, c := range coll {
		p.logger.Debug("genus column collision",
			zap.String("table", table),
			zap.String("genus", c.Genus),
			zap.Strings("sources", c.Sources))
	}
	if len(coll) > 0 {
		p.logger.Info("genus names shared by several columns", zap.String("table", table), zap.Int("genera", len(coll)))
	}
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.progress, format, args...)
}

func counts(recs []abundance.CountRecord) []float64 {
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.Missing {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, r.Count)
	}
	return out
}
