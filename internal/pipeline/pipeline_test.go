package pipeline_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/genusdiff/internal/config"
	"github.com/KaramelBytes/genusdiff/internal/diffabund"
	"github.com/KaramelBytes/genusdiff/internal/pipeline"
	"github.com/KaramelBytes/genusdiff/internal/run"
)

const lineage = "k__Bacteria;p__Firmicutes;c__Clostridia;o__Clostridiales;f__Lachnospiraceae;"

// writeInputs creates a counts table with two samples lacking metadata, a
// sample in an excluded group and one missing cell.
func writeInputs(t *testing.T, dir string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Sample\t" + lineage + "g__Dorea;s__sp.\t" + lineage + "g__Blautia\t" + lineage + "g__Roseburia;s__x\n")
	rows := []struct {
		sample            string
		dorea, bl, rosebu string
	}{
		{"UC1", "400", "300", "300"},
		{"UC2", "380", "320", "300"},
		{"UC3", "420", "280", "300"},
		{"CD1", "390", "310", "300"},
		{"CD2", "410", "290", "300"},
		{"CD3", "400", "305", "295"},
		{"N1", "10", "500", "490"},
		{"N2", "12", "480", "508"},
		{"N3", "8", "520", "NA"},
		{"X1", "1", "1", "1"},
		{"X2", "2", "2", "2"},
		{"O1", "5", "5", "5"},
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\n", r.sample, r.dorea, r.bl, r.rosebu))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "genera.counts.tsv"), []byte(b.String()), 0o644))

	meta := "Sample\tAge\tStudy.Group\n" +
		"UC1\t30\tUC\nUC2\t31\tUC\nUC3\t32\tUC\n" +
		"CD1\t40\tCD\nCD2\t41\tCD\nCD3\t42\tCD\n" +
		"N1\t50\tnonIBD\nN2\t51\tnonIBD\nN3\t52\tnonIBD\n" +
		"O1\t60\tIC\nM1\t70\tUC\nM2\t71\tNA\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.tsv"), []byte(meta), 0o644))
}

func testConfig(t *testing.T, in, out string) *config.Global {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	cfg.InputDir = in
	cfg.OutputDir = out
	return cfg
}

func TestRunWritesEveryOutput(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "results")
	writeInputs(t, in)
	cfg := testConfig(t, in, out)

	var progress strings.Builder
	p := pipeline.New(cfg, zaptest.NewLogger(t))
	p.SetProgress(&progress)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, name := range []string{
		pipeline.FileLongFormat, pipeline.FileGeneraOnly, pipeline.FileMetadataOptimized,
		pipeline.FileLongClean, pipeline.FileMetadataClean, pipeline.FileNormalized,
		pipeline.FileTopTTest, pipeline.FileTopKruskal, pipeline.FileSummary,
		pipeline.ChartHistogram + ".png", pipeline.ChartHistogramLog + ".png",
		pipeline.ChartVolcanoTTest + ".png", pipeline.ChartVolcanoKruskal + ".png",
		pipeline.ChartBoxplot + ".png", pipeline.ChartBars + ".png",
		"run.json",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.Contains(t, progress.String(), "✓ Wrote")

	// 12 samples x 3 genera, one NA cell dropped
	stages := map[string]int{}
	for _, s := range res.Summary.Stages {
		stages[s.Stage] = s.Rows
	}
	assert.Equal(t, 36, stages["long format"])
	assert.Equal(t, 35, stages["long format clean"])
	assert.Equal(t, 12, stages["metadata"])
	assert.Equal(t, 11, stages["metadata clean"])
	// the orphans X1 and X2 remove exactly their 6 rows, the IC sample 3 more
	assert.Equal(t, 35-6-3, stages["merged"])
	assert.ElementsMatch(t, []string{"X1", "X2"}, res.Summary.Join.OrphanCountSamples)
	assert.ElementsMatch(t, []string{"M1"}, res.Summary.Join.OrphanMetadataSamples)
	assert.Equal(t, 3, res.Summary.Join.ExcludedGroupRows)

	require.Len(t, res.Analysis.TTest, 3)
	require.Equal(t, "Dorea", res.TopTTest[0].Genus)
	assert.Equal(t, diffabund.Significant, res.TopTTest[0].Significance)
	assert.Equal(t, "Dorea", res.TopTTest[0].Label)
	assert.Equal(t, "Dorea", res.Bars[0].Genus, "largest fold change first")

	long, err := os.ReadFile(filepath.Join(out, pipeline.FileLongFormat))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(long), "Sample\tBacterial_Group\tCount\n"))
	assert.Contains(t, string(long), "N3\tRoseburia\tNA\n")

	genera, err := os.ReadFile(filepath.Join(out, pipeline.FileGeneraOnly))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(genera), "Sample\tDorea\tBlautia\tRoseburia\n"))

	top, err := os.ReadFile(filepath.Join(out, pipeline.FileTopTTest))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(top)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Bacterial_Group\tlog2_fold_change\tp_value\tadjusted_p_value", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Dorea\t"))

	m, err := run.Load(out)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.ID, m.ID)
	assert.Empty(t, m.Error)
	assert.Len(t, m.Inputs, 2)
	assert.Equal(t, "welch", m.Settings["ttest"])
	assert.Contains(t, m.OutputNames(), pipeline.FileSummary)
}

// addZeroTotalSample appends a UC sample whose counts are all zero.
func addZeroTotalSample(t *testing.T, dir string) {
	t.Helper()
	for name, line := range map[string]string{
		"genera.counts.tsv": "UC0\t0\t0\t0\n",
		"metadata.tsv":      "UC0\t33\tUC\n",
	} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.WriteString(line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
}

func TestRunZeroTotalSampleMakesFoldChangesNaN(t *testing.T) {
	in := t.TempDir()
	writeInputs(t, in)
	addZeroTotalSample(t, in)

	core, logs := observer.New(zap.WarnLevel)
	cfg := testConfig(t, in, filepath.Join(t.TempDir(), "results"))
	res, err := pipeline.New(cfg, zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, logs.FilterMessageSnippet("every fold change NaN").All())
	for _, rows := range [][]diffabund.Result{res.Analysis.TTest, res.Analysis.Kruskal} {
		for _, r := range rows {
			assert.True(t, math.IsNaN(r.Log2FoldChange), r.Genus)
			assert.Equal(t, diffabund.NotSignificant, r.Significance, r.Genus)
			assert.Empty(t, r.Label, r.Genus)
		}
	}
	// the tests themselves ignore the NaN abundances
	dorea := res.Analysis.TTest[1]
	require.Equal(t, "Dorea", dorea.Genus)
	assert.Less(t, dorea.P, 0.05)

	// dropping the sample restores the result
	cfg.OutputDir = filepath.Join(t.TempDir(), "results")
	cfg.ZeroTotal = "skip"
	res, err = pipeline.New(cfg, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Dorea", res.TopTTest[0].Genus)
	assert.Equal(t, diffabund.Significant, res.TopTTest[0].Significance)
}

func TestRunIsIdempotent(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in)
	cfg := testConfig(t, in, out)
	cfg.Plots = false
	cfg.Workers = 3

	first, err := pipeline.New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	a, err := os.ReadFile(filepath.Join(out, pipeline.FileTopKruskal))
	require.NoError(t, err)

	second, err := pipeline.New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(out, pipeline.FileTopKruskal))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.NotEqual(t, first.Manifest.ID, second.Manifest.ID)
	assert.NoFileExists(t, filepath.Join(out, pipeline.ChartBoxplot+".png"))
}

func TestRunUsesSecondCountsTable(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in)
	second := filepath.Join(in, "other.csv")
	require.NoError(t, os.WriteFile(second, []byte("Sample,"+lineage+"g__Faecalibacterium,"+lineage+"g__Dorea;s__a,"+lineage+"g__Dorea;s__b\nS1,1,2,3\n"), 0o644))
	cfg := testConfig(t, in, out)
	cfg.Plots = false
	cfg.SecondCountsPath = second

	res, err := pipeline.New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(out, pipeline.FileGeneraOnly))
	require.NoError(t, err)
	assert.Equal(t, "Sample\tFaecalibacterium\tDorea\tDorea\nS1\t1\t2\t3\n", string(data))
	assert.Len(t, res.Manifest.Inputs, 3)
}

func TestRunFailures(t *testing.T) {
	t.Run("missing counts", func(t *testing.T) {
		out := t.TempDir()
		cfg := testConfig(t, t.TempDir(), out)
		_, err := pipeline.New(cfg, nil).Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		m, lerr := run.Load(out)
		require.NoError(t, lerr)
		assert.Contains(t, m.Error, "read counts")
	})

	t.Run("no overlap", func(t *testing.T) {
		in := t.TempDir()
		writeInputs(t, in)
		require.NoError(t, os.WriteFile(filepath.Join(in, "metadata.tsv"), []byte("Sample\tStudy.Group\nZ1\tUC\n"), 0o644))
		cfg := testConfig(t, in, t.TempDir())
		_, err := pipeline.New(cfg, nil).Run(context.Background())
		assert.ErrorIs(t, err, pipeline.ErrNoData)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t, t.TempDir(), t.TempDir())
		cfg.Alpha = 2
		_, err := pipeline.New(cfg, nil).Run(context.Background())
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("cancelled", func(t *testing.T) {
		in := t.TempDir()
		writeInputs(t, in)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pipeline.New(testConfig(t, in, t.TempDir()), nil).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
