package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/genusdiff/internal/diffabund"
	"github.com/KaramelBytes/genusdiff/internal/pipeline"
)

var (
	runInputDir     string
	runOutputDir    string
	runCounts       string
	runMetadata     string
	runSecondCounts string
	runTTest        string
	runWorkers      int
	runNoPlots      bool
	runPlotFormat   string
	runTop          int
	runQuiet        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis and write every table, chart and summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		f := cmd.Flags()
		if f.Changed("input-dir") {
			c.InputDir = runInputDir
		}
		if f.Changed("output-dir") {
			c.OutputDir = runOutputDir
		}
		if f.Changed("counts") {
			c.CountsFile = runCounts
		}
		if f.Changed("metadata") {
			c.MetadataFile = runMetadata
		}
		if f.Changed("second-counts") {
			c.SecondCountsPath = runSecondCounts
		}
		if f.Changed("ttest") {
			c.TTest = runTTest
		}
		if f.Changed("workers") {
			c.Workers = runWorkers
		}
		if f.Changed("no-plots") {
			c.Plots = !runNoPlots
		}
		if f.Changed("plot-format") {
			c.PlotFormat = runPlotFormat
		}
		if f.Changed("top") {
			c.TopN = runTop
		}

		p := pipeline.New(&c, logger)
		if !runQuiet {
			p.SetProgress(cmd.OutOrStdout())
		}
		res, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("manifest written", zap.String("path", res.Manifest.Path()))
		if !runQuiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s t-test: %d significant of %d genera\n",
				res.Summary.Options.TTest, diffabund.CountSignificant(res.Analysis.TTest), len(res.Analysis.TTest))
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Kruskal-Wallis: %d significant of %d genera\n",
				diffabund.CountSignificant(res.Analysis.Kruskal), len(res.Analysis.Kruskal))
			if n := len(res.Summary.Join.OrphanCountSamples); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %d samples had no metadata and were left out\n", n)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runInputDir, "input-dir", "", "directory holding the input tables (overrides config)")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "directory for every output (overrides config)")
	runCmd.Flags().StringVar(&runCounts, "counts", "", "wide genus count table (default genera.counts.tsv)")
	runCmd.Flags().StringVar(&runMetadata, "metadata", "", "sample metadata table (default metadata.tsv)")
	runCmd.Flags().StringVar(&runSecondCounts, "second-counts", "", "second wide count table written as genera_only_counts.tsv")
	runCmd.Flags().StringVar(&runTTest, "ttest", "welch", "t-test flavour: welch|student")
	runCmd.Flags().IntVar(&runWorkers, "workers", 1, "genera tested concurrently")
	runCmd.Flags().BoolVar(&runNoPlots, "no-plots", false, "skip chart rendering")
	runCmd.Flags().StringVar(&runPlotFormat, "plot-format", "png", "chart format: png|svg|pdf")
	runCmd.Flags().IntVar(&runTop, "top", 10, "rows in the top results tables")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
}
