package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/dataset"
	"github.com/KaramelBytes/genusdiff/internal/taxa"
)

var (
	genusOutput  string
	genusLineage bool
)

var genusCmd = &cobra.Command{
	Use:   "genus <file>",
	Short: "Rename taxonomy-annotated columns to bare genus names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if genusLineage {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "column\t"+strings.Join(taxa.Ranks, "\t"))
			for _, h := range t.Header {
				l := taxa.ParseLineage(h)
				if l.Empty() {
					continue
				}
				vals := l.Values()
				for i, v := range vals {
					if v == "" {
						vals[i] = "-"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\n", taxa.ExtractGenus(h), strings.Join(vals, "\t"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}

		renamed, coll := abundance.RenameGenera(t)
		if err := dataset.Save(renamed, genusOutput); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		logger.Debug("renamed columns", zap.String("table", t.Name), zap.Int("columns", len(t.Header)), zap.Int("collisions", len(coll)))
		fmt.Fprintf(out, "✓ Wrote %s (%d columns)\n", genusOutput, len(renamed.Header))
		for _, c := range coll {
			fmt.Fprintf(out, "⚠ Warning: genus %q comes from columns %v\n", c.Genus, oneBased(c.Columns))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genusCmd)
	genusCmd.Flags().StringVarP(&genusOutput, "output", "o", "genera_only_counts.tsv", "path of the renamed table (TSV)")
	genusCmd.Flags().BoolVar(&genusLineage, "lineage", false, "print the taxonomic ranks of every annotated column")
	genusCmd.Flags().StringVar(&sheetName, "sheet-name", "", "XLSX: sheet name to read")
	genusCmd.Flags().IntVar(&sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

func oneBased(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + 1
	}
	return out
}
