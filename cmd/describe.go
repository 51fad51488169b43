package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/report"
	"github.com/KaramelBytes/genusdiff/internal/utils"
)

var (
	descOutput string
	descTop    int
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Summarize the count distribution of a wide genus table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0])
		if err != nil {
			return err
		}
		renamed, _ := abundance.RenameGenera(t)
		recs, err := abundance.Reshape(renamed, cfg.SampleColumn)
		if err != nil {
			return err
		}
		md := report.Describe(t.Name, recs, descTop).Markdown()
		if descOutput != "" {
			if err := utils.SafeWriteFile(descOutput, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote summary to %s\n", descOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&descOutput, "output", "o", "", "optional path to write the summary (Markdown)")
	describeCmd.Flags().IntVar(&descTop, "top", 10, "genera listed by total count")
	describeCmd.Flags().StringVar(&sheetName, "sheet-name", "", "XLSX: sheet name to read")
	describeCmd.Flags().IntVar(&sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
