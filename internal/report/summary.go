package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/diffabund"
	"github.com/KaramelBytes/genusdiff/internal/taxa"
)

// StageCount records how many rows a pipeline stage produced.
type StageCount struct {
	Stage string
	Rows  int
}

// Summary collects everything summary.md reports about a run.
type Summary struct {
	RunID        string
	CountsFile   string
	MetadataFile string
	Stages       []StageCount
	Join         abundance.JoinStats
	Collisions   []taxa.Collision
	ZeroTotal    []string
	Options      diffabund.Options
	TopN         int
	Analysis     *diffabund.Analysis
	Counts       *Description
}

// Markdown renders the run summary.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[RUN SUMMARY]\n")
	if s.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", s.RunID))
	}
	b.WriteString(fmt.Sprintf("Counts: %s\n", s.CountsFile))
	b.WriteString(fmt.Sprintf("Metadata: %s\n", s.MetadataFile))
	b.WriteString(fmt.Sprintf("Contrast: %s vs %s (pseudocount %g)\n",
		strings.Join(s.Options.CaseGroups, "+"), strings.Join(s.Options.ControlGroups, "+"), s.Options.Pseudocount))
	b.WriteString(fmt.Sprintf("Significance: adjusted p < %g and |log2 FC| > %g\n", s.Options.Alpha, s.Options.LFCThreshold))

	if len(s.Stages) > 0 {
		b.WriteString("\n[STAGES]\n")
		for _, st := range s.Stages {
			b.WriteString(fmt.Sprintf("- %s: %d rows\n", st.Stage, st.Rows))
		}
	}

	b.WriteString("\n[JOIN]\n")
	b.WriteString(fmt.Sprintf("- samples without metadata: %d%s\n", len(s.Join.OrphanCountSamples), list(s.Join.OrphanCountSamples)))
	b.WriteString(fmt.Sprintf("- metadata samples without counts: %d%s\n", len(s.Join.OrphanMetadataSamples), list(s.Join.OrphanMetadataSamples)))
	b.WriteString(fmt.Sprintf("- rows outside %s: %d\n", strings.Join(s.Options.Groups(), ", "), s.Join.ExcludedGroupRows))

	if s.Analysis != nil {
		b.WriteString("\n[SIGNIFICANT GENERA]\n")
		b.WriteString(fmt.Sprintf("- %s t-test: %d of %d\n", s.Options.TTest, diffabund.CountSignificant(s.Analysis.TTest), len(s.Analysis.TTest)))
		b.WriteString(fmt.Sprintf("- Kruskal-Wallis: %d of %d\n", diffabund.CountSignificant(s.Analysis.Kruskal), len(s.Analysis.Kruskal)))
		writeResults(&b, fmt.Sprintf("TOP %d T-TEST", s.TopN), diffabund.Top(s.Analysis.TTest, s.TopN))
		writeResults(&b, fmt.Sprintf("TOP %d KRUSKAL-WALLIS", s.TopN), diffabund.Top(s.Analysis.Kruskal, s.TopN))
	}

	if s.Counts != nil {
		b.WriteString("\n[COUNT DISTRIBUTION]\n")
		writeDistribution(&b, "Count", s.Counts.Counts)
		writeDistribution(&b, "log10(Count+1)", s.Counts.LogCounts)
	}

	var notes []string
	for _, c := range s.Collisions {
		notes = append(notes, fmt.Sprintf("genus %q comes from %d columns", c.Genus, len(c.Columns)))
	}
	if len(s.ZeroTotal) > 0 {
		notes = append(notes, fmt.Sprintf("samples with zero total count: %s", strings.Join(s.ZeroTotal, ", ")))
	}
	writeNotes(&b, notes)
	return b.String()
}

func writeResults(b *strings.Builder, title string, rows []diffabund.Result) {
	b.WriteString(fmt.Sprintf("\n[%s]\n", title))
	if len(rows) == 0 {
		b.WriteString("(none)\n")
		return
	}
	b.WriteString("| Genus | log2 FC | p | adjusted p | mean A | mean B | n A | n B | significance |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %d | %d | %s |\n",
			safeName(r.Genus), num(r.Log2FoldChange), num(r.P), num(r.AdjustedP),
			num(r.MeanA), num(r.MeanB), r.NA, r.NB, r.Significance))
	}
}

func list(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	const max = 8
	if len(xs) > max {
		return fmt.Sprintf(" (%s, ...)", strings.Join(xs[:max], ", "))
	}
	return fmt.Sprintf(" (%s)", strings.Join(xs, ", "))
}
