package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
)

// Distribution summarizes a set of non-negative values.
type Distribution struct {
	N       int
	Missing int
	Zeros   int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64
	Median  float64
	MAD     float64
	Q1, Q3  float64
	P95     float64
}

// Summarize computes a Distribution over the finite values of vals.
func Summarize(vals []float64) Distribution {
	var d Distribution
	clean := make([]float64, 0, len(vals))
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			d.Missing++
			continue
		}
		if v == 0 {
			d.Zeros++
		}
		clean = append(clean, v)
	}
	d.N = len(clean)
	if d.N == 0 {
		return d
	}
	sort.Float64s(clean)
	d.Min, d.Max = clean[0], clean[len(clean)-1]
	if d.N > 1 {
		d.Mean, d.Std = stat.MeanStdDev(clean, nil)
	} else {
		d.Mean = clean[0]
	}
	d.Median = type7(clean, 0.5)
	d.MAD = type7(absDeviation(clean, d.Median), 0.5)
	d.Q1 = type7(clean, 0.25)
	d.Q3 = type7(clean, 0.75)
	d.P95 = type7(clean, 0.95)
	return d
}

// GenusSummary is the per-genus view of a count table.
type GenusSummary struct {
	Genus      string
	Total      float64
	Mean       float64
	Prevalence float64 // share of samples with a nonzero count
}

// Description is a distribution report of a long count table.
type Description struct {
	Name      string
	Samples   int
	Genera    int
	Counts    Distribution
	LogCounts Distribution // log10(Count+1)
	Top       []GenusSummary
	Warnings  []string
}

// Describe summarizes count records; top limits the genus listing.
func Describe(name string, recs []abundance.CountRecord, top int) *Description {
	d := &Description{Name: name}
	samples := map[string]bool{}
	type acc struct {
		total   float64
		n, nz   int
		missing int
	}
	byGenus := map[string]*acc{}
	var order []string
	raw := make([]float64, 0, len(recs))
	logs := make([]float64, 0, len(recs))
	for _, r := range recs {
		samples[r.Sample] = true
		a, ok := byGenus[r.Genus]
		if !ok {
			a = &acc{}
			byGenus[r.Genus] = a
			order = append(order, r.Genus)
		}
		if r.Missing {
			a.missing++
			raw = append(raw, math.NaN())
			logs = append(logs, math.NaN())
			continue
		}
		a.total += r.Count
		a.n++
		if r.Count > 0 {
			a.nz++
		}
		raw = append(raw, r.Count)
		logs = append(logs, math.Log10(r.Count+1))
	}
	d.Samples = len(samples)
	d.Genera = len(order)
	d.Counts = Summarize(raw)
	d.LogCounts = Summarize(logs)

	for _, g := range order {
		a := byGenus[g]
		gs := GenusSummary{Genus: g, Total: a.total, Mean: math.NaN(), Prevalence: math.NaN()}
		if a.n > 0 {
			gs.Mean = a.total / float64(a.n)
			gs.Prevalence = float64(a.nz) / float64(a.n)
		}
		d.Top = append(d.Top, gs)
	}
	sort.SliceStable(d.Top, func(i, j int) bool { return d.Top[i].Total > d.Top[j].Total })
	if top >= 0 && len(d.Top) > top {
		d.Top = d.Top[:top]
	}

	if d.Counts.Missing > 0 {
		d.Warnings = append(d.Warnings, fmt.Sprintf("%d missing cells will be dropped before normalization", d.Counts.Missing))
	}
	if d.Counts.N > 0 && float64(d.Counts.Zeros)/float64(d.Counts.N) > 0.5 {
		d.Warnings = append(d.Warnings, fmt.Sprintf("table is sparse: %.1f%% of counts are zero", float64(d.Counts.Zeros)*100/float64(d.Counts.N)))
	}
	return d
}

// Markdown renders the description in bracketed sections.
func (d *Description) Markdown() string {
	var b strings.Builder
	b.WriteString("[COUNT TABLE SUMMARY]\n")
	if d.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", d.Name))
	}
	b.WriteString(fmt.Sprintf("Samples: %d\n", d.Samples))
	b.WriteString(fmt.Sprintf("Genera: %d\n\n", d.Genera))

	b.WriteString("[DISTRIBUTION]\n")
	writeDistribution(&b, "Count", d.Counts)
	writeDistribution(&b, "log10(Count+1)", d.LogCounts)

	if len(d.Top) > 0 {
		b.WriteString("\n[TOP GENERA BY TOTAL COUNT]\n")
		b.WriteString("| Genus | Total | Mean | Prevalence |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, g := range d.Top {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", safeName(g.Genus), num(g.Total), num(g.Mean), pct(g.Prevalence)))
		}
	}
	writeNotes(&b, d.Warnings)
	return b.String()
}

func writeDistribution(b *strings.Builder, label string, d Distribution) {
	b.WriteString(fmt.Sprintf("- %s: n %d, zeros %d, missing %d", label, d.N, d.Zeros, d.Missing))
	if d.N > 0 {
		b.WriteString(fmt.Sprintf("; min %.4g, q1 %.4g, median %.4g, q3 %.4g, p95 %.4g, max %.4g; mean %.4g, std %.4g, MAD %.4g",
			d.Min, d.Q1, d.Median, d.Q3, d.P95, d.Max, d.Mean, d.Std, d.MAD))
	}
	b.WriteString("\n")
}

func writeNotes(b *strings.Builder, notes []string) {
	if len(notes) == 0 {
		return
	}
	b.WriteString("\n[NOTES]\n")
	for _, w := range notes {
		b.WriteString("- ")
		b.WriteString(w)
		b.WriteString("\n")
	}
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.4g", v)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}

// type7 is R's default quantile: linear interpolation at (n-1)q over sorted.
func type7(sorted []float64, q float64) float64 {
	n := len(sorted)
	h := float64(n-1) * math.Max(0, math.Min(1, q))
	lo := int(h)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// absDeviation returns the sorted distances of sorted from center.
func absDeviation(sorted []float64, center float64) []float64 {
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - center)
	}
	sort.Float64s(dev)
	return dev
}
