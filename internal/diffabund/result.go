package diffabund

import (
	"math"
	"sort"
)

// Significance is the classification of one genus.
type Significance string

const (
	Significant    Significance = "Significant"
	NotSignificant Significance = "Not Significant"
)

// Result is one genus's outcome for a single test variant.
type Result struct {
	Genus          string
	Log2FoldChange float64
	P              float64
	AdjustedP      float64
	Significance   Significance
	// Label is the genus name for significant t-test rows, else empty.
	Label string

	MeanA, MeanB float64
	NA, NB       int
	// Err explains a NaN p-value.
	Err error
}

// Classify marks a genus significant when adjP < alpha and |lfc| > minLFC.
// NaN inputs are never significant.
func Classify(adjP, lfc, alpha, minLFC float64) Significance {
	if adjP < alpha && math.Abs(lfc) > minLFC {
		return Significant
	}
	return NotSignificant
}

// CountSignificant counts rows classified Significant.
func CountSignificant(rows []Result) int {
	n := 0
	for _, r := range rows {
		if r.Significance == Significant {
			n++
		}
	}
	return n
}

// Rank returns a copy sorted ascending by adjusted p-value. Ties keep input
// order and NaN values sort last.
func Rank(rows []Result) []Result {
	out := append([]Result(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return lessNaNLast(out[i].AdjustedP, out[j].AdjustedP)
	})
	return out
}

// Top returns the n best-ranked rows.
func Top(rows []Result, n int) []Result {
	ranked := Rank(rows)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// OrderByFoldChange returns a copy sorted by log2 fold change, largest
// first, NaN last. The bar chart draws its rows in this order.
func OrderByFoldChange(rows []Result) []Result {
	out := append([]Result(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return lessNaNLast(-out[i].Log2FoldChange, -out[j].Log2FoldChange)
	})
	return out
}

func lessNaNLast(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	default:
		return a < b
	}
}
