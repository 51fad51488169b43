package stats

import (
	"math"
	"sort"
)

// BenjaminiHochberg returns FDR-adjusted p-values in input order. NaN inputs
// stay NaN and are not counted among the tests.
func BenjaminiHochberg(p []float64) []float64 {
	out := make([]float64, len(p))
	idx := make([]int, 0, len(p))
	for i, v := range p {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	m := float64(len(idx))
	// descending by p; cumulative minimum from the largest p down
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] > p[idx[b]] })
	running := math.Inf(1)
	for k, i := range idx {
		rank := m - float64(k)
		v := math.Min(1, p[i]*m/rank)
		if v < running {
			running = v
		}
		out[i] = running
	}
	return out
}
