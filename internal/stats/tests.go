// Package stats implements the two-sample and k-sample tests and the
// multiple-testing correction used for differential abundance.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrTooFewObservations means a sample has fewer than two finite values.
	ErrTooFewObservations = errors.New("not enough observations")
	// ErrConstantData means the standard error is zero or negligible.
	ErrConstantData = errors.New("data are essentially constant")
	// ErrTooFewGroups means fewer than two groups have observations.
	ErrTooFewGroups = errors.New("all observations are in the same group")
	// ErrAllTied means every observation has the same rank.
	ErrAllTied = errors.New("all observations are tied")
)

// Result holds a test statistic, its degrees of freedom and the p-value.
type Result struct {
	Statistic float64
	DF        float64
	P         float64
}

// finite returns x without NaN and infinite values.
func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// WelchTTest runs a two-sided two-sample t-test without assuming equal
// variances. Non-finite values are ignored.
func WelchTTest(a, b []float64) (Result, error) {
	a, b = finite(a), finite(b)
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return Result{}, ErrTooFewObservations
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	sa, sb := va/na, vb/nb
	se := math.Sqrt(sa + sb)
	if constant(se, ma, mb) {
		return Result{}, ErrConstantData
	}
	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))
	t := (ma - mb) / se
	return Result{Statistic: t, DF: df, P: twoSided(t, df)}, nil
}

// StudentTTest runs a two-sided two-sample t-test with pooled variance.
func StudentTTest(a, b []float64) (Result, error) {
	a, b = finite(a), finite(b)
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return Result{}, ErrTooFewObservations
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	df := na + nb - 2
	pooled := ((na-1)*va + (nb-1)*vb) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if constant(se, ma, mb) {
		return Result{}, ErrConstantData
	}
	t := (ma - mb) / se
	return Result{Statistic: t, DF: df, P: twoSided(t, df)}, nil
}

func constant(se, ma, mb float64) bool {
	return se == 0 || se < 10*epsilon*math.Max(math.Abs(ma), math.Abs(mb))
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

func twoSided(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return math.Min(p, 1)
}

// KruskalWallis runs the rank-sum test across groups, using average ranks
// for ties and the usual tie correction. Empty groups do not count towards
// the degrees of freedom. Non-finite values are ignored.
func KruskalWallis(groups ...[]float64) (Result, error) {
	var all []float64
	var sizes []int
	for _, g := range groups {
		g = finite(g)
		if len(g) == 0 {
			continue
		}
		all = append(all, g...)
		sizes = append(sizes, len(g))
	}
	if len(sizes) < 2 {
		return Result{}, ErrTooFewGroups
	}
	n := float64(len(all))
	ranks, ties := Rank(all)

	var h float64
	off := 0
	for _, size := range sizes {
		r := floats.Sum(ranks[off : off+size])
		h += r * r / float64(size)
		off += size
	}
	h = 12/(n*(n+1))*h - 3*(n+1)

	var t float64
	for _, c := range ties {
		tc := float64(c)
		t += tc*tc*tc - tc
	}
	corr := 1 - t/(n*n*n-n)
	if corr <= 0 {
		return Result{}, ErrAllTied
	}
	h /= corr
	df := float64(len(sizes) - 1)
	p := distuv.ChiSquared{K: df}.Survival(h)
	return Result{Statistic: h, DF: df, P: p}, nil
}

// Rank returns 1-based average ranks of x and the sizes of every tie run
// longer than one.
func Rank(x []float64) (ranks []float64, ties []int) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return x[idx[i]] < x[idx[j]] })
	ranks = make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		if j > i {
			ties = append(ties, j-i+1)
		}
		i = j + 1
	}
	return ranks, ties
}
