package abundance

import (
	"fmt"
	"math"
	"strings"
)

// ZeroTotalPolicy decides what happens to samples whose counts sum to zero.
type ZeroTotalPolicy int

const (
	// ZeroTotalNaN keeps the samples; every abundance is NaN (0/0).
	ZeroTotalNaN ZeroTotalPolicy = iota
	// ZeroTotalSkip drops the samples.
	ZeroTotalSkip
	// ZeroTotalZero keeps the samples with abundance 0.
	ZeroTotalZero
)

func (p ZeroTotalPolicy) String() string {
	switch p {
	case ZeroTotalSkip:
		return "skip"
	case ZeroTotalZero:
		return "zero"
	default:
		return "nan"
	}
}

// ParseZeroTotalPolicy accepts "nan", "skip" or "zero".
func ParseZeroTotalPolicy(s string) (ZeroTotalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan":
		return ZeroTotalNaN, nil
	case "skip":
		return ZeroTotalSkip, nil
	case "zero":
		return ZeroTotalZero, nil
	default:
		return ZeroTotalNaN, fmt.Errorf("invalid zero_total policy %q (use nan|skip|zero)", s)
	}
}

// Normalize converts counts to within-sample relative abundance. Missing
// counts contribute 0 to the total. Record order is preserved.
func Normalize(recs []CountRecord, policy ZeroTotalPolicy) []RelativeRecord {
	totals := map[string]float64{}
	for _, r := range recs {
		if r.Missing {
			continue
		}
		totals[r.Sample] += r.Count
	}
	out := make([]RelativeRecord, 0, len(recs))
	for _, r := range recs {
		total := totals[r.Sample]
		rr := RelativeRecord{CountRecord: r}
		switch {
		case total != 0:
			rr.RelativeAbundance = r.Count / total
		case policy == ZeroTotalSkip:
			continue
		case policy == ZeroTotalZero:
			rr.RelativeAbundance = 0
		default:
			rr.RelativeAbundance = math.NaN()
		}
		if r.Missing {
			rr.RelativeAbundance = math.NaN()
		}
		out = append(out, rr)
	}
	return out
}

// ZeroTotalSamples lists samples whose counts sum to zero, in first-seen order.
func ZeroTotalSamples(recs []CountRecord) []string {
	totals := map[string]float64{}
	var order []string
	for _, r := range recs {
		if _, ok := totals[r.Sample]; !ok {
			order = append(order, r.Sample)
		}
		if !r.Missing {
			totals[r.Sample] += r.Count
		}
	}
	var out []string
	for _, s := range order {
		if totals[s] == 0 {
			out = append(out, s)
		}
	}
	return out
}
