package markers

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// MannWhitney returns the two-sided p-value for the Mann-Whitney U rank-sum
// test comparing a and b, using the normal approximation with tie and
// continuity corrections. Returns 1 when either sample is empty or the
// pooled values are constant.
func MannWhitney(a, b []float64) float64 {
	n1, n2 := len(a), len(b)
	if n1 == 0 || n2 == 0 {
		return 1
	}

	type entry struct {
		val   float64
		group int
	}
	combined := make([]entry, 0, n1+n2)
	for _, v := range a {
		combined = append(combined, entry{val: v, group: 1})
	}
	for _, v := range b {
		combined = append(combined, entry{val: v, group: 2})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].val < combined[j].val })

	// Midranks for tied runs.
	total := len(combined)
	ranks := make([]float64, total)
	tieSum := 0.0
	for i := 0; i < total; {
		j := i
		for j < total && combined[j].val == combined[i].val {
			j++
		}
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		if t := float64(j - i); t > 1 {
			tieSum += t*t*t - t
		}
		i = j
	}

	r1 := 0.0
	for i, e := range combined {
		if e.group == 1 {
			r1 += ranks[i]
		}
	}

	f1, f2, ft := float64(n1), float64(n2), float64(total)
	u1 := r1 - f1*(f1+1)/2
	u2 := f1*f2 - u1
	u := math.Min(u1, u2)

	mu := f1 * f2 / 2
	sigma := math.Sqrt(f1 * f2 * ((ft + 1) - tieSum/(ft*(ft-1))) / 12)
	if sigma < 1e-10 {
		return 1
	}

	z := (u - mu + 0.5) / sigma
	return 2 * distuv.UnitNormal.CDF(-math.Abs(z))
}

// BenjaminiHochberg returns FDR-adjusted p-values with the step-up procedure.
// Every adjusted value is at least its raw value and at most 1.
func BenjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return pvals[idx[i]] < pvals[idx[j]] })

	fdr := make([]float64, n)
	minP := 1.0
	for i := n - 1; i >= 0; i-- {
		orig := idx[i]
		adjusted := pvals[orig] * float64(n) / float64(i+1)
		if adjusted > 1 {
			adjusted = 1
		}
		if adjusted < minP {
			minP = adjusted
		} else {
			adjusted = minP
		}
		fdr[orig] = adjusted
	}
	return fdr
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
