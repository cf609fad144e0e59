// Package normalize implements library-size normalization, variable gene
// selection and per-gene scaling over the sparse expression matrix.
package normalize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

// LogNormalize scales every cell to the target total count and applies
// log(1+x). The input matrix is not modified; the result shares its sparsity
// pattern.
func LogNormalize(m *scmatrix.Matrix, targetSum float64) *scmatrix.Matrix {
	totals := m.TotalCounts()
	return m.Transform(func(cell int, v float64) float64 {
		t := totals[cell]
		if t == 0 {
			return 0
		}
		return math.Log1p(v * targetSum / t)
	})
}

// geneStat accumulates first and second moments per gene over all cells,
// implicit zeros included.
type geneStat struct {
	sum   float64
	sumsq float64
}

// HighlyVariable returns the indices of the n most variable genes, measured
// by dispersion (variance over mean) of the normalized expression. Genes with
// zero mean are never selected. The returned indices are sorted ascending so
// dense layouts are deterministic.
func HighlyVariable(m *scmatrix.Matrix, n int) []int {
	stats := make([]geneStat, m.NumGenes())
	m.Each(func(gene, cell int, v float64) {
		stats[gene].sum += v
		stats[gene].sumsq += v * v
	})

	nCells := float64(m.NumCells())
	type scored struct {
		gene       int
		dispersion float64
	}
	var candidates []scored
	for g, s := range stats {
		mean := s.sum / nCells
		if mean <= 0 {
			continue
		}
		variance := 0.0
		if nCells > 1 {
			variance = (s.sumsq - nCells*mean*mean) / (nCells - 1)
		}
		candidates = append(candidates, scored{gene: g, dispersion: variance / mean})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dispersion > candidates[j].dispersion
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = candidates[i].gene
	}
	sort.Ints(selected)
	return selected
}

// Scale densifies the selected gene columns into a cells-by-genes matrix and
// standardizes each gene to zero mean and unit variance, clipping values at
// +-maxValue. Genes with zero variance become all-zero columns.
func Scale(m *scmatrix.Matrix, genes []int, maxValue float64) *mat.Dense {
	nCells := m.NumCells()
	col := make(map[int]int, len(genes))
	for c, g := range genes {
		col[g] = c
	}

	x := mat.NewDense(nCells, len(genes), nil)
	m.Each(func(gene, cell int, v float64) {
		if c, ok := col[gene]; ok {
			x.Set(cell, c, v)
		}
	})

	n := float64(nCells)
	for c := range genes {
		var sum, sumsq float64
		for r := 0; r < nCells; r++ {
			v := x.At(r, c)
			sum += v
			sumsq += v * v
		}
		mean := sum / n
		variance := 0.0
		if nCells > 1 {
			variance = (sumsq - n*mean*mean) / (n - 1)
		}
		std := math.Sqrt(variance)
		for r := 0; r < nCells; r++ {
			v := 0.0
			if std > 0 {
				v = (x.At(r, c) - mean) / std
			}
			if v > maxValue {
				v = maxValue
			} else if v < -maxValue {
				v = -maxValue
			}
			x.Set(r, c, v)
		}
	}
	return x
}
