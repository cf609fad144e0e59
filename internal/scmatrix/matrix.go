// Package scmatrix holds the sparse gene-by-cell expression container and its
// loaders. The matrix is stored compressed by cell (column) because every
// pipeline stage after loading iterates per cell; per-gene access walks the
// whole structure once and is cheap at this scale.
package scmatrix

import (
	"fmt"
	"strings"
)

// Matrix is a sparse expression matrix with genes as rows and cells as
// columns. Values are raw counts after loading and normalized expression
// after the normalization stage.
type Matrix struct {
	Genes []string // de-duplicated gene names, row identifiers
	Cells []string // cell barcodes, column identifiers

	colPtr []int // per-cell entry offsets, len = len(Cells)+1
	rowIdx []int // gene index per entry
	data   []float64

	geneIdx map[string]int
}

// NewFromColumns builds a Matrix from per-cell entry slices. entries[j] holds
// the (gene index, value) pairs for cell j. Used by loaders and tests.
func NewFromColumns(genes, cells []string, entries [][]Entry) (*Matrix, error) {
	if len(entries) != len(cells) {
		return nil, fmt.Errorf("scmatrix: %d entry columns for %d cells", len(entries), len(cells))
	}
	m := &Matrix{
		Genes:  genes,
		Cells:  cells,
		colPtr: make([]int, len(cells)+1),
	}
	nnz := 0
	for _, col := range entries {
		nnz += len(col)
	}
	m.rowIdx = make([]int, 0, nnz)
	m.data = make([]float64, 0, nnz)
	for j, col := range entries {
		m.colPtr[j] = len(m.data)
		for _, e := range col {
			if e.Gene < 0 || e.Gene >= len(genes) {
				return nil, fmt.Errorf("scmatrix: gene index %d out of range for cell %d", e.Gene, j)
			}
			m.rowIdx = append(m.rowIdx, e.Gene)
			m.data = append(m.data, e.Value)
		}
	}
	m.colPtr[len(cells)] = len(m.data)
	m.buildGeneIndex()
	return m, nil
}

// Entry is a single nonzero matrix element within one cell's column.
type Entry struct {
	Gene  int
	Value float64
}

func (m *Matrix) buildGeneIndex() {
	m.geneIdx = make(map[string]int, len(m.Genes))
	for i, g := range m.Genes {
		m.geneIdx[g] = i
	}
}

// NumGenes returns the gene (row) count.
func (m *Matrix) NumGenes() int { return len(m.Genes) }

// NumCells returns the cell (column) count.
func (m *Matrix) NumCells() int { return len(m.Cells) }

// NNZ returns the number of stored nonzero entries.
func (m *Matrix) NNZ() int { return len(m.data) }

// GeneIndex returns the row index for a gene name.
func (m *Matrix) GeneIndex(name string) (int, bool) {
	i, ok := m.geneIdx[name]
	return i, ok
}

// CellEntries calls fn for every stored entry of cell j.
func (m *Matrix) CellEntries(j int, fn func(gene int, value float64)) {
	for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
		fn(m.rowIdx[k], m.data[k])
	}
}

// Each calls fn for every stored entry in the matrix.
func (m *Matrix) Each(fn func(gene, cell int, value float64)) {
	for j := 0; j < len(m.Cells); j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			fn(m.rowIdx[k], j, m.data[k])
		}
	}
}

// GeneValues returns the dense expression vector for one gene across all
// cells. Missing entries are zero.
func (m *Matrix) GeneValues(gene int) []float64 {
	out := make([]float64, len(m.Cells))
	for j := 0; j < len(m.Cells); j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			if m.rowIdx[k] == gene {
				out[j] = m.data[k]
				break
			}
		}
	}
	return out
}

// TotalCounts returns the per-cell sum of all stored values.
func (m *Matrix) TotalCounts() []float64 {
	totals := make([]float64, len(m.Cells))
	for j := 0; j < len(m.Cells); j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			totals[j] += m.data[k]
		}
	}
	return totals
}

// PrefixCounts returns the per-cell sum over genes whose name starts with the
// given prefix. The comparison is case-insensitive to cover both "mt-" and
// "MT-" naming conventions.
func (m *Matrix) PrefixCounts(prefix string) []float64 {
	lower := strings.ToLower(prefix)
	isPrefixed := make([]bool, len(m.Genes))
	for i, g := range m.Genes {
		isPrefixed[i] = strings.HasPrefix(strings.ToLower(g), lower)
	}
	totals := make([]float64, len(m.Cells))
	for j := 0; j < len(m.Cells); j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			if isPrefixed[m.rowIdx[k]] {
				totals[j] += m.data[k]
			}
		}
	}
	return totals
}

// SubsetCells returns a new Matrix containing only the cells at the given
// column indices, in order. Gene rows are unchanged.
func (m *Matrix) SubsetCells(keep []int) *Matrix {
	sub := &Matrix{
		Genes:   m.Genes,
		Cells:   make([]string, len(keep)),
		colPtr:  make([]int, len(keep)+1),
		geneIdx: m.geneIdx,
	}
	nnz := 0
	for _, j := range keep {
		nnz += m.colPtr[j+1] - m.colPtr[j]
	}
	sub.rowIdx = make([]int, 0, nnz)
	sub.data = make([]float64, 0, nnz)
	for n, j := range keep {
		sub.Cells[n] = m.Cells[j]
		sub.colPtr[n] = len(sub.data)
		sub.rowIdx = append(sub.rowIdx, m.rowIdx[m.colPtr[j]:m.colPtr[j+1]]...)
		sub.data = append(sub.data, m.data[m.colPtr[j]:m.colPtr[j+1]]...)
	}
	sub.colPtr[len(keep)] = len(sub.data)
	return sub
}

// Transform returns a new Matrix with the same sparsity pattern and every
// stored value replaced by fn(cell, value). Used by the normalization stage.
func (m *Matrix) Transform(fn func(cell int, value float64) float64) *Matrix {
	out := &Matrix{
		Genes:   m.Genes,
		Cells:   m.Cells,
		colPtr:  m.colPtr,
		rowIdx:  m.rowIdx,
		data:    make([]float64, len(m.data)),
		geneIdx: m.geneIdx,
	}
	for j := 0; j < len(m.Cells); j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			out.data[k] = fn(j, m.data[k])
		}
	}
	return out
}

// DedupNames returns names with duplicates made unique by appending "-1",
// "-2", ... to repeated occurrences, first occurrence unchanged.
func DedupNames(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		n := seen[name]
		seen[name] = n + 1
		if n == 0 {
			out[i] = name
			continue
		}
		// Walk forward if the suffixed name itself collides with a later
		// original name.
		for {
			candidate := fmt.Sprintf("%s-%d", name, n)
			if _, taken := seen[candidate]; !taken {
				seen[candidate] = 1
				out[i] = candidate
				break
			}
			n++
		}
	}
	return out
}
