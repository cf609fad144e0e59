package scmatrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadGeneTable(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, "genes.csv", "gene_id,gene_name\nENS1,Hcn1\nENS2,Pvalb\n")
	names, err := ReadGeneTable(path, "gene_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hcn1", "Pvalb"}, names)

	t.Run("missing column", func(t *testing.T) {
		_, err := ReadGeneTable(path, "symbol")
		assert.Error(t, err)
	})
}

func TestReadCellTable(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, "cells.csv", "barcode,sample\nAAA,HC1\nCCC,SOR1\n")
	obs, err := ReadCellTable(path, "barcode", "sample")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "CCC"}, obs.Barcodes)
	assert.Equal(t, []string{"HC1", "SOR1"}, obs.Samples)
	assert.Equal(t, []int{-1, -1}, obs.Cluster)

	t.Run("missing column", func(t *testing.T) {
		_, err := ReadCellTable(path, "barcode", "condition")
		assert.Error(t, err)
	})

	t.Run("empty table", func(t *testing.T) {
		empty := writeTempCSV(t, "empty.csv", "")
		_, err := ReadCellTable(empty, "barcode", "sample")
		assert.Error(t, err)
	})
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	obs, err := NewCellTable([]string{"AAA", "CCC"}, []string{"HC1", "SOR1"})
	require.NoError(t, err)

	// On-disk orientation is cell-by-gene: 2 rows (cells), 3 columns (genes).
	tr := &Triplets{Rows: 2, Cols: 3, Entries: []Triplet{
		{Row: 0, Col: 0, Value: 5},
		{Row: 0, Col: 2, Value: 1},
		{Row: 1, Col: 1, Value: 3},
	}}

	m, err := Assemble(tr, []string{"Hcn1", "Pvalb", "Gad1"}, obs)
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumGenes())
	assert.Equal(t, 2, m.NumCells())
	// Transposed: gene rows, cell columns.
	assert.Equal(t, []float64{5, 0}, m.GeneValues(0))
	assert.Equal(t, []float64{0, 3}, m.GeneValues(1))
	assert.Equal(t, []float64{1, 0}, m.GeneValues(2))
}

func TestAssembleDimensionMismatch(t *testing.T) {
	t.Parallel()

	obs, err := NewCellTable([]string{"AAA"}, []string{"HC1"})
	require.NoError(t, err)

	t.Run("cell count", func(t *testing.T) {
		tr := &Triplets{Rows: 2, Cols: 1}
		_, err := Assemble(tr, []string{"Hcn1"}, obs)
		assert.ErrorContains(t, err, "cell table")
	})

	t.Run("gene count", func(t *testing.T) {
		tr := &Triplets{Rows: 1, Cols: 2}
		_, err := Assemble(tr, []string{"Hcn1"}, obs)
		assert.ErrorContains(t, err, "gene table")
	})
}

func TestAssembleDedupsGeneNames(t *testing.T) {
	t.Parallel()

	obs, err := NewCellTable([]string{"AAA"}, []string{"HC1"})
	require.NoError(t, err)
	tr := &Triplets{Rows: 1, Cols: 2, Entries: []Triplet{{Row: 0, Col: 1, Value: 2}}}

	m, err := Assemble(tr, []string{"Hcn1", "Hcn1"}, obs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hcn1", "Hcn1-1"}, m.Genes)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mtx := filepath.Join(dir, "matrix.mtx")
	require.NoError(t, os.WriteFile(mtx, []byte(`%%MatrixMarket matrix coordinate integer general
2 2 2
1 1 4
2 2 6
`), 0644))
	genes := filepath.Join(dir, "genes.csv")
	require.NoError(t, os.WriteFile(genes, []byte("gene_name\nHcn1\nPvalb\n"), 0644))
	cells := filepath.Join(dir, "cells.csv")
	require.NoError(t, os.WriteFile(cells, []byte("barcode,sample\nAAA,HC1\nCCC,SOR1\n"), 0644))

	m, obs, err := Load(mtx, genes, cells, "gene_name", "barcode", "sample")
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumGenes())
	assert.Equal(t, 2, obs.Len())
	assert.Equal(t, []float64{4, 0}, m.GeneValues(0))
	assert.Equal(t, []float64{0, 6}, m.GeneValues(1))
}
