package scmatrix

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ReadGeneTable reads a CSV gene table and returns the values of the named
// column, in file order. Names are not de-duplicated here; Assemble does that
// once the matrix orientation is fixed.
func ReadGeneTable(path, nameColumn string) ([]string, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	col, ok := header[nameColumn]
	if !ok {
		return nil, fmt.Errorf("gene table %s: missing column %q", path, nameColumn)
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row[col]
	}
	return names, nil
}

// ReadCellTable reads a CSV cell metadata table with a barcode column and a
// sample label column.
func ReadCellTable(path, barcodeColumn, sampleColumn string) (*CellTable, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	bcol, ok := header[barcodeColumn]
	if !ok {
		return nil, fmt.Errorf("cell table %s: missing column %q", path, barcodeColumn)
	}
	scol, ok := header[sampleColumn]
	if !ok {
		return nil, fmt.Errorf("cell table %s: missing column %q", path, sampleColumn)
	}
	barcodes := make([]string, len(rows))
	samples := make([]string, len(rows))
	for i, row := range rows {
		barcodes[i] = row[bcol]
		samples[i] = row[scol]
	}
	return NewCellTable(barcodes, samples)
}

func readCSV(path string) (rows [][]string, header map[string]int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("table %s is empty", path)
	}
	header = make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[name] = i
	}
	return records[1:], header, nil
}

// Assemble validates the loaded triplets against the metadata tables and
// builds the gene-by-cell Matrix. The on-disk matrix is cell-by-gene: its row
// count must equal the cell table length and its column count the gene table
// length. Gene names are de-duplicated before use as row identifiers.
func Assemble(t *Triplets, genes []string, obs *CellTable) (*Matrix, error) {
	if t.Rows != obs.Len() {
		return nil, fmt.Errorf("matrix has %d rows but cell table has %d records", t.Rows, obs.Len())
	}
	if t.Cols != len(genes) {
		return nil, fmt.Errorf("matrix has %d columns but gene table has %d records", t.Cols, len(genes))
	}

	entries := make([][]Entry, obs.Len())
	for _, e := range t.Entries {
		// Transpose: on-disk rows are cells, columns are genes.
		entries[e.Row] = append(entries[e.Row], Entry{Gene: e.Col, Value: e.Value})
	}
	return NewFromColumns(DedupNames(genes), append([]string(nil), obs.Barcodes...), entries)
}

// Load reads the three input files and assembles the expression container.
// It fails on missing files or dimension mismatches.
func Load(matrixPath, genePath, cellPath, geneColumn, barcodeColumn, sampleColumn string) (*Matrix, *CellTable, error) {
	t, err := ReadMTX(matrixPath)
	if err != nil {
		return nil, nil, err
	}
	genes, err := ReadGeneTable(genePath, geneColumn)
	if err != nil {
		return nil, nil, err
	}
	obs, err := ReadCellTable(cellPath, barcodeColumn, sampleColumn)
	if err != nil {
		return nil, nil, err
	}
	m, err := Assemble(t, genes, obs)
	if err != nil {
		return nil, nil, err
	}
	return m, obs, nil
}
