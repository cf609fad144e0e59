package scmatrix

import "fmt"

// CellTable holds one record per cell: the barcode, the sample-of-origin
// label, and the derived columns the pipeline stages add as they run. Columns
// are parallel slices indexed like the matrix columns. Cells are only ever
// removed (by Subset), never added.
type CellTable struct {
	Barcodes []string
	Samples  []string

	// Derived QC metrics, filled by ComputeQCMetrics.
	TotalCounts []float64
	PctMito     []float64

	// Cluster assignment, -1 until the clustering stage runs.
	Cluster []int

	// Highlight label for the manually chosen marker populations, empty for
	// unlabelled cells.
	Highlight []string
}

// NewCellTable builds a CellTable from barcodes and sample labels.
func NewCellTable(barcodes, samples []string) (*CellTable, error) {
	if len(barcodes) != len(samples) {
		return nil, fmt.Errorf("scmatrix: %d barcodes but %d sample labels", len(barcodes), len(samples))
	}
	cluster := make([]int, len(barcodes))
	for i := range cluster {
		cluster[i] = -1
	}
	return &CellTable{
		Barcodes:  barcodes,
		Samples:   samples,
		Cluster:   cluster,
		Highlight: make([]string, len(barcodes)),
	}, nil
}

// Len returns the number of cells in the table.
func (t *CellTable) Len() int { return len(t.Barcodes) }

// Subset returns a new CellTable containing only the rows at the given
// indices, in order. Derived columns are carried along when present.
func (t *CellTable) Subset(keep []int) *CellTable {
	sub := &CellTable{
		Barcodes:  make([]string, len(keep)),
		Samples:   make([]string, len(keep)),
		Cluster:   make([]int, len(keep)),
		Highlight: make([]string, len(keep)),
	}
	if t.TotalCounts != nil {
		sub.TotalCounts = make([]float64, len(keep))
	}
	if t.PctMito != nil {
		sub.PctMito = make([]float64, len(keep))
	}
	for n, i := range keep {
		sub.Barcodes[n] = t.Barcodes[i]
		sub.Samples[n] = t.Samples[i]
		sub.Cluster[n] = t.Cluster[i]
		sub.Highlight[n] = t.Highlight[i]
		if t.TotalCounts != nil {
			sub.TotalCounts[n] = t.TotalCounts[i]
		}
		if t.PctMito != nil {
			sub.PctMito[n] = t.PctMito[i]
		}
	}
	return sub
}

// ClusterIDs returns the sorted unique cluster labels, excluding unassigned
// cells.
func (t *CellTable) ClusterIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, c := range t.Cluster {
		if c >= 0 && !seen[c] {
			seen[c] = true
			ids = append(ids, c)
		}
	}
	// insertion sort, label counts are small
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}
