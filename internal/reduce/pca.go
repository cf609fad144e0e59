// Package reduce computes the embeddings and cluster labels: PCA over the
// scaled variable-gene matrix, a kNN graph in component space, Louvain
// community detection, and a 2D layout for visualization.
package reduce

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects x (cells by genes, already centered by the scaling stage) onto
// its first nComponents principal components. The returned matrix is cells by
// nComponents.
func PCA(x *mat.Dense, nComponents int) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if nComponents > cols {
		nComponents = cols
	}
	if nComponents > rows {
		nComponents = rows
	}
	if nComponents < 1 {
		return nil, fmt.Errorf("reduce: cannot compute %d components from %dx%d matrix", nComponents, rows, cols)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("reduce: principal component decomposition failed")
	}
	var vec mat.Dense
	pc.VectorsTo(&vec)

	var proj mat.Dense
	proj.Mul(x, vec.Slice(0, cols, 0, nComponents))
	return &proj, nil
}
