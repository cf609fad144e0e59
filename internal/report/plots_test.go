package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nucleus-data/expression.report/internal/markers"
	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

func assertPlotFile(t *testing.T, dir, name string) {
	t.Helper()
	info, err := os.Stat(filepath.Join(dir, name))
	require.NoError(t, err, "expected plot file %s", name)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCountsPlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	obs, err := scmatrix.NewCellTable(
		[]string{"A", "B", "C", "D"},
		[]string{"HC1", "HC1", "SOR1", "SOR1"},
	)
	require.NoError(t, err)
	obs.TotalCounts = []float64{1200, 8000, 400, 25000}

	require.NoError(t, w.CountsPlot(obs, 35000))
	assertPlotFile(t, dir, "counts_distribution.png")
}

func TestEmbeddingPlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	coords := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 1,
		-1, 2,
		3, -2,
	})

	require.NoError(t, w.EmbeddingPlot(coords, []string{"0", "0", "1", ""}, "Clusters", "umap_clusters.png"))
	assertPlotFile(t, dir, "umap_clusters.png")

	t.Run("label length mismatch", func(t *testing.T) {
		err := w.EmbeddingPlot(coords, []string{"0"}, "Clusters", "bad.png")
		assert.Error(t, err)
	})
}

func TestDotPlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	stats := []markers.PanelStat{
		{Gene: "Snap25", Cluster: 0, MeanExpr: 2.0, PctExpr: 95},
		{Gene: "Snap25", Cluster: 1, MeanExpr: 0.5, PctExpr: 40},
		{Gene: "Aqp4", Cluster: 0, MeanExpr: 0.1, PctExpr: 5},
		{Gene: "Aqp4", Cluster: 1, MeanExpr: 1.8, PctExpr: 80},
	}
	require.NoError(t, w.DotPlot(stats))
	assertPlotFile(t, dir, "marker_dotplot.png")

	t.Run("empty stats writes nothing", func(t *testing.T) {
		empty := t.TempDir()
		w, err := NewWriter(empty)
		require.NoError(t, err)
		require.NoError(t, w.DotPlot(nil))
		_, err = os.Stat(filepath.Join(empty, "marker_dotplot.png"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestCategoryColors(t *testing.T) {
	t.Parallel()

	colors := CategoryColors(8)
	require.Len(t, colors, 8)
	seen := make(map[[4]uint32]bool)
	for _, c := range colors {
		r, g, b, a := c.RGBA()
		key := [4]uint32{r, g, b, a}
		assert.False(t, seen[key], "palette repeats a color")
		seen[key] = true
	}

	assert.Nil(t, CategoryColors(0))
}
