// Package report renders the pipeline outputs as PNG files: the count
// distribution with the multiplet threshold, the 2D embedding colored by
// sample, cluster or highlight label, and the canonical marker dot plot.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/nucleus-data/expression.report/internal/markers"
	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

// Writer generates plot files under a single output directory.
type Writer struct {
	outputDir string
}

// NewWriter creates the output directory if needed.
func NewWriter(outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &Writer{outputDir: outputDir}, nil
}

// OutputDir returns the directory plots are written to.
func (w *Writer) OutputDir() string { return w.outputDir }

// CountsPlot draws the per-sample distribution of total transcript counts as
// box plots with a horizontal line at the multiplet threshold.
func (w *Writer) CountsPlot(obs *scmatrix.CellTable, threshold float64) error {
	bySample := make(map[string]plotter.Values)
	var samples []string
	for i := 0; i < obs.Len(); i++ {
		s := obs.Samples[i]
		if _, ok := bySample[s]; !ok {
			samples = append(samples, s)
		}
		bySample[s] = append(bySample[s], obs.TotalCounts[i])
	}
	sort.Strings(samples)

	p := plot.New()
	p.Title.Text = "Total counts per cell"
	p.Y.Label.Text = "Counts"

	for i, s := range samples {
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(i), bySample[s])
		if err != nil {
			return err
		}
		p.Add(box)
	}
	p.NominalX(samples...)

	line, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: threshold},
		{X: float64(len(samples)) - 0.5, Y: threshold},
	})
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 200, A: 255}
	line.Width = vg.Points(1)
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(line)
	p.Legend.Add("threshold", line)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(w.outputDir, "counts_distribution.png"))
}

// EmbeddingPlot draws the 2D layout as a scatter with one colored series per
// category label. Empty labels are drawn in grey, which keeps highlight
// plots readable.
func (w *Writer) EmbeddingPlot(coords *mat.Dense, labels []string, title, filename string) error {
	n, _ := coords.Dims()
	if n != len(labels) {
		return fmt.Errorf("report: %d coordinates but %d labels", n, len(labels))
	}

	byLabel := make(map[string]plotter.XYs)
	var names []string
	for i := 0; i < n; i++ {
		l := labels[i]
		if _, ok := byLabel[l]; !ok {
			names = append(names, l)
		}
		byLabel[l] = append(byLabel[l], plotter.XY{X: coords.At(i, 0), Y: coords.At(i, 1)})
	}
	sort.Strings(names)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "UMAP 1"
	p.Y.Label.Text = "UMAP 2"

	colors := CategoryColors(len(names))
	for i, name := range names {
		sc, err := plotter.NewScatter(byLabel[name])
		if err != nil {
			return err
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		if name == "" {
			sc.GlyphStyle.Color = color.RGBA{R: 190, G: 190, B: 190, A: 255}
		} else {
			sc.GlyphStyle.Color = colors[i]
		}
		p.Add(sc)
		if name != "" {
			p.Legend.Add(name, sc)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false

	return p.Save(7*vg.Inch, 6*vg.Inch, filepath.Join(w.outputDir, filename))
}

// DotPlot draws the canonical marker panel: one glyph per gene and cluster,
// radius from the percent of cells expressing, color ramp from the mean
// expression.
func (w *Writer) DotPlot(stats []markers.PanelStat) error {
	if len(stats) == 0 {
		return nil
	}

	var genes []string
	geneRow := make(map[string]int)
	var clusters []int
	clusterCol := make(map[int]int)
	maxMean := 0.0
	for _, s := range stats {
		if _, ok := geneRow[s.Gene]; !ok {
			geneRow[s.Gene] = len(genes)
			genes = append(genes, s.Gene)
		}
		if _, ok := clusterCol[s.Cluster]; !ok {
			clusterCol[s.Cluster] = len(clusters)
			clusters = append(clusters, s.Cluster)
		}
		if s.MeanExpr > maxMean {
			maxMean = s.MeanExpr
		}
	}
	if maxMean == 0 {
		maxMean = 1
	}

	pts := make(plotter.XYs, len(stats))
	for i, s := range stats {
		pts[i] = plotter.XY{X: float64(clusterCol[s.Cluster]), Y: float64(geneRow[s.Gene])}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		s := stats[i]
		radius := vg.Points(1 + 5*s.PctExpr/100)
		// Light-to-dark blue ramp over mean expression.
		t := s.MeanExpr / maxMean
		c := color.RGBA{
			R: uint8(230 - 200*t),
			G: uint8(235 - 190*t),
			B: 255,
			A: 255,
		}
		return draw.GlyphStyle{Color: c, Radius: radius, Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	p.Title.Text = "Canonical marker panel"
	p.Y.Label.Text = "Gene"
	p.X.Label.Text = "Cluster"
	p.Add(sc)
	p.NominalY(genes...)
	names := make([]string, len(clusters))
	for i, c := range clusters {
		names[i] = fmt.Sprintf("%d", c)
	}
	p.NominalX(names...)

	height := vg.Length(1+len(genes)) * vg.Points(24)
	width := vg.Length(2+len(clusters)) * vg.Points(36)
	return p.Save(width, height, filepath.Join(w.outputDir, "marker_dotplot.png"))
}
