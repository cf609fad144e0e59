// Package pipeline runs the four analysis stages in sequence over a single
// in-memory Analysis object: load, quality filter, normalization and
// embedding, and marker statistics. Stages run synchronously; a failure in
// any stage halts the run.
package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/nucleus-data/expression.report/internal/config"
	"github.com/nucleus-data/expression.report/internal/markers"
	"github.com/nucleus-data/expression.report/internal/monitoring"
	"github.com/nucleus-data/expression.report/internal/normalize"
	"github.com/nucleus-data/expression.report/internal/qc"
	"github.com/nucleus-data/expression.report/internal/reduce"
	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

// Inputs names the three files an analysis run loads.
type Inputs struct {
	MatrixPath string
	GenePath   string
	CellPath   string

	// Column names in the metadata tables.
	GeneColumn    string
	BarcodeColumn string
	SampleColumn  string
}

// DefaultColumns fills empty column names with the conventional ones.
func (in *Inputs) DefaultColumns() {
	if in.GeneColumn == "" {
		in.GeneColumn = "gene_name"
	}
	if in.BarcodeColumn == "" {
		in.BarcodeColumn = "barcode"
	}
	if in.SampleColumn == "" {
		in.SampleColumn = "sample"
	}
}

// Analysis owns the expression matrix and every derived object for the
// duration of a run. Nothing outside the pipeline mutates it.
type Analysis struct {
	Config *config.AnalysisConfig

	Counts *scmatrix.Matrix // raw counts, surviving cells only
	Norm   *scmatrix.Matrix // log-normalized expression
	Obs    *scmatrix.CellTable

	HVGs   []int
	PCs    *mat.Dense
	Coords *mat.Dense // 2D layout, visualization only

	QC      qc.Report
	Markers map[string][]markers.Result
	Panel   []markers.PanelStat
}

// Run executes the full pipeline. The returned Analysis holds every
// intermediate needed by the report and persistence layers.
func Run(cfg *config.AnalysisConfig, in Inputs) (*Analysis, error) {
	in.DefaultColumns()
	a := &Analysis{Config: cfg}

	// Stage 1: load.
	m, obs, err := scmatrix.Load(in.MatrixPath, in.GenePath, in.CellPath, in.GeneColumn, in.BarcodeColumn, in.SampleColumn)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	monitoring.Logf("pipeline: loaded %d genes x %d cells (%d nonzero)", m.NumGenes(), m.NumCells(), m.NNZ())

	// Stage 2: quality filter.
	qc.ComputeMetrics(m, obs, cfg.GetMitoPrefix())
	a.Counts, a.Obs, a.QC = qc.Apply(m, obs,
		qc.SampleAllowList(cfg.GetAllowedSamples()),
		qc.MaxTotalCounts(cfg.GetMaxTotalCounts()),
		qc.MaxPctMito(cfg.GetMaxPctMito()),
	)
	if a.Obs.Len() == 0 {
		return nil, fmt.Errorf("quality filter removed every cell")
	}

	// Stage 3: normalization and embedding.
	a.Norm = normalize.LogNormalize(a.Counts, cfg.GetTargetSum())
	a.HVGs = normalize.HighlyVariable(a.Norm, cfg.GetVariableGenes())
	monitoring.Logf("pipeline: selected %d variable genes", len(a.HVGs))

	scaled := normalize.Scale(a.Norm, a.HVGs, cfg.GetScaleMax())
	a.PCs, err = reduce.PCA(scaled, cfg.GetComponents())
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	neighbors := reduce.KNN(a.PCs, cfg.GetNeighbors())
	g := reduce.NeighborGraph(neighbors)
	a.Obs.Cluster = reduce.Cluster(g, a.Obs.Len(), cfg.GetResolution(), cfg.GetSeed())
	monitoring.Logf("pipeline: %d clusters at resolution %.2f", len(a.Obs.ClusterIDs()), cfg.GetResolution())

	a.Coords = reduce.Layout2D(a.PCs, neighbors, cfg.GetSeed(), 0)

	// Stage 4: marker statistics and annotation panel.
	a.Markers = markers.RankClusters(a.Norm, a.Obs, markers.TestConfig{
		SampleA: cfg.GetSampleA(),
		SampleB: cfg.GetSampleB(),
		Markers: []string{cfg.GetThetaMarker(), cfg.GetGammaMarker()},
	})
	a.Panel = markers.PanelStats(a.Norm, a.Obs, cfg.GetMarkerPanel())
	markers.ApplyHighlights(a.Obs, cfg.GetThetaCluster(), cfg.GetGammaCluster())

	for _, marker := range []string{cfg.GetThetaMarker(), cfg.GetGammaMarker()} {
		if best := markers.Best(a.Markers, marker); best != nil {
			monitoring.Logf("pipeline: %s best cluster %d (p=%.4g, diff=%+.4f)", marker, best.Cluster, best.P, best.MeanDiff)
		}
	}
	return a, nil
}

// PrintTables writes the ranked marker tables through the package logger.
func (a *Analysis) PrintTables() {
	for _, marker := range []string{a.Config.GetThetaMarker(), a.Config.GetGammaMarker()} {
		results := a.Markers[marker]
		if len(results) == 0 {
			monitoring.Logf("markers: no valid tests for %s", marker)
			continue
		}
		monitoring.Logf("ranked clusters for %s:\n%s", marker, markers.FormatTable(results))
	}
}
