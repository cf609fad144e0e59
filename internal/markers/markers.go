// Package markers implements the per-cluster marker gene statistics: a
// rank-based two-sample test comparing the two conditions within each
// cluster, FDR correction across clusters, and the descriptive canonical
// panel statistics used for cell-type annotation.
package markers

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/nucleus-data/expression.report/internal/monitoring"
	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

// Result is one cluster's test outcome for one marker gene. MeanDiff is the
// sample B mean minus the sample A mean of normalized expression.
type Result struct {
	Marker   string
	Cluster  int
	P        float64
	MeanDiff float64
	FDR      float64
	NA, NB   int
}

// TestConfig names the two conditions compared within each cluster.
type TestConfig struct {
	SampleA string
	SampleB string
	Markers []string
}

// RankClusters runs the marker test for every cluster and marker. Markers
// absent from the dataset and cluster/condition combinations with an empty
// subset on either side are skipped: they produce no entry. Results per
// marker are FDR-corrected across clusters and sorted ascending by raw
// p-value with a stable sort, so ties keep the original cluster ordering.
func RankClusters(norm *scmatrix.Matrix, obs *scmatrix.CellTable, cfg TestConfig) map[string][]Result {
	clusters := obs.ClusterIDs()
	out := make(map[string][]Result, len(cfg.Markers))

	for _, marker := range cfg.Markers {
		gene, ok := norm.GeneIndex(marker)
		if !ok {
			monitoring.Logf("markers: %s not present in dataset, skipping", marker)
			continue
		}
		values := norm.GeneValues(gene)

		var results []Result
		for _, c := range clusters {
			var a, b []float64
			for i := 0; i < obs.Len(); i++ {
				if obs.Cluster[i] != c {
					continue
				}
				switch obs.Samples[i] {
				case cfg.SampleA:
					a = append(a, values[i])
				case cfg.SampleB:
					b = append(b, values[i])
				}
			}
			if len(a) == 0 || len(b) == 0 {
				continue
			}
			results = append(results, Result{
				Marker:   marker,
				Cluster:  c,
				P:        MannWhitney(a, b),
				MeanDiff: mean(b) - mean(a),
				NA:       len(a),
				NB:       len(b),
			})
		}
		if len(results) == 0 {
			continue
		}

		pvals := make([]float64, len(results))
		for i, r := range results {
			pvals[i] = r.P
		}
		fdr := BenjaminiHochberg(pvals)
		for i := range results {
			results[i].FDR = fdr[i]
		}

		sort.SliceStable(results, func(i, j int) bool { return results[i].P < results[j].P })
		out[marker] = results
	}
	return out
}

// Best returns the top-ranked cluster result for a marker, or nil when the
// marker produced no valid tests.
func Best(results map[string][]Result, marker string) *Result {
	r := results[marker]
	if len(r) == 0 {
		return nil
	}
	return &r[0]
}

// FormatTable renders one marker's ranked results as an aligned text table
// for console output.
func FormatTable(results []Result) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "cluster\tp\tfdr\tmean_diff\tn_a\tn_b")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%.4g\t%.4g\t%+.4f\t%d\t%d\n", r.Cluster, r.P, r.FDR, r.MeanDiff, r.NA, r.NB)
	}
	w.Flush()
	return sb.String()
}

// PanelStat is the per-cluster descriptive statistic for one canonical panel
// gene: mean normalized expression and the fraction of cells expressing it.
type PanelStat struct {
	Gene     string
	Cluster  int
	MeanExpr float64
	PctExpr  float64
}

// PanelStats intersects the canonical marker panel with the dataset genes
// and tabulates mean expression and percent-expressing per cluster. Purely
// descriptive; no test is run.
func PanelStats(norm *scmatrix.Matrix, obs *scmatrix.CellTable, panel []string) []PanelStat {
	clusters := obs.ClusterIDs()
	clusterSize := make(map[int]int)
	for _, c := range obs.Cluster {
		clusterSize[c]++
	}

	var stats []PanelStat
	for _, gname := range panel {
		gene, ok := norm.GeneIndex(gname)
		if !ok {
			continue
		}
		values := norm.GeneValues(gene)
		for _, c := range clusters {
			sum := 0.0
			expressed := 0
			for i := 0; i < obs.Len(); i++ {
				if obs.Cluster[i] != c {
					continue
				}
				sum += values[i]
				if values[i] > 0 {
					expressed++
				}
			}
			size := clusterSize[c]
			if size == 0 {
				continue
			}
			stats = append(stats, PanelStat{
				Gene:     gname,
				Cluster:  c,
				MeanExpr: sum / float64(size),
				PctExpr:  100 * float64(expressed) / float64(size),
			})
		}
	}
	return stats
}

// ApplyHighlights sets the highlight label for cells in the manually chosen
// theta and gamma clusters. Cluster ids come from visual inspection of the
// panel dot plot, not from a derived rule.
func ApplyHighlights(obs *scmatrix.CellTable, thetaCluster, gammaCluster int) {
	for i := range obs.Highlight {
		switch obs.Cluster[i] {
		case thetaCluster:
			obs.Highlight[i] = "theta"
		case gammaCluster:
			obs.Highlight[i] = "gamma"
		default:
			obs.Highlight[i] = ""
		}
	}
}
