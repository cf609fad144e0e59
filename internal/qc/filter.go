// Package qc applies the ordered cell quality filters. Filters are boolean
// predicates over cell metadata; each stage operates on the survivors of the
// previous one and cells are never re-admitted once removed.
package qc

import (
	"github.com/nucleus-data/expression.report/internal/monitoring"
	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

// Stage is one named predicate filter. Keep reports whether the cell at the
// given index in the current table survives.
type Stage struct {
	Name string
	Keep func(obs *scmatrix.CellTable, i int) bool
}

// StageResult records the surviving cell count after one stage.
type StageResult struct {
	Name      string
	Survivors int
}

// Report summarises a filter run.
type Report struct {
	Loaded int
	Stages []StageResult
}

// Final returns the surviving cell count after the last stage, or the loaded
// count if no stages ran.
func (r Report) Final() int {
	if len(r.Stages) == 0 {
		return r.Loaded
	}
	return r.Stages[len(r.Stages)-1].Survivors
}

// ComputeMetrics fills the derived QC columns of obs: per-cell total counts
// and mitochondrial percentage (genes matching the name prefix).
func ComputeMetrics(m *scmatrix.Matrix, obs *scmatrix.CellTable, mitoPrefix string) {
	obs.TotalCounts = m.TotalCounts()
	mito := m.PrefixCounts(mitoPrefix)
	obs.PctMito = make([]float64, len(mito))
	for i := range mito {
		if obs.TotalCounts[i] > 0 {
			obs.PctMito[i] = 100 * mito[i] / obs.TotalCounts[i]
		}
	}
}

// SampleAllowList keeps cells whose sample label is in the allowed set.
func SampleAllowList(allowed []string) Stage {
	set := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		set[s] = true
	}
	return Stage{
		Name: "sample_allow_list",
		Keep: func(obs *scmatrix.CellTable, i int) bool { return set[obs.Samples[i]] },
	}
}

// MaxTotalCounts keeps cells whose total transcript count is strictly below
// the threshold. Cells at or above it are suspected multiplets.
func MaxTotalCounts(max float64) Stage {
	return Stage{
		Name: "max_total_counts",
		Keep: func(obs *scmatrix.CellTable, i int) bool { return obs.TotalCounts[i] < max },
	}
}

// MaxPctMito keeps cells whose mitochondrial percentage is strictly below the
// threshold.
func MaxPctMito(maxPct float64) Stage {
	return Stage{
		Name: "max_pct_mito",
		Keep: func(obs *scmatrix.CellTable, i int) bool { return obs.PctMito[i] < maxPct },
	}
}

// Apply runs the stages in order against the matrix and cell table, returning
// the filtered pair and a report of surviving counts per stage.
func Apply(m *scmatrix.Matrix, obs *scmatrix.CellTable, stages ...Stage) (*scmatrix.Matrix, *scmatrix.CellTable, Report) {
	report := Report{Loaded: obs.Len()}

	cur := obs
	curM := m
	for _, stage := range stages {
		var keep []int
		for i := 0; i < cur.Len(); i++ {
			if stage.Keep(cur, i) {
				keep = append(keep, i)
			}
		}
		curM = curM.SubsetCells(keep)
		cur = cur.Subset(keep)
		report.Stages = append(report.Stages, StageResult{Name: stage.Name, Survivors: cur.Len()})
		monitoring.Logf("qc: %s: %d cells remain", stage.Name, cur.Len())
	}
	return curM, cur, report
}
