package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted analysis run.
type Run struct {
	RunID         string          `json:"run_id"`
	CreatedAt     int64           `json:"created_at"`
	ParamsJSON    json.RawMessage `json:"params_json,omitempty"`
	LoadedCells   int             `json:"loaded_cells"`
	FilteredCells int             `json:"filtered_cells"`
	ClusterCount  int             `json:"cluster_count"`
}

// Cell is one surviving cell's persisted metadata and layout coordinates.
type Cell struct {
	RunID       string  `json:"run_id"`
	Barcode     string  `json:"barcode"`
	Sample      string  `json:"sample"`
	Cluster     int     `json:"cluster"`
	Highlight   string  `json:"highlight,omitempty"`
	TotalCounts float64 `json:"total_counts"`
	PctMito     float64 `json:"pct_mito"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// MarkerResult is one persisted cluster test outcome.
type MarkerResult struct {
	RunID    string  `json:"run_id"`
	Marker   string  `json:"marker"`
	Cluster  int     `json:"cluster"`
	P        float64 `json:"p"`
	FDR      float64 `json:"fdr"`
	MeanDiff float64 `json:"mean_diff"`
	NA       int     `json:"n_a"`
	NB       int     `json:"n_b"`
	Rank     int     `json:"rank"`
}

// PanelStat is one persisted dot-plot statistic.
type PanelStat struct {
	RunID    string  `json:"run_id"`
	Gene     string  `json:"gene"`
	Cluster  int     `json:"cluster"`
	MeanExpr float64 `json:"mean_expr"`
	PctExpr  float64 `json:"pct_expr"`
}

// RunStore provides persistence for analysis runs and their results.
type RunStore struct {
	db *DB
}

// NewRunStore creates a RunStore over the given database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO analysis_runs (
				run_id, created_at, params_json, loaded_cells, filtered_cells, cluster_count
			) VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, paramsStr, run.LoadedCells, run.FilteredCells, run.ClusterCount,
		)
		return err
	})
}

// ListRuns returns all runs ordered by creation time descending.
func (s *RunStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_at, params_json, loaded_cells, filtered_cells, cluster_count
		FROM analysis_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id, or nil when absent.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, created_at, params_json, loaded_cells, filtered_cells, cluster_count
		FROM analysis_runs
		WHERE run_id = ?`, runID)

	var r Run
	var paramsStr sql.NullString
	err := row.Scan(&r.RunID, &r.CreatedAt, &paramsStr, &r.LoadedCells, &r.FilteredCells, &r.ClusterCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var r Run
	var paramsStr sql.NullString
	if err := rows.Scan(&r.RunID, &r.CreatedAt, &paramsStr, &r.LoadedCells, &r.FilteredCells, &r.ClusterCount); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

// InsertCells bulk-inserts the per-cell records for a run in one transaction.
func (s *RunStore) InsertCells(runID string, cells []*Cell) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO run_cells (
				run_id, barcode, sample, cluster, highlight, total_counts, pct_mito, x, y
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range cells {
			if _, err := stmt.Exec(runID, c.Barcode, c.Sample, c.Cluster, c.Highlight, c.TotalCounts, c.PctMito, c.X, c.Y); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListCells returns the persisted cells for a run in insertion order.
func (s *RunStore) ListCells(runID string) ([]*Cell, error) {
	rows, err := s.db.Query(`
		SELECT run_id, barcode, sample, cluster, highlight, total_counts, pct_mito, x, y
		FROM run_cells
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	var cells []*Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.RunID, &c.Barcode, &c.Sample, &c.Cluster, &c.Highlight, &c.TotalCounts, &c.PctMito, &c.X, &c.Y); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		cells = append(cells, &c)
	}
	return cells, rows.Err()
}

// InsertMarkerResults persists the ranked marker results for a run.
func (s *RunStore) InsertMarkerResults(runID string, results []*MarkerResult) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO marker_results (
				run_id, marker, cluster, p, fdr, mean_diff, n_a, n_b, rank
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range results {
			if _, err := stmt.Exec(runID, r.Marker, r.Cluster, r.P, r.FDR, r.MeanDiff, r.NA, r.NB, r.Rank); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListMarkerResults returns the marker results for a run, ranked per marker.
func (s *RunStore) ListMarkerResults(runID string) ([]*MarkerResult, error) {
	rows, err := s.db.Query(`
		SELECT run_id, marker, cluster, p, fdr, mean_diff, n_a, n_b, rank
		FROM marker_results
		WHERE run_id = ?
		ORDER BY marker, rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query marker results: %w", err)
	}
	defer rows.Close()

	var results []*MarkerResult
	for rows.Next() {
		var r MarkerResult
		if err := rows.Scan(&r.RunID, &r.Marker, &r.Cluster, &r.P, &r.FDR, &r.MeanDiff, &r.NA, &r.NB, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan marker result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// InsertPanelStats persists the dot-plot statistics for a run.
func (s *RunStore) InsertPanelStats(runID string, stats []*PanelStat) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO panel_stats (
				run_id, gene, cluster, mean_expr, pct_expr
			) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range stats {
			if _, err := stmt.Exec(runID, p.Gene, p.Cluster, p.MeanExpr, p.PctExpr); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListPanelStats returns the dot-plot statistics for a run.
func (s *RunStore) ListPanelStats(runID string) ([]*PanelStat, error) {
	rows, err := s.db.Query(`
		SELECT run_id, gene, cluster, mean_expr, pct_expr
		FROM panel_stats
		WHERE run_id = ?
		ORDER BY gene, cluster`, runID)
	if err != nil {
		return nil, fmt.Errorf("query panel stats: %w", err)
	}
	defer rows.Close()

	var stats []*PanelStat
	for rows.Next() {
		var p PanelStat
		if err := rows.Scan(&p.RunID, &p.Gene, &p.Cluster, &p.MeanExpr, &p.PctExpr); err != nil {
			return nil, fmt.Errorf("scan panel stat: %w", err)
		}
		stats = append(stats, &p)
	}
	return stats, rows.Err()
}
