// Command analyze runs the single-cell expression pipeline over a counts
// matrix and its metadata tables, writes the report plots, and records the
// run in the results database for the report server.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"strconv"

	"github.com/google/uuid"

	"github.com/nucleus-data/expression.report/internal/config"
	"github.com/nucleus-data/expression.report/internal/db"
	"github.com/nucleus-data/expression.report/internal/markers"
	"github.com/nucleus-data/expression.report/internal/pipeline"
	"github.com/nucleus-data/expression.report/internal/report"
)

var (
	matrixPath = flag.String("matrix", "", "Path to the Matrix Market counts file (required)")
	genePath   = flag.String("genes", "", "Path to the gene metadata table (required)")
	cellPath   = flag.String("cells", "", "Path to the cell metadata table (required)")
	configPath = flag.String("config", "", "Path to an analysis config JSON (defaults to built-in parameters)")

	dbPath        = flag.String("db", "", "Results database path (skip persistence when empty)")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
	plotsDir      = flag.String("plots", "plots", "Directory for rendered plots (skip plots when empty)")
)

func main() {
	flag.Parse()

	if *matrixPath == "" || *genePath == "" || *cellPath == "" {
		log.Fatal("-matrix, -genes, and -cells are required")
	}

	var cfg *config.AnalysisConfig
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAnalysisConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.MustLoadDefaultConfig()
	}

	a, err := pipeline.Run(cfg, pipeline.Inputs{
		MatrixPath: *matrixPath,
		GenePath:   *genePath,
		CellPath:   *cellPath,
	})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	a.PrintTables()

	if *plotsDir != "" {
		if err := writePlots(a, *plotsDir); err != nil {
			log.Fatalf("Failed to write plots: %v", err)
		}
	}

	if *dbPath != "" {
		runID, err := persistRun(a, *dbPath, *migrationsDir)
		if err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
		log.Printf("recorded run %s in %s", runID, *dbPath)
	}
}

func writePlots(a *pipeline.Analysis, dir string) error {
	w, err := report.NewWriter(dir)
	if err != nil {
		return err
	}

	if err := w.CountsPlot(a.Obs, a.Config.GetMaxTotalCounts()); err != nil {
		return err
	}

	clusterLabels := make([]string, a.Obs.Len())
	for i, c := range a.Obs.Cluster {
		clusterLabels[i] = strconv.Itoa(c)
	}
	if err := w.EmbeddingPlot(a.Coords, clusterLabels, "Clusters", "umap_clusters.png"); err != nil {
		return err
	}
	if err := w.EmbeddingPlot(a.Coords, a.Obs.Samples, "Samples", "umap_samples.png"); err != nil {
		return err
	}
	if err := w.EmbeddingPlot(a.Coords, a.Obs.Highlight, "Highlighted clusters", "umap_highlights.png"); err != nil {
		return err
	}

	if err := w.DotPlot(a.Panel); err != nil {
		return err
	}

	log.Printf("wrote plots to %s", w.OutputDir())
	return nil
}

func persistRun(a *pipeline.Analysis, path, migrations string) (string, error) {
	resultsDB, err := db.NewDB(path)
	if err != nil {
		return "", err
	}
	defer resultsDB.Close()

	if err := resultsDB.MigrateUp(migrations); err != nil {
		return "", err
	}

	params, err := json.Marshal(a.Config)
	if err != nil {
		return "", err
	}

	store := db.NewRunStore(resultsDB)
	run := &db.Run{
		RunID:         uuid.New().String(),
		ParamsJSON:    params,
		LoadedCells:   a.QC.Loaded,
		FilteredCells: a.Obs.Len(),
		ClusterCount:  len(a.Obs.ClusterIDs()),
	}
	if err := store.InsertRun(run); err != nil {
		return "", err
	}

	cells := make([]*db.Cell, a.Obs.Len())
	for i := range cells {
		cells[i] = &db.Cell{
			RunID:       run.RunID,
			Barcode:     a.Obs.Barcodes[i],
			Sample:      a.Obs.Samples[i],
			Cluster:     a.Obs.Cluster[i],
			Highlight:   a.Obs.Highlight[i],
			TotalCounts: a.Obs.TotalCounts[i],
			PctMito:     a.Obs.PctMito[i],
			X:           a.Coords.At(i, 0),
			Y:           a.Coords.At(i, 1),
		}
	}
	if err := store.InsertCells(run.RunID, cells); err != nil {
		return "", err
	}

	var results []*db.MarkerResult
	for marker, ranked := range a.Markers {
		for rank, r := range ranked {
			results = append(results, &db.MarkerResult{
				RunID:    run.RunID,
				Marker:   marker,
				Cluster:  r.Cluster,
				P:        r.P,
				FDR:      r.FDR,
				MeanDiff: r.MeanDiff,
				NA:       r.NA,
				NB:       r.NB,
				Rank:     rank + 1,
			})
		}
	}
	if err := store.InsertMarkerResults(run.RunID, results); err != nil {
		return "", err
	}

	stats := make([]*db.PanelStat, len(a.Panel))
	for i, p := range a.Panel {
		stats[i] = toPanelStat(run.RunID, p)
	}
	if err := store.InsertPanelStats(run.RunID, stats); err != nil {
		return "", err
	}

	return run.RunID, nil
}

func toPanelStat(runID string, p markers.PanelStat) *db.PanelStat {
	return &db.PanelStat{
		RunID:    runID,
		Gene:     p.Gene,
		Cluster:  p.Cluster,
		MeanExpr: p.MeanExpr,
		PctExpr:  p.PctExpr,
	}
}
