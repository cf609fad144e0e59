package api

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/nucleus-data/expression.report/internal/db"
	"github.com/nucleus-data/expression.report/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// embeddingChartHandler renders the 2D embedding as an HTML scatter chart.
// Query params:
//   - run_id (optional; defaults to latest run)
//   - color (optional; "cluster", "sample", or "highlight"; default cluster)
//   - max_points (optional; default 20000) to reduce payload size
func (s *Server) embeddingChartHandler(w http.ResponseWriter, r *http.Request) {
	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	cells, err := s.store.ListCells(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(cells) == 0 {
		httputil.NotFound(w, "no cells recorded for run "+runID)
		return
	}

	colorBy := r.URL.Query().Get("color")
	switch colorBy {
	case "":
		colorBy = "cluster"
	case "cluster", "sample", "highlight":
	default:
		httputil.BadRequest(w, "color must be cluster, sample or highlight")
		return
	}

	maxPoints := 20000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 100000 {
			maxPoints = v
		}
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if len(cells) > maxPoints {
		stride = int(math.Ceil(float64(len(cells)) / float64(maxPoints)))
	}

	series := make(map[string][]opts.ScatterData)
	for i := 0; i < len(cells); i += stride {
		c := cells[i]
		var key string
		switch colorBy {
		case "sample":
			key = c.Sample
		case "highlight":
			key = c.Highlight
			if key == "" {
				key = "other"
			}
		default:
			key = fmt.Sprintf("cluster %d", c.Cluster)
		}
		series[key] = append(series[key], opts.ScatterData{Value: []interface{}{c.X, c.Y}})
	}

	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cell Embedding", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Cell Embedding (UMAP)", Subtitle: fmt.Sprintf("run=%s cells=%d color=%s stride=%d", runID, len(cells), colorBy, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "UMAP 1", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "UMAP 2", NameLocation: "middle", NameGap: 30}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	for _, k := range keys {
		scatter.AddSeries(k, series[k], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	s.renderChart(w, scatter)
}

// markerChartHandler renders per-cluster marker test results as a bar chart
// of -log10(p), one series per marker gene.
func (s *Server) markerChartHandler(w http.ResponseWriter, r *http.Request) {
	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	results, err := s.store.ListMarkerResults(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(results) == 0 {
		httputil.NotFound(w, "no marker results recorded for run "+runID)
		return
	}

	clusterSet := make(map[int]bool)
	byMarker := make(map[string]map[int]float64)
	for _, res := range results {
		clusterSet[res.Cluster] = true
		if byMarker[res.Marker] == nil {
			byMarker[res.Marker] = make(map[int]float64)
		}
		p := res.P
		if p <= 0 {
			p = 1e-300
		}
		byMarker[res.Marker][res.Cluster] = -math.Log10(p)
	}

	clusters := make([]int, 0, len(clusterSet))
	for c := range clusterSet {
		clusters = append(clusters, c)
	}
	sort.Ints(clusters)

	x := make([]string, len(clusters))
	for i, c := range clusters {
		x[i] = strconv.Itoa(c)
	}

	markers := make([]string, 0, len(byMarker))
	for m := range byMarker {
		markers = append(markers, m)
	}
	sort.Strings(markers)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Marker Tests", Theme: "dark", Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Marker enrichment by cluster", Subtitle: "bar height is -log10(p), cluster vs rest"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cluster"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-log10(p)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	bar.SetXAxis(x)
	for _, m := range markers {
		data := make([]opts.BarData, len(clusters))
		for i, c := range clusters {
			data[i] = opts.BarData{Value: byMarker[m][c]}
		}
		bar.AddSeries(m, data)
	}

	s.renderChart(w, bar)
}

// panelChartHandler renders the canonical marker panel as a dot plot: one
// point per gene and cluster, symbol size from the fraction of expressing
// cells, color from the mean expression.
func (s *Server) panelChartHandler(w http.ResponseWriter, r *http.Request) {
	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	stats, err := s.store.ListPanelStats(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(stats) == 0 {
		httputil.NotFound(w, "no panel stats recorded for run "+runID)
		return
	}

	geneSet := make(map[string]int)
	clusterSet := make(map[int]bool)
	maxMean := 0.0
	for _, p := range stats {
		if _, ok := geneSet[p.Gene]; !ok {
			// preserve panel order as stored
			geneSet[p.Gene] = len(geneSet)
		}
		clusterSet[p.Cluster] = true
		if p.MeanExpr > maxMean {
			maxMean = p.MeanExpr
		}
	}
	if maxMean == 0 {
		maxMean = 1
	}

	clusters := make([]int, 0, len(clusterSet))
	for c := range clusterSet {
		clusters = append(clusters, c)
	}
	sort.Ints(clusters)
	clusterPos := make(map[int]int, len(clusters))
	for i, c := range clusters {
		clusterPos[c] = i
	}

	data := make([]opts.ScatterData, 0, len(stats))
	for _, p := range stats {
		data = append(data, opts.ScatterData{
			Value: []interface{}{clusterPos[p.Cluster], geneSet[p.Gene], p.MeanExpr, p.PctExpr, p.Gene},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Marker Panel", Theme: "dark", Width: "900px", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Canonical marker panel", Subtitle: "size = % expressing, color = mean log-normalized expression"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cluster", Min: -1, Max: len(clusters)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "gene", Min: -1, Max: len(geneSet)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxMean),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("panel", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	s.renderChart(w, scatter)
}

// qcChartHandler renders the per-sample QC metric distributions of the
// surviving cells as bar summaries (count, median counts, median pct mito).
func (s *Server) qcChartHandler(w http.ResponseWriter, r *http.Request) {
	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	cells, err := s.store.ListCells(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(cells) == 0 {
		httputil.NotFound(w, "no cells recorded for run "+runID)
		return
	}

	bySample := make(map[string][]*db.Cell)
	for _, c := range cells {
		bySample[c.Sample] = append(bySample[c.Sample], c)
	}
	samples := make([]string, 0, len(bySample))
	for name := range bySample {
		samples = append(samples, name)
	}
	sort.Strings(samples)

	counts := make([]opts.BarData, len(samples))
	medCounts := make([]opts.BarData, len(samples))
	medMito := make([]opts.BarData, len(samples))
	for i, name := range samples {
		group := bySample[name]
		counts[i] = opts.BarData{Value: len(group)}
		tc := make([]float64, len(group))
		pm := make([]float64, len(group))
		for j, c := range group {
			tc[j] = c.TotalCounts
			pm[j] = c.PctMito
		}
		medCounts[i] = opts.BarData{Value: median(tc)}
		medMito[i] = opts.BarData{Value: median(pm)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "QC Summary", Theme: "dark", Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "QC summary by sample", Subtitle: "surviving cells after filtering"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(samples).
		AddSeries("cells", counts, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("median counts", medCounts).
		AddSeries("median % mito", medMito)

	s.renderChart(w, bar)
}

type chartRenderer interface {
	Render(w io.Writer) error
}

func (s *Server) renderChart(w http.ResponseWriter, chart chartRenderer) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<title>Expression Report: %s</title>
<style>
body { background: #111; color: #ddd; font-family: sans-serif; margin: 1em; }
iframe { border: 1px solid #333; background: #111; width: 48%%; height: 760px; }
</style>
</head>
<body>
<h2>Expression analysis run %s</h2>
<iframe src="/api/charts/embedding%s"></iframe>
<iframe src="/api/charts/embedding%s"></iframe>
<iframe src="/api/charts/markers%s"></iframe>
<iframe src="/api/charts/panel%s"></iframe>
<iframe src="/api/charts/qc%s"></iframe>
</body>
</html>
`

// dashboardHandler renders a simple dashboard with iframes to the run charts.
func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/charts/" && r.URL.Path != "/charts" {
		httputil.NotFound(w, "unknown chart route: "+r.URL.Path)
		return
	}

	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	safeRunID := html.EscapeString(runID)
	qs := "?run_id=" + url.QueryEscape(runID)
	safeQs := html.EscapeString(qs)

	doc := fmt.Sprintf(dashboardHTML,
		safeRunID, safeRunID,
		safeQs+html.EscapeString("&color=cluster"),
		safeQs+html.EscapeString("&color=highlight"),
		safeQs, safeQs, safeQs)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}
