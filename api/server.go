// Package api serves persisted analysis runs as JSON and as rendered
// chart pages.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/nucleus-data/expression.report/internal/db"
	"github.com/nucleus-data/expression.report/internal/httputil"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	store *db.RunStore
}

func NewServer(store *db.RunStore) *Server {
	return &Server{store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/runs", s.listRuns)
	mux.HandleFunc("/run", s.showRun)
	mux.HandleFunc("/cells", s.listCells)
	mux.HandleFunc("/markers", s.listMarkerResults)
	mux.HandleFunc("/panel", s.listPanelStats)
	mux.HandleFunc("/charts/", s.dashboardHandler)
	mux.HandleFunc("/charts/embedding", s.embeddingChartHandler)
	mux.HandleFunc("/charts/markers", s.markerChartHandler)
	mux.HandleFunc("/charts/panel", s.panelChartHandler)
	mux.HandleFunc("/charts/qc", s.qcChartHandler)
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	runs, err := s.store.ListRuns()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []*db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// requireRun resolves the run_id query parameter, falling back to the most
// recent run when absent. Writes the error response itself and returns ""
// on failure.
func (s *Server) requireRun(w http.ResponseWriter, r *http.Request) string {
	runID := r.URL.Query().Get("run_id")
	if runID != "" {
		return runID
	}

	runs, err := s.store.ListRuns()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return ""
	}
	if len(runs) == 0 {
		httputil.NotFound(w, "no analysis runs recorded")
		return ""
	}
	return runs[0].RunID
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if run == nil {
		httputil.NotFound(w, "run not found: "+runID)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) listCells(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	cells, err := s.store.ListCells(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if cells == nil {
		cells = []*db.Cell{}
	}
	httputil.WriteJSONOK(w, cells)
}

func (s *Server) listMarkerResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	results, err := s.store.ListMarkerResults(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if results == nil {
		results = []*db.MarkerResult{}
	}
	httputil.WriteJSONOK(w, results)
}

func (s *Server) listPanelStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	runID := s.requireRun(w, r)
	if runID == "" {
		return
	}

	stats, err := s.store.ListPanelStats(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if stats == nil {
		stats = []*db.PanelStat{}
	}
	httputil.WriteJSONOK(w, stats)
}
