// Command expression-report serves persisted single-cell analysis runs:
// JSON endpoints for run metadata and results, rendered chart pages, and
// admin debugging routes over the results database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nucleus-data/expression.report/api"
	"github.com/nucleus-data/expression.report/internal/db"
	"github.com/nucleus-data/expression.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "expression_results.db", "Path to the results database")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("expression-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	resultsDB, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer resultsDB.Close()

	if err := resultsDB.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to migrate results database: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes over the results database
		resultsDB.AttachAdminRoutes(mux)

		// mount the API and chart handlers
		store := db.NewRunStore(resultsDB)
		apiMux := api.NewServer(store).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		// the dashboard for the latest run doubles as the index page
		mux.Handle("/", http.RedirectHandler("/api/charts/", http.StatusTemporaryRedirect))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("report server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
}
