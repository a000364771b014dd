package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"reportd/internal/httpapi"
	"reportd/internal/report"
	"reportd/internal/reportstore"
	"reportd/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	var (
		addr          = flag.String("addr", ":8000", "Listen address")
		dbPath        = flag.String("db", "reports.db", "SQLite database path")
		enrichTimeout = flag.Duration("enrich-timeout", report.DefaultEnrichTimeout, "Timeout for the AI enrichment call")
	)
	flag.Parse()

	// Optional; a missing .env is the normal production case.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, "reportd", serviceVersion)
	if err != nil {
		log.Fatalf("telemetry init failed: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	store, err := reportstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	metrics, err := report.NewMetrics(nil)
	if err != nil {
		log.Fatalf("init metrics: %v", err)
	}

	var completer report.Completer
	if c := report.NewAnthropicCompleterFromEnv(); c != nil {
		completer = c
	} else {
		log.Printf("reportd enrichment disabled (ANTHROPIC_API_KEY not set)")
	}
	enricher := report.NewEnricher(completer, metrics, *enrichTimeout)
	pipeline := report.NewPipeline(store, enricher, metrics)

	handler := httpapi.NewServer(pipeline, store)

	log.Printf("reportd listening on %s (db=%s, enrichment=%t)", *addr, *dbPath, enricher.Enabled())
	srv := &http.Server{Addr: *addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
