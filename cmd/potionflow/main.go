// Command potionflow fetches a telemetry snapshot, runs the drain
// detection and ticket reconciliation pipeline over it, stores the
// results, and optionally serves the results API and dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/greywick-data/potionflow/internal/api"
	"github.com/greywick-data/potionflow/internal/config"
	"github.com/greywick-data/potionflow/internal/db"
	"github.com/greywick-data/potionflow/internal/fetch"
	"github.com/greywick-data/potionflow/internal/potion"
)

var (
	configPath    = flag.String("config", "", "Path to tuning config JSON (defaults used when empty)")
	dbFile        = flag.String("db", "potionflow.db", "Path to the SQLite database")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
	listen        = flag.String("listen", "", "Listen address for the results API (empty: run once and exit)")
	offline       = flag.Bool("offline", false, "Reuse the latest cached snapshot instead of fetching")
	rateUnits     = flag.String("units", "lpm", "Default fill rate units for the API (lpm or lph)")
)

func main() {
	flag.Parse()

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		snapshotID string
		snap       *potion.Snapshot
		network    *fetch.Network
	)
	if *offline {
		snapshotID, snap, err = database.LatestSnapshot(ctx)
		if errors.Is(err, db.ErrNotFound) {
			log.Fatalf("no cached snapshot available; run without -offline first")
		}
		if err != nil {
			log.Fatalf("failed to load cached snapshot: %v", err)
		}
		log.Printf("Using cached snapshot %s (%d readings, %d tickets)", snapshotID, len(snap.Readings), len(snap.Tickets))
	} else {
		client := fetch.NewClient(cfg.GetBaseURL())
		snap, err = client.FetchSnapshot(ctx)
		if err != nil {
			log.Fatalf("failed to fetch snapshot: %v", err)
		}
		snapshotID, err = database.SaveSnapshot(ctx, snap)
		if err != nil {
			log.Fatalf("failed to store snapshot: %v", err)
		}
		log.Printf("Fetched snapshot %s (%d readings, %d tickets, %d cauldrons)",
			snapshotID, len(snap.Readings), len(snap.Tickets), len(snap.Cauldrons))

		if network, err = client.FetchNetwork(ctx); err != nil {
			// The map is a nicety; the run itself does not need it.
			log.Printf("warning: failed to fetch network graph: %v", err)
			network = nil
		}
	}

	start := time.Now()
	results, err := potion.Run(ctx, snap, cfg.Params())
	if err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}
	if err := database.SaveResults(ctx, snapshotID, results); err != nil {
		log.Fatalf("failed to store results: %v", err)
	}

	log.Printf("Run %s completed in %v", results.RunID, time.Since(start).Round(time.Millisecond))
	printSummary(results)

	if *listen == "" {
		return
	}

	server := api.NewServer(database, network, *rateUnits)
	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}
	go func() {
		log.Printf("Serving results API on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func printSummary(res *potion.Results) {
	s := res.Summary
	log.Printf("Detected %d drain events across %d cauldrons (%.2fL collected)",
		len(res.Drains), len(res.FillRates), s.TotalDrained)
	log.Printf("Matching: %d matched, %d under-reported, %d over-reported, %d missing tickets, %d unmatched tickets (accuracy %.1f%%)",
		s.Matched, s.Underreported, s.Overreported, s.MissingTickets, s.UnmatchedTickets, s.AccuracyPct)
	if s.Unaccounted > 0 {
		log.Printf("Unaccounted volume: %.2fL", s.Unaccounted)
	}
	if res.SkippedReadings > 0 || res.SkippedCauldrons > 0 {
		log.Printf("Skipped %d malformed readings, %d cauldrons with insufficient data",
			res.SkippedReadings, res.SkippedCauldrons)
	}
	high := 0
	for _, risk := range res.Risks {
		if risk.Tier == potion.RiskHigh {
			high++
		}
	}
	if high > 0 {
		log.Printf("%d cauldron(s) at HIGH overflow risk", high)
	}
	for i, p := range res.Priorities {
		if i >= 3 {
			break
		}
		fmt.Printf("  %d. %s [%s] %.1fh to overflow (%.1fh after travel)\n",
			i+1, p.CauldronID, p.Band, p.HoursToOverflow, p.EffectiveHours)
	}
}
