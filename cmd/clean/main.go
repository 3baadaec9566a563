// Command clean runs the silver-layer cleaning pass: it reads the
// differential raw window per source, normalizes it into the cleaned
// tables, and advances the cleaning watermarks. It also exposes the
// watermark maintenance operations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"heimdall/internal/adapter"
	"heimdall/internal/cleaning"
	"heimdall/internal/config"
	"heimdall/internal/logging"
	"heimdall/internal/storage"
	"heimdall/internal/storage/memory"
	"heimdall/internal/storage/migrations"
	pgstore "heimdall/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	source := flag.String("source", "", "Comma-separated source APIs to clean (empty = all)")
	dryRun := flag.Bool("dry-run", false, "Compute the pass without committing anything")
	limit := flag.Int("limit", 0, "Max raw records per source (0 = all)")
	showWatermarks := flag.Bool("show-watermarks", false, "Print all watermarks and exit")
	resetWatermark := flag.String("reset-watermark", "", "Reset cleaning watermarks: a source API, \"all\", or comma-separated catalog keys")
	verify := flag.Bool("verify", false, "Check watermark consistency and print silver row counts")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *useMemory {
			c.Database.UseMemory = true
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	raw, silver, watermarks, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	engine := cleaning.NewEngine(raw, silver, watermarks, nil, log)

	switch {
	case *showWatermarks:
		err = printWatermarks(ctx, engine)
	case *resetWatermark != "":
		err = runReset(ctx, engine, raw, *resetWatermark)
	case *verify:
		err = runVerify(ctx, engine)
	default:
		err = runCleaning(ctx, engine, cleaningSources(*source), cleaning.Options{
			DryRun: *dryRun,
			Limit:  *limit,
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("clean command failed")
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (storage.RawStore, storage.SilverStore, storage.WatermarkStore, func(), error) {
	if cfg.Database.UseMemory {
		wm := memory.NewWatermarkStore()
		return memory.NewRawStore(wm), memory.NewSilverStore(wm), wm, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return pgstore.NewRawStore(pool), pgstore.NewSilverStore(pool), pgstore.NewWatermarkStore(pool), pool.Close, nil
}

// cleaningSources resolves the -source flag; empty means every source the
// pipeline ingests from.
func cleaningSources(flagValue string) []string {
	if flagValue == "" {
		return []string{adapter.SourceFRED, adapter.SourceYahoo, adapter.SourceNewsAPI, adapter.SourceRSS}
	}
	return splitKeys(flagValue)
}

func splitKeys(csv string) []string {
	var keys []string
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func runCleaning(ctx context.Context, engine *cleaning.Engine, sources []string, opts cleaning.Options) error {
	all, err := engine.RunAll(ctx, sources, opts)
	for _, stats := range all {
		fmt.Printf("%-10s raw=%d macro=%d bars=%d news=%d parse_failures=%d backfill=%t committed=%t\n",
			stats.SourceAPI, stats.RawSeen, stats.MacroRows, stats.BarRows, stats.NewsRows,
			stats.ParseFailures, stats.Backfill, stats.Committed)
	}
	return err
}

// runReset resolves the -reset-watermark value into catalog keys: "all"
// covers every watermarked key, a known source API covers its raw keys,
// anything else is taken as a key list.
func runReset(ctx context.Context, engine *cleaning.Engine, raw storage.RawStore, target string) error {
	var keys []string
	switch {
	case target == "all":
		watermarks, err := engine.ShowWatermarks(ctx)
		if err != nil {
			return err
		}
		for _, wm := range watermarks {
			keys = append(keys, wm.CatalogKey)
		}
	case isKnownSource(target):
		var err error
		keys, err = raw.DistinctCatalogKeys(ctx, target)
		if err != nil {
			return err
		}
	default:
		keys = splitKeys(target)
	}

	if len(keys) == 0 {
		fmt.Println("no watermarks to reset")
		return nil
	}
	if err := engine.ResetWatermarks(ctx, keys); err != nil {
		return err
	}
	fmt.Printf("reset cleaning watermark for %d keys\n", len(keys))
	return nil
}

func isKnownSource(s string) bool {
	switch s {
	case adapter.SourceFRED, adapter.SourceYahoo, adapter.SourceNewsAPI, adapter.SourceRSS:
		return true
	}
	return false
}

func printWatermarks(ctx context.Context, engine *cleaning.Engine) error {
	watermarks, err := engine.ShowWatermarks(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-35s %-22s %-22s %-22s\n", "CATALOG KEY", "LAST INGESTED", "LAST CLEANED", "LAST SYNCED")
	for _, wm := range watermarks {
		fmt.Printf("%-35s %-22s %-22s %-22s\n", wm.CatalogKey,
			formatTime(wm.LastIngestedAt), formatTime(wm.LastCleanedAt), formatTime(wm.LastSyncedAt))
	}
	return nil
}

func runVerify(ctx context.Context, engine *cleaning.Engine) error {
	findings, counts, err := engine.VerifyConsistency(ctx)
	if err != nil {
		return err
	}

	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("%-25s %d rows\n", table, counts[table])
	}

	if len(findings) == 0 {
		fmt.Println("watermarks consistent")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("inconsistent %-30s %s\n", f.CatalogKey, f.Detail)
	}
	return fmt.Errorf("%d watermark inconsistencies found", len(findings))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
