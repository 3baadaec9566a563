// Command trend runs the trend-line and indicator engine over the cleaned
// daily bars, writing one JSON result file per (asset, profile) into the
// cache directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"heimdall/internal/config"
	"heimdall/internal/logging"
	"heimdall/internal/storage"
	"heimdall/internal/storage/memory"
	"heimdall/internal/storage/migrations"
	pgstore "heimdall/internal/storage/postgres"
	"heimdall/internal/trend"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	asset := flag.String("asset", "ALL", "Catalog key to process, or ALL for every active daily asset")
	mode := flag.String("mode", string(trend.ModeProduction), "Profile mode: production or experimental")
	diff := flag.Bool("diff", false, "Print the production vs experimental diff report instead of running")
	diffLimit := flag.Int("diff-limit", 0, "Max assets in the diff report (0 = all)")
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

	parsedMode, err := trend.ParseMode(*mode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid mode flag")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	silver, catalogStore, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	cache, err := trend.NewCache(cfg.Trend.CacheDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open trend cache")
	}

	engine := trend.NewEngine(silver, catalogStore, cache, nil, log)

	switch {
	case *diff:
		err = printDiff(ctx, engine, *diffLimit)
	case *asset == "ALL":
		err = runAll(ctx, engine, parsedMode)
	default:
		err = runOne(ctx, engine, *asset, parsedMode)
	}
	if err != nil {
		log.Error().Err(err).Msg("trend command failed")
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (storage.SilverStore, storage.CatalogStore, func(), error) {
	if cfg.Database.UseMemory {
		wm := memory.NewWatermarkStore()
		return memory.NewSilverStore(wm), memory.NewCatalogStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return pgstore.NewSilverStore(pool), pgstore.NewCatalogStore(pool), pool.Close, nil
}

func runOne(ctx context.Context, engine *trend.Engine, asset string, mode trend.Mode) error {
	result, err := engine.ProcessAsset(ctx, asset, mode)
	if err != nil {
		return err
	}

	fmt.Printf("%s [%s]: %d anchors, %d trendlines (%d strong), %d bars\n",
		result.CatalogKey, result.LogicVersion,
		len(result.VicTrends.Anchors), len(result.VicTrends.TrendLines),
		result.VicTrends.StrongLines(), result.VicTrends.Metadata.DataLength)
	return nil
}

func runAll(ctx context.Context, engine *trend.Engine, mode trend.Mode) error {
	summary, err := engine.ProcessAll(ctx, mode)
	if err != nil {
		return err
	}

	fmt.Printf("trend [%s]: %d total, %d succeeded, %d skipped, %d failed in %s\n",
		mode, summary.Total, summary.Succeeded, summary.Skipped, summary.Failed, summary.Duration)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d assets failed", summary.Failed, summary.Total)
	}
	return nil
}

func printDiff(ctx context.Context, engine *trend.Engine, limit int) error {
	report, err := engine.Diff(ctx, limit)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
