// Command ingest runs the bronze-layer batch ingestion over the active
// catalog, and exposes the catalog maintenance passes (activation probe,
// keyword sync) as one-shot modes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"heimdall/internal/adapter"
	"heimdall/internal/catalog"
	"heimdall/internal/config"
	"heimdall/internal/domain"
	"heimdall/internal/ingestion"
	"heimdall/internal/logging"
	"heimdall/internal/storage"
	"heimdall/internal/storage/memory"
	"heimdall/internal/storage/migrations"
	pgstore "heimdall/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	frequency := flag.String("frequency", "", "Only entries with this frequency: hourly, daily, or monthly")
	scope := flag.String("scope", "", "Only entries with this scope: macro or micro")
	role := flag.String("role", "", "Only entries with this role: judgment or validation")
	source := flag.String("source", "", "Only entries from this source API")
	limit := flag.Int("limit", 0, "Max catalog entries to process (0 = all)")
	force := flag.Bool("force", false, "Bypass the frequency throttle")
	dryRun := flag.Bool("dry-run", false, "Probe adapters without storing anything")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	confirm := flag.Bool("confirm", false, "Probe inactive catalog entries and activate the reachable ones")
	syncKeywords := flag.Bool("sync-keywords", false, "Propagate equity keywords into their news catalog entries")
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

	filter, err := parseFilter(*frequency, *scope, *role, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid filter flags")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	registry := buildRegistry(cfg)

	switch {
	case *confirm:
		err = runConfirm(ctx, registry, st, log)
	case *syncKeywords:
		err = runSyncKeywords(ctx, st, log)
	default:
		err = runBatch(ctx, registry, st, filter, ingestion.Options{
			Force:  *force,
			DryRun: *dryRun,
			Limit:  *limit,
		}, log)
	}
	if err != nil {
		log.Error().Err(err).Msg("ingest command failed")
		os.Exit(1)
	}
}

type stores struct {
	catalog    storage.CatalogStore
	watermarks storage.WatermarkStore
	raw        storage.RawStore
}

// openStores wires the storage backend picked by the config: in-memory
// for local runs and tests, PostgreSQL (with migrations applied) otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	if cfg.Database.UseMemory {
		wm := memory.NewWatermarkStore()
		return &stores{
			catalog:    memory.NewCatalogStore(),
			watermarks: wm,
			raw:        memory.NewRawStore(wm),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &stores{
		catalog:    pgstore.NewCatalogStore(pool),
		watermarks: pgstore.NewWatermarkStore(pool),
		raw:        pgstore.NewRawStore(pool),
	}, pool.Close, nil
}

// buildRegistry registers every source adapter against the shared HTTP
// client tuned by the config.
func buildRegistry(cfg *config.Config) *adapter.Registry {
	client := adapter.NewClient(
		adapter.WithTimeout(cfg.HTTP.Timeout),
		adapter.WithMaxRetries(cfg.HTTP.MaxRetries),
		adapter.WithUserAgent(cfg.HTTP.UserAgent),
	)

	registry := adapter.NewRegistry()
	registry.Register(adapter.SourceFRED, adapter.NewFREDAdapter(
		cfg.Sources.FRED.APIKey,
		adapter.WithFREDBaseURL(cfg.Sources.FRED.BaseURL),
		adapter.WithFREDClient(client),
	))
	registry.Register(adapter.SourceYahoo, adapter.NewYahooAdapter(
		adapter.WithYahooBaseURL(cfg.Sources.Yahoo.BaseURL),
		adapter.WithYahooClient(client),
	))
	registry.Register(adapter.SourceNewsAPI, adapter.NewNewsAPIAdapter(
		cfg.Sources.NewsAPI.APIKey,
		adapter.WithNewsAPIBaseURL(cfg.Sources.NewsAPI.BaseURL),
		adapter.WithNewsAPIClient(client),
	))
	registry.Register(adapter.SourceRSS, adapter.NewRSSAdapter(
		adapter.WithRSSClient(client),
	))
	return registry
}

// parseFilter converts the flag values into a catalog filter.
func parseFilter(frequency, scope, role, source string) (storage.CatalogFilter, error) {
	var f storage.CatalogFilter

	switch strings.ToLower(frequency) {
	case "":
	case "hourly":
		f.Frequency = domain.FrequencyHourly
	case "daily":
		f.Frequency = domain.FrequencyDaily
	case "monthly":
		f.Frequency = domain.FrequencyMonthly
	default:
		return f, fmt.Errorf("unknown frequency %q", frequency)
	}

	switch strings.ToLower(scope) {
	case "":
	case "macro":
		f.Scope = domain.ScopeMacro
	case "micro":
		f.Scope = domain.ScopeMicro
	default:
		return f, fmt.Errorf("unknown scope %q", scope)
	}

	switch strings.ToLower(role) {
	case "":
	case "judgment":
		f.Role = domain.RoleJudgment
	case "validation":
		f.Role = domain.RoleValidation
	default:
		return f, fmt.Errorf("unknown role %q", role)
	}

	f.SourceAPI = source
	return f, nil
}

func runBatch(ctx context.Context, registry *adapter.Registry, st *stores, filter storage.CatalogFilter, opts ingestion.Options, log zerolog.Logger) error {
	// One-shot runs skip metrics; only the scheduler keeps a registry
	// alive long enough to scrape.
	engine := ingestion.NewEngine(registry, st.watermarks, st.raw, nil, log)

	summary, err := engine.RunBatch(ctx, st.catalog, filter, opts)
	if err != nil {
		return err
	}

	fmt.Printf("ingest: %d total, %d succeeded, %d cached, %d skipped, %d failed in %s\n",
		summary.Total, summary.Succeeded, summary.Cached, summary.Skipped, summary.Failed, summary.Duration)

	if !summary.OK() {
		for _, res := range summary.FailedResults(10) {
			fmt.Printf("  failed %-30s [%s]: %v\n", res.CatalogKey, res.SourceAPI, res.Err)
		}
		return fmt.Errorf("%d of %d entries failed", summary.Failed, summary.Total)
	}
	return nil
}

func runConfirm(ctx context.Context, registry *adapter.Registry, st *stores, log zerolog.Logger) error {
	prober := catalog.NewProber(registry, st.catalog, st.watermarks, log)

	summary, err := prober.ConfirmAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("confirm: %d inactive probed, %d activated, %d failed\n",
		summary.Total, summary.Activated, summary.Failed)
	for _, res := range summary.Results {
		if res.Err != nil {
			fmt.Printf("  still inactive %-30s [%s]: %v\n", res.CatalogKey, res.SourceAPI, res.Err)
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d probes failed", summary.Failed, summary.Total)
	}
	return nil
}

func runSyncKeywords(ctx context.Context, st *stores, log zerolog.Logger) error {
	syncer := catalog.NewSyncer(st.catalog, st.watermarks, log)

	summary, err := syncer.SyncAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("keyword sync: %d stocks, %d synced, %d without matching news, %d failed\n",
		summary.Total, summary.Synced, summary.NoMatch, summary.Failed)
	for _, res := range summary.Details {
		if res.Status == catalog.SyncStatusSynced {
			fmt.Printf("  %-30s -> %s\n", res.StockKey, strings.Join(res.TargetCatalogs, ", "))
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d stocks failed", summary.Failed, summary.Total)
	}
	return nil
}
