// Command scheduler runs the full pipeline on cron schedules: ingest per
// frequency class, clean after each ingest window, and recompute trends
// nightly. It serves Prometheus metrics and shuts down gracefully.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"heimdall/internal/adapter"
	"heimdall/internal/cleaning"
	"heimdall/internal/config"
	"heimdall/internal/domain"
	"heimdall/internal/ingestion"
	"heimdall/internal/logging"
	"heimdall/internal/observability"
	"heimdall/internal/storage"
	"heimdall/internal/storage/memory"
	"heimdall/internal/storage/migrations"
	pgstore "heimdall/internal/storage/postgres"
	"heimdall/internal/trend"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
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

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("scheduler failed")
	}
	log.Info().Msg("scheduler stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer cleanup()

	cache, err := trend.NewCache(cfg.Trend.CacheDir)
	if err != nil {
		return fmt.Errorf("open trend cache: %w", err)
	}

	metrics := observability.NewMetrics("heimdall")
	registry := buildRegistry(cfg)

	ingestEngine := ingestion.NewEngine(registry, st.watermarks, st.raw, metrics, log)
	cleanEngine := cleaning.NewEngine(st.raw, st.silver, st.watermarks, metrics, log)
	trendEngine := trend.NewEngine(st.silver, st.catalog, cache, metrics, log)

	sched := newSchedule(ctx, cfg, log, ingestEngine, cleanEngine, trendEngine, st.catalog)

	srv := &http.Server{Addr: cfg.Schedule.MetricsAddr, Handler: metricsMux()}
	go func() {
		log.Info().Str("addr", cfg.Schedule.MetricsAddr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	sched.Start()
	log.Info().
		Str("hourly_ingest", cfg.Schedule.HourlyIngest).
		Str("daily_ingest", cfg.Schedule.DailyIngest).
		Str("monthly_ingest", cfg.Schedule.MonthlyIngest).
		Str("cleaning", cfg.Schedule.Cleaning).
		Str("trend", cfg.Schedule.Trend).
		Msg("scheduler started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Stop accepting new runs, then give in-flight jobs and the HTTP
	// server until the shutdown timeout.
	stopped := sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("jobs still running at shutdown deadline")
	}
	return ctx.Err()
}

type stores struct {
	catalog    storage.CatalogStore
	watermarks storage.WatermarkStore
	raw        storage.RawStore
	silver     storage.SilverStore
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	if cfg.Database.UseMemory {
		wm := memory.NewWatermarkStore()
		return &stores{
			catalog:    memory.NewCatalogStore(),
			watermarks: wm,
			raw:        memory.NewRawStore(wm),
			silver:     memory.NewSilverStore(wm),
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
		silver:     pgstore.NewSilverStore(pool),
	}, pool.Close, nil
}

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

// newSchedule registers every pipeline job on its cron spec. Overlapping
// runs of the same job are skipped, panics are contained per job.
func newSchedule(ctx context.Context, cfg *config.Config, log zerolog.Logger, ingestEngine *ingestion.Engine, cleanEngine *cleaning.Engine, trendEngine *trend.Engine, catalog storage.CatalogStore) *cron.Cron {
	cronLog := cronLogger{log: log}
	sched := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	ingestJob := func(frequency domain.Frequency) func() {
		return func() {
			filter := storage.CatalogFilter{Frequency: frequency}
			if _, err := ingestEngine.RunBatch(ctx, catalog, filter, ingestion.Options{}); err != nil {
				log.Error().Err(err).Str("frequency", string(frequency)).Msg("scheduled ingest failed")
			}
		}
	}

	mustAdd(sched, log, cfg.Schedule.HourlyIngest, ingestJob(domain.FrequencyHourly))
	mustAdd(sched, log, cfg.Schedule.DailyIngest, ingestJob(domain.FrequencyDaily))
	mustAdd(sched, log, cfg.Schedule.MonthlyIngest, ingestJob(domain.FrequencyMonthly))

	sources := []string{adapter.SourceFRED, adapter.SourceYahoo, adapter.SourceNewsAPI, adapter.SourceRSS}
	mustAdd(sched, log, cfg.Schedule.Cleaning, func() {
		if _, err := cleanEngine.RunAll(ctx, sources, cleaning.Options{}); err != nil {
			log.Error().Err(err).Msg("scheduled cleaning failed")
		}
	})

	mustAdd(sched, log, cfg.Schedule.Trend, func() {
		if _, err := trendEngine.ProcessAll(ctx, trend.ModeProduction); err != nil {
			log.Error().Err(err).Msg("scheduled trend run failed")
		}
	})

	return sched
}

func mustAdd(sched *cron.Cron, log zerolog.Logger, spec string, job func()) {
	if _, err := sched.AddFunc(spec, job); err != nil {
		log.Fatal().Err(err).Str("spec", spec).Msg("invalid cron spec")
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// cronLogger adapts zerolog to the cron logging interface.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
