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
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/foundry/releasestats/internal/adapters/releases"
	"github.com/foundry/releasestats/internal/adapters/snapshots"
	"github.com/foundry/releasestats/internal/adapters/storage"
	"github.com/foundry/releasestats/internal/api/handlers"
	"github.com/foundry/releasestats/internal/config"
	"github.com/foundry/releasestats/internal/core/services"
	"github.com/foundry/releasestats/internal/metrics"
	"github.com/foundry/releasestats/internal/pipeline"
	"github.com/foundry/releasestats/internal/util/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logging.New(os.Stderr, "info")
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(os.Stdout, cfg.Log.Level)

	switch cmd := flag.Arg(0); cmd {
	case "collect":
		cmdCollect(cfg, logger)
	case "render":
		cmdRender(cfg, logger)
	case "serve":
		cmdServe(cfg, logger)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Release download statistics

Usage:
  release-stats [--config <file>] collect   record one snapshot of every repository
  release-stats [--config <file>] render    write charts and index.html from the store
  release-stats [--config <file>] serve     collect on a schedule and serve the output

Environment:
  RELEASE_STATS_DB_DSN         overrides store.dsn
  RELEASE_STATS_GITHUB_TOKEN   overrides source.token
  RELEASE_STATS_OUTPUT_DIR     overrides output.dir`)
}

func openStore(cfg *config.Config) pipeline.OpenStore {
	return func(ctx context.Context) (services.SnapshotStore, error) {
		return snapshots.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	}
}

func newSource(cfg *config.Config) *releases.GitHubSource {
	return releases.NewGitHubSource(cfg.Source.BaseURL, cfg.Source.UserAgent, cfg.Source.Token, cfg.Source.Timeout)
}

// cmdCollect exits 0 even when some repositories failed; they are logged
// and picked up again on the next run.
func cmdCollect(cfg *config.Config, logger zerolog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := pipeline.RunCollect(ctx, cfg, openStore(cfg), newSource(cfg), nil, logger); err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("collection failed")
	}
}

func cmdRender(cfg *config.Config, logger zerolog.Logger) {
	if _, err := pipeline.RunRender(context.Background(), cfg, openStore(cfg), nil, logger); err != nil {
		logger.Fatal().Err(err).Msg("render failed")
	}
}

func cmdServe(cfg *config.Config, logger zerolog.Logger) {
	if _, err := storage.NewOutputDir(cfg.Output.Dir); err != nil {
		logger.Fatal().Err(err).Msg("invalid output directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := snapshots.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open snapshot store")
	}
	defer store.Close()

	m := metrics.New(prometheus.NewRegistry())
	p := pipeline.New(cfg, store, newSource(cfg), m, logger)

	c := cron.New()
	if cfg.Schedule.Collect != "" {
		_, err := c.AddFunc(cfg.Schedule.Collect, func() {
			if err := p.CollectAndRender(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled run failed")
			}
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule collection")
		}
	}
	c.Start()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.New(store, cfg.Output.Dir, m, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Msg("shutting down")

		cancel()
		<-c.Stop().Done()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}()

	logger.Info().
		Str("addr", addr).
		Str("schedule", cfg.Schedule.Collect).
		Strs("repos", cfg.Repos).
		Msg("starting release-stats server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
	<-idle
}
