package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foundry/releasestats/internal/adapters/storage"
	"github.com/foundry/releasestats/internal/chart"
	"github.com/foundry/releasestats/internal/collector"
	"github.com/foundry/releasestats/internal/config"
	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
	"github.com/foundry/releasestats/internal/metrics"
	"github.com/foundry/releasestats/internal/overview"
	"github.com/foundry/releasestats/internal/series"
)

// Pipeline ties a collection run and a render pass to one store.
type Pipeline struct {
	repos     []string
	outputDir string
	store     services.SnapshotStore
	collector *collector.Collector
	renderer  *chart.Renderer
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	// serialises scheduled runs
	mu  sync.Mutex
	now func() time.Time
}

// New builds a Pipeline from cfg. m may be nil.
func New(cfg *config.Config, store services.SnapshotStore, source services.ReleaseSource, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	opts := chart.DefaultOptions()
	opts.Headroom = cfg.Output.Headroom
	opts.Signature = cfg.SignatureRegexp()

	return &Pipeline{
		repos:     cfg.Repos,
		outputDir: cfg.Output.Dir,
		store:     store,
		collector: collector.New(source, store, cfg.Collector.Concurrency, m, logger.With().Str("component", "collector").Logger()),
		renderer:  chart.New(opts, m, logger.With().Str("component", "renderer").Logger()),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect runs one collection over every configured repository with a
// single capture timestamp.
func (p *Pipeline) Collect(ctx context.Context) models.RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collect(ctx)
}

func (p *Pipeline) collect(ctx context.Context) models.RunReport {
	capturedAt := p.now().UTC().Truncate(time.Second)
	report := p.collector.Run(ctx, p.repos, capturedAt)
	for _, o := range report.Failed() {
		p.logger.Warn().Err(o.Err).Str("repo", o.Repo).Msg("repository skipped this run")
	}
	return report
}

// Render rebuilds every chart and the overview from the store. Individual
// chart or overview write failures are logged and do not fail the pass;
// a missing output directory or an unreadable store does.
func (p *Pipeline) Render(ctx context.Context) ([]models.ChartFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render(ctx)
}

func (p *Pipeline) render(ctx context.Context) ([]models.ChartFile, error) {
	start := time.Now()

	out, err := storage.NewOutputDir(p.outputDir)
	if err != nil {
		return nil, err
	}

	set, err := series.Load(ctx, p.store)
	if err != nil {
		return nil, err
	}

	files := p.renderer.RenderAll(set, out)

	if _, _, err := overview.Write(files, out); err != nil {
		p.logger.Error().Err(err).Str("file", overview.FileName).Msg("could not write overview")
		if p.metrics != nil {
			p.metrics.RenderFailures.Inc()
		}
	}

	p.reportStale(out, files)

	if p.metrics != nil {
		p.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	}
	p.logger.Info().
		Int("repos", len(set.Order)).
		Int("charts", len(files)).
		Dur("duration", time.Since(start)).
		Msg("render pass completed")
	return files, nil
}

// reportStale logs charts in out that this pass did not produce.
func (p *Pipeline) reportStale(out *storage.OutputDir, files []models.ChartFile) {
	names, err := out.List(".svg")
	if err != nil {
		p.logger.Warn().Err(err).Msg("could not list output directory")
		return
	}
	written := make(map[string]bool, len(files))
	for _, f := range files {
		written[f.FileName] = true
	}
	for _, name := range names {
		if !written[name] {
			p.logger.Debug().Str("file", name).Msg("chart not refreshed by this pass")
		}
	}
}

// CollectAndRender is one scheduled tick: a collection followed by a render
// pass that sees the rows just written.
func (p *Pipeline) CollectAndRender(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.collect(ctx)
	if _, err := p.render(ctx); err != nil {
		return fmt.Errorf("render after collect: %w", err)
	}
	return nil
}

// OpenStore opens the snapshot store for one run.
type OpenStore func(ctx context.Context) (services.SnapshotStore, error)

// RunCollect opens the store, runs one collection and closes the store
// exactly once after the run returns. Per-repository failures are in the
// report; only a store that cannot be opened or closed is an error.
func RunCollect(ctx context.Context, cfg *config.Config, open OpenStore, source services.ReleaseSource, m *metrics.Metrics, logger zerolog.Logger) (models.RunReport, error) {
	store, err := open(ctx)
	if err != nil {
		return models.RunReport{}, fmt.Errorf("opening snapshot store: %w", err)
	}

	report := New(cfg, store, source, m, logger).Collect(ctx)

	if err := store.Close(); err != nil {
		return report, fmt.Errorf("closing snapshot store: %w", err)
	}
	return report, nil
}

// RunRender checks the output directory, then opens the store, renders
// everything and closes the store exactly once.
func RunRender(ctx context.Context, cfg *config.Config, open OpenStore, m *metrics.Metrics, logger zerolog.Logger) ([]models.ChartFile, error) {
	if _, err := storage.NewOutputDir(cfg.Output.Dir); err != nil {
		return nil, err
	}

	store, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}

	files, renderErr := New(cfg, store, nil, m, logger).Render(ctx)

	if err := store.Close(); err != nil && renderErr == nil {
		return files, fmt.Errorf("closing snapshot store: %w", err)
	}
	return files, renderErr
}
