package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
	"github.com/foundry/releasestats/internal/metrics"
)

const DefaultConcurrency = 4

// Collector appends one snapshot row per release asset of every configured
// repository.
type Collector struct {
	source      services.ReleaseSource
	store       services.SnapshotStore
	concurrency int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// New creates a Collector. m may be nil.
func New(source services.ReleaseSource, store services.SnapshotStore, concurrency int, m *metrics.Metrics, logger zerolog.Logger) *Collector {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Collector{
		source:      source,
		store:       store,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

// Run collects every repository concurrently, stamping all rows with
// capturedAt. A failing repository contributes zero rows and never stops
// the others; its error is returned in the report.
func (c *Collector) Run(ctx context.Context, repos []string, capturedAt time.Time) models.RunReport {
	start := time.Now()
	outcomes := make([]models.RepoOutcome, len(repos))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			outcomes[i] = c.collectRepo(ctx, repo, capturedAt)
			return nil
		})
	}
	_ = g.Wait()

	report := models.RunReport{CapturedAt: capturedAt, Outcomes: outcomes}
	failed := report.Failed()

	if c.metrics != nil {
		c.metrics.CollectDuration.Observe(time.Since(start).Seconds())
		c.metrics.LastCollectUnix.Set(float64(capturedAt.Unix()))
	}

	ev := c.logger.Info()
	if len(failed) > 0 {
		ev = c.logger.Warn()
	}
	ev.Time("captured_at", capturedAt).
		Int("repos", len(repos)).
		Int("failed", len(failed)).
		Int("rows", report.TotalRows()).
		Dur("duration", time.Since(start)).
		Msg("collection run completed")

	return report
}

func (c *Collector) collectRepo(ctx context.Context, repo string, capturedAt time.Time) models.RepoOutcome {
	releases, err := c.source.ListReleases(ctx, repo)
	if err != nil {
		c.logger.Warn().Err(err).Str("repo", repo).Msg("could not fetch releases")
		c.count(repo, "fetch_error")
		return models.RepoOutcome{Repo: repo, Err: err}
	}

	rows := Flatten(repo, releases, capturedAt)
	n, err := c.store.InsertSnapshots(ctx, rows)
	if err != nil {
		c.logger.Error().Err(err).Str("repo", repo).Int("rows", len(rows)).Msg("could not store snapshots")
		c.count(repo, "store_error")
		return models.RepoOutcome{Repo: repo, Err: err}
	}

	c.logger.Debug().
		Str("repo", repo).
		Int("releases", len(releases)).
		Int("rows", n).
		Msg("repository collected")
	c.count(repo, "ok")
	if c.metrics != nil {
		c.metrics.SnapshotsWritten.Add(float64(n))
	}
	return models.RepoOutcome{Repo: repo, Rows: n}
}

func (c *Collector) count(repo, status string) {
	if c.metrics != nil {
		c.metrics.RepoFetches.WithLabelValues(repo, status).Inc()
	}
}

// Flatten turns the releases of repo into one snapshot per asset.
func Flatten(repo string, releases []models.Release, capturedAt time.Time) []models.Snapshot {
	var rows []models.Snapshot
	for _, rel := range releases {
		for _, a := range rel.Assets {
			rows = append(rows, models.Snapshot{
				AssetID:        a.ID,
				AssetName:      a.Name,
				RepoName:       repo,
				DownloadCount:  a.DownloadCount,
				ReleaseID:      strconv.FormatInt(rel.ID, 10),
				ReleaseTagName: rel.TagName,
				CapturedAt:     capturedAt,
			})
		}
	}
	return rows
}
