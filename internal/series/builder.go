package series

import (
	"context"
	"fmt"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
)

// Load reads every snapshot from store and folds them into series.
func Load(ctx context.Context, store services.SnapshotStore) (*models.SeriesSet, error) {
	rows, err := store.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	return Build(rows), nil
}

// Build groups rows by repository, then by asset id, appending one point
// per row and tracking per-repository bounds in a single pass. Rows must be
// ordered by capture time for the point lists to come out sorted.
func Build(rows []models.Snapshot) *models.SeriesSet {
	set := &models.SeriesSet{Repos: make(map[string]*models.RepositorySeries)}
	for _, row := range rows {
		fold(set, row)
	}
	return set
}

func fold(set *models.SeriesSet, row models.Snapshot) {
	repo, ok := set.Repos[row.RepoName]
	if !ok {
		repo = &models.RepositorySeries{
			Name:         row.RepoName,
			Assets:       make(map[int64]*models.AssetSeries),
			MinTimestamp: row.CapturedAt,
			MaxTimestamp: row.CapturedAt,
			MinValue:     row.DownloadCount,
			MaxValue:     row.DownloadCount,
		}
		set.Repos[row.RepoName] = repo
		set.Order = append(set.Order, row.RepoName)
	}

	asset, ok := repo.Assets[row.AssetID]
	if !ok {
		asset = &models.AssetSeries{ID: row.AssetID, Name: row.AssetName}
		repo.Assets[row.AssetID] = asset
		repo.AssetOrder = append(repo.AssetOrder, row.AssetID)
	}
	asset.Points = append(asset.Points, models.Point{Timestamp: row.CapturedAt, Value: row.DownloadCount})

	if row.CapturedAt.Before(repo.MinTimestamp) {
		repo.MinTimestamp = row.CapturedAt
	}
	if row.CapturedAt.After(repo.MaxTimestamp) {
		repo.MaxTimestamp = row.CapturedAt
	}
	if row.DownloadCount < repo.MinValue {
		repo.MinValue = row.DownloadCount
	}
	if row.DownloadCount > repo.MaxValue {
		repo.MaxValue = row.DownloadCount
	}
}
