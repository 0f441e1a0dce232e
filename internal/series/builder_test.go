package series

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry/releasestats/internal/core/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func row(repo string, id int64, name string, count int64, hours int) models.Snapshot {
	return models.Snapshot{
		AssetID:       id,
		AssetName:     name,
		RepoName:      repo,
		DownloadCount: count,
		CapturedAt:    t0.Add(time.Duration(hours) * time.Hour),
	}
}

func TestBuildTwoRuns(t *testing.T) {
	set := Build([]models.Snapshot{
		row("acme/tool", 1, "tool.bin", 10, 0),
		row("acme/tool", 1, "tool.bin", 15, 1),
	})

	require.Equal(t, []string{"acme/tool"}, set.Order)
	repo := set.Repos["acme/tool"]
	require.Len(t, repo.Assets, 1)
	assert.Equal(t, []models.Point{
		{Timestamp: t0, Value: 10},
		{Timestamp: t0.Add(time.Hour), Value: 15},
	}, repo.Assets[1].Points)
	assert.Equal(t, int64(10), repo.MinValue)
	assert.Equal(t, int64(15), repo.MaxValue)
	assert.Equal(t, t0, repo.MinTimestamp)
	assert.Equal(t, t0.Add(time.Hour), repo.MaxTimestamp)
}

func TestBuildBoundsPerRepository(t *testing.T) {
	rows := []models.Snapshot{
		row("acme/a", 1, "a1", 500, 0),
		row("acme/b", 2, "b1", 0, 1),
		row("acme/a", 3, "a2", 7, 2),
		row("acme/b", 2, "b1", 3, 5),
		row("acme/a", 1, "a1", 900, 9),
	}

	set := Build(rows)

	a := set.Repos["acme/a"]
	assert.Equal(t, int64(7), a.MinValue)
	assert.Equal(t, int64(900), a.MaxValue)
	assert.Equal(t, t0, a.MinTimestamp)
	assert.Equal(t, t0.Add(9*time.Hour), a.MaxTimestamp)

	b := set.Repos["acme/b"]
	assert.Equal(t, int64(0), b.MinValue, "zero is a valid minimum")
	assert.Equal(t, int64(3), b.MaxValue)
	assert.Equal(t, t0.Add(time.Hour), b.MinTimestamp)
	assert.Equal(t, t0.Add(5*time.Hour), b.MaxTimestamp)

	assert.Equal(t, []string{"acme/a", "acme/b"}, set.Order)
	assert.Equal(t, []int64{1, 3}, a.AssetOrder)
}

func TestBuildBoundsOrderIndependent(t *testing.T) {
	rows := []models.Snapshot{
		row("acme/a", 1, "x", 40, 3),
		row("acme/a", 1, "x", 10, 0),
		row("acme/a", 2, "y", 99, 7),
		row("acme/a", 2, "y", 5, 1),
	}
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 20; i++ {
		r.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		repo := Build(rows).Repos["acme/a"]
		assert.Equal(t, int64(5), repo.MinValue)
		assert.Equal(t, int64(99), repo.MaxValue)
		assert.Equal(t, t0, repo.MinTimestamp)
		assert.Equal(t, t0.Add(7*time.Hour), repo.MaxTimestamp)
	}
}

func TestBuildPointsSortedForAscendingInput(t *testing.T) {
	var rows []models.Snapshot
	for h := 0; h < 24; h++ {
		rows = append(rows, row("acme/tool", 1, "a", int64(h*3), h))
		rows = append(rows, row("acme/tool", 2, "b", int64(h), h))
	}

	repo := Build(rows).Repos["acme/tool"]
	for _, asset := range repo.OrderedAssets() {
		require.Len(t, asset.Points, 24)
		for i := 1; i < len(asset.Points); i++ {
			assert.True(t, asset.Points[i-1].Timestamp.Before(asset.Points[i].Timestamp))
		}
	}
}

func TestBuildIdempotent(t *testing.T) {
	rows := []models.Snapshot{
		row("acme/b", 5, "b.tar.gz", 1, 0),
		row("acme/a", 9, "a.zip", 2, 0),
		row("acme/a", 8, "a.zip.sig", 1, 0),
		row("acme/b", 5, "b.tar.gz", 4, 1),
		row("acme/a", 9, "a.zip", 6, 1),
	}

	first, err := json.Marshal(Build(rows).Ordered())
	require.NoError(t, err)
	second, err := json.Marshal(Build(rows).Ordered())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestBuildKeepsSignatureAssets(t *testing.T) {
	set := Build([]models.Snapshot{
		row("acme/tool", 1, "tool.tar.gz", 10, 0),
		row("acme/tool", 2, "tool.tar.gz.sig", 2, 0),
	})

	repo := set.Repos["acme/tool"]
	require.Len(t, repo.Assets, 2)
	assert.Equal(t, "tool.tar.gz.sig", repo.Assets[2].Name)
}

func TestBuildEmpty(t *testing.T) {
	set := Build(nil)
	assert.Empty(t, set.Repos)
	assert.Empty(t, set.Ordered())
}

func TestBuildSingleCapture(t *testing.T) {
	repo := Build([]models.Snapshot{row("acme/tool", 1, "tool.bin", 10, 0)}).Repos["acme/tool"]

	assert.Equal(t, repo.MinTimestamp, repo.MaxTimestamp)
	assert.Equal(t, repo.MinValue, repo.MaxValue)
	assert.Equal(t, 1, repo.PointCount())
}

type stubStore struct {
	rows []models.Snapshot
	err  error
}

func (s *stubStore) EnsureSchema(context.Context) error { return nil }

func (s *stubStore) InsertSnapshots(context.Context, []models.Snapshot) (int, error) { return 0, nil }

func (s *stubStore) ListSnapshots(context.Context) ([]models.Snapshot, error) { return s.rows, s.err }

func (s *stubStore) Close() error { return nil }

func TestLoad(t *testing.T) {
	set, err := Load(context.Background(), &stubStore{rows: []models.Snapshot{row("acme/tool", 1, "a", 1, 0)}})
	require.NoError(t, err)
	assert.Len(t, set.Repos, 1)

	_, err = Load(context.Background(), &stubStore{err: errors.New("db gone")})
	assert.Error(t, err)
}
