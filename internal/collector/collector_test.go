package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry/releasestats/internal/adapters/snapshots"
	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
	"github.com/foundry/releasestats/internal/metrics"
)

type fakeSource struct {
	mu       sync.Mutex
	releases map[string][]models.Release
	errs     map[string]error
	calls    []string
}

func (f *fakeSource) ListReleases(_ context.Context, repo string) ([]models.Release, error) {
	f.mu.Lock()
	f.calls = append(f.calls, repo)
	f.mu.Unlock()
	if err := f.errs[repo]; err != nil {
		return nil, err
	}
	return f.releases[repo], nil
}

func newStore(t *testing.T) *snapshots.SQLStore {
	t.Helper()
	store, err := snapshots.Open(context.Background(), snapshots.DriverSQLite, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func release(id int64, tag string, assets ...models.Asset) models.Release {
	return models.Release{ID: id, TagName: tag, Assets: assets}
}

func TestRunSingleAsset(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{releases: map[string][]models.Release{
		"acme/tool": {release(55, "v1.0.0", models.Asset{ID: 1, Name: "tool.bin", DownloadCount: 10})},
	}}
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := New(src, store, 2, nil, zerolog.Nop()).Run(context.Background(), []string{"acme/tool"}, t1)

	assert.Empty(t, report.Failed())
	assert.Equal(t, 1, report.TotalRows())

	rows, err := store.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].AssetID)
	assert.Equal(t, "tool.bin", rows[0].AssetName)
	assert.Equal(t, "acme/tool", rows[0].RepoName)
	assert.Equal(t, int64(10), rows[0].DownloadCount)
	assert.Equal(t, "55", rows[0].ReleaseID)
	assert.Equal(t, "v1.0.0", rows[0].ReleaseTagName)
	assert.True(t, rows[0].CapturedAt.Equal(t1))
}

func TestRunTwiceAppends(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{releases: map[string][]models.Release{
		"acme/tool": {release(55, "v1.0.0", models.Asset{ID: 1, Name: "tool.bin", DownloadCount: 10})},
	}}
	c := New(src, store, 2, nil, zerolog.Nop())
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	c.Run(context.Background(), []string{"acme/tool"}, t1)
	src.releases["acme/tool"][0].Assets[0].DownloadCount = 15
	c.Run(context.Background(), []string{"acme/tool"}, t2)

	rows, err := store.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(10), rows[0].DownloadCount)
	assert.Equal(t, int64(15), rows[1].DownloadCount)
	assert.True(t, rows[1].CapturedAt.Equal(t2))
}

func TestRunFailureIsolated(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		releases: map[string][]models.Release{
			"acme/a": {release(1, "v1", models.Asset{ID: 10, Name: "a.zip", DownloadCount: 1})},
			"acme/c": {release(3, "v3", models.Asset{ID: 30, Name: "c.zip", DownloadCount: 3}, models.Asset{ID: 31, Name: "c.zip.sig", DownloadCount: 1})},
		},
		errs: map[string]error{
			"acme/b": fmt.Errorf("%w: boom", services.ErrSourceUnavailable),
			"acme/d": fmt.Errorf("%w: bad json", services.ErrMalformedResponse),
		},
	}
	m := metrics.New(nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := New(src, store, 2, m, zerolog.Nop()).Run(context.Background(), []string{"acme/a", "acme/b", "acme/c", "acme/d"}, at)

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, "acme/b", report.Outcomes[1].Repo)
	assert.ErrorIs(t, report.Outcomes[1].Err, services.ErrSourceUnavailable)
	assert.ErrorIs(t, report.Outcomes[3].Err, services.ErrMalformedResponse)
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, 3, report.TotalRows())
	assert.Len(t, src.calls, 4)

	rows, err := store.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.SnapshotsWritten))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RepoFetches.WithLabelValues("acme/b", "fetch_error")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastCollectUnix))
}

func TestRunZeroReleases(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{releases: map[string][]models.Release{"acme/empty": {}}}

	report := New(src, store, 0, nil, zerolog.Nop()).Run(context.Background(), []string{"acme/empty"}, time.Now().UTC())

	assert.Empty(t, report.Failed())
	assert.Equal(t, 0, report.TotalRows())

	rows, err := store.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunSharesCaptureTimestamp(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{releases: map[string][]models.Release{}}
	var repos []string
	for i := 0; i < 10; i++ {
		repo := fmt.Sprintf("acme/r%d", i)
		repos = append(repos, repo)
		src.releases[repo] = []models.Release{release(int64(i), "v1", models.Asset{ID: int64(i), Name: "x", DownloadCount: int64(i)})}
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	New(src, store, 3, nil, zerolog.Nop()).Run(context.Background(), repos, at)

	rows, err := store.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for _, r := range rows {
		assert.True(t, r.CapturedAt.Equal(at), "row %d captured at %v", r.PKey, r.CapturedAt)
	}
}

func TestFlatten(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	releases := []models.Release{
		release(1, "v1", models.Asset{ID: 10, Name: "a"}, models.Asset{ID: 11, Name: "b"}),
		release(2, "v2"),
		release(3, "v3", models.Asset{ID: 30, Name: "c", DownloadCount: 7}),
	}

	rows := Flatten("acme/tool", releases, at)

	require.Len(t, rows, 3)
	assert.Equal(t, "3", rows[2].ReleaseID)
	assert.Equal(t, "v3", rows[2].ReleaseTagName)
	assert.Equal(t, int64(7), rows[2].DownloadCount)
	for _, r := range rows {
		assert.Equal(t, "acme/tool", r.RepoName)
		assert.Equal(t, at, r.CapturedAt)
	}
}
