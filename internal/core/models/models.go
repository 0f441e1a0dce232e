package models

import (
	"encoding/json"
	"time"
)

// Snapshot is one observation of a release asset's download count.
type Snapshot struct {
	PKey           int64     `json:"pkey"`
	AssetID        int64     `json:"id"`
	AssetName      string    `json:"name"`
	RepoName       string    `json:"repo_name"`
	DownloadCount  int64     `json:"download_count"`
	ReleaseID      string    `json:"release_id"`
	ReleaseTagName string    `json:"release_tag_name"`
	CapturedAt     time.Time `json:"date"`
}

type Release struct {
	ID      int64   `json:"id"`
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

type Asset struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DownloadCount int64  `json:"download_count"`
}

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     int64     `json:"value"`
}

type AssetSeries struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// RepositorySeries is the per-asset time series of one repository together
// with the bounding box over all of its points.
type RepositorySeries struct {
	Name         string                 `json:"name"`
	Assets       map[int64]*AssetSeries `json:"-"`
	AssetOrder   []int64                `json:"-"`
	MinTimestamp time.Time              `json:"min_timestamp"`
	MaxTimestamp time.Time              `json:"max_timestamp"`
	MinValue     int64                  `json:"min_value"`
	MaxValue     int64                  `json:"max_value"`
}

// OrderedAssets returns the assets in first-seen order.
func (r *RepositorySeries) OrderedAssets() []*AssetSeries {
	out := make([]*AssetSeries, 0, len(r.AssetOrder))
	for _, id := range r.AssetOrder {
		out = append(out, r.Assets[id])
	}
	return out
}

// PointCount returns the number of points across all assets.
func (r *RepositorySeries) PointCount() int {
	n := 0
	for _, a := range r.Assets {
		n += len(a.Points)
	}
	return n
}

// MarshalJSON encodes the assets as a list in first-seen order so the
// output is stable across runs.
func (r *RepositorySeries) MarshalJSON() ([]byte, error) {
	type plain RepositorySeries
	return json.Marshal(struct {
		*plain
		Assets []*AssetSeries `json:"assets"`
	}{(*plain)(r), r.OrderedAssets()})
}

func (r *RepositorySeries) Summary() RepositorySummary {
	return RepositorySummary{
		Name:         r.Name,
		Assets:       len(r.Assets),
		Points:       r.PointCount(),
		MinTimestamp: r.MinTimestamp,
		MaxTimestamp: r.MaxTimestamp,
		MinValue:     r.MinValue,
		MaxValue:     r.MaxValue,
	}
}

// SeriesSet holds every repository series keyed by name, with Order
// recording the first-seen order of repositories.
type SeriesSet struct {
	Repos map[string]*RepositorySeries
	Order []string
}

// Ordered returns the repositories in first-seen order.
func (s *SeriesSet) Ordered() []*RepositorySeries {
	out := make([]*RepositorySeries, 0, len(s.Order))
	for _, name := range s.Order {
		out = append(out, s.Repos[name])
	}
	return out
}

type ChartFile struct {
	FileName string `json:"file_name"`
	Title    string `json:"title"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
}

// RepoOutcome is the result of collecting a single repository.
type RepoOutcome struct {
	Repo string
	Rows int
	Err  error
}

type RunReport struct {
	CapturedAt time.Time
	Outcomes   []RepoOutcome
}

// Failed returns the outcomes that carry an error.
func (r RunReport) Failed() []RepoOutcome {
	var failed []RepoOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

func (r RunReport) TotalRows() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Rows
	}
	return n
}

type RepositorySummary struct {
	Name         string    `json:"name"`
	Assets       int       `json:"assets"`
	Points       int       `json:"points"`
	MinTimestamp time.Time `json:"min_timestamp"`
	MaxTimestamp time.Time `json:"max_timestamp"`
	MinValue     int64     `json:"min_value"`
	MaxValue     int64     `json:"max_value"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}
