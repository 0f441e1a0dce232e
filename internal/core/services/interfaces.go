package services

import (
	"context"
	"io"

	"github.com/foundry/releasestats/internal/core/models"
)

// SnapshotStore is the append-only log of asset download counts.
type SnapshotStore interface {
	// EnsureSchema creates the snapshot table if the existence probe fails.
	EnsureSchema(ctx context.Context) error

	// InsertSnapshots appends rows in a single transaction and returns the
	// number of rows written.
	InsertSnapshots(ctx context.Context, rows []models.Snapshot) (int, error)

	// ListSnapshots returns every row ordered by capture time ascending.
	ListSnapshots(ctx context.Context) ([]models.Snapshot, error)

	// Close closes the store.
	Close() error
}

// ReleaseSource lists the releases of a repository.
type ReleaseSource interface {
	// ListReleases returns the releases of repo, given in owner/repo form.
	ListReleases(ctx context.Context, repo string) ([]models.Release, error)
}

// OutputDir receives rendered artifacts.
type OutputDir interface {
	// WriteFile stores the content of r under name, returning the
	// hex-encoded SHA256 and the number of bytes written.
	WriteFile(name string, r io.Reader) (hash string, size int64, err error)

	// Path returns the full path for name.
	Path(name string) string
}
