package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
)

// SQLStore implements SnapshotStore on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the store and makes sure the snapshot table exists.
// For the sqlite driver dsn is a file path; for postgres a connection URL.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %v", services.ErrStoreUnavailable, err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up schema: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an already opened database. The schema is not touched.
func NewWithDB(db *sql.DB, driver string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func openDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := sql.Open("sqlite", dsn+"?_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		// One connection serialises the concurrent collector inserts.
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		return db, nil
	}
}

// EnsureSchema probes the snapshot table with a trivial read and creates it
// when the probe fails. Safe to call on every run.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, probeQuery)
	if err == nil {
		return rows.Close()
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("creating assets table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createIndex); err != nil {
		return fmt.Errorf("creating assets index: %w", err)
	}
	return nil
}

func (s *SQLStore) InsertSnapshots(ctx context.Context, rows []models.Snapshot) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.insertQuery()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, query,
			r.AssetID, r.AssetName, r.RepoName, r.DownloadCount, r.ReleaseID, r.ReleaseTagName, r.CapturedAt.UTC(),
		); err != nil {
			return 0, fmt.Errorf("inserting snapshot of asset %d: %w", r.AssetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshots: %w", err)
	}
	return len(rows), nil
}

func (s *SQLStore) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w: %w", services.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var r models.Snapshot
		if err := rows.Scan(&r.PKey, &r.AssetID, &r.AssetName, &r.RepoName, &r.DownloadCount, &r.ReleaseID, &r.ReleaseTagName, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		r.CapturedAt = r.CapturedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
