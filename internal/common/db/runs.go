package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS enrichment_runs (
	run_id         UUID PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	networks       INTEGER NOT NULL,
	empty_networks INTEGER NOT NULL,
	from_snapshot  BOOLEAN NOT NULL DEFAULT false,
	warning        TEXT
);
CREATE INDEX IF NOT EXISTS enrichment_runs_finished_at_idx ON enrichment_runs (finished_at);
`

// RunStore keeps the history of enrichment passes.
type RunStore struct {
	db *DB
}

func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating enrichment_runs: %w", err)
	}
	return nil
}

func (s *RunStore) RecordRun(ctx context.Context, run models.RunRecord) error {
	query := `
		INSERT INTO enrichment_runs (run_id, started_at, finished_at, networks, empty_networks, from_snapshot, warning)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`
	_, err := s.db.conn.ExecContext(ctx, query,
		run.RunID,
		run.StartedAt,
		run.FinishedAt,
		run.Networks,
		run.EmptyNetworks,
		run.FromSnapshot,
		run.Warning,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}

	s.db.logger.Debug("Recorded enrichment run", "run_id", run.RunID, "networks", run.Networks)
	return nil
}

// LatestRun returns the most recent run, or nil when there is none.
func (s *RunStore) LatestRun(ctx context.Context) (*models.RunRecord, error) {
	query := `
		SELECT run_id, started_at, finished_at, networks, empty_networks, from_snapshot, COALESCE(warning, '')
		FROM enrichment_runs
		ORDER BY finished_at DESC
		LIMIT 1
	`

	var run models.RunRecord
	err := s.db.conn.QueryRowContext(ctx, query).Scan(
		&run.RunID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Networks,
		&run.EmptyNetworks,
		&run.FromSnapshot,
		&run.Warning,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return &run, nil
}

// DeleteRunsBefore removes runs that finished before cutoff.
func (s *RunStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.conn.ExecContext(ctx, "DELETE FROM enrichment_runs WHERE finished_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return rows, nil
}
