// Package journal records deployment runs in PostgreSQL so repeated
// experiment campaigns can be audited after the fact: which topology was
// deployed when, how far it got, and what killed it.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound means the requested run id is not journaled.
var ErrRunNotFound = errors.New("deployment run not found")

// Run is one journaled orchestrator operation.
type Run struct {
	ID         uuid.UUID
	Topology   string
	Operation  string
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Journal persists runs. A nil *PGJournal is a valid no-op journal so the
// orchestrator works without a database configured.
type Journal interface {
	Begin(ctx context.Context, topologyName, operation string) (uuid.UUID, error)
	UpdateState(ctx context.Context, runID uuid.UUID, state string) error
	Finish(ctx context.Context, runID uuid.UUID, runErr error) error
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, topologyName string) ([]*Run, error)
}

// PGJournal handles run persistence using PostgreSQL.
type PGJournal struct {
	pool *pgxpool.Pool
}

// NewPGJournal connects, verifies the connection, and migrates.
func NewPGJournal(ctx context.Context, databaseURL string) (*PGJournal, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	j := &PGJournal{pool: pool}
	if err := j.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return j, nil
}

func (j *PGJournal) migrate(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deployment_runs (
			id UUID PRIMARY KEY,
			topology TEXT NOT NULL,
			operation TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'not_deployed',
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_deployment_runs_topology
			ON deployment_runs (topology, started_at DESC);
	`)
	return err
}

// Begin journals the start of an operation and returns its run id.
func (j *PGJournal) Begin(ctx context.Context, topologyName, operation string) (uuid.UUID, error) {
	runID := uuid.New()
	_, err := j.pool.Exec(ctx, `
		INSERT INTO deployment_runs (id, topology, operation, started_at)
		VALUES ($1, $2, $3, NOW())
	`, runID, topologyName, operation)
	if err != nil {
		return uuid.Nil, fmt.Errorf("journal run start: %w", err)
	}
	return runID, nil
}

// UpdateState records the orchestrator's state transition.
func (j *PGJournal) UpdateState(ctx context.Context, runID uuid.UUID, state string) error {
	tag, err := j.pool.Exec(ctx, `
		UPDATE deployment_runs SET state = $2 WHERE id = $1
	`, runID, state)
	if err != nil {
		return fmt.Errorf("journal state update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Finish closes the run, recording the failure if any.
func (j *PGJournal) Finish(ctx context.Context, runID uuid.UUID, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	tag, err := j.pool.Exec(ctx, `
		UPDATE deployment_runs SET finished_at = NOW(), error = $2 WHERE id = $1
	`, runID, errText)
	if err != nil {
		return fmt.Errorf("journal run finish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun fetches one run.
func (j *PGJournal) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	row := j.pool.QueryRow(ctx, `
		SELECT id, topology, operation, state, error, started_at, finished_at
		FROM deployment_runs WHERE id = $1
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns fetches a topology's runs, most recent first.
func (j *PGJournal) ListRuns(ctx context.Context, topologyName string) ([]*Run, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT id, topology, operation, state, error, started_at, finished_at
		FROM deployment_runs WHERE topology = $1
		ORDER BY started_at DESC
	`, topologyName)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Topology, &run.Operation, &run.State,
		&run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Close closes the connection pool.
func (j *PGJournal) Close() error {
	j.pool.Close()
	return nil
}

// NopJournal discards everything, for runs without a database.
type NopJournal struct{}

func (NopJournal) Begin(context.Context, string, string) (uuid.UUID, error) { return uuid.New(), nil }
func (NopJournal) UpdateState(context.Context, uuid.UUID, string) error     { return nil }
func (NopJournal) Finish(context.Context, uuid.UUID, error) error           { return nil }
func (NopJournal) GetRun(context.Context, uuid.UUID) (*Run, error)          { return nil, ErrRunNotFound }
func (NopJournal) ListRuns(context.Context, string) ([]*Run, error)         { return nil, nil }
