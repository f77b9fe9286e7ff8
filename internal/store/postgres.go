package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/datasciencecampus/rap-for-maps/internal/db"
	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	params       JSONB NOT NULL,
	demand_count INTEGER NOT NULL,
	supply_count INTEGER NOT NULL,
	skipped      JSONB,
	status       TEXT NOT NULL DEFAULT 'running',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS zone_scores (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	demand_id TEXT NOT NULL,
	score     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, demand_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_zone_scores_run_id ON zone_scores(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.AnalysisParams, demandCount, supplyCount int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, demand_count, supply_count, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, paramsJSON, demandCount, supplyCount, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:          id,
		Params:      params,
		DemandCount: demandCount,
		SupplyCount: supplyCount,
		Status:      model.RunStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, skipped []string) error {
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skipped")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, skipped = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), skippedJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: complete run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: fail run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, params, demand_count, supply_count, skipped, status, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanPostgresRun(row.Scan)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, params, demand_count, supply_count, skipped, status, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return runs, nil
}

func (s *PostgresStore) SaveScores(ctx context.Context, runID string, scores []model.ZoneScore) error {
	rows := make([][]any, 0, len(scores))
	for _, zs := range scores {
		rows = append(rows, []any{runID, zs.DemandID, zs.Score})
	}
	_, err := db.CopyFrom(ctx, s.pool, "zone_scores", []string{"run_id", "demand_id", "score"}, rows)
	return err
}

func (s *PostgresStore) Scores(ctx context.Context, runID string) ([]model.ZoneScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT demand_id, score FROM zone_scores WHERE run_id = $1 ORDER BY demand_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query scores")
	}
	defer rows.Close()

	var scores []model.ZoneScore
	for rows.Next() {
		var zs model.ZoneScore
		if err := rows.Scan(&zs.DemandID, &zs.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		scores = append(scores, zs)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate scores")
	}
	return scores, nil
}

func scanPostgresRun(scan func(dest ...any) error) (*model.Run, error) {
	var run model.Run
	var paramsJSON []byte
	var skippedJSON []byte
	var status string

	if err := scan(&run.ID, &paramsJSON, &run.DemandCount, &run.SupplyCount, &skippedJSON, &status, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if len(skippedJSON) > 0 {
		if err := json.Unmarshal(skippedJSON, &run.Skipped); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal skipped")
		}
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}
