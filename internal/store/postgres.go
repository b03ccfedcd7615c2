package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoequity/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
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
CREATE TABLE IF NOT EXISTS score_history (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind        TEXT NOT NULL DEFAULT 'simple',
	business_id TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	score       DOUBLE PRECISION NOT NULL,
	retained    DOUBLE PRECISION NOT NULL,
	paf         DOUBLE PRECISION NOT NULL DEFAULT 1,
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_score_history_business ON score_history(business_id);
CREATE INDEX IF NOT EXISTS idx_score_history_created ON score_history(created_at DESC);
`

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var scoreColumns = []string{
	"id", "kind", "business_id", "name", "postal_code",
	"score", "retained", "paf", "result", "created_at",
}

// SaveScore inserts a record, assigning its id and timestamp if unset.
func (s *PostgresStore) SaveScore(ctx context.Context, rec *ScoreRecord) error {
	if err := prepare(rec, time.Now()); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO score_history (id, kind, business_id, name, postal_code, score, retained, paf, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		postgresArgs(rec)...,
	)
	return eris.Wrapf(err, "postgres: insert score %s", rec.ID)
}

// SaveScores bulk-inserts records with COPY.
func (s *PostgresStore) SaveScores(ctx context.Context, recs []ScoreRecord) (int64, error) {
	now := time.Now()
	rows := make([][]any, 0, len(recs))
	for i := range recs {
		if err := prepare(&recs[i], now); err != nil {
			return 0, err
		}
		rows = append(rows, postgresArgs(&recs[i]))
	}
	n, err := db.CopyFrom(ctx, s.pool, "score_history", scoreColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save scores")
	}
	return n, nil
}

func postgresArgs(rec *ScoreRecord) []any {
	return []any{
		rec.ID, rec.Kind, rec.BusinessID, rec.Name, rec.PostalCode,
		rec.Score, rec.Retained, rec.PAF, []byte(rec.Result), rec.CreatedAt,
	}
}

const postgresSelectScore = `SELECT id, kind, business_id, name, postal_code, score, retained, paf, result, created_at FROM score_history`

// GetScore returns a record by id, or ErrNotFound.
func (s *PostgresStore) GetScore(ctx context.Context, id string) (*ScoreRecord, error) {
	rec, err := scanPostgresScore(s.pool.QueryRow(ctx, postgresSelectScore+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "score %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get score %s", id)
	}
	return rec, nil
}

// ListScores returns records newest first.
func (s *PostgresStore) ListScores(ctx context.Context, filter ScoreFilter) ([]ScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		postgresSelectScore+`
		 WHERE ($1 = '' OR business_id = $1) AND ($2 = '' OR kind = $2)
		 ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`,
		filter.BusinessID, filter.Kind, listLimit(filter.Limit), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scores")
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		rec, err := scanPostgresScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scores iterate")
}

// Summary aggregates the stored history.
func (s *PostgresStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0), COALESCE(AVG(retained), 0), COALESCE(AVG(paf), 0) FROM score_history`,
	).Scan(&sum.Total, &sum.AverageScore, &sum.AverageRetained, &sum.AveragePAF)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summary")
	}
	return &sum, nil
}

func scanPostgresScore(row pgx.Row) (*ScoreRecord, error) {
	var rec ScoreRecord
	var result []byte
	err := row.Scan(&rec.ID, &rec.Kind, &rec.BusinessID, &rec.Name, &rec.PostalCode,
		&rec.Score, &rec.Retained, &rec.PAF, &result, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Result = result
	return &rec, nil
}
