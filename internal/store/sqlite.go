package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS score_history (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL DEFAULT 'simple',
	business_id TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	score       REAL NOT NULL,
	retained    REAL NOT NULL,
	paf         REAL NOT NULL DEFAULT 1,
	result      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_score_history_business ON score_history(business_id);
CREATE INDEX IF NOT EXISTS idx_score_history_created ON score_history(created_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertScore = `INSERT INTO score_history
	(id, kind, business_id, name, postal_code, score, retained, paf, result, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveScore inserts a record, assigning its id and timestamp if unset.
func (s *SQLiteStore) SaveScore(ctx context.Context, rec *ScoreRecord) error {
	if err := prepare(rec, time.Now()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, sqliteInsertScore, sqliteArgs(rec)...)
	return eris.Wrapf(err, "sqlite: insert score %s", rec.ID)
}

// SaveScores inserts records in a single transaction.
func (s *SQLiteStore) SaveScores(ctx context.Context, recs []ScoreRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertScore)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now()
	for i := range recs {
		if err := prepare(&recs[i], now); err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, sqliteArgs(&recs[i])...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert score %s", recs[i].ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return int64(len(recs)), nil
}

func sqliteArgs(rec *ScoreRecord) []any {
	return []any{
		rec.ID, rec.Kind, rec.BusinessID, rec.Name, rec.PostalCode,
		rec.Score, rec.Retained, rec.PAF, string(rec.Result), rec.CreatedAt,
	}
}

const sqliteSelectScore = `SELECT id, kind, business_id, name, postal_code, score, retained, paf, result, created_at FROM score_history`

// GetScore returns a record by id, or ErrNotFound.
func (s *SQLiteStore) GetScore(ctx context.Context, id string) (*ScoreRecord, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectScore+` WHERE id = ?`, id)
	rec, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "score %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get score %s", id)
	}
	return rec, nil
}

// ListScores returns records newest first.
func (s *SQLiteStore) ListScores(ctx context.Context, filter ScoreFilter) ([]ScoreRecord, error) {
	query := sqliteSelectScore + ` WHERE 1=1`
	var args []any

	if filter.BusinessID != "" {
		query += ` AND business_id = ?`
		args = append(args, filter.BusinessID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scores")
	}
	defer rows.Close() //nolint:errcheck

	var out []ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scores iterate")
}

// Summary aggregates the stored history.
func (s *SQLiteStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0), COALESCE(AVG(retained), 0), COALESCE(AVG(paf), 0) FROM score_history`,
	).Scan(&sum.Total, &sum.AverageScore, &sum.AverageRetained, &sum.AveragePAF)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summary")
	}
	return &sum, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScore(row scannable) (*ScoreRecord, error) {
	var rec ScoreRecord
	var result string
	err := row.Scan(&rec.ID, &rec.Kind, &rec.BusinessID, &rec.Name, &rec.PostalCode,
		&rec.Score, &rec.Retained, &rec.PAF, &result, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Result = []byte(result)
	return &rec, nil
}
