package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Schema creates the attempts table. It is safe to run on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id          UUID PRIMARY KEY,
		quiz_id     TEXT NOT NULL,
		score       INTEGER NOT NULL,
		total       INTEGER NOT NULL,
		results     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS quiz_attempts_quiz_id_idx ON quiz_attempts (quiz_id, created_at)`,
}

// PostgresLog is a PostgreSQL-backed Log.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog creates a log over pool. The schema must already exist.
func NewPostgresLog(pool *pgxpool.Pool) (*PostgresLog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresLog{pool: pool}, nil
}

func (l *PostgresLog) Record(ctx context.Context, a Attempt) (Attempt, error) {
	a, err := prepare(a)
	if err != nil {
		return Attempt{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, score, total, results, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
		a.ID, a.QuizID, a.Score, a.Total, a.Results, a.CreatedAt,
	)
	if err != nil {
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return a, nil
}

func (l *PostgresLog) List(ctx context.Context, quizID string) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT id::text, quiz_id, score, total, results, created_at
		 FROM quiz_attempts
		 WHERE quiz_id = $1
		 ORDER BY created_at ASC, id ASC`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Attempt, error) {
		var a Attempt
		err := row.Scan(&a.ID, &a.QuizID, &a.Score, &a.Total, &a.Results, &a.CreatedAt)
		a.CreatedAt = a.CreatedAt.UTC()
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan attempts: %w", err)
	}
	return attempts, nil
}
