// Package repository provides PostgreSQL persistence for task run history.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hydronote/groundwatch/internal/task"
)

type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunRepository(connectionString string) (*PostgresRunRepository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRunRepository{db: db}, nil
}

func (r *PostgresRunRepository) SaveRun(ctx context.Context, t *task.Task) error {
	stepNames := make([]string, 0, len(t.Steps))
	for _, s := range t.Steps {
		stepNames = append(stepNames, s.Name)
	}

	query := `
		INSERT INTO task_runs (
			task_id, org_id, kind, status, steps, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.OrgID,
		string(t.Kind),
		string(t.Status),
		strings.Join(stepNames, ","),
		t.CreatedAt,
	)

	return err
}

func (r *PostgresRunRepository) MarkRunning(ctx context.Context, taskID string) error {
	query := `
		UPDATE task_runs
		SET status = 'running',
		    started_at = NOW()
		WHERE task_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, taskID)
	return err
}

func (r *PostgresRunRepository) CompleteRun(ctx context.Context, taskID string, durationMs int) error {
	query := `
		UPDATE task_runs
		SET status = 'success',
		    finished_at = NOW(),
		    duration_ms = $1
		WHERE task_id = $2
	`

	_, err := r.db.ExecContext(ctx, query, durationMs, taskID)
	return err
}

func (r *PostgresRunRepository) FailRun(ctx context.Context, taskID, reason string, durationMs int) error {
	query := `
		UPDATE task_runs
		SET status = 'failed',
		    finished_at = NOW(),
		    duration_ms = $1,
		    error = $2
		WHERE task_id = $3
	`

	_, err := r.db.ExecContext(ctx, query, durationMs, reason, taskID)
	return err
}

func (r *PostgresRunRepository) LogEvent(ctx context.Context, taskID, step, status, message string) error {
	query := `
		INSERT INTO task_run_events (task_id, step, status, message, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	_, err := r.db.ExecContext(ctx, query, taskID, step, status, message)
	return err
}

func (r *PostgresRunRepository) GetRunStats(ctx context.Context, hours int) ([]RunStats, error) {
	query := `
		SELECT
			kind, status, COUNT(*) as count,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms,
			COALESCE(MAX(duration_ms), 0) as max_duration_ms,
			COALESCE(MIN(duration_ms), 0) as min_duration_ms
		FROM task_runs
		WHERE created_at > NOW() - INTERVAL '1 hour' * $1
		GROUP BY kind, status
		ORDER BY kind, status
	`
	rows, err := r.db.QueryContext(ctx, query, hours)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var stats []RunStats
	for rows.Next() {
		var s RunStats
		if err := rows.Scan(
			&s.Kind,
			&s.Status,
			&s.Count,
			&s.AvgDurationMs,
			&s.MaxDurationMs,
			&s.MinDurationMs,
		); err != nil {
			return nil, err
		}

		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (r *PostgresRunRepository) GetRecentRuns(ctx context.Context, limit int) ([]RecentRun, error) {
	query := `
		SELECT
			task_id, org_id, kind, status, created_at, finished_at,
			duration_ms, COALESCE(error, '')
		FROM task_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var runs []RecentRun
	for rows.Next() {
		var run RecentRun
		if err := rows.Scan(
			&run.TaskID,
			&run.OrgID,
			&run.Kind,
			&run.Status,
			&run.CreatedAt,
			&run.FinishedAt,
			&run.DurationMs,
			&run.Error,
		); err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *PostgresRunRepository) Close() error {
	return r.db.Close()
}
