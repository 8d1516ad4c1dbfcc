package repository

import (
	"context"
	"time"

	"github.com/hydronote/groundwatch/internal/task"
)

// RunRepository records task runs and their step events in Postgres for the
// audit trail and dashboard history. Callers treat it as optional: a nil
// repository means no history is kept.
type RunRepository interface {
	SaveRun(ctx context.Context, t *task.Task) error
	MarkRunning(ctx context.Context, taskID string) error
	CompleteRun(ctx context.Context, taskID string, durationMs int) error
	FailRun(ctx context.Context, taskID, reason string, durationMs int) error
	LogEvent(ctx context.Context, taskID, step, status, message string) error
	GetRunStats(ctx context.Context, hours int) ([]RunStats, error)
	GetRecentRuns(ctx context.Context, limit int) ([]RecentRun, error)
	Close() error
}

type RunStats struct {
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	Count         int     `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MaxDurationMs int     `json:"max_duration_ms"`
	MinDurationMs int     `json:"min_duration_ms"`
}

type RecentRun struct {
	TaskID     string     `json:"task_id"`
	OrgID      string     `json:"org_id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs *int       `json:"duration_ms,omitempty"`
	Error      string     `json:"error,omitempty"`
}
