// Package dashboard implements the monitoring endpoints summarizing task,
// forecast, and alert state for one organization.
package dashboard

import (
	"net/http"
	"time"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/httputil"
	"github.com/hydronote/groundwatch/internal/store"
	"github.com/hydronote/groundwatch/internal/task"
)

type Dashboard struct {
	store *store.Store
}

type Stats struct {
	TotalTasks        int            `json:"total_tasks"`
	QueuedTasks       int            `json:"queued_tasks"`
	RunningTasks      int            `json:"running_tasks"`
	SucceededTasks    int            `json:"succeeded_tasks"`
	FailedTasks       int            `json:"failed_tasks"`
	TasksByKind       map[string]int `json:"tasks_by_kind"`
	ForecastsByStatus map[string]int `json:"forecasts_by_status"`
	EnabledAlerts     int            `json:"enabled_alerts"`
	MonitoredWells    int            `json:"monitored_wells"`
	AverageRunTime    string         `json:"average_run_time"`
	LastUpdated       time.Time      `json:"last_updated"`
}

type TaskSummary struct {
	TaskID     string      `json:"task_id"`
	Kind       task.Kind   `json:"kind"`
	Status     task.Status `json:"status"`
	Progress   int         `json:"progress"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at"`
	Duration   string      `json:"duration"`
}

func NewDashboard(st *store.Store) *Dashboard {
	return &Dashboard{store: st}
}

func (d *Dashboard) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := r.Header.Get("X-Org-ID")

	tasks, err := d.store.ListTasks(ctx, orgID)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats := Stats{
		TotalTasks:        len(tasks),
		TasksByKind:       make(map[string]int),
		ForecastsByStatus: make(map[string]int),
		LastUpdated:       time.Now(),
	}

	var totalRunTime time.Duration
	finished := 0

	for _, t := range tasks {
		switch t.Status {
		case task.StatusQueued:
			stats.QueuedTasks++
		case task.StatusRunning:
			stats.RunningTasks++
		case task.StatusSuccess:
			stats.SucceededTasks++
		case task.StatusFailed:
			stats.FailedTasks++
		}

		stats.TasksByKind[string(t.Kind)]++

		if t.Terminal() {
			totalRunTime += t.Duration()
			finished++
		}
	}

	if finished > 0 {
		stats.AverageRunTime = (totalRunTime / time.Duration(finished)).Round(time.Millisecond).String()
	} else {
		stats.AverageRunTime = "0s"
	}

	forecasts, err := d.store.ListForecasts(ctx, orgID)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, f := range forecasts {
		stats.ForecastsByStatus[string(f.Status)]++
	}

	alerts, err := d.store.ListAlerts(ctx, orgID)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, a := range alerts {
		if a.Status == domain.AlertEnabled {
			stats.EnabledAlerts++
		}
	}

	wells, err := d.store.ListWells(ctx, orgID)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats.MonitoredWells = len(wells)

	httputil.WriteJSON(w, stats, http.StatusOK)
}

// GetRecentTasks lists the organization's newest tasks, most recent first.
func (d *Dashboard) GetRecentTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := d.store.ListTasks(r.Context(), r.Header.Get("X-Org-ID"))
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	const limit = 20
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}

	summaries := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, TaskSummary{
			TaskID:     t.ID,
			Kind:       t.Kind,
			Status:     t.Status,
			Progress:   t.Progress,
			CreatedAt:  t.CreatedAt,
			FinishedAt: t.FinishedAt,
			Duration:   t.Duration().Round(time.Millisecond).String(),
		})
	}

	httputil.WriteJSON(w, summaries, http.StatusOK)
}
