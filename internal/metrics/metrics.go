// Package metrics provides Prometheus metrics for the task engine and the
// forecast/alert domain services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hydronote/groundwatch/internal/task"
)

var (
	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_tasks_created_total",
			Help: "Total number of tasks created",
		},
		[]string{"kind"},
	)
	TasksSucceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_tasks_succeeded_total",
			Help: "Total number of tasks that reached success",
		},
		[]string{"kind"},
	)
	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_tasks_failed_total",
			Help: "Total number of tasks that failed",
		},
		[]string{"kind"},
	)
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundwatch_task_duration_seconds",
			Help:    "Task wall-clock duration from start to terminal state",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind", "status"},
	)
	TasksByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "groundwatch_tasks_by_status",
			Help: "Current number of tasks by status and kind",
		},
		[]string{"status", "kind"},
	)
	ForecastPointsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groundwatch_forecast_points_generated_total",
			Help: "Total number of forecast series points generated",
		},
	)
	ForecastsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_forecasts_completed_total",
			Help: "Total number of forecasts finished, by terminal status",
		},
		[]string{"status"},
	)
	AlertsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_alerts_evaluated_total",
			Help: "Total number of alert evaluations",
		},
		[]string{"condition"},
	)
	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_notifications_emitted_total",
			Help: "Total number of notifications emitted",
		},
		[]string{"severity"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordTaskCreated(kind string) {
	TasksCreated.WithLabelValues(kind).Inc()
}

func RecordTaskSucceeded(kind string, duration time.Duration) {
	TasksSucceeded.WithLabelValues(kind).Inc()
	TaskDuration.WithLabelValues(kind, "success").Observe(duration.Seconds())
}

func RecordTaskFailed(kind string, duration time.Duration) {
	TasksFailed.WithLabelValues(kind).Inc()
	TaskDuration.WithLabelValues(kind, "failed").Observe(duration.Seconds())
}

func RecordForecastCompleted(status string, points int) {
	ForecastsCompleted.WithLabelValues(status).Inc()
	ForecastPointsGenerated.Add(float64(points))
}

func RecordAlertEvaluated(condition string) {
	AlertsEvaluated.WithLabelValues(condition).Inc()
}

func RecordNotificationEmitted(severity string) {
	NotificationsEmitted.WithLabelValues(severity).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func UpdateTaskGauges(tasksByStatus map[task.Status]map[task.Kind]int) {
	TasksByStatus.Reset()
	for status, kindMap := range tasksByStatus {
		for kind, count := range kindMap {
			TasksByStatus.WithLabelValues(string(status), string(kind)).Set(float64(count))
		}
	}
}
