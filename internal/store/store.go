// Package store provides the shared document store backing tasks, forecasts,
// alerts, and notifications. Every collection is one Redis hash; series and
// result rows are stored as one JSON array per forecast id so a rerun
// replaces the whole set atomically. A single mutex serializes every
// read-modify-write: task tickers for concurrent tasks must never observe a
// half-applied mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/task"
)

var ErrNotFound = errors.New("not found")

const (
	hashPlains        = "plains"
	hashAquifers      = "aquifers"
	hashWells         = "wells"
	hashTasks         = "tasks"
	hashForecasts     = "forecasts"
	hashSeries        = "forecast_series"
	hashResults       = "forecast_results"
	hashAlerts        = "alerts"
	hashHistory       = "alert_history"
	hashNotifications = "notifications"
)

type Store struct {
	client *redis.Client
	mu     sync.Mutex
}

func New(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// put and get assume s.mu is held by the caller.
func (s *Store) put(ctx context.Context, hash, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", hash, key, err)
	}

	return s.client.HSet(ctx, hash, key, string(data)).Err()
}

func (s *Store) get(ctx context.Context, hash, key string, v any) error {
	data, err := s.client.HGet(ctx, hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s %s: %w", hash, key, ErrNotFound)
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), v)
}

func (s *Store) all(ctx context.Context, hash string, decode func(string) error) error {
	entries, err := s.client.HGetAll(ctx, hash).Result()
	if err != nil {
		return err
	}

	for _, data := range entries {
		if err := decode(data); err != nil {
			continue
		}
	}

	return nil
}

// Wells, plains, aquifers

func (s *Store) SavePlain(ctx context.Context, p *domain.Plain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashPlains, p.ID, p)
}

func (s *Store) ListPlains(ctx context.Context, orgID string) ([]domain.Plain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var plains []domain.Plain
	err := s.all(ctx, hashPlains, func(data string) error {
		var p domain.Plain
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return err
		}
		if p.OrgID == orgID {
			plains = append(plains, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(plains, func(i, j int) bool { return plains[i].Name < plains[j].Name })
	return plains, nil
}

func (s *Store) SaveAquifer(ctx context.Context, a *domain.Aquifer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashAquifers, a.ID, a)
}

func (s *Store) ListAquifers(ctx context.Context, orgID string) ([]domain.Aquifer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var aquifers []domain.Aquifer
	err := s.all(ctx, hashAquifers, func(data string) error {
		var a domain.Aquifer
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return err
		}
		if a.OrgID == orgID {
			aquifers = append(aquifers, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(aquifers, func(i, j int) bool { return aquifers[i].Name < aquifers[j].Name })
	return aquifers, nil
}

func (s *Store) SaveWell(ctx context.Context, w *domain.Well) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashWells, w.ID, w)
}

func (s *Store) GetWell(ctx context.Context, orgID, wellID string) (*domain.Well, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var w domain.Well
	if err := s.get(ctx, hashWells, wellID, &w); err != nil {
		return nil, err
	}
	if w.OrgID != orgID {
		return nil, fmt.Errorf("well %s: %w", wellID, ErrNotFound)
	}

	return &w, nil
}

func (s *Store) ListWells(ctx context.Context, orgID string) ([]domain.Well, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wells []domain.Well
	err := s.all(ctx, hashWells, func(data string) error {
		var w domain.Well
		if err := json.Unmarshal([]byte(data), &w); err != nil {
			return err
		}
		if w.OrgID == orgID {
			wells = append(wells, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(wells, func(i, j int) bool { return wells[i].Name < wells[j].Name })
	return wells, nil
}

// Tasks

func (s *Store) SaveTask(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashTasks, t.ID, t)
}

// GetTask is the org-scoped lookup used by callers; a task owned by another
// organization reads as absent.
func (s *Store) GetTask(ctx context.Context, orgID, taskID string) (*task.Task, error) {
	t, err := s.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OrgID != orgID {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	return t, nil
}

// GetTaskByID is the unscoped lookup used by the engine internals.
func (s *Store) GetTaskByID(ctx context.Context, taskID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t task.Task
	if err := s.get(ctx, hashTasks, taskID, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// UpdateTask applies mutate to the stored task as one atomic
// read-modify-write and returns the updated copy. Every engine tick goes
// through here.
func (s *Store) UpdateTask(ctx context.Context, taskID string, mutate func(*task.Task) error) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t task.Task
	if err := s.get(ctx, hashTasks, taskID, &t); err != nil {
		return nil, err
	}
	if err := mutate(&t); err != nil {
		return nil, err
	}
	if err := s.put(ctx, hashTasks, taskID, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

func (s *Store) AllTasks(ctx context.Context) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*task.Task
	err := s.all(ctx, hashTasks, func(data string) error {
		t, err := task.FromJSON(data)
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func (s *Store) ListTasks(ctx context.Context, orgID string) ([]*task.Task, error) {
	tasks, err := s.AllTasks(ctx)
	if err != nil {
		return nil, err
	}

	scoped := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.OrgID == orgID {
			scoped = append(scoped, t)
		}
	}

	sort.Slice(scoped, func(i, j int) bool { return scoped[i].CreatedAt.After(scoped[j].CreatedAt) })
	return scoped, nil
}

// Forecasts

func (s *Store) SaveForecast(ctx context.Context, f *domain.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashForecasts, f.ID, f)
}

func (s *Store) GetForecast(ctx context.Context, orgID, forecastID string) (*domain.Forecast, error) {
	f, err := s.GetForecastByID(ctx, forecastID)
	if err != nil {
		return nil, err
	}
	if f.OrgID != orgID {
		return nil, fmt.Errorf("forecast %s: %w", forecastID, ErrNotFound)
	}

	return f, nil
}

func (s *Store) GetForecastByID(ctx context.Context, forecastID string) (*domain.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f domain.Forecast
	if err := s.get(ctx, hashForecasts, forecastID, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

func (s *Store) UpdateForecast(ctx context.Context, forecastID string, mutate func(*domain.Forecast) error) (*domain.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f domain.Forecast
	if err := s.get(ctx, hashForecasts, forecastID, &f); err != nil {
		return nil, err
	}
	if err := mutate(&f); err != nil {
		return nil, err
	}
	if err := s.put(ctx, hashForecasts, forecastID, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

func (s *Store) ListForecasts(ctx context.Context, orgID string) ([]domain.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var forecasts []domain.Forecast
	err := s.all(ctx, hashForecasts, func(data string) error {
		var f domain.Forecast
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return err
		}
		if f.OrgID == orgID {
			forecasts = append(forecasts, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(forecasts, func(i, j int) bool { return forecasts[i].CreatedAt.After(forecasts[j].CreatedAt) })
	return forecasts, nil
}

// ReplaceSeries swaps the complete series row set for a forecast. Stale rows
// from a previous run never survive a rerun.
func (s *Store) ReplaceSeries(ctx context.Context, forecastID string, points []domain.SeriesPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if points == nil {
		points = []domain.SeriesPoint{}
	}

	return s.put(ctx, hashSeries, forecastID, points)
}

func (s *Store) Series(ctx context.Context, forecastID string) ([]domain.SeriesPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var points []domain.SeriesPoint
	if err := s.get(ctx, hashSeries, forecastID, &points); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return points, nil
}

func (s *Store) WellSeries(ctx context.Context, forecastID, wellID string) ([]domain.SeriesPoint, error) {
	points, err := s.Series(ctx, forecastID)
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.SeriesPoint, 0, len(points))
	for _, p := range points {
		if p.WellID == wellID {
			filtered = append(filtered, p)
		}
	}

	return filtered, nil
}

func (s *Store) ReplaceWellResults(ctx context.Context, forecastID string, results []domain.WellForecastResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if results == nil {
		results = []domain.WellForecastResult{}
	}

	return s.put(ctx, hashResults, forecastID, results)
}

func (s *Store) WellResults(ctx context.Context, forecastID string) ([]domain.WellForecastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []domain.WellForecastResult
	if err := s.get(ctx, hashResults, forecastID, &results); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return results, nil
}

// Alerts

func (s *Store) SaveAlert(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashAlerts, a.ID, a)
}

func (s *Store) GetAlert(ctx context.Context, orgID, alertID string) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a domain.Alert
	if err := s.get(ctx, hashAlerts, alertID, &a); err != nil {
		return nil, err
	}
	if a.OrgID != orgID {
		return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}

	return &a, nil
}

func (s *Store) UpdateAlert(ctx context.Context, alertID string, mutate func(*domain.Alert) error) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a domain.Alert
	if err := s.get(ctx, hashAlerts, alertID, &a); err != nil {
		return nil, err
	}
	if err := mutate(&a); err != nil {
		return nil, err
	}
	if err := s.put(ctx, hashAlerts, alertID, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

func (s *Store) ListAlerts(ctx context.Context, orgID string) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alerts []domain.Alert
	err := s.all(ctx, hashAlerts, func(data string) error {
		var a domain.Alert
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return err
		}
		if a.OrgID == orgID {
			alerts = append(alerts, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Name < alerts[j].Name })
	return alerts, nil
}

// Alert history

func (s *Store) AppendHistory(ctx context.Context, entry *domain.AlertHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashHistory, entry.ID, entry)
}

func (s *Store) GetHistoryEntry(ctx context.Context, historyID string) (*domain.AlertHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry domain.AlertHistoryEntry
	if err := s.get(ctx, hashHistory, historyID, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *Store) HistoryFor(ctx context.Context, alertID string) ([]domain.AlertHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.AlertHistoryEntry
	err := s.all(ctx, hashHistory, func(data string) error {
		var entry domain.AlertHistoryEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return err
		}
		if entry.AlertID == alertID {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].TriggeredAt.After(entries[j].TriggeredAt) })
	return entries, nil
}

// AckHistory records the acknowledgement once; a second ack is a no-op.
func (s *Store) AckHistory(ctx context.Context, historyID, userID string) (*domain.AlertHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry domain.AlertHistoryEntry
	if err := s.get(ctx, hashHistory, historyID, &entry); err != nil {
		return nil, err
	}

	if entry.AcknowledgedAt == nil {
		now := nowUTC()
		entry.AcknowledgedAt = &now
		entry.AcknowledgedBy = userID
		if err := s.put(ctx, hashHistory, historyID, &entry); err != nil {
			return nil, err
		}
	}

	return &entry, nil
}

// Notifications

func (s *Store) AppendNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, hashNotifications, n.ID, n)
}

func (s *Store) NotificationsFor(ctx context.Context, orgID string) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notifications []domain.Notification
	err := s.all(ctx, hashNotifications, func(data string) error {
		var n domain.Notification
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return err
		}
		if n.OrgID == orgID {
			notifications = append(notifications, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(notifications, func(i, j int) bool { return notifications[i].CreatedAt.After(notifications[j].CreatedAt) })
	return notifications, nil
}
