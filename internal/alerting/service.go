package alerting

import (
	"context"
	"fmt"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/metrics"
	"github.com/hydronote/groundwatch/internal/notify"
	"github.com/hydronote/groundwatch/internal/store"
)

// Service runs on-demand alert evaluations and records their side effects.
type Service struct {
	store *store.Store
	sink  notify.Sink
}

func NewService(st *store.Store, sink notify.Sink) *Service {
	return &Service{
		store: st,
		sink:  sink,
	}
}

// TestRunResult is the synchronous answer to a manual evaluation.
type TestRunResult struct {
	Affected  []string `json:"affected_wells"`
	HistoryID string   `json:"history_id"`
	Summary   string   `json:"summary"`
}

// TestRun evaluates one alert right now against the organization's wells.
// Every run stamps the alert and appends a history entry, even when nothing
// matched; a notification goes out only when the in-app channel is enabled
// and at least one well is affected.
func (s *Service) TestRun(ctx context.Context, orgID, alertID string) (*TestRunResult, error) {
	alert, err := s.store.GetAlert(ctx, orgID, alertID)
	if err != nil {
		return nil, err
	}

	wells, err := s.store.ListWells(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list wells: %w", err)
	}

	affected := Evaluate(alert, wells)
	affectedIDs := make([]string, 0, len(affected))
	for _, w := range affected {
		affectedIDs = append(affectedIDs, w.ID)
	}

	summary := fmt.Sprintf("Alert %q matched %d of %d wells in scope.", alert.Name, len(affected), len(InScope(alert, wells)))
	entry := domain.NewAlertHistoryEntry(alert, affectedIDs, summary)

	// History and the trigger stamp are persisted before any notification
	// leaves the process.
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	updated, err := s.store.UpdateAlert(ctx, alert.ID, func(a *domain.Alert) error {
		a.LastTriggeredAt = &entry.TriggeredAt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stamp alert: %w", err)
	}

	metrics.RecordAlertEvaluated(string(alert.Condition.Type))

	if updated.NotifyInApp && len(affected) > 0 && s.sink != nil {
		n := domain.NewNotification(
			alert.OrgID,
			alert.CreatedBy,
			fmt.Sprintf("Alert triggered: %s", alert.Name),
			summary,
			alert.Severity,
		)
		n.Related = &domain.RelatedRef{Kind: "alert", ID: alert.ID}
		n.Email = updated.NotifyEmail
		s.sink.Emit(ctx, n)
	}

	return &TestRunResult{
		Affected:  affectedIDs,
		HistoryID: entry.ID,
		Summary:   summary,
	}, nil
}

// Acknowledge records who reviewed a history entry. Repeated calls fail; an
// entry is acknowledged once.
func (s *Service) Acknowledge(ctx context.Context, orgID, historyID, userID string) (*domain.AlertHistoryEntry, error) {
	entry, err := s.store.GetHistoryEntry(ctx, historyID)
	if err != nil {
		return nil, err
	}
	if entry.OrgID != orgID {
		return nil, store.ErrNotFound
	}

	return s.store.AckHistory(ctx, historyID, userID)
}
