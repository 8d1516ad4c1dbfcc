package forecast

import (
	"context"
	"fmt"
	"log"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/engine"
	"github.com/hydronote/groundwatch/internal/metrics"
	"github.com/hydronote/groundwatch/internal/notify"
	"github.com/hydronote/groundwatch/internal/scoring"
	"github.com/hydronote/groundwatch/internal/store"
	"github.com/hydronote/groundwatch/internal/task"
)

var runSteps = []string{"validate", "generate_series", "compute_risk", "publish"}

const (
	minHorizonMonths = 1
	maxHorizonMonths = 120
)

// Service creates forecasts and runs them to completion through the task
// engine. The forecast row flips from running to ready only after the series
// and results have been published.
type Service struct {
	store  *store.Store
	engine *engine.Engine
	sink   notify.Sink
}

func NewService(st *store.Store, eng *engine.Engine, sink notify.Sink) *Service {
	return &Service{
		store:  st,
		engine: eng,
		sink:   sink,
	}
}

type RunRequest struct {
	WellIDs       []string `json:"well_ids"`
	HorizonMonths int      `json:"horizon_months"`
	ModelRef      string   `json:"model_ref"`
	ScenarioRef   string   `json:"scenario_ref"`
	RequestedBy   string   `json:"requested_by"`
}

type RunResult struct {
	Forecast  *domain.Forecast `json:"forecast"`
	Task      *task.Task       `json:"task"`
	execution *engine.Execution
}

// Done is closed once the backing task has reached a terminal state and the
// publish or failure bookkeeping has run.
func (r *RunResult) Done() <-chan struct{} {
	return r.execution.Done()
}

// Run validates the request, persists a running forecast plus its backing
// task, and starts the run asynchronously. All projection work happens in the
// task's step callbacks; the returned forecast is still in the running state.
func (s *Service) Run(ctx context.Context, orgID string, req RunRequest) (*RunResult, error) {
	if len(req.WellIDs) == 0 {
		return nil, fmt.Errorf("at least one well is required")
	}
	if req.HorizonMonths < minHorizonMonths || req.HorizonMonths > maxHorizonMonths {
		return nil, fmt.Errorf("horizon must be between %d and %d months", minHorizonMonths, maxHorizonMonths)
	}

	wells := make([]domain.Well, 0, len(req.WellIDs))
	for _, id := range req.WellIDs {
		w, err := s.store.GetWell(ctx, orgID, id)
		if err != nil {
			return nil, fmt.Errorf("well %s: %w", id, err)
		}
		wells = append(wells, *w)
	}

	confidence := scoring.ConfidenceFor(scoring.MeanDataQuality(wells))
	f := domain.NewForecast(orgID, req.ModelRef, req.ScenarioRef, req.RequestedBy, req.WellIDs, req.HorizonMonths, confidence)
	if err := s.store.SaveForecast(ctx, f); err != nil {
		return nil, fmt.Errorf("persist forecast: %w", err)
	}

	t, err := s.engine.Create(ctx, orgID, task.KindForecastRun, runSteps, map[string]any{"forecast_id": f.ID})
	if err != nil {
		return nil, err
	}

	exec, err := s.engine.Run(t.ID, engine.Options{
		OnStep:    s.step(f.ID, wells),
		OnSuccess: func(*task.Task) { s.markReady(f.ID) },
		OnFail:    func(_ *task.Task, msg string) { s.markFailed(f.ID, msg) },
	})
	if err != nil {
		return nil, err
	}

	return &RunResult{Forecast: f, Task: t, execution: exec}, nil
}

// step performs the real work at the publish step; the earlier steps exist to
// make progress observable while the run is in flight.
func (s *Service) step(forecastID string, wells []domain.Well) func(*task.Task, string) error {
	return func(t *task.Task, name string) error {
		if name != "publish" {
			return nil
		}
		return s.publish(context.Background(), forecastID, wells)
	}
}

// publish regenerates and atomically replaces the series and result rows, so
// retrying a run never duplicates points.
func (s *Service) publish(ctx context.Context, forecastID string, wells []domain.Well) error {
	f, err := s.store.GetForecastByID(ctx, forecastID)
	if err != nil {
		return err
	}

	out := Generate(f, wells)
	if err := s.store.ReplaceSeries(ctx, f.ID, out.Series); err != nil {
		return fmt.Errorf("publish series: %w", err)
	}
	if err := s.store.ReplaceWellResults(ctx, f.ID, out.Results); err != nil {
		return fmt.Errorf("publish results: %w", err)
	}

	s.notifyElevated(ctx, f, wells, out.Results)
	metrics.RecordForecastCompleted(string(domain.ForecastReady), len(out.Series))
	return nil
}

func (s *Service) markReady(forecastID string) {
	_, err := s.store.UpdateForecast(context.Background(), forecastID, func(f *domain.Forecast) error {
		f.Status = domain.ForecastReady
		return nil
	})
	if err != nil {
		log.Printf("Failed to mark forecast %s ready: %v", forecastID, err)
	}
}

func (s *Service) markFailed(forecastID, cause string) {
	_, err := s.store.UpdateForecast(context.Background(), forecastID, func(f *domain.Forecast) error {
		f.Status = domain.ForecastFailed
		return nil
	})
	if err != nil {
		log.Printf("Failed to mark forecast %s failed: %v", forecastID, err)
	}
	metrics.RecordForecastCompleted(string(domain.ForecastFailed), 0)
	log.Printf("Forecast %s failed: %s", forecastID, cause)
}

// notifyElevated sends the requester one notification per well whose summary
// risk came out high or critical.
func (s *Service) notifyElevated(ctx context.Context, f *domain.Forecast, wells []domain.Well, results []domain.WellForecastResult) {
	if s.sink == nil || f.RequestedBy == "" {
		return
	}

	names := make(map[string]string, len(wells))
	for _, w := range wells {
		names[w.ID] = w.Name
	}

	for _, r := range results {
		if !r.RiskLevel.Elevated() {
			continue
		}

		severity := domain.SeverityWarning
		if r.RiskLevel == domain.RiskCritical {
			severity = domain.SeverityCritical
		}

		name := names[r.WellID]
		if name == "" {
			name = r.WellID
		}

		n := domain.NewNotification(
			f.OrgID,
			f.RequestedBy,
			fmt.Sprintf("Forecast risk %s for well %s", r.RiskLevel, name),
			fmt.Sprintf("Projected level %.2f m after %d months, drop rate %.2f m/month.", r.FinalP50, f.HorizonMonths, r.ExpectedDropRate),
			severity,
		)
		n.Related = &domain.RelatedRef{Kind: "forecast", ID: f.ID}
		s.sink.Emit(ctx, n)
	}
}
