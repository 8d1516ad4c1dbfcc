package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/engine"
	"github.com/hydronote/groundwatch/internal/notify"
	"github.com/hydronote/groundwatch/internal/store"
	"github.com/hydronote/groundwatch/internal/task"
)

const testTick = 5 * time.Millisecond

func setupTestService(t *testing.T) (*Service, *store.Store) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st, err := store.New(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := engine.New(st, nil, testTick)
	return NewService(st, eng, notify.NewDispatcher(st, nil)), st
}

func seedWell(t *testing.T, st *store.Store, id, orgID string, level *float64, risk, quality float64) {
	t.Helper()

	require.NoError(t, st.SaveWell(context.Background(), &domain.Well{
		ID:               id,
		OrgID:            orgID,
		Name:             "Well " + id,
		PlainID:          "plain-1",
		AquiferID:        "aq-1",
		LatestGwLevelM:   level,
		RiskScore:        risk,
		DataQualityScore: quality,
	}))
}

func awaitRun(t *testing.T, r *RunResult) {
	t.Helper()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("forecast run did not finish")
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestGenerate(t *testing.T) {
	f := domain.NewForecast("org-1", "model-a", "", "user-1", []string{"w-1", "w-2"}, 6, domain.ConfidenceHigh)
	wells := []domain.Well{
		{ID: "w-1", OrgID: "org-1", LatestGwLevelM: floatPtr(18.5), RiskScore: 0.3},
		{ID: "w-2", OrgID: "org-1", RiskScore: 0.9},
	}

	out := Generate(f, wells)
	assert.Len(t, out.Series, 12)
	assert.Len(t, out.Results, 2)

	for _, p := range out.Series {
		assert.Equal(t, f.ID, p.ForecastID)
		assert.LessOrEqual(t, p.P10, p.P50, "well %s month %d", p.WellID, p.MonthOffset)
		assert.LessOrEqual(t, p.P50, p.P90, "well %s month %d", p.WellID, p.MonthOffset)
	}

	// First point lands one month after creation, last one at the horizon.
	assert.Equal(t, f.CreatedAt.AddDate(0, 1, 0), out.Series[0].Date)
	assert.Equal(t, f.CreatedAt.AddDate(0, 6, 0), out.Series[5].Date)
}

func TestGenerateDefaultDatum(t *testing.T) {
	f := domain.NewForecast("org-1", "model-a", "", "", []string{"w-1"}, 3, domain.ConfidenceLow)
	out := Generate(f, []domain.Well{{ID: "w-1", RiskScore: 0}})

	// No observation: month 0 projects from 20.0 minus the minimum drop.
	assert.InDelta(t, 20.0-0.08, out.Series[0].P50, 0.001)
}

func TestGenerateRiskSummary(t *testing.T) {
	f := domain.NewForecast("org-1", "model-a", "", "", []string{"w-1"}, 12, domain.ConfidenceMedium)
	out := Generate(f, []domain.Well{{ID: "w-1", RiskScore: 0.95}})

	require.Len(t, out.Results, 1)
	r := out.Results[0]
	assert.Equal(t, 0.91, r.ExpectedDropRate)
	assert.Equal(t, 0.84, r.ProbCrossThreshold)
	assert.Equal(t, domain.RiskCritical, r.RiskLevel)
}

func TestGenerateDeclineMonotonic(t *testing.T) {
	// The seasonal wobble is smaller than the per-month drop for any risk
	// score, so the median band always declines.
	f := domain.NewForecast("org-1", "model-a", "", "", []string{"w-1"}, 24, domain.ConfidenceHigh)
	out := Generate(f, []domain.Well{{ID: "w-1", LatestGwLevelM: floatPtr(30), RiskScore: 0.1}})

	for i := 1; i < len(out.Series); i++ {
		assert.Less(t, out.Series[i].P50, out.Series[i-1].P50, "month %d", i)
	}
}

func TestRunValidation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, "org-1", RunRequest{HorizonMonths: 6})
	assert.ErrorContains(t, err, "at least one well")

	_, err = svc.Run(ctx, "org-1", RunRequest{WellIDs: []string{"w-1"}, HorizonMonths: 0})
	assert.ErrorContains(t, err, "horizon")

	_, err = svc.Run(ctx, "org-1", RunRequest{WellIDs: []string{"w-1"}, HorizonMonths: 121})
	assert.ErrorContains(t, err, "horizon")

	_, err = svc.Run(ctx, "org-1", RunRequest{WellIDs: []string{"missing"}, HorizonMonths: 6})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunToReady(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	seedWell(t, st, "w-1", "org-1", floatPtr(22.4), 0.4, 90)
	seedWell(t, st, "w-2", "org-1", nil, 0.6, 80)

	res, err := svc.Run(ctx, "org-1", RunRequest{
		WellIDs:       []string{"w-1", "w-2"},
		HorizonMonths: 6,
		ModelRef:      "model-a",
		RequestedBy:   "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ForecastRunning, res.Forecast.Status)
	assert.Equal(t, domain.ConfidenceHigh, res.Forecast.Confidence)
	assert.Equal(t, task.KindForecastRun, res.Task.Kind)
	assert.Equal(t, res.Forecast.ID, res.Task.Result["forecast_id"])

	awaitRun(t, res)

	f, err := st.GetForecast(ctx, "org-1", res.Forecast.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ForecastReady, f.Status)

	tk, err := st.GetTask(ctx, "org-1", res.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, tk.Status)
	assert.Equal(t, 100, tk.Progress)

	series, err := st.Series(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, series, 12)

	results, err := st.WellResults(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunRerunReplacesRows(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	seedWell(t, st, "w-1", "org-1", floatPtr(19), 0.5, 70)

	first, err := svc.Run(ctx, "org-1", RunRequest{WellIDs: []string{"w-1"}, HorizonMonths: 4, ModelRef: "model-a"})
	require.NoError(t, err)
	awaitRun(t, first)

	second, err := svc.Run(ctx, "org-1", RunRequest{WellIDs: []string{"w-1"}, HorizonMonths: 4, ModelRef: "model-a"})
	require.NoError(t, err)
	awaitRun(t, second)

	// Distinct forecasts each own exactly their horizon worth of points.
	for _, id := range []string{first.Forecast.ID, second.Forecast.ID} {
		series, err := st.Series(ctx, id)
		require.NoError(t, err)
		assert.Len(t, series, 4)
	}
}

func TestRunNotifiesElevatedRisk(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	seedWell(t, st, "w-low", "org-1", floatPtr(25), 0.05, 90)
	seedWell(t, st, "w-hot", "org-1", floatPtr(12), 0.95, 90)

	res, err := svc.Run(ctx, "org-1", RunRequest{
		WellIDs:       []string{"w-low", "w-hot"},
		HorizonMonths: 6,
		ModelRef:      "model-a",
		RequestedBy:   "user-1",
	})
	require.NoError(t, err)
	awaitRun(t, res)

	inbox, err := st.NotificationsFor(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "user-1", inbox[0].RecipientID)
	assert.Contains(t, inbox[0].Title, "w-hot")
	require.NotNil(t, inbox[0].Related)
	assert.Equal(t, "forecast", inbox[0].Related.Kind)
	assert.Equal(t, res.Forecast.ID, inbox[0].Related.ID)
}

func TestMarkFailed(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	f := domain.NewForecast("org-1", "model-a", "", "user-1", []string{"w-1"}, 4, domain.ConfidenceLow)
	require.NoError(t, st.SaveForecast(ctx, f))

	svc.markFailed(f.ID, "publish series: store unavailable")

	got, err := st.GetForecast(ctx, "org-1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ForecastFailed, got.Status)
}
