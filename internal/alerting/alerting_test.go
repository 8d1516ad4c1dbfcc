package alerting

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/notify"
	"github.com/hydronote/groundwatch/internal/store"
)

func setupTestService(t *testing.T) (*Service, *store.Store) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st, err := store.New(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, notify.NewDispatcher(st, nil)), st
}

func floatPtr(v float64) *float64 { return &v }

func testWells() []domain.Well {
	return []domain.Well{
		{ID: "w-1", OrgID: "org-1", PlainID: "plain-a", AquiferID: "aq-1", LatestGwLevelM: floatPtr(14.2), RiskScore: 0.8, DataQualityScore: 45},
		{ID: "w-2", OrgID: "org-1", PlainID: "plain-a", AquiferID: "aq-2", LatestGwLevelM: floatPtr(26.0), RiskScore: 0.2, DataQualityScore: 85},
		{ID: "w-3", OrgID: "org-1", PlainID: "plain-b", AquiferID: "aq-2", RiskScore: 0.5, DataQualityScore: 70},
	}
}

func TestInScopeUnion(t *testing.T) {
	alert := domain.NewAlert("org-1", "scope", "user-1", domain.SeverityInfo)
	alert.Scope = domain.AlertScope{
		PlainIDs:   []string{"plain-b"},
		AquiferIDs: []string{"aq-1"},
		WellIDs:    []string{"w-2"},
	}

	scoped := InScope(alert, testWells())
	ids := make([]string, 0, len(scoped))
	for _, w := range scoped {
		ids = append(ids, w.ID)
	}

	// w-1 via aquifer, w-2 directly, w-3 via plain; each once.
	assert.ElementsMatch(t, []string{"w-1", "w-2", "w-3"}, ids)
}

func TestInScopeOverlappingCriteria(t *testing.T) {
	alert := domain.NewAlert("org-1", "scope", "user-1", domain.SeverityInfo)
	alert.Scope = domain.AlertScope{
		PlainIDs: []string{"plain-a"},
		WellIDs:  []string{"w-1"},
	}

	scoped := InScope(alert, testWells())
	assert.Len(t, scoped, 2, "w-1 matches twice but is included once")
}

func TestEvaluateConditions(t *testing.T) {
	wells := testWells()

	tests := []struct {
		name      string
		condition domain.AlertCondition
		want      []string
	}{
		{
			name:      "gw level below",
			condition: domain.AlertCondition{Type: domain.CondGwLevelBelow, Params: map[string]any{"threshold_m": 20.0}},
			want:      []string{"w-1"},
		},
		{
			name:      "gw level below skips wells without observation",
			condition: domain.AlertCondition{Type: domain.CondGwLevelBelow, Params: map[string]any{"threshold_m": 100.0}},
			want:      []string{"w-1", "w-2"},
		},
		{
			name:      "drop rate above",
			condition: domain.AlertCondition{Type: domain.CondDropRateAbove, Params: map[string]any{"threshold": 0.5}},
			want:      []string{"w-1", "w-3"},
		},
		{
			name:      "prob cross above",
			condition: domain.AlertCondition{Type: domain.CondProbCrossAbove, Params: map[string]any{"threshold_pct": 70.0}},
			want:      []string{"w-1"},
		},
		{
			name:      "data quality below",
			condition: domain.AlertCondition{Type: domain.CondDataQualityBelow, Params: map[string]any{"min_score": 60.0}},
			want:      []string{"w-1"},
		},
		{
			name:      "unknown condition type",
			condition: domain.AlertCondition{Type: "frobnicate-above", Params: map[string]any{"threshold": 1.0}},
			want:      nil,
		},
		{
			name:      "malformed parameter never matches",
			condition: domain.AlertCondition{Type: domain.CondDataQualityBelow, Params: map[string]any{"min_score": "sixty"}},
			want:      nil,
		},
		{
			name:      "missing parameter never matches",
			condition: domain.AlertCondition{Type: domain.CondDropRateAbove},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := domain.NewAlert("org-1", tt.name, "user-1", domain.SeverityWarning)
			alert.Scope = domain.AlertScope{PlainIDs: []string{"plain-a", "plain-b"}}
			alert.Condition = tt.condition

			affected := Evaluate(alert, wells)
			ids := make([]string, 0, len(affected))
			for _, w := range affected {
				ids = append(ids, w.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestTestRunMatch(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	for _, w := range testWells() {
		w := w
		require.NoError(t, st.SaveWell(ctx, &w))
	}

	alert := domain.NewAlert("org-1", "low quality", "user-1", domain.SeverityWarning)
	alert.Scope = domain.AlertScope{PlainIDs: []string{"plain-a"}}
	alert.Condition = domain.AlertCondition{Type: domain.CondDataQualityBelow, Params: map[string]any{"min_score": 60.0}}
	alert.NotifyInApp = true
	require.NoError(t, st.SaveAlert(ctx, alert))

	res, err := svc.TestRun(ctx, "org-1", alert.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"w-1"}, res.Affected)
	assert.Contains(t, res.Summary, "1 of 2")

	updated, err := st.GetAlert(ctx, "org-1", alert.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastTriggeredAt)

	history, err := st.HistoryFor(ctx, alert.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.HistoryID, history[0].ID)
	assert.Equal(t, []string{"w-1"}, history[0].WellsAffected)

	inbox, err := st.NotificationsFor(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.SeverityWarning, inbox[0].Severity)
	assert.Equal(t, "user-1", inbox[0].RecipientID)
}

func TestTestRunNoMatchStillRecordsHistory(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	for _, w := range testWells() {
		w := w
		require.NoError(t, st.SaveWell(ctx, &w))
	}

	alert := domain.NewAlert("org-1", "low quality", "user-1", domain.SeverityWarning)
	alert.Scope = domain.AlertScope{PlainIDs: []string{"plain-a"}}
	alert.Condition = domain.AlertCondition{Type: domain.CondDataQualityBelow, Params: map[string]any{"min_score": 10.0}}
	alert.NotifyInApp = true
	require.NoError(t, st.SaveAlert(ctx, alert))

	res, err := svc.TestRun(ctx, "org-1", alert.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Affected)

	history, err := st.HistoryFor(ctx, alert.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{}, history[0].WellsAffected)

	// No matches means no notification, even with the channel enabled.
	inbox, err := st.NotificationsFor(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestTestRunUnknownAlert(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.TestRun(context.Background(), "org-1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAcknowledge(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	alert := domain.NewAlert("org-1", "ack me", "user-1", domain.SeverityInfo)
	require.NoError(t, st.SaveAlert(ctx, alert))
	entry := domain.NewAlertHistoryEntry(alert, []string{"w-1"}, "summary")
	require.NoError(t, st.AppendHistory(ctx, entry))

	acked, err := svc.Acknowledge(ctx, "org-1", entry.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "user-2", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)

	// A second ack keeps the original reviewer.
	again, err := svc.Acknowledge(ctx, "org-1", entry.ID, "user-3")
	require.NoError(t, err)
	assert.Equal(t, "user-2", again.AcknowledgedBy)

	_, err = svc.Acknowledge(ctx, "org-2", entry.ID, "user-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
