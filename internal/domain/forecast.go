package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	ForecastStatus string
	Confidence     string
	RiskLevel      string
)

const (
	ForecastRunning ForecastStatus = "running"
	ForecastReady   ForecastStatus = "ready"
	ForecastFailed  ForecastStatus = "failed"
)

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels low < medium < high < critical.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// Elevated reports whether the level warrants a notification.
func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// Forecast is one request to project groundwater levels for a well set.
// Confidence is computed once at creation and never changes; the derived
// series and result rows live in their own collections and are replaced
// atomically when the backing task succeeds.
type Forecast struct {
	ID            string         `json:"id"`
	OrgID         string         `json:"org_id"`
	ScenarioRef   string         `json:"scenario_ref,omitempty"`
	ModelRef      string         `json:"model_ref"`
	WellIDs       []string       `json:"well_ids"`
	HorizonMonths int            `json:"horizon_months"`
	Status        ForecastStatus `json:"status"`
	Confidence    Confidence     `json:"confidence"`
	RequestedBy   string         `json:"requested_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

func NewForecast(orgID, modelRef, scenarioRef, requestedBy string, wellIDs []string, horizonMonths int, confidence Confidence) *Forecast {
	return &Forecast{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		ScenarioRef:   scenarioRef,
		ModelRef:      modelRef,
		WellIDs:       wellIDs,
		HorizonMonths: horizonMonths,
		Status:        ForecastRunning,
		Confidence:    confidence,
		RequestedBy:   requestedBy,
		CreatedAt:     time.Now().UTC(),
	}
}

// SeriesPoint is one projected level for a (well, month-offset) pair, in
// meters. Invariant: P10 <= P50 <= P90.
type SeriesPoint struct {
	ForecastID  string    `json:"forecast_id"`
	WellID      string    `json:"well_id"`
	MonthOffset int       `json:"month_offset"`
	Date        time.Time `json:"date"`
	P10         float64   `json:"p10"`
	P50         float64   `json:"p50"`
	P90         float64   `json:"p90"`
}

// WellForecastResult is the per-well risk summary derived from the series.
type WellForecastResult struct {
	ForecastID         string    `json:"forecast_id"`
	WellID             string    `json:"well_id"`
	FinalP50           float64   `json:"final_p50"`
	ProbCrossThreshold float64   `json:"prob_cross_threshold"`
	ExpectedDropRate   float64   `json:"expected_drop_rate"`
	RiskLevel          RiskLevel `json:"risk_level"`
}
