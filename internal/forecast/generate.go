// Package forecast produces synthetic groundwater projections with
// percentile bands and per-well risk summaries, executed as the payload of a
// forecast_run task.
package forecast

import (
	"math"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/scoring"
)

const (
	// defaultStartLevelM is the projection datum for wells that have never
	// reported an observed level.
	defaultStartLevelM = 20.0

	seasonalAmplitude = 0.25
	bandWidth         = 1.1
	sigmaBase         = 0.55
	sigmaGrowth       = 1.2
)

type Output struct {
	Series  []domain.SeriesPoint
	Results []domain.WellForecastResult
}

// Generate computes the complete series and summary set for a forecast. The
// output covers every (well, month) pair in [0, horizon) for every given
// well; callers replace any previous rows wholesale so a rerun never leaves
// stale points behind.
func Generate(f *domain.Forecast, wells []domain.Well) Output {
	horizon := f.HorizonMonths
	out := Output{
		Series:  make([]domain.SeriesPoint, 0, len(wells)*horizon),
		Results: make([]domain.WellForecastResult, 0, len(wells)),
	}

	for _, w := range wells {
		baseDrop := scoring.BaseDropRate(w.RiskScore)
		startLevel := defaultStartLevelM
		if w.LatestGwLevelM != nil {
			startLevel = *w.LatestGwLevelM
		}

		var lastP50 float64
		for m := 0; m < horizon; m++ {
			seasonal := math.Sin(2*math.Pi*float64(m)/12) * seasonalAmplitude
			p50 := startLevel - baseDrop*float64(m+1) + seasonal

			// Uncertainty grows linearly with forecast distance, so the
			// band ordering p10 <= p50 <= p90 holds by construction.
			sigma := sigmaBase + float64(m)/float64(horizon)*sigmaGrowth

			point := domain.SeriesPoint{
				ForecastID:  f.ID,
				WellID:      w.ID,
				MonthOffset: m,
				Date:        f.CreatedAt.AddDate(0, m+1, 0),
				P10:         scoring.Round2(p50 - bandWidth*sigma),
				P50:         scoring.Round2(p50),
				P90:         scoring.Round2(p50 + bandWidth*sigma),
			}
			out.Series = append(out.Series, point)
			lastP50 = point.P50
		}

		out.Results = append(out.Results, summarize(f, w, baseDrop, lastP50))
	}

	return out
}

func summarize(f *domain.Forecast, w domain.Well, baseDrop, finalP50 float64) domain.WellForecastResult {
	expectedDrop := scoring.Round2(baseDrop)
	probCross := scoring.Clamp(0.12+w.RiskScore*0.75+float64(f.HorizonMonths)/120*0.1, 0, 0.99)
	riskScore := scoring.Clamp(probCross*0.7+expectedDrop/0.9*0.3, 0, 1)

	return domain.WellForecastResult{
		ForecastID:         f.ID,
		WellID:             w.ID,
		FinalP50:           finalP50,
		ProbCrossThreshold: scoring.Round2(probCross),
		ExpectedDropRate:   expectedDrop,
		RiskLevel:          scoring.RiskLevelFor(riskScore),
	}
}
