// Package scoring holds the risk and data-quality formulas shared by the
// forecast generator, the alert evaluator, and the dashboards. The cut points
// and proxy coefficients here are the single source of truth; call sites must
// not carry their own copies.
package scoring

import (
	"math"

	"github.com/hydronote/groundwatch/internal/domain"
)

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

// Round2 rounds to 2 decimal places, the storage precision for all series
// and summary values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RiskLevelFor maps a 0..1 risk score onto a level via the fixed cut points
// 0.25 / 0.5 / 0.75.
func RiskLevelFor(score float64) domain.RiskLevel {
	switch {
	case score < 0.25:
		return domain.RiskLow
	case score < 0.5:
		return domain.RiskMedium
	case score < 0.75:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// BaseDropRate maps a well's risk score onto its base monthly drop rate in
// meters per month, clamped to [0.08, 0.95].
func BaseDropRate(riskScore float64) float64 {
	return Clamp(0.08+0.87*riskScore, 0.08, 0.95)
}

// DropRateProxy is the alert evaluator's drop-rate estimate for a well.
func DropRateProxy(riskScore float64) float64 {
	return Clamp(0.15+0.85*riskScore, 0, 1.3)
}

// ProbCrossProxy is the alert evaluator's threshold-crossing probability
// estimate for a well.
func ProbCrossProxy(riskScore float64) float64 {
	return Clamp(0.15+0.75*riskScore, 0, 0.99)
}

// ConfidenceFor maps a mean data-quality score (0..100) onto a forecast
// confidence band.
func ConfidenceFor(meanDataQuality float64) domain.Confidence {
	switch {
	case meanDataQuality >= 82:
		return domain.ConfidenceHigh
	case meanDataQuality >= 65:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// MeanDataQuality averages the data-quality scores of the given wells,
// zero for an empty set.
func MeanDataQuality(wells []domain.Well) float64 {
	if len(wells) == 0 {
		return 0
	}

	var sum float64
	for _, w := range wells {
		sum += w.DataQualityScore
	}

	return sum / float64(len(wells))
}

// Float coerces a decoded JSON parameter into a float64. Non-numeric values
// report false so malformed alert parameters never match instead of erroring.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
