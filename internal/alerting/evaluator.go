// Package alerting evaluates alert rules against the monitored well
// population. Evaluation itself is pure; the service layer records history,
// stamps trigger times, and emits notifications.
package alerting

import (
	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/scoring"
)

// InScope resolves the alert's scope to concrete wells: the union of wells
// listed directly, wells in a listed plain, and wells in a listed aquifer.
// The three criteria are ORed, and each well appears at most once.
func InScope(alert *domain.Alert, wells []domain.Well) []domain.Well {
	plains := idSet(alert.Scope.PlainIDs)
	aquifers := idSet(alert.Scope.AquiferIDs)
	direct := idSet(alert.Scope.WellIDs)

	scoped := make([]domain.Well, 0, len(wells))
	for _, w := range wells {
		if direct[w.ID] || plains[w.PlainID] || aquifers[w.AquiferID] {
			scoped = append(scoped, w)
		}
	}

	return scoped
}

// Evaluate returns the wells in scope that match the alert's condition. It
// reads nothing beyond its arguments and writes nothing.
func Evaluate(alert *domain.Alert, wells []domain.Well) []domain.Well {
	var affected []domain.Well
	for _, w := range InScope(alert, wells) {
		if matches(alert.Condition, w) {
			affected = append(affected, w)
		}
	}

	return affected
}

// matches applies one condition to one well. An unknown condition type or a
// malformed parameter never matches; keeping a misconfigured alert silent is
// preferred over failing every evaluation that includes it.
func matches(c domain.AlertCondition, w domain.Well) bool {
	switch c.Type {
	case domain.CondGwLevelBelow:
		threshold, ok := scoring.Float(c.Params["threshold_m"])
		return ok && w.LatestGwLevelM != nil && *w.LatestGwLevelM < threshold
	case domain.CondDropRateAbove:
		threshold, ok := scoring.Float(c.Params["threshold"])
		return ok && scoring.DropRateProxy(w.RiskScore) > threshold
	case domain.CondProbCrossAbove:
		pct, ok := scoring.Float(c.Params["threshold_pct"])
		return ok && scoring.ProbCrossProxy(w.RiskScore) > pct/100
	case domain.CondDataQualityBelow:
		minScore, ok := scoring.Float(c.Params["min_score"])
		return ok && w.DataQualityScore < minScore
	default:
		return false
	}
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	return set
}
