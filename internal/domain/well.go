// Package domain contains the monitored-entity models shared by the store,
// the forecast generator, and the alert evaluator.
package domain

// Plain is a groundwater plain grouping one or more aquifers.
type Plain struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

// Aquifer is a water-bearing formation within a plain.
type Aquifer struct {
	ID      string `json:"id"`
	OrgID   string `json:"org_id"`
	PlainID string `json:"plain_id"`
	Name    string `json:"name"`
}

// Well is a monitored extraction or observation point. RiskScore (0..1) and
// DataQualityScore (0..100) are precomputed inputs to every derived formula.
type Well struct {
	ID               string   `json:"id"`
	OrgID            string   `json:"org_id"`
	Name             string   `json:"name"`
	PlainID          string   `json:"plain_id"`
	AquiferID        string   `json:"aquifer_id"`
	LatestGwLevelM   *float64 `json:"latest_gw_level_m,omitempty"`
	RiskScore        float64  `json:"risk_score"`
	DataQualityScore float64  `json:"data_quality_score"`
}
