package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	Severity      string
	AlertStatus   string
	ConditionType string
)

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	AlertEnabled  AlertStatus = "enabled"
	AlertDisabled AlertStatus = "disabled"
)

const (
	CondGwLevelBelow     ConditionType = "gw-level-below"
	CondDropRateAbove    ConditionType = "drop-rate-above"
	CondProbCrossAbove   ConditionType = "prob-cross-threshold-above"
	CondDataQualityBelow ConditionType = "data-quality-below"
)

// AlertScope lists plains, aquifers, and wells whose union (after expanding
// plain/aquifer membership to wells) defines the evaluated well population.
// The three sets are ORed, not ANDed.
type AlertScope struct {
	PlainIDs   []string `json:"plain_ids,omitempty"`
	AquiferIDs []string `json:"aquifer_ids,omitempty"`
	WellIDs    []string `json:"well_ids,omitempty"`
}

// AlertCondition is one typed predicate with numeric parameters. Parameter
// keys per type: threshold_m (gw-level-below), threshold (drop-rate-above),
// threshold_pct (prob-cross-threshold-above), min_score (data-quality-below).
type AlertCondition struct {
	Type   ConditionType  `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

type Alert struct {
	ID              string         `json:"id"`
	OrgID           string         `json:"org_id"`
	Name            string         `json:"name"`
	CreatedBy       string         `json:"created_by"`
	Severity        Severity       `json:"severity"`
	Status          AlertStatus    `json:"status"`
	Scope           AlertScope     `json:"scope"`
	Condition       AlertCondition `json:"condition"`
	NotifyInApp     bool           `json:"notify_in_app"`
	NotifyEmail     bool           `json:"notify_email"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func NewAlert(orgID, name, createdBy string, severity Severity) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Name:      name,
		CreatedBy: createdBy,
		Severity:  severity,
		Status:    AlertEnabled,
		CreatedAt: time.Now().UTC(),
	}
}

// AlertHistoryEntry is an immutable record of one evaluation. Only the
// acknowledgement fields may be set after creation, and only once.
type AlertHistoryEntry struct {
	ID             string     `json:"id"`
	AlertID        string     `json:"alert_id"`
	OrgID          string     `json:"org_id"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	WellsAffected  []string   `json:"wells_affected"`
	Summary        string     `json:"summary"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
}

func NewAlertHistoryEntry(alert *Alert, wellsAffected []string, summary string) *AlertHistoryEntry {
	if wellsAffected == nil {
		wellsAffected = []string{}
	}

	return &AlertHistoryEntry{
		ID:            uuid.New().String(),
		AlertID:       alert.ID,
		OrgID:         alert.OrgID,
		TriggeredAt:   time.Now().UTC(),
		WellsAffected: wellsAffected,
		Summary:       summary,
	}
}
