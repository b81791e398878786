package domain

import "time"

// AlertType classifies what triggered an alert.
type AlertType string

const (
	AlertStructuring   AlertType = "STRUCTURING"
	AlertSmurfing      AlertType = "SMURFING"
	AlertBehavioral    AlertType = "BEHAVIORAL"
	AlertHighRiskScore AlertType = "HIGH_RISK_SCORE"
)

// AlertStatus tracks the review lifecycle of an alert.
type AlertStatus string

const (
	AlertOpen      AlertStatus = "OPEN"
	AlertAssigned  AlertStatus = "ASSIGNED"
	AlertResolved  AlertStatus = "RESOLVED"
	AlertDismissed AlertStatus = "DISMISSED"
)

// Severity grades an alert for triage. It is always derived from the
// triggering score or flag, never hand-set.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityFromRatio maps a [0,1] signal (structuring intensity, cluster
// risk, behavioral score) to a severity using fixed quartile bounds.
func SeverityFromRatio(v float64) Severity {
	switch {
	case v >= 0.75:
		return SeverityCritical
	case v >= 0.5:
		return SeverityHigh
	case v >= 0.25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Alert is a generated review artifact. Alerts are deduplicated by
// (customer id, type, window id): a re-run for the same window updates
// the open alert instead of creating a duplicate.
type Alert struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customerId"`
	Type       AlertType   `json:"type"`
	Severity   Severity    `json:"severity"`
	Status     AlertStatus `json:"status"`
	WindowID   string      `json:"windowId"`
	ClusterID  string      `json:"clusterId,omitempty"`

	// Score is the triggering signal: risk score for HIGH_RISK_SCORE,
	// intensity or cluster risk (scaled to 0-100) otherwise.
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Review fields, set by analysts through the API.
	AssignedAnalyst string     `json:"assignedAnalyst,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}

// DedupKey identifies the alert slot within an analysis window.
func (a *Alert) DedupKey() string {
	return a.CustomerID + "|" + string(a.Type) + "|" + a.WindowID
}
