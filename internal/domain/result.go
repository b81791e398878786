package domain

import "time"

// Factor records one weighted contribution to a customer's risk score.
type Factor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// CustomerScore is the authoritative per-customer scoring output.
type CustomerScore struct {
	CustomerID string       `json:"customerId"`
	Score      int          `json:"score"` // clamped to [0,100]
	Category   RiskCategory `json:"category"`

	// Partial is set when the external model was unavailable and the
	// score was computed from the remaining terms only.
	Partial bool `json:"partial"`

	Factors []Factor `json:"factors,omitempty"`
}

// BehavioralFinding is one triggered behavioral rule for a customer.
type BehavioralFinding struct {
	RuleID     string  `json:"ruleId"`
	CustomerID string  `json:"customerId"`
	Score      float64 `json:"score"` // [0,1]
	Reason     string  `json:"reason"`
}

// AnalysisResult is the complete output of one analysis pass. It is
// rebuilt wholesale each run; re-running on an unchanged snapshot yields
// an identical result apart from RunID and GeneratedAt.
type AnalysisResult struct {
	RunID       string    `json:"runId"`
	WindowID    string    `json:"windowId"`
	GeneratedAt time.Time `json:"generatedAt"`

	Scores           []*CustomerScore               `json:"scores"`
	Structuring      map[string]*StructuringFinding `json:"structuring"` // by account id
	Clusters         []*Cluster                     `json:"clusters"`
	ClusterByAccount map[string]string              `json:"clusterByAccount"`
	Behavioral       map[string][]BehavioralFinding `json:"behavioral,omitempty"` // by customer id
	Alerts           []*Alert                       `json:"alerts"`

	// SkippedRecords counts input transactions rejected by validation.
	SkippedRecords int `json:"skippedRecords"`

	// Partial is set when any degraded-mode path was taken (external
	// model unavailable).
	Partial bool `json:"partial"`

	DurationMs int64 `json:"durationMs"`
}

// ScoreByCustomer returns the score entry for a customer, or nil.
func (r *AnalysisResult) ScoreByCustomer(customerID string) *CustomerScore {
	for _, s := range r.Scores {
		if s.CustomerID == customerID {
			return s
		}
	}
	return nil
}
