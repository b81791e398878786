package domain

import "time"

// Cluster is a connected group of accounts classified as a smurfing
// topology. Clusters are derived artifacts: rebuilt wholesale on each
// analysis pass, never mutated in place.
type Cluster struct {
	ID       string   `json:"id"`
	WindowID string   `json:"windowId"`
	Members  []string `json:"members"` // sorted account ids, len >= 2

	// RiskScore is the linear blend of fan-in, volume and structuring
	// participation, in [0,1].
	RiskScore float64 `json:"riskScore"`

	TotalVolume      float64 `json:"totalVolume"`
	TransactionCount int     `json:"transactionCount"`

	// TopBeneficiary is the member with the highest distinct-source
	// fan-in; TopFanIn is that count.
	TopBeneficiary string `json:"topBeneficiary"`
	TopFanIn       int    `json:"topFanIn"`
}

// StructuringFinding is the per-account output of structuring detection.
type StructuringFinding struct {
	AccountID string `json:"accountId"`

	// FlaggedDays holds the calendar days (midnight, boundary timezone)
	// on which the structuring predicate held, in ascending order.
	FlaggedDays []time.Time `json:"flaggedDays"`

	// ActiveDays is the number of distinct days with at least one
	// considered transaction.
	ActiveDays int `json:"activeDays"`

	// Intensity = flagged days / active days, in [0,1]. Zero when the
	// account has no active days.
	Intensity float64 `json:"intensity"`
}

// Flagged reports whether any day was flagged for this account.
func (f *StructuringFinding) Flagged() bool {
	return f != nil && len(f.FlaggedDays) > 0
}
