// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"time"
)

// Customer is a monitored customer record. Created by upstream ingestion;
// the engine treats everything except RiskScore/RiskCategory as read-only.
type Customer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name,omitempty"`
	DeclaredIncome float64   `json:"declaredIncome"`
	KYCComplete    bool      `json:"kycComplete"`
	OpenedAt       time.Time `json:"openedAt"`

	// Recomputed by the scoring engine on each analysis pass.
	RiskScore    int          `json:"riskScore"`
	RiskCategory RiskCategory `json:"riskCategory"`
}

// Account is a bank account owned by a customer. Many accounts may belong
// to one customer. Balance is informational only.
type Account struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customerId"`
	Balance    float64 `json:"balance"`
}

// RiskCategory is the banded classification derived from a risk score.
type RiskCategory string

const (
	RiskLow      RiskCategory = "LOW"
	RiskMedium   RiskCategory = "MEDIUM"
	RiskHigh     RiskCategory = "HIGH"
	RiskCritical RiskCategory = "CRITICAL"
)

// ScoreBands maps risk scores to categories using inclusive lower bounds.
// A score below Medium is LOW.
type ScoreBands struct {
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

// Category returns the risk category for a score.
func (b ScoreBands) Category(score float64) RiskCategory {
	switch {
	case score >= b.Critical:
		return RiskCritical
	case score >= b.High:
		return RiskHigh
	case score >= b.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}
