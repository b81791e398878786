package behavior

import "github.com/opensource-finance/harrier/internal/domain"

// BuiltinRules returns the default behavioral rule set. Deployments
// override or extend these via the rules API; the defaults cover the
// patterns every installation wants watched.
func BuiltinRules() []*domain.BehaviorRule {
	return []*domain.BehaviorRule{
		{
			ID:          "unusual-timing",
			Name:        "Unusual Timing",
			Description: "Activity concentrated at night or on weekends",
			Expression:  "night_ratio > 0.3 || weekend_ratio > 0.8",
			Threshold:   1.0,
			Reason:      "activity concentrated in unusual hours",
			Enabled:     true,
		},
		{
			ID:          "rapid-succession",
			Name:        "Rapid Succession",
			Description: "Bursts of three or more transactions within an hour",
			Expression:  "rapid_succession >= 1 && tx_count >= 3",
			Threshold:   1.0,
			Reason:      "rapid burst of transactions",
			Enabled:     true,
		},
		{
			ID:          "frequent-large",
			Name:        "Frequent Large Movements",
			Description: "Repeated transactions above the large-amount bound",
			Expression:  "large_tx_count >= 3",
			Threshold:   1.0,
			Reason:      "repeated large-value movements",
			Enabled:     true,
		},
		{
			ID:          "high-international",
			Name:        "High International Activity",
			Description: "Heavy cross-border transfer volume",
			Expression:  "international_count >= 5",
			Threshold:   1.0,
			Reason:      "heavy cross-border activity",
			Enabled:     true,
		},
		{
			ID:          "model-anomaly",
			Name:        "Model Anomaly",
			Description: "Peak per-transaction anomaly probability from the model",
			Expression:  "anomaly_max",
			Threshold:   0.7,
			Reason:      "model flagged anomalous transactions",
			Enabled:     true,
		},
	}
}
