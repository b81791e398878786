package model

import (
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// BehaviorFeatures computes the named per-customer variables exposed to
// behavioral rule expressions. Anomalies holds per-transaction model
// anomaly scores in [0,1], keyed by transaction id; it may be nil when
// the model is unavailable. largeAmount is the single-transaction bound
// above which a movement counts as large.
func BehaviorFeatures(txs []*domain.Transaction, anomalies map[string]float64, anomalyThreshold, largeAmount float64) map[string]any {
	features := map[string]any{
		"tx_count":             0,
		"total_volume":         0.0,
		"avg_amount":           0.0,
		"max_amount":           0.0,
		"night_ratio":          0.0,
		"weekend_ratio":        0.0,
		"rapid_succession":     0,
		"large_tx_count":       0,
		"international_count":  0,
		"cash_deposit_count":   0,
		"unique_beneficiaries": 0,
		"external_count":       0,
		"anomaly_count":        0,
		"anomaly_max":          0.0,
	}
	if len(txs) == 0 {
		return features
	}

	var total, maxAmount float64
	night, weekend, international, cash, external := 0, 0, 0, 0, 0
	beneficiaries := make(map[string]struct{})
	times := make([]time.Time, 0, len(txs))

	anomalyCount := 0
	anomalyMax := 0.0

	for _, tx := range txs {
		total += tx.Amount
		if tx.Amount > maxAmount {
			maxAmount = tx.Amount
		}
		hour := tx.Timestamp.Hour()
		if hour < 6 || hour >= 22 {
			night++
		}
		if wd := tx.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekend++
		}
		switch tx.Category {
		case "INTERNATIONAL_TRANSFER":
			international++
		case "CASH_DEPOSIT":
			cash++
		}
		if tx.External() {
			external++
		} else {
			beneficiaries[tx.DestAccount] = struct{}{}
		}
		times = append(times, tx.Timestamp)

		if score, ok := anomalies[tx.ID]; ok {
			if score > anomalyMax {
				anomalyMax = score
			}
			if score >= anomalyThreshold {
				anomalyCount++
			}
		}
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// Bursts of three or more transactions within one hour.
	rapid := 0
	for i := 0; i+2 < len(times); i++ {
		if times[i+2].Sub(times[i]) < time.Hour {
			rapid++
		}
	}

	n := float64(len(txs))
	features["tx_count"] = len(txs)
	features["total_volume"] = total
	features["avg_amount"] = total / n
	features["max_amount"] = maxAmount
	features["night_ratio"] = float64(night) / n
	features["weekend_ratio"] = float64(weekend) / n
	features["rapid_succession"] = rapid
	features["international_count"] = international
	features["cash_deposit_count"] = cash
	features["unique_beneficiaries"] = len(beneficiaries)
	features["external_count"] = external
	features["anomaly_count"] = anomalyCount
	features["anomaly_max"] = anomalyMax

	large := 0
	for _, tx := range txs {
		if tx.Amount > largeAmount {
			large++
		}
	}
	features["large_tx_count"] = large

	return features
}
