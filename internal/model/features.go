// Package model adapts externally trained risk models behind the narrow
// domain.Scorer interface and extracts the feature vectors they consume.
package model

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// CustomerFeatures builds the per-customer feature vector fed to
// PredictCustomerRisk. The layout is fixed; the fitted model was trained
// against exactly this ordering.
func CustomerFeatures(c *domain.Customer, txs []*domain.Transaction, now time.Time) []float64 {
	features := []float64{
		c.DeclaredIncome,
		float64(len(txs)),
		now.Sub(c.OpenedAt).Hours() / 24,
		boolFeature(c.KYCComplete),
	}

	if len(txs) == 0 {
		return append(features, make([]float64, 10)...)
	}

	amounts := make([]float64, len(txs))
	var sum float64
	maxAmount, minAmount := txs[0].Amount, txs[0].Amount
	for i, tx := range txs {
		amounts[i] = tx.Amount
		sum += tx.Amount
		maxAmount = math.Max(maxAmount, tx.Amount)
		minAmount = math.Min(minAmount, tx.Amount)
	}
	mean := sum / float64(len(txs))

	var variance float64
	for _, a := range amounts {
		variance += (a - mean) * (a - mean)
	}
	variance /= float64(len(txs))

	sort.Float64s(amounts)
	median := amounts[len(amounts)/2]

	night, weekend, external := 0, 0, 0
	beneficiaries := make(map[string]struct{})
	for _, tx := range txs {
		hour := tx.Timestamp.Hour()
		if hour < 6 || hour >= 22 {
			night++
		}
		if wd := tx.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekend++
		}
		if tx.External() {
			external++
		} else {
			beneficiaries[tx.DestAccount] = struct{}{}
		}
	}

	return append(features,
		mean,
		math.Sqrt(variance),
		maxAmount,
		minAmount,
		median,
		sum,
		float64(night),
		float64(weekend),
		float64(len(beneficiaries)),
		float64(external),
	)
}

// TransactionFeatures builds the per-transaction vector fed to
// PredictTransactionAnomaly.
func TransactionFeatures(tx *domain.Transaction) []float64 {
	hour := tx.Timestamp.Hour()
	wd := tx.Timestamp.Weekday()

	return []float64{
		tx.Amount,
		float64(hour),
		float64(wd),
		boolFeature(tx.External()),
		boolFeature(tx.Category == "CASH_DEPOSIT"),
		boolFeature(tx.Category == "INTERNATIONAL_TRANSFER"),
		boolFeature(hour < 6 || hour >= 22),
		boolFeature(wd == time.Saturday || wd == time.Sunday),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
