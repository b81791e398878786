package model

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// StaticScorer returns fixed scores. Used in tests and as a pinned
// fallback when no model service is deployed.
type StaticScorer struct {
	CustomerRisk       float64
	TransactionAnomaly float64
	Err                error
}

// PredictCustomerRisk returns the fixed customer score.
func (s *StaticScorer) PredictCustomerRisk(ctx context.Context, features []float64) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.CustomerRisk, nil
}

// PredictTransactionAnomaly returns the fixed anomaly score.
func (s *StaticScorer) PredictTransactionAnomaly(ctx context.Context, features []float64) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.TransactionAnomaly, nil
}

var _ domain.Scorer = (*StaticScorer)(nil)

// HeuristicScorer approximates model output with fixed thresholds over the
// same feature vectors. Serves deployments where no model service is
// available but a nonzero probability term is still wanted.
type HeuristicScorer struct {
	// LargeAmount is the single-transaction amount treated as maximally
	// suspicious. Zero selects a 1M default.
	LargeAmount float64
}

func (s *HeuristicScorer) largeAmount() float64 {
	if s.LargeAmount > 0 {
		return s.LargeAmount
	}
	return 1_000_000
}

// PredictCustomerRisk blends volume-to-income, night activity, and missing
// KYC into a [0,1] score.
func (s *HeuristicScorer) PredictCustomerRisk(ctx context.Context, features []float64) (float64, error) {
	if len(features) < 14 {
		return 0, fmt.Errorf("%w: customer feature vector has %d values", domain.ErrScorerUnavailable, len(features))
	}
	income, txCount, kyc := features[0], features[1], features[3]
	night, total := features[10], features[9]

	var score float64
	if income > 0 && total/income > 3 {
		score += 0.4
	}
	if txCount > 0 && night/txCount > 0.3 {
		score += 0.3
	}
	if kyc == 0 {
		score += 0.3
	}
	return clamp01(score), nil
}

// PredictTransactionAnomaly flags large, nocturnal, or cross-border
// transactions.
func (s *HeuristicScorer) PredictTransactionAnomaly(ctx context.Context, features []float64) (float64, error) {
	if len(features) < 8 {
		return 0, fmt.Errorf("%w: transaction feature vector has %d values", domain.ErrScorerUnavailable, len(features))
	}
	amount, international, nightFlag := features[0], features[5], features[6]

	score := amount / s.largeAmount()
	if score > 0.6 {
		score = 0.6
	}
	if international == 1 {
		score += 0.2
	}
	if nightFlag == 1 {
		score += 0.2
	}
	return clamp01(score), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ domain.Scorer = (*HeuristicScorer)(nil)
