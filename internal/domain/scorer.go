package domain

import (
	"context"
	"errors"
)

// ErrScorerUnavailable signals that the external model cannot serve a
// prediction. Callers degrade to a partial result instead of failing.
var ErrScorerUnavailable = errors.New("model scorer unavailable")

// Scorer is the narrow interface to the externally trained models. Both
// methods are pure from the engine's viewpoint: same features, same
// score, no side effects. Implementations return ErrScorerUnavailable
// (possibly wrapped) when the model cannot be reached.
type Scorer interface {
	// PredictCustomerRisk returns the probability in [0,1] that the
	// customer described by the feature vector is high risk.
	PredictCustomerRisk(ctx context.Context, features []float64) (float64, error)

	// PredictTransactionAnomaly returns an anomaly score in [0,1] for a
	// transaction feature vector.
	PredictTransactionAnomaly(ctx context.Context, features []float64) (float64, error)
}

// BehaviorRule is a configurable behavioral detection rule. Expression
// is a CEL program over the per-customer behavioral feature variables;
// it must return bool, int, or double. The resulting score, clamped to
// [0,1], triggers a finding when it reaches Threshold.
type BehaviorRule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Threshold   float64 `json:"threshold"`
	Reason      string  `json:"reason"`
	Enabled     bool    `json:"enabled"`
}
