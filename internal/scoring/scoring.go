// Package scoring produces the authoritative per-customer risk score by
// blending income-mismatch, pattern, network, and model-derived signals.
package scoring

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/model"
)

// Engine computes risk scores. It holds no mutable state: every call
// reads only its input, so scoring is safe to parallelize across
// customers.
type Engine struct {
	cfg    domain.ScoringConfig
	scorer domain.Scorer // nil means no model deployed
}

// NewEngine creates a scoring engine. scorer may be nil; scores are
// then computed from the non-model terms and marked partial.
func NewEngine(cfg domain.ScoringConfig, scorer domain.Scorer) *Engine {
	return &Engine{cfg: cfg, scorer: scorer}
}

// Input is one customer's slice of the immutable snapshot plus the
// detector outputs feeding the blend.
type Input struct {
	Customer     *domain.Customer
	Transactions []*domain.Transaction

	// StructuringIntensity is the maximum intensity across the
	// customer's accounts, in [0,1].
	StructuringIntensity float64

	// ClusterRisk is the risk of the customer's smurfing cluster, in
	// [0,1]; zero when no account is clustered.
	ClusterRisk float64
	InCluster   bool
}

// Score computes one customer's score. It never fails: degraded model
// access yields a partial score, zero income yields the capped
// mismatch sentinel.
func (e *Engine) Score(ctx context.Context, in Input) *domain.CustomerScore {
	c := in.Customer

	mismatch := e.incomeMismatch(c, in.Transactions)

	modelProb, partial := e.modelProbability(ctx, c, in.Transactions)

	kycPenalty := 0.0
	if !c.KYCComplete {
		kycPenalty = e.cfg.KYCPenalty
	}

	factors := []domain.Factor{
		{Name: "income_mismatch", Value: mismatch, Contribution: e.cfg.IncomeWeight * mismatch},
		{Name: "structuring_intensity", Value: in.StructuringIntensity, Contribution: e.cfg.StructuringWeight * in.StructuringIntensity * 100},
		{Name: "cluster_risk", Value: in.ClusterRisk, Contribution: e.cfg.NetworkWeight * in.ClusterRisk * 100},
		{Name: "model_probability", Value: modelProb, Contribution: e.cfg.ModelWeight * modelProb * 100},
		{Name: "kyc_penalty", Value: kycPenalty, Contribution: e.cfg.KYCWeight * kycPenalty},
	}

	total := 0.0
	for _, f := range factors {
		total += f.Contribution
	}
	clamped := math.Min(math.Max(total, 0), 100)
	score := int(math.Round(clamped))

	return &domain.CustomerScore{
		CustomerID: c.ID,
		Score:      score,
		Category:   e.cfg.Bands.Category(float64(score)),
		Partial:    partial,
		Factors:    factors,
	}
}

// ScoreAll scores customers in parallel with a semaphore-capped worker
// fan-out. Inputs are independent; each goroutine reads only its own
// customer's slice. The output order matches the input order.
func (e *Engine) ScoreAll(ctx context.Context, inputs []Input) []*domain.CustomerScore {
	scores := make([]*domain.CustomerScore, len(inputs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.MaxWorkers)

	for i, in := range inputs {
		wg.Add(1)
		go func(idx int, in Input) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			scores[idx] = e.Score(ctx, in)
		}(i, in)
	}

	wg.Wait()

	return scores
}

// incomeMismatch returns the capped, normalized volume/income ratio in
// [0,1]. Zero or missing declared income scores the cap sentinel
// instead of dividing.
func (e *Engine) incomeMismatch(c *domain.Customer, txs []*domain.Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}

	var volume float64
	for _, tx := range txs {
		volume += tx.Amount
	}

	if c.DeclaredIncome <= 0 {
		return 1 // sentinel: cap, not a division error
	}

	ratio := volume / c.DeclaredIncome
	return math.Min(ratio, e.cfg.IncomeMismatchCap) / e.cfg.IncomeMismatchCap
}

// modelProbability asks the external model for the customer's risk
// probability. Unavailability is recoverable: the term contributes zero
// and the result is marked partial.
func (e *Engine) modelProbability(ctx context.Context, c *domain.Customer, txs []*domain.Transaction) (float64, bool) {
	if e.scorer == nil {
		return 0, true
	}

	features := model.CustomerFeatures(c, txs, time.Now().UTC())
	prob, err := e.scorer.PredictCustomerRisk(ctx, features)
	if err != nil {
		if !errors.Is(err, domain.ErrScorerUnavailable) {
			slog.Warn("customer risk prediction failed",
				"customer_id", c.ID,
				"error", err,
			)
		}
		return 0, true
	}

	return math.Min(math.Max(prob, 0), 1), false
}
