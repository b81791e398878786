package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// BusScorer calls a remote model-scoring service over the event bus
// using request-reply. The service owns training and the fitted models;
// from the engine's viewpoint each call is a pure function of the
// feature vector. Any transport or service failure surfaces as
// ErrScorerUnavailable so callers degrade to a partial result.
type BusScorer struct {
	bus domain.EventBus
}

// NewBusScorer creates a scorer backed by the event bus.
func NewBusScorer(bus domain.EventBus) *BusScorer {
	return &BusScorer{bus: bus}
}

type scoreRequest struct {
	Features []float64 `json:"features"`
}

type scoreReply struct {
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// PredictCustomerRisk requests a customer risk probability.
func (s *BusScorer) PredictCustomerRisk(ctx context.Context, features []float64) (float64, error) {
	return s.request(ctx, domain.TopicModelCustomer, features)
}

// PredictTransactionAnomaly requests a transaction anomaly score.
func (s *BusScorer) PredictTransactionAnomaly(ctx context.Context, features []float64) (float64, error) {
	return s.request(ctx, domain.TopicModelTransaction, features)
}

func (s *BusScorer) request(ctx context.Context, topic string, features []float64) (float64, error) {
	payload, err := json.Marshal(scoreRequest{Features: features})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
	}

	reply, err := s.bus.Request(ctx, topic, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
	}

	var resp scoreReply
	if err := json.Unmarshal(reply, &resp); err != nil {
		return 0, fmt.Errorf("%w: malformed reply: %v", domain.ErrScorerUnavailable, err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("%w: %s", domain.ErrScorerUnavailable, resp.Error)
	}
	if resp.Score < 0 || resp.Score > 1 {
		return 0, fmt.Errorf("%w: score %v out of [0,1]", domain.ErrScorerUnavailable, resp.Score)
	}

	return resp.Score, nil
}

var _ domain.Scorer = (*BusScorer)(nil)
