package scoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/model"
)

func testConfig() domain.ScoringConfig {
	return domain.DefaultConfig().Scoring
}

func customer(id string, income float64, kyc bool) *domain.Customer {
	return &domain.Customer{
		ID:             id,
		Name:           "Test " + id,
		DeclaredIncome: income,
		KYCComplete:    kyc,
		OpenedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func tx(id string, amount float64) *domain.Transaction {
	return &domain.Transaction{
		ID:            id,
		SourceAccount: "ACC-1",
		DestAccount:   "ACC-2",
		Amount:        amount,
		Currency:      "INR",
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Direction:     domain.DirectionDebit,
	}
}

func TestScore_CleanCustomer(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{CustomerRisk: 0.0})

	score := eng.Score(context.Background(), Input{
		Customer:     customer("CUST-1", 1_000_000, true),
		Transactions: []*domain.Transaction{tx("TX-1", 10_000)},
	})

	if score.Partial {
		t.Error("expected complete score with working model")
	}
	if score.Category != domain.RiskLow {
		t.Errorf("expected LOW, got %s", score.Category)
	}
	// 25*(0.01/10) = 0.025, rounds to 0
	if score.Score != 0 {
		t.Errorf("expected score 0, got %d", score.Score)
	}
}

func TestScore_Formula(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{CustomerRisk: 0.5})

	// volume 5_000_000 over income 1_000_000: ratio 5, normalized 0.5.
	txs := []*domain.Transaction{tx("TX-1", 5_000_000)}

	score := eng.Score(context.Background(), Input{
		Customer:             customer("CUST-1", 1_000_000, false),
		Transactions:         txs,
		StructuringIntensity: 0.5,
		ClusterRisk:          0.4,
		InCluster:            true,
	})

	// 25*0.5 + 0.20*0.5*100 + 0.30*0.4*100 + 0.35*0.5*100 + 1.0*20
	// = 12.5 + 10 + 12 + 17.5 + 20 = 72
	if score.Score != 72 {
		t.Errorf("expected score 72, got %d", score.Score)
	}
	if score.Category != domain.RiskHigh {
		t.Errorf("expected HIGH, got %s", score.Category)
	}
	if len(score.Factors) != 5 {
		t.Fatalf("expected 5 factors, got %d", len(score.Factors))
	}
	var total float64
	for _, f := range score.Factors {
		total += f.Contribution
	}
	if total != 72 {
		t.Errorf("factor contributions sum to %v, want 72", total)
	}
}

func TestScore_ClampAt100(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{CustomerRisk: 1.0})

	score := eng.Score(context.Background(), Input{
		Customer:             customer("CUST-1", 100, false),
		Transactions:         []*domain.Transaction{tx("TX-1", 50_000_000)},
		StructuringIntensity: 1.0,
		ClusterRisk:          1.0,
		InCluster:            true,
	})

	if score.Score != 100 {
		t.Errorf("expected clamped score 100, got %d", score.Score)
	}
	if score.Category != domain.RiskCritical {
		t.Errorf("expected CRITICAL, got %s", score.Category)
	}
}

func TestScore_ZeroIncomeSentinel(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{})

	score := eng.Score(context.Background(), Input{
		Customer:     customer("CUST-1", 0, true),
		Transactions: []*domain.Transaction{tx("TX-1", 1_000)},
	})

	// Zero income with activity hits the cap: w1*1 = 25 points.
	if score.Score != 25 {
		t.Errorf("expected score 25 from capped mismatch, got %d", score.Score)
	}
}

func TestScore_NoTransactionsNoMismatch(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{})

	score := eng.Score(context.Background(), Input{
		Customer: customer("CUST-1", 0, true),
	})

	if score.Score != 0 {
		t.Errorf("idle customer should score 0, got %d", score.Score)
	}
}

func TestScore_BandBoundaries(t *testing.T) {
	cfg := testConfig()
	// Disable everything except the KYC penalty so the score is exact.
	cfg.IncomeWeight = 0
	cfg.StructuringWeight = 0
	cfg.NetworkWeight = 0
	cfg.ModelWeight = 0
	cfg.KYCWeight = 1

	tests := []struct {
		penalty float64
		want    domain.RiskCategory
	}{
		{29, domain.RiskLow},
		{30, domain.RiskMedium},
		{59, domain.RiskMedium},
		{60, domain.RiskHigh},
		{79, domain.RiskHigh},
		{80, domain.RiskCritical},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("penalty_%v", tt.penalty), func(t *testing.T) {
			cfg.KYCPenalty = tt.penalty
			eng := NewEngine(cfg, nil)

			score := eng.Score(context.Background(), Input{
				Customer: customer("CUST-1", 1_000_000, false),
			})

			if score.Score != int(tt.penalty) {
				t.Fatalf("expected score %v, got %d", tt.penalty, score.Score)
			}
			if score.Category != tt.want {
				t.Errorf("score %d: expected %s, got %s", score.Score, tt.want, score.Category)
			}
		})
	}
}

func TestScore_ModelUnavailableIsPartial(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{Err: domain.ErrScorerUnavailable})

	score := eng.Score(context.Background(), Input{
		Customer:             customer("CUST-1", 1_000_000, true),
		Transactions:         []*domain.Transaction{tx("TX-1", 5_000_000)},
		StructuringIntensity: 0.5,
	})

	if !score.Partial {
		t.Error("expected partial score when model is unavailable")
	}
	// 25*0.5 + 0.20*0.5*100 = 22.5, rounds to 23; model term absent
	if score.Score != 23 {
		t.Errorf("expected degraded score 23, got %d", score.Score)
	}
}

func TestScore_NilScorerIsPartial(t *testing.T) {
	eng := NewEngine(testConfig(), nil)

	score := eng.Score(context.Background(), Input{
		Customer:     customer("CUST-1", 1_000_000, true),
		Transactions: []*domain.Transaction{tx("TX-1", 10_000)},
	})

	if !score.Partial {
		t.Error("expected partial score without a model")
	}
}

func TestScoreAll_PreservesOrder(t *testing.T) {
	eng := NewEngine(testConfig(), &model.StaticScorer{})

	inputs := make([]Input, 50)
	for i := range inputs {
		inputs[i] = Input{
			Customer:     customer(fmt.Sprintf("CUST-%03d", i), 1_000_000, true),
			Transactions: []*domain.Transaction{tx(fmt.Sprintf("TX-%03d", i), 1_000)},
		}
	}

	scores := eng.ScoreAll(context.Background(), inputs)

	if len(scores) != len(inputs) {
		t.Fatalf("expected %d scores, got %d", len(inputs), len(scores))
	}
	for i, s := range scores {
		if s == nil {
			t.Fatalf("score %d is nil", i)
		}
		if s.CustomerID != inputs[i].Customer.ID {
			t.Errorf("score %d: expected %s, got %s", i, inputs[i].Customer.ID, s.CustomerID)
		}
	}
}
