// Package analysis orchestrates one full detection pass over a
// transaction snapshot: validation, graph construction, the detectors,
// scoring, behavioral evaluation, and alert generation.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/behavior"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/graph"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/smurfing"
	"github.com/opensource-finance/harrier/internal/structuring"
)

// Pipeline runs analysis passes. It is safe for concurrent use: each
// Run works on its own snapshot and shares only immutable configuration
// and the hot-reloadable behavior engine.
type Pipeline struct {
	cfg *domain.Config

	structuring *structuring.Detector
	smurfing    *smurfing.Detector
	scoring     *scoring.Engine
	behavior    *behavior.Engine
	alerts      *alerts.Generator

	scorer domain.Scorer

	// repo is optional. When set, Run reconciles alerts against the
	// stored open set and persists scores, clusters and alerts.
	repo domain.Repository
}

// NewPipeline assembles a pipeline from validated configuration.
// scorer and repo may be nil.
func NewPipeline(cfg *domain.Config, behaviorEngine *behavior.Engine, scorer domain.Scorer, repo domain.Repository) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		structuring: structuring.NewDetector(cfg.Structuring),
		smurfing:    smurfing.NewDetector(cfg.Smurfing),
		scoring:     scoring.NewEngine(cfg.Scoring, scorer),
		behavior:    behaviorEngine,
		alerts:      alerts.NewGenerator(),
		scorer:      scorer,
		repo:        repo,
	}
}

// Run executes one analysis pass. It never fails on bad records or a
// missing model: invalid transactions are skipped and counted, model
// outage degrades the result to partial. Only persistence errors and a
// cancelled context abort the run.
func (p *Pipeline) Run(ctx context.Context, snapshot *domain.Snapshot, window domain.Window) (*domain.AnalysisResult, error) {
	start := time.Now()

	valid, skipped := p.validate(snapshot.Transactions)

	owner := snapshot.OwnerIndex()
	txsByAccount := groupByAccount(valid, window)
	txsByCustomer := groupByCustomer(txsByAccount, owner)

	g := graph.Build(valid, window)
	structuringFindings := p.structuring.DetectAll(txsByAccount, window)
	smurfed := p.smurfing.Detect(g, window.ID, structuringFindings)

	anomalies, anomalyPartial := p.transactionAnomalies(ctx, valid)

	customers := sortedCustomers(snapshot.Customers)
	inputs := p.scoringInputs(customers, txsByCustomer, snapshot, structuringFindings, smurfed)
	scores := p.scoring.ScoreAll(ctx, inputs)

	behavioral := p.evaluateBehavior(ctx, customers, txsByCustomer, anomalies)

	existing, err := p.openAlerts(ctx, window.ID)
	if err != nil {
		return nil, err
	}

	generated := p.alerts.Generate(alerts.Input{
		WindowID:       window.ID,
		Scores:         scores,
		Structuring:    structuringFindings,
		Clusters:       smurfed.Clusters,
		Behavioral:     behavioral,
		OwnerByAccount: owner,
		Existing:       existing,
	})

	partial := anomalyPartial
	for _, s := range scores {
		if s.Partial {
			partial = true
			break
		}
	}

	result := &domain.AnalysisResult{
		RunID:            uuid.NewString(),
		WindowID:         window.ID,
		GeneratedAt:      time.Now().UTC(),
		Scores:           scores,
		Structuring:      structuringFindings,
		Clusters:         smurfed.Clusters,
		ClusterByAccount: smurfed.ClusterByAccount,
		Behavioral:       behavioral,
		Alerts:           generated,
		SkippedRecords:   skipped,
		Partial:          partial,
		DurationMs:       time.Since(start).Milliseconds(),
	}

	if err := p.persist(ctx, snapshot, result); err != nil {
		return nil, err
	}

	slog.Info("analysis pass complete",
		"run_id", result.RunID,
		"window_id", window.ID,
		"customers", len(scores),
		"clusters", len(result.Clusters),
		"alerts", len(result.Alerts),
		"skipped_records", skipped,
		"partial", partial,
		"duration_ms", result.DurationMs,
	)

	return result, nil
}

// validate drops malformed transactions. Bad records are local
// failures: logged at debug, counted, never fatal.
func (p *Pipeline) validate(txs []*domain.Transaction) ([]*domain.Transaction, int) {
	valid := make([]*domain.Transaction, 0, len(txs))
	skipped := 0
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			skipped++
			slog.Debug("skipping invalid transaction", "tx_id", tx.ID, "error", err)
			continue
		}
		valid = append(valid, tx)
	}
	return valid, skipped
}

// transactionAnomalies scores each transaction through the model. The
// first unavailability bails out: the whole map is dropped and the run
// is marked partial rather than half-scored.
func (p *Pipeline) transactionAnomalies(ctx context.Context, txs []*domain.Transaction) (map[string]float64, bool) {
	if p.scorer == nil {
		return nil, true
	}

	anomalies := make(map[string]float64, len(txs))
	for _, tx := range txs {
		score, err := p.scorer.PredictTransactionAnomaly(ctx, model.TransactionFeatures(tx))
		if err != nil {
			if !errors.Is(err, domain.ErrScorerUnavailable) {
				slog.Warn("transaction anomaly prediction failed", "tx_id", tx.ID, "error", err)
			}
			return nil, true
		}
		anomalies[tx.ID] = score
	}
	return anomalies, false
}

func (p *Pipeline) scoringInputs(
	customers []*domain.Customer,
	txsByCustomer map[string][]*domain.Transaction,
	snapshot *domain.Snapshot,
	structuringFindings map[string]*domain.StructuringFinding,
	smurfed *smurfing.Result,
) []scoring.Input {
	accountsByCustomer := snapshot.AccountsByCustomer()
	riskByCluster := make(map[string]float64, len(smurfed.Clusters))
	for _, c := range smurfed.Clusters {
		riskByCluster[c.ID] = c.RiskScore
	}

	inputs := make([]scoring.Input, 0, len(customers))
	for _, c := range customers {
		in := scoring.Input{
			Customer:     c,
			Transactions: txsByCustomer[c.ID],
		}

		for _, accountID := range accountsByCustomer[c.ID] {
			if f := structuringFindings[accountID]; f != nil && f.Intensity > in.StructuringIntensity {
				in.StructuringIntensity = f.Intensity
			}
			if clusterID, ok := smurfed.ClusterByAccount[accountID]; ok {
				in.InCluster = true
				if risk := riskByCluster[clusterID]; risk > in.ClusterRisk {
					in.ClusterRisk = risk
				}
			}
		}

		inputs = append(inputs, in)
	}
	return inputs
}

func (p *Pipeline) evaluateBehavior(
	ctx context.Context,
	customers []*domain.Customer,
	txsByCustomer map[string][]*domain.Transaction,
	anomalies map[string]float64,
) map[string][]domain.BehavioralFinding {
	if p.behavior == nil || p.behavior.RulesCount() == 0 {
		return nil
	}

	out := make(map[string][]domain.BehavioralFinding)
	for _, c := range customers {
		txs := txsByCustomer[c.ID]
		if len(txs) == 0 {
			continue
		}

		features := model.BehaviorFeatures(txs, anomalies, p.cfg.Scoring.AnomalyThreshold, p.cfg.Scoring.LargeAmountThreshold)
		if findings := p.behavior.Evaluate(ctx, c.ID, features); findings != nil {
			out[c.ID] = findings
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (p *Pipeline) openAlerts(ctx context.Context, windowID string) ([]*domain.Alert, error) {
	if p.repo == nil {
		return nil, nil
	}

	open, err := p.repo.ListOpenAlerts(ctx, windowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open alerts: %w", err)
	}
	return open, nil
}

func (p *Pipeline) persist(ctx context.Context, snapshot *domain.Snapshot, result *domain.AnalysisResult) error {
	if p.repo == nil {
		return nil
	}

	for _, s := range result.Scores {
		if err := p.repo.SaveCustomerScore(ctx, s); err != nil {
			return fmt.Errorf("failed to save score for %s: %w", s.CustomerID, err)
		}
	}

	// Customer risk fields track the latest score.
	scoreByCustomer := make(map[string]*domain.CustomerScore, len(result.Scores))
	for _, s := range result.Scores {
		scoreByCustomer[s.CustomerID] = s
	}
	for _, c := range snapshot.Customers {
		s, ok := scoreByCustomer[c.ID]
		if !ok {
			continue
		}
		c.RiskScore = s.Score
		c.RiskCategory = s.Category
		if err := p.repo.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("failed to save customer %s: %w", c.ID, err)
		}
	}

	if err := p.repo.ReplaceClusters(ctx, result.WindowID, result.Clusters); err != nil {
		return fmt.Errorf("failed to replace clusters: %w", err)
	}

	for _, a := range result.Alerts {
		if err := p.repo.SaveAlert(ctx, a); err != nil {
			return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
		}
	}

	return nil
}

// groupByAccount attributes each in-window transaction to its source
// account, the account under analysis.
func groupByAccount(txs []*domain.Transaction, window domain.Window) map[string][]*domain.Transaction {
	out := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		if !window.Contains(tx.Timestamp) {
			continue
		}
		out[tx.SourceAccount] = append(out[tx.SourceAccount], tx)
	}
	return out
}

func groupByCustomer(txsByAccount map[string][]*domain.Transaction, owner map[string]string) map[string][]*domain.Transaction {
	out := make(map[string][]*domain.Transaction)
	for accountID, txs := range txsByAccount {
		customerID, ok := owner[accountID]
		if !ok {
			continue
		}
		out[customerID] = append(out[customerID], txs...)
	}
	// Stable order within a customer regardless of map iteration.
	for _, txs := range out {
		sort.Slice(txs, func(i, j int) bool {
			if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
				return txs[i].Timestamp.Before(txs[j].Timestamp)
			}
			return txs[i].ID < txs[j].ID
		})
	}
	return out
}

func sortedCustomers(customers []*domain.Customer) []*domain.Customer {
	out := make([]*domain.Customer, len(customers))
	copy(out, customers)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
