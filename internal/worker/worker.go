// Package worker runs analysis passes requested over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Worker consumes analysis requests from the EventBus, loads the
// snapshot from the repository, and runs the pipeline.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	pipeline *analysis.Pipeline

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new analysis worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, pipeline *analysis.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the analysis request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicAnalysisRequested, w.handleRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("analysis worker started",
		"topic", domain.TopicAnalysisRequested,
	)

	return nil
}

// AnalysisRequest is the message payload asking for an analysis pass.
type AnalysisRequest struct {
	WindowID string    `json:"windowId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// AnalysisCompleted is published after a pass finishes.
type AnalysisCompleted struct {
	RunID          string `json:"runId"`
	WindowID       string `json:"windowId"`
	Customers      int    `json:"customers"`
	Clusters       int    `json:"clusters"`
	Alerts         int    `json:"alerts"`
	SkippedRecords int    `json:"skippedRecords"`
	Partial        bool   `json:"partial"`
	DurationMs     int64  `json:"durationMs"`
}

func (w *Worker) handleRequest(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var req AnalysisRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse analysis request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	window := domain.Window{ID: req.WindowID, Start: req.Start, End: req.End}

	result, err := w.runAnalysis(ctx, window)
	if err != nil {
		slog.Error("analysis run failed",
			"window_id", req.WindowID,
			"error", err,
		)
		return err
	}

	w.publishResult(ctx, result)

	return nil
}

func (w *Worker) runAnalysis(ctx context.Context, window domain.Window) (*domain.AnalysisResult, error) {
	snapshot, err := w.loadSnapshot(ctx, window)
	if err != nil {
		return nil, err
	}

	return w.pipeline.Run(ctx, snapshot, window)
}

func (w *Worker) loadSnapshot(ctx context.Context, window domain.Window) (*domain.Snapshot, error) {
	customers, err := w.repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	accounts, err := w.repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	transactions, err := w.repo.ListTransactions(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return &domain.Snapshot{
		Customers:    customers,
		Accounts:     accounts,
		Transactions: transactions,
	}, nil
}

func (w *Worker) publishResult(ctx context.Context, result *domain.AnalysisResult) {
	completed := AnalysisCompleted{
		RunID:          result.RunID,
		WindowID:       result.WindowID,
		Customers:      len(result.Scores),
		Clusters:       len(result.Clusters),
		Alerts:         len(result.Alerts),
		SkippedRecords: result.SkippedRecords,
		Partial:        result.Partial,
		DurationMs:     result.DurationMs,
	}

	payload, _ := json.Marshal(completed)
	if err := w.bus.Publish(ctx, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Error("failed to publish completion",
			"run_id", result.RunID,
			"error", err,
		)
	}

	for _, alert := range result.Alerts {
		alertPayload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, domain.TopicAlertCreated, alertPayload); err != nil {
			slog.Error("failed to publish alert",
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("analysis worker stopped")
	return nil
}

// Stats holds worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
