package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetCustomer", func(t *testing.T) {
		c := &domain.Customer{
			ID:             "CUST-001",
			Name:           "Asha Rao",
			DeclaredIncome: 1_200_000,
			KYCComplete:    true,
			OpenedAt:       time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC),
		}

		if err := repo.SaveCustomer(ctx, c); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}

		got, err := repo.GetCustomer(ctx, "CUST-001")
		if err != nil {
			t.Fatalf("GetCustomer failed: %v", err)
		}
		if got.Name != c.Name || got.DeclaredIncome != c.DeclaredIncome || !got.KYCComplete {
			t.Errorf("customer mismatch: %+v", got)
		}
		if got.RiskCategory != domain.RiskLow {
			t.Errorf("unset category should default to LOW, got %s", got.RiskCategory)
		}
	})

	t.Run("UpsertCustomerUpdatesRiskFields", func(t *testing.T) {
		c := &domain.Customer{
			ID:           "CUST-001",
			Name:         "Asha Rao",
			OpenedAt:     time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC),
			RiskScore:    72,
			RiskCategory: domain.RiskHigh,
		}

		if err := repo.SaveCustomer(ctx, c); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}

		got, err := repo.GetCustomer(ctx, "CUST-001")
		if err != nil {
			t.Fatalf("GetCustomer failed: %v", err)
		}
		if got.RiskScore != 72 || got.RiskCategory != domain.RiskHigh {
			t.Errorf("risk fields not updated: %+v", got)
		}
	})

	t.Run("GetCustomerNotFound", func(t *testing.T) {
		_, err := repo.GetCustomer(ctx, "CUST-MISSING")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAndListAccounts", func(t *testing.T) {
		accounts := []*domain.Account{
			{ID: "ACC-002", CustomerID: "CUST-001", Balance: 5_000},
			{ID: "ACC-001", CustomerID: "CUST-001", Balance: 20_000},
		}
		for _, a := range accounts {
			if err := repo.SaveAccount(ctx, a); err != nil {
				t.Fatalf("SaveAccount failed: %v", err)
			}
		}

		got, err := repo.ListAccounts(ctx)
		if err != nil {
			t.Fatalf("ListAccounts failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 accounts, got %d", len(got))
		}
		if got[0].ID != "ACC-001" {
			t.Errorf("accounts must be ordered by id, got %s first", got[0].ID)
		}
	})

	t.Run("TransactionsByWindow", func(t *testing.T) {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		txs := []*domain.Transaction{
			{ID: "TX-001", SourceAccount: "ACC-001", DestAccount: "ACC-002", Amount: 100, Currency: "INR", Timestamp: base, Direction: domain.DirectionDebit},
			{ID: "TX-002", SourceAccount: "ACC-001", DestAccount: "ACC-002", Amount: 200, Currency: "INR", Timestamp: base.AddDate(0, 1, 0), Direction: domain.DirectionDebit},
		}
		for _, tx := range txs {
			if err := repo.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		window := domain.Window{
			ID:    "2025-06",
			Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		}
		got, err := repo.ListTransactions(ctx, window)
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "TX-001" {
			t.Errorf("expected only TX-001 inside the window, got %+v", got)
		}

		all, err := repo.ListTransactions(ctx, domain.Window{})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("zero window must list everything, got %d", len(all))
		}
	})

	t.Run("TransactionsByAccount", func(t *testing.T) {
		got, err := repo.GetTransactionsByAccount(ctx, "ACC-002", time.Time{})
		if err != nil {
			t.Fatalf("GetTransactionsByAccount failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("destination side must match too, got %d", len(got))
		}
	})

	t.Run("SaveTransactionIdempotent", func(t *testing.T) {
		tx := &domain.Transaction{
			ID: "TX-001", SourceAccount: "ACC-001", Amount: 999, Currency: "INR",
			Timestamp: time.Now().UTC(), Direction: domain.DirectionDebit,
		}
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		got, err := repo.GetTransactionsByAccount(ctx, "ACC-001", time.Time{})
		if err != nil {
			t.Fatalf("GetTransactionsByAccount failed: %v", err)
		}
		for _, existing := range got {
			if existing.ID == "TX-001" && existing.Amount != 100 {
				t.Error("re-saving a transaction must not mutate it")
			}
		}
	})

	t.Run("SaveAndGetCustomerScore", func(t *testing.T) {
		score := &domain.CustomerScore{
			CustomerID: "CUST-001",
			Score:      64,
			Category:   domain.RiskHigh,
			Partial:    true,
			Factors: []domain.Factor{
				{Name: "income_mismatch", Value: 0.8, Contribution: 20},
			},
		}
		if err := repo.SaveCustomerScore(ctx, score); err != nil {
			t.Fatalf("SaveCustomerScore failed: %v", err)
		}

		score.Score = 70
		score.Partial = false
		if err := repo.SaveCustomerScore(ctx, score); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, err := repo.GetCustomerScore(ctx, "CUST-001")
		if err != nil {
			t.Fatalf("GetCustomerScore failed: %v", err)
		}
		if got.Score != 70 || got.Partial {
			t.Errorf("expected updated score, got %+v", got)
		}
		if len(got.Factors) != 1 || got.Factors[0].Name != "income_mismatch" {
			t.Errorf("factors did not round-trip: %+v", got.Factors)
		}
	})

	t.Run("ReplaceClusters", func(t *testing.T) {
		first := []*domain.Cluster{
			{ID: "2025-06-cluster-0001", WindowID: "2025-06", Members: []string{"ACC-001", "ACC-002"}, RiskScore: 0.5, TotalVolume: 300, TransactionCount: 3, TopBeneficiary: "ACC-002", TopFanIn: 6},
			{ID: "2025-06-cluster-0002", WindowID: "2025-06", Members: []string{"ACC-003", "ACC-004"}, RiskScore: 0.4, TotalVolume: 100, TransactionCount: 3, TopBeneficiary: "ACC-004", TopFanIn: 6},
		}
		if err := repo.ReplaceClusters(ctx, "2025-06", first); err != nil {
			t.Fatalf("ReplaceClusters failed: %v", err)
		}

		second := first[:1]
		if err := repo.ReplaceClusters(ctx, "2025-06", second); err != nil {
			t.Fatalf("ReplaceClusters failed: %v", err)
		}

		got, err := repo.ListClusters(ctx, "2025-06")
		if err != nil {
			t.Fatalf("ListClusters failed: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("replace must drop stale clusters, got %d", len(got))
		}
		if len(got[0].Members) != 2 || got[0].Members[0] != "ACC-001" {
			t.Errorf("members did not round-trip: %+v", got[0].Members)
		}
	})

	t.Run("AlertLifecycle", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		alert := &domain.Alert{
			ID:         "alert-001",
			CustomerID: "CUST-001",
			Type:       domain.AlertStructuring,
			Severity:   domain.SeverityHigh,
			Status:     domain.AlertOpen,
			WindowID:   "2025-06",
			Score:      66,
			Reasons:    []string{"split amounts below the reporting threshold"},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		open, err := repo.ListOpenAlerts(ctx, "2025-06")
		if err != nil {
			t.Fatalf("ListOpenAlerts failed: %v", err)
		}
		if len(open) != 1 {
			t.Fatalf("expected 1 open alert, got %d", len(open))
		}

		if err := repo.UpdateAlertStatus(ctx, "alert-001", domain.AlertResolved, "analyst-7", "confirmed false positive"); err != nil {
			t.Fatalf("UpdateAlertStatus failed: %v", err)
		}

		got, err := repo.GetAlert(ctx, "alert-001")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got.Status != domain.AlertResolved {
			t.Errorf("expected RESOLVED, got %s", got.Status)
		}
		if got.AssignedAnalyst != "analyst-7" || got.ResolutionNotes != "confirmed false positive" {
			t.Errorf("review fields not stored: %+v", got)
		}
		if got.ResolvedAt == nil {
			t.Error("resolution must set the timestamp")
		}
		if len(got.Reasons) != 1 {
			t.Errorf("reasons did not round-trip: %+v", got.Reasons)
		}

		open, err = repo.ListOpenAlerts(ctx, "2025-06")
		if err != nil {
			t.Fatalf("ListOpenAlerts failed: %v", err)
		}
		if len(open) != 0 {
			t.Errorf("resolved alerts are not open, got %d", len(open))
		}

		byCustomer, err := repo.ListAlertsByCustomer(ctx, "CUST-001")
		if err != nil {
			t.Fatalf("ListAlertsByCustomer failed: %v", err)
		}
		if len(byCustomer) != 1 {
			t.Errorf("expected 1 alert for CUST-001, got %d", len(byCustomer))
		}
	})

	t.Run("UpdateMissingAlert", func(t *testing.T) {
		err := repo.UpdateAlertStatus(ctx, "alert-missing", domain.AlertResolved, "", "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("BehaviorRules", func(t *testing.T) {
		rule := &domain.BehaviorRule{
			ID:         "unusual-timing",
			Name:       "Unusual Timing",
			Expression: "night_ratio > 0.3",
			Threshold:  1.0,
			Reason:     "night activity",
			Enabled:    true,
		}
		if err := repo.SaveBehaviorRule(ctx, rule); err != nil {
			t.Fatalf("SaveBehaviorRule failed: %v", err)
		}

		rule.Threshold = 0.9
		rule.Enabled = false
		if err := repo.SaveBehaviorRule(ctx, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		rules, err := repo.ListBehaviorRules(ctx)
		if err != nil {
			t.Fatalf("ListBehaviorRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(rules))
		}
		if rules[0].Threshold != 0.9 || rules[0].Enabled {
			t.Errorf("rule not updated: %+v", rules[0])
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.SaveCustomer(ctx, &domain.Customer{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.SaveAlert(ctx, &domain.Alert{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
