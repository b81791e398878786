package alerts

import (
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func baseInput() Input {
	return Input{
		WindowID: "2025-06",
		OwnerByAccount: map[string]string{
			"ACC-1": "CUST-1",
			"ACC-2": "CUST-1",
			"ACC-3": "CUST-2",
		},
	}
}

func findAlert(alerts []*domain.Alert, customerID string, typ domain.AlertType) *domain.Alert {
	for _, a := range alerts {
		if a.CustomerID == customerID && a.Type == typ {
			return a
		}
	}
	return nil
}

func TestHighRiskScoreAlert(t *testing.T) {
	in := baseInput()
	in.Scores = []*domain.CustomerScore{
		{CustomerID: "CUST-1", Score: 85, Category: domain.RiskCritical},
		{CustomerID: "CUST-2", Score: 70, Category: domain.RiskHigh},
	}

	alerts := NewGenerator().Generate(in)

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Type != domain.AlertHighRiskScore {
		t.Errorf("unexpected type %s", a.Type)
	}
	if a.CustomerID != "CUST-1" {
		t.Errorf("unexpected customer %s", a.CustomerID)
	}
	if a.Severity != domain.SeverityCritical {
		t.Errorf("high risk score alerts are always critical, got %s", a.Severity)
	}
	if a.Score != 85 {
		t.Errorf("expected score 85, got %v", a.Score)
	}
	if a.Status != domain.AlertOpen {
		t.Errorf("new alerts must be OPEN, got %s", a.Status)
	}
	if a.ID == "" {
		t.Error("new alerts need an id")
	}
}

func TestStructuringAlertMergesAccounts(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	in := baseInput()
	in.Structuring = map[string]*domain.StructuringFinding{
		"ACC-1": {AccountID: "ACC-1", FlaggedDays: []time.Time{day}, ActiveDays: 2, Intensity: 0.5},
		"ACC-2": {AccountID: "ACC-2", FlaggedDays: []time.Time{day}, ActiveDays: 1, Intensity: 1.0},
		"ACC-3": {AccountID: "ACC-3", ActiveDays: 3},
	}

	alerts := NewGenerator().Generate(in)

	if len(alerts) != 1 {
		t.Fatalf("expected 1 merged alert for CUST-1, got %d", len(alerts))
	}
	a := alerts[0]
	if a.CustomerID != "CUST-1" || a.Type != domain.AlertStructuring {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.Score != 100 {
		t.Errorf("expected the highest intensity to win, got score %v", a.Score)
	}
	if a.Severity != domain.SeverityCritical {
		t.Errorf("intensity 1.0 should be critical, got %s", a.Severity)
	}
	if len(a.Reasons) != 2 {
		t.Errorf("expected one reason per flagged account, got %v", a.Reasons)
	}
}

func TestSmurfingAlertPerMemberCustomer(t *testing.T) {
	in := baseInput()
	in.Clusters = []*domain.Cluster{
		{
			ID:        "2025-06-cluster-0000",
			WindowID:  "2025-06",
			Members:   []string{"ACC-1", "ACC-3"},
			RiskScore: 0.6,
		},
	}

	alerts := NewGenerator().Generate(in)

	if len(alerts) != 2 {
		t.Fatalf("expected one alert per member customer, got %d", len(alerts))
	}
	for _, customerID := range []string{"CUST-1", "CUST-2"} {
		a := findAlert(alerts, customerID, domain.AlertSmurfing)
		if a == nil {
			t.Fatalf("missing smurfing alert for %s", customerID)
		}
		if a.ClusterID != "2025-06-cluster-0000" {
			t.Errorf("missing cluster reference: %+v", a)
		}
		if a.Severity != domain.SeverityHigh {
			t.Errorf("risk 0.6 should be high, got %s", a.Severity)
		}
	}
}

func TestBehavioralAlertUsesMaxScore(t *testing.T) {
	in := baseInput()
	in.Behavioral = map[string][]domain.BehavioralFinding{
		"CUST-2": {
			{RuleID: "unusual-timing", CustomerID: "CUST-2", Score: 1.0, Reason: "night activity"},
			{RuleID: "model-anomaly", CustomerID: "CUST-2", Score: 0.8, Reason: "model flagged"},
		},
	}

	alerts := NewGenerator().Generate(in)

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Type != domain.AlertBehavioral {
		t.Fatalf("unexpected type %s", a.Type)
	}
	if a.Score != 100 {
		t.Errorf("expected max finding score, got %v", a.Score)
	}
	if len(a.Reasons) != 2 {
		t.Errorf("expected both finding reasons, got %v", a.Reasons)
	}
}

func TestRerunUpdatesOpenAlert(t *testing.T) {
	in := baseInput()
	in.Scores = []*domain.CustomerScore{
		{CustomerID: "CUST-1", Score: 90, Category: domain.RiskCritical},
	}

	gen := NewGenerator()
	first := gen.Generate(in)
	if len(first) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(first))
	}

	prev := first[0]
	prev.Status = domain.AlertAssigned
	prev.AssignedAnalyst = "analyst-7"

	in.Scores[0].Score = 95
	in.Existing = []*domain.Alert{prev}

	second := gen.Generate(in)
	if len(second) != 1 {
		t.Fatalf("expected 1 alert on re-run, got %d", len(second))
	}

	a := second[0]
	if a.ID != prev.ID {
		t.Error("re-run must keep the open alert's id")
	}
	if !a.CreatedAt.Equal(prev.CreatedAt) {
		t.Error("re-run must keep the original creation time")
	}
	if a.Status != domain.AlertAssigned {
		t.Errorf("re-run must keep review state, got %s", a.Status)
	}
	if a.AssignedAnalyst != "analyst-7" {
		t.Errorf("re-run must keep assignment, got %q", a.AssignedAnalyst)
	}
	if a.Score != 95 {
		t.Errorf("re-run must refresh the signal, got %v", a.Score)
	}
}

func TestResolvedAlertNotReused(t *testing.T) {
	in := baseInput()
	in.Scores = []*domain.CustomerScore{
		{CustomerID: "CUST-1", Score: 90, Category: domain.RiskCritical},
	}

	gen := NewGenerator()
	prev := gen.Generate(in)[0]
	prev.Status = domain.AlertResolved

	in.Existing = []*domain.Alert{prev}
	next := gen.Generate(in)

	if len(next) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(next))
	}
	if next[0].ID == prev.ID {
		t.Error("a resolved alert must not be reopened; a new one is created")
	}
}

func TestDeterministicOrder(t *testing.T) {
	in := baseInput()
	in.Scores = []*domain.CustomerScore{
		{CustomerID: "CUST-2", Score: 90, Category: domain.RiskCritical},
		{CustomerID: "CUST-1", Score: 85, Category: domain.RiskCritical},
	}
	in.Behavioral = map[string][]domain.BehavioralFinding{
		"CUST-1": {{RuleID: "unusual-timing", CustomerID: "CUST-1", Score: 1.0, Reason: "night"}},
	}

	alerts := NewGenerator().Generate(in)

	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}
	if alerts[0].CustomerID != "CUST-1" || alerts[0].Type != domain.AlertBehavioral {
		t.Errorf("unexpected order: %s/%s first", alerts[0].CustomerID, alerts[0].Type)
	}
	if alerts[2].CustomerID != "CUST-2" {
		t.Errorf("unexpected order: %s last", alerts[2].CustomerID)
	}
}

func TestEmptyInputNoAlerts(t *testing.T) {
	alerts := NewGenerator().Generate(baseInput())
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %d", len(alerts))
	}
}
