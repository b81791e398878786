package behavior

import (
	"context"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func emptyFeatures() map[string]any {
	return map[string]any{
		"tx_count":             0,
		"total_volume":         0.0,
		"avg_amount":           0.0,
		"max_amount":           0.0,
		"night_ratio":          0.0,
		"weekend_ratio":        0.0,
		"rapid_succession":     0,
		"large_tx_count":       0,
		"international_count":  0,
		"cash_deposit_count":   0,
		"unique_beneficiaries": 0,
		"external_count":       0,
		"anomaly_count":        0,
		"anomaly_max":          0.0,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "night-check",
		Name:       "Night Check",
		Expression: "night_ratio > 0.5",
		Threshold:  1.0,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "invalid-rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "valid-rule",
		Expression: "tx_count > 10",
		Threshold:  1.0,
		Enabled:    true,
	}

	if err := engine.ValidateRule(rule); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("validation must not load the rule, got %d loaded", engine.RulesCount())
	}
}

func TestRejectNonNumericExpression(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "string-rule",
		Expression: `"always"`,
		Enabled:    true,
	}

	if err := engine.ValidateRule(rule); err == nil {
		t.Error("expected error for string-typed expression")
	}
}

func TestEvaluateTriggersAtThreshold(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "unusual-timing",
		Expression: "night_ratio > 0.3 || weekend_ratio > 0.8",
		Threshold:  1.0,
		Reason:     "activity concentrated in unusual hours",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	features := emptyFeatures()
	features["night_ratio"] = 0.4

	findings := engine.Evaluate(context.Background(), "CUST-1", features)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].RuleID != "unusual-timing" {
		t.Errorf("unexpected rule id %s", findings[0].RuleID)
	}
	if findings[0].CustomerID != "CUST-1" {
		t.Errorf("unexpected customer id %s", findings[0].CustomerID)
	}
	if findings[0].Score != 1.0 {
		t.Errorf("expected score 1.0, got %v", findings[0].Score)
	}
	if findings[0].Reason != rule.Reason {
		t.Errorf("unexpected reason %q", findings[0].Reason)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "model-anomaly",
		Expression: "anomaly_max",
		Threshold:  0.7,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	features := emptyFeatures()
	features["anomaly_max"] = 0.5

	if findings := engine.Evaluate(context.Background(), "CUST-1", features); findings != nil {
		t.Errorf("expected no findings below threshold, got %v", findings)
	}
}

func TestEvaluateDoubleScore(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.BehaviorRule{
		ID:         "model-anomaly",
		Expression: "anomaly_max",
		Threshold:  0.7,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	features := emptyFeatures()
	features["anomaly_max"] = 0.9

	findings := engine.Evaluate(context.Background(), "CUST-1", features)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Score != 0.9 {
		t.Errorf("expected score 0.9, got %v", findings[0].Score)
	}
}

func TestReloadReplacesRuleSet(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}
	if engine.RulesCount() != len(BuiltinRules()) {
		t.Fatalf("expected %d rules, got %d", len(BuiltinRules()), engine.RulesCount())
	}

	next := []*domain.BehaviorRule{
		{ID: "only-rule", Expression: "tx_count > 100", Threshold: 1.0, Enabled: true},
		{ID: "disabled-rule", Expression: "tx_count > 1", Threshold: 1.0, Enabled: false},
	}
	if err := engine.ReloadRules(next); err != nil {
		t.Fatalf("failed to reload rules: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
}

func TestReloadKeepsOldSetOnError(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	good := &domain.BehaviorRule{ID: "good", Expression: "tx_count > 1", Threshold: 1.0, Enabled: true}
	if err := engine.LoadRule(good); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	bad := []*domain.BehaviorRule{
		{ID: "bad", Expression: "not valid !!!", Enabled: true},
	}
	if err := engine.ReloadRules(bad); err == nil {
		t.Fatal("expected reload error")
	}

	if engine.RulesCount() != 1 {
		t.Errorf("failed reload must keep the previous set, got %d rules", engine.RulesCount())
	}
}

func TestBuiltinRulesCompile(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	for _, rule := range BuiltinRules() {
		if err := engine.ValidateRule(rule); err != nil {
			t.Errorf("builtin rule %s does not compile: %v", rule.ID, err)
		}
	}
}

func TestBuiltinRapidSuccession(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	features := emptyFeatures()
	features["tx_count"] = 4
	features["rapid_succession"] = 2

	findings := engine.Evaluate(context.Background(), "CUST-9", features)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].RuleID != "rapid-succession" {
		t.Errorf("unexpected rule %s", findings[0].RuleID)
	}
}
