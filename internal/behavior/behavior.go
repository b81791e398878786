// Package behavior provides the CEL-Go based behavioral rule engine.
// Rules are expressions over per-customer activity features and can be
// hot-reloaded without restarting the engine.
package behavior

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine compiles and evaluates behavioral rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledRule
	maxWorkers    int
}

type compiledRule struct {
	rule    *domain.BehaviorRule
	program cel.Program
}

// NewEngine creates a behavioral rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// One variable per behavioral feature. Counts are ints, ratios and
	// amounts are doubles; expressions must not mix the two in a
	// comparison.
	env, err := cel.NewEnv(
		cel.Variable("tx_count", cel.IntType),
		cel.Variable("total_volume", cel.DoubleType),
		cel.Variable("avg_amount", cel.DoubleType),
		cel.Variable("max_amount", cel.DoubleType),
		cel.Variable("night_ratio", cel.DoubleType),
		cel.Variable("weekend_ratio", cel.DoubleType),
		cel.Variable("rapid_succession", cel.IntType),
		cel.Variable("large_tx_count", cel.IntType),
		cel.Variable("international_count", cel.IntType),
		cel.Variable("cash_deposit_count", cel.IntType),
		cel.Variable("unique_beneficiaries", cel.IntType),
		cel.Variable("external_count", cel.IntType),
		cel.Variable("anomaly_count", cel.IntType),
		cel.Variable("anomaly_max", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*compiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.BehaviorRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(rule)
	return err
}

// LoadRule compiles and loads a single rule.
func (e *Engine) LoadRule(rule *domain.BehaviorRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled

	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(rules []*domain.BehaviorRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set. A compile error
// leaves the previous set in place.
func (e *Engine) ReloadRules(rules []*domain.BehaviorRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*compiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compile(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = compiled
	}

	e.compiledRules = next

	return nil
}

// Evaluate runs all loaded rules against one customer's features and
// returns findings for rules whose score reached their threshold.
// Evaluation errors in individual rules are skipped; a bad rule must
// not block the rest of the set.
func (e *Engine) Evaluate(ctx context.Context, customerID string, features map[string]any) []domain.BehavioralFinding {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	results := make([]*domain.BehavioralFinding, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *compiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = evaluateRule(r, customerID, features)
		}(i, rule)
	}

	wg.Wait()

	findings := make([]domain.BehavioralFinding, 0, len(rules))
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	if len(findings) == 0 {
		return nil
	}
	return findings
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.BehaviorRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.BehaviorRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.rule)
	}
	return rules
}

// Close clears the loaded rule set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*compiledRule)
	return nil
}

func evaluateRule(r *compiledRule, customerID string, features map[string]any) *domain.BehavioralFinding {
	out, _, err := r.program.Eval(features)
	if err != nil {
		return nil
	}

	score := math.Min(math.Max(toScore(out), 0), 1)
	if score < r.rule.Threshold {
		return nil
	}

	return &domain.BehavioralFinding{
		RuleID:     r.rule.ID,
		CustomerID: customerID,
		Score:      score,
		Reason:     r.rule.Reason,
	}
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func (e *Engine) compile(rule *domain.BehaviorRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &compiledRule{
		rule:    rule,
		program: program,
	}, nil
}
