// Package rules provides the CEL-Go based recommendation rule engine.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine evaluates recommendation rules against assessment factors.
// Rules are evaluated in load order so the output is deterministic.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	rules      []*CompiledRule
	maxWorkers int
	logger     *slog.Logger
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RecommendationRule
	Program cel.Program
}

// NewEngine creates a rule engine with no rules loaded.
func NewEngine(logger *slog.Logger, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("category", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("weight", cel.DoubleType),
		cel.Variable("impact", cel.StringType),
		cel.Variable("entity_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
		logger:     logger.With("component", "recommendation_rules"),
	}, nil
}

// NewDefaultEngine creates an engine preloaded with DefaultRules.
func NewDefaultEngine(logger *slog.Logger) (*Engine, error) {
	e, err := NewEngine(logger, 0)
	if err != nil {
		return nil, err
	}
	if err := e.LoadRules(DefaultRules()); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidateRule compiles a rule without changing the loaded set.
func (e *Engine) ValidateRule(rule *domain.RecommendationRule) error {
	if rule == nil {
		return errors.New("rule is required")
	}
	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles a rule and adds it, replacing any rule with the same ID in place.
func (e *Engine) LoadRule(rule *domain.RecommendationRule) error {
	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.rules {
		if existing.Config.ID == rule.ID {
			e.rules[i] = compiled
			return nil
		}
	}
	e.rules = append(e.rules, compiled)
	return nil
}

// UnloadRule removes the loaded rule with the given ID and reports whether
// one was loaded.
func (e *Engine) UnloadRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.rules {
		if existing.Config.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(rules []*domain.RecommendationRule) error {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if err := e.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded set. On a compile error the
// previous set stays in place.
func (e *Engine) ReloadRules(rules []*domain.RecommendationRule) error {
	compiled := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		c, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()
	return nil
}

// Recommend returns the recommendations triggered by the factors, in factor
// order then rule order, without duplicates. A rule that fails to evaluate is
// logged and skipped.
func (e *Engine) Recommend(ctx context.Context, kind domain.EntityKind, factors []domain.AssessmentFactor) []string {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	if len(rules) == 0 || len(factors) == 0 {
		return nil
	}

	perFactor := make([][]string, len(factors))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i := range factors {
		wg.Add(1)
		go func(idx int, f domain.AssessmentFactor) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			perFactor[idx] = e.evaluateFactor(rules, kind, f)
		}(i, factors[i])
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var out []string
	for _, recs := range perFactor {
		for _, r := range recs {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) evaluateFactor(rules []*CompiledRule, kind domain.EntityKind, f domain.AssessmentFactor) []string {
	activation := map[string]any{
		"category":    f.Category,
		"score":       f.Score,
		"weight":      f.Weight,
		"impact":      string(f.Impact),
		"entity_type": string(kind),
	}

	var out []string
	for _, rule := range rules {
		if rule.Config.Category != "" && rule.Config.Category != f.Category {
			continue
		}

		val, _, err := rule.Program.Eval(activation)
		if err != nil {
			e.logger.Warn("recommendation rule failed",
				"rule_id", rule.Config.ID,
				"category", f.Category,
				"error", err,
			)
			continue
		}
		if fired, ok := val.(types.Bool); ok && bool(fired) {
			out = append(out, rule.Config.Recommendation)
		}
	}
	return out
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// GetLoadedRules returns the loaded rule configurations in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.RecommendationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RecommendationRule, 0, len(e.rules))
	for _, compiled := range e.rules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close drops every loaded rule.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = nil
	return nil
}

func (e *Engine) compileRule(rule *domain.RecommendationRule) (*CompiledRule, error) {
	if rule.ID == "" {
		return nil, errors.New("rule id is required")
	}
	if rule.Recommendation == "" {
		return nil, fmt.Errorf("rule %s: recommendation text is required", rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Config: rule, Program: program}, nil
}
