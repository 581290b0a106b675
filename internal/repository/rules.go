package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// SaveRecommendationRule creates or replaces a recommendation rule.
func (r *SQLRepository) SaveRecommendationRule(ctx context.Context, rule *domain.RecommendationRule) error {
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule id and expression are required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	query := `
		INSERT INTO recommendation_rules (
			id, name, category, expression, recommendation, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			expression = excluded.expression,
			recommendation = excluded.recommendation,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Category, rule.Expression, rule.Recommendation,
		boolToInt(rule.Enabled), rule.CreatedAt.UTC(), now,
	)
	return err
}

// ListRecommendationRules returns every stored rule in creation order.
func (r *SQLRepository) ListRecommendationRules(ctx context.Context) ([]*domain.RecommendationRule, error) {
	query := `
		SELECT id, name, category, expression, recommendation, enabled, created_at
		FROM recommendation_rules
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RecommendationRule
	for rows.Next() {
		var rule domain.RecommendationRule
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Category, &rule.Expression, &rule.Recommendation, &enabled, &rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}
