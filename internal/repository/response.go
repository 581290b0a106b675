package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// SaveBlacklistEntry appends a blacklist row. Expiry is enforced on read.
func (r *SQLRepository) SaveBlacklistEntry(ctx context.Context, entry *domain.BlacklistEntry) error {
	if entry.ID == "" || entry.EntityID == "" {
		return fmt.Errorf("%w: blacklist id and entity id are required", ErrInvalidInput)
	}

	query := `INSERT INTO blacklist (id, entity_id, reason, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.EntityID, entry.Reason, entry.CreatedAt.UTC(), entry.ExpiresAt.UTC(),
	)
	return err
}

// IsBlacklisted reports whether an unexpired blacklist row covers the entity at the given instant.
func (r *SQLRepository) IsBlacklisted(ctx context.Context, entityID string, at time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM blacklist WHERE entity_id = ? AND expires_at > ?`
	n, err := r.count(ctx, query, entityID, at.UTC())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveAlert appends an analyst alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == "" || alert.EntityID == "" {
		return fmt.Errorf("%w: alert id and entity id are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO fraud_alerts (id, entity_id, assessment_id, risk_level, risk_score, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.EntityID, alert.AssessmentID, string(alert.RiskLevel), alert.RiskScore, alert.Message,
		alert.CreatedAt.UTC(),
	)
	return err
}

// SaveCase opens an investigation case.
func (r *SQLRepository) SaveCase(ctx context.Context, c *domain.InvestigationCase) error {
	if c.ID == "" || c.EntityID == "" {
		return fmt.Errorf("%w: case id and entity id are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO investigation_cases (id, entity_id, assessment_id, priority, status, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.EntityID, c.AssessmentID, c.Priority, c.Status, c.Summary, c.CreatedAt.UTC(),
	)
	return err
}

// ListCases returns the cases of an entity, newest first.
func (r *SQLRepository) ListCases(ctx context.Context, entityID string) ([]*domain.InvestigationCase, error) {
	query := `
		SELECT id, entity_id, assessment_id, priority, status, summary, created_at
		FROM investigation_cases
		WHERE entity_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.InvestigationCase
	for rows.Next() {
		var c domain.InvestigationCase
		if err := rows.Scan(&c.ID, &c.EntityID, &c.AssessmentID, &c.Priority, &c.Status, &c.Summary, &c.CreatedAt); err != nil {
			return nil, err
		}
		cases = append(cases, &c)
	}
	return cases, rows.Err()
}
