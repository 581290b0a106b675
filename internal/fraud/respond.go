package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// CaseStatusOpen is the status of a newly opened investigation case.
const CaseStatusOpen = "open"

// respond dispatches response messages for high and critical assessments.
// Each message is published on its own goroutine; Wait drains them.
func (e *Engine) respond(ctx context.Context, a *domain.FraudAssessment) {
	if e.bus == nil {
		return
	}
	if a.RiskLevel != domain.FraudRiskHigh && a.RiskLevel != domain.FraudRiskCritical {
		return
	}

	ctx = context.WithoutCancel(ctx)
	summary := summarize(a)

	if a.RiskLevel == domain.FraudRiskCritical && a.Confidence >= blockConfidence {
		e.dispatch(ctx, domain.TopicBlacklist, &domain.BlacklistEntry{
			ID:        uuid.New().String(),
			EntityID:  a.EntityID,
			Reason:    summary,
			CreatedAt: a.AssessedAt,
			ExpiresAt: a.AssessedAt.Add(e.cfg.BlacklistTTL),
		})
	}

	e.dispatch(ctx, domain.TopicAlert, &domain.Alert{
		ID:           uuid.New().String(),
		EntityID:     a.EntityID,
		AssessmentID: a.ID,
		RiskLevel:    a.RiskLevel,
		RiskScore:    a.OverallRiskScore,
		Message:      fmt.Sprintf("%s fraud risk (%.1f): %s", a.RiskLevel, a.OverallRiskScore, summary),
		CreatedAt:    a.AssessedAt,
	})

	priority := domain.CasePriorityMedium
	if a.RiskLevel == domain.FraudRiskCritical {
		priority = domain.CasePriorityHigh
	}
	e.dispatch(ctx, domain.TopicCase, &domain.InvestigationCase{
		ID:           uuid.New().String(),
		EntityID:     a.EntityID,
		AssessmentID: a.ID,
		Priority:     priority,
		Status:       CaseStatusOpen,
		Summary:      summary,
		CreatedAt:    a.AssessedAt,
	})
}

func (e *Engine) dispatch(ctx context.Context, topic string, msg any) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("fraud response panicked", "topic", topic, "panic", fmt.Sprint(r))
				e.metrics.RecordSideEffectFailure(topic)
			}
		}()

		payload, err := json.Marshal(msg)
		if err == nil {
			err = e.bus.Publish(ctx, topic, payload)
		}
		if err != nil {
			e.logger.Warn("failed to publish fraud response", "topic", topic, "error", err)
			e.metrics.RecordSideEffectFailure(topic)
		}
	}()
}

func summarize(a *domain.FraudAssessment) string {
	if len(a.Indicators) == 0 {
		return "no indicators"
	}
	parts := make([]string, 0, len(a.Indicators))
	for _, ind := range a.Indicators {
		parts = append(parts, ind.Description)
	}
	return strings.Join(parts, "; ")
}
