package decision

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
)

// FlagBlacklisted marks a response declined because the entity is blacklisted.
const FlagBlacklisted = "blacklisted"

// FraudCheck is the fraud summary carried in a response.
type FraudCheck struct {
	RiskScore      float64               `json:"risk_score"`
	RiskLevel      domain.FraudRiskLevel `json:"risk_level"`
	Flags          []string              `json:"flags"`
	Recommendation domain.FraudAction    `json:"recommendation"`
}

// Response is the partner-facing result of an assessment.
type Response struct {
	AssessmentID    string                    `json:"assessment_id"`
	EntityID        string                    `json:"entity_id"`
	Score           int                       `json:"score"`
	RiskCategory    domain.RiskLevel          `json:"risk_category"`
	Decision        Decision                  `json:"decision"`
	ApprovedAmount  decimal.Decimal           `json:"approved_amount"`
	InterestRate    float64                   `json:"interest_rate"`
	Confidence      float64                   `json:"confidence"`
	Factors         []domain.AssessmentFactor `json:"factors"`
	Recommendations []string                  `json:"recommendations"`
	FraudCheck      FraudCheck                `json:"fraud_check"`
	ProcessingMs    int64                     `json:"processing_ms"`
	Timestamp       time.Time                 `json:"timestamp"`
}

// Processor assembles responses.
type Processor struct {
	metrics *metrics.Manager
	now     func() time.Time
}

// NewProcessor creates a processor. m may be nil.
func NewProcessor(m *metrics.Manager) *Processor {
	return &Processor{metrics: m, now: time.Now}
}

// Input carries everything one response is built from.
type Input struct {
	Score     *domain.ScoringResult
	Fraud     *domain.FraudAssessment
	Requested decimal.Decimal
	StartTime time.Time
}

// Assemble decides and builds the response for a scored, fraud-checked application.
func (p *Processor) Assemble(ctx context.Context, in *Input) *Response {
	ceiling := decimal.NewFromFloat(in.Score.LoanAmountRange.Max)
	outcome := Decide(in.Score.Score, in.Fraud.RecommendedAction, in.Requested, ceiling)

	resp := &Response{
		AssessmentID:    in.Fraud.ID,
		EntityID:        in.Score.EntityID,
		Score:           in.Score.Score,
		RiskCategory:    in.Score.RiskLevel,
		Decision:        outcome.Decision,
		ApprovedAmount:  outcome.ApprovedAmount,
		Confidence:      in.Score.Confidence,
		Factors:         in.Score.Factors,
		Recommendations: in.Score.Recommendations,
		FraudCheck: FraudCheck{
			RiskScore:      in.Fraud.OverallRiskScore,
			RiskLevel:      in.Fraud.RiskLevel,
			Flags:          flags(in.Fraud),
			Recommendation: in.Fraud.RecommendedAction,
		},
		Timestamp: p.now().UTC(),
	}
	if outcome.Decision != Declined {
		resp.InterestRate = in.Score.SuggestedInterestRate
	}
	resp.ProcessingMs = p.elapsed(in.StartTime)

	p.metrics.RecordDecision(string(outcome.Decision))
	return resp
}

// Blacklisted builds the response for an entity barred from assessment.
// Nothing is scored.
func (p *Processor) Blacklisted(ctx context.Context, entityID string, start time.Time) *Response {
	p.metrics.RecordDecision(string(Declined))
	return &Response{
		EntityID:        entityID,
		Decision:        Declined,
		ApprovedAmount:  decimal.Zero,
		Factors:         []domain.AssessmentFactor{},
		Recommendations: []string{},
		FraudCheck: FraudCheck{
			RiskScore:      100,
			RiskLevel:      domain.FraudRiskCritical,
			Flags:          []string{FlagBlacklisted},
			Recommendation: domain.ActionBlock,
		},
		ProcessingMs: p.elapsed(start),
		Timestamp:    p.now().UTC(),
	}
}

func (p *Processor) elapsed(start time.Time) int64 {
	if start.IsZero() {
		return 0
	}
	return p.now().Sub(start).Milliseconds()
}

// flags lists indicator descriptions in detection order without repeats.
func flags(a *domain.FraudAssessment) []string {
	out := make([]string, 0, len(a.Indicators))
	seen := make(map[string]bool, len(a.Indicators))
	for _, ind := range a.Indicators {
		if seen[ind.Description] {
			continue
		}
		seen[ind.Description] = true
		out = append(out, ind.Description)
	}
	return out
}
