package decision

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDecide(t *testing.T) {
	cases := []struct {
		name      string
		score     int
		action    domain.FraudAction
		requested string
		max       string
		decision  Decision
		amount    string
	}{
		{"ApprovedInFull", 720, domain.ActionApprove, "10000", "50000", Approved, "10000"},
		{"ApprovedCappedAtMax", 720, domain.ActionApprove, "80000", "50000", Approved, "50000"},
		{"ApprovedUnderReview", 650, domain.ActionReview, "10000", "50000", Approved, "10000"},
		{"RejectOverridesScore", 800, domain.ActionReject, "10000", "50000", Declined, "0"},
		{"BlockOverridesScore", 800, domain.ActionBlock, "10000", "50000", Declined, "0"},
		{"ConditionalFloored", 600, domain.ActionReview, "10001", "50000", Conditional, "7000"},
		{"ConditionalCapped", 560, domain.ActionReview, "90000", "30000", Conditional, "21000"},
		{"MidScoreApproveActionDeclined", 600, domain.ActionApprove, "10000", "50000", Declined, "0"},
		{"LowScoreDeclined", 549, domain.ActionReview, "10000", "50000", Declined, "0"},
		{"NegativeRequestClampedToZero", 700, domain.ActionApprove, "-5", "50000", Approved, "0"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Decide(c.score, c.action, d(c.requested), d(c.max))
			assert.Equal(t, c.decision, out.Decision)
			assert.True(t, d(c.amount).Equal(out.ApprovedAmount), "want %s got %s", c.amount, out.ApprovedAmount)
		})
	}
}

func TestAssemble(t *testing.T) {
	p := NewProcessor(nil)
	p.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	score := &domain.ScoringResult{
		EntityID:              "ind-1",
		Score:                 610,
		RiskLevel:             domain.RiskMedium,
		Confidence:            0.72,
		SuggestedInterestRate: 16,
		LoanAmountRange:       domain.LoanRange{Min: 3600, Max: 36000},
		Factors:               []domain.AssessmentFactor{{Category: domain.FactorDebtToIncome, Score: 0.4}},
		Recommendations:       []string{"Lower debt"},
	}
	fraud := &domain.FraudAssessment{
		ID:                "fa-1",
		OverallRiskScore:  56.25,
		RiskLevel:         domain.FraudRiskMedium,
		RecommendedAction: domain.ActionReview,
		Indicators: []domain.FraudIndicator{
			{Description: "Automated client detected"},
			{Description: "Automated client detected"},
			{Description: "Connection through a VPN or proxy"},
		},
	}

	resp := p.Assemble(context.Background(), &Input{
		Score:     score,
		Fraud:     fraud,
		Requested: d("20000"),
		StartTime: p.now().Add(-40 * time.Millisecond),
	})

	assert.Equal(t, "fa-1", resp.AssessmentID)
	assert.Equal(t, Conditional, resp.Decision)
	assert.True(t, d("14000").Equal(resp.ApprovedAmount))
	assert.Equal(t, 16.0, resp.InterestRate)
	assert.Equal(t, int64(40), resp.ProcessingMs)
	assert.Equal(t, []string{"Automated client detected", "Connection through a VPN or proxy"}, resp.FraudCheck.Flags)
	assert.Equal(t, domain.ActionReview, resp.FraudCheck.Recommendation)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"approved_amount":"14000"`)
	assert.Contains(t, string(body), `"risk_category":"MEDIUM"`)
}

func TestAssembleDeclinedHasNoRate(t *testing.T) {
	p := NewProcessor(nil)
	resp := p.Assemble(context.Background(), &Input{
		Score:     &domain.ScoringResult{Score: 500, SuggestedInterestRate: 22, LoanAmountRange: domain.LoanRange{Max: 1000}},
		Fraud:     &domain.FraudAssessment{RecommendedAction: domain.ActionApprove},
		Requested: d("500"),
	})
	assert.Equal(t, Declined, resp.Decision)
	assert.Zero(t, resp.InterestRate)
	assert.NotNil(t, resp.FraudCheck.Flags)
}

func TestBlacklisted(t *testing.T) {
	p := NewProcessor(nil)
	resp := p.Blacklisted(context.Background(), "ind-9", time.Time{})

	assert.Equal(t, Declined, resp.Decision)
	assert.True(t, resp.ApprovedAmount.IsZero())
	assert.Equal(t, []string{FlagBlacklisted}, resp.FraudCheck.Flags)
	assert.Equal(t, domain.ActionBlock, resp.FraudCheck.Recommendation)
}
