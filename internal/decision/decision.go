// Package decision combines a credit score and a fraud assessment into a
// loan decision and assembles the partner-facing response.
package decision

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Decision is the loan outcome.
type Decision string

const (
	Approved    Decision = "approved"
	Conditional Decision = "conditional"
	Declined    Decision = "declined"
)

// Score thresholds.
const (
	ApproveFrom     = 650
	ConditionalFrom = 550
)

// conditionalShare is the fraction of the eligible amount offered on a
// conditional approval.
var conditionalShare = decimal.RequireFromString("0.7")

// Outcome is a decision with the amount granted.
type Outcome struct {
	Decision       Decision        `json:"decision"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
}

// Decide maps a score and a fraud action to a loan outcome. The amount is
// capped by ceiling, the top of the score's loan range.
//
//   - score >= 650 and the action is neither reject nor block: approved in full
//   - score >= 550 and the action is review: 70% of the eligible amount, floored
//   - otherwise: declined
func Decide(score int, action domain.FraudAction, requested, ceiling decimal.Decimal) Outcome {
	eligible := decimal.Max(decimal.Zero, decimal.Min(requested, ceiling))

	switch {
	case score >= ApproveFrom && action != domain.ActionReject && action != domain.ActionBlock:
		return Outcome{Decision: Approved, ApprovedAmount: eligible}
	case score >= ConditionalFrom && action == domain.ActionReview:
		return Outcome{Decision: Conditional, ApprovedAmount: eligible.Mul(conditionalShare).Floor()}
	default:
		return Outcome{Decision: Declined, ApprovedAmount: decimal.Zero}
	}
}
