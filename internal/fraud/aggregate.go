package fraud

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

var severityWeight = map[domain.Severity]float64{
	domain.SeverityCritical: 40,
	domain.SeverityHigh:     25,
	domain.SeverityMedium:   15,
	domain.SeverityLow:      5,
}

// Aggregate score thresholds, shared by the risk level and the action.
const (
	criticalFrom = 90.0
	highFrom     = 75.0
	mediumFrom   = 50.0

	blockConfidence = 0.9
)

// aggregate combines indicators into a score in [0,100] and a confidence.
//
// The score normalises by N×40 (the critical weight) rather than by the sum
// of the weights present, so several lower-severity indicators dilute each
// other instead of accumulating.
func aggregate(indicators []domain.FraudIndicator) (score, confidence float64) {
	n := len(indicators)
	if n == 0 {
		return 0, 0.5
	}

	var weighted, confSum float64
	for _, ind := range indicators {
		weighted += severityWeight[ind.Severity] * ind.Confidence
		confSum += ind.Confidence
	}

	score = 100 * weighted / (float64(n) * severityWeight[domain.SeverityCritical])
	score = math.Round(clamp(score, 0, 100)*100) / 100

	confidence = confSum/float64(n) + math.Min(0.2, 0.05*float64(n))
	confidence = math.Round(clamp(confidence, 0, 1)*1e4) / 1e4
	return score, confidence
}

func levelFor(score float64) domain.FraudRiskLevel {
	switch {
	case score >= criticalFrom:
		return domain.FraudRiskCritical
	case score >= highFrom:
		return domain.FraudRiskHigh
	case score >= mediumFrom:
		return domain.FraudRiskMedium
	default:
		return domain.FraudRiskLow
	}
}

func actionFor(score, confidence float64) domain.FraudAction {
	switch {
	case score >= criticalFrom && confidence >= blockConfidence:
		return domain.ActionBlock
	case score >= highFrom:
		return domain.ActionReject
	case score >= mediumFrom:
		return domain.ActionReview
	default:
		return domain.ActionApprove
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
