package scoring

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// band is one row of the risk table. Every score-derived output (level,
// interest rate, loan multiples, advice) is read from the same row.
type band struct {
	level domain.RiskLevel
	floor int
	rate  float64

	// Loan range maxima as multiples of monthly income, annual revenue and
	// total assets respectively.
	individualMultiple  float64
	companyMultiple     float64
	institutionMultiple float64

	advice string
}

var riskTable = []band{
	{domain.RiskVeryLow, 750, 8.5, 12, 0.5, 0.05, "Eligible for the most favourable terms."},
	{domain.RiskLow, 650, 12, 9, 0.35, 0.03, "Eligible for standard terms."},
	{domain.RiskMedium, 550, 16, 6, 0.25, 0.02, "Eligible for reduced amounts; collateral may be required."},
	{domain.RiskHigh, 450, 22, 3, 0.1, 0.01, "Credit should be limited and closely monitored."},
	{domain.RiskVeryHigh, domain.MinScore, 28, 1, 0.05, 0.005, "Credit is not advised until the weak factors improve."},
}

func bandFor(score int) band {
	for _, b := range riskTable {
		if score >= b.floor {
			return b
		}
	}
	return riskTable[len(riskTable)-1]
}

// RiskLevelFor maps a score to its risk level.
func RiskLevelFor(score int) domain.RiskLevel {
	return bandFor(score).level
}

// InterestRateFor returns the suggested annual rate, in percent, for a score.
func InterestRateFor(score int) float64 {
	return bandFor(score).rate
}

// Factor impact thresholds.
const (
	positiveImpactFrom  = 0.7
	negativeImpactBelow = 0.4
)

func impactOf(score float64) domain.Impact {
	switch {
	case score >= positiveImpactFrom:
		return domain.ImpactPositive
	case score < negativeImpactBelow:
		return domain.ImpactNegative
	default:
		return domain.ImpactNeutral
	}
}

func newFactor(category string, weight, score float64, description string) domain.AssessmentFactor {
	score = round4(clamp(score, 0, 1))
	return domain.AssessmentFactor{
		Category:    category,
		Weight:      weight,
		Score:       score,
		Impact:      impactOf(score),
		Description: description,
	}
}

// composite folds weighted factors onto [MinScore, MaxScore]. A perfect
// profile lands on MaxScore; scale sets how far below it a weak one falls.
func composite(factors []domain.AssessmentFactor, scale float64) int {
	base := float64(domain.MaxScore) - scale
	sum := 0.0
	for _, f := range factors {
		sum += f.Score * f.Weight * scale
	}
	score := int(math.Round(base + sum))
	return int(clamp(float64(score), domain.MinScore, domain.MaxScore))
}

// probabilityOfDefault scales linearly from the score and shifts by the
// balance of negative and positive factors.
func probabilityOfDefault(score int, factors []domain.AssessmentFactor) float64 {
	pd := float64(domain.MaxScore-score) / 1000
	for _, f := range factors {
		switch f.Impact {
		case domain.ImpactNegative:
			pd += 0.02
		case domain.ImpactPositive:
			pd -= 0.01
		}
	}
	return round4(clamp(pd, 0, 1))
}

func confidence(hasBureau bool, altCount int, factors []domain.AssessmentFactor) float64 {
	c := 0.5
	if hasBureau {
		c += 0.25
	}
	c += 0.1 * math.Min(1, float64(altCount)/3)
	if len(factors) > 0 {
		sum := 0.0
		for _, f := range factors {
			sum += f.Score
		}
		c += 0.15 * (sum/float64(len(factors)) - 0.5)
	}
	return round4(clamp(c, 0.3, 1))
}

func loanRange(entity domain.Entity, b band) domain.LoanRange {
	var ceiling float64
	switch e := entity.(type) {
	case *domain.Individual:
		ceiling = e.MonthlyIncome * b.individualMultiple
	case *domain.Company:
		ceiling = e.AnnualRevenue * b.companyMultiple
	case *domain.Institution:
		ceiling = e.TotalAssets * b.institutionMultiple
	default:
		domain.UnsupportedEntity(entity)
	}
	ceiling = math.Max(0, roundCents(ceiling))
	return domain.LoanRange{Min: roundCents(ceiling * 0.1), Max: ceiling}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
