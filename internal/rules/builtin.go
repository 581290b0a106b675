package rules

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// WeakFactorThreshold is the factor score below which advice is generated.
const WeakFactorThreshold = 0.5

var defaultAdvice = []struct {
	category string
	text     string
}{
	{domain.FactorPaymentHistory, "Make every scheduled payment on time; recent late payments weigh most heavily."},
	{domain.FactorCreditUtilization, "Reduce revolving balances below 30% of available credit limits."},
	{domain.FactorEmploymentStability, "Provide proof of stable employment or additional verified income."},
	{domain.FactorDebtToIncome, "Lower monthly debt obligations relative to income before taking on new credit."},
	{domain.FactorAlternativeData, "Keep telecom and utility accounts current to strengthen alternative credit history."},
	{domain.FactorFinancialPerformance, "Submit audited financial statements that evidence revenue growth."},
	{domain.FactorBusinessStability, "Document operating history and consider a more durable legal structure."},
	{domain.FactorIndustryRisk, "Offer collateral or guarantees to offset sector risk."},
	{domain.FactorManagementQuality, "Document management experience and governance practices."},
	{domain.FactorCapitalAdequacy, "Raise regulatory capital well above the 8% minimum."},
	{domain.FactorGovernance, "Strengthen board oversight and regulatory reporting."},
	{domain.FactorAssetQuality, "Improve loan book quality to lift the external risk rating."},
}

// DefaultRules returns one rule per factor category that fires when the
// factor scores below WeakFactorThreshold.
func DefaultRules() []*domain.RecommendationRule {
	rules := make([]*domain.RecommendationRule, 0, len(defaultAdvice))
	for _, a := range defaultAdvice {
		rules = append(rules, &domain.RecommendationRule{
			ID:             "builtin-" + a.category,
			Name:           "Weak " + a.category,
			Category:       a.category,
			Expression:     fmt.Sprintf("score < %v", WeakFactorThreshold),
			Recommendation: a.text,
			Enabled:        true,
		})
	}
	return rules
}

// WithDefaults returns the built-in rules followed by the stored ones.
// A stored rule replaces the built-in rule that shares its ID.
func WithDefaults(stored []*domain.RecommendationRule) []*domain.RecommendationRule {
	out := DefaultRules()
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range stored {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
