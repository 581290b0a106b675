package scoring

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

var institutionWeights = []float64{0.40, 0.35, 0.25}

// Regulatory minimum capital adequacy ratio, in percent.
const minimumCAR = 8.0

var recognisedRegulators = map[string]bool{
	"central_bank":                    true,
	"banking_commission":              true,
	"financial_services_authority":    true,
	"prudential_regulation_authority": true,
}

var institutionTypeAdjustment = map[string]float64{
	"bank":         0.1,
	"credit_union": 0.05,
	"microfinance": -0.05,
}

var ratingScore = map[byte]float64{
	'A': 1.0,
	'B': 0.8,
	'C': 0.6,
	'D': 0.4,
	'E': 0.2,
}

func institutionFactors(inst *domain.Institution) []domain.AssessmentFactor {
	car, carDesc := capitalAdequacy(inst)
	gov, govDesc := governance(inst)
	aq, aqDesc := assetQuality(inst)

	return []domain.AssessmentFactor{
		newFactor(domain.FactorCapitalAdequacy, institutionWeights[0], car, carDesc),
		newFactor(domain.FactorGovernance, institutionWeights[1], gov, govDesc),
		newFactor(domain.FactorAssetQuality, institutionWeights[2], aq, aqDesc),
	}
}

func capitalAdequacy(inst *domain.Institution) (float64, string) {
	car := inst.CapitalAdequacyRatio
	var score float64
	switch {
	case car >= 16:
		score = 1.0
	case car >= 12:
		score = 0.8
	case car >= 10:
		score = 0.6
	case car >= minimumCAR:
		score = 0.4
	default:
		score = 0.1
	}

	desc := fmt.Sprintf("capital adequacy ratio %.1f%%", car)
	if car < minimumCAR {
		desc += " below regulatory minimum"
	}
	return score, desc
}

func governance(inst *domain.Institution) (float64, string) {
	score := 0.5
	regulator := strings.ToLower(strings.TrimSpace(inst.Regulator))
	switch {
	case recognisedRegulators[regulator]:
		score += 0.3
	case regulator != "":
		score += 0.1
	}
	score += institutionTypeAdjustment[strings.ToLower(inst.InstitutionType)]

	if regulator == "" {
		return score, "no supervising regulator declared"
	}
	return score, "supervised by " + regulator
}

func assetQuality(inst *domain.Institution) (float64, string) {
	rating := strings.ToUpper(strings.TrimSpace(inst.RiskRating))
	if rating == "" {
		return 0.5, "unrated"
	}
	score, ok := ratingScore[rating[0]]
	if !ok {
		return 0.5, "unrecognised rating " + rating
	}
	return score, "rated " + rating
}
