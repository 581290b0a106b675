package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var companyWeights = []float64{0.35, 0.30, 0.20, 0.15}

var industryRisk = map[string]float64{
	"technology":    0.8,
	"healthcare":    0.8,
	"finance":       0.7,
	"manufacturing": 0.7,
	"retail":        0.6,
	"agriculture":   0.5,
	"construction":  0.4,
	"hospitality":   0.4,
	"mining":        0.4,
}

var legalFormAdjustment = map[string]float64{
	"corporation":         0.1,
	"llc":                 0.05,
	"sole_proprietorship": -0.1,
}

func companyFactors(c *domain.Company, at time.Time) []domain.AssessmentFactor {
	years := c.YearsInBusiness(at)

	fin, finDesc := financialPerformance(c)
	stab, stabDesc := businessStability(c, years)
	ind, indDesc := sectorRisk(c)
	mgmt, mgmtDesc := managementQuality(c, years)

	return []domain.AssessmentFactor{
		newFactor(domain.FactorFinancialPerformance, companyWeights[0], fin, finDesc),
		newFactor(domain.FactorBusinessStability, companyWeights[1], stab, stabDesc),
		newFactor(domain.FactorIndustryRisk, companyWeights[2], ind, indDesc),
		newFactor(domain.FactorManagementQuality, companyWeights[3], mgmt, mgmtDesc),
	}
}

func financialPerformance(c *domain.Company) (float64, string) {
	var revenue float64
	switch r := c.AnnualRevenue; {
	case r >= 10_000_000:
		revenue = 1.0
	case r >= 1_000_000:
		revenue = 0.8
	case r >= 250_000:
		revenue = 0.6
	case r >= 50_000:
		revenue = 0.4
	default:
		revenue = 0.2
	}

	var staff float64
	switch n := c.EmployeeCount; {
	case n >= 250:
		staff = 1.0
	case n >= 50:
		staff = 0.8
	case n >= 10:
		staff = 0.6
	case n >= 1:
		staff = 0.4
	default:
		staff = 0.2
	}

	return (revenue + staff) / 2, fmt.Sprintf("annual revenue %.2f with %d employees", c.AnnualRevenue, c.EmployeeCount)
}

func businessStability(c *domain.Company, years float64) (float64, string) {
	var score float64
	switch {
	case years >= 10:
		score = 0.9
	case years >= 5:
		score = 0.7
	case years >= 2:
		score = 0.5
	case years >= 1:
		score = 0.3
	default:
		score = 0.1
	}
	score += legalFormAdjustment[strings.ToLower(c.LegalForm)]

	return score, fmt.Sprintf("%.1f years in business", years)
}

func sectorRisk(c *domain.Company) (float64, string) {
	sector := strings.ToLower(strings.TrimSpace(c.Sector))
	score, ok := industryRisk[sector]
	if !ok {
		return 0.5, "unrated sector"
	}
	return score, sector + " sector"
}

func managementQuality(c *domain.Company, years float64) (float64, string) {
	tenure := math.Min(years/10, 1)
	scale := math.Min(float64(c.EmployeeCount)/100, 1)
	return 0.2 + 0.8*tenure*scale, "inferred from operating history and organisation size"
}
