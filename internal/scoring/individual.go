package scoring

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	individualWeights        = []float64{0.35, 0.30, 0.15, 0.20}
	individualWeightsWithAlt = []float64{0.30, 0.25, 0.15, 0.15, 0.15}
)

var employmentBase = map[domain.EmploymentStatus]float64{
	domain.EmploymentEmployed:     0.7,
	domain.EmploymentSelfEmployed: 0.6,
	domain.EmploymentRetired:      0.6,
	domain.EmploymentStudent:      0.4,
	domain.EmploymentUnemployed:   0.2,
}

var altSourceWeights = map[domain.AltDataSource]float64{
	domain.AltSourceTelecom:          0.30,
	domain.AltSourceUtilities:        0.25,
	domain.AltSourceDigitalFootprint: 0.20,
	domain.AltSourceSocialMedia:      0.15,
	domain.AltSourceEcommerce:        0.10,
}

const maxRecentInquiries = 6

func individualFactors(ind *domain.Individual, bureau *domain.CreditBureauData, alt []domain.AlternativeDataPoint, at time.Time) []domain.AssessmentFactor {
	weights := individualWeights
	if len(alt) > 0 {
		weights = individualWeightsWithAlt
	}

	payment, paymentDesc := paymentHistory(bureau, at)
	util, utilDesc := creditUtilization(bureau, at)
	emp, empDesc := employmentStability(ind)
	dti, dtiDesc := debtToIncome(ind, bureau)

	factors := []domain.AssessmentFactor{
		newFactor(domain.FactorPaymentHistory, weights[0], payment, paymentDesc),
		newFactor(domain.FactorCreditUtilization, weights[1], util, utilDesc),
		newFactor(domain.FactorEmploymentStability, weights[2], emp, empDesc),
		newFactor(domain.FactorDebtToIncome, weights[3], dti, dtiDesc),
	}
	if len(alt) > 0 {
		score, desc := alternativeData(alt)
		factors = append(factors, newFactor(domain.FactorAlternativeData, weights[4], score, desc))
	}
	return factors
}

// recencyWeight discounts older payments: full weight inside a year,
// 0.6 in the second year, 0.3 beyond.
func recencyWeight(paid, at time.Time) float64 {
	switch {
	case paid.After(at.AddDate(-1, 0, 0)):
		return 1.0
	case paid.After(at.AddDate(-2, 0, 0)):
		return 0.6
	default:
		return 0.3
	}
}

func paymentHistory(bureau *domain.CreditBureauData, at time.Time) (float64, string) {
	if bureau == nil || len(bureau.PaymentHistory) == 0 {
		return 0.5, "No payment history available"
	}

	var onTime, total float64
	late, severe := 0, 0
	for _, p := range bureau.PaymentHistory {
		w := recencyWeight(p.Date, at)
		total += w
		switch {
		case p.DaysLate >= domain.SeverelyLateThresholdDays:
			severe++
		case p.DaysLate >= domain.LateThresholdDays:
			late++
		default:
			onTime += w
		}
	}

	score := onTime/total -
		0.02*float64(late) -
		0.05*float64(severe) -
		0.1*float64(len(bureau.PublicRecords))

	return score, fmt.Sprintf("%d payments, %d late, %d severely late, %d public records",
		len(bureau.PaymentHistory), late, severe, len(bureau.PublicRecords))
}

func creditUtilization(bureau *domain.CreditBureauData, at time.Time) (float64, string) {
	if bureau == nil {
		return 0.5, "No credit accounts available"
	}

	var balance, limit float64
	for _, acc := range bureau.CreditAccounts {
		if acc.CreditLimit <= 0 {
			continue
		}
		balance += acc.Balance
		limit += acc.CreditLimit
	}
	if limit == 0 {
		return 0.5, "No credit accounts with a limit"
	}

	ratio := balance / limit
	var score float64
	switch {
	case ratio <= 0.10:
		score = 1.0
	case ratio <= 0.30:
		score = 0.8
	case ratio <= 0.50:
		score = 0.6
	case ratio <= 0.70:
		score = 0.4
	default:
		score = 0.2
	}

	recent := 0
	yearAgo := at.AddDate(-1, 0, 0)
	for _, q := range bureau.Inquiries {
		if q.InquiredAt.After(yearAgo) {
			recent++
		}
	}
	if recent > maxRecentInquiries {
		score -= 0.1
	}

	return score, fmt.Sprintf("%.0f%% utilization, %d inquiries in the last year", ratio*100, recent)
}

func employmentStability(ind *domain.Individual) (float64, string) {
	score, ok := employmentBase[ind.EmploymentStatus]
	if !ok {
		score = employmentBase[domain.EmploymentUnemployed]
	}

	switch income := ind.MonthlyIncome; {
	case income >= 10000:
		score += 0.3
	case income >= 5000:
		score += 0.2
	case income >= 2000:
		score += 0.1
	}

	return score, fmt.Sprintf("%s with monthly income %.2f", statusLabel(ind.EmploymentStatus), ind.MonthlyIncome)
}

func statusLabel(s domain.EmploymentStatus) string {
	if s == "" {
		return "unknown employment"
	}
	return string(s)
}

func debtToIncome(ind *domain.Individual, bureau *domain.CreditBureauData) (float64, string) {
	income := ind.MonthlyIncome
	if income <= 0 {
		return 0.2, "No declared income"
	}

	debt := 0.3 * income
	source := "estimated"
	if bureau != nil && len(bureau.CreditAccounts) > 0 {
		debt = 0
		for _, acc := range bureau.CreditAccounts {
			debt += acc.MonthlyPayment
		}
		source = "reported"
	}

	ratio := debt / income
	var score float64
	switch {
	case ratio <= 0.20:
		score = 1.0
	case ratio <= 0.36:
		score = 0.8
	case ratio <= 0.43:
		score = 0.6
	case ratio <= 0.50:
		score = 0.4
	default:
		score = 0.2
	}
	return score, fmt.Sprintf("%.0f%% debt-to-income (%s)", ratio*100, source)
}

// alternativeData blends source scores by source weight and confidence, then
// pulls the blend toward neutral in proportion to how unsure the sources are.
func alternativeData(points []domain.AlternativeDataPoint) (float64, string) {
	var num, den, conf float64
	used := 0
	for _, p := range points {
		w, ok := altSourceWeights[p.Source]
		if !ok {
			continue
		}
		wc := w * p.Confidence
		num += wc * p.Score
		den += wc
		conf += p.Confidence
		used++
	}
	if used == 0 || den == 0 {
		return 0.5, "No usable alternative data"
	}

	blend := num / den
	avgConf := conf / float64(used)
	return 0.5 + (blend-0.5)*avgConf, fmt.Sprintf("%d alternative sources, average confidence %.2f", used, avgConf)
}
