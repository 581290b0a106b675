package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestRiskLevelFor(t *testing.T) {
	cases := map[int]domain.RiskLevel{
		850: domain.RiskVeryLow,
		750: domain.RiskVeryLow,
		749: domain.RiskLow,
		650: domain.RiskLow,
		649: domain.RiskMedium,
		550: domain.RiskMedium,
		549: domain.RiskHigh,
		450: domain.RiskHigh,
		449: domain.RiskVeryHigh,
		350: domain.RiskVeryHigh,
	}
	for score, want := range cases {
		assert.Equal(t, want, RiskLevelFor(score), "score %d", score)
	}
}

func TestInterestRateFor(t *testing.T) {
	assert.Equal(t, 8.5, InterestRateFor(800))
	assert.Equal(t, 16.0, InterestRateFor(600))
	assert.Equal(t, 28.0, InterestRateFor(400))
}

func TestImpactOf(t *testing.T) {
	assert.Equal(t, domain.ImpactPositive, impactOf(0.7))
	assert.Equal(t, domain.ImpactNeutral, impactOf(0.69))
	assert.Equal(t, domain.ImpactNeutral, impactOf(0.4))
	assert.Equal(t, domain.ImpactNegative, impactOf(0.39))
}

func TestCompositeClamps(t *testing.T) {
	over := []domain.AssessmentFactor{{Score: 1, Weight: 2}}
	assert.Equal(t, domain.MaxScore, composite(over, standardScale))

	none := []domain.AssessmentFactor{{Score: 0, Weight: 1}}
	assert.Equal(t, 500, composite(none, standardScale))
	assert.Equal(t, 600, composite(none, institutionScale))
}

func TestLoanRange(t *testing.T) {
	ind := &domain.Individual{MonthlyIncome: 4000}
	assert.Equal(t, domain.LoanRange{Min: 400, Max: 4000}, loanRange(ind, bandFor(400)))

	co := &domain.Company{AnnualRevenue: 1_000_000}
	assert.Equal(t, domain.LoanRange{Min: 25000, Max: 250000}, loanRange(co, bandFor(600)))
}

func TestPaymentHistoryMonotonic(t *testing.T) {
	bureau := &domain.CreditBureauData{
		PaymentHistory: []domain.PaymentRecord{
			{Date: testNow.AddDate(0, -1, 0), DaysLate: 0},
			{Date: testNow.AddDate(0, -2, 0), DaysLate: 30},
			{Date: testNow.AddDate(0, -20, 0), DaysLate: 90},
		},
	}
	prev, _ := paymentHistory(bureau, testNow)

	for i := 0; i < 10; i++ {
		bureau.PaymentHistory = append(bureau.PaymentHistory, domain.PaymentRecord{
			Date: testNow.AddDate(0, -3-i, 0),
		})
		next, _ := paymentHistory(bureau, testNow)
		assert.GreaterOrEqual(t, next, prev)
		prev = next
	}
}

func TestPaymentHistoryPenalties(t *testing.T) {
	bureau := &domain.CreditBureauData{
		PaymentHistory: []domain.PaymentRecord{
			{Date: testNow.AddDate(0, -1, 0)},
			{Date: testNow.AddDate(0, -2, 0)},
			{Date: testNow.AddDate(0, -3, 0), DaysLate: 15},
			{Date: testNow.AddDate(0, -4, 0), DaysLate: 75},
		},
		PublicRecords: []domain.PublicRecord{{RecordType: "judgment"}},
	}
	score, _ := paymentHistory(bureau, testNow)
	// 2 of 4 on time, one late, one severely late, one public record.
	assert.InDelta(t, 0.5-0.02-0.05-0.1, score, 1e-9)
}

func TestRecencyWeight(t *testing.T) {
	assert.Equal(t, 1.0, recencyWeight(testNow.AddDate(0, -6, 0), testNow))
	assert.Equal(t, 0.6, recencyWeight(testNow.AddDate(0, -18, 0), testNow))
	assert.Equal(t, 0.3, recencyWeight(testNow.AddDate(-3, 0, 0), testNow))
}

func TestCreditUtilizationInquiryPenalty(t *testing.T) {
	bureau := &domain.CreditBureauData{
		CreditAccounts: []domain.CreditAccount{{Balance: 2500, CreditLimit: 10000}},
	}
	base, _ := creditUtilization(bureau, testNow)
	assert.Equal(t, 0.8, base)

	for i := 0; i < 7; i++ {
		bureau.Inquiries = append(bureau.Inquiries, domain.CreditInquiry{
			InquiredAt: testNow.Add(-time.Duration(i+1) * 24 * time.Hour),
			Kind:       "hard",
		})
	}
	penalised, _ := creditUtilization(bureau, testNow)
	assert.InDelta(t, 0.7, penalised, 1e-9)
}

func TestDebtToIncome(t *testing.T) {
	ind := &domain.Individual{MonthlyIncome: 5000}

	estimated, _ := debtToIncome(ind, nil)
	assert.Equal(t, 0.8, estimated)

	heavy := &domain.CreditBureauData{
		CreditAccounts: []domain.CreditAccount{{MonthlyPayment: 3000}},
	}
	reported, _ := debtToIncome(ind, heavy)
	assert.Equal(t, 0.2, reported)

	zero, _ := debtToIncome(&domain.Individual{}, nil)
	assert.Equal(t, 0.2, zero)
}
