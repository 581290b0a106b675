package domain

import "time"

// Score bounds.
const (
	MinScore = 350
	MaxScore = 850
)

// RiskLevel is the credit risk band for a score.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "VERY_LOW"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// Impact is the direction a factor pushes the score.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// AssessmentFactor is one weighted, explainable input to a score.
type AssessmentFactor struct {
	Category    string  `json:"category"`
	Weight      float64 `json:"weight"`
	Score       float64 `json:"score"`
	Impact      Impact  `json:"impact"`
	Description string  `json:"description"`
}

// LoanRange is the amount band offered for a score.
type LoanRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ScoringResult is the output of one CalculateScore call.
type ScoringResult struct {
	EntityID              string             `json:"entity_id"`
	EntityType            EntityKind         `json:"entity_type"`
	Score                 int                `json:"score"`
	RiskLevel             RiskLevel          `json:"risk_level"`
	ProbabilityOfDefault  float64            `json:"probability_of_default"`
	Factors               []AssessmentFactor `json:"factors"`
	Recommendations       []string           `json:"recommendations"`
	LoanAmountRange       LoanRange          `json:"loan_amount_range"`
	SuggestedInterestRate float64            `json:"suggested_interest_rate"`
	Confidence            float64            `json:"confidence"`
	ProcessingTime        time.Duration      `json:"processing_time"`
	AuditTrail            []AuditEntry       `json:"audit_trail"`
}

// Audit actions recorded on a per-call trail.
const (
	AuditCacheHit            = "CACHE_HIT"
	AuditScoreCalculated     = "SCORE_CALCULATED"
	AuditScoreBudgetExceeded = "SCORE_BUDGET_EXCEEDED"
	AuditError               = "ERROR"
)

// AuditEntry is one step of a per-call audit trail.
type AuditEntry struct {
	EntityID  string         `json:"entity_id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Component string         `json:"component"`
	Data      map[string]any `json:"data,omitempty"`
}

// Factor categories.
const (
	FactorPaymentHistory       = "payment_history"
	FactorCreditUtilization    = "credit_utilization"
	FactorEmploymentStability  = "employment_stability"
	FactorDebtToIncome         = "debt_to_income"
	FactorAlternativeData      = "alternative_data"
	FactorFinancialPerformance = "financial_performance"
	FactorBusinessStability    = "business_stability"
	FactorIndustryRisk         = "industry_risk"
	FactorManagementQuality    = "management_quality"
	FactorCapitalAdequacy      = "capital_adequacy"
	FactorGovernance           = "governance"
	FactorAssetQuality         = "asset_quality"
)
