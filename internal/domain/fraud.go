package domain

import "time"

// Severity of a fraud indicator.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IndicatorType groups indicators by the signal that produced them.
type IndicatorType string

const (
	IndicatorVelocity    IndicatorType = "velocity"
	IndicatorDevice      IndicatorType = "device"
	IndicatorGeolocation IndicatorType = "geolocation"
	IndicatorBehavioral  IndicatorType = "behavioral"
	IndicatorIdentity    IndicatorType = "identity"
	IndicatorFinancial   IndicatorType = "financial"
)

// IndicatorStatus tracks investigation of an indicator.
type IndicatorStatus string

const (
	IndicatorActive        IndicatorStatus = "active"
	IndicatorResolved      IndicatorStatus = "resolved"
	IndicatorFalsePositive IndicatorStatus = "false_positive"
)

// FraudIndicator is one evidenced fraud signal.
type FraudIndicator struct {
	ID            string          `json:"id"`
	EntityID      string          `json:"entity_id"`
	IndicatorType IndicatorType   `json:"indicator_type"`
	Severity      Severity        `json:"severity"`
	Description   string          `json:"description"`
	Confidence    float64         `json:"confidence"`
	Evidence      map[string]any  `json:"evidence,omitempty"`
	DetectedAt    time.Time       `json:"detected_at"`
	Status        IndicatorStatus `json:"status"`
}

// FraudRiskLevel is the aggregate fraud band.
type FraudRiskLevel string

const (
	FraudRiskLow      FraudRiskLevel = "low"
	FraudRiskMedium   FraudRiskLevel = "medium"
	FraudRiskHigh     FraudRiskLevel = "high"
	FraudRiskCritical FraudRiskLevel = "critical"
)

// FraudAction is the recommended handling of an application.
type FraudAction string

const (
	ActionApprove FraudAction = "approve"
	ActionReview  FraudAction = "review"
	ActionReject  FraudAction = "reject"
	ActionBlock   FraudAction = "block"
)

// FraudAssessment aggregates every indicator of one evaluation.
type FraudAssessment struct {
	ID                string           `json:"id"`
	EntityID          string           `json:"entity_id"`
	OverallRiskScore  float64          `json:"overall_risk_score"`
	RiskLevel         FraudRiskLevel   `json:"risk_level"`
	Confidence        float64          `json:"confidence"`
	Indicators        []FraudIndicator `json:"indicators"`
	RecommendedAction FraudAction      `json:"recommended_action"`
	ProcessingTimeMs  int64            `json:"processing_time_ms"`
	ModelVersion      string           `json:"model_version"`
	AssessedAt        time.Time        `json:"assessed_at"`
}

// AuditLog is a durable activity row used by velocity and network checks.
type AuditLog struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

// BlacklistEntry bars an entity until ExpiresAt.
type BlacklistEntry struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Alert notifies analysts of a high-risk assessment.
type Alert struct {
	ID           string         `json:"id"`
	EntityID     string         `json:"entity_id"`
	AssessmentID string         `json:"assessment_id"`
	RiskLevel    FraudRiskLevel `json:"risk_level"`
	RiskScore    float64        `json:"risk_score"`
	Message      string         `json:"message"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Case priorities.
const (
	CasePriorityHigh   = "high"
	CasePriorityMedium = "medium"
)

// InvestigationCase is opened for analyst review of a high-risk assessment.
type InvestigationCase struct {
	ID           string    `json:"id"`
	EntityID     string    `json:"entity_id"`
	AssessmentID string    `json:"assessment_id"`
	Priority     string    `json:"priority"`
	Status       string    `json:"status"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}
