package domain

import "time"

// CreditBureauData is a bureau report for one entity.
type CreditBureauData struct {
	Source         string          `json:"source"`
	PaymentHistory []PaymentRecord `json:"payment_history"`
	CreditAccounts []CreditAccount `json:"credit_accounts"`
	PublicRecords  []PublicRecord  `json:"public_records"`
	Inquiries      []CreditInquiry `json:"inquiries"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// PaymentRecord is one scheduled repayment. DaysLate is 0 for on-time payments.
type PaymentRecord struct {
	Date     time.Time `json:"date"`
	Amount   float64   `json:"amount"`
	DaysLate int       `json:"days_late"`
}

// Late payment classes.
const (
	LateThresholdDays         = 1
	SeverelyLateThresholdDays = 60
)

// CreditAccount is an open tradeline.
type CreditAccount struct {
	AccountType    string    `json:"account_type"` // revolving, installment, mortgage
	Balance        float64   `json:"balance"`
	CreditLimit    float64   `json:"credit_limit"`
	MonthlyPayment float64   `json:"monthly_payment"`
	OpenedAt       time.Time `json:"opened_at"`
}

// PublicRecord is a bankruptcy, judgment or lien.
type PublicRecord struct {
	RecordType string    `json:"record_type"`
	Amount     float64   `json:"amount"`
	FiledAt    time.Time `json:"filed_at"`
}

// CreditInquiry is a hard or soft pull on the bureau file.
type CreditInquiry struct {
	InquiredAt time.Time `json:"inquired_at"`
	Kind       string    `json:"kind"` // hard, soft
}

// AltDataSource identifies an alternative-data feed.
type AltDataSource string

const (
	AltSourceTelecom          AltDataSource = "telecom"
	AltSourceUtilities        AltDataSource = "utilities"
	AltSourceDigitalFootprint AltDataSource = "digital_footprint"
	AltSourceSocialMedia      AltDataSource = "social_media"
	AltSourceEcommerce        AltDataSource = "ecommerce"
)

// AlternativeDataPoint is a normalized signal from a non-bureau source.
// Score and Confidence are both in [0,1].
type AlternativeDataPoint struct {
	Source      AltDataSource  `json:"source"`
	Score       float64        `json:"score"`
	Confidence  float64        `json:"confidence"`
	LastUpdated time.Time      `json:"last_updated"`
	Details     map[string]any `json:"details,omitempty"`
}

// DeviceFingerprint describes the client that submitted an application.
type DeviceFingerprint struct {
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
}

// GeolocationData is the resolved location of the submitting IP.
type GeolocationData struct {
	IPAddress string  `json:"ip_address"`
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ISP       string  `json:"isp"`
	IsProxy   bool    `json:"is_proxy"`
	IsVPN     bool    `json:"is_vpn"`
}

// BehavioralPattern captures form-interaction telemetry.
type BehavioralPattern struct {
	TypingSpeed        float64 `json:"typing_speed"`
	FormCompletionTime float64 `json:"form_completion_time"` // seconds
	CopyPasteEvents    int     `json:"copy_paste_events"`
	TabSwitches        int     `json:"tab_switches"`
	SuspiciousTiming   bool    `json:"suspicious_timing"`
}

// LocationRecord is a stored geolocation for an entity.
type LocationRecord struct {
	EntityID   string    `json:"entity_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Country    string    `json:"country"`
	IPAddress  string    `json:"ip_address"`
	RecordedAt time.Time `json:"recorded_at"`
}
