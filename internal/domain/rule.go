package domain

import "time"

// RecommendationRule turns a factor condition into advice for the applicant.
// Expression is CEL over the factor variables (category, score, weight,
// impact, entity_type) and must yield a bool.
type RecommendationRule struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"` // empty matches every factor
	Expression     string    `json:"expression"`
	Recommendation string    `json:"recommendation"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
}
