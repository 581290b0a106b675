package fraud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

func indicators(pairs ...any) []domain.FraudIndicator {
	var out []domain.FraudIndicator
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.FraudIndicator{
			Severity:   pairs[i].(domain.Severity),
			Confidence: pairs[i+1].(float64),
		})
	}
	return out
}

func TestAggregateEmpty(t *testing.T) {
	score, conf := aggregate(nil)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0.5, conf)
	assert.Equal(t, domain.FraudRiskLow, levelFor(score))
	assert.Equal(t, domain.ActionApprove, actionFor(score, conf))
}

func TestAggregateSingleCritical(t *testing.T) {
	score, conf := aggregate(indicators(domain.SeverityCritical, 0.95))
	assert.Equal(t, 95.0, score)
	assert.Equal(t, 1.0, conf)
	assert.Equal(t, domain.ActionBlock, actionFor(score, conf))
}

// Normalising by N×40 means adding a weaker indicator lowers the score.
func TestAggregateDilutesAcrossIndicators(t *testing.T) {
	alone, _ := aggregate(indicators(domain.SeverityCritical, 0.95))
	combined, _ := aggregate(indicators(domain.SeverityCritical, 0.95, domain.SeverityHigh, 0.8))

	assert.Equal(t, 72.5, combined)
	assert.Less(t, combined, alone)
	assert.Equal(t, domain.FraudRiskMedium, levelFor(combined))
}

func TestAggregateConfidenceBonusCapped(t *testing.T) {
	var many []any
	for i := 0; i < 10; i++ {
		many = append(many, domain.SeverityLow, 0.4)
	}
	_, conf := aggregate(indicators(many...))
	assert.InDelta(t, 0.6, conf, 1e-9)
}

func TestLevelAndActionTable(t *testing.T) {
	cases := []struct {
		score  float64
		conf   float64
		level  domain.FraudRiskLevel
		action domain.FraudAction
	}{
		{95, 0.95, domain.FraudRiskCritical, domain.ActionBlock},
		{95, 0.8, domain.FraudRiskCritical, domain.ActionReject},
		{90, 0.9, domain.FraudRiskCritical, domain.ActionBlock},
		{80, 0.99, domain.FraudRiskHigh, domain.ActionReject},
		{75, 0.5, domain.FraudRiskHigh, domain.ActionReject},
		{60, 0.7, domain.FraudRiskMedium, domain.ActionReview},
		{50, 0.7, domain.FraudRiskMedium, domain.ActionReview},
		{49.99, 0.7, domain.FraudRiskLow, domain.ActionApprove},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, levelFor(c.score), "score %v", c.score)
		assert.Equal(t, c.action, actionFor(c.score, c.conf), "score %v conf %v", c.score, c.conf)
	}
}

func TestIsolationForestStub(t *testing.T) {
	model := NewIsolationForestStub(100)
	ctx := context.Background()

	clean, err := model.Score(ctx, []float64{0, 0, 0, 0, 5000, 30})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, clean, 0.05)

	again, _ := model.Score(ctx, []float64{0, 0, 0, 0, 5000, 30})
	assert.Equal(t, clean, again)

	risky, err := model.Score(ctx, []float64{4, 2, 0, 0, 5000, 30})
	require.NoError(t, err)
	assert.Greater(t, risky, anomalyCritical)

	_, err = model.Score(ctx, []float64{1})
	assert.ErrorIs(t, err, errShortFeatures)
}

func TestExpectedPathLength(t *testing.T) {
	assert.Equal(t, 1.0, expectedPathLength(1))
	assert.InDelta(t, 10.24, expectedPathLength(256), 0.01)
}

func TestHaversine(t *testing.T) {
	// Nairobi to Mombasa is roughly 440 km.
	d := haversineKm(-1.2921, 36.8219, -4.0435, 39.6682)
	assert.InDelta(t, 440, d, 15)
	assert.Equal(t, 0.0, haversineKm(10, 10, 10, 10))
}

func TestNetworkRisk(t *testing.T) {
	assert.Equal(t, 0.1, networkRisk(0))
	assert.Equal(t, 0.5, networkRisk(3))
	assert.Equal(t, 0.7, networkRisk(6))
	assert.Equal(t, 0.9, networkRisk(11))
}
