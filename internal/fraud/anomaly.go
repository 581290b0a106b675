package fraud

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// AnomalyModel scores a feature vector in [0,1]; higher is more anomalous.
type AnomalyModel interface {
	Score(ctx context.Context, features []float64) (float64, error)
}

// Feature vector layout: indicator counts by severity, then entity numerics.
const (
	featCritical = iota
	featHigh
	featMedium
	featLow
	severityFeatures
)

// Anomaly score thresholds.
const (
	anomalyFrom     = 0.7
	anomalyCritical = 0.9
)

// IsolationForestStub mimics the scoring of an isolation forest without a
// trained model. Each tree's path length starts at the expected depth c(n)
// for the sample size, is shortened by high and critical indicator counts,
// and is jittered deterministically by ±10% from a hash of the features.
// The usual transform 2^(-E[h]/c(n)) then maps the average path to a score,
// so a clean application lands near 0.5.
//
// It is not a trained detector and must not be used as one.
type IsolationForestStub struct {
	Trees      int
	SampleSize int
}

// NewIsolationForestStub creates the stub with the given tree count.
func NewIsolationForestStub(trees int) *IsolationForestStub {
	if trees <= 0 {
		trees = 100
	}
	return &IsolationForestStub{Trees: trees, SampleSize: 256}
}

var errShortFeatures = errors.New("feature vector too short")

// Score implements AnomalyModel.
func (m *IsolationForestStub) Score(ctx context.Context, features []float64) (float64, error) {
	if len(features) < severityFeatures {
		return 0, fmt.Errorf("%w: %d features", errShortFeatures, len(features))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cn := expectedPathLength(m.SampleSize)
	shorten := 1 - 0.1*features[featHigh] - 0.2*features[featCritical]
	shorten = math.Max(0.05, shorten)

	total := 0.0
	for t := 0; t < m.Trees; t++ {
		total += cn * shorten * (1 + 0.1*jitter(t, features))
	}
	avg := total / float64(m.Trees)
	return math.Pow(2, -avg/cn), nil
}

// expectedPathLength is c(n), the average unsuccessful search depth in a
// binary search tree of n points.
func expectedPathLength(n int) float64 {
	if n <= 1 {
		return 1
	}
	const eulerGamma = 0.5772156649
	harmonic := math.Log(float64(n-1)) + eulerGamma
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

// jitter returns a deterministic value in [-1, 1] for a tree and input.
func jitter(tree int, features []float64) float64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(tree))
	h.Write(buf[:])
	for _, f := range features {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	return float64(h.Sum64()%2001)/1000 - 1
}

func anomalyFeatures(entity domain.Entity, indicators []domain.FraudIndicator, at time.Time) []float64 {
	features := make([]float64, severityFeatures)
	for _, ind := range indicators {
		switch ind.Severity {
		case domain.SeverityCritical:
			features[featCritical]++
		case domain.SeverityHigh:
			features[featHigh]++
		case domain.SeverityMedium:
			features[featMedium]++
		case domain.SeverityLow:
			features[featLow]++
		}
	}

	switch v := entity.(type) {
	case *domain.Individual:
		features = append(features, v.MonthlyIncome, float64(v.Age(at)))
	case *domain.Company:
		features = append(features, v.AnnualRevenue, float64(v.EmployeeCount))
	case *domain.Institution:
		features = append(features, v.CapitalAdequacyRatio, v.TotalAssets)
	default:
		domain.UnsupportedEntity(entity)
	}
	return features
}

func (e *Engine) anomaly(ctx context.Context, req *request, indicators []domain.FraudIndicator) *domain.FraudIndicator {
	if e.model == nil {
		return nil
	}

	features := anomalyFeatures(req.entity, indicators, req.at)
	score, err := e.model.Score(ctx, features)
	if err != nil {
		e.logger.Warn("anomaly model failed", "entity_id", req.entity.EntityID(), "error", err)
		e.metrics.RecordCheckFailure("anomaly")
		return nil
	}
	if score <= anomalyFrom {
		return nil
	}

	sev := domain.SeverityHigh
	if score > anomalyCritical {
		sev = domain.SeverityCritical
	}
	ind := newIndicator(req, domain.IndicatorBehavioral, sev, score,
		"Anomalous combination of signals", map[string]any{"anomaly_score": score})
	return &ind
}
