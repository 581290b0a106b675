// Package scoring computes explainable credit scores for individuals,
// companies and financial institutions.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
)

const component = "scoring_engine"

// Score scales: how far below MaxScore the weakest possible profile falls.
const (
	standardScale    = 350.0
	institutionScale = 250.0
)

var tracer = otel.Tracer("harrier-scoring")

// Recommender turns weak factors into applicant advice.
type Recommender interface {
	Recommend(ctx context.Context, kind domain.EntityKind, factors []domain.AssessmentFactor) []string
}

// Engine computes credit scores. A nil cache or recommender disables that stage.
type Engine struct {
	cache       domain.Cache
	recommender Recommender
	metrics     *metrics.Manager
	logger      *slog.Logger
	ttl         time.Duration
	budget      time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache stores results for the configured TTL.
func WithCache(c domain.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRecommender sets the source of recommendations.
func WithRecommender(r Recommender) Option {
	return func(e *Engine) { e.recommender = r }
}

// WithMetrics instruments the engine.
func WithMetrics(m *metrics.Manager) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the time source used for ages, recency and timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a scoring engine.
func NewEngine(cfg domain.ScoringConfig, opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		ttl:    cfg.CacheTTL,
		budget: cfg.SoftBudget,
		now:    time.Now,
	}
	if e.ttl <= 0 {
		e.ttl = 5 * time.Minute
	}
	if e.budget <= 0 {
		e.budget = 50 * time.Millisecond
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", component)
	return e
}

// CalculateScore scores an entity from its own data plus optional bureau and
// alternative data. Identical inputs within the cache TTL return the cached
// result with a CACHE_HIT audit entry appended.
//
// It panics with domain.ErrUnsupportedEntity for an entity outside the closed set.
func (e *Engine) CalculateScore(ctx context.Context, entity domain.Entity, bureau *domain.CreditBureauData, alt []domain.AlternativeDataPoint) *domain.ScoringResult {
	start := e.now()
	id := entity.EntityID()

	ctx, span := tracer.Start(ctx, "scoring.CalculateScore",
		trace.WithAttributes(
			attribute.String("entity.id", id),
			attribute.String("entity.type", string(entity.Kind())),
		),
	)
	defer span.End()

	key := cacheKey(entity, bureau, alt)
	if cached := e.lookup(ctx, key); cached != nil {
		cached.AuditTrail = append(cached.AuditTrail, e.audit(id, domain.AuditCacheHit, nil))
		span.SetAttributes(attribute.Bool("cache.hit", true))
		e.metrics.RecordScoreCacheHit()
		return cached
	}

	factors, scale := e.factors(entity, bureau, alt, start)
	score := composite(factors, scale)
	b := bandFor(score)

	result := &domain.ScoringResult{
		EntityID:              id,
		EntityType:            entity.Kind(),
		Score:                 score,
		RiskLevel:             b.level,
		ProbabilityOfDefault:  probabilityOfDefault(score, factors),
		Factors:               factors,
		Recommendations:       e.recommend(ctx, entity.Kind(), factors, b),
		LoanAmountRange:       loanRange(entity, b),
		SuggestedInterestRate: b.rate,
		Confidence:            confidence(bureau != nil, len(alt), factors),
	}

	result.ProcessingTime = e.now().Sub(start)
	result.AuditTrail = append(result.AuditTrail, e.audit(id, domain.AuditScoreCalculated, map[string]any{
		"score":         float64(score),
		"risk_level":    string(b.level),
		"processing_ms": float64(result.ProcessingTime.Milliseconds()),
	}))

	if result.ProcessingTime > e.budget {
		e.logger.Warn("score computation exceeded budget",
			"entity_id", id,
			"elapsed", result.ProcessingTime,
			"budget", e.budget,
		)
		result.AuditTrail = append(result.AuditTrail, e.audit(id, domain.AuditScoreBudgetExceeded, map[string]any{
			"processing_ms": float64(result.ProcessingTime.Milliseconds()),
			"budget_ms":     float64(e.budget.Milliseconds()),
		}))
		e.metrics.RecordBudgetExceeded()
	}

	e.store(ctx, key, result)

	span.SetAttributes(
		attribute.Int("score", score),
		attribute.String("risk_level", string(b.level)),
	)
	e.metrics.RecordScore(string(entity.Kind()), string(b.level), result.ProcessingTime)

	e.logger.Debug("score calculated",
		"entity_id", id,
		"score", score,
		"risk_level", b.level,
	)
	return result
}

func (e *Engine) factors(entity domain.Entity, bureau *domain.CreditBureauData, alt []domain.AlternativeDataPoint, at time.Time) ([]domain.AssessmentFactor, float64) {
	switch v := entity.(type) {
	case *domain.Individual:
		return individualFactors(v, bureau, alt, at), standardScale
	case *domain.Company:
		return companyFactors(v, at), standardScale
	case *domain.Institution:
		return institutionFactors(v), institutionScale
	default:
		domain.UnsupportedEntity(entity)
		return nil, 0
	}
}

func (e *Engine) recommend(ctx context.Context, kind domain.EntityKind, factors []domain.AssessmentFactor, b band) []string {
	var recs []string
	if e.recommender != nil {
		recs = e.recommender.Recommend(ctx, kind, factors)
	}
	return append(recs, b.advice)
}

func (e *Engine) lookup(ctx context.Context, key string) *domain.ScoringResult {
	if e.cache == nil {
		return nil
	}
	cached, err := e.cache.GetScoringResult(ctx, key)
	if err != nil {
		e.logger.Warn("score cache read failed", "key", key, "error", err)
		return nil
	}
	return cached
}

func (e *Engine) store(ctx context.Context, key string, result *domain.ScoringResult) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetScoringResult(ctx, key, result, e.ttl); err != nil {
		e.logger.Warn("score cache write failed", "key", key, "error", err)
	}
}

// audit builds a trail entry. Numbers in data are float64 so a result read
// back from the cache compares equal to the one that was stored.
func (e *Engine) audit(entityID, action string, data map[string]any) domain.AuditEntry {
	return domain.AuditEntry{
		EntityID:  entityID,
		Timestamp: e.now().UTC(),
		Action:    action,
		Component: component,
		Data:      data,
	}
}

// cacheKey identifies a scoring input. Any change to the entity, a new
// bureau pull or a different number of alternative points is a new key.
func cacheKey(entity domain.Entity, bureau *domain.CreditBureauData, alt []domain.AlternativeDataPoint) string {
	stamp := "none"
	if bureau != nil {
		stamp = strconv.FormatInt(bureau.LastUpdated.UnixNano(), 10)
	}
	return fmt.Sprintf("%s:%s:%d:%s:%d",
		entity.Kind(), entity.EntityID(), entity.LastUpdated().UnixNano(), stamp, len(alt))
}
