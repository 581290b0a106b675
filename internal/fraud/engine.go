// Package fraud evaluates applications for fraud signals and recommends
// how to handle them.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/velocity"
)

// ModelVersion is stamped on every assessment.
const ModelVersion = "harrier-fraud-1.0"

// AuditActionFraudCheck is the audit row written for every evaluation.
const AuditActionFraudCheck = "fraud_check"

var tracer = otel.Tracer("harrier-fraud")

// Store is the slice of the fraud store the engine reads and writes.
type Store interface {
	velocity.Store

	SaveAssessment(ctx context.Context, a *domain.FraudAssessment) error
	SaveAuditLog(ctx context.Context, entry *domain.AuditLog) error
	CountEntitiesByIP(ctx context.Context, ip string, excludeEntityID string) (int64, error)
	SaveFingerprint(ctx context.Context, entityID, hash string, fp *domain.DeviceFingerprint, at time.Time) error
	FindFingerprintEntities(ctx context.Context, hash string, excludeEntityID string) ([]string, error)
	SaveLocation(ctx context.Context, loc *domain.LocationRecord) error
	GetLatestLocation(ctx context.Context, entityID string) (*domain.LocationRecord, error)
	SaveIdentity(ctx context.Context, entityID, nationalID string) error
	FindEntitiesByNationalID(ctx context.Context, nationalID string, excludeEntityID string) ([]string, error)
}

// Signals are the optional client-side observations of an application.
type Signals struct {
	Device     *domain.DeviceFingerprint
	Geo        *domain.GeolocationData
	Behavioral *domain.BehavioralPattern
	IPAddress  string
}

// Engine runs the fraud checks, the anomaly stage and the aggregation, then
// dispatches response messages for high-risk outcomes.
type Engine struct {
	store    Store
	bus      domain.EventBus
	model    AnomalyModel
	velocity *velocity.Service
	limits   velocity.Limits
	cfg      domain.FraudConfig
	metrics  *metrics.Manager
	logger   *slog.Logger
	now      func() time.Time

	highRisk map[string]bool
	checks   []check

	// side effects in flight
	pending sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus publishes blacklist, alert and case messages for high-risk outcomes.
func WithBus(b domain.EventBus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithAnomalyModel replaces the default anomaly model. Nil disables the stage.
func WithAnomalyModel(m AnomalyModel) Option {
	return func(e *Engine) { e.model = m }
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

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a fraud engine over a store.
func NewEngine(store Store, cfg domain.FraudConfig, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		model:  NewIsolationForestStub(cfg.AnomalyTrees),
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "fraud_engine")

	e.limits = velocity.DefaultLimits()
	if cfg.MaxAssessmentsPerHour > 0 {
		e.limits.PerHour = cfg.MaxAssessmentsPerHour
	}
	if cfg.MaxAssessmentsPerDay > 0 {
		e.limits.PerDay = cfg.MaxAssessmentsPerDay
	}
	if cfg.MaxRequestsPerIPHour > 0 {
		e.limits.IPPerHour = cfg.MaxRequestsPerIPHour
	}
	if e.cfg.ImpossibleTravelKmh <= 0 {
		e.cfg.ImpossibleTravelKmh = 1000
	}
	if e.cfg.BlacklistTTL <= 0 {
		e.cfg.BlacklistTTL = 24 * time.Hour
	}
	e.velocity = velocity.NewService(store).WithClock(e.now)

	e.highRisk = make(map[string]bool, len(cfg.HighRiskCountries))
	for _, c := range cfg.HighRiskCountries {
		e.highRisk[normalizeCountry(c)] = true
	}

	e.checks = []check{
		{"velocity", e.checkVelocity},
		{"device", e.checkDevice},
		{"geolocation", e.checkGeolocation},
		{"behavioral", e.checkBehavioral},
		{"identity", e.checkIdentity},
		{"financial", e.checkFinancial},
		{"network", e.checkNetwork},
	}
	return e
}

// request is one evaluation as seen by the checks.
type request struct {
	entity  domain.Entity
	signals Signals
	at      time.Time
}

type check struct {
	name string
	run  func(ctx context.Context, req *request) ([]domain.FraudIndicator, error)
}

// DetectFraud evaluates an application. It never fails: any internal error
// yields a medium-risk assessment recommending manual review.
func (e *Engine) DetectFraud(ctx context.Context, entity domain.Entity, signals Signals) (assessment *domain.FraudAssessment) {
	start := e.now()

	ctx, span := tracer.Start(ctx, "fraud.DetectFraud")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fraud detection panicked", "panic", r)
			assessment = e.safeDefault(entity, start)
		}
	}()

	assessment, err := e.detect(ctx, entity, signals, start)
	if err != nil {
		e.logger.Error("fraud detection failed", "error", err)
		return e.safeDefault(entity, start)
	}

	span.SetAttributes(
		attribute.String("entity.id", assessment.EntityID),
		attribute.Float64("fraud.score", assessment.OverallRiskScore),
		attribute.String("fraud.action", string(assessment.RecommendedAction)),
	)
	return assessment
}

var errNoEntity = errors.New("entity is required")

func (e *Engine) detect(ctx context.Context, entity domain.Entity, signals Signals, start time.Time) (*domain.FraudAssessment, error) {
	if entity == nil || entity.EntityID() == "" {
		return nil, errNoEntity
	}
	req := &request{entity: entity, signals: signals, at: start.UTC()}
	entityID := entity.EntityID()

	results := make([][]domain.FraudIndicator, len(e.checks))
	var wg sync.WaitGroup
	for i, c := range e.checks {
		wg.Add(1)
		go func(idx int, c check) {
			defer wg.Done()
			results[idx] = e.runCheck(ctx, c, req)
		}(i, c)
	}
	wg.Wait()

	indicators := make([]domain.FraudIndicator, 0)
	for _, r := range results {
		indicators = append(indicators, r...)
	}

	if err := e.store.SaveAuditLog(ctx, &domain.AuditLog{
		ID:        uuid.New().String(),
		EntityID:  entityID,
		Action:    AuditActionFraudCheck,
		IPAddress: signals.IPAddress,
		CreatedAt: req.at,
	}); err != nil {
		e.logger.Warn("failed to write audit log", "entity_id", entityID, "error", err)
	}

	if ind := e.anomaly(ctx, req, indicators); ind != nil {
		indicators = append(indicators, *ind)
	}

	score, confidence := aggregate(indicators)
	level := levelFor(score)
	assessment := &domain.FraudAssessment{
		ID:                uuid.New().String(),
		EntityID:          entityID,
		OverallRiskScore:  score,
		RiskLevel:         level,
		Confidence:        confidence,
		Indicators:        indicators,
		RecommendedAction: actionFor(score, confidence),
		ModelVersion:      ModelVersion,
		AssessedAt:        req.at,
	}
	elapsed := e.now().Sub(start)
	assessment.ProcessingTimeMs = elapsed.Milliseconds()

	if err := e.store.SaveAssessment(ctx, assessment); err != nil {
		e.logger.Warn("failed to persist assessment", "entity_id", entityID, "error", err)
	}

	for _, ind := range indicators {
		e.metrics.RecordIndicator(string(ind.IndicatorType), string(ind.Severity))
	}
	e.metrics.RecordFraudAssessment(string(level), string(assessment.RecommendedAction), elapsed)

	e.respond(ctx, assessment)

	e.logger.Info("fraud assessment complete",
		"entity_id", entityID,
		"score", score,
		"risk_level", level,
		"action", assessment.RecommendedAction,
		"indicators", len(indicators),
	)
	return assessment, nil
}

// runCheck isolates one check: an error or panic costs its indicators only.
func (e *Engine) runCheck(ctx context.Context, c check, req *request) (out []domain.FraudIndicator) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fraud check panicked",
				"check", c.name,
				"entity_id", req.entity.EntityID(),
				"panic", fmt.Sprint(r),
			)
			e.metrics.RecordCheckFailure(c.name)
			out = nil
		}
	}()

	_, span := tracer.Start(ctx, "fraud.check."+c.name, trace.WithAttributes(attribute.String("check", c.name)))
	defer span.End()

	indicators, err := c.run(ctx, req)
	if err != nil {
		e.logger.Warn("fraud check failed",
			"check", c.name,
			"entity_id", req.entity.EntityID(),
			"error", err,
		)
		e.metrics.RecordCheckFailure(c.name)
		return nil
	}
	return indicators
}

func (e *Engine) safeDefault(entity domain.Entity, start time.Time) *domain.FraudAssessment {
	var entityID string
	if entity != nil {
		entityID = entity.EntityID()
	}
	return &domain.FraudAssessment{
		ID:                uuid.New().String(),
		EntityID:          entityID,
		OverallRiskScore:  50,
		RiskLevel:         domain.FraudRiskMedium,
		Confidence:        0.5,
		Indicators:        []domain.FraudIndicator{},
		RecommendedAction: domain.ActionReview,
		ProcessingTimeMs:  e.now().Sub(start).Milliseconds(),
		ModelVersion:      ModelVersion,
		AssessedAt:        start.UTC(),
	}
}

func newIndicator(req *request, typ domain.IndicatorType, sev domain.Severity, confidence float64, description string, evidence map[string]any) domain.FraudIndicator {
	return domain.FraudIndicator{
		ID:            uuid.New().String(),
		EntityID:      req.entity.EntityID(),
		IndicatorType: typ,
		Severity:      sev,
		Description:   description,
		Confidence:    confidence,
		Evidence:      evidence,
		DetectedAt:    req.at,
		Status:        domain.IndicatorActive,
	}
}

// Wait blocks until every dispatched response message has been handled.
func (e *Engine) Wait() {
	e.pending.Wait()
}
