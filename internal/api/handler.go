package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/fraud"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/provider"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeInvalidRequest = "invalid_request"
	codeInvalidEntity  = "invalid_entity"
	codeInvalidRule    = "invalid_rule"
	codeMissingPartner = "missing_partner_id"
	codeNotFound       = "not_found"
	codeUnavailable    = "unavailable"
	codeInternal       = "internal_error"
)

// Dependencies wires the engines and stores behind the handlers.
// Providers, Bus and Cache are optional.
type Dependencies struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Rules     *rules.Engine
	Scoring   *scoring.Engine
	Fraud     *fraud.Engine
	Processor *decision.Processor
	Providers *provider.Aggregator
	Metrics   *metrics.Manager
	Logger    *slog.Logger
	Version   string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Dependencies
	now func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{Dependencies: deps, now: time.Now}
}

// AssessmentRequest is the request body for POST /v1/assessments.
type AssessmentRequest struct {
	Entity            json.RawMessage               `json:"entity"`
	RequestedAmount   decimal.Decimal               `json:"requested_amount"`
	BureauData        *domain.CreditBureauData      `json:"bureau_data,omitempty"`
	AlternativeData   []domain.AlternativeDataPoint `json:"alternative_data,omitempty"`
	DeviceFingerprint *domain.DeviceFingerprint     `json:"device_fingerprint,omitempty"`
	Geolocation       *domain.GeolocationData       `json:"geolocation,omitempty"`
	Behavioral        *domain.BehavioralPattern     `json:"behavioral,omitempty"`
	IPAddress         string                        `json:"ip_address,omitempty"`
}

// Assess handles POST /v1/assessments: it scores the entity, runs fraud
// detection and returns the combined loan decision.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	ctx := r.Context()

	var req AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON request body")
		return
	}
	if len(req.Entity) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidEntity, "entity is required")
		return
	}
	entity, err := domain.DecodeEntity(req.Entity)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidEntity, err.Error())
		return
	}
	if !req.RequestedAmount.IsPositive() {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "requested_amount must be positive")
		return
	}

	logger := h.Logger.With(
		"entity_id", entity.EntityID(),
		"partner_id", GetPartnerID(ctx),
		"trace_id", GetTraceID(ctx),
	)

	if h.Repo != nil {
		barred, err := h.Repo.IsBlacklisted(ctx, entity.EntityID(), start)
		if err != nil {
			logger.Warn("blacklist lookup failed", "error", err)
		}
		if barred {
			logger.Info("blacklisted entity declined")
			writeJSON(w, http.StatusOK, h.Processor.Blacklisted(ctx, entity.EntityID(), start))
			return
		}
	}

	bureau, alt := req.BureauData, req.AlternativeData
	if h.Providers != nil && (bureau == nil || len(alt) == 0) {
		gathered := h.Providers.Gather(ctx, entity)
		if bureau == nil {
			bureau = gathered.Bureau
		}
		if len(alt) == 0 {
			alt = gathered.Alternative
		}
	}

	signals := fraud.Signals{
		Device:     req.DeviceFingerprint,
		Geo:        req.Geolocation,
		Behavioral: req.Behavioral,
		IPAddress:  clientIP(&req, r),
	}

	var (
		score      *domain.ScoringResult
		assessment *domain.FraudAssessment
	)
	concurrently(
		func() { score = h.Scoring.CalculateScore(ctx, entity, bureau, alt) },
		func() { assessment = h.Fraud.DetectFraud(ctx, entity, signals) },
	)

	resp := h.Processor.Assemble(ctx, &decision.Input{
		Score:     score,
		Fraud:     assessment,
		Requested: req.RequestedAmount,
		StartTime: start,
	})

	if h.Bus != nil {
		if payload, err := json.Marshal(resp); err == nil {
			if err := h.Bus.Publish(ctx, domain.TopicAssessmentCompleted, payload); err != nil {
				logger.Warn("failed to publish assessment", "error", err)
			}
		}
	}

	logger.Info("assessment completed",
		"assessment_id", resp.AssessmentID,
		"score", resp.Score,
		"decision", resp.Decision,
		"fraud_level", resp.FraudCheck.RiskLevel,
		"duration_ms", resp.ProcessingMs,
	)
	writeJSON(w, http.StatusOK, resp)
}

// concurrently runs fns in parallel and re-panics on the calling goroutine
// with the first panic any of them raised, so RecoverMiddleware sees it.
func concurrently(fns ...func()) {
	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicked any
	)
	for _, fn := range fns {
		wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			fn()
		})
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

// clientIP prefers the IP the partner reported, then the geolocated IP, then
// the connection address.
func clientIP(req *AssessmentRequest, r *http.Request) string {
	if req.IPAddress != "" {
		return req.IPAddress
	}
	if req.Geolocation != nil && req.Geolocation.IPAddress != "" {
		return req.Geolocation.IPAddress
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GetFraudAssessment handles GET /v1/fraud-assessments/{id}.
func (h *Handler) GetFraudAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "repository not available")
		return
	}

	a, err := h.Repo.GetAssessment(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "fraud assessment not found")
		return
	}
	if err != nil {
		h.Logger.Error("failed to get fraud assessment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to get fraud assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListCases handles GET /v1/entities/{id}/cases.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")
	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "repository not available")
		return
	}

	cases, err := h.Repo.ListCases(r.Context(), entityID)
	if err != nil {
		h.Logger.Error("failed to list cases", "entity_id", entityID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list cases")
		return
	}
	if cases == nil {
		cases = []*domain.InvestigationCase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"cases":     cases,
		"count":     len(cases),
	})
}

// ListRules returns the rules currently loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.Rules.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRule compiles a recommendation rule, persists it and loads it.
// An invalid expression is rejected before anything is stored.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.RecommendationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON request body")
		return
	}
	if rule.ID == "" || rule.Expression == "" || rule.Recommendation == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRule, "id, expression and recommendation are required")
		return
	}
	if err := h.Rules.ValidateRule(&rule); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRule, err.Error())
		return
	}

	if h.Repo != nil {
		if err := h.Repo.SaveRecommendationRule(r.Context(), &rule); err != nil {
			h.Logger.Error("failed to save rule", "id", rule.ID, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "failed to save rule")
			return
		}
	}

	if rule.Enabled {
		if err := h.Rules.LoadRule(&rule); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRule, err.Error())
			return
		}
	} else {
		h.Rules.UnloadRule(rule.ID)
	}

	h.Logger.Info("rule created", "id", rule.ID, "category", rule.Category, "enabled", rule.Enabled)
	writeJSON(w, http.StatusCreated, map[string]any{"rule": &rule})
}

// ReloadRules replaces the loaded set with the built-in rules plus every stored rule.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "repository not available")
		return
	}

	stored, err := h.Repo.ListRecommendationRules(r.Context())
	if err != nil {
		h.Logger.Error("failed to list rules", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to load rules")
		return
	}

	if err := h.Rules.ReloadRules(rules.WithDefaults(stored)); err != nil {
		h.Logger.Error("failed to reload rules", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to reload rules: "+err.Error())
		return
	}

	h.Logger.Info("rules reloaded", "stored", len(stored), "loaded", h.Rules.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded",
		"count":   h.Rules.RulesCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			components[name] = err.Error()
			status = "degraded"
			return
		}
		components[name] = "ok"
	}
	if h.Repo != nil {
		check("repository", func() error { return h.Repo.Ping(r.Context()) })
	}
	if h.Cache != nil {
		check("cache", func() error { return h.Cache.Ping(r.Context()) })
	}
	if h.Bus != nil {
		check("event_bus", func() error { return h.Bus.Ping(r.Context()) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    h.Version,
		"components": components,
	})
}

// Ready reports whether the engines are wired and the store answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Scoring == nil || h.Fraud == nil || h.Processor == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "engines not initialized")
		return
	}
	if h.Repo != nil {
		if err := h.Repo.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, "repository not reachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
