package fraud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/velocity"
)

var botMarkers = []string{
	"bot", "crawler", "spider", "scraper", "headless",
	"phantomjs", "selenium", "curl", "wget", "python-requests",
}

var syntheticNameMarkers = []string{"test", "fake", "dummy", "sample"}

// Identity and financial plausibility bounds.
const (
	minApplicantAge           = 18
	maxApplicantAge           = 100
	implausibleIncome         = 100_000.0 // monthly
	implausibleRevenuePerHead = 1_000_000.0
)

const earthRadiusKm = 6371.0

// Behavioral thresholds.
const (
	maxTypingSpeed     = 200.0
	minFormSeconds     = 30.0
	maxCopyPasteEvents = 10
)

func (e *Engine) checkVelocity(ctx context.Context, req *request) ([]domain.FraudIndicator, error) {
	snap, err := e.velocity.Measure(ctx, req.entity.EntityID(), req.signals.IPAddress)
	if err != nil {
		return nil, err
	}

	var out []domain.FraudIndicator
	for _, b := range e.limits.Breaches(snap) {
		evidence := map[string]any{"count": b.Count, "limit": b.Limit, "window": string(b.Scope)}
		switch b.Scope {
		case velocity.ScopeEntityHour:
			out = append(out, newIndicator(req, domain.IndicatorVelocity, domain.SeverityHigh, 0.8,
				fmt.Sprintf("%d assessments in the last hour", b.Count), evidence))
		case velocity.ScopeEntityDay:
			out = append(out, newIndicator(req, domain.IndicatorVelocity, domain.SeverityMedium, 0.7,
				fmt.Sprintf("%d assessments in the last day", b.Count), evidence))
		case velocity.ScopeIPHour:
			evidence["ip_address"] = req.signals.IPAddress
			out = append(out, newIndicator(req, domain.IndicatorVelocity, domain.SeverityHigh, 0.75,
				fmt.Sprintf("%d requests from this IP in the last hour", b.Count), evidence))
		}
	}
	return out, nil
}

// FingerprintHash identifies a device across entities.
func FingerprintHash(fp *domain.DeviceFingerprint) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		fp.UserAgent, fp.ScreenResolution, fp.Timezone, fp.Language,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) checkDevice(ctx context.Context, req *request) ([]domain.FraudIndicator, error) {
	fp := req.signals.Device
	if fp == nil {
		return nil, nil
	}
	entityID := req.entity.EntityID()

	var out []domain.FraudIndicator
	ua := strings.ToLower(fp.UserAgent)
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			out = append(out, newIndicator(req, domain.IndicatorDevice, domain.SeverityHigh, 0.9,
				"Automated client detected", map[string]any{"user_agent": fp.UserAgent, "marker": marker}))
			break
		}
	}

	hash := FingerprintHash(fp)
	others, err := e.store.FindFingerprintEntities(ctx, hash, entityID)
	if err != nil {
		return nil, fmt.Errorf("find fingerprint: %w", err)
	}
	if len(others) > 0 {
		out = append(out, newIndicator(req, domain.IndicatorDevice, domain.SeverityMedium, 0.7,
			fmt.Sprintf("Device shared with %d other entities", len(others)),
			map[string]any{"fingerprint": hash, "entities": others}))
	}

	if err := e.store.SaveFingerprint(ctx, entityID, hash, fp, req.at); err != nil {
		e.logger.Warn("failed to save fingerprint", "entity_id", entityID, "error", err)
	}
	return out, nil
}

func normalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

func (e *Engine) checkGeolocation(ctx context.Context, req *request) ([]domain.FraudIndicator, error) {
	geo := req.signals.Geo
	if geo == nil {
		return nil, nil
	}
	entityID := req.entity.EntityID()

	var out []domain.FraudIndicator
	if country := normalizeCountry(geo.Country); e.highRisk[country] {
		out = append(out, newIndicator(req, domain.IndicatorGeolocation, domain.SeverityMedium, 0.7,
			"Application from a high-risk jurisdiction", map[string]any{"country": country}))
	}
	if geo.IsVPN || geo.IsProxy {
		out = append(out, newIndicator(req, domain.IndicatorGeolocation, domain.SeverityMedium, 0.7,
			"Connection through a VPN or proxy", map[string]any{"vpn": geo.IsVPN, "proxy": geo.IsProxy, "isp": geo.ISP}))
	}

	prev, err := e.store.GetLatestLocation(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("latest location: %w", err)
	}
	if prev != nil {
		dist := haversineKm(prev.Latitude, prev.Longitude, geo.Latitude, geo.Longitude)
		hours := req.at.Sub(prev.RecordedAt).Hours()
		if speed := travelSpeed(dist, hours); speed > e.cfg.ImpossibleTravelKmh {
			out = append(out, newIndicator(req, domain.IndicatorGeolocation, domain.SeverityHigh, 0.95,
				"Impossible travel between consecutive applications", map[string]any{
					"distance_km": math.Round(dist),
					"hours":       hours,
					"speed_kmh":   math.Round(math.Min(speed, math.MaxInt32)),
					"from":        prev.Country,
					"to":          geo.Country,
				}))
		}
	}

	if err := e.store.SaveLocation(ctx, &domain.LocationRecord{
		EntityID:   entityID,
		Latitude:   geo.Latitude,
		Longitude:  geo.Longitude,
		Country:    geo.Country,
		IPAddress:  geo.IPAddress,
		RecordedAt: req.at,
	}); err != nil {
		e.logger.Warn("failed to save location", "entity_id", entityID, "error", err)
	}
	return out, nil
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// travelSpeed is infinite for any movement with no elapsed time.
func travelSpeed(km, hours float64) float64 {
	if hours <= 0 {
		if km > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return km / hours
}

func (e *Engine) checkBehavioral(_ context.Context, req *request) ([]domain.FraudIndicator, error) {
	b := req.signals.Behavioral
	if b == nil {
		return nil, nil
	}

	var out []domain.FraudIndicator
	if b.TypingSpeed > maxTypingSpeed {
		out = append(out, newIndicator(req, domain.IndicatorBehavioral, domain.SeverityHigh, 0.7,
			"Typing speed beyond human range", map[string]any{"typing_speed": b.TypingSpeed}))
	}
	if b.FormCompletionTime > 0 && b.FormCompletionTime < minFormSeconds {
		out = append(out, newIndicator(req, domain.IndicatorBehavioral, domain.SeverityMedium, 0.6,
			"Form completed unusually fast", map[string]any{"seconds": b.FormCompletionTime}))
	}
	if b.CopyPasteEvents > maxCopyPasteEvents {
		out = append(out, newIndicator(req, domain.IndicatorBehavioral, domain.SeverityMedium, 0.5,
			"Excessive copy-paste activity", map[string]any{"events": b.CopyPasteEvents}))
	}
	if b.SuspiciousTiming {
		out = append(out, newIndicator(req, domain.IndicatorBehavioral, domain.SeverityLow, 0.4,
			"Suspicious interaction timing", nil))
	}
	return out, nil
}

func (e *Engine) checkIdentity(ctx context.Context, req *request) ([]domain.FraudIndicator, error) {
	var out []domain.FraudIndicator

	name := strings.ToLower(req.entity.DisplayName())
	for _, marker := range syntheticNameMarkers {
		if strings.Contains(name, marker) {
			out = append(out, newIndicator(req, domain.IndicatorIdentity, domain.SeverityHigh, 0.8,
				"Name looks synthetic", map[string]any{"name": req.entity.DisplayName(), "marker": marker}))
			break
		}
	}

	ind, ok := req.entity.(*domain.Individual)
	if !ok {
		return out, nil
	}

	if ind.NationalID != "" {
		others, err := e.store.FindEntitiesByNationalID(ctx, ind.NationalID, ind.ID)
		if err != nil {
			return nil, fmt.Errorf("find national id: %w", err)
		}
		if len(others) > 0 {
			out = append(out, newIndicator(req, domain.IndicatorIdentity, domain.SeverityCritical, 0.95,
				"National ID registered to another entity", map[string]any{"entities": others}))
		}
		if err := e.store.SaveIdentity(ctx, ind.ID, ind.NationalID); err != nil {
			e.logger.Warn("failed to save identity", "entity_id", ind.ID, "error", err)
		}
	}

	if !ind.DateOfBirth.IsZero() {
		if age := ind.Age(req.at); age < minApplicantAge || age > maxApplicantAge {
			out = append(out, newIndicator(req, domain.IndicatorIdentity, domain.SeverityMedium, 0.8,
				"Implausible applicant age", map[string]any{"age": age}))
		}
	}
	return out, nil
}

func (e *Engine) checkFinancial(_ context.Context, req *request) ([]domain.FraudIndicator, error) {
	var out []domain.FraudIndicator

	switch v := req.entity.(type) {
	case *domain.Individual:
		if v.MonthlyIncome > implausibleIncome {
			out = append(out, newIndicator(req, domain.IndicatorFinancial, domain.SeverityMedium, 0.6,
				"Declared income unusually high", map[string]any{"monthly_income": v.MonthlyIncome}))
		}
		if v.EmploymentStatus == domain.EmploymentUnemployed && v.MonthlyIncome > 0 {
			out = append(out, newIndicator(req, domain.IndicatorFinancial, domain.SeverityHigh, 0.8,
				"Income declared while unemployed", map[string]any{"monthly_income": v.MonthlyIncome}))
		}
	case *domain.Company:
		if v.EmployeeCount > 0 {
			if perHead := v.AnnualRevenue / float64(v.EmployeeCount); perHead > implausibleRevenuePerHead {
				out = append(out, newIndicator(req, domain.IndicatorFinancial, domain.SeverityMedium, 0.6,
					"Revenue per employee unusually high", map[string]any{"revenue_per_employee": math.Round(perHead)}))
			}
		}
	case *domain.Institution:
	default:
		domain.UnsupportedEntity(req.entity)
	}
	return out, nil
}

// networkRisk maps how many other entities share an IP to a risk in [0,1].
func networkRisk(shared int64) float64 {
	switch {
	case shared > 10:
		return 0.9
	case shared > 5:
		return 0.7
	case shared > 2:
		return 0.5
	default:
		return 0.1
	}
}

const networkRiskThreshold = 0.7

func (e *Engine) checkNetwork(ctx context.Context, req *request) ([]domain.FraudIndicator, error) {
	ip := req.signals.IPAddress
	if ip == "" {
		return nil, nil
	}

	shared, err := e.store.CountEntitiesByIP(ctx, ip, req.entity.EntityID())
	if err != nil {
		return nil, fmt.Errorf("count entities by ip: %w", err)
	}
	risk := networkRisk(shared)
	if risk <= networkRiskThreshold {
		return nil, nil
	}
	return []domain.FraudIndicator{
		newIndicator(req, domain.IndicatorBehavioral, domain.SeverityHigh, risk,
			"IP address shared by many entities", map[string]any{"ip_address": ip, "entities": shared}),
	}, nil
}
