package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "harrier-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetAssessment", func(t *testing.T) {
		a := &domain.FraudAssessment{
			ID:               "fa-001",
			EntityID:         "ind-001",
			OverallRiskScore: 62.5,
			RiskLevel:        domain.FraudRiskMedium,
			Confidence:       0.8,
			Indicators: []domain.FraudIndicator{
				{ID: "fi-1", EntityID: "ind-001", IndicatorType: domain.IndicatorDevice, Severity: domain.SeverityMedium, Confidence: 0.7},
			},
			RecommendedAction: domain.ActionReview,
			ProcessingTimeMs:  4,
			ModelVersion:      "test",
			AssessedAt:        now,
		}

		if err := repo.SaveAssessment(ctx, a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		got, err := repo.GetAssessment(ctx, "fa-001")
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}
		if got.RiskLevel != domain.FraudRiskMedium || got.RecommendedAction != domain.ActionReview {
			t.Errorf("unexpected assessment: %+v", got)
		}
		if len(got.Indicators) != 1 || got.Indicators[0].IndicatorType != domain.IndicatorDevice {
			t.Errorf("expected one device indicator, got %+v", got.Indicators)
		}
		if !got.AssessedAt.Equal(now) {
			t.Errorf("expected assessed_at %v, got %v", now, got.AssessedAt)
		}
	})

	t.Run("GetAssessmentNotFound", func(t *testing.T) {
		_, err := repo.GetAssessment(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAssessmentRequiresIDs", func(t *testing.T) {
		err := repo.SaveAssessment(ctx, &domain.FraudAssessment{})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("CountAssessmentsWindow", func(t *testing.T) {
		for i, age := range []time.Duration{10 * time.Minute, 50 * time.Minute, 3 * time.Hour} {
			_ = repo.SaveAssessment(ctx, &domain.FraudAssessment{
				ID:                "fa-window-" + string(rune('a'+i)),
				EntityID:          "ind-window",
				RiskLevel:         domain.FraudRiskLow,
				RecommendedAction: domain.ActionApprove,
				AssessedAt:        now.Add(-age),
			})
		}

		hour, err := repo.CountAssessments(ctx, "ind-window", now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("CountAssessments failed: %v", err)
		}
		if hour != 2 {
			t.Errorf("expected 2 in the last hour, got %d", hour)
		}

		day, _ := repo.CountAssessments(ctx, "ind-window", now.Add(-24*time.Hour))
		if day != 3 {
			t.Errorf("expected 3 in the last day, got %d", day)
		}
	})

	t.Run("AuditLogsByIP", func(t *testing.T) {
		for _, entity := range []string{"e-1", "e-2", "e-2", "e-3"} {
			if err := repo.SaveAuditLog(ctx, &domain.AuditLog{
				EntityID:  entity,
				Action:    "fraud_check",
				IPAddress: "203.0.113.9",
				CreatedAt: now.Add(-5 * time.Minute),
			}); err != nil {
				t.Fatalf("SaveAuditLog failed: %v", err)
			}
		}
		_ = repo.SaveAuditLog(ctx, &domain.AuditLog{
			EntityID: "e-4", Action: "fraud_check", IPAddress: "203.0.113.9", CreatedAt: now.Add(-2 * time.Hour),
		})

		recent, _ := repo.CountAuditLogsByIP(ctx, "203.0.113.9", now.Add(-time.Hour))
		if recent != 4 {
			t.Errorf("expected 4 rows in the last hour, got %d", recent)
		}

		others, _ := repo.CountEntitiesByIP(ctx, "203.0.113.9", "e-1")
		if others != 3 {
			t.Errorf("expected 3 other entities, got %d", others)
		}
	})

	t.Run("FingerprintReuse", func(t *testing.T) {
		fp := &domain.DeviceFingerprint{UserAgent: "Mozilla/5.0", ScreenResolution: "1920x1080"}

		if err := repo.SaveFingerprint(ctx, "ind-a", "hash-1", fp, now); err != nil {
			t.Fatalf("SaveFingerprint failed: %v", err)
		}
		// Repeat save is an upsert
		if err := repo.SaveFingerprint(ctx, "ind-a", "hash-1", fp, now.Add(time.Minute)); err != nil {
			t.Fatalf("SaveFingerprint upsert failed: %v", err)
		}
		_ = repo.SaveFingerprint(ctx, "ind-b", "hash-1", fp, now)

		others, err := repo.FindFingerprintEntities(ctx, "hash-1", "ind-a")
		if err != nil {
			t.Fatalf("FindFingerprintEntities failed: %v", err)
		}
		if len(others) != 1 || others[0] != "ind-b" {
			t.Errorf("expected [ind-b], got %v", others)
		}

		none, _ := repo.FindFingerprintEntities(ctx, "hash-2", "ind-a")
		if len(none) != 0 {
			t.Errorf("expected no entities, got %v", none)
		}
	})

	t.Run("LatestLocation", func(t *testing.T) {
		missing, err := repo.GetLatestLocation(ctx, "ind-nowhere")
		if err != nil || missing != nil {
			t.Fatalf("expected nil, nil for unknown entity, got %v, %v", missing, err)
		}

		_ = repo.SaveLocation(ctx, &domain.LocationRecord{EntityID: "ind-geo", Latitude: 1, Longitude: 1, RecordedAt: now.Add(-time.Hour)})
		_ = repo.SaveLocation(ctx, &domain.LocationRecord{EntityID: "ind-geo", Latitude: 2, Longitude: 2, Country: "KE", RecordedAt: now})

		loc, err := repo.GetLatestLocation(ctx, "ind-geo")
		if err != nil {
			t.Fatalf("GetLatestLocation failed: %v", err)
		}
		if loc.Latitude != 2 || loc.Country != "KE" {
			t.Errorf("expected newest location, got %+v", loc)
		}
	})

	t.Run("DuplicateNationalID", func(t *testing.T) {
		_ = repo.SaveIdentity(ctx, "ind-x", "NID-123")
		_ = repo.SaveIdentity(ctx, "ind-y", "NID-123")
		// Re-registering the same entity does not duplicate it
		_ = repo.SaveIdentity(ctx, "ind-x", "NID-123")

		others, err := repo.FindEntitiesByNationalID(ctx, "NID-123", "ind-x")
		if err != nil {
			t.Fatalf("FindEntitiesByNationalID failed: %v", err)
		}
		if len(others) != 1 || others[0] != "ind-y" {
			t.Errorf("expected [ind-y], got %v", others)
		}
	})

	t.Run("BlacklistExpiry", func(t *testing.T) {
		entry := &domain.BlacklistEntry{
			ID:        "bl-1",
			EntityID:  "ind-bad",
			Reason:    "critical fraud risk",
			CreatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		}
		if err := repo.SaveBlacklistEntry(ctx, entry); err != nil {
			t.Fatalf("SaveBlacklistEntry failed: %v", err)
		}

		listed, _ := repo.IsBlacklisted(ctx, "ind-bad", now.Add(time.Hour))
		if !listed {
			t.Error("expected entity to be blacklisted within 24h")
		}

		expired, _ := repo.IsBlacklisted(ctx, "ind-bad", now.Add(25*time.Hour))
		if expired {
			t.Error("expected blacklist to expire after 24h")
		}
	})

	t.Run("AlertsAndCases", func(t *testing.T) {
		if err := repo.SaveAlert(ctx, &domain.Alert{
			ID: "al-1", EntityID: "ind-bad", AssessmentID: "fa-001",
			RiskLevel: domain.FraudRiskHigh, RiskScore: 80, Message: "high fraud risk", CreatedAt: now,
		}); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		for i, p := range []string{domain.CasePriorityMedium, domain.CasePriorityHigh} {
			if err := repo.SaveCase(ctx, &domain.InvestigationCase{
				ID: "case-" + p, EntityID: "ind-bad", AssessmentID: "fa-001",
				Priority: p, Status: "open", Summary: "review", CreatedAt: now.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				t.Fatalf("SaveCase failed: %v", err)
			}
		}

		cases, err := repo.ListCases(ctx, "ind-bad")
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(cases) != 2 {
			t.Fatalf("expected 2 cases, got %d", len(cases))
		}
		if cases[0].Priority != domain.CasePriorityHigh {
			t.Errorf("expected newest case first, got %s", cases[0].Priority)
		}
	})

	t.Run("RecommendationRules", func(t *testing.T) {
		rule := &domain.RecommendationRule{
			ID:             "rec-util",
			Name:           "High utilization",
			Category:       "credit_utilization",
			Expression:     "score < 0.5",
			Recommendation: "Pay down revolving balances",
			Enabled:        true,
		}
		if err := repo.SaveRecommendationRule(ctx, rule); err != nil {
			t.Fatalf("SaveRecommendationRule failed: %v", err)
		}

		rule.Enabled = false
		if err := repo.SaveRecommendationRule(ctx, rule); err != nil {
			t.Fatalf("SaveRecommendationRule upsert failed: %v", err)
		}

		rules, err := repo.ListRecommendationRules(ctx)
		if err != nil {
			t.Fatalf("ListRecommendationRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(rules))
		}
		if rules[0].Enabled {
			t.Error("expected rule to be disabled after upsert")
		}
	})
}

func TestInMemorySQLite(t *testing.T) {
	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create in-memory repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.SaveIdentity(ctx, "ind-1", "NID-1"); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}
	others, _ := repo.FindEntitiesByNationalID(ctx, "NID-1", "ind-2")
	if len(others) != 1 {
		t.Errorf("expected schema and data on the single connection, got %v", others)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.RepositoryConfig{Driver: "mysql"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &SQLRepository{driver: "sqlite"}
	if q := lite.rebind("a = ?"); q != "a = ?" {
		t.Errorf("sqlite rebind should be identity, got %q", q)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "harrier", PostgresPassword: "secret"})
	want := "host=localhost port=5432 user=harrier password=secret dbname=harrier sslmode=disable"
	if dsn != want {
		t.Errorf("postgresDSN = %q, want %q", dsn, want)
	}
}
