// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for the fraud store.
// Every write is append-only or an upsert; rows with an expiry are
// filtered at read time rather than swept.
type Repository interface {
	// Fraud assessments
	SaveAssessment(ctx context.Context, a *FraudAssessment) error
	GetAssessment(ctx context.Context, id string) (*FraudAssessment, error)
	CountAssessments(ctx context.Context, entityID string, since time.Time) (int64, error)

	// Audit log
	SaveAuditLog(ctx context.Context, entry *AuditLog) error
	CountAuditLogsByIP(ctx context.Context, ip string, since time.Time) (int64, error)
	CountEntitiesByIP(ctx context.Context, ip string, excludeEntityID string) (int64, error)

	// Device fingerprints
	SaveFingerprint(ctx context.Context, entityID, hash string, fp *DeviceFingerprint, at time.Time) error
	FindFingerprintEntities(ctx context.Context, hash string, excludeEntityID string) ([]string, error)

	// Locations
	SaveLocation(ctx context.Context, loc *LocationRecord) error
	GetLatestLocation(ctx context.Context, entityID string) (*LocationRecord, error) // nil, nil when none

	// Identities
	SaveIdentity(ctx context.Context, entityID, nationalID string) error
	FindEntitiesByNationalID(ctx context.Context, nationalID string, excludeEntityID string) ([]string, error)

	// Fraud response
	SaveBlacklistEntry(ctx context.Context, entry *BlacklistEntry) error
	IsBlacklisted(ctx context.Context, entityID string, at time.Time) (bool, error)
	SaveAlert(ctx context.Context, alert *Alert) error
	SaveCase(ctx context.Context, c *InvestigationCase) error
	ListCases(ctx context.Context, entityID string) ([]*InvestigationCase, error)

	// Recommendation rules
	SaveRecommendationRule(ctx context.Context, rule *RecommendationRule) error
	ListRecommendationRules(ctx context.Context) ([]*RecommendationRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `koanf:"driver"`

	// SQLite specific
	SQLitePath string `koanf:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     int    `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresDB       string `koanf:"postgres_db"`
	PostgresSSLMode  string `koanf:"postgres_ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}
