// Package repository provides the SQL fraud store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

var _ domain.Repository = (*SQLRepository)(nil)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration and applies the schema.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment appends a fraud assessment.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.FraudAssessment) error {
	if a.ID == "" || a.EntityID == "" {
		return fmt.Errorf("%w: assessment id and entity id are required", ErrInvalidInput)
	}

	indicators, err := json.Marshal(a.Indicators)
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}

	query := `
		INSERT INTO fraud_assessments (
			id, entity_id, overall_risk_score, risk_level, confidence,
			recommended_action, indicators, processing_time_ms, model_version, assessed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.EntityID, a.OverallRiskScore, string(a.RiskLevel), a.Confidence,
		string(a.RecommendedAction), string(indicators), a.ProcessingTimeMs, a.ModelVersion,
		a.AssessedAt.UTC(),
	)
	return err
}

// GetAssessment retrieves a fraud assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.FraudAssessment, error) {
	query := `
		SELECT id, entity_id, overall_risk_score, risk_level, confidence,
			   recommended_action, indicators, processing_time_ms, model_version, assessed_at
		FROM fraud_assessments
		WHERE id = ?
	`

	var a domain.FraudAssessment
	var riskLevel, action, indicators string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.EntityID, &a.OverallRiskScore, &riskLevel, &a.Confidence,
		&action, &indicators, &a.ProcessingTimeMs, &a.ModelVersion, &a.AssessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.RiskLevel = domain.FraudRiskLevel(riskLevel)
	a.RecommendedAction = domain.FraudAction(action)
	if err := json.Unmarshal([]byte(indicators), &a.Indicators); err != nil {
		return nil, fmt.Errorf("decode indicators: %w", err)
	}

	return &a, nil
}

// CountAssessments counts assessments of an entity at or after since.
func (r *SQLRepository) CountAssessments(ctx context.Context, entityID string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM fraud_assessments WHERE entity_id = ? AND assessed_at >= ?`
	return r.count(ctx, query, entityID, since.UTC())
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
