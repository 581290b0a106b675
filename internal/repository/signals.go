package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// SaveAuditLog appends an activity row.
func (r *SQLRepository) SaveAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	if entry.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `INSERT INTO audit_logs (id, entity_id, action, ip_address, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.EntityID, entry.Action, entry.IPAddress, entry.CreatedAt.UTC(),
	)
	return err
}

// CountAuditLogsByIP counts activity rows from an IP at or after since.
func (r *SQLRepository) CountAuditLogsByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_logs WHERE ip_address = ? AND created_at >= ?`
	return r.count(ctx, query, ip, since.UTC())
}

// CountEntitiesByIP counts distinct entities other than excludeEntityID seen on an IP.
func (r *SQLRepository) CountEntitiesByIP(ctx context.Context, ip string, excludeEntityID string) (int64, error) {
	query := `SELECT COUNT(DISTINCT entity_id) FROM audit_logs WHERE ip_address = ? AND entity_id <> ?`
	return r.count(ctx, query, ip, excludeEntityID)
}

// SaveFingerprint records that an entity used a device, refreshing last_seen on repeat.
func (r *SQLRepository) SaveFingerprint(ctx context.Context, entityID, hash string, fp *domain.DeviceFingerprint, at time.Time) error {
	if entityID == "" || hash == "" {
		return fmt.Errorf("%w: entity id and hash are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO device_fingerprints (
			entity_id, hash, user_agent, screen_resolution, timezone, language, platform, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, hash) DO UPDATE SET
			last_seen = excluded.last_seen
	`
	at = at.UTC()
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entityID, hash, fp.UserAgent, fp.ScreenResolution, fp.Timezone, fp.Language, fp.Platform, at, at,
	)
	return err
}

// FindFingerprintEntities lists other entities that used the same device.
func (r *SQLRepository) FindFingerprintEntities(ctx context.Context, hash string, excludeEntityID string) ([]string, error) {
	query := `SELECT DISTINCT entity_id FROM device_fingerprints WHERE hash = ? AND entity_id <> ? ORDER BY entity_id`
	return r.queryStrings(ctx, query, hash, excludeEntityID)
}

// SaveLocation appends a geolocation observation.
func (r *SQLRepository) SaveLocation(ctx context.Context, loc *domain.LocationRecord) error {
	if loc.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO entity_locations (id, entity_id, latitude, longitude, country, ip_address, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), loc.EntityID, loc.Latitude, loc.Longitude, loc.Country, loc.IPAddress, loc.RecordedAt.UTC(),
	)
	return err
}

// GetLatestLocation returns the most recent location of an entity, or nil
// when none has been recorded.
func (r *SQLRepository) GetLatestLocation(ctx context.Context, entityID string) (*domain.LocationRecord, error) {
	query := `
		SELECT entity_id, latitude, longitude, country, ip_address, recorded_at
		FROM entity_locations
		WHERE entity_id = ?
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	var loc domain.LocationRecord
	var country, ip sql.NullString
	err := r.db.QueryRowContext(ctx, r.rebind(query), entityID).Scan(
		&loc.EntityID, &loc.Latitude, &loc.Longitude, &country, &ip, &loc.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	loc.Country = country.String
	loc.IPAddress = ip.String
	return &loc, nil
}

// SaveIdentity binds a national ID to an entity.
func (r *SQLRepository) SaveIdentity(ctx context.Context, entityID, nationalID string) error {
	if entityID == "" || nationalID == "" {
		return fmt.Errorf("%w: entity id and national id are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO entity_identities (entity_id, national_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			national_id = excluded.national_id,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query), entityID, nationalID, time.Now().UTC())
	return err
}

// FindEntitiesByNationalID lists other entities registered with a national ID.
func (r *SQLRepository) FindEntitiesByNationalID(ctx context.Context, nationalID string, excludeEntityID string) ([]string, error) {
	query := `SELECT entity_id FROM entity_identities WHERE national_id = ? AND entity_id <> ? ORDER BY entity_id`
	return r.queryStrings(ctx, query, nationalID, excludeEntityID)
}
