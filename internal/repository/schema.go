package repository

// Schema definitions for the Harrier fraud store.
// Compatible with both SQLite and PostgreSQL. Timestamps are written in UTC.

const schemaFraudAssessments = `
CREATE TABLE IF NOT EXISTS fraud_assessments (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    overall_risk_score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    confidence REAL NOT NULL,
    recommended_action TEXT NOT NULL,
    indicators TEXT NOT NULL,
    processing_time_ms INTEGER NOT NULL,
    model_version TEXT NOT NULL,
    assessed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_assessments_entity ON fraud_assessments(entity_id, assessed_at);
`

const schemaAuditLogs = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    action TEXT NOT NULL,
    ip_address TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_ip ON audit_logs(ip_address, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_id);
`

const schemaDeviceFingerprints = `
CREATE TABLE IF NOT EXISTS device_fingerprints (
    entity_id TEXT NOT NULL,
    hash TEXT NOT NULL,
    user_agent TEXT,
    screen_resolution TEXT,
    timezone TEXT,
    language TEXT,
    platform TEXT,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    PRIMARY KEY (entity_id, hash)
);

CREATE INDEX IF NOT EXISTS idx_device_fingerprints_hash ON device_fingerprints(hash);
`

const schemaLocations = `
CREATE TABLE IF NOT EXISTS entity_locations (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    country TEXT,
    ip_address TEXT,
    recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entity_locations_entity ON entity_locations(entity_id, recorded_at);
`

const schemaIdentities = `
CREATE TABLE IF NOT EXISTS entity_identities (
    entity_id TEXT PRIMARY KEY,
    national_id TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entity_identities_national_id ON entity_identities(national_id);
`

const schemaBlacklist = `
CREATE TABLE IF NOT EXISTS blacklist (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blacklist_entity ON blacklist(entity_id, expires_at);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    assessment_id TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    risk_score REAL NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_entity ON fraud_alerts(entity_id);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS investigation_cases (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    assessment_id TEXT NOT NULL,
    priority TEXT NOT NULL,
    status TEXT NOT NULL,
    summary TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_investigation_cases_entity ON investigation_cases(entity_id, created_at);
`

// schemaRecommendationRules holds CEL rules that turn weak factors into advice.
const schemaRecommendationRules = `
CREATE TABLE IF NOT EXISTS recommendation_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    expression TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaFraudAssessments,
		schemaAuditLogs,
		schemaDeviceFingerprints,
		schemaLocations,
		schemaIdentities,
		schemaBlacklist,
		schemaAlerts,
		schemaCases,
		schemaRecommendationRules,
	}
}
