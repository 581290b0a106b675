package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `koanf:"server"`

	// Tier determines which backing services are used
	Tier Tier `koanf:"tier"`

	// Component configurations
	Repository RepositoryConfig `koanf:"repository"`
	Cache      CacheConfig      `koanf:"cache"`
	EventBus   EventBusConfig   `koanf:"event_bus"`

	// Engines
	Scoring   ScoringConfig  `koanf:"scoring"`
	Fraud     FraudConfig    `koanf:"fraud"`
	Providers ProviderConfig `koanf:"providers"`

	// Observability
	Logging LoggingConfig `koanf:"logging"`
	Tracing TracingConfig `koanf:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ServiceName  string `koanf:"service_name"`
	ExporterType string `koanf:"exporter_type"` // stdout, otlp, jaeger
	Endpoint     string `koanf:"endpoint"`
}

// ScoringConfig tunes the scoring engine.
type ScoringConfig struct {
	CacheTTL   time.Duration `koanf:"cache_ttl"`
	SoftBudget time.Duration `koanf:"soft_budget"` // logged, never enforced
}

// FraudConfig tunes the fraud detection engine.
type FraudConfig struct {
	MaxAssessmentsPerHour int           `koanf:"max_assessments_per_hour"`
	MaxAssessmentsPerDay  int           `koanf:"max_assessments_per_day"`
	MaxRequestsPerIPHour  int           `koanf:"max_requests_per_ip_hour"`
	ImpossibleTravelKmh   float64       `koanf:"impossible_travel_kmh"`
	BlacklistTTL          time.Duration `koanf:"blacklist_ttl"`
	AnomalyTrees          int           `koanf:"anomaly_trees"`
	HighRiskCountries     []string      `koanf:"high_risk_countries"` // ISO 3166 alpha-2
}

// ProviderConfig controls external data aggregation.
type ProviderConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	MaxRetries   int           `koanf:"max_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	Simulated    bool          `koanf:"simulated"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-memory cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: ScoringConfig{
			CacheTTL:   5 * time.Minute,
			SoftBudget: 50 * time.Millisecond,
		},
		Fraud: FraudConfig{
			MaxAssessmentsPerHour: 5,
			MaxAssessmentsPerDay:  20,
			MaxRequestsPerIPHour:  5,
			ImpossibleTravelKmh:   1000,
			BlacklistTTL:          24 * time.Hour,
			AnomalyTrees:          100,
			HighRiskCountries:     []string{"AF", "IR", "KP", "MM", "SY", "YE"},
		},
		Providers: ProviderConfig{
			Timeout:      10 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 200 * time.Millisecond,
			Simulated:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Providers.Simulated = false
	cfg.Tracing.Enabled = true
	return cfg
}
