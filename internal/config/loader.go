// Package config loads the Harrier configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opensource-finance/harrier/internal/domain"
)

const (
	envPrefix     = "HARRIER_"
	envConfigFile = "HARRIER_CONFIG"
	envDotFile    = "HARRIER_ENV_FILE"
)

// Load builds a Config by layering, from lowest to highest precedence:
//  1. tier defaults (domain.DefaultConfig, or domain.ProConfig when tier is pro)
//  2. YAML file named by HARRIER_CONFIG
//  3. .env file (HARRIER_ENV_FILE, default ".env"); never overrides the real environment
//  4. environment variables, HARRIER_SECTION__KEY
func Load(ctx context.Context) (*domain.Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	dotenv := os.Getenv(envDotFile)
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, dotenv, err)
	}

	// HARRIER_EVENT_BUS__NATS_URL -> event_bus.nats_url
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := domain.DefaultConfig()
	if domain.Tier(k.String("tier")) == domain.TierPro {
		cfg = domain.ProConfig()
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a configuration for values no component can run with.
func Validate(cfg *domain.Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		add("server.port %d out of range", cfg.Server.Port)
	}
	switch cfg.Tier {
	case domain.TierCommunity, domain.TierPro:
	default:
		add("unknown tier %q", cfg.Tier)
	}
	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		add("unknown repository.driver %q", cfg.Repository.Driver)
	}
	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		add("unknown cache.type %q", cfg.Cache.Type)
	}
	switch cfg.EventBus.Type {
	case "channel", "nats":
	case "kafka":
		if len(cfg.EventBus.KafkaBrokers) == 0 {
			add("event_bus.kafka_brokers required for kafka")
		}
	default:
		add("unknown event_bus.type %q", cfg.EventBus.Type)
	}
	if cfg.Scoring.CacheTTL <= 0 {
		add("scoring.cache_ttl must be positive")
	}
	if cfg.Providers.MaxRetries < 0 {
		add("providers.max_retries must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
