package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/opensource-finance/harrier/internal/config"
	"github.com/opensource-finance/harrier/internal/domain"
)

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "HARRIER_") {
			_ = os.Unsetenv(key)
		}
	}
	// Point the dotenv layer away from any stray .env in the package dir.
	_ = os.Setenv("HARRIER_ENV_FILE", filepath.Join(os.TempDir(), "harrier-no-such.env"))
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the community tier defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Tier, convey.ShouldEqual, domain.TierCommunity)
				convey.So(cfg.Server.Port, convey.ShouldEqual, 8080)
				convey.So(cfg.Repository.Driver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Scoring.CacheTTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Scoring.SoftBudget, convey.ShouldEqual, 50*time.Millisecond)
				convey.So(cfg.Fraud.BlacklistTTL, convey.ShouldEqual, 24*time.Hour)
			})
		})

		convey.Convey("When nested environment variables are set", func() {
			_ = os.Setenv("HARRIER_SERVER__PORT", "9090")
			_ = os.Setenv("HARRIER_EVENT_BUS__CHANNEL_BUFFER_SIZE", "64")
			_ = os.Setenv("HARRIER_SCORING__SOFT_BUDGET", "75ms")
			_ = os.Setenv("HARRIER_FRAUD__MAX_ASSESSMENTS_PER_HOUR", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Port, convey.ShouldEqual, 9090)
				convey.So(cfg.EventBus.ChannelBufferSize, convey.ShouldEqual, 64)
				convey.So(cfg.Scoring.SoftBudget, convey.ShouldEqual, 75*time.Millisecond)
				convey.So(cfg.Fraud.MaxAssessmentsPerHour, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the tier is pro", func() {
			_ = os.Setenv("HARRIER_TIER", "pro")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the pro defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Repository.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Cache.Type, convey.ShouldEqual, "redis")
				convey.So(cfg.EventBus.Type, convey.ShouldEqual, "nats")
			})
		})

		convey.Convey("When a YAML file is given", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "harrier.yaml")
			yaml := "server:\n  port: 7000\nlogging:\n  level: debug\nfraud:\n  high_risk_countries: [\"XX\"]\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("HARRIER_CONFIG", path)

			convey.Convey("And an environment variable overrides part of it", func() {
				_ = os.Setenv("HARRIER_SERVER__PORT", "7001")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Port, convey.ShouldEqual, 7001)
				convey.So(cfg.Logging.Level, convey.ShouldEqual, "debug")
				convey.So(cfg.Fraud.HighRiskCountries, convey.ShouldResemble, []string{"XX"})
			})
		})

		convey.Convey("When the YAML file is missing", func() {
			_ = os.Setenv("HARRIER_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a .env file is present", func() {
			path := filepath.Join(t.TempDir(), "test.env")
			convey.So(os.WriteFile(path, []byte("HARRIER_LOGGING__FORMAT=text\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("HARRIER_ENV_FILE", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Logging.Format, convey.ShouldEqual, "text")
			})
		})

		convey.Convey("When a value is invalid", func() {
			_ = os.Setenv("HARRIER_EVENT_BUS__TYPE", "carrier-pigeon")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "carrier-pigeon")
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := domain.DefaultConfig()

		convey.Convey("Then it is valid", func() {
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})

		convey.Convey("When kafka is selected without brokers", func() {
			cfg.EventBus.Type = "kafka"

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the port is out of range", func() {
			cfg.Server.Port = 70000
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})
	})
}
