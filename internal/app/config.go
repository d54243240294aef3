package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storesync/internal/notify"
)

const (
	defaultAddr     = "0.0.0.0:8080"
	defaultStoreURL = "http://localhost:8080"
)

// Config holds the complete application configuration, loadable from
// environment variables (SYNC_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SYNC_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Migrate     bool   `default:"true" usage:"Apply the embedded schema on startup"`
	MaxBodySize int64  `default:"1048576" usage:"Maximum /sync request body size in bytes" flag:"max-body-size"`
	StoreURL    string `default:"http://localhost:8080" usage:"Public base URL of the store; the login link defaults to its account page" flag:"store-url"`
	SMTP        notify.SMTPConfig
	Notify      notify.Config
	RateLimit   RateLimitConfig
	Health      HealthConfig
	Graceful    GracefulConfig
}

// HealthConfig controls the background health checks.
type HealthConfig struct {
	Interval time.Duration `default:"10s" usage:"Interval between health check runs"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from command-line flags, environment
// variables and YAML config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SYNC",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/storesync/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SYNC_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Health.Interval <= 0 {
		return nil, errors.Errorf("health interval must be positive, got %s", cfg.Health.Interval)
	}

	if cfg.StoreURL == "" {
		cfg.StoreURL = defaultStoreURL
	}
	if cfg.Notify.LoginURL == "" {
		cfg.Notify.LoginURL = notify.AccountURL(cfg.StoreURL)
	}
	if err := notify.ValidateLoginURL(cfg.Notify.LoginURL); err != nil {
		return nil, errors.Wrap(err, "notify login URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SYNC_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
