package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lims/lims/internal/platform/apperr"
)

type Config struct {
	Port                    string   `mapstructure:"PORT"`
	Env                     string   `mapstructure:"ENV"`
	DatabaseURL             string   `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret               string   `mapstructure:"JWT_SECRET"`
	CORSOrigins             []string `mapstructure:"CORS_ORIGINS"`
	ResultsEncryptionSecret string   `mapstructure:"RESULTS_ENCRYPTION_SECRET"`
	ParserCommand           string   `mapstructure:"PARSER_COMMAND"`
	ParserWorkDir           string   `mapstructure:"PARSER_WORK_DIR"`
	ExtractionTimeoutSec    int      `mapstructure:"EXTRACTION_TIMEOUT_SEC"`
	ExtractionPollMs        int      `mapstructure:"EXTRACTION_POLL_MS"`
	RateLimitRPS            float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst          int      `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeoutSec       int      `mapstructure:"REQUEST_TIMEOUT_SEC"`
	MaxBodySize             string   `mapstructure:"MAX_BODY_SIZE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("PARSER_COMMAND", "extractor")
	v.SetDefault("PARSER_WORK_DIR", "/tmp/lims-extraction")
	v.SetDefault("EXTRACTION_TIMEOUT_SEC", 30)
	v.SetDefault("EXTRACTION_POLL_MS", 250)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT_SEC", 30)
	v.SetDefault("MAX_BODY_SIZE", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RESULTS_ENCRYPTION_SECRET")
	v.BindEnv("PARSER_COMMAND")
	v.BindEnv("PARSER_WORK_DIR")
	v.BindEnv("EXTRACTION_TIMEOUT_SEC")
	v.BindEnv("EXTRACTION_POLL_MS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT_SEC")
	v.BindEnv("MAX_BODY_SIZE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required: %w", apperr.ErrConfiguration)
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access.")
		log.Println("WARNING: Result encryption may be disabled if no secret is set.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ExtractionTimeout is the maximum time to wait for the external parser to
// produce its output file.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.ExtractionTimeoutSec) * time.Second
}

// ExtractionPollInterval is how often the output file is polled for.
func (c *Config) ExtractionPollInterval() time.Duration {
	return time.Duration(c.ExtractionPollMs) * time.Millisecond
}

// RequestTimeout is the per-request deadline applied by the HTTP middleware.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// RESULTS_ENCRYPTION_SECRET and JWT_SECRET are required so that result data
// is encrypted at rest and real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.ResultsEncryptionSecret == "" {
			return fmt.Errorf("RESULTS_ENCRYPTION_SECRET is required when ENV=%q: %w", c.Env, apperr.ErrConfiguration)
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q: %w", c.Env, apperr.ErrConfiguration)
		}
	}
	if c.ExtractionTimeoutSec <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT_SEC must be positive, got %d: %w", c.ExtractionTimeoutSec, apperr.ErrConfiguration)
	}
	if c.ExtractionPollMs <= 0 {
		return fmt.Errorf("EXTRACTION_POLL_MS must be positive, got %d: %w", c.ExtractionPollMs, apperr.ErrConfiguration)
	}
	return nil
}
