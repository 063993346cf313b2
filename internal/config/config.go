// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogPretty switches to human-readable console output
	LogPretty bool `env:"LOG_PRETTY" envDefault:"false"`

	LookupTimeout      time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"30s"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	CachePurgeInterval time.Duration `env:"CACHE_PURGE_INTERVAL" envDefault:"10m"`

	Retry     RetryConfig     `envPrefix:"RETRY_"`
	LeakCheck LeakCheckConfig `envPrefix:"LEAKCHECK_"`
	HIBP      HIBPConfig      `envPrefix:"HIBP_"`
}

// RetryConfig applies to every provider
type RetryConfig struct {
	Max       uint64        `env:"MAX" envDefault:"2"`
	BaseDelay time.Duration `env:"BASE_DELAY" envDefault:"500ms"`
}

// LeakCheckConfig holds LeakCheck-specific configuration
type LeakCheckConfig struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL" envDefault:"https://leakcheck.io/api/public"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	Rate    float64       `env:"RATE" envDefault:"1"`
	Burst   int           `env:"BURST" envDefault:"1"`
}

// HIBPConfig holds HaveIBeenPwned-specific configuration
type HIBPConfig struct {
	APIKey    string        `env:"API_KEY"`
	BaseURL   string        `env:"BASE_URL" envDefault:"https://haveibeenpwned.com/api/v3"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
	Rate      float64       `env:"RATE" envDefault:"0.15"`
	Burst     int           `env:"BURST" envDefault:"1"`
	UserAgent string        `env:"USER_AGENT" envDefault:"leaksmap/1.0"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1-65535, got %d", c.Port))
	}
	if c.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LOOKUP_TIMEOUT must be positive, got %s", c.LookupTimeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL))
	}
	if c.LeakCheck.Rate < 0 || c.HIBP.Rate < 0 {
		errs = append(errs, errors.New("provider RATE must not be negative"))
	}
	return errors.Join(errs...)
}

// HasLeakCheck returns true if a LeakCheck API key is set
func (c *Config) HasLeakCheck() bool {
	return c.LeakCheck.APIKey != ""
}

// HasHIBP returns true if a HaveIBeenPwned API key is set
func (c *Config) HasHIBP() bool {
	return c.HIBP.APIKey != ""
}

// Validate ensures the configuration has at least one provider configured
func (c *Config) Validate() error {
	if !c.HasLeakCheck() && !c.HasHIBP() {
		return fmt.Errorf("no providers configured - please set LEAKCHECK_API_KEY or HIBP_API_KEY")
	}
	return nil
}
