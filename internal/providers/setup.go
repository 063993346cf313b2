package providers

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/leaksmap/hibp"
	"github.com/briangreenhill/leaksmap/internal/config"
	"github.com/briangreenhill/leaksmap/leakcheck"
)

// Setup creates a registry with all configured providers. LeakCheck is
// registered before HIBP
func Setup(cfg *config.Config, log zerolog.Logger) (*Registry, error) {
	registry := NewRegistry()
	httpClient := &http.Client{}

	// Register LeakCheck provider if configured
	if cfg.HasLeakCheck() {
		client, err := leakcheck.New(cfg.LeakCheck.APIKey,
			leakcheck.WithHTTPClient(httpClient),
			leakcheck.WithBaseURL(cfg.LeakCheck.BaseURL),
			leakcheck.WithTimeout(cfg.LeakCheck.Timeout),
			leakcheck.WithRetry(cfg.Retry.Max, cfg.Retry.BaseDelay),
			leakcheck.WithRateLimit(cfg.LeakCheck.Rate, cfg.LeakCheck.Burst),
			leakcheck.WithLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("leakcheck provider: %w", err)
		}
		registry.Register(client)
	}

	// Register HIBP provider if configured
	if cfg.HasHIBP() {
		client, err := hibp.New(cfg.HIBP.APIKey,
			hibp.WithHTTPClient(httpClient),
			hibp.WithBaseURL(cfg.HIBP.BaseURL),
			hibp.WithUserAgent(cfg.HIBP.UserAgent),
			hibp.WithTimeout(cfg.HIBP.Timeout),
			hibp.WithRetry(cfg.Retry.Max, cfg.Retry.BaseDelay),
			hibp.WithRateLimit(cfg.HIBP.Rate, cfg.HIBP.Burst),
			hibp.WithLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("hibp provider: %w", err)
		}
		registry.Register(client)
	}

	log.Info().Strs("providers", registry.List()).Msg("providers registered")
	return registry, nil
}
