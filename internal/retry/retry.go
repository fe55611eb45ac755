package retry

import (
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/wb-go/wbf/retry"
)

// DefaultStrategy is used when no database retry settings are configured.
var DefaultStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    200 * time.Millisecond,
	Backoff:  2,
}

// FromConfig builds the strategy for idempotent database statements.
func FromConfig(cfg *config.DatabaseConfig) retry.Strategy {
	if cfg == nil || cfg.RetryAttempts <= 0 {
		return DefaultStrategy
	}
	return retry.Strategy{
		Attempts: cfg.RetryAttempts,
		Delay:    time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		Backoff:  cfg.RetryBackoff,
	}
}
