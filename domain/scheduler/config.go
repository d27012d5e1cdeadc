package scheduler

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the sweep cadences. The *_SCHEDULE variables accept a
// cron expression and take precedence over the interval when set.
type Config struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	CostResetInterval      time.Duration `env:"COST_RESET_INTERVAL" envDefault:"1h"`
	CircuitCleanupInterval time.Duration `env:"CIRCUIT_CLEANUP_INTERVAL" envDefault:"10m"`
	StaleJobInterval       time.Duration `env:"STALE_JOB_SWEEP_INTERVAL" envDefault:"10m"`

	// StaleJobThreshold is how long a job may sit in a non-terminal
	// status before the sweep fails it.
	StaleJobThreshold time.Duration `env:"STALE_JOB_THRESHOLD" envDefault:"30m"`

	CostResetSchedule      string `env:"COST_RESET_SCHEDULE"`
	CircuitCleanupSchedule string `env:"CIRCUIT_CLEANUP_SCHEDULE"`
	StaleJobSchedule       string `env:"STALE_JOB_SWEEP_SCHEDULE"`
}

// NewConfig loads the scheduler configuration from the environment.
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scheduler config: %w", err)
	}
	return cfg, nil
}
