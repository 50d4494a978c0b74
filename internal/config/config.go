package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                    string
	DatabaseURL            string
	DiscordToken           string
	MetricsListenAddr      string
	RefreshDebounce        time.Duration
	InitialSendMinInterval time.Duration
	RateLimitPruneInterval time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.RefreshDebounce <= 0 {
		return fmt.Errorf("REFRESH_DEBOUNCE_MS must be positive, got %s", c.RefreshDebounce)
	}
	if c.InitialSendMinInterval <= 0 {
		return fmt.Errorf("INITIAL_SEND_MIN_INTERVAL_SEC must be positive, got %s", c.InitialSendMinInterval)
	}
	if c.RateLimitPruneInterval <= 0 {
		return fmt.Errorf("RATE_LIMIT_PRUNE_INTERVAL_SEC must be positive, got %s", c.RateLimitPruneInterval)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
