package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/quietriver/voicenotify/internal/config"
)

type envConfig struct {
	Env                       string `env:"ENV" envDefault:"production"`
	DatabaseURL               string `env:"DATABASE_URL,required"`
	DiscordToken              string `env:"DISCORD_TOKEN,required"`
	MetricsListenAddr         string `env:"METRICS_LISTEN_ADDR"`
	RefreshDebounceMs         int    `env:"REFRESH_DEBOUNCE_MS" envDefault:"500"`
	InitialSendMinIntervalSec int    `env:"INITIAL_SEND_MIN_INTERVAL_SEC" envDefault:"5"`
	RateLimitPruneIntervalSec int    `env:"RATE_LIMIT_PRUNE_INTERVAL_SEC" envDefault:"300"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                    raw.Env,
		DatabaseURL:            raw.DatabaseURL,
		DiscordToken:           raw.DiscordToken,
		MetricsListenAddr:      raw.MetricsListenAddr,
		RefreshDebounce:        time.Duration(raw.RefreshDebounceMs) * time.Millisecond,
		InitialSendMinInterval: time.Duration(raw.InitialSendMinIntervalSec) * time.Second,
		RateLimitPruneInterval: time.Duration(raw.RateLimitPruneIntervalSec) * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
