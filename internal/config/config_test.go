package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Env:                    "production",
		DatabaseURL:            "postgres://localhost:5432/voicenotify",
		DiscordToken:           "token",
		RefreshDebounce:        500 * time.Millisecond,
		InitialSendMinInterval: 5 * time.Second,
		RateLimitPruneInterval: 5 * time.Minute,
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "missing discord token",
			mutate:  func(c *Config) { c.DiscordToken = "" },
			wantErr: "DISCORD_TOKEN",
		},
		{
			name:    "non-positive debounce",
			mutate:  func(c *Config) { c.RefreshDebounce = 0 },
			wantErr: "REFRESH_DEBOUNCE_MS",
		},
		{
			name:    "negative send interval",
			mutate:  func(c *Config) { c.InitialSendMinInterval = -time.Second },
			wantErr: "INITIAL_SEND_MIN_INTERVAL_SEC",
		},
		{
			name:    "non-positive prune interval",
			mutate:  func(c *Config) { c.RateLimitPruneInterval = 0 },
			wantErr: "RATE_LIMIT_PRUNE_INTERVAL_SEC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MetricsAddrIsOptional(t *testing.T) {
	cfg := validConfig()
	cfg.MetricsListenAddr = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("metrics listener must be optional, got %v", err)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := validConfig()
	if cfg.IsDevelopment() {
		t.Fatal("production config must not report development")
	}
	cfg.Env = "development"
	if !cfg.IsDevelopment() {
		t.Fatal("development config must report development")
	}
}
