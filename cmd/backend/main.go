package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	configloader "github.com/quietriver/voicenotify/external/config"
	"github.com/quietriver/voicenotify/external/discord"
	repositoryimpl "github.com/quietriver/voicenotify/external/repository"
	"github.com/quietriver/voicenotify/internal/config"
	discordpkg "github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/notify"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	startupTimeout        = 30 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	if cfg.MetricsListenAddr != "" {
		startMetricsServer(cfg.MetricsListenAddr)
	}

	slog.Info("startup: launching discord bot")
	runBot(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, observability.NewMetrics(prometheus.DefaultRegisterer, "voicenotify"))
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	notify.RegisterDI(injector)

	return injector
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	go func() {
		slog.Info("metrics listener started", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics listener failed", "error", err)
		}
	}()
}

func runBot(injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	service, err := do.Invoke[*notify.Service](injector)
	if err != nil {
		slog.Error("failed to resolve notification service", "error", err)
		os.Exit(1)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancelConnect()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(connectCtx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	service.SetBotUserID(botUserID)

	// Reconcile persisted sessions against live voice state before any
	// gateway events are handled, so stale sessions never receive refreshes.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	if err := service.InitializeOnStartup(startupCtx); err != nil {
		cancelStartup()
		slog.Error("startup reconciliation failed", "error", err)
		os.Exit(1)
	}
	cancelStartup()

	dc.RegisterVoiceStateUpdateHandler(service.HandleVoiceStateUpdate)
	dc.RegisterReactionAddHandler(service.HandleReactionAdd)
	dc.RegisterReactionRemoveHandler(service.HandleReactionRemove)
	dc.RegisterSlashCommandHandler(service.HandleSlashCommand)

	if err := dc.UpsertGlobalSlashCommands(notify.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err)
		os.Exit(1)
	}
	slog.Info("discord handlers registered", "commands", []string{"notify", "notify-config"})

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
	service.Shutdown()
}
