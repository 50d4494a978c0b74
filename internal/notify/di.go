package notify

import (
	"github.com/quietriver/voicenotify/internal/config"
	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/quietriver/voicenotify/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		metrics := do.MustInvoke[*observability.Metrics](i)

		sessions := NewSessionManager(repo, metrics)
		updater := NewUpdater(dc, sessions, metrics)
		ledger := NewRateLimitLedger(cfg.InitialSendMinInterval)
		return NewService(cfg, repo, dc, sessions, NewDispatcher(), updater, ledger, metrics), nil
	})
}
