package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quietriver/voicenotify/internal/config"
	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/quietriver/voicenotify/internal/repository"
)

// Service reacts to voice occupancy deltas: it decides session start,
// continuation and end, fans initial DMs out to subscribers and keeps
// tracked DMs refreshed through the debounce dispatcher.
type Service struct {
	cfg        *config.Config
	repo       repository.Repository
	dc         discord.Client
	sessions   *SessionManager
	dispatcher *Dispatcher
	updater    *Updater
	ledger     *RateLimitLedger
	metrics    *observability.Metrics
	botUserID  string
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	dc discord.Client,
	sessions *SessionManager,
	dispatcher *Dispatcher,
	updater *Updater,
	ledger *RateLimitLedger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		cfg:        cfg,
		repo:       repo,
		dc:         dc,
		sessions:   sessions,
		dispatcher: dispatcher,
		updater:    updater,
		ledger:     ledger,
		metrics:    metrics,
	}
}

func (s *Service) SetBotUserID(botUserID string) {
	s.botUserID = botUserID
}

// HandleVoiceStateUpdate is the gateway entry point for occupancy changes.
// A move between channels is a leave from the old channel immediately
// followed by a join to the new one, each evaluated independently.
func (s *Service) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	if event.UserIsBot || event.GuildID == "" {
		return
	}
	ctx := context.Background()

	switch {
	case event.BeforeChannelID == "" && event.AfterChannelID != "":
		s.handleUserJoined(ctx, event.GuildID, event.AfterChannelID)
	case event.BeforeChannelID != "" && event.AfterChannelID == "":
		s.handleUserLeft(ctx, event.GuildID, event.BeforeChannelID)
	case event.BeforeChannelID != "" && event.AfterChannelID != "" && event.BeforeChannelID != event.AfterChannelID:
		s.handleUserLeft(ctx, event.GuildID, event.BeforeChannelID)
		s.handleUserJoined(ctx, event.GuildID, event.AfterChannelID)
	}
}

// channelContext gathers everything the state machine needs for one
// occupancy change on one channel. ok is false when the channel is not
// eligible: guild not configured, channel not monitored, or the non-bot
// occupant count above the guild limit. None of those are errors.
type channelContext struct {
	cfg       *repository.GuildConfig
	monitored *repository.MonitoredChannel
	occupants []discord.Occupant
}

func (s *Service) resolveChannelContext(ctx context.Context, guildID, channelID string) (*channelContext, bool) {
	cfg, err := s.repo.GetGuildConfig(ctx, guildID)
	if err != nil {
		slog.Error("failed to load guild config", "error", err, "guild_id", guildID)
		return nil, false
	}
	if cfg == nil {
		return nil, false
	}
	mc, err := s.repo.GetMonitoredChannel(ctx, guildID, channelID)
	if err != nil {
		slog.Error("failed to load monitored channel", "error", err, "guild_id", guildID, "channel_id", channelID)
		return nil, false
	}
	if mc == nil {
		return nil, false
	}

	occupants, err := s.dc.ListVoiceChannelOccupants(guildID, channelID)
	if err != nil {
		slog.Error("failed to list voice channel occupants", "error", err, "guild_id", guildID, "channel_id", channelID)
		return nil, false
	}
	present := nonBotOccupants(occupants)
	if len(present) > cfg.MaxUsers {
		slog.Debug("channel occupancy exceeds guild limit, ignoring event",
			"channel_id", channelID, "occupants", len(present), "max_users", cfg.MaxUsers)
		return nil, false
	}

	return &channelContext{cfg: cfg, monitored: mc, occupants: present}, true
}

func (s *Service) handleUserJoined(ctx context.Context, guildID, channelID string) {
	cc, ok := s.resolveChannelContext(ctx, guildID, channelID)
	if !ok {
		return
	}
	sess, err := s.sessions.GetActiveSession(ctx, guildID, channelID)
	if err != nil {
		slog.Error("failed to resolve active session", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}

	switch {
	case sess == nil && len(cc.occupants) >= 1:
		s.startNotificationSession(ctx, guildID, cc)
	case sess != nil && len(cc.occupants) > 1:
		s.enqueueRefresh(sess, cc)
	}
	slog.Info("processed voice join", "channel_id", channelID, "guild_id", guildID, "occupants", len(cc.occupants))
}

func (s *Service) handleUserLeft(ctx context.Context, guildID, channelID string) {
	cc, ok := s.resolveChannelContext(ctx, guildID, channelID)
	if !ok {
		return
	}

	if len(cc.occupants) == 0 {
		if err := s.sessions.EndSession(ctx, guildID, channelID); err != nil {
			slog.Error("failed to end session for empty channel", "error", err, "guild_id", guildID, "channel_id", channelID)
		}
		return
	}

	sess, err := s.sessions.GetActiveSession(ctx, guildID, channelID)
	if err != nil {
		slog.Error("failed to resolve active session", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}
	if sess != nil {
		s.enqueueRefresh(sess, cc)
	}
}

// startNotificationSession starts a session for the first occupant(s) and
// fans initial DMs out to every subscriber that is not already present and
// not rate limited. Send failures never block the remaining subscribers.
func (s *Service) startNotificationSession(ctx context.Context, guildID string, cc *channelContext) {
	sess, err := s.sessions.StartSession(ctx, guildID, cc.monitored.ChannelID)
	if err != nil {
		slog.Error("failed to start notification session", "error", err, "guild_id", guildID, "channel_id", cc.monitored.ChannelID)
		return
	}

	subscribers, err := s.repo.ListChannelSubscribers(ctx, guildID, cc.monitored.ChannelID)
	if err != nil {
		slog.Error("failed to list channel subscribers", "error", err, "guild_id", guildID, "channel_id", cc.monitored.ChannelID)
		return
	}
	if len(subscribers) == 0 {
		slog.Debug("no subscribers for channel", "channel_name", cc.monitored.ChannelName)
		return
	}

	snapshot := SnapshotOccupants(cc.occupants)
	userList := FormatUserList(occupantDisplayNames(cc.occupants), cc.cfg.MaxDisplayUsers)
	content := RenderNotification(cc.cfg.CustomMessage, cc.monitored.ChannelName, userList, cc.monitored.Emoji)
	present := occupantSet(cc.occupants)

	for _, sub := range subscribers {
		if _, ok := present[sub.UserID]; ok {
			slog.Debug("subscriber is already in the channel, skipping notification", "user_id", sub.UserID, "channel_id", cc.monitored.ChannelID)
			continue
		}
		if !s.ledger.Allow(guildID, sub.UserID) {
			slog.Debug("rate limiting initial notification", "user_id", sub.UserID, "guild_id", guildID)
			s.metrics.InitialSends.WithLabelValues("rate_limited").Inc()
			continue
		}
		s.sendInitialDM(ctx, sess, cc, sub.UserID, content, snapshot)
	}

	slog.Info("started notification session",
		"channel_name", cc.monitored.ChannelName,
		"session_id", sess.SessionID,
		"subscribers", len(subscribers))
}

func (s *Service) sendInitialDM(ctx context.Context, sess *repository.ChannelSession, cc *channelContext, userID, content string, snapshot []repository.OccupantSnapshot) {
	messageID, err := s.dc.SendDirectMessage(userID, content)
	if err != nil {
		if errors.Is(err, discord.ErrUnreachable) {
			slog.Debug("cannot send DM to subscriber", "user_id", userID)
			s.metrics.InitialSends.WithLabelValues("unreachable").Inc()
			return
		}
		slog.Error("failed to send initial DM", "error", err, "user_id", userID)
		s.metrics.InitialSends.WithLabelValues("failed").Inc()
		return
	}

	if _, err := s.sessions.CreateNotification(ctx, repository.CreateNotificationInput{
		GuildID:   sess.GuildID,
		ChannelID: sess.ChannelID,
		UserID:    userID,
		MessageID: messageID,
		SessionID: sess.SessionID,
		UserList:  snapshot,
	}); err != nil {
		slog.Error("failed to record notification state", "error", err, "user_id", userID, "session_id", sess.SessionID)
		return
	}
	s.ledger.MarkSent(sess.GuildID, userID)
	s.metrics.InitialSends.WithLabelValues("sent").Inc()
}

// enqueueRefresh debounces a notification refresh for the session. Rapid
// membership churn on the same session collapses into one refresh carrying
// the most recent occupant snapshot.
func (s *Service) enqueueRefresh(sess *repository.ChannelSession, cc *channelContext) {
	key := fmt.Sprintf("%s-%s-%s", sess.GuildID, sess.ChannelID, sess.SessionID)
	s.dispatcher.Schedule(key, func() {
		s.updater.RefreshSession(context.Background(), sess, cc.occupants, cc.cfg, cc.monitored)
		s.metrics.PendingRefreshes.Set(float64(s.dispatcher.Len()))
	}, s.cfg.RefreshDebounce)
	s.metrics.PendingRefreshes.Set(float64(s.dispatcher.Len()))
}

// InitializeOnStartup runs the one-time session reconciliation pass and
// starts the rate limit prune loop. It must complete before gateway handlers
// are registered.
func (s *Service) InitializeOnStartup(ctx context.Context) error {
	if err := s.sessions.ReconcileOnStartup(ctx, s.dc); err != nil {
		return fmt.Errorf("startup session reconciliation failed: %w", err)
	}
	s.ledger.StartPruning(s.cfg.RateLimitPruneInterval)
	slog.Info("session reconciliation completed on startup")
	return nil
}

// Shutdown drains the dispatcher so the last batched refresh is delivered,
// then releases process-local state. Storage and gateway connections must
// stay open until this returns.
func (s *Service) Shutdown() {
	s.dispatcher.Flush()
	s.ledger.Close()
	s.sessions.ClearCache()
	slog.Info("notification service shutdown completed")
}
