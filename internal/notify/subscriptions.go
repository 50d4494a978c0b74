package notify

import (
	"context"
	"log/slog"

	"github.com/quietriver/voicenotify/internal/discord"
)

// HandleReactionAdd subscribes the reacting user to the voice channel whose
// registered emoji matches the reaction. Reactions with an emoji that is not
// registered for the guild are ignored.
func (s *Service) HandleReactionAdd(event discord.ReactionEvent) {
	if event.UserIsBot || event.GuildID == "" {
		return
	}
	ctx := context.Background()

	mc, err := s.repo.GetMonitoredChannelByEmoji(ctx, event.GuildID, event.Emoji)
	if err != nil {
		slog.Error("failed to resolve monitored channel by emoji", "error", err, "guild_id", event.GuildID, "emoji", event.Emoji)
		return
	}
	if mc == nil {
		slog.Debug("no monitored channel for emoji", "emoji", event.Emoji, "guild_id", event.GuildID)
		return
	}

	if err := s.repo.UpsertSubscription(ctx, event.GuildID, event.UserID, mc.ChannelID); err != nil {
		slog.Error("failed to add subscription", "error", err, "guild_id", event.GuildID, "user_id", event.UserID, "channel_id", mc.ChannelID)
		return
	}
	slog.Info("user subscribed to channel", "user_id", event.UserID, "channel_name", mc.ChannelName, "guild_id", event.GuildID)
}

// HandleReactionRemove drops the matching subscription, if any.
func (s *Service) HandleReactionRemove(event discord.ReactionEvent) {
	if event.UserIsBot || event.GuildID == "" {
		return
	}
	ctx := context.Background()

	mc, err := s.repo.GetMonitoredChannelByEmoji(ctx, event.GuildID, event.Emoji)
	if err != nil {
		slog.Error("failed to resolve monitored channel by emoji", "error", err, "guild_id", event.GuildID, "emoji", event.Emoji)
		return
	}
	if mc == nil {
		return
	}

	if err := s.repo.DeleteSubscription(ctx, event.GuildID, event.UserID, mc.ChannelID); err != nil {
		slog.Error("failed to remove subscription", "error", err, "guild_id", event.GuildID, "user_id", event.UserID, "channel_id", mc.ChannelID)
		return
	}
	slog.Info("user unsubscribed from channel", "user_id", event.UserID, "channel_name", mc.ChannelName, "guild_id", event.GuildID)
}
