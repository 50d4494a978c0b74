package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/repository"
)

const (
	commandNotify       = "notify"
	commandNotifyConfig = "notify-config"

	defaultMaxUsers        = 10
	defaultMaxDisplayUsers = 5
)

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{
			Name:        commandNotify,
			Description: "Manage notification subscriptions",
			AdminOnly:   true,
			Subcommands: []discord.SlashCommandSubcommand{
				{
					Name:        "init",
					Description: "Create subscription message with reactions",
					Options: []discord.SlashCommandOption{
						{Name: "text-channel", Description: "Text channel to send subscription message", Type: discord.OptionTypeTextChannel, Required: true},
					},
				},
			},
		},
		{
			Name:        commandNotifyConfig,
			Description: "Configure the voice notification bot",
			AdminOnly:   true,
			Subcommands: []discord.SlashCommandSubcommand{
				{Name: "setup", Description: "Initial bot setup with default settings"},
				{
					Name:        "message",
					Description: "Set custom notification message",
					Options: []discord.SlashCommandOption{
						{Name: "text", Description: "Custom message template (use {channelName} and {userList})", Type: discord.OptionTypeString, Required: true, MaxLength: 500},
					},
				},
				{
					Name:        "add-channel",
					Description: "Add voice channel to monitor",
					Options: []discord.SlashCommandOption{
						{Name: "voice-channel", Description: "Voice channel to monitor", Type: discord.OptionTypeVoiceChannel, Required: true},
						{Name: "emoji", Description: "Emoji for reaction subscriptions", Type: discord.OptionTypeString, Required: true, MaxLength: 50},
					},
				},
				{
					Name:        "remove-channel",
					Description: "Remove monitored voice channel",
					Options: []discord.SlashCommandOption{
						{Name: "voice-channel", Description: "Voice channel to remove", Type: discord.OptionTypeVoiceChannel, Required: true},
					},
				},
				{
					Name:        "max-users",
					Description: "Set maximum users limit for notifications",
					Options: []discord.SlashCommandOption{
						{Name: "number", Description: "Maximum number of users (1-50)", Type: discord.OptionTypeInteger, Required: true, MinValue: 1, MaxValue: 50},
					},
				},
				{
					Name:        "max-display",
					Description: "Set maximum users to display in notifications",
					Options: []discord.SlashCommandOption{
						{Name: "number", Description: "Maximum users to display (1-20)", Type: discord.OptionTypeInteger, Required: true, MinValue: 1, MaxValue: 20},
					},
				},
				{Name: "list", Description: "Show current configuration"},
			},
		},
	}
}

func (s *Service) HandleSlashCommand(event discord.SlashCommandEvent) {
	if event.GuildID == "" {
		_ = event.RespondEphemeral(messageGuildOnlyCommand)
		return
	}
	ctx := context.Background()

	var err error
	switch event.CommandName {
	case commandNotify:
		err = s.handleNotifyCommand(ctx, event)
	case commandNotifyConfig:
		err = s.handleConfigCommand(ctx, event)
	default:
		_ = event.RespondEphemeral(messageUnknownSubcommand)
		return
	}
	if err != nil {
		slog.Error("slash command failed", "error", err, "command", event.CommandName, "subcommand", event.Subcommand, "guild_id", event.GuildID)
		_ = event.RespondEphemeral(messageCommandFailed)
	}
}

func (s *Service) handleNotifyCommand(ctx context.Context, event discord.SlashCommandEvent) error {
	if event.Subcommand != "init" {
		return event.RespondEphemeral(messageUnknownSubcommand)
	}
	textChannelID := event.ChannelOptions["text-channel"]

	channels, err := s.repo.ListMonitoredChannels(ctx, event.GuildID)
	if err != nil {
		return fmt.Errorf("failed to list monitored channels: %w", err)
	}

	// Drop monitored channels whose voice channel has been deleted since.
	valid := make([]repository.MonitoredChannel, 0, len(channels))
	for _, ch := range channels {
		info, err := s.dc.ResolveVoiceChannel(event.GuildID, ch.ChannelID)
		if err != nil {
			return fmt.Errorf("failed to resolve voice channel %s: %w", ch.ChannelID, err)
		}
		if info == nil {
			if err := s.removeMonitoredChannel(ctx, event.GuildID, ch.ChannelID); err != nil {
				return err
			}
			slog.Info("removed deleted voice channel from monitoring", "channel_name", ch.ChannelName, "guild_id", event.GuildID)
			continue
		}
		valid = append(valid, ch)
	}

	if len(valid) == 0 {
		return event.RespondEmbed(buildErrorEmbed(
			"No Monitored Channels",
			"No voice channels are configured for monitoring. Use `/notify-config add-channel` to add channels first.",
		))
	}

	views := monitoredChannelViews(valid)
	messageID, err := s.dc.SendChannelEmbed(textChannelID, buildSubscriptionEmbed(views))
	if err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}
	for _, ch := range valid {
		if err := s.dc.AddReaction(textChannelID, messageID, ch.Emoji); err != nil {
			slog.Error("failed to seed subscription reaction", "error", err, "emoji", ch.Emoji, "message_id", messageID)
		}
	}
	slog.Info("created subscription message", "channel_id", textChannelID, "message_id", messageID, "guild_id", event.GuildID)
	return event.RespondEmbed(buildSuccessEmbed("Subscription Message Created", fmt.Sprintf("Posted in <#%s> with %d channel reaction(s).", textChannelID, len(valid))))
}

func (s *Service) handleConfigCommand(ctx context.Context, event discord.SlashCommandEvent) error {
	if event.Subcommand == "setup" {
		return s.handleConfigSetup(ctx, event)
	}

	cfg, err := s.repo.GetGuildConfig(ctx, event.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild config: %w", err)
	}
	if cfg == nil {
		return event.RespondEphemeral(messageGuildNotSetUp)
	}

	switch event.Subcommand {
	case "message":
		cfg.CustomMessage = event.StringOptions["text"]
		if _, err := s.upsertGuildConfig(ctx, cfg); err != nil {
			return err
		}
		return event.RespondEmbed(buildSuccessEmbed("Message Updated", "Custom notification message saved."))
	case "add-channel":
		return s.handleConfigAddChannel(ctx, event)
	case "remove-channel":
		return s.handleConfigRemoveChannel(ctx, event)
	case "max-users":
		cfg.MaxUsers = int(event.IntegerOptions["number"])
		if _, err := s.upsertGuildConfig(ctx, cfg); err != nil {
			return err
		}
		return event.RespondEmbed(buildSuccessEmbed("Limit Updated", fmt.Sprintf("Notifications are sent while the channel has at most %d users.", cfg.MaxUsers)))
	case "max-display":
		cfg.MaxDisplayUsers = int(event.IntegerOptions["number"])
		if _, err := s.upsertGuildConfig(ctx, cfg); err != nil {
			return err
		}
		return event.RespondEmbed(buildSuccessEmbed("Display Limit Updated", fmt.Sprintf("Notifications list up to %d users.", cfg.MaxDisplayUsers)))
	case "list":
		channels, err := s.repo.ListMonitoredChannels(ctx, event.GuildID)
		if err != nil {
			return fmt.Errorf("failed to list monitored channels: %w", err)
		}
		return event.RespondEmbed(buildConfigEmbed(guildSettings{
			CustomMessage:   cfg.CustomMessage,
			MaxUsers:        cfg.MaxUsers,
			MaxDisplayUsers: cfg.MaxDisplayUsers,
		}, monitoredChannelViews(channels)))
	default:
		return event.RespondEphemeral(messageUnknownSubcommand)
	}
}

func (s *Service) handleConfigSetup(ctx context.Context, event discord.SlashCommandEvent) error {
	existing, err := s.repo.GetGuildConfig(ctx, event.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild config: %w", err)
	}

	input := repository.UpsertGuildConfigInput{
		GuildID:         event.GuildID,
		CustomMessage:   defaultMessageTemplate,
		MaxUsers:        defaultMaxUsers,
		MaxDisplayUsers: defaultMaxDisplayUsers,
	}
	if existing != nil {
		// Setup is safe to re-run; it keeps the guild's tuned settings.
		input.CustomMessage = existing.CustomMessage
		input.MaxUsers = existing.MaxUsers
		input.MaxDisplayUsers = existing.MaxDisplayUsers
		input.AdminRoleID = existing.AdminRoleID
	}
	if _, err := s.repo.UpsertGuildConfig(ctx, input); err != nil {
		return fmt.Errorf("failed to upsert guild config: %w", err)
	}
	slog.Info("guild configured", "guild_id", event.GuildID)
	return event.RespondEmbed(buildSuccessEmbed("Setup Complete", "The bot is configured with default settings. Use `/notify-config add-channel` to start monitoring voice channels."))
}

func (s *Service) handleConfigAddChannel(ctx context.Context, event discord.SlashCommandEvent) error {
	channelID := event.ChannelOptions["voice-channel"]
	emoji := event.StringOptions["emoji"]

	info, err := s.dc.ResolveVoiceChannel(event.GuildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to resolve voice channel: %w", err)
	}
	if info == nil {
		return event.RespondEmbed(buildErrorEmbed("Channel Not Found", "That voice channel does not exist."))
	}

	if _, err := s.repo.UpsertMonitoredChannel(ctx, repository.UpsertMonitoredChannelInput{
		GuildID:     event.GuildID,
		ChannelID:   channelID,
		ChannelName: info.Name,
		Emoji:       emoji,
	}); err != nil {
		return fmt.Errorf("failed to upsert monitored channel: %w", err)
	}
	slog.Info("added monitored channel", "channel_name", info.Name, "emoji", emoji, "guild_id", event.GuildID)
	return event.RespondEmbed(buildSuccessEmbed("Channel Added", fmt.Sprintf("Now monitoring <#%s>. Users can subscribe by reacting with %s.", channelID, emoji)))
}

func (s *Service) handleConfigRemoveChannel(ctx context.Context, event discord.SlashCommandEvent) error {
	channelID := event.ChannelOptions["voice-channel"]
	if err := s.removeMonitoredChannel(ctx, event.GuildID, channelID); err != nil {
		return err
	}
	return event.RespondEmbed(buildSuccessEmbed("Channel Removed", fmt.Sprintf("<#%s> is no longer monitored and its subscriptions were removed.", channelID)))
}

// removeMonitoredChannel unregisters the channel, deletes its subscriptions
// and ends any session still running for it.
func (s *Service) removeMonitoredChannel(ctx context.Context, guildID, channelID string) error {
	if err := s.repo.DeleteMonitoredChannel(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("failed to delete monitored channel: %w", err)
	}
	removed, err := s.repo.DeleteChannelSubscriptions(ctx, guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete channel subscriptions: %w", err)
	}
	if removed > 0 {
		slog.Info("cleaned up subscriptions for removed channel", "count", removed, "channel_id", channelID, "guild_id", guildID)
	}
	if err := s.sessions.EndSession(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("failed to end session for removed channel: %w", err)
	}
	return nil
}

func (s *Service) upsertGuildConfig(ctx context.Context, cfg *repository.GuildConfig) (*repository.GuildConfig, error) {
	updated, err := s.repo.UpsertGuildConfig(ctx, repository.UpsertGuildConfigInput{
		GuildID:         cfg.GuildID,
		Name:            cfg.Name,
		CustomMessage:   cfg.CustomMessage,
		MaxUsers:        cfg.MaxUsers,
		MaxDisplayUsers: cfg.MaxDisplayUsers,
		AdminRoleID:     cfg.AdminRoleID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert guild config: %w", err)
	}
	return updated, nil
}

func monitoredChannelViews(channels []repository.MonitoredChannel) []monitoredChannelView {
	views := make([]monitoredChannelView, 0, len(channels))
	for _, ch := range channels {
		views = append(views, monitoredChannelView{ChannelID: ch.ChannelID, Emoji: ch.Emoji})
	}
	return views
}
