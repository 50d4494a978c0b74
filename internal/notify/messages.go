package notify

import (
	"fmt"
	"strings"

	"github.com/quietriver/voicenotify/internal/discord"
)

const (
	embedColorInfo    = 0x0099ff
	embedColorSuccess = 0x00ff00
	embedColorWarning = 0xff9900
	embedColorError   = 0xff0000

	messageGuildNotSetUp     = ":warning: This server is not set up yet. Run `/notify-config setup` first."
	messageUnknownSubcommand = ":warning: Unknown subcommand."
	messageGuildOnlyCommand  = ":warning: This command can only be used in a server."
	messageCommandFailed     = ":warning: Something went wrong while handling the command."
)

func buildConfigEmbed(cfg guildSettings, channels []monitoredChannelView) discord.Embed {
	fields := []discord.EmbedField{
		{Name: "Custom Message", Value: "`" + cfg.CustomMessage + "`"},
		{Name: "Max Users", Value: fmt.Sprintf("%d", cfg.MaxUsers), Inline: true},
		{Name: "Max Display Users", Value: fmt.Sprintf("%d", cfg.MaxDisplayUsers), Inline: true},
	}
	if len(channels) > 0 {
		lines := make([]string, 0, len(channels))
		for _, ch := range channels {
			lines = append(lines, fmt.Sprintf("%s <#%s>", ch.Emoji, ch.ChannelID))
		}
		fields = append(fields, discord.EmbedField{
			Name:  fmt.Sprintf("Monitored Channels (%d)", len(channels)),
			Value: strings.Join(lines, "\n"),
		})
	} else {
		fields = append(fields, discord.EmbedField{
			Name:  "Monitored Channels",
			Value: "No channels configured",
		})
	}
	return discord.Embed{
		Title:      "⚙️ Bot Configuration",
		Color:      embedColorInfo,
		Fields:     fields,
		FooterText: "Voice Notify Bot",
	}
}

func buildSubscriptionEmbed(channels []monitoredChannelView) discord.Embed {
	embed := discord.Embed{
		Title:       "🔔 Voice Channel Notifications",
		Description: "React with the emoji below to subscribe to notifications when users join these voice channels:",
		Color:       embedColorSuccess,
		FooterText:  "Click the reactions below to subscribe/unsubscribe",
	}
	if len(channels) == 0 {
		embed.Description = "No voice channels are currently configured for monitoring."
		embed.Color = embedColorWarning
		return embed
	}
	lines := make([]string, 0, len(channels))
	for _, ch := range channels {
		lines = append(lines, fmt.Sprintf("%s <#%s> - React with %s", ch.Emoji, ch.ChannelID, ch.Emoji))
	}
	embed.Fields = append(embed.Fields, discord.EmbedField{
		Name:  "Available Channels",
		Value: strings.Join(lines, "\n"),
	})
	return embed
}

func buildErrorEmbed(title, description string) discord.Embed {
	return discord.Embed{
		Title:       "❌ " + title,
		Description: description,
		Color:       embedColorError,
	}
}

func buildSuccessEmbed(title, description string) discord.Embed {
	return discord.Embed{
		Title:       "✅ " + title,
		Description: description,
		Color:       embedColorSuccess,
	}
}

type guildSettings struct {
	CustomMessage   string
	MaxUsers        int
	MaxDisplayUsers int
}

type monitoredChannelView struct {
	ChannelID string
	Emoji     string
}
