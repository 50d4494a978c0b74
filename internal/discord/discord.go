package discord

import "context"

// Occupant is one member currently connected to a voice channel.
type Occupant struct {
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	IsBot       bool
}

// VoiceChannelInfo describes a live voice channel; nil means the channel is gone.
type VoiceChannelInfo struct {
	ChannelID string
	Name      string
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type ReactionEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	UserIsBot bool
	Emoji     string
}

type SlashCommandOptionType int

const (
	OptionTypeString SlashCommandOptionType = iota
	OptionTypeInteger
	OptionTypeVoiceChannel
	OptionTypeTextChannel
)

type SlashCommandOption struct {
	Name        string
	Description string
	Type        SlashCommandOptionType
	Required    bool
	MinValue    int
	MaxValue    int
	MaxLength   int
}

type SlashCommandSubcommand struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	AdminOnly   bool
	Subcommands []SlashCommandSubcommand
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	Subcommand       string
	UserID           string
	StringOptions    map[string]string
	IntegerOptions   map[string]int64
	ChannelOptions   map[string]string
	RespondEphemeral func(content string) error
	RespondEmbed     func(embed Embed) error
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	FooterText  string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)

	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterReactionAddHandler(handler func(ReactionEvent))
	RegisterReactionRemoveHandler(handler func(ReactionEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGlobalSlashCommands(defs []SlashCommandDefinition) error

	// ResolveVoiceChannel returns nil without error when the channel no longer exists.
	ResolveVoiceChannel(guildID, channelID string) (*VoiceChannelInfo, error)
	ListVoiceChannelOccupants(guildID, channelID string) ([]Occupant, error)

	// SendDirectMessage returns ErrUnreachable when the recipient cannot receive DMs.
	SendDirectMessage(userID, content string) (messageID string, err error)
	// EditDirectMessage returns ErrMessageNotFound when the stored message id no
	// longer resolves, and ErrUnreachable when the DM channel cannot be opened.
	EditDirectMessage(userID, messageID, content string) error

	SendChannelEmbed(channelID string, embed Embed) (messageID string, err error)
	AddReaction(channelID, messageID, emoji string) error
}
