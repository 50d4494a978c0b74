package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/quietriver/voicenotify/internal/discord"
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string

	dmMu       sync.Mutex
	dmChannels map[string]string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token:      token,
		dmChannels: make(map[string]string),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMessageReactions |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentsDirectMessages)
	s.State.TrackVoice = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil || vs.GuildID == "" || vs.UserID == "" {
			return
		}
		beforeChannelID := ""
		if vs.BeforeUpdate != nil {
			beforeChannelID = vs.BeforeUpdate.ChannelID
		}
		afterChannelID := vs.ChannelID
		if beforeChannelID == afterChannelID {
			// Mute/deafen toggles produce updates with an unchanged channel.
			return
		}
		handler(discordpkg.VoiceStateEvent{
			GuildID:         vs.GuildID,
			UserID:          vs.UserID,
			UserIsBot:       c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			BeforeChannelID: beforeChannelID,
			AfterChannelID:  afterChannelID,
		})
	})
}

func (c *Client) RegisterReactionAddHandler(handler func(discordpkg.ReactionEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if r == nil {
			return
		}
		handler(c.reactionEvent(r.MessageReaction))
	})
}

func (c *Client) RegisterReactionRemoveHandler(handler func(discordpkg.ReactionEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
		if r == nil {
			return
		}
		handler(c.reactionEvent(r.MessageReaction))
	})
}

func (c *Client) reactionEvent(r *discordgo.MessageReaction) discordpkg.ReactionEvent {
	return discordpkg.ReactionEvent{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		UserIsBot: c.resolveUserIsBot(r.GuildID, r.UserID, nil),
		Emoji:     emojiDisplayString(&r.Emoji),
	}
}

// emojiDisplayString renders an emoji the way users type it, so reaction
// events compare equal to the emoji stored from /notify-config add-channel.
func emojiDisplayString(e *discordgo.Emoji) string {
	if e.ID == "" {
		return e.Name
	}
	if e.Animated {
		return "<a:" + e.Name + ":" + e.ID + ">"
	}
	return "<:" + e.Name + ":" + e.ID + ">"
}

// emojiAPIName converts a display emoji back to the name:id form the REST
// reaction endpoints expect. Unicode emoji pass through unchanged.
func emojiAPIName(emoji string) string {
	if !strings.HasPrefix(emoji, "<") || !strings.HasSuffix(emoji, ">") {
		return emoji
	}
	inner := strings.TrimPrefix(strings.TrimSuffix(emoji, ">"), "<")
	return strings.TrimPrefix(inner, ":")
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
		}
		if userID == "" {
			return
		}

		event := discordpkg.SlashCommandEvent{
			GuildID:        ic.GuildID,
			ChannelID:      ic.ChannelID,
			CommandName:    data.Name,
			UserID:         userID,
			StringOptions:  make(map[string]string),
			IntegerOptions: make(map[string]int64),
			ChannelOptions: make(map[string]string),
		}
		options := data.Options
		if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			event.Subcommand = options[0].Name
			options = options[0].Options
		}
		for _, opt := range options {
			switch opt.Type {
			case discordgo.ApplicationCommandOptionString:
				event.StringOptions[opt.Name] = opt.StringValue()
			case discordgo.ApplicationCommandOptionInteger:
				event.IntegerOptions[opt.Name] = opt.IntValue()
			case discordgo.ApplicationCommandOptionChannel:
				event.ChannelOptions[opt.Name] = opt.ChannelValue(nil).ID
			}
		}
		event.RespondEphemeral = func(content string) error {
			return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: content,
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			})
		}
		event.RespondEmbed = func(embed discordpkg.Embed) error {
			return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Embeds: []*discordgo.MessageEmbed{buildMessageEmbed(embed)},
					Flags:  discordgo.MessageFlagsEphemeral,
				},
			})
		}

		handler(event)
	})
}

func (c *Client) UpsertGlobalSlashCommands(defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	commands := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, def := range defs {
		commands = append(commands, buildApplicationCommand(def))
	}
	_, err := c.session.ApplicationCommandBulkOverwrite(appID, "", commands)
	return err
}

func buildApplicationCommand(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	if def.AdminOnly {
		perms := int64(discordgo.PermissionAdministrator)
		cmd.DefaultMemberPermissions = &perms
	}
	for _, sub := range def.Subcommands {
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        sub.Name,
			Description: sub.Description,
			Options:     buildCommandOptions(sub.Options),
		})
	}
	return cmd
}

func buildCommandOptions(options []discordpkg.SlashCommandOption) []*discordgo.ApplicationCommandOption {
	out := make([]*discordgo.ApplicationCommandOption, 0, len(options))
	for _, opt := range options {
		built := &discordgo.ApplicationCommandOption{
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		}
		switch opt.Type {
		case discordpkg.OptionTypeString:
			built.Type = discordgo.ApplicationCommandOptionString
			if opt.MaxLength > 0 {
				built.MaxLength = opt.MaxLength
			}
		case discordpkg.OptionTypeInteger:
			built.Type = discordgo.ApplicationCommandOptionInteger
			if opt.MinValue != 0 || opt.MaxValue != 0 {
				minValue := float64(opt.MinValue)
				built.MinValue = &minValue
				built.MaxValue = float64(opt.MaxValue)
			}
		case discordpkg.OptionTypeVoiceChannel:
			built.Type = discordgo.ApplicationCommandOptionChannel
			built.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice}
		case discordpkg.OptionTypeTextChannel:
			built.Type = discordgo.ApplicationCommandOptionChannel
			built.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
		}
		out = append(out, built)
	}
	return out
}

func (c *Client) ResolveVoiceChannel(guildID, channelID string) (*discordpkg.VoiceChannelInfo, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.GuildID == guildID {
			return &discordpkg.VoiceChannelInfo{ChannelID: channel.ID, Name: channel.Name}, nil
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil {
		if isRESTNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if channel == nil || channel.GuildID != guildID {
		return nil, nil
	}
	return &discordpkg.VoiceChannelInfo{ChannelID: channel.ID, Name: channel.Name}, nil
}

func (c *Client) ListVoiceChannelOccupants(guildID, channelID string) ([]discordpkg.Occupant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, nil
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil, nil
	}
	occupants := make([]discordpkg.Occupant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != channelID || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		occupants = append(occupants, c.resolveOccupant(guildID, state))
	}
	return occupants, nil
}

func (c *Client) resolveOccupant(guildID string, state *discordgo.VoiceState) discordpkg.Occupant {
	occupant := discordpkg.Occupant{
		UserID: state.UserID,
		IsBot:  c.resolveUserIsBot(guildID, state.UserID, state),
	}

	var user *discordgo.User
	member := c.resolveGuildMember(guildID, state.UserID)
	if member == nil && state.Member != nil {
		member = state.Member
	}
	if member != nil {
		occupant.DisplayName = member.Nick
		user = member.User
	}
	if user == nil {
		user, _ = c.session.User(state.UserID)
	}
	if user != nil {
		occupant.Username = user.Username
		if occupant.DisplayName == "" {
			occupant.DisplayName = preferredDiscordName(user.GlobalName, user.Username, state.UserID)
		}
		occupant.AvatarURL = user.AvatarURL("")
	}
	if occupant.Username == "" {
		occupant.Username = state.UserID
	}
	if occupant.DisplayName == "" {
		occupant.DisplayName = occupant.Username
	}
	return occupant
}

func (c *Client) SendDirectMessage(userID, content string) (string, error) {
	channelID, err := c.dmChannelID(userID)
	if err != nil {
		return "", err
	}
	msg, err := c.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", classifySendError(err)
	}
	return msg.ID, nil
}

func (c *Client) EditDirectMessage(userID, messageID, content string) error {
	channelID, err := c.dmChannelID(userID)
	if err != nil {
		return err
	}
	_, err = c.session.ChannelMessageEdit(channelID, messageID, content)
	if err != nil {
		if isRESTNotFound(err) {
			return fmt.Errorf("%w: message %s", discordpkg.ErrMessageNotFound, messageID)
		}
		return classifySendError(err)
	}
	return nil
}

// dmChannelID opens (or reuses) the DM channel with the user. A failure to
// open the channel means the recipient cannot be reached at all.
func (c *Client) dmChannelID(userID string) (string, error) {
	c.dmMu.Lock()
	channelID, ok := c.dmChannels[userID]
	c.dmMu.Unlock()
	if ok {
		return channelID, nil
	}

	channel, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", discordpkg.ErrUnreachable, err.Error())
	}
	c.dmMu.Lock()
	c.dmChannels[userID] = channel.ID
	c.dmMu.Unlock()
	return channel.ID, nil
}

func (c *Client) SendChannelEmbed(channelID string, embed discordpkg.Embed) (string, error) {
	msg, err := c.session.ChannelMessageSendEmbed(channelID, buildMessageEmbed(embed))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *Client) AddReaction(channelID, messageID, emoji string) error {
	return c.session.MessageReactionAdd(channelID, messageID, emojiAPIName(emoji))
}

func buildMessageEmbed(embed discordpkg.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	for _, f := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if embed.FooterText != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.FooterText}
	}
	return out
}

func classifySendError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return fmt.Errorf("%w: %s", discordpkg.ErrUnreachable, restErr.Message.Message)
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", discordpkg.ErrUnreachable, err.Error())
	}
	return err
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	if c.session == nil || c.session.State == nil {
		return false, false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true, true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}
