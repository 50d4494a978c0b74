package repository

import (
	"context"
	"time"
)

type UpsertGuildConfigInput struct {
	GuildID         string
	Name            string
	CustomMessage   string
	MaxUsers        int
	MaxDisplayUsers int
	AdminRoleID     string
}

type UpsertMonitoredChannelInput struct {
	GuildID     string
	ChannelID   string
	ChannelName string
	Emoji       string
}

type CreateSessionInput struct {
	GuildID   string
	ChannelID string
	SessionID string
	StartedAt time.Time
}

type CreateNotificationInput struct {
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
	SessionID string
	UserList  []OccupantSnapshot
}

type GuildConfigRepository interface {
	// UpsertGuildConfig inserts the config row or updates every provided field
	// in place. The returned row reflects the post-write state.
	UpsertGuildConfig(ctx context.Context, input UpsertGuildConfigInput) (*GuildConfig, error)
	GetGuildConfig(ctx context.Context, guildID string) (*GuildConfig, error)
}

type MonitoredChannelRepository interface {
	UpsertMonitoredChannel(ctx context.Context, input UpsertMonitoredChannelInput) (*MonitoredChannel, error)
	DeleteMonitoredChannel(ctx context.Context, guildID, channelID string) error
	GetMonitoredChannel(ctx context.Context, guildID, channelID string) (*MonitoredChannel, error)
	GetMonitoredChannelByEmoji(ctx context.Context, guildID, emoji string) (*MonitoredChannel, error)
	ListMonitoredChannels(ctx context.Context, guildID string) ([]MonitoredChannel, error)
}

type SubscriptionRepository interface {
	// UpsertSubscription is idempotent: a duplicate add leaves the existing row.
	UpsertSubscription(ctx context.Context, guildID, userID, channelID string) error
	DeleteSubscription(ctx context.Context, guildID, userID, channelID string) error
	DeleteChannelSubscriptions(ctx context.Context, guildID, channelID string) (int64, error)
	ListChannelSubscribers(ctx context.Context, guildID, channelID string) ([]Subscription, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*ChannelSession, error)
	GetActiveSessionByChannel(ctx context.Context, guildID, channelID string) (*ChannelSession, error)
	ListActiveSessions(ctx context.Context) ([]ChannelSession, error)
	// EndActiveSessions marks every active session row for the channel inactive.
	// Calling it with no active session is a no-op.
	EndActiveSessions(ctx context.Context, guildID, channelID string, endedAt time.Time) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, input CreateNotificationInput) (*NotificationState, error)
	ListActiveNotifications(ctx context.Context, guildID, channelID, sessionID string) ([]NotificationState, error)
	UpdateNotificationSnapshot(ctx context.Context, notificationID string, userList []OccupantSnapshot) error
	// ReplaceNotificationMessage swaps the tracked message id after a resend,
	// keeping the same logical notification record.
	ReplaceNotificationMessage(ctx context.Context, notificationID, messageID string, userList []OccupantSnapshot) error
	DeactivateNotification(ctx context.Context, notificationID string) error
	DeactivateChannelNotifications(ctx context.Context, guildID, channelID string) error
}

type Repository interface {
	GuildConfigRepository
	MonitoredChannelRepository
	SubscriptionRepository
	SessionRepository
	NotificationRepository
}
