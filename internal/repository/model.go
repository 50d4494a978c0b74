package repository

import "time"

type GuildConfig struct {
	GuildID         string
	Name            string
	CustomMessage   string
	MaxUsers        int
	MaxDisplayUsers int
	AdminRoleID     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type MonitoredChannel struct {
	ID          string
	GuildID     string
	ChannelID   string
	ChannelName string
	Emoji       string
	CreatedAt   time.Time
}

type Subscription struct {
	ID        string
	GuildID   string
	UserID    string
	ChannelID string
	CreatedAt time.Time
}

type ChannelSession struct {
	ID        string
	GuildID   string
	ChannelID string
	SessionID string
	IsActive  bool
	StartedAt time.Time
	EndedAt   *time.Time
}

// OccupantSnapshot is the stored projection of one voice channel member,
// persisted as part of a notification's user list.
type OccupantSnapshot struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type NotificationState struct {
	ID          string
	GuildID     string
	ChannelID   string
	UserID      string
	MessageID   string
	SessionID   string
	IsActive    bool
	UserList    []OccupantSnapshot
	LastUpdated time.Time
	CreatedAt   time.Time
}
