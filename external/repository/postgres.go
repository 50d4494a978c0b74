package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quietriver/voicenotify/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) UpsertGuildConfig(ctx context.Context, input repository.UpsertGuildConfigInput) (*repository.GuildConfig, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO guild_configs (guild_id, name, custom_message, max_users, max_display_users, admin_role_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (guild_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   custom_message = EXCLUDED.custom_message,
		   max_users = EXCLUDED.max_users,
		   max_display_users = EXCLUDED.max_display_users,
		   admin_role_id = EXCLUDED.admin_role_id,
		   updated_at = NOW()
		 RETURNING guild_id, name, custom_message, max_users, max_display_users, admin_role_id, created_at, updated_at`,
		input.GuildID, input.Name, input.CustomMessage, input.MaxUsers, input.MaxDisplayUsers, input.AdminRoleID)
	return scanGuildConfig(row)
}

func (r *PostgresRepository) GetGuildConfig(ctx context.Context, guildID string) (*repository.GuildConfig, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT guild_id, name, custom_message, max_users, max_display_users, admin_role_id, created_at, updated_at
		 FROM guild_configs WHERE guild_id = $1`,
		guildID)
	cfg, err := scanGuildConfig(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func scanGuildConfig(row pgx.Row) (*repository.GuildConfig, error) {
	var c repository.GuildConfig
	err := row.Scan(&c.GuildID, &c.Name, &c.CustomMessage, &c.MaxUsers, &c.MaxDisplayUsers, &c.AdminRoleID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) UpsertMonitoredChannel(ctx context.Context, input repository.UpsertMonitoredChannelInput) (*repository.MonitoredChannel, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO monitored_channels (guild_id, channel_id, channel_name, emoji)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (guild_id, channel_id) DO UPDATE SET
		   channel_name = EXCLUDED.channel_name,
		   emoji = EXCLUDED.emoji
		 RETURNING id, guild_id, channel_id, channel_name, emoji, created_at`,
		input.GuildID, input.ChannelID, input.ChannelName, input.Emoji)
	return scanMonitoredChannel(row)
}

func (r *PostgresRepository) DeleteMonitoredChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM monitored_channels WHERE guild_id = $1 AND channel_id = $2`,
		guildID, channelID)
	return err
}

func (r *PostgresRepository) GetMonitoredChannel(ctx context.Context, guildID, channelID string) (*repository.MonitoredChannel, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, channel_id, channel_name, emoji, created_at
		 FROM monitored_channels WHERE guild_id = $1 AND channel_id = $2`,
		guildID, channelID)
	mc, err := scanMonitoredChannel(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return mc, err
}

func (r *PostgresRepository) GetMonitoredChannelByEmoji(ctx context.Context, guildID, emoji string) (*repository.MonitoredChannel, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, channel_id, channel_name, emoji, created_at
		 FROM monitored_channels WHERE guild_id = $1 AND emoji = $2
		 LIMIT 1`,
		guildID, emoji)
	mc, err := scanMonitoredChannel(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return mc, err
}

func (r *PostgresRepository) ListMonitoredChannels(ctx context.Context, guildID string) ([]repository.MonitoredChannel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, channel_id, channel_name, emoji, created_at
		 FROM monitored_channels WHERE guild_id = $1 ORDER BY channel_name ASC`,
		guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.MonitoredChannel
	for rows.Next() {
		var mc repository.MonitoredChannel
		if err := rows.Scan(&mc.ID, &mc.GuildID, &mc.ChannelID, &mc.ChannelName, &mc.Emoji, &mc.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, mc)
	}
	return list, rows.Err()
}

func scanMonitoredChannel(row pgx.Row) (*repository.MonitoredChannel, error) {
	var mc repository.MonitoredChannel
	err := row.Scan(&mc.ID, &mc.GuildID, &mc.ChannelID, &mc.ChannelName, &mc.Emoji, &mc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func (r *PostgresRepository) UpsertSubscription(ctx context.Context, guildID, userID, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_subscriptions (guild_id, user_id, channel_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, user_id, channel_id) DO NOTHING`,
		guildID, userID, channelID)
	return err
}

func (r *PostgresRepository) DeleteSubscription(ctx context.Context, guildID, userID, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_subscriptions WHERE guild_id = $1 AND user_id = $2 AND channel_id = $3`,
		guildID, userID, channelID)
	return err
}

func (r *PostgresRepository) DeleteChannelSubscriptions(ctx context.Context, guildID, channelID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_subscriptions WHERE guild_id = $1 AND channel_id = $2`,
		guildID, channelID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) ListChannelSubscribers(ctx context.Context, guildID, channelID string) ([]repository.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, user_id, channel_id, created_at
		 FROM user_subscriptions WHERE guild_id = $1 AND channel_id = $2`,
		guildID, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Subscription
	for rows.Next() {
		var s repository.Subscription
		if err := rows.Scan(&s.ID, &s.GuildID, &s.UserID, &s.ChannelID, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.ChannelSession, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO channel_sessions (guild_id, channel_id, session_id, is_active, started_at)
		 VALUES ($1, $2, $3, TRUE, $4)
		 RETURNING id, guild_id, channel_id, session_id, is_active, started_at, ended_at`,
		input.GuildID, input.ChannelID, input.SessionID, input.StartedAt)
	return scanChannelSession(row)
}

func (r *PostgresRepository) GetActiveSessionByChannel(ctx context.Context, guildID, channelID string) (*repository.ChannelSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, channel_id, session_id, is_active, started_at, ended_at
		 FROM channel_sessions WHERE guild_id = $1 AND channel_id = $2 AND is_active
		 LIMIT 1`,
		guildID, channelID)
	s, err := scanChannelSession(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) ListActiveSessions(ctx context.Context) ([]repository.ChannelSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, channel_id, session_id, is_active, started_at, ended_at
		 FROM channel_sessions WHERE is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.ChannelSession
	for rows.Next() {
		var s repository.ChannelSession
		if err := rows.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.SessionID, &s.IsActive, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) EndActiveSessions(ctx context.Context, guildID, channelID string, endedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE channel_sessions SET is_active = FALSE, ended_at = $3
		 WHERE guild_id = $1 AND channel_id = $2 AND is_active`,
		guildID, channelID, endedAt)
	return err
}

func scanChannelSession(row pgx.Row) (*repository.ChannelSession, error) {
	var s repository.ChannelSession
	err := row.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.SessionID, &s.IsActive, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, input repository.CreateNotificationInput) (*repository.NotificationState, error) {
	userList, err := json.Marshal(input.UserList)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user list: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO notification_states (guild_id, channel_id, user_id, message_id, session_id, is_active, user_list, last_updated)
		 VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW())
		 RETURNING id, guild_id, channel_id, user_id, message_id, session_id, is_active, user_list, last_updated, created_at`,
		input.GuildID, input.ChannelID, input.UserID, input.MessageID, input.SessionID, userList)
	return scanNotificationState(row)
}

func (r *PostgresRepository) ListActiveNotifications(ctx context.Context, guildID, channelID, sessionID string) ([]repository.NotificationState, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, channel_id, user_id, message_id, session_id, is_active, user_list, last_updated, created_at
		 FROM notification_states
		 WHERE guild_id = $1 AND channel_id = $2 AND session_id = $3 AND is_active`,
		guildID, channelID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.NotificationState
	for rows.Next() {
		n, err := scanNotificationState(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) UpdateNotificationSnapshot(ctx context.Context, notificationID string, userList []repository.OccupantSnapshot) error {
	encoded, err := json.Marshal(userList)
	if err != nil {
		return fmt.Errorf("failed to encode user list: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE notification_states SET user_list = $2, last_updated = NOW() WHERE id = $1`,
		notificationID, encoded)
	return err
}

func (r *PostgresRepository) ReplaceNotificationMessage(ctx context.Context, notificationID, messageID string, userList []repository.OccupantSnapshot) error {
	encoded, err := json.Marshal(userList)
	if err != nil {
		return fmt.Errorf("failed to encode user list: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE notification_states SET message_id = $2, user_list = $3, last_updated = NOW() WHERE id = $1`,
		notificationID, messageID, encoded)
	return err
}

func (r *PostgresRepository) DeactivateNotification(ctx context.Context, notificationID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_states SET is_active = FALSE WHERE id = $1`,
		notificationID)
	return err
}

func (r *PostgresRepository) DeactivateChannelNotifications(ctx context.Context, guildID, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_states SET is_active = FALSE
		 WHERE guild_id = $1 AND channel_id = $2 AND is_active`,
		guildID, channelID)
	return err
}

func scanNotificationState(row pgx.Row) (*repository.NotificationState, error) {
	var n repository.NotificationState
	var userList []byte
	err := row.Scan(&n.ID, &n.GuildID, &n.ChannelID, &n.UserID, &n.MessageID, &n.SessionID, &n.IsActive, &userList, &n.LastUpdated, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(userList) > 0 {
		if err := json.Unmarshal(userList, &n.UserList); err != nil {
			return nil, fmt.Errorf("failed to decode user list: %w", err)
		}
	}
	return &n, nil
}
