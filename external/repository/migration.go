package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS guild_configs (
		guild_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		custom_message TEXT NOT NULL,
		max_users INTEGER NOT NULL,
		max_display_users INTEGER NOT NULL,
		admin_role_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS monitored_channels (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		channel_name TEXT NOT NULL,
		emoji TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (guild_id, channel_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monitored_channels_emoji ON monitored_channels (guild_id, emoji)`,
	`CREATE TABLE IF NOT EXISTS user_subscriptions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (guild_id, user_id, channel_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_subscriptions_channel ON user_subscriptions (guild_id, channel_id)`,
	`CREATE TABLE IF NOT EXISTS channel_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		session_id TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channel_sessions_active ON channel_sessions (guild_id, channel_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS notification_states (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		user_list JSONB NOT NULL DEFAULT '[]',
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_states_session ON notification_states (guild_id, channel_id, session_id) WHERE is_active`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
