package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/quietriver/voicenotify/internal/repository"
)

// SessionManager owns the voice channel occupancy session lifecycle. At most
// one session is active per (guild, channel); the backing store is the source
// of truth and the in-process cache only serves the read path.
type SessionManager struct {
	repo    repository.Repository
	metrics *observability.Metrics

	mu     sync.Mutex
	active map[string]*repository.ChannelSession
}

func NewSessionManager(repo repository.Repository, metrics *observability.Metrics) *SessionManager {
	return &SessionManager{
		repo:    repo,
		metrics: metrics,
		active:  make(map[string]*repository.ChannelSession),
	}
}

func (m *SessionManager) cacheKey(guildID, channelID string) string {
	return guildID + ":" + channelID
}

// GenerateSessionID builds an identifier that stays unique across process
// restarts and concurrent guilds: a millisecond timestamp plus a random suffix.
func GenerateSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

func (m *SessionManager) GetActiveSession(ctx context.Context, guildID, channelID string) (*repository.ChannelSession, error) {
	key := m.cacheKey(guildID, channelID)
	m.mu.Lock()
	if sess, ok := m.active[key]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	sess, err := m.repo.GetActiveSessionByChannel(ctx, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active session: %w", err)
	}
	if sess != nil {
		m.mu.Lock()
		m.active[key] = sess
		m.mu.Unlock()
	}
	return sess, nil
}

// StartSession persists a new active session and populates the cache. The
// caller is responsible for checking that no session is currently active.
func (m *SessionManager) StartSession(ctx context.Context, guildID, channelID string) (*repository.ChannelSession, error) {
	sess, err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID:   guildID,
		ChannelID: channelID,
		SessionID: GenerateSessionID(),
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.active[m.cacheKey(guildID, channelID)] = sess
	m.mu.Unlock()

	m.metrics.ActiveSessions.Inc()
	m.metrics.SessionEvents.WithLabelValues("started").Inc()
	slog.Info("started new session", "session_id", sess.SessionID, "guild_id", guildID, "channel_id", channelID)
	return sess, nil
}

// EndSession marks any active session rows for the channel inactive, cascades
// deactivation to the session's notifications and evicts the cache entry.
// Calling it when no session is active is a harmless no-op.
func (m *SessionManager) EndSession(ctx context.Context, guildID, channelID string) error {
	key := m.cacheKey(guildID, channelID)
	m.mu.Lock()
	_, wasCached := m.active[key]
	delete(m.active, key)
	m.mu.Unlock()

	hadActive := wasCached
	if !hadActive {
		sess, err := m.repo.GetActiveSessionByChannel(ctx, guildID, channelID)
		if err != nil {
			return fmt.Errorf("failed to query active session: %w", err)
		}
		hadActive = sess != nil
	}

	if err := m.repo.EndActiveSessions(ctx, guildID, channelID, time.Now()); err != nil {
		return fmt.Errorf("failed to end active sessions: %w", err)
	}
	if err := m.repo.DeactivateChannelNotifications(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("failed to deactivate notifications: %w", err)
	}

	if hadActive {
		m.metrics.ActiveSessions.Dec()
		m.metrics.SessionEvents.WithLabelValues("ended").Inc()
		slog.Info("ended session", "guild_id", guildID, "channel_id", channelID)
	}
	return nil
}

func (m *SessionManager) ListActiveNotifications(ctx context.Context, guildID, channelID, sessionID string) ([]repository.NotificationState, error) {
	return m.repo.ListActiveNotifications(ctx, guildID, channelID, sessionID)
}

func (m *SessionManager) CreateNotification(ctx context.Context, input repository.CreateNotificationInput) (*repository.NotificationState, error) {
	return m.repo.CreateNotification(ctx, input)
}

func (m *SessionManager) UpdateNotification(ctx context.Context, notificationID string, userList []repository.OccupantSnapshot) error {
	return m.repo.UpdateNotificationSnapshot(ctx, notificationID, userList)
}

func (m *SessionManager) ReplaceNotificationMessage(ctx context.Context, notificationID, messageID string, userList []repository.OccupantSnapshot) error {
	return m.repo.ReplaceNotificationMessage(ctx, notificationID, messageID, userList)
}

func (m *SessionManager) DeactivateNotification(ctx context.Context, notificationID string) error {
	return m.repo.DeactivateNotification(ctx, notificationID)
}

// ReconcileOnStartup repairs persisted session state after an unclean
// shutdown: every session still flagged active is checked against the live
// platform, and ended when its channel is gone or empty. A lookup failure for
// one session ends that session and never aborts the rest of the pass.
func (m *SessionManager) ReconcileOnStartup(ctx context.Context, dc discord.Client) error {
	sessions, err := m.repo.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}
	slog.Info("checking active sessions for reconciliation", "count", len(sessions))

	live := 0
	for _, sess := range sessions {
		if m.reconcileSession(ctx, dc, sess) {
			m.metrics.SessionEvents.WithLabelValues("reconciled").Inc()
			continue
		}
		live++
	}
	m.metrics.ActiveSessions.Set(float64(live))
	return nil
}

func (m *SessionManager) reconcileSession(ctx context.Context, dc discord.Client, sess repository.ChannelSession) bool {
	endSession := func(reason string) bool {
		if err := m.EndSession(ctx, sess.GuildID, sess.ChannelID); err != nil {
			slog.Error("failed to end orphaned session", "error", err, "session_id", sess.SessionID)
			return false
		}
		slog.Info("cleaned up orphaned session", "session_id", sess.SessionID, "reason", reason)
		return true
	}

	channel, err := dc.ResolveVoiceChannel(sess.GuildID, sess.ChannelID)
	if err != nil {
		return endSession("channel lookup failed: " + err.Error())
	}
	if channel == nil {
		return endSession("channel no longer exists")
	}
	occupants, err := dc.ListVoiceChannelOccupants(sess.GuildID, sess.ChannelID)
	if err != nil {
		return endSession("occupant lookup failed: " + err.Error())
	}
	if len(nonBotOccupants(occupants)) == 0 {
		return endSession("channel is empty")
	}

	// Session is still live; warm the cache for the read path.
	m.mu.Lock()
	m.active[m.cacheKey(sess.GuildID, sess.ChannelID)] = &sess
	m.mu.Unlock()
	return false
}

// ClearCache drops the in-process session cache. The store remains the source
// of truth, so entries are rebuilt lazily on the next read.
func (m *SessionManager) ClearCache() {
	m.mu.Lock()
	m.active = make(map[string]*repository.ChannelSession)
	m.mu.Unlock()
	slog.Debug("session cache cleared")
}
