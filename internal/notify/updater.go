package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/quietriver/voicenotify/internal/repository"
)

// Updater carries out the per-recipient refresh decision for a session:
// edit the tracked DM, fall back to a single replacement send, or deactivate
// the notification when the recipient cannot be reached. Recipients are fully
// isolated from each other's failures.
type Updater struct {
	dc       discord.Client
	sessions *SessionManager
	metrics  *observability.Metrics
}

func NewUpdater(dc discord.Client, sessions *SessionManager, metrics *observability.Metrics) *Updater {
	return &Updater{dc: dc, sessions: sessions, metrics: metrics}
}

// RefreshSession brings every active notification of the session in line with
// the given occupant list. The active notification set is read here, at
// execution time, so a debounced action never works from a stale enqueue-time
// snapshot.
func (u *Updater) RefreshSession(ctx context.Context, sess *repository.ChannelSession, occupants []discord.Occupant, cfg *repository.GuildConfig, mc *repository.MonitoredChannel) {
	notifications, err := u.sessions.ListActiveNotifications(ctx, sess.GuildID, sess.ChannelID, sess.SessionID)
	if err != nil {
		slog.Error("failed to list active notifications", "error", err, "session_id", sess.SessionID)
		return
	}
	if len(notifications) == 0 {
		slog.Debug("no active notifications to update", "session_id", sess.SessionID)
		return
	}

	snapshot := SnapshotOccupants(occupants)
	userList := FormatUserList(occupantDisplayNames(occupants), cfg.MaxDisplayUsers)
	content := RenderNotification(cfg.CustomMessage, mc.ChannelName, userList, mc.Emoji)
	present := occupantSet(occupants)

	var updated, failed int
	for _, n := range notifications {
		if _, ok := present[n.UserID]; ok {
			slog.Debug("recipient is in the channel, skipping update", "user_id", n.UserID, "session_id", sess.SessionID)
			continue
		}
		if u.refreshRecipient(ctx, n, content, snapshot) {
			updated++
		} else {
			failed++
		}
	}

	slog.Info("updated session notifications",
		"channel_name", mc.ChannelName,
		"session_id", sess.SessionID,
		"updated", updated,
		"failed", failed)
}

func (u *Updater) refreshRecipient(ctx context.Context, n repository.NotificationState, content string, snapshot []repository.OccupantSnapshot) bool {
	err := u.dc.EditDirectMessage(n.UserID, n.MessageID, content)
	if err == nil {
		if err := u.sessions.UpdateNotification(ctx, n.ID, snapshot); err != nil {
			slog.Error("failed to persist notification snapshot", "error", err, "notification_id", n.ID, "user_id", n.UserID)
			u.metrics.RefreshOutcomes.WithLabelValues("store_failure").Inc()
			return false
		}
		u.metrics.RefreshOutcomes.WithLabelValues("updated").Inc()
		return true
	}

	if errors.Is(err, discord.ErrUnreachable) {
		u.deactivate(ctx, n, "recipient unreachable")
		return false
	}

	// Message gone or transient edit failure: replace the DM once, keeping the
	// same logical notification under the new message id.
	slog.Warn("could not edit tracked message, sending replacement", "error", err, "message_id", n.MessageID, "user_id", n.UserID)
	messageID, sendErr := u.dc.SendDirectMessage(n.UserID, content)
	if sendErr != nil {
		u.deactivate(ctx, n, "replacement send failed: "+sendErr.Error())
		return false
	}
	if err := u.sessions.ReplaceNotificationMessage(ctx, n.ID, messageID, snapshot); err != nil {
		slog.Error("failed to persist replacement message id", "error", err, "notification_id", n.ID, "user_id", n.UserID)
		u.metrics.RefreshOutcomes.WithLabelValues("store_failure").Inc()
		return false
	}
	u.metrics.RefreshOutcomes.WithLabelValues("resent").Inc()
	slog.Info("replaced failed DM update with new message", "user_id", n.UserID, "message_id", messageID)
	return true
}

func (u *Updater) deactivate(ctx context.Context, n repository.NotificationState, reason string) {
	if err := u.sessions.DeactivateNotification(ctx, n.ID); err != nil {
		slog.Error("failed to deactivate notification", "error", err, "notification_id", n.ID, "user_id", n.UserID)
		u.metrics.RefreshOutcomes.WithLabelValues("store_failure").Inc()
		return
	}
	u.metrics.RefreshOutcomes.WithLabelValues("deactivated").Inc()
	slog.Debug("deactivated notification", "user_id", n.UserID, "reason", reason)
}
