package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/quietriver/voicenotify/internal/repository"
)

func newTestUpdater(repo *mockRepository, dc *mockDiscordClient) *Updater {
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "test")
	return NewUpdater(dc, NewSessionManager(repo, metrics), metrics)
}

func seedNotification(repo *mockRepository, userID string) *repository.NotificationState {
	n := &repository.NotificationState{
		ID:        "notif-" + userID,
		GuildID:   "guild-1",
		ChannelID: "vc-1",
		UserID:    userID,
		MessageID: "msg-old-" + userID,
		SessionID: "session-1",
		IsActive:  true,
	}
	repo.notifications = append(repo.notifications, n)
	return n
}

func refreshArgs() (*repository.ChannelSession, []discord.Occupant, *repository.GuildConfig, *repository.MonitoredChannel) {
	sess := &repository.ChannelSession{
		GuildID: "guild-1", ChannelID: "vc-1", SessionID: "session-1", IsActive: true,
	}
	occupants := []discord.Occupant{occupant("user-a", "Alice")}
	cfg := &repository.GuildConfig{
		GuildID: "guild-1", CustomMessage: "{userList} in {channelName}", MaxUsers: 10, MaxDisplayUsers: 5,
	}
	mc := &repository.MonitoredChannel{
		GuildID: "guild-1", ChannelID: "vc-1", ChannelName: "General", Emoji: "🔔",
	}
	return sess, occupants, cfg, mc
}

func TestRefreshSession_EditsTrackedMessage(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	n := seedNotification(repo, "subscriber-1")
	updater := newTestUpdater(repo, dc)

	sess, occupants, cfg, mc := refreshArgs()
	updater.RefreshSession(context.Background(), sess, occupants, cfg, mc)

	if len(dc.editCalls) != 1 {
		t.Fatalf("expected one edit, got %d", len(dc.editCalls))
	}
	if dc.editCalls[0].MessageID != n.MessageID {
		t.Fatalf("edit targeted wrong message: %s", dc.editCalls[0].MessageID)
	}
	if dc.editCalls[0].Content != "Alice in General" {
		t.Fatalf("unexpected content: %q", dc.editCalls[0].Content)
	}
	if len(n.UserList) != 1 || n.UserList[0].ID != "user-a" {
		t.Fatalf("snapshot was not persisted: %+v", n.UserList)
	}
}

func TestRefreshSession_EditFailureFallsBackToResend(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	n := seedNotification(repo, "subscriber-1")
	dc.editErr["subscriber-1"] = fmt.Errorf("%w: msg-old-subscriber-1", discord.ErrMessageNotFound)
	updater := newTestUpdater(repo, dc)

	sess, occupants, cfg, mc := refreshArgs()
	updater.RefreshSession(context.Background(), sess, occupants, cfg, mc)

	if len(dc.sentDMs) != 1 {
		t.Fatalf("expected one replacement send, got %d", len(dc.sentDMs))
	}
	if n.MessageID != dc.sentDMs[0].MessageID {
		t.Fatalf("notification must track the replacement message, got %s", n.MessageID)
	}
	if !n.IsActive {
		t.Fatal("a successful resend must keep the notification active")
	}
}

func TestRefreshSession_UnreachableRecipientDeactivates(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	n := seedNotification(repo, "subscriber-1")
	dc.editErr["subscriber-1"] = fmt.Errorf("%w: DMs closed", discord.ErrUnreachable)
	updater := newTestUpdater(repo, dc)

	sess, occupants, cfg, mc := refreshArgs()
	updater.RefreshSession(context.Background(), sess, occupants, cfg, mc)

	if len(dc.sentDMs) != 0 {
		t.Fatal("an unreachable recipient must not get a replacement send")
	}
	if n.IsActive {
		t.Fatal("expected the notification to be deactivated")
	}
}

func TestRefreshSession_ResendFailureDeactivates(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	n := seedNotification(repo, "subscriber-1")
	dc.editErr["subscriber-1"] = errors.New("edit failed")
	dc.sendErr["subscriber-1"] = errors.New("send failed")
	updater := newTestUpdater(repo, dc)

	sess, occupants, cfg, mc := refreshArgs()
	updater.RefreshSession(context.Background(), sess, occupants, cfg, mc)

	if n.IsActive {
		t.Fatal("expected the notification to be deactivated after the resend failed")
	}
}

func TestRefreshSession_SkipsRecipientInsideChannel(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	seedNotification(repo, "subscriber-1")
	updater := newTestUpdater(repo, dc)

	sess, _, cfg, mc := refreshArgs()
	occupants := []discord.Occupant{occupant("subscriber-1", "Sam")}
	updater.RefreshSession(context.Background(), sess, occupants, cfg, mc)

	if len(dc.editCalls) != 0 {
		t.Fatal("recipients inside the channel must not have their DM refreshed")
	}
}

func TestRefreshSession_IsolatesRecipientFailures(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	failed := seedNotification(repo, "subscriber-1")
	healthy := seedNotification(repo, "subscriber-2")
	dc.editErr["subscriber-1"] = fmt.Errorf("%w: DMs closed", discord.ErrUnreachable)
	updater := newTestUpdater(repo, dc)

	sess, occupants, cfg, mc := refreshArgs()
	updater.RefreshSession(context.Background(), sess, occupants, cfg, mc)

	if failed.IsActive {
		t.Fatal("expected the unreachable recipient's notification to deactivate")
	}
	if len(dc.editCalls) != 1 || dc.editCalls[0].UserID != "subscriber-2" {
		t.Fatalf("the healthy recipient must still be refreshed: %+v", dc.editCalls)
	}
	if !healthy.IsActive {
		t.Fatal("the healthy recipient's notification must stay active")
	}
}
