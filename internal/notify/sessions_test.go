package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/observability"
	"github.com/quietriver/voicenotify/internal/repository"
)

func newTestSessionManager(repo *mockRepository) *SessionManager {
	return NewSessionManager(repo, observability.NewMetrics(prometheus.NewRegistry(), "test"))
}

func TestGenerateSessionID_Format(t *testing.T) {
	id := GenerateSessionID()
	if !strings.HasPrefix(id, "session_") {
		t.Fatalf("unexpected session id: %s", id)
	}
	if id == GenerateSessionID() {
		t.Fatal("session ids must be unique")
	}
}

func TestGetActiveSession_CachesStoreReads(t *testing.T) {
	repo := newMockRepository()
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	if _, err := manager.StartSession(ctx, "guild-1", "vc-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	before := repo.getActiveCalls
	for range 3 {
		sess, err := manager.GetActiveSession(ctx, "guild-1", "vc-1")
		if err != nil || sess == nil {
			t.Fatalf("expected cached session, got %v, %v", sess, err)
		}
	}
	if repo.getActiveCalls != before {
		t.Fatalf("reads after StartSession must hit the cache, store queried %d more times", repo.getActiveCalls-before)
	}
}

func TestGetActiveSession_FallsBackToStore(t *testing.T) {
	repo := newMockRepository()
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	if _, err := repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID: "guild-1", ChannelID: "vc-1", SessionID: "session-persisted",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sess, err := manager.GetActiveSession(ctx, "guild-1", "vc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil || sess.SessionID != "session-persisted" {
		t.Fatalf("expected the persisted session, got %+v", sess)
	}
}

func TestEndSession_DeactivatesSessionAndNotifications(t *testing.T) {
	repo := newMockRepository()
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	sess, err := manager.StartSession(ctx, "guild-1", "vc-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := repo.CreateNotification(ctx, repository.CreateNotificationInput{
		GuildID: "guild-1", ChannelID: "vc-1", UserID: "subscriber-1",
		MessageID: "msg-1", SessionID: sess.SessionID,
	}); err != nil {
		t.Fatalf("seed notification failed: %v", err)
	}

	if err := manager.EndSession(ctx, "guild-1", "vc-1"); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if repo.activeSession("guild-1", "vc-1") != nil {
		t.Fatal("expected no active session after EndSession")
	}
	if repo.notifications[0].IsActive {
		t.Fatal("ending a session must deactivate its notifications")
	}

	if got, err := manager.GetActiveSession(ctx, "guild-1", "vc-1"); err != nil || got != nil {
		t.Fatalf("expected no session after end, got %v, %v", got, err)
	}
}

func TestEndSession_NoActiveSessionIsNoOp(t *testing.T) {
	repo := newMockRepository()
	manager := newTestSessionManager(repo)

	if err := manager.EndSession(context.Background(), "guild-1", "vc-1"); err != nil {
		t.Fatalf("ending without a session must not error: %v", err)
	}
}

func TestReconcileOnStartup_EndsSessionForDeletedChannel(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	if _, err := repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID: "guild-1", ChannelID: "vc-gone", SessionID: "session-1",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := manager.ReconcileOnStartup(ctx, dc); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if repo.activeSession("guild-1", "vc-gone") != nil {
		t.Fatal("a session for a deleted channel must be ended")
	}
}

func TestReconcileOnStartup_EndsSessionForEmptyChannel(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	dc.channels["vc-1"] = &discord.VoiceChannelInfo{ChannelID: "vc-1", Name: "General"}
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	if _, err := repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID: "guild-1", ChannelID: "vc-1", SessionID: "session-1",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := manager.ReconcileOnStartup(ctx, dc); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if repo.activeSession("guild-1", "vc-1") != nil {
		t.Fatal("a session for an empty channel must be ended")
	}
}

func TestReconcileOnStartup_EndsSessionOnLookupFailure(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	dc.resolveErr["vc-1"] = errors.New("gateway timeout")
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	if _, err := repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID: "guild-1", ChannelID: "vc-1", SessionID: "session-1",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := manager.ReconcileOnStartup(ctx, dc); err != nil {
		t.Fatalf("a per-session lookup failure must not abort the pass: %v", err)
	}
	if repo.activeSession("guild-1", "vc-1") != nil {
		t.Fatal("an unverifiable session must be ended")
	}
}

func TestReconcileOnStartup_KeepsLiveSessionAndWarmsCache(t *testing.T) {
	repo := newMockRepository()
	dc := newMockDiscordClient()
	dc.channels["vc-1"] = &discord.VoiceChannelInfo{ChannelID: "vc-1", Name: "General"}
	dc.occupants["vc-1"] = []discord.Occupant{occupant("user-a", "Alice")}
	manager := newTestSessionManager(repo)
	ctx := context.Background()

	if _, err := repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID: "guild-1", ChannelID: "vc-1", SessionID: "session-1",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := manager.ReconcileOnStartup(ctx, dc); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if repo.activeSession("guild-1", "vc-1") == nil {
		t.Fatal("a live session must survive reconciliation")
	}

	before := repo.getActiveCalls
	sess, err := manager.GetActiveSession(ctx, "guild-1", "vc-1")
	if err != nil || sess == nil {
		t.Fatalf("expected cached session, got %v, %v", sess, err)
	}
	if repo.getActiveCalls != before {
		t.Fatal("reconciliation must warm the cache for surviving sessions")
	}
}
