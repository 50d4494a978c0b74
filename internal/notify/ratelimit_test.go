package notify

import (
	"testing"
	"time"
)

func newTestLedger(minInterval time.Duration) (*RateLimitLedger, *time.Time) {
	l := NewRateLimitLedger(minInterval)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLedger_AllowsFirstSend(t *testing.T) {
	l, _ := newTestLedger(5 * time.Second)
	if !l.Allow("guild-1", "user-1") {
		t.Fatal("a user with no prior send must be allowed")
	}
}

func TestLedger_BlocksWithinInterval(t *testing.T) {
	l, now := newTestLedger(5 * time.Second)
	l.MarkSent("guild-1", "user-1")

	*now = now.Add(4 * time.Second)
	if l.Allow("guild-1", "user-1") {
		t.Fatal("a send inside the interval must be blocked")
	}
	*now = now.Add(2 * time.Second)
	if !l.Allow("guild-1", "user-1") {
		t.Fatal("a send past the interval must be allowed")
	}
}

func TestLedger_ScopesPerGuildAndUser(t *testing.T) {
	l, _ := newTestLedger(5 * time.Second)
	l.MarkSent("guild-1", "user-1")

	if !l.Allow("guild-2", "user-1") {
		t.Fatal("the limit must not leak across guilds")
	}
	if !l.Allow("guild-1", "user-2") {
		t.Fatal("the limit must not leak across users")
	}
}

func TestLedger_AllowDoesNotRecord(t *testing.T) {
	l, _ := newTestLedger(5 * time.Second)
	l.Allow("guild-1", "user-1")
	if l.size() != 0 {
		t.Fatal("Allow must be a pure read")
	}
}

func TestLedger_PruneDropsStaleEntries(t *testing.T) {
	l, now := newTestLedger(5 * time.Second)
	l.MarkSent("guild-1", "stale-user")

	*now = now.Add(6 * time.Minute)
	l.MarkSent("guild-1", "fresh-user")
	l.Prune()

	if l.size() != 1 {
		t.Fatalf("expected only the fresh entry to survive, got %d", l.size())
	}
	if !l.Allow("guild-1", "stale-user") {
		t.Fatal("a pruned user must be allowed again")
	}
}

func TestLedger_CloseIsIdempotent(t *testing.T) {
	l := NewRateLimitLedger(time.Second)
	l.StartPruning(time.Minute)
	l.Close()
	l.Close()
}
