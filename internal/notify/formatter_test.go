package notify

import (
	"testing"

	"github.com/quietriver/voicenotify/internal/discord"
)

func TestFormatUserList(t *testing.T) {
	tests := []struct {
		name       string
		usernames  []string
		maxDisplay int
		want       string
	}{
		{name: "empty", usernames: nil, maxDisplay: 5, want: "No users"},
		{name: "single", usernames: []string{"Alice"}, maxDisplay: 5, want: "Alice"},
		{name: "pair", usernames: []string{"Alice", "Bob"}, maxDisplay: 5, want: "Alice and Bob"},
		{name: "three with oxford comma", usernames: []string{"Alice", "Bob", "Carol"}, maxDisplay: 5, want: "Alice, Bob, and Carol"},
		{name: "exactly at limit", usernames: []string{"Alice", "Bob", "Carol"}, maxDisplay: 3, want: "Alice, Bob, and Carol"},
		{name: "one over limit", usernames: []string{"A", "B", "C", "D"}, maxDisplay: 3, want: "A, B, and 2 others"},
		{name: "far over limit", usernames: []string{"A", "B", "C", "D", "E", "F"}, maxDisplay: 3, want: "A, B, and 4 others"},
		{name: "singular other", usernames: []string{"A", "B", "C"}, maxDisplay: 2, want: "A and 2 others"},
		{name: "limit of one", usernames: []string{"A", "B", "C"}, maxDisplay: 1, want: "A and 2 others"},
		{name: "zero limit treated as one", usernames: []string{"A", "B"}, maxDisplay: 0, want: "A and 1 other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUserList(tt.usernames, tt.maxDisplay); got != tt.want {
				t.Errorf("FormatUserList(%v, %d) = %q, want %q", tt.usernames, tt.maxDisplay, got, tt.want)
			}
		})
	}
}

func TestRenderNotification(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		channelName string
		userList    string
		emoji       string
		want        string
	}{
		{
			name:     "default template when empty",
			template: "", channelName: "General", userList: "Alice", emoji: "🔔",
			want: "🔔 Alice in General!",
		},
		{
			name:     "default template when blank",
			template: "   ", channelName: "General", userList: "Alice", emoji: "🔔",
			want: "🔔 Alice in General!",
		},
		{
			name:     "custom template",
			template: "Heads up: {userList} joined {channelName}", channelName: "Gaming", userList: "Bob and Carol", emoji: "🎮",
			want: "Heads up: Bob and Carol joined Gaming",
		},
		{
			name:     "legacy channel placeholder",
			template: "Voice activity in #{channelName}", channelName: "General", userList: "Alice", emoji: "🔔",
			want: "Voice activity in General",
		},
		{
			name:     "fallback emoji",
			template: "{emoji} {userList}", channelName: "General", userList: "Alice", emoji: "",
			want: "🔊 Alice",
		},
		{
			name:     "repeated placeholders",
			template: "{userList} / {userList}", channelName: "General", userList: "Alice", emoji: "🔔",
			want: "Alice / Alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderNotification(tt.template, tt.channelName, tt.userList, tt.emoji)
			if got != tt.want {
				t.Errorf("RenderNotification() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshotOccupants_FallsBackToUsername(t *testing.T) {
	snapshot := SnapshotOccupants([]discord.Occupant{
		{UserID: "u1", Username: "alice", DisplayName: "Alice A.", AvatarURL: "https://cdn/avatar1.png"},
		{UserID: "u2", Username: "bob"},
	})

	if len(snapshot) != 2 {
		t.Fatalf("expected two entries, got %d", len(snapshot))
	}
	if snapshot[0].DisplayName != "Alice A." || snapshot[0].Avatar != "https://cdn/avatar1.png" {
		t.Fatalf("unexpected first entry: %+v", snapshot[0])
	}
	if snapshot[1].DisplayName != "bob" {
		t.Fatalf("display name must fall back to username, got %q", snapshot[1].DisplayName)
	}
}

func TestOccupantDisplayNames_PrefersDisplayName(t *testing.T) {
	names := occupantDisplayNames([]discord.Occupant{
		{UserID: "u1", Username: "alice", DisplayName: "Alice A."},
		{UserID: "u2", Username: "bob"},
	})
	if len(names) != 2 || names[0] != "Alice A." || names[1] != "bob" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestNonBotOccupants_FiltersBots(t *testing.T) {
	filtered := nonBotOccupants([]discord.Occupant{
		{UserID: "u1", Username: "alice"},
		{UserID: "b1", Username: "jukebox", IsBot: true},
	})
	if len(filtered) != 1 || filtered[0].UserID != "u1" {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}
}
