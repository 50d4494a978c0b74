package notify

import (
	"fmt"
	"strings"

	"github.com/quietriver/voicenotify/internal/discord"
	"github.com/quietriver/voicenotify/internal/repository"
)

const (
	defaultMessageTemplate = "{emoji} {userList} in {channelName}!"
	defaultChannelEmoji    = "🔊"
)

// FormatUserList renders occupant names as prose, truncating to maxDisplay.
// Past the limit the tail is collapsed into an "and N others" suffix.
func FormatUserList(usernames []string, maxDisplay int) string {
	if len(usernames) == 0 {
		return "No users"
	}
	if maxDisplay < 1 {
		maxDisplay = 1
	}
	if len(usernames) <= maxDisplay {
		switch len(usernames) {
		case 1:
			return usernames[0]
		case 2:
			return usernames[0] + " and " + usernames[1]
		default:
			return strings.Join(usernames[:len(usernames)-1], ", ") + ", and " + usernames[len(usernames)-1]
		}
	}

	shown := usernames[:maxDisplay-1]
	if maxDisplay == 1 {
		shown = usernames[:1]
	}
	rest := len(usernames) - len(shown)
	suffix := fmt.Sprintf("%d other%s", rest, pluralSuffix(rest))
	if len(shown) == 1 {
		return shown[0] + " and " + suffix
	}
	return strings.Join(shown, ", ") + ", and " + suffix
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// RenderNotification fills the guild's message template. An empty template
// falls back to the default one.
func RenderNotification(template, channelName, userList, emoji string) string {
	if strings.TrimSpace(template) == "" {
		template = defaultMessageTemplate
	}
	if emoji == "" {
		emoji = defaultChannelEmoji
	}
	msg := strings.ReplaceAll(template, "{channelName}", channelName)
	msg = strings.ReplaceAll(msg, "{userList}", userList)
	msg = strings.ReplaceAll(msg, "{emoji}", emoji)
	// Legacy template variable kept for configs written by old versions.
	msg = strings.ReplaceAll(msg, "#{channelName}", channelName)
	return msg
}

// SnapshotOccupants projects live occupants into the stored user list shape.
func SnapshotOccupants(occupants []discord.Occupant) []repository.OccupantSnapshot {
	snapshot := make([]repository.OccupantSnapshot, 0, len(occupants))
	for _, o := range occupants {
		displayName := o.DisplayName
		if displayName == "" {
			displayName = o.Username
		}
		snapshot = append(snapshot, repository.OccupantSnapshot{
			ID:          o.UserID,
			Username:    o.Username,
			DisplayName: displayName,
			Avatar:      o.AvatarURL,
		})
	}
	return snapshot
}

func occupantDisplayNames(occupants []discord.Occupant) []string {
	names := make([]string, 0, len(occupants))
	for _, o := range occupants {
		if o.DisplayName != "" {
			names = append(names, o.DisplayName)
			continue
		}
		names = append(names, o.Username)
	}
	return names
}

func nonBotOccupants(occupants []discord.Occupant) []discord.Occupant {
	filtered := make([]discord.Occupant, 0, len(occupants))
	for _, o := range occupants {
		if o.IsBot {
			continue
		}
		filtered = append(filtered, o)
	}
	return filtered
}

func occupantSet(occupants []discord.Occupant) map[string]struct{} {
	set := make(map[string]struct{}, len(occupants))
	for _, o := range occupants {
		set[o.UserID] = struct{}{}
	}
	return set
}
