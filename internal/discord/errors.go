package discord

import "errors"

var (
	// ErrUnreachable means the recipient has DMs closed or has blocked the bot.
	// Callers deactivate the notification instead of retrying.
	ErrUnreachable = errors.New("discord: recipient unreachable")

	// ErrMessageNotFound means a previously sent message can no longer be fetched
	// or edited. Callers fall back to sending a replacement message once.
	ErrMessageNotFound = errors.New("discord: message not found")
)
