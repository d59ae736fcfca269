package bot

import (
	"log/slog"

	"mentorgate/entity"
)

func (t *TgBot) SendMessage(msg string) {
	t.SendMessageWithLevel(msg, t.minLogLevel)
}

// SendMessageWithLevel sends a message to every enabled user whose level filter passes.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	t.mu.RLock()
	users := make([]*entity.User, 0, len(t.users))
	for _, user := range t.users {
		users = append(users, user)
	}
	t.mu.RUnlock()

	for _, user := range users {
		if !wantsLevel(user, level) {
			continue
		}
		t.plainResponse(user.TelegramId, msg)
	}
}

func wantsLevel(user *entity.User, level slog.Level) bool {
	if !user.TelegramEnabled || user.Role == entity.RoleNone {
		return false
	}
	return int(level) >= user.LogLevel
}
