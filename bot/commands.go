package bot

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	user := t.findUser(chatId)

	if user == nil {
		t.log.With(
			slog.Int64("user_id", chatId),
			slog.String("username", ctx.EffectiveUser.Username),
		).Warn("unknown telegram user")
		t.plainResponse(chatId, fmt.Sprintf(
			"This account is not linked\\. Ask an administrator to add telegram id `%d` to the configuration\\.", chatId))
		return nil
	}

	err := t.db.SetTelegramEnabled(user.TelegramId, true, user.LogLevel)
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}
	t.plainResponse(chatId, "Notifications ENABLED")
	t.loadUsers()
	t.setUserCommands(chatId, user.Role)
	return nil
}

func (t *TgBot) stop(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	user := t.findUser(chatId)
	if user == nil {
		return nil
	}

	err := t.db.SetTelegramEnabled(user.TelegramId, false, user.LogLevel)
	if err != nil {
		t.reportError(chatId, "/stop", err)
		return nil
	}
	t.plainResponse(chatId, "Notifications DISABLED")
	t.loadUsers()
	return nil
}

func (t *TgBot) level(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	user := t.findUser(chatId)
	if user == nil {
		return nil
	}

	args := commandArgs(ctx.EffectiveMessage.Text)
	if len(args) < 1 {
		t.sendWithKeyboard(chatId, "Select the lowest level of forwarded log messages:", buildLevelKeyboard(user.LogLevel))
		return nil
	}

	level, ok := parseLevel(args[0])
	if !ok {
		t.plainResponse(chatId, "Unknown level\\. Use one of: debug, info, warn, error\\.")
		return nil
	}
	err := t.db.SetTelegramEnabled(chatId, user.TelegramEnabled, int(level))
	if err != nil {
		t.reportError(chatId, "/level", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Level set to *%s*", level.String()))
	t.loadUsers()
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	user := t.findUser(chatId)
	if user == nil {
		t.plainResponse(chatId, helpText(commandsAnonymous))
		return nil
	}
	t.plainResponse(chatId, helpText(commandsFor(user.Role)))
	return nil
}

func helpText(commands []tgbotapi.BotCommand) string {
	var sb strings.Builder
	sb.WriteString("*Available commands*")
	for _, c := range commands {
		sb.WriteString(fmt.Sprintf("\n/%s \\- %s", c.Command, Sanitize(c.Description)))
	}
	return sb.String()
}
