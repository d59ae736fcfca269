package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mentorgate/entity"
	"mentorgate/internal/mentor"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Callback data prefixes for inline keyboard buttons.
// Telegram limits callback data to 64 bytes, so prefixes are kept short.
const (
	cbLevel   = "lv:" // lv:debug, lv:info, lv:warn, lv:error
	cbApprove = "ap:" // ap:<request id>
	cbReject  = "rj:" // rj:<request id>
)

var levels = []struct {
	name  string
	level slog.Level
}{
	{"debug", slog.LevelDebug},
	{"info", slog.LevelInfo},
	{"warn", slog.LevelWarn},
	{"error", slog.LevelError},
}

func parseLevel(name string) (slog.Level, bool) {
	for _, l := range levels {
		if strings.EqualFold(l.name, name) {
			return l.level, true
		}
	}
	return 0, false
}

// buildLevelKeyboard marks the current level filter.
func buildLevelKeyboard(current int) tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(levels))
	for _, l := range levels {
		label := l.name
		if int(l.level) == current {
			label += " ✓"
		}
		buttons = append(buttons, tgbotapi.InlineKeyboardButton{
			Text:         label,
			CallbackData: cbLevel + l.name,
		})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{buttons}}
}

// buildDecisionKeyboard offers both decisions for one request.
func buildDecisionKeyboard(requestId string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{{
		{Text: "Approve", CallbackData: cbApprove + requestId},
		{Text: "Reject", CallbackData: cbReject + requestId},
	}}}
}

// parseDecision splits callback data into a decision and a request id.
func parseDecision(data string) (entity.RequestStatus, string, bool) {
	if id, ok := strings.CutPrefix(data, cbApprove); ok && id != "" {
		return entity.RequestApproved, id, true
	}
	if id, ok := strings.CutPrefix(data, cbReject); ok && id != "" {
		return entity.RequestRejected, id, true
	}
	return "", "", false
}

// onLevelCallback handles log level selection button presses.
func (t *TgBot) onLevelCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	chatId := cq.From.Id

	user := t.findUser(chatId)
	if user == nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Not authorized", ShowAlert: true})
		return nil
	}

	level, ok := parseLevel(strings.TrimPrefix(cq.Data, cbLevel))
	if !ok {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Invalid level"})
		return nil
	}

	err := t.db.SetTelegramEnabled(chatId, user.TelegramEnabled, int(level))
	if err != nil {
		t.reportError(chatId, "level:set", err)
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Error occurred"})
		return nil
	}

	t.loadUsers()

	if msg := cq.Message; msg != nil {
		if im, ok := msg.(tgbotapi.Message); ok {
			_, _, _ = t.api.EditMessageReplyMarkup(&tgbotapi.EditMessageReplyMarkupOpts{
				ChatId:      chatId,
				MessageId:   im.MessageId,
				ReplyMarkup: buildLevelKeyboard(int(level)),
			})
		}
	}

	_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Level set to " + level.String()})
	return nil
}

// onDecisionCallback handles Approve and Reject buttons attached to request announcements.
func (t *TgBot) onDecisionCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	chatId := cq.From.Id

	if !t.requireMentor(chatId) {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Not authorized", ShowAlert: true})
		return nil
	}

	decision, id, ok := parseDecision(cq.Data)
	if !ok {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Invalid request"})
		return nil
	}

	mr, err := t.decide(id, decision)
	if err != nil {
		if errors.Is(err, mentor.ErrRequestNotFound) {
			_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Request not found", ShowAlert: true})
			return nil
		}
		t.reportError(chatId, "decision:"+string(decision), err)
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Error occurred"})
		return nil
	}

	if msg := cq.Message; msg != nil {
		if im, ok := msg.(tgbotapi.Message); ok {
			_, _, _ = t.api.EditMessageText(formatRequest(mr), &tgbotapi.EditMessageTextOpts{
				ChatId:    chatId,
				MessageId: im.MessageId,
				ParseMode: "MarkdownV2",
			})
		}
	}

	_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: fmt.Sprintf("Request %s", decision)})
	return nil
}
