package bot

import (
	"errors"
	"fmt"
	"log/slog"

	"mentorgate/entity"
	"mentorgate/internal/mentor"
	"mentorgate/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// invite issues a mentor code; without an argument the code is generated.
func (t *TgBot) invite(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireMentor(chatId) {
		return nil
	}

	code := ""
	if args := commandArgs(ctx.EffectiveMessage.Text); len(args) > 0 {
		code = args[0]
	}

	c, cancel := commandContext()
	defer cancel()
	mc, err := t.core.IssueCode(c, code)
	switch {
	case errors.Is(err, mentor.ErrDuplicateCode):
		t.plainResponse(chatId, fmt.Sprintf("Code `%s` already exists\\.", Sanitize(code)))
		return nil
	case errors.Is(err, mentor.ErrMalformedCode):
		t.plainResponse(chatId, "Codes are up to 64 letters, digits or dashes, starting with a letter or digit\\.")
		return nil
	case err != nil:
		t.reportError(chatId, "/invite", err)
		return nil
	}

	t.log.With(slog.Int64("user_id", chatId), sl.Code(mc.Code)).Info("code issued via telegram")
	t.plainResponse(chatId, fmt.Sprintf("New mentor code:\n`%s`", Sanitize(mc.Code)))
	return nil
}

func (t *TgBot) codes(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireMentor(chatId) {
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	list, degraded, err := t.core.ListCodes(c, 0)
	if err != nil {
		t.reportError(chatId, "/codes", err)
		return nil
	}
	t.plainResponse(chatId, formatCodes(list, degraded))
	return nil
}

func (t *TgBot) requests(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireMentor(chatId) {
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	list, degraded, err := t.core.ListRequests(c, 0)
	if err != nil {
		t.reportError(chatId, "/requests", err)
		return nil
	}
	t.plainResponse(chatId, formatRequests(list, degraded))
	return nil
}

// pendingCmd sends every pending request with decision buttons.
func (t *TgBot) pendingCmd(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireMentor(chatId) {
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	pending, err := t.core.PendingRequests(c)
	if err != nil {
		t.reportError(chatId, "/pending", err)
		return nil
	}
	if len(pending) == 0 {
		t.plainResponse(chatId, "No pending requests\\.")
		return nil
	}
	for _, r := range pending {
		t.sendWithKeyboard(chatId, formatRequest(r), buildDecisionKeyboard(r.Id))
	}
	return nil
}

func (t *TgBot) approve(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.decideCmd(ctx, entity.RequestApproved)
}

func (t *TgBot) reject(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.decideCmd(ctx, entity.RequestRejected)
}

func (t *TgBot) decideCmd(ctx *ext.Context, decision entity.RequestStatus) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireMentor(chatId) {
		return nil
	}

	args := commandArgs(ctx.EffectiveMessage.Text)
	if len(args) < 1 {
		t.plainResponse(chatId, "Usage: `/approve <request id>` or `/reject <request id>`")
		return nil
	}

	mr, err := t.decide(args[0], decision)
	if errors.Is(err, mentor.ErrRequestNotFound) {
		t.plainResponse(chatId, fmt.Sprintf("Request `%s` not found\\.", Sanitize(args[0])))
		return nil
	}
	if err != nil {
		t.reportError(chatId, fmt.Sprintf("/decide %s", decision), err)
		return nil
	}
	t.plainResponse(chatId, formatRequest(mr))
	return nil
}

// decide records the decision and returns the request as stored afterwards.
func (t *TgBot) decide(id string, decision entity.RequestStatus) (*entity.MentorRequest, error) {
	c, cancel := commandContext()
	defer cancel()
	if err := t.core.DecideRequest(c, id, decision); err != nil {
		return nil, err
	}
	return t.core.GetRequest(c, id)
}
