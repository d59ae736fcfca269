package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mentorgate/entity"
	"mentorgate/internal/mentor"
	"mentorgate/lib/sl"
)

type AuthService interface {
	UserByToken(token string) (*entity.User, error)
}

// Core is the facade used by the HTTP handlers and the bot.
type Core struct {
	mentor *mentor.Service
	auth   AuthService
	log    *slog.Logger
}

func New(svc *mentor.Service, log *slog.Logger) *Core {
	if svc == nil {
		panic("mentor service is nil")
	}
	return &Core{
		mentor: svc,
		log:    log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) AuthenticateByToken(token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(token)
}

// IssueCode issues the given code, or a generated one when code is blank.
func (c *Core) IssueCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	if strings.TrimSpace(code) == "" {
		return c.mentor.Codes.IssueGenerated(ctx)
	}
	return c.mentor.Codes.IssueCode(ctx, code)
}

func (c *Core) ListCodes(ctx context.Context, limit int) ([]*entity.MentorCode, bool, error) {
	return c.mentor.Codes.ListCodes(ctx, limit)
}

func (c *Core) WatchCodes(ctx context.Context, limit int, onChange func(mentor.Snapshot[*entity.MentorCode]), onError func(error)) func() {
	return c.mentor.Codes.WatchCodes(ctx, limit, onChange, onError)
}

func (c *Core) RedeemCode(ctx context.Context, params *entity.RedeemParams) mentor.RedeemResult {
	return c.mentor.Workflow.RedeemCode(ctx, params.Code, params.Applicant)
}

func (c *Core) ListRequests(ctx context.Context, limit int) ([]*entity.MentorRequest, bool, error) {
	return c.mentor.Requests.ListRequests(ctx, limit)
}

func (c *Core) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	return c.mentor.Requests.GetRequest(ctx, id)
}

func (c *Core) WatchRequests(ctx context.Context, limit int, onChange func(mentor.Snapshot[*entity.MentorRequest]), onError func(error)) func() {
	return c.mentor.Requests.WatchRequests(ctx, limit, onChange, onError)
}

func (c *Core) DecideRequest(ctx context.Context, id string, decision entity.RequestStatus) error {
	return c.mentor.Workflow.DecideRequest(ctx, id, decision)
}

// PendingRequests returns the pending requests among the newest ones.
func (c *Core) PendingRequests(ctx context.Context) ([]*entity.MentorRequest, error) {
	requests, degraded, err := c.mentor.Requests.ListRequests(ctx, 0)
	if err != nil {
		return nil, err
	}
	if degraded {
		c.log.Warn("pending requests read without ordering")
	}
	pending := make([]*entity.MentorRequest, 0, len(requests))
	for _, r := range requests {
		if r.IsPending() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}
