package mentor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/store"
	"mentorgate/lib/sl"
)

// Workflow runs the two transactions that change codes and requests together.
type Workflow struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewWorkflow(st store.Store, log *slog.Logger, opts Options) *Workflow {
	opts = opts.withDefaults()
	return &Workflow{
		store: st,
		log:   log.With(sl.Module("mentor.workflow")),
		now:   opts.Now,
	}
}

// RedeemCode consumes an unused code and files a pending request for the applicant in one
// transaction. Of any number of concurrent redemptions of one code exactly one succeeds.
func (w *Workflow) RedeemCode(ctx context.Context, code string, applicant entity.Applicant) RedeemResult {
	code = NormalizeCode(code)
	log := w.log.With(sl.Code(code), slog.String("user_id", applicant.UserId))

	if code == "" {
		return rejected(ErrInvalidCode)
	}
	if err := applicant.Validate(); err != nil {
		return rejected(fmt.Errorf("invalid applicant: %w", err))
	}

	var requestId string
	err := w.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		g := guard(tx)

		mc, err := g.GetCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		if err != nil {
			return err
		}
		if !mc.IsUnused() {
			return ErrCodeAlreadyUsed
		}

		now := w.now()
		request := entity.NewMentorRequest(w.store.NewId(), code, applicant, now)
		mc.MarkUsed(applicant, now)
		if err = g.UpdateCode(ctx, mc); err != nil {
			return err
		}
		if err = g.InsertRequest(ctx, request); err != nil {
			return err
		}
		requestId = request.Id
		return nil
	})

	switch {
	case err == nil:
		log.With(sl.Request(requestId)).Info("code redeemed")
		return redeemed(requestId)
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrCodeAlreadyUsed):
		log.Info("redemption rejected", sl.Err(err))
		return rejected(err)
	default:
		log.Error("redemption failed", sl.Err(err))
		return rejected(fmt.Errorf("redeem code: %w", err))
	}
}

// DecideRequest sets the status of a request. Approval also makes sure the request's code
// is recorded as used by the applicant, creating the code if it has disappeared.
// Deciding an already decided request again is allowed: the same decision changes nothing,
// a different one overwrites the status.
// A code already used by the request's applicant is left as is, so its usedAt stays the time
// of the first approval and repeated approvals write nothing.
func (w *Workflow) DecideRequest(ctx context.Context, id string, decision entity.RequestStatus) error {
	if !decision.IsDecision() {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	log := w.log.With(sl.Request(id), slog.String("decision", string(decision)))

	var previous entity.RequestStatus
	err := w.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		g := guard(tx)

		request, err := g.GetRequest(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		var mc *entity.MentorCode
		if decision == entity.RequestApproved {
			mc, err = g.GetCode(ctx, request.Code)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		previous = request.Status
		applicant := request.Applicant()
		if decision == entity.RequestApproved {
			now := w.now()
			switch {
			case mc == nil:
				mc = entity.NewMentorCode(request.Code, now)
				mc.MarkUsed(applicant, now)
				if err = g.InsertCode(ctx, mc); err != nil {
					return err
				}
			case !assignedTo(mc, applicant):
				mc.MarkUsed(applicant, now)
				if err = g.UpdateCode(ctx, mc); err != nil {
					return err
				}
			}
		}
		if previous == decision {
			return nil
		}
		return g.SetRequestStatus(ctx, id, decision)
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrRequestNotFound):
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	default:
		log.Error("decide request", sl.Err(err))
		return fmt.Errorf("decide request: %w", err)
	}

	switch {
	case previous == decision:
		log.Debug("decision unchanged")
	case previous.IsDecision():
		log.With(slog.String("previous", string(previous))).Warn("terminal decision overwritten")
	default:
		log.Info("request decided")
	}
	return nil
}

// assignedTo reports whether the code is already consistently used by the applicant.
func assignedTo(mc *entity.MentorCode, applicant entity.Applicant) bool {
	return mc.Status == entity.CodeUsed && mc.Consistent() && *mc.AssignedTo == applicant
}
