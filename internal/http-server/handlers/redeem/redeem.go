package redeem

import (
	"context"
	"log/slog"
	"net/http"

	"mentorgate/entity"
	"mentorgate/internal/http-server/handlers/errors"
	"mentorgate/internal/mentor"
	"mentorgate/lib/api/response"
	"mentorgate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	RedeemCode(ctx context.Context, params *entity.RedeemParams) mentor.RedeemResult
}

type Redeemed struct {
	RequestId string `json:"request_id"`
}

func Redeem(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.redeem")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("mentor service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Unavailable("Mentor service"))
			return
		}

		var params entity.RedeemParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Errorf("Invalid request: %v", err))
			return
		}
		logger = logger.With(
			sl.Code(params.Code),
			slog.String("user_id", params.Applicant.UserId),
		)

		result := handler.RedeemCode(r.Context(), &params)
		render.Status(r, errors.RedeemStatus(result))
		if !result.Success {
			logger.With(slog.String("reason", string(result.Reason))).Info("redemption rejected", sl.Err(result.Err))
			render.JSON(w, r, response.Rejected(string(result.Reason), result.Message()))
			return
		}
		logger.With(sl.Request(result.RequestId)).Debug("code redeemed")

		render.JSON(w, r, response.Ok(Redeemed{RequestId: result.RequestId}))
	}
}
