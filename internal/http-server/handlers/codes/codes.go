package codes

import (
	"context"
	"log/slog"
	"net/http"

	"mentorgate/entity"
	"mentorgate/internal/http-server/handlers/errors"
	"mentorgate/lib/api/response"
	"mentorgate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	IssueCode(ctx context.Context, code string) (*entity.MentorCode, error)
	ListCodes(ctx context.Context, limit int) ([]*entity.MentorCode, bool, error)
}

// CodeList is the body of a listing; Degraded reports an unordered result.
type CodeList struct {
	Codes    []*entity.MentorCode `json:"codes"`
	Degraded bool                 `json:"ordering_degraded"`
}

func Issue(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.codes")

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

		var params entity.IssueParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Errorf("Invalid request: %v", err))
			return
		}

		mc, err := handler.IssueCode(r.Context(), params.Code)
		if err != nil {
			logger.With(sl.Code(params.Code)).Warn("issue code", sl.Err(err))
			render.Status(r, errors.Status(err))
			render.JSON(w, r, response.Errorf("Issue code: %v", err))
			return
		}
		logger.With(sl.Code(mc.Code)).Debug("code issued")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(mc))
	}
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.codes")

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

		limit, err := errors.Limit(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		list, degraded, err := handler.ListCodes(r.Context(), limit)
		if err != nil {
			logger.Error("list codes", sl.Err(err))
			render.Status(r, errors.Status(err))
			render.JSON(w, r, response.Errorf("List codes: %v", err))
			return
		}
		if degraded {
			logger.Warn("codes listed without ordering")
		}

		render.JSON(w, r, response.Ok(CodeList{Codes: list, Degraded: degraded}))
	}
}
