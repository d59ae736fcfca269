package requests

import (
	"context"
	"log/slog"
	"net/http"

	"mentorgate/entity"
	"mentorgate/internal/http-server/handlers/errors"
	"mentorgate/internal/mentor"
	"mentorgate/lib/api/response"
	"mentorgate/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	ListRequests(ctx context.Context, limit int) ([]*entity.MentorRequest, bool, error)
	GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error)
	DecideRequest(ctx context.Context, id string, decision entity.RequestStatus) error
}

// RequestList is the body of a listing with per-status counters.
type RequestList struct {
	Requests []*entity.MentorRequest     `json:"requests"`
	Counts   map[entity.RequestStatus]int `json:"counts"`
	Degraded bool                         `json:"ordering_degraded"`
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.requests")

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

		list, degraded, err := handler.ListRequests(r.Context(), limit)
		if err != nil {
			logger.Error("list requests", sl.Err(err))
			render.Status(r, errors.Status(err))
			render.JSON(w, r, response.Errorf("List requests: %v", err))
			return
		}
		if degraded {
			logger.Warn("requests listed without ordering")
		}

		render.JSON(w, r, response.Ok(RequestList{
			Requests: list,
			Counts:   mentor.CountByStatus(list),
			Degraded: degraded,
		}))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.requests")

		id := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Request(id),
		)

		if handler == nil {
			logger.Error("mentor service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Unavailable("Mentor service"))
			return
		}

		mr, err := handler.GetRequest(r.Context(), id)
		if err != nil {
			logger.Warn("get request", sl.Err(err))
			render.Status(r, errors.Status(err))
			render.JSON(w, r, response.Errorf("Get request: %v", err))
			return
		}

		render.JSON(w, r, response.Ok(mr))
	}
}

func Approve(log *slog.Logger, handler Core) http.HandlerFunc {
	return decide(log, handler, entity.RequestApproved)
}

func Reject(log *slog.Logger, handler Core) http.HandlerFunc {
	return decide(log, handler, entity.RequestRejected)
}

func decide(log *slog.Logger, handler Core, decision entity.RequestStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.requests")

		id := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Request(id),
			slog.String("decision", string(decision)),
		)

		if handler == nil {
			logger.Error("mentor service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Unavailable("Mentor service"))
			return
		}

		if err := handler.DecideRequest(r.Context(), id, decision); err != nil {
			logger.Warn("decide request", sl.Err(err))
			render.Status(r, errors.Status(err))
			render.JSON(w, r, response.Errorf("Decide request: %v", err))
			return
		}

		mr, err := handler.GetRequest(r.Context(), id)
		if err != nil {
			logger.Error("read decided request", sl.Err(err))
			render.JSON(w, r, response.Ok(nil))
			return
		}
		logger.Debug("request decided")

		render.JSON(w, r, response.Ok(mr))
	}
}
