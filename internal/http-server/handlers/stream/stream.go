// Package stream serves watch subscriptions as server-sent events. Every snapshot is sent as a
// "snapshot" event; a subscription error ends the stream with an "error" event.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/http-server/handlers/errors"
	"mentorgate/internal/mentor"
	"mentorgate/lib/api/response"
	"mentorgate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const keepAlive = 25 * time.Second

type Core interface {
	WatchCodes(ctx context.Context, limit int, onChange func(mentor.Snapshot[*entity.MentorCode]), onError func(error)) func()
	WatchRequests(ctx context.Context, limit int, onChange func(mentor.Snapshot[*entity.MentorRequest]), onError func(error)) func()
}

// Payload is the data of a snapshot event.
type Payload[T any] struct {
	Items    []T  `json:"items"`
	Degraded bool `json:"ordering_degraded"`
}

type watchFunc[T any] func(ctx context.Context, limit int, onChange func(mentor.Snapshot[T]), onError func(error)) func()

func Codes(log *slog.Logger, handler Core) http.HandlerFunc {
	var watch watchFunc[*entity.MentorCode]
	if handler != nil {
		watch = handler.WatchCodes
	}
	return serve(log.With(sl.Module("http.handlers.stream"), slog.String("collection", "codes")), watch)
}

func Requests(log *slog.Logger, handler Core) http.HandlerFunc {
	var watch watchFunc[*entity.MentorRequest]
	if handler != nil {
		watch = handler.WatchRequests
	}
	return serve(log.With(sl.Module("http.handlers.stream"), slog.String("collection", "requests")), watch)
}

type event struct {
	name string
	data any
}

func serve[T any](log *slog.Logger, watch watchFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("request_id", middleware.GetReqID(r.Context())))

		if watch == nil {
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

		rc := http.NewResponseController(w)
		// streams outlive the server write timeout
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err = rc.Flush(); err != nil {
			logger.Error("streaming not supported", sl.Err(err))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// only the latest pending event matters
		events := make(chan event, 1)
		push := func(e event) {
			for {
				select {
				case events <- e:
					return
				default:
				}
				select {
				case <-events:
				default:
				}
			}
		}

		unsubscribe := watch(ctx, limit,
			func(s mentor.Snapshot[T]) {
				push(event{name: "snapshot", data: Payload[T]{Items: s.Items, Degraded: s.OrderingDegraded}})
			},
			func(err error) {
				push(event{name: "error", data: response.Error(err.Error())})
			},
		)
		defer unsubscribe()
		logger.Debug("stream opened")

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("stream closed")
				return
			case <-ticker.C:
				if _, err = fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				_ = rc.Flush()
			case e := <-events:
				if err = writeEvent(w, e); err != nil {
					logger.Debug("write event", sl.Err(err))
					return
				}
				_ = rc.Flush()
				if e.name == "error" {
					return
				}
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, e event) error {
	data, err := json.Marshal(e.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, data)
	return err
}
