package errors

import (
	"log/slog"
	"net/http"

	"mentorgate/lib/api/response"
	"mentorgate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// NotFound answers requests for unknown routes with the standard envelope.
func NotFound(log *slog.Logger) http.HandlerFunc {
	return fallback(log, http.StatusNotFound, "Requested resource not found")
}

// NotAllowed answers known routes called with an unsupported method.
func NotAllowed(log *slog.Logger) http.HandlerFunc {
	return fallback(log, http.StatusMethodNotAllowed, "Method not allowed")
}

func fallback(log *slog.Logger, status int, message string) http.HandlerFunc {
	logger := log.With(sl.Module("http.handlers.errors"))
	return func(w http.ResponseWriter, r *http.Request) {
		logger.With(
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		).Debug("unrouted request")
		render.Status(r, status)
		render.JSON(w, r, response.Error(message))
	}
}
