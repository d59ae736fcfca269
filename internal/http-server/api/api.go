package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mentorgate/internal/config"
	handlerErrors "mentorgate/internal/http-server/handlers/errors"
	"mentorgate/internal/http-server/handlers/codes"
	"mentorgate/internal/http-server/handlers/redeem"
	"mentorgate/internal/http-server/handlers/requests"
	"mentorgate/internal/http-server/handlers/stream"
	"mentorgate/internal/http-server/middleware/authenticate"
	"mentorgate/internal/http-server/middleware/timeout"
	"mentorgate/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	codes.Core
	redeem.Core
	requests.Core
	stream.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port),
		Handler:      NewRouter(log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// NewRouter builds the API routes. Event streams are mounted outside the request timeout.
func NewRouter(log *slog.Logger, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(handlerErrors.NotFound(log))
	router.MethodNotAllowed(handlerErrors.NotAllowed(log))

	router.Route("/v1", func(v1 chi.Router) {
		v1.Use(authenticate.New(log, handler))

		v1.Group(func(rest chi.Router) {
			rest.Use(timeout.Timeout(5))
			rest.Use(render.SetContentType(render.ContentTypeJSON))

			rest.With(authenticate.Redeemer).Post("/redeem", redeem.Redeem(log, handler))

			rest.Group(func(admin chi.Router) {
				admin.Use(authenticate.Admin)
				admin.Post("/codes", codes.Issue(log, handler))
				admin.Get("/codes", codes.List(log, handler))
				admin.Get("/requests", requests.List(log, handler))
				admin.Get("/requests/{id}", requests.Get(log, handler))
				admin.Post("/requests/{id}/approve", requests.Approve(log, handler))
				admin.Post("/requests/{id}/reject", requests.Reject(log, handler))
			})
		})

		v1.Group(func(streams chi.Router) {
			streams.Use(authenticate.Admin)
			streams.Get("/codes/stream", stream.Codes(log, handler))
			streams.Get("/requests/stream", stream.Requests(log, handler))
		})
	})

	return router
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", s.httpServer.Addr))

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}
