package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentorgate/bot"
	"mentorgate/impl/auth"
	"mentorgate/impl/core"
	"mentorgate/internal/config"
	"mentorgate/internal/database"
	"mentorgate/internal/http-server/api"
	"mentorgate/internal/mentor"
	"mentorgate/internal/sqlstore"
	"mentorgate/internal/store"
	"mentorgate/lib/logger"
	"mentorgate/lib/sl"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// backend is what every store driver provides.
type backend interface {
	store.Store
	store.UserStore
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, conf.LogPath)
	lg.Info("starting mentorgate", slog.String("config", *configPath), slog.String("env", conf.Env))

	// the bot comes first so that store and auth log through the forwarding handler
	var tgBot *bot.TgBot
	var err error
	if conf.Telegram.Enabled {
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, nil, nil, lg, bot.BotConfig{
			ReminderSchedule: conf.Telegram.ReminderSchedule,
			RequestLimit:     conf.Mentor.RequestListLimit,
		})
		if err != nil {
			log.Fatal("telegram bot: ", err)
		}
		if conf.Telegram.ForwardLogs {
			lg = logger.WithTelegram(lg, tgBot, slog.LevelWarn)
		}
	}

	db, err := openStore(conf, lg)
	if err != nil {
		lg.Error("open store", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Error("close store", sl.Err(err))
		}
	}()

	if tgBot != nil {
		tgBot.SetDatabase(db)
	}

	authService := auth.New(db, lg)
	seeded, err := authService.Seed(conf.Users)
	if err != nil {
		lg.Error("seed users", sl.Err(err))
	}
	lg.With(slog.Int("count", seeded)).Info("users seeded")

	svc := mentor.New(db, lg, mentor.Options{
		CodeLimit:     conf.Mentor.CodeListLimit,
		RequestLimit:  conf.Mentor.RequestListLimit,
		WatchFallback: conf.Mentor.WatchFallback(),
		IssueAttempts: conf.Mentor.IssueAttempts,
	})
	handler := core.New(svc, lg)
	handler.SetAuthService(authService)
	if tgBot != nil {
		tgBot.SetCore(handler)
	}

	server := api.New(conf, lg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	if tgBot != nil {
		group.Go(tgBot.Start)
	}
	group.Go(func() error {
		<-gCtx.Done()
		lg.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if tgBot != nil {
			tgBot.Stop()
		}
		return server.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		lg.Error("server stopped", sl.Err(err))
		return
	}
	lg.Info("server stopped")
}

func openStore(conf *config.Config, log *slog.Logger) (backend, error) {
	poll := conf.Mentor.PollInterval()
	switch conf.Store.Driver {
	case config.DriverMongo:
		return database.NewMongoClient(conf.Mongo, log)
	case config.DriverSQLite:
		return sqlstore.OpenSQLite(conf.SQLite.Path, poll, log)
	case config.DriverMySQL:
		return sqlstore.OpenMySQL(conf.MySQL, poll, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", conf.Store.Driver)
	}
}
