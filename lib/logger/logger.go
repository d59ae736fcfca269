package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger writes to stdout in the local environment and to logPath otherwise.
func SetupLogger(env, logPath string) *slog.Logger {
	level, err := levelFor(env)
	if err != nil {
		log.Fatal(err)
	}

	var out io.Writer = os.Stdout
	if env != envLocal {
		logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("error opening log file: ", err)
		}
		log.Printf("env: %s; log file: %s", env, logPath)
		out = logFile
	}

	return New(out, level)
}

func New(out io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func levelFor(env string) (slog.Level, error) {
	switch env {
	case envLocal, envDev:
		return slog.LevelDebug, nil
	case envProd:
		return slog.LevelInfo, nil
	default:
		return 0, fmt.Errorf("invalid environment: %s", env)
	}
}

// WithTelegram forwards records at minLevel and above through sender.
func WithTelegram(log *slog.Logger, sender Sender, minLevel slog.Level) *slog.Logger {
	return slog.New(NewTelegramHandler(log.Handler(), sender, minLevel))
}
