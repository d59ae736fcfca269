package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"mentorgate/lib/sl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	msg   string
	level slog.Level
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sent
}

func (f *fakeSender) SendMessageWithLevel(msg string, level slog.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sent{msg: msg, level: level})
}

func TestLevelFor(t *testing.T) {
	level, err := levelFor(envLocal)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = levelFor(envProd)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = levelFor("staging")
	assert.Error(t, err)
}

func TestTelegramHandlerForwards(t *testing.T) {
	var buf bytes.Buffer
	sender := &fakeSender{}
	log := WithTelegram(New(&buf, slog.LevelDebug), sender, slog.LevelWarn)

	log.Info("starting")
	log.With(sl.Module("mentor.workflow")).Warn("terminal decision overwritten", sl.Request("r-1"))
	log.Error("store down", sl.Err(errors.New("timeout")))

	assert.Contains(t, buf.String(), "starting")
	require.Len(t, sender.messages, 2)

	assert.Equal(t, slog.LevelWarn, sender.messages[0].level)
	assert.Contains(t, sender.messages[0].msg, "*WARN* `terminal decision overwritten`")
	assert.Contains(t, sender.messages[0].msg, "mod: mentor\\.workflow")
	assert.Contains(t, sender.messages[0].msg, "mentor\\_request: r\\-1")

	assert.Contains(t, sender.messages[1].msg, "```error timeout ```")
}

func TestTelegramHandlerDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	sender := &fakeSender{}
	log := WithTelegram(New(&buf, slog.LevelDebug), sender, slog.LevelWarn)

	// components built from the wrapped logger keep forwarding
	storeLog := log.With(sl.Module("sqlstore"), slog.String("driver", "mysql"))
	storeLog.Warn("create index", sl.Err(errors.New("no permission")))
	storeLog.Debug("transaction retried")

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].msg, "mod: sqlstore")
	assert.Contains(t, sender.messages[0].msg, "driver: mysql")
}

func TestTelegramHandlerSkipsBotRecords(t *testing.T) {
	var buf bytes.Buffer
	sender := &fakeSender{}
	log := WithTelegram(New(&buf, slog.LevelDebug), sender, slog.LevelWarn)

	log.With(sl.Module(skipModule)).Error("sending message")
	log.Error("sending message", sl.Module(skipModule))

	assert.Empty(t, sender.messages)
	assert.Contains(t, buf.String(), "sending message")
}

func TestTelegramHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	sender := &fakeSender{}
	log := WithTelegram(New(&buf, slog.LevelDebug), sender, slog.LevelInfo)

	log.WithGroup("api").Info("listening")
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].msg, "`api.listening`")
}
