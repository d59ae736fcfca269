// Package bot implements the administrators' Telegram bot.
//
// Architecture overview:
//   - tgbot.go     TgBot struct, lifecycle (Start/Stop), user cache, Database and Core interfaces
//   - commands.go  account commands: /start, /stop, /level, /help
//   - admin.go     mentor commands: /invite, /codes, /requests, /approve, /reject
//   - callbacks.go inline keyboard builders and callback query handlers
//   - menus.go     per-user command menus via Telegram's BotCommandScope API
//   - messaging.go log forwarding filtered by each user's level
//   - notify.go    announcements of new pending requests and the scheduled reminder
//   - format.go    message formatting for codes and requests
//   - helpers.go   Sanitize, plainResponse, reportError
//
// Only users that carry a telegram_id in the store are known to the bot. Commands that
// touch mentor codes or requests are restricted to administrators.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/mentor"
	"mentorgate/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/robfig/cron/v3"
)

// BotConfig holds Telegram-specific settings loaded from the YAML config file.
type BotConfig struct {
	// ReminderSchedule is a standard cron expression; empty disables the reminder.
	ReminderSchedule string
	// RequestLimit bounds the snapshot watched for new pending requests.
	RequestLimit int
}

// Database defines the storage operations the bot depends on.
type Database interface {
	GetTelegramUsers() ([]*entity.User, error)
	SetTelegramEnabled(telegramId int64, enabled bool, logLevel int) error
}

// Core is the mentor workflow as seen by administrators.
type Core interface {
	IssueCode(ctx context.Context, code string) (*entity.MentorCode, error)
	ListCodes(ctx context.Context, limit int) ([]*entity.MentorCode, bool, error)
	ListRequests(ctx context.Context, limit int) ([]*entity.MentorRequest, bool, error)
	GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error)
	DecideRequest(ctx context.Context, id string, decision entity.RequestStatus) error
	PendingRequests(ctx context.Context) ([]*entity.MentorRequest, error)
	WatchRequests(ctx context.Context, limit int, onChange func(mentor.Snapshot[*entity.MentorRequest]), onError func(error)) func()
}

// TgBot is the central Telegram bot instance.
// It caches known users in memory, refreshed on every state change.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	db          Database
	core        Core
	mu          sync.RWMutex           // guards users and adminIds
	users       map[int64]*entity.User // telegram_id -> User
	adminIds    []int64
	minLogLevel slog.Level
	updater     *ext.Updater
	cron        *cron.Cron
	pending     *pendingTracker
	cancel      context.CancelFunc
	config      BotConfig
}

func NewTgBot(apiKey string, db Database, core Core, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		db:          db,
		core:        core,
		minLogLevel: slog.LevelDebug,
		users:       make(map[int64]*entity.User),
		pending:     newPendingTracker(),
		config:      cfg,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// SetDatabase attaches the user store; until then the bot knows no users.
func (t *TgBot) SetDatabase(db Database) {
	t.db = db
}

// SetCore attaches the mentor workflow; mentor commands are ignored until it is set.
func (t *TgBot) SetCore(core Core) {
	t.core = core
}

// Start polls for updates and blocks until Stop is called.
func (t *TgBot) Start() error {
	t.loadUsers()

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	if err := t.startReminder(); err != nil {
		cancel()
		return err
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	// Account commands
	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("stop", t.stop))
	dispatcher.AddHandler(handlers.NewCommand("level", t.level))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	// Mentor commands
	dispatcher.AddHandler(handlers.NewCommand("invite", t.invite))
	dispatcher.AddHandler(handlers.NewCommand("codes", t.codes))
	dispatcher.AddHandler(handlers.NewCommand("requests", t.requests))
	dispatcher.AddHandler(handlers.NewCommand("pending", t.pendingCmd))
	dispatcher.AddHandler(handlers.NewCommand("approve", t.approve))
	dispatcher.AddHandler(handlers.NewCommand("reject", t.reject))

	// Callback query handlers
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbLevel), t.onLevelCallback))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbApprove), t.onDecisionCallback))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbReject), t.onDecisionCallback))

	t.setDefaultCommands()
	t.syncAllUserMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start polling: %w", err)
	}

	unsubscribe := t.watchPending(ctx)
	defer unsubscribe()

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.cron != nil {
		<-t.cron.Stop().Done()
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}

// loadUsers refreshes the in-memory user cache and the list of admin ids.
func (t *TgBot) loadUsers() {
	if t.db == nil {
		return
	}
	users, err := t.db.GetTelegramUsers()
	if err != nil {
		t.log.Error("loading users", sl.Err(err))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.users = make(map[int64]*entity.User)
	t.adminIds = nil
	active := 0
	for _, user := range users {
		t.users[user.TelegramId] = user
		if user.TelegramEnabled {
			active++
		}
		if user.IsAdmin() {
			t.adminIds = append(t.adminIds, user.TelegramId)
		}
	}
	t.log.With(
		slog.Int("count", len(t.users)),
		slog.Int("active", active),
		slog.Int("admins", len(t.adminIds)),
	).Debug("loaded users")
}

func (t *TgBot) findUser(id int64) *entity.User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	user, ok := t.users[id]
	if ok {
		return user
	}
	return nil
}
