package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mentorgate/bot"
)

// Sender delivers a formatted message to subscribers of the given level.
type Sender interface {
	SendMessageWithLevel(msg string, level slog.Level)
}

// Records of the bot's own module are never forwarded, a failed send would be logged and sent again.
const (
	moduleKey  = "mod"
	skipModule = "tgbot"
)

// TelegramHandler is a slog.Handler that also forwards records to Telegram
type TelegramHandler struct {
	handler  slog.Handler
	sender   Sender
	minLevel slog.Level
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
	skip     bool
}

func NewTelegramHandler(handler slog.Handler, sender Sender, minLevel slog.Level) *TelegramHandler {
	return &TelegramHandler{
		handler:  handler,
		sender:   sender,
		minLevel: minLevel,
		mu:       &sync.Mutex{},
		attrs:    make([]slog.Attr, 0),
	}
}

// Enabled reports whether the underlying handler accepts the level; forwarding is decided in Handle.
func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if err != nil {
		return err
	}

	if h.sender == nil || h.skip || record.Level < h.minLevel || fromModule(record, skipModule) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sender.SendMessageWithLevel(h.format(record), record.Level)
	return nil
}

func (h *TelegramHandler) format(record slog.Record) string {
	var sb strings.Builder
	if h.group != "" {
		sb.WriteString(fmt.Sprintf("*%s* `%s.%s`", record.Level.String(), h.group, record.Message))
	} else {
		sb.WriteString(fmt.Sprintf("*%s* `%s`", record.Level.String(), record.Message))
	}

	write := func(attr slog.Attr) {
		if attr.Key == "error" {
			sb.WriteString(fmt.Sprintf("\n%s: ```error %v ```", attr.Key, attr.Value))
			return
		}
		sb.WriteString(bot.Sanitize(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
	}
	for _, attr := range h.attrs {
		write(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		write(attr)
		return true
	})
	return sb.String()
}

func fromModule(record slog.Record, module string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == moduleKey && attr.Value.String() == module {
			found = true
			return false
		}
		return true
	})
	return found
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	skip := h.skip
	for _, attr := range attrs {
		if attr.Key == moduleKey && attr.Value.String() == skipModule {
			skip = true
		}
	}

	return &TelegramHandler{
		handler:  h.handler.WithAttrs(attrs),
		sender:   h.sender,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    newAttrs,
		group:    h.group,
		skip:     skip,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &TelegramHandler{
		handler:  h.handler.WithGroup(name),
		sender:   h.sender,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    h.attrs,
		group:    group,
		skip:     h.skip,
	}
}
