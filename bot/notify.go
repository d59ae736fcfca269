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

	"github.com/robfig/cron/v3"
)

// pendingTracker remembers which pending requests administrators were already told about.
// The first snapshot only primes the set; requests pending at startup are left to the reminder.
type pendingTracker struct {
	mu     sync.Mutex
	primed bool
	seen   map[string]bool
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{seen: make(map[string]bool)}
}

// observe returns the pending requests of the snapshot not seen before.
func (p *pendingTracker) observe(items []*entity.MentorRequest) []*entity.MentorRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]bool, len(items))
	var fresh []*entity.MentorRequest
	for _, r := range items {
		if !r.IsPending() {
			continue
		}
		current[r.Id] = true
		if p.primed && !p.seen[r.Id] {
			fresh = append(fresh, r)
		}
	}
	p.seen = current
	p.primed = true
	return fresh
}

// watchPending announces every new pending request to the enabled admins.
func (t *TgBot) watchPending(ctx context.Context) func() {
	if t.core == nil {
		return func() {}
	}
	return t.core.WatchRequests(ctx, t.config.RequestLimit,
		func(s mentor.Snapshot[*entity.MentorRequest]) {
			for _, r := range t.pending.observe(s.Items) {
				t.announce(r)
			}
		},
		func(err error) {
			t.log.Error("watching requests", sl.Err(err))
		},
	)
}

func (t *TgBot) announce(r *entity.MentorRequest) {
	t.log.With(sl.Request(r.Id)).Debug("announcing request")
	text := "*New mentor request*\n" + formatRequest(r)
	for _, id := range t.admins() {
		t.sendWithKeyboard(id, text, buildDecisionKeyboard(r.Id))
	}
}

func (t *TgBot) startReminder() error {
	if t.config.ReminderSchedule == "" {
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(t.config.ReminderSchedule, t.remindPending)
	if err != nil {
		return fmt.Errorf("reminder schedule %q: %w", t.config.ReminderSchedule, err)
	}
	c.Start()
	t.cron = c
	t.log.With(slog.String("schedule", t.config.ReminderSchedule)).Debug("reminder scheduled")
	return nil
}

// remindPending tells admins how many requests still wait for a decision.
func (t *TgBot) remindPending() {
	if t.core == nil {
		return
	}
	ctx, cancel := commandContext()
	defer cancel()

	pending, err := t.core.PendingRequests(ctx)
	if err != nil {
		t.log.Error("reminder: pending requests", sl.Err(err))
		return
	}
	if len(pending) == 0 {
		t.log.Debug("reminder: nothing pending")
		return
	}
	t.log.With(slog.Int("pending", len(pending))).Info("reminder sent")
	t.notifyAdmins(formatReminder(pending))
}
