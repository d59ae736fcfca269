package mentor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mentorgate/internal/store"
	"mentorgate/lib/sl"
)

type lister[T any] func(ctx context.Context) ([]T, bool, error)

type subscription[T any] struct {
	collection string
	list       lister[T]
	// fallback, when positive, triggers a one-shot read if no snapshot arrived in time.
	fallback time.Duration
	onChange func(Snapshot[T])
	onError  func(error)
}

// deliverer serializes callbacks and drops them once the watch is closed.
type deliverer[T any] struct {
	mu        sync.Mutex
	closed    atomic.Bool
	delivered bool
	onChange  func(Snapshot[T])
	onError   func(error)
}

func (d *deliverer[T]) deliver(s Snapshot[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return
	}
	d.delivered = true
	d.onChange(s)
}

// deliverFirst delivers only when nothing was delivered before, so a late fallback read
// never replaces a fresher snapshot.
func (d *deliverer[T]) deliverFirst(s Snapshot[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() || d.delivered {
		return
	}
	d.delivered = true
	d.onChange(s)
}

func (d *deliverer[T]) hasDelivered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered
}

func (d *deliverer[T]) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() || d.onError == nil {
		return
	}
	d.onError(err)
}

// watch delivers a snapshot now and after every change of the collection until the
// returned function is called. If the change feed cannot be opened, a single snapshot is
// read and delivered instead.
func watch[T any](ctx context.Context, st store.Store, log *slog.Logger, sub subscription[T]) func() {
	ctx, cancel := context.WithCancel(ctx)
	d := &deliverer[T]{onChange: sub.onChange, onError: sub.onError}
	log = log.With(slog.String("collection", sub.collection))

	var timer *time.Timer
	unsubscribe := func() {
		d.closed.Store(true)
		cancel()
		if timer != nil {
			timer.Stop()
		}
	}

	read := func() (Snapshot[T], error) {
		items, degraded, err := sub.list(ctx)
		return Snapshot[T]{Items: items, OrderingDegraded: degraded}, err
	}

	feed, err := st.Changes(ctx, sub.collection)
	if err != nil {
		log.Warn("watch setup failed; reading once", sl.Err(err))
		go func() {
			s, err := read()
			if err != nil {
				d.fail(err)
				return
			}
			d.deliver(s)
		}()
		return unsubscribe
	}

	if sub.fallback > 0 {
		timer = time.AfterFunc(sub.fallback, func() {
			if d.hasDelivered() || ctx.Err() != nil {
				return
			}
			log.Info("no snapshot in time; reading once")
			s, err := read()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("fallback read", sl.Err(err))
				}
				return
			}
			d.deliverFirst(s)
		})
	}

	refresh := func() {
		s, err := read()
		if err != nil {
			if ctx.Err() == nil {
				d.fail(err)
			}
			return
		}
		d.deliver(s)
	}

	go func() {
		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-feed.Done():
				if err := feed.Err(); err != nil && ctx.Err() == nil {
					log.Error("change feed stopped", sl.Err(err))
					d.fail(err)
				}
				return
			case <-feed.C():
				refresh()
			}
		}
	}()

	return unsubscribe
}
