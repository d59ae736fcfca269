package mentor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/store"
	"mentorgate/lib/sl"
)

// Ledger reads mentor requests. Requests are only written by Workflow.
type Ledger struct {
	store    store.Store
	log      *slog.Logger
	limit    int
	fallback time.Duration
}

func NewLedger(st store.Store, log *slog.Logger, opts Options) *Ledger {
	opts = opts.withDefaults()
	return &Ledger{
		store:    st,
		log:      log.With(sl.Module("mentor.ledger")),
		limit:    opts.RequestLimit,
		fallback: opts.WatchFallback,
	}
}

func (l *Ledger) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	r, err := l.store.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// ListRequests returns up to limit requests newest first, degrading to an unordered full read.
func (l *Ledger) ListRequests(ctx context.Context, limit int) (requests []*entity.MentorRequest, degraded bool, err error) {
	if limit <= 0 {
		limit = l.limit
	}
	requests, err = l.store.FindRequests(ctx, store.Query{Limit: limit, Ordered: true})
	if err == nil {
		return requests, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, err
	}
	l.log.Warn("ordered request query failed; reading unordered", sl.Err(err))
	requests, err = l.store.FindRequests(ctx, store.Query{})
	if err != nil {
		return nil, false, fmt.Errorf("list requests: %w", err)
	}
	return requests, true, nil
}

// CountByStatus counts the requests of the given listing by status.
func CountByStatus(requests []*entity.MentorRequest) map[entity.RequestStatus]int {
	counts := map[entity.RequestStatus]int{
		entity.RequestPending:  0,
		entity.RequestApproved: 0,
		entity.RequestRejected: 0,
	}
	for _, r := range requests {
		counts[r.Status]++
	}
	return counts
}

// WatchRequests calls onChange with the current list and again after every change. If no
// snapshot arrives within the fallback delay a one-shot read is delivered; the subscription
// stays open.
func (l *Ledger) WatchRequests(ctx context.Context, limit int, onChange func(Snapshot[*entity.MentorRequest]), onError func(error)) func() {
	return watch(ctx, l.store, l.log, subscription[*entity.MentorRequest]{
		collection: store.CollectionRequests,
		list: func(ctx context.Context) ([]*entity.MentorRequest, bool, error) {
			return l.ListRequests(ctx, limit)
		},
		fallback: l.fallback,
		onChange: onChange,
		onError:  onError,
	})
}
