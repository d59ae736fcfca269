package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mentorgate/internal/store"
	"mentorgate/lib/sl"
)

// hub fans out commit notifications from this process to open feeds.
type hub struct {
	mu    sync.Mutex
	feeds map[string]map[*store.Feed]struct{}
}

func newHub() *hub {
	return &hub{feeds: make(map[string]map[*store.Feed]struct{})}
}

func (h *hub) add(collection string, f *store.Feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.feeds[collection] == nil {
		h.feeds[collection] = make(map[*store.Feed]struct{})
	}
	h.feeds[collection][f] = struct{}{}
}

func (h *hub) remove(collection string, f *store.Feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.feeds[collection], f)
}

func (h *hub) notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for f := range h.feeds[collection] {
		f.Notify()
	}
}

type fingerprint struct {
	count   int64
	updated int64
}

func (s *SqlStore) fingerprint(ctx context.Context, collection string) (fingerprint, error) {
	var fp fingerprint
	stmt, err := s.stmtFingerprint(collection)
	if err != nil {
		return fp, err
	}
	if err = stmt.QueryRowContext(ctx).Scan(&fp.count, &fp.updated); err != nil {
		return fp, fmt.Errorf("fingerprint %s: %w", collection, err)
	}
	return fp, nil
}

// Changes notifies on commits made through this store immediately and, when a poll
// interval is set, on writes by other processes detected by polling row count and the
// latest update time.
func (s *SqlStore) Changes(ctx context.Context, collection string) (*store.Feed, error) {
	if collection != store.CollectionCodes && collection != store.CollectionRequests {
		return nil, fmt.Errorf("changes: unknown collection %q", collection)
	}
	last, err := s.fingerprint(ctx, collection)
	if err != nil {
		return nil, err
	}

	feed := store.NewFeed()
	s.hub.add(collection, feed)

	go func() {
		defer s.hub.remove(collection, feed)

		var tick <-chan time.Time
		if s.poll > 0 {
			ticker := time.NewTicker(s.poll)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ctx.Done():
				feed.Stop(nil)
				return
			case <-tick:
				fp, err := s.fingerprint(ctx, collection)
				if err != nil {
					if ctx.Err() != nil {
						feed.Stop(nil)
						return
					}
					s.log.Warn("polling changes", sl.Err(err))
					feed.Stop(err)
					return
				}
				if fp != last {
					last = fp
					feed.Notify()
				}
			}
		}
	}()
	return feed, nil
}
