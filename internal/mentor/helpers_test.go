package mentor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/sqlstore"
	"mentorgate/internal/store"

	"github.com/stretchr/testify/require"
)

var (
	errUnavailable = errors.New("index unavailable")
	testNow        = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *sqlstore.SqlStore {
	t.Helper()
	st, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "mentor.db"), 0, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// fixedClock returns increasing times one second apart.
func fixedClock() func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return testNow.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func newService(t *testing.T, st store.Store) *Service {
	t.Helper()
	return New(st, testLogger(), Options{
		Now:           fixedClock(),
		WatchFallback: 100 * time.Millisecond,
	})
}

// faultyStore injects failures into an otherwise working store.
type faultyStore struct {
	store.Store
	orderedFails bool
	changesFails bool
	// firstListDelay slows down the first request listing.
	firstListDelay time.Duration
	requestLists   atomic.Int64
}

func (f *faultyStore) FindCodes(ctx context.Context, q store.Query) ([]*entity.MentorCode, error) {
	if q.Ordered && f.orderedFails {
		return nil, errUnavailable
	}
	return f.Store.FindCodes(ctx, q)
}

func (f *faultyStore) FindRequests(ctx context.Context, q store.Query) ([]*entity.MentorRequest, error) {
	if q.Ordered && f.orderedFails {
		return nil, errUnavailable
	}
	if f.requestLists.Add(1) == 1 && f.firstListDelay > 0 {
		select {
		case <-time.After(f.firstListDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.Store.FindRequests(ctx, q)
}

func (f *faultyStore) Changes(ctx context.Context, collection string) (*store.Feed, error) {
	if f.changesFails {
		return nil, errUnavailable
	}
	return f.Store.Changes(ctx, collection)
}

var applicantX = entity.Applicant{UserId: "user-x", Email: "x@example.com", Name: "Xavier"}
var applicantY = entity.Applicant{UserId: "user-y", Email: "y@example.com", Name: "Yolanda"}
