package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/store"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTest(t *testing.T, path string, poll time.Duration) *SqlStore {
	t.Helper()
	s, err := OpenSQLite(path, poll, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestStore(t *testing.T) *SqlStore {
	return openTest(t, filepath.Join(t.TempDir(), "store.db"), 0)
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	_, err := OpenSQLite(" ", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestCreateCode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateCode(ctx, entity.NewMentorCode("MNTR-AB12C34", base)))

	err := s.CreateCode(ctx, entity.NewMentorCode("MNTR-AB12C34", base.Add(time.Hour)))
	assert.ErrorIs(t, err, store.ErrDuplicate)

	mc, err := s.GetCode(ctx, "MNTR-AB12C34")
	require.NoError(t, err)
	assert.Equal(t, entity.CodeUnused, mc.Status)
	assert.True(t, mc.CreatedAt.Equal(base))
	assert.Nil(t, mc.AssignedTo)
	assert.Nil(t, mc.UsedAt)

	_, err = s.GetCode(ctx, "MISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateCodeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const writers = 6
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateCode(ctx, entity.NewMentorCode("CODE-RACE", base.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, store.ErrDuplicate)
	}
	assert.Equal(t, 1, created)
}

func TestFindCodesOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateCode(ctx, entity.NewMentorCode("A", base)))
	require.NoError(t, s.CreateCode(ctx, entity.NewMentorCode("C", base.Add(time.Minute))))
	require.NoError(t, s.CreateCode(ctx, entity.NewMentorCode("B", base.Add(time.Minute))))

	codes, err := s.FindCodes(ctx, store.Query{Limit: 10, Ordered: true})
	require.NoError(t, err)
	require.Len(t, codes, 3)
	// equal timestamps fall back to key order, descending
	assert.Equal(t, []string{"C", "B", "A"}, []string{codes[0].Code, codes[1].Code, codes[2].Code})

	codes, err = s.FindCodes(ctx, store.Query{Limit: 1, Ordered: true})
	require.NoError(t, err)
	assert.Len(t, codes, 1)

	codes, err = s.FindCodes(ctx, store.Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, codes, 3)
}

func TestRunTxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	applicant := entity.Applicant{UserId: "u1", Email: "u1@example.com", Name: "User One"}

	err := s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		mc := entity.NewMentorCode("CODE-1", base)
		mc.MarkUsed(applicant, base.Add(time.Second))
		if err := tx.InsertCode(ctx, mc); err != nil {
			return err
		}
		return tx.InsertRequest(ctx, entity.NewMentorRequest("r1", "CODE-1", applicant, base))
	})
	require.NoError(t, err)

	mc, err := s.GetCode(ctx, "CODE-1")
	require.NoError(t, err)
	require.NotNil(t, mc.AssignedTo)
	assert.Equal(t, applicant, *mc.AssignedTo)
	assert.True(t, mc.UsedAt.Equal(base.Add(time.Second)))

	boom := errors.New("boom")
	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetRequestStatus(ctx, "r1", entity.RequestApproved); err != nil {
			return err
		}
		if err := tx.InsertCode(ctx, entity.NewMentorCode("CODE-2", base)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestPending, r.Status)
	assert.Equal(t, applicant, r.Applicant())
	_, err = s.GetCode(ctx, "CODE-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTxInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateCode(ctx, entity.NewMentorCode("CODE-1", base)))

	err := s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertCode(ctx, entity.NewMentorCode("CODE-1", base))
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestTxUpdateMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateCode(ctx, entity.NewMentorCode("MISSING", base))
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SetRequestStatus(ctx, "missing", entity.RequestApproved)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetCode(ctx, "MISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunTxStopsOnPlainError(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	boom := errors.New("boom")
	err := s.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestMySQLDialect(t *testing.T) {
	duplicate := fmt.Errorf("insert code: %w", &mysql.MySQLError{Number: mysqlDuplicateEntry})
	deadlock := fmt.Errorf("insert code: %w", &mysql.MySQLError{Number: mysqlDeadlock})
	lockWait := &mysql.MySQLError{Number: mysqlLockWait}

	assert.True(t, mysqlDialect.isDuplicate(duplicate))
	assert.False(t, mysqlDialect.isDuplicate(deadlock))
	assert.False(t, mysqlDialect.isDuplicate(errors.New("other")))

	assert.True(t, mysqlDialect.isRetryable(deadlock))
	assert.True(t, mysqlDialect.isRetryable(lockWait))
	assert.False(t, mysqlDialect.isRetryable(duplicate))
	assert.False(t, sqliteDialect.isRetryable(deadlock))

	assert.Equal(t, " FOR UPDATE", mysqlDialect.forUpdate)
	for _, stmt := range mysqlDialect.schema("mg_") {
		assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS mg_")
		assert.True(t, strings.HasSuffix(stmt, "ENGINE=InnoDB"))
	}
}

func TestChangesNotifiesOnCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	codes, err := s.Changes(ctx, store.CollectionCodes)
	require.NoError(t, err)
	requests, err := s.Changes(ctx, store.CollectionRequests)
	require.NoError(t, err)

	require.NoError(t, s.CreateCode(ctx, entity.NewMentorCode("CODE-1", base)))

	select {
	case <-codes.C():
	case <-time.After(time.Second):
		t.Fatal("no change signal for codes")
	}
	select {
	case <-requests.C():
		t.Fatal("unexpected change signal for requests")
	default:
	}

	cancel()
	select {
	case <-codes.Done():
		assert.NoError(t, codes.Err())
	case <-time.After(time.Second):
		t.Fatal("feed not stopped")
	}
}

func TestChangesPollsOtherWriters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "shared.db")
	reader := openTest(t, path, 20*time.Millisecond)
	writer := openTest(t, path, 0)

	feed, err := reader.Changes(ctx, store.CollectionCodes)
	require.NoError(t, err)

	require.NoError(t, writer.CreateCode(ctx, entity.NewMentorCode("CODE-1", base)))

	select {
	case <-feed.C():
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not detect the external write")
	}
}

func TestChangesUnknownCollection(t *testing.T) {
	_, err := newTestStore(t).Changes(context.Background(), "nope")
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	admin := &entity.User{
		Username:     "admin",
		Name:         "Admin",
		Token:        "0123456789abcdef",
		Role:         entity.RoleAdmin,
		TelegramId:   42,
		RegisteredAt: base,
	}
	require.NoError(t, s.SaveUser(admin))
	require.NoError(t, s.SetTelegramEnabled(42, true, -4))

	// saving again refreshes identity but keeps telegram preferences
	admin.Name = "Administrator"
	admin.TelegramEnabled = false
	require.NoError(t, s.SaveUser(admin))

	user, err := s.GetUser("0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "Administrator", user.Name)
	assert.Equal(t, entity.RoleAdmin, user.Role)
	assert.True(t, user.TelegramEnabled)
	assert.Equal(t, -4, user.LogLevel)
	assert.True(t, user.RegisteredAt.Equal(base))

	users, err := s.GetTelegramUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)

	_, err = s.GetUser("unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)

	clash := &entity.User{Username: "other", Token: "0123456789abcdef", Role: entity.RoleService, RegisteredAt: base}
	assert.ErrorIs(t, s.SaveUser(clash), store.ErrDuplicate)
}
