package mentor

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"mentorgate/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^MNTR-[0-9A-Z]{5}[1-9][0-9]$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateCode()
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "MNTR-AB12C34", NormalizeCode("  mntr-ab12c34\n"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestOptionsDefaultsOnce(t *testing.T) {
	calls := 0
	opts := Options{Now: func() time.Time {
		calls++
		return testNow.Add(1500 * time.Microsecond)
	}}.withDefaults()
	again := opts.withDefaults()

	assert.Equal(t, DefaultCodeLimit, again.CodeLimit)
	assert.Equal(t, DefaultIssueAttempts, again.IssueAttempts)
	assert.Equal(t, testNow.Add(time.Millisecond), again.Now())
	assert.Equal(t, 1, calls)
	// the defaulted time source is kept, not wrapped a second time
	assert.Equal(t, reflect.ValueOf(opts.Now).Pointer(), reflect.ValueOf(again.Now).Pointer())
}

func TestIssueCode(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, openStore(t))

	mc, err := svc.Codes.IssueCode(ctx, "MNTR-AB12C34")
	require.NoError(t, err)
	assert.Equal(t, entity.CodeUnused, mc.Status)
	assert.Nil(t, mc.AssignedTo)
	assert.Nil(t, mc.UsedAt)

	codes, degraded, err := svc.Codes.ListCodes(ctx, 0)
	require.NoError(t, err)
	assert.False(t, degraded)

	var matches int
	for _, c := range codes {
		if c.Code == "MNTR-AB12C34" {
			matches++
			assert.Equal(t, entity.CodeUnused, c.Status)
			assert.True(t, c.CreatedAt.Equal(mc.CreatedAt))
		}
	}
	assert.Equal(t, 1, matches)
}

func TestIssueCodeDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, openStore(t))

	_, err := svc.Codes.IssueCode(ctx, "MNTR-AB12C34")
	require.NoError(t, err)
	result := svc.Workflow.RedeemCode(ctx, "MNTR-AB12C34", applicantX)
	require.True(t, result.Success)

	_, err = svc.Codes.IssueCode(ctx, "mntr-ab12c34")
	assert.ErrorIs(t, err, ErrDuplicateCode)

	// the used code was not reset by the failed issue
	codes, _, err := svc.Codes.ListCodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, entity.CodeUsed, codes[0].Status)
	assert.Equal(t, applicantX, *codes[0].AssignedTo)
}

func TestIssueCodeConcurrent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, openStore(t))

	const issuers = 8
	var wg sync.WaitGroup
	errs := make(chan error, issuers)
	for i := 0; i < issuers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Codes.IssueCode(ctx, "MNTR-RACE012")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var issued, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			issued++
		case errors.Is(err, ErrDuplicateCode):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, issued)
	assert.Equal(t, issuers-1, duplicates)

	codes, _, err := svc.Codes.ListCodes(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, codes, 1)
}

func TestIssueCodeMalformed(t *testing.T) {
	svc := newService(t, openStore(t))
	for _, code := range []string{"", "   ", "MNTR AB12", "MNTR_AB12", "-MNTR", strings.Repeat("A", 65)} {
		_, err := svc.Codes.IssueCode(context.Background(), code)
		assert.ErrorIs(t, err, ErrMalformedCode, "code %q", code)
	}
}

func TestIssueGenerated(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, openStore(t))

	first, err := svc.Codes.IssueGenerated(ctx)
	require.NoError(t, err)
	second, err := svc.Codes.IssueGenerated(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)

	codes, _, err := svc.Codes.ListCodes(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, codes, 2)
}

func TestListCodesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, openStore(t))

	for _, code := range []string{"CODE-1", "CODE-2", "CODE-3", "CODE-4"} {
		_, err := svc.Codes.IssueCode(ctx, code)
		require.NoError(t, err)
	}

	codes, degraded, err := svc.Codes.ListCodes(ctx, 3)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, codes, 3)
	assert.Equal(t, "CODE-4", codes[0].Code)
	assert.Equal(t, "CODE-3", codes[1].Code)
	assert.Equal(t, "CODE-2", codes[2].Code)
}

func TestListCodesDegraded(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{Store: openStore(t), orderedFails: true}
	svc := newService(t, st)

	for _, code := range []string{"CODE-1", "CODE-2", "CODE-3"} {
		_, err := svc.Codes.IssueCode(ctx, code)
		require.NoError(t, err)
	}

	codes, degraded, err := svc.Codes.ListCodes(ctx, 2)
	require.NoError(t, err)
	assert.True(t, degraded)
	// the unordered read covers the whole collection
	assert.Len(t, codes, 3)
}
