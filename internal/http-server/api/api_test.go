package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/mentor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken   = "admin-token-0123456"
	serviceToken = "service-token-01234"
)

type fakeCore struct {
	mu        sync.Mutex
	codes     map[string]*entity.MentorCode
	requests  map[string]*entity.MentorRequest
	degraded  bool
	listErr   error
	decisions []entity.RequestStatus
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		codes:    make(map[string]*entity.MentorCode),
		requests: make(map[string]*entity.MentorRequest),
	}
}

func (f *fakeCore) AuthenticateByToken(token string) (*entity.User, error) {
	switch token {
	case adminToken:
		return &entity.User{Username: "admin", Role: entity.RoleAdmin}, nil
	case serviceToken:
		return &entity.User{Username: "signup", Role: entity.RoleService}, nil
	}
	return nil, errors.New("unknown token")
}

func (f *fakeCore) IssueCode(_ context.Context, code string) (*entity.MentorCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == "" {
		code = "MNTR-GENER12"
	}
	code = mentor.NormalizeCode(code)
	if _, ok := f.codes[code]; ok {
		return nil, fmt.Errorf("%w: %s", mentor.ErrDuplicateCode, code)
	}
	mc := entity.NewMentorCode(code, time.Now())
	f.codes[code] = mc
	return mc, nil
}

func (f *fakeCore) ListCodes(_ context.Context, _ int) ([]*entity.MentorCode, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, false, f.listErr
	}
	list := make([]*entity.MentorCode, 0, len(f.codes))
	for _, mc := range f.codes {
		list = append(list, mc)
	}
	return list, f.degraded, nil
}

func (f *fakeCore) WatchCodes(_ context.Context, _ int, onChange func(mentor.Snapshot[*entity.MentorCode]), _ func(error)) func() {
	list, degraded, _ := f.ListCodes(context.Background(), 0)
	go onChange(mentor.Snapshot[*entity.MentorCode]{Items: list, OrderingDegraded: degraded})
	return func() {}
}

func (f *fakeCore) RedeemCode(_ context.Context, params *entity.RedeemParams) mentor.RedeemResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	mc, ok := f.codes[mentor.NormalizeCode(params.Code)]
	if !ok {
		return mentor.RedeemResult{Reason: mentor.ReasonInvalidCode, Err: mentor.ErrInvalidCode}
	}
	if !mc.IsUnused() {
		return mentor.RedeemResult{Reason: mentor.ReasonCodeAlreadyUsed, Err: mentor.ErrCodeAlreadyUsed}
	}
	mc.MarkUsed(params.Applicant, time.Now())
	id := fmt.Sprintf("req-%d", len(f.requests)+1)
	f.requests[id] = entity.NewMentorRequest(id, mc.Code, params.Applicant, time.Now())
	return mentor.RedeemResult{Success: true, RequestId: id}
}

func (f *fakeCore) ListRequests(_ context.Context, _ int) ([]*entity.MentorRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*entity.MentorRequest, 0, len(f.requests))
	for _, r := range f.requests {
		list = append(list, r)
	}
	return list, f.degraded, nil
}

func (f *fakeCore) GetRequest(_ context.Context, id string) (*entity.MentorRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mentor.ErrRequestNotFound, id)
	}
	return r, nil
}

func (f *fakeCore) WatchRequests(_ context.Context, _ int, _ func(mentor.Snapshot[*entity.MentorRequest]), onError func(error)) func() {
	go onError(errors.New("change stream closed"))
	return func() {}
}

func (f *fakeCore) DecideRequest(_ context.Context, id string, decision entity.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return fmt.Errorf("%w: %s", mentor.ErrRequestNotFound, id)
	}
	f.decisions = append(f.decisions, decision)
	r.Status = decision
	return nil
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Success       bool            `json:"success"`
	StatusMessage string          `json:"status_message"`
	Reason        string          `json:"reason"`
}

func call(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func testRouter() (http.Handler, *fakeCore) {
	core := newFakeCore()
	return NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), core), core
}

func TestAuthentication(t *testing.T) {
	h, _ := testRouter()

	rec, env := call(t, h, http.MethodGet, "/v1/codes", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, _ = call(t, h, http.MethodGet, "/v1/codes", "wrong-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/codes", nil)
	req.Header.Set("Authorization", "Bearer")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = call(t, h, http.MethodGet, "/v1/codes", serviceToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = call(t, h, http.MethodGet, "/v1/codes", adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueAndList(t *testing.T) {
	h, _ := testRouter()

	rec, env := call(t, h, http.MethodPost, "/v1/codes", adminToken, `{"code":"MNTR-AB12C34"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var mc entity.MentorCode
	require.NoError(t, json.Unmarshal(env.Data, &mc))
	assert.Equal(t, "MNTR-AB12C34", mc.Code)
	assert.Equal(t, entity.CodeUnused, mc.Status)

	rec, _ = call(t, h, http.MethodPost, "/v1/codes", adminToken, `{"code":"MNTR-AB12C34"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = call(t, h, http.MethodPost, "/v1/codes", adminToken, `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &mc))
	assert.Equal(t, "MNTR-GENER12", mc.Code)

	rec, env = call(t, h, http.MethodGet, "/v1/codes?limit=10", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Codes    []entity.MentorCode `json:"codes"`
		Degraded bool                `json:"ordering_degraded"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Codes, 2)
	assert.False(t, list.Degraded)

	rec, _ = call(t, h, http.MethodGet, "/v1/codes?limit=abc", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDegradedAndFailure(t *testing.T) {
	h, core := testRouter()
	core.degraded = true

	rec, env := call(t, h, http.MethodGet, "/v1/codes", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"ordering_degraded":true`)

	core.listErr = errors.New("store unavailable")
	rec, env = call(t, h, http.MethodGet, "/v1/codes", adminToken, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
}

func TestRedeem(t *testing.T) {
	h, _ := testRouter()
	_, _ = call(t, h, http.MethodPost, "/v1/codes", adminToken, `{"code":"MNTR-AB12C34"}`)

	body := `{"code":"mntr-ab12c34","applicant":{"user_id":"user-x","email":"x@example.com","name":"X"}}`
	rec, env := call(t, h, http.MethodPost, "/v1/redeem", serviceToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), `"request_id":"req-1"`)

	body = `{"code":"MNTR-AB12C34","applicant":{"user_id":"user-y"}}`
	rec, env = call(t, h, http.MethodPost, "/v1/redeem", serviceToken, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "code_already_used", env.Reason)

	body = `{"code":"DOES-NOT-EXIST","applicant":{"user_id":"user-y"}}`
	rec, env = call(t, h, http.MethodPost, "/v1/redeem", serviceToken, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "invalid_code", env.Reason)

	rec, _ = call(t, h, http.MethodPost, "/v1/redeem", serviceToken, `{"code":"X","applicant":{"email":"bad"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecide(t *testing.T) {
	h, core := testRouter()
	_, _ = call(t, h, http.MethodPost, "/v1/codes", adminToken, `{"code":"MNTR-AB12C34"}`)
	_, _ = call(t, h, http.MethodPost, "/v1/redeem", serviceToken, `{"code":"MNTR-AB12C34","applicant":{"user_id":"user-x"}}`)

	rec, _ := call(t, h, http.MethodPost, "/v1/requests/req-1/approve", serviceToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := call(t, h, http.MethodPost, "/v1/requests/req-1/approve", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"approved"`)

	rec, _ = call(t, h, http.MethodPost, "/v1/requests/req-1/reject", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []entity.RequestStatus{entity.RequestApproved, entity.RequestRejected}, core.decisions)

	rec, _ = call(t, h, http.MethodPost, "/v1/requests/missing/approve", adminToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = call(t, h, http.MethodGet, "/v1/requests", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"rejected":1`)

	rec, _ = call(t, h, http.MethodGet, "/v1/requests/req-1", adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFoundAndMethod(t *testing.T) {
	h, _ := testRouter()

	rec, _ := call(t, h, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = call(t, h, http.MethodDelete, "/v1/codes", adminToken, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCodesStream(t *testing.T) {
	h, _ := testRouter()
	_, _ = call(t, h, http.MethodPost, "/v1/codes", adminToken, `{"code":"MNTR-AB12C34"}`)

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/codes/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: snapshot", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), `"code":"MNTR-AB12C34"`)
}

func TestRequestsStreamError(t *testing.T) {
	h, _ := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/v1/requests/stream", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	// the fake subscription fails at once, which ends the stream
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error")
	assert.Contains(t, rec.Body.String(), "change stream closed")
}
