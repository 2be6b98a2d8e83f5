package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpass/models"
	"guestpass/services"
)

type fakeCheckinStore struct {
	created int
	regs    map[string]*models.Registration
	guests  map[string]*models.Guest
}

func newFakeCheckinStore() *fakeCheckinStore {
	return &fakeCheckinStore{
		regs: map[string]*models.Registration{
			"reg1": {ID: "reg1", GuestID: "guest1", EventID: "event1", TicketClass: models.TicketClassSingle},
		},
		guests: map[string]*models.Guest{
			"guest1": {ID: "guest1", Name: "Ada Lovelace"},
		},
	}
}

func (f *fakeCheckinStore) FindRegistration(_ context.Context, id string) (*models.Registration, error) {
	return f.regs[id], nil
}

func (f *fakeCheckinStore) FindGuest(_ context.Context, id string) (*models.Guest, error) {
	return f.guests[id], nil
}

func (f *fakeCheckinStore) FindCheckIn(context.Context, string) (*models.CheckIn, error) {
	return nil, nil
}

func (f *fakeCheckinStore) CreateCheckIn(_ context.Context, c *models.CheckIn) error {
	f.created++
	c.ID = "ci1"
	return nil
}

func (f *fakeCheckinStore) ReplaceCheckIn(ctx context.Context, c *models.CheckIn) error {
	return f.CreateCheckIn(ctx, c)
}

func (f *fakeCheckinStore) FindTableAssignment(context.Context, string) (*models.TableAssignment, error) {
	return nil, nil
}

func newCheckinRequestEvent(method, url, body string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec

	auth := core.NewRecord(core.NewBaseCollection("staff"))
	auth.Id = "staff1"
	e.Auth = auth

	return e, rec
}

// expectScanLimit arms the limiter mock for one "scan:staff1" decision.
func expectScanLimit(mock redismock.ClientMock, count, pttl, allowed int64) {
	mock.Regexp().ExpectEval(`.+`, []string{`ratelimit:scan:staff1`}, int64(60000), 30).
		SetVal([]any{count, pttl, allowed})
}

func TestCheckinHandler_Submit_BlockedCreatesNoRow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := services.NewRateLimiter(db, 1)
	expectScanLimit(mock, 30, 10000, 0)

	store := newFakeCheckinStore()
	service := services.NewCheckinService(store, nil, nil)
	h := NewCheckinHandler(service, limiter, 30, time.Minute)

	e, rec := newCheckinRequestEvent(http.MethodPost, "/api/v1/checkin/submit", `{"registration_id":"reg1"}`)

	err := h.Submit(e)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 0, store.created, "a blocked submit must not create a check-in row")
}

func TestCheckinHandler_Submit_AllowedCreatesRow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := services.NewRateLimiter(db, 1)
	expectScanLimit(mock, 1, 60000, 1)

	store := newFakeCheckinStore()
	service := services.NewCheckinService(store, nil, nil)
	h := NewCheckinHandler(service, limiter, 30, time.Minute)

	e, rec := newCheckinRequestEvent(http.MethodPost, "/api/v1/checkin/submit", `{"registration_id":"reg1"}`)

	err := h.Submit(e)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.created)
}

func TestCheckinHandler_Scan_BlockedStopsBeforeEvaluation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := services.NewRateLimiter(db, 1)
	expectScanLimit(mock, 30, 10000, 0)

	// Nil verifier: reaching Evaluate would panic, so a clean 429 proves the
	// handler stopped at the limiter.
	service := services.NewCheckinService(newFakeCheckinStore(), nil, nil)
	h := NewCheckinHandler(service, limiter, 30, time.Minute)

	e, rec := newCheckinRequestEvent(http.MethodPost, "/api/v1/checkin/scan", `{"token":"anything"}`)

	err := h.Scan(e)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
