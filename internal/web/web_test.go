package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftbook/internal/config"
	"shiftbook/internal/model"
	"shiftbook/internal/session"
	"shiftbook/internal/shiftapi"
	"shiftbook/internal/timefmt"
	"shiftbook/internal/view"
)

var now = time.Date(2026, 10, 16, 7, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu      sync.Mutex
	shifts  []model.Shift
	listErr error
	mutErr  error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSource) List(context.Context) (shiftapi.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return shiftapi.ListResult{}, f.listErr
	}
	return shiftapi.ListResult{Shifts: append([]model.Shift(nil), f.shifts...)}, nil
}

func (f *fakeSource) Book(ctx context.Context, id model.ID) error   { return f.mutate() }
func (f *fakeSource) Cancel(ctx context.Context, id model.ID) error { return f.mutate() }

func (f *fakeSource) mutate() error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutErr
}

func seed() []model.Shift {
	at := func(h int) time.Time { return time.Date(2026, 10, 16, h, 0, 0, 0, time.UTC) }
	return []model.Shift{
		{ID: "1", Area: "Helsinki", StartTime: at(9), EndTime: at(10)},
		{ID: "2", Area: "Helsinki", StartTime: at(11), EndTime: at(12), Booked: true, Status: model.BookedStatus},
		{ID: "3", Area: "Tampere", StartTime: at(9), EndTime: at(10)},
	}
}

func newTestServer(t *testing.T, src *fakeSource, cfg *config.Config) (*Server, *session.Session) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	sess := session.New(src, session.Options{
		Formatter: timefmt.Formatter{Location: time.UTC},
		Cities:    []string{"Helsinki", "Tampere", "Turku"},
		Now:       func() time.Time { return now },
	})
	s, err := NewServer(cfg, sess)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s, sess
}

func do(h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, nil)
	rec := do(s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMinePageListsBookedShifts(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{shifts: seed()}, nil)

	rec := do(s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "11:00 am - 12:00 pm")
	assert.Contains(t, body, `data-shift="2"`)
	assert.NotContains(t, body, `data-shift="1"`)
	assert.Contains(t, body, "Today")
}

func TestMinePageEmptyState(t *testing.T) {
	shifts := seed()
	shifts[1].Booked = false
	s, _ := newTestServer(t, &fakeSource{shifts: shifts}, nil)

	rec := do(s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No booked shifts")
}

func TestMinePageBeforeFirstLoad(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{listErr: errors.New("down")}, nil)

	rec := do(s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="false"`)
	assert.Contains(t, body, "Loading shifts...")
	assert.Contains(t, body, "Could not refresh shifts.")
}

func TestAvailablePageSelectsCity(t *testing.T) {
	s, sess := newTestServer(t, &fakeSource{shifts: seed()}, nil)

	rec := do(s.Handler(), http.MethodGet, "/available?city=Tampere", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tampere", sess.City())

	body := rec.Body.String()
	assert.Contains(t, body, `data-shift="3"`)
	assert.NotContains(t, body, `data-shift="1"`)
	assert.Contains(t, body, "Tampere (1)")
	assert.Contains(t, body, "Helsinki (2)")
}

func TestFormBookRedirects(t *testing.T) {
	s, sess := newTestServer(t, &fakeSource{shifts: seed()}, nil)
	require.NoError(t, sess.Load(context.Background()))

	rec := do(s.Handler(), http.MethodPost, "/shifts/1/book", "back=/available")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/available", rec.Header().Get("Location"))
	assert.True(t, sess.Snapshot()[0].Booked)

	rec = do(s.Handler(), http.MethodPost, "/shifts/missing/cancel", "back=https://evil.example/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "That shift no longer exists.", loc.Query().Get("error"))
}

func TestAPIMutations(t *testing.T) {
	src := &fakeSource{shifts: seed()}
	s, sess := newTestServer(t, src, nil)
	require.NoError(t, sess.Load(context.Background()))
	h := s.Handler()

	rec := do(h, http.MethodPost, "/api/shifts/1/book", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"1","ok":true}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/shifts/nope/book", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	src.mu.Lock()
	src.mutErr = &shiftapi.RequestError{Kind: shiftapi.ErrMutation, Op: "cancel", ShiftID: "2", StatusCode: 500, Err: errors.New("boom")}
	src.mu.Unlock()
	rec = do(h, http.MethodPost, "/api/shifts/2/cancel", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, sess.Snapshot()[1].Booked)
}

func TestAPIMutationBusy(t *testing.T) {
	src := &fakeSource{shifts: seed(), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, sess := newTestServer(t, src, nil)
	require.NoError(t, sess.Load(context.Background()))
	h := s.Handler()

	done := make(chan int, 1)
	go func() {
		done <- do(h, http.MethodPost, "/api/shifts/1/book", "").Code
	}()
	<-src.entered

	var v view.AvailableView
	rec := do(h, http.MethodGet, "/api/views/available", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.NotEmpty(t, v.Groups)
	assert.True(t, v.Groups[0].Rows[0].Loading)
	assert.False(t, v.Groups[0].Rows[0].BookEnabled)

	rec = do(h, http.MethodPost, "/api/shifts/1/book", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(src.gate)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestAPIViewsMine(t *testing.T) {
	s, sess := newTestServer(t, &fakeSource{shifts: seed()}, nil)
	require.NoError(t, sess.Load(context.Background()))

	rec := do(s.Handler(), http.MethodGet, "/api/views/mine", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var v view.MyShiftsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(t, v.Empty)
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "Today", v.Groups[0].Label)
	assert.Equal(t, "1, 1 hours 0 minutes", v.Groups[0].Summary)
}

func TestRefresh(t *testing.T) {
	src := &fakeSource{shifts: seed()}
	s, _ := newTestServer(t, src, nil)

	rec := do(s.Handler(), http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)

	src.mu.Lock()
	src.listErr = &shiftapi.RequestError{Kind: shiftapi.ErrFetch, Op: "list", Err: errors.New("refused")}
	src.mu.Unlock()
	rec = do(s.Handler(), http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCalendarExport(t *testing.T) {
	s, sess := newTestServer(t, &fakeSource{shifts: seed()}, nil)

	rec := do(s.Handler(), http.MethodGet, "/my-shifts.ics", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, sess.Load(context.Background()))
	rec = do(s.Handler(), http.MethodGet, "/my-shifts.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "Shift: Helsinki")
	assert.NotContains(t, body, "Tampere")
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "worker", Password: "secret"}
	s, _ := newTestServer(t, &fakeSource{shifts: seed()}, cfg)
	h := s.Handler()

	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/views/mine", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/views/mine", nil)
	req.SetBasicAuth("worker", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSafeBack(t *testing.T) {
	assert.Equal(t, "/available", safeBack("/available"))
	assert.Equal(t, "/available", safeBack("/available?city=Turku"))
	assert.Equal(t, "/", safeBack("//evil.example"))
	assert.Equal(t, "/", safeBack(""))
}

func TestAPIBookRefusedWhileAnyRequestInFlight(t *testing.T) {
	src := &fakeSource{shifts: seed(), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, sess := newTestServer(t, src, nil)
	require.NoError(t, sess.Load(context.Background()))
	h := s.Handler()

	done := make(chan int, 1)
	go func() {
		done <- do(h, http.MethodPost, "/api/shifts/2/cancel", "").Code
	}()
	<-src.entered

	rec := do(h, http.MethodPost, "/api/shifts/1/book", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(src.gate)
	assert.Equal(t, http.StatusOK, <-done)
	assert.False(t, sess.Snapshot()[0].Booked)
}
