// Package session is the shell around the view-model core. It owns the last
// good snapshot, the selected city and the in-flight marks, performs the
// explicit load and the book/cancel requests, and applies optimistic patches.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "shiftbook/internal/log"
	"shiftbook/internal/model"
	"shiftbook/internal/shiftapi"
	"shiftbook/internal/timefmt"
	"shiftbook/internal/view"
)

var (
	// ErrBusy is returned when a mutation for the shift is already in flight,
	// or for a booking while any mutation is in flight.
	ErrBusy = errors.New("a shift request is already in flight")
	// ErrUnknownShift is returned for an id that is not in the snapshot.
	ErrUnknownShift = errors.New("shift not in current snapshot")
)

// Source is the Shift Source as seen by the session.
type Source interface {
	List(ctx context.Context) (shiftapi.ListResult, error)
	Book(ctx context.Context, id model.ID) error
	Cancel(ctx context.Context, id model.ID) error
}

// Options configure a Session.
type Options struct {
	Formatter timefmt.Formatter
	Cities    []string
	City      string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session holds shell state for one worker.
type Session struct {
	src    Source
	format timefmt.Formatter
	cities []string
	now    func() time.Time

	mu       sync.Mutex
	snapshot []model.Shift
	loaded   bool
	lastLoad time.Time
	city     string
	inFlight map[model.ID]bool
}

// New returns a session over src with no snapshot loaded.
func New(src Source, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	city := opts.City
	if city == "" && len(opts.Cities) > 0 {
		city = opts.Cities[0]
	}
	return &Session{
		src:      src,
		format:   opts.Formatter,
		cities:   append([]string(nil), opts.Cities...),
		now:      now,
		city:     city,
		inFlight: make(map[model.ID]bool),
	}
}

// Load fetches a fresh snapshot. On failure the previous snapshot stays in
// place and the error is returned; no retry is attempted.
func (s *Session) Load(ctx context.Context) error {
	res, err := s.src.List(ctx)
	if err != nil {
		appLog.Error("snapshot load failed; keeping last snapshot", err)
		return err
	}

	s.mu.Lock()
	s.snapshot = res.Shifts
	s.loaded = true
	s.lastLoad = s.now()
	s.mu.Unlock()

	appLog.Debug("snapshot loaded", "count", len(res.Shifts), "from_cache", res.FromCache)
	return nil
}

// SelectCity changes the available-shifts filter and reloads. The city is
// an opaque key; an unknown city simply matches nothing.
func (s *Session) SelectCity(ctx context.Context, city string) error {
	s.mu.Lock()
	s.city = city
	s.mu.Unlock()
	return s.Load(ctx)
}

// City returns the selected city.
func (s *Session) City() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.city
}

// Loaded reports whether any load has succeeded yet.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns a copy of the current shifts.
func (s *Session) Snapshot() []model.Shift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Shift(nil), s.snapshot...)
}

// Book books id. It is refused with ErrBusy while any request is in flight.
// On success the one shift is patched to booked with the booked status
// marker; on failure nothing is patched.
func (s *Session) Book(ctx context.Context, id model.ID) error {
	return s.mutate(ctx, "book", id, true, s.src.Book, func(sh *model.Shift) {
		sh.Booked = true
		sh.Status = model.BookedStatus
	})
}

// Cancel releases id. On success the one shift is patched to unbooked.
func (s *Session) Cancel(ctx context.Context, id model.ID) error {
	return s.mutate(ctx, "cancel", id, false, s.src.Cancel, func(sh *model.Shift) {
		sh.Booked = false
	})
}

func (s *Session) mutate(ctx context.Context, op string, id model.ID, exclusive bool, call func(context.Context, model.ID) error, patch func(*model.Shift)) error {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return ErrUnknownShift
	}
	if s.inFlight[id] || (exclusive && len(s.inFlight) > 0) {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight[id] = true
	s.mu.Unlock()

	err := call(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)

	if err != nil {
		appLog.Error("shift "+op+" failed", err, "id", id)
		return err
	}

	// The snapshot may have been replaced while the request was in flight.
	if i := s.indexOf(id); i >= 0 {
		next := make([]model.Shift, len(s.snapshot))
		copy(next, s.snapshot)
		patch(&next[i])
		s.snapshot = next
	}
	appLog.Info("shift "+op+" applied", "id", id)
	return nil
}

func (s *Session) indexOf(id model.ID) int {
	for i, sh := range s.snapshot {
		if sh.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) busyLocked() view.Busy {
	b := view.Busy{Global: len(s.inFlight) > 0, Shifts: make(map[model.ID]bool, len(s.inFlight))}
	for id := range s.inFlight {
		b.Shifts[id] = true
	}
	return b
}

// AvailableView renders the available-shifts view for the selected city.
func (s *Session) AvailableView() view.AvailableView {
	s.mu.Lock()
	snapshot, city, busy, loaded := s.snapshot, s.city, s.busyLocked(), s.loaded
	s.mu.Unlock()

	v := view.Available(snapshot, view.AvailableParams{
		City:   city,
		Now:    s.now(),
		Busy:   busy,
		Cities: s.cities,
	}, s.format)
	v.Loading = !loaded
	return v
}

// MyShiftsView renders the booked shifts.
func (s *Session) MyShiftsView() view.MyShiftsView {
	s.mu.Lock()
	snapshot, busy, loaded := s.snapshot, s.busyLocked(), s.loaded
	s.mu.Unlock()

	if !loaded {
		return view.MyShiftsView{Loading: true}
	}
	return view.Mine(snapshot, view.MineParams{Now: s.now(), Busy: busy}, s.format)
}

// Formatter returns the formatter used for views.
func (s *Session) Formatter() timefmt.Formatter {
	return s.format
}

// LastLoad returns when the snapshot was last replaced.
func (s *Session) LastLoad() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoad
}
