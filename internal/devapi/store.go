package devapi

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"shiftbook/internal/model"
)

var (
	ErrNotFound = errors.New("shift not found")
	ErrConflict = errors.New("shift state conflict")
)

// Store is an in-memory shift collection ordered by start time. Every
// mutation bumps Version, which the HTTP layer uses as ETag.
type Store struct {
	mu      sync.Mutex
	shifts  []model.Shift
	version int
	now     func() time.Time
}

// NewStore copies shifts, orders them by start time (ties by id) and
// returns the store. now defaults to time.Now.
func NewStore(shifts []model.Shift, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	cp := append([]model.Shift(nil), shifts...)
	sort.SliceStable(cp, func(i, j int) bool {
		if !cp[i].StartTime.Equal(cp[j].StartTime) {
			return cp[i].StartTime.Before(cp[j].StartTime)
		}
		return cp[i].ID < cp[j].ID
	})
	return &Store{shifts: cp, version: 1, now: now}
}

// List returns a copy of all shifts and the current version.
func (s *Store) List() ([]model.Shift, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Shift(nil), s.shifts...), s.version
}

// Book marks id booked. Booking a booked or already started shift is a
// conflict.
func (s *Store) Book(id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	sh := &s.shifts[i]
	if sh.Booked {
		return fmt.Errorf("%w: %s is already booked", ErrConflict, id)
	}
	if !s.now().Before(sh.StartTime) {
		return fmt.Errorf("%w: %s has already started", ErrConflict, id)
	}
	sh.Booked = true
	sh.Status = model.BookedStatus
	s.version++
	return nil
}

// Cancel releases id. Cancelling an unbooked shift is a conflict.
func (s *Store) Cancel(id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	sh := &s.shifts[i]
	if !sh.Booked {
		return fmt.Errorf("%w: %s is not booked", ErrConflict, id)
	}
	sh.Booked = false
	sh.Status = ""
	s.version++
	return nil
}

func (s *Store) indexOf(id model.ID) int {
	for i, sh := range s.shifts {
		if sh.ID == id {
			return i
		}
	}
	return -1
}

// Slot is a daily shift template: start at Hour:Minute for Length.
type Slot struct {
	Hour   int
	Minute int
	Length time.Duration
}

// GenerateConfig describes generated seed data.
type GenerateConfig struct {
	Cities []string
	Slots  []Slot
	// From is the first day; only its date in Location is used.
	From     time.Time
	Days     int
	Location *time.Location
}

// DefaultSlots are a morning, a midday and an evening shift. The midday
// shift overlaps both others.
func DefaultSlots() []Slot {
	return []Slot{
		{Hour: 8, Minute: 0, Length: 4 * time.Hour},
		{Hour: 11, Minute: 30, Length: 3 * time.Hour},
		{Hour: 16, Minute: 0, Length: 5*time.Hour + 30*time.Minute},
	}
}

// Generate builds one shift per city, slot and day using a DAILY rule per
// (city, slot). Ids are random UUIDs.
func Generate(cfg GenerateConfig) ([]model.Shift, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	if cfg.Days <= 0 {
		return nil, errors.New("generate: days must be positive")
	}
	slots := cfg.Slots
	if len(slots) == 0 {
		slots = DefaultSlots()
	}

	from := cfg.From.In(loc)
	out := make([]model.Shift, 0, len(cfg.Cities)*len(slots)*cfg.Days)
	for _, city := range cfg.Cities {
		for _, slot := range slots {
			r, err := rrule.NewRRule(rrule.ROption{
				Freq:    rrule.DAILY,
				Count:   cfg.Days,
				Dtstart: time.Date(from.Year(), from.Month(), from.Day(), slot.Hour, slot.Minute, 0, 0, loc),
			})
			if err != nil {
				return nil, fmt.Errorf("generate: %w", err)
			}
			for _, start := range r.All() {
				out = append(out, model.Shift{
					ID:        model.ID(uuid.NewString()),
					Area:      city,
					StartTime: start,
					EndTime:   start.Add(slot.Length),
				})
			}
		}
	}
	return out, nil
}
