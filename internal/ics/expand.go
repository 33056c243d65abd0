package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "shiftbook/internal/log"
	"shiftbook/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how seed events become concrete shifts.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences that are produced.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero selects the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded shifts and the UIDs whose series hit the
// cap.
type ExpandResult struct {
	Shifts          []model.Shift
	TruncatedEvents []string
}

// ExpandShifts turns seed events into shifts within the configured window,
// applying RRULE and EXDATE. Shifts are returned in event order, each series
// in chronological order. Occurrences of a series get the id
// "<UID>-<start as 20060102T1504>".
func ExpandShifts(events []SeedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	for _, ev := range events {
		if ev.RawRRule == "" {
			if timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				result.Shifts = append(result.Shifts, makeShift(ev, ev.UID, ev.Start, ev.End))
			}
			continue
		}

		shifts, hitCap, err := expandRecurring(ev, cfg)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: truncated occurrences due to cap", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		result.Shifts = append(result.Shifts, shifts...)
	}

	return result, nil
}

func expandRecurring(ev SeedEvent, cfg ExpandConfig) ([]model.Shift, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	length := ev.End.Sub(ev.Start)
	out := make([]model.Shift, 0, len(starts))
	for _, st := range starts {
		id := ev.UID + "-" + st.UTC().Format("20060102T1504")
		out = append(out, makeShift(ev, id, st, st.Add(length)))
	}
	return out, hitCap, nil
}

func makeShift(ev SeedEvent, id string, start, end time.Time) model.Shift {
	s := model.Shift{
		ID:        model.ID(id),
		Area:      ev.Area,
		StartTime: start,
		EndTime:   end,
		Booked:    ev.Booked,
	}
	if ev.Booked {
		s.Status = model.BookedStatus
	}
	return s
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
