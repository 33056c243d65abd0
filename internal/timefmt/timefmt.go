// Package timefmt turns shift instants into display strings: the date bucket
// label a shift is grouped under and its hour:minute time of day.
package timefmt

import "time"

const (
	LabelToday    = "Today"
	LabelTomorrow = "Tomorrow"

	// DefaultDateLayout renders day/month/year without padding, e.g. 16/10/2026.
	DefaultDateLayout = "2/1/2006"
	// DefaultTimeLayout renders a 12-hour clock without seconds, e.g. 9:05 am.
	DefaultTimeLayout = "3:04 pm"
)

// TomorrowRule selects how the "Tomorrow" label is decided.
type TomorrowRule string

const (
	// TomorrowDayOfMonth labels a shift "Tomorrow" when its day of month is
	// now's day of month plus one. Months and years are not compared, so the
	// last day of a month never has a "Tomorrow" and a shift on the 17th of
	// next month is "Tomorrow" on the 16th.
	TomorrowDayOfMonth TomorrowRule = "day_of_month"
	// TomorrowCalendar labels a shift "Tomorrow" when it falls on the next
	// calendar date.
	TomorrowCalendar TomorrowRule = "calendar"
)

// Formatter holds the display zone and layouts. The zero value formats in
// time.Local with the default layouts and the day-of-month rule.
type Formatter struct {
	Location   *time.Location
	DateLayout string
	TimeLayout string
	Tomorrow   TomorrowRule
}

func (f Formatter) loc() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// DateBucketLabel returns "Today", "Tomorrow" or the formatted date of start,
// evaluated against now.
func (f Formatter) DateBucketLabel(now, start time.Time) string {
	loc := f.loc()
	n := now.In(loc)
	s := start.In(loc)

	ny, nm, nd := n.Date()
	sy, sm, sd := s.Date()
	if ny == sy && nm == sm && nd == sd {
		return LabelToday
	}

	if f.Tomorrow == TomorrowCalendar {
		ty, tm, td := time.Date(ny, nm, nd+1, 0, 0, 0, 0, loc).Date()
		if sy == ty && sm == tm && sd == td {
			return LabelTomorrow
		}
	} else if nd+1 == sd {
		return LabelTomorrow
	}

	layout := f.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return s.Format(layout)
}

// TimeOfDay formats t as hour:minute in the display zone.
func (f Formatter) TimeOfDay(t time.Time) string {
	layout := f.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return t.In(f.loc()).Format(layout)
}

// TimeRange formats "start - end" for a shift row.
func (f Formatter) TimeRange(start, end time.Time) string {
	return f.TimeOfDay(start) + " - " + f.TimeOfDay(end)
}

// ParseTomorrowRule maps a config value to a rule. Unknown values select the
// day-of-month rule and report false.
func ParseTomorrowRule(s string) (TomorrowRule, bool) {
	switch TomorrowRule(s) {
	case TomorrowCalendar:
		return TomorrowCalendar, true
	case TomorrowDayOfMonth, "":
		return TomorrowDayOfMonth, true
	default:
		return TomorrowDayOfMonth, false
	}
}
