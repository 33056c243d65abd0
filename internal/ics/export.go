package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"shiftbook/internal/model"
)

const productID = "-//shiftbook//My Shifts//EN"

// EncodeBooked renders the booked shifts of snapshot as an iCalendar feed,
// one VEVENT per shift with the shift id as UID.
func EncodeBooked(snapshot []model.Shift, calendarName string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if calendarName != "" {
		cal.SetXWRCalName(calendarName)
	}

	for _, s := range snapshot {
		if !s.Booked {
			continue
		}
		ev := cal.AddEvent(string(s.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(s.StartTime.UTC())
		ev.SetEndAt(s.EndTime.UTC())
		ev.SetSummary("Shift: " + s.Area)
		ev.SetLocation(s.Area)
	}

	return cal.Serialize()
}
