package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shiftbook/internal/log"
)

// SeedEvent is a VEVENT describing one shift or a recurring series of shifts.
type SeedEvent struct {
	UID  string
	Area string

	Start time.Time
	End   time.Time

	// Booked is taken from STATUS:CONFIRMED.
	Booked bool

	RawRRule string
	ExDates  []time.Time
}

// ParseSeed parses an ICS payload into seed events. The shift area is the
// LOCATION property, falling back to SUMMARY. Events that cannot be read are
// logged and skipped.
func ParseSeed(body []byte) ([]SeedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]SeedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics seed event skipped", "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics seed parsed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (SeedEvent, error) {
	var out SeedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Area = strings.TrimSpace(p.Value)
	}
	if out.Area == "" {
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			out.Area = strings.TrimSpace(p.Value)
		}
	}
	if out.Area == "" {
		return out, errors.New("event " + out.UID + " has neither LOCATION nor SUMMARY")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, errors.New("event " + out.UID + ": bad DTSTART: " + err.Error())
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, errors.New("event " + out.UID + ": bad DTEND: " + err.Error())
	}
	if end.Before(start) {
		return out, errors.New("event " + out.UID + ": DTEND before DTSTART")
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Booked = strings.EqualFold(strings.TrimSpace(p.Value), "CONFIRMED")
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times and hold comma-separated values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a basic DATE-TIME value. Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
