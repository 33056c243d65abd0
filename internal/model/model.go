package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BookedStatus is written into Shift.Status when a booking is applied locally.
const BookedStatus = "Booked"

// ErrMalformedRecord marks a wire record that cannot become a Shift.
var ErrMalformedRecord = errors.New("malformed shift record")

// ID is an opaque shift identifier. The Shift Source may send it as a JSON
// string or a JSON number; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Shift is a bookable interval in a city. Values are treated as immutable
// snapshots; local patches produce a modified copy.
type Shift struct {
	ID        ID        `json:"id"`
	Area      string    `json:"area"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Booked    bool      `json:"booked"`
	// Status is an optional display label; empty when the source omits it.
	Status string `json:"status,omitempty"`
}

// Duration returns EndTime - StartTime.
func (s Shift) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Record is the wire form of a shift as returned by GET /shifts. Instants are
// kept as strings so that a bad value rejects one record instead of the
// whole response.
type Record struct {
	ID        ID      `json:"id"`
	Area      string  `json:"area"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Booked    bool    `json:"booked"`
	Status    *string `json:"status,omitempty"`
}

// RecordFromShift renders a Shift in wire form.
func RecordFromShift(s Shift) Record {
	r := Record{
		ID:        s.ID,
		Area:      s.Area,
		StartTime: s.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:   s.EndTime.UTC().Format(time.RFC3339Nano),
		Booked:    s.Booked,
	}
	if s.Status != "" {
		st := s.Status
		r.Status = &st
	}
	return r
}

// ToShift validates r and converts it. Zero-length shifts are accepted;
// an end before the start is not.
func (r Record) ToShift() (Shift, error) {
	if strings.TrimSpace(string(r.ID)) == "" {
		return Shift{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	start, err := parseInstant(r.StartTime)
	if err != nil {
		return Shift{}, fmt.Errorf("%w: id %s: startTime: %v", ErrMalformedRecord, r.ID, err)
	}
	end, err := parseInstant(r.EndTime)
	if err != nil {
		return Shift{}, fmt.Errorf("%w: id %s: endTime: %v", ErrMalformedRecord, r.ID, err)
	}
	if end.Before(start) {
		return Shift{}, fmt.Errorf("%w: id %s: endTime before startTime", ErrMalformedRecord, r.ID)
	}

	s := Shift{
		ID:        r.ID,
		Area:      r.Area,
		StartTime: start,
		EndTime:   end,
		Booked:    r.Booked,
	}
	if r.Status != nil {
		s.Status = *r.Status
	}
	return s, nil
}

func parseInstant(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("missing")
	}
	return time.Parse(time.RFC3339Nano, v)
}

// Ingest converts records in order. Records that fail validation, or repeat
// an id already accepted, are dropped and reported individually.
func Ingest(records []Record) ([]Shift, []error) {
	shifts := make([]Shift, 0, len(records))
	var errs []error
	seen := make(map[ID]struct{}, len(records))

	for _, r := range records {
		s, err := r.ToShift()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate id %s", ErrMalformedRecord, s.ID))
			continue
		}
		seen[s.ID] = struct{}{}
		shifts = append(shifts, s)
	}
	return shifts, errs
}
