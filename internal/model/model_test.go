package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecodeAcceptsNumericAndStringIDs(t *testing.T) {
	body := `[
		{"id": 1, "area": "Helsinki", "startTime": "2026-10-16T09:00:00Z", "endTime": "2026-10-16T10:00:00Z", "booked": true},
		{"id": "b-2", "area": "Turku", "startTime": "2026-10-16T11:00:00+03:00", "endTime": "2026-10-16T12:30:00+03:00", "booked": false, "status": "Open"}
	]`

	var records []Record
	require.NoError(t, json.Unmarshal([]byte(body), &records))

	shifts, errs := Ingest(records)
	require.Empty(t, errs)
	require.Len(t, shifts, 2)

	assert.Equal(t, ID("1"), shifts[0].ID)
	assert.True(t, shifts[0].Booked)
	assert.Equal(t, "", shifts[0].Status)
	assert.Equal(t, time.Hour, shifts[0].Duration())

	assert.Equal(t, ID("b-2"), shifts[1].ID)
	assert.Equal(t, "Open", shifts[1].Status)
	assert.Equal(t, 90*time.Minute, shifts[1].Duration())
}

func TestIngestRejectsMalformedRecords(t *testing.T) {
	records := []Record{
		{ID: "ok", Area: "Helsinki", StartTime: "2026-10-16T09:00:00Z", EndTime: "2026-10-16T10:00:00Z"},
		{ID: "", Area: "Helsinki", StartTime: "2026-10-16T09:00:00Z", EndTime: "2026-10-16T10:00:00Z"},
		{ID: "nostart", Area: "Helsinki", EndTime: "2026-10-16T10:00:00Z"},
		{ID: "badend", Area: "Helsinki", StartTime: "2026-10-16T09:00:00Z", EndTime: "tomorrow"},
		{ID: "reversed", Area: "Helsinki", StartTime: "2026-10-16T10:00:00Z", EndTime: "2026-10-16T09:00:00Z"},
		{ID: "ok", Area: "Turku", StartTime: "2026-10-16T09:00:00Z", EndTime: "2026-10-16T10:00:00Z"},
		{ID: "zero", Area: "Turku", StartTime: "2026-10-16T09:00:00Z", EndTime: "2026-10-16T09:00:00Z"},
	}

	shifts, errs := Ingest(records)

	require.Len(t, shifts, 2)
	assert.Equal(t, ID("ok"), shifts[0].ID)
	assert.Equal(t, "Helsinki", shifts[0].Area)
	assert.Equal(t, ID("zero"), shifts[1].ID)

	require.Len(t, errs, 5)
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrMalformedRecord), err.Error())
	}
}

func TestRecordFromShiftRoundTrip(t *testing.T) {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	s := Shift{ID: "x", Area: "Tampere", StartTime: start, EndTime: start.Add(time.Hour), Booked: true, Status: BookedStatus}

	got, err := RecordFromShift(s).ToShift()
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.True(t, got.StartTime.Equal(s.StartTime))
	assert.True(t, got.EndTime.Equal(s.EndTime))
	assert.Equal(t, BookedStatus, got.Status)
}
