package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helsinki(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

func TestDateBucketLabel(t *testing.T) {
	loc := helsinki(t)
	f := Formatter{Location: loc}
	now := time.Date(2026, 10, 16, 14, 0, 0, 0, loc)

	tests := []struct {
		name  string
		start time.Time
		want  string
	}{
		{"earlier today", time.Date(2026, 10, 16, 6, 0, 0, 0, loc), "Today"},
		{"late today", time.Date(2026, 10, 16, 23, 59, 0, 0, loc), "Today"},
		{"tomorrow", time.Date(2026, 10, 17, 0, 0, 0, 0, loc), "Tomorrow"},
		{"day after", time.Date(2026, 10, 18, 9, 0, 0, 0, loc), "18/10/2026"},
		{"yesterday", time.Date(2026, 10, 15, 9, 0, 0, 0, loc), "15/10/2026"},
		// Only the day of month is compared for "Tomorrow".
		{"next month same day plus one", time.Date(2026, 11, 17, 9, 0, 0, 0, loc), "Tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.DateBucketLabel(now, tt.start))
		})
	}
}

func TestDateBucketLabelUsesDisplayZone(t *testing.T) {
	loc := helsinki(t)
	f := Formatter{Location: loc}
	// 22:30 UTC on the 16th is already the 17th in Helsinki.
	now := time.Date(2026, 10, 16, 22, 30, 0, 0, time.UTC)
	start := time.Date(2026, 10, 17, 8, 0, 0, 0, loc)

	assert.Equal(t, "Today", f.DateBucketLabel(now, start))
}

func TestDateBucketLabelMonthBoundary(t *testing.T) {
	loc := helsinki(t)
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, loc)
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, loc)

	legacy := Formatter{Location: loc}
	assert.Equal(t, "1/2/2026", legacy.DateBucketLabel(now, start))

	fixed := Formatter{Location: loc, Tomorrow: TomorrowCalendar}
	assert.Equal(t, "Tomorrow", fixed.DateBucketLabel(now, start))
	assert.Equal(t, "17/3/2026", fixed.DateBucketLabel(now, time.Date(2026, 3, 17, 9, 0, 0, 0, loc)))

	yearEnd := time.Date(2026, 12, 31, 12, 0, 0, 0, loc)
	assert.Equal(t, "Tomorrow", fixed.DateBucketLabel(yearEnd, time.Date(2027, 1, 1, 9, 0, 0, 0, loc)))
}

func TestTimeOfDay(t *testing.T) {
	loc := helsinki(t)
	f := Formatter{Location: loc}

	assert.Equal(t, "9:05 am", f.TimeOfDay(time.Date(2026, 10, 16, 9, 5, 59, 0, loc)))
	assert.Equal(t, "12:00 pm", f.TimeOfDay(time.Date(2026, 10, 16, 12, 0, 0, 0, loc)))
	assert.Equal(t, "9:00 am - 10:30 am", f.TimeRange(
		time.Date(2026, 10, 16, 9, 0, 0, 0, loc),
		time.Date(2026, 10, 16, 10, 30, 0, 0, loc),
	))

	custom := Formatter{Location: loc, TimeLayout: "15:04"}
	assert.Equal(t, "21:15", custom.TimeOfDay(time.Date(2026, 10, 16, 18, 15, 0, 0, time.UTC)))
}

func TestParseTomorrowRule(t *testing.T) {
	r, ok := ParseTomorrowRule("calendar")
	assert.True(t, ok)
	assert.Equal(t, TomorrowCalendar, r)

	r, ok = ParseTomorrowRule("")
	assert.True(t, ok)
	assert.Equal(t, TomorrowDayOfMonth, r)

	r, ok = ParseTomorrowRule("bogus")
	assert.False(t, ok)
	assert.Equal(t, TomorrowDayOfMonth, r)
}
