package view

import (
	"fmt"
	"time"

	"shiftbook/internal/model"
	"shiftbook/internal/timefmt"
)

// DisplayState selects the action affordance for a shift row.
type DisplayState string

const (
	StateStarted             DisplayState = "started"
	StateBookedActive        DisplayState = "booked"
	StateOverlappingUnbooked DisplayState = "overlapping"
	StateBookable            DisplayState = "bookable"
)

// Busy carries the shell's in-flight request marks. Global disables booking
// everywhere in the available view; Shifts picks which rows show a loading
// affordance. The two are independent and never derived from each other here.
type Busy struct {
	Global bool
	Shifts map[model.ID]bool
}

// ShiftBusy reports whether a request for id is in flight.
func (b Busy) ShiftBusy(id model.ID) bool {
	return b.Shifts[id]
}

// StateOf classifies shift for the available view.
func StateOf(shift model.Shift, all []model.Shift, now time.Time) DisplayState {
	switch {
	case !now.Before(shift.StartTime):
		return StateStarted
	case shift.Booked:
		return StateBookedActive
	case IsOverlapping(shift, all):
		return StateOverlappingUnbooked
	default:
		return StateBookable
	}
}

// CityCounts counts shifts per area.
func CityCounts(shifts []model.Shift) map[string]int {
	counts := make(map[string]int)
	for _, s := range shifts {
		counts[s.Area]++
	}
	return counts
}

// CityTab is one entry of the city selector.
type CityTab struct {
	City     string `json:"city"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected"`
}

// Label renders "City (n)".
func (t CityTab) Label() string {
	return fmt.Sprintf("%s (%d)", t.City, t.Count)
}

// Tabs pairs each presentational city with its count; cities absent from
// counts show zero.
func Tabs(cities []string, counts map[string]int, selected string) []CityTab {
	out := make([]CityTab, 0, len(cities))
	for _, c := range cities {
		out = append(out, CityTab{City: c, Count: counts[c], Selected: c == selected})
	}
	return out
}

// AvailableParams are the inputs of the available-shifts view besides the
// snapshot itself.
type AvailableParams struct {
	City   string
	Now    time.Time
	Busy   Busy
	Cities []string
}

// AvailableRow is one shift of the selected city with its affordances.
type AvailableRow struct {
	Shift         model.Shift  `json:"shift"`
	State         DisplayState `json:"state"`
	TimeRange     string       `json:"timeRange"`
	Loading       bool         `json:"loading"`
	BookEnabled   bool         `json:"bookEnabled"`
	CancelEnabled bool         `json:"cancelEnabled"`
}

// AvailableGroup is one date bucket of the available view.
type AvailableGroup struct {
	Label        string         `json:"label"`
	TotalHours   int            `json:"totalHours"`
	TotalMinutes int            `json:"totalMinutes"`
	Rows         []AvailableRow `json:"rows"`
}

// AvailableView is the available-shifts tab for one city.
type AvailableView struct {
	City    string           `json:"city"`
	Counts  map[string]int   `json:"counts"`
	Tabs    []CityTab        `json:"tabs"`
	Groups  []AvailableGroup `json:"groups"`
	Loading bool             `json:"loading"`
}

// Available builds the available-shifts view for p.City. Counts cover the
// whole snapshot; overlap is checked against the whole snapshot as well.
func Available(snapshot []model.Shift, p AvailableParams, f timefmt.Formatter) AvailableView {
	inCity := make([]model.Shift, 0, len(snapshot))
	for _, s := range snapshot {
		if s.Area == p.City {
			inCity = append(inCity, s)
		}
	}

	counts := CityCounts(snapshot)
	v := AvailableView{
		City:   p.City,
		Counts: counts,
		Tabs:   Tabs(p.Cities, counts, p.City),
		Groups: make([]AvailableGroup, 0),
	}

	for _, b := range GroupByDate(inCity, p.Now, f) {
		g := AvailableGroup{
			Label:        b.Label,
			TotalHours:   b.TotalHours,
			TotalMinutes: b.TotalMinutes,
			Rows:         make([]AvailableRow, 0, len(b.Shifts)),
		}
		for _, s := range b.Shifts {
			state := StateOf(s, snapshot, p.Now)
			loading := p.Busy.ShiftBusy(s.ID)
			g.Rows = append(g.Rows, AvailableRow{
				Shift:         s,
				State:         state,
				TimeRange:     f.TimeRange(s.StartTime, s.EndTime),
				Loading:       loading,
				BookEnabled:   state == StateBookable && !p.Busy.Global,
				CancelEnabled: state == StateBookedActive && !loading,
			})
		}
		v.Groups = append(v.Groups, g)
	}
	return v
}

// MineParams are the inputs of the my-shifts view besides the snapshot.
type MineParams struct {
	Now  time.Time
	Busy Busy
}

// MyRow is one booked shift in the my-shifts view.
type MyRow struct {
	Shift         model.Shift `json:"shift"`
	TimeRange     string      `json:"timeRange"`
	Area          string      `json:"area"`
	Started       bool        `json:"started"`
	Loading       bool        `json:"loading"`
	CancelEnabled bool        `json:"cancelEnabled"`
}

// MyGroup is one date bucket of booked shifts with its header summary.
type MyGroup struct {
	Label        string  `json:"label"`
	Summary      string  `json:"summary"`
	TotalHours   int     `json:"totalHours"`
	TotalMinutes int     `json:"totalMinutes"`
	Rows         []MyRow `json:"rows"`
}

// MyShiftsView lists booked shifts by date. Empty is set, and Groups is nil,
// when nothing is booked.
type MyShiftsView struct {
	Empty   bool      `json:"empty"`
	Groups  []MyGroup `json:"groups"`
	Loading bool      `json:"loading"`
}

// Mine builds the my-shifts view over the booked subset of snapshot.
func Mine(snapshot []model.Shift, p MineParams, f timefmt.Formatter) MyShiftsView {
	booked := make([]model.Shift, 0, len(snapshot))
	for _, s := range snapshot {
		if s.Booked {
			booked = append(booked, s)
		}
	}
	if len(booked) == 0 {
		return MyShiftsView{Empty: true}
	}

	var v MyShiftsView
	for _, b := range GroupByDate(booked, p.Now, f) {
		g := MyGroup{
			Label:        b.Label,
			Summary:      b.Summary(),
			TotalHours:   b.TotalHours,
			TotalMinutes: b.TotalMinutes,
			Rows:         make([]MyRow, 0, len(b.Shifts)),
		}
		for _, s := range b.Shifts {
			started := !p.Now.Before(s.StartTime)
			loading := p.Busy.ShiftBusy(s.ID)
			g.Rows = append(g.Rows, MyRow{
				Shift:         s,
				TimeRange:     f.TimeRange(s.StartTime, s.EndTime),
				Area:          s.Area,
				Started:       started,
				Loading:       loading,
				CancelEnabled: !started && !loading,
			})
		}
		v.Groups = append(v.Groups, g)
	}
	return v
}
