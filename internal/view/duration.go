package view

import (
	"time"

	"shiftbook/internal/model"
)

// Duration is an aggregate length in whole hours and remaining minutes.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// TotalMinutes converts d back to minutes.
func (d Duration) TotalMinutes() int {
	return d.Hours*60 + d.Minutes
}

// TotalDuration sums the lengths of shifts. Each shift contributes its length
// floored to whole minutes; the carry into hours happens once, after summing.
func TotalDuration(shifts []model.Shift) Duration {
	total := 0
	for _, s := range shifts {
		total += int(s.Duration() / time.Minute)
	}
	return Duration{Hours: total / 60, Minutes: total % 60}
}
