package view

import (
	"fmt"
	"time"

	"shiftbook/internal/model"
	"shiftbook/internal/timefmt"
)

// DateBucket is a group of shifts sharing one date label, in input order,
// with their aggregate duration.
type DateBucket struct {
	Label        string        `json:"label"`
	Shifts       []model.Shift `json:"shifts"`
	TotalHours   int           `json:"totalHours"`
	TotalMinutes int           `json:"totalMinutes"`
}

// Summary renders the bucket header detail, e.g. "2, 3 hours 30 minutes".
func (b DateBucket) Summary() string {
	return fmt.Sprintf("%d, %d hours %d minutes", len(b.Shifts), b.TotalHours, b.TotalMinutes)
}

// Buckets is an ordered label -> bucket mapping. Order is the order in which
// each label first occurred in the input.
type Buckets []DateBucket

// Lookup returns the bucket with the given label.
func (bs Buckets) Lookup(label string) (DateBucket, bool) {
	for _, b := range bs {
		if b.Label == label {
			return b, true
		}
	}
	return DateBucket{}, false
}

// Labels returns bucket labels in order.
func (bs Buckets) Labels() []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Label
	}
	return out
}

// GroupByDate partitions shifts by their date label relative to now. Every
// input shift lands in exactly one bucket.
func GroupByDate(shifts []model.Shift, now time.Time, f timefmt.Formatter) Buckets {
	var out Buckets
	index := make(map[string]int)

	for _, s := range shifts {
		label := f.DateBucketLabel(now, s.StartTime)
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, DateBucket{Label: label})
		}
		out[i].Shifts = append(out[i].Shifts, s)
	}

	for i := range out {
		d := TotalDuration(out[i].Shifts)
		out[i].TotalHours = d.Hours
		out[i].TotalMinutes = d.Minutes
	}
	return out
}
