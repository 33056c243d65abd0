package view

import "shiftbook/internal/model"

// IsOverlapping reports whether shift intersects any other booked shift in
// all. Intervals are half-open, so shifts that only touch at a boundary do
// not overlap and a zero-length shift overlaps nothing. The shift itself is
// excluded by id.
func IsOverlapping(shift model.Shift, all []model.Shift) bool {
	if !shift.StartTime.Before(shift.EndTime) {
		return false
	}
	for _, other := range all {
		if other.ID == shift.ID || !other.Booked {
			continue
		}
		if !other.StartTime.Before(other.EndTime) {
			continue
		}
		if shift.StartTime.Before(other.EndTime) && shift.EndTime.After(other.StartTime) {
			return true
		}
	}
	return false
}
