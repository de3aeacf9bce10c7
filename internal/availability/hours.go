package availability

import "time"

// StudioHours is the daily operating window. CloseHour may be less than or
// equal to OpenHour, in which case the studio closes on the following day.
type StudioHours struct {
	OpenHour  int
	CloseHour int
	Location  *time.Location
}

func (h StudioHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

func (h StudioHours) overnight() bool {
	return h.CloseHour <= h.OpenHour
}

// Window returns the operating window opening on the calendar day of day.
func (h StudioHours) Window(day time.Time) (time.Time, time.Time) {
	loc := h.location()
	d := day.In(loc)
	open := time.Date(d.Year(), d.Month(), d.Day(), h.OpenHour, 0, 0, 0, loc)
	closeAt := time.Date(d.Year(), d.Month(), d.Day(), h.CloseHour, 0, 0, 0, loc)
	if h.overnight() {
		closeAt = closeAt.AddDate(0, 0, 1)
	}
	return open, closeAt
}

// Contains reports whether [start, end) lies entirely inside a single operating window.
// Both the window opening on start's day and the one opening the day before are
// considered, so 01:00 belongs to the previous evening's session.
func (h StudioHours) Contains(start, end time.Time) bool {
	local := start.In(h.location())
	for _, offset := range []int{-1, 0} {
		open, closeAt := h.Window(local.AddDate(0, 0, offset))
		if !start.Before(open) && !end.After(closeAt) {
			return true
		}
	}
	return false
}
