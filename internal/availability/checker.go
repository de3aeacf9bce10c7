// Package availability decides whether a requested slot may be booked.
package availability

import (
	"time"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

type Candidate struct {
	Start time.Time
	End   time.Time
}

type Verdict struct {
	OK           bool
	Reason       string
	ConflictWith string
}

// Err converts a negative verdict into a domain error carrying its reason.
func (v Verdict) Err() error {
	switch {
	case v.OK:
		return nil
	case v.Reason == domain.ReasonConflict:
		return domain.ConflictError("requested slot overlaps booking "+v.ConflictWith, v.Reason)
	case v.Reason == domain.ReasonPastSlot:
		return &domain.Error{Kind: domain.KindInput, Message: "requested slot is in the past", Reason: v.Reason}
	case v.Reason == domain.ReasonOutsideHours:
		return &domain.Error{Kind: domain.KindInput, Message: "requested slot is outside studio hours", Reason: v.Reason}
	default:
		return &domain.Error{Kind: domain.KindInput, Message: "slot end must be after its start", Reason: v.Reason}
	}
}

type Checker struct {
	hours StudioHours
	now   func() time.Time
}

type Option func(*Checker)

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

func NewChecker(hours StudioHours, opts ...Option) *Checker {
	c := &Checker{hours: hours, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Hours() StudioHours {
	return c.hours
}

// IsSlotAvailable evaluates candidate against the studio hours, the clock and
// every existing booking that still occupies the calendar.
func (c *Checker) IsSlotAvailable(candidate Candidate, existing []domain.Booking) Verdict {
	if !candidate.End.After(candidate.Start) {
		return Verdict{Reason: domain.ReasonInvalidRange}
	}
	if candidate.Start.Before(c.now()) {
		return Verdict{Reason: domain.ReasonPastSlot}
	}
	if !c.hours.Contains(candidate.Start, candidate.End) {
		return Verdict{Reason: domain.ReasonOutsideHours}
	}
	if id, ok := FirstConflict(candidate, existing); ok {
		return Verdict{Reason: domain.ReasonConflict, ConflictWith: id}
	}
	return Verdict{OK: true}
}

// FirstConflict returns the id of the first active booking overlapping candidate.
// Intervals are half-open, so touching bookings do not conflict.
func FirstConflict(candidate Candidate, existing []domain.Booking) (string, bool) {
	for i := range existing {
		b := &existing[i]
		if !b.Status.OccupiesCalendar() {
			continue
		}
		if b.Overlaps(candidate.Start, candidate.End) {
			return b.ID, true
		}
	}
	return "", false
}

// DeriveEnd computes the slot end for svc. Fixed-duration services ignore the
// requested duration.
func DeriveEnd(svc domain.Service, start time.Time, durationMinutes int) (time.Time, error) {
	if svc.Type.HasFixedDuration() && svc.DurationMinutes > 0 {
		return start.Add(time.Duration(svc.DurationMinutes) * time.Minute), nil
	}
	if durationMinutes <= 0 {
		return time.Time{}, domain.InputError("duration must be positive for %s", svc.Name)
	}
	return start.Add(time.Duration(durationMinutes) * time.Minute), nil
}

// FreeStarts lists the start times on day, spaced by step, at which a slot of
// length would currently be accepted.
func (c *Checker) FreeStarts(day time.Time, length, step time.Duration, existing []domain.Booking) []time.Time {
	if step <= 0 || length <= 0 {
		return nil
	}
	open, closeAt := c.hours.Window(day)
	var out []time.Time
	for start := open; !start.Add(length).After(closeAt); start = start.Add(step) {
		if c.IsSlotAvailable(Candidate{Start: start, End: start.Add(length)}, existing).OK {
			out = append(out, start)
		}
	}
	return out
}
