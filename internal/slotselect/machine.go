// Package slotselect drives a single client's booking attempt from slot
// selection to a created booking with its deposit intent.
package slotselect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/studiobooking/internal/availability"
	"github.com/Domenick1991/studiobooking/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingEnd
	StateRangeSelected
	StateSubmitting
	StateSubmitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingEnd:
		return "awaiting_end"
	case StateRangeSelected:
		return "range_selected"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrInvalidTransition = errors.New("invalid slot selection transition")

// Draft is everything the server needs to create the booking.
type Draft struct {
	ServiceID       string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	SongCount       int
	BeatLicenseID   string
	Notes           string
}

type PaymentIntent struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// Submitter is the remote side of the flow.
type Submitter interface {
	CreateBooking(ctx context.Context, draft Draft) (domain.Booking, error)
	CreatePaymentIntent(ctx context.Context, bookingID string, amount int64) (PaymentIntent, error)
}

// Extras carries the service-specific parameters chosen alongside the slot.
type Extras struct {
	SongCount     int
	BeatLicenseID string
	Notes         string
}

type Result struct {
	Booking domain.Booking
	Intent  *PaymentIntent
}

type Machine struct {
	mu sync.Mutex

	checker   *availability.Checker
	service   domain.Service
	submitter Submitter

	state    State
	existing []domain.Booking
	start    time.Time
	end      time.Time
	extras   Extras
	reason   string
	lastErr  error
	booking  *domain.Booking
}

func New(checker *availability.Checker, service domain.Service, submitter Submitter) *Machine {
	return &Machine{
		checker:   checker,
		service:   service,
		submitter: submitter,
		state:     StateIdle,
	}
}

// SetBookings replaces the advisory view of the calendar used for local checks.
func (m *Machine) SetBookings(existing []domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existing = append([]domain.Booking(nil), existing...)
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reason is the rejection reason from the last failed selection, if any.
func (m *Machine) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Machine) Range() (time.Time, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start, m.end
}

// Booking returns the server-side booking once it has been created.
func (m *Machine) Booking() (domain.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.booking == nil {
		return domain.Booking{}, false
	}
	return *m.booking, true
}

// PickStart selects the slot start. Fixed-duration services derive the end
// immediately, others wait for PickEnd.
func (m *Machine) PickStart(start time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle, StateAwaitingEnd, StateRangeSelected:
	default:
		return m.invalid("pick start")
	}

	m.start, m.end = start, time.Time{}
	m.reason = ""
	if m.service.Type.HasFixedDuration() {
		end, err := availability.DeriveEnd(m.service, start, 0)
		if err != nil {
			m.reset()
			return err
		}
		return m.selectRange(start, end)
	}
	m.state = StateAwaitingEnd
	return nil
}

func (m *Machine) PickEnd(end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingEnd {
		return m.invalid("pick end")
	}
	return m.selectRange(m.start, end)
}

// PickDuration is PickEnd expressed as minutes after the chosen start.
func (m *Machine) PickDuration(minutes int) error {
	m.mu.Lock()
	start := m.start
	m.mu.Unlock()
	return m.PickEnd(start.Add(time.Duration(minutes) * time.Minute))
}

func (m *Machine) selectRange(start, end time.Time) error {
	verdict := m.checker.IsSlotAvailable(availability.Candidate{Start: start, End: end}, m.existing)
	if !verdict.OK {
		m.reset()
		m.reason = verdict.Reason
		return verdict.Err()
	}
	m.start, m.end = start, end
	m.state = StateRangeSelected
	return nil
}

// Submit creates the booking and, for priced services, its deposit intent.
func (m *Machine) Submit(ctx context.Context, extras Extras) (Result, error) {
	m.mu.Lock()
	if m.state != StateRangeSelected {
		defer m.mu.Unlock()
		return Result{}, m.invalid("submit")
	}
	m.extras = extras
	m.state = StateSubmitting
	m.mu.Unlock()

	return m.submit(ctx)
}

// Retry resumes a failed submission. A booking that was already created is
// reused and only the payment step is repeated.
func (m *Machine) Retry(ctx context.Context) (Result, error) {
	m.mu.Lock()
	if m.state != StateFailed {
		defer m.mu.Unlock()
		return Result{}, m.invalid("retry")
	}
	m.state = StateSubmitting
	m.lastErr = nil
	m.mu.Unlock()

	return m.submit(ctx)
}

// Cancel abandons the attempt and discards local state. Once a submission is
// in flight or done it can no longer be cancelled locally.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateSubmitting || m.state == StateSubmitted {
		return m.invalid("cancel")
	}
	m.reset()
	m.booking, m.lastErr = nil, nil
	return nil
}

func (m *Machine) submit(ctx context.Context) (Result, error) {
	m.mu.Lock()
	booking := m.booking
	draft := Draft{
		ServiceID:       m.service.ID,
		Start:           m.start,
		End:             m.end,
		DurationMinutes: int(m.end.Sub(m.start) / time.Minute),
		SongCount:       m.extras.SongCount,
		BeatLicenseID:   m.extras.BeatLicenseID,
		Notes:           m.extras.Notes,
	}
	m.mu.Unlock()

	if booking == nil {
		created, err := m.submitter.CreateBooking(ctx, draft)
		if err != nil {
			m.mu.Lock()
			defer m.mu.Unlock()
			if domain.ReasonOf(err) != "" {
				m.reset()
				m.reason = domain.ReasonOf(err)
				return Result{}, err
			}
			m.state = StateFailed
			m.lastErr = err
			return Result{}, err
		}
		m.mu.Lock()
		m.booking = &created
		m.mu.Unlock()
		booking = &created
	}

	result := Result{Booking: *booking}
	if booking.TotalPrice > 0 {
		intent, err := m.submitter.CreatePaymentIntent(ctx, booking.ID, booking.TotalPrice)
		if err != nil {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.state = StateFailed
			m.lastErr = err
			return result, err
		}
		result.Intent = &intent
	}

	m.mu.Lock()
	m.state = StateSubmitted
	m.mu.Unlock()
	return result, nil
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.start, m.end = time.Time{}, time.Time{}
	m.extras = Extras{}
	m.reason = ""
}

func (m *Machine) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, action, m.state)
}
