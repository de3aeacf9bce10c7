package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusRejected       BookingStatus = "rejected"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusRefunded       BookingStatus = "refunded"
)

// transitions lists the allowed targets for every status. Terminal statuses map to nothing.
var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:        {BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusRejected},
	BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusRejected},
	BookingStatusConfirmed:      {BookingStatusCompleted, BookingStatusRefunded, BookingStatusCancelled},
	BookingStatusRejected:       {},
	BookingStatusCompleted:      {},
	BookingStatusCancelled:      {},
	BookingStatusRefunded:       {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// OccupiesCalendar reports whether a booking in this status blocks its interval.
func (s BookingStatus) OccupiesCalendar() bool {
	return s != BookingStatusRejected && s != BookingStatusCancelled
}

// FreeingStatuses are the statuses whose bookings no longer hold their slot.
var FreeingStatuses = []BookingStatus{BookingStatusRejected, BookingStatusCancelled}

// StatusesFrom returns every status that may move to target.
func StatusesFrom(target BookingStatus) []BookingStatus {
	var out []BookingStatus
	for _, from := range orderedStatuses {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}

var orderedStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusPendingPayment,
	BookingStatusConfirmed,
	BookingStatusRejected,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusRefunded,
}

type SessionDetails struct {
	Answers map[string]string `json:"answers,omitempty"`
	Files   []string          `json:"files,omitempty"`
}

type Booking struct {
	ID        string    `json:"id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       string `json:"user_id"`
	UserName     string `json:"user_name,omitempty"`
	UserEmail    string `json:"user_email,omitempty"`
	EngineerID   string `json:"engineer_id,omitempty"`
	ProducerName string `json:"producer_name,omitempty"`

	ServiceID   string      `json:"service_id"`
	ServiceType ServiceType `json:"service_type"`
	ServiceName string      `json:"service_name,omitempty"`
	TotalPrice  int64       `json:"total_price"`
	SongCount   int         `json:"song_count,omitempty"`
	BeatLicense string      `json:"beat_license,omitempty"`

	PaymentIntentID        string     `json:"payment_intent_id,omitempty"`
	DepositAmount          int64      `json:"deposit_amount"`
	DepositCaptured        bool       `json:"deposit_captured"`
	DepositCapturedAt      *time.Time `json:"deposit_captured_at,omitempty"`
	FinalPaymentIntentID   string     `json:"final_payment_intent_id,omitempty"`
	FinalAmount            int64      `json:"final_amount"`
	FinalPaymentCaptured   bool       `json:"final_payment_captured"`
	FinalPaymentCapturedAt *time.Time `json:"final_payment_captured_at,omitempty"`
	RefundID               string     `json:"refund_id,omitempty"`
	RefundStatus           string     `json:"refund_status,omitempty"`

	Status         BookingStatus   `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	SessionDetails *SessionDetails `json:"session_details,omitempty"`
}

// Remainder is the amount still owed once the deposit has been captured.
func (b *Booking) Remainder() int64 {
	if b.TotalPrice <= b.DepositAmount {
		return 0
	}
	return b.TotalPrice - b.DepositAmount
}

func (b *Booking) IsFree() bool {
	return b.TotalPrice == 0
}

// Overlaps reports whether the half-open intervals [b.Start, b.End) and [start, end) intersect.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// BookingPatch is a partial update; nil fields are left untouched.
type BookingPatch struct {
	Status                 *BookingStatus
	PaymentIntentID        *string
	DepositAmount          *int64
	DepositCaptured        *bool
	DepositCapturedAt      *time.Time
	FinalPaymentIntentID   *string
	FinalAmount            *int64
	FinalPaymentCaptured   *bool
	FinalPaymentCapturedAt *time.Time
	RefundID               *string
	RefundStatus           *string
	SessionDetails         *SessionDetails
}

// Overlap is a pair of active bookings sharing part of their intervals.
type Overlap struct {
	First  Booking `json:"first"`
	Second Booking `json:"second"`
}
