package domain

import "time"

const (
	EventBookingCreated         = "booking_created"
	EventBookingUpdated         = "booking_updated"
	EventBookingStatusChanged   = "booking_status_changed"
	EventBookingOverlapDetected = "booking_overlap_detected"
)

// BookingEvent is published on every change to a booking record.
type BookingEvent struct {
	Type       string        `json:"type"`
	BookingID  string        `json:"booking_id"`
	UserID     string        `json:"user_id"`
	UserEmail  string        `json:"user_email,omitempty"`
	Status     BookingStatus `json:"status"`
	PrevStatus BookingStatus `json:"prev_status,omitempty"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	TotalPrice int64         `json:"total_price"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *Booking, prev BookingStatus) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		UserID:     b.UserID,
		UserEmail:  b.UserEmail,
		Status:     b.Status,
		PrevStatus: prev,
		Start:      b.Start,
		End:        b.End,
		TotalPrice: b.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
}
