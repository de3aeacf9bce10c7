// Package email turns booking notifications into customer mail.
package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/config"
	"github.com/Domenick1991/studiobooking/internal/domain"
)

type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender struct {
	mailer   Mailer
	from     string
	fromName string
	log      *zap.Logger
}

// NewSender builds a sender on mailer. A nil mailer only logs the messages.
func NewSender(mailer Mailer, from, fromName string, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{mailer: mailer, from: from, fromName: fromName, log: log}
}

func NewSMTPSender(cfg config.SMTPConfig, log *zap.Logger) (*Sender, error) {
	if !cfg.Enabled() {
		return NewSender(nil, cfg.From, cfg.FromName, log), nil
	}
	c, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return NewSender(c, cfg.From, cfg.FromName, log), nil
}

func (s *Sender) Send(ctx context.Context, event domain.BookingEvent) error {
	if event.Type == domain.EventBookingOverlapDetected {
		s.log.Warn("overlapping bookings reported", zap.String("booking_id", event.BookingID))
		return nil
	}
	m, ok := Compose(event)
	if !ok {
		s.log.Debug("no mail for event", zap.String("type", event.Type), zap.String("booking_id", event.BookingID))
		return nil
	}
	if s.mailer == nil {
		s.log.Info("mail", zap.String("to", m.To), zap.String("subject", m.Subject), zap.String("booking_id", event.BookingID))
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		s.log.Warn("invalid recipient", zap.String("booking_id", event.BookingID), zap.Error(err))
		return nil
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	if err := s.mailer.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail for booking %s: %w", event.BookingID, err)
	}
	s.log.Info("mail sent", zap.String("booking_id", event.BookingID), zap.String("subject", m.Subject))
	return nil
}

var subjects = map[domain.BookingStatus]string{
	domain.BookingStatusPendingPayment: "Deposit requested for your studio booking",
	domain.BookingStatusConfirmed:      "Your studio session is confirmed",
	domain.BookingStatusRejected:       "Your booking request was declined",
	domain.BookingStatusCancelled:      "Your studio booking was cancelled",
	domain.BookingStatusCompleted:      "Thanks for your session",
	domain.BookingStatusRefunded:       "Your deposit was refunded",
}

// Compose renders the mail for event. It reports false when the event has no
// recipient or nothing worth telling the client.
func Compose(event domain.BookingEvent) (Message, bool) {
	if event.UserEmail == "" {
		return Message{}, false
	}

	var subject string
	switch event.Type {
	case domain.EventBookingCreated:
		subject = "We received your booking request"
	case domain.EventBookingStatusChanged:
		subject = subjects[event.Status]
	}
	if subject == "" {
		return Message{}, false
	}

	body := fmt.Sprintf("Booking %s\nSession: %s to %s (UTC)\nStatus: %s\n",
		event.BookingID,
		event.Start.UTC().Format(time.DateTime),
		event.End.UTC().Format(time.DateTime),
		event.Status,
	)
	if event.TotalPrice > 0 {
		body += fmt.Sprintf("Total: %d.%02d\n", event.TotalPrice/100, event.TotalPrice%100)
	}
	return Message{To: event.UserEmail, Subject: subject, Body: body}, true
}
