// Package payment coordinates deposit and final payments with the gateway and
// folds their outcome into the booking lifecycle.
package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/internal/auth"
	"github.com/Domenick1991/studiobooking/internal/domain"
)

const DefaultRefundReason = "admin_cancellation"

type PaymentUseCase interface {
	CreateDepositIntent(ctx context.Context, callerID, bookingID string, amount int64, currency string) (*IntentResult, error)
	CaptureDeposit(ctx context.Context, callerID, bookingID string) (*Outcome, error)
	ChargeFinalPayment(ctx context.Context, callerID, bookingID string, amount int64, currency string) (*IntentResult, error)
	CaptureFinalPayment(ctx context.Context, callerID, bookingID string) (*Outcome, error)
	RefundDeposit(ctx context.Context, callerID, bookingID, reason string) (*Outcome, error)
}

// Bookings is the part of the booking lifecycle the coordinator drives.
type Bookings interface {
	Lock(ctx context.Context, bookingID string) (func(), error)
	Load(ctx context.Context, id string) (*domain.Booking, error)
	Transition(ctx context.Context, b *domain.Booking, target domain.BookingStatus, patch domain.BookingPatch) (*domain.Booking, error)
	Amend(ctx context.Context, b *domain.Booking, patch domain.BookingPatch) (*domain.Booking, error)
}

type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) error
	RequireOwnerOrAdmin(ctx context.Context, callerID, ownerID string) error
}

type IntentResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PaymentService struct {
	bookings Bookings
	authz    Authorizer
	gateway  Gateway
	currency string
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

type PaymentServiceOption func(*PaymentService)

func WithCurrency(currency string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.currency = currency
	}
}

func WithGatewayTimeout(d time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		s.timeout = d
	}
}

func WithLogger(log *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		s.log = log
	}
}

func WithClock(now func() time.Time) PaymentServiceOption {
	return func(s *PaymentService) {
		s.now = now
	}
}

func NewPaymentService(bookings Bookings, authz Authorizer, gateway Gateway, opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
		bookings: bookings,
		authz:    authz,
		gateway:  gateway,
		currency: "usd",
		timeout:  15 * time.Second,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDepositIntent opens the single deposit intent of a priced booking and
// moves it to pending_payment. Calling it again returns the existing intent.
func (s *PaymentService) CreateDepositIntent(ctx context.Context, callerID, bookingID string, amount int64, currency string) (*IntentResult, error) {
	if err := auth.RequireCaller(callerID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, domain.InputError("amount must be positive")
	}

	b, unlock, err := s.lockAndLoad(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	if err := s.authz.RequireOwnerOrAdmin(ctx, callerID, b.UserID); err != nil {
		return nil, err
	}
	if b.IsFree() {
		return nil, domain.PreconditionError("booking %s is free and needs no payment", b.ID)
	}
	if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusPendingPayment {
		return nil, domain.PreconditionError("booking %s is %s", b.ID, b.Status)
	}
	if amount > b.TotalPrice {
		return nil, domain.InputError("deposit %d exceeds the booking total %d", amount, b.TotalPrice)
	}
	if b.PaymentIntentID != "" {
		return s.existingIntent(ctx, b.PaymentIntentID)
	}

	intent, err := s.createIntent(ctx, b, amount, currency, "deposit")
	if err != nil {
		return nil, err
	}

	patch := domain.BookingPatch{PaymentIntentID: &intent.ID, DepositAmount: &amount}
	if b.Status == domain.BookingStatusPending {
		_, err = s.bookings.Transition(ctx, b, domain.BookingStatusPendingPayment, patch)
	} else {
		_, err = s.bookings.Amend(ctx, b, patch)
	}
	if err != nil {
		return nil, s.reconcile(b.ID, intent.ID, "record deposit intent", err)
	}
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// CaptureDeposit settles the deposit and confirms the booking.
func (s *PaymentService) CaptureDeposit(ctx context.Context, callerID, bookingID string) (*Outcome, error) {
	b, unlock, err := s.adminLoad(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	if b.DepositCaptured {
		return &Outcome{Success: true, Message: "deposit already captured"}, nil
	}
	if b.PaymentIntentID == "" {
		return nil, domain.PreconditionError("booking %s has no deposit payment intent", b.ID)
	}
	if !b.Status.CanTransitionTo(domain.BookingStatusConfirmed) {
		return nil, domain.PreconditionError("booking %s is %s", b.ID, b.Status)
	}

	if _, err := s.capture(ctx, b.PaymentIntentID); err != nil {
		return nil, err
	}

	captured, at := true, s.now().UTC()
	_, err = s.bookings.Transition(ctx, b, domain.BookingStatusConfirmed, domain.BookingPatch{
		DepositCaptured:   &captured,
		DepositCapturedAt: &at,
	})
	if err != nil {
		return nil, s.reconcile(b.ID, b.PaymentIntentID, "confirm after deposit capture", err)
	}
	s.log.Info("deposit captured", zap.String("booking_id", b.ID), zap.String("intent_id", b.PaymentIntentID))
	return &Outcome{Success: true, Message: "deposit captured, booking confirmed"}, nil
}

// ChargeFinalPayment opens the final payment intent for the remainder owed.
func (s *PaymentService) ChargeFinalPayment(ctx context.Context, callerID, bookingID string, amount int64, currency string) (*IntentResult, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, domain.InputError("amount must be positive")
	}
	b, unlock, err := s.lockAndLoad(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	if b.Status != domain.BookingStatusConfirmed {
		return nil, domain.PreconditionError("booking %s is %s, final payment needs a confirmed booking", b.ID, b.Status)
	}
	if b.FinalPaymentIntentID != "" {
		return s.existingIntent(ctx, b.FinalPaymentIntentID)
	}
	remainder := b.Remainder()
	if remainder == 0 {
		return nil, domain.PreconditionError("booking %s has no remainder due", b.ID)
	}
	if amount > remainder {
		return nil, domain.InputError("final payment %d exceeds the remainder %d", amount, remainder)
	}

	intent, err := s.createIntent(ctx, b, amount, currency, "final")
	if err != nil {
		return nil, err
	}
	if _, err := s.bookings.Amend(ctx, b, domain.BookingPatch{FinalPaymentIntentID: &intent.ID, FinalAmount: &amount}); err != nil {
		return nil, s.reconcile(b.ID, intent.ID, "record final intent", err)
	}
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// CaptureFinalPayment settles the final payment and completes the booking.
func (s *PaymentService) CaptureFinalPayment(ctx context.Context, callerID, bookingID string) (*Outcome, error) {
	b, unlock, err := s.adminLoad(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	if b.Status == domain.BookingStatusCompleted {
		return &Outcome{Success: true, Message: "final payment already captured"}, nil
	}
	if b.FinalPaymentIntentID == "" {
		return nil, domain.PreconditionError("booking %s has no final payment intent", b.ID)
	}
	if b.Status != domain.BookingStatusConfirmed {
		return nil, domain.PreconditionError("booking %s is %s", b.ID, b.Status)
	}

	if !b.FinalPaymentCaptured {
		if _, err := s.capture(ctx, b.FinalPaymentIntentID); err != nil {
			return nil, err
		}
	}

	captured, at := true, s.now().UTC()
	_, err = s.bookings.Transition(ctx, b, domain.BookingStatusCompleted, domain.BookingPatch{
		FinalPaymentCaptured:   &captured,
		FinalPaymentCapturedAt: &at,
	})
	if err != nil {
		return nil, s.reconcile(b.ID, b.FinalPaymentIntentID, "complete after final capture", err)
	}
	s.log.Info("final payment captured", zap.String("booking_id", b.ID), zap.String("intent_id", b.FinalPaymentIntentID))
	return &Outcome{Success: true, Message: "final payment captured, booking completed"}, nil
}

// RefundDeposit refunds the charge behind the deposit intent in full and
// marks the booking refunded. A failed refund leaves the booking confirmed.
func (s *PaymentService) RefundDeposit(ctx context.Context, callerID, bookingID, reason string) (*Outcome, error) {
	if reason == "" {
		reason = DefaultRefundReason
	}
	b, unlock, err := s.adminLoad(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	if b.Status == domain.BookingStatusRefunded {
		return &Outcome{Success: true, Message: "deposit already refunded"}, nil
	}
	if b.Status != domain.BookingStatusConfirmed {
		return nil, domain.PreconditionError("booking %s is %s, only confirmed bookings are refunded", b.ID, b.Status)
	}
	if !b.DepositCaptured || b.PaymentIntentID == "" {
		return nil, domain.PreconditionError("booking %s has no captured deposit", b.ID)
	}

	intent, err := s.retrieve(ctx, b.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.ChargeID == "" {
		return nil, domain.PreconditionError("deposit intent %s has no charge to refund", intent.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	refund, err := s.gateway.Refund(callCtx, intent.ChargeID, reason, map[string]string{
		"booking_id": b.ID,
		"user_id":    b.UserID,
		"reason":     reason,
	})
	if err != nil {
		s.log.Error("refund failed", zap.String("booking_id", b.ID), zap.String("intent_id", intent.ID), zap.Error(err))
		return nil, domain.GatewayError("refund failed", err)
	}
	if refund.Failed() {
		s.log.Error("refund not paid out", zap.String("booking_id", b.ID), zap.String("refund_id", refund.ID),
			zap.String("status", refund.Status))
		return nil, domain.GatewayError("refund failed", fmt.Errorf("refund %s is %s", refund.ID, refund.Status))
	}

	_, err = s.bookings.Transition(ctx, b, domain.BookingStatusRefunded, domain.BookingPatch{
		RefundID:     &refund.ID,
		RefundStatus: &refund.Status,
	})
	if err != nil {
		return nil, s.reconcile(b.ID, intent.ID, "mark refunded", err)
	}
	s.log.Info("deposit refunded", zap.String("booking_id", b.ID), zap.String("refund_id", refund.ID), zap.String("reason", reason))
	return &Outcome{Success: true, Message: "deposit refunded"}, nil
}

func (s *PaymentService) adminLoad(ctx context.Context, callerID, bookingID string) (*domain.Booking, func(), error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, nil, err
	}
	return s.lockAndLoad(ctx, bookingID)
}

func (s *PaymentService) lockAndLoad(ctx context.Context, bookingID string) (*domain.Booking, func(), error) {
	if bookingID == "" {
		return nil, nil, domain.InputError("booking_id is required")
	}
	unlock, err := s.bookings.Lock(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.bookings.Load(ctx, bookingID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return b, unlock, nil
}

func (s *PaymentService) createIntent(ctx context.Context, b *domain.Booking, amount int64, currency, kind string) (Intent, error) {
	if currency == "" {
		currency = s.currency
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(callCtx, amount, currency, map[string]string{
		"booking_id": b.ID,
		"user_id":    b.UserID,
		"kind":       kind,
	})
	if err != nil {
		s.log.Error("create payment intent failed", zap.String("booking_id", b.ID), zap.String("kind", kind), zap.Error(err))
		return Intent{}, domain.GatewayError("create payment intent failed", err)
	}
	return intent, nil
}

func (s *PaymentService) existingIntent(ctx context.Context, id string) (*IntentResult, error) {
	intent, err := s.retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

func (s *PaymentService) retrieve(ctx context.Context, id string) (Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intent, err := s.gateway.RetrieveIntent(callCtx, id)
	if err != nil {
		return Intent{}, domain.GatewayError("retrieve payment intent failed", err)
	}
	return intent, nil
}

// capture settles id. An intent the gateway already reports as succeeded is
// not captured twice.
func (s *PaymentService) capture(ctx context.Context, id string) (Intent, error) {
	intent, err := s.retrieve(ctx, id)
	if err != nil {
		return Intent{}, err
	}
	if intent.Captured() {
		return intent, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err = s.gateway.CaptureIntent(callCtx, id)
	if err != nil {
		s.log.Error("capture failed", zap.String("intent_id", id), zap.Error(err))
		return Intent{}, domain.GatewayError("capture failed", err)
	}
	if !intent.Captured() {
		return Intent{}, domain.GatewayError(fmt.Sprintf("capture unsuccessful, intent is %s", intent.Status), nil)
	}
	return intent, nil
}

// reconcile reports a follow-up write that failed after the gateway already
// applied its effect. Retrying the payment would double charge.
func (s *PaymentService) reconcile(bookingID, intentID, step string, err error) error {
	s.log.Error("booking needs manual reconciliation",
		zap.String("booking_id", bookingID), zap.String("intent_id", intentID), zap.String("step", step), zap.Error(err))
	return domain.ReconciliationError(fmt.Sprintf("%s for booking %s (intent %s)", step, bookingID, intentID), err)
}

var _ PaymentUseCase = (*PaymentService)(nil)
