package booking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

// Lock takes the per-booking mutation lock. Concurrent administrative or
// payment operations on the same booking fail fast with a busy error.
func (s *BookingService) Lock(ctx context.Context, bookingID string) (func(), error) {
	if bookingID == "" {
		return nil, domain.InputError("booking id is required")
	}
	token, ok, err := s.locker.AcquireBookingLock(ctx, bookingID, s.lockTTL)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "acquire booking lock", err)
	}
	if !ok {
		return nil, domain.BusyError(bookingID)
	}

	stop, done := make(chan struct{}), make(chan struct{})
	go s.keepLock(context.WithoutCancel(ctx), bookingID, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := s.locker.ReleaseBookingLock(context.WithoutCancel(ctx), bookingID, token); err != nil {
				s.log.Warn("failed to release booking lock", zap.String("booking_id", bookingID), zap.Error(err))
			}
		})
	}, nil
}

// keepLock extends a held lock every third of its ttl until stop is closed,
// so slow gateway calls cannot outlive it.
func (s *BookingService) keepLock(ctx context.Context, bookingID, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := s.lockTTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, interval)
			held, err := s.locker.ExtendBookingLock(extendCtx, bookingID, token, s.lockTTL)
			cancel()
			if err != nil {
				s.log.Warn("failed to extend booking lock", zap.String("booking_id", bookingID), zap.Error(err))
				continue
			}
			if !held {
				s.log.Error("booking lock lost while held", zap.String("booking_id", bookingID))
				return
			}
		}
	}
}

func (s *BookingService) Load(ctx context.Context, id string) (*domain.Booking, error) {
	if id == "" {
		return nil, domain.InputError("booking id is required")
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "booking")
	}
	return b, nil
}

// Transition moves b to target, applying patch in the same conditional write.
// The write only succeeds while the stored status still equals b.Status.
func (s *BookingService) Transition(ctx context.Context, b *domain.Booking, target domain.BookingStatus, patch domain.BookingPatch) (*domain.Booking, error) {
	if !b.Status.CanTransitionTo(target) {
		return nil, domain.PreconditionError("booking %s cannot move from %s to %s", b.ID, b.Status, target)
	}
	switch target {
	case domain.BookingStatusConfirmed:
		captured := b.DepositCaptured || (patch.DepositCaptured != nil && *patch.DepositCaptured)
		if !captured && !b.IsFree() {
			return nil, domain.PreconditionError("booking %s has no captured deposit", b.ID)
		}
	case domain.BookingStatusCompleted:
		captured := b.FinalPaymentCaptured || (patch.FinalPaymentCaptured != nil && *patch.FinalPaymentCaptured)
		if !captured && b.Remainder() > 0 {
			return nil, domain.PreconditionError("booking %s still owes %d", b.ID, b.Remainder())
		}
	}

	patch.Status = &target
	updated, err := s.bookings.Update(ctx, b.ID, []domain.BookingStatus{b.Status}, patch)
	if err != nil {
		return nil, mapRepoErr(err, "booking")
	}
	s.log.Info("booking status changed",
		zap.String("booking_id", b.ID), zap.String("from", string(b.Status)), zap.String("status", string(target)))
	s.publish(ctx, domain.EventBookingStatusChanged, updated, b.Status)
	return updated, nil
}

// Amend writes non-status fields while the booking keeps its current status.
func (s *BookingService) Amend(ctx context.Context, b *domain.Booking, patch domain.BookingPatch) (*domain.Booking, error) {
	patch.Status = nil
	updated, err := s.bookings.Update(ctx, b.ID, []domain.BookingStatus{b.Status}, patch)
	if err != nil {
		return nil, mapRepoErr(err, "booking")
	}
	s.publish(ctx, domain.EventBookingUpdated, updated, "")
	return updated, nil
}

// adminTransition runs an administrator status change under the booking lock.
// Re-applying a transition that already happened returns the booking unchanged.
func (s *BookingService) adminTransition(ctx context.Context, callerID, id string, target domain.BookingStatus, check func(*domain.Booking) error) (*domain.Booking, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	unlock, err := s.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == target {
		return b, nil
	}
	if check != nil {
		if err := check(b); err != nil {
			return nil, err
		}
	}
	return s.Transition(ctx, b, target, domain.BookingPatch{})
}

// ConfirmBooking confirms a free booking. Priced bookings are confirmed by
// capturing their deposit.
func (s *BookingService) ConfirmBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return s.adminTransition(ctx, callerID, id, domain.BookingStatusConfirmed, func(b *domain.Booking) error {
		if !b.IsFree() && !b.DepositCaptured {
			return domain.PreconditionError("booking %s is priced, capture its deposit to confirm", b.ID)
		}
		return nil
	})
}

// RejectBooking declines a pending booking. An uncaptured deposit intent is
// left to expire since nothing was charged.
func (s *BookingService) RejectBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return s.adminTransition(ctx, callerID, id, domain.BookingStatusRejected, nil)
}

func (s *BookingService) CompleteBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return s.adminTransition(ctx, callerID, id, domain.BookingStatusCompleted, nil)
}

// CancelBooking cancels a confirmed booking with nothing to refund. Captured
// deposits go through the refund flow instead.
func (s *BookingService) CancelBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return s.adminTransition(ctx, callerID, id, domain.BookingStatusCancelled, func(b *domain.Booking) error {
		if b.DepositCaptured {
			return domain.PreconditionError("booking %s has a captured deposit, refund it instead", b.ID)
		}
		return nil
	})
}
