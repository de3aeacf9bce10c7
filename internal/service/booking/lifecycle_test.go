package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/repository"
)

func statusPatch(status domain.BookingStatus) domain.BookingPatch {
	return domain.BookingPatch{Status: &status}
}

func TestTransition_Guards(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		booking domain.Booking
		target  domain.BookingStatus
	}{
		{
			name:    "skip straight to completed",
			booking: domain.Booking{ID: "b-1", Status: domain.BookingStatusPending},
			target:  domain.BookingStatusCompleted,
		},
		{
			name:    "confirm priced booking without deposit",
			booking: domain.Booking{ID: "b-1", Status: domain.BookingStatusPendingPayment, TotalPrice: 10000},
			target:  domain.BookingStatusConfirmed,
		},
		{
			name:    "complete with remainder owed",
			booking: domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed, TotalPrice: 10000, DepositAmount: 4000, DepositCaptured: true},
			target:  domain.BookingStatusCompleted,
		},
		{
			name:    "leave a terminal status",
			booking: domain.Booking{ID: "b-1", Status: domain.BookingStatusRefunded},
			target:  domain.BookingStatusConfirmed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			b := tt.booking
			_, err := f.svc.Transition(ctx, &b, tt.target, domain.BookingPatch{})
			assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))
			f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTransition_ConfirmWithCapturePatch(t *testing.T) {
	f := newFixture()
	f.expectPublish()
	ctx := context.Background()

	captured := true
	now := at(9, 0)
	b := &domain.Booking{ID: "b-1", Status: domain.BookingStatusPendingPayment, TotalPrice: 10000, DepositAmount: 10000}
	patch := domain.BookingPatch{DepositCaptured: &captured, DepositCapturedAt: &now}

	want := patch
	confirmed := domain.BookingStatusConfirmed
	want.Status = &confirmed
	f.bookings.On("Update", ctx, "b-1", []domain.BookingStatus{domain.BookingStatusPendingPayment}, want).
		Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed, DepositCaptured: true}, nil)

	updated, err := f.svc.Transition(ctx, b, domain.BookingStatusConfirmed, patch)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, updated.Status)
	f.producer.AssertCalled(t, "Publish", mock.Anything, "booking-events", "b-1", mock.MatchedBy(func(e domain.BookingEvent) bool {
		return e.Type == domain.EventBookingStatusChanged && e.PrevStatus == domain.BookingStatusPendingPayment
	}))
}

func TestTransition_StaleStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b := &domain.Booking{ID: "b-1", Status: domain.BookingStatusPending}
	f.bookings.On("Update", ctx, "b-1", []domain.BookingStatus{domain.BookingStatusPending}, statusPatch(domain.BookingStatusRejected)).
		Return(nil, repository.ErrStaleStatus)

	_, err := f.svc.Transition(ctx, b, domain.BookingStatusRejected, domain.BookingPatch{})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Equal(t, domain.ReasonStaleStatus, domain.ReasonOf(err))
}

func TestConfirmBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("free booking", func(t *testing.T) {
		f := newFixture()
		f.expectPublish()
		f.bookings.On("GetByID", ctx, "b-free").Return(&domain.Booking{ID: "b-free", Status: domain.BookingStatusPending}, nil)
		f.bookings.On("Update", ctx, "b-free", []domain.BookingStatus{domain.BookingStatusPending}, statusPatch(domain.BookingStatusConfirmed)).
			Return(&domain.Booking{ID: "b-free", Status: domain.BookingStatusConfirmed}, nil)

		b, err := f.svc.ConfirmBooking(ctx, "admin", "b-free")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	})

	t.Run("priced booking needs capture", func(t *testing.T) {
		f := newFixture()
		f.bookings.On("GetByID", ctx, "b-paid").Return(&domain.Booking{ID: "b-paid", Status: domain.BookingStatusPendingPayment, TotalPrice: 5000}, nil)

		_, err := f.svc.ConfirmBooking(ctx, "admin", "b-paid")
		assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))
	})

	t.Run("already confirmed", func(t *testing.T) {
		f := newFixture()
		f.bookings.On("GetByID", ctx, "b-free").Return(&domain.Booking{ID: "b-free", Status: domain.BookingStatusConfirmed}, nil)

		b, err := f.svc.ConfirmBooking(ctx, "admin", "b-free")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
		f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not an administrator", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ConfirmBooking(ctx, "u-1", "b-free")
		assert.Equal(t, domain.KindPermission, domain.KindOf(err))
	})
}

func TestRejectBooking(t *testing.T) {
	f := newFixture()
	f.expectPublish()
	ctx := context.Background()

	f.bookings.On("GetByID", ctx, "b-1").Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusPendingPayment, PaymentIntentID: "pi_1", TotalPrice: 5000}, nil)
	f.bookings.On("Update", ctx, "b-1", []domain.BookingStatus{domain.BookingStatusPendingPayment}, statusPatch(domain.BookingStatusRejected)).
		Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusRejected}, nil)

	b, err := f.svc.RejectBooking(ctx, "admin", "b-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRejected, b.Status)
}

func TestCompleteBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("deposit covered the full price", func(t *testing.T) {
		f := newFixture()
		f.expectPublish()
		f.bookings.On("GetByID", ctx, "b-1").Return(&domain.Booking{
			ID: "b-1", Status: domain.BookingStatusConfirmed, TotalPrice: 5000, DepositAmount: 5000, DepositCaptured: true,
		}, nil)
		f.bookings.On("Update", ctx, "b-1", []domain.BookingStatus{domain.BookingStatusConfirmed}, statusPatch(domain.BookingStatusCompleted)).
			Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusCompleted}, nil)

		b, err := f.svc.CompleteBooking(ctx, "admin", "b-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCompleted, b.Status)
	})

	t.Run("remainder still owed", func(t *testing.T) {
		f := newFixture()
		f.bookings.On("GetByID", ctx, "b-2").Return(&domain.Booking{
			ID: "b-2", Status: domain.BookingStatusConfirmed, TotalPrice: 12000, DepositAmount: 2000, DepositCaptured: true,
		}, nil)

		_, err := f.svc.CompleteBooking(ctx, "admin", "b-2")
		assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("free confirmed booking", func(t *testing.T) {
		f := newFixture()
		f.expectPublish()
		f.bookings.On("GetByID", ctx, "b-1").Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed}, nil)
		f.bookings.On("Update", ctx, "b-1", []domain.BookingStatus{domain.BookingStatusConfirmed}, statusPatch(domain.BookingStatusCancelled)).
			Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusCancelled}, nil)

		b, err := f.svc.CancelBooking(ctx, "admin", "b-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCancelled, b.Status)
	})

	t.Run("captured deposit must be refunded", func(t *testing.T) {
		f := newFixture()
		f.bookings.On("GetByID", ctx, "b-2").Return(&domain.Booking{
			ID: "b-2", Status: domain.BookingStatusConfirmed, TotalPrice: 5000, DepositAmount: 5000, DepositCaptured: true,
		}, nil)

		_, err := f.svc.CancelBooking(ctx, "admin", "b-2")
		assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))
	})
}

func TestLock_SerialisesMutations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	unlock, err := f.svc.Lock(ctx, "b-1")
	require.NoError(t, err)

	_, err = f.svc.ConfirmBooking(ctx, "admin", "b-1")
	assert.Equal(t, domain.KindBusy, domain.KindOf(err))

	unlock()
	f.bookings.On("GetByID", ctx, "b-1").Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed}, nil)
	_, err = f.svc.ConfirmBooking(ctx, "admin", "b-1")
	assert.NoError(t, err)
}

func TestLock_OutlivesItsTTLWhileHeld(t *testing.T) {
	f := newFixture()
	f.svc.locker = NewLocalLocker()
	f.svc.lockTTL = 60 * time.Millisecond
	ctx := context.Background()

	unlock, err := f.svc.Lock(ctx, "b-1")
	require.NoError(t, err)

	// a slow capture or refund keeps the lock for several ttls
	time.Sleep(200 * time.Millisecond)
	_, err = f.svc.Lock(ctx, "b-1")
	assert.Equal(t, domain.KindBusy, domain.KindOf(err))

	unlock()
	unlock()
	again, err := f.svc.Lock(ctx, "b-1")
	require.NoError(t, err)
	again()
}

func TestTransition_PublishIsBounded(t *testing.T) {
	f := newFixture()
	f.svc.publishTimeout = 20 * time.Millisecond
	ctx := context.Background()

	b := domain.Booking{ID: "b-1", Status: domain.BookingStatusPending}
	f.bookings.On("Update", ctx, "b-1", []domain.BookingStatus{domain.BookingStatusPending}, mock.Anything).
		Return(&domain.Booking{ID: "b-1", Status: domain.BookingStatusRejected}, nil)
	f.producer.On("Publish", mock.Anything, mock.Anything, "b-1", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	started := time.Now()
	updated, err := f.svc.Transition(ctx, &b, domain.BookingStatusRejected, domain.BookingPatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRejected, updated.Status)
	assert.Less(t, time.Since(started), time.Second)
	f.producer.AssertNumberOfCalls(t, "Publish", 2)
}

func TestLocalLocker_Extend(t *testing.T) {
	l := NewLocalLocker()
	now := at(9, 0)
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := l.AcquireBookingLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(50 * time.Second)
	held, err := l.ExtendBookingLock(ctx, "b-1", token, time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	now = now.Add(50 * time.Second)
	_, ok, _ = l.AcquireBookingLock(ctx, "b-1", time.Minute)
	assert.False(t, ok)

	held, _ = l.ExtendBookingLock(ctx, "b-1", "someone-else", time.Minute)
	assert.False(t, held)

	now = now.Add(2 * time.Minute)
	held, _ = l.ExtendBookingLock(ctx, "b-1", token, time.Minute)
	assert.False(t, held)
}

func TestLocalLocker_Expires(t *testing.T) {
	l := NewLocalLocker()
	now := at(9, 0)
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := l.AcquireBookingLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.AcquireBookingLock(ctx, "b-1", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseBookingLock(ctx, "b-1", "someone-else"))
	_, ok, _ = l.AcquireBookingLock(ctx, "b-1", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.AcquireBookingLock(ctx, "b-1", time.Minute)
	assert.True(t, ok)

	assert.NoError(t, l.ReleaseBookingLock(ctx, "b-1", token))
}
