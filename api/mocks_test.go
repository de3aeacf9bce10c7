package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/service/booking"
	"github.com/Domenick1991/studiobooking/internal/service/payment"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, callerID string, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, callerID, input)
	return bookingResult(args)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	args := m.Called(ctx, callerID, id)
	return bookingResult(args)
}

func (m *MockBookingUseCase) ListBookings(ctx context.Context, callerID string, query booking.ListQuery) ([]domain.Booking, error) {
	args := m.Called(ctx, callerID, query)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Calendar(ctx context.Context, from, to time.Time) ([]booking.BusyInterval, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]booking.BusyInterval), args.Error(1)
}

func (m *MockBookingUseCase) AttachSessionDetails(ctx context.Context, callerID, id string, details domain.SessionDetails) (*domain.Booking, error) {
	args := m.Called(ctx, callerID, id, details)
	return bookingResult(args)
}

func (m *MockBookingUseCase) ConfirmBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, callerID, id))
}

func (m *MockBookingUseCase) RejectBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, callerID, id))
}

func (m *MockBookingUseCase) CompleteBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, callerID, id))
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, callerID, id))
}

func (m *MockBookingUseCase) ScanOverlaps(ctx context.Context, callerID string) ([]domain.Overlap, error) {
	args := m.Called(ctx, callerID)
	return args.Get(0).([]domain.Overlap), args.Error(1)
}

func bookingResult(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) CreateDepositIntent(ctx context.Context, callerID, bookingID string, amount int64, currency string) (*payment.IntentResult, error) {
	return intentResult(m.Called(ctx, callerID, bookingID, amount, currency))
}

func (m *MockPaymentUseCase) CaptureDeposit(ctx context.Context, callerID, bookingID string) (*payment.Outcome, error) {
	return outcomeResult(m.Called(ctx, callerID, bookingID))
}

func (m *MockPaymentUseCase) ChargeFinalPayment(ctx context.Context, callerID, bookingID string, amount int64, currency string) (*payment.IntentResult, error) {
	return intentResult(m.Called(ctx, callerID, bookingID, amount, currency))
}

func (m *MockPaymentUseCase) CaptureFinalPayment(ctx context.Context, callerID, bookingID string) (*payment.Outcome, error) {
	return outcomeResult(m.Called(ctx, callerID, bookingID))
}

func (m *MockPaymentUseCase) RefundDeposit(ctx context.Context, callerID, bookingID, reason string) (*payment.Outcome, error) {
	return outcomeResult(m.Called(ctx, callerID, bookingID, reason))
}

func intentResult(args mock.Arguments) (*payment.IntentResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.IntentResult), args.Error(1)
}

func outcomeResult(args mock.Arguments) (*payment.Outcome, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Outcome), args.Error(1)
}

type MockCatalogUseCase struct {
	mock.Mock
}

func (m *MockCatalogUseCase) ListServices(ctx context.Context, callerID string, includeInactive bool) ([]domain.Service, error) {
	args := m.Called(ctx, callerID, includeInactive)
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) GetService(ctx context.Context, id string) (*domain.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) CreateService(ctx context.Context, callerID string, svc domain.Service) (*domain.Service, error) {
	args := m.Called(ctx, callerID, svc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) UpdateService(ctx context.Context, callerID string, svc domain.Service) (*domain.Service, error) {
	args := m.Called(ctx, callerID, svc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) DeleteService(ctx context.Context, callerID, id string) error {
	return m.Called(ctx, callerID, id).Error(0)
}

func (m *MockCatalogUseCase) ListPricingRules(ctx context.Context, callerID string, includeInactive bool) ([]domain.PricingRule, error) {
	args := m.Called(ctx, callerID, includeInactive)
	return args.Get(0).([]domain.PricingRule), args.Error(1)
}

func (m *MockCatalogUseCase) GetPricingRule(ctx context.Context, id string) (*domain.PricingRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricingRule), args.Error(1)
}

func (m *MockCatalogUseCase) CreatePricingRule(ctx context.Context, callerID string, rule domain.PricingRule) (*domain.PricingRule, error) {
	args := m.Called(ctx, callerID, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricingRule), args.Error(1)
}

func (m *MockCatalogUseCase) UpdatePricingRule(ctx context.Context, callerID string, rule domain.PricingRule) (*domain.PricingRule, error) {
	args := m.Called(ctx, callerID, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricingRule), args.Error(1)
}

func (m *MockCatalogUseCase) DeletePricingRule(ctx context.Context, callerID, id string) error {
	return m.Called(ctx, callerID, id).Error(0)
}

type staticAdmins map[string]bool

func (s staticAdmins) IsAdmin(_ context.Context, callerID string) (bool, error) {
	return s[callerID], nil
}

// asCaller stands in for the authenticator in handler tests.
func asCaller(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != "" {
			c.Set(callerKey, id)
		}
		c.Next()
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}
