package booking

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/repository"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreateNoOverlap(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Update(ctx context.Context, id string, expected []domain.BookingStatus, patch domain.BookingPatch) (*domain.Booking, error) {
	args := m.Called(ctx, id, expected, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindOverlaps(ctx context.Context) ([]domain.Overlap, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Overlap), args.Error(1)
}

type MockServiceRepository struct {
	mock.Mock
}

func (m *MockServiceRepository) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	args := m.Called(ctx, includeInactive)
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockServiceRepository) Create(ctx context.Context, svc *domain.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *MockServiceRepository) Update(ctx context.Context, svc *domain.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *MockServiceRepository) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockServiceRepository) Upsert(ctx context.Context, svc *domain.Service) error {
	return m.Called(ctx, svc).Error(0)
}

type MockPricingRuleRepository struct {
	mock.Mock
}

func (m *MockPricingRuleRepository) List(ctx context.Context, includeInactive bool) ([]domain.PricingRule, error) {
	args := m.Called(ctx, includeInactive)
	return args.Get(0).([]domain.PricingRule), args.Error(1)
}

func (m *MockPricingRuleRepository) GetByID(ctx context.Context, id string) (*domain.PricingRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricingRule), args.Error(1)
}

func (m *MockPricingRuleRepository) Create(ctx context.Context, rule *domain.PricingRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockPricingRuleRepository) Update(ctx context.Context, rule *domain.PricingRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockPricingRuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockPricingRuleRepository) Upsert(ctx context.Context, rule *domain.PricingRule) error {
	return m.Called(ctx, rule).Error(0)
}

// MockAuthorizer treats callers listed in admins as administrators.
type MockAuthorizer struct {
	admins map[string]bool
}

func newAuthorizer(admins ...string) *MockAuthorizer {
	a := &MockAuthorizer{admins: make(map[string]bool)}
	for _, id := range admins {
		a.admins[id] = true
	}
	return a
}

func (a *MockAuthorizer) IsAdmin(_ context.Context, callerID string) (bool, error) {
	if callerID == "" {
		return false, domain.AuthError("authentication required")
	}
	return a.admins[callerID], nil
}

func (a *MockAuthorizer) RequireAdmin(ctx context.Context, callerID string) error {
	ok, err := a.IsAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.PermissionError("administrator privilege required")
	}
	return nil
}

func (a *MockAuthorizer) RequireOwnerOrAdmin(ctx context.Context, callerID, ownerID string) error {
	if callerID != "" && callerID == ownerID {
		return nil
	}
	return a.RequireAdmin(ctx, callerID)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
