package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/repository"
)

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

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetServices(ctx context.Context) ([]domain.Service, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockCache) SetServices(ctx context.Context, services []domain.Service) error {
	return m.Called(ctx, services).Error(0)
}

func (m *MockCache) InvalidateServices(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type adminOnly struct{}

func (adminOnly) RequireAdmin(_ context.Context, callerID string) error {
	if callerID == "admin" {
		return nil
	}
	return domain.PermissionError("administrator privilege required")
}

func newCatalog() (*CatalogService, *MockServiceRepository, *MockPricingRuleRepository, *MockCache) {
	services := &MockServiceRepository{}
	rules := &MockPricingRuleRepository{}
	cache := &MockCache{}
	svc := NewCatalogService(services, rules, adminOnly{}, WithCache(cache))
	svc.newID = func() string { return "generated" }
	return svc, services, rules, cache
}

var catalogue = []domain.Service{
	{ID: "consult", Name: "Consultation", Type: domain.ServiceTypeConsultation, DurationMinutes: 30, PriceCents: 0, Active: true},
	{ID: "mix", Name: "Mixing", Type: domain.ServiceTypePerSong, DurationMinutes: 120, PricingRuleID: "mix-rule", Active: true},
}

func TestListServices_CacheMiss(t *testing.T) {
	svc, services, _, cache := newCatalog()
	ctx := context.Background()

	cache.On("GetServices", ctx).Return(([]domain.Service)(nil), nil).Once()
	services.On("List", ctx, false).Return(catalogue, nil).Once()
	cache.On("SetServices", ctx, catalogue).Return(nil).Once()

	result, err := svc.ListServices(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, catalogue, result)
	services.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestListServices_CacheHit(t *testing.T) {
	svc, services, _, cache := newCatalog()
	ctx := context.Background()

	cache.On("GetServices", ctx).Return(catalogue, nil).Once()

	result, err := svc.ListServices(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, catalogue, result)
	services.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListServices_CacheErrorFallsBackToRepository(t *testing.T) {
	svc, services, _, cache := newCatalog()
	ctx := context.Background()

	cache.On("GetServices", ctx).Return(([]domain.Service)(nil), errors.New("redis down")).Once()
	services.On("List", ctx, false).Return(catalogue, nil).Once()
	cache.On("SetServices", ctx, catalogue).Return(errors.New("redis down")).Once()

	result, err := svc.ListServices(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestListServices_InactiveNeedsAdmin(t *testing.T) {
	svc, services, _, cache := newCatalog()
	ctx := context.Background()

	_, err := svc.ListServices(ctx, "u-1", true)
	assert.Equal(t, domain.KindPermission, domain.KindOf(err))

	services.On("List", ctx, true).Return(catalogue, nil).Once()
	result, err := svc.ListServices(ctx, "admin", true)
	require.NoError(t, err)
	assert.Len(t, result, 2)
	cache.AssertNotCalled(t, "GetServices", mock.Anything)
}

func TestGetService_NotFound(t *testing.T) {
	svc, services, _, _ := newCatalog()
	services.On("GetByID", mock.Anything, "nope").Return(nil, repository.ErrNotFound)

	_, err := svc.GetService(context.Background(), "nope")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCreateService(t *testing.T) {
	svc, services, rules, cache := newCatalog()
	ctx := context.Background()

	rules.On("GetByID", ctx, "mix-rule").Return(&domain.PricingRule{ID: "mix-rule"}, nil)
	services.On("Create", ctx, mock.MatchedBy(func(s *domain.Service) bool { return s.ID == "generated" })).Return(nil).Once()
	cache.On("InvalidateServices", mock.Anything).Return(nil).Once()

	created, err := svc.CreateService(ctx, "admin", domain.Service{
		Name: "Mixing", Type: domain.ServiceTypePerSong, DurationMinutes: 120, PricingRuleID: "mix-rule", Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", created.ID)
	services.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestCreateService_Validation(t *testing.T) {
	tests := []struct {
		name string
		svc  domain.Service
	}{
		{name: "no name", svc: domain.Service{Type: domain.ServiceTypeConsultation, DurationMinutes: 30}},
		{name: "bad type", svc: domain.Service{Name: "x", Type: "karaoke"}},
		{name: "negative price", svc: domain.Service{Name: "x", Type: domain.ServiceTypeConsultation, DurationMinutes: 30, PriceCents: -1}},
		{name: "fixed without duration", svc: domain.Service{Name: "x", Type: domain.ServiceTypeConsultation}},
		{name: "tiered without rule", svc: domain.Service{Name: "x", Type: domain.ServiceTypeHourlyTiered}},
		{name: "unknown rule", svc: domain.Service{Name: "x", Type: domain.ServiceTypeProduction, PricingRuleID: "ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, services, rules, _ := newCatalog()
			rules.On("GetByID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)

			_, err := svc.CreateService(context.Background(), "admin", tt.svc)
			assert.Equal(t, domain.KindInput, domain.KindOf(err))
			services.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateService_RequiresAdmin(t *testing.T) {
	svc, services, _, _ := newCatalog()

	_, err := svc.CreateService(context.Background(), "u-1", domain.Service{Name: "x"})
	assert.Equal(t, domain.KindPermission, domain.KindOf(err))
	services.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateService_Duplicate(t *testing.T) {
	svc, services, _, _ := newCatalog()
	services.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicate)

	_, err := svc.CreateService(context.Background(), "admin", domain.Service{
		ID: "consult", Name: "Consultation", Type: domain.ServiceTypeConsultation, DurationMinutes: 30,
	})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestDeleteService_Deactivates(t *testing.T) {
	svc, services, _, cache := newCatalog()
	ctx := context.Background()

	services.On("SetActive", ctx, "mix", false).Return(nil).Once()
	cache.On("InvalidateServices", mock.Anything).Return(nil).Once()

	require.NoError(t, svc.DeleteService(ctx, "admin", "mix"))
	services.AssertExpectations(t)

	services.On("SetActive", ctx, "ghost", false).Return(repository.ErrNotFound).Once()
	err := svc.DeleteService(ctx, "admin", "ghost")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCreatePricingRule_Validation(t *testing.T) {
	svc, _, rules, _ := newCatalog()
	ctx := context.Background()

	_, err := svc.CreatePricingRule(ctx, "admin", domain.PricingRule{
		Name:         "Beats",
		BeatLicenses: []domain.BeatLicense{{ID: "basic"}, {ID: "basic"}},
	})
	assert.Equal(t, domain.KindInput, domain.KindOf(err))

	_, err = svc.CreatePricingRule(ctx, "admin", domain.PricingRule{
		Name:  "Recording",
		Tiers: []domain.PriceTier{{Hours: 0, PriceCents: 100}},
	})
	assert.Equal(t, domain.KindInput, domain.KindOf(err))

	rules.On("Create", ctx, mock.Anything).Return(nil).Once()
	rule, err := svc.CreatePricingRule(ctx, "admin", domain.PricingRule{
		Name:  "Recording",
		Tiers: []domain.PriceTier{{Hours: 1, PriceCents: 5000}, {Hours: 2, PriceCents: 9000}},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", rule.ID)
}

func TestCreatePricingRule_TiersMustNotGetCheaper(t *testing.T) {
	svc, _, rules, _ := newCatalog()
	ctx := context.Background()

	tests := []struct {
		name  string
		tiers []domain.PriceTier
	}{
		{"cheaper longer tier", []domain.PriceTier{{Hours: 1, PriceCents: 10000}, {Hours: 2, PriceCents: 5000}}},
		{"unsorted and cheaper", []domain.PriceTier{{Hours: 4, PriceCents: 15000}, {Hours: 1, PriceCents: 6000}, {Hours: 2, PriceCents: 16000}}},
		{"duplicate hours", []domain.PriceTier{{Hours: 2, PriceCents: 9000}, {Hours: 2, PriceCents: 9000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePricingRule(ctx, "admin", domain.PricingRule{Name: "Recording", Tiers: tt.tiers})
			assert.Equal(t, domain.KindInput, domain.KindOf(err))
		})
	}
	rules.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	rules.On("Create", ctx, mock.Anything).Return(nil).Once()
	_, err := svc.CreatePricingRule(ctx, "admin", domain.PricingRule{
		Name:  "Recording",
		Tiers: []domain.PriceTier{{Hours: 4, PriceCents: 20000}, {Hours: 1, PriceCents: 6000}, {Hours: 2, PriceCents: 6000}},
	})
	require.NoError(t, err)
}

func TestListPricingRules(t *testing.T) {
	svc, _, rules, _ := newCatalog()
	ctx := context.Background()

	rules.On("List", ctx, false).Return([]domain.PricingRule{{ID: "r1"}}, nil).Once()
	result, err := svc.ListPricingRules(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, result, 1)

	_, err = svc.ListPricingRules(ctx, "u-1", true)
	assert.Equal(t, domain.KindPermission, domain.KindOf(err))
}
