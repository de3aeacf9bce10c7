package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/repository"
)

type CatalogUseCase interface {
	ListServices(ctx context.Context, callerID string, includeInactive bool) ([]domain.Service, error)
	GetService(ctx context.Context, id string) (*domain.Service, error)
	CreateService(ctx context.Context, callerID string, svc domain.Service) (*domain.Service, error)
	UpdateService(ctx context.Context, callerID string, svc domain.Service) (*domain.Service, error)
	DeleteService(ctx context.Context, callerID, id string) error

	ListPricingRules(ctx context.Context, callerID string, includeInactive bool) ([]domain.PricingRule, error)
	GetPricingRule(ctx context.Context, id string) (*domain.PricingRule, error)
	CreatePricingRule(ctx context.Context, callerID string, rule domain.PricingRule) (*domain.PricingRule, error)
	UpdatePricingRule(ctx context.Context, callerID string, rule domain.PricingRule) (*domain.PricingRule, error)
	DeletePricingRule(ctx context.Context, callerID, id string) error
}

// Cache holds the active service list.
type Cache interface {
	GetServices(ctx context.Context) ([]domain.Service, error)
	SetServices(ctx context.Context, services []domain.Service) error
	InvalidateServices(ctx context.Context) error
}

type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) error
}

type CatalogService struct {
	services repository.ServiceRepository
	rules    repository.PricingRuleRepository
	authz    Authorizer
	cache    Cache
	newID    func() string
	log      *zap.Logger
}

type CatalogServiceOption func(*CatalogService)

func WithCache(cache Cache) CatalogServiceOption {
	return func(s *CatalogService) {
		s.cache = cache
	}
}

func WithLogger(log *zap.Logger) CatalogServiceOption {
	return func(s *CatalogService) {
		s.log = log
	}
}

func NewCatalogService(services repository.ServiceRepository, rules repository.PricingRuleRepository, authz Authorizer, opts ...CatalogServiceOption) *CatalogService {
	s := &CatalogService{
		services: services,
		rules:    rules,
		authz:    authz,
		newID:    uuid.NewString,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListServices returns the active catalogue, read through the cache.
// Inactive entries are only listed for administrators.
func (s *CatalogService) ListServices(ctx context.Context, callerID string, includeInactive bool) ([]domain.Service, error) {
	if includeInactive {
		if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
			return nil, err
		}
		return s.services.List(ctx, true)
	}

	if s.cache != nil {
		if cached, err := s.cache.GetServices(ctx); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.log.Warn("catalogue cache read failed", zap.Error(err))
		}
	}

	services, err := s.services.List(ctx, false)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetServices(ctx, services); err != nil {
			s.log.Warn("catalogue cache write failed", zap.Error(err))
		}
	}
	return services, nil
}

func (s *CatalogService) GetService(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "service "+id)
	}
	return svc, nil
}

func (s *CatalogService) CreateService(ctx context.Context, callerID string, svc domain.Service) (*domain.Service, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if svc.ID == "" {
		svc.ID = s.newID()
	}
	if err := s.validateService(ctx, &svc); err != nil {
		return nil, err
	}
	if err := s.services.Create(ctx, &svc); err != nil {
		return nil, mapRepoErr(err, "service "+svc.ID)
	}
	s.invalidate(ctx)
	return &svc, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, callerID string, svc domain.Service) (*domain.Service, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if svc.ID == "" {
		return nil, domain.InputError("id is required")
	}
	if err := s.validateService(ctx, &svc); err != nil {
		return nil, err
	}
	if err := s.services.Update(ctx, &svc); err != nil {
		return nil, mapRepoErr(err, "service "+svc.ID)
	}
	s.invalidate(ctx)
	return &svc, nil
}

// DeleteService deactivates the service. Bookings keep referring to it.
func (s *CatalogService) DeleteService(ctx context.Context, callerID, id string) error {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return err
	}
	if err := s.services.SetActive(ctx, id, false); err != nil {
		return mapRepoErr(err, "service "+id)
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) ListPricingRules(ctx context.Context, callerID string, includeInactive bool) ([]domain.PricingRule, error) {
	if includeInactive {
		if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
			return nil, err
		}
	}
	return s.rules.List(ctx, includeInactive)
}

func (s *CatalogService) GetPricingRule(ctx context.Context, id string) (*domain.PricingRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "pricing rule "+id)
	}
	return rule, nil
}

func (s *CatalogService) CreatePricingRule(ctx context.Context, callerID string, rule domain.PricingRule) (*domain.PricingRule, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = s.newID()
	}
	if err := validateRule(&rule); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, &rule); err != nil {
		return nil, mapRepoErr(err, "pricing rule "+rule.ID)
	}
	return &rule, nil
}

func (s *CatalogService) UpdatePricingRule(ctx context.Context, callerID string, rule domain.PricingRule) (*domain.PricingRule, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		return nil, domain.InputError("id is required")
	}
	if err := validateRule(&rule); err != nil {
		return nil, err
	}
	if err := s.rules.Update(ctx, &rule); err != nil {
		return nil, mapRepoErr(err, "pricing rule "+rule.ID)
	}
	return &rule, nil
}

func (s *CatalogService) DeletePricingRule(ctx context.Context, callerID, id string) error {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return err
	}
	if err := s.rules.SetActive(ctx, id, false); err != nil {
		return mapRepoErr(err, "pricing rule "+id)
	}
	return nil
}

func (s *CatalogService) validateService(ctx context.Context, svc *domain.Service) error {
	if svc.Name == "" {
		return domain.InputError("name is required")
	}
	if !svc.Type.IsValid() {
		return domain.InputError("unsupported service type %q", svc.Type)
	}
	if svc.PriceCents < 0 {
		return domain.InputError("price_cents must not be negative")
	}
	if svc.DurationMinutes < 0 || (svc.Type.HasFixedDuration() && svc.DurationMinutes == 0) {
		return domain.InputError("%s services need a positive duration_minutes", svc.Type)
	}
	if svc.Type == domain.ServiceTypeConsultation {
		return nil
	}
	if svc.PricingRuleID == "" {
		return domain.InputError("%s services need a pricing_rule_id", svc.Type)
	}
	if _, err := s.rules.GetByID(ctx, svc.PricingRuleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.InputError("pricing rule %s does not exist", svc.PricingRuleID)
		}
		return err
	}
	return nil
}

func validateRule(rule *domain.PricingRule) error {
	if rule.Name == "" {
		return domain.InputError("name is required")
	}
	if rule.PricePerSongCents < 0 || rule.PricePerHourCents < 0 {
		return domain.InputError("prices must not be negative")
	}
	for _, t := range rule.Tiers {
		if t.Hours <= 0 || t.PriceCents < 0 {
			return domain.InputError("tier hours must be positive and prices not negative")
		}
	}
	tiers := make([]domain.PriceTier, len(rule.Tiers))
	copy(tiers, rule.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Hours < tiers[j].Hours })
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Hours == tiers[i-1].Hours {
			return domain.InputError("tier for %g hours is defined twice", tiers[i].Hours)
		}
		// more hours must never cost less
		if tiers[i].PriceCents < tiers[i-1].PriceCents {
			return domain.InputError("tier for %g hours is cheaper than the tier for %g hours", tiers[i].Hours, tiers[i-1].Hours)
		}
	}
	seen := make(map[string]bool, len(rule.BeatLicenses))
	for _, l := range rule.BeatLicenses {
		if l.ID == "" || seen[l.ID] {
			return domain.InputError("beat license ids must be present and unique")
		}
		if l.PriceCents < 0 {
			return domain.InputError("beat license %s has a negative price", l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.cache.InvalidateServices(ctx); err != nil {
		s.log.Warn("catalogue cache invalidation failed", zap.Error(err))
	}
}

func mapRepoErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.NotFoundError("%s not found", what)
	case errors.Is(err, repository.ErrDuplicate):
		return domain.ConflictError(what+" already exists", "")
	}
	return err
}

var _ CatalogUseCase = (*CatalogService)(nil)
