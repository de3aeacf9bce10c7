package catalog

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

// Seed is the YAML catalogue loaded at startup.
type Seed struct {
	PricingRules []domain.PricingRule `yaml:"pricing_rules"`
	Services     []domain.Service     `yaml:"services"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalogue seed: %w", err)
	}
	for i := range seed.PricingRules {
		if seed.PricingRules[i].ID == "" {
			return nil, fmt.Errorf("pricing rule #%d has no id", i)
		}
		if err := validateRule(&seed.PricingRules[i]); err != nil {
			return nil, fmt.Errorf("pricing rule %s: %w", seed.PricingRules[i].ID, err)
		}
	}
	for i, svc := range seed.Services {
		if svc.ID == "" {
			return nil, fmt.Errorf("service #%d has no id", i)
		}
	}
	return &seed, nil
}

// ApplySeed upserts the seed, rules first so services can reference them.
func (s *CatalogService) ApplySeed(ctx context.Context, seed *Seed) error {
	for i := range seed.PricingRules {
		if err := s.rules.Upsert(ctx, &seed.PricingRules[i]); err != nil {
			return fmt.Errorf("seed pricing rule %s: %w", seed.PricingRules[i].ID, err)
		}
	}
	for i := range seed.Services {
		svc := &seed.Services[i]
		if err := s.validateService(ctx, svc); err != nil {
			return fmt.Errorf("seed service %s: %w", svc.ID, err)
		}
		if err := s.services.Upsert(ctx, svc); err != nil {
			return fmt.Errorf("seed service %s: %w", svc.ID, err)
		}
	}
	s.invalidate(ctx)
	s.log.Info("catalogue seeded", zap.Int("pricing_rules", len(seed.PricingRules)), zap.Int("services", len(seed.Services)))
	return nil
}
