package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

const seedYAML = `
pricing_rules:
  - id: recording
    name: Recording
    active: true
    tiers:
      - hours: 1
        price_cents: 5000
      - hours: 3
        price_cents: 12000
  - id: beats
    name: Beat production
    active: true
    price_per_hour_cents: 4000
    beat_licenses:
      - id: basic
        name: Basic lease
        price_cents: 2500
services:
  - id: consult
    name: Free consultation
    category: consultation
    type: consultation
    duration_minutes: 30
    price_cents: 0
    active: true
  - id: record
    name: Recording session
    category: recording
    type: hourly_tiered
    pricing_rule_id: recording
    active: true
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	require.Len(t, seed.PricingRules, 2)
	assert.Equal(t, []domain.PriceTier{{Hours: 1, PriceCents: 5000}, {Hours: 3, PriceCents: 12000}}, seed.PricingRules[0].Tiers)
	assert.Equal(t, int64(2500), seed.PricingRules[1].BeatLicenses[0].PriceCents)

	require.Len(t, seed.Services, 2)
	assert.Equal(t, domain.ServiceTypeHourlyTiered, seed.Services[1].Type)
	assert.Equal(t, "recording", seed.Services[1].PricingRuleID)
	assert.True(t, seed.Services[0].Active)
}

func TestParseSeed_Errors(t *testing.T) {
	_, err := ParseSeed([]byte("services: [oops"))
	assert.Error(t, err)

	_, err = ParseSeed([]byte("services:\n  - name: nameless\n"))
	assert.ErrorContains(t, err, "no id")

	_, err = ParseSeed([]byte("pricing_rules:\n  - id: r\n    name: r\n    tiers:\n      - hours: -1\n"))
	assert.ErrorContains(t, err, "pricing rule r")

	_, err = ParseSeed([]byte("pricing_rules:\n  - id: r\n    name: r\n    tiers:\n      - hours: 1\n        price_cents: 10000\n      - hours: 2\n        price_cents: 5000\n"))
	assert.ErrorContains(t, err, "cheaper")
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Services, 2)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplySeed_RulesBeforeServices(t *testing.T) {
	svc, services, rules, cache := newCatalog()
	ctx := context.Background()
	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	var order []string
	rules.On("Upsert", ctx, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "rule:"+args.Get(1).(*domain.PricingRule).ID)
	}).Return(nil)
	rules.On("GetByID", ctx, "recording").Return(&seed.PricingRules[0], nil)
	services.On("Upsert", ctx, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "service:"+args.Get(1).(*domain.Service).ID)
	}).Return(nil)
	cache.On("InvalidateServices", mock.Anything).Return(nil).Once()

	require.NoError(t, svc.ApplySeed(ctx, seed))
	assert.Equal(t, []string{"rule:recording", "rule:beats", "service:consult", "service:record"}, order)
	cache.AssertExpectations(t)
}
