package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

type ServiceRepository interface {
	List(ctx context.Context, includeInactive bool) ([]domain.Service, error)
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	Create(ctx context.Context, svc *domain.Service) error
	Update(ctx context.Context, svc *domain.Service) error
	SetActive(ctx context.Context, id string, active bool) error
	Upsert(ctx context.Context, svc *domain.Service) error
}

type PricingRuleRepository interface {
	List(ctx context.Context, includeInactive bool) ([]domain.PricingRule, error)
	GetByID(ctx context.Context, id string) (*domain.PricingRule, error)
	Create(ctx context.Context, rule *domain.PricingRule) error
	Update(ctx context.Context, rule *domain.PricingRule) error
	SetActive(ctx context.Context, id string, active bool) error
	Upsert(ctx context.Context, rule *domain.PricingRule) error
}

type PGServiceRepository struct {
	db *pgxpool.Pool
}

func NewServiceRepository(db *pgxpool.Pool) ServiceRepository {
	return &PGServiceRepository{db: db}
}

const serviceColumns = `id, name, category, type, duration_minutes, price_cents, pricing_rule_id, engineer_id, producer_name, active, created_at, updated_at`

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &s.Type, &s.DurationMinutes, &s.PriceCents, &s.PricingRuleID,
		&s.EngineerID, &s.ProducerName, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGServiceRepository) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE active OR $1 ORDER BY category, name`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

func (r *PGServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	s, err := scanService(r.db.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *PGServiceRepository) Create(ctx context.Context, svc *domain.Service) error {
	err := r.db.QueryRow(ctx, `INSERT INTO services (id, name, category, type, duration_minutes, price_cents, pricing_rule_id, engineer_id, producer_name, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		svc.ID, svc.Name, svc.Category, svc.Type, svc.DurationMinutes, svc.PriceCents, svc.PricingRuleID,
		svc.EngineerID, svc.ProducerName, svc.Active).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *PGServiceRepository) Update(ctx context.Context, svc *domain.Service) error {
	err := r.db.QueryRow(ctx, `UPDATE services SET name=$2, category=$3, type=$4, duration_minutes=$5, price_cents=$6,
		pricing_rule_id=$7, engineer_id=$8, producer_name=$9, active=$10, updated_at=now()
		WHERE id=$1 RETURNING created_at, updated_at`,
		svc.ID, svc.Name, svc.Category, svc.Type, svc.DurationMinutes, svc.PriceCents, svc.PricingRuleID,
		svc.EngineerID, svc.ProducerName, svc.Active).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	return notFound(err)
}

func (r *PGServiceRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.Exec(ctx, `UPDATE services SET active=$2, updated_at=now() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGServiceRepository) Upsert(ctx context.Context, svc *domain.Service) error {
	return r.db.QueryRow(ctx, `INSERT INTO services (id, name, category, type, duration_minutes, price_cents, pricing_rule_id, engineer_id, producer_name, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, category=EXCLUDED.category, type=EXCLUDED.type,
			duration_minutes=EXCLUDED.duration_minutes, price_cents=EXCLUDED.price_cents,
			pricing_rule_id=EXCLUDED.pricing_rule_id, engineer_id=EXCLUDED.engineer_id,
			producer_name=EXCLUDED.producer_name, active=EXCLUDED.active, updated_at=now()
		RETURNING created_at, updated_at`,
		svc.ID, svc.Name, svc.Category, svc.Type, svc.DurationMinutes, svc.PriceCents, svc.PricingRuleID,
		svc.EngineerID, svc.ProducerName, svc.Active).Scan(&svc.CreatedAt, &svc.UpdatedAt)
}

type PGPricingRuleRepository struct {
	db *pgxpool.Pool
}

func NewPricingRuleRepository(db *pgxpool.Pool) PricingRuleRepository {
	return &PGPricingRuleRepository{db: db}
}

const ruleColumns = `id, name, tiers, price_per_song_cents, price_per_hour_cents, beat_licenses, active, created_at, updated_at`

func scanRule(row pgx.Row) (*domain.PricingRule, error) {
	var (
		rule           domain.PricingRule
		tiers, license []byte
	)
	if err := row.Scan(&rule.ID, &rule.Name, &tiers, &rule.PricePerSongCents, &rule.PricePerHourCents, &license,
		&rule.Active, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tiers, &rule.Tiers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(license, &rule.BeatLicenses); err != nil {
		return nil, err
	}
	return &rule, nil
}

func encodeRule(rule *domain.PricingRule) ([]byte, []byte, error) {
	tiers := rule.Tiers
	if tiers == nil {
		tiers = []domain.PriceTier{}
	}
	licenses := rule.BeatLicenses
	if licenses == nil {
		licenses = []domain.BeatLicense{}
	}
	rawTiers, err := json.Marshal(tiers)
	if err != nil {
		return nil, nil, err
	}
	rawLicenses, err := json.Marshal(licenses)
	if err != nil {
		return nil, nil, err
	}
	return rawTiers, rawLicenses, nil
}

func (r *PGPricingRuleRepository) List(ctx context.Context, includeInactive bool) ([]domain.PricingRule, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE active OR $1 ORDER BY name`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.PricingRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *PGPricingRuleRepository) GetByID(ctx context.Context, id string) (*domain.PricingRule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rule, nil
}

func (r *PGPricingRuleRepository) Create(ctx context.Context, rule *domain.PricingRule) error {
	tiers, licenses, err := encodeRule(rule)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO pricing_rules (id, name, tiers, price_per_song_cents, price_per_hour_cents, beat_licenses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		rule.ID, rule.Name, tiers, rule.PricePerSongCents, rule.PricePerHourCents, licenses, rule.Active).
		Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *PGPricingRuleRepository) Update(ctx context.Context, rule *domain.PricingRule) error {
	tiers, licenses, err := encodeRule(rule)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `UPDATE pricing_rules SET name=$2, tiers=$3, price_per_song_cents=$4, price_per_hour_cents=$5,
		beat_licenses=$6, active=$7, updated_at=now() WHERE id=$1 RETURNING created_at, updated_at`,
		rule.ID, rule.Name, tiers, rule.PricePerSongCents, rule.PricePerHourCents, licenses, rule.Active).
		Scan(&rule.CreatedAt, &rule.UpdatedAt)
	return notFound(err)
}

func (r *PGPricingRuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.Exec(ctx, `UPDATE pricing_rules SET active=$2, updated_at=now() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGPricingRuleRepository) Upsert(ctx context.Context, rule *domain.PricingRule) error {
	tiers, licenses, err := encodeRule(rule)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `INSERT INTO pricing_rules (id, name, tiers, price_per_song_cents, price_per_hour_cents, beat_licenses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, tiers=EXCLUDED.tiers,
			price_per_song_cents=EXCLUDED.price_per_song_cents, price_per_hour_cents=EXCLUDED.price_per_hour_cents,
			beat_licenses=EXCLUDED.beat_licenses, active=EXCLUDED.active, updated_at=now()
		RETURNING created_at, updated_at`,
		rule.ID, rule.Name, tiers, rule.PricePerSongCents, rule.PricePerHourCents, licenses, rule.Active).
		Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

var (
	_ ServiceRepository     = (*PGServiceRepository)(nil)
	_ PricingRuleRepository = (*PGPricingRuleRepository)(nil)
)
