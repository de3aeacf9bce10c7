package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The exclusion constraint is the last line of defence against double
// booking: two active rows can never share any part of their interval.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		is_admin   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pricing_rules (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		tiers                JSONB NOT NULL DEFAULT '[]',
		price_per_song_cents BIGINT NOT NULL DEFAULT 0,
		price_per_hour_cents BIGINT NOT NULL DEFAULT 0,
		beat_licenses        JSONB NOT NULL DEFAULT '[]',
		active               BOOLEAN NOT NULL DEFAULT TRUE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		category         TEXT NOT NULL DEFAULT '',
		type             TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		price_cents      BIGINT NOT NULL DEFAULT 0,
		pricing_rule_id  TEXT NOT NULL DEFAULT '',
		engineer_id      TEXT NOT NULL DEFAULT '',
		producer_name    TEXT NOT NULL DEFAULT '',
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                        TEXT PRIMARY KEY,
		start_at                  TIMESTAMPTZ NOT NULL,
		end_at                    TIMESTAMPTZ NOT NULL,
		user_id                   TEXT NOT NULL,
		engineer_id               TEXT NOT NULL DEFAULT '',
		producer_name             TEXT NOT NULL DEFAULT '',
		service_id                TEXT NOT NULL,
		service_type              TEXT NOT NULL,
		service_name              TEXT NOT NULL DEFAULT '',
		total_price               BIGINT NOT NULL CHECK (total_price >= 0),
		song_count                INTEGER NOT NULL DEFAULT 0,
		beat_license              TEXT NOT NULL DEFAULT '',
		payment_intent_id         TEXT NOT NULL DEFAULT '',
		deposit_amount            BIGINT NOT NULL DEFAULT 0,
		deposit_captured          BOOLEAN NOT NULL DEFAULT FALSE,
		deposit_captured_at       TIMESTAMPTZ,
		final_payment_intent_id   TEXT NOT NULL DEFAULT '',
		final_amount              BIGINT NOT NULL DEFAULT 0,
		final_payment_captured    BOOLEAN NOT NULL DEFAULT FALSE,
		final_payment_captured_at TIMESTAMPTZ,
		refund_id                 TEXT NOT NULL DEFAULT '',
		refund_status             TEXT NOT NULL DEFAULT '',
		status                    TEXT NOT NULL,
		notes                     TEXT NOT NULL DEFAULT '',
		session_details           JSONB,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (end_at > start_at),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (tstzrange(start_at, end_at, '[)') WITH &&)
			WHERE (status NOT IN ('rejected', 'cancelled'))
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id)`,
	`CREATE INDEX IF NOT EXISTS bookings_status_idx ON bookings (status)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
