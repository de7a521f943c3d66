package repository

import (
	"context"
	"fmt"

	"service-marketplace/pkg/database"
)

// Schema is the DDL owned by this service. users, sessions and reviews belong to the
// auth and review services and are created here only when absent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	role       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users (id),
	token      TEXT NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS service_offerings (
	id                   UUID PRIMARY KEY,
	provider_id          UUID NOT NULL,
	title                TEXT NOT NULL,
	duration_minutes     INT NOT NULL CHECK (duration_minutes > 0),
	is_active            BOOLEAN NOT NULL DEFAULT true,
	price_type           TEXT NOT NULL,
	price_amount         NUMERIC(12, 2) NOT NULL,
	price_currency       TEXT NOT NULL,
	price_minimum_charge NUMERIC(12, 2),
	materials            JSONB NOT NULL DEFAULT '[]',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bookings (
	id                  UUID PRIMARY KEY,
	customer_id         UUID NOT NULL,
	provider_id         UUID NOT NULL,
	service_id          UUID NOT NULL,
	scheduled_date      DATE NOT NULL,
	start_minute        INT NOT NULL CHECK (start_minute >= 0 AND start_minute < 1440),
	duration_minutes    INT NOT NULL CHECK (duration_minutes > 0),
	status              TEXT NOT NULL,
	service_price       NUMERIC(12, 2) NOT NULL,
	materials_cost      NUMERIC(12, 2) NOT NULL,
	taxes               NUMERIC(12, 2) NOT NULL,
	fees                NUMERIC(12, 2) NOT NULL,
	total               NUMERIC(12, 2) NOT NULL,
	currency            TEXT NOT NULL,
	payment_status      TEXT NOT NULL DEFAULT 'pending',
	address             JSONB NOT NULL,
	notes               TEXT,
	customer_notes      TEXT,
	provider_notes      TEXT,
	completed_at        TIMESTAMPTZ,
	cancelled_at        TIMESTAMPTZ,
	cancellation_reason TEXT,
	dispute_reason      TEXT,
	disputed_at         TIMESTAMPTZ,
	dispute_resolution  TEXT,
	dispute_resolved_by UUID,
	dispute_resolved_at TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

ALTER TABLE bookings ADD COLUMN IF NOT EXISTS provider_notes TEXT;

CREATE INDEX IF NOT EXISTS idx_bookings_provider_date ON bookings (provider_id, scheduled_date, status);
CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings (customer_id, scheduled_date);

CREATE TABLE IF NOT EXISTS booking_status_changes (
	seq         BIGSERIAL,
	id          UUID PRIMARY KEY,
	booking_id  UUID NOT NULL REFERENCES bookings (id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor_id    UUID NOT NULL,
	actor_role  TEXT NOT NULL,
	reason      TEXT,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_booking_status_changes_booking ON booking_status_changes (booking_id, created_at, seq);

CREATE TABLE IF NOT EXISTS notifications (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL,
	type       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	read       BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS reviews (
	id          UUID PRIMARY KEY,
	booking_id  UUID NOT NULL,
	provider_id UUID NOT NULL,
	customer_id UUID NOT NULL,
	rating      INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment     TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS provider_stats (
	provider_id    UUID PRIMARY KEY,
	average_rating DOUBLE PRECISION NOT NULL,
	review_count   BIGINT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
`

func InitSchema(ctx context.Context, db database.PgxIface) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
