package crdb

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS seat_states (
	showtime_id TEXT NOT NULL,
	seat_id     TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('PENDING', 'TAKEN')),
	locked_by   TEXT,
	lock_expiry TIMESTAMPTZ,
	PRIMARY KEY (showtime_id, seat_id)
);

CREATE TABLE IF NOT EXISTS bookings (
	id               UUID PRIMARY KEY,
	user_id          TEXT NOT NULL,
	showtime_id      TEXT NOT NULL,
	total_price      NUMERIC NOT NULL,
	payment_provider TEXT NOT NULL,
	payment_ref      TEXT NOT NULL,
	phone            TEXT NOT NULL,
	status           TEXT NOT NULL,
	idempotency_key  TEXT NOT NULL UNIQUE,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS booking_seats (
	booking_id UUID NOT NULL,
	seat_id    TEXT NOT NULL,
	PRIMARY KEY (booking_id, seat_id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   UUID NOT NULL,
	event_type     TEXT NOT NULL,
	payload_json   JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at   TIMESTAMPTZ,
	status         TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED')),
	dedupe_key     TEXT NOT NULL
);
`

// EnsureSchema creates the tables when missing. Used by cmd/seed and the
// integration tests; production deployments run proper migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
