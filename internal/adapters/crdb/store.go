// Package crdb persists seat state, bookings and the event outbox in
// CockroachDB. Per-showtime atomicity of the
// read-check-write sequence comes from SERIALIZABLE transactions: conflicting
// interleavings abort with a retryable error instead of both committing.
package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gastcinema/seat-reservations/internal/booking"
	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/ledger"
	"github.com/gastcinema/seat-reservations/internal/observability"
)

const (
	serializationFailureCode = "40001"
	uniqueViolationCode      = "23505"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ledgerTx struct {
	ctx   context.Context
	tx    pgx.Tx
	led   *ledger.Ledger
	store *Store
}

func (t *ledgerTx) Ledger() *ledger.Ledger { return t.led }

func (t *ledgerTx) CreateBooking(b domain.Booking) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO bookings (id, user_id, showtime_id, total_price, payment_provider, payment_ref, phone, status, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.UserID, b.ShowtimeID, b.TotalPrice, b.PaymentProvider, b.PaymentRef, b.Phone, b.Status, b.IdempotencyKey, b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return booking.ErrDuplicateKey
		}
		return err
	}

	g, gctx := errgroup.WithContext(t.ctx)
	for _, seat := range b.Seats {
		seat := seat
		g.Go(func() error {
			_, err := t.tx.Exec(gctx, `
				INSERT INTO booking_seats (booking_id, seat_id) VALUES ($1, $2)
			`, b.ID, seat)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return t.store.insertOutbox(t.ctx, t.tx, outboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     "booking.created",
		Payload:       bookingEventPayload(b),
		DedupeKey:     b.IdempotencyKey,
	})
}

// WithLedgerTx runs fn against the showtime's seat states inside one
// SERIALIZABLE transaction and writes back exactly the dirty seats.
func (s *Store) WithLedgerTx(ctx context.Context, showtimeID string, fn func(tx booking.LedgerTx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return err
	}

	states, err := loadSeatStates(ctx, tx, showtimeID)
	if err != nil {
		return err
	}
	lt := &ledgerTx{ctx: ctx, tx: tx, led: ledger.FromStates(states), store: s}

	if err := fn(lt); err != nil {
		return mapPgError(err)
	}

	for _, seatID := range lt.led.Dirty() {
		if st, ok := lt.led.State(seatID); ok {
			_, err = tx.Exec(ctx, `
				UPSERT INTO seat_states (showtime_id, seat_id, status, locked_by, lock_expiry)
				VALUES ($1, $2, $3, $4, $5)
			`, showtimeID, seatID, st.Status, nullable(st.LockedBy), nullableTime(st.LockExpiry))
		} else {
			_, err = tx.Exec(ctx, `
				DELETE FROM seat_states WHERE showtime_id = $1 AND seat_id = $2
			`, showtimeID, seatID)
		}
		if err != nil {
			return mapPgError(err)
		}
	}

	return mapPgError(tx.Commit(ctx))
}

func loadSeatStates(ctx context.Context, tx pgx.Tx, showtimeID string) (map[string]domain.SeatState, error) {
	rows, err := tx.Query(ctx, `
		SELECT seat_id, status, COALESCE(locked_by, ''), lock_expiry
		FROM seat_states WHERE showtime_id = $1
	`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]domain.SeatState)
	for rows.Next() {
		var (
			seatID, status, lockedBy string
			expiry                   *time.Time
		)
		if err := rows.Scan(&seatID, &status, &lockedBy, &expiry); err != nil {
			return nil, err
		}
		st := domain.SeatState{Status: domain.SeatStatus(status), LockedBy: lockedBy}
		if expiry != nil {
			st.LockExpiry = expiry.UTC()
		}
		states[seatID] = st
	}
	return states, rows.Err()
}

func (s *Store) GetBookingByKey(ctx context.Context, idempotencyKey string) (*domain.Booking, error) {
	var b domain.Booking
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, showtime_id, total_price, payment_provider, payment_ref, phone, status, idempotency_key, created_at
		FROM bookings WHERE idempotency_key = $1
	`, idempotencyKey).Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.TotalPrice, &b.PaymentProvider, &b.PaymentRef, &b.Phone, &b.Status, &b.IdempotencyKey, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.Seats, err = s.bookingSeats(ctx, b.ID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, showtime_id, total_price, payment_provider, payment_ref, phone, status, idempotency_key, created_at
		FROM bookings WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.TotalPrice, &b.PaymentProvider, &b.PaymentRef, &b.Phone, &b.Status, &b.IdempotencyKey, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Seats, err = s.bookingSeats(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) bookingSeats(ctx context.Context, bookingID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seat_id FROM booking_seats WHERE booking_id = $1 ORDER BY seat_id
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

func (s *Store) BookingStats(ctx context.Context) (int, float64, error) {
	var tickets int
	var revenue float64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_price), 0) FROM bookings
	`).Scan(&tickets, &revenue)
	return tickets, revenue, err
}

// ShowtimesWithExpiredLocks lists showtimes holding at least one expired
// pending entry, for the expiry worker's hygiene sweep.
func (s *Store) ShowtimesWithExpiredLocks(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT showtime_id FROM seat_states
		WHERE status = 'PENDING' AND lock_expiry <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailureCode:
			return domain.ErrSerializationFailure
		case uniqueViolationCode:
			// Contending inserts on the same seat row; the loser retries.
			return domain.ErrSerializationFailure
		}
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
