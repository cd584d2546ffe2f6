// Package booking holds the seat-reservation concurrency core: the lock
// manager that grants time-bounded holds and the finalizer that converts held
// seats into a booking exactly once.
package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/gastcinema/seat-reservations/internal/clock"
	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/ledger"
	"github.com/gastcinema/seat-reservations/internal/observability"
	"github.com/gastcinema/seat-reservations/internal/payments"
)

const defaultHoldTTL = 5 * time.Minute

type Service struct {
	catalog  Catalog
	store    Store
	payments payments.Provider
	clock    clock.Clock
	logger   observability.Logger
	holdTTL  time.Duration
}

type Option func(*Service)

// WithHoldTTL overrides the default lock TTL.
func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func NewService(catalog Catalog, store Store, pay payments.Provider, clk clock.Clock, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		store:    store,
		payments: pay,
		clock:    clk,
		logger:   logger,
		holdTTL:  defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AcquireLock grants a hold on every requested seat or none of them. A seat
// counts as unavailable when it is taken, or pending by another party with an
// unexpired lock. Re-acquiring seats the party already holds refreshes their
// expiry. On conflict the returned error lists the offending seats so the
// client can deselect them.
func (s *Service) AcquireLock(ctx context.Context, showtimeID string, seats []string, party domain.Identity, ttl time.Duration) (time.Time, error) {
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return time.Time{}, err
	}
	if err := domain.ValidateSeatList(seats, st.Rows, st.Cols); err != nil {
		return time.Time{}, err
	}
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	var expiry time.Time
	err = s.store.WithLedgerTx(ctx, showtimeID, func(tx LedgerTx) error {
		now := s.clock.Now()
		if conflicts := unavailable(tx.Ledger(), seats, party.PartyID, now); len(conflicts) > 0 {
			return domain.NewSeatConflict(conflicts)
		}
		expiry = now.Add(ttl)
		for _, seat := range seats {
			tx.Ledger().MarkPending(seat, party.PartyID, expiry)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			observability.LockConflicts.Inc()
		}
		return time.Time{}, err
	}

	observability.LocksAcquired.Add(float64(len(seats)))
	s.logger.WithField("showtime_id", showtimeID).WithField("party_id", party.PartyID).
		Debug("seats locked", seats)
	return expiry, nil
}

// ReleaseLock is best-effort: it clears only locks actually owned by the
// party and silently skips seats owned by others or already taken.
func (s *Service) ReleaseLock(ctx context.Context, showtimeID string, seats []string, party domain.Identity) error {
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return err
	}
	if err := domain.ValidateSeatList(seats, st.Rows, st.Cols); err != nil {
		return err
	}

	return s.store.WithLedgerTx(ctx, showtimeID, func(tx LedgerTx) error {
		for _, seat := range seats {
			tx.Ledger().Release(seat, party.PartyID)
		}
		return nil
	})
}

type FinalizeInput struct {
	ShowtimeID      string
	Seats           []string
	Party           domain.Identity
	PaymentProvider string
	Phone           string
	IdempotencyKey  string
}

// Finalize converts a held selection into a permanent, charged booking
// exactly once per idempotency key. Re-validation is permissive: seats
// pending by the caller or plain available are both acceptable, covering a
// silently expired lock that nobody else has claimed. Seats taken or held by
// another party reject the whole request.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (domain.Booking, error) {
	// Business rule, checked before any seat logic runs.
	if in.Party.Role == domain.RoleAdmin {
		return domain.Booking{}, errors.Wrap(domain.ErrUnauthorized, "admins cannot book seats")
	}
	if in.IdempotencyKey == "" {
		return domain.Booking{}, errors.Wrap(domain.ErrInvalidInput, "idempotency key required")
	}
	if in.Phone == "" {
		return domain.Booking{}, errors.Wrap(domain.ErrInvalidInput, "contact phone required")
	}
	if in.PaymentProvider == "" {
		return domain.Booking{}, errors.Wrap(domain.ErrInvalidInput, "payment provider required")
	}

	// The key must be checked before any seat mutation so a client retry can
	// never double-charge.
	if existing, err := s.store.GetBookingByKey(ctx, in.IdempotencyKey); err != nil {
		return domain.Booking{}, err
	} else if existing != nil {
		observability.BookingReplays.Inc()
		return *existing, nil
	}

	st, err := s.catalog.GetShowtime(ctx, in.ShowtimeID)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := domain.ValidateSeatList(in.Seats, st.Rows, st.Cols); err != nil {
		return domain.Booking{}, err
	}

	var result domain.Booking
	var replayed bool
	err = s.store.WithLedgerTx(ctx, in.ShowtimeID, func(tx LedgerTx) error {
		// Re-check the key now that we hold the showtime: a concurrent retry
		// may have finalized between the pre-check and here, and its taken
		// seats must read as a replay, not as a conflict.
		if existing, err := s.store.GetBookingByKey(ctx, in.IdempotencyKey); err != nil {
			return err
		} else if existing != nil {
			result = *existing
			replayed = true
			return nil
		}

		now := s.clock.Now()
		if conflicts := unavailable(tx.Ledger(), in.Seats, in.Party.PartyID, now); len(conflicts) > 0 {
			return domain.NewSeatConflict(conflicts)
		}

		tx.Ledger().MarkTaken(in.Seats)

		total := float64(len(in.Seats)) * st.Price
		receipt, err := s.payments.Charge(ctx, payments.ChargeRequest{
			PartyID:    in.Party.PartyID,
			ShowtimeID: in.ShowtimeID,
			Seats:      in.Seats,
			Amount:     total,
			Provider:   in.PaymentProvider,
			Phone:      in.Phone,
		})
		if err != nil {
			// Aborts the transaction, so the seats are not left taken
			// without a booking.
			return errors.Wrap(domain.ErrPaymentFailed, err.Error())
		}

		result = domain.Booking{
			ID:              uuid.New(),
			UserID:          in.Party.PartyID,
			ShowtimeID:      in.ShowtimeID,
			Seats:           append([]string(nil), in.Seats...),
			TotalPrice:      total,
			PaymentProvider: in.PaymentProvider,
			PaymentRef:      receipt.Reference,
			Phone:           in.Phone,
			Status:          domain.BookingConfirmed,
			IdempotencyKey:  in.IdempotencyKey,
			CreatedAt:       now,
		}
		return tx.CreateBooking(result)
	})
	if errors.Is(err, ErrDuplicateKey) {
		// Lost a race against a concurrent retry with the same key.
		existing, gerr := s.store.GetBookingByKey(ctx, in.IdempotencyKey)
		if gerr != nil {
			return domain.Booking{}, gerr
		}
		if existing != nil {
			observability.BookingReplays.Inc()
			return *existing, nil
		}
		return domain.Booking{}, err
	}
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			observability.BookingConflicts.Inc()
		}
		return domain.Booking{}, err
	}
	if replayed {
		observability.BookingReplays.Inc()
		return result, nil
	}

	observability.BookingsCreated.Inc()
	s.logger.WithField("booking_id", result.ID.String()).WithField("party_id", in.Party.PartyID).
		Info("booking finalized")
	return result, nil
}

// ShowtimeView is the client-rendering read model: price plus the effective
// status of every seat in the grid at read time.
type ShowtimeView struct {
	Showtime domain.Showtime
	SeatMap  map[string]ledger.EffectiveStatus
}

func (s *Service) GetShowtime(ctx context.Context, showtimeID string) (ShowtimeView, error) {
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return ShowtimeView{}, err
	}

	view := ShowtimeView{Showtime: st}
	err = s.store.WithLedgerTx(ctx, showtimeID, func(tx LedgerTx) error {
		view.SeatMap = tx.Ledger().Snapshot(domain.SeatIDs(st.Rows, st.Cols), s.clock.Now())
		return nil
	})
	if err != nil {
		return ShowtimeView{}, err
	}
	return view, nil
}

// GetMovie and ListShowtimes expose the catalog for client browsing.
func (s *Service) GetMovie(ctx context.Context, movieID string) (domain.Movie, error) {
	return s.catalog.GetMovie(ctx, movieID)
}

func (s *Service) ListShowtimes(ctx context.Context, movieID string) ([]domain.Showtime, error) {
	return s.catalog.ListShowtimes(ctx, movieID)
}

// ListBookings returns the party's bookings, newest first.
func (s *Service) ListBookings(ctx context.Context, party domain.Identity) ([]domain.Booking, error) {
	return s.store.ListUserBookings(ctx, party.PartyID)
}

// Sweep drops expired lock entries for one showtime and returns the freed
// seats. Storage hygiene only; reads are already correct without it.
func (s *Service) Sweep(ctx context.Context, showtimeID string) ([]string, error) {
	var swept []string
	err := s.store.WithLedgerTx(ctx, showtimeID, func(tx LedgerTx) error {
		swept = tx.Ledger().SweepExpired(s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(swept) > 0 {
		observability.LocksExpired.Add(float64(len(swept)))
	}
	return swept, nil
}

// Stats aggregates totals for the admin dashboard.
type Stats struct {
	TotalTickets int
	ActiveMovies int
	TotalRevenue float64
}

func (s *Service) Stats(ctx context.Context, party domain.Identity) (Stats, error) {
	if party.Role != domain.RoleAdmin {
		return Stats{}, errors.Wrap(domain.ErrUnauthorized, "admin role required")
	}
	tickets, revenue, err := s.store.BookingStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	movies, err := s.catalog.CountMovies(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalTickets: tickets, ActiveMovies: movies, TotalRevenue: revenue}, nil
}

// unavailable returns the requested seats that cannot be claimed by partyID
// right now: taken, or pending under someone else's unexpired lock.
func unavailable(l *ledger.Ledger, seats []string, partyID string, now time.Time) []string {
	var conflicts []string
	for _, seat := range seats {
		eff := l.Read(seat, now)
		switch eff.Status {
		case domain.SeatTaken:
			conflicts = append(conflicts, seat)
		case domain.SeatPending:
			if eff.LockedBy != partyID {
				conflicts = append(conflicts, seat)
			}
		}
	}
	return conflicts
}
