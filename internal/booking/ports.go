package booking

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/ledger"
)

// ErrDuplicateKey is returned by LedgerTx.CreateBooking when another booking
// already holds the idempotency key. The service resolves it by re-reading
// the existing booking, keeping retries exactly-once.
var ErrDuplicateKey = errors.New("duplicate idempotency key")

// Catalog supplies showtime metadata (price, grid sizing). Read-only from the
// booking core's point of view; catalog management is an external
// collaborator.
type Catalog interface {
	GetShowtime(ctx context.Context, showtimeID string) (domain.Showtime, error)
	GetMovie(ctx context.Context, movieID string) (domain.Movie, error)
	ListShowtimes(ctx context.Context, movieID string) ([]domain.Showtime, error)
	CountMovies(ctx context.Context) (int, error)
}

// Store persists seat state and bookings. Implementations must serialize
// LedgerTx invocations per showtime and commit all mutations atomically:
// either every dirty seat and staged booking lands, or none do. Idempotency
// keys are unique globally, not per showtime.
type Store interface {
	WithLedgerTx(ctx context.Context, showtimeID string, fn func(tx LedgerTx) error) error
	GetBookingByKey(ctx context.Context, idempotencyKey string) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error)
	BookingStats(ctx context.Context) (tickets int, revenue float64, err error)
}

// LedgerTx is one serialized unit of work against a single showtime's seat
// ledger.
type LedgerTx interface {
	Ledger() *ledger.Ledger
	CreateBooking(b domain.Booking) error
}
