// Package memory is an in-process implementation of the booking ports.
// Per-showtime serialization comes from a mutex keyed by showtime id, which
// is one of the two correctness strategies the storage contract allows (the
// other being transactional CAS in the database, see adapters/crdb).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gastcinema/seat-reservations/internal/booking"
	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/ledger"
)

type Store struct {
	mu        sync.Mutex
	showtimes map[string]domain.Showtime
	movies    map[string]domain.Movie
	ledgers   map[string]map[string]domain.SeatState
	bookings  []domain.Booking
	byKey     map[string]int // idempotency key -> index into bookings

	locks map[string]*sync.Mutex // per-showtime tx serialization
}

func NewStore() *Store {
	return &Store{
		showtimes: make(map[string]domain.Showtime),
		movies:    make(map[string]domain.Movie),
		ledgers:   make(map[string]map[string]domain.SeatState),
		byKey:     make(map[string]int),
		locks:     make(map[string]*sync.Mutex),
	}
}

// AddMovie and AddShowtime seed the catalog; they stand in for the external
// catalog-management collaborator.
func (s *Store) AddMovie(m domain.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
}

func (s *Store) AddShowtime(st domain.Showtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showtimes[st.ID] = st
	if _, ok := s.ledgers[st.ID]; !ok {
		s.ledgers[st.ID] = make(map[string]domain.SeatState)
	}
}

func (s *Store) GetShowtime(ctx context.Context, showtimeID string) (domain.Showtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.showtimes[showtimeID]
	if !ok {
		return domain.Showtime{}, domain.ErrNotFound
	}
	return st, nil
}

func (s *Store) GetMovie(ctx context.Context, movieID string) (domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[movieID]
	if !ok {
		return domain.Movie{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListShowtimes(ctx context.Context, movieID string) ([]domain.Showtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Showtime
	for _, st := range s.showtimes {
		if st.MovieID == movieID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *Store) CountMovies(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movies), nil
}

func (s *Store) showtimeLock(showtimeID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mu, ok := s.locks[showtimeID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.locks[showtimeID] = mu
	return mu
}

type tx struct {
	led    *ledger.Ledger
	staged []domain.Booking
	store  *Store
}

func (t *tx) Ledger() *ledger.Ledger { return t.led }

func (t *tx) CreateBooking(b domain.Booking) error {
	t.store.mu.Lock()
	_, dup := t.store.byKey[b.IdempotencyKey]
	t.store.mu.Unlock()
	if dup {
		return booking.ErrDuplicateKey
	}
	t.staged = append(t.staged, b)
	return nil
}

// WithLedgerTx loads the showtime's seat states into a fresh ledger, runs fn
// under the showtime's mutex, and commits dirty seats plus staged bookings
// only when fn succeeds. A failed fn leaves the store untouched.
func (s *Store) WithLedgerTx(ctx context.Context, showtimeID string, fn func(tx booking.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := s.showtimeLock(showtimeID)
	mu.Lock()
	defer mu.Unlock()

	s.mu.Lock()
	states, ok := s.ledgers[showtimeID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	copied := make(map[string]domain.SeatState, len(states))
	for id, st := range states {
		copied[id] = st
	}
	s.mu.Unlock()

	t := &tx{led: ledger.FromStates(copied), store: s}
	if err := fn(t); err != nil {
		return err
	}

	// Commit.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range t.staged {
		// Keys are unique globally; a concurrent finalize on another showtime
		// may have claimed the key between staging and commit.
		if _, dup := s.byKey[b.IdempotencyKey]; dup {
			return booking.ErrDuplicateKey
		}
	}
	target := s.ledgers[showtimeID]
	for _, seatID := range t.led.Dirty() {
		if st, ok := t.led.State(seatID); ok {
			target[seatID] = st
		} else {
			delete(target, seatID)
		}
	}
	for _, b := range t.staged {
		s.byKey[b.IdempotencyKey] = len(s.bookings)
		s.bookings = append(s.bookings, b)
	}
	return nil
}

func (s *Store) GetBookingByKey(ctx context.Context, idempotencyKey string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byKey[idempotencyKey]
	if !ok {
		return nil, nil
	}
	b := s.bookings[idx]
	return &b, nil
}

func (s *Store) ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) BookingStats(ctx context.Context) (int, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revenue float64
	for _, b := range s.bookings {
		revenue += b.TotalPrice
	}
	return len(s.bookings), revenue, nil
}
