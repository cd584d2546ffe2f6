package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gastcinema/seat-reservations/internal/adapters/memory"
	"github.com/gastcinema/seat-reservations/internal/booking"
	"github.com/gastcinema/seat-reservations/internal/clock"
	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/observability"
	"github.com/gastcinema/seat-reservations/internal/payments"
)

var t0 = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

// stepClock is a settable clock for expiry scenarios.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func user(id string) domain.Identity  { return domain.Identity{PartyID: id, Role: domain.RoleCustomer} }
func admin(id string) domain.Identity { return domain.Identity{PartyID: id, Role: domain.RoleAdmin} }

func newSvc(t *testing.T, clk clock.Clock) (*booking.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddMovie(domain.Movie{ID: "movie-1", Title: "The Batman", Duration: 176})
	store.AddShowtime(domain.Showtime{
		ID:      "show-1",
		MovieID: "movie-1",
		Date:    "2025-06-01",
		Time:    "20:00",
		Hall:    "Standard Hall",
		Price:   12.5,
		Rows:    domain.DefaultRows,
		Cols:    domain.DefaultCols,
	})
	svc := booking.NewService(store, store, payments.NewMock(), clk, observability.NewNopLogger())
	return svc, store
}

func finalizeInput(seats []string, party domain.Identity, key string) booking.FinalizeInput {
	return booking.FinalizeInput{
		ShowtimeID:      "show-1",
		Seats:           seats,
		Party:           party,
		PaymentProvider: "mockpay",
		Phone:           "+6598765432",
		IdempotencyKey:  key,
	}
}

func takenCount(t *testing.T, svc *booking.Service) int {
	t.Helper()
	view, err := svc.GetShowtime(context.Background(), "show-1")
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, eff := range view.SeatMap {
		if eff.Status == domain.SeatTaken {
			n++
		}
	}
	return n
}

func TestAcquireLock_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A1", "A2"}, user("u1"), 0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Overlap on A2: the whole request fails, even though A3 alone was free.
	_, err := svc.AcquireLock(ctx, "show-1", []string{"A2", "A3"}, user("u2"), 0)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got := domain.ConflictSeats(err)
	if len(got) != 1 || got[0] != "A2" {
		t.Fatalf("conflict seats = %v, want [A2]", got)
	}

	// A3 was not partially granted.
	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A3"}, user("u3"), 0); err != nil {
		t.Fatalf("A3 should still be free: %v", err)
	}
}

func TestAcquireLock_ReacquireRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &stepClock{now: t0}
	svc, _ := newSvc(t, clk)

	exp1, err := svc.AcquireLock(ctx, "show-1", []string{"A1"}, user("u1"), 0)
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Minute)
	exp2, err := svc.AcquireLock(ctx, "show-1", []string{"A1"}, user("u1"), 0)
	if err != nil {
		t.Fatalf("re-acquire by holder must succeed: %v", err)
	}
	if !exp2.After(exp1) {
		t.Fatalf("expiry not refreshed: %v -> %v", exp1, exp2)
	}
}

func TestAcquireLock_ExpiredLockIsAvailable(t *testing.T) {
	ctx := context.Background()
	clk := &stepClock{now: t0}
	svc, _ := newSvc(t, clk)

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"B1"}, user("u3"), 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	clk.Advance(200 * time.Millisecond)

	// No explicit release happened; lazy expiry alone must free the seat.
	if _, err := svc.AcquireLock(ctx, "show-1", []string{"B1"}, user("u4"), 0); err != nil {
		t.Fatalf("expired lock must be treated as available: %v", err)
	}
}

func TestAcquireLock_UnknownShowtime(t *testing.T) {
	svc, _ := newSvc(t, clock.NewFixed(t0))
	_, err := svc.AcquireLock(context.Background(), "show-404", []string{"A1"}, user("u1"), 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAcquireLock_RejectsMalformedSeats(t *testing.T) {
	svc, _ := newSvc(t, clock.NewFixed(t0))
	for _, seats := range [][]string{nil, {}, {"Z1"}, {"A9"}, {"A0"}, {"A1", "A1"}, {"1A"}, {"A08"}, {"A+8"}} {
		_, err := svc.AcquireLock(context.Background(), "show-1", seats, user("u1"), 0)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("seats %v: expected invalid input, got %v", seats, err)
		}
	}
}

func TestFinalize_RejectsAliasedSeatIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.Finalize(ctx, finalizeInput([]string{"A8"}, user("u1"), "key-1")); err != nil {
		t.Fatalf("finalize A8: %v", err)
	}

	// "A08" and "A8" are the same physical seat; the non-canonical spelling
	// would key a second ledger entry, selling the seat twice.
	for _, alias := range []string{"A08", "A008", "A+8"} {
		_, err := svc.Finalize(ctx, finalizeInput([]string{alias}, user("u2"), "key-"+alias))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("seat %q: expected invalid input, got %v", alias, err)
		}
	}
	if n := takenCount(t, svc); n != 1 {
		t.Fatalf("taken count = %d, want 1", n)
	}
}

func TestReleaseLock_BestEffort(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A1"}, user("u1"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A2"}, user("u2"), 0); err != nil {
		t.Fatal(err)
	}

	// u2 releases a mixed set: its own seat goes, u1's stays, no error.
	if err := svc.ReleaseLock(ctx, "show-1", []string{"A1", "A2"}, user("u2")); err != nil {
		t.Fatalf("release must be best-effort: %v", err)
	}

	view, err := svc.GetShowtime(ctx, "show-1")
	if err != nil {
		t.Fatal(err)
	}
	if view.SeatMap["A1"].Status != domain.SeatPending || view.SeatMap["A1"].LockedBy != "u1" {
		t.Fatalf("u1's lock must survive: %+v", view.SeatMap["A1"])
	}
	if view.SeatMap["A2"].Status != domain.SeatAvailable {
		t.Fatalf("u2's seat must be freed: %+v", view.SeatMap["A2"])
	}
}

func TestFinalize_IdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A1", "A2"}, user("u1"), 0); err != nil {
		t.Fatal(err)
	}

	b1, err := svc.Finalize(ctx, finalizeInput([]string{"A1", "A2"}, user("u1"), "k1"))
	if err != nil {
		t.Fatal(err)
	}
	if b1.TotalPrice != 2*12.5 {
		t.Fatalf("total = %v, want %v", b1.TotalPrice, 2*12.5)
	}
	if b1.Status != domain.BookingConfirmed || b1.PaymentRef == "" {
		t.Fatalf("booking not confirmed/charged: %+v", b1)
	}

	before := takenCount(t, svc)

	b2, err := svc.Finalize(ctx, finalizeInput([]string{"A1", "A2"}, user("u1"), "k1"))
	if err != nil {
		t.Fatalf("retry with same key: %v", err)
	}
	if b2.ID != b1.ID || b2.PaymentRef != b1.PaymentRef {
		t.Fatalf("retry returned a different booking: %v vs %v", b2.ID, b1.ID)
	}
	if after := takenCount(t, svc); after != before {
		t.Fatalf("retry changed taken count: %d -> %d", before, after)
	}
}

func TestFinalize_AdminRejectedBeforeSeatLogic(t *testing.T) {
	svc, _ := newSvc(t, clock.NewFixed(t0))

	_, err := svc.Finalize(context.Background(), finalizeInput([]string{"A1"}, admin("boss"), "k-admin"))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if n := takenCount(t, svc); n != 0 {
		t.Fatalf("admin attempt mutated state: %d seats taken", n)
	}
}

func TestFinalize_ValidationBeforeLedger(t *testing.T) {
	svc, _ := newSvc(t, clock.NewFixed(t0))
	ctx := context.Background()

	cases := []booking.FinalizeInput{
		{ShowtimeID: "show-1", Seats: []string{"A1"}, Party: user("u1"), PaymentProvider: "mockpay", Phone: "123"}, // no key
		{ShowtimeID: "show-1", Seats: []string{"A1"}, Party: user("u1"), PaymentProvider: "mockpay", IdempotencyKey: "k"},
		{ShowtimeID: "show-1", Seats: []string{"A1"}, Party: user("u1"), Phone: "123", IdempotencyKey: "k"},
	}
	for i, in := range cases {
		if _, err := svc.Finalize(ctx, in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestFinalize_PermissiveWithoutLock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	// No acquire step at all: seats are plain available, finalize accepts.
	if _, err := svc.Finalize(ctx, finalizeInput([]string{"C1", "C2"}, user("u1"), "k-direct")); err != nil {
		t.Fatalf("finalize on available seats must succeed: %v", err)
	}
}

func TestFinalize_RejectsSeatsHeldByOther(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"D1"}, user("u1"), 0); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Finalize(ctx, finalizeInput([]string{"D1"}, user("u2"), "k2"))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got := domain.ConflictSeats(err)
	if len(got) != 1 || got[0] != "D1" {
		t.Fatalf("conflict seats = %v, want [D1]", got)
	}
}

func TestFinalize_RejectsTakenSeats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.Finalize(ctx, finalizeInput([]string{"E1"}, user("u1"), "k1")); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Finalize(ctx, finalizeInput([]string{"E1"}, user("u2"), "k2"))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("taken seat must conflict even for a later party, got %v", err)
	}
}

func TestFinalize_PaymentFailureLeavesSeatsFree(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddShowtime(domain.Showtime{ID: "show-1", Price: 10, Rows: domain.DefaultRows, Cols: domain.DefaultCols})
	svc := booking.NewService(store, store, failingProvider{}, clock.NewFixed(t0), observability.NewNopLogger())

	_, err := svc.Finalize(ctx, finalizeInput([]string{"A1"}, user("u1"), "k1"))
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("expected payment failure, got %v", err)
	}
	if n := takenCount(t, svc); n != 0 {
		t.Fatalf("declined charge must not leave seats taken: %d", n)
	}
	if b, _ := store.GetBookingByKey(ctx, "k1"); b != nil {
		t.Fatal("declined charge must not persist a booking")
	}
}

type failingProvider struct{}

func (failingProvider) Charge(ctx context.Context, req payments.ChargeRequest) (payments.Receipt, error) {
	return payments.Receipt{}, errors.New("card declined")
}

func TestConcurrent_DisjointAcquiresBothSucceed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		sets := [][]string{{"A1", "A2"}, {"B1", "B2"}}
		for j := range sets {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				_, errs[j] = svc.AcquireLock(ctx, "show-1", sets[j], user("u"+string(rune('1'+j))), 0)
			}(j)
		}
		wg.Wait()
		if errs[0] != nil || errs[1] != nil {
			t.Fatalf("iteration %d: disjoint acquires must both succeed: %v / %v", i, errs[0], errs[1])
		}
		for j, seats := range sets {
			if err := svc.ReleaseLock(ctx, "show-1", seats, user("u"+string(rune('1'+j)))); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestConcurrent_OverlappingAcquiresAtMostOneWins(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		svc, _ := newSvc(t, clock.NewFixed(t0))
		var wg sync.WaitGroup
		errs := make([]error, 2)
		sets := [][]string{{"A1", "A2"}, {"A2", "A3"}}
		for j := range sets {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				_, errs[j] = svc.AcquireLock(ctx, "show-1", sets[j], user("u"+string(rune('1'+j))), 0)
			}(j)
		}
		wg.Wait()

		winners := 0
		for j, err := range errs {
			if err == nil {
				winners++
				continue
			}
			if !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			// The loser's conflict list names the contested intersection.
			found := false
			for _, s := range domain.ConflictSeats(err) {
				if s == "A2" {
					found = true
				}
			}
			if !found {
				t.Fatalf("iteration %d, call %d: conflict list %v missing A2", i, j, domain.ConflictSeats(err))
			}
		}
		if winners != 1 {
			t.Fatalf("iteration %d: want exactly one winner, got %d", i, winners)
		}
	}
}

func TestConcurrent_FinalizeSameKeySingleBooking(t *testing.T) {
	ctx := context.Background()
	svc, store := newSvc(t, clock.NewFixed(t0))

	const n = 8
	var wg sync.WaitGroup
	results := make([]domain.Booking, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Finalize(ctx, finalizeInput([]string{"A1", "A2"}, user("u1"), "k-race"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Fatalf("call %d returned a different booking", i)
		}
	}
	tickets, revenue, err := store.BookingStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tickets != 1 || revenue != 2*12.5 {
		t.Fatalf("want 1 booking / %.1f revenue, got %d / %.1f", 2*12.5, tickets, revenue)
	}
}

// The end-to-end contention scenario: U1 locks and books A1/A2, U2 loses the
// overlapping acquire, retries with fresh seats and wins.
func TestScenario_ContendedBookingFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A1", "A2"}, user("u1"), 300*time.Second); err != nil {
		t.Fatal(err)
	}

	_, err := svc.AcquireLock(ctx, "show-1", []string{"A2", "A3"}, user("u2"), 0)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("u2 overlap must conflict, got %v", err)
	}
	if got := domain.ConflictSeats(err); len(got) != 1 || got[0] != "A2" {
		t.Fatalf("conflict seats = %v, want [A2]", got)
	}

	b1, err := svc.Finalize(ctx, finalizeInput([]string{"A1", "A2"}, user("u1"), "k1"))
	if err != nil {
		t.Fatal(err)
	}
	if b1.TotalPrice != 2*12.5 {
		t.Fatalf("total = %v", b1.TotalPrice)
	}

	b1retry, err := svc.Finalize(ctx, finalizeInput([]string{"A1", "A2"}, user("u1"), "k1"))
	if err != nil || b1retry.ID != b1.ID {
		t.Fatalf("retry must return b1 unchanged: %v %v", err, b1retry.ID)
	}

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A3", "A4"}, user("u2"), 0); err != nil {
		t.Fatalf("u2's fresh selection must succeed: %v", err)
	}
}

func TestSweep_RemovesOnlyExpiredLocks(t *testing.T) {
	ctx := context.Background()
	clk := &stepClock{now: t0}
	svc, _ := newSvc(t, clk)

	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A1"}, user("u1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AcquireLock(ctx, "show-1", []string{"A2"}, user("u2"), time.Hour); err != nil {
		t.Fatal(err)
	}

	clk.Advance(2 * time.Minute)
	swept, err := svc.Sweep(ctx, "show-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(swept) != 1 || swept[0] != "A1" {
		t.Fatalf("swept = %v, want [A1]", swept)
	}

	view, err := svc.GetShowtime(ctx, "show-1")
	if err != nil {
		t.Fatal(err)
	}
	if view.SeatMap["A2"].Status != domain.SeatPending {
		t.Fatal("live lock must survive the sweep")
	}
}

func TestStats_AdminOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.Finalize(ctx, finalizeInput([]string{"A1", "A2"}, user("u1"), "k1")); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Stats(ctx, user("u1")); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("customer stats must be unauthorized, got %v", err)
	}

	stats, err := svc.Stats(ctx, admin("boss"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTickets != 1 || stats.TotalRevenue != 2*12.5 || stats.ActiveMovies != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestListBookings_ScopedToParty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSvc(t, clock.NewFixed(t0))

	if _, err := svc.Finalize(ctx, finalizeInput([]string{"A1"}, user("u1"), "k1")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Finalize(ctx, finalizeInput([]string{"A2"}, user("u2"), "k2")); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ListBookings(ctx, user("u1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("bookings = %+v", got)
	}
}
