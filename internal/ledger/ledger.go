// Package ledger is the single source of truth for seat state within one
// showtime. It is pure data plus invariant enforcement: no I/O, no locking.
// Callers (the booking service and its storage adapters) are responsible for
// serializing access per showtime.
package ledger

import (
	"sort"
	"time"

	"github.com/gastcinema/seat-reservations/internal/domain"
)

// EffectiveStatus is what a read observes after the lazy-expiry rule has been
// applied. A stored pending lock whose expiry has passed reads as available;
// the stored fields are authoritative only after that check.
type EffectiveStatus struct {
	Status   domain.SeatStatus
	LockedBy string // set only for unexpired pending locks
}

// Ledger tracks each seat's state for a single showtime. The zero value is
// not usable; construct with New.
type Ledger struct {
	seats map[string]domain.SeatState
	dirty map[string]struct{}
}

func New() *Ledger {
	return &Ledger{
		seats: make(map[string]domain.SeatState),
		dirty: make(map[string]struct{}),
	}
}

// FromStates builds a ledger from persisted seat states. Seats absent from
// the map are available.
func FromStates(states map[string]domain.SeatState) *Ledger {
	l := New()
	for id, st := range states {
		l.seats[id] = st
	}
	return l
}

// Read returns the effective status of one seat at the given instant.
// Expired pending locks are reported available even though the stored entry
// still exists; expiry is never required to have been swept.
func (l *Ledger) Read(seatID string, now time.Time) EffectiveStatus {
	st, ok := l.seats[seatID]
	if !ok {
		return EffectiveStatus{Status: domain.SeatAvailable}
	}
	switch st.Status {
	case domain.SeatTaken:
		return EffectiveStatus{Status: domain.SeatTaken}
	case domain.SeatPending:
		if !st.LockExpiry.After(now) {
			return EffectiveStatus{Status: domain.SeatAvailable}
		}
		return EffectiveStatus{Status: domain.SeatPending, LockedBy: st.LockedBy}
	default:
		return EffectiveStatus{Status: domain.SeatAvailable}
	}
}

// MarkPending records a lock for partyID until expiry. Eligibility (the seat
// being effectively available or already pending by the same party) must have
// been verified by the caller.
func (l *Ledger) MarkPending(seatID, partyID string, expiry time.Time) {
	l.seats[seatID] = domain.SeatState{
		Status:     domain.SeatPending,
		LockedBy:   partyID,
		LockExpiry: expiry,
	}
	l.touch(seatID)
}

// MarkTaken flips the given seats to taken and clears their lock fields.
// There is no way back through this interface.
func (l *Ledger) MarkTaken(seatIDs []string) {
	for _, id := range seatIDs {
		l.seats[id] = domain.SeatState{Status: domain.SeatTaken}
		l.touch(id)
	}
}

// Release clears a pending lock only when it is owned by partyID. Ownership
// is checked by identity, never by time: a party may release its own lock
// after logical expiry, but never someone else's. Returns whether the seat
// was released.
func (l *Ledger) Release(seatID, partyID string) bool {
	st, ok := l.seats[seatID]
	if !ok || st.Status != domain.SeatPending || st.LockedBy != partyID {
		return false
	}
	delete(l.seats, seatID)
	l.touch(seatID)
	return true
}

// SweepExpired removes pending entries whose lock expired at or before now
// and returns the affected seat ids. Storage hygiene only: Read already
// treats them as available.
func (l *Ledger) SweepExpired(now time.Time) []string {
	var swept []string
	for id, st := range l.seats {
		if st.Status == domain.SeatPending && !st.LockExpiry.After(now) {
			delete(l.seats, id)
			l.touch(id)
			swept = append(swept, id)
		}
	}
	sort.Strings(swept)
	return swept
}

// Snapshot returns the effective status of every seat in the grid at the
// given instant, for client-side rendering.
func (l *Ledger) Snapshot(seatIDs []string, now time.Time) map[string]EffectiveStatus {
	out := make(map[string]EffectiveStatus, len(seatIDs))
	for _, id := range seatIDs {
		out[id] = l.Read(id, now)
	}
	return out
}

// State exposes the stored (pre-expiry-check) entry for a seat. Used by
// storage adapters when persisting; business logic should go through Read.
func (l *Ledger) State(seatID string) (domain.SeatState, bool) {
	st, ok := l.seats[seatID]
	return st, ok
}

// Dirty lists seats mutated since the ledger was constructed, so adapters can
// persist exactly what changed.
func (l *Ledger) Dirty() []string {
	out := make([]string, 0, len(l.dirty))
	for id := range l.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) touch(seatID string) {
	l.dirty[seatID] = struct{}{}
}
