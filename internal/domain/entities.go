package domain

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatus is the stored state of a single seat within a showtime.
// Available is an explicit status even though storage encodes it as row
// absence; encoding it only as absence makes reads ambiguous.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatPending   SeatStatus = "PENDING"
	SeatTaken     SeatStatus = "TAKEN"
)

// SeatState carries lock ownership and expiry alongside the status. LockedBy
// and LockExpiry are meaningful only while Status is SeatPending.
type SeatState struct {
	Status     SeatStatus
	LockedBy   string
	LockExpiry time.Time
}

// Roles of an authenticated party. Admins manage the catalog and are
// categorically barred from booking seats.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Identity is the resolved caller: who is asking, and in what role.
type Identity struct {
	PartyID string
	Role    string
}

// Showtime is one scheduled screening: catalog metadata plus the grid
// dimensions its seat ledger is enumerated from. Seat state itself lives in
// the ledger store, not here.
type Showtime struct {
	ID      string
	MovieID string
	Date    string // YYYY-MM-DD
	Time    string // HH:MM
	Hall    string
	Price   float64
	Rows    int
	Cols    int
}

// Booking statuses. The status is set once at creation and never transitions;
// there is no cancellation flow.
const (
	BookingConfirmed = "CONFIRMED"
	BookingFailed    = "FAILED"
)

// Booking is immutable once created: exactly one exists per idempotency key.
type Booking struct {
	ID              uuid.UUID
	UserID          string
	ShowtimeID      string
	Seats           []string
	TotalPrice      float64
	PaymentProvider string
	PaymentRef      string
	Phone           string
	Status          string
	IdempotencyKey  string
	CreatedAt       time.Time
}

// Movie is catalog metadata, consumed read-only by the booking core.
type Movie struct {
	ID       string
	Title    string
	Genre    string
	Duration int
	Poster   string
	Featured bool
}
